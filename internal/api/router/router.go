package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"timetable-collator/internal/api/handler"
	"timetable-collator/internal/api/middleware"
)

// Setup 初始化并返回运维 API 路由引擎
func Setup(h *handler.Handler, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))

	// ── 健康检查 ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	{
		runs := v1.Group("/runs")
		{
			runs.GET("/latest", h.Run.GetLatest)
			runs.POST("", h.Run.TriggerRun)
		}
	}

	return r
}
