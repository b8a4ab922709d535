package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"timetable-collator/internal/service"
	"timetable-collator/pkg/response"
)

// RunHandler 流水线运行 HTTP 处理器
type RunHandler struct {
	runSvc service.RunService
}

// NewRunHandler 创建 RunHandler
func NewRunHandler(runSvc service.RunService) *RunHandler {
	return &RunHandler{runSvc: runSvc}
}

// GetLatest 获取最近一次运行状态
// GET /api/v1/runs/latest
func (h *RunHandler) GetLatest(c *gin.Context) {
	status, err := h.runSvc.Latest()
	if err != nil {
		h.handleRunError(c, err)
		return
	}
	response.OK(c, status)
}

// TriggerRun 异步触发一次运行
// POST /api/v1/runs
func (h *RunHandler) TriggerRun(c *gin.Context) {
	status, err := h.runSvc.Trigger()
	if err != nil {
		h.handleRunError(c, err)
		return
	}
	response.Accepted(c, status)
}

func (h *RunHandler) handleRunError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNoRunYet):
		response.NotFound(c, 40401, err.Error())
	case errors.Is(err, service.ErrRunInProgress):
		response.Conflict(c, 40901, err.Error())
	default:
		response.InternalError(c)
	}
}
