package handler

import "timetable-collator/internal/service"

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Run *RunHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(runSvc service.RunService) *Handler {
	return &Handler{
		Run: NewRunHandler(runSvc),
	}
}
