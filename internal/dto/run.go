package dto

import "timetable-collator/internal/pipeline"

// 运行状态
const (
	RunStatusRunning   = "running"
	RunStatusSucceeded = "succeeded"
	RunStatusFailed    = "failed"
)

// RunResponse 流水线运行状态
type RunResponse struct {
	ID         string           `json:"id"`
	Status     string           `json:"status"`
	State      string           `json:"state"`
	Semester   int              `json:"semester,omitempty"` // 仅在 fetch_semester 步骤有效
	StartedAt  string           `json:"started_at"`
	FinishedAt string           `json:"finished_at,omitempty"`
	Error      string           `json:"error,omitempty"`
	Result     *pipeline.Result `json:"result,omitempty"`
}
