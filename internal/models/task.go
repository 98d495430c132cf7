// internal/models/task.go
package models

import "time"

// TaskStatus 异步视频生成任务状态
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskProcessing TaskStatus = "processing"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
	TaskTimeout    TaskStatus = "timeout"
)

// GenerationTask 一次异步视频生成任务（提交+轮询协议）
type GenerationTask struct {
	TaskID    string     `json:"task_id"`
	Status    TaskStatus `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	ResultURL string     `json:"result_url,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// StoredResource 存储层列表接口返回的资源视图
type StoredResource struct {
	Filename string `json:"filename"`
	URL      string `json:"url"`
}
