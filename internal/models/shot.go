// internal/models/shot.go
package models

// KeyframeStatus 关键帧生成状态
type KeyframeStatus string

const (
	KeyframePending    KeyframeStatus = "pending"
	KeyframeGenerating KeyframeStatus = "generating"
	KeyframeReady      KeyframeStatus = "ready"
	KeyframeFailed     KeyframeStatus = "failed"
)

// KeyframeType 关键帧类型：镜头起始帧或结束帧
type KeyframeType string

const (
	KeyframeStart KeyframeType = "start"
	KeyframeEnd   KeyframeType = "end"
)

// Keyframe 单个关键帧，后续由视频生成插值成运动画面
// ID由(镜头序号, 类型)确定性派生，绝不信任上游返回的ID
type Keyframe struct {
	ID           string         `json:"id"`
	Type         KeyframeType   `json:"type"`
	VisualPrompt string         `json:"visual_prompt"`
	Status       KeyframeStatus `json:"status"`
	AssetRef     string         `json:"asset_ref,omitempty"` // 生成成功后指向存储的资源引用
}

// Shot 一个镜头：场景内的最小拍摄规划单元
// SceneID永远等于产生它的场景ID，与上游响应声称的值无关
type Shot struct {
	ID             string     `json:"id"`
	SceneID        string     `json:"scene_id"`
	ActionSummary  string     `json:"action_summary"`
	Dialogue       string     `json:"dialogue,omitempty"`
	CameraMovement string     `json:"camera_movement,omitempty"`
	ShotSize       string     `json:"shot_size,omitempty"`
	Characters     []string   `json:"characters,omitempty"` // 角色ID引用
	Keyframes      []Keyframe `json:"keyframes"`            // 有序：start, end
}

// ShotRunReport 一次镜头流水线运行的统计
type ShotRunReport struct {
	TotalScenes  int `json:"total_scenes"`
	SceneSucceed int `json:"scene_succeed"`
	SceneFailed  int `json:"scene_failed"`
	TotalShots   int `json:"total_shots"`
}
