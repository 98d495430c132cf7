// internal/genai/document.go
package genai

import "strings"

// Document 上游响应的通用文档视图
// 视频任务的状态字段和结果URL在不同上游（甚至同一上游的不同版本）之间位置不固定，
// 用有序提取器链对文档做降级查找，首个非空命中生效
type Document map[string]interface{}

// Lookup 按路径逐层取值，任何一层缺失返回nil
func (d Document) Lookup(path ...string) interface{} {
	var current interface{} = map[string]interface{}(d)
	for _, key := range path {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil
		}
		current = m[key]
		if current == nil {
			return nil
		}
	}
	return current
}

// LookupString 按路径取字符串值，非字符串或缺失返回空串
func (d Document) LookupString(path ...string) string {
	v := d.Lookup(path...)
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

// Extractor 从响应文档中提取一个字符串字段
type Extractor func(Document) string

// stringAt 构造按固定路径取值的提取器
func stringAt(path ...string) Extractor {
	return func(doc Document) string {
		return doc.LookupString(path...)
	}
}

// firstVideoURLAt 取 path 指向的数组中第一个元素的url字段
func firstVideoURLAt(path ...string) Extractor {
	return func(doc Document) string {
		v := doc.Lookup(path...)
		list, ok := v.([]interface{})
		if !ok || len(list) == 0 {
			return ""
		}
		first, ok := list[0].(map[string]interface{})
		if !ok {
			return ""
		}
		s, _ := first["url"].(string)
		return strings.TrimSpace(s)
	}
}

// resultURLExtractors 结果URL的优先提取顺序，覆盖已知的上游响应形态
var resultURLExtractors = []Extractor{
	stringAt("data", "video_url"),
	stringAt("data", "url"),
	stringAt("video_url"),
	stringAt("result", "video_url"),
	stringAt("output", "video_url"),
	stringAt("output", "url"),
	firstVideoURLAt("data", "task_result", "videos"),
	firstVideoURLAt("data", "videos"),
	firstVideoURLAt("videos"),
	stringAt("url"),
}

// statusExtractors 任务状态字段的优先提取顺序
var statusExtractors = []Extractor{
	stringAt("data", "status"),
	stringAt("status"),
	stringAt("task_status"),
	stringAt("data", "task_status"),
	stringAt("state"),
}

// errorExtractors 上游错误描述字段的优先提取顺序
var errorExtractors = []Extractor{
	stringAt("data", "error"),
	stringAt("data", "task_status_msg"),
	stringAt("error", "message"),
	stringAt("error"),
	stringAt("message"),
	stringAt("fail_reason"),
}

// extractFirst 依次运行提取器，返回首个非空结果
func extractFirst(doc Document, extractors []Extractor) string {
	for _, extract := range extractors {
		if v := extract(doc); v != "" {
			return v
		}
	}
	return ""
}

// ExtractResultURL 从轮询响应中提取结果URL，找不到返回空串
func ExtractResultURL(doc Document) string {
	return extractFirst(doc, resultURLExtractors)
}

// ExtractStatus 从轮询响应中提取任务状态token，找不到返回空串
func ExtractStatus(doc Document) string {
	return extractFirst(doc, statusExtractors)
}

// ExtractError 从轮询响应中提取上游错误描述
func ExtractError(doc Document) string {
	return extractFirst(doc, errorExtractors)
}

// TaskState 轮询状态的归一化分类
type TaskState int

const (
	StateRunning TaskState = iota
	StateDone
	StateFailed
)

// 各上游对同一语义使用不同token，统一归类；
// 未识别的token（含缺失）一律按仍在运行处理
var (
	doneTokens   = map[string]bool{"completed": true, "success": true, "succeeded": true, "succeed": true}
	failedTokens = map[string]bool{"failed": true, "error": true}
)

// ClassifyStatus 把上游状态token归一化为任务状态
func ClassifyStatus(status string) TaskState {
	s := strings.ToLower(strings.TrimSpace(status))
	switch {
	case doneTokens[s]:
		return StateDone
	case failedTokens[s]:
		return StateFailed
	default:
		return StateRunning
	}
}
