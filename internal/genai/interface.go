// internal/genai/interface.go
package genai

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// 错误定义
var ErrUnknownProvider = errors.New("未知的生成服务提供者")

// Config 生成客户端配置快照
// 构造Provider时一次性传入，之后不可变；更新配置会构造新的Provider实例，
// 避免配置变更与在途请求之间的隐式时序耦合
type Config struct {
	APIKey     string `json:"api_key"`
	BaseURL    string `json:"base_url,omitempty"`
	TextModel  string `json:"text_model,omitempty"`
	ImageModel string `json:"image_model,omitempty"`
	VideoModel string `json:"video_model,omitempty"`
}

// TextRequest 同步文本补全请求
type TextRequest struct {
	Prompt         string  `json:"prompt"`
	SystemPrompt   string  `json:"system_prompt,omitempty"`
	MaxTokens      int     `json:"max_tokens,omitempty"`
	Temperature    float32 `json:"temperature,omitempty"`
	ResponseFormat string  `json:"response_format,omitempty"` // "json" 提示上游输出JSON
}

// ImageRequest 同步图像合成请求
// ReferenceImages有序：第一张为场景/环境参考，其余为角色参考
type ImageRequest struct {
	Prompt          string   `json:"prompt"`
	ReferenceImages []string `json:"reference_images,omitempty"`
	AspectRatio     string   `json:"aspect_ratio,omitempty"`
}

// VideoRequest 异步视频合成提交请求
type VideoRequest struct {
	Prompt      string `json:"prompt"`
	StartImage  string `json:"start_image,omitempty"`
	EndImage    string `json:"end_image,omitempty"`
	Duration    int    `json:"duration,omitempty"` // 秒
	Resolution  string `json:"resolution,omitempty"`
	AspectRatio string `json:"aspect_ratio,omitempty"`
}

// Provider 定义所有生成服务提供者必须实现的接口
// 三种上游能力：同步文本补全、同步图像合成、异步视频合成（提交+轮询）
type Provider interface {
	// 获取提供者名称
	Name() string

	// 文本补全，返回原始文本（调用方负责防御性解包）
	CompleteText(ctx context.Context, req TextRequest) (string, error)

	// 图像合成，返回自包含的data URI载荷
	// 上游返回远程URL时必须下载并重编码，系统绝不持久化裸URL
	GenerateImage(ctx context.Context, req ImageRequest) (string, error)

	// 视频合成提交，返回任务ID
	SubmitVideo(ctx context.Context, req VideoRequest) (string, error)

	// 查询一次视频任务状态，返回通用响应文档（上游schema不稳定，由提取器链解读）
	PollVideoTask(ctx context.Context, taskID string) (Document, error)
}

// Factory 提供者工厂函数
type Factory func(cfg Config) (Provider, error)

var (
	registryMutex sync.RWMutex
	registry      = make(map[string]Factory)
)

// Register 注册提供者工厂，由各provider包的init调用
func Register(name string, factory Factory) {
	registryMutex.Lock()
	defer registryMutex.Unlock()
	registry[name] = factory
}

// New 按名称构造提供者实例
func New(name string, cfg Config) (Provider, error) {
	registryMutex.RLock()
	factory, exists := registry[name]
	registryMutex.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	return factory(cfg)
}

// Names 返回所有已注册的提供者名称
func Names() []string {
	registryMutex.RLock()
	defer registryMutex.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}
