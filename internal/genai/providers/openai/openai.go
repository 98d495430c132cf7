// internal/genai/providers/openai/openai.go
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	apperrors "github.com/Corphon/StoryReelMCP/internal/errors"
	"github.com/Corphon/StoryReelMCP/internal/genai"
)

func init() {
	genai.Register("openai", func(cfg genai.Config) (genai.Provider, error) {
		return New(cfg)
	})
}

type Provider struct {
	cfg    genai.Config
	client *http.Client
}

// New 按配置快照构造提供者，配置此后不可变
func New(cfg genai.Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai API密钥未提供")
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.TextModel == "" {
		cfg.TextModel = "gpt-4o"
	}
	if cfg.ImageModel == "" {
		cfg.ImageModel = "gpt-image-1"
	}
	if cfg.VideoModel == "" {
		cfg.VideoModel = "sora-2"
	}

	return &Provider{
		cfg:    cfg,
		client: &http.Client{Timeout: 120 * time.Second},
	}, nil
}

func (p *Provider) Name() string {
	return "openai"
}

// doJSON 发送JSON请求并解析响应体
// 限流与否在这里一次性判定为类型化错误，重试逻辑不需要解析错误文本
func (p *Provider) doJSON(ctx context.Context, method, url string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewBuffer(jsonData)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return apperrors.NewPermanentUpstreamError("openai 请求失败", 0, err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return apperrors.NewPermanentUpstreamError("读取openai响应失败", httpResp.StatusCode, err)
	}

	if httpResp.StatusCode == http.StatusTooManyRequests {
		return apperrors.NewTransientUpstreamError("openai 限流(429)", httpResp.StatusCode, nil)
	}
	if httpResp.StatusCode != http.StatusOK {
		var errorResp struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(respBody, &errorResp) == nil && errorResp.Error.Message != "" {
			return apperrors.NewPermanentUpstreamError(
				fmt.Sprintf("openai API错误(%d): %s", httpResp.StatusCode, errorResp.Error.Message),
				httpResp.StatusCode, nil)
		}
		return apperrors.NewPermanentUpstreamError(
			fmt.Sprintf("openai API错误(%d): %s", httpResp.StatusCode, string(respBody)),
			httpResp.StatusCode, nil)
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return apperrors.NewMalformedResponseError("解析openai响应失败", err)
		}
	}
	return nil
}

// CompleteText 同步文本补全
func (p *Provider) CompleteText(ctx context.Context, req genai.TextRequest) (string, error) {
	messages := []map[string]string{}
	if req.SystemPrompt != "" {
		messages = append(messages, map[string]string{"role": "system", "content": req.SystemPrompt})
	}
	messages = append(messages, map[string]string{"role": "user", "content": req.Prompt})

	requestBody := map[string]interface{}{
		"model":    p.cfg.TextModel,
		"messages": messages,
	}
	if req.Temperature > 0 {
		requestBody["temperature"] = req.Temperature
	}
	if req.MaxTokens > 0 {
		requestBody["max_tokens"] = req.MaxTokens
	}
	if req.ResponseFormat == "json" || req.ResponseFormat == "json_object" {
		requestBody["response_format"] = map[string]string{"type": "json_object"}
	}

	var response struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}

	if err := p.doJSON(ctx, "POST", p.cfg.BaseURL+"/chat/completions", requestBody, &response); err != nil {
		return "", err
	}
	if len(response.Choices) == 0 {
		return "", apperrors.NewMalformedResponseError("openai未返回任何结果", nil)
	}
	return response.Choices[0].Message.Content, nil
}

// GenerateImage 同步图像合成，返回自包含data URI
// 参考图有序：第一张为场景参考，其余为角色参考，拼入提示词上下文
func (p *Provider) GenerateImage(ctx context.Context, req genai.ImageRequest) (string, error) {
	requestBody := map[string]interface{}{
		"model":           p.cfg.ImageModel,
		"prompt":          req.Prompt,
		"n":               1,
		"response_format": "b64_json",
	}
	if req.AspectRatio == "16:9" {
		requestBody["size"] = "1792x1024"
	} else if req.AspectRatio == "9:16" {
		requestBody["size"] = "1024x1792"
	}
	// 上游的generations端点不接受参考图时，作为图生图提示的退化处理
	if len(req.ReferenceImages) > 0 {
		requestBody["image"] = req.ReferenceImages
	}

	var response struct {
		Data []struct {
			B64JSON string `json:"b64_json"`
			URL     string `json:"url"`
		} `json:"data"`
	}

	if err := p.doJSON(ctx, "POST", p.cfg.BaseURL+"/images/generations", requestBody, &response); err != nil {
		return "", err
	}
	if len(response.Data) == 0 {
		return "", apperrors.NewMalformedResponseError("openai图像接口未返回任何结果", nil)
	}

	if response.Data[0].B64JSON != "" {
		return "data:image/png;base64," + response.Data[0].B64JSON, nil
	}
	// 上游只给了URL：下载并重编码，绝不外泄会过期的裸URL
	return genai.EnsureSelfContained(ctx, p.client, response.Data[0].URL)
}

// SubmitVideo 提交异步视频合成任务
func (p *Provider) SubmitVideo(ctx context.Context, req genai.VideoRequest) (string, error) {
	requestBody := map[string]interface{}{
		"model":  p.cfg.VideoModel,
		"prompt": req.Prompt,
	}
	if req.StartImage != "" {
		requestBody["input_reference"] = req.StartImage
	}
	if req.Duration > 0 {
		requestBody["seconds"] = req.Duration
	}
	if req.Resolution != "" {
		requestBody["size"] = req.Resolution
	}

	var response struct {
		ID string `json:"id"`
	}
	if err := p.doJSON(ctx, "POST", p.cfg.BaseURL+"/videos", requestBody, &response); err != nil {
		return "", err
	}
	if response.ID == "" {
		return "", apperrors.NewMalformedResponseError("openai视频接口未返回任务ID", nil)
	}
	return response.ID, nil
}

// PollVideoTask 查询一次视频任务状态
func (p *Provider) PollVideoTask(ctx context.Context, taskID string) (genai.Document, error) {
	var doc genai.Document
	if err := p.doJSON(ctx, "GET", p.cfg.BaseURL+"/videos/"+taskID, nil, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}
