// internal/genai/providers/kling/kling.go
package kling

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
	genai.Register("kling", func(cfg genai.Config) (genai.Provider, error) {
		return New(cfg)
	})
}

type Provider struct {
	cfg    genai.Config
	client *http.Client
}

// New 按配置快照构造提供者
func New(cfg genai.Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("kling API密钥未提供")
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.klingai.com/v1"
	}
	if cfg.ImageModel == "" {
		cfg.ImageModel = "kling-v1-5"
	}
	if cfg.VideoModel == "" {
		cfg.VideoModel = "kling-v1-6"
	}

	return &Provider{
		cfg:    cfg,
		client: &http.Client{Timeout: 120 * time.Second},
	}, nil
}

func (p *Provider) Name() string {
	return "kling"
}

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
		return apperrors.NewPermanentUpstreamError("kling 请求失败", 0, err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return apperrors.NewPermanentUpstreamError("读取kling响应失败", httpResp.StatusCode, err)
	}

	// 限流信号在网络边界处一次性判定
	if httpResp.StatusCode == http.StatusTooManyRequests {
		return apperrors.NewTransientUpstreamError("kling 限流(429)", httpResp.StatusCode, nil)
	}
	if httpResp.StatusCode != http.StatusOK {
		var errorResp struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(respBody, &errorResp) == nil && errorResp.Message != "" {
			return apperrors.NewPermanentUpstreamError(
				fmt.Sprintf("kling API错误(%d): %s", httpResp.StatusCode, errorResp.Message),
				httpResp.StatusCode, nil)
		}
		return apperrors.NewPermanentUpstreamError(
			fmt.Sprintf("kling API错误(%d): %s", httpResp.StatusCode, string(respBody)),
			httpResp.StatusCode, nil)
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return apperrors.NewMalformedResponseError("解析kling响应失败", err)
		}
	}
	return nil
}

// CompleteText kling不提供文本补全能力
func (p *Provider) CompleteText(ctx context.Context, req genai.TextRequest) (string, error) {
	return "", apperrors.NewValidationError("kling不支持文本补全", nil)
}

// GenerateImage 同步图像合成
func (p *Provider) GenerateImage(ctx context.Context, req genai.ImageRequest) (string, error) {
	requestBody := map[string]interface{}{
		"model":  p.cfg.ImageModel,
		"prompt": req.Prompt,
		"n":      1,
	}
	if req.AspectRatio != "" {
		requestBody["aspect_ratio"] = req.AspectRatio
	}
	if len(req.ReferenceImages) > 0 {
		// 第一张为场景参考，其余为角色参考
		requestBody["image"] = req.ReferenceImages[0]
		if len(req.ReferenceImages) > 1 {
			requestBody["face_images"] = req.ReferenceImages[1:]
		}
	}

	var response struct {
		Data struct {
			Images []struct {
				URL string `json:"url"`
			} `json:"images"`
		} `json:"data"`
	}

	if err := p.doJSON(ctx, "POST", p.cfg.BaseURL+"/images/generations", requestBody, &response); err != nil {
		return "", err
	}
	if len(response.Data.Images) == 0 {
		return "", apperrors.NewMalformedResponseError("kling图像接口未返回任何结果", nil)
	}

	// 上游返回的是会过期的远程URL，下载并重编码为自包含载荷
	return genai.EnsureSelfContained(ctx, p.client, response.Data.Images[0].URL)
}

// SubmitVideo 提交图生视频任务（首尾帧插值）
func (p *Provider) SubmitVideo(ctx context.Context, req genai.VideoRequest) (string, error) {
	requestBody := map[string]interface{}{
		"model":  p.cfg.VideoModel,
		"prompt": req.Prompt,
	}
	if req.StartImage != "" {
		requestBody["image"] = req.StartImage
	}
	if req.EndImage != "" {
		requestBody["image_tail"] = req.EndImage
	}
	if req.Duration > 0 {
		requestBody["duration"] = fmt.Sprintf("%d", req.Duration)
	}
	if req.Resolution != "" {
		requestBody["mode"] = req.Resolution
	}
	if req.AspectRatio != "" {
		requestBody["aspect_ratio"] = req.AspectRatio
	}

	var response struct {
		Data struct {
			TaskID string `json:"task_id"`
		} `json:"data"`
	}
	if err := p.doJSON(ctx, "POST", p.cfg.BaseURL+"/videos/image2video", requestBody, &response); err != nil {
		return "", err
	}
	if response.Data.TaskID == "" {
		return "", apperrors.NewMalformedResponseError("kling视频接口未返回任务ID", nil)
	}
	return response.Data.TaskID, nil
}

// PollVideoTask 查询一次视频任务状态
func (p *Provider) PollVideoTask(ctx context.Context, taskID string) (genai.Document, error) {
	var doc genai.Document
	if err := p.doJSON(ctx, "GET", p.cfg.BaseURL+"/videos/image2video/"+taskID, nil, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}
