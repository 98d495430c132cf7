// internal/services/remote_store.go
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/Corphon/StoryReelMCP/internal/errors"
	"github.com/Corphon/StoryReelMCP/internal/storage"
)

// LocalRemoteStore 进程内直连持久存储的访问层
// 单机部署时存储与服务同进程，不需要真的走网络
type LocalRemoteStore struct {
	store *storage.BlobStore
}

// NewLocalRemoteStore 创建进程内访问层
func NewLocalRemoteStore(store *storage.BlobStore) *LocalRemoteStore {
	return &LocalRemoteStore{store: store}
}

func (l *LocalRemoteStore) Fetch(ctx context.Context, namespace, category, filename string) ([]byte, string, error) {
	return l.store.Get(namespace, category, filename)
}

func (l *LocalRemoteStore) Save(ctx context.Context, namespace, category, filename, payload, mimeType string) (string, error) {
	return l.store.Save(namespace, category, filename, payload, mimeType)
}

// HTTPRemoteStore 通过HTTP访问远端持久存储的访问层
type HTTPRemoteStore struct {
	BaseURL string
	client  *http.Client
}

// NewHTTPRemoteStore 创建HTTP访问层
func NewHTTPRemoteStore(baseURL string) *HTTPRemoteStore {
	return &HTTPRemoteStore{
		BaseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

// Fetch 拉取制品字节流
func (h *HTTPRemoteStore) Fetch(ctx context.Context, namespace, category, filename string) ([]byte, string, error) {
	url := h.BaseURL + storage.CanonicalPath(namespace, category, filename)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("请求远程存储失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, "", apperrors.NewNotFoundError(
			fmt.Sprintf("远程存储中不存在: %s/%s/%s", namespace, category, filename), nil)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("远程存储返回错误(%d)", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, storage.MaxArtifactBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("读取远程存储响应失败: %w", err)
	}
	if len(data) > storage.MaxArtifactBytes {
		return nil, "", apperrors.NewValidationError("远程制品超出单件100MB上限", nil)
	}

	mimeType := resp.Header.Get("Content-Type")
	if idx := strings.Index(mimeType, ";"); idx != -1 {
		mimeType = strings.TrimSpace(mimeType[:idx])
	}
	if mimeType == "" {
		mimeType = storage.MimeTypeForFilename(filename)
	}

	return data, mimeType, nil
}

// Save 上传制品
func (h *HTTPRemoteStore) Save(ctx context.Context, namespace, category, filename, payload, mimeType string) (string, error) {
	body, err := json.Marshal(map[string]string{
		"namespace": namespace,
		"category":  category,
		"filename":  filename,
		"data":      payload,
		"mime_type": mimeType,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.BaseURL+"/api/assets", bytes.NewBuffer(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("上传到远程存储失败: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("读取远程存储响应失败: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("远程存储保存失败(%d): %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Data struct {
			URL string `json:"url"`
		} `json:"data"`
		URL string `json:"url"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("解析远程存储响应失败: %w", err)
	}
	if result.Data.URL != "" {
		return result.Data.URL, nil
	}
	if result.URL == "" {
		return "", fmt.Errorf("远程存储未返回检索路径")
	}
	return result.URL, nil
}
