// internal/genai/payload.go
package genai

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	apperrors "github.com/Corphon/StoryReelMCP/internal/errors"
	"github.com/Corphon/StoryReelMCP/internal/utils"
)

// 单个下载资源的大小上限，与存储层的制品上限一致
const maxDownloadBytes = 100 << 20

// EnsureSelfContained 保证资源引用是自包含载荷
// 上游返回的远程URL可能过期，持久化之前必须下载并重编码为data URI；
// 已经是data URI的引用原样返回
func EnsureSelfContained(ctx context.Context, client *http.Client, ref string) (string, error) {
	if utils.IsDataURI(ref) {
		return ref, nil
	}

	if !strings.HasPrefix(ref, "http://") && !strings.HasPrefix(ref, "https://") {
		return "", apperrors.NewMalformedResponseError(
			fmt.Sprintf("无法识别的资源引用形式: %.64s", ref), nil)
	}

	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return "", err
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", apperrors.NewPermanentUpstreamError("下载上游资源失败", 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", apperrors.NewTransientUpstreamError("下载上游资源被限流", resp.StatusCode, nil)
	}
	if resp.StatusCode != http.StatusOK {
		return "", apperrors.NewPermanentUpstreamError(
			fmt.Sprintf("下载上游资源失败(%d)", resp.StatusCode), resp.StatusCode, nil)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes+1))
	if err != nil {
		return "", apperrors.NewPermanentUpstreamError("读取上游资源失败", 0, err)
	}
	if len(data) > maxDownloadBytes {
		return "", apperrors.NewValidationError("上游资源超出单件100MB上限", nil)
	}

	mimeType := resp.Header.Get("Content-Type")
	if idx := strings.Index(mimeType, ";"); idx != -1 {
		mimeType = strings.TrimSpace(mimeType[:idx])
	}
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}

	return utils.EncodeDataURI(mimeType, data), nil
}
