// internal/api/handlers_test.go
package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/Corphon/StoryReelMCP/internal/services"
)

func newVideoTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)

	h := &Handler{
		// 未配置生成供应商的服务实例
		AssetService: services.NewAssetService(nil, nil, nil),
		Response:     NewResponseHelper(),
	}

	router := gin.New()
	router.POST("/api/generate/video", h.GenerateVideo)
	return router
}

func TestGenerateVideo_NoProviderIsBadRequest(t *testing.T) {
	router := newVideoTestRouter()

	// 供应商未配置是请求方可修复的问题，不是网关故障
	req := httptest.NewRequest("POST", "/api/generate/video", strings.NewReader(`{"prompt":"海边日落"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("未配置供应商应返回400, 实际 %d, body: %s", w.Code, w.Body.String())
	}

	var resp APIResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("解析响应失败: %v", err)
	}
	if resp.Success {
		t.Error("失败响应的success应为false")
	}
	if resp.Error == nil || resp.Error.Code != "BAD_REQUEST" {
		t.Errorf("错误码应为BAD_REQUEST, 实际 %+v", resp.Error)
	}
}

func TestGenerateVideo_MissingPromptRejected(t *testing.T) {
	router := newVideoTestRouter()

	req := httptest.NewRequest("POST", "/api/generate/video", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("缺少prompt应返回400, 实际 %d", w.Code)
	}
}
