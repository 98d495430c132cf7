// internal/services/asset_service_test.go
package services

import (
	"context"
	"strings"
	"testing"
	"time"

	apperrors "github.com/Corphon/StoryReelMCP/internal/errors"
	"github.com/Corphon/StoryReelMCP/internal/genai"
	"github.com/Corphon/StoryReelMCP/internal/models"
	"github.com/Corphon/StoryReelMCP/internal/retry"
)

// fakeProvider 可编程的生成供应商
type fakeProvider struct {
	imageResult  string
	imageErr     error
	imageCalls   int
	submitErr    error
	pollDocs     []genai.Document
	pollIdx      int
	lastImageReq genai.ImageRequest
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) CompleteText(ctx context.Context, req genai.TextRequest) (string, error) {
	return "", nil
}

func (p *fakeProvider) GenerateImage(ctx context.Context, req genai.ImageRequest) (string, error) {
	p.imageCalls++
	p.lastImageReq = req
	if p.imageErr != nil {
		return "", p.imageErr
	}
	return p.imageResult, nil
}

func (p *fakeProvider) SubmitVideo(ctx context.Context, req genai.VideoRequest) (string, error) {
	if p.submitErr != nil {
		return "", p.submitErr
	}
	return "upstream-42", nil
}

func (p *fakeProvider) PollVideoTask(ctx context.Context, taskID string) (genai.Document, error) {
	i := p.pollIdx
	if i >= len(p.pollDocs) {
		i = len(p.pollDocs) - 1
	}
	p.pollIdx++
	return p.pollDocs[i], nil
}

func newTestAssetService(provider genai.Provider) (*AssetService, *fakeRemote) {
	remote := newFakeRemote()
	resources, _ := newTestResourceService(remote)
	svc := NewAssetService(provider, resources, nil)
	svc.retryOpts = []retry.Option{
		retry.WithSleep(func(ctx context.Context, d time.Duration) error { return nil }),
	}
	svc.pollOpts = genai.PollOptions{
		MaxAttempts: 5,
		Sleep:       func(ctx context.Context, d time.Duration) error { return nil },
	}
	return svc, remote
}

const pngDataURI = "data:image/png;base64,AAAA"

func TestGenerateImageAsset_SavesAndReturnsReference(t *testing.T) {
	provider := &fakeProvider{imageResult: pngDataURI}
	svc, remote := newTestAssetService(provider)

	ref, err := svc.GenerateImageAsset(context.Background(), genai.ImageRequest{Prompt: "一只猫"}, "cat.png")
	if err != nil {
		t.Fatalf("图像生成失败: %v", err)
	}
	if ref != "/api/assets/test-ns/images/cat.png" {
		t.Errorf("资源引用 = %q", ref)
	}
	if remote.saves != 1 {
		t.Errorf("应写存储1次, 实际 %d 次", remote.saves)
	}
}

func TestGenerateImageAsset_RetriesTransient(t *testing.T) {
	provider := &fakeProvider{imageErr: apperrors.NewTransientUpstreamError("限流", 429, nil)}
	svc, _ := newTestAssetService(provider)

	_, err := svc.GenerateImageAsset(context.Background(), genai.ImageRequest{Prompt: "x"}, "")
	if err == nil {
		t.Fatal("持续限流最终应失败")
	}
	if provider.imageCalls < 2 {
		t.Errorf("瞬时错误应重试, 实际调用 %d 次", provider.imageCalls)
	}
}

func TestGenerateImageAsset_NoRetryOnPermanent(t *testing.T) {
	provider := &fakeProvider{imageErr: apperrors.NewPermanentUpstreamError("内容违规", 400, nil)}
	svc, _ := newTestAssetService(provider)

	_, err := svc.GenerateImageAsset(context.Background(), genai.ImageRequest{Prompt: "x"}, "")
	if err == nil {
		t.Fatal("永久错误应失败")
	}
	if provider.imageCalls != 1 {
		t.Errorf("永久错误不应重试, 实际调用 %d 次", provider.imageCalls)
	}
}

func TestGenerateImageAsset_ResolvesReferences(t *testing.T) {
	provider := &fakeProvider{imageResult: pngDataURI}
	svc, remote := newTestAssetService(provider)
	remote.objects["test-ns/images/base.png"] = []byte("base bytes")
	remote.mimes["test-ns/images/base.png"] = "image/png"

	_, err := svc.GenerateImageAsset(context.Background(), genai.ImageRequest{
		Prompt:          "x",
		ReferenceImages: []string{"/api/assets/test-ns/images/base.png"},
	}, "")
	if err != nil {
		t.Fatalf("图像生成失败: %v", err)
	}

	// 传给上游的参考图必须是自包含载荷，不能是路径
	if len(provider.lastImageReq.ReferenceImages) != 1 ||
		!strings.HasPrefix(provider.lastImageReq.ReferenceImages[0], "data:") {
		t.Errorf("参考图应被解析为自包含载荷: %v", provider.lastImageReq.ReferenceImages)
	}
}

func TestGenerateVideoAsset_HappyPath(t *testing.T) {
	provider := &fakeProvider{
		pollDocs: []genai.Document{
			{"data": map[string]interface{}{"status": "processing"}},
			{"data": map[string]interface{}{"status": "succeed", "video_url": "data:video/mp4;base64,AAAA"}},
		},
	}
	svc, _ := newTestAssetService(provider)

	task, err := svc.GenerateVideoAsset(context.Background(), genai.VideoRequest{Prompt: "x"}, "out.mp4")
	if err != nil {
		t.Fatalf("视频生成失败: %v", err)
	}
	if task.Status != models.TaskCompleted {
		t.Errorf("任务状态 = %q", task.Status)
	}
	if task.ResultURL != "/api/assets/test-ns/videos/out.mp4" {
		t.Errorf("结果引用 = %q", task.ResultURL)
	}
}

func TestGenerateVideoAsset_TimeoutStatusIsDistinct(t *testing.T) {
	provider := &fakeProvider{
		pollDocs: []genai.Document{
			{"data": map[string]interface{}{"status": "processing"}},
		},
	}
	svc, _ := newTestAssetService(provider)

	task, err := svc.GenerateVideoAsset(context.Background(), genai.VideoRequest{Prompt: "x"}, "")
	if err == nil {
		t.Fatal("轮询耗尽应失败")
	}
	// 超时与失败是不同的终态
	if task.Status != models.TaskTimeout {
		t.Errorf("任务状态应为timeout, 实际 %q", task.Status)
	}
}

func TestGenerateVideoAsset_UpstreamFailureStatus(t *testing.T) {
	provider := &fakeProvider{
		pollDocs: []genai.Document{
			{"data": map[string]interface{}{"status": "failed", "task_status_msg": "审核未通过"}},
		},
	}
	svc, _ := newTestAssetService(provider)

	task, err := svc.GenerateVideoAsset(context.Background(), genai.VideoRequest{Prompt: "x"}, "")
	if err == nil {
		t.Fatal("上游失败应返回错误")
	}
	if task.Status != models.TaskFailed {
		t.Errorf("任务状态应为failed, 实际 %q", task.Status)
	}
	if task.Error == "" {
		t.Error("任务记录应携带错误描述")
	}
}

func TestGenerateKeyframeImages_PerFrameIsolation(t *testing.T) {
	provider := &fakeProvider{imageResult: pngDataURI}
	svc, _ := newTestAssetService(provider)

	shots := []models.Shot{
		{
			ID:      "shot-1",
			SceneID: "s1",
			Keyframes: []models.Keyframe{
				{ID: "kf-1-start", Type: models.KeyframeStart, VisualPrompt: "a", Status: models.KeyframePending},
				{ID: "kf-1-end", Type: models.KeyframeEnd, VisualPrompt: "b", Status: models.KeyframePending},
			},
		},
	}

	result := svc.GenerateKeyframeImages(context.Background(), "", nil, shots)
	for _, kf := range result[0].Keyframes {
		if kf.Status != models.KeyframeReady {
			t.Errorf("关键帧 %s 状态 = %q", kf.ID, kf.Status)
		}
		if kf.AssetRef == "" {
			t.Errorf("关键帧 %s 缺少资产引用", kf.ID)
		}
	}
}

func TestGenerateKeyframeImages_FailureMarksOnlyThatFrame(t *testing.T) {
	// 第一帧失败后恢复
	calls := 0
	svc, _ := newTestAssetService(providerFunc(func(ctx context.Context, req genai.ImageRequest) (string, error) {
		calls++
		if calls == 1 {
			return "", apperrors.NewPermanentUpstreamError("拒绝", 400, nil)
		}
		return pngDataURI, nil
	}))

	shots := []models.Shot{
		{
			ID:      "shot-1",
			SceneID: "s1",
			Keyframes: []models.Keyframe{
				{ID: "kf-1-start", Type: models.KeyframeStart, Status: models.KeyframePending},
				{ID: "kf-1-end", Type: models.KeyframeEnd, Status: models.KeyframePending},
			},
		},
	}

	result := svc.GenerateKeyframeImages(context.Background(), "", nil, shots)
	if result[0].Keyframes[0].Status != models.KeyframeFailed {
		t.Errorf("首帧应标记为failed, 实际 %q", result[0].Keyframes[0].Status)
	}
	if result[0].Keyframes[1].Status != models.KeyframeReady {
		t.Errorf("尾帧不应受首帧失败影响, 实际 %q", result[0].Keyframes[1].Status)
	}
}

// providerFunc 只实现图像生成的测试适配器
type providerFunc func(ctx context.Context, req genai.ImageRequest) (string, error)

func (f providerFunc) Name() string { return "func" }
func (f providerFunc) CompleteText(ctx context.Context, req genai.TextRequest) (string, error) {
	return "", nil
}
func (f providerFunc) GenerateImage(ctx context.Context, req genai.ImageRequest) (string, error) {
	return f(ctx, req)
}
func (f providerFunc) SubmitVideo(ctx context.Context, req genai.VideoRequest) (string, error) {
	return "", nil
}
func (f providerFunc) PollVideoTask(ctx context.Context, taskID string) (genai.Document, error) {
	return nil, nil
}
