// internal/services/asset_service.go
package services

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/Corphon/StoryReelMCP/internal/errors"
	"github.com/Corphon/StoryReelMCP/internal/genai"
	"github.com/Corphon/StoryReelMCP/internal/models"
	"github.com/Corphon/StoryReelMCP/internal/retry"
	"github.com/Corphon/StoryReelMCP/internal/utils"
)

// AssetService 图像与视频生成的编排层
// 串联重试、异步轮询、载荷自包含化与持久存储
type AssetService struct {
	provider  genai.Provider
	resources *ResourceService
	progress  *ProgressService
	http      *http.Client
	retryOpts []retry.Option
	pollOpts  genai.PollOptions
}

// NewAssetService 创建资产生成编排服务
func NewAssetService(provider genai.Provider, resources *ResourceService, progress *ProgressService) *AssetService {
	return &AssetService{
		provider:  provider,
		resources: resources,
		progress:  progress,
		http:      &http.Client{Timeout: 120 * time.Second},
	}
}

// SetProvider 替换生成供应商，配置热更新时由配置服务调用
// 进行中的请求继续使用旧实例
func (s *AssetService) SetProvider(provider genai.Provider) {
	s.provider = provider
}

// GenerateImageAsset 生成单张图像并持久化，返回检索路径
func (s *AssetService) GenerateImageAsset(ctx context.Context, req genai.ImageRequest, filename string) (string, error) {
	if s.provider == nil {
		return "", apperrors.NewValidationError("未配置生成供应商", nil)
	}

	// 参考图必须是自包含载荷，不能把外部URL透传给上游
	for i, ref := range req.ReferenceImages {
		resolved, err := s.resources.Resolve(ctx, ref, CategoryImages)
		if err != nil {
			return "", fmt.Errorf("解析参考图失败: %w", err)
		}
		req.ReferenceImages[i] = resolved
	}

	image, err := retry.Do(ctx, func(ctx context.Context) (string, error) {
		return s.provider.GenerateImage(ctx, req)
	}, s.retryOpts...)
	if err != nil {
		return "", err
	}

	if filename == "" {
		filename = fmt.Sprintf("img-%s.png", uuid.New().String())
	}
	return s.resources.Save(ctx, CategoryImages, filename, image, "")
}

// GenerateVideoAsset 提交视频任务、轮询至终态并持久化结果
// 返回任务记录，含终态与检索路径
func (s *AssetService) GenerateVideoAsset(ctx context.Context, req genai.VideoRequest, filename string) (*models.GenerationTask, error) {
	task := &models.GenerationTask{
		TaskID:    uuid.New().String(),
		Status:    models.TaskPending,
		CreatedAt: time.Now(),
	}
	if s.provider == nil {
		task.Status = models.TaskFailed
		task.Error = "未配置生成供应商"
		return task, apperrors.NewValidationError(task.Error, nil)
	}

	// 首尾帧同样先解析为自包含载荷
	var err error
	if req.StartImage != "" {
		if req.StartImage, err = s.resources.Resolve(ctx, req.StartImage, CategoryImages); err != nil {
			task.Status = models.TaskFailed
			task.Error = err.Error()
			return task, fmt.Errorf("解析首帧失败: %w", err)
		}
	}
	if req.EndImage != "" {
		if req.EndImage, err = s.resources.Resolve(ctx, req.EndImage, CategoryImages); err != nil {
			task.Status = models.TaskFailed
			task.Error = err.Error()
			return task, fmt.Errorf("解析尾帧失败: %w", err)
		}
	}

	upstreamID, err := retry.Do(ctx, func(ctx context.Context) (string, error) {
		return s.provider.SubmitVideo(ctx, req)
	}, s.retryOpts...)
	if err != nil {
		task.Status = models.TaskFailed
		task.Error = err.Error()
		return task, err
	}

	task.Status = models.TaskProcessing
	utils.GetLogger().Info("视频任务已提交", map[string]interface{}{
		"task_id":     task.TaskID,
		"upstream_id": upstreamID,
	})

	resultURL, err := genai.AwaitVideoTask(ctx, s.provider, upstreamID, s.pollOpts)
	if err != nil {
		if apperrors.IsTimeout(err) {
			task.Status = models.TaskTimeout
		} else {
			task.Status = models.TaskFailed
		}
		task.Error = err.Error()
		return task, err
	}

	payload, err := genai.EnsureSelfContained(ctx, s.http, resultURL)
	if err != nil {
		task.Status = models.TaskFailed
		task.Error = err.Error()
		return task, fmt.Errorf("下载视频结果失败: %w", err)
	}

	if filename == "" {
		filename = fmt.Sprintf("vid-%s.mp4", task.TaskID)
	}
	ref, err := s.resources.Save(ctx, CategoryVideos, filename, payload, "")
	if err != nil {
		task.Status = models.TaskFailed
		task.Error = err.Error()
		return task, err
	}

	task.Status = models.TaskCompleted
	task.ResultURL = ref
	return task, nil
}

// GenerateKeyframeImages 为分镜列表逐帧生成关键帧图像
// 单帧失败只标记该帧，不影响其余关键帧
func (s *AssetService) GenerateKeyframeImages(ctx context.Context, taskID string, script *models.ScriptData, shots []models.Shot) []models.Shot {
	logger := utils.GetLogger()
	total := 0
	for _, shot := range shots {
		total += len(shot.Keyframes)
	}

	done := 0
	for si := range shots {
		for ki := range shots[si].Keyframes {
			kf := &shots[si].Keyframes[ki]
			done++
			if err := ctx.Err(); err != nil {
				kf.Status = models.KeyframeFailed
				continue
			}

			kf.Status = models.KeyframeGenerating
			s.updateKeyframeProgress(taskID, done, total, kf.ID)

			ref, err := s.GenerateImageAsset(ctx, genai.ImageRequest{
				Prompt:          kf.VisualPrompt,
				ReferenceImages: s.characterRefs(script, shots[si].Characters),
			}, fmt.Sprintf("%s.png", kf.ID))
			if err != nil {
				logger.Warn("关键帧生成失败", map[string]interface{}{
					"keyframe_id": kf.ID,
					"error":       err.Error(),
				})
				kf.Status = models.KeyframeFailed
				continue
			}

			kf.Status = models.KeyframeReady
			kf.AssetRef = ref
		}
	}
	return shots
}

// characterRefs 收集出镜角色的形象参考图
func (s *AssetService) characterRefs(script *models.ScriptData, characterIDs []string) []string {
	if script == nil {
		return nil
	}
	var refs []string
	for _, id := range characterIDs {
		c := script.FindCharacter(id)
		if c == nil {
			continue
		}
		if len(c.Variations) > 0 {
			refs = append(refs, c.Variations[len(c.Variations)-1])
		}
	}
	return refs
}

func (s *AssetService) updateKeyframeProgress(taskID string, done, total int, keyframeID string) {
	if s.progress == nil || taskID == "" {
		return
	}
	tracker, ok := s.progress.GetTracker(taskID)
	if !ok {
		return
	}
	percent := 0
	if total > 0 {
		percent = done * 100 / total
	}
	tracker.UpdateProgress(percent, fmt.Sprintf("正在生成关键帧 %s (%d/%d)", keyframeID, done, total))
}
