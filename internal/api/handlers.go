// internal/api/handlers.go
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperrors "github.com/Corphon/StoryReelMCP/internal/errors"
	"github.com/Corphon/StoryReelMCP/internal/genai"
	"github.com/Corphon/StoryReelMCP/internal/models"
	"github.com/Corphon/StoryReelMCP/internal/services"
	"github.com/Corphon/StoryReelMCP/internal/storage"
	"github.com/Corphon/StoryReelMCP/internal/utils"
)

// Handler 处理API请求
type Handler struct {
	ShotService     *services.ShotService     // 分镜拆解服务
	AssetService    *services.AssetService    // 资产生成编排服务
	ResourceService *services.ResourceService // 分层资源缓存
	ConfigService   *services.ConfigService   // 配置服务
	ProgressService *services.ProgressService // 进度跟踪服务
	BlobStore       *storage.BlobStore        // 持久制品存储
	Response        *ResponseHelper           // 响应助手
}

// NewHandler 创建API处理器
func NewHandler(
	shotService *services.ShotService,
	assetService *services.AssetService,
	resourceService *services.ResourceService,
	configService *services.ConfigService,
	progressService *services.ProgressService,
	blobStore *storage.BlobStore,
) *Handler {
	return &Handler{
		ShotService:     shotService,
		AssetService:    assetService,
		ResourceService: resourceService,
		ConfigService:   configService,
		ProgressService: progressService,
		BlobStore:       blobStore,
		Response:        NewResponseHelper(),
	}
}

// GetStatus 服务状态
func (h *Handler) GetStatus(c *gin.Context) {
	h.Response.Success(c, gin.H{
		"status":    "ok",
		"namespace": h.ResourceService.Namespace(),
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// GetSettings 返回当前生成配置（脱敏）
func (h *Handler) GetSettings(c *gin.Context) {
	h.Response.Success(c, h.ConfigService.CurrentSettings())
}

// UpdateSettingsRequest 更新生成配置的请求结构
type UpdateSettingsRequest struct {
	Provider   string `json:"provider" binding:"required"`
	APIKey     string `json:"api_key" binding:"required"`
	BaseURL    string `json:"base_url"`
	TextModel  string `json:"text_model"`
	ImageModel string `json:"image_model"`
	VideoModel string `json:"video_model"`
}

// UpdateSettings 更新生成配置并热切换供应商
func (h *Handler) UpdateSettings(c *gin.Context) {
	var req UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "无效的请求格式", err.Error())
		return
	}

	err := h.ConfigService.UpdateSettings(req.Provider, genai.Config{
		APIKey:     req.APIKey,
		BaseURL:    req.BaseURL,
		TextModel:  req.TextModel,
		ImageModel: req.ImageModel,
		VideoModel: req.VideoModel,
	})
	if err != nil {
		h.Response.BadRequest(c, "更新配置失败", err.Error())
		return
	}

	h.Response.Success(c, h.ConfigService.CurrentSettings(), "配置已更新")
}

// GenerateShotsRequest 分镜拆解请求结构
type GenerateShotsRequest struct {
	Script            *models.ScriptData `json:"script" binding:"required"`
	GenerateKeyframes bool               `json:"generate_keyframes"`
}

// GenerateShots 异步拆解分镜，立即返回任务ID
func (h *Handler) GenerateShots(c *gin.Context) {
	var req GenerateShotsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "无效的请求格式", err.Error())
		return
	}
	if req.Script == nil || len(req.Script.Scenes) == 0 {
		h.Response.BadRequest(c, "剧本中没有可拆解的场景")
		return
	}

	taskID := uuid.New().String()
	tracker := h.ProgressService.CreateTracker(taskID)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				utils.GetLogger().Error("分镜任务异常退出", map[string]interface{}{
					"task_id": taskID,
					"panic":   r,
				})
				tracker.Fail("内部错误")
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()

		shots, report, err := h.ShotService.GenerateShots(ctx, taskID, req.Script)
		if err != nil {
			tracker.Fail(err.Error())
			return
		}

		if req.GenerateKeyframes {
			shots = h.AssetService.GenerateKeyframeImages(ctx, taskID, req.Script, shots)
		}

		tracker.Complete("分镜拆解完成", gin.H{
			"shots":  shots,
			"report": report,
		})
	}()

	h.Response.Accepted(c, gin.H{"task_id": taskID}, "分镜任务已提交")
}

// GetShotTask 查询分镜任务进度与结果
func (h *Handler) GetShotTask(c *gin.Context) {
	taskID := c.Param("task_id")
	tracker, ok := h.ProgressService.GetTracker(taskID)
	if !ok {
		h.Response.NotFound(c, "任务")
		return
	}

	update, result := tracker.Snapshot()
	h.Response.Success(c, gin.H{
		"task_id":  taskID,
		"status":   update.Status,
		"progress": update.Progress,
		"message":  update.Message,
		"result":   result,
	})
}

// GenerateImageRequest 图像生成请求结构
type GenerateImageRequest struct {
	Prompt          string   `json:"prompt" binding:"required"`
	ReferenceImages []string `json:"reference_images"`
	AspectRatio     string   `json:"aspect_ratio"`
	Filename        string   `json:"filename"`
}

// GenerateImage 同步生成单张图像
func (h *Handler) GenerateImage(c *gin.Context) {
	var req GenerateImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "无效的请求格式", err.Error())
		return
	}

	ref, err := h.AssetService.GenerateImageAsset(c.Request.Context(), genai.ImageRequest{
		Prompt:          req.Prompt,
		ReferenceImages: req.ReferenceImages,
		AspectRatio:     req.AspectRatio,
	}, req.Filename)
	if err != nil {
		h.Response.AppError(c, err)
		return
	}

	h.Response.Success(c, gin.H{"url": ref}, "图像生成完成")
}

// GenerateVideoRequest 视频生成请求结构
type GenerateVideoRequest struct {
	Prompt      string `json:"prompt" binding:"required"`
	StartImage  string `json:"start_image"`
	EndImage    string `json:"end_image"`
	Duration    int    `json:"duration"`
	Resolution  string `json:"resolution"`
	AspectRatio string `json:"aspect_ratio"`
	Filename    string `json:"filename"`
}

// GenerateVideo 生成视频片段，阻塞至终态
func (h *Handler) GenerateVideo(c *gin.Context) {
	var req GenerateVideoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "无效的请求格式", err.Error())
		return
	}

	task, err := h.AssetService.GenerateVideoAsset(c.Request.Context(), genai.VideoRequest{
		Prompt:      req.Prompt,
		StartImage:  req.StartImage,
		EndImage:    req.EndImage,
		Duration:    req.Duration,
		Resolution:  req.Resolution,
		AspectRatio: req.AspectRatio,
	}, req.Filename)
	if err != nil {
		// 请求本身的问题（未配置供应商、引用不存在等）按错误类型映射，不算网关故障
		if apperrors.IsValidationError(err) || apperrors.IsNotFoundError(err) {
			h.Response.AppError(c, err)
			return
		}

		// 上游终态时任务记录一并返回，便于客户端区分超时与失败
		c.JSON(httpStatusForTask(task), &APIResponse{
			Success: false,
			Data:    task,
			Error: &APIError{
				Code:    string(task.Status),
				Message: sanitizeErrorMessage(err.Error()),
			},
			Timestamp: time.Now(),
		})
		return
	}

	h.Response.Success(c, task, "视频生成完成")
}

func httpStatusForTask(task *models.GenerationTask) int {
	if task != nil && task.Status == models.TaskTimeout {
		return http.StatusGatewayTimeout
	}
	return http.StatusBadGateway
}

// CharacterVariationRequest 角色形象变体请求结构
type CharacterVariationRequest struct {
	Character *models.Character `json:"character" binding:"required"`
	Prompt    string            `json:"prompt" binding:"required"`
	BaseImage string            `json:"base_image"`
}

// GenerateCharacterVariation 为角色生成新的形象变体
// 变体只追加，已有形象不会被覆盖
func (h *Handler) GenerateCharacterVariation(c *gin.Context) {
	var req CharacterVariationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "无效的请求格式", err.Error())
		return
	}

	var refs []string
	if req.BaseImage != "" {
		refs = append(refs, req.BaseImage)
	} else if len(req.Character.Variations) > 0 {
		refs = append(refs, req.Character.Variations[len(req.Character.Variations)-1])
	}

	ref, err := h.AssetService.GenerateImageAsset(c.Request.Context(), genai.ImageRequest{
		Prompt:          req.Prompt,
		ReferenceImages: refs,
	}, "char-"+req.Character.ID+"-"+uuid.New().String()+".png")
	if err != nil {
		h.Response.AppError(c, err)
		return
	}

	req.Character.AppendVariation(ref)
	h.Response.Success(c, req.Character, "角色变体生成完成")
}

// SaveAssetRequest 制品保存请求结构
type SaveAssetRequest struct {
	Namespace string `json:"namespace"`
	Category  string `json:"category" binding:"required"`
	Filename  string `json:"filename" binding:"required"`
	Data      string `json:"data" binding:"required"`
	MimeType  string `json:"mime_type"`
}

// SaveAsset 保存制品到持久存储
func (h *Handler) SaveAsset(c *gin.Context) {
	var req SaveAssetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "无效的请求格式", err.Error())
		return
	}

	namespace := req.Namespace
	if namespace == "" {
		namespace = h.ResourceService.Namespace()
	}

	url, err := h.BlobStore.Save(namespace, req.Category, req.Filename, req.Data, req.MimeType)
	if err != nil {
		h.Response.AppError(c, err)
		return
	}

	h.Response.Created(c, gin.H{"url": url})
}

// GetAsset 读取并流式返回制品字节
func (h *Handler) GetAsset(c *gin.Context) {
	namespace := c.Param("namespace")
	category := c.Param("category")
	filename := c.Param("filename")

	data, mimeType, err := h.BlobStore.Get(namespace, category, filename)
	if err != nil {
		h.Response.AppError(c, err)
		return
	}

	c.Data(http.StatusOK, mimeType, data)
}

// ListAssets 列出命名空间下的制品
func (h *Handler) ListAssets(c *gin.Context) {
	namespace := c.Param("namespace")
	category := c.Query("category")

	items, err := h.BlobStore.List(namespace, category)
	if err != nil {
		h.Response.AppError(c, err)
		return
	}

	h.Response.Success(c, gin.H{
		"namespace": namespace,
		"assets":    items,
		"count":     len(items),
	})
}
