// internal/api/router.go
package api

import (
	"fmt"

	"github.com/Corphon/StoryReelMCP/internal/config"
	"github.com/Corphon/StoryReelMCP/internal/di"
	"github.com/Corphon/StoryReelMCP/internal/services"
	"github.com/Corphon/StoryReelMCP/internal/storage"
	"github.com/gin-gonic/gin"
)

// SetupRouter 配置HTTP路由
func SetupRouter() (*gin.Engine, error) {
	cfg := config.GetCurrentConfig()

	// 只从容器获取服务，不创建新实例
	container := di.GetContainer()

	shotService, ok := container.Get("shot").(*services.ShotService)
	if !ok {
		return nil, fmt.Errorf("分镜服务未正确初始化")
	}

	assetService, ok := container.Get("asset").(*services.AssetService)
	if !ok {
		return nil, fmt.Errorf("资产服务未正确初始化")
	}

	resourceService, ok := container.Get("resource").(*services.ResourceService)
	if !ok {
		return nil, fmt.Errorf("资源服务未正确初始化")
	}

	configService, ok := container.Get("config").(*services.ConfigService)
	if !ok {
		return nil, fmt.Errorf("配置服务未正确初始化")
	}

	progressService, ok := container.Get("progress").(*services.ProgressService)
	if !ok {
		return nil, fmt.Errorf("进度服务未正确初始化")
	}

	blobStore, ok := container.Get("blobstore").(*storage.BlobStore)
	if !ok {
		return nil, fmt.Errorf("制品存储未正确初始化")
	}

	handler := NewHandler(
		shotService,
		assetService,
		resourceService,
		configService,
		progressService,
		blobStore,
	)

	if !cfg.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()

	// 启用CORS
	r.Use(corsMiddleware())

	// WebSocket 进度推送
	r.GET("/ws/progress/:task_id", handler.ProgressWebSocket)

	// ===============================
	// API路由组
	// ===============================
	api := r.Group("/api")
	api.Use(DefaultRateLimit())
	{
		api.GET("/status", handler.GetStatus)

		// ===============================
		// 设置相关路由
		// ===============================
		settingsGroup := api.Group("/settings")
		{
			settingsGroup.GET("", handler.GetSettings)
			settingsGroup.PUT("", handler.UpdateSettings)
		}

		// ===============================
		// 生成相关路由
		// ===============================
		generateGroup := api.Group("/generate")
		generateGroup.Use(GenerationRateLimit())
		{
			generateGroup.POST("/shots", handler.GenerateShots)
			generateGroup.GET("/shots/:task_id", handler.GetShotTask)
			generateGroup.POST("/image", handler.GenerateImage)
			generateGroup.POST("/video", handler.GenerateVideo)
			generateGroup.POST("/character-variation", handler.GenerateCharacterVariation)
		}

		// ===============================
		// 制品存储路由
		// ===============================
		assetsGroup := api.Group("/assets")
		{
			assetsGroup.POST("", handler.SaveAsset)
			assetsGroup.GET("/:namespace", handler.ListAssets)
			assetsGroup.GET("/:namespace/:category/:filename", handler.GetAsset)
		}
	}

	return r, nil
}
