// internal/app/app.go
package app

import (
	"fmt"

	"github.com/Corphon/StoryReelMCP/internal/config"
	"github.com/Corphon/StoryReelMCP/internal/di"
	"github.com/Corphon/StoryReelMCP/internal/genai"
	"github.com/Corphon/StoryReelMCP/internal/services"
	"github.com/Corphon/StoryReelMCP/internal/storage"
	"github.com/Corphon/StoryReelMCP/internal/utils"

	// 注册生成供应商
	_ "github.com/Corphon/StoryReelMCP/internal/genai/providers/kling"
	_ "github.com/Corphon/StoryReelMCP/internal/genai/providers/openai"
)

// InitServices 按依赖顺序初始化所有服务并注册到容器
func InitServices() error {
	cfg := config.GetCurrentConfig()
	if cfg == nil {
		return fmt.Errorf("配置系统尚未初始化")
	}

	container := di.GetContainer()
	logger := utils.GetLogger()

	// 持久制品存储
	blobStore, err := storage.NewBlobStore(cfg.StoreDir)
	if err != nil {
		return fmt.Errorf("初始化制品存储失败: %w", err)
	}
	container.Register("blobstore", blobStore)

	// 持久存储访问层：默认进程内直连，配置了远端地址时走HTTP
	var remote services.RemoteStore = services.NewLocalRemoteStore(blobStore)
	if cfg.RemoteStoreURL != "" {
		remote = services.NewHTTPRemoteStore(cfg.RemoteStoreURL)
		logger.Info("使用远端持久存储", map[string]interface{}{
			"url": cfg.RemoteStoreURL,
		})
	}

	// 分层资源缓存
	namespace := config.DeriveNamespace(cfg.Namespace, cfg.GenConfig.APIKey)
	localCache := storage.NewLocalCache()
	resourceService := services.NewResourceService(localCache, remote, namespace)
	container.Register("resource", resourceService)

	// 生成供应商：密钥未配置时先不构造，等设置接口下发
	var provider genai.Provider
	if cfg.GenConfig.APIKey != "" {
		provider, err = genai.New(cfg.GenProvider, cfg.GenConfig)
		if err != nil {
			return fmt.Errorf("创建生成供应商失败: %w", err)
		}
		logger.Info("生成供应商已就绪", map[string]interface{}{
			"provider": cfg.GenProvider,
		})
	} else {
		logger.Warn("生成供应商未配置", map[string]interface{}{
			"hint": "通过 PUT /api/settings 配置后生效",
		})
	}

	// 进度跟踪
	progressService := services.NewProgressService()
	container.Register("progress", progressService)

	// 资产生成编排
	assetService := services.NewAssetService(provider, resourceService, progressService)
	container.Register("asset", assetService)

	// 分镜拆解
	var completer services.TextCompleter
	if provider != nil {
		completer = provider
	}
	shotService := services.NewShotService(completer, progressService)
	container.Register("shot", shotService)

	// 配置热更新
	configService := services.NewConfigService(assetService, shotService)
	container.Register("config", configService)

	return nil
}
