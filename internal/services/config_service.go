// internal/services/config_service.go
package services

import (
	"fmt"

	"github.com/Corphon/StoryReelMCP/internal/config"
	"github.com/Corphon/StoryReelMCP/internal/genai"
	"github.com/Corphon/StoryReelMCP/internal/utils"
)

// ConfigService 生成服务配置的热更新入口
// 每次更新都构造全新的供应商实例，进行中的请求继续持有旧实例
type ConfigService struct {
	assets *AssetService
	shots  *ShotService
}

// NewConfigService 创建配置服务
func NewConfigService(assets *AssetService, shots *ShotService) *ConfigService {
	return &ConfigService{assets: assets, shots: shots}
}

// UpdateSettings 校验参数、持久化配置并切换供应商
func (s *ConfigService) UpdateSettings(provider string, genCfg genai.Config) error {
	if provider == "" {
		return fmt.Errorf("供应商名称不能为空")
	}
	if genCfg.APIKey == "" {
		return fmt.Errorf("API密钥不能为空")
	}

	// 先验证供应商可构造，失败时不落盘
	newProvider, err := genai.New(provider, genCfg)
	if err != nil {
		return fmt.Errorf("创建生成供应商失败: %w", err)
	}

	if _, err := config.UpdateGenConfig(provider, genCfg); err != nil {
		return fmt.Errorf("保存配置失败: %w", err)
	}

	if s.assets != nil {
		s.assets.SetProvider(newProvider)
	}
	if s.shots != nil {
		s.shots.SetCompleter(newProvider)
	}

	utils.GetLogger().Info("生成配置已更新", map[string]interface{}{
		"provider": provider,
	})
	return nil
}

// CurrentSettings 返回当前配置的脱敏视图
func (s *ConfigService) CurrentSettings() map[string]interface{} {
	cfg := config.GetCurrentConfig()
	if cfg == nil {
		return map[string]interface{}{}
	}
	return map[string]interface{}{
		"provider":    cfg.GenProvider,
		"text_model":  cfg.GenConfig.TextModel,
		"image_model": cfg.GenConfig.ImageModel,
		"video_model": cfg.GenConfig.VideoModel,
		"base_url":    cfg.GenConfig.BaseURL,
		"has_api_key": cfg.GenConfig.APIKey != "",
	}
}
