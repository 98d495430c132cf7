// internal/config/config.go
package config

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/Corphon/StoryReelMCP/internal/genai"
	"github.com/joho/godotenv"
)

// DefaultNamespace 命名空间回退链的最终默认值
const DefaultNamespace = "default"

// 当前配置的单例实例
var (
	currentConfig *AppConfig
	configMutex   sync.RWMutex
	configFile    string
)

// AppConfig 包含应用程序的所有配置
type AppConfig struct {
	// 基础配置
	Port      string `json:"port"`
	DataDir   string `json:"data_dir"`
	StoreDir  string `json:"store_dir"` // 持久存储根目录
	LogDir    string `json:"log_dir"`
	DebugMode bool   `json:"debug_mode"`

	// 存储命名空间（显式身份，回退链第一级）
	Namespace string `json:"namespace,omitempty"`

	// 远端持久存储地址，为空时使用进程内存储
	RemoteStoreURL string `json:"remote_store_url,omitempty"`

	// 生成服务配置：不可变快照传入客户端构造函数
	GenProvider string       `json:"gen_provider"`
	GenConfig   genai.Config `json:"gen_config"`
}

// Load 从环境变量加载配置
func Load() (*AppConfig, error) {
	// 尝试加载.env文件（可选）
	godotenv.Load()

	config := &AppConfig{
		Port:           getEnv("PORT", "8080"),
		DataDir:        getEnvPath("DATA_DIR", "data"),
		StoreDir:       getEnvPath("STORE_DIR", filepath.Join("data", "store")),
		LogDir:         getEnvPath("LOG_DIR", "logs"),
		DebugMode:      getEnvBool("DEBUG_MODE", true),
		Namespace:      getEnv("STORE_NAMESPACE", ""),
		RemoteStoreURL: getEnv("REMOTE_STORE_URL", ""),
		GenProvider:    getEnv("GEN_PROVIDER", "openai"),
		GenConfig: genai.Config{
			APIKey:     getEnv("GEN_API_KEY", ""),
			BaseURL:    getEnv("GEN_BASE_URL", ""),
			TextModel:  getEnv("GEN_TEXT_MODEL", ""),
			ImageModel: getEnv("GEN_IMAGE_MODEL", ""),
			VideoModel: getEnv("GEN_VIDEO_MODEL", ""),
		},
	}

	if config.GenConfig.APIKey == "" {
		// 只记录警告，不返回错误；可以稍后通过设置接口配置
		log.Println("警告: 未设置生成服务API密钥，需要通过设置接口配置后才能使用生成功能")
	}

	return config, nil
}

// getEnv 获取环境变量，如果不存在则返回默认值
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvPath 获取环境变量表示的路径，如果不存在则返回默认值
func getEnvPath(key, defaultValue string) string {
	path := getEnv(key, defaultValue)

	// 确保目录存在
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.MkdirAll(path, 0755); err != nil {
			fmt.Printf("警告: 创建目录失败 %s: %v\n", path, err)
		}
	}

	return path
}

// getEnvBool 获取布尔类型环境变量
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// DeriveNamespace 按回退链解析存储命名空间
// 显式身份 → 稳定外部密钥前缀的摘要 → 字面默认值；
// 会话生命周期内保持稳定
func DeriveNamespace(explicit, secret string) string {
	if explicit != "" {
		return explicit
	}
	if secret != "" {
		prefix := secret
		if len(prefix) > 16 {
			prefix = prefix[:16]
		}
		sum := md5.Sum([]byte(prefix))
		return "u-" + hex.EncodeToString(sum[:])[:12]
	}
	return DefaultNamespace
}

// InitConfig 初始化配置管理器
func InitConfig(dataDir string) error {
	configFile = filepath.Join(dataDir, "config.json")

	baseConfig, err := Load()
	if err != nil {
		return err
	}

	configMutex.Lock()
	defer configMutex.Unlock()

	currentConfig = baseConfig

	// 尝试从文件加载已保存的配置
	if _, err := os.Stat(configFile); !os.IsNotExist(err) {
		data, err := os.ReadFile(configFile)
		if err == nil {
			var savedConfig AppConfig
			if json.Unmarshal(data, &savedConfig) == nil {
				// 合并配置：保留文件中的生成服务设置，基础配置以环境为准
				savedConfig.Port = baseConfig.Port
				savedConfig.DataDir = baseConfig.DataDir
				savedConfig.StoreDir = baseConfig.StoreDir
				savedConfig.LogDir = baseConfig.LogDir
				savedConfig.DebugMode = baseConfig.DebugMode

				// 文件中没有API密钥时使用环境变量的密钥
				if savedConfig.GenConfig.APIKey == "" {
					savedConfig.GenConfig.APIKey = baseConfig.GenConfig.APIKey
				}

				currentConfig = &savedConfig
			}
		}
	}

	return saveConfigLocked()
}

// GetCurrentConfig 返回当前配置的副本
func GetCurrentConfig() *AppConfig {
	configMutex.RLock()
	defer configMutex.RUnlock()

	if currentConfig == nil {
		baseConfig, _ := Load()
		return baseConfig
	}

	configCopy := *currentConfig
	return &configCopy
}

// UpdateGenConfig 更新生成服务配置并持久化
// 调用方拿到返回的副本后构造新的Provider实例，在途请求继续用旧实例
func UpdateGenConfig(provider string, genCfg genai.Config) (*AppConfig, error) {
	configMutex.Lock()
	defer configMutex.Unlock()

	if currentConfig == nil {
		return nil, fmt.Errorf("配置系统未初始化")
	}

	currentConfig.GenProvider = provider
	currentConfig.GenConfig = genCfg

	if err := saveConfigLocked(); err != nil {
		return nil, err
	}

	configCopy := *currentConfig
	return &configCopy, nil
}

// saveConfigLocked 保存当前配置到文件（调用方必须持有写锁）
func saveConfigLocked() error {
	if currentConfig == nil {
		return fmt.Errorf("没有配置可保存")
	}

	dir := filepath.Dir(configFile)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("创建配置目录失败: %w", err)
		}
	}

	data, err := json.MarshalIndent(currentConfig, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化配置失败: %w", err)
	}

	return os.WriteFile(configFile, data, 0644)
}
