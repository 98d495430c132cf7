// internal/services/resource_service.go
package services

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/Corphon/StoryReelMCP/internal/storage"
	"github.com/Corphon/StoryReelMCP/internal/utils"
)

// 资源分类
const (
	CategoryImages = "images"
	CategoryVideos = "videos"
)

// RemoteStore 远程访问层：持久存储的网络表面
type RemoteStore interface {
	// Fetch 读取制品字节及Content-Type；缺失返回not_found错误
	Fetch(ctx context.Context, namespace, category, filename string) ([]byte, string, error)

	// Save 持久化制品，返回规范检索路径
	Save(ctx context.Context, namespace, category, filename, payload, mimeType string) (string, error)
}

// PayloadCache 本地缓存的最小接口（便于在测试中注入失败的缓存）
type PayloadCache interface {
	Get(key string) (*storage.CacheEntry, bool)
	Put(key, payload, resourceType string) error
}

// ResourceService 分层资源缓存：本地快速缓存 + 权威远程存储
// 读路径read-through（未命中回源并填充缓存），写路径write-through（先写存储再预热缓存）
type ResourceService struct {
	cache     PayloadCache
	remote    RemoteStore
	namespace string
}

// NewResourceService 创建资源服务
// namespace在会话生命周期内保持稳定
func NewResourceService(cache PayloadCache, remote RemoteStore, namespace string) *ResourceService {
	return &ResourceService{
		cache:     cache,
		remote:    remote,
		namespace: namespace,
	}
}

// Namespace 当前会话的存储命名空间
func (s *ResourceService) Namespace() string {
	return s.namespace
}

// CanonicalKey 从资源引用派生规范查找键
// 只保留逻辑路径，与主机/源无关，开发与生产环境的基地址切换不影响命中
func CanonicalKey(reference string) string {
	path := reference
	if strings.HasPrefix(reference, "http://") || strings.HasPrefix(reference, "https://") {
		if u, err := url.Parse(reference); err == nil {
			path = u.Path
		}
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return path
}

// splitAssetKey 把规范键拆解为(namespace, category, filename)
func splitAssetKey(key string) (string, string, string, error) {
	trimmed := strings.TrimPrefix(key, "/api/assets/")
	parts := strings.Split(strings.Trim(trimmed, "/"), "/")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", "", "", fmt.Errorf("无法解析资源引用路径: %s", key)
	}
	return parts[0], parts[1], parts[2], nil
}

// Resolve 解析资源引用为自包含载荷
// 自包含引用原样返回；否则先查本地缓存（命中即返回，不发起网络调用），
// 未命中经远程访问层回源，成功后以同一规范键填充缓存。
// 读路径上的缓存填充失败只记录日志并吞掉——载荷本身已经有效。
func (s *ResourceService) Resolve(ctx context.Context, reference, category string) (string, error) {
	if utils.IsDataURI(reference) {
		return reference, nil
	}

	key := CanonicalKey(reference)

	// 裸文件名引用按(会话命名空间, 调用方分类)补全
	namespace, cat, filename, err := splitAssetKey(key)
	if err != nil {
		namespace, cat, filename = s.namespace, category, strings.Trim(reference, "/")
		key = storage.CanonicalPath(namespace, cat, filename)
	}

	if entry, ok := s.cache.Get(key); ok {
		return entry.Payload, nil
	}

	data, mimeType, err := s.remote.Fetch(ctx, namespace, cat, filename)
	if err != nil {
		return "", err
	}

	payload := utils.EncodeDataURI(mimeType, data)

	if cacheErr := s.cache.Put(key, payload, cat); cacheErr != nil {
		utils.GetLogger().Warn("读路径缓存填充失败（已忽略）", map[string]interface{}{
			"key": key, "error": cacheErr.Error(),
		})
	}

	return payload, nil
}

// Save 持久化生成的制品并返回资源引用
// 先写远程存储（权威数据源），失败原样上抛——写路径不容忍静默丢数据；
// 成功后主动预热本地缓存，紧随其后的读取不需要再回源。
func (s *ResourceService) Save(ctx context.Context, category, filename, payload, mimeType string) (string, error) {
	reference, err := s.remote.Save(ctx, s.namespace, category, filename, payload, mimeType)
	if err != nil {
		return "", err
	}

	// 预热缓存：统一存为自包含载荷
	warmPayload := payload
	if !utils.IsDataURI(payload) {
		if mimeType == "" {
			mimeType = storage.MimeTypeForFilename(filename)
		}
		warmPayload = "data:" + mimeType + ";base64," + payload
	}

	key := CanonicalKey(reference)
	if cacheErr := s.cache.Put(key, warmPayload, category); cacheErr != nil {
		utils.GetLogger().Warn("写路径缓存预热失败（制品已持久化）", map[string]interface{}{
			"key": key, "error": cacheErr.Error(),
		})
	}

	return reference, nil
}
