// internal/storage/blob_store.go
package storage

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	apperrors "github.com/Corphon/StoryReelMCP/internal/errors"
	"github.com/Corphon/StoryReelMCP/internal/models"
	"github.com/Corphon/StoryReelMCP/internal/utils"
)

// MaxArtifactBytes 单件制品大小上限
const MaxArtifactBytes = 100 << 20 // 100MB

// BlobStore 文件系统持久存储，目录结构 root/{namespace}/{category}/{filename}
// 是整个系统的权威数据源（system of record），本地缓存可以短暂落后于它
type BlobStore struct {
	BaseDir string

	// 文件级别锁 path -> *sync.RWMutex
	fileLocks sync.Map
}

// NewBlobStore 创建持久存储
func NewBlobStore(baseDir string) (*BlobStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("创建存储目录失败: %w", err)
	}
	return &BlobStore{BaseDir: baseDir}, nil
}

// 获取文件锁
func (s *BlobStore) getFileLock(fullPath string) *sync.RWMutex {
	value, _ := s.fileLocks.LoadOrStore(fullPath, &sync.RWMutex{})
	return value.(*sync.RWMutex)
}

// validateSegment 拒绝会逃出存储树的路径片段
func validateSegment(name string) error {
	if name == "" {
		return apperrors.NewValidationError("路径片段不能为空", nil)
	}
	if strings.ContainsAny(name, "/\\") || name == "." || name == ".." {
		return apperrors.NewValidationError(fmt.Sprintf("非法路径片段: %s", name), nil)
	}
	return nil
}

// decodePayload 解码载荷：支持自描述的data URI和裸base64两种形式
func decodePayload(payload, mimeType string) ([]byte, string, error) {
	if utils.IsDataURI(payload) {
		embeddedMime, data, err := utils.DecodeDataURI(payload)
		if err != nil {
			return nil, "", apperrors.NewValidationError("解码data URI载荷失败", err)
		}
		// 内嵌的MIME类型优先于调用方声明
		if embeddedMime != "" {
			mimeType = embeddedMime
		}
		return data, mimeType, nil
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", apperrors.NewValidationError("解码base64载荷失败", err)
	}
	return data, mimeType, nil
}

// extForMimeType 根据MIME类型推断文件扩展名
func extForMimeType(mimeType string) string {
	switch mimeType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "video/mp4":
		return ".mp4"
	default:
		return ".bin"
	}
}

// MimeTypeForFilename 根据扩展名推断Content-Type
func MimeTypeForFilename(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".mp4":
		return "video/mp4"
	default:
		return "application/octet-stream"
	}
}

// CanonicalPath 存储制品的规范检索路径（与主机/源无关）
func CanonicalPath(namespace, category, filename string) string {
	return fmt.Sprintf("/api/assets/%s/%s/%s", namespace, category, filename)
}

// Save 解码载荷并落盘，返回规范检索路径
// 文件名缺少扩展名时根据MIME类型补全；写入是tmp+rename的原子操作
func (s *BlobStore) Save(namespace, category, filename, payload, mimeType string) (string, error) {
	for _, seg := range []string{namespace, category, filename} {
		if err := validateSegment(seg); err != nil {
			return "", err
		}
	}

	data, mimeType, err := decodePayload(payload, mimeType)
	if err != nil {
		return "", err
	}
	if len(data) > MaxArtifactBytes {
		return "", apperrors.NewValidationError(
			fmt.Sprintf("制品大小 %d 超出100MB上限", len(data)), nil)
	}

	if filepath.Ext(filename) == "" {
		filename += extForMimeType(mimeType)
	}

	fullDirPath := filepath.Join(s.BaseDir, namespace, category)
	fullPath := filepath.Join(fullDirPath, filename)

	lock := s.getFileLock(fullPath)
	lock.Lock()
	defer lock.Unlock()

	if err := os.MkdirAll(fullDirPath, 0755); err != nil {
		return "", fmt.Errorf("创建目录失败: %w", err)
	}

	// 原子性文件写入
	tempPath := fullPath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return "", fmt.Errorf("保存临时文件失败: %w", err)
	}
	if err := os.Rename(tempPath, fullPath); err != nil {
		if removeErr := os.Remove(tempPath); removeErr != nil {
			utils.GetLogger().Warn("重命名失败后清理临时文件失败", map[string]interface{}{
				"path": tempPath, "error": removeErr.Error(),
			})
		}
		return "", fmt.Errorf("保存文件失败: %w", err)
	}

	return CanonicalPath(namespace, category, filename), nil
}

// Get 读取制品字节及其Content-Type
// 文件缺失返回not_found错误而不是服务器错误
func (s *BlobStore) Get(namespace, category, filename string) ([]byte, string, error) {
	for _, seg := range []string{namespace, category, filename} {
		if err := validateSegment(seg); err != nil {
			return nil, "", err
		}
	}

	fullPath := filepath.Join(s.BaseDir, namespace, category, filename)

	lock := s.getFileLock(fullPath)
	lock.RLock()
	defer lock.RUnlock()

	data, err := os.ReadFile(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", apperrors.NewNotFoundError(
				fmt.Sprintf("制品不存在: %s/%s/%s", namespace, category, filename), err)
		}
		return nil, "", fmt.Errorf("读取文件失败: %w", err)
	}

	return data, MimeTypeForFilename(filename), nil
}

// List 枚举命名空间下的制品，category为空时遍历所有分类
func (s *BlobStore) List(namespace, category string) ([]models.StoredResource, error) {
	if err := validateSegment(namespace); err != nil {
		return nil, err
	}

	var categories []string
	if category != "" {
		if err := validateSegment(category); err != nil {
			return nil, err
		}
		categories = []string{category}
	} else {
		entries, err := os.ReadDir(filepath.Join(s.BaseDir, namespace))
		if err != nil {
			if os.IsNotExist(err) {
				// 命名空间还没有任何制品，返回空列表而不是错误
				return []models.StoredResource{}, nil
			}
			return nil, fmt.Errorf("读取命名空间目录失败: %w", err)
		}
		for _, entry := range entries {
			if entry.IsDir() {
				categories = append(categories, entry.Name())
			}
		}
	}

	resources := []models.StoredResource{}
	for _, cat := range categories {
		entries, err := os.ReadDir(filepath.Join(s.BaseDir, namespace, cat))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("读取分类目录失败: %w", err)
		}
		for _, entry := range entries {
			if entry.IsDir() || strings.HasSuffix(entry.Name(), ".tmp") {
				continue
			}
			resources = append(resources, models.StoredResource{
				Filename: entry.Name(),
				URL:      CanonicalPath(namespace, cat, entry.Name()),
			})
		}
	}

	sort.Slice(resources, func(i, j int) bool {
		return resources[i].URL < resources[j].URL
	})

	return resources, nil
}
