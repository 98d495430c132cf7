// internal/utils/datauri.go
package utils

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// IsDataURI 判断引用是否为自包含的data URI载荷
func IsDataURI(s string) bool {
	return strings.HasPrefix(s, "data:")
}

// EncodeDataURI 把原始字节编码为data URI
func EncodeDataURI(mimeType string, data []byte) string {
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))
}

// DecodeDataURI 解码data URI，返回MIME类型和原始字节
func DecodeDataURI(uri string) (string, []byte, error) {
	if !IsDataURI(uri) {
		return "", nil, fmt.Errorf("不是有效的data URI")
	}

	rest := strings.TrimPrefix(uri, "data:")
	sep := strings.Index(rest, ",")
	if sep == -1 {
		return "", nil, fmt.Errorf("data URI缺少数据分隔符")
	}

	meta := rest[:sep]
	payload := rest[sep+1:]

	mimeType := meta
	isBase64 := false
	if idx := strings.Index(meta, ";"); idx != -1 {
		mimeType = meta[:idx]
		isBase64 = strings.Contains(meta[idx:], "base64")
	}

	var data []byte
	var err error
	if isBase64 {
		data, err = base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return "", nil, fmt.Errorf("解码base64数据失败: %w", err)
		}
	} else {
		data = []byte(payload)
	}

	return mimeType, data, nil
}
