// internal/utils/datauri_test.go
package utils

import (
	"bytes"
	"testing"
)

func TestEncodeDecodeDataURI(t *testing.T) {
	raw := []byte{0x89, 0x50, 0x4e, 0x47}

	uri := EncodeDataURI("image/png", raw)
	if !IsDataURI(uri) {
		t.Fatalf("编码结果应为data URI: %q", uri)
	}

	mimeType, data, err := DecodeDataURI(uri)
	if err != nil {
		t.Fatalf("解码失败: %v", err)
	}
	if mimeType != "image/png" {
		t.Errorf("MIME = %q", mimeType)
	}
	if !bytes.Equal(data, raw) {
		t.Errorf("解码字节不一致")
	}
}

func TestEncodeDataURI_DefaultMime(t *testing.T) {
	uri := EncodeDataURI("", []byte("x"))
	mimeType, _, err := DecodeDataURI(uri)
	if err != nil {
		t.Fatalf("解码失败: %v", err)
	}
	if mimeType != "application/octet-stream" {
		t.Errorf("缺省MIME = %q", mimeType)
	}
}

func TestDecodeDataURI_Invalid(t *testing.T) {
	if _, _, err := DecodeDataURI("https://example.com/a.png"); err == nil {
		t.Error("非data URI应返回错误")
	}
	if _, _, err := DecodeDataURI("data:image/png;base64"); err == nil {
		t.Error("缺少分隔符应返回错误")
	}
	if _, _, err := DecodeDataURI("data:image/png;base64,!!!"); err == nil {
		t.Error("非法base64应返回错误")
	}
}

func TestIsDataURI(t *testing.T) {
	if !IsDataURI("data:image/png;base64,AAAA") {
		t.Error("data URI应被识别")
	}
	if IsDataURI("/api/assets/ns/images/a.png") {
		t.Error("路径引用不应被识别为data URI")
	}
}
