// internal/errors/errors_test.go
package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestTypeHelpers(t *testing.T) {
	cases := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"限流", NewTransientUpstreamError("限流", 429, nil), IsTransientUpstream},
		{"永久失败", NewPermanentUpstreamError("失败", 500, nil), IsPermanentUpstream},
		{"解析失败", NewMalformedResponseError("坏JSON", nil), IsMalformedResponse},
		{"超时", NewTimeoutError("耗尽"), IsTimeout},
		{"未找到", NewNotFoundError("缺失", nil), IsNotFoundError},
		{"验证", NewValidationError("非法", nil), IsValidationError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if !tc.check(tc.err) {
				t.Errorf("类型判断应命中: %v", tc.err)
			}
			// 其他判断函数不应误命中
			all := []func(error) bool{
				IsTransientUpstream, IsPermanentUpstream, IsMalformedResponse,
				IsTimeout, IsNotFoundError, IsValidationError,
			}
			hits := 0
			for _, check := range all {
				if check(tc.err) {
					hits++
				}
			}
			if hits != 1 {
				t.Errorf("应恰好命中1个类型判断, 实际 %d", hits)
			}
		})
	}
}

func TestTypeHelpers_WrappedChain(t *testing.T) {
	inner := NewTransientUpstreamError("限流", 429, nil)
	wrapped := fmt.Errorf("生成图像失败: %w", inner)

	if !IsTransientUpstream(wrapped) {
		t.Error("包装后的错误仍应被识别为限流")
	}
}

func TestTypeHelpers_PlainError(t *testing.T) {
	plain := errors.New("普通错误")
	if IsTransientUpstream(plain) || IsTimeout(plain) {
		t.Error("普通错误不应命中任何类型判断")
	}
}

func TestTransientCarriesStatusCode(t *testing.T) {
	err := NewTransientUpstreamError("限流", 429, nil)
	if err.StatusCode != 429 {
		t.Errorf("StatusCode = %d", err.StatusCode)
	}
	if err.Code != "RATE_LIMITED" {
		t.Errorf("Code = %q", err.Code)
	}
}

func TestWrapError_PreservesType(t *testing.T) {
	inner := NewTimeoutError("轮询耗尽")
	wrapped := WrapError(inner, "视频任务失败", ErrorTypeError)

	// 包装不得改写原有类型
	if !IsTimeout(wrapped) {
		t.Errorf("包装后应仍为timeout类型: %v", wrapped)
	}
}

func TestWrapError_NilPassthrough(t *testing.T) {
	if WrapError(nil, "x", ErrorTypeError) != nil {
		t.Error("nil错误包装后应仍为nil")
	}
}

func TestErrorMessageIncludesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewPermanentUpstreamError("调用上游失败", 502, cause)

	if got := err.Error(); got != "调用上游失败: connection refused" {
		t.Errorf("Error() = %q", got)
	}
	if !errors.Is(err, cause) {
		t.Error("应能通过errors.Is找到原始错误")
	}
}
