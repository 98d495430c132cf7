// internal/errors/errors.go
package errors

import (
	"errors"
	"fmt"
)

// ErrorType 定义错误类型
type ErrorType string

const (
	// 上游调用错误
	ErrorTypeTransientUpstream ErrorType = "transient_upstream" // 限流信号，由重试器处理
	ErrorTypePermanentUpstream ErrorType = "permanent_upstream" // 其他调用失败，立即上抛
	ErrorTypeMalformedResponse ErrorType = "malformed_response" // 调用成功但解析失败，降级为默认值
	ErrorTypeTimeout           ErrorType = "timeout"            // 轮询次数耗尽，与上游失败严格区分

	// 通用错误类型
	ErrorTypeValidation ErrorType = "validation_error"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeError      ErrorType = "processing_error"
)

// AppError 应用程序错误结构
type AppError struct {
	Type       ErrorType
	Message    string
	Err        error
	Code       string // 用户友好的错误代码
	StatusCode int    // 上游HTTP状态码（网络边界处一次性确定，重试逻辑不解析文本）
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap 实现错误链接
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError 创建新的 AppError
func NewAppError(errType ErrorType, message string, originalError error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Err:     originalError,
		Code:    generateErrorCode(errType),
	}
}

// NewTransientUpstreamError 创建限流错误，携带上游状态码
func NewTransientUpstreamError(message string, statusCode int, originalError error) *AppError {
	e := NewAppError(ErrorTypeTransientUpstream, message, originalError)
	e.StatusCode = statusCode
	return e
}

// NewPermanentUpstreamError 创建不可重试的上游错误
func NewPermanentUpstreamError(message string, statusCode int, originalError error) *AppError {
	e := NewAppError(ErrorTypePermanentUpstream, message, originalError)
	e.StatusCode = statusCode
	return e
}

// NewMalformedResponseError 创建解析失败错误
func NewMalformedResponseError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeMalformedResponse, message, originalError)
}

// NewTimeoutError 创建轮询超时错误
func NewTimeoutError(message string) *AppError {
	return NewAppError(ErrorTypeTimeout, message, nil)
}

// NewValidationError 创建验证错误
func NewValidationError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeValidation, message, originalError)
}

// NewNotFoundError 创建未找到错误
func NewNotFoundError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeNotFound, message, originalError)
}

// NewProcessingError 创建处理错误
func NewProcessingError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeError, message, originalError)
}

// isType 检查错误链中是否存在指定类型的 AppError
func isType(err error, t ErrorType) bool {
	var appError *AppError
	if errors.As(err, &appError) {
		return appError.Type == t
	}
	return false
}

// IsTransientUpstream 检查是否为可重试的限流错误
func IsTransientUpstream(err error) bool {
	return isType(err, ErrorTypeTransientUpstream)
}

// IsPermanentUpstream 检查是否为不可重试的上游错误
func IsPermanentUpstream(err error) bool {
	return isType(err, ErrorTypePermanentUpstream)
}

// IsMalformedResponse 检查是否为解析失败错误
func IsMalformedResponse(err error) bool {
	return isType(err, ErrorTypeMalformedResponse)
}

// IsTimeout 检查是否为轮询超时错误
func IsTimeout(err error) bool {
	return isType(err, ErrorTypeTimeout)
}

// IsNotFoundError 检查是否为未找到错误
func IsNotFoundError(err error) bool {
	return isType(err, ErrorTypeNotFound)
}

// IsValidationError 检查是否为验证错误
func IsValidationError(err error) bool {
	return isType(err, ErrorTypeValidation)
}

// generateErrorCode 根据错误类型生成错误代码
func generateErrorCode(errType ErrorType) string {
	switch errType {
	case ErrorTypeTransientUpstream:
		return "RATE_LIMITED"
	case ErrorTypePermanentUpstream:
		return "UPSTREAM_ERROR"
	case ErrorTypeMalformedResponse:
		return "MALFORMED_RESPONSE"
	case ErrorTypeTimeout:
		return "TIMEOUT"
	case ErrorTypeValidation:
		return "VALIDATION_ERROR"
	case ErrorTypeNotFound:
		return "NOT_FOUND"
	case ErrorTypeError:
		return "PROCESSING_ERROR"
	default:
		return "UNKNOWN_ERROR"
	}
}

// WrapError 包装现有错误
func WrapError(err error, message string, errType ErrorType) error {
	if err == nil {
		return nil
	}

	var appError *AppError
	if errors.As(err, &appError) {
		// 如果已经是 AppError，只更新消息，保留原始类型
		return &AppError{
			Type:       appError.Type,
			Message:    fmt.Sprintf("%s: %s", message, appError.Message),
			Err:        appError,
			Code:       appError.Code,
			StatusCode: appError.StatusCode,
		}
	}

	return NewAppError(errType, message, err)
}
