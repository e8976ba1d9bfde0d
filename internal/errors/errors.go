// internal/errors/errors.go
package errors

import (
	"errors"
	"fmt"
)

// ErrorType 定义错误类型
type ErrorType string

const (
	// 提取管线的错误分类
	ErrorTypeValidation  ErrorType = "invalid_input"         // 调用方输入错误，不重试
	ErrorTypeAuth        ErrorType = "authentication_error"  // 凭证被拒绝，不重试
	ErrorTypeTimeout     ErrorType = "timeout"               // 单次请求超时，可重试
	ErrorTypeUnavailable ErrorType = "service_unavailable"   // 上游服务暂时不可用，可重试
	ErrorTypeEmptyResult ErrorType = "empty_result"          // 模型输出完全无法解析
	ErrorTypeCancelled   ErrorType = "cancelled"             // 调用方主动取消
	ErrorTypeNotFound    ErrorType = "not_found"
	ErrorTypeError       ErrorType = "processing_error"
)

// AppError 应用程序错误结构
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
	Code    string // 用户友好的错误代码
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

// NewValidationError 创建输入验证错误
func NewValidationError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeValidation, message, originalError)
}

// NewAuthError 创建认证错误
func NewAuthError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeAuth, message, originalError)
}

// NewTimeoutError 创建超时错误
func NewTimeoutError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeTimeout, message, originalError)
}

// NewUnavailableError 创建服务不可用错误
func NewUnavailableError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeUnavailable, message, originalError)
}

// NewEmptyResultError 创建空结果错误
func NewEmptyResultError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeEmptyResult, message, originalError)
}

// NewCancelledError 创建取消错误
func NewCancelledError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeCancelled, message, originalError)
}

// NewNotFoundError 创建未找到错误
func NewNotFoundError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeNotFound, message, originalError)
}

// NewProcessingError 创建处理错误
func NewProcessingError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeError, message, originalError)
}

// TypeOf 返回错误的分类，非 AppError 归为 processing_error
func TypeOf(err error) ErrorType {
	var appError *AppError
	if errors.As(err, &appError) {
		return appError.Type
	}
	return ErrorTypeError
}

// IsValidationError 检查是否为输入验证错误
func IsValidationError(err error) bool {
	return TypeOf(err) == ErrorTypeValidation
}

// IsAuthError 检查是否为认证错误
func IsAuthError(err error) bool {
	return TypeOf(err) == ErrorTypeAuth
}

// IsTimeoutError 检查是否为超时错误
func IsTimeoutError(err error) bool {
	return TypeOf(err) == ErrorTypeTimeout
}

// IsUnavailableError 检查是否为服务不可用错误
func IsUnavailableError(err error) bool {
	return TypeOf(err) == ErrorTypeUnavailable
}

// IsEmptyResultError 检查是否为空结果错误
func IsEmptyResultError(err error) bool {
	return TypeOf(err) == ErrorTypeEmptyResult
}

// IsCancelledError 检查是否为取消错误
func IsCancelledError(err error) bool {
	return TypeOf(err) == ErrorTypeCancelled
}

// IsNotFoundError 检查是否为未找到错误
func IsNotFoundError(err error) bool {
	return TypeOf(err) == ErrorTypeNotFound
}

// IsTransient 判断错误是否为瞬时错误（允许重试）
// 超时与服务不可用视为瞬时；认证、验证、取消均不重试
func IsTransient(err error) bool {
	t := TypeOf(err)
	return t == ErrorTypeTimeout || t == ErrorTypeUnavailable
}

// generateErrorCode 根据错误类型生成错误代码
func generateErrorCode(errType ErrorType) string {
	switch errType {
	case ErrorTypeValidation:
		return "INVALID_INPUT"
	case ErrorTypeAuth:
		return "AUTHENTICATION_ERROR"
	case ErrorTypeTimeout:
		return "TIMEOUT"
	case ErrorTypeUnavailable:
		return "SERVICE_UNAVAILABLE"
	case ErrorTypeEmptyResult:
		return "EMPTY_RESULT"
	case ErrorTypeCancelled:
		return "CANCELLED"
	case ErrorTypeNotFound:
		return "NOT_FOUND"
	case ErrorTypeError:
		return "PROCESSING_ERROR"
	default:
		return "UNKNOWN_ERROR"
	}
}
