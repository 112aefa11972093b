package common

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound 未找到错误
	ErrNotFound = errors.New("not found")

	// ErrValidationFailed 验证失败错误
	ErrValidationFailed = errors.New("validation failed")

	// ErrInvalidTransition 非法状态转换
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrPartialFailure 部分写入成功 (账本与聚合不一致)
	ErrPartialFailure = errors.New("partial failure")

	// ErrUnauthorized 未授权错误
	ErrUnauthorized = errors.New("unauthorized")
)

// 错误代码
const (
	CodeValidation        = "VALIDATION"
	CodeNotFound          = "NOT_FOUND"
	CodeInvalidTransition = "INVALID_STATE_TRANSITION"
	CodePartialFailure    = "PARTIAL_FAILURE"
	CodeInternal          = "INTERNAL"
)

// AppError 应用错误
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap 返回底层原因
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is 让 errors.Is 可以按错误类别匹配哨兵错误
func (e *AppError) Is(target error) bool {
	switch target {
	case ErrValidationFailed:
		return e.Code == CodeValidation
	case ErrNotFound:
		return e.Code == CodeNotFound
	case ErrInvalidTransition:
		return e.Code == CodeInvalidTransition
	case ErrPartialFailure:
		return e.Code == CodePartialFailure
	}
	return false
}

// NewAppError 创建应用错误
func NewAppError(code string, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Validation 输入校验失败, 未发生任何修改
func Validation(format string, args ...interface{}) *AppError {
	return NewAppError(CodeValidation, fmt.Sprintf(format, args...), nil)
}

// NotFound 引用的对象不存在
func NotFound(format string, args ...interface{}) *AppError {
	return NewAppError(CodeNotFound, fmt.Sprintf(format, args...), nil)
}

// InvalidTransition 当前状态不允许该操作
func InvalidTransition(format string, args ...interface{}) *AppError {
	return NewAppError(CodeInvalidTransition, fmt.Sprintf(format, args...), nil)
}

// Partial 第一步已写入, 第二步失败. 不会自动回滚或重试.
func Partial(message string, cause error) *AppError {
	return NewAppError(CodePartialFailure, message, cause)
}

// CodeOf 提取错误代码, 非 AppError 返回 CodeInternal
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	if errors.Is(err, ErrNotFound) {
		return CodeNotFound
	}
	return CodeInternal
}
