// internal/errors/errors.go
package errors

import (
	"errors"
	"fmt"
)

// ErrorType 定义错误类型
type ErrorType string

const (
	// 通用错误类型
	ErrorTypeValidation ErrorType = "validation_error"
	ErrorTypeNotFound   ErrorType = "not_found"

	// 流水线错误类型
	// Agent 输出缺少必填字段或字段取值非法时使用 schema 错误，
	// 绝不猜测默认值——安全门的正确性依赖字段真实有效
	ErrorTypeAnalysisSchema    ErrorType = "analysis_schema_error"
	ErrorTypeEnhancementSchema ErrorType = "enhancement_schema_error"
	ErrorTypeTransport         ErrorType = "transport_error"
	ErrorTypeConfiguration     ErrorType = "configuration_error"
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

// NewValidationError 创建验证错误
func NewValidationError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeValidation, message, originalError)
}

// NewNotFoundError 创建未找到错误
func NewNotFoundError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeNotFound, message, originalError)
}

// NewAnalysisSchemaError 创建图像分析输出格式错误
func NewAnalysisSchemaError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeAnalysisSchema, message, originalError)
}

// NewEnhancementSchemaError 创建增强输出格式错误
func NewEnhancementSchemaError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeEnhancementSchema, message, originalError)
}

// NewTransportError 创建外部调用传输错误
func NewTransportError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeTransport, message, originalError)
}

// NewConfigurationError 创建配置错误
func NewConfigurationError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeConfiguration, message, originalError)
}

// IsValidationError 检查是否为验证错误
func IsValidationError(err error) bool {
	return isType(err, ErrorTypeValidation)
}

// IsNotFoundError 检查是否为未找到错误
func IsNotFoundError(err error) bool {
	return isType(err, ErrorTypeNotFound)
}

// IsAnalysisSchemaError 检查是否为图像分析输出格式错误
func IsAnalysisSchemaError(err error) bool {
	return isType(err, ErrorTypeAnalysisSchema)
}

// IsEnhancementSchemaError 检查是否为增强输出格式错误
func IsEnhancementSchemaError(err error) bool {
	return isType(err, ErrorTypeEnhancementSchema)
}

// IsTransportError 检查是否为传输错误
func IsTransportError(err error) bool {
	return isType(err, ErrorTypeTransport)
}

// IsConfigurationError 检查是否为配置错误
func IsConfigurationError(err error) bool {
	return isType(err, ErrorTypeConfiguration)
}

func isType(err error, t ErrorType) bool {
	var appError *AppError
	if errors.As(err, &appError) {
		return appError.Type == t
	}
	return false
}

// generateErrorCode 根据错误类型生成错误代码
func generateErrorCode(errType ErrorType) string {
	switch errType {
	case ErrorTypeValidation:
		return "VALIDATION_ERROR"
	case ErrorTypeNotFound:
		return "NOT_FOUND"
	case ErrorTypeAnalysisSchema:
		return "ANALYSIS_SCHEMA_ERROR"
	case ErrorTypeEnhancementSchema:
		return "ENHANCEMENT_SCHEMA_ERROR"
	case ErrorTypeTransport:
		return "TRANSPORT_ERROR"
	case ErrorTypeConfiguration:
		return "CONFIGURATION_ERROR"
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
		// 如果已经是 AppError，保留原类型，只叠加消息
		return &AppError{
			Type:    appError.Type,
			Message: fmt.Sprintf("%s: %s", message, appError.Message),
			Err:     appError,
			Code:    appError.Code,
		}
	}

	return NewAppError(errType, message, err)
}
