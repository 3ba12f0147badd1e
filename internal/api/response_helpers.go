// internal/api/response_helpers.go
package api

import (
	"net/http"
	"time"

	apperrors "github.com/alexmm3/grokvalidator/internal/errors"
	"github.com/gin-gonic/gin"
)

// APIResponse 统一响应信封
type APIResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Message   string      `json:"message,omitempty"`
	Error     *APIError   `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	RequestID string      `json:"request_id,omitempty"`
}

// APIError 响应中的错误描述
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// ResponseHelper 响应助手类
type ResponseHelper struct{}

// NewResponseHelper 创建响应助手
func NewResponseHelper() *ResponseHelper {
	return &ResponseHelper{}
}

// Success 成功响应
func (rh *ResponseHelper) Success(c *gin.Context, data interface{}, message ...string) {
	response := &APIResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now(),
		RequestID: rh.getRequestID(c),
	}

	if len(message) > 0 {
		response.Message = message[0]
	}

	c.JSON(http.StatusOK, response)
}

// Error 错误响应
func (rh *ResponseHelper) Error(c *gin.Context, statusCode int, errorCode, message string, details ...string) {
	apiError := &APIError{
		Code:    errorCode,
		Message: message,
	}

	if len(details) > 0 {
		apiError.Details = details[0]
	}

	response := &APIResponse{
		Success:   false,
		Error:     apiError,
		Timestamp: time.Now(),
		RequestID: rh.getRequestID(c),
	}

	c.JSON(statusCode, response)
}

// BadRequest 400错误响应
func (rh *ResponseHelper) BadRequest(c *gin.Context, message string, details ...string) {
	rh.Error(c, http.StatusBadRequest, ErrorBadRequest, message, details...)
}

// NotFound 404错误响应
func (rh *ResponseHelper) NotFound(c *gin.Context, message string, details ...string) {
	rh.Error(c, http.StatusNotFound, ErrorNotFound, message, details...)
}

// InternalError 500错误响应
func (rh *ResponseHelper) InternalError(c *gin.Context, message string, details ...string) {
	rh.Error(c, http.StatusInternalServerError, ErrorInternalError, message, details...)
}

// AppError 根据应用错误类型映射HTTP状态码与错误代码
// schema/传输错误说明上游模型行为异常，统一映射为 502；
// 服务端配置错误映射为 500；输入校验错误映射为 400
func (rh *ResponseHelper) AppError(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	code := ErrorInternalError
	status := http.StatusInternalServerError

	if e, ok := err.(*apperrors.AppError); ok {
		appErr = e
	} else {
		rh.Error(c, status, code, err.Error())
		return
	}

	switch appErr.Type {
	case apperrors.ErrorTypeValidation:
		status, code = http.StatusBadRequest, ErrorBadRequest
	case apperrors.ErrorTypeNotFound:
		status, code = http.StatusNotFound, ErrorNotFound
	case apperrors.ErrorTypeAnalysisSchema:
		status, code = http.StatusBadGateway, ErrorAnalysisSchema
	case apperrors.ErrorTypeEnhancementSchema:
		status, code = http.StatusBadGateway, ErrorEnhancementSchema
	case apperrors.ErrorTypeTransport:
		status, code = http.StatusBadGateway, ErrorTransport
	case apperrors.ErrorTypeConfiguration:
		status, code = http.StatusInternalServerError, ErrorConfiguration
	}

	rh.Error(c, status, code, appErr.Message)
}

// getRequestID 获取请求ID
func (rh *ResponseHelper) getRequestID(c *gin.Context) string {
	if requestID := c.GetString("request_id"); requestID != "" {
		return requestID
	}
	return ""
}
