// internal/api/error_codes.go
package api

// API错误代码常量
const (
	// 通用错误
	ErrorBadRequest    = "BAD_REQUEST"
	ErrorNotFound      = "NOT_FOUND"
	ErrorInternalError = "INTERNAL_ERROR"

	// 流水线相关错误
	ErrorAnalysisSchema    = "ANALYSIS_SCHEMA_ERROR"
	ErrorEnhancementSchema = "ENHANCEMENT_SCHEMA_ERROR"
	ErrorTransport         = "TRANSPORT_ERROR"
	ErrorConfiguration     = "CONFIGURATION_ERROR"

	// 文件相关错误
	ErrorFileUploadFailed = "FILE_UPLOAD_FAILED"
	ErrorFileInvalid      = "FILE_INVALID"

	// LLM服务相关错误
	ErrorLLMServiceUnavailable = "LLM_SERVICE_UNAVAILABLE"
	ErrorLLMConfigInvalid      = "LLM_CONFIG_INVALID"
	ErrorConnectionFailed      = "CONNECTION_FAILED"

	// 结果相关
	ErrorNoResult = "NO_RESULT"
)
