// internal/api/handlers.go
package api

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/alexmm3/grokvalidator/internal/config"
	"github.com/alexmm3/grokvalidator/internal/logging"
	"github.com/alexmm3/grokvalidator/internal/services"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler API处理器，只持有从容器获取的服务
type Handler struct {
	pipelineService *services.PipelineService
	configService   *services.ConfigService
	response        *ResponseHelper
}

// NewHandler 创建API处理器
func NewHandler(pipelineService *services.PipelineService, configService *services.ConfigService) *Handler {
	return &Handler{
		pipelineService: pipelineService,
		configService:   configService,
		response:        NewResponseHelper(),
	}
}

// RunPipeline 主流水线入口
//
// 接收 multipart 表单：
//   - image:    图像文件（JPEG/PNG）
//   - prompt:   用户提示词
//   - duration: 视频时长秒数（可选，缺省取配置的默认时长）
//
// 返回分析结果、路由决策、各片段的增强提示词与费用汇总；
// 被安全门拦截时返回 200 且 blocked=true——拦截是合法终态，不是错误
func (h *Handler) RunPipeline(c *gin.Context) {
	cfg := config.GetCurrentConfig()

	fileHeader, err := c.FormFile("image")
	if err != nil {
		h.response.Error(c, http.StatusBadRequest, ErrorFileUploadFailed, "未提供图像文件")
		return
	}

	prompt := strings.TrimSpace(c.PostForm("prompt"))
	if prompt == "" {
		h.response.BadRequest(c, "未提供提示词")
		return
	}

	duration := cfg.DefaultDuration
	if raw := c.PostForm("duration"); raw != "" {
		duration, err = strconv.Atoi(raw)
		if err != nil {
			h.response.BadRequest(c, "duration 必须是整数")
			return
		}
	}
	if !cfg.SupportsDuration(duration) {
		h.response.BadRequest(c, "不支持的视频时长", "允许的时长见 /api/config")
		return
	}

	contentType := fileHeader.Header.Get("Content-Type")
	if !cfg.AllowsImageType(contentType) {
		h.response.Error(c, http.StatusBadRequest, ErrorFileInvalid,
			"不支持的图像类型: "+contentType)
		return
	}

	if fileHeader.Size > cfg.MaxImageSizeBytes {
		h.response.Error(c, http.StatusBadRequest, ErrorFileInvalid, "图像超出大小上限")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.response.Error(c, http.StatusBadRequest, ErrorFileUploadFailed, "读取上传文件失败")
		return
	}
	defer file.Close()

	imageData, err := io.ReadAll(io.LimitReader(file, cfg.MaxImageSizeBytes+1))
	if err != nil {
		h.response.Error(c, http.StatusBadRequest, ErrorFileUploadFailed, "读取上传文件失败")
		return
	}
	if int64(len(imageData)) > cfg.MaxImageSizeBytes {
		h.response.Error(c, http.StatusBadRequest, ErrorFileInvalid, "图像超出大小上限")
		return
	}

	result, err := h.pipelineService.Run(c.Request.Context(), services.RunInput{
		ImageData:   imageData,
		ContentType: contentType,
		Prompt:      prompt,
		Duration:    duration,
	})
	if err != nil {
		logging.GetLogger().Error("流水线运行失败",
			zap.String("request_id", c.GetString("request_id")),
			zap.Error(err),
		)
		h.response.AppError(c, err)
		return
	}

	h.response.Success(c, result)
}

// GetResult 返回最近一次运行结果
func (h *Handler) GetResult(c *gin.Context) {
	result := h.pipelineService.LatestResult()
	if result == nil {
		h.response.Error(c, http.StatusNotFound, ErrorNoResult,
			"暂无结果，请先运行流水线")
		return
	}
	h.response.Success(c, result)
}

// GetConfig 返回脱敏后的运行时配置
func (h *Handler) GetConfig(c *gin.Context) {
	h.response.Success(c, h.configService.GetSettings())
}

// UpdateLLMConfig 更新LLM提供者配置
func (h *Handler) UpdateLLMConfig(c *gin.Context) {
	var req struct {
		Provider string            `json:"provider" binding:"required"`
		Config   map[string]string `json:"config" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		h.response.Error(c, http.StatusBadRequest, ErrorLLMConfigInvalid, "请求格式错误", err.Error())
		return
	}

	if err := h.configService.UpdateLLMSettings(req.Provider, req.Config); err != nil {
		h.response.AppError(c, err)
		return
	}

	h.response.Success(c, h.configService.GetSettings(), "LLM配置已更新")
}

// TestLLMConnection 测试当前LLM提供者可达性
func (h *Handler) TestLLMConnection(c *gin.Context) {
	if err := h.configService.TestConnection(c.Request.Context()); err != nil {
		h.response.Error(c, http.StatusBadGateway, ErrorConnectionFailed, "连接测试失败", err.Error())
		return
	}
	h.response.Success(c, gin.H{"status": "ok"}, "连接正常")
}

// HealthCheck 健康检查
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
