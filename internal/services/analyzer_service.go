// internal/services/analyzer_service.go
package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	apperrors "github.com/alexmm3/grokvalidator/internal/errors"
	"github.com/alexmm3/grokvalidator/internal/llm"
	"github.com/alexmm3/grokvalidator/internal/logging"
	"github.com/alexmm3/grokvalidator/internal/metrics"
	"github.com/alexmm3/grokvalidator/internal/models"
	"go.uber.org/zap"
)

// AnalyzerOptions 图像分析的运行参数（由配置层注入）
type AnalyzerOptions struct {
	Model             string   // 必须支持视觉输入
	ImageDetail       string   // high / low
	MaxImageSizeBytes int64
	AllowedImageTypes []string
	BaseURL           string // 仅用于请求快照
}

// AnalyzerService 是 Agent 1：分析上传图像与用户提示词，
// 提取 people_count / minor_under_16 / nsfw / description 四个字段
// 四字段校验是严格的：缺字段、枚举越界、类型不符都按分析错误上抛，
// 绝不落默认值——下游安全门依赖这些字段真实有效
type AnalyzerService struct {
	llmService    *LLMService
	costService   *CostService
	promptService *PromptService
	opts          AnalyzerOptions
}

// NewAnalyzerService 创建图像分析服务
func NewAnalyzerService(llmService *LLMService, costService *CostService, promptService *PromptService, opts AnalyzerOptions) *AnalyzerService {
	return &AnalyzerService{
		llmService:    llmService,
		costService:   costService,
		promptService: promptService,
		opts:          opts,
	}
}

// rawAnalysis 用指针字段区分"缺失"与"零值"
type rawAnalysis struct {
	PeopleCount  *int    `json:"people_count"`
	MinorUnder16 *string `json:"minor_under_16"`
	NSFW         *bool   `json:"nsfw"`
	Description  *string `json:"description"`
}

// Analyze 执行一次图像分析
// 一次运行只调用一次：分析结果在所有片段之间共享
func (s *AnalyzerService) Analyze(ctx context.Context, imageData []byte, contentType, userPrompt string) (*models.AnalysisResult, *models.CostInfo, *models.RequestDetails, error) {
	if err := s.validateImage(imageData, contentType); err != nil {
		return nil, nil, nil, err
	}

	systemPrompt, err := s.promptService.GetAgent1Prompt()
	if err != nil {
		return nil, nil, nil, err
	}

	imageBase64 := base64.StdEncoding.EncodeToString(imageData)

	// 文本部分必须同时提交用户原始提示词：
	// 即使图像本身无害，提示词也可能让 nsfw 判定翻转为 true
	userText := fmt.Sprintf(
		"Analyze this image and provide the JSON output as specified.\n\n"+
			"User's prompt for the video to be generated from this image:\n%s\n\n"+
			"Consider BOTH the image content and the prompt text when deciding the nsfw field.",
		userPrompt,
	)

	req := llm.CompletionRequest{
		SystemPrompt: systemPrompt,
		Prompt:       userText,
		Model:        s.opts.Model,
		Temperature:  0.1,
		Images: []llm.ImagePart{
			{
				MimeType: contentType,
				Base64:   imageBase64,
				Detail:   s.opts.ImageDetail,
			},
		},
	}

	logging.GetLogger().Debug("agent1 调用",
		zap.String("model", s.opts.Model),
		zap.String("image_type", contentType),
		zap.String("detail", s.opts.ImageDetail),
	)

	var raw rawAnalysis
	resp, err := s.llmService.CreateStructuredCompletion(ctx, req, &raw)
	if err != nil {
		if apperrors.IsTransportError(err) || apperrors.IsConfigurationError(err) {
			metrics.GetCollector().RecordLLMCall("agent1", s.opts.Model, "error", 0, 0, 0)
			return nil, nil, nil, err
		}
		// 响应无法解析为合法JSON同样是分析输出格式问题
		metrics.GetCollector().RecordLLMCall("agent1", s.opts.Model, "schema_error", 0, 0, 0)
		return nil, nil, nil, apperrors.NewAnalysisSchemaError("图像分析输出不是合法的结构化数据", err)
	}

	result, err := validateAnalysis(raw)
	if err != nil {
		metrics.GetCollector().RecordLLMCall("agent1", s.opts.Model, "schema_error", resp.PromptTokens, resp.OutputTokens, 0)
		return nil, nil, nil, err
	}

	cost, err := s.costService.Estimate(s.opts.Model, resp.PromptTokens, resp.OutputTokens)
	if err != nil {
		return nil, nil, nil, err
	}

	metrics.GetCollector().RecordLLMCall("agent1", s.opts.Model, "ok", resp.PromptTokens, resp.OutputTokens, cost.TotalCostUSD)

	details := s.buildDetails(req, resp, result, len(imageBase64), imageBase64)

	return result, &cost, details, nil
}

// validateImage 校验上传图像的类型与大小
func (s *AnalyzerService) validateImage(imageData []byte, contentType string) error {
	allowed := false
	ct := strings.ToLower(strings.TrimSpace(contentType))
	for _, t := range s.opts.AllowedImageTypes {
		if t == ct {
			allowed = true
			break
		}
	}
	if !allowed {
		return apperrors.NewValidationError(
			fmt.Sprintf("不支持的图像类型: %s（允许: %s）", contentType, strings.Join(s.opts.AllowedImageTypes, ", ")), nil)
	}

	if int64(len(imageData)) > s.opts.MaxImageSizeBytes {
		maxMB := s.opts.MaxImageSizeBytes / (1024 * 1024)
		return apperrors.NewValidationError(
			fmt.Sprintf("图像过大，上限 %d MiB", maxMB), nil)
	}

	if len(imageData) == 0 {
		return apperrors.NewValidationError("图像内容为空", nil)
	}

	return nil
}

// validateAnalysis 严格校验四字段结构
func validateAnalysis(raw rawAnalysis) (*models.AnalysisResult, error) {
	var missing []string
	if raw.PeopleCount == nil {
		missing = append(missing, "people_count")
	}
	if raw.MinorUnder16 == nil {
		missing = append(missing, "minor_under_16")
	}
	if raw.NSFW == nil {
		missing = append(missing, "nsfw")
	}
	if raw.Description == nil {
		missing = append(missing, "description")
	}
	if len(missing) > 0 {
		return nil, apperrors.NewAnalysisSchemaError(
			fmt.Sprintf("图像分析输出缺少必填字段: %s", strings.Join(missing, ", ")), nil)
	}

	if *raw.PeopleCount < 0 {
		return nil, apperrors.NewAnalysisSchemaError(
			fmt.Sprintf("people_count 不能为负数: %d", *raw.PeopleCount), nil)
	}

	minor := models.MinorStatus(*raw.MinorUnder16)
	if !minor.Valid() {
		return nil, apperrors.NewAnalysisSchemaError(
			fmt.Sprintf("minor_under_16 取值非法: %q（允许: yes/no/unclear）", *raw.MinorUnder16), nil)
	}

	return &models.AnalysisResult{
		PeopleCount:  *raw.PeopleCount,
		MinorUnder16: minor,
		NSFW:         *raw.NSFW,
		Description:  *raw.Description,
	}, nil
}

// buildDetails 构造调试用的请求/响应快照，图像数据截断
func (s *AnalyzerService) buildDetails(req llm.CompletionRequest, resp *llm.CompletionResponse, parsed *models.AnalysisResult, b64Len int, imageBase64 string) *models.RequestDetails {
	truncated := imageBase64
	if len(truncated) > 50 {
		truncated = truncated[:50]
	}
	truncatedURL := fmt.Sprintf("data:%s;base64,%s...(%d chars total)", req.Images[0].MimeType, truncated, b64Len)

	return &models.RequestDetails{
		Request: models.RequestSnapshot{
			Endpoint: s.opts.BaseURL + "/chat/completions",
			Parameters: map[string]interface{}{
				"model":           req.Model,
				"response_format": map[string]string{"type": "json_object"},
				"stream":          false,
			},
			Messages: []models.MessageSnapshot{
				{Role: RoleSystem, Content: req.SystemPrompt},
				{
					Role: RoleUser,
					Content: []map[string]interface{}{
						{
							"type": "image_url",
							"image_url": map[string]interface{}{
								"url":    truncatedURL,
								"detail": req.Images[0].Detail,
							},
						},
						{"type": "text", "text": req.Prompt},
					},
				},
			},
		},
		Response: models.ResponseSnapshot{
			RawContent: resp.Text,
			Parsed:     parsed,
			Usage: models.TokenUsage{
				PromptTokens:     resp.PromptTokens,
				CompletionTokens: resp.OutputTokens,
				TotalTokens:      resp.PromptTokens + resp.OutputTokens,
			},
		},
	}
}
