// internal/services/enhancer_service.go
package services

import (
	"context"
	"fmt"
	"strings"

	apperrors "github.com/alexmm3/grokvalidator/internal/errors"
	"github.com/alexmm3/grokvalidator/internal/llm"
	"github.com/alexmm3/grokvalidator/internal/logging"
	"github.com/alexmm3/grokvalidator/internal/metrics"
	"github.com/alexmm3/grokvalidator/internal/models"
	"go.uber.org/zap"
)

// EnhancerKind 标签式变体：中性/成人两套模板与校验规则二选一，
// 不做继承层次。同一次运行的所有片段使用同一个变体
type EnhancerKind string

const (
	EnhancerNeutral EnhancerKind = AgentNeutral
	EnhancerAdult   EnhancerKind = AgentAdult
)

// ContinuationContext 续写上下文：上一片段的增强提示词及其时间区间
// 按值传入，片段之间不持有相互引用
type ContinuationContext struct {
	Prompt    string
	TimeRange string
}

// EnhanceRequest 一次片段增强的输入
type EnhanceRequest struct {
	Kind         EnhancerKind
	UserPrompt   string
	Description  string // Agent 1 的画面描述
	PeopleCount  int    // 仅成人变体会被写进请求
	Continuation *ContinuationContext
}

// EnhancerOptions 增强服务的运行参数
type EnhancerOptions struct {
	NeutralModel string
	AdultModel   string
	BaseURL      string // 仅用于请求快照
}

// EnhancerService 是 Agent 2/3：把原始提示词改写为可直接
// 送入视频生成器的增强提示词
type EnhancerService struct {
	llmService    *LLMService
	costService   *CostService
	promptService *PromptService
	opts          EnhancerOptions
}

// NewEnhancerService 创建提示词增强服务
func NewEnhancerService(llmService *LLMService, costService *CostService, promptService *PromptService, opts EnhancerOptions) *EnhancerService {
	return &EnhancerService{
		llmService:    llmService,
		costService:   costService,
		promptService: promptService,
		opts:          opts,
	}
}

// rawEnhancement 指针字段用于区分缺失与零值
type rawEnhancement struct {
	Prompt *string `json:"prompt"`
	NSFW   *bool   `json:"nsfw"`
}

// Enhance 执行一次片段增强
func (s *EnhancerService) Enhance(ctx context.Context, req EnhanceRequest) (*models.EnhancementResult, *models.CostInfo, *models.RequestDetails, error) {
	systemPrompt, model, label, err := s.resolveKind(req.Kind)
	if err != nil {
		return nil, nil, nil, err
	}

	userContent := buildEnhanceMessage(req)

	completion := llm.CompletionRequest{
		SystemPrompt: systemPrompt,
		Prompt:       userContent,
		Model:        model,
		Temperature:  0.7,
	}

	fragmentInfo := ""
	if req.Continuation != nil {
		fragmentInfo = " (continuation)"
	}
	logging.GetLogger().Debug(label+" 调用"+fragmentInfo, zap.String("model", model))

	var raw rawEnhancement
	resp, err := s.llmService.CreateStructuredCompletion(ctx, completion, &raw)
	if err != nil {
		if apperrors.IsTransportError(err) || apperrors.IsConfigurationError(err) {
			metrics.GetCollector().RecordLLMCall(string(req.Kind), model, "error", 0, 0, 0)
			return nil, nil, nil, err
		}
		metrics.GetCollector().RecordLLMCall(string(req.Kind), model, "schema_error", 0, 0, 0)
		return nil, nil, nil, apperrors.NewEnhancementSchemaError("增强输出不是合法的结构化数据", err)
	}

	result, err := validateEnhancement(raw)
	if err != nil {
		metrics.GetCollector().RecordLLMCall(string(req.Kind), model, "schema_error", resp.PromptTokens, resp.OutputTokens, 0)
		return nil, nil, nil, err
	}

	cost, err := s.costService.Estimate(model, resp.PromptTokens, resp.OutputTokens)
	if err != nil {
		return nil, nil, nil, err
	}

	metrics.GetCollector().RecordLLMCall(string(req.Kind), model, "ok", resp.PromptTokens, resp.OutputTokens, cost.TotalCostUSD)

	details := &models.RequestDetails{
		Request: models.RequestSnapshot{
			Endpoint: s.opts.BaseURL + "/chat/completions",
			Parameters: map[string]interface{}{
				"model":           model,
				"response_format": map[string]string{"type": "json_object"},
				"stream":          false,
			},
			Messages: []models.MessageSnapshot{
				{Role: RoleSystem, Content: systemPrompt},
				{Role: RoleUser, Content: userContent},
			},
		},
		Response: models.ResponseSnapshot{
			RawContent: resp.Text,
			Parsed:     result,
			Usage: models.TokenUsage{
				PromptTokens:     resp.PromptTokens,
				CompletionTokens: resp.OutputTokens,
				TotalTokens:      resp.PromptTokens + resp.OutputTokens,
			},
		},
	}

	return result, &cost, details, nil
}

// resolveKind 按变体选择模板与模型
func (s *EnhancerService) resolveKind(kind EnhancerKind) (systemPrompt, model, label string, err error) {
	switch kind {
	case EnhancerAdult:
		systemPrompt, err = s.promptService.GetAgent3Prompt()
		return systemPrompt, s.opts.AdultModel, "Agent 3 (Adult)", err
	case EnhancerNeutral:
		systemPrompt, err = s.promptService.GetAgent2Prompt()
		return systemPrompt, s.opts.NeutralModel, "Agent 2 (Neutral)", err
	default:
		return "", "", "", apperrors.NewConfigurationError(
			fmt.Sprintf("未知的增强变体: %q", kind), nil)
	}
}

// buildEnhanceMessage 构造增强请求的user消息
// people_count 只转发给成人变体；存在续写上下文时，要求模型从
// 上一片段结束处推进动作而不是复述——多片段输出的叙事连续性
// 正是由这段上下文保证的，不需要重新分析图像
func buildEnhanceMessage(req EnhanceRequest) string {
	var b strings.Builder

	b.WriteString("Image analysis:\n")
	if req.Kind == EnhancerAdult {
		fmt.Fprintf(&b, "- People count: %d\n", req.PeopleCount)
	}
	fmt.Fprintf(&b, "- Description: %s\n", req.Description)
	b.WriteString("\nUser's original prompt:\n")
	b.WriteString(req.UserPrompt)

	if req.Continuation != nil {
		fmt.Fprintf(&b, "\n\n--- Previous Fragment (%s) ---\n", req.Continuation.TimeRange)
		fmt.Fprintf(&b, "Enhanced prompt used: %q\n\n", req.Continuation.Prompt)
		b.WriteString("Generate the continuation for the next fragment. " +
			"Advance the action naturally from where the previous fragment ended; do not restate it.")
	}

	return b.String()
}

// validateEnhancement 严格校验增强输出
func validateEnhancement(raw rawEnhancement) (*models.EnhancementResult, error) {
	var missing []string
	if raw.Prompt == nil {
		missing = append(missing, "prompt")
	}
	if raw.NSFW == nil {
		missing = append(missing, "nsfw")
	}
	if len(missing) > 0 {
		return nil, apperrors.NewEnhancementSchemaError(
			fmt.Sprintf("增强输出缺少必填字段: %s", strings.Join(missing, ", ")), nil)
	}

	if strings.TrimSpace(*raw.Prompt) == "" {
		return nil, apperrors.NewEnhancementSchemaError("增强输出的 prompt 为空", nil)
	}

	return &models.EnhancementResult{
		Prompt: *raw.Prompt,
		NSFW:   *raw.NSFW,
	}, nil
}
