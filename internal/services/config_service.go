// internal/services/config_service.go
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/alexmm3/grokvalidator/internal/config"
	apperrors "github.com/alexmm3/grokvalidator/internal/errors"
	"github.com/alexmm3/grokvalidator/internal/llm"
)

// ConfigService 对外暴露运行时配置视图，并负责LLM配置热更新
type ConfigService struct {
	llmService *LLMService
}

// NewConfigService 创建配置服务
func NewConfigService(llmService *LLMService) *ConfigService {
	return &ConfigService{llmService: llmService}
}

// PublicSettings 脱敏后的配置视图（不含密钥）
type PublicSettings struct {
	LLMProvider          string   `json:"llm_provider"`
	BaseURL              string   `json:"base_url"`
	Agent1Model          string   `json:"agent1_model"`
	Agent2Model          string   `json:"agent2_model"`
	Agent3Model          string   `json:"agent3_model"`
	ImageDetail          string   `json:"image_detail"`
	VideoDurations       []int    `json:"video_durations"`
	DefaultDuration      int      `json:"default_duration"`
	FragmentLength       int      `json:"fragment_length"`
	RouteToAdultWhenNSFW bool     `json:"route_to_adult_when_nsfw"`
	GateAllowedValues    []string `json:"gate_allowed_values"`
	MaxImageSizeBytes    int64    `json:"max_image_size_bytes"`
	AllowedImageTypes    []string `json:"allowed_image_types"`
	TrackCosts           bool     `json:"track_costs"`
	APIKeyConfigured     bool     `json:"api_key_configured"`
	LLMReady             bool     `json:"llm_ready"`
}

// GetSettings 返回脱敏配置
func (s *ConfigService) GetSettings() PublicSettings {
	cfg := config.GetCurrentConfig()

	return PublicSettings{
		LLMProvider:          cfg.LLMProvider,
		BaseURL:              cfg.LLMConfig["base_url"],
		Agent1Model:          cfg.Agent1Model,
		Agent2Model:          cfg.Agent2Model,
		Agent3Model:          cfg.Agent3Model,
		ImageDetail:          cfg.ImageDetail,
		VideoDurations:       cfg.VideoDurations,
		DefaultDuration:      cfg.DefaultDuration,
		FragmentLength:       cfg.FragmentLength,
		RouteToAdultWhenNSFW: cfg.RouteToAdultWhenNSFW,
		GateAllowedValues:    cfg.GateAllowedValues,
		MaxImageSizeBytes:    cfg.MaxImageSizeBytes,
		AllowedImageTypes:    cfg.AllowedImageTypes,
		TrackCosts:           cfg.TrackCosts,
		APIKeyConfigured:     cfg.LLMConfig["api_key"] != "",
		LLMReady:             s.llmService.IsReady(),
	}
}

// UpdateLLMSettings 更新提供者配置并重建底层连接
func (s *ConfigService) UpdateLLMSettings(provider string, providerConfig map[string]string) error {
	if provider == "" {
		return apperrors.NewValidationError("未指定LLM提供者", nil)
	}
	if providerConfig["api_key"] == "" {
		return apperrors.NewValidationError("未提供API密钥", nil)
	}

	if err := s.llmService.UpdateProvider(provider, providerConfig); err != nil {
		return apperrors.NewConfigurationError(
			fmt.Sprintf("更新LLM提供者失败: %s", provider), err)
	}

	return config.UpdateLLMConfig(provider, providerConfig)
}

// TestConnection 验证当前提供者可达（拉取模型列表）
func (s *ConfigService) TestConnection(ctx context.Context) error {
	provider := s.llmService.GetProvider()
	if provider == nil {
		return apperrors.NewConfigurationError("LLM提供者未配置", ErrLLMNotReady)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := provider.FetchAvailableModels(ctx); err != nil {
		return apperrors.NewTransportError("连接测试失败", err)
	}
	return nil
}

// AvailableProviders 返回已注册的提供者名称
func (s *ConfigService) AvailableProviders() []string {
	return llm.ListProviders()
}
