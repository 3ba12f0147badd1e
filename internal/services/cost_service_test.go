// internal/services/cost_service_test.go
package services

import (
	"testing"

	apperrors "github.com/alexmm3/grokvalidator/internal/errors"
	"github.com/alexmm3/grokvalidator/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestCostEstimate(t *testing.T) {
	service := NewCostService(map[string]models.ModelPricing{
		"vision-model": {InputPerMillion: 0.20, OutputPerMillion: 0.50},
	})

	// 1M 输入 + 500K 输出：0.20 + 0.25 = 0.45
	cost, err := service.Estimate("vision-model", 1_000_000, 500_000)
	require.NoError(t, err)

	assert.Equal(t, "vision-model", cost.Model)
	assert.Equal(t, 1_000_000, cost.InputTokens)
	assert.Equal(t, 500_000, cost.OutputTokens)
	assert.Equal(t, 1_500_000, cost.TotalTokens)
	assert.Equal(t, 0.20, cost.InputCostUSD)
	assert.Equal(t, 0.25, cost.OutputCostUSD)
	assert.Equal(t, 0.45, cost.TotalCostUSD)
}

// 小额用量保留6位小数
func TestCostEstimateRounding(t *testing.T) {
	service := NewCostService(map[string]models.ModelPricing{
		"text-model": {InputPerMillion: 0.20, OutputPerMillion: 0.50},
	})

	cost, err := service.Estimate("text-model", 1234, 678)
	require.NoError(t, err)

	// 1234/1M*0.20 = 0.0002468; 678/1M*0.50 = 0.000339
	assert.InDelta(t, 0.000247, cost.InputCostUSD, 1e-9)
	assert.InDelta(t, 0.000339, cost.OutputCostUSD, 1e-9)
}

func TestCostEstimateZeroTokens(t *testing.T) {
	service := NewCostService(testPricing())

	cost, err := service.Estimate("text-model", 0, 0)
	require.NoError(t, err)
	assert.Zero(t, cost.TotalCostUSD)
	assert.Zero(t, cost.TotalTokens)
}

// 未知模型且无 _default 兜底：配置错误
func TestCostEstimateUnknownModel(t *testing.T) {
	service := NewCostService(map[string]models.ModelPricing{
		"vision-model": {InputPerMillion: 0.20, OutputPerMillion: 0.50},
	})

	_, err := service.Estimate("no-such-model", 100, 100)
	require.Error(t, err)
	assert.True(t, apperrors.IsConfigurationError(err))
}

// 定价表显式配置 _default 时未知模型走兜底价
func TestCostEstimateDefaultFallback(t *testing.T) {
	service := NewCostService(map[string]models.ModelPricing{
		"vision-model": {InputPerMillion: 0.20, OutputPerMillion: 0.50},
		"_default":     {InputPerMillion: 1.00, OutputPerMillion: 2.00},
	})

	cost, err := service.Estimate("no-such-model", 1_000_000, 1_000_000)
	require.NoError(t, err)
	assert.Equal(t, 1.00, cost.InputCostUSD)
	assert.Equal(t, 2.00, cost.OutputCostUSD)
	assert.Equal(t, 3.00, cost.TotalCostUSD)
}

func TestCostHasModel(t *testing.T) {
	service := NewCostService(map[string]models.ModelPricing{
		"vision-model": {InputPerMillion: 0.20, OutputPerMillion: 0.50},
	})
	assert.True(t, service.HasModel("vision-model"))
	assert.False(t, service.HasModel("other-model"))

	withDefault := NewCostService(map[string]models.ModelPricing{
		"_default": {InputPerMillion: 0.20, OutputPerMillion: 0.50},
	})
	assert.True(t, withDefault.HasModel("anything"))
}

// 性质检验：费用非负且合计等于两部分之和（6位小数精度内）
func TestCostEstimateProperties(t *testing.T) {
	service := NewCostService(testPricing())

	rapid.Check(t, func(t *rapid.T) {
		inputTokens := rapid.IntRange(0, 10_000_000).Draw(t, "input")
		outputTokens := rapid.IntRange(0, 10_000_000).Draw(t, "output")

		cost, err := service.Estimate("text-model", inputTokens, outputTokens)
		require.NoError(t, err)

		require.GreaterOrEqual(t, cost.InputCostUSD, 0.0)
		require.GreaterOrEqual(t, cost.OutputCostUSD, 0.0)
		require.Equal(t, inputTokens+outputTokens, cost.TotalTokens)
		require.InDelta(t, cost.InputCostUSD+cost.OutputCostUSD, cost.TotalCostUSD, 1e-6)
	})
}
