// internal/services/cost_service.go
package services

import (
	"fmt"
	"math"

	apperrors "github.com/alexmm3/grokvalidator/internal/errors"
	"github.com/alexmm3/grokvalidator/internal/models"
)

// CostService 按静态定价表把 token 用量换算成美元费用
// 纯计算，无I/O；定价表在构造时注入，运行期间只读
type CostService struct {
	pricing map[string]models.ModelPricing
}

// NewCostService 创建费用估算服务
func NewCostService(pricing map[string]models.ModelPricing) *CostService {
	table := make(map[string]models.ModelPricing, len(pricing))
	for model, p := range pricing {
		table[model] = p
	}
	return &CostService{pricing: table}
}

// Estimate 计算一次模型调用的费用
// 未知模型视为配置错误；部署方可在定价表中显式配置 "_default"
// 条目以恢复旧版的兜底定价行为
func (s *CostService) Estimate(model string, inputTokens, outputTokens int) (models.CostInfo, error) {
	pricing, ok := s.pricing[model]
	if !ok {
		pricing, ok = s.pricing["_default"]
		if !ok {
			return models.CostInfo{}, apperrors.NewConfigurationError(
				fmt.Sprintf("定价表中没有模型 %q", model), nil)
		}
	}

	inputCost := float64(inputTokens) / 1_000_000 * pricing.InputPerMillion
	outputCost := float64(outputTokens) / 1_000_000 * pricing.OutputPerMillion

	return models.CostInfo{
		Model:         model,
		InputTokens:   inputTokens,
		OutputTokens:  outputTokens,
		TotalTokens:   inputTokens + outputTokens,
		InputCostUSD:  roundUSD(inputCost),
		OutputCostUSD: roundUSD(outputCost),
		TotalCostUSD:  roundUSD(inputCost + outputCost),
		Pricing:       pricing,
	}, nil
}

// HasModel 判断定价表是否覆盖某模型（含 _default 兜底）
func (s *CostService) HasModel(model string) bool {
	if _, ok := s.pricing[model]; ok {
		return true
	}
	_, ok := s.pricing["_default"]
	return ok
}

// roundUSD 保留6位小数（与上游计费口径一致）
func roundUSD(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
