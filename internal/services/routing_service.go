// internal/services/routing_service.go
package services

import (
	"fmt"
	"strings"

	"github.com/alexmm3/grokvalidator/internal/models"
)

// Agent 标识
const (
	AgentNeutral = "agent2"  // 中性增强
	AgentAdult   = "agent3"  // 成人增强
	AgentBlocked = "blocked" // 被安全门拦截
)

// RoutingEngine 把分析结果映射为路由决策
//
// 决策表（按优先级）：
//
//	nsfw=false            → agent2，不过安全门
//	nsfw=true, minor="no" → agent3，安全门通过
//	nsfw=true, 其他       → blocked，安全门拦截
//
// 安全门只保护成人分支：它的唯一目的是在画面可能出现未成年人时
// 阻止生成成人向内容。中性分支完全绕过安全门——未成年人的非
// 涉性内容（例如生日场景）不拦截，这是既定产品策略而非缺陷。
// 安全门是纯集合比较，绝不回传给模型判断，因此无法被提示词注入。
//
// Decide 是纯函数：无I/O、无可变状态、确定且幂等；
// 对良构的 AnalysisResult 在 3×2 整个定义域上全覆盖，不会出错
type RoutingEngine struct {
	routeToAdultWhenNSFW bool
	gateAllowedValues    []string
}

// NewRoutingEngine 创建路由引擎
// gateAllowedValues 为空时回退为 ["no"]
func NewRoutingEngine(routeToAdultWhenNSFW bool, gateAllowedValues []string) *RoutingEngine {
	if len(gateAllowedValues) == 0 {
		gateAllowedValues = []string{"no"}
	}
	values := make([]string, len(gateAllowedValues))
	copy(values, gateAllowedValues)
	return &RoutingEngine{
		routeToAdultWhenNSFW: routeToAdultWhenNSFW,
		gateAllowedValues:    values,
	}
}

// Decide 计算路由决策
func (e *RoutingEngine) Decide(analysis models.AnalysisResult) models.RoutingDecision {
	if analysis.NSFW && e.routeToAdultWhenNSFW {
		// 成人内容：安全门参与决策
		if !e.gateAllows(string(analysis.MinorUnder16)) {
			failed := false
			return models.RoutingDecision{
				Agent:       AgentBlocked,
				GateApplied: true,
				GatePassed:  &failed,
				Reason: fmt.Sprintf("Adult content blocked: minor_under_16='%s' (requires: %s)",
					analysis.MinorUnder16, strings.Join(e.gateAllowedValues, ", ")),
			}
		}
		passed := true
		return models.RoutingDecision{
			Agent:       AgentAdult,
			GateApplied: true,
			GatePassed:  &passed,
			Reason:      "Adult content allowed: no minors detected",
		}
	}

	// 中性内容：不需要安全门
	return models.RoutingDecision{
		Agent:       AgentNeutral,
		GateApplied: false,
		GatePassed:  nil,
		Reason:      "Neutral content: routed to safe enhancer",
	}
}

func (e *RoutingEngine) gateAllows(minorStatus string) bool {
	for _, allowed := range e.gateAllowedValues {
		if minorStatus == allowed {
			return true
		}
	}
	return false
}
