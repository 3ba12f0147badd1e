// internal/services/pipeline_service.go
package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	apperrors "github.com/alexmm3/grokvalidator/internal/errors"
	"github.com/alexmm3/grokvalidator/internal/logging"
	"github.com/alexmm3/grokvalidator/internal/metrics"
	"github.com/alexmm3/grokvalidator/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// demoNote 片段2起复用同一张上传图。生产环境应换用上一段视频的末帧作为首帧
const demoNote = "DEMO MODE: Using same uploaded image. " +
	"PRODUCTION: Use last frame of previous video fragment as first frame."

// RunInput 一次流水线运行的输入
type RunInput struct {
	ImageData   []byte
	ContentType string
	Prompt      string
	Duration    int // 秒，必须在支持列表内
}

// PipelineOptions 时长与片段配置（由配置层注入，运行期间只读）
type PipelineOptions struct {
	VideoDurations []int
	FragmentLength int
	TrackCosts     bool
}

// PipelineService 驱动整条流水线：
//
//	ANALYZE → ROUTE → ENHANCE(0..N-1) → DONE / BLOCKED
//
// 单趟推进，不回溯。一次运行内各阶段严格串行（片段 i 的续写
// 上下文依赖片段 i-1 的输出），不同运行之间完全独立，可并发。
// 任一组件出错则整次运行中止，不返回部分片段列表；
// 这里不做任何自动重试
type PipelineService struct {
	analyzerService *AnalyzerService
	routingEngine   *RoutingEngine
	enhancerService *EnhancerService
	opts            PipelineOptions

	// 最近一次结果，仅保存在进程内存（无数据库）
	latestMutex  sync.RWMutex
	latestResult *models.PipelineResult
}

// NewPipelineService 创建流水线服务
func NewPipelineService(analyzerService *AnalyzerService, routingEngine *RoutingEngine, enhancerService *EnhancerService, opts PipelineOptions) (*PipelineService, error) {
	if opts.FragmentLength <= 0 {
		return nil, apperrors.NewConfigurationError(
			fmt.Sprintf("片段长度必须为正整数: %d", opts.FragmentLength), nil)
	}
	for _, d := range opts.VideoDurations {
		if d <= 0 || d%opts.FragmentLength != 0 {
			return nil, apperrors.NewConfigurationError(
				fmt.Sprintf("视频时长 %d 非法：必须为正且能被片段长度 %d 整除", d, opts.FragmentLength), nil)
		}
	}

	return &PipelineService{
		analyzerService: analyzerService,
		routingEngine:   routingEngine,
		enhancerService: enhancerService,
		opts:            opts,
	}, nil
}

// SupportedDurations 返回支持的时长列表副本
func (s *PipelineService) SupportedDurations() []int {
	durations := make([]int, len(s.opts.VideoDurations))
	copy(durations, s.opts.VideoDurations)
	return durations
}

// Run 执行一次完整的流水线运行
// 被安全门拦截不是错误：返回 Blocked=true 的结果和 nil error
func (s *PipelineService) Run(ctx context.Context, input RunInput) (*models.PipelineResult, error) {
	logger := logging.GetLogger()
	started := time.Now()

	if !s.supportsDuration(input.Duration) {
		return nil, apperrors.NewConfigurationError(
			fmt.Sprintf("不支持的视频时长: %d（允许: %v）", input.Duration, s.opts.VideoDurations), nil)
	}

	numFragments := input.Duration / s.opts.FragmentLength
	runID := uuid.NewString()

	logger.Info("流水线启动",
		zap.String("run_id", runID),
		zap.Int("duration", input.Duration),
		zap.Int("num_fragments", numFragments),
	)

	// =================================================================
	// 阶段 ANALYZE：图像分析只执行一次，结果在所有片段间共享
	// =================================================================
	analysis, analysisCost, analysisDetails, err := s.analyzerService.Analyze(
		ctx, input.ImageData, input.ContentType, input.Prompt)
	if err != nil {
		metrics.GetCollector().RecordPipelineRun("error", time.Since(started), 0)
		return nil, err
	}

	costs := &models.CostSummary{
		Analysis:  analysisCost,
		Fragments: []models.CostInfo{},
	}
	costs.Total.AddCost(*analysisCost)

	// =================================================================
	// 阶段 ROUTE：路由决策只计算一次，之后只读
	// =================================================================
	routing := s.routingEngine.Decide(*analysis)

	logger.Info("路由决策",
		zap.String("run_id", runID),
		zap.String("agent", routing.Agent),
		zap.String("reason", routing.Reason),
	)

	result := &models.PipelineResult{
		RunID:        runID,
		Duration:     input.Duration,
		NumFragments: numFragments,
		Analysis:     *analysis,
		Details:      analysisDetails,
		Routing:      routing,
		Fragments:    []models.Fragment{},
	}
	if s.opts.TrackCosts {
		result.Costs = costs
	}

	// 阶段 BLOCKED：安全门拦截是合法的终态，不产生任何片段，
	// 也不发起任何增强调用
	if routing.Agent == AgentBlocked {
		result.Blocked = true
		result.BlockedReason = routing.Reason
		s.storeLatest(result)
		metrics.GetCollector().RecordPipelineRun("blocked", time.Since(started), 0)
		logger.Info("流水线被安全门拦截",
			zap.String("run_id", runID),
			zap.String("reason", routing.Reason),
		)
		return result, nil
	}

	// =================================================================
	// 阶段 ENHANCE(i)：整个运行固定使用路由选中的同一个变体
	// =================================================================
	kind := EnhancerKind(routing.Agent)

	for i := 0; i < numFragments; i++ {
		timeStart := i * s.opts.FragmentLength
		timeEnd := (i + 1) * s.opts.FragmentLength
		timeRange := fmt.Sprintf("%d-%d sec", timeStart, timeEnd)

		// 片段 i>0 按值读取片段 i-1 的增强提示词作为续写上下文
		var continuation *ContinuationContext
		if i > 0 {
			prev := result.Fragments[len(result.Fragments)-1]
			continuation = &ContinuationContext{
				Prompt:    prev.Result.Prompt,
				TimeRange: prev.TimeRange,
			}
		}

		enhancement, cost, details, err := s.enhancerService.Enhance(ctx, EnhanceRequest{
			Kind:         kind,
			UserPrompt:   input.Prompt,
			Description:  analysis.Description,
			PeopleCount:  analysis.PeopleCount,
			Continuation: continuation,
		})
		if err != nil {
			metrics.GetCollector().RecordPipelineRun("error", time.Since(started), 0)
			return nil, err
		}

		fragment := models.Fragment{
			Index:     i,
			TimeStart: timeStart,
			TimeEnd:   timeEnd,
			TimeRange: timeRange,
			AgentUsed: routing.Agent,
			Result:    *enhancement,
			Details:   details,
			Usage: models.TokenUsage{
				PromptTokens:     cost.InputTokens,
				CompletionTokens: cost.OutputTokens,
				TotalTokens:      cost.TotalTokens,
			},
			Cost: *cost,
		}
		if i > 0 {
			fragment.DemoNote = demoNote
		}

		result.Fragments = append(result.Fragments, fragment)
		costs.Fragments = append(costs.Fragments, *cost)
		costs.Total.AddCost(*cost)
	}

	s.storeLatest(result)
	metrics.GetCollector().RecordPipelineRun("done", time.Since(started), numFragments)

	logger.Info("流水线完成",
		zap.String("run_id", runID),
		zap.Int("fragments", len(result.Fragments)),
		zap.Float64("total_cost_usd", costs.Total.TotalCostUSD),
		zap.Int("total_tokens", costs.Total.TotalTokens),
	)

	return result, nil
}

// LatestResult 返回最近一次运行结果；尚无结果时返回 nil
func (s *PipelineService) LatestResult() *models.PipelineResult {
	s.latestMutex.RLock()
	defer s.latestMutex.RUnlock()
	return s.latestResult
}

func (s *PipelineService) storeLatest(result *models.PipelineResult) {
	s.latestMutex.Lock()
	defer s.latestMutex.Unlock()
	s.latestResult = result
}

func (s *PipelineService) supportsDuration(duration int) bool {
	for _, d := range s.opts.VideoDurations {
		if d == duration {
			return true
		}
	}
	return false
}
