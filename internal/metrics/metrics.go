// internal/metrics/metrics.go
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector 流水线与HTTP指标收集器
type Collector struct {
	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// 流水线指标
	pipelineRunsTotal   *prometheus.CounterVec // outcome: done / blocked / error
	pipelineRunDuration prometheus.Histogram
	fragmentsTotal      prometheus.Counter

	// LLM 指标
	llmCallsTotal *prometheus.CounterVec // agent: agent1 / agent2 / agent3
	llmTokensUsed *prometheus.CounterVec // direction: input / output
	llmCostUSD    *prometheus.CounterVec // 按模型累计费用
}

var (
	defaultCollector *Collector
	collectorOnce    sync.Once
)

// GetCollector 获取全局指标收集器
func GetCollector() *Collector {
	collectorOnce.Do(func() {
		defaultCollector = newCollector("grokvalidator")
	})
	return defaultCollector
}

func newCollector(namespace string) *Collector {
	c := &Collector{}

	c.httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	c.pipelineRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_runs_total",
			Help:      "Total number of pipeline runs by outcome",
		},
		[]string{"outcome"},
	)

	c.pipelineRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_run_duration_seconds",
			Help:      "End-to-end pipeline run duration in seconds",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 60},
		},
	)

	c.fragmentsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fragments_enhanced_total",
			Help:      "Total number of enhanced fragments produced",
		},
	)

	c.llmCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_calls_total",
			Help:      "Total number of model invocations by agent and status",
		},
		[]string{"agent", "status"},
	)

	c.llmTokensUsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_tokens_total",
			Help:      "Total tokens consumed by model invocations",
		},
		[]string{"model", "direction"},
	)

	c.llmCostUSD = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_cost_usd_total",
			Help:      "Accumulated model invocation cost in USD",
		},
		[]string{"model"},
	)

	return c
}

// RecordHTTPRequest 记录一次HTTP请求
func (c *Collector) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	c.httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordPipelineRun 记录一次流水线运行结果
func (c *Collector) RecordPipelineRun(outcome string, duration time.Duration, fragments int) {
	c.pipelineRunsTotal.WithLabelValues(outcome).Inc()
	c.pipelineRunDuration.Observe(duration.Seconds())
	if fragments > 0 {
		c.fragmentsTotal.Add(float64(fragments))
	}
}

// RecordLLMCall 记录一次模型调用
func (c *Collector) RecordLLMCall(agent, model, status string, inputTokens, outputTokens int, costUSD float64) {
	c.llmCallsTotal.WithLabelValues(agent, status).Inc()
	if inputTokens > 0 {
		c.llmTokensUsed.WithLabelValues(model, "input").Add(float64(inputTokens))
	}
	if outputTokens > 0 {
		c.llmTokensUsed.WithLabelValues(model, "output").Add(float64(outputTokens))
	}
	if costUSD > 0 {
		c.llmCostUSD.WithLabelValues(model).Add(costUSD)
	}
}
