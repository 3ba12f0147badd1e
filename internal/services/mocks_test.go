// internal/services/mocks_test.go
package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/alexmm3/grokvalidator/internal/llm"
	"github.com/alexmm3/grokvalidator/internal/models"
)

// mockResponse 一次预置的模型响应
type mockResponse struct {
	text         string
	promptTokens int
	outputTokens int
	err          error
}

// mockProvider 按调用顺序回放预置响应，并记录收到的每个请求
type mockProvider struct {
	mu        sync.Mutex
	responses []mockResponse
	requests  []llm.CompletionRequest
}

func (m *mockProvider) Initialize(config map[string]string) error { return nil }
func (m *mockProvider) GetName() string                           { return "mock" }
func (m *mockProvider) GetSupportedModels() []string              { return []string{"mock-model"} }
func (m *mockProvider) FetchAvailableModels(ctx context.Context) error {
	return nil
}

func (m *mockProvider) CompleteText(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, req)

	if len(m.responses) == 0 {
		return nil, fmt.Errorf("mock: 没有更多预置响应（第 %d 次调用）", len(m.requests))
	}

	r := m.responses[0]
	m.responses = m.responses[1:]

	if r.err != nil {
		return nil, r.err
	}

	return &llm.CompletionResponse{
		Text:         r.text,
		FinishReason: "stop",
		PromptTokens: r.promptTokens,
		OutputTokens: r.outputTokens,
		TokensUsed:   r.promptTokens + r.outputTokens,
		ModelName:    req.Model,
		ProviderName: "mock",
	}, nil
}

func (m *mockProvider) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

func (m *mockProvider) requestAt(i int) llm.CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[i]
}

// ---------------------------------------------------------------------------
// 测试辅助构造
// ---------------------------------------------------------------------------

func testPricing() map[string]models.ModelPricing {
	return map[string]models.ModelPricing{
		"vision-model": {InputPerMillion: 0.20, OutputPerMillion: 0.50},
		"text-model":   {InputPerMillion: 0.20, OutputPerMillion: 0.50},
	}
}

func newTestLLMService(provider llm.Provider) *LLMService {
	s := NewEmptyLLMService()
	s.SetProvider(provider, "mock")
	return s
}

func newTestPromptService(t *testing.T) *PromptService {
	t.Helper()

	dir := t.TempDir()
	files := map[string]string{
		"agent1.txt": "You are the image analyzer. Reply with a JSON object.",
		"agent2.txt": "You are the neutral enhancer. Reply with a JSON object.",
		"agent3.txt": "You are the adult enhancer. Reply with a JSON object.",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatalf("写入提示词模板失败: %v", err)
		}
	}

	return NewPromptService(dir, "agent1.txt", "agent2.txt", "agent3.txt")
}

func newTestAnalyzer(t *testing.T, provider llm.Provider) *AnalyzerService {
	t.Helper()

	return NewAnalyzerService(
		newTestLLMService(provider),
		NewCostService(testPricing()),
		newTestPromptService(t),
		AnalyzerOptions{
			Model:             "vision-model",
			ImageDetail:       "low",
			MaxImageSizeBytes: 1024 * 1024,
			AllowedImageTypes: []string{"image/jpeg", "image/jpg", "image/png"},
			BaseURL:           "https://api.x.ai/v1",
		})
}

func newTestEnhancer(t *testing.T, provider llm.Provider) *EnhancerService {
	t.Helper()

	return NewEnhancerService(
		newTestLLMService(provider),
		NewCostService(testPricing()),
		newTestPromptService(t),
		EnhancerOptions{
			NeutralModel: "text-model",
			AdultModel:   "text-model",
			BaseURL:      "https://api.x.ai/v1",
		})
}

func newTestPipeline(t *testing.T, provider llm.Provider) *PipelineService {
	t.Helper()

	llmService := newTestLLMService(provider)
	costService := NewCostService(testPricing())
	promptService := newTestPromptService(t)

	analyzer := NewAnalyzerService(llmService, costService, promptService, AnalyzerOptions{
		Model:             "vision-model",
		ImageDetail:       "low",
		MaxImageSizeBytes: 1024 * 1024,
		AllowedImageTypes: []string{"image/jpeg", "image/jpg", "image/png"},
		BaseURL:           "https://api.x.ai/v1",
	})
	routing := NewRoutingEngine(true, []string{"no"})
	enhancer := NewEnhancerService(llmService, costService, promptService, EnhancerOptions{
		NeutralModel: "text-model",
		AdultModel:   "text-model",
		BaseURL:      "https://api.x.ai/v1",
	})

	pipeline, err := NewPipelineService(analyzer, routing, enhancer, PipelineOptions{
		VideoDurations: []int{5, 10},
		FragmentLength: 5,
		TrackCosts:     true,
	})
	if err != nil {
		t.Fatalf("创建流水线服务失败: %v", err)
	}
	return pipeline
}

func analysisJSON(peopleCount int, minor string, nsfw bool, description string) string {
	return fmt.Sprintf(`{"people_count":%d,"minor_under_16":%q,"nsfw":%t,"description":%q}`,
		peopleCount, minor, nsfw, description)
}

func enhancementJSON(prompt string, nsfw bool) string {
	return fmt.Sprintf(`{"prompt":%q,"nsfw":%t}`, prompt, nsfw)
}

// fakeJPEG 一段足够当作上传图像用的字节序列
func fakeJPEG() []byte {
	return []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 0x4A, 0x46, 0x49, 0x46}
}
