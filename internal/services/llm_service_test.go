// internal/services/llm_service_test.go
package services

import (
	"context"
	"errors"
	"testing"

	apperrors "github.com/alexmm3/grokvalidator/internal/errors"
	"github.com/alexmm3/grokvalidator/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanJSONString(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"纯JSON", `{"a":1}`, `{"a":1}`},
		{"Markdown围栏", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"前置说明文字", "Here is the result: {\"a\":1}", `{"a":1}`},
		{"后置说明文字", "{\"a\":1} hope this helps", `{"a":1}`},
		{"数组", "result: [1,2,3] done", `[1,2,3]`},
		{"嵌套对象", `{"a":{"b":2}}`, `{"a":{"b":2}}`},
		{"字符串含大括号", `{"a":"{not a brace}"}`, `{"a":"{not a brace}"}`},
		{"空字符串", "", ""},
		{"无JSON内容", "no json here", "no json here"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanJSONString(tt.input))
		})
	}
}

func TestCreateStructuredCompletion(t *testing.T) {
	provider := &mockProvider{responses: []mockResponse{
		{text: "```json\n{\"value\":42}\n```", promptTokens: 10, outputTokens: 5},
	}}
	service := newTestLLMService(provider)

	var out struct {
		Value int `json:"value"`
	}
	resp, err := service.CreateStructuredCompletion(context.Background(), llm.CompletionRequest{
		Prompt: "count",
		Model:  "text-model",
	}, &out)
	require.NoError(t, err)

	assert.Equal(t, 42, out.Value)
	assert.Equal(t, 10, resp.PromptTokens)
	assert.Equal(t, 5, resp.OutputTokens)

	// 结构化调用强制 json_object 响应格式
	assert.True(t, provider.requestAt(0).JSONResponse)
}

func TestCreateStructuredCompletionSchemaMismatch(t *testing.T) {
	provider := &mockProvider{responses: []mockResponse{
		{text: "not json at all", promptTokens: 10, outputTokens: 5},
	}}
	service := newTestLLMService(provider)

	var out struct{}
	resp, err := service.CreateStructuredCompletion(context.Background(), llm.CompletionRequest{
		Prompt: "count",
	}, &out)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSchemaMismatch))
	// token用量仍需返回，便于调用方记录
	require.NotNil(t, resp)
	assert.Equal(t, 10, resp.PromptTokens)
}

func TestCreateStructuredCompletionTransportError(t *testing.T) {
	provider := &mockProvider{responses: []mockResponse{
		{err: errors.New("dial tcp: connection refused")},
	}}
	service := newTestLLMService(provider)

	var out struct{}
	_, err := service.CreateStructuredCompletion(context.Background(), llm.CompletionRequest{}, &out)
	require.Error(t, err)
	assert.True(t, apperrors.IsTransportError(err))
}

func TestCreateStructuredCompletionNotReady(t *testing.T) {
	service := NewEmptyLLMService()
	assert.False(t, service.IsReady())

	var out struct{}
	_, err := service.CreateStructuredCompletion(context.Background(), llm.CompletionRequest{}, &out)
	require.Error(t, err)
	assert.True(t, apperrors.IsConfigurationError(err))
	assert.True(t, errors.Is(err, ErrLLMNotReady))
}

func TestSetProviderMarksReady(t *testing.T) {
	service := NewEmptyLLMService()
	service.SetProvider(&mockProvider{}, "mock")

	assert.True(t, service.IsReady())
	assert.Equal(t, "mock", service.GetProviderName())
	assert.Equal(t, "ready", service.GetReadyState())
}
