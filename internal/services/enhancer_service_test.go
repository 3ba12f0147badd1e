// internal/services/enhancer_service_test.go
package services

import (
	"context"
	"testing"

	apperrors "github.com/alexmm3/grokvalidator/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnhanceNeutralSuccess(t *testing.T) {
	provider := &mockProvider{responses: []mockResponse{
		{text: enhancementJSON("A slow dolly shot follows two friends strolling along the shore.", false),
			promptTokens: 120, outputTokens: 80},
	}}
	enhancer := newTestEnhancer(t, provider)

	result, cost, details, err := enhancer.Enhance(context.Background(), EnhanceRequest{
		Kind:        EnhancerNeutral,
		UserPrompt:  "make them walk",
		Description: "two friends on a beach",
		PeopleCount: 2,
	})
	require.NoError(t, err)

	assert.Contains(t, result.Prompt, "dolly shot")
	assert.False(t, result.NSFW)
	assert.Equal(t, "text-model", cost.Model)
	assert.Equal(t, 200, cost.TotalTokens)
	require.NotNil(t, details)
	require.Len(t, details.Request.Messages, 2)
	assert.Equal(t, RoleSystem, details.Request.Messages[0].Role)
}

// people_count 只转发给成人变体
func TestEnhanceMessagePeopleCountOnlyForAdult(t *testing.T) {
	neutral := buildEnhanceMessage(EnhanceRequest{
		Kind:        EnhancerNeutral,
		UserPrompt:  "animate this",
		Description: "a crowded square",
		PeopleCount: 7,
	})
	assert.NotContains(t, neutral, "People count")
	assert.Contains(t, neutral, "- Description: a crowded square")
	assert.Contains(t, neutral, "User's original prompt:\nanimate this")

	adult := buildEnhanceMessage(EnhanceRequest{
		Kind:        EnhancerAdult,
		UserPrompt:  "animate this",
		Description: "a crowded square",
		PeopleCount: 7,
	})
	assert.Contains(t, adult, "- People count: 7")
}

// 续写上下文携带上一片段的提示词与时间区间
func TestEnhanceMessageContinuation(t *testing.T) {
	withoutContinuation := buildEnhanceMessage(EnhanceRequest{
		Kind:        EnhancerNeutral,
		UserPrompt:  "keep going",
		Description: "a runner on a track",
	})
	assert.NotContains(t, withoutContinuation, "Previous Fragment")

	withContinuation := buildEnhanceMessage(EnhanceRequest{
		Kind:        EnhancerNeutral,
		UserPrompt:  "keep going",
		Description: "a runner on a track",
		Continuation: &ContinuationContext{
			Prompt:    "The runner bursts off the starting blocks.",
			TimeRange: "0-5 sec",
		},
	})
	assert.Contains(t, withContinuation, "--- Previous Fragment (0-5 sec) ---")
	assert.Contains(t, withContinuation, `Enhanced prompt used: "The runner bursts off the starting blocks."`)
	assert.Contains(t, withContinuation, "Advance the action naturally")
}

func TestEnhanceSchemaValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"缺prompt", `{"nsfw":false}`},
		{"缺nsfw", `{"prompt":"a scene"}`},
		{"prompt为空白", `{"prompt":"   ","nsfw":false}`},
		{"非JSON响应", "here is your enhanced prompt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &mockProvider{responses: []mockResponse{
				{text: tt.body, promptTokens: 10, outputTokens: 10},
			}}
			enhancer := newTestEnhancer(t, provider)

			_, _, _, err := enhancer.Enhance(context.Background(), EnhanceRequest{
				Kind:        EnhancerNeutral,
				UserPrompt:  "prompt",
				Description: "a scene",
			})
			require.Error(t, err)
			assert.True(t, apperrors.IsEnhancementSchemaError(err), "expected enhancement schema error, got %v", err)
		})
	}
}

func TestEnhanceUnknownKind(t *testing.T) {
	provider := &mockProvider{}
	enhancer := newTestEnhancer(t, provider)

	_, _, _, err := enhancer.Enhance(context.Background(), EnhanceRequest{
		Kind:       EnhancerKind("agent9"),
		UserPrompt: "prompt",
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsConfigurationError(err))
	assert.Zero(t, provider.callCount())
}
