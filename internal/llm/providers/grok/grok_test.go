// internal/llm/providers/grok/grok_test.go
package grok

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alexmm3/grokvalidator/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvider(t *testing.T, baseURL string) *Provider {
	t.Helper()

	p := &Provider{baseURL: "https://api.x.ai/v1"}
	err := p.Initialize(map[string]string{
		"api_key":  "test-key",
		"base_url": baseURL,
	})
	require.NoError(t, err)
	return p
}

func completionPayload(content string, promptTokens, completionTokens int) map[string]interface{} {
	return map[string]interface{}{
		"id":     "cmpl-1",
		"object": "chat.completion",
		"choices": []map[string]interface{}{
			{
				"index": 0,
				"message": map[string]interface{}{
					"role":    "assistant",
					"content": content,
				},
				"finish_reason": "stop",
			},
		},
		"usage": map[string]interface{}{
			"prompt_tokens":     promptTokens,
			"completion_tokens": completionTokens,
			"total_tokens":      promptTokens + completionTokens,
		},
	}
}

func TestInitializeRequiresAPIKey(t *testing.T) {
	p := &Provider{}
	err := p.Initialize(map[string]string{})
	require.Error(t, err)

	err = p.Initialize(map[string]string{"api_key": ""})
	require.Error(t, err)
}

func TestCompleteTextRequestShape(t *testing.T) {
	var captured map[string]interface{}
	var authHeader string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "POST", r.Method)
		require.Equal(t, "/chat/completions", r.URL.Path)
		authHeader = r.Header.Get("Authorization")

		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		json.NewEncoder(w).Encode(completionPayload(`{"ok":true}`, 120, 30))
	}))
	defer server.Close()

	p := newTestProvider(t, server.URL)

	resp, err := p.CompleteText(context.Background(), llm.CompletionRequest{
		SystemPrompt: "You are an analyzer.",
		Prompt:       "Analyze this image.",
		Model:        "grok-2-vision-1212",
		Temperature:  0.1,
		JSONResponse: true,
		Images: []llm.ImagePart{
			{MimeType: "image/jpeg", Base64: "QUJD", Detail: "low"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "Bearer test-key", authHeader)
	assert.Equal(t, "grok-2-vision-1212", captured["model"])
	assert.Equal(t, false, captured["stream"])

	// 结构化输出要求
	responseFormat, ok := captured["response_format"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "json_object", responseFormat["type"])

	// 消息顺序：system在前，user在后
	messages, ok := captured["messages"].([]interface{})
	require.True(t, ok)
	require.Len(t, messages, 2)

	system := messages[0].(map[string]interface{})
	assert.Equal(t, "system", system["role"])
	assert.Equal(t, "You are an analyzer.", system["content"])

	// user消息为分段内容：先图像（data URL）后文本
	user := messages[1].(map[string]interface{})
	assert.Equal(t, "user", user["role"])
	parts, ok := user["content"].([]interface{})
	require.True(t, ok)
	require.Len(t, parts, 2)

	imagePart := parts[0].(map[string]interface{})
	assert.Equal(t, "image_url", imagePart["type"])
	imageURL := imagePart["image_url"].(map[string]interface{})
	assert.Equal(t, "data:image/jpeg;base64,QUJD", imageURL["url"])
	assert.Equal(t, "low", imageURL["detail"])

	textPart := parts[1].(map[string]interface{})
	assert.Equal(t, "text", textPart["type"])
	assert.Equal(t, "Analyze this image.", textPart["text"])

	// 响应与token用量
	assert.Equal(t, `{"ok":true}`, resp.Text)
	assert.Equal(t, 120, resp.PromptTokens)
	assert.Equal(t, 30, resp.OutputTokens)
	assert.Equal(t, 150, resp.TokensUsed)
	assert.Equal(t, "stop", resp.FinishReason)
}

// 纯文本请求的content是字符串而不是分段数组
func TestCompleteTextPlainText(t *testing.T) {
	var captured map[string]interface{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		json.NewEncoder(w).Encode(completionPayload("enhanced prompt", 50, 20))
	}))
	defer server.Close()

	p := newTestProvider(t, server.URL)

	_, err := p.CompleteText(context.Background(), llm.CompletionRequest{
		SystemPrompt: "You are an enhancer.",
		Prompt:       "Enhance this.",
		Model:        "grok-4-1-fast-non-reasoning",
	})
	require.NoError(t, err)

	messages := captured["messages"].([]interface{})
	user := messages[1].(map[string]interface{})
	content, ok := user["content"].(string)
	require.True(t, ok)
	assert.Equal(t, "Enhance this.", content)

	// 未要求JSON时不得携带response_format
	_, hasFormat := captured["response_format"]
	assert.False(t, hasFormat)
}

func TestCompleteTextUsesDefaultModel(t *testing.T) {
	var captured map[string]interface{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		json.NewEncoder(w).Encode(completionPayload("ok", 1, 1))
	}))
	defer server.Close()

	p := newTestProvider(t, server.URL)

	_, err := p.CompleteText(context.Background(), llm.CompletionRequest{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "grok-4-1-fast-non-reasoning", captured["model"])
}

func TestCompleteTextAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]interface{}{"message": "invalid api key"},
		})
	}))
	defer server.Close()

	p := newTestProvider(t, server.URL)

	_, err := p.CompleteText(context.Background(), llm.CompletionRequest{Prompt: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid api key")
	assert.Contains(t, err.Error(), "401")
}

func TestCompleteTextEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []interface{}{},
			"usage":   map[string]int{"prompt_tokens": 1, "completion_tokens": 0, "total_tokens": 1},
		})
	}))
	defer server.Close()

	p := newTestProvider(t, server.URL)

	_, err := p.CompleteText(context.Background(), llm.CompletionRequest{Prompt: "hi"})
	require.Error(t, err)
}

func TestFetchAvailableModels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "GET", r.Method)
		require.Equal(t, "/models", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]string{
				{"id": "grok-2-vision-1212"},
				{"id": "grok-4"},
			},
		})
	}))
	defer server.Close()

	p := newTestProvider(t, server.URL)

	require.NoError(t, p.FetchAvailableModels(context.Background()))
	assert.Equal(t, []string{"grok-2-vision-1212", "grok-4"}, p.GetSupportedModels())
}

func TestRegisteredInProviderRegistry(t *testing.T) {
	assert.Contains(t, llm.ListProviders(), "grok")

	provider, err := llm.GetProvider("grok", map[string]string{"api_key": "k"})
	require.NoError(t, err)
	assert.Equal(t, "Grok", provider.GetName())
	assert.True(t, strings.HasPrefix(provider.GetSupportedModels()[0], "grok-"))
}
