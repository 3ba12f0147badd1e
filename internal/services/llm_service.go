// internal/services/llm_service.go
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	apperrors "github.com/alexmm3/grokvalidator/internal/errors"
	"github.com/alexmm3/grokvalidator/internal/llm"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

var ErrLLMNotReady = errors.New("llm service not ready")

// ErrSchemaMismatch 模型输出无法解析成期望的结构
// 调用方（分析/增强服务）负责把它映射为对应的 schema 错误类型
var ErrSchemaMismatch = errors.New("llm response does not match expected schema")

// LLMService 提供统一的大语言模型调用接口
// 单次调用无内部状态，不做重试——重试策略（如需要）属于外部协作者
type LLMService struct {
	providerMutex sync.RWMutex
	provider      llm.Provider
	providerName  string
	isReady       bool
	readyState    string
}

// NewLLMService 创建并初始化LLM服务
func NewLLMService(providerName string, providerConfig map[string]string) (*LLMService, error) {
	s := &LLMService{}
	if err := s.UpdateProvider(providerName, providerConfig); err != nil {
		return s, err
	}
	return s, nil
}

// NewEmptyLLMService 创建未配置的LLM服务（密钥稍后通过配置接口提供）
func NewEmptyLLMService() *LLMService {
	return &LLMService{
		isReady:    false,
		readyState: "未配置提供者",
	}
}

// IsReady 服务是否可用
func (s *LLMService) IsReady() bool {
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()
	return s.isReady
}

// GetReadyState 返回当前就绪状态描述
func (s *LLMService) GetReadyState() string {
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()
	return s.readyState
}

// GetProviderName 返回当前提供者名称
func (s *LLMService) GetProviderName() string {
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()
	return s.providerName
}

// GetProvider 返回当前提供者实例
func (s *LLMService) GetProvider() llm.Provider {
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()
	return s.provider
}

// UpdateProvider 切换或重建底层提供者
func (s *LLMService) UpdateProvider(providerName string, providerConfig map[string]string) error {
	provider, err := llm.GetProvider(providerName, providerConfig)

	s.providerMutex.Lock()
	defer s.providerMutex.Unlock()

	if err != nil {
		s.isReady = false
		s.readyState = fmt.Sprintf("提供者初始化失败: %v", err)
		return err
	}

	s.provider = provider
	s.providerName = providerName
	s.isReady = true
	s.readyState = "ready"
	return nil
}

// SetProvider 直接注入提供者实例（测试用）
func (s *LLMService) SetProvider(provider llm.Provider, name string) {
	s.providerMutex.Lock()
	defer s.providerMutex.Unlock()
	s.provider = provider
	s.providerName = name
	s.isReady = provider != nil
	if s.isReady {
		s.readyState = "ready"
	}
}

// CreateStructuredCompletion 执行一次结构化模型调用
// 响应文本经过清洗后反序列化到 outputSchema；
// 返回的 CompletionResponse 携带 token 用量供计费使用
// 传输层/协议层失败返回 transport 错误；解析失败返回 ErrSchemaMismatch
func (s *LLMService) CreateStructuredCompletion(ctx context.Context, req llm.CompletionRequest, outputSchema interface{}) (*llm.CompletionResponse, error) {
	s.providerMutex.RLock()
	if !s.isReady || s.provider == nil {
		state := s.readyState
		s.providerMutex.RUnlock()
		return nil, apperrors.NewConfigurationError(
			fmt.Sprintf("LLM service not ready: %s", state), ErrLLMNotReady)
	}
	provider := s.provider
	s.providerMutex.RUnlock()

	req.JSONResponse = true

	resp, err := provider.CompleteText(ctx, req)
	if err != nil {
		return nil, apperrors.NewTransportError("模型调用失败", err)
	}

	text := cleanJSONString(resp.Text)

	if err := json.Unmarshal([]byte(text), outputSchema); err != nil {
		return resp, fmt.Errorf("%w: %v\nAI return: %s", ErrSchemaMismatch, err, text)
	}

	return resp, nil
}

// 清理JSON字符串，去除前后非JSON内容
var jsonNoiseReplacer = strings.NewReplacer(
	"```json", "",
	"```", "",
	"\uFEFF", "",
	" ", " ",
)

func cleanJSONString(s string) string {
	if s == "" {
		return s
	}

	// 统一替换常见的噪声与Markdown标记
	s = jsonNoiseReplacer.Replace(s)
	s = strings.TrimSpace(s)

	// 查找第一个 { 或 [，将其之前的内容全部丢弃
	start := strings.IndexAny(s, "[{")
	if start == -1 {
		return s
	}

	s = strings.TrimSpace(s[start:])
	if s == "" {
		return s
	}

	isArray := s[0] == '['

	// 简单的括号计数匹配
	balance := 0
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		char := s[i]

		if escaped {
			escaped = false
			continue
		}

		if char == '\\' {
			escaped = true
			continue
		}

		if char == '"' {
			inString = !inString
			continue
		}

		if !inString {
			if isArray {
				if char == '[' {
					balance++
				} else if char == ']' {
					balance--
				}
			} else {
				if char == '{' {
					balance++
				} else if char == '}' {
					balance--
				}
			}

			if balance == 0 {
				// 找到了匹配的结束符
				return strings.TrimSpace(s[:i+1])
			}
		}
	}

	// 没找到匹配的结束符，回退到找最后一个
	end := -1
	if isArray {
		end = strings.LastIndex(s, "]")
	} else {
		end = strings.LastIndex(s, "}")
	}

	if end != -1 {
		return strings.TrimSpace(s[:end+1])
	}

	return strings.TrimSpace(s)
}

// CleanLLMJSONResponse 提供给外部调用的JSON清洗助手
func CleanLLMJSONResponse(raw string) string {
	return cleanJSONString(raw)
}
