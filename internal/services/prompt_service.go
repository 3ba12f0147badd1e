// internal/services/prompt_service.go
package services

import (
	"fmt"
	"path/filepath"
	"time"

	apperrors "github.com/alexmm3/grokvalidator/internal/errors"
	"github.com/alexmm3/grokvalidator/internal/storage"
)

// PromptService 负责解析各 Agent 的系统提示词
// 模板从磁盘读取并经文件缓存加速；文件修改后自动重新加载，
// 核心流水线只接收解析完成的模板文本
type PromptService struct {
	promptsDir string
	cache      *storage.FileCacheService

	agent1File string
	agent2File string
	agent3File string
}

// NewPromptService 创建提示词服务
func NewPromptService(promptsDir, agent1File, agent2File, agent3File string) *PromptService {
	return &PromptService{
		promptsDir: promptsDir,
		cache:      storage.NewFileCacheService(16, 30*time.Second),
		agent1File: agent1File,
		agent2File: agent2File,
		agent3File: agent3File,
	}
}

// GetAgent1Prompt 图像分析系统提示词
func (s *PromptService) GetAgent1Prompt() (string, error) {
	return s.load(s.agent1File)
}

// GetAgent2Prompt 中性增强系统提示词
func (s *PromptService) GetAgent2Prompt() (string, error) {
	return s.load(s.agent2File)
}

// GetAgent3Prompt 成人增强系统提示词
func (s *PromptService) GetAgent3Prompt() (string, error) {
	return s.load(s.agent3File)
}

func (s *PromptService) load(file string) (string, error) {
	path := filepath.Join(s.promptsDir, file)
	content, err := s.cache.ReadTextFile(path)
	if err != nil {
		return "", apperrors.NewConfigurationError(
			fmt.Sprintf("提示词模板不可用: %s", file), err)
	}
	if content == "" {
		return "", apperrors.NewConfigurationError(
			fmt.Sprintf("提示词模板为空: %s", file), nil)
	}
	return content, nil
}
