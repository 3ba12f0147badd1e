// internal/config/config.go
package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/alexmm3/grokvalidator/internal/models"
	"github.com/joho/godotenv"
)

// 当前配置的单例实例
var (
	currentConfig *AppConfig
	configMutex   sync.RWMutex
	configFile    string
)

// AppConfig 包含应用程序的所有配置
type AppConfig struct {
	// 基础配置
	Port       string `json:"port"`
	XAIAPIKey  string `json:"xai_api_key,omitempty"`
	DataDir    string `json:"data_dir"`
	StaticDir  string `json:"static_dir"`
	PromptsDir string `json:"prompts_dir"`
	LogDir     string `json:"log_dir"`
	DebugMode  bool   `json:"debug_mode"`

	// LLM相关配置
	LLMProvider string            `json:"llm_provider"`
	LLMConfig   map[string]string `json:"llm_config"`

	// 各 Agent 使用的模型
	Agent1Model string `json:"agent1_model"` // 图像分析，必须支持视觉输入
	Agent2Model string `json:"agent2_model"` // 中性增强
	Agent3Model string `json:"agent3_model"` // 成人增强

	// 视觉请求的图像细节级别：high / low
	ImageDetail string `json:"image_detail"`

	// 视频时长设置（秒）
	VideoDurations  []int `json:"video_durations"`
	DefaultDuration int   `json:"default_duration"`
	FragmentLength  int   `json:"fragment_length"`

	// 内容路由与安全门
	RouteToAdultWhenNSFW bool     `json:"route_to_adult_when_nsfw"`
	GateAllowedValues    []string `json:"gate_allowed_values"`

	// 图像上传限制
	MaxImageSizeBytes int64    `json:"max_image_size_bytes"`
	AllowedImageTypes []string `json:"allowed_image_types"`

	// 各 Agent 的系统提示词文件（相对 PromptsDir）
	Agent1PromptFile string `json:"agent1_prompt_file"`
	Agent2PromptFile string `json:"agent2_prompt_file"`
	Agent3PromptFile string `json:"agent3_prompt_file"`

	// 计费：每百万 token 的美元单价，按模型索引
	ModelPricing map[string]models.ModelPricing `json:"model_pricing"`
	TrackCosts   bool                           `json:"track_costs"`
}

// Config 存储从环境变量加载的基础配置
type Config struct {
	Port       string
	XAIAPIKey  string
	DataDir    string
	StaticDir  string
	PromptsDir string
	LogDir     string
	DebugMode  bool
}

// Load 从环境变量加载配置
func Load() (*Config, error) {
	// 尝试加载.env文件（可选）
	godotenv.Load()

	config := &Config{
		Port:       getEnv("PORT", "5050"),
		XAIAPIKey:  getEnv("XAI_API_KEY", ""),
		DataDir:    getEnvPath("DATA_DIR", "data"),
		StaticDir:  getEnvPath("STATIC_DIR", "static"),
		PromptsDir: getEnvPath("PROMPTS_DIR", "prompts"),
		LogDir:     getEnvPath("LOG_DIR", "logs"),
		DebugMode:  getEnvBool("DEBUG_MODE", true),
	}

	if config.XAIAPIKey == "" {
		// 只记录警告，不返回错误：密钥可以稍后通过配置接口提供
		log.Println("警告: 未设置XAI_API_KEY，流水线在配置密钥之前无法调用模型")
	}

	return config, nil
}

// getEnv 获取环境变量，如果不存在则返回默认值
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvPath 获取环境变量表示的路径，如果不存在则返回默认值
func getEnvPath(key, defaultValue string) string {
	path := getEnv(key, defaultValue)

	// 确保目录存在
	if _, err := os.Stat(path); os.IsNotExist(err) {
		err = os.MkdirAll(path, 0755)
		if err != nil {
			fmt.Printf("警告: 创建目录失败 %s: %v\n", path, err)
		}
	}

	return path
}

// getEnvBool 获取布尔类型环境变量
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt 获取整型环境变量
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

// defaultPricing xAI 定价表（每百万 token，美元）
func defaultPricing() map[string]models.ModelPricing {
	return map[string]models.ModelPricing{
		"grok-2-vision-latest":       {InputPerMillion: 0.20, OutputPerMillion: 0.50},
		"grok-2-vision-1212":         {InputPerMillion: 0.20, OutputPerMillion: 0.50},
		"grok-4-1-fast-non-reasoning": {InputPerMillion: 0.20, OutputPerMillion: 0.50},
		"grok-4":                     {InputPerMillion: 2.00, OutputPerMillion: 10.00},
		// 显式列出 _default 时，未知模型回退到该价格；
		// 不列出则未知模型按配置错误处理
		"_default": {InputPerMillion: 0.20, OutputPerMillion: 0.50},
	}
}

// defaultAppConfig 构造默认应用配置
func defaultAppConfig(base *Config) *AppConfig {
	return &AppConfig{
		Port:       base.Port,
		XAIAPIKey:  base.XAIAPIKey,
		DataDir:    base.DataDir,
		StaticDir:  base.StaticDir,
		PromptsDir: base.PromptsDir,
		LogDir:     base.LogDir,
		DebugMode:  base.DebugMode,

		LLMProvider: "grok",
		LLMConfig: map[string]string{
			"api_key":  base.XAIAPIKey,
			"base_url": getEnv("GROK_BASE_URL", "https://api.x.ai/v1"),
		},

		Agent1Model: getEnv("AGENT1_MODEL", "grok-2-vision-1212"),
		Agent2Model: getEnv("AGENT2_MODEL", "grok-4-1-fast-non-reasoning"),
		Agent3Model: getEnv("AGENT3_MODEL", "grok-4-1-fast-non-reasoning"),

		ImageDetail: getEnv("IMAGE_DETAIL", "low"),

		VideoDurations:  []int{5, 10},
		DefaultDuration: getEnvInt("DEFAULT_DURATION", 5),
		FragmentLength:  getEnvInt("FRAGMENT_LENGTH", 5),

		RouteToAdultWhenNSFW: getEnvBool("ROUTE_TO_ADULT_WHEN_NSFW", true),
		GateAllowedValues:    []string{"no"},

		MaxImageSizeBytes: 20 * 1024 * 1024, // 20 MiB，Grok API 上限
		AllowedImageTypes: []string{"image/jpeg", "image/jpg", "image/png"},

		Agent1PromptFile: "agent1_image_extractor.txt",
		Agent2PromptFile: "agent2_neutral_enhancer.txt",
		Agent3PromptFile: "agent3_adult_enhancer.txt",

		ModelPricing: defaultPricing(),
		TrackCosts:   getEnvBool("TRACK_COSTS", true),
	}
}

// InitConfig 初始化配置管理器
func InitConfig(dataDir string) error {
	configFile = filepath.Join(dataDir, "config.json")

	// 加载基础配置
	baseConfig, err := Load()
	if err != nil {
		return err
	}

	configMutex.Lock()
	defer configMutex.Unlock()

	currentConfig = defaultAppConfig(baseConfig)

	// 尝试从文件加载已保存的配置
	if _, err := os.Stat(configFile); !os.IsNotExist(err) {
		data, err := os.ReadFile(configFile)
		if err == nil {
			var savedConfig AppConfig
			if json.Unmarshal(data, &savedConfig) == nil {
				// 合并配置：保留文件中的LLM与流水线设置，但使用最新的基础配置
				savedConfig.Port = baseConfig.Port
				savedConfig.DataDir = baseConfig.DataDir
				savedConfig.StaticDir = baseConfig.StaticDir
				savedConfig.PromptsDir = baseConfig.PromptsDir
				savedConfig.LogDir = baseConfig.LogDir
				savedConfig.DebugMode = baseConfig.DebugMode

				// 文件中没有API密钥时使用环境变量的密钥
				if savedConfig.LLMConfig != nil && savedConfig.LLMConfig["api_key"] == "" {
					savedConfig.LLMConfig["api_key"] = baseConfig.XAIAPIKey
				}
				if savedConfig.ModelPricing == nil {
					savedConfig.ModelPricing = defaultPricing()
				}
				if len(savedConfig.VideoDurations) == 0 {
					savedConfig.VideoDurations = []int{5, 10}
				}
				if savedConfig.FragmentLength == 0 {
					savedConfig.FragmentLength = 5
				}
				if savedConfig.DefaultDuration == 0 {
					savedConfig.DefaultDuration = 5
				}
				if len(savedConfig.GateAllowedValues) == 0 {
					savedConfig.GateAllowedValues = []string{"no"}
				}

				currentConfig = &savedConfig
			}
		}
	}

	// 保存初始配置到文件
	return saveConfigLocked()
}

// Validate 检查配置自洽性：时长必须能被片段长度整除
func (c *AppConfig) Validate() error {
	if c.FragmentLength <= 0 {
		return fmt.Errorf("片段长度必须为正整数: %d", c.FragmentLength)
	}
	for _, d := range c.VideoDurations {
		if d <= 0 {
			return fmt.Errorf("视频时长必须为正整数: %d", d)
		}
		if d%c.FragmentLength != 0 {
			return fmt.Errorf("视频时长 %d 不能被片段长度 %d 整除", d, c.FragmentLength)
		}
	}
	return nil
}

// SupportsDuration 判断时长是否在支持列表内
func (c *AppConfig) SupportsDuration(duration int) bool {
	for _, d := range c.VideoDurations {
		if d == duration {
			return true
		}
	}
	return false
}

// AllowsImageType 判断MIME类型是否允许上传
func (c *AppConfig) AllowsImageType(contentType string) bool {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	for _, t := range c.AllowedImageTypes {
		if t == contentType {
			return true
		}
	}
	return false
}

// GetCurrentConfig 返回当前配置的副本
func GetCurrentConfig() *AppConfig {
	configMutex.RLock()
	defer configMutex.RUnlock()

	if currentConfig == nil {
		// 紧急情况，返回一个基本配置
		baseConfig, _ := Load()
		return defaultAppConfig(baseConfig)
	}

	// 返回配置的副本
	configCopy := *currentConfig
	return &configCopy
}

// UpdateLLMConfig 更新LLM配置
func UpdateLLMConfig(provider string, config map[string]string) error {
	configMutex.Lock()
	defer configMutex.Unlock()

	if currentConfig == nil {
		return fmt.Errorf("配置系统未初始化")
	}

	currentConfig.LLMProvider = provider
	currentConfig.LLMConfig = config

	return saveConfigLocked()
}

// SaveConfig 保存当前配置到文件
func SaveConfig() error {
	configMutex.Lock()
	defer configMutex.Unlock()
	return saveConfigLocked()
}

func saveConfigLocked() error {
	if currentConfig == nil {
		return fmt.Errorf("没有配置可保存")
	}

	// 确保目录存在
	dir := filepath.Dir(configFile)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("创建配置目录失败: %w", err)
		}
	}

	// 序列化并保存
	data, err := json.MarshalIndent(currentConfig, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化配置失败: %w", err)
	}

	return os.WriteFile(configFile, data, 0644)
}
