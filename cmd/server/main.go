// cmd/server/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexmm3/grokvalidator/internal/api"
	"github.com/alexmm3/grokvalidator/internal/config"
	"github.com/alexmm3/grokvalidator/internal/di"
	"github.com/alexmm3/grokvalidator/internal/logging"
	"github.com/alexmm3/grokvalidator/internal/services"
	"github.com/gin-gonic/gin"

	// 注册LLM提供者
	_ "github.com/alexmm3/grokvalidator/internal/llm/providers/grok"
)

func main() {
	log.Println("🚀 启动 GrokValidator 服务器...")

	// 1. 首先加载基础配置
	baseConfig, err := config.Load()
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	log.Printf("✅ 基础配置加载完成，端口: %s", baseConfig.Port)

	// 2. 初始化配置系统
	if err := config.InitConfig(baseConfig.DataDir); err != nil {
		log.Fatalf("初始化配置系统失败: %v", err)
	}

	cfg := config.GetCurrentConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("配置校验失败: %v", err)
	}
	log.Println("✅ 配置系统初始化完成")

	// 3. 初始化日志
	if err := logging.Init(cfg.LogDir, cfg.DebugMode); err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer logging.Sync()

	// 4. 初始化所有服务（按依赖顺序）
	if err := initServices(cfg); err != nil {
		log.Fatalf("初始化服务失败: %v", err)
	}
	log.Println("✅ 所有服务初始化完成")

	// 5. 设置路由（只获取服务，不创建）
	router, err := api.SetupRouter()
	if err != nil {
		log.Fatalf("❌ 设置路由失败: %v", err)
	}
	log.Println("✅ 路由设置完成")

	// 6. 启动服务器
	log.Printf("🌐 服务器启动在端口 %s", cfg.Port)
	log.Printf("🔗 访问地址: http://localhost:%s", cfg.Port)

	setupGracefulShutdown(router, cfg.Port)
}

// initServices 按依赖顺序创建服务并注册到容器
func initServices(cfg *config.AppConfig) error {
	container := di.GetContainer()

	// LLM服务：密钥缺失时以未就绪状态启动，可稍后通过配置接口补齐
	var llmService *services.LLMService
	if cfg.LLMConfig["api_key"] != "" {
		providerConfig := map[string]string{
			"api_key":  cfg.LLMConfig["api_key"],
			"base_url": cfg.LLMConfig["base_url"],
		}
		svc, err := services.NewLLMService(cfg.LLMProvider, providerConfig)
		if err != nil {
			log.Printf("⚠️ LLM提供者初始化失败，服务以未就绪状态启动: %v", err)
		}
		llmService = svc
	} else {
		llmService = services.NewEmptyLLMService()
		log.Println("⚠️ 未配置API密钥，LLM服务未就绪")
	}
	container.Register("llm", llmService)

	costService := services.NewCostService(cfg.ModelPricing)
	container.Register("cost", costService)

	promptService := services.NewPromptService(
		cfg.PromptsDir, cfg.Agent1PromptFile, cfg.Agent2PromptFile, cfg.Agent3PromptFile)
	container.Register("prompt", promptService)

	analyzerService := services.NewAnalyzerService(llmService, costService, promptService,
		services.AnalyzerOptions{
			Model:             cfg.Agent1Model,
			ImageDetail:       cfg.ImageDetail,
			MaxImageSizeBytes: cfg.MaxImageSizeBytes,
			AllowedImageTypes: cfg.AllowedImageTypes,
			BaseURL:           cfg.LLMConfig["base_url"],
		})
	container.Register("analyzer", analyzerService)

	routingEngine := services.NewRoutingEngine(cfg.RouteToAdultWhenNSFW, cfg.GateAllowedValues)
	container.Register("routing", routingEngine)

	enhancerService := services.NewEnhancerService(llmService, costService, promptService,
		services.EnhancerOptions{
			NeutralModel: cfg.Agent2Model,
			AdultModel:   cfg.Agent3Model,
			BaseURL:      cfg.LLMConfig["base_url"],
		})
	container.Register("enhancer", enhancerService)

	pipelineService, err := services.NewPipelineService(analyzerService, routingEngine, enhancerService,
		services.PipelineOptions{
			VideoDurations: cfg.VideoDurations,
			FragmentLength: cfg.FragmentLength,
			TrackCosts:     cfg.TrackCosts,
		})
	if err != nil {
		return err
	}
	container.Register("pipeline", pipelineService)

	configService := services.NewConfigService(llmService)
	container.Register("config", configService)

	return nil
}

// 优雅关闭函数
func setupGracefulShutdown(router *gin.Engine, port string) {
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	// 在新的 goroutine 中启动服务器
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ 启动服务器失败: %v", err)
		}
	}()

	// 等待中断信号以进行优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 正在关闭服务器...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("❌ 服务器强制关闭: %v", err)
	}

	log.Println("✅ 服务器优雅关闭完成")
}
