// internal/api/router.go
package api

import (
	"fmt"
	"net/http"
	"os"

	"github.com/alexmm3/grokvalidator/internal/config"
	"github.com/alexmm3/grokvalidator/internal/di"
	"github.com/alexmm3/grokvalidator/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRouter 配置HTTP路由
// 只从容器获取服务，不创建新实例
func SetupRouter() (*gin.Engine, error) {
	cfg := config.GetCurrentConfig()

	container := di.GetContainer()

	pipelineService, ok := container.Get("pipeline").(*services.PipelineService)
	if !ok {
		return nil, fmt.Errorf("流水线服务未正确初始化")
	}

	configService, ok := container.Get("config").(*services.ConfigService)
	if !ok {
		return nil, fmt.Errorf("配置服务未正确初始化")
	}

	handler := NewHandler(pipelineService, configService)

	if !cfg.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()

	r.Use(corsMiddleware())
	r.Use(requestIDMiddleware())
	r.Use(metricsMiddleware())

	// 静态文件服务（前端调试页面，存在时才挂载）
	if _, err := os.Stat(cfg.StaticDir); err == nil {
		r.Static("/static", cfg.StaticDir)
		if _, err := os.Stat(cfg.StaticDir + "/index.html"); err == nil {
			r.GET("/", func(c *gin.Context) {
				c.File(cfg.StaticDir + "/index.html")
			})
		}
	}

	// 健康检查与指标
	r.GET("/health", handler.HealthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 流水线API
	apiGroup := r.Group("/api")
	{
		apiGroup.POST("/run", handler.RunPipeline)
		apiGroup.GET("/result", handler.GetResult)
		apiGroup.GET("/config", handler.GetConfig)
		apiGroup.PUT("/config/llm", handler.UpdateLLMConfig)
		apiGroup.POST("/config/test", handler.TestLLMConnection)
	}

	// 兼容原始后端的无前缀路径
	r.POST("/run", handler.RunPipeline)
	r.GET("/result", handler.GetResult)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	return r, nil
}
