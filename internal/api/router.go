// internal/api/router.go
package api

import (
	"github.com/gin-gonic/gin"
)

// SetupRouter 配置路由
func SetupRouter(h *Handlers, debugMode bool) *gin.Engine {
	if debugMode {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery(), RequestIDMiddleware())

	r.GET("/health", h.HandleHealth)

	apiGroup := r.Group("/api")
	apiGroup.Use(DefaultRateLimit())
	{
		// 提取：调用模型的接口使用更紧的配额
		apiGroup.POST("/extract", ExtractRateLimit(), h.HandleExtract)
		apiGroup.POST("/extract/async", ExtractRateLimit(), h.HandleExtractAsync)

		// 异步任务
		apiGroup.GET("/tasks/:id", h.HandleGetTask)
		apiGroup.POST("/tasks/:id/cancel", h.HandleCancelTask)
		apiGroup.DELETE("/tasks/:id", h.HandleCancelTask)

		// 历史记录
		apiGroup.GET("/extractions", h.HandleListExtractions)
		apiGroup.GET("/extractions/:id", h.HandleGetExtraction)
		apiGroup.DELETE("/extractions/:id", h.HandleDeleteExtraction)
		apiGroup.GET("/extractions/:id/export", h.HandleExportExtraction)

		// LLM管理
		apiGroup.GET("/llm/status", h.HandleLLMStatus)
		apiGroup.GET("/llm/models", h.HandleLLMModels)
		apiGroup.PUT("/llm/config", h.HandleUpdateLLMConfig)

		// 运行指标
		apiGroup.GET("/metrics", h.HandleMetrics)
	}

	// 任务进度推送
	r.GET("/ws/tasks/:id", h.HandleTaskProgressWS)

	return r
}
