// internal/app/app.go
package app

import (
	"fmt"

	"github.com/digimarketingai/keyterms-server/internal/api"
	"github.com/digimarketingai/keyterms-server/internal/config"
	"github.com/digimarketingai/keyterms-server/internal/di"
	_ "github.com/digimarketingai/keyterms-server/internal/llm/providers/mistral"
	_ "github.com/digimarketingai/keyterms-server/internal/llm/providers/openai"
	"github.com/digimarketingai/keyterms-server/internal/services"
	"github.com/digimarketingai/keyterms-server/internal/storage"
)

// InitServices 按依赖顺序初始化所有服务并注册到容器
func InitServices() error {
	cfg := config.GetCurrentConfig()
	container := di.GetContainer()

	history, err := storage.NewHistoryStore(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("初始化历史存储失败: %w", err)
	}
	container.Register("history", history)

	llmService := services.NewLLMService(cfg.LLMProvider, cfg.LLMConfig)
	container.Register("llm", llmService)

	extractor := services.NewExtractorService(llmService, history, cfg.Pipeline)
	container.Register("extractor", extractor)

	container.Register("progress", services.NewProgressService())
	container.Register("export", services.NewExportService())

	return nil
}

// BuildHandlers 从容器取出服务装配API处理器
func BuildHandlers() (*api.Handlers, error) {
	container := di.GetContainer()

	extractor, ok := container.Get("extractor").(*services.ExtractorService)
	if !ok {
		return nil, fmt.Errorf("提取服务未注册")
	}
	llmService, ok := container.Get("llm").(*services.LLMService)
	if !ok {
		return nil, fmt.Errorf("LLM服务未注册")
	}
	progress, ok := container.Get("progress").(*services.ProgressService)
	if !ok {
		return nil, fmt.Errorf("进度服务未注册")
	}
	exporter, ok := container.Get("export").(*services.ExportService)
	if !ok {
		return nil, fmt.Errorf("导出服务未注册")
	}

	return api.NewHandlers(extractor, llmService, progress, exporter), nil
}
