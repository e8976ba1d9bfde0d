// internal/services/llm_service.go
package services

import (
	"context"
	"strings"
	"sync"

	apperrors "github.com/digimarketingai/keyterms-server/internal/errors"
	"github.com/digimarketingai/keyterms-server/internal/llm"
	"github.com/digimarketingai/keyterms-server/internal/utils"
)

// LLMService 管理LLM提供者的生命周期
// 提供者可以在运行时更换（例如通过API补配密钥），所有访问都经过读写锁
type LLMService struct {
	provider llm.Provider
	ready    bool
	lastErr  string
	mutex    sync.RWMutex
	logger   *utils.Logger
}

// LLMStatus 提供者的当前状态快照
type LLMStatus struct {
	Ready        bool     `json:"ready"`
	Provider     string   `json:"provider,omitempty"`
	Model        string   `json:"model,omitempty"`
	Error        string   `json:"error,omitempty"`
	AllProviders []string `json:"all_providers"`
}

// NewLLMService 按配置创建LLM服务
// 初始化失败（例如缺少密钥）不返回错误，服务进入未就绪状态
func NewLLMService(providerName string, config map[string]string) *LLMService {
	s := &LLMService{logger: utils.GetLogger()}

	if err := s.UpdateProvider(providerName, config); err != nil {
		s.logger.Warn("LLM提供者未就绪", map[string]interface{}{
			"provider": providerName,
			"error":    err.Error(),
		})
	}

	return s
}

// UpdateProvider 更换或重新初始化提供者
func (s *LLMService) UpdateProvider(providerName string, config map[string]string) error {
	provider, err := llm.GetProvider(providerName, config)

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err != nil {
		s.provider = nil
		s.ready = false
		s.lastErr = err.Error()
		return err
	}

	s.provider = provider
	s.ready = true
	s.lastErr = ""
	s.logger.Info("LLM提供者已就绪", map[string]interface{}{
		"provider": provider.GetName(),
	})
	return nil
}

// IsReady 检查提供者是否可用
func (s *LLMService) IsReady() bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.ready
}

// Provider 返回当前提供者，未就绪时返回错误
func (s *LLMService) Provider() (llm.Provider, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if !s.ready || s.provider == nil {
		msg := "LLM提供者未配置"
		if s.lastErr != "" {
			msg = msg + ": " + s.lastErr
		}
		return nil, apperrors.NewUnavailableError(msg, nil)
	}
	return s.provider, nil
}

// CompleteText 委托当前提供者执行一次文本生成
func (s *LLMService) CompleteText(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	provider, err := s.Provider()
	if err != nil {
		return nil, err
	}
	return provider.CompleteText(ctx, req)
}

// Status 返回当前状态快照，密钥等敏感配置不会出现在结果中
func (s *LLMService) Status() LLMStatus {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	status := LLMStatus{
		Ready:        s.ready,
		Error:        s.lastErr,
		AllProviders: llm.ListProviders(),
	}
	if s.provider != nil {
		status.Provider = s.provider.GetName()
		models := s.provider.GetSupportedModels()
		if len(models) > 0 {
			status.Model = models[0]
		}
	}
	return status
}

// SupportedModels 返回指定提供者支持的模型列表
// name 为空时使用当前提供者
func (s *LLMService) SupportedModels(name string) []string {
	name = strings.TrimSpace(name)
	if name == "" {
		s.mutex.RLock()
		if s.provider != nil {
			name = s.provider.GetName()
		}
		s.mutex.RUnlock()
	}
	if name == "" {
		return []string{}
	}
	return llm.GetSupportedModelsForProvider(name)
}
