// internal/services/extraction_client.go
package services

import (
	"context"
	"errors"
	"math/rand"
	"time"

	apperrors "github.com/digimarketingai/keyterms-server/internal/errors"
	"github.com/digimarketingai/keyterms-server/internal/llm"
)

// ExtractionClient 负责向LLM提供者发送一次逻辑请求
// 瞬时错误（网络失败、限流、5xx、单次超时）按指数退避重试，
// 认证错误与内容错误不重试，调用方取消立即中止
type ExtractionClient struct {
	provider       llm.Provider
	maxRetries     int
	attemptTimeout time.Duration
	baseDelay      time.Duration
	maxDelay       time.Duration
}

// SendResult 单次逻辑请求的结果
type SendResult struct {
	Text         string `json:"text"`
	Attempts     int    `json:"attempts"`
	ModelName    string `json:"model_name,omitempty"`
	ProviderName string `json:"provider_name,omitempty"`
}

// NewExtractionClient 创建提取客户端
func NewExtractionClient(provider llm.Provider, maxRetries int, attemptTimeout, baseDelay, maxDelay time.Duration) *ExtractionClient {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if attemptTimeout <= 0 {
		attemptTimeout = 60 * time.Second
	}
	if baseDelay <= 0 {
		baseDelay = 500 * time.Millisecond
	}
	if maxDelay < baseDelay {
		maxDelay = 8 * time.Second
	}

	return &ExtractionClient{
		provider:       provider,
		maxRetries:     maxRetries,
		attemptTimeout: attemptTimeout,
		baseDelay:      baseDelay,
		maxDelay:       maxDelay,
	}
}

// Send 发送提示并返回原始模型输出
// 返回的 Attempts 含首次请求，重试耗尽时等于 maxRetries+1
func (c *ExtractionClient) Send(ctx context.Context, payload *PromptPayload) (*SendResult, error) {
	if c.provider == nil {
		return nil, apperrors.NewUnavailableError("LLM提供者未初始化", nil)
	}

	req := llm.CompletionRequest{
		Prompt:       payload.Prompt,
		SystemPrompt: payload.SystemPrompt,
		Model:        payload.Model,
		Temperature:  0.3,
	}

	var lastErr error
	attempts := 0

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, c.cancelledError(attempts, err)
		}

		attempts++

		attemptCtx, cancel := context.WithTimeout(ctx, c.attemptTimeout)
		resp, err := c.provider.CompleteText(attemptCtx, req)
		cancel()

		if err == nil {
			return &SendResult{
				Text:         resp.Text,
				Attempts:     attempts,
				ModelName:    resp.ModelName,
				ProviderName: resp.ProviderName,
			}, nil
		}

		// 调用方取消：中止在途请求，不再重试
		if ctx.Err() != nil {
			return nil, c.cancelledError(attempts, ctx.Err())
		}

		// 单次请求超出配置的超时：归为瞬时错误参与重试
		if errors.Is(err, context.DeadlineExceeded) {
			lastErr = apperrors.NewTimeoutError("单次请求超时", err)
		} else if apperrors.IsTransient(err) {
			lastErr = err
		} else {
			// 认证错误、内容错误等一律不重试，立即上抛
			return nil, err
		}

		// 重试前按指数退避等待，期间允许取消
		if attempt < c.maxRetries {
			select {
			case <-time.After(c.backoffDelay(attempt)):
			case <-ctx.Done():
				return nil, c.cancelledError(attempts, ctx.Err())
			}
		}
	}

	// 重试耗尽：保留超时类别，其余归为服务不可用
	if apperrors.IsTimeoutError(lastErr) {
		return &SendResult{Attempts: attempts}, lastErr
	}
	return &SendResult{Attempts: attempts}, apperrors.NewUnavailableError("重试次数耗尽", lastErr)
}

// backoffDelay 计算第 attempt 次失败后的退避延迟：基础延迟翻倍、封顶、±20%抖动
func (c *ExtractionClient) backoffDelay(attempt int) time.Duration {
	delay := c.baseDelay << uint(attempt)
	if delay > c.maxDelay || delay <= 0 {
		delay = c.maxDelay
	}

	jitter := 0.8 + 0.4*rand.Float64()
	return time.Duration(float64(delay) * jitter)
}

func (c *ExtractionClient) cancelledError(attempts int, cause error) error {
	if errors.Is(cause, context.DeadlineExceeded) {
		return apperrors.NewTimeoutError("整体请求超时", cause)
	}
	return apperrors.NewCancelledError("请求已被调用方取消", cause)
}
