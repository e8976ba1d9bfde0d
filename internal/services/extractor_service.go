// internal/services/extractor_service.go
package services

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/digimarketingai/keyterms-server/internal/config"
	apperrors "github.com/digimarketingai/keyterms-server/internal/errors"
	"github.com/digimarketingai/keyterms-server/internal/models"
	"github.com/digimarketingai/keyterms-server/internal/storage"
	"github.com/digimarketingai/keyterms-server/internal/utils"
)

// ProgressFunc 进度回调，pct 取值 0-100
type ProgressFunc func(pct int, message string)

// ExtractorService 串联整条提取管线
// 构建提示、调用模型（必要时分块并发）、归一化输出、缓存与落盘
type ExtractorService struct {
	llmService *LLMService
	builder    *PromptBuilder
	normalizer *Normalizer
	cache      *storage.ResultCache
	history    *storage.HistoryStore
	pipeline   config.PipelineConfig
	logger     *utils.Logger
	metrics    *utils.ExtractionMetrics
}

// NewExtractorService 创建提取服务
func NewExtractorService(llmService *LLMService, history *storage.HistoryStore, pipeline config.PipelineConfig) *ExtractorService {
	return &ExtractorService{
		llmService: llmService,
		builder:    NewPromptBuilder(pipeline.MaxInputChars),
		normalizer: NewNormalizer(),
		cache:      storage.NewResultCache(200, time.Duration(pipeline.CacheTTLMins)*time.Minute),
		history:    history,
		pipeline:   pipeline,
		logger:     utils.GetLogger(),
		metrics:    utils.NewExtractionMetrics(),
	}
}

// Extract 执行一次完整的提取请求
// progress 可以为nil，传入时会收到阶段性进度更新
func (s *ExtractorService) Extract(ctx context.Context, req models.ExtractionRequest, progress ProgressFunc) (*models.ExtractionRecord, error) {
	started := time.Now()

	record, err := s.extract(ctx, req, progress)
	if err != nil {
		s.metrics.RecordError(string(apperrors.TypeOf(err)))
		return nil, err
	}

	s.metrics.RecordExtraction(len(record.Result.Terms), record.Result.Dropped, time.Since(started))
	return record, nil
}

func (s *ExtractorService) extract(ctx context.Context, req models.ExtractionRequest, progress ProgressFunc) (*models.ExtractionRecord, error) {
	report := func(pct int, msg string) {
		if progress != nil {
			progress(pct, msg)
		}
	}

	// 先整体校验，分块前就把超长输入和非法参数拒绝掉
	if _, err := s.builder.Build(req); err != nil {
		return nil, err
	}

	provider, err := s.llmService.Provider()
	if err != nil {
		return nil, err
	}

	providerName := provider.GetName()
	modelName := ""
	if supported := provider.GetSupportedModels(); len(supported) > 0 {
		modelName = supported[0]
	}

	// 命中缓存直接返回，不再计费
	cacheKey := storage.CacheKey(providerName, modelName, req)
	if cached, hit := s.cache.Get(cacheKey); hit {
		s.logger.Debug("提取结果命中缓存", map[string]interface{}{"key": cacheKey})
		report(100, "命中缓存")
		return s.buildRecord(req, providerName, modelName, cached), nil
	}

	report(5, "正在准备提取")

	text := strings.TrimSpace(req.SourceText)
	chunks := utils.ChunkText(text, s.pipeline.ChunkChars)

	var result *models.ExtractionResult
	if len(chunks) <= 1 {
		result, err = s.extractChunk(ctx, req, report)
	} else {
		result, err = s.extractChunked(ctx, req, chunks, report)
	}
	if err != nil {
		return nil, err
	}

	s.cache.Set(cacheKey, result)
	report(95, "正在保存结果")

	record := s.buildRecord(req, providerName, modelName, result)
	if s.history != nil {
		if err := s.history.Save(record); err != nil {
			// 保存失败不影响已经拿到的结果
			s.logger.Warn("保存提取记录失败", map[string]interface{}{
				"id":    record.ID,
				"error": err.Error(),
			})
		}
	}

	report(100, "提取完成")
	return record, nil
}

// extractChunk 单块提取：构建提示、发送、归一化
func (s *ExtractorService) extractChunk(ctx context.Context, req models.ExtractionRequest, report ProgressFunc) (*models.ExtractionResult, error) {
	payload, err := s.builder.Build(req)
	if err != nil {
		return nil, err
	}

	provider, err := s.llmService.Provider()
	if err != nil {
		return nil, err
	}

	client := NewExtractionClient(provider,
		s.pipeline.MaxRetries,
		time.Duration(s.pipeline.TimeoutSecs)*time.Second,
		time.Duration(s.pipeline.BaseDelayMs)*time.Millisecond,
		time.Duration(s.pipeline.MaxDelayMs)*time.Millisecond)

	report(30, "正在调用模型")
	sent, err := client.Send(ctx, payload)
	if sent != nil && sent.Attempts > 0 {
		s.metrics.RecordLLMAttempts(sent.Attempts)
	}
	if err != nil {
		return nil, err
	}

	report(70, "正在解析输出")
	return s.normalizer.Normalize(sent.Text, req)
}

// extractChunked 长文本按句子分块后并发提取，最后合并去重
func (s *ExtractorService) extractChunked(ctx context.Context, req models.ExtractionRequest, chunks []string, report ProgressFunc) (*models.ExtractionResult, error) {
	s.logger.Info("长文本分块提取", map[string]interface{}{
		"chunks":      len(chunks),
		"chunk_chars": s.pipeline.ChunkChars,
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type chunkResult struct {
		index  int
		result *models.ExtractionResult
		err    error
	}

	sem := make(chan struct{}, s.pipeline.MaxConcurrency)
	results := make(chan chunkResult, len(chunks))
	var wg sync.WaitGroup

	for i, chunk := range chunks {
		wg.Add(1)
		go func(index int, chunkText string) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results <- chunkResult{index: index, err: apperrors.NewCancelledError("请求已被调用方取消", ctx.Err())}
				return
			}

			chunkReq := models.ExtractionRequest{
				SourceText:   chunkText,
				DomainFilter: req.DomainFilter,
				// 每块不限数量，合并后统一截断
			}
			result, err := s.extractChunk(ctx, chunkReq, func(int, string) {})
			results <- chunkResult{index: index, result: result, err: err}
		}(i, chunk)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	collected := make([]*models.ExtractionResult, len(chunks))
	completed := 0
	var firstErr error

	for cr := range results {
		completed++
		report(10+80*completed/len(chunks), "正在处理分块")

		if cr.err != nil {
			// 单块空结果不致命，其余块可能仍有术语
			if apperrors.IsEmptyResultError(cr.err) {
				continue
			}
			if firstErr == nil {
				firstErr = cr.err
				cancel()
			}
			continue
		}
		collected[cr.index] = cr.result
	}

	if firstErr != nil {
		return nil, firstErr
	}

	return mergeChunkResults(collected, req.MaxTerms)
}

// mergeChunkResults 按原文顺序合并分块结果并全局去重
func mergeChunkResults(collected []*models.ExtractionResult, maxTerms int) (*models.ExtractionResult, error) {
	merged := &models.ExtractionResult{Terms: []models.TermRecord{}}
	seen := make(map[string]bool)

	nonEmpty := 0
	for _, result := range collected {
		if result == nil {
			continue
		}
		nonEmpty++
		merged.Dropped += result.Dropped

		for _, term := range result.Terms {
			key := strings.ToLower(term.TermEnglish)
			if seen[key] {
				merged.Dropped++
				continue
			}
			seen[key] = true
			merged.Terms = append(merged.Terms, term)
		}
	}

	if nonEmpty == 0 {
		return nil, apperrors.NewEmptyResultError("所有分块均未产出术语", nil)
	}

	if maxTerms > 0 && len(merged.Terms) > maxTerms {
		merged.Terms = merged.Terms[:maxTerms]
	}

	return merged, nil
}

func (s *ExtractorService) buildRecord(req models.ExtractionRequest, provider, model string, result *models.ExtractionResult) *models.ExtractionRecord {
	return &models.ExtractionRecord{
		ID:           uuid.NewString(),
		CreatedAt:    time.Now(),
		SourceChars:  utf8.RuneCountInString(strings.TrimSpace(req.SourceText)),
		DomainFilter: req.DomainFilter,
		MaxTerms:     req.MaxTerms,
		Provider:     provider,
		Model:        model,
		Result:       result,
	}
}

// History 返回底层的历史存储
func (s *ExtractorService) History() *storage.HistoryStore {
	return s.history
}

// ClearCache 清空结果缓存
func (s *ExtractorService) ClearCache() {
	s.cache.Clear()
}
