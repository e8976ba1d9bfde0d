// internal/services/extractor_service_test.go
package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digimarketingai/keyterms-server/internal/config"
	apperrors "github.com/digimarketingai/keyterms-server/internal/errors"
	"github.com/digimarketingai/keyterms-server/internal/llm"
	"github.com/digimarketingai/keyterms-server/internal/models"
	"github.com/digimarketingai/keyterms-server/internal/storage"
)

func testPipeline() config.PipelineConfig {
	return config.PipelineConfig{
		MaxInputChars:  20000,
		ChunkChars:     4000,
		MaxConcurrency: 2,
		MaxRetries:     1,
		TimeoutSecs:    5,
		BaseDelayMs:    1,
		MaxDelayMs:     4,
		CacheTTLMins:   30,
	}
}

// newStubExtractor 注册一个固定输出的提供者并装配完整的提取服务
func newStubExtractor(t *testing.T, name string, provider *stubProvider, pipeline config.PipelineConfig) *ExtractorService {
	t.Helper()

	llm.Register(name, func() llm.Provider { return provider })

	llmService := NewLLMService(name, map[string]string{})
	require.True(t, llmService.IsReady())

	history, err := storage.NewHistoryStore(t.TempDir())
	require.NoError(t, err)

	return NewExtractorService(llmService, history, pipeline)
}

func TestExtractorService_Extract(t *testing.T) {
	raw := `[
		{"term_en": "API", "term_zh": "應用程式介面", "definition_en": "An interface.", "definition_zh": "介面。", "category": "technical"},
		{"term_en": "Cloud", "term_zh": "雲端", "category": "concept"}
	]`

	provider := &stubProvider{text: raw}
	extractor := newStubExtractor(t, "stub-extract", provider, testPipeline())

	req := models.ExtractionRequest{SourceText: "API and Cloud computing."}

	record, err := extractor.Extract(context.Background(), req, nil)
	require.NoError(t, err)

	require.Len(t, record.Result.Terms, 2)
	assert.Equal(t, "API", record.Result.Terms[0].TermEnglish)
	assert.Equal(t, "stub", record.Provider)
	assert.Equal(t, "stub-model", record.Model)
	assert.NotEmpty(t, record.ID)
	assert.Equal(t, len("API and Cloud computing."), record.SourceChars)

	// 记录已落盘
	saved, err := extractor.History().Get(record.ID)
	require.NoError(t, err)
	assert.Equal(t, record.Result.Terms, saved.Result.Terms)
}

func TestExtractorService_CacheHit(t *testing.T) {
	raw := `[{"term_en": "API", "term_zh": "應用程式介面"}]`
	provider := &stubProvider{text: raw}
	extractor := newStubExtractor(t, "stub-cache", provider, testPipeline())

	req := models.ExtractionRequest{SourceText: "API text for caching."}

	first, err := extractor.Extract(context.Background(), req, nil)
	require.NoError(t, err)
	callsAfterFirst := provider.callCount()

	second, err := extractor.Extract(context.Background(), req, nil)
	require.NoError(t, err)

	// 相同请求命中缓存，不再调用提供者
	assert.Equal(t, callsAfterFirst, provider.callCount())
	assert.Equal(t, first.Result.Terms, second.Result.Terms)

	// 不同的过滤器参与缓存键，不会命中
	_, err = extractor.Extract(context.Background(), models.ExtractionRequest{
		SourceText:   "API text for caching.",
		DomainFilter: "focus on technical terms",
	}, nil)
	require.NoError(t, err)
	assert.Greater(t, provider.callCount(), callsAfterFirst)
}

func TestExtractorService_ValidationError(t *testing.T) {
	provider := &stubProvider{text: "[]"}
	extractor := newStubExtractor(t, "stub-validate", provider, testPipeline())

	_, err := extractor.Extract(context.Background(), models.ExtractionRequest{SourceText: ""}, nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidationError(err))
	assert.Equal(t, 0, provider.callCount())
}

func TestExtractorService_ProviderNotReady(t *testing.T) {
	llmService := NewLLMService("no-such-provider", map[string]string{})
	assert.False(t, llmService.IsReady())

	history, err := storage.NewHistoryStore(t.TempDir())
	require.NoError(t, err)
	extractor := NewExtractorService(llmService, history, testPipeline())

	_, err = extractor.Extract(context.Background(), models.ExtractionRequest{SourceText: "text"}, nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsUnavailableError(err))
}

func TestExtractorService_Chunked(t *testing.T) {
	raw := `[{"term_en": "API", "term_zh": "應用程式介面"}]`
	provider := &stubProvider{text: raw}

	pipeline := testPipeline()
	pipeline.ChunkChars = 60
	extractor := newStubExtractor(t, "stub-chunked", provider, pipeline)

	// 多个句子，总长超过分块阈值
	text := strings.TrimSpace(strings.Repeat("This sentence talks about APIs and cloud computing at length. ", 5))

	record, err := extractor.Extract(context.Background(), models.ExtractionRequest{SourceText: text}, nil)
	require.NoError(t, err)

	// 每块各调用一次
	assert.Greater(t, provider.callCount(), 1)

	// 各块返回同一术语，合并后全局去重
	require.Len(t, record.Result.Terms, 1)
	assert.Equal(t, "API", record.Result.Terms[0].TermEnglish)
	assert.Greater(t, record.Result.Dropped, 0)
}

func TestExtractorService_Progress(t *testing.T) {
	raw := `[{"term_en": "API", "term_zh": "應用程式介面"}]`
	provider := &stubProvider{text: raw}
	extractor := newStubExtractor(t, "stub-progress", provider, testPipeline())

	var updates []int
	_, err := extractor.Extract(context.Background(),
		models.ExtractionRequest{SourceText: "API text."},
		func(pct int, msg string) { updates = append(updates, pct) })
	require.NoError(t, err)

	require.NotEmpty(t, updates)
	assert.Equal(t, 100, updates[len(updates)-1])
}

func TestExtractorService_Cancelled(t *testing.T) {
	provider := &stubProvider{text: "[]", delay: time.Second}
	extractor := newStubExtractor(t, "stub-cancel", provider, testPipeline())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := extractor.Extract(ctx, models.ExtractionRequest{SourceText: "some text"}, nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsCancelledError(err))
}
