// internal/storage/history_store_test.go
package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/digimarketingai/keyterms-server/internal/errors"
	"github.com/digimarketingai/keyterms-server/internal/models"
)

func testRecord(id string, createdAt time.Time) *models.ExtractionRecord {
	return &models.ExtractionRecord{
		ID:        id,
		CreatedAt: createdAt,
		Result: &models.ExtractionResult{
			Terms: []models.TermRecord{
				{TermEnglish: "API", TermChinese: "應用程式介面", Category: models.CategoryTechnical},
			},
		},
	}
}

func TestHistoryStore_SaveGet(t *testing.T) {
	store, err := NewHistoryStore(t.TempDir())
	require.NoError(t, err)

	record := testRecord("rec-1", time.Now())
	require.NoError(t, store.Save(record))

	loaded, err := store.Get("rec-1")
	require.NoError(t, err)
	assert.Equal(t, record.ID, loaded.ID)
	assert.Equal(t, record.Result.Terms, loaded.Result.Terms)
}

func TestHistoryStore_GetMissing(t *testing.T) {
	store, err := NewHistoryStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Get("no-such-id")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFoundError(err))
}

func TestHistoryStore_List(t *testing.T) {
	store, err := NewHistoryStore(t.TempDir())
	require.NoError(t, err)

	now := time.Now()
	require.NoError(t, store.Save(testRecord("old", now.Add(-time.Hour))))
	require.NoError(t, store.Save(testRecord("new", now)))
	require.NoError(t, store.Save(testRecord("middle", now.Add(-30*time.Minute))))

	records, err := store.List()
	require.NoError(t, err)
	require.Len(t, records, 3)

	// 按创建时间倒序
	assert.Equal(t, "new", records[0].ID)
	assert.Equal(t, "middle", records[1].ID)
	assert.Equal(t, "old", records[2].ID)
}

func TestHistoryStore_Delete(t *testing.T) {
	store, err := NewHistoryStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Save(testRecord("rec-1", time.Now())))
	require.NoError(t, store.Delete("rec-1"))

	_, err = store.Get("rec-1")
	assert.True(t, apperrors.IsNotFoundError(err))

	err = store.Delete("rec-1")
	assert.True(t, apperrors.IsNotFoundError(err))
}

func TestHistoryStore_RejectsPathTraversal(t *testing.T) {
	store, err := NewHistoryStore(t.TempDir())
	require.NoError(t, err)

	for _, id := range []string{"", "../escape", "a/b", `a\b`} {
		_, err := store.Get(id)
		assert.True(t, apperrors.IsValidationError(err), "id %q", id)
	}
}

func TestResultCache(t *testing.T) {
	result := &models.ExtractionResult{
		Terms: []models.TermRecord{{TermEnglish: "API", TermChinese: "應用程式介面"}},
	}

	t.Run("命中返回副本", func(t *testing.T) {
		cache := NewResultCache(10, time.Minute)
		cache.Set("k", result)

		got, hit := cache.Get("k")
		require.True(t, hit)
		got.Terms[0].TermEnglish = "mutated"

		again, hit := cache.Get("k")
		require.True(t, hit)
		assert.Equal(t, "API", again.Terms[0].TermEnglish)
	})

	t.Run("过期视为未命中", func(t *testing.T) {
		cache := NewResultCache(10, time.Millisecond)
		cache.Set("k", result)

		time.Sleep(5 * time.Millisecond)
		_, hit := cache.Get("k")
		assert.False(t, hit)
	})

	t.Run("超容量淘汰", func(t *testing.T) {
		cache := NewResultCache(2, time.Minute)
		cache.Set("a", result)
		cache.Set("b", result)
		cache.Set("c", result)

		assert.LessOrEqual(t, cache.Len(), 2)
	})

	t.Run("缓存键包含全部请求参数", func(t *testing.T) {
		base := models.ExtractionRequest{SourceText: "text", DomainFilter: "f", MaxTerms: 5}

		k1 := CacheKey("mistral", "m1", base)
		assert.Equal(t, k1, CacheKey("mistral", "m1", base))

		changed := base
		changed.MaxTerms = 6
		assert.NotEqual(t, k1, CacheKey("mistral", "m1", changed))
		assert.NotEqual(t, k1, CacheKey("openai", "m1", base))
	})
}
