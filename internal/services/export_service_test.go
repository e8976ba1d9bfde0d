// internal/services/export_service_test.go
package services

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/digimarketingai/keyterms-server/internal/errors"
	"github.com/digimarketingai/keyterms-server/internal/models"
)

func sampleRecord() *models.ExtractionRecord {
	return &models.ExtractionRecord{
		ID:        "rec-1",
		CreatedAt: time.Now(),
		Result: &models.ExtractionResult{
			Terms: []models.TermRecord{
				{
					TermEnglish:       "API",
					TermChinese:       "應用程式介面",
					DefinitionEnglish: "An interface for software.",
					DefinitionChinese: "軟體之間的介面。",
					Category:          models.CategoryTechnical,
				},
				{
					TermEnglish:       "Pipe | Line",
					TermChinese:       "管線",
					DefinitionEnglish: "Has a pipe character.",
					DefinitionChinese: "含有管道符。",
					Category:          models.CategoryConcept,
				},
			},
		},
	}
}

func TestExportService_CSV(t *testing.T) {
	s := NewExportService()

	export, err := s.Export(sampleRecord(), "csv")
	require.NoError(t, err)

	assert.Equal(t, "csv", export.Format)
	assert.Equal(t, 2, export.TermCount)
	assert.True(t, strings.HasSuffix(export.FileName, ".csv"))

	// Excel识别中文依赖UTF-8 BOM
	require.True(t, bytes.HasPrefix(export.Content, []byte{0xEF, 0xBB, 0xBF}))

	reader := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(export.Content, []byte{0xEF, 0xBB, 0xBF})))
	rows, err := reader.ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, []string{"term_en", "term_zh", "definition_en", "definition_zh", "category"}, rows[0])
	assert.Equal(t, "API", rows[1][0])
	assert.Equal(t, "應用程式介面", rows[1][1])
	assert.Equal(t, "technical", rows[1][4])
	// 含特殊字符的字段由CSV编码处理，读回后不变
	assert.Equal(t, "Pipe | Line", rows[2][0])
}

func TestExportService_JSON(t *testing.T) {
	s := NewExportService()

	export, err := s.Export(sampleRecord(), "json")
	require.NoError(t, err)

	var terms []models.TermRecord
	require.NoError(t, json.Unmarshal(export.Content, &terms))
	require.Len(t, terms, 2)
	assert.Equal(t, "API", terms[0].TermEnglish)
	assert.Equal(t, models.CategoryConcept, terms[1].Category)
}

func TestExportService_Markdown(t *testing.T) {
	s := NewExportService()

	export, err := s.Export(sampleRecord(), "markdown")
	require.NoError(t, err)

	content := string(export.Content)
	assert.Contains(t, content, "| Term (EN) |")
	assert.Contains(t, content, "| API | 應用程式介面 |")
	// 管道符被转义，不破坏表格结构
	assert.Contains(t, content, `Pipe \| Line`)
}

func TestExportService_Table(t *testing.T) {
	s := NewExportService()

	t.Run("显式指定", func(t *testing.T) {
		export, err := s.Export(sampleRecord(), "table")
		require.NoError(t, err)
		assert.Contains(t, string(export.Content), "API")
		assert.Contains(t, string(export.Content), "應用程式介面")
	})

	t.Run("默认格式", func(t *testing.T) {
		export, err := s.Export(sampleRecord(), "")
		require.NoError(t, err)
		assert.Equal(t, FormatTable, export.Format)
	})
}

func TestExportService_Errors(t *testing.T) {
	s := NewExportService()

	t.Run("不支持的格式", func(t *testing.T) {
		_, err := s.Export(sampleRecord(), "xlsx")
		require.Error(t, err)
		assert.True(t, apperrors.IsValidationError(err))
	})

	t.Run("空记录", func(t *testing.T) {
		_, err := s.Export(nil, "csv")
		require.Error(t, err)
		assert.True(t, apperrors.IsValidationError(err))
	})
}
