// internal/services/export_service.go
package services

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/digimarketingai/keyterms-server/internal/errors"
	"github.com/digimarketingai/keyterms-server/internal/models"
)

// 支持的导出格式
const (
	FormatTable    = "table"
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
	FormatCSV      = "csv"
)

// ExportService 把提取结果渲染为各种下载格式
type ExportService struct{}

// NewExportService 创建导出服务
func NewExportService() *ExportService {
	return &ExportService{}
}

// Export 按指定格式渲染一条提取记录
func (s *ExportService) Export(record *models.ExtractionRecord, format string) (*models.ExportResult, error) {
	if record == nil || record.Result == nil {
		return nil, apperrors.NewValidationError("没有可导出的提取结果", nil)
	}

	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = FormatTable
	}

	terms := record.Result.Terms
	var content []byte
	var contentType, ext string
	var err error

	switch format {
	case FormatTable:
		content = renderTable(terms)
		contentType = "text/plain; charset=utf-8"
		ext = "txt"
	case FormatMarkdown:
		content = renderMarkdown(terms)
		contentType = "text/markdown; charset=utf-8"
		ext = "md"
	case FormatJSON:
		content, err = json.MarshalIndent(terms, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("序列化JSON失败: %w", err)
		}
		contentType = "application/json; charset=utf-8"
		ext = "json"
	case FormatCSV:
		content, err = renderCSV(terms)
		if err != nil {
			return nil, err
		}
		contentType = "text/csv; charset=utf-8"
		ext = "csv"
	default:
		return nil, apperrors.NewValidationError("不支持的导出格式: "+format, nil)
	}

	now := time.Now()
	return &models.ExportResult{
		Format:      format,
		FileName:    fmt.Sprintf("keyterms_%s.%s", now.Format("20060102_150405"), ext),
		ContentType: contentType,
		Content:     content,
		TermCount:   len(terms),
		GeneratedAt: now,
	}, nil
}

// Formats 返回支持的格式列表
func (s *ExportService) Formats() []string {
	return []string{FormatTable, FormatMarkdown, FormatJSON, FormatCSV}
}

// renderTable 渲染等宽文本表格
func renderTable(terms []models.TermRecord) []byte {
	var sb strings.Builder

	widthEN := len("Term (EN)")
	for _, t := range terms {
		if len(t.TermEnglish) > widthEN {
			widthEN = len(t.TermEnglish)
		}
	}

	fmt.Fprintf(&sb, "%-*s  %s\n", widthEN, "Term (EN)", "術語 (繁中)")
	sb.WriteString(strings.Repeat("-", widthEN+24))
	sb.WriteString("\n")

	for _, t := range terms {
		fmt.Fprintf(&sb, "%-*s  %s\n", widthEN, t.TermEnglish, t.TermChinese)
		fmt.Fprintf(&sb, "%-*s  [%s]\n", widthEN, "", t.Category)
		fmt.Fprintf(&sb, "%-*s  EN: %s\n", widthEN, "", t.DefinitionEnglish)
		fmt.Fprintf(&sb, "%-*s  中: %s\n\n", widthEN, "", t.DefinitionChinese)
	}

	return []byte(sb.String())
}

// renderMarkdown 渲染Markdown表格
func renderMarkdown(terms []models.TermRecord) []byte {
	var sb strings.Builder

	sb.WriteString("| Term (EN) | 術語 (繁中) | Definition (EN) | 定義 (繁中) | Category |\n")
	sb.WriteString("|---|---|---|---|---|\n")

	for _, t := range terms {
		fmt.Fprintf(&sb, "| %s | %s | %s | %s | %s |\n",
			escapeMarkdownCell(t.TermEnglish),
			escapeMarkdownCell(t.TermChinese),
			escapeMarkdownCell(t.DefinitionEnglish),
			escapeMarkdownCell(t.DefinitionChinese),
			t.Category)
	}

	return []byte(sb.String())
}

func escapeMarkdownCell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	return strings.ReplaceAll(s, "\n", " ")
}

// renderCSV 渲染CSV，带UTF-8 BOM以便Excel正确识别中文
func renderCSV(terms []models.TermRecord) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write([]byte{0xEF, 0xBB, 0xBF})

	writer := csv.NewWriter(&buf)
	if err := writer.Write([]string{"term_en", "term_zh", "definition_en", "definition_zh", "category"}); err != nil {
		return nil, fmt.Errorf("写入CSV表头失败: %w", err)
	}

	for _, t := range terms {
		row := []string{t.TermEnglish, t.TermChinese, t.DefinitionEnglish, t.DefinitionChinese, string(t.Category)}
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("写入CSV行失败: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("生成CSV失败: %w", err)
	}

	return buf.Bytes(), nil
}
