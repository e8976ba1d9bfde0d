// internal/models/export.go
package models

import (
	"time"
)

// ExportResult 导出结果
type ExportResult struct {
	Format      string    `json:"format"`
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type"`
	Content     []byte    `json:"content"`
	TermCount   int       `json:"term_count"`
	GeneratedAt time.Time `json:"generated_at"`
}
