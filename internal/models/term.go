// internal/models/term.go
package models

import (
	"strings"
	"time"
)

// TermCategory 术语类别（封闭枚举）
type TermCategory string

const (
	CategoryTechnical  TermCategory = "technical"
	CategoryConcept    TermCategory = "concept"
	CategoryProperNoun TermCategory = "proper_noun"
	CategoryOther      TermCategory = "other"
)

// 定义缺失时使用的占位值
const (
	DefinitionUnavailableEN = "unavailable"
	DefinitionUnavailableZH = "暫無"
)

// CoerceCategory 将模型返回的任意类别文本归并到封闭枚举
// 无法识别的类别一律归为 other
func CoerceCategory(raw string) TermCategory {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = strings.NewReplacer(" ", "", "-", "", "_", "").Replace(normalized)

	switch normalized {
	case "technical", "technicalterm", "domainspecific", "jargon", "技術", "技术", "專業術語", "专业术语":
		return CategoryTechnical
	case "concept", "idea", "概念", "重要概念":
		return CategoryConcept
	case "propernoun", "name", "entity", "專有名詞", "专有名词", "人名", "地名":
		return CategoryProperNoun
	case "other", "其他":
		return CategoryOther
	}
	return CategoryOther
}

// TermRecord 单条提取的双语术语
type TermRecord struct {
	TermEnglish       string       `json:"term_en"`
	TermChinese       string       `json:"term_zh"`
	DefinitionEnglish string       `json:"definition_en"`
	DefinitionChinese string       `json:"definition_zh"`
	Category          TermCategory `json:"category"`
}

// ExtractionRequest 一次提取调用的输入，构造后不再修改
type ExtractionRequest struct {
	SourceText   string `json:"source_text"`
	DomainFilter string `json:"domain_filter,omitempty"`
	MaxTerms     int    `json:"max_terms,omitempty"`
}

// ExtractionResult 提取结果
// Terms 按源文本首次出现顺序排列；TermEnglish 去重后保证唯一（忽略大小写）
// Dropped 统计被丢弃的条目（结构不完整、重复等），仅用于观测，不构成错误
type ExtractionResult struct {
	Terms   []TermRecord `json:"terms"`
	Dropped int          `json:"dropped"`
}

// Clone 返回结果的深拷贝，缓存命中时避免共享底层切片
func (r *ExtractionResult) Clone() *ExtractionResult {
	if r == nil {
		return nil
	}
	clone := &ExtractionResult{
		Terms:   make([]TermRecord, len(r.Terms)),
		Dropped: r.Dropped,
	}
	copy(clone.Terms, r.Terms)
	return clone
}

// ExtractionRecord 持久化的提取历史条目
type ExtractionRecord struct {
	ID           string            `json:"id"`
	CreatedAt    time.Time         `json:"created_at"`
	SourceChars  int               `json:"source_chars"`
	DomainFilter string            `json:"domain_filter,omitempty"`
	MaxTerms     int               `json:"max_terms,omitempty"`
	Provider     string            `json:"provider,omitempty"`
	Model        string            `json:"model,omitempty"`
	Result       *ExtractionResult `json:"result"`
}
