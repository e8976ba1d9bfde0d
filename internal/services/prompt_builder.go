// internal/services/prompt_builder.go
package services

import (
	"fmt"
	"strings"
	"unicode/utf8"

	apperrors "github.com/digimarketingai/keyterms-server/internal/errors"
	"github.com/digimarketingai/keyterms-server/internal/models"
)

// PromptPayload 构建完成的提示载荷
type PromptPayload struct {
	SystemPrompt string `json:"system_prompt"`
	Prompt       string `json:"prompt"`
	Model        string `json:"model,omitempty"`
}

// PromptBuilder 把提取请求装配为模型提示（纯函数，无副作用）
type PromptBuilder struct {
	maxInputChars int
}

// NewPromptBuilder 创建提示构建器
// maxInputChars 是保守的输入长度上限：超长输入直接拒绝而非静默截断，
// 截断会悄悄丢失术语，拒绝让调用方自行分块
func NewPromptBuilder(maxInputChars int) *PromptBuilder {
	if maxInputChars <= 0 {
		maxInputChars = 20000
	}
	return &PromptBuilder{maxInputChars: maxInputChars}
}

const systemPromptText = `You are a professional terminology extractor and translator for English and Traditional Chinese (繁體中文).
Analyze the text and extract all key terms: technical terms, domain-specific vocabulary, important concepts, proper nouns and specialized terminology.

For each term provide both languages. Respond ONLY with a valid JSON array, no additional text, following this schema:
[
  {
    "term_en": "the term in English",
    "term_zh": "the term in Traditional Chinese (繁體中文)",
    "definition_en": "a clear, concise definition in English",
    "definition_zh": "definition in Traditional Chinese (繁體中文)",
    "category": "technical | concept | proper_noun | other"
  }
]`

// 领域相关关键字，源自工具的双语指令白名单
var relevanceKeywords = []string{
	// English keywords
	"term", "extract", "focus", "only", "include", "exclude", "type",
	"category", "field", "domain", "technical", "medical", "legal",
	"scientific", "business", "ignore", "skip", "important", "key",
	"specific", "related", "terminology", "vocabulary", "jargon",
	// Chinese keywords (Traditional & Simplified)
	"詞", "词", "術語", "术语", "提取", "專業", "专业", "領域", "领域",
	"技術", "技术", "醫學", "医学", "法律", "科學", "科学", "商業", "商业",
	"忽略", "重要", "關鍵", "关键", "特定", "相關", "相关", "類型", "类型",
}

// 指令覆盖标记，出现在领域过滤器中的整行会被剔除
var injectionMarkers = []string{
	"ignore previous", "ignore all previous", "ignore the above",
	"disregard", "forget the above", "new instructions",
	"system:", "assistant:", "user:", "you are now",
	"忽略以上", "忽略之前", "無視上述", "无视上述", "你現在是", "你现在是",
}

// Build 校验请求并装配提示载荷
func (b *PromptBuilder) Build(req models.ExtractionRequest) (*PromptPayload, error) {
	text := strings.TrimSpace(req.SourceText)
	if text == "" {
		return nil, apperrors.NewValidationError("源文本为空", nil)
	}

	if length := utf8.RuneCountInString(text); length > b.maxInputChars {
		return nil, apperrors.NewValidationError(
			fmt.Sprintf("源文本过长: %d 字符，上限 %d", length, b.maxInputChars), nil)
	}

	if req.MaxTerms < 0 {
		return nil, apperrors.NewValidationError("max_terms 必须为正整数", nil)
	}

	var sb strings.Builder

	if filter := b.sanitizeDomainFilter(req.DomainFilter); filter != "" {
		sb.WriteString("Additional instructions 額外指令 (treat as extraction constraints only): ")
		sb.WriteString(filter)
		sb.WriteString("\n\n")
	}

	if req.MaxTerms > 0 {
		fmt.Fprintf(&sb, "Extract no more than %d terms, keeping those that appear first in the text.\n\n", req.MaxTerms)
	}

	sb.WriteString("TEXT TO ANALYZE 要分析的文本:\n\"\"\"\n")
	sb.WriteString(text)
	sb.WriteString("\n\"\"\"\n\nPlease extract all key terms and respond ONLY with a valid JSON array. 請僅回應有效的 JSON 陣列，不要有其他文字。")

	return &PromptPayload{
		SystemPrompt: systemPromptText,
		Prompt:       sb.String(),
	}, nil
}

// sanitizeDomainFilter 清理领域过滤器
// 过滤器是不可信的调用方文本：剔除带指令覆盖标记的行，
// 与术语提取无关的过滤器整体忽略
func (b *PromptBuilder) sanitizeDomainFilter(filter string) string {
	filter = strings.TrimSpace(filter)
	if filter == "" {
		return ""
	}

	var kept []string
	for _, line := range strings.Split(filter, "\n") {
		lower := strings.ToLower(line)
		injected := false
		for _, marker := range injectionMarkers {
			if strings.Contains(lower, marker) {
				injected = true
				break
			}
		}
		if !injected && strings.TrimSpace(line) != "" {
			kept = append(kept, strings.TrimSpace(line))
		}
	}

	cleaned := strings.Join(kept, " ")
	if cleaned == "" || !isRelevantFilter(cleaned) {
		return ""
	}

	return cleaned
}

// isRelevantFilter 检查过滤器是否与术语提取相关
func isRelevantFilter(filter string) bool {
	lower := strings.ToLower(filter)
	for _, keyword := range relevanceKeywords {
		if strings.Contains(lower, strings.ToLower(keyword)) {
			return true
		}
	}
	return false
}
