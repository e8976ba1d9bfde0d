// internal/services/normalizer.go
package services

import (
	"encoding/json"
	"regexp"
	"strings"
	"unicode"

	apperrors "github.com/digimarketingai/keyterms-server/internal/errors"
	"github.com/digimarketingai/keyterms-server/internal/models"
	"github.com/digimarketingai/keyterms-server/internal/utils"
)

// Normalizer 把原始模型输出解析为结构化提取结果
// 两阶段解析：先按请求的JSON格式严格解析，结构解析失败时
// 退回逐行启发式提取，部分结果优于整体失败
type Normalizer struct{}

// NewNormalizer 创建归一化器
func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// termCandidate 两个解析阶段共用的中间形态，验证前不保证字段完整
type termCandidate struct {
	termEN   string
	termZH   string
	defEN    string
	defZH    string
	category string
}

// Normalize 解析原始输出并应用验证、去重与截断
// 纯函数：相同输入必然产生相同结果
func (n *Normalizer) Normalize(raw string, req models.ExtractionRequest) (*models.ExtractionResult, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, apperrors.NewEmptyResultError("模型输出为空", nil)
	}

	candidates, dropped, ok := parseStructured(raw)
	if !ok {
		// 结构解析失败：逐行启发式提取，无法解析的行计入丢弃数
		candidates, dropped = parseLines(raw)
	}

	if len(candidates) == 0 {
		return nil, apperrors.NewEmptyResultError("模型输出中没有可解析的条目", nil)
	}

	return n.validate(candidates, dropped, req.MaxTerms), nil
}

// validate 校验候选条目并应用去重与截断不变式
func (n *Normalizer) validate(candidates []termCandidate, dropped int, maxTerms int) *models.ExtractionResult {
	terms := make([]models.TermRecord, 0, len(candidates))
	seen := make(map[string]bool, len(candidates))

	for _, c := range candidates {
		termEN := strings.TrimSpace(c.termEN)
		termZH := strings.TrimSpace(c.termZH)

		// 双语术语缺一即为结构不完整，丢弃并计数
		if termEN == "" || termZH == "" {
			dropped++
			continue
		}

		// TermEnglish 去重（忽略大小写），保留首次出现的定义
		key := strings.ToLower(termEN)
		if seen[key] {
			dropped++
			continue
		}
		seen[key] = true

		// 定义缺失用占位值标记，不因此丢弃整条记录
		defEN := strings.TrimSpace(c.defEN)
		if defEN == "" {
			defEN = models.DefinitionUnavailableEN
		}
		defZH := strings.TrimSpace(c.defZH)
		if defZH == "" {
			defZH = models.DefinitionUnavailableZH
		}

		terms = append(terms, models.TermRecord{
			TermEnglish:       termEN,
			TermChinese:       termZH,
			DefinitionEnglish: defEN,
			DefinitionChinese: defZH,
			Category:          models.CoerceCategory(c.category),
		})
	}

	// 按首次出现顺序截断，不做重要性评分
	if maxTerms > 0 && len(terms) > maxTerms {
		terms = terms[:maxTerms]
	}

	return &models.ExtractionResult{Terms: terms, Dropped: dropped}
}

// ---------------------------------------------------------------------------
// 阶段一：严格JSON解析

// parseStructured 清洗后按JSON数组解析
// 返回 ok=false 表示结构解析整体失败，应进入启发式阶段
func parseStructured(raw string) ([]termCandidate, int, bool) {
	cleaned := CleanModelJSON(raw)
	if cleaned == "" || cleaned[0] != '[' {
		return nil, 0, false
	}

	var entries []map[string]interface{}
	if err := json.Unmarshal([]byte(cleaned), &entries); err != nil {
		return nil, 0, false
	}

	candidates := make([]termCandidate, 0, len(entries))
	dropped := 0

	for _, entry := range entries {
		if entry == nil {
			dropped++
			continue
		}
		candidates = append(candidates, candidateFromEntry(entry))
	}

	return candidates, dropped, true
}

// candidateFromEntry 从JSON对象提取候选条目，兼容早期版本的键名
func candidateFromEntry(entry map[string]interface{}) termCandidate {
	c := termCandidate{
		termEN:   pickString(entry, "term_en", "term_english", "english"),
		termZH:   pickString(entry, "term_zh", "term_chinese", "chinese"),
		defEN:    pickString(entry, "definition_en", "definition"),
		defZH:    pickString(entry, "definition_zh"),
		category: pickString(entry, "category", "type"),
	}

	// 旧格式: term(原文) + translation(译文)，按字符判断语言方向
	if c.termEN == "" || c.termZH == "" {
		term := pickString(entry, "term")
		translation := pickString(entry, "translation")
		if term != "" {
			if utils.ContainsCJK(term) {
				if c.termZH == "" {
					c.termZH = term
				}
				if c.termEN == "" {
					c.termEN = translation
				}
			} else {
				if c.termEN == "" {
					c.termEN = term
				}
				if c.termZH == "" {
					c.termZH = translation
				}
			}
		}
	}

	return c
}

func pickString(entry map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if value, exists := entry[key]; exists {
			if s, isString := value.(string); isString {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}

// ---------------------------------------------------------------------------
// 阶段二：逐行启发式提取

// 形如 "1. term - definition"、"• term：definition" 的行
var lineEntryPattern = regexp.MustCompile(`^\s*(?:[-*•]\s+)?(?:\d+\s*[.)、]\s*)?(.+?)\s*(?:[-–—]\s+|[:：]\s*)(.+)$`)

// parseLines 从非结构化输出中逐行恢复术语条目
// 每个非空行要么产出一个候选条目，要么计入丢弃数
func parseLines(raw string) ([]termCandidate, int) {
	var candidates []termCandidate
	dropped := 0

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		match := lineEntryPattern.FindStringSubmatch(line)
		if match == nil {
			dropped++
			continue
		}

		termEN, termZH := splitBilingualTerm(match[1])
		if termEN == "" && termZH == "" {
			dropped++
			continue
		}

		c := termCandidate{termEN: termEN, termZH: termZH}

		definition := strings.TrimSpace(match[2])
		if utils.ContainsCJK(definition) {
			c.defZH = definition
		} else {
			c.defEN = definition
		}

		candidates = append(candidates, c)
	}

	return candidates, dropped
}

// splitBilingualTerm 从术语单元中分离中英文部分
// 支持 "Machine Learning（機器學習）"、"機器學習 (Machine Learning)"、
// "Machine Learning / 機器學習" 与中英文直接相邻等写法
func splitBilingualTerm(cell string) (string, string) {
	cell = strings.TrimSpace(strings.Trim(cell, "*_`【】「」"))
	if cell == "" {
		return "", ""
	}

	// 括号写法：外层与括号内各为一种语言
	if outer, inner, found := splitParenthesized(cell); found {
		return assignByScript(outer, inner)
	}

	// 斜线分隔写法
	if idx := strings.IndexAny(cell, "/|"); idx > 0 {
		return assignByScript(cell[:idx], cell[idx+1:])
	}

	// 中英文相邻：把连续的CJK段与其余部分分开
	var cjk, latin strings.Builder
	for _, r := range cell {
		if (r >= 0x4E00 && r <= 0x9FFF) || isCJKPunct(r) {
			cjk.WriteRune(r)
		} else {
			latin.WriteRune(r)
		}
	}

	return strings.TrimSpace(latin.String()), strings.TrimSpace(cjk.String())
}

func splitParenthesized(cell string) (outer, inner string, found bool) {
	for _, pair := range [][2]string{{"（", "）"}, {"(", ")"}} {
		open := strings.Index(cell, pair[0])
		if open < 0 {
			continue
		}
		closing := strings.LastIndex(cell, pair[1])
		if closing <= open {
			continue
		}
		outer = strings.TrimSpace(cell[:open] + cell[closing+len(pair[1]):])
		inner = strings.TrimSpace(cell[open+len(pair[0]) : closing])
		if outer != "" && inner != "" {
			return outer, inner, true
		}
	}
	return "", "", false
}

// assignByScript 按文字系统把两个片段分配到英文/中文槽位
func assignByScript(a, b string) (string, string) {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if utils.ContainsCJK(a) && !utils.ContainsCJK(b) {
		return b, a
	}
	if utils.ContainsCJK(b) && !utils.ContainsCJK(a) {
		return a, b
	}
	// 两边同一种文字：无法构成双语术语，交给验证阶段丢弃
	if utils.ContainsCJK(a) {
		return "", a
	}
	return a, ""
}

func isCJKPunct(r rune) bool {
	return r == '，' || r == '、' || r == '。' || r == '・'
}

// ---------------------------------------------------------------------------
// JSON清洗

// 统一替换常见的噪声、全角符号以及Markdown标记
var jsonNoiseReplacer = strings.NewReplacer(
	"```json", "",
	"```", "",
	"\uFEFF", "",
	" ", " ",
	" ", "\n",
	" ", "\n",
)

var structuralPunctuationMap = map[rune]rune{
	'：': ':',
	'﹕': ':',
	'，': ',',
	'﹐': ',',
	'；': ';',
	'﹔': ';',
	'【': '[',
	'】': ']',
	'［': '[',
	'］': ']',
	'｛': '{',
	'｝': '}',
	'（': '(',
	'）': ')',
}

var quotePairs = map[rune]rune{
	'"': '"',
	'“': '”',
	'”': '”',
	'„': '”',
	'‟': '”',
	'「': '」',
	'」': '」',
	'『': '』',
	'﹁': '﹂',
	'﹂': '﹂',
}

func normalizeJSONStructure(s string) string {
	if s == "" {
		return s
	}

	var builder strings.Builder
	builder.Grow(len(s))
	inString := false
	escaped := false
	currentClosing := '"'

	for _, r := range s {
		if inString {
			if !escaped && r == '\\' {
				escaped = true
				builder.WriteRune(r)
				continue
			}

			if escaped {
				escaped = false
				builder.WriteRune(r)
				continue
			}

			if r == currentClosing || r == '"' {
				inString = false
				currentClosing = '"'
				builder.WriteRune('"')
				continue
			}

			builder.WriteRune(r)
			continue
		}

		if replacement, ok := structuralPunctuationMap[r]; ok {
			r = replacement
		} else if closing, ok := quotePairs[r]; ok {
			inString = true
			currentClosing = closing
			builder.WriteRune('"')
			continue
		} else if r == '"' {
			inString = true
			currentClosing = '"'
			builder.WriteRune(r)
			continue
		} else if r > unicode.MaxASCII && !unicode.IsSpace(r) {
			// 丢弃出现在字符串外的异常Unicode字符（例如 æ、• 等）
			continue
		}

		builder.WriteRune(r)
	}

	return builder.String()
}

// CleanModelJSON 清理模型输出，提取其中的JSON片段
// 去除Markdown围栏与零宽字符，规范化全角标点，再按括号配平截取
func CleanModelJSON(s string) string {
	if s == "" {
		return s
	}

	s = jsonNoiseReplacer.Replace(s)
	s = strings.TrimSpace(s)

	// 移除零宽字符及除换行/制表符外的控制字符
	s = strings.Map(func(r rune) rune {
		switch r {
		case '​', '‌', '‍', '⁠', '\uFEFF':
			return -1
		}
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			return -1
		}
		return r
	}, s)

	// 查找第一个 { 或 [，将其之前的内容全部丢弃
	start := strings.IndexAny(s, "[{")
	if start == -1 {
		return s
	}

	s = strings.TrimSpace(s[start:])
	if s == "" {
		return s
	}

	s = normalizeJSONStructure(s)

	isArray := len(s) > 0 && s[0] == '['

	// 简单的括号计数匹配
	balance := 0
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		char := s[i]

		if escaped {
			escaped = false
			continue
		}

		if char == '\\' {
			escaped = true
			continue
		}

		if char == '"' {
			inString = !inString
			continue
		}

		if !inString {
			if isArray {
				if char == '[' {
					balance++
				} else if char == ']' {
					balance--
				}
			} else {
				if char == '{' {
					balance++
				} else if char == '}' {
					balance--
				}
			}

			if balance == 0 {
				// 找到了匹配的结束符
				return strings.TrimSpace(s[:i+1])
			}
		}
	}

	// 没找到匹配的结束符，回退到最后一个闭合符号
	end := -1
	if isArray {
		end = strings.LastIndex(s, "]")
	} else {
		end = strings.LastIndex(s, "}")
	}

	if end != -1 {
		return strings.TrimSpace(s[:end+1])
	}

	return strings.TrimSpace(s)
}
