// internal/utils/text.go
package utils

import (
	"strings"
	"unicode/utf8"
)

// IsEnglishText 判断文本是否以英文为主
func IsEnglishText(text string) bool {
	if len(text) == 0 {
		return false
	}

	// 计数
	letterCount := 0
	chineseCount := 0
	totalValidChars := 0

	for _, r := range text {
		// 英文字母
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			letterCount++
			totalValidChars++
		}
		// 中文字符
		if r >= 0x4E00 && r <= 0x9FFF {
			chineseCount++
			totalValidChars++
		}
		// 数字也算有效字符
		if r >= '0' && r <= '9' {
			totalValidChars++
		}
	}

	if totalValidChars == 0 {
		return false
	}

	// 中文字符信息密度高，占比超过一成即按中文处理
	if float64(chineseCount)/float64(totalValidChars) > 0.1 {
		return false
	}

	return float64(letterCount)/float64(totalValidChars) > 0.5
}

// ContainsCJK 判断文本是否包含中日韩统一表意文字
func ContainsCJK(text string) bool {
	for _, r := range text {
		if r >= 0x4E00 && r <= 0x9FFF {
			return true
		}
	}
	return false
}

// ContainsLatinLetter 判断文本是否包含拉丁字母
func ContainsLatinLetter(text string) bool {
	for _, r := range text {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			return true
		}
	}
	return false
}

// 句子结束符，兼容中英文标点
var sentenceEnders = map[rune]bool{
	'.': true, '!': true, '?': true,
	'。': true, '！': true, '？': true,
	'\n': true,
}

// SplitSentences 按句子边界切分文本，保留结束标点
func SplitSentences(text string) []string {
	var sentences []string
	var builder strings.Builder

	for _, r := range text {
		builder.WriteRune(r)
		if sentenceEnders[r] {
			sentence := strings.TrimSpace(builder.String())
			if sentence != "" {
				sentences = append(sentences, sentence)
			}
			builder.Reset()
		}
	}

	if tail := strings.TrimSpace(builder.String()); tail != "" {
		sentences = append(sentences, tail)
	}

	return sentences
}

// ChunkText 将长文本按句子边界切分为不超过 maxChars 字符的块
// 单句超长时按字符数硬切，避免产生超出模型上下文的块
func ChunkText(text string, maxChars int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	if maxChars <= 0 || utf8.RuneCountInString(text) <= maxChars {
		return []string{text}
	}

	var chunks []string
	var builder strings.Builder
	currentLen := 0

	flush := func() {
		if chunk := strings.TrimSpace(builder.String()); chunk != "" {
			chunks = append(chunks, chunk)
		}
		builder.Reset()
		currentLen = 0
	}

	for _, sentence := range SplitSentences(text) {
		sentenceLen := utf8.RuneCountInString(sentence)

		// 超长单句直接硬切
		if sentenceLen > maxChars {
			flush()
			runes := []rune(sentence)
			for start := 0; start < len(runes); start += maxChars {
				end := start + maxChars
				if end > len(runes) {
					end = len(runes)
				}
				chunks = append(chunks, string(runes[start:end]))
			}
			continue
		}

		if currentLen+sentenceLen > maxChars && currentLen > 0 {
			flush()
		}

		if currentLen > 0 {
			builder.WriteByte(' ')
			currentLen++
		}
		builder.WriteString(sentence)
		currentLen += sentenceLen
	}

	flush()
	return chunks
}
