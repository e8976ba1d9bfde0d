// internal/utils/text_test.go
package utils

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestIsEnglishText(t *testing.T) {
	tests := []struct {
		name string
		text string
		want bool
	}{
		{"纯英文", "Machine learning is a subset of artificial intelligence.", true},
		{"纯中文", "機器學習是人工智慧的一個分支。", false},
		{"中文为主夹杂英文", "機器學習 machine learning 是人工智慧的分支，應用廣泛而且越來越多。", false},
		{"英文夹少量中文", strings.Repeat("english words here ", 20) + "你", true},
		{"空字符串", "", false},
		{"纯标点", "!!! ???", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsEnglishText(tt.text); got != tt.want {
				t.Errorf("IsEnglishText(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestContainsCJK(t *testing.T) {
	if !ContainsCJK("hello 世界") {
		t.Error("expected CJK detected")
	}
	if ContainsCJK("hello world") {
		t.Error("expected no CJK")
	}
}

func TestSplitSentences(t *testing.T) {
	t.Run("中英文混合标点", func(t *testing.T) {
		text := "First sentence. 第二句。Third one! 第四句？"
		got := SplitSentences(text)

		want := []string{"First sentence.", "第二句。", "Third one!", "第四句？"}
		if len(got) != len(want) {
			t.Fatalf("got %d sentences: %v", len(got), got)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("sentence %d = %q, want %q", i, got[i], want[i])
			}
		}
	})

	t.Run("无结束符的尾部保留", func(t *testing.T) {
		got := SplitSentences("First. trailing fragment")
		if len(got) != 2 || got[1] != "trailing fragment" {
			t.Errorf("got %v", got)
		}
	})
}

func TestChunkText(t *testing.T) {
	t.Run("短文本不分块", func(t *testing.T) {
		chunks := ChunkText("short text.", 100)
		if len(chunks) != 1 || chunks[0] != "short text." {
			t.Errorf("got %v", chunks)
		}
	})

	t.Run("按句子边界分块", func(t *testing.T) {
		text := strings.TrimSpace(strings.Repeat("This is a sentence. ", 10))
		chunks := ChunkText(text, 50)

		if len(chunks) < 2 {
			t.Fatalf("expected multiple chunks, got %d", len(chunks))
		}
		for i, chunk := range chunks {
			if utf8.RuneCountInString(chunk) > 50 {
				t.Errorf("chunk %d exceeds limit: %d chars", i, utf8.RuneCountInString(chunk))
			}
			if !strings.HasSuffix(chunk, ".") {
				t.Errorf("chunk %d not on sentence boundary: %q", i, chunk)
			}
		}
	})

	t.Run("超长单句硬切", func(t *testing.T) {
		text := strings.Repeat("字", 100)
		chunks := ChunkText(text, 30)

		if len(chunks) != 4 {
			t.Fatalf("expected 4 chunks, got %d", len(chunks))
		}
		total := 0
		for _, chunk := range chunks {
			total += utf8.RuneCountInString(chunk)
		}
		if total != 100 {
			t.Errorf("lost characters: total = %d", total)
		}
	})

	t.Run("空文本", func(t *testing.T) {
		if chunks := ChunkText("   ", 10); chunks != nil {
			t.Errorf("got %v", chunks)
		}
	})
}
