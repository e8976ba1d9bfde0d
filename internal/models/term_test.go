// internal/models/term_test.go
package models

import "testing"

func TestCoerceCategory(t *testing.T) {
	tests := []struct {
		raw  string
		want TermCategory
	}{
		{"technical", CategoryTechnical},
		{"Technical", CategoryTechnical},
		{"  TECHNICAL  ", CategoryTechnical},
		{"technical term", CategoryTechnical},
		{"technical-term", CategoryTechnical},
		{"technical_term", CategoryTechnical},
		{"jargon", CategoryTechnical},
		{"專業術語", CategoryTechnical},
		{"concept", CategoryConcept},
		{"概念", CategoryConcept},
		{"proper_noun", CategoryProperNoun},
		{"proper noun", CategoryProperNoun},
		{"專有名詞", CategoryProperNoun},
		{"other", CategoryOther},
		{"其他", CategoryOther},
		{"", CategoryOther},
		{"something unrecognized", CategoryOther},
		{"形容詞", CategoryOther},
	}

	for _, tt := range tests {
		if got := CoerceCategory(tt.raw); got != tt.want {
			t.Errorf("CoerceCategory(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestExtractionResultClone(t *testing.T) {
	original := &ExtractionResult{
		Terms: []TermRecord{
			{TermEnglish: "API", TermChinese: "應用程式介面"},
		},
		Dropped: 2,
	}

	clone := original.Clone()
	clone.Terms[0].TermEnglish = "modified"
	clone.Dropped = 99

	if original.Terms[0].TermEnglish != "API" {
		t.Error("clone shares underlying slice with original")
	}
	if original.Dropped != 2 {
		t.Error("clone mutated original counter")
	}

	var nilResult *ExtractionResult
	if nilResult.Clone() != nil {
		t.Error("nil clone should be nil")
	}
}
