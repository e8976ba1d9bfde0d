// internal/llm/providers/mistral/mistral_test.go
package mistral

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	apperrors "github.com/digimarketingai/keyterms-server/internal/errors"
	"github.com/digimarketingai/keyterms-server/internal/llm"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) (*Provider, *httptest.Server) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	provider := &Provider{baseURL: "https://api.mistral.ai/v1"}
	err := provider.Initialize(map[string]string{
		"api_key":  "test-key",
		"base_url": server.URL,
	})
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	return provider, server
}

func TestInitialize(t *testing.T) {
	t.Run("缺少密钥", func(t *testing.T) {
		p := &Provider{}
		if err := p.Initialize(map[string]string{}); err == nil {
			t.Fatal("expected error for missing api_key")
		}
	})

	t.Run("默认模型", func(t *testing.T) {
		p := &Provider{}
		if err := p.Initialize(map[string]string{"api_key": "k"}); err != nil {
			t.Fatalf("Initialize: %v", err)
		}
		if p.defaultModel != "mistral-medium-latest" {
			t.Errorf("defaultModel = %q", p.defaultModel)
		}
	})

	t.Run("覆盖模型", func(t *testing.T) {
		p := &Provider{}
		if err := p.Initialize(map[string]string{"api_key": "k", "default_model": "open-mistral-nemo"}); err != nil {
			t.Fatalf("Initialize: %v", err)
		}
		if p.defaultModel != "open-mistral-nemo" {
			t.Errorf("defaultModel = %q", p.defaultModel)
		}
	})
}

func TestCompleteText(t *testing.T) {
	var gotAuth string
	var gotBody map[string]interface{}

	provider, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotBody)

		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":    "cmpl-1",
			"model": "mistral-medium-latest",
			"choices": []map[string]interface{}{
				{
					"index":         0,
					"message":       map[string]string{"role": "assistant", "content": `[{"term_en": "API"}]`},
					"finish_reason": "stop",
				},
			},
			"usage": map[string]int{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
		})
	})

	resp, err := provider.CompleteText(context.Background(), llm.CompletionRequest{
		Prompt:       "extract terms",
		SystemPrompt: "you are an extractor",
		Temperature:  0.3,
	})
	if err != nil {
		t.Fatalf("CompleteText: %v", err)
	}

	if resp.Text != `[{"term_en": "API"}]` {
		t.Errorf("Text = %q", resp.Text)
	}
	if resp.TokensUsed != 15 {
		t.Errorf("TokensUsed = %d, want 15", resp.TokensUsed)
	}
	if resp.ProviderName != "Mistral" {
		t.Errorf("ProviderName = %q", resp.ProviderName)
	}

	if gotAuth != "Bearer test-key" {
		t.Errorf("Authorization = %q", gotAuth)
	}

	// 系统提示排在用户消息之前
	messages, ok := gotBody["messages"].([]interface{})
	if !ok || len(messages) != 2 {
		t.Fatalf("messages = %v", gotBody["messages"])
	}
	first := messages[0].(map[string]interface{})
	if first["role"] != "system" {
		t.Errorf("first message role = %v", first["role"])
	}
}

func TestCompleteText_ErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		check  func(error) bool
	}{
		{"401为认证错误", http.StatusUnauthorized, apperrors.IsAuthError},
		{"403为认证错误", http.StatusForbidden, apperrors.IsAuthError},
		{"429为瞬时错误", http.StatusTooManyRequests, apperrors.IsUnavailableError},
		{"500为瞬时错误", http.StatusInternalServerError, apperrors.IsUnavailableError},
		{"503为瞬时错误", http.StatusServiceUnavailable, apperrors.IsUnavailableError},
		{"408为超时", http.StatusRequestTimeout, apperrors.IsTimeoutError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "upstream error", tt.status)
			})

			_, err := provider.CompleteText(context.Background(), llm.CompletionRequest{Prompt: "x"})
			if err == nil {
				t.Fatal("expected error")
			}
			if !tt.check(err) {
				t.Errorf("wrong error classification: %v", err)
			}
		})
	}
}

func TestCompleteText_ContextCancelled(t *testing.T) {
	provider, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := provider.CompleteText(ctx, llm.CompletionRequest{Prompt: "x"})
	if err != context.Canceled {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestCompleteText_EmptyChoices(t *testing.T) {
	provider, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"choices": []interface{}{}})
	})

	_, err := provider.CompleteText(context.Background(), llm.CompletionRequest{Prompt: "x"})
	if err == nil {
		t.Fatal("expected error for empty choices")
	}
}

func TestRegistered(t *testing.T) {
	provider, err := llm.GetProvider("mistral", map[string]string{"api_key": "k"})
	if err != nil {
		t.Fatalf("GetProvider: %v", err)
	}
	if provider.GetName() != "Mistral" {
		t.Errorf("GetName = %q", provider.GetName())
	}
	if len(provider.GetSupportedModels()) == 0 {
		t.Error("no supported models")
	}
}
