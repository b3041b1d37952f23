package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kbukum/speakerhub/llm"
	"github.com/kbukum/speakerhub/provider"
)

func chatServer(t *testing.T, finish string, check func(body map[string]any)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if check != nil {
			check(body)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"model":  "gpt-4o-mini",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": `{"summary":"ok"}`},
				"finish_reason": finish,
			}},
			"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
		})
	}))
}

func TestComplete(t *testing.T) {
	srv := chatServer(t, "stop", func(body map[string]any) {
		msgs, _ := body["messages"].([]any)
		if len(msgs) != 2 {
			t.Errorf("messages = %v, want system + user", msgs)
		}
		rf, _ := body["response_format"].(map[string]any)
		if rf["type"] != "json_object" {
			t.Errorf("response_format = %v", body["response_format"])
		}
	})
	defer srv.Close()

	p := NewProvider(provider.Config{BaseURL: srv.URL + "/v1", APIKey: "sk-test", Retries: 1}, nil)
	resp, err := p.Complete(context.Background(), llm.CompletionRequest{
		SystemPrompt: "Analyze.",
		Messages:     []llm.Message{{Role: "user", Content: "transcript"}},
		JSON:         true,
		Temperature:  0.3,
	})
	if err != nil {
		t.Fatalf("Complete() error: %v", err)
	}
	if resp.Content != `{"summary":"ok"}` || resp.FinishReason != llm.FinishStop {
		t.Errorf("response = %+v", resp)
	}
	if resp.Usage.TotalTokens != 15 {
		t.Errorf("usage = %+v", resp.Usage)
	}
}

func TestComplete_FinishReasons(t *testing.T) {
	tests := []struct {
		finish string
		want   string
	}{
		{"length", llm.FinishMaxTokens},
		{"content_filter", llm.FinishSafety},
		{"tool_calls", llm.FinishOther},
	}
	for _, tt := range tests {
		t.Run(tt.finish, func(t *testing.T) {
			srv := chatServer(t, tt.finish, nil)
			defer srv.Close()

			p := NewProvider(provider.Config{BaseURL: srv.URL + "/v1", APIKey: "sk-test", Retries: 1}, nil)
			resp, err := p.Complete(context.Background(), llm.CompletionRequest{
				Messages: []llm.Message{{Role: "user", Content: "hi"}},
			})
			if err != nil {
				t.Fatalf("Complete() error: %v", err)
			}
			if resp.FinishReason != tt.want {
				t.Errorf("FinishReason = %q, want %q", resp.FinishReason, tt.want)
			}
		})
	}
}
