package anthropicLLM

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/akolanti/docqa/internal/domain/commonModels"
	"github.com/akolanti/docqa/internal/rag/llm"
)

func newServer(t *testing.T, reply string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			System []struct {
				Text string `json:"text"`
			} `json:"system"`
			MaxTokens int `json:"max_tokens"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("bad body: %v", err)
		}
		if len(body.System) != 1 || body.System[0].Text != "system" || body.MaxTokens != 1024 {
			t.Errorf("unexpected request %+v", body)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGenerate(t *testing.T) {
	srv := newServer(t, `{"id":"m1","type":"message","role":"assistant","model":"claude-3-5-haiku-latest",
		"content":[{"type":"text","text":"Paris "},{"type":"text","text":"is the capital."}],
		"stop_reason":"end_turn","usage":{"input_tokens":1,"output_tokens":1}}`)

	p, err := New(Options{APIKey: "k", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	got, err := p.Generate(context.Background(), "system", "question")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if got != "Paris is the capital." {
		t.Errorf("Generate() = %q", got)
	}
}

func TestGenerate_EmptyCompletion(t *testing.T) {
	srv := newServer(t, `{"id":"m1","type":"message","role":"assistant","model":"claude-3-5-haiku-latest",
		"content":[],"stop_reason":"end_turn","usage":{"input_tokens":1,"output_tokens":0}}`)

	p, _ := New(Options{APIKey: "k", BaseURL: srv.URL})
	_, err := p.Generate(context.Background(), "system", "question")
	var pe *commonModels.ProviderError
	if !errors.As(err, &pe) || !errors.Is(err, llm.ErrEmptyCompletion) {
		t.Fatalf("expected an empty completion ProviderError, got %v", err)
	}
}
