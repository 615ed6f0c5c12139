package rag

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode"

	"github.com/akolanti/docqa/internal/domain/commonModels"
	"github.com/akolanti/docqa/internal/domain/jobModel"
	"github.com/akolanti/docqa/internal/rag/embedding"
	"github.com/akolanti/docqa/internal/rag/ingest"
	"github.com/akolanti/docqa/internal/rag/vectorDB"
	"github.com/akolanti/docqa/internal/rag/vectorDB/localDB"
)

type mockStore struct {
	available bool
	OnSearch  func(ctx context.Context, vector []float32, k int) ([]commonModels.ScoredChunk, error)
}

func (m *mockStore) IsAvailable(ctx context.Context) bool { return m.available }

func (m *mockStore) SimilaritySearch(ctx context.Context, vector []float32, k int) ([]commonModels.ScoredChunk, error) {
	if m.OnSearch != nil {
		return m.OnSearch(ctx, vector, k)
	}
	return nil, nil
}

type mockEmbedder struct {
	OnEmbed func(ctx context.Context, text string) ([]float32, error)
}

func (m *mockEmbedder) GetEmbedding(ctx context.Context, query string) ([]float32, error) {
	if m.OnEmbed != nil {
		return m.OnEmbed(ctx, query)
	}
	return []float32{1, 0}, nil
}

func (m *mockEmbedder) BatchEmbedding(ctx context.Context, chunks []string) ([][]float32, error) {
	out := make([][]float32, len(chunks))
	for i, c := range chunks {
		v, err := m.GetEmbedding(ctx, c)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (m *mockEmbedder) ModelName() string { return "mock-embedding" }

type mockLLM struct {
	OnGenerate func(ctx context.Context, system, user string) (string, error)
}

func (m *mockLLM) Generate(ctx context.Context, system, user string) (string, error) {
	if m.OnGenerate != nil {
		return m.OnGenerate(ctx, system, user)
	}
	return "mocked llm response", nil
}

func (m *mockLLM) Name() string { return "mock/llm" }

// keywordEmbedder counts a fixed vocabulary so that similarity follows word overlap.
type keywordEmbedder struct{}

var vocabulary = []string{"paris", "france", "capital", "tokyo", "japan", "berlin", "germany", "river"}

func (keywordEmbedder) GetEmbedding(ctx context.Context, text string) ([]float32, error) {
	v := make([]float32, len(vocabulary)+1)
	v[len(vocabulary)] = 0.1
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool { return !unicode.IsLetter(r) })
	for _, w := range words {
		for i, term := range vocabulary {
			if w == term {
				v[i]++
			}
		}
	}
	return v, nil
}

func (e keywordEmbedder) BatchEmbedding(ctx context.Context, chunks []string) ([][]float32, error) {
	out := make([][]float32, len(chunks))
	for i, c := range chunks {
		out[i], _ = e.GetEmbedding(ctx, c)
	}
	return out, nil
}

func (keywordEmbedder) ModelName() string { return "keyword-test" }

func sampleResults() []commonModels.SearchResult {
	return []commonModels.SearchResult{
		{Index: 1, Filename: "a.txt", Chunk: "alpha", Score: 0.1, Source: "docs/a.txt"},
		{Index: 2, Filename: "b.pdf", Page: commonModels.IntPtr(3), Chunk: "beta", Score: 0.4, Source: "docs/b.pdf"},
	}
}

func TestSearch_UnavailableStore(t *testing.T) {
	embedCalled := false
	s := NewService(Options{
		Store: &mockStore{available: false},
		Embedder: &mockEmbedder{OnEmbed: func(ctx context.Context, text string) ([]float32, error) {
			embedCalled = true
			return []float32{1}, nil
		}},
	})

	results := s.Search(context.Background(), "anything", 4)
	if results == nil || len(results) != 0 {
		t.Errorf("expected an empty slice, got %#v", results)
	}
	if embedCalled {
		t.Error("embedder should not be called when the store is unavailable")
	}
}

func TestSearch_UnavailableAdapter(t *testing.T) {
	adapter := vectorDB.Select(context.Background(), "mock-embedding")
	s := NewService(Options{Store: adapter, Embedder: &mockEmbedder{}})

	if got := s.Search(context.Background(), "anything", 4); len(got) != 0 {
		t.Errorf("expected no results, got %d", len(got))
	}
}

func TestSearch_FailuresYieldEmpty(t *testing.T) {
	tests := []struct {
		name     string
		embedder *mockEmbedder
		store    *mockStore
	}{
		{
			name: "embedding error",
			embedder: &mockEmbedder{OnEmbed: func(ctx context.Context, text string) ([]float32, error) {
				return nil, errors.New("rate limited")
			}},
			store: &mockStore{available: true},
		},
		{
			name:     "backend error",
			embedder: &mockEmbedder{},
			store: &mockStore{available: true, OnSearch: func(ctx context.Context, vector []float32, k int) ([]commonModels.ScoredChunk, error) {
				return nil, errors.New("connection reset")
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewService(Options{Store: tt.store, Embedder: tt.embedder})
			if got := s.Search(context.Background(), "q", 4); len(got) != 0 {
				t.Errorf("expected no results, got %d", len(got))
			}
		})
	}
}

func TestSearch_MapsHits(t *testing.T) {
	var gotK int
	store := &mockStore{available: true, OnSearch: func(ctx context.Context, vector []float32, k int) ([]commonModels.ScoredChunk, error) {
		gotK = k
		return []commonModels.ScoredChunk{
			{Chunk: commonModels.Chunk{Text: "first", Doc: commonModels.Document{Source: "docs/x.md", Filename: "x.md"}}, Distance: 0.05},
			{Chunk: commonModels.Chunk{Text: "second", Doc: commonModels.Document{Source: "docs/sub/y.pdf", Page: commonModels.IntPtr(7)}}, Distance: 0.3},
		}, nil
	}}
	s := NewService(Options{Store: store, Embedder: &mockEmbedder{}})

	results := s.Search(context.Background(), "q", 2)
	if gotK != 2 {
		t.Errorf("k = %d; want 2", gotK)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Index != 1 || results[1].Index != 2 {
		t.Errorf("ranks should be 1-based: %d, %d", results[0].Index, results[1].Index)
	}
	if results[0].Score != 0.05 || results[0].Filename != "x.md" || results[0].Page != nil {
		t.Errorf("unexpected first result %+v", results[0])
	}
	if results[1].Filename != "y.pdf" || results[1].Source != "docs/sub/y.pdf" || *results[1].Page != 7 {
		t.Errorf("unexpected second result %+v", results[1])
	}
}

func TestGenerateAnswer_NoResults(t *testing.T) {
	called := false
	s := NewService(Options{LLM: &mockLLM{OnGenerate: func(ctx context.Context, system, user string) (string, error) {
		called = true
		return "x", nil
	}}})

	text, used := s.GenerateAnswer(context.Background(), "q", nil)
	if text != "参照情報が見つかりませんでした。" || used {
		t.Errorf("got (%q, %v)", text, used)
	}
	if called {
		t.Error("model should not be called without results")
	}
}

func TestGenerateAnswer_Fallback(t *testing.T) {
	s := NewService(Options{})
	want := "以下の参照情報が見つかりました：\n\n[1] a.txt\nalpha\n\n[2] b.pdf (page 3)\nbeta\n"

	first, used := s.GenerateAnswer(context.Background(), "q", sampleResults())
	if used {
		t.Error("fallback must not report model use")
	}
	if first != want {
		t.Errorf("fallback = %q\nwant       %q", first, want)
	}
	second, _ := s.GenerateAnswer(context.Background(), "q", sampleResults())
	if first != second {
		t.Error("fallback is not reproducible")
	}
}

func TestGenerateAnswer_LLM(t *testing.T) {
	var gotSystem, gotUser string
	s := NewService(Options{LLM: &mockLLM{OnGenerate: func(ctx context.Context, system, user string) (string, error) {
		gotSystem, gotUser = system, user
		return "  Paris  \n", nil
	}}})

	text, used := s.GenerateAnswer(context.Background(), "首都は？", sampleResults())
	if !used || text != "Paris" {
		t.Errorf("got (%q, %v)", text, used)
	}
	if gotSystem != "あなたは業務アシスタントです。" {
		t.Errorf("system = %q", gotSystem)
	}
	if !strings.Contains(gotUser, "[a.txt]\nalpha\n\n[b.pdf (page 3)]\nbeta") {
		t.Errorf("context block missing from prompt:\n%s", gotUser)
	}
	if !strings.Contains(gotUser, "【質問】\n首都は？") || !strings.Contains(gotUser, "「分かりません」") {
		t.Errorf("prompt template not applied:\n%s", gotUser)
	}
}

func TestGenerateAnswer_LLMFailureFallsBack(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		err   error
	}{
		{"provider error", "", errors.New("503 service unavailable")},
		{"blank completion", "   ", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewService(Options{LLM: &mockLLM{OnGenerate: func(ctx context.Context, system, user string) (string, error) {
				return tt.reply, tt.err
			}}})
			text, used := s.GenerateAnswer(context.Background(), "q", sampleResults())
			if used {
				t.Error("failed generation must not report model use")
			}
			if text != NewService(Options{}).msg.fallbackAnswer(sampleResults()) {
				t.Errorf("expected the fallback answer, got %q", text)
			}
		})
	}
}

func TestMessagesFor(t *testing.T) {
	tests := []struct {
		lang string
		want string
	}{
		{"ja", "参照情報が見つかりませんでした。"},
		{"ja-JP", "参照情報が見つかりませんでした。"},
		{"en", "No reference information was found."},
		{"en-GB", "No reference information was found."},
		{"", "参照情報が見つかりませんでした。"},
		{"not a tag!", "参照情報が見つかりませんでした。"},
	}
	for _, tt := range tests {
		if got := messagesFor(tt.lang).NotFound; got != tt.want {
			t.Errorf("messagesFor(%q).NotFound = %q; want %q", tt.lang, got, tt.want)
		}
	}
}

func TestQuery_EndToEnd(t *testing.T) {
	ctx := context.Background()
	docs := t.TempDir()
	if err := os.WriteFile(filepath.Join(docs, "france.txt"), []byte("Paris is the capital of France."), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(docs, "japan.txt"), []byte("Tokyo is the capital of Japan."), 0o644); err != nil {
		t.Fatal(err)
	}

	store, err := localDB.Open(ctx, localDB.Options{Dir: t.TempDir(), Collection: "rag_documents"})
	if err != nil {
		t.Fatalf("open local store: %v", err)
	}
	defer store.Close()

	embedder := keywordEmbedder{}
	adapter := vectorDB.NewAdapter(store, vectorDB.Embedded, embedder.ModelName())
	pipeline := ingest.NewPipeline(ingest.PipelineOptions{
		Loader:     ingest.NewLoader(),
		Splitter:   ingest.NewSplitter(800, 120),
		Embedder:   embedder,
		Store:      adapter,
		Collection: "rag_documents",
	})
	report, err := pipeline.Run(ctx, ingest.RunRequest{Dir: docs, Trigger: jobModel.TriggerManual})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if report.Status != jobModel.RunStatusComplete || report.Chunks != 2 {
		t.Fatalf("unexpected report %+v", report)
	}

	s := NewService(Options{Store: adapter, Embedder: embedder, K: 2})
	answer := s.Query(ctx, "What is the capital of France?")

	if answer.UsedModel {
		t.Error("no model is configured")
	}
	if len(answer.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(answer.Results))
	}
	top := answer.Results[0]
	if top.Filename != "france.txt" || top.Index != 1 || !strings.Contains(top.Chunk, "Paris") {
		t.Errorf("unexpected top result %+v", top)
	}
	if top.Score >= answer.Results[1].Score {
		t.Errorf("results not ordered by distance: %v, %v", top.Score, answer.Results[1].Score)
	}
	if !strings.HasPrefix(answer.Text, "以下の参照情報が見つかりました：\n") || !strings.Contains(answer.Text, "[1] france.txt") {
		t.Errorf("unexpected fallback answer %q", answer.Text)
	}
}

func TestQuery_EmptyCorpus(t *testing.T) {
	ctx := context.Background()
	store, err := localDB.Open(ctx, localDB.Options{Dir: t.TempDir(), Collection: "rag_documents"})
	if err != nil {
		t.Fatalf("open local store: %v", err)
	}
	defer store.Close()

	embedder := keywordEmbedder{}
	adapter := vectorDB.NewAdapter(store, vectorDB.Embedded, embedder.ModelName())
	pipeline := ingest.NewPipeline(ingest.PipelineOptions{
		Loader: ingest.NewLoader(), Splitter: ingest.NewSplitter(800, 120), Embedder: embedder, Store: adapter,
	})
	report, err := pipeline.Run(ctx, ingest.RunRequest{Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if report.Status != jobModel.RunStatusSkipped {
		t.Errorf("status = %s; want SKIPPED", report.Status)
	}

	answer := NewService(Options{Store: adapter, Embedder: embedder}).Query(ctx, "anything")
	if answer.Text != "参照情報が見つかりませんでした。" || len(answer.Results) != 0 || answer.UsedModel {
		t.Errorf("unexpected answer %+v", answer)
	}
}

func newLocalAdapter(t *testing.T) *vectorDB.Adapter {
	t.Helper()
	store, err := localDB.Open(context.Background(), localDB.Options{Dir: t.TempDir(), Collection: "rag_documents"})
	if err != nil {
		t.Fatalf("open local store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return vectorDB.NewAdapter(store, vectorDB.Embedded, keywordEmbedder{}.ModelName())
}

func newTestPipeline(adapter *vectorDB.Adapter, embedder embedding.Embedder) *ingest.Pipeline {
	return ingest.NewPipeline(ingest.PipelineOptions{
		Loader:     ingest.NewLoader(),
		Splitter:   ingest.NewSplitter(800, 120),
		Embedder:   embedder,
		Store:      adapter,
		Collection: "rag_documents",
	})
}

func TestQuery_SingleDocumentDefaultK(t *testing.T) {
	ctx := context.Background()
	docs := t.TempDir()
	if err := os.WriteFile(filepath.Join(docs, "france.txt"), []byte("Paris is the capital of France."), 0o644); err != nil {
		t.Fatal(err)
	}

	adapter := newLocalAdapter(t)
	if _, err := newTestPipeline(adapter, keywordEmbedder{}).Run(ctx, ingest.RunRequest{Dir: docs}); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	s := NewService(Options{Store: adapter, Embedder: keywordEmbedder{}})
	if s.K() != 4 {
		t.Fatalf("default k = %d; want 4", s.K())
	}
	answer := s.Query(ctx, "What is the capital of France?")
	if answer.UsedModel {
		t.Error("no model is configured")
	}
	if len(answer.Results) != 1 {
		t.Fatalf("expected k to be capped to the single chunk, got %d results", len(answer.Results))
	}
	if answer.Results[0].Filename != "france.txt" {
		t.Errorf("unexpected result %+v", answer.Results[0])
	}
	if !strings.Contains(answer.Text, "france.txt") || !strings.Contains(answer.Text, "Paris is the capital of France.") {
		t.Errorf("fallback answer misses the source sentence: %q", answer.Text)
	}
}

func TestQuery_FailedReingestKeepsPreviousCollection(t *testing.T) {
	ctx := context.Background()
	docs := t.TempDir()
	if err := os.WriteFile(filepath.Join(docs, "france.txt"), []byte("Paris is the capital of France."), 0o644); err != nil {
		t.Fatal(err)
	}

	adapter := newLocalAdapter(t)
	if _, err := newTestPipeline(adapter, keywordEmbedder{}).Run(ctx, ingest.RunRequest{Dir: docs}); err != nil {
		t.Fatalf("first ingest: %v", err)
	}

	if err := os.WriteFile(filepath.Join(docs, "japan.txt"), []byte("Tokyo is the capital of Japan."), 0o644); err != nil {
		t.Fatal(err)
	}
	failing := &mockEmbedder{OnEmbed: func(ctx context.Context, text string) ([]float32, error) {
		return nil, errors.New("401 invalid api key")
	}}
	report, err := newTestPipeline(adapter, failing).Run(ctx, ingest.RunRequest{Dir: docs})
	if err == nil {
		t.Fatal("expected the second ingest to fail")
	}
	if report.Status != jobModel.RunStatusError {
		t.Errorf("status = %s; want ERROR", report.Status)
	}

	answer := NewService(Options{Store: adapter, Embedder: keywordEmbedder{}}).Query(ctx, "capital of Japan?")
	if len(answer.Results) != 1 || answer.Results[0].Filename != "france.txt" {
		t.Fatalf("expected only the previous collection, got %+v", answer.Results)
	}
	if !strings.Contains(answer.Text, "Paris is the capital of France.") {
		t.Errorf("unexpected answer %q", answer.Text)
	}
}
