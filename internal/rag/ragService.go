package rag

import (
	"context"
	"path/filepath"
	"time"

	"github.com/akolanti/docqa/internal/config"
	"github.com/akolanti/docqa/internal/domain/commonModels"
	"github.com/akolanti/docqa/internal/metrics"
	"github.com/akolanti/docqa/internal/rag/embedding"
	"github.com/akolanti/docqa/internal/rag/llm"
	"github.com/akolanti/docqa/pkg/logger_i"
)

// Retriever is the read side of the vector store adapter.
type Retriever interface {
	IsAvailable(ctx context.Context) bool
	SimilaritySearch(ctx context.Context, vector []float32, k int) ([]commonModels.ScoredChunk, error)
}

type Options struct {
	Store    Retriever
	Embedder embedding.Embedder
	// LLM may be nil, answers are then built from the retrieved chunks only.
	LLM      llm.Provider
	K        int
	Language string
	Timeout  time.Duration
}

// Service answers questions over the indexed collection. It keeps no
// per-request state and is safe for concurrent use.
type Service struct {
	store    Retriever
	embedder embedding.Embedder
	llm      llm.Provider
	k        int
	msg      messages
	timeout  time.Duration
	logger   *logger_i.Logger
}

func NewService(opts Options) *Service {
	if opts.K <= 0 {
		opts.K = config.DefaultSearchK
	}
	if opts.Timeout <= 0 {
		opts.Timeout = config.DefaultRequestTimeout
	}
	return &Service{
		store:    opts.Store,
		embedder: opts.Embedder,
		llm:      opts.LLM,
		k:        opts.K,
		msg:      messagesFor(opts.Language),
		timeout:  opts.Timeout,
		logger:   logger_i.NewLogger("RAG Service"),
	}
}

// HasLLM reports whether answers are generated by a model.
func (s *Service) HasLLM() bool { return s.llm != nil }

func (s *Service) K() int { return s.k }

// Search returns up to k results ranked by ascending distance. Every failure
// is logged and yields an empty slice.
func (s *Service) Search(ctx context.Context, question string, k int) []commonModels.SearchResult {
	log := s.logger.WithTrace(ctx, config.TRACE_ID_KEY)
	if k <= 0 || s.store == nil || s.embedder == nil {
		return []commonModels.SearchResult{}
	}
	if !s.store.IsAvailable(ctx) {
		log.Warn("Vector store has no usable collection")
		return []commonModels.SearchResult{}
	}

	vector, err := s.embedQuestion(ctx, question)
	if err != nil {
		log.Error("Query embedding failed", "error", err)
		return []commonModels.SearchResult{}
	}

	hits, err := s.search(ctx, vector, k)
	if err != nil {
		log.Error("Similarity search failed", "error", err)
		return []commonModels.SearchResult{}
	}

	results := make([]commonModels.SearchResult, 0, len(hits))
	for i, hit := range hits {
		results = append(results, toSearchResult(i+1, hit))
	}
	log.Debug("Search finished", "results", len(results))
	return results
}

// GenerateAnswer returns the answer text and whether a model produced it.
func (s *Service) GenerateAnswer(ctx context.Context, question string, results []commonModels.SearchResult) (string, bool) {
	if len(results) == 0 {
		return s.msg.NotFound, false
	}
	if s.llm == nil {
		return s.msg.fallbackAnswer(results), false
	}

	answer, err := s.generate(ctx, question, results)
	if err != nil {
		s.logger.WithTrace(ctx, config.TRACE_ID_KEY).Error("Answer generation failed, returning retrieved chunks", "provider", s.llm.Name(), "error", err)
		return s.msg.fallbackAnswer(results), false
	}
	return answer, true
}

// Query runs Search with the configured k and then GenerateAnswer.
func (s *Service) Query(ctx context.Context, question string) commonModels.Answer {
	start := time.Now()
	results := s.Search(ctx, question, s.k)
	text, used := s.GenerateAnswer(ctx, question, results)

	mode := "fallback"
	if used {
		mode = "llm"
	}
	metrics.CaptureQueryMetrics(mode, time.Since(start))
	return commonModels.Answer{Text: text, Results: results, UsedModel: used}
}

func toSearchResult(rank int, hit commonModels.ScoredChunk) commonModels.SearchResult {
	doc := hit.Chunk.Doc
	filename := doc.Filename
	if filename == "" {
		filename = filepath.Base(doc.Source)
	}
	source := doc.Source
	if source == "" {
		source = filename
	}
	return commonModels.SearchResult{
		Index:    rank,
		Filename: filename,
		Page:     doc.Page,
		Chunk:    hit.Chunk.Text,
		Score:    hit.Distance,
		Source:   source,
	}
}
