package rag

import (
	"context"
	"strings"
	"time"

	"github.com/akolanti/docqa/internal/domain/commonModels"
	"github.com/akolanti/docqa/internal/metrics"
	"github.com/akolanti/docqa/internal/rag/llm"
)

func (s *Service) embedQuestion(ctx context.Context, question string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("embedding", time.Since(start)) }()

	vector, err := s.embedder.GetEmbedding(ctx, question)
	if err != nil {
		return nil, commonModels.NewProviderError(s.embedder.ModelName(), "embed", err)
	}
	return vector, nil
}

func (s *Service) search(ctx context.Context, vector []float32, k int) ([]commonModels.ScoredChunk, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.store.SimilaritySearch(ctx, vector, k)
}

func (s *Service) generate(ctx context.Context, question string, results []commonModels.SearchResult) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("llm_generation", time.Since(start)) }()

	prompt := s.msg.prompt(buildContext(results), question)
	answer, err := s.llm.Generate(ctx, s.msg.SystemRole, prompt)
	if err != nil {
		return "", err
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", commonModels.NewProviderError(s.llm.Name(), "generate", llm.ErrEmptyCompletion)
	}
	return answer, nil
}
