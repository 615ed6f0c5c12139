package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/akolanti/docqa/internal/domain/commonModels"
	"github.com/akolanti/docqa/internal/metrics"
)

// Embedder maps text to vectors with one model for its whole lifetime.
type Embedder interface {
	GetEmbedding(ctx context.Context, query string) ([]float32, error)
	BatchEmbedding(ctx context.Context, chunks []string) ([][]float32, error)
	ModelName() string
}

// EmbedAll embeds texts in batches of batchSize, preserving order.
// Any failure is returned as a *commonModels.ProviderError.
func EmbedAll(ctx context.Context, e Embedder, texts []string, batchSize int) ([][]float32, error) {
	if batchSize <= 0 {
		batchSize = len(texts)
	}
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("embedding_batch", time.Since(start)) }()

	out := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += batchSize {
		end := min(i+batchSize, len(texts))
		vectors, err := e.BatchEmbedding(ctx, texts[i:end])
		if err != nil {
			return nil, asProviderError(e.ModelName(), err)
		}
		if len(vectors) != end-i {
			return nil, commonModels.NewProviderError(e.ModelName(), "embed",
				fmt.Errorf("got %d vectors for %d texts", len(vectors), end-i))
		}
		for j, v := range vectors {
			if len(v) == 0 {
				return nil, commonModels.NewProviderError(e.ModelName(), "embed",
					fmt.Errorf("empty vector for text %d", i+j))
			}
		}
		out = append(out, vectors...)
	}
	return out, nil
}

func asProviderError(model string, err error) error {
	var pe *commonModels.ProviderError
	if errors.As(err, &pe) {
		return err
	}
	return commonModels.NewProviderError(model, "embed", err)
}

type unavailableEmbedder struct {
	model string
	err   error
}

// Unavailable stands in for a provider that could not be constructed. Every
// call fails with err, so ingestion errors out and searches come back empty.
func Unavailable(model string, err error) Embedder {
	return &unavailableEmbedder{model: model, err: err}
}

func (u *unavailableEmbedder) GetEmbedding(ctx context.Context, query string) ([]float32, error) {
	return nil, commonModels.NewProviderError(u.model, "embed", u.err)
}

func (u *unavailableEmbedder) BatchEmbedding(ctx context.Context, chunks []string) ([][]float32, error) {
	return nil, commonModels.NewProviderError(u.model, "embed", u.err)
}

func (u *unavailableEmbedder) ModelName() string { return u.model }
