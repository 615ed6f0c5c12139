package openaiEmbedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/akolanti/docqa/internal/config"
	"github.com/akolanti/docqa/internal/domain/commonModels"
	"github.com/akolanti/docqa/internal/metrics"
	"github.com/akolanti/docqa/pkg/logger_i"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

type Options struct {
	APIKey     string
	Model      string
	Dimensions int
	HTTPClient *http.Client
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
}

type Embedder struct {
	client     openai.Client
	model      string
	dimensions int
	logger     *logger_i.Logger
}

func New(opts Options) (*Embedder, error) {
	if opts.APIKey == "" {
		return nil, errors.New("openai embedding: missing api key")
	}
	if opts.Model == "" {
		opts.Model = config.DefaultEmbeddingModel
	}
	if opts.Timeout <= 0 {
		opts.Timeout = config.DefaultRequestTimeout
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithRequestTimeout(opts.Timeout),
		option.WithMaxRetries(opts.MaxRetries),
	}
	if opts.HTTPClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(opts.HTTPClient))
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}

	log := logger_i.NewLogger("openai_embedding")
	log.Info("OpenAI Embedding client created", "model", opts.Model, "dimensions", opts.Dimensions)
	return &Embedder{
		client:     openai.NewClient(reqOpts...),
		model:      opts.Model,
		dimensions: opts.Dimensions,
		logger:     log,
	}, nil
}

func (e *Embedder) ModelName() string { return e.model }

func (e *Embedder) GetEmbedding(ctx context.Context, query string) ([]float32, error) {
	vectors, err := e.BatchEmbedding(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (e *Embedder) BatchEmbedding(ctx context.Context, chunks []string) ([][]float32, error) {
	if len(chunks) == 0 {
		return nil, nil
	}
	log := e.logger.WithTrace(ctx, config.TRACE_ID_KEY)
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("embedding", time.Since(start)) }()

	params := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: chunks},
		Model: e.model,
	}
	// only the text-embedding-3 family accepts a dimensions override
	if e.dimensions > 0 && e.model != openai.EmbeddingModelTextEmbeddingAda002 {
		params.Dimensions = openai.Int(int64(e.dimensions))
	}

	res, err := e.client.Embeddings.New(ctx, params)
	if err != nil {
		log.Error("Error getting Embeddings from OpenAI", "error", err, "texts", len(chunks))
		return nil, commonModels.NewProviderError(e.model, "embed", err)
	}
	if len(res.Data) != len(chunks) {
		return nil, commonModels.NewProviderError(e.model, "embed", fmt.Errorf("got %d embeddings for %d texts", len(res.Data), len(chunks)))
	}

	out := make([][]float32, len(chunks))
	for _, d := range res.Data {
		if d.Index < 0 || int(d.Index) >= len(out) || out[d.Index] != nil {
			return nil, commonModels.NewProviderError(e.model, "embed", fmt.Errorf("unexpected embedding index %d", d.Index))
		}
		v := make([]float32, len(d.Embedding))
		for i, f := range d.Embedding {
			v[i] = float32(f)
		}
		out[d.Index] = v
	}
	log.Debug("Embedded batch", "texts", len(chunks), "took", time.Since(start))
	return out, nil
}
