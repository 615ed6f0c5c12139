package googleEmbedding

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
	"google.golang.org/genai"
)

const (
	taskDocument = "RETRIEVAL_DOCUMENT"
	taskQuery    = "RETRIEVAL_QUERY"
)

var retryDelay = 5 * time.Second

type Options struct {
	APIKey     string
	Model      string
	Dimensions int32
	HTTPClient *http.Client
	BaseURL    string
	Timeout    time.Duration
}

type Embedder struct {
	genAi     *genai.Client
	model     string
	dimension int32
	timeout   time.Duration
	logger    *logger_i.Logger
}

func New(ctx context.Context, opts Options) (*Embedder, error) {
	if opts.APIKey == "" {
		return nil, errors.New("google embedding: missing api key")
	}
	if opts.Model == "" {
		opts.Model = config.GoogleEmbeddingModel
	}
	if opts.Dimensions <= 0 {
		opts.Dimensions = config.EmbeddingOutputDimensionality
	}
	if opts.Timeout <= 0 {
		opts.Timeout = config.DefaultRequestTimeout
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      opts.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  opts.HTTPClient,
		HTTPOptions: genai.HTTPOptions{BaseURL: opts.BaseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("google embedding client: %w", err)
	}

	log := logger_i.NewLogger("google_embedding")
	log.Info("Google Embedding client created", "model", opts.Model, "dimension", opts.Dimensions)
	return &Embedder{genAi: c, model: opts.Model, dimension: opts.Dimensions, timeout: opts.Timeout, logger: log}, nil
}

func (c *Embedder) ModelName() string { return c.model }

func (c *Embedder) GetEmbedding(ctx context.Context, query string) ([]float32, error) {
	res, err := c.embed(ctx, getContent([]string{query}), taskQuery)
	if err != nil {
		return nil, err
	}
	if len(res) != 1 {
		return nil, commonModels.NewProviderError(c.model, "embed", fmt.Errorf("got %d embeddings for 1 query", len(res)))
	}
	return res[0], nil
}

func (c *Embedder) BatchEmbedding(ctx context.Context, chunks []string) ([][]float32, error) {
	if len(chunks) == 0 {
		return nil, nil
	}
	res, err := c.embed(ctx, getContent(chunks), taskDocument)
	if err != nil {
		return nil, err
	}
	if len(res) != len(chunks) {
		return nil, commonModels.NewProviderError(c.model, "embed", fmt.Errorf("got %d embeddings for %d chunks", len(res), len(chunks)))
	}
	return res, nil
}

// embed makes one call and retries it once after a rate limit.
func (c *Embedder) embed(ctx context.Context, content []*genai.Content, task string) ([][]float32, error) {
	log := c.logger.WithTrace(ctx, config.TRACE_ID_KEY)
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("embedding", time.Since(start)) }()

	res, err := c.doCall(ctx, content, task)
	if err != nil && doRetry(err, log) {
		log.Debug("Retrying in", "delay", retryDelay)
		select {
		case <-ctx.Done():
			return nil, commonModels.NewProviderError(c.model, "embed", ctx.Err())
		case <-time.After(retryDelay):
		}
		res, err = c.doCall(ctx, content, task)
	}
	if err != nil {
		log.Error("Error getting Embeddings from Google", "error", err)
		return nil, commonModels.NewProviderError(c.model, "embed", err)
	}
	if res == nil {
		return nil, commonModels.NewProviderError(c.model, "embed", errors.New("empty response"))
	}

	out := make([][]float32, 0, len(res.Embeddings))
	for _, r := range res.Embeddings {
		if r == nil {
			out = append(out, nil)
			continue
		}
		out = append(out, r.Values)
	}
	return out, nil
}

func (c *Embedder) doCall(ctx context.Context, content []*genai.Content, task string) (*genai.EmbedContentResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	dimension := c.dimension
	return c.genAi.Models.EmbedContent(ctx, c.model, content, &genai.EmbedContentConfig{OutputDimensionality: &dimension, TaskType: task})
}
