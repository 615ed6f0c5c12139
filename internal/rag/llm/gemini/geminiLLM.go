package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/akolanti/docqa/internal/config"
	"github.com/akolanti/docqa/internal/domain/commonModels"
	"github.com/akolanti/docqa/internal/metrics"
	"github.com/akolanti/docqa/internal/rag/llm"
	"github.com/akolanti/docqa/pkg/logger_i"
	"google.golang.org/genai"
)

type Options struct {
	APIKey     string
	Model      string
	HTTPClient *http.Client
	BaseURL    string
	Timeout    time.Duration
}

type llmClient struct {
	client    *genai.Client
	modelName string
	timeout   time.Duration
	logger    *logger_i.Logger
}

func New(ctx context.Context, opts Options) (llm.Provider, error) {
	if opts.APIKey == "" {
		return nil, errors.New("gemini: missing api key")
	}
	if opts.Model == "" {
		opts.Model = config.GeminiModelName
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
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	log := logger_i.NewLogger("llm_gemini")
	log.Info("Gemini client created", "model", opts.Model)
	return &llmClient{client: c, modelName: opts.Model, timeout: opts.Timeout, logger: log}, nil
}

func (c *llmClient) Name() string { return "gemini/" + c.modelName }

func (c *llmClient) Generate(ctx context.Context, system string, user string) (string, error) {
	log := c.logger.WithTrace(ctx, config.TRACE_ID_KEY)
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("llm_generation", time.Since(start)) }()

	contentConfig := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: system}}},
		Temperature:       genai.Ptr(float32(config.ModelTemperature)),
	}
	result, err := c.client.Models.GenerateContent(ctx, c.modelName, genai.Text(user), contentConfig)
	if err != nil {
		log.Error("Gemini generation failed", "error", err)
		return "", commonModels.NewProviderError(c.Name(), "generate", err)
	}
	text := strings.TrimSpace(result.Text())
	if text == "" {
		return "", commonModels.NewProviderError(c.Name(), "generate", llm.ErrEmptyCompletion)
	}
	return text, nil
}
