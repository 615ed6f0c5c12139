package anthropicLLM

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/akolanti/docqa/internal/config"
	"github.com/akolanti/docqa/internal/domain/commonModels"
	"github.com/akolanti/docqa/internal/metrics"
	"github.com/akolanti/docqa/internal/rag/llm"
	"github.com/akolanti/docqa/pkg/logger_i"
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

type Options struct {
	APIKey     string
	Model      string
	MaxTokens  int64
	HTTPClient *http.Client
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
}

type llmClient struct {
	client    anthropic.Client
	modelName string
	maxTokens int64
	logger    *logger_i.Logger
}

func New(opts Options) (llm.Provider, error) {
	if opts.APIKey == "" {
		return nil, errors.New("anthropic: missing api key")
	}
	if opts.Model == "" {
		opts.Model = config.AnthropicModelName
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = config.AnthropicMaxTokens
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
	log := logger_i.NewLogger("llm_anthropic")
	log.Info("Anthropic client created", "model", opts.Model)
	return &llmClient{client: anthropic.NewClient(reqOpts...), modelName: opts.Model, maxTokens: opts.MaxTokens, logger: log}, nil
}

func (c *llmClient) Name() string { return "anthropic/" + c.modelName }

func (c *llmClient) Generate(ctx context.Context, system string, user string) (string, error) {
	log := c.logger.WithTrace(ctx, config.TRACE_ID_KEY)
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("llm_generation", time.Since(start)) }()

	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		MaxTokens:   c.maxTokens,
		Model:       anthropic.Model(c.modelName),
		System:      []anthropic.TextBlockParam{{Text: system}},
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(user))},
		Temperature: anthropic.Float(config.ModelTemperature),
	})
	if err != nil {
		log.Error("Anthropic completion failed", "error", err)
		return "", commonModels.NewProviderError(c.Name(), "generate", err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", commonModels.NewProviderError(c.Name(), "generate", llm.ErrEmptyCompletion)
	}
	return text, nil
}
