package openaiLLM

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
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

type Options struct {
	APIKey     string
	Model      string
	HTTPClient *http.Client
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
}

type llmClient struct {
	client    openai.Client
	modelName string
	logger    *logger_i.Logger
}

func New(opts Options) (llm.Provider, error) {
	if opts.APIKey == "" {
		return nil, errors.New("openai: missing api key")
	}
	if opts.Model == "" {
		opts.Model = config.DefaultLLMModel
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
	log := logger_i.NewLogger("llm_openai")
	log.Info("OpenAI client created", "model", opts.Model)
	return &llmClient{client: openai.NewClient(reqOpts...), modelName: opts.Model, logger: log}, nil
}

func (c *llmClient) Name() string { return "openai/" + c.modelName }

func (c *llmClient) Generate(ctx context.Context, system string, user string) (string, error) {
	log := c.logger.WithTrace(ctx, config.TRACE_ID_KEY)
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("llm_generation", time.Since(start)) }()

	res, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Model:       c.modelName,
		Temperature: openai.Float(config.ModelTemperature),
	})
	if err != nil {
		log.Error("OpenAI completion failed", "error", err)
		return "", commonModels.NewProviderError(c.Name(), "generate", err)
	}
	if len(res.Choices) == 0 {
		return "", commonModels.NewProviderError(c.Name(), "generate", llm.ErrEmptyCompletion)
	}
	text := strings.TrimSpace(res.Choices[0].Message.Content)
	if text == "" {
		return "", commonModels.NewProviderError(c.Name(), "generate", llm.ErrEmptyCompletion)
	}
	return text, nil
}
