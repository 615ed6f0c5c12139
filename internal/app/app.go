package app

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/akolanti/docqa/internal/auth"
	"github.com/akolanti/docqa/internal/config"
	"github.com/akolanti/docqa/internal/customHttpClient"
	"github.com/akolanti/docqa/internal/data/redisStore"
	"github.com/akolanti/docqa/internal/data/store"
	"github.com/akolanti/docqa/internal/domain/jobModel"
	"github.com/akolanti/docqa/internal/files"
	"github.com/akolanti/docqa/internal/rag"
	"github.com/akolanti/docqa/internal/rag/embedding"
	"github.com/akolanti/docqa/internal/rag/embedding/googleEmbedding"
	"github.com/akolanti/docqa/internal/rag/embedding/openaiEmbedding"
	"github.com/akolanti/docqa/internal/rag/ingest"
	"github.com/akolanti/docqa/internal/rag/llm"
	"github.com/akolanti/docqa/internal/rag/llm/anthropicLLM"
	"github.com/akolanti/docqa/internal/rag/llm/gemini"
	"github.com/akolanti/docqa/internal/rag/llm/openaiLLM"
	"github.com/akolanti/docqa/internal/rag/vectorDB"
	"github.com/akolanti/docqa/internal/rag/vectorDB/localDB"
	"github.com/akolanti/docqa/internal/rag/vectorDB/pgvectorDB"
	"github.com/akolanti/docqa/internal/rag/vectorDB/qdrantDB"
	"github.com/akolanti/docqa/pkg/logger_i"
)

// App holds every long-lived component. It is built once per process and
// shared by the HTTP server, the CLI and the MCP server.
type App struct {
	Config   *config.Config
	Store    *vectorDB.Adapter
	Embedder embedding.Embedder
	LLM      llm.Provider
	RAG      *rag.Service
	Pipeline *ingest.Pipeline
	Files    *files.Manager
	Users    *auth.UserStore
	Tokens   *auth.TokenService
	Runs     jobModel.RunStore
	Chats    jobModel.MessageStore

	closers []func() error
	logger  *logger_i.Logger
}

// Option replaces a provider that Build would otherwise create from the config.
type Option func(*overrides)

type overrides struct {
	embedder embedding.Embedder
	llm      llm.Provider
	llmSet   bool
}

func WithEmbedder(e embedding.Embedder) Option {
	return func(o *overrides) { o.embedder = e }
}

// WithLLM sets the answer model. A nil provider forces fallback answers.
func WithLLM(p llm.Provider) Option {
	return func(o *overrides) { o.llm, o.llmSet = p, true }
}

func Build(ctx context.Context, cfg *config.Config, creds config.Credentials, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("nil config")
	}
	var o overrides
	for _, opt := range opts {
		opt(&o)
	}
	a := &App{Config: cfg, logger: logger_i.NewLogger("App")}
	hc := customHttpClient.New(cfg.RequestTimeout)

	a.Embedder = o.embedder
	if a.Embedder == nil {
		a.Embedder = newEmbedder(ctx, cfg, creds, hc, a.logger)
	}
	a.Store = vectorDB.Select(ctx, a.Embedder.ModelName(), backendInitializers(cfg, a.logger)...)
	a.closers = append(a.closers, a.Store.Close)

	if o.llmSet {
		a.LLM = o.llm
	} else {
		a.LLM = newLLM(ctx, cfg, creds, hc, a.logger)
	}
	a.RAG = rag.NewService(rag.Options{
		Store:    a.Store,
		Embedder: a.Embedder,
		LLM:      a.LLM,
		K:        cfg.SearchK,
		Language: cfg.AnswerLanguage,
		Timeout:  cfg.RequestTimeout,
	})

	a.Runs, a.Chats = a.openStores(ctx)
	a.Pipeline = ingest.NewPipeline(ingest.PipelineOptions{
		Loader:     ingest.NewLoader(),
		Splitter:   ingest.NewSplitter(cfg.Chunking.Size, cfg.Chunking.Overlap),
		Embedder:   a.Embedder,
		Store:      a.Store,
		Collection: cfg.CollectionName,
		BatchSize:  config.EmbeddingBatchSize,
		Runs:       a.Runs,
	})

	a.Files = files.NewManager(cfg.DocsDir)
	a.Users = auth.NewUserStore(auth.Options{
		File:          cfg.Auth.File,
		AdminEmail:    cfg.Auth.AdminEmail,
		AdminPassword: cfg.Auth.AdminPassword,
	})
	a.Tokens = auth.NewTokenService(cfg.Auth.TokenSecret, cfg.Auth.TokenTTL)

	a.logger.Info("Application ready",
		"backend", a.Store.BackendName(),
		"kind", a.Store.Kind().String(),
		"embedding", a.Embedder.ModelName(),
		"llm", a.RAG.HasLLM(),
	)
	return a, nil
}

// backendInitializers orders the networked backend named by DATABASE_URL
// before the embedded one.
func backendInitializers(cfg *config.Config, log *logger_i.Logger) []vectorDB.Initializer {
	var inits []vectorDB.Initializer
	if dsn := strings.TrimSpace(cfg.DatabaseURL); dsn != "" {
		switch scheme(dsn) {
		case "postgres", "postgresql":
			inits = append(inits, pgvectorDB.Initializer(pgvectorDB.Options{DSN: dsn, Collection: cfg.CollectionName}))
		case "qdrant", "http", "https":
			inits = append(inits, qdrantDB.Initializer(qdrantDB.Options{URL: dsn, Collection: cfg.CollectionName, Timeout: cfg.RequestTimeout}))
		default:
			log.Warn("Unsupported DATABASE_URL scheme, using the embedded store", "scheme", scheme(dsn))
		}
	}
	return append(inits, localDB.Initializer(localDB.Options{Dir: cfg.VectorStoreDir, Collection: cfg.CollectionName}))
}

func scheme(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Scheme)
}

func newEmbedder(ctx context.Context, cfg *config.Config, creds config.Credentials, hc *http.Client, log *logger_i.Logger) embedding.Embedder {
	key := cfg.EmbeddingKey(creds)
	switch cfg.Embedding.Provider {
	case "google":
		model := cfg.Embedding.Model
		if model == config.DefaultEmbeddingModel {
			model = config.GoogleEmbeddingModel
		}
		e, err := googleEmbedding.New(ctx, googleEmbedding.Options{
			APIKey:     key,
			Model:      model,
			Dimensions: int32(cfg.Embedding.Dimensions),
			HTTPClient: hc,
			Timeout:    cfg.RequestTimeout,
		})
		if err != nil {
			log.Error("Embedding provider unavailable", "provider", "google", "error", err)
			return embedding.Unavailable(model, err)
		}
		return e
	default:
		e, err := openaiEmbedding.New(openaiEmbedding.Options{
			APIKey:     key,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
			HTTPClient: hc,
			Timeout:    cfg.RequestTimeout,
		})
		if err != nil {
			log.Error("Embedding provider unavailable", "provider", "openai", "error", err)
			return embedding.Unavailable(cfg.Embedding.Model, err)
		}
		return e
	}
}

// newLLM returns nil when the selected provider has no key. Answers are then
// built from the retrieved chunks.
func newLLM(ctx context.Context, cfg *config.Config, creds config.Credentials, hc *http.Client, log *logger_i.Logger) llm.Provider {
	key := cfg.LLMKey(creds)
	if key == "" {
		log.Info("No LLM key configured, answering with retrieved chunks only", "provider", cfg.LLM.Provider)
		return nil
	}
	model := cfg.LLM.Model
	if model == config.DefaultLLMModel && cfg.LLM.Provider != "openai" {
		model = ""
	}

	var (
		p   llm.Provider
		err error
	)
	switch cfg.LLM.Provider {
	case "gemini":
		p, err = gemini.New(ctx, gemini.Options{APIKey: key, Model: model, HTTPClient: hc, Timeout: cfg.RequestTimeout})
	case "anthropic":
		p, err = anthropicLLM.New(anthropicLLM.Options{APIKey: key, Model: model, HTTPClient: hc, Timeout: cfg.RequestTimeout})
	default:
		p, err = openaiLLM.New(openaiLLM.Options{APIKey: key, Model: model, HTTPClient: hc, Timeout: cfg.RequestTimeout})
	}
	if err != nil {
		log.Error("LLM provider unavailable, answering with retrieved chunks only", "provider", cfg.LLM.Provider, "error", err)
		return nil
	}
	return p
}

// openStores uses redis when REDIS_ADDR is set and reachable, memory otherwise.
func (a *App) openStores(ctx context.Context) (jobModel.RunStore, jobModel.MessageStore) {
	addr := a.Config.RedisAddr
	if addr == "" {
		return store.NewInMemoryRunStore(), store.NewInMemoryMessageStore()
	}
	runDB, err := redisStore.Open(ctx, redisStore.Options{Addr: addr, Password: a.Config.RedisPassword, DB: config.RedisRunStore})
	if err != nil {
		a.logger.Error("Redis is offline, keeping runs and chats in memory", "error", err)
		return store.NewInMemoryRunStore(), store.NewInMemoryMessageStore()
	}
	chatDB, err := redisStore.Open(ctx, redisStore.Options{Addr: addr, Password: a.Config.RedisPassword, DB: config.RedisMessageStore})
	if err != nil {
		_ = runDB.Close()
		a.logger.Error("Redis is offline, keeping runs and chats in memory", "error", err)
		return store.NewInMemoryRunStore(), store.NewInMemoryMessageStore()
	}
	a.closers = append(a.closers, runDB.Close, chatDB.Close)
	return store.NewRedisRunStore(runDB), store.NewRedisMessageStore(chatDB)
}

func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
