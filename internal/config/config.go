package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the resolved runtime configuration. Values come from the package
// defaults, then an optional YAML file, then the environment.
type Config struct {
	DocsDir        string `yaml:"docs_dir"`
	VectorStoreDir string `yaml:"vector_store_dir"`
	CollectionName string `yaml:"collection_name"`
	DatabaseURL    string `yaml:"database_url"`

	Embedding EmbeddingConfig `yaml:"embedding"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	LLM       LLMConfig       `yaml:"llm"`

	SearchK        int           `yaml:"search_k"`
	AnswerLanguage string        `yaml:"answer_language"`
	RequestTimeout time.Duration `yaml:"request_timeout"`

	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`

	Auth AuthConfig `yaml:"auth"`

	ListenAddr string `yaml:"listen_addr"`
	LogLevel   string `yaml:"log_level"`
	LogFormat  string `yaml:"log_format"`
}

type EmbeddingConfig struct {
	Provider   string `yaml:"provider"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
}

type ChunkingConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

type LLMConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
}

type AuthConfig struct {
	File          string        `yaml:"file"`
	AdminEmail    string        `yaml:"admin_email"`
	AdminPassword string        `yaml:"admin_password"`
	TokenSecret   string        `yaml:"token_secret"`
	TokenTTL      time.Duration `yaml:"token_ttl"`
}

// Credentials are never read from the YAML file.
type Credentials struct {
	OpenAIKey    string
	GoogleKey    string
	AnthropicKey string
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DocsDir:        DefaultDocsDir,
		VectorStoreDir: DefaultVectorStoreDir,
		CollectionName: DefaultCollection,
		Embedding: EmbeddingConfig{
			Provider:   DefaultEmbeddingProvider,
			Model:      DefaultEmbeddingModel,
			Dimensions: int(EmbeddingOutputDimensionality),
		},
		Chunking: ChunkingConfig{Size: DefaultChunkSize, Overlap: DefaultChunkOverlap},
		LLM:      LLMConfig{Provider: DefaultLLMProvider, Model: DefaultLLMModel},

		SearchK:        DefaultSearchK,
		AnswerLanguage: DefaultAnswerLanguage,
		RequestTimeout: DefaultRequestTimeout,
		RedisAddr:      "",
		Auth: AuthConfig{
			File:          DefaultAuthFile,
			AdminEmail:    DefaultAdminEmail,
			AdminPassword: DefaultAdminPassword,
			TokenTTL:      DefaultTokenTTL,
		},
		ListenAddr: ServerListenAddr,
		LogLevel:   "debug",
		LogFormat:  "text",
	}
}

// Load resolves the configuration. A missing .env or YAML file is not an error.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	setString(&c.DocsDir, "DOCS_DIR")
	setString(&c.VectorStoreDir, "VECTOR_STORE_DIR")
	setString(&c.CollectionName, "COLLECTION_NAME")
	setString(&c.DatabaseURL, "DATABASE_URL")

	setString(&c.Embedding.Provider, "EMBEDDING_PROVIDER")
	setString(&c.Embedding.Model, "EMBEDDING_MODEL")
	setInt(&c.Embedding.Dimensions, "EMBEDDING_DIMENSIONS")

	setInt(&c.Chunking.Size, "CHUNK_SIZE")
	setInt(&c.Chunking.Overlap, "CHUNK_OVERLAP")
	setInt(&c.SearchK, "SEARCH_K")

	setString(&c.LLM.Provider, "LLM_PROVIDER")
	setString(&c.LLM.Model, "LLM_MODEL")
	setString(&c.AnswerLanguage, "ANSWER_LANGUAGE")
	setDuration(&c.RequestTimeout, "REQUEST_TIMEOUT")

	setString(&c.RedisAddr, "REDIS_ADDR")
	setString(&c.RedisPassword, "REDIS_PASSWORD")

	setString(&c.Auth.File, "AUTH_FILE")
	setString(&c.Auth.AdminEmail, "ADMIN_EMAIL")
	setString(&c.Auth.AdminPassword, "ADMIN_PASSWORD")
	setString(&c.Auth.TokenSecret, "AUTH_TOKEN_SECRET")
	setDuration(&c.Auth.TokenTTL, "AUTH_TOKEN_TTL")

	setString(&c.ListenAddr, "LISTEN_ADDR")
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.LogFormat, "LOG_FORMAT")
}

// Validate rejects combinations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Chunking.Size <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", c.Chunking.Size)
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size {
		return fmt.Errorf("chunk overlap must be in [0, %d), got %d", c.Chunking.Size, c.Chunking.Overlap)
	}
	if c.SearchK <= 0 {
		return fmt.Errorf("search k must be positive, got %d", c.SearchK)
	}
	if strings.TrimSpace(c.CollectionName) == "" {
		return errors.New("collection name is empty")
	}
	switch c.Embedding.Provider {
	case "openai", "google":
	default:
		return fmt.Errorf("unknown embedding provider %q", c.Embedding.Provider)
	}
	switch c.LLM.Provider {
	case "openai", "gemini", "anthropic":
	default:
		return fmt.Errorf("unknown llm provider %q", c.LLM.Provider)
	}
	return nil
}

// LoadCredentials reads the provider API keys from the environment.
func LoadCredentials() Credentials {
	return Credentials{
		OpenAIKey:    os.Getenv("OPENAI_API_KEY"),
		GoogleKey:    os.Getenv("GOOGLE_API_KEY"),
		AnthropicKey: os.Getenv("ANTHROPIC_API_KEY"),
	}
}

// LLMKey returns the key for the configured LLM provider. An empty key means
// answers are produced without a model.
func (c *Config) LLMKey(cr Credentials) string {
	switch c.LLM.Provider {
	case "gemini":
		return cr.GoogleKey
	case "anthropic":
		return cr.AnthropicKey
	default:
		return cr.OpenAIKey
	}
}

func (c *Config) EmbeddingKey(cr Credentials) string {
	if c.Embedding.Provider == "google" {
		return cr.GoogleKey
	}
	return cr.OpenAIKey
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		*dst = strings.TrimSpace(v)
	}
}

func setInt(dst *int, key string) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return
	}
	if n, err := strconv.Atoi(v); err == nil {
		*dst = n
	}
}

func setDuration(dst *time.Duration, key string) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return
	}
	if d, err := time.ParseDuration(v); err == nil {
		*dst = d
	}
}
