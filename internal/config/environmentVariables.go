package config

import "time"

const (
	TRACE_ID_KEY                = "traceId"
	RATE_LIMIT_PER_SECOND       = 2
	BURST_RATE_LIMIT_PER_SECOND = 5

	//corpus + collection
	DefaultDocsDir        = "./docs"
	DefaultVectorStoreDir = "./vector_db"
	DefaultCollection     = "rag_documents"

	//chunking
	DefaultChunkSize    = 800
	DefaultChunkOverlap = 120

	//retrieval
	DefaultSearchK = 4

	//embeddings
	DefaultEmbeddingProvider            = "openai"
	DefaultEmbeddingModel               = "text-embedding-3-small"
	EmbeddingOutputDimensionality int32 = 1536
	GoogleEmbeddingModel                = "gemini-embedding-001"
	EmbeddingBatchSize                  = 100

	//llm
	DefaultLLMProvider            = "openai"
	DefaultLLMModel               = "gpt-4o-mini"
	GeminiModelName               = "gemini-2.5-flash-lite"
	AnthropicModelName            = "claude-3-5-haiku-latest"
	AnthropicMaxTokens            = 1024
	ModelTemperature      float64 = 0
	DefaultAnswerLanguage         = "ja"

	//outbound calls
	DefaultRequestTimeout = 30 * time.Second
	MaxIdleConns          = 50
	MaxIdleConnsPerHost   = 25
	IdleConnTimeout       = 60 * time.Second

	//serverTimeouts - ingestion runs inside the request
	ReadTimeout            = 60 * time.Second
	WriteTimeout           = 10 * time.Minute
	IdleTimeout            = 120 * time.Second
	ShutdownContextTimeout = 10 * time.Second

	//server listening port
	ServerListenAddr = ":3000"

	//upload limit for the file manager
	MaxUploadSize = 32 << 20

	//vectorDB
	QdrantConnectionTimeout = 10 * time.Second
	QdrantGrpcPort          = 6334
	QdrantPoolSize          = 1
	PostgresPingTimeout     = 10 * time.Second

	//redis has 16 DB we can use
	RedisRunStore     = 0
	RedisMessageStore = 1

	//redis timeouts
	RedisRunStoreTTL     = 24 * time.Hour
	RedisMessageStoreTTL = 24 * time.Hour
	ChatHistoryLength    = 5

	//auth
	DefaultAuthFile      = ".auth_users.json"
	DefaultAdminEmail    = "admin@example.com"
	DefaultAdminPassword = "admin123"
	DefaultTokenTTL      = 12 * time.Hour
)
