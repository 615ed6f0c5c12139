package api

import "time"

type ErrorResponse struct {
	Id      string        `json:"id,omitempty" example:"run_cz109"`
	TraceId string        `json:"trace_id,omitempty"`
	Error   OutgoingError `json:"error"`
}

type OutgoingError struct {
	Code    int    `json:"code" example:"400"`
	Message string `json:"message" example:"message is required"`
	Retry   bool   `json:"can_retry" example:"false"`
}

type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	IsAdmin   bool      `json:"is_admin"`
}

type Source struct {
	Index    int     `json:"index" example:"1"`
	Filename string  `json:"filename" example:"handbook.pdf"`
	Page     *int    `json:"page,omitempty" example:"3"`
	Chunk    string  `json:"chunk"`
	Score    float64 `json:"score" example:"0.12"`
}

type ChatResponse struct {
	ChatId    string   `json:"chat_id" example:"chat_550"`
	Answer    string   `json:"answer"`
	Sources   []Source `json:"sources"`
	UsedModel bool     `json:"used_model"`
}

type ChatTurn struct {
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Sources   []string  `json:"sources"`
	UsedModel bool      `json:"used_model"`
	Time      time.Time `json:"time"`
}

type ChatHistoryResponse struct {
	ChatId string     `json:"chat_id"`
	Turns  []ChatTurn `json:"turns"`
}

// IngestResponse is returned when a run finishes. Failures lists the
// documents that could not be loaded; the run still succeeds without them.
type IngestResponse struct {
	Id         string   `json:"id"`
	Status     string   `json:"status" example:"COMPLETE"`
	StatusURL  string   `json:"status_url"`
	Documents  int      `json:"documents"`
	Chunks     int      `json:"chunks"`
	Failures   []string `json:"failures,omitempty"`
	Version    string   `json:"version,omitempty"`
	DurationMs int64    `json:"duration_ms"`
	Error      string   `json:"error,omitempty"`
}

type IngestRunResponse struct {
	Id           string    `json:"id"`
	Trigger      string    `json:"trigger" example:"upload"`
	Status       string    `json:"status" example:"RUNNING"`
	CurrentStep  string    `json:"current_step"`
	Documents    int       `json:"documents"`
	Chunks       int       `json:"chunks"`
	LoadFailures []string  `json:"load_failures,omitempty"`
	Warning      string    `json:"warning,omitempty"`
	Error        string    `json:"error,omitempty"`
	Backend      string    `json:"backend"`
	Version      string    `json:"version,omitempty"`
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time,omitempty"`
}

type FileResponse struct {
	Name    string    `json:"name" example:"handbook.pdf"`
	Size    int64     `json:"size" example:"20480"`
	ModTime time.Time `json:"mod_time"`
}

type FileListResponse struct {
	Directory string         `json:"directory"`
	Files     []FileResponse `json:"files"`
}

// FileChangeResponse reports the file that was written or removed and the
// re-index run it triggered.
type FileChangeResponse struct {
	File   FileResponse   `json:"file"`
	Ingest IngestResponse `json:"ingest"`
}

type CollectionResponse struct {
	Name           string    `json:"name"`
	EmbeddingModel string    `json:"embedding_model"`
	Dimension      int       `json:"dimension"`
	ChunkSize      int       `json:"chunk_size"`
	ChunkOverlap   int       `json:"chunk_overlap"`
	Version        string    `json:"version"`
	ChunkCount     int       `json:"chunk_count"`
	CreatedAt      time.Time `json:"created_at"`
}

type StatusResponse struct {
	Backend        string              `json:"backend" example:"local"`
	BackendKind    string              `json:"backend_kind" example:"embedded"`
	Available      bool                `json:"available"`
	Collection     *CollectionResponse `json:"collection,omitempty"`
	EmbeddingModel string              `json:"embedding_model"`
	LLMConfigured  bool                `json:"llm_configured"`
	LLMProvider    string              `json:"llm_provider,omitempty"`
	DocsDir        string              `json:"docs_dir"`
	LastRun        *IngestRunResponse  `json:"last_run,omitempty"`
}

// requests---------------------

type LoginRequest struct {
	Email    string `json:"email" validate:"required" example:"admin@example.com"`
	Password string `json:"password" validate:"required"`
}

type ChatRequest struct {
	Message string `json:"message" validate:"required"`
	ChatID  string `json:"chatID,omitempty"`
}
