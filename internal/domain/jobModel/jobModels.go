package jobModel

import (
	"context"
	"time"
)

type RunStatus string
type InternalStatus string

const (
	RunStatusRunning  RunStatus = "RUNNING"
	RunStatusComplete RunStatus = "COMPLETE"
	RunStatusSkipped  RunStatus = "SKIPPED"
	RunStatusError    RunStatus = "ERROR"

	StepLoad       InternalStatus = "Load"
	StepSplit      InternalStatus = "Split"
	StepEmbedStore InternalStatus = "EmbedStore"
	StepDone       InternalStatus = "Done"

	TriggerManual  = "manual"
	TriggerUpload  = "upload"
	TriggerDelete  = "delete"
	TriggerStartup = "startup"
)

// IngestRun is the record of one ingestion pipeline execution.
type IngestRun struct {
	Id            string         `json:"id"`
	TraceId       string         `json:"trace_id"`
	Trigger       string         `json:"trigger"`
	Status        RunStatus      `json:"status"`
	CurrentStep   InternalStatus `json:"current_step"`
	Documents     int            `json:"documents"`
	Chunks        int            `json:"chunks"`
	LoadFailures  []string       `json:"load_failures,omitempty"`
	Warning       string         `json:"warning,omitempty"`
	Error         string         `json:"error,omitempty"`
	Backend       string         `json:"backend,omitempty"`
	CollectionVer string         `json:"collection_version,omitempty"`
	CreatedTime   time.Time      `json:"created_time"`
	EndTime       time.Time      `json:"end_time,omitempty"`
}

// ChatTurn is one question/answer exchange kept by the chat surface.
type ChatTurn struct {
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Sources   []string  `json:"sources,omitempty"`
	UsedModel bool      `json:"used_model"`
	Time      time.Time `json:"time"`
}

type RunStore interface {
	GetRun(ctx context.Context, runId string) (IngestRun, bool)
	SaveRun(ctx context.Context, run IngestRun) error
	LatestRun(ctx context.Context) (IngestRun, bool)
}

type MessageStore interface {
	ValidateChatId(ctx context.Context, id string) bool
	// ChatOwner returns the identity that started the chat.
	ChatOwner(ctx context.Context, id string) (string, bool)
	InitNewChat(ctx context.Context, id, owner string) error
	TrySaveChat(ctx context.Context, id string, turn ChatTurn) error
	GetMessageHistory(ctx context.Context, chatId string) ([]ChatTurn, error)
}
