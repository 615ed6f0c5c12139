package app

import (
	"context"

	"github.com/akolanti/docqa/internal/config"
	"github.com/akolanti/docqa/internal/domain/commonModels"
	"github.com/akolanti/docqa/internal/domain/jobModel"
	"github.com/akolanti/docqa/internal/rag/ingest"
	"github.com/akolanti/docqa/internal/rag/vectorDB"
)

type Status struct {
	Backend        string                       `json:"backend"`
	BackendKind    string                       `json:"backend_kind"`
	Available      bool                         `json:"available"`
	Collection     *commonModels.CollectionMeta `json:"collection,omitempty"`
	EmbeddingModel string                       `json:"embedding_model"`
	LLMConfigured  bool                         `json:"llm_configured"`
	LLMProvider    string                       `json:"llm_provider,omitempty"`
	DocsDir        string                       `json:"docs_dir"`
	LastRun        *jobModel.IngestRun          `json:"last_run,omitempty"`
}

// Status gathers what the status views show. Store errors are logged and
// reported as an unavailable collection.
func (a *App) Status(ctx context.Context) Status {
	st := Status{
		Backend:        a.Store.BackendName(),
		BackendKind:    a.Store.Kind().String(),
		Available:      a.Store.IsAvailable(ctx),
		EmbeddingModel: a.Embedder.ModelName(),
		LLMConfigured:  a.LLM != nil,
		DocsDir:        a.Config.DocsDir,
	}
	if a.LLM != nil {
		st.LLMProvider = a.LLM.Name()
	}
	if a.Store.Kind() != vectorDB.Unavailable {
		meta, err := a.Store.Meta(ctx)
		if err != nil {
			a.logger.WithTrace(ctx, config.TRACE_ID_KEY).Warn("Could not read collection metadata", "error", err)
		}
		st.Collection = meta
	}
	if run, ok := a.Runs.LatestRun(ctx); ok {
		st.LastRun = &run
	}
	return st
}

// Reindex rebuilds the collection from the corpus directory.
func (a *App) Reindex(ctx context.Context, trigger, runId, traceId string) (ingest.Report, error) {
	return a.reindex(ctx, ingest.RunRequest{Trigger: trigger, RunId: runId, TraceId: traceId})
}

// TryReindex is Reindex that fails with ErrIngestBusy when a run is already in progress.
func (a *App) TryReindex(ctx context.Context, trigger, runId, traceId string) (ingest.Report, error) {
	return a.reindex(ctx, ingest.RunRequest{Trigger: trigger, RunId: runId, TraceId: traceId, NoWait: true})
}

func (a *App) reindex(ctx context.Context, req ingest.RunRequest) (ingest.Report, error) {
	req.Dir = a.Config.DocsDir
	return a.Pipeline.Run(ctx, req)
}
