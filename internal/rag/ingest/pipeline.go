package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/akolanti/docqa/internal/domain/commonModels"
	"github.com/akolanti/docqa/internal/domain/jobModel"
	"github.com/akolanti/docqa/internal/metrics"
	"github.com/akolanti/docqa/internal/rag/embedding"
	"github.com/akolanti/docqa/pkg/logger_i"
	"github.com/google/uuid"
)

const embedBatchSize = 100

// CollectionWriter is the part of the vector adapter the pipeline writes through.
type CollectionWriter interface {
	ReplaceCollection(ctx context.Context, chunks []commonModels.Chunk, vectors [][]float32, meta commonModels.CollectionMeta) error
	BackendName() string
}

type PipelineOptions struct {
	Loader     *Loader
	Splitter   *Splitter
	Embedder   embedding.Embedder
	Store      CollectionWriter
	Collection string
	BatchSize  int
	// Runs is optional. When set every run is recorded while it progresses.
	Runs jobModel.RunStore
}

type RunRequest struct {
	Dir     string
	Trigger string
	RunId   string
	TraceId string
	// NoWait makes Run fail with ErrIngestBusy instead of queueing behind a run in progress.
	NoWait bool
}

// Report summarises one run. Status is COMPLETE, SKIPPED or ERROR.
type Report struct {
	RunId     string
	Status    jobModel.RunStatus
	Documents int
	Chunks    int
	Failures  []*commonModels.LoadError
	Version   string
	Duration  time.Duration
}

type Pipeline struct {
	opts   PipelineOptions
	sem    chan struct{}
	logger *logger_i.Logger
}

func NewPipeline(opts PipelineOptions) *Pipeline {
	if opts.Loader == nil {
		opts.Loader = NewLoader()
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = embedBatchSize
	}
	return &Pipeline{
		opts:   opts,
		sem:    make(chan struct{}, 1),
		logger: logger_i.NewLogger("Ingestion Pipeline"),
	}
}

// Run rebuilds the collection from req.Dir. Runs never overlap: a second
// caller blocks until the first finishes or its own ctx ends.
func (p *Pipeline) Run(ctx context.Context, req RunRequest) (Report, error) {
	if req.RunId == "" {
		req.RunId = uuid.NewString()
	}
	if req.Trigger == "" {
		req.Trigger = jobModel.TriggerManual
	}
	log := p.logger.With("runId", req.RunId, "traceId", req.TraceId)

	if req.NoWait {
		select {
		case p.sem <- struct{}{}:
		default:
			return Report{RunId: req.RunId, Status: jobModel.RunStatusError}, commonModels.ErrIngestBusy
		}
	} else {
		select {
		case p.sem <- struct{}{}:
		case <-ctx.Done():
			return Report{RunId: req.RunId, Status: jobModel.RunStatusError}, fmt.Errorf("%w: %v", commonModels.ErrIngestBusy, ctx.Err())
		}
	}
	defer func() { <-p.sem }()

	start := time.Now()
	run := jobModel.IngestRun{
		Id:          req.RunId,
		TraceId:     req.TraceId,
		Trigger:     req.Trigger,
		Status:      jobModel.RunStatusRunning,
		CurrentStep: jobModel.StepLoad,
		Backend:     p.opts.Store.BackendName(),
		CreatedTime: start.UTC(),
	}
	p.record(ctx, run)

	report, err := p.run(ctx, req.Dir, &run, log)
	report.RunId = req.RunId
	report.Duration = time.Since(start)

	run.EndTime = time.Now().UTC()
	run.Status = report.Status
	if err != nil {
		run.Error = err.Error()
	}
	p.record(ctx, run)
	metrics.IncrementIngestRuns(string(report.Status))
	metrics.CaptureExecutionMetrics("ingest_run", report.Duration)

	if err != nil {
		log.Error("Ingestion failed, previous collection kept", "step", run.CurrentStep, "error", err)
		return report, err
	}
	log.Info("Ingestion finished", "status", report.Status, "documents", report.Documents, "chunks", report.Chunks, "failures", len(report.Failures), "took", report.Duration)
	return report, nil
}

func (p *Pipeline) run(ctx context.Context, dir string, run *jobModel.IngestRun, log *logger_i.Logger) (Report, error) {
	report := Report{Status: jobModel.RunStatusError}

	loaded, err := p.opts.Loader.Load(ctx, dir)
	if err != nil {
		return report, fmt.Errorf("load %s: %w", dir, err)
	}
	report.Documents = len(loaded.Documents)
	report.Failures = loaded.Failures
	run.Documents = report.Documents
	for _, f := range loaded.Failures {
		run.LoadFailures = append(run.LoadFailures, f.Error())
	}

	if len(loaded.Documents) == 0 {
		log.Warn("No documents to ingest, collection left untouched", "dir", dir)
		report.Status = jobModel.RunStatusSkipped
		run.Warning = "no documents found"
		run.CurrentStep = jobModel.StepDone
		return report, nil
	}

	run.CurrentStep = jobModel.StepSplit
	p.record(ctx, *run)
	chunks := p.opts.Splitter.Split(loaded.Documents)
	report.Chunks = len(chunks)
	run.Chunks = len(chunks)
	log.Debug("Split documents", "documents", len(loaded.Documents), "chunks", len(chunks))
	if len(chunks) == 0 {
		log.Warn("Documents produced no chunks, collection left untouched", "dir", dir)
		report.Status = jobModel.RunStatusSkipped
		run.Warning = "documents contain no text"
		run.CurrentStep = jobModel.StepDone
		return report, nil
	}

	run.CurrentStep = jobModel.StepEmbedStore
	p.record(ctx, *run)
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	start := time.Now()
	vectors, err := embedding.EmbedAll(ctx, p.opts.Embedder, texts, p.opts.BatchSize)
	if err != nil {
		return report, err
	}

	version := newVersion(time.Now())
	meta := commonModels.CollectionMeta{
		Name:           p.opts.Collection,
		EmbeddingModel: p.opts.Embedder.ModelName(),
		ChunkSize:      p.opts.Splitter.ChunkSize,
		ChunkOverlap:   p.opts.Splitter.Overlap,
		Version:        version,
	}
	if err := p.opts.Store.ReplaceCollection(ctx, chunks, vectors, meta); err != nil {
		return report, err
	}
	metrics.CaptureExecutionMetrics("ingest_embed_store", time.Since(start))

	report.Status = jobModel.RunStatusComplete
	report.Version = version
	run.CollectionVer = version
	run.CurrentStep = jobModel.StepDone
	return report, nil
}

func (p *Pipeline) record(ctx context.Context, run jobModel.IngestRun) {
	if p.opts.Runs == nil {
		return
	}
	// a cancelled request still gets its final state written
	if err := p.opts.Runs.SaveRun(context.WithoutCancel(ctx), run); err != nil {
		p.logger.Warn("Could not record ingest run", "runId", run.Id, "error", err)
	}
}

func newVersion(t time.Time) string {
	return t.UTC().Format("20060102T150405") + "_" + uuid.NewString()[:8]
}

// IsBusy reports whether err came from waiting on a run that was already in progress.
func IsBusy(err error) bool {
	return errors.Is(err, commonModels.ErrIngestBusy)
}
