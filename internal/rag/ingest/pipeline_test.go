package ingest

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/akolanti/docqa/internal/domain/commonModels"
	"github.com/akolanti/docqa/internal/domain/jobModel"
)

type mockEmbedder struct {
	OnBatch func(ctx context.Context, chunks []string) ([][]float32, error)
}

func (m *mockEmbedder) GetEmbedding(ctx context.Context, query string) ([]float32, error) {
	return []float32{1, 0}, nil
}

func (m *mockEmbedder) BatchEmbedding(ctx context.Context, chunks []string) ([][]float32, error) {
	if m.OnBatch != nil {
		return m.OnBatch(ctx, chunks)
	}
	out := make([][]float32, len(chunks))
	for i := range chunks {
		out[i] = []float32{1, float32(i)}
	}
	return out, nil
}

func (m *mockEmbedder) ModelName() string { return "mock-embedding" }

type mockWriter struct {
	OnReplace func(ctx context.Context, chunks []commonModels.Chunk, vectors [][]float32, meta commonModels.CollectionMeta) error
	calls     int32
}

func (m *mockWriter) ReplaceCollection(ctx context.Context, chunks []commonModels.Chunk, vectors [][]float32, meta commonModels.CollectionMeta) error {
	atomic.AddInt32(&m.calls, 1)
	if m.OnReplace != nil {
		return m.OnReplace(ctx, chunks, vectors, meta)
	}
	return nil
}

func (m *mockWriter) BackendName() string { return "mock" }

type mockRunStore struct {
	mu   sync.Mutex
	runs []jobModel.IngestRun
}

func (m *mockRunStore) GetRun(ctx context.Context, id string) (jobModel.IngestRun, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.runs) - 1; i >= 0; i-- {
		if m.runs[i].Id == id {
			return m.runs[i], true
		}
	}
	return jobModel.IngestRun{}, false
}

func (m *mockRunStore) SaveRun(ctx context.Context, run jobModel.IngestRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, run)
	return nil
}

func (m *mockRunStore) LatestRun(ctx context.Context) (jobModel.IngestRun, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.runs) == 0 {
		return jobModel.IngestRun{}, false
	}
	return m.runs[len(m.runs)-1], true
}

func newTestPipeline(e *mockEmbedder, w *mockWriter, runs jobModel.RunStore, batch int) *Pipeline {
	return NewPipeline(PipelineOptions{
		Splitter:   NewSplitter(40, 8),
		Embedder:   e,
		Store:      w,
		Collection: "rag_documents",
		BatchSize:  batch,
		Runs:       runs,
	})
}

func TestPipeline_Run(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "france.txt"), []byte("Paris is the capital of France."))
	writeFile(t, filepath.Join(dir, "japan.md"), []byte("Tokyo is the capital of Japan.\n\nIt is a large city."))

	var batches int32
	emb := &mockEmbedder{OnBatch: func(ctx context.Context, chunks []string) ([][]float32, error) {
		atomic.AddInt32(&batches, 1)
		out := make([][]float32, len(chunks))
		for i := range chunks {
			out[i] = []float32{1, 2}
		}
		return out, nil
	}}

	var gotMeta commonModels.CollectionMeta
	var gotChunks []commonModels.Chunk
	w := &mockWriter{OnReplace: func(ctx context.Context, chunks []commonModels.Chunk, vectors [][]float32, meta commonModels.CollectionMeta) error {
		gotMeta, gotChunks = meta, chunks
		if len(vectors) != len(chunks) {
			t.Errorf("got %d vectors for %d chunks", len(vectors), len(chunks))
		}
		return nil
	}}
	runs := &mockRunStore{}

	report, err := newTestPipeline(emb, w, runs, 1).Run(context.Background(), RunRequest{Dir: dir, RunId: "run-1", TraceId: "trace-1"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.Status != jobModel.RunStatusComplete {
		t.Errorf("status = %s; want COMPLETE", report.Status)
	}
	if report.Documents != 2 || report.Chunks != len(gotChunks) {
		t.Errorf("unexpected report %+v", report)
	}
	if int(batches) != len(gotChunks) {
		t.Errorf("expected one embedding call per chunk with batch size 1, got %d calls for %d chunks", batches, len(gotChunks))
	}
	if gotMeta.Name != "rag_documents" || gotMeta.EmbeddingModel != "mock-embedding" || gotMeta.Version == "" {
		t.Errorf("unexpected meta %+v", gotMeta)
	}
	if gotMeta.ChunkSize != 40 || gotMeta.ChunkOverlap != 8 {
		t.Errorf("splitter settings not recorded: %+v", gotMeta)
	}

	last, ok := runs.LatestRun(context.Background())
	if !ok || last.Id != "run-1" || last.Status != jobModel.RunStatusComplete || last.CurrentStep != jobModel.StepDone {
		t.Errorf("unexpected final run record %+v", last)
	}
	if last.CollectionVer != report.Version || last.TraceId != "trace-1" {
		t.Errorf("run record missing version or trace: %+v", last)
	}
	if runs.runs[0].Status != jobModel.RunStatusRunning {
		t.Errorf("first record should be RUNNING, got %s", runs.runs[0].Status)
	}
}

func TestPipeline_EmptyCorpusIsSkipped(t *testing.T) {
	w := &mockWriter{}
	p := newTestPipeline(&mockEmbedder{}, w, nil, 0)

	report, err := p.Run(context.Background(), RunRequest{Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if report.Status != jobModel.RunStatusSkipped {
		t.Errorf("status = %s; want SKIPPED", report.Status)
	}
	if w.calls != 0 {
		t.Error("collection must not be touched for an empty corpus")
	}
}

func TestPipeline_EmbeddingFailureKeepsCollection(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), []byte("some text"))

	emb := &mockEmbedder{OnBatch: func(ctx context.Context, chunks []string) ([][]float32, error) {
		return nil, errors.New("rate limited")
	}}
	w := &mockWriter{}
	runs := &mockRunStore{}

	report, err := newTestPipeline(emb, w, runs, 0).Run(context.Background(), RunRequest{Dir: dir})
	var pe *commonModels.ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("expected a ProviderError, got %v", err)
	}
	if report.Status != jobModel.RunStatusError {
		t.Errorf("status = %s; want ERROR", report.Status)
	}
	if w.calls != 0 {
		t.Error("store must not be written after an embedding failure")
	}
	last, _ := runs.LatestRun(context.Background())
	if last.Status != jobModel.RunStatusError || last.Error == "" || last.CurrentStep != jobModel.StepEmbedStore {
		t.Errorf("unexpected run record %+v", last)
	}
}

func TestPipeline_StoreFailure(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), []byte("some text"))

	storeErr := commonModels.NewStoreError("mock", "replace", errors.New("disk full"))
	w := &mockWriter{OnReplace: func(ctx context.Context, chunks []commonModels.Chunk, vectors [][]float32, meta commonModels.CollectionMeta) error {
		return storeErr
	}}

	_, err := newTestPipeline(&mockEmbedder{}, w, nil, 0).Run(context.Background(), RunRequest{Dir: dir})
	if !errors.Is(err, storeErr) {
		t.Errorf("expected the store error, got %v", err)
	}
}

func TestPipeline_RunsAreSerialized(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), []byte("some text"))

	var active, maxActive int32
	w := &mockWriter{OnReplace: func(ctx context.Context, chunks []commonModels.Chunk, vectors [][]float32, meta commonModels.CollectionMeta) error {
		n := atomic.AddInt32(&active, 1)
		for {
			m := atomic.LoadInt32(&maxActive)
			if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&active, -1)
		return nil
	}}
	p := newTestPipeline(&mockEmbedder{}, w, nil, 0)

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := p.Run(context.Background(), RunRequest{Dir: dir}); err != nil {
				t.Errorf("Run failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if maxActive != 1 {
		t.Errorf("expected runs to be serialized, saw %d at once", maxActive)
	}
	if w.calls != 3 {
		t.Errorf("expected 3 replacements, got %d", w.calls)
	}
}

func TestPipeline_BusyWaiterGivesUp(t *testing.T) {
	p := newTestPipeline(&mockEmbedder{}, &mockWriter{}, nil, 0)
	p.sem <- struct{}{}
	defer func() { <-p.sem }()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := p.Run(ctx, RunRequest{Dir: t.TempDir()})
	if !IsBusy(err) {
		t.Errorf("expected ErrIngestBusy, got %v", err)
	}
}

func TestPipeline_NoWaitFailsFast(t *testing.T) {
	w := &mockWriter{}
	p := newTestPipeline(&mockEmbedder{}, w, nil, 0)
	p.sem <- struct{}{}

	_, err := p.Run(context.Background(), RunRequest{Dir: t.TempDir(), NoWait: true})
	if !IsBusy(err) {
		t.Errorf("expected ErrIngestBusy, got %v", err)
	}
	<-p.sem
	if w.calls != 0 {
		t.Errorf("busy run must not write, got %d replacements", w.calls)
	}
}
