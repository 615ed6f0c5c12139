package vectorDB

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/akolanti/docqa/internal/domain/commonModels"
	"github.com/akolanti/docqa/internal/metrics"
	"github.com/akolanti/docqa/pkg/logger_i"
)

// Backend is one concrete vector store holding a single named collection.
type Backend interface {
	Name() string
	// ReplaceCollection swaps the whole collection. Readers see either the
	// previous collection or the new one, and a failed write keeps the previous one.
	ReplaceCollection(ctx context.Context, chunks []commonModels.Chunk, vectors [][]float32, meta commonModels.CollectionMeta) error
	// SimilaritySearch returns at most k hits ordered by ascending cosine distance.
	SimilaritySearch(ctx context.Context, vector []float32, k int) ([]commonModels.ScoredChunk, error)
	// Meta returns nil, nil when no collection exists.
	Meta(ctx context.Context) (*commonModels.CollectionMeta, error)
	Close() error
}

type Kind int

const (
	Unavailable Kind = iota
	Networked
	Embedded
)

func (k Kind) String() string {
	switch k {
	case Networked:
		return "networked"
	case Embedded:
		return "embedded"
	default:
		return "unavailable"
	}
}

// Initializer opens one backend. Select tries them in order.
type Initializer struct {
	Name string
	Kind Kind
	Open func(ctx context.Context) (Backend, error)
}

// Adapter wraps the backend chosen at startup.
type Adapter struct {
	backend Backend
	kind    Kind
	model   string
	logger  *logger_i.Logger
}

// Select opens the first initializer that succeeds. When every attempt fails
// the adapter is Unavailable and all searches come back empty.
func Select(ctx context.Context, embeddingModel string, inits ...Initializer) *Adapter {
	log := logger_i.NewLogger("VectorStore")
	for _, in := range inits {
		start := time.Now()
		backend, err := in.Open(ctx)
		if err != nil {
			log.Warn("Vector backend unavailable, trying next", "backend", in.Name, "kind", in.Kind.String(), "error", err, "took", time.Since(start))
			continue
		}
		log.Info("Vector backend selected", "backend", in.Name, "kind", in.Kind.String(), "took", time.Since(start))
		metrics.SetVectorBackend(in.Kind.String(), backend.Name())
		return &Adapter{backend: backend, kind: in.Kind, model: embeddingModel, logger: log}
	}
	log.Error("No vector backend could be opened")
	metrics.SetVectorBackend(Unavailable.String(), "none")
	return &Adapter{kind: Unavailable, model: embeddingModel, logger: log}
}

// NewAdapter wraps an already opened backend.
func NewAdapter(backend Backend, kind Kind, embeddingModel string) *Adapter {
	if backend == nil {
		kind = Unavailable
	}
	return &Adapter{backend: backend, kind: kind, model: embeddingModel, logger: logger_i.NewLogger("VectorStore")}
}

func (a *Adapter) Kind() Kind { return a.kind }

func (a *Adapter) BackendName() string {
	if a.backend == nil {
		return "none"
	}
	return a.backend.Name()
}

func (a *Adapter) EmbeddingModel() string { return a.model }

func (a *Adapter) Meta(ctx context.Context) (*commonModels.CollectionMeta, error) {
	if a.backend == nil {
		return nil, commonModels.NewStoreError("none", "meta", commonModels.ErrUnavailable)
	}
	return a.backend.Meta(ctx)
}

// IsAvailable is true when a collection with chunks exists and was built
// with the configured embedding model.
func (a *Adapter) IsAvailable(ctx context.Context) bool {
	if a.backend == nil {
		return false
	}
	meta, err := a.backend.Meta(ctx)
	if err != nil {
		a.logger.Warn("Could not read collection metadata", "backend", a.backend.Name(), "error", err)
		return false
	}
	if meta == nil || meta.ChunkCount == 0 {
		return false
	}
	if meta.EmbeddingModel != a.model {
		a.logger.Warn("Collection was built with a different embedding model", "collection_model", meta.EmbeddingModel, "configured_model", a.model)
		return false
	}
	return true
}

func (a *Adapter) ReplaceCollection(ctx context.Context, chunks []commonModels.Chunk, vectors [][]float32, meta commonModels.CollectionMeta) error {
	if a.backend == nil {
		return commonModels.NewStoreError("none", "replace", commonModels.ErrUnavailable)
	}
	dim, err := validateVectors(chunks, vectors)
	if err != nil {
		return commonModels.NewStoreError(a.backend.Name(), "replace", err)
	}
	meta.Dimension = dim
	meta.ChunkCount = len(chunks)
	if meta.EmbeddingModel == "" {
		meta.EmbeddingModel = a.model
	}
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = time.Now().UTC()
	}

	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("vector_replace", time.Since(start)) }()
	if err := a.backend.ReplaceCollection(ctx, chunks, vectors, meta); err != nil {
		var se *commonModels.StoreError
		if errors.As(err, &se) {
			return err
		}
		return commonModels.NewStoreError(a.backend.Name(), "replace", err)
	}
	metrics.SetIndexedChunks(len(chunks))
	a.logger.Info("Collection replaced", "backend", a.backend.Name(), "chunks", len(chunks), "version", meta.Version)
	return nil
}

func (a *Adapter) SimilaritySearch(ctx context.Context, vector []float32, k int) ([]commonModels.ScoredChunk, error) {
	if a.backend == nil {
		return nil, commonModels.NewStoreError("none", "search", commonModels.ErrUnavailable)
	}
	if k <= 0 {
		return nil, nil
	}
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("vector_search", time.Since(start)) }()

	hits, err := a.backend.SimilaritySearch(ctx, vector, k)
	if err != nil {
		return nil, commonModels.NewStoreError(a.backend.Name(), "search", err)
	}
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (a *Adapter) Close() error {
	if a.backend == nil {
		return nil
	}
	return a.backend.Close()
}

func validateVectors(chunks []commonModels.Chunk, vectors [][]float32) (int, error) {
	if len(chunks) == 0 {
		return 0, errors.New("refusing to materialize an empty collection")
	}
	if len(chunks) != len(vectors) {
		return 0, fmt.Errorf("mismatch: got %d chunks but %d vectors", len(chunks), len(vectors))
	}
	dim := len(vectors[0])
	if dim == 0 {
		return 0, errors.New("empty embedding vector")
	}
	for i, v := range vectors {
		if len(v) != dim {
			return 0, fmt.Errorf("vector %d has dimension %d, want %d", i, len(v), dim)
		}
		for _, f := range v {
			if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
				return 0, fmt.Errorf("vector %d contains invalid values", i)
			}
		}
	}
	return dim, nil
}

// CosineDistance returns 1 - cos(a, b). Mismatched or zero vectors score 1.
func CosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 1
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}
