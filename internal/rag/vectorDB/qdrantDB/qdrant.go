package qdrantDB

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/akolanti/docqa/internal/config"
	"github.com/akolanti/docqa/internal/domain/commonModels"
	"github.com/akolanti/docqa/internal/rag/vectorDB"
	"github.com/akolanti/docqa/pkg/logger_i"
	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	backendName     = "qdrant"
	upsertBatchSize = 256
	qdrantRESTPort  = 6333
)

// client is the subset of *qdrant.Client the store uses.
type client interface {
	HealthCheck(ctx context.Context) (*qdrant.HealthCheckReply, error)
	CollectionExists(ctx context.Context, collectionName string) (bool, error)
	CreateCollection(ctx context.Context, request *qdrant.CreateCollection) error
	DeleteCollection(ctx context.Context, collectionName string) error
	ListCollections(ctx context.Context) ([]string, error)
	ListAliases(ctx context.Context) ([]*qdrant.AliasDescription, error)
	UpdateAliases(ctx context.Context, actions []*qdrant.AliasOperations) error
	Upsert(ctx context.Context, request *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Query(ctx context.Context, request *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
	Count(ctx context.Context, request *qdrant.CountPoints) (uint64, error)
	Scroll(ctx context.Context, request *qdrant.ScrollPoints) ([]*qdrant.RetrievedPoint, error)
	Close() error
}

type Options struct {
	URL        string
	Collection string
	Timeout    time.Duration
}

// Store serves queries through an alias named after the collection. Every
// rebuild goes into a fresh physical collection and the alias is moved in one call.
type Store struct {
	qc     client
	alias  string
	logger *logger_i.Logger
}

// ParseURL accepts qdrant://host:port, http://host:port and https://host:port.
// The REST port 6333 is mapped to its gRPC sibling. An api_key query parameter is passed through.
func ParseURL(raw string) (*qdrant.Config, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse qdrant url: %w", err)
	}
	cfg := &qdrant.Config{
		Host:     u.Hostname(),
		Port:     config.QdrantGrpcPort,
		PoolSize: config.QdrantPoolSize,
		APIKey:   u.Query().Get("api_key"),
	}
	switch u.Scheme {
	case "qdrant":
	case "http":
	case "https":
		cfg.UseTLS = true
	default:
		return nil, fmt.Errorf("unsupported qdrant scheme %q", u.Scheme)
	}
	if cfg.Host == "" {
		return nil, errors.New("qdrant url has no host")
	}
	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid qdrant port %q", p)
		}
		if port == qdrantRESTPort && u.Scheme != "qdrant" {
			port = config.QdrantGrpcPort
		}
		cfg.Port = port
	}
	return cfg, nil
}

func Open(ctx context.Context, opts Options) (*Store, error) {
	cfg, err := ParseURL(opts.URL)
	if err != nil {
		return nil, err
	}
	if opts.Timeout <= 0 {
		opts.Timeout = config.QdrantConnectionTimeout
	}
	qc, err := qdrant.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("could not instantiate qdrant client: %w", err)
	}

	hcCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()
	if _, err := qc.HealthCheck(hcCtx); err != nil {
		_ = qc.Close()
		return nil, fmt.Errorf("qdrant health check: %w", err)
	}
	s := newStore(qc, opts.Collection)
	s.logger.Info("Connected to Qdrant", "host", cfg.Host, "port", cfg.Port, "tls", cfg.UseTLS)
	return s, nil
}

func newStore(qc client, collection string) *Store {
	return &Store{qc: qc, alias: collection, logger: logger_i.NewLogger("Qdrant").With("collection", collection)}
}

func (s *Store) Name() string { return backendName }

func (s *Store) physicalName(version string) string {
	if version == "" {
		version = uuid.NewString()[:8]
	}
	return s.alias + "_" + version
}

func (s *Store) ReplaceCollection(ctx context.Context, chunks []commonModels.Chunk, vectors [][]float32, meta commonModels.CollectionMeta) error {
	meta.Name = s.alias
	physical := s.physicalName(meta.Version)
	log := s.logger.WithTrace(ctx, config.TRACE_ID_KEY).With("physical", physical)

	if err := s.qc.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: physical,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(meta.Dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	}); err != nil {
		return fmt.Errorf("create collection %s: %w", physical, err)
	}

	if err := s.upsertAll(ctx, physical, chunks, vectors, meta); err != nil {
		log.Error("Write failed, dropping half-written collection", "error", err)
		if dropErr := s.qc.DeleteCollection(context.WithoutCancel(ctx), physical); dropErr != nil {
			log.Warn("Could not drop half-written collection", "error", dropErr)
		}
		return err
	}

	previous, err := s.switchAlias(ctx, physical)
	if err != nil {
		if dropErr := s.qc.DeleteCollection(context.WithoutCancel(ctx), physical); dropErr != nil {
			log.Warn("Could not drop unused collection", "error", dropErr)
		}
		return err
	}
	log.Info("Alias switched", "previous", previous)
	s.dropSuperseded(ctx, physical)
	return nil
}

func (s *Store) upsertAll(ctx context.Context, physical string, chunks []commonModels.Chunk, vectors [][]float32, meta commonModels.CollectionMeta) error {
	metaPayload := map[string]any{
		"meta_embedding_model": meta.EmbeddingModel,
		"meta_version":         meta.Version,
		"meta_chunk_size":      meta.ChunkSize,
		"meta_chunk_overlap":   meta.ChunkOverlap,
		"meta_dimension":       meta.Dimension,
		"meta_created_at":      meta.CreatedAt.UTC().Format(time.RFC3339Nano),
	}

	for start := 0; start < len(chunks); start += upsertBatchSize {
		end := min(start+upsertBatchSize, len(chunks))
		points := make([]*qdrant.PointStruct, 0, end-start)
		for i := start; i < end; i++ {
			points = append(points, &qdrant.PointStruct{
				Id:      qdrant.NewID(chunks[i].Id),
				Vectors: qdrant.NewVectors(vectors[i]...),
				Payload: qdrant.NewValueMap(chunkPayload(chunks[i], i, metaPayload)),
			})
		}
		if _, err := s.qc.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: physical,
			Points:         points,
			Wait:           qdrant.PtrOf(true),
		}); err != nil {
			return fmt.Errorf("qdrant upsert failed: %w", err)
		}
	}
	return nil
}

// switchAlias points the alias at physical in a single request and returns
// the collection it pointed at before.
func (s *Store) switchAlias(ctx context.Context, physical string) (string, error) {
	aliases, err := s.qc.ListAliases(ctx)
	if err != nil {
		return "", fmt.Errorf("list aliases: %w", err)
	}
	previous := ""
	for _, a := range aliases {
		if a.GetAliasName() == s.alias {
			previous = a.GetCollectionName()
		}
	}

	if previous == "" {
		// a plain collection with the alias name blocks the alias
		exists, err := s.qc.CollectionExists(ctx, s.alias)
		if err != nil {
			return "", fmt.Errorf("check collection %s: %w", s.alias, err)
		}
		if exists {
			s.logger.Warn("Replacing plain collection with an alias", "collection", s.alias)
			if err := s.qc.DeleteCollection(ctx, s.alias); err != nil {
				return "", fmt.Errorf("drop plain collection %s: %w", s.alias, err)
			}
		}
	}

	ops := []*qdrant.AliasOperations{}
	if previous != "" {
		ops = append(ops, qdrant.NewAliasDelete(s.alias))
	}
	ops = append(ops, qdrant.NewAliasCreate(s.alias, physical))
	if err := s.qc.UpdateAliases(ctx, ops); err != nil {
		return "", fmt.Errorf("switch alias: %w", err)
	}
	return previous, nil
}

func (s *Store) dropSuperseded(ctx context.Context, current string) {
	names, err := s.qc.ListCollections(ctx)
	if err != nil {
		s.logger.Warn("Could not list collections for cleanup", "error", err)
		return
	}
	pattern := regexp.MustCompile("^" + regexp.QuoteMeta(s.alias) + `_[0-9A-Za-z_-]+$`)
	for _, name := range names {
		if name == current || !pattern.MatchString(name) {
			continue
		}
		if err := s.qc.DeleteCollection(ctx, name); err != nil {
			s.logger.Warn("Could not drop superseded collection", "name", name, "error", err)
			continue
		}
		s.logger.Debug("Dropped superseded collection", "name", name)
	}
}

func (s *Store) SimilaritySearch(ctx context.Context, vector []float32, k int) ([]commonModels.ScoredChunk, error) {
	if k <= 0 {
		return nil, nil
	}
	result, err := s.qc.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.alias,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("query: %w", err)
	}

	out := make([]commonModels.ScoredChunk, 0, len(result))
	for _, hit := range result {
		out = append(out, commonModels.ScoredChunk{
			Chunk: chunkFromPayload(hit.GetPayload()),
			// cosine similarity to cosine distance
			Distance: 1 - float64(hit.GetScore()),
		})
	}
	return out, nil
}

func (s *Store) Meta(ctx context.Context) (*commonModels.CollectionMeta, error) {
	count, err := s.qc.Count(ctx, &qdrant.CountPoints{CollectionName: s.alias, Exact: qdrant.PtrOf(true)})
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("count: %w", err)
	}
	meta := &commonModels.CollectionMeta{Name: s.alias, ChunkCount: int(count)}
	if count == 0 {
		return meta, nil
	}

	points, err := s.qc.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: s.alias,
		Limit:          qdrant.PtrOf(uint32(1)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("scroll: %w", err)
	}
	if len(points) > 0 {
		metaFromPayload(points[0].GetPayload(), meta)
	}
	return meta, nil
}

func (s *Store) Close() error {
	return s.qc.Close()
}

func isNotFound(err error) bool {
	if st, ok := status.FromError(err); ok && st.Code() == codes.NotFound {
		return true
	}
	// older servers report a missing collection as a plain message
	return strings.Contains(strings.ToLower(err.Error()), "not found")
}

// Initializer registers Qdrant as a networked backend.
func Initializer(opts Options) vectorDB.Initializer {
	return vectorDB.Initializer{
		Name: backendName,
		Kind: vectorDB.Networked,
		Open: func(ctx context.Context) (vectorDB.Backend, error) {
			return Open(ctx, opts)
		},
	}
}
