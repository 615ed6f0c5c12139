package pgvectorDB

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/akolanti/docqa/internal/config"
	"github.com/akolanti/docqa/internal/domain/commonModels"
	"github.com/akolanti/docqa/internal/rag/vectorDB"
	"github.com/akolanti/docqa/pkg/logger_i"
	"github.com/lib/pq"
)

const backendName = "pgvector"

// undefined_table, returned before the first migration has run
const pqUndefinedTable = "42P01"

type Options struct {
	DSN         string
	Collection  string
	PingTimeout time.Duration
}

// Store keeps every collection in shared tables keyed by collection name.
// A replace is one transaction, so readers switch from old to new rows at commit.
type Store struct {
	db         *sql.DB
	collection string
	logger     *logger_i.Logger
}

func Open(ctx context.Context, opts Options) (*Store, error) {
	if opts.DSN == "" {
		return nil, errors.New("pgvector: empty dsn")
	}
	if opts.PingTimeout <= 0 {
		opts.PingTimeout = config.PostgresPingTimeout
	}
	db, err := sql.Open("postgres", opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, opts.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return newStore(db, opts.Collection), nil
}

func newStore(db *sql.DB, collection string) *Store {
	return &Store{
		db:         db,
		collection: collection,
		logger:     logger_i.NewLogger("PgVectorStore").With("collection", collection),
	}
}

func (s *Store) Name() string { return backendName }

func (s *Store) ReplaceCollection(ctx context.Context, chunks []commonModels.Chunk, vectors [][]float32, meta commonModels.CollectionMeta) error {
	meta.Name = s.collection
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal meta: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			s.logger.Warn("Rollback failed", "error", err)
		}
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM docqa_chunks WHERE collection = $1`, s.collection); err != nil {
		return fmt.Errorf("clear collection: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO docqa_chunks
		(collection, seq, chunk_id, content, chunk_order, start_offset, end_offset, doc, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::vector)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, c := range chunks {
		doc, err := json.Marshal(c.Doc)
		if err != nil {
			return fmt.Errorf("marshal document %s: %w", c.Doc.Source, err)
		}
		if _, err := stmt.ExecContext(ctx, s.collection, i, c.Id, c.Text, c.Ordinal, c.StartOffset, c.EndOffset, string(doc), encodeEmbedding(vectors[i])); err != nil {
			return fmt.Errorf("insert chunk %d: %w", i, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO docqa_collections (name, meta, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE SET meta = EXCLUDED.meta, updated_at = now()`, s.collection, string(metaJSON)); err != nil {
		return fmt.Errorf("upsert meta: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *Store) SimilaritySearch(ctx context.Context, vector []float32, k int) ([]commonModels.ScoredChunk, error) {
	if k <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `SELECT chunk_id, content, chunk_order, start_offset, end_offset, doc, embedding <=> $2::vector AS distance
		FROM docqa_chunks
		WHERE collection = $1
		ORDER BY distance ASC, seq ASC
		LIMIT $3`, s.collection, encodeEmbedding(vector), k)
	if err != nil {
		if isUndefinedTable(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("search: %w", err)
	}
	defer rows.Close()

	var out []commonModels.ScoredChunk
	for rows.Next() {
		var (
			hit commonModels.ScoredChunk
			doc []byte
		)
		if err := rows.Scan(&hit.Chunk.Id, &hit.Chunk.Text, &hit.Chunk.Ordinal, &hit.Chunk.StartOffset, &hit.Chunk.EndOffset, &doc, &hit.Distance); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		if err := json.Unmarshal(doc, &hit.Chunk.Doc); err != nil {
			return nil, fmt.Errorf("decode document of chunk %s: %w", hit.Chunk.Id, err)
		}
		out = append(out, hit)
	}
	return out, rows.Err()
}

func (s *Store) Meta(ctx context.Context) (*commonModels.CollectionMeta, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT meta FROM docqa_collections WHERE name = $1`, s.collection).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) || isUndefinedTable(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read meta: %w", err)
	}
	var meta commonModels.CollectionMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("decode meta: %w", err)
	}
	return &meta, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func isUndefinedTable(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == pqUndefinedTable
}

// encodeEmbedding renders a vector in pgvector's text format: [a,b,c].
func encodeEmbedding(embedding []float32) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, f := range embedding {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatFloat(float64(f), 'g', -1, 32))
	}
	sb.WriteByte(']')
	return sb.String()
}

// Initializer registers pgvector as a networked backend.
func Initializer(opts Options) vectorDB.Initializer {
	return vectorDB.Initializer{
		Name: backendName,
		Kind: vectorDB.Networked,
		Open: func(ctx context.Context) (vectorDB.Backend, error) {
			return Open(ctx, opts)
		},
	}
}
