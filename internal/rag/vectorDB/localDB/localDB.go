package localDB

import (
	"cmp"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/akolanti/docqa/internal/domain/commonModels"
	"github.com/akolanti/docqa/internal/rag/vectorDB"
	"github.com/akolanti/docqa/pkg/logger_i"
	_ "modernc.org/sqlite"
)

const backendName = "local"

type Options struct {
	Dir        string
	Collection string
}

// Store keeps one collection as a SQLite file under Dir/<collection>/.
// A rebuild is written next to it and moved into place.
type Store struct {
	root       string
	collection string

	mu sync.RWMutex
	db *sql.DB

	rename func(oldPath, newPath string) error
	logger *logger_i.Logger
}

func Open(ctx context.Context, opts Options) (*Store, error) {
	if opts.Dir == "" || opts.Collection == "" {
		return nil, errors.New("local store needs a directory and a collection name")
	}
	if strings.ContainsAny(opts.Collection, `/\`) || opts.Collection == "." || opts.Collection == ".." {
		return nil, fmt.Errorf("invalid collection name %q", opts.Collection)
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", opts.Dir, err)
	}

	s := &Store{
		root:       opts.Dir,
		collection: opts.Collection,
		rename:     os.Rename,
		logger:     logger_i.NewLogger("LocalVectorStore").With("collection", opts.Collection),
	}
	if err := s.recover(); err != nil {
		return nil, err
	}
	if err := s.reopen(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) Name() string { return backendName }

func (s *Store) livePath() string   { return filepath.Join(s.root, s.collection) }
func (s *Store) backupPath() string { return filepath.Join(s.root, s.collection+".bak") }
func (s *Store) tempPattern() string {
	return ".tmp-" + s.collection + "-"
}

// recover finishes or rolls back a swap that was interrupted.
func (s *Store) recover() error {
	live, backup := s.livePath(), s.backupPath()
	_, liveErr := os.Stat(filepath.Join(live, dbFileName))
	_, backupErr := os.Stat(backup)

	switch {
	case liveErr != nil && backupErr == nil:
		s.logger.Warn("Restoring collection from an interrupted swap", "backup", backup)
		_ = os.RemoveAll(live)
		if err := os.Rename(backup, live); err != nil {
			return fmt.Errorf("restore backup: %w", err)
		}
	case liveErr == nil && backupErr == nil:
		s.logger.Warn("Removing backup left by a completed swap", "backup", backup)
		_ = os.RemoveAll(backup)
	}

	entries, err := os.ReadDir(s.root)
	if err != nil {
		return fmt.Errorf("read %s: %w", s.root, err)
	}
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), s.tempPattern()) {
			s.logger.Debug("Removing stale build directory", "dir", e.Name())
			_ = os.RemoveAll(filepath.Join(s.root, e.Name()))
		}
	}
	return nil
}

// reopen points the reader at the live file, if there is one. Callers hold mu
// for writing or own s exclusively.
func (s *Store) reopen(ctx context.Context) error {
	if s.db != nil {
		_ = s.db.Close()
		s.db = nil
	}
	path := filepath.Join(s.livePath(), dbFileName)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	db, err := openDB(path)
	if err != nil {
		return err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("ping %s: %w", path, err)
	}
	s.db = db
	return nil
}

func (s *Store) Meta(ctx context.Context) (*commonModels.CollectionMeta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, nil
	}
	return readMeta(ctx, s.db)
}

func (s *Store) ReplaceCollection(ctx context.Context, chunks []commonModels.Chunk, vectors [][]float32, meta commonModels.CollectionMeta) error {
	meta.Name = s.collection
	tmp, err := os.MkdirTemp(s.root, s.tempPattern())
	if err != nil {
		return fmt.Errorf("create build directory: %w", err)
	}
	defer os.RemoveAll(tmp)

	if err := s.build(ctx, tmp, chunks, vectors, meta); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.swap(tmp); err != nil {
		s.logger.Warn("Swap by rename failed, rebuilding in place", "error", err)
		if err := s.rebuildInPlace(ctx, chunks, vectors, meta); err != nil {
			_ = s.reopen(ctx)
			return fmt.Errorf("in-place rebuild: %w", err)
		}
	}
	return s.reopen(ctx)
}

func (s *Store) build(ctx context.Context, dir string, chunks []commonModels.Chunk, vectors [][]float32, meta commonModels.CollectionMeta) error {
	db, err := openDB(filepath.Join(dir, dbFileName))
	if err != nil {
		return err
	}
	if err := writeCollection(ctx, db, chunks, vectors, meta); err != nil {
		_ = db.Close()
		return err
	}
	return db.Close()
}

// swap moves tmp into the live location: live -> backup, tmp -> live, drop backup.
// On failure the previous live collection is put back.
func (s *Store) swap(tmp string) error {
	if s.db != nil {
		_ = s.db.Close()
		s.db = nil
	}
	live, backup := s.livePath(), s.backupPath()
	_ = os.RemoveAll(backup)

	hadLive := true
	if _, err := os.Stat(live); errors.Is(err, fs.ErrNotExist) {
		hadLive = false
	}
	if hadLive {
		if err := s.rename(live, backup); err != nil {
			return fmt.Errorf("move live collection aside: %w", err)
		}
	}
	if err := s.rename(tmp, live); err != nil {
		if hadLive {
			if restoreErr := os.Rename(backup, live); restoreErr != nil {
				s.logger.Error("Could not restore previous collection", "error", restoreErr)
			}
		}
		return fmt.Errorf("move new collection into place: %w", err)
	}
	if hadLive {
		if err := os.RemoveAll(backup); err != nil {
			s.logger.Warn("Could not remove backup", "backup", backup, "error", err)
		}
	}
	return nil
}

// rebuildInPlace rewrites the live file. The write is one SQLite transaction.
func (s *Store) rebuildInPlace(ctx context.Context, chunks []commonModels.Chunk, vectors [][]float32, meta commonModels.CollectionMeta) error {
	if err := os.MkdirAll(s.livePath(), 0o755); err != nil {
		return err
	}
	db, err := openDB(filepath.Join(s.livePath(), dbFileName))
	if err != nil {
		return err
	}
	if err := writeCollection(ctx, db, chunks, vectors, meta); err != nil {
		_ = db.Close()
		return err
	}
	return db.Close()
}

type hit struct {
	seq      int64
	distance float64
	chunk    commonModels.Chunk
}

// SimilaritySearch scans every row. Ties are broken by insertion order.
func (s *Store) SimilaritySearch(ctx context.Context, vector []float32, k int) ([]commonModels.ScoredChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil || k <= 0 {
		return nil, nil
	}

	meta, err := readMeta(ctx, s.db)
	if err != nil {
		return nil, err
	}
	if meta != nil && meta.Dimension != 0 && meta.Dimension != len(vector) {
		return nil, fmt.Errorf("query dimension %d does not match collection dimension %d", len(vector), meta.Dimension)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT seq, id, content, chunk_order, start_offset, end_offset, doc, embedding FROM chunks`)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	var hits []hit
	for rows.Next() {
		var (
			h    hit
			doc  string
			blob []byte
		)
		if err := rows.Scan(&h.seq, &h.chunk.Id, &h.chunk.Text, &h.chunk.Ordinal, &h.chunk.StartOffset, &h.chunk.EndOffset, &doc, &blob); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		if err := json.Unmarshal([]byte(doc), &h.chunk.Doc); err != nil {
			return nil, fmt.Errorf("decode document of chunk %s: %w", h.chunk.Id, err)
		}
		emb, err := decodeEmbedding(blob)
		if err != nil {
			return nil, err
		}
		h.distance = vectorDB.CosineDistance(vector, emb)
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	slices.SortFunc(hits, func(a, b hit) int {
		if c := cmp.Compare(a.distance, b.distance); c != 0 {
			return c
		}
		return cmp.Compare(a.seq, b.seq)
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	out := make([]commonModels.ScoredChunk, len(hits))
	for i, h := range hits {
		out[i] = commonModels.ScoredChunk{Chunk: h.chunk, Distance: h.distance}
	}
	return out, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Initializer registers the local store as the embedded fallback.
func Initializer(opts Options) vectorDB.Initializer {
	return vectorDB.Initializer{
		Name: backendName,
		Kind: vectorDB.Embedded,
		Open: func(ctx context.Context) (vectorDB.Backend, error) {
			return Open(ctx, opts)
		},
	}
}
