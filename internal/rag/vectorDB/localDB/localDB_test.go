package localDB

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/akolanti/docqa/internal/domain/commonModels"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chunk(id, text, file string) commonModels.Chunk {
	return commonModels.Chunk{Id: id, Text: text, Doc: commonModels.Document{Source: "docs/" + file, Filename: file, FileType: commonModels.TXT}}
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), Options{Dir: t.TempDir(), Collection: "rag_documents"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_EmptyUntilReplaced(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	meta, err := s.Meta(ctx)
	require.NoError(t, err)
	assert.Nil(t, meta)

	hits, err := s.SimilaritySearch(ctx, []float32{1, 0}, 3)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestStore_ReplaceAndSearch(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	chunks := []commonModels.Chunk{
		chunk("a", "Paris is the capital of France.", "france.txt"),
		chunk("b", "Tokyo is the capital of Japan.", "japan.txt"),
		chunk("c", "Berlin is the capital of Germany.", "germany.txt"),
	}
	vectors := [][]float32{{1, 0, 0}, {0, 1, 0}, {0.7, 0.7, 0}}
	err := s.ReplaceCollection(ctx, chunks, vectors, commonModels.CollectionMeta{EmbeddingModel: "test", Dimension: 3, ChunkCount: 3, Version: "v1"})
	require.NoError(t, err)

	meta, err := s.Meta(ctx)
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, "rag_documents", meta.Name)
	assert.Equal(t, "v1", meta.Version)
	assert.Equal(t, 3, meta.ChunkCount)

	hits, err := s.SimilaritySearch(ctx, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "a", hits[0].Chunk.Id)
	assert.InDelta(t, 0, hits[0].Distance, 1e-6)
	assert.Equal(t, "c", hits[1].Chunk.Id)
	assert.Equal(t, "france.txt", hits[0].Chunk.Doc.Filename)
	assert.LessOrEqual(t, hits[0].Distance, hits[1].Distance)
}

func TestStore_TiesKeepInsertionOrder(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	chunks := []commonModels.Chunk{chunk("first", "x", "a.txt"), chunk("second", "y", "b.txt")}
	require.NoError(t, s.ReplaceCollection(ctx, chunks, [][]float32{{0, 1}, {0, 1}}, commonModels.CollectionMeta{Dimension: 2}))

	hits, err := s.SimilaritySearch(ctx, []float32{0, 1}, 5)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "first", hits[0].Chunk.Id)
	assert.Equal(t, "second", hits[1].Chunk.Id)
}

func TestStore_SecondReplaceSupersedesFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.ReplaceCollection(ctx, []commonModels.Chunk{chunk("old", "old text", "old.txt")}, [][]float32{{1, 0}}, commonModels.CollectionMeta{Version: "v1", Dimension: 2}))
	require.NoError(t, s.ReplaceCollection(ctx, []commonModels.Chunk{chunk("new", "new text", "new.txt")}, [][]float32{{1, 0}}, commonModels.CollectionMeta{Version: "v2", Dimension: 2}))

	hits, err := s.SimilaritySearch(ctx, []float32{1, 0}, 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "new", hits[0].Chunk.Id)

	_, err = os.Stat(s.backupPath())
	assert.True(t, os.IsNotExist(err), "backup should be removed after a swap")
}

func TestStore_RenameFailureFallsBackInPlace(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.ReplaceCollection(ctx, []commonModels.Chunk{chunk("old", "old text", "old.txt")}, [][]float32{{1, 0}}, commonModels.CollectionMeta{Version: "v1", Dimension: 2}))

	calls := 0
	s.rename = func(oldPath, newPath string) error {
		calls++
		if calls == 2 {
			return errors.New("cross-device link")
		}
		return os.Rename(oldPath, newPath)
	}

	require.NoError(t, s.ReplaceCollection(ctx, []commonModels.Chunk{chunk("new", "new text", "new.txt")}, [][]float32{{0, 1}}, commonModels.CollectionMeta{Version: "v2", Dimension: 2}))

	meta, err := s.Meta(ctx)
	require.NoError(t, err)
	assert.Equal(t, "v2", meta.Version)
	hits, err := s.SimilaritySearch(ctx, []float32{0, 1}, 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "new", hits[0].Chunk.Id)
}

func TestStore_FailedBuildKeepsPreviousCollection(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.ReplaceCollection(ctx, []commonModels.Chunk{chunk("old", "old text", "old.txt")}, [][]float32{{1, 0}}, commonModels.CollectionMeta{Version: "v1", Dimension: 2}))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	err := s.ReplaceCollection(cancelled, []commonModels.Chunk{chunk("new", "new text", "new.txt")}, [][]float32{{0, 1}}, commonModels.CollectionMeta{Version: "v2", Dimension: 2})
	require.Error(t, err)

	meta, err := s.Meta(ctx)
	require.NoError(t, err)
	assert.Equal(t, "v1", meta.Version)
}

func TestOpen_RecoversInterruptedSwap(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := Open(ctx, Options{Dir: dir, Collection: "docs"})
	require.NoError(t, err)
	require.NoError(t, s.ReplaceCollection(ctx, []commonModels.Chunk{chunk("a", "text", "a.txt")}, [][]float32{{1, 0}}, commonModels.CollectionMeta{Version: "v1", Dimension: 2}))
	require.NoError(t, s.Close())

	// simulate a crash between "live -> backup" and "tmp -> live"
	require.NoError(t, os.Rename(filepath.Join(dir, "docs"), filepath.Join(dir, "docs.bak")))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".tmp-docs-123"), 0o755))

	s, err = Open(ctx, Options{Dir: dir, Collection: "docs"})
	require.NoError(t, err)
	defer s.Close()

	meta, err := s.Meta(ctx)
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, "v1", meta.Version)

	_, err = os.Stat(filepath.Join(dir, ".tmp-docs-123"))
	assert.True(t, os.IsNotExist(err), "stale build directory should be removed")
}

func TestStore_DimensionMismatch(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.ReplaceCollection(ctx, []commonModels.Chunk{chunk("a", "text", "a.txt")}, [][]float32{{1, 0}}, commonModels.CollectionMeta{Dimension: 2}))

	_, err := s.SimilaritySearch(ctx, []float32{1, 0, 0}, 1)
	assert.Error(t, err)
}

func TestOpen_RejectsBadCollectionName(t *testing.T) {
	_, err := Open(context.Background(), Options{Dir: t.TempDir(), Collection: "../escape"})
	assert.Error(t, err)
}

func TestEmbeddingCodec(t *testing.T) {
	in := []float32{0, -1.5, 3.25, 1e-7}
	out, err := decodeEmbedding(encodeEmbedding(in))
	require.NoError(t, err)
	assert.Equal(t, in, out)

	_, err = decodeEmbedding([]byte{1, 2, 3})
	assert.Error(t, err)
}
