package localDB

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/akolanti/docqa/internal/domain/commonModels"
)

const dbFileName = "collection.db"

var schema = []string{
	`CREATE TABLE IF NOT EXISTS chunks (
		seq          INTEGER PRIMARY KEY,
		id           TEXT NOT NULL,
		content      TEXT NOT NULL,
		chunk_order  INTEGER NOT NULL,
		start_offset INTEGER NOT NULL,
		end_offset   INTEGER NOT NULL,
		doc          TEXT NOT NULL,
		embedding    BLOB NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS collection_meta (
		id   INTEGER PRIMARY KEY CHECK (id = 1),
		data TEXT NOT NULL
	)`,
}

func openDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

func createSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

// writeCollection replaces every row of db inside one transaction.
func writeCollection(ctx context.Context, db *sql.DB, chunks []commonModels.Chunk, vectors [][]float32, meta commonModels.CollectionMeta) error {
	if err := createSchema(ctx, db); err != nil {
		return err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks`); err != nil {
		return fmt.Errorf("clear chunks: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM collection_meta`); err != nil {
		return fmt.Errorf("clear meta: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO chunks (seq, id, content, chunk_order, start_offset, end_offset, doc, embedding) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, c := range chunks {
		doc, err := json.Marshal(c.Doc)
		if err != nil {
			return fmt.Errorf("marshal document %s: %w", c.Doc.Source, err)
		}
		if _, err := stmt.ExecContext(ctx, i, c.Id, c.Text, c.Ordinal, c.StartOffset, c.EndOffset, string(doc), encodeEmbedding(vectors[i])); err != nil {
			return fmt.Errorf("insert chunk %d: %w", i, err)
		}
	}

	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal meta: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO collection_meta (id, data) VALUES (1, ?)`, string(data)); err != nil {
		return fmt.Errorf("insert meta: %w", err)
	}
	return tx.Commit()
}

func readMeta(ctx context.Context, db *sql.DB) (*commonModels.CollectionMeta, error) {
	var data string
	err := db.QueryRowContext(ctx, `SELECT data FROM collection_meta WHERE id = 1`).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read meta: %w", err)
	}
	var meta commonModels.CollectionMeta
	if err := json.Unmarshal([]byte(data), &meta); err != nil {
		return nil, fmt.Errorf("decode meta: %w", err)
	}
	return &meta, nil
}
