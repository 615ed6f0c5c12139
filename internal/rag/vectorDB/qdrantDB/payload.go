package qdrantDB

import (
	"time"

	"github.com/akolanti/docqa/internal/domain/commonModels"
	"github.com/qdrant/go-client/qdrant"
)

func chunkPayload(c commonModels.Chunk, seq int, meta map[string]any) map[string]any {
	p := map[string]any{
		"chunk_id":     c.Id,
		"content":      c.Text,
		"chunk_order":  c.Ordinal,
		"start_offset": c.StartOffset,
		"end_offset":   c.EndOffset,
		"seq":          seq,
		"source":       c.Doc.Source,
		"filename":     c.Doc.Filename,
		"file_type":    string(c.Doc.FileType),
		"file_size":    c.Doc.FileSize,
		"chunk_size":   c.Doc.ChunkSize,
		"indexed_at":   c.Doc.IndexedAt.UTC().Format(time.RFC3339Nano),
	}
	if c.Doc.Page != nil {
		p["page"] = *c.Doc.Page
	}
	for k, v := range meta {
		p[k] = v
	}
	return p
}

func chunkFromPayload(p map[string]*qdrant.Value) commonModels.Chunk {
	c := commonModels.Chunk{
		Id:          p["chunk_id"].GetStringValue(),
		Text:        p["content"].GetStringValue(),
		Ordinal:     int(p["chunk_order"].GetIntegerValue()),
		StartOffset: int(p["start_offset"].GetIntegerValue()),
		EndOffset:   int(p["end_offset"].GetIntegerValue()),
		Doc: commonModels.Document{
			Source:    p["source"].GetStringValue(),
			Filename:  p["filename"].GetStringValue(),
			FileType:  commonModels.DocType(p["file_type"].GetStringValue()),
			FileSize:  p["file_size"].GetIntegerValue(),
			ChunkSize: int(p["chunk_size"].GetIntegerValue()),
		},
	}
	if t, err := time.Parse(time.RFC3339Nano, p["indexed_at"].GetStringValue()); err == nil {
		c.Doc.IndexedAt = t
	}
	if v, ok := p["page"]; ok && v != nil {
		c.Doc.Page = commonModels.IntPtr(int(v.GetIntegerValue()))
	}
	return c
}

func metaFromPayload(p map[string]*qdrant.Value, meta *commonModels.CollectionMeta) {
	meta.EmbeddingModel = p["meta_embedding_model"].GetStringValue()
	meta.Version = p["meta_version"].GetStringValue()
	meta.ChunkSize = int(p["meta_chunk_size"].GetIntegerValue())
	meta.ChunkOverlap = int(p["meta_chunk_overlap"].GetIntegerValue())
	meta.Dimension = int(p["meta_dimension"].GetIntegerValue())
	if t, err := time.Parse(time.RFC3339Nano, p["meta_created_at"].GetStringValue()); err == nil {
		meta.CreatedAt = t
	}
}
