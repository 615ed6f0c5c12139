package commonModels

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

type DocType string

var PDF DocType = "pdf"
var TXT DocType = "txt"
var MD DocType = "md"

// Document is one loaded unit of text: a whole text/markdown file or a single PDF page.
type Document struct {
	Source    string    `json:"source"`
	Filename  string    `json:"filename"`
	FileType  DocType   `json:"file_type"`
	FileSize  int64     `json:"file_size"`
	Page      *int      `json:"page,omitempty"`
	IndexedAt time.Time `json:"indexed_at"`
	ChunkSize int       `json:"chunk_size"`
	Content   string    `json:"-"`
}

// Meta returns a copy of the document without its content.
func (d Document) Meta() Document {
	d.Content = ""
	if d.Page != nil {
		p := *d.Page
		d.Page = &p
	}
	return d
}

type Chunk struct {
	Id          string   `json:"chunk_id"`
	Text        string   `json:"content"`
	Ordinal     int      `json:"chunk_order"`
	StartOffset int      `json:"start_offset"`
	EndOffset   int      `json:"end_offset"`
	Doc         Document `json:"doc"`
}

var chunkNamespace = uuid.MustParse("6f0f1c2e-8a8b-4b43-9d7e-0f3f4c1a2b5d")

// ChunkID is stable across runs for the same source, page and position.
func ChunkID(source string, page *int, ordinal int) string {
	key := source + "#"
	if page != nil {
		key += strconv.Itoa(*page)
	}
	key += "#" + strconv.Itoa(ordinal)
	return uuid.NewSHA1(chunkNamespace, []byte(key)).String()
}

// CollectionMeta describes the materialized collection. It is stored next to
// the vectors so that query-time embeddings can be checked for compatibility.
type CollectionMeta struct {
	Name           string    `json:"name"`
	EmbeddingModel string    `json:"embedding_model"`
	Dimension      int       `json:"dimension"`
	ChunkSize      int       `json:"chunk_size"`
	ChunkOverlap   int       `json:"chunk_overlap"`
	Version        string    `json:"version"`
	ChunkCount     int       `json:"chunk_count"`
	CreatedAt      time.Time `json:"created_at"`
}

// ScoredChunk is a backend hit. Distance is cosine distance, lower is closer.
type ScoredChunk struct {
	Chunk    Chunk
	Distance float64
}

type SearchResult struct {
	Index    int     `json:"index"`
	Filename string  `json:"filename"`
	Page     *int    `json:"page,omitempty"`
	Chunk    string  `json:"chunk"`
	Score    float64 `json:"score"`
	Source   string  `json:"source"`
}

type Answer struct {
	Text      string         `json:"answer"`
	Results   []SearchResult `json:"results"`
	UsedModel bool           `json:"used_model"`
}

func IntPtr(v int) *int { return &v }
