package ingest

import (
	"strings"
	"unicode"

	"github.com/akolanti/docqa/internal/domain/commonModels"
)

// Separators ordered from "best" to "worst" for semantic meaning.
// Anything still too long after the last one is hard cut.
var defaultSeparators = []string{"\n\n", "\n", "。", ". ", " "}

// Splitter cuts documents into chunks of at most ChunkSize runes. Every chunk
// is an exact substring of its document; consecutive chunks share up to
// Overlap runes and never leave a gap.
type Splitter struct {
	ChunkSize  int
	Overlap    int
	separators [][]rune
}

type span struct {
	start, end int
}

func NewSplitter(chunkSize, overlap int) *Splitter {
	seps := make([][]rune, len(defaultSeparators))
	for i, s := range defaultSeparators {
		seps[i] = []rune(s)
	}
	if overlap >= chunkSize {
		overlap = chunkSize - 1
	}
	if overlap < 0 {
		overlap = 0
	}
	return &Splitter{ChunkSize: chunkSize, Overlap: overlap, separators: seps}
}

func (s *Splitter) Split(docs []commonModels.Document) []commonModels.Chunk {
	var out []commonModels.Chunk
	for _, doc := range docs {
		out = append(out, s.SplitDocument(doc)...)
	}
	return out
}

func (s *Splitter) SplitDocument(doc commonModels.Document) []commonModels.Chunk {
	if strings.TrimSpace(doc.Content) == "" {
		return nil
	}
	text := []rune(doc.Content)
	spans := s.merge(text, s.pieces(text, 0, len(text), 0, nil))

	meta := doc.Meta()
	chunks := make([]commonModels.Chunk, 0, len(spans))
	for i, sp := range spans {
		chunks = append(chunks, commonModels.Chunk{
			Id:          commonModels.ChunkID(doc.Source, doc.Page, i),
			Text:        string(text[sp.start:sp.end]),
			Ordinal:     i,
			StartOffset: sp.start,
			EndOffset:   sp.end,
			Doc:         meta,
		})
	}
	return chunks
}

// pieces tiles [lo, hi) with spans no longer than ChunkSize, splitting on the
// coarsest separator that works. Separators stay attached to the text before them.
func (s *Splitter) pieces(text []rune, lo, hi, level int, acc []span) []span {
	if hi-lo <= s.ChunkSize {
		return append(acc, span{lo, hi})
	}
	if level >= len(s.separators) {
		for start := lo; start < hi; start += s.ChunkSize {
			acc = append(acc, span{start, min(start+s.ChunkSize, hi)})
		}
		return acc
	}

	sep := s.separators[level]
	for start := lo; start < hi; {
		end := hi
		if idx := indexRunes(text[start:hi], sep); idx >= 0 {
			end = start + idx + len(sep)
		}
		if end-start <= s.ChunkSize {
			acc = append(acc, span{start, end})
		} else {
			acc = s.pieces(text, start, end, level+1, acc)
		}
		start = end
	}
	return acc
}

// merge packs pieces greedily into chunks. Each following chunk starts inside
// the overlap window of the previous one, on the earliest word boundary there,
// or on a hard cut when the window holds no boundary.
func (s *Splitter) merge(text []rune, pieces []span) []span {
	if len(pieces) == 0 {
		return nil
	}
	var out []span
	start := pieces[0].start
	for i := 0; i < len(pieces); {
		j := i
		for j < len(pieces) && pieces[j].end-start <= s.ChunkSize {
			j++
		}
		end := pieces[j-1].end
		out = append(out, span{start, end})
		if j == len(pieces) {
			break
		}
		start = s.overlapStart(text, start, end, pieces[j].end)
		i = j
	}
	return out
}

// overlapStart picks where the chunk after [prev, end) begins. The result is
// never before end-Overlap, keeps the next piece (ending at next) within
// ChunkSize and always moves past prev.
func (s *Splitter) overlapStart(text []rune, prev, end, next int) int {
	lo := max(end-s.Overlap, next-s.ChunkSize, prev+1)
	if lo >= end {
		return end
	}
	for p := lo; p < end; p++ {
		if isBoundary(text[p-1]) {
			return p
		}
	}
	return lo
}

func isBoundary(r rune) bool {
	return unicode.IsSpace(r) || r == '。'
}

func indexRunes(text, sep []rune) int {
	n := len(sep)
	if n == 0 || n > len(text) {
		return -1
	}
	for i := 0; i+n <= len(text); i++ {
		if text[i] != sep[0] {
			continue
		}
		match := true
		for k := 1; k < n; k++ {
			if text[i+k] != sep[k] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}
