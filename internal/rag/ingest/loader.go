package ingest

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/akolanti/docqa/internal/domain/commonModels"
	"github.com/akolanti/docqa/pkg/logger_i"
)

// LoadResult holds the loaded documents plus the files that could not be read.
type LoadResult struct {
	Documents []commonModels.Document
	Failures  []*commonModels.LoadError
	Files     int
}

// DocType maps a path to a supported type. ok is false for anything else.
func DocType(path string) (commonModels.DocType, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return commonModels.PDF, true
	case ".txt":
		return commonModels.TXT, true
	case ".md":
		return commonModels.MD, true
	default:
		return "", false
	}
}

type Loader struct {
	logger *logger_i.Logger
	now    func() time.Time
}

func NewLoader() *Loader {
	return &Loader{logger: logger_i.NewLogger("Loader"), now: time.Now}
}

// Load walks dir recursively in lexical order. A missing directory yields an
// empty result and a warning.
func (l *Loader) Load(ctx context.Context, dir string) (LoadResult, error) {
	var res LoadResult

	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			l.logger.Warn("Documents directory does not exist", "dir", dir)
			return res, nil
		}
		return res, err
	}
	if !info.IsDir() {
		l.logger.Warn("Documents path is not a directory", "dir", dir)
		return res, nil
	}

	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if walkErr != nil {
			if path == dir {
				return walkErr
			}
			l.logger.Warn("Skipping unreadable entry", "path", path, "error", walkErr)
			res.Failures = append(res.Failures, &commonModels.LoadError{Path: path, Err: walkErr})
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		docType, ok := DocType(path)
		if !ok {
			return nil
		}

		res.Files++
		docs, err := l.loadFile(path, docType)
		if err != nil {
			loadErr := &commonModels.LoadError{Path: path, Err: err}
			l.logger.Error("Failed to load file", "path", path, "error", err)
			res.Failures = append(res.Failures, loadErr)
			return nil
		}
		res.Documents = append(res.Documents, docs...)
		return nil
	})
	if err != nil {
		return res, err
	}

	l.logger.Info("Loaded documents", "dir", dir, "files", res.Files, "documents", len(res.Documents), "failures", len(res.Failures))
	return res, nil
}

func (l *Loader) loadFile(path string, docType commonModels.DocType) ([]commonModels.Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	base := commonModels.Document{
		Source:    path,
		Filename:  filepath.Base(path),
		FileType:  docType,
		FileSize:  info.Size(),
		IndexedAt: l.now().UTC(),
	}

	if docType == commonModels.PDF {
		pages, err := extractPDF(path, l.logger)
		if err != nil {
			return nil, err
		}
		docs := make([]commonModels.Document, 0, len(pages))
		for _, p := range pages {
			doc := base
			doc.Page = commonModels.IntPtr(p.Number)
			doc.Content = p.Content
			doc.ChunkSize = utf8.RuneCountInString(p.Content)
			docs = append(docs, doc)
		}
		return docs, nil
	}

	text, err := extractText(path)
	if err != nil {
		return nil, err
	}
	base.Content = text
	base.ChunkSize = utf8.RuneCountInString(text)
	return []commonModels.Document{base}, nil
}
