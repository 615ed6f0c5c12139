package files

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/akolanti/docqa/internal/config"
	"github.com/akolanti/docqa/internal/domain/commonModels"
	"github.com/akolanti/docqa/internal/rag/ingest"
	"github.com/akolanti/docqa/pkg/logger_i"
)

var ErrTooLarge = errors.New("file exceeds the upload limit")

type FileInfo struct {
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// Manager edits the top level of the corpus directory.
type Manager struct {
	dir     string
	maxSize int64
	logger  *logger_i.Logger
}

func NewManager(dir string) *Manager {
	return &Manager{dir: dir, maxSize: config.MaxUploadSize, logger: logger_i.NewLogger("FileManager").With("dir", dir)}
}

func (m *Manager) Dir() string { return m.dir }

// ValidateName resolves name inside dir without touching the filesystem.
// Names with separators, "..", or that resolve outside dir are rejected.
func ValidateName(dir, name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", &commonModels.ValidationError{Field: "filename", Reason: "must not be empty"}
	}
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") || strings.ContainsRune(name, 0) {
		return "", &commonModels.ValidationError{Field: "filename", Reason: "must be a plain file name"}
	}
	root, err := filepath.Abs(dir)
	if err != nil {
		return "", &commonModels.ValidationError{Field: "filename", Reason: "corpus directory cannot be resolved"}
	}
	full, err := filepath.Abs(filepath.Join(root, name))
	if err != nil {
		return "", &commonModels.ValidationError{Field: "filename", Reason: "cannot be resolved"}
	}
	rel, err := filepath.Rel(root, full)
	if err != nil || rel != filepath.Base(full) {
		return "", &commonModels.ValidationError{Field: "filename", Reason: "must stay inside the corpus directory"}
	}
	return full, nil
}

// List returns the supported files sorted by name. A missing directory is empty.
func (m *Manager) List() ([]FileInfo, error) {
	entries, err := os.ReadDir(m.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []FileInfo{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", m.dir, err)
	}
	out := make([]FileInfo, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if _, ok := ingest.DocType(e.Name()); !ok {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, FileInfo{Name: e.Name(), Size: info.Size(), ModTime: info.ModTime().UTC()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Save writes r to name, replacing an existing file of that name.
func (m *Manager) Save(name string, r io.Reader) (FileInfo, error) {
	path, err := ValidateName(m.dir, name)
	if err != nil {
		return FileInfo{}, err
	}
	if _, ok := ingest.DocType(name); !ok {
		return FileInfo{}, fmt.Errorf("%s: %w", name, commonModels.ErrUnsupportedType)
	}
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return FileInfo{}, err
	}

	tmp, err := os.CreateTemp(m.dir, ".upload-*.tmp")
	if err != nil {
		return FileInfo{}, fmt.Errorf("save %s: %w", name, err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, io.LimitReader(r, m.maxSize+1))
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return FileInfo{}, fmt.Errorf("save %s: %w", name, err)
	}
	if n > m.maxSize {
		return FileInfo{}, ErrTooLarge
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return FileInfo{}, err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return FileInfo{}, fmt.Errorf("save %s: %w", name, err)
	}
	m.logger.Info("Saved file", "name", name, "size", n)
	return FileInfo{Name: name, Size: n, ModTime: time.Now().UTC()}, nil
}

// Delete removes a regular file. Missing files and non-files give ErrNotFound.
func (m *Manager) Delete(name string) error {
	path, err := ValidateName(m.dir, name)
	if err != nil {
		return err
	}
	info, err := os.Lstat(path)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && !info.Mode().IsRegular()) {
		return fmt.Errorf("%s: %w", name, commonModels.ErrNotFound)
	}
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("delete %s: %w", name, err)
	}
	m.logger.Info("Deleted file", "name", name)
	return nil
}
