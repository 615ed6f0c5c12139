package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/akolanti/docqa/internal/domain/commonModels"
)

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestDocType(t *testing.T) {
	tests := []struct {
		path string
		want commonModels.DocType
		ok   bool
	}{
		{"test.pdf", commonModels.PDF, true},
		{"REPORT.PDF", commonModels.PDF, true},
		{"notes.txt", commonModels.TXT, true},
		{"readme.Md", commonModels.MD, true},
		{"image.png", "", false},
		{"letter.docx", "", false},
		{"noext", "", false},
	}

	for _, tt := range tests {
		got, ok := DocType(tt.path)
		if got != tt.want || ok != tt.ok {
			t.Errorf("DocType(%s) = %v, %v; want %v, %v", tt.path, got, ok, tt.want, tt.ok)
		}
	}
}

func TestLoader_MissingDirectory(t *testing.T) {
	res, err := NewLoader().Load(context.Background(), filepath.Join(t.TempDir(), "nope"))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(res.Documents) != 0 || len(res.Failures) != 0 {
		t.Errorf("expected an empty result, got %+v", res)
	}
}

func TestLoader_WalksRecursivelyInOrder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "b.txt"), []byte("second file"))
	writeFile(t, filepath.Join(dir, "a.md"), []byte("# first file"))
	writeFile(t, filepath.Join(dir, "sub", "c.txt"), []byte("nested file"))
	writeFile(t, filepath.Join(dir, "image.png"), []byte{0x89, 0x50})

	res, err := NewLoader().Load(context.Background(), dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if res.Files != 3 {
		t.Errorf("expected 3 supported files, got %d", res.Files)
	}
	if len(res.Documents) != 3 {
		t.Fatalf("expected 3 documents, got %d", len(res.Documents))
	}

	want := []string{"a.md", "b.txt", "c.txt"}
	for i, w := range want {
		doc := res.Documents[i]
		if doc.Filename != w {
			t.Errorf("document %d = %s; want %s", i, doc.Filename, w)
		}
		if doc.Page != nil {
			t.Errorf("%s should not have a page", doc.Filename)
		}
		if doc.ChunkSize != len([]rune(doc.Content)) {
			t.Errorf("%s chunk size %d does not match content", doc.Filename, doc.ChunkSize)
		}
	}
	if res.Documents[0].FileType != commonModels.MD {
		t.Errorf("a.md loaded as %s", res.Documents[0].FileType)
	}
}

func TestLoader_CorruptFileDoesNotStopLoading(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "bad.txt"), []byte{0xff, 0xfe, 0xfd, 0x00, 0xc3})
	writeFile(t, filepath.Join(dir, "broken.pdf"), []byte("this is not a pdf"))
	writeFile(t, filepath.Join(dir, "good.txt"), []byte("Paris is the capital of France."))

	res, err := NewLoader().Load(context.Background(), dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(res.Documents) != 1 || res.Documents[0].Filename != "good.txt" {
		t.Fatalf("expected only good.txt to load, got %+v", res.Documents)
	}
	if len(res.Failures) != 2 {
		t.Fatalf("expected 2 failures, got %d", len(res.Failures))
	}
	var loadErr *commonModels.LoadError
	if !errors.As(res.Failures[0], &loadErr) || filepath.Base(loadErr.Path) != "bad.txt" {
		t.Errorf("unexpected failure %v", res.Failures[0])
	}
}

func TestLoader_CancelledContext(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), []byte("text"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewLoader().Load(ctx, dir); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
