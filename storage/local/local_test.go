package local

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/kbukum/speakerhub/logger"
	"github.com/kbukum/speakerhub/storage"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := NewStorage(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestUploadDownloadRoundTrip(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	if err := s.Upload(ctx, "audio/rec-1.wav", strings.NewReader("RIFF")); err != nil {
		t.Fatal(err)
	}
	data, err := storage.ReadAll(ctx, s, "audio/rec-1.wav")
	if err != nil || string(data) != "RIFF" {
		t.Fatalf("data=%q err=%v", data, err)
	}

	// Overwrite replaces content.
	_ = s.Upload(ctx, "audio/rec-1.wav", strings.NewReader("WAVE"))
	data, _ = storage.ReadAll(ctx, s, "audio/rec-1.wav")
	if string(data) != "WAVE" {
		t.Errorf("after overwrite = %q", data)
	}
}

func TestDownloadMissing(t *testing.T) {
	s := newTestStorage(t)
	_, err := s.Download(context.Background(), "nope")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("got %v", err)
	}
}

func TestExistsDeleteList(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	_ = s.Upload(ctx, "index/speaker_embeddings.index", strings.NewReader("a"))
	_ = s.Upload(ctx, "index/speaker_metadata.json", strings.NewReader("{}"))
	_ = s.Upload(ctx, "audio/x.mp3", strings.NewReader("b"))

	files, err := s.List(ctx, "index/")
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 || files[0].Path != "index/speaker_embeddings.index" {
		t.Fatalf("files = %+v", files)
	}

	ok, _ := s.Exists(ctx, "audio/x.mp3")
	if !ok {
		t.Error("expected object to exist")
	}
	if err := s.Delete(ctx, "audio/x.mp3"); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, "audio/x.mp3"); err != nil {
		t.Errorf("second delete should be a no-op, got %v", err)
	}
	ok, _ = s.Exists(ctx, "audio/x.mp3")
	if ok {
		t.Error("expected object to be gone")
	}
}

func TestTraversalIsConfined(t *testing.T) {
	s := newTestStorage(t)
	p, err := s.LocalPath("../../etc/passwd")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(p, s.basePath) {
		t.Errorf("path %q escaped %q", p, s.basePath)
	}
}

func TestMaterializeUsesLocalPath(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	_ = s.Upload(ctx, "a.wav", strings.NewReader("x"))

	p, cleanup, err := storage.Materialize(ctx, s, "a.wav")
	if err != nil {
		t.Fatal(err)
	}
	defer cleanup()
	f, err := os.Open(p)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	b, _ := io.ReadAll(f)
	if string(b) != "x" {
		t.Errorf("content = %q", b)
	}
}

func TestFactoryRegistered(t *testing.T) {
	st, err := storage.New(storage.Config{Provider: storage.ProviderLocal, BasePath: t.TempDir()}, logger.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := st.(*Storage); !ok {
		t.Errorf("got %T", st)
	}
}
