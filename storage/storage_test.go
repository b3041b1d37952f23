package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/kbukum/speakerhub/logger"
)

type memStorage struct{ objects map[string][]byte }

func (m *memStorage) Upload(_ context.Context, p string, r io.Reader) error {
	b, err := io.ReadAll(r)
	m.objects[p] = b
	return err
}
func (m *memStorage) Download(_ context.Context, p string) (io.ReadCloser, error) {
	b, ok := m.objects[p]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, p)
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}
func (m *memStorage) Delete(_ context.Context, p string) error { delete(m.objects, p); return nil }
func (m *memStorage) Exists(_ context.Context, p string) (bool, error) {
	_, ok := m.objects[p]
	return ok, nil
}
func (m *memStorage) URL(_ context.Context, p string) (string, error) { return "mem://" + p, nil }
func (m *memStorage) List(context.Context, string) ([]FileInfo, error) { return nil, nil }

func TestMaterializeDownloadsToTempFile(t *testing.T) {
	m := &memStorage{objects: map[string][]byte{"audio/a.flac": []byte("fLaC")}}
	p, cleanup, err := Materialize(context.Background(), m, "audio/a.flac")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(p, ".flac") {
		t.Errorf("temp path %q should keep extension", p)
	}
	b, _ := os.ReadFile(p)
	if string(b) != "fLaC" {
		t.Errorf("content = %q", b)
	}
	cleanup()
	if _, err := os.Stat(p); !os.IsNotExist(err) {
		t.Error("cleanup should remove temp file")
	}
}

func TestMaterializeMissing(t *testing.T) {
	m := &memStorage{objects: map[string][]byte{}}
	if _, _, err := Materialize(context.Background(), m, "x"); err == nil {
		t.Fatal("expected error")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"local default", Config{}, ""},
		{"s3 ok", Config{Provider: ProviderS3, S3: S3Config{Bucket: "b"}}, ""},
		{"s3 missing bucket", Config{Provider: ProviderS3}, "bucket is required"},
		{"s3 half credentials", Config{Provider: ProviderS3, S3: S3Config{Bucket: "b", AccessKey: "k"}}, "must be set together"},
		{"unknown", Config{Provider: "gcs"}, "unsupported provider"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.ApplyDefaults()
			err := tt.cfg.Validate()
			if tt.wantErr == "" && err != nil {
				t.Fatalf("unexpected: %v", err)
			}
			if tt.wantErr != "" && (err == nil || !strings.Contains(err.Error(), tt.wantErr)) {
				t.Fatalf("got %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestNewUnregisteredProvider(t *testing.T) {
	RegisterFactory("mem", func(Config, *logger.Logger) (Storage, error) {
		return &memStorage{objects: map[string][]byte{}}, nil
	})
	// "mem" is registered but rejected by Validate.
	if _, err := New(Config{Provider: "mem"}, logger.Nop()); err == nil {
		t.Fatal("expected validation error")
	}
}
