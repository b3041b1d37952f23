package main

import (
	"bytes"
	"context"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/kbukum/speakerhub/bootstrap"
	"github.com/kbukum/speakerhub/logger"
	"github.com/kbukum/speakerhub/storage"
	"github.com/kbukum/speakerhub/testutil"
)

// shippedForTest loads config.yml with its file paths moved under a temp dir.
func shippedForTest(t *testing.T) AppConfig {
	t.Helper()
	cfg := loadShipped(t)
	dir := t.TempDir()
	cfg.Storage.BasePath = filepath.Join(dir, "data")
	cfg.Database.DSN = filepath.Join(dir, "speakerhub.db")
	return cfg
}

func TestShippedStorageStarts(t *testing.T) {
	cfg := shippedForTest(t)
	c := storage.NewComponent(cfg.Storage, logger.Nop())
	testutil.T(t).Setup(c)

	ctx := context.Background()
	if err := c.Storage().Upload(ctx, "recordings/a.wav", bytes.NewReader([]byte("RIFF"))); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if ok, err := c.Storage().Exists(ctx, "recordings/a.wav"); err != nil || !ok {
		t.Fatalf("Exists = %v, %v", ok, err)
	}
}

func TestStorageProvidersRegistered(t *testing.T) {
	tests := []struct {
		name string
		cfg  storage.Config
	}{
		{"local", storage.Config{Provider: storage.ProviderLocal, BasePath: t.TempDir()}},
		{"s3", storage.Config{Provider: storage.ProviderS3, S3: storage.S3Config{
			Bucket:    "speakerhub",
			Region:    "us-east-1",
			Endpoint:  "http://localhost:9000",
			AccessKey: "minio",
			SecretKey: "minio123",
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := storage.New(tt.cfg, logger.Nop())
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if s == nil {
				t.Fatal("nil storage")
			}
		})
	}
}

func TestInfrastructureWiringRunsTask(t *testing.T) {
	cfg := shippedForTest(t)
	app, err := bootstrap.NewApp(&cfg, bootstrap.WithLogger(logger.Nop()))
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	w := newWiring(app)
	if err := w.registerInfrastructure(); err != nil {
		t.Fatalf("registerInfrastructure: %v", err)
	}
	app.OnConfigure(w.configureResolver)

	rng := rand.New(rand.NewSource(3))
	vec := make([]float32, cfg.Index.Dimension)
	for i := range vec {
		vec[i] = float32(rng.NormFloat64())
	}

	err = app.RunTask(context.Background(), func(ctx context.Context) error {
		if w.storage.Storage() == nil {
			t.Error("storage backend not started")
		}
		id, isNew, err := w.resolver.IdentifyOrCreate(ctx, vec, "rec-1", "")
		if err != nil {
			return err
		}
		if !isNew || id == "" {
			t.Errorf("IdentifyOrCreate = %q, %v", id, isNew)
		}
		again, isNew, err := w.resolver.IdentifyOrCreate(ctx, vec, "rec-2", "")
		if err != nil {
			return err
		}
		if isNew || again != id {
			t.Errorf("second sighting = %q new=%v, want %q", again, isNew, id)
		}
		st, err := w.resolver.Rebuild(ctx)
		if err != nil {
			return err
		}
		if st.Identities != 1 || st.Live != 2 {
			t.Errorf("stats = %+v", st)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("RunTask: %v", err)
	}
}
