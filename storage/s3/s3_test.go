package s3

import (
	"context"
	"testing"

	"github.com/kbukum/speakerhub/storage"
)

func TestURLWithCustomEndpoint(t *testing.T) {
	s, err := NewStorage(context.Background(), storage.S3Config{
		Bucket: "speakerhub", Region: "us-east-1", Endpoint: "http://localhost:9000",
		AccessKey: "minio", SecretKey: "minio123",
	})
	if err != nil {
		t.Fatal(err)
	}
	u, _ := s.URL(context.Background(), "audio/a.wav")
	if u != "http://localhost:9000/speakerhub/audio/a.wav" {
		t.Errorf("url = %s", u)
	}
	if !s.client.Options().UsePathStyle {
		t.Error("custom endpoint should use path style")
	}
}

func TestURLDefaultEndpoint(t *testing.T) {
	s, err := NewStorage(context.Background(), storage.S3Config{
		Bucket: "b", Region: "eu-west-1", AccessKey: "k", SecretKey: "s",
	})
	if err != nil {
		t.Fatal(err)
	}
	u, _ := s.URL(context.Background(), "k")
	if u != "https://s3.eu-west-1.amazonaws.com/b/k" {
		t.Errorf("url = %s", u)
	}
}
