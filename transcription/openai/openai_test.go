package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/kbukum/speakerhub/errors"
	"github.com/kbukum/speakerhub/provider"
	"github.com/kbukum/speakerhub/transcription"
)

func audioFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "memo.m4a")
	if err := os.WriteFile(path, []byte("ftyp"), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestTranscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/transcriptions" {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if r.FormValue("response_format") != "verbose_json" {
			t.Errorf("response_format = %q", r.FormValue("response_format"))
		}
		if r.FormValue("model") != "whisper-1" {
			t.Errorf("model = %q", r.FormValue("model"))
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"task":     "transcribe",
			"language": "english",
			"duration": 4.2,
			"text":     "Good morning. Hi.",
			"segments": []map[string]any{
				{"id": 0, "start": 0.0, "end": 2.0, "text": "Good morning."},
				{"id": 1, "start": 2.4, "end": 4.2, "text": "Hi."},
			},
		})
	}))
	defer srv.Close()

	p := NewProvider(provider.Config{BaseURL: srv.URL + "/v1", APIKey: "sk-test", Retries: 1}, nil)
	resp, err := p.Transcribe(context.Background(), transcription.Request{AudioPath: audioFile(t)})
	if err != nil {
		t.Fatalf("Transcribe() error: %v", err)
	}
	if len(resp.Segments) != 2 || resp.Segments[1].Text != "Hi." {
		t.Errorf("segments = %+v", resp.Segments)
	}
	if resp.Duration != 4.2 {
		t.Errorf("duration = %v", resp.Duration)
	}
}

func TestTranscribe_ClientErrorNotRetried(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"Invalid file format.","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	p := NewProvider(provider.Config{BaseURL: srv.URL + "/v1", APIKey: "sk-test", Retries: 3}, nil)
	_, err := p.Transcribe(context.Background(), transcription.Request{AudioPath: audioFile(t)})
	if !errors.IsCode(err, errors.ErrCodeCollaboratorFailure) {
		t.Fatalf("error = %v, want COLLABORATOR_FAILURE", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}
