package analysis

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/kbukum/speakerhub/provider"
)

// Provider analyzes a whole recording in one call.
type Provider interface {
	provider.Provider
	Analyze(ctx context.Context, req Request) (*Result, error)
}

// NewRegistry creates a registry for single-call backends.
func NewRegistry() *provider.Registry[Provider] {
	return provider.NewRegistry[Provider]()
}

var mimeTypes = map[string]string{
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".m4a":  "audio/mp4",
	".flac": "audio/flac",
	".ogg":  "audio/ogg",
	".aac":  "audio/aac",
	".wma":  "audio/x-ms-wma",
	".opus": "audio/opus",
	".webm": "audio/webm",
}

// MimeType returns the audio MIME type for path's extension, defaulting to
// audio/mpeg.
func MimeType(path string) string {
	if mt, ok := mimeTypes[strings.ToLower(filepath.Ext(path))]; ok {
		return mt
	}
	return "audio/mpeg"
}
