// Package whisper talks to a faster-whisper HTTP sidecar.
package whisper

import (
	"context"
	"net/http"

	"github.com/kbukum/speakerhub/errors"
	"github.com/kbukum/speakerhub/httpclient"
	"github.com/kbukum/speakerhub/logger"
	"github.com/kbukum/speakerhub/provider"
	"github.com/kbukum/speakerhub/transcription"
)

const (
	// ProviderName is the registered name for the Whisper provider.
	ProviderName = "whisper"

	// DefaultURL is where the sidecar listens unless configured otherwise.
	DefaultURL   = "http://localhost:8387"
	defaultModel = "base"
)

// Provider implements transcription.Provider using the sidecar.
type Provider struct {
	model  string
	client *httpclient.Client
	guard  *provider.Guard
	log    *logger.Logger
}

var _ transcription.Provider = (*Provider)(nil)

// NewProvider creates a Whisper provider from cfg.
func NewProvider(cfg provider.Config, log *logger.Logger) *Provider {
	cfg.ApplyDefaults(ProviderName, DefaultURL)
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Provider{
		model:  cfg.Model,
		client: cfg.HTTPClient(),
		guard:  provider.NewGuard("transcription", cfg, log),
		log:    log.WithComponent("whisper"),
	}
}

// Factory returns a provider.Factory for the transcription registry.
func Factory(log *logger.Logger) provider.Factory[transcription.Provider] {
	return func(cfg provider.Config) (transcription.Provider, error) {
		return NewProvider(cfg, log), nil
	}
}

// Name returns the provider name.
func (p *Provider) Name() string { return ProviderName }

// IsAvailable checks the sidecar's health endpoint.
func (p *Provider) IsAvailable(ctx context.Context) bool {
	return p.client.Ping(ctx, "/health")
}

// Transcribe uploads the audio file and returns the time-aligned transcript.
func (p *Provider) Transcribe(ctx context.Context, req transcription.Request) (*transcription.Response, error) {
	if req.AudioPath == "" {
		return nil, errors.InvalidInput("audio_path", "is required")
	}
	model := p.model
	if req.Model != "" {
		model = req.Model
	}
	fields := map[string]string{"model": model}
	if req.Language != "" {
		fields["language"] = req.Language
	}

	out, err := provider.Call(ctx, p.guard, func(ctx context.Context) (*whisperResponse, error) {
		var out whisperResponse
		err := p.client.DoJSON(ctx, httpclient.Request{
			Method: http.MethodPost,
			Path:   "/transcribe",
			Body: &httpclient.MultipartBody{
				Fields: fields,
				Files:  []httpclient.FileField{{FieldName: "audio", Path: req.AudioPath}},
			},
		}, &out)
		return &out, err
	})
	if err != nil {
		return nil, err
	}
	p.log.Debug("transcription complete", map[string]interface{}{
		"segments": len(out.Segments),
		"language": out.Language,
	})
	return out.toResponse(), nil
}

type whisperResponse struct {
	Text     string           `json:"text"`
	Segments []whisperSegment `json:"segments"`
	Language string           `json:"language"`
}

type whisperSegment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

func (r *whisperResponse) toResponse() *transcription.Response {
	segments := make([]transcription.Segment, len(r.Segments))
	for i, seg := range r.Segments {
		segments[i] = transcription.Segment{Start: seg.Start, End: seg.End, Text: seg.Text}
	}
	var duration float64
	if len(r.Segments) > 0 {
		duration = r.Segments[len(r.Segments)-1].End
	}
	return &transcription.Response{
		Text:     r.Text,
		Segments: segments,
		Duration: duration,
		Language: r.Language,
	}
}
