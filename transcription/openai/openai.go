// Package openai transcribes audio through the OpenAI audio API, or any
// gateway that speaks it, using go-openai.
package openai

import (
	"context"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/kbukum/speakerhub/errors"
	"github.com/kbukum/speakerhub/logger"
	"github.com/kbukum/speakerhub/openaiclient"
	"github.com/kbukum/speakerhub/provider"
	"github.com/kbukum/speakerhub/transcription"
)

// ProviderName is the registered name for this backend.
const ProviderName = "openai"

// Provider implements transcription.Provider.
type Provider struct {
	model  string
	client *goopenai.Client
	guard  *provider.Guard
	log    *logger.Logger
}

var _ transcription.Provider = (*Provider)(nil)

// NewProvider creates an OpenAI transcription provider.
func NewProvider(cfg provider.Config, log *logger.Logger) *Provider {
	cfg.ApplyDefaults(ProviderName, openaiclient.DefaultURL)
	if cfg.Model == "" {
		cfg.Model = goopenai.Whisper1
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Provider{
		model:  cfg.Model,
		client: openaiclient.New(cfg),
		guard:  provider.NewGuard("transcription", cfg, log),
		log:    log.WithComponent("openai-transcription"),
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

// IsAvailable lists models as a cheap authenticated round trip.
func (p *Provider) IsAvailable(ctx context.Context) bool {
	_, err := p.client.ListModels(ctx)
	return err == nil
}

// Transcribe requests a verbose JSON transcript so segment timings come back.
func (p *Provider) Transcribe(ctx context.Context, req transcription.Request) (*transcription.Response, error) {
	if req.AudioPath == "" {
		return nil, errors.InvalidInput("audio_path", "is required")
	}
	model := p.model
	if req.Model != "" {
		model = req.Model
	}

	resp, err := provider.Call(ctx, p.guard, func(ctx context.Context) (goopenai.AudioResponse, error) {
		resp, err := p.client.CreateTranscription(ctx, goopenai.AudioRequest{
			Model:    model,
			FilePath: req.AudioPath,
			Language: req.Language,
			Format:   goopenai.AudioResponseFormatVerboseJSON,
		})
		return resp, openaiclient.Classify(err)
	})
	if err != nil {
		return nil, err
	}

	segments := make([]transcription.Segment, len(resp.Segments))
	for i, s := range resp.Segments {
		segments[i] = transcription.Segment{Start: s.Start, End: s.End, Text: s.Text}
	}
	p.log.Debug("transcription complete", map[string]interface{}{
		"segments": len(segments),
		"duration": resp.Duration,
	})
	return &transcription.Response{
		Text:     resp.Text,
		Segments: segments,
		Duration: resp.Duration,
		Language: resp.Language,
	}, nil
}
