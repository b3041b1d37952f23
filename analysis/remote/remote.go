// Package remote sends whole recordings to a multimodal model gateway over
// HTTP. The gateway returns the raw model text and its finish reason;
// validation happens locally in analysis.Parse.
package remote

import (
	"context"
	"net/http"
	"path/filepath"

	"github.com/kbukum/speakerhub/analysis"
	"github.com/kbukum/speakerhub/errors"
	"github.com/kbukum/speakerhub/httpclient"
	"github.com/kbukum/speakerhub/logger"
	"github.com/kbukum/speakerhub/provider"
)

const (
	// ProviderName is the registered name for the gateway backend.
	ProviderName = "remote"

	// DefaultURL is where the gateway listens unless configured otherwise.
	DefaultURL = "http://localhost:8390"

	defaultTemperature     = "0.2"
	defaultMaxOutputTokens = "65536"
)

// Provider implements analysis.Provider.
type Provider struct {
	model  string
	client *httpclient.Client
	guard  *provider.Guard
	log    *logger.Logger
}

var _ analysis.Provider = (*Provider)(nil)

// NewProvider creates a gateway provider.
func NewProvider(cfg provider.Config, log *logger.Logger) *Provider {
	cfg.ApplyDefaults(ProviderName, DefaultURL)
	if log == nil {
		log = logger.Nop()
	}
	return &Provider{
		model:  cfg.Model,
		client: cfg.HTTPClient(),
		guard:  provider.NewGuard("analysis", cfg, log),
		log:    log.WithComponent("analysis-gateway"),
	}
}

// Factory returns a provider.Factory for the analysis registry.
func Factory(log *logger.Logger) provider.Factory[analysis.Provider] {
	return func(cfg provider.Config) (analysis.Provider, error) {
		return NewProvider(cfg, log), nil
	}
}

// Name returns the provider name.
func (p *Provider) Name() string { return ProviderName }

// IsAvailable checks the gateway's health endpoint.
func (p *Provider) IsAvailable(ctx context.Context) bool {
	return p.client.Ping(ctx, "/health")
}

// Analyze uploads the recording with the analysis prompt and validates the
// model output.
func (p *Provider) Analyze(ctx context.Context, req analysis.Request) (*analysis.Result, error) {
	if req.AudioPath == "" {
		return nil, errors.InvalidInput("audio_path", "is required")
	}
	fields := map[string]string{
		"prompt":            analysis.Prompt,
		"temperature":       defaultTemperature,
		"max_output_tokens": defaultMaxOutputTokens,
	}
	if p.model != "" {
		fields["model"] = p.model
	}
	if req.Language != "" {
		fields["language"] = req.Language
	}

	out, err := provider.Call(ctx, p.guard, func(ctx context.Context) (*gatewayResponse, error) {
		var out gatewayResponse
		err := p.client.DoJSON(ctx, httpclient.Request{
			Method: http.MethodPost,
			Path:   "/analyze",
			Body: &httpclient.MultipartBody{
				Fields: fields,
				Files: []httpclient.FileField{{
					FieldName:   "audio",
					FileName:    filepath.Base(req.AudioPath),
					ContentType: analysis.MimeType(req.AudioPath),
					Path:        req.AudioPath,
				}},
			},
		}, &out)
		return &out, err
	})
	if err != nil {
		return nil, err
	}

	p.log.Debug("analysis response received", map[string]interface{}{
		"model":         out.Model,
		"finish_reason": out.FinishReason,
		"length":        len(out.Content),
	})
	return analysis.Parse(out.Content, out.FinishReason)
}

type gatewayResponse struct {
	Content      string `json:"content"`
	FinishReason string `json:"finish_reason"`
	Model        string `json:"model"`
}
