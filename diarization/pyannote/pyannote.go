// Package pyannote talks to a pyannote.audio HTTP sidecar for diarization
// and speaker embeddings.
package pyannote

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/kbukum/speakerhub/diarization"
	"github.com/kbukum/speakerhub/errors"
	"github.com/kbukum/speakerhub/httpclient"
	"github.com/kbukum/speakerhub/logger"
	"github.com/kbukum/speakerhub/provider"
)

const (
	// ProviderName is the registered name for the pyannote provider.
	ProviderName = "pyannote"

	// DefaultURL is where the sidecar listens unless configured otherwise.
	DefaultURL = "http://localhost:8388"
)

// Provider implements diarization.Provider and diarization.Embedder.
type Provider struct {
	client *httpclient.Client
	guard  *provider.Guard
	embeds *provider.Guard
	log    *logger.Logger
}

var (
	_ diarization.Provider = (*Provider)(nil)
	_ diarization.Embedder = (*Provider)(nil)
)

// NewProvider creates a pyannote provider from cfg.
func NewProvider(cfg provider.Config, log *logger.Logger) *Provider {
	cfg.ApplyDefaults(ProviderName, DefaultURL)
	if log == nil {
		log = logger.Nop()
	}
	return &Provider{
		client: cfg.HTTPClient(),
		guard:  provider.NewGuard("diarization", cfg, log),
		embeds: provider.NewGuard("embedding", cfg, log),
		log:    log.WithComponent("pyannote"),
	}
}

// Factory returns a provider.Factory for the diarization registry.
func Factory(log *logger.Logger) provider.Factory[diarization.Provider] {
	return func(cfg provider.Config) (diarization.Provider, error) {
		return NewProvider(cfg, log), nil
	}
}

// Name returns the provider name.
func (p *Provider) Name() string { return ProviderName }

// IsAvailable checks the sidecar's health endpoint.
func (p *Provider) IsAvailable(ctx context.Context) bool {
	return p.client.Ping(ctx, "/health")
}

// Diarize uploads the audio file and returns the labelled turns ordered by
// start time.
func (p *Provider) Diarize(ctx context.Context, req diarization.Request) (*diarization.Response, error) {
	if req.AudioPath == "" {
		return nil, errors.InvalidInput("audio_path", "is required")
	}

	fields := map[string]string{}
	if req.NumSpeakers > 0 {
		fields["num_speakers"] = strconv.Itoa(req.NumSpeakers)
	}
	if req.MinSpeakers > 0 {
		fields["min_speakers"] = strconv.Itoa(req.MinSpeakers)
	}
	if req.MaxSpeakers > 0 {
		fields["max_speakers"] = strconv.Itoa(req.MaxSpeakers)
	}

	result, err := provider.Call(ctx, p.guard, func(ctx context.Context) (*diarizeResponse, error) {
		var out diarizeResponse
		err := p.client.DoJSON(ctx, httpclient.Request{
			Method: http.MethodPost,
			Path:   "/diarize",
			Body: &httpclient.MultipartBody{
				Fields: fields,
				Files:  []httpclient.FileField{{FieldName: "audio", Path: req.AudioPath}},
			},
		}, &out)
		if err != nil {
			return nil, err
		}
		if out.Error != "" {
			return nil, provider.Permanent(fmt.Errorf("pyannote: %s", out.Error))
		}
		return &out, nil
	})
	if err != nil {
		return nil, err
	}

	resp := result.toResponse()
	p.log.Debug("diarization complete", map[string]interface{}{
		"segments": len(resp.Segments),
		"speakers": resp.NumSpeakers,
	})
	return resp, nil
}

// Embed returns the speaker embedding of the [Start, End) span of the audio.
func (p *Provider) Embed(ctx context.Context, req diarization.EmbedRequest) ([]float32, error) {
	if req.End <= req.Start {
		return nil, errors.InvalidInput("end", "must be after start")
	}
	fields := map[string]string{
		"start": strconv.FormatFloat(req.Start, 'f', 3, 64),
		"end":   strconv.FormatFloat(req.End, 'f', 3, 64),
	}
	return provider.Call(ctx, p.embeds, func(ctx context.Context) ([]float32, error) {
		var out embedResponse
		err := p.client.DoJSON(ctx, httpclient.Request{
			Method: http.MethodPost,
			Path:   "/embed",
			Body: &httpclient.MultipartBody{
				Fields: fields,
				Files:  []httpclient.FileField{{FieldName: "audio", Path: req.AudioPath}},
			},
		}, &out)
		if err != nil {
			return nil, err
		}
		if out.Error != "" {
			return nil, provider.Permanent(fmt.Errorf("pyannote: %s", out.Error))
		}
		if len(out.Embedding) == 0 {
			return nil, provider.Permanent(fmt.Errorf("pyannote: empty embedding"))
		}
		return out.Embedding, nil
	})
}

type diarizeResponse struct {
	Segments    []pyannoteSegment `json:"segments"`
	NumSpeakers int               `json:"num_speakers"`
	Error       string            `json:"error,omitempty"`
}

type pyannoteSegment struct {
	SpeakerID  string   `json:"speaker_id"`
	StartTime  float64  `json:"start_time"`
	EndTime    float64  `json:"end_time"`
	Confidence *float64 `json:"confidence,omitempty"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
	Error     string    `json:"error,omitempty"`
}

func (r *diarizeResponse) toResponse() *diarization.Response {
	segments := make([]diarization.Segment, 0, len(r.Segments))
	for _, s := range r.Segments {
		if s.EndTime <= s.StartTime {
			continue
		}
		conf := 1.0
		if s.Confidence != nil {
			conf = *s.Confidence
		}
		segments = append(segments, diarization.Segment{
			Label:      s.SpeakerID,
			Start:      s.StartTime,
			End:        s.EndTime,
			Confidence: conf,
		})
	}
	diarization.SortByStart(segments)

	n := r.NumSpeakers
	if labels := len(diarization.Labels(segments)); n == 0 || labels < n {
		n = labels
	}
	return &diarization.Response{Segments: segments, NumSpeakers: n}
}
