// Package openaiclient builds go-openai clients from a collaborator config
// section and classifies their errors for provider.Guard.
package openaiclient

import (
	stderrors "errors"
	"net/http"

	"github.com/sashabaranov/go-openai"

	"github.com/kbukum/speakerhub/provider"
)

// DefaultURL is the public OpenAI API. Compatible gateways are configured
// through base_url.
const DefaultURL = "https://api.openai.com/v1"

// New creates a client for cfg. An empty BaseURL targets the public API.
func New(cfg provider.Config) *openai.Client {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	oc.HTTPClient = &http.Client{Timeout: cfg.TimeoutDuration()}
	return openai.NewClientWithConfig(oc)
}

// Classify marks client errors (4xx other than 429) as permanent so the
// guard does not retry them. Everything else is returned unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if status := StatusCode(err); status >= 400 && status < 500 && status != http.StatusTooManyRequests {
		return provider.Permanent(err)
	}
	return err
}

// StatusCode extracts the HTTP status from a go-openai error, or 0.
func StatusCode(err error) int {
	var apiErr *openai.APIError
	if stderrors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if stderrors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}
