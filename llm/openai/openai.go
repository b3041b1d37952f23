// Package openai implements llm.Provider with go-openai chat completions.
package openai

import (
	"context"
	"fmt"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/kbukum/speakerhub/llm"
	"github.com/kbukum/speakerhub/logger"
	"github.com/kbukum/speakerhub/openaiclient"
	"github.com/kbukum/speakerhub/provider"
)

const (
	// ProviderName is the registered name for this backend.
	ProviderName = "openai"

	defaultModel = goopenai.GPT4oMini
)

// Provider implements llm.Provider.
type Provider struct {
	model  string
	client *goopenai.Client
	guard  *provider.Guard
	log    *logger.Logger
}

var _ llm.Provider = (*Provider)(nil)

// NewProvider creates an OpenAI chat provider.
func NewProvider(cfg provider.Config, log *logger.Logger) *Provider {
	cfg.ApplyDefaults(ProviderName, openaiclient.DefaultURL)
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Provider{
		model:  cfg.Model,
		client: openaiclient.New(cfg),
		guard:  provider.NewGuard("llm", cfg, log),
		log:    log.WithComponent("openai-llm"),
	}
}

// Factory returns a provider.Factory for the llm registry.
func Factory(log *logger.Logger) provider.Factory[llm.Provider] {
	return func(cfg provider.Config) (llm.Provider, error) {
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

// Complete sends one chat completion request.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	model := p.model
	if req.Model != "" {
		model = req.Model
	}

	messages := make([]goopenai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, goopenai.ChatCompletionMessage{
			Role:    goopenai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	for _, m := range req.Messages {
		messages = append(messages, goopenai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	chatReq := goopenai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: float32(req.Temperature),
		MaxTokens:   req.MaxTokens,
	}
	if req.JSON {
		chatReq.ResponseFormat = &goopenai.ChatCompletionResponseFormat{
			Type: goopenai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := provider.Call(ctx, p.guard, func(ctx context.Context) (goopenai.ChatCompletionResponse, error) {
		resp, err := p.client.CreateChatCompletion(ctx, chatReq)
		if err != nil {
			return resp, openaiclient.Classify(err)
		}
		if len(resp.Choices) == 0 {
			return resp, provider.Permanent(fmt.Errorf("no choices returned"))
		}
		return resp, nil
	})
	if err != nil {
		return nil, err
	}

	choice := resp.Choices[0]
	p.log.Debug("completion done", map[string]interface{}{
		"model":             resp.Model,
		"finish_reason":     string(choice.FinishReason),
		"prompt_tokens":     resp.Usage.PromptTokens,
		"completion_tokens": resp.Usage.CompletionTokens,
	})
	return &llm.CompletionResponse{
		Content:      choice.Message.Content,
		Model:        resp.Model,
		FinishReason: normalizeFinish(choice.FinishReason),
		Usage: llm.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

func normalizeFinish(r goopenai.FinishReason) string {
	switch r {
	case goopenai.FinishReasonStop, "":
		return llm.FinishStop
	case goopenai.FinishReasonLength:
		return llm.FinishMaxTokens
	case goopenai.FinishReasonContentFilter:
		return llm.FinishSafety
	default:
		return llm.FinishOther
	}
}
