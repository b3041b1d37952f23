package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kbukum/speakerhub/errors"
)

const jsonInstruction = "\n\nIMPORTANT: Respond with ONLY the JSON object. " +
	"No markdown, no code blocks, no explanations. " +
	"Start with { and end with }."

// Complete sends system and user prompts and returns the text response.
func Complete(ctx context.Context, p Provider, system, user string) (string, error) {
	resp, err := p.Complete(ctx, CompletionRequest{
		SystemPrompt: system,
		Messages:     []Message{{Role: "user", Content: user}},
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// CompleteStructured asks for a JSON object and unmarshals it into result.
// A response cut off by the token limit or unparseable output is reported
// as a CollaboratorFailure naming service.
func CompleteStructured(ctx context.Context, p Provider, service, system, user string, temperature float64, result any) error {
	resp, err := p.Complete(ctx, CompletionRequest{
		SystemPrompt: system + jsonInstruction,
		Messages:     []Message{{Role: "user", Content: user}},
		Temperature:  temperature,
		JSON:         true,
	})
	if err != nil {
		return err
	}
	if resp.FinishReason == FinishMaxTokens {
		return errors.CollaboratorFailure(service, fmt.Errorf("response truncated at the token limit"))
	}
	if resp.FinishReason == FinishSafety {
		return errors.CollaboratorFailure(service, fmt.Errorf("response blocked by safety filters"))
	}

	content := ExtractJSON(resp.Content)
	if err := json.Unmarshal([]byte(content), result); err != nil {
		return errors.CollaboratorFailure(service, fmt.Errorf("unmarshal structured response: %w", err))
	}
	return nil
}

// StripFences removes a surrounding markdown code fence, with or without a
// language tag, and trims whitespace.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = s[3:]
	if idx := strings.Index(s, "\n"); idx >= 0 {
		s = s[idx+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// ExtractJSON pulls the outermost JSON object out of model output that may
// carry fences or surrounding prose.
func ExtractJSON(s string) string {
	s = StripFences(s)
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}
