// Package llm defines the chat-completion collaborator used for insight
// generation, plus helpers for prompting it for JSON.
//
// Backends:
//
//   - llm/openai: OpenAI chat completions, or any compatible endpoint
//     (Ollama, vLLM, LiteLLM) reached through base_url
package llm
