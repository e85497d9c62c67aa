package models

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/adk/model"
	"google.golang.org/adk/model/gemini"
	"google.golang.org/genai"
)

// Provider names a generation backend.
type Provider string

const (
	ProviderGemini     Provider = "gemini"
	ProviderOpenAI     Provider = "openai"
	ProviderGrok       Provider = "grok"
	ProviderOpenRouter Provider = "openrouter"
)

// New creates the generation backend for provider.
func New(ctx context.Context, provider Provider, modelName, apiKey string) (model.LLM, error) {
	switch Provider(strings.ToLower(string(provider))) {
	case ProviderGemini, "":
		return NewGeminiModel(ctx, modelName, apiKey)
	case ProviderOpenAI:
		return NewOpenAIModel(modelName, apiKey)
	case ProviderGrok:
		return NewGrokModel(modelName, apiKey)
	case ProviderOpenRouter:
		return NewOpenRouterModel(modelName, apiKey)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", provider)
	}
}

// NewGeminiModel creates a Gemini backend through the ADK model adapter.
func NewGeminiModel(ctx context.Context, modelName, apiKey string) (model.LLM, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}
	llm, err := gemini.NewModel(ctx, modelName, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini model: %w", err)
	}
	return llm, nil
}

// NewOpenAIModel creates an OpenAI chat backend.
func NewOpenAIModel(modelName, apiKey string) (model.LLM, error) {
	return newOpenAICompatible(modelName, apiKey, "", "openai-go")
}

// NewGrokModel creates an x.ai backend (e.g. "grok-4-fast").
func NewGrokModel(modelName, apiKey string) (model.LLM, error) {
	return newOpenAICompatible(modelName, apiKey, "https://api.x.ai/v1", "grok-go")
}

// NewOpenRouterModel creates an OpenRouter backend. modelName is the OpenRouter model slug.
func NewOpenRouterModel(modelName, apiKey string) (model.LLM, error) {
	return newOpenAICompatible(modelName, apiKey, "https://openrouter.ai/api/v1", "openrouter-go")
}
