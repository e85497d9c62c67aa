package models

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"google.golang.org/adk/model"
	"google.golang.org/genai"
)

func TestGenerationConfig(t *testing.T) {
	cfg := GenerationConfig(0.7, 2048)
	if cfg.Temperature == nil || *cfg.Temperature != 0.7 {
		t.Fatalf("unexpected temperature: %v", cfg.Temperature)
	}
	if cfg.MaxOutputTokens != 2048 {
		t.Fatalf("unexpected max tokens: %d", cfg.MaxOutputTokens)
	}
	if len(cfg.SafetySettings) != 4 {
		t.Fatalf("expected 4 safety settings, got %d", len(cfg.SafetySettings))
	}
	for _, s := range cfg.SafetySettings {
		if s.Threshold != genai.HarmBlockThresholdBlockNone {
			t.Fatalf("unexpected threshold for %s: %s", s.Category, s.Threshold)
		}
	}
}

func TestBuildOpenAIParams(t *testing.T) {
	temp := float32(0.5)
	req := &model.LLMRequest{
		Contents: []*genai.Content{
			genai.NewContentFromText("persona", genai.RoleUser),
			genai.NewContentFromText("earlier answer", genai.RoleModel),
			genai.NewContentFromText("question", genai.RoleUser),
		},
		Config: &genai.GenerateContentConfig{
			Temperature:       &temp,
			MaxOutputTokens:   128,
			SystemInstruction: genai.NewContentFromText("be brief", genai.RoleUser),
		},
	}

	params := buildOpenAIParams(req, "gpt-4o-mini")
	if params.Model != "gpt-4o-mini" {
		t.Fatalf("unexpected model: %s", params.Model)
	}
	if len(params.Messages) != 4 {
		t.Fatalf("expected system + 3 messages, got %d", len(params.Messages))
	}
	if params.Messages[0].OfSystem == nil || params.Messages[2].OfAssistant == nil || params.Messages[3].OfUser == nil {
		t.Fatalf("unexpected message roles: %+v", params.Messages)
	}
	if !params.MaxTokens.Valid() || params.MaxTokens.Value != 128 {
		t.Fatalf("unexpected max tokens: %+v", params.MaxTokens)
	}
}

func TestMaybeAppendUserContent(t *testing.T) {
	m := &openaiModel{name: "test"}
	req := &model.LLMRequest{Contents: []*genai.Content{genai.NewContentFromText("hi", genai.RoleModel)}}
	m.maybeAppendUserContent(req)
	if len(req.Contents) != 2 || req.Contents[1].Role != "user" {
		t.Fatalf("expected trailing user content, got %+v", req.Contents)
	}
}

func TestStatusCode(t *testing.T) {
	if got := StatusCode(fmt.Errorf("wrap: %w", genai.APIError{Code: 503})); got != 503 {
		t.Fatalf("expected 503, got %d", got)
	}
	if got := StatusCode(errors.New("plain")); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	if got := StatusCode(nil); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}

func TestNewRejectsUnknownProvider(t *testing.T) {
	if _, err := New(context.Background(), "acme", "m", "key"); err == nil {
		t.Fatalf("expected error for unknown provider")
	}
	if _, err := New(context.Background(), ProviderGrok, "grok-4-fast", ""); err == nil {
		t.Fatalf("expected error without api key")
	}
}
