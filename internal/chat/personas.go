package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/Patelhetu-177/SkillSphere/internal/auth"
	"github.com/Patelhetu-177/SkillSphere/internal/types"
)

// PersonaInput is the editable part of a persona.
type PersonaInput struct {
	Src         string `json:"src"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Instruction string `json:"instruction"`
	Seed        string `json:"seed"`
}

func (in PersonaInput) fields() map[string]any {
	return map[string]any{
		"src":         in.Src,
		"name":        strings.TrimSpace(in.Name),
		"description": strings.TrimSpace(in.Description),
		"instruction": strings.TrimSpace(in.Instruction),
		"seed":        in.Seed,
	}
}

func minLen(n int) *int { return &n }

var personaSchema = &jsonschema.Schema{
	Type: "object",
	Properties: map[string]*jsonschema.Schema{
		"src":         {Type: "string", MinLength: minLen(1)},
		"name":        {Type: "string", MinLength: minLen(1)},
		"description": {Type: "string", MinLength: minLen(1)},
		"instruction": {Type: "string", MinLength: minLen(200)},
		"seed":        {Type: "string", MinLength: minLen(200)},
	},
	Required: []string{"src", "name", "description", "instruction", "seed"},
}

// PersonaService manages interview mates.
type PersonaService struct {
	repo     PersonaRepo
	resolved *jsonschema.Resolved
}

// NewPersonaService creates a PersonaService.
func NewPersonaService(repo PersonaRepo) (*PersonaService, error) {
	resolved, err := personaSchema.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve persona schema: %w", err)
	}
	return &PersonaService{repo: repo, resolved: resolved}, nil
}

func (s *PersonaService) validate(in PersonaInput) error {
	if err := s.resolved.Validate(in.fields()); err != nil {
		return validation("persona: %v", err)
	}
	return nil
}

// Create stores a new persona owned by the caller.
func (s *PersonaService) Create(ctx context.Context, id auth.Identity, in PersonaInput) (*types.Persona, error) {
	if id.UserID == "" || id.UserName == "" {
		return nil, ErrUnauthorized
	}
	if err := s.validate(in); err != nil {
		return nil, err
	}
	p := &types.Persona{
		UserID:      id.UserID,
		UserName:    id.UserName,
		Src:         in.Src,
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		Instruction: strings.TrimSpace(in.Instruction),
		Seed:        in.Seed,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to create persona: %w", err)
	}
	return p, nil
}

// Update replaces the editable fields of a persona the caller owns.
func (s *PersonaService) Update(ctx context.Context, id auth.Identity, personaID string, in PersonaInput) (*types.Persona, error) {
	if id.UserID == "" || id.UserName == "" {
		return nil, ErrUnauthorized
	}
	if strings.TrimSpace(personaID) == "" {
		return nil, validation("persona id is required")
	}
	if err := s.validate(in); err != nil {
		return nil, err
	}
	p := &types.Persona{
		ID:          personaID,
		UserID:      id.UserID,
		UserName:    id.UserName,
		Src:         in.Src,
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		Instruction: strings.TrimSpace(in.Instruction),
		Seed:        in.Seed,
	}
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, notFoundOr(err, "persona", personaID)
	}
	return p, nil
}

// Get returns a persona by id.
func (s *PersonaService) Get(ctx context.Context, personaID string) (*types.Persona, error) {
	p, err := s.repo.Get(ctx, personaID)
	if err != nil {
		return nil, notFoundOr(err, "persona", personaID)
	}
	return p, nil
}

// List returns personas whose name contains name.
func (s *PersonaService) List(ctx context.Context, name string, limit int) ([]types.Persona, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	personas, err := s.repo.List(ctx, strings.TrimSpace(name), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list personas: %w", err)
	}
	return personas, nil
}

// Delete removes a persona the caller owns.
func (s *PersonaService) Delete(ctx context.Context, id auth.Identity, personaID string) error {
	if id.UserID == "" {
		return ErrUnauthorized
	}
	if err := s.repo.Delete(ctx, personaID, id.UserID); err != nil {
		return notFoundOr(err, "persona", personaID)
	}
	return nil
}

func notFoundOr(err error, kind, id string) error {
	if errors.Is(err, types.ErrNotFound) {
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	return fmt.Errorf("%s %s: %w", kind, id, err)
}
