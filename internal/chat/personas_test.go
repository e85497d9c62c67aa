package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Patelhetu-177/SkillSphere/internal/auth"
)

func validPersonaInput() PersonaInput {
	return PersonaInput{
		Src:         "https://example.com/ada.png",
		Name:        "Ada",
		Description: "Backend interviewer",
		Instruction: strings.Repeat("Ask about concurrency. ", 10),
		Seed:        strings.Repeat("User: hi\n\nAI: Hello there. ", 8),
	}
}

func TestPersonaServiceCreate(t *testing.T) {
	repo := newFakePersonas()
	svc, err := NewPersonaService(repo)
	if err != nil {
		t.Fatalf("NewPersonaService() error = %v", err)
	}
	who := auth.Identity{UserID: "u1", UserName: "Sam"}

	p, err := svc.Create(context.Background(), who, validPersonaInput())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if p.UserID != "u1" || p.UserName != "Sam" || p.ID == "" {
		t.Fatalf("created persona = %+v", p)
	}

	short := validPersonaInput()
	short.Instruction = "too short"
	if _, err := svc.Create(context.Background(), who, short); !errors.Is(err, ErrValidation) {
		t.Fatalf("short instruction error = %v", err)
	}

	missing := validPersonaInput()
	missing.Name = "   "
	if _, err := svc.Create(context.Background(), who, missing); !errors.Is(err, ErrValidation) {
		t.Fatalf("blank name error = %v", err)
	}

	if _, err := svc.Create(context.Background(), auth.Identity{}, validPersonaInput()); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("anonymous error = %v", err)
	}
}

func TestPersonaServiceOwnership(t *testing.T) {
	repo := newFakePersonas()
	svc, err := NewPersonaService(repo)
	if err != nil {
		t.Fatalf("NewPersonaService() error = %v", err)
	}
	owner := auth.Identity{UserID: "u1", UserName: "Sam"}
	other := auth.Identity{UserID: "u2", UserName: "Kim"}

	p, err := svc.Create(context.Background(), owner, validPersonaInput())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	in := validPersonaInput()
	in.Name = "Grace"
	if _, err := svc.Update(context.Background(), other, p.ID, in); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign update error = %v", err)
	}
	if _, err := svc.Update(context.Background(), owner, p.ID, in); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	got, err := svc.Get(context.Background(), p.ID)
	if err != nil || got.Name != "Grace" {
		t.Fatalf("Get() = %+v, %v", got, err)
	}

	if err := svc.Delete(context.Background(), other, p.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign delete error = %v", err)
	}
	if err := svc.Delete(context.Background(), owner, p.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := svc.Get(context.Background(), p.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get() after delete error = %v", err)
	}
}
