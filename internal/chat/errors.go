package chat

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/Patelhetu-177/SkillSphere/internal/models"
)

var (
	ErrValidation   = errors.New("invalid request")
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
	ErrRateLimited  = errors.New("rate limit exceeded")
)

const (
	msgOverwhelmed = "I'm overwhelmed right now. Try again in a minute."
	msgSlowDown    = "Too many requests. Slow down a bit."
	msgBadRequest  = "There was a problem with your request."
	msgUnexpected  = "An unexpected error occurred. Please try again later."
)

// UpstreamError is a failure of a collaborator the request depends on: the transcript store,
// the rate limiter or the generation backend. Status is the HTTP status the collaborator
// reported, 0 when unknown.
type UpstreamError struct {
	Op     string
	Status int
	Err    error
}

func (e *UpstreamError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s: upstream status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

func upstream(op string, status int, err error) error {
	return &UpstreamError{Op: op, Status: status, Err: err}
}

// generationError classifies a failed generation by the status the backend reported.
func generationError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return upstream("generate", http.StatusServiceUnavailable, err)
	}
	return upstream("generate", models.StatusCode(err), err)
}

func validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// StatusFor maps err to the HTTP status and user-facing message returned to clients.
func StatusFor(err error) (int, string) {
	switch {
	case err == nil:
		return http.StatusOK, ""
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest, msgBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, "Unauthorized"
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, "Not found"
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, msgSlowDown
	}

	var up *UpstreamError
	if errors.As(err, &up) {
		switch {
		case up.Status == http.StatusServiceUnavailable:
			return http.StatusServiceUnavailable, msgOverwhelmed
		case up.Status == http.StatusTooManyRequests:
			return http.StatusTooManyRequests, msgSlowDown
		case up.Status >= 400 && up.Status < 500:
			return http.StatusBadRequest, msgBadRequest
		}
	}
	return http.StatusInternalServerError, msgUnexpected
}
