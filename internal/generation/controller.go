// Package generation drives a streaming text-generation call and forwards tokens to the caller.
package generation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"google.golang.org/adk/model"
	"google.golang.org/genai"

	"github.com/Patelhetu-177/SkillSphere/internal/metrics"
	"github.com/Patelhetu-177/SkillSphere/internal/utils"
)

// DefaultTimeout bounds one generation.
const DefaultTimeout = 30 * time.Second

// State of a generation.
type State int

const (
	StateIdle State = iota
	StateStreaming
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

var (
	// ErrEmptyResponse is reported when the backend finished without producing text.
	ErrEmptyResponse = errors.New("empty generation response")
	// ErrClientGone is reported when forwarding a token to the caller failed.
	ErrClientGone = errors.New("client stopped reading")
)

// Result is the outcome of Run. Text is set only when State is StateCompleted.
type Result struct {
	State   State
	Text    string
	Err     error
	Written int
}

// Controller runs generations against one backend.
type Controller struct {
	llm     model.LLM
	timeout time.Duration
	now     func() time.Time
}

// NewController creates a Controller. A non-positive timeout selects DefaultTimeout.
func NewController(llm model.LLM, timeout time.Duration) *Controller {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Controller{llm: llm, timeout: timeout, now: time.Now}
}

// ModelName returns the backend's model name.
func (c *Controller) ModelName() string {
	return c.llm.Name()
}

// Run streams a generation for contents into w. Each partial token is written and flushed
// as soon as it arrives. A write failure, the caller's cancellation or the timeout cancels
// the upstream call and ends in StateFailed; the accumulated text is then discarded.
func (c *Controller) Run(ctx context.Context, contents []*genai.Content, cfg *genai.GenerateContentConfig, w io.Writer) Result {
	started := c.now()
	res := c.run(ctx, contents, cfg, w)
	metrics.RecordStream(c.llm.Name(), res.State.String(), c.now().Sub(started).Seconds())
	if res.State == StateFailed {
		slog.Error("generation failed", "model", c.llm.Name(), "written", res.Written, "error", res.Err.Error())
	} else {
		slog.Debug("generation completed", "model", c.llm.Name(), "chars", len(res.Text))
	}
	return res
}

func (c *Controller) run(ctx context.Context, contents []*genai.Content, cfg *genai.GenerateContentConfig, w io.Writer) Result {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	res := Result{State: StateStreaming}
	fail := func(err error) Result {
		res.State = StateFailed
		res.Err = err
		return res
	}

	req := &model.LLMRequest{
		Model:    c.llm.Name(),
		Contents: contents,
		Config:   cloneConfig(cfg),
	}

	var acc strings.Builder
	sawPartial := false
	for resp, err := range c.llm.GenerateContent(ctx, req, true) {
		if err != nil {
			return fail(c.contextErr(ctx, err))
		}
		if resp == nil {
			continue
		}
		if resp.ErrorCode != "" {
			return fail(fmt.Errorf("generation error %s: %s", resp.ErrorCode, resp.ErrorMessage))
		}

		text := utils.ExtractContentText(resp.Content)
		if !resp.Partial && sawPartial {
			// Aggregate of the partials already forwarded.
			continue
		}
		if resp.Partial {
			sawPartial = true
		}
		if text == "" {
			continue
		}

		n, err := io.WriteString(w, text)
		res.Written += n
		if err != nil {
			cancel()
			return fail(fmt.Errorf("%w: %v", ErrClientGone, err))
		}
		flush(w)
		acc.WriteString(text)
	}

	if err := ctx.Err(); err != nil {
		return fail(c.contextErr(ctx, err))
	}
	if strings.TrimSpace(acc.String()) == "" {
		return fail(ErrEmptyResponse)
	}
	res.State = StateCompleted
	res.Text = acc.String()
	return res
}

// Complete runs a non-streaming generation and returns the full text.
func (c *Controller) Complete(ctx context.Context, contents []*genai.Content, cfg *genai.GenerateContentConfig) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := &model.LLMRequest{
		Model:    c.llm.Name(),
		Contents: contents,
		Config:   cloneConfig(cfg),
	}
	var acc strings.Builder
	for resp, err := range c.llm.GenerateContent(ctx, req, false) {
		if err != nil {
			return "", c.contextErr(ctx, err)
		}
		if resp == nil {
			continue
		}
		if resp.ErrorCode != "" {
			return "", fmt.Errorf("generation error %s: %s", resp.ErrorCode, resp.ErrorMessage)
		}
		acc.WriteString(utils.ExtractContentText(resp.Content))
	}
	text := strings.TrimSpace(acc.String())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func (c *Controller) contextErr(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("generation timed out after %s: %w", c.timeout, errors.Join(context.DeadlineExceeded, err))
	}
	return err
}

func flush(w io.Writer) {
	switch f := w.(type) {
	case http.Flusher:
		f.Flush()
	case interface{ Flush() error }:
		if err := f.Flush(); err != nil {
			slog.Debug("failed to flush stream", "error", err.Error())
		}
	}
}

// cloneConfig copies cfg so backends that mutate the request do not leak changes into the
// shared default.
func cloneConfig(cfg *genai.GenerateContentConfig) *genai.GenerateContentConfig {
	if cfg == nil {
		return &genai.GenerateContentConfig{}
	}
	cp := *cfg
	cp.HTTPOptions = nil
	return &cp
}
