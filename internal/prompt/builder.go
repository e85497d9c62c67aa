// Package prompt assembles the ordered message list handed to generation.
package prompt

import (
	"bytes"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/Patelhetu-177/SkillSphere/internal/types"
)

// Input contains everything needed to assemble one generation context.
type Input struct {
	Persona     *types.Persona
	Language    string
	History     []types.ChatTurn
	Matches     []types.SimilarityMatch
	UserMessage string
}

// Context is the assembled generation context: persona instruction, history, then the live
// user message as the last turn.
type Context struct {
	Persona string
	Turns   []types.ChatTurn
}

// Builder assembles generation contexts.
type Builder struct {
	historyLimit int
}

// NewBuilder creates a Builder keeping at most historyLimit turns of history.
func NewBuilder(historyLimit int) *Builder {
	if historyLimit <= 0 {
		historyLimit = 30
	}
	return &Builder{historyLimit: historyLimit}
}

// Build assembles the context for in. The history may already contain the just-written user
// turn; if its last turn is a user turn equal to the live message it is dropped, so the live
// message appears exactly once, at the end.
func (b *Builder) Build(in Input) (*Context, error) {
	if in.Persona == nil {
		return nil, fmt.Errorf("persona is required")
	}
	message := strings.TrimSpace(in.UserMessage)
	if message == "" {
		return nil, fmt.Errorf("user message is required")
	}

	persona, err := RenderPersona(in.Persona, in.Language, in.Matches)
	if err != nil {
		return nil, err
	}

	history := in.History
	if n := len(history); n > 0 && history[n-1].Role == types.RoleUser && history[n-1].Content == message {
		history = history[:n-1]
	}
	if len(history) > b.historyLimit {
		history = history[len(history)-b.historyLimit:]
	}

	turns := make([]types.ChatTurn, 0, len(history)+1)
	turns = append(turns, history...)
	turns = append(turns, types.ChatTurn{Role: types.RoleUser, Content: message})
	return &Context{Persona: persona, Turns: turns}, nil
}

// RenderPersona interpolates the persona instruction.
func RenderPersona(p *types.Persona, language string, matches []types.SimilarityMatch) (string, error) {
	data := struct {
		Name            string
		Instruction     string
		Language        string
		RelevantContext string
	}{
		Name:            p.Name,
		Instruction:     p.Instruction,
		Language:        LanguageLabel(language),
		RelevantContext: JoinMatches(matches),
	}

	var buf bytes.Buffer
	if err := personaTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to build persona prompt: %w", err)
	}
	return buf.String(), nil
}

// JoinMatches joins match contents, or returns the placeholder when there are none.
func JoinMatches(matches []types.SimilarityMatch) string {
	parts := make([]string, 0, len(matches))
	for _, m := range matches {
		if strings.TrimSpace(m.Content) != "" {
			parts = append(parts, m.Content)
		}
	}
	if len(parts) == 0 {
		return NoContextPlaceholder
	}
	return strings.Join(parts, "\n")
}

// Contents converts the context into model contents. The persona goes first as a user
// turn; assistant turns map to the "model" role.
func (c *Context) Contents() []*genai.Content {
	contents := make([]*genai.Content, 0, len(c.Turns)+1)
	contents = append(contents, genai.NewContentFromText(c.Persona, genai.RoleUser))
	for _, turn := range c.Turns {
		role := genai.Role(genai.RoleUser)
		if turn.Role == types.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(turn.Content, role))
	}
	return contents
}

// DocumentQuestion renders the non-streaming document Q&A prompt.
func DocumentQuestion(title, question string, chunks []string) (string, error) {
	data := struct {
		Title    string
		Question string
		Chunks   []string
	}{Title: title, Question: question, Chunks: chunks}

	var buf bytes.Buffer
	if err := documentTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to build document prompt: %w", err)
	}
	return buf.String(), nil
}
