package prompt

import (
	"strings"

	"github.com/Patelhetu-177/SkillSphere/internal/transcript"
	"github.com/Patelhetu-177/SkillSphere/internal/types"
)

// ParseTurns splits a newline-joined transcript into turns. Lines that are blank or lack a
// known role prefix are dropped.
func ParseTurns(text string) []types.ChatTurn {
	var turns []types.ChatTurn
	for _, line := range strings.Split(text, "\n") {
		if turn, ok := parseTurn(line); ok {
			turns = append(turns, turn)
		}
	}
	return turns
}

// TurnsFromEntries parses stored entries line by line. A seeded entry may hold several
// prefixed lines; a line without a prefix continues the turn started earlier in the same
// entry, so replies spanning several lines stay whole.
func TurnsFromEntries(entries []transcript.Entry) []types.ChatTurn {
	turns := make([]types.ChatTurn, 0, len(entries))
	for _, e := range entries {
		open := false
		for _, line := range strings.Split(e.Text, "\n") {
			if turn, ok := parseTurn(line); ok {
				turns = append(turns, turn)
				open = true
				continue
			}
			if !open || hasUnknownPrefix(line) {
				continue
			}
			last := &turns[len(turns)-1]
			last.Content = strings.TrimSpace(last.Content + "\n" + line)
		}
	}
	return turns
}

// hasUnknownPrefix reports lines shaped like "Speaker: ..." whose speaker is not recognised.
func hasUnknownPrefix(line string) bool {
	head, _, found := strings.Cut(strings.TrimSpace(line), ": ")
	return found && head != "" && !strings.ContainsAny(head, " \t")
}

// FormatTurn renders a turn the way it is stored in the transcript.
func FormatTurn(role types.Role, content string) string {
	if role == types.RoleAssistant {
		return types.AssistantPrefix + content
	}
	return types.UserPrefix + content
}

func parseTurn(text string) (types.ChatTurn, bool) {
	text = strings.TrimLeft(text, " \t\r\n")
	if text == "" {
		return types.ChatTurn{}, false
	}
	switch {
	case strings.HasPrefix(text, types.UserPrefix):
		return types.ChatTurn{Role: types.RoleUser, Content: strings.TrimSpace(text[len(types.UserPrefix):])}, true
	case strings.HasPrefix(text, types.AssistantPrefix):
		return types.ChatTurn{Role: types.RoleAssistant, Content: strings.TrimSpace(text[len(types.AssistantPrefix):])}, true
	default:
		return types.ChatTurn{}, false
	}
}
