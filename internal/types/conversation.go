package types

import (
	"net/url"
	"strings"
)

// ConversationKey identifies one memory partition.
type ConversationKey struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
	ModelName      string `json:"model_name"`
}

// Valid reports whether every field is set. Operations on an invalid key are no-ops.
func (k ConversationKey) Valid() bool {
	return strings.TrimSpace(k.ConversationID) != "" &&
		strings.TrimSpace(k.UserID) != "" &&
		strings.TrimSpace(k.ModelName) != ""
}

// StorageKey derives the ordered-store key. Components are escaped so a ':' inside an id
// cannot collide with another partition.
func (k ConversationKey) StorageKey() string {
	return "transcript:" + url.QueryEscape(k.ConversationID) + ":" +
		url.QueryEscape(k.ModelName) + ":" + url.QueryEscape(k.UserID)
}

// Role of a chat turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

const (
	// UserPrefix marks a user line in the transcript.
	UserPrefix = "User: "
	// AssistantPrefix marks an assistant line in the transcript.
	AssistantPrefix = "AI: "
)

// ChatTurn is one parsed transcript line.
type ChatTurn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// SimilarityMatch is a semantic index hit. It only enriches generation context.
type SimilarityMatch struct {
	ID       string         `json:"id"`
	Content  string         `json:"content"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata,omitempty"`
}
