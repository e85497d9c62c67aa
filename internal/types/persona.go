package types

import "time"

// Persona is an interview mate: the identity and behavior the assistant takes on in a conversation.
type Persona struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	UserName    string    `json:"user_name"`
	Src         string    `json:"src"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Instruction string    `json:"instruction"`
	Seed        string    `json:"seed"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ChatMessage is the structured record of one turn.
type ChatMessage struct {
	ID        string    `json:"id"`
	PersonaID string    `json:"persona_id"`
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

const (
	// MessageRoleUser is stored for user prompts.
	MessageRoleUser = "user"
	// MessageRoleSystem is stored for generated replies.
	MessageRoleSystem = "system"
)

// Document is an uploaded document available for question answering.
type Document struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	FileURL     string    `json:"file_url"`
	Chunks      int       `json:"chunks"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
