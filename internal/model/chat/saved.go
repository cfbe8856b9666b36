package chat

import "github.com/zhouzirui/z-tavern/local/internal/model/stamp"

// SavedChat is the durable snapshot of a session, rewritten on every later turn.
type SavedChat struct {
	ChatID    string     `json:"chat_id" validate:"required"`
	PersonaID string     `json:"persona_id" validate:"required"`
	Timestamp stamp.Time `json:"timestamp"`
	Title     string     `json:"title"`
	Messages  []Message  `json:"messages" validate:"dive"`
}
