// Package memory defines the summary records kept per persona.
package memory

import "github.com/zhouzirui/z-tavern/local/internal/model/stamp"

// Memory is an AI-written one-sentence summary of a conversation.
type Memory struct {
	MemoryID  string     `json:"memory_id" validate:"required"`
	PersonaID string     `json:"persona_id" validate:"required"`
	ChatID    *string    `json:"chat_id"`
	Summary   string     `json:"summary"`
	Timestamp stamp.Time `json:"timestamp"`
}

// LinkedChat returns the chat the memory was taken from, if any.
func (m Memory) LinkedChat() (string, bool) {
	if m.ChatID == nil || *m.ChatID == "" {
		return "", false
	}
	return *m.ChatID, true
}
