package chat

import (
	"github.com/zhouzirui/z-tavern/local/internal/model/chat"
	"github.com/zhouzirui/z-tavern/local/internal/model/persona"
)

// EventKind names a session change.
type EventKind string

const (
	EventMessage      EventKind = "message"
	EventReplyFailed  EventKind = "reply_failed"
	EventEdited       EventKind = "edited"
	EventDeleted      EventKind = "deleted"
	EventSaved        EventKind = "saved"
	EventSaveFailed   EventKind = "save_failed"
	EventMemorySaved  EventKind = "memory_saved"
	EventMemoryFailed EventKind = "memory_failed"
	EventReset        EventKind = "reset"
	EventLoaded       EventKind = "loaded"
)

// Event is delivered to listeners on the dispatcher queue.
type Event struct {
	Kind     EventKind        `json:"kind"`
	Persona  *persona.Persona `json:"persona,omitempty"`
	ChatID   string           `json:"chatId,omitempty"`
	Title    string           `json:"title,omitempty"`
	Message  *chat.Message    `json:"message,omitempty"`
	Messages []chat.Message   `json:"messages,omitempty"`
	Summary  string           `json:"summary,omitempty"`
	Error    string           `json:"error,omitempty"`
}

// Listener receives session events.
type Listener func(Event)
