package chat

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"
)

// Role identifies who authored a message.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// NormalizeRole maps legacy reply tags ("bot", "assistant") onto RoleModel.
func NormalizeRole(raw string) Role {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "user":
		return RoleUser
	case "model", "bot", "assistant":
		return RoleModel
	default:
		return Role(raw)
	}
}

// Message is a single turn in a conversation. Order within a conversation is the slice order.
type Message struct {
	ID      string `json:"id" validate:"required"`
	Role    Role   `json:"role" validate:"required,oneof=user model"`
	Content string `json:"content"`
}

// NewMessage creates a message with a fresh identifier.
func NewMessage(role Role, content string) Message {
	return Message{ID: uuid.NewString(), Role: role, Content: content}
}

// IsUser reports whether the message was written by the user.
func (m Message) IsUser() bool { return m.Role == RoleUser }

// IsModel reports whether the message is a model reply.
func (m Message) IsModel() bool { return m.Role == RoleModel }

// UnmarshalJSON normalizes legacy role tags on the way in.
func (m *Message) UnmarshalJSON(data []byte) error {
	type plain Message
	var raw struct {
		plain
		Role string `json:"role"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*m = Message(raw.plain)
	m.Role = NormalizeRole(raw.Role)
	return nil
}

// CloneMessages returns an independent copy of msgs.
func CloneMessages(msgs []Message) []Message {
	if msgs == nil {
		return nil
	}
	copied := make([]Message, len(msgs))
	copy(copied, msgs)
	return copied
}
