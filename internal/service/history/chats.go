// Package history keeps saved chats and memories in flat JSON files.
package history

import (
	"context"
	"errors"
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"github.com/zhouzirui/z-tavern/local/internal/model/chat"
	"github.com/zhouzirui/z-tavern/local/internal/model/stamp"
	"github.com/zhouzirui/z-tavern/local/internal/storage"
)

const (
	ChatsFile    = "saved_chats.json"
	MemoriesFile = "saved_memories.json"
)

var (
	ErrChatNotFound   = errors.New("chat not found")
	ErrEmptyChat      = errors.New("chat has no messages")
	ErrPersonaMissing = errors.New("persona id is required")
)

// ChatStore owns the durable copies of saved sessions.
type ChatStore struct {
	file *storage.ListFile[chat.SavedChat]
	log  *zap.Logger
}

// NewChatStore opens saved_chats.json inside dataDir.
func NewChatStore(dataDir string, logger *zap.Logger) (*ChatStore, error) {
	file, err := storage.Open[chat.SavedChat](filepath.Join(dataDir, ChatsFile))
	if err != nil {
		return nil, err
	}
	return &ChatStore{file: file, log: logger.With(zap.String("component", "chats"))}, nil
}

// Path returns the backing file.
func (s *ChatStore) Path() string {
	return s.file.Path()
}

// ListChats returns every saved chat, newest first.
func (s *ChatStore) ListChats(_ context.Context) ([]chat.SavedChat, error) {
	chats, err := s.file.Load()
	if err != nil {
		return nil, err
	}
	sort.SliceStable(chats, func(i, j int) bool {
		return chats[i].Timestamp.After(chats[j].Timestamp.Time)
	})
	return chats, nil
}

// FindChat looks up a saved chat by id.
func (s *ChatStore) FindChat(_ context.Context, chatID string) (chat.SavedChat, error) {
	chats, err := s.file.Load()
	if err != nil {
		return chat.SavedChat{}, err
	}
	for _, c := range chats {
		if c.ChatID == chatID {
			return c, nil
		}
	}
	return chat.SavedChat{}, ErrChatNotFound
}

// SaveChat appends a new saved chat and returns it.
func (s *ChatStore) SaveChat(_ context.Context, personaID, title string, messages []chat.Message) (chat.SavedChat, error) {
	if personaID == "" {
		return chat.SavedChat{}, ErrPersonaMissing
	}
	if len(messages) == 0 {
		return chat.SavedChat{}, ErrEmptyChat
	}

	record := chat.SavedChat{
		ChatID:    storage.NewID(),
		PersonaID: personaID,
		Timestamp: stamp.Now(),
		Title:     title,
		Messages:  chat.CloneMessages(messages),
	}

	err := s.file.Update(func(chats []chat.SavedChat) ([]chat.SavedChat, bool, error) {
		return append(chats, record), true, nil
	})
	if err != nil {
		return chat.SavedChat{}, err
	}

	s.log.Info("chat saved", zap.String("chat_id", record.ChatID), zap.Int("messages", len(messages)))
	return record, nil
}

// UpdateChat replaces the messages of an existing chat. Unknown ids are ignored.
func (s *ChatStore) UpdateChat(_ context.Context, chatID string, messages []chat.Message) error {
	if chatID == "" {
		return nil
	}

	found := false
	err := s.file.Update(func(chats []chat.SavedChat) ([]chat.SavedChat, bool, error) {
		for i := range chats {
			if chats[i].ChatID == chatID {
				chats[i].Messages = chat.CloneMessages(messages)
				found = true
				return chats, true, nil
			}
		}
		return chats, false, nil
	})
	if err != nil {
		return err
	}

	if found {
		s.log.Debug("chat updated", zap.String("chat_id", chatID), zap.Int("messages", len(messages)))
	}
	return nil
}

// DeleteChat removes a saved chat. Deleting an unknown id is not an error.
func (s *ChatStore) DeleteChat(_ context.Context, chatID string) error {
	err := s.file.Update(func(chats []chat.SavedChat) ([]chat.SavedChat, bool, error) {
		kept := chats[:0]
		for _, c := range chats {
			if c.ChatID != chatID {
				kept = append(kept, c)
			}
		}
		return kept, len(kept) != len(chats), nil
	})
	if err != nil {
		return err
	}

	s.log.Info("chat deleted", zap.String("chat_id", chatID))
	return nil
}

// Normalize rewrites the file in canonical form and reports how many chats and messages it holds.
func (s *ChatStore) Normalize(_ context.Context) (chats int, messages int, err error) {
	items, err := s.file.Load()
	if err != nil {
		return 0, 0, err
	}
	for _, c := range items {
		messages += len(c.Messages)
	}
	if err := s.file.Replace(items); err != nil {
		return 0, 0, err
	}
	return len(items), messages, nil
}
