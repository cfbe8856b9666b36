package history

import (
	"context"
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"github.com/zhouzirui/z-tavern/local/internal/model/memory"
	"github.com/zhouzirui/z-tavern/local/internal/model/stamp"
	"github.com/zhouzirui/z-tavern/local/internal/storage"
)

// MemoryStore keeps conversation summaries.
type MemoryStore struct {
	file *storage.ListFile[memory.Memory]
	log  *zap.Logger
}

// NewMemoryStore opens saved_memories.json inside dataDir.
func NewMemoryStore(dataDir string, logger *zap.Logger) (*MemoryStore, error) {
	file, err := storage.Open[memory.Memory](filepath.Join(dataDir, MemoriesFile))
	if err != nil {
		return nil, err
	}
	return &MemoryStore{file: file, log: logger.With(zap.String("component", "memories"))}, nil
}

// ListMemories returns memories newest first, restricted to personaID when it is not empty.
func (s *MemoryStore) ListMemories(_ context.Context, personaID string) ([]memory.Memory, error) {
	items, err := s.file.Load()
	if err != nil {
		return nil, err
	}

	filtered := items[:0]
	for _, m := range items {
		if personaID == "" || m.PersonaID == personaID {
			filtered = append(filtered, m)
		}
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Timestamp.After(filtered[j].Timestamp.Time)
	})
	return filtered, nil
}

// SaveMemory appends a memory. chatID may be nil for conversations that were never saved.
func (s *MemoryStore) SaveMemory(_ context.Context, personaID string, chatID *string, summary string) (memory.Memory, error) {
	if personaID == "" {
		return memory.Memory{}, ErrPersonaMissing
	}

	record := memory.Memory{
		MemoryID:  storage.NewID(),
		PersonaID: personaID,
		Summary:   summary,
		Timestamp: stamp.Now(),
	}
	if chatID != nil && *chatID != "" {
		id := *chatID
		record.ChatID = &id
	}

	err := s.file.Update(func(items []memory.Memory) ([]memory.Memory, bool, error) {
		return append(items, record), true, nil
	})
	if err != nil {
		return memory.Memory{}, err
	}

	s.log.Info("memory saved", zap.String("memory_id", record.MemoryID), zap.String("persona_id", personaID))
	return record, nil
}

// DeleteMemory removes a memory by id.
func (s *MemoryStore) DeleteMemory(_ context.Context, memoryID string) error {
	err := s.file.Update(func(items []memory.Memory) ([]memory.Memory, bool, error) {
		kept := items[:0]
		for _, m := range items {
			if m.MemoryID != memoryID {
				kept = append(kept, m)
			}
		}
		return kept, len(kept) != len(items), nil
	})
	if err != nil {
		return err
	}

	s.log.Info("memory deleted", zap.String("memory_id", memoryID))
	return nil
}
