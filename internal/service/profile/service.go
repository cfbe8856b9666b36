// Package profile stores personal-info snippets about the user.
package profile

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	model "github.com/zhouzirui/z-tavern/local/internal/model/profile"
	"github.com/zhouzirui/z-tavern/local/internal/model/stamp"
	"github.com/zhouzirui/z-tavern/local/internal/storage"
)

// InfoFile is the file name inside the data folder.
const InfoFile = "person_info.json"

var (
	ErrEmptyContent = errors.New("info content is required")
	ErrInfoNotFound = errors.New("info not found")
)

// Service keeps the snippets in person_info.json.
type Service struct {
	file *storage.ListFile[model.Info]
	log  *zap.Logger
}

// NewService opens person_info.json inside dataDir.
func NewService(dataDir string, logger *zap.Logger) (*Service, error) {
	file, err := storage.Open[model.Info](filepath.Join(dataDir, InfoFile))
	if err != nil {
		return nil, err
	}
	return &Service{file: file, log: logger.With(zap.String("component", "profile"))}, nil
}

// List returns every snippet in insertion order.
func (s *Service) List(_ context.Context) ([]model.Info, error) {
	return s.file.Load()
}

// Contents returns the snippet texts, used when building system prompts.
func (s *Service) Contents(ctx context.Context) ([]string, error) {
	items, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	contents := make([]string, 0, len(items))
	for _, item := range items {
		contents = append(contents, item.Content)
	}
	return contents, nil
}

// Add appends a snippet.
func (s *Service) Add(_ context.Context, content string) (model.Info, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return model.Info{}, ErrEmptyContent
	}

	record := model.Info{InfoID: storage.NewID(), Content: content, Timestamp: stamp.Now()}
	err := s.file.Update(func(items []model.Info) ([]model.Info, bool, error) {
		return append(items, record), true, nil
	})
	if err != nil {
		return model.Info{}, err
	}

	s.log.Info("info added", zap.String("info_id", record.InfoID))
	return record, nil
}

// Update replaces the content of a snippet and refreshes its timestamp.
func (s *Service) Update(_ context.Context, id, content string) (model.Info, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return model.Info{}, ErrEmptyContent
	}

	var updated model.Info
	err := s.file.Update(func(items []model.Info) ([]model.Info, bool, error) {
		for i := range items {
			if items[i].InfoID == id {
				items[i].Content = content
				items[i].Timestamp = stamp.Now()
				updated = items[i]
				return items, true, nil
			}
		}
		return items, false, ErrInfoNotFound
	})
	if err != nil {
		return model.Info{}, err
	}

	s.log.Info("info updated", zap.String("info_id", id))
	return updated, nil
}

// Delete removes a snippet.
func (s *Service) Delete(_ context.Context, id string) error {
	err := s.file.Update(func(items []model.Info) ([]model.Info, bool, error) {
		kept := items[:0]
		for _, item := range items {
			if item.InfoID != id {
				kept = append(kept, item)
			}
		}
		if len(kept) == len(items) {
			return items, false, ErrInfoNotFound
		}
		return kept, true, nil
	})
	if err != nil {
		return err
	}

	s.log.Info("info deleted", zap.String("info_id", id))
	return nil
}
