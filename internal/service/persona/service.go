// Package persona manages persona records and their avatar images.
package persona

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	model "github.com/zhouzirui/z-tavern/local/internal/model/persona"
	"github.com/zhouzirui/z-tavern/local/internal/storage"
)

// PersonasFile is the file name inside the data folder.
const PersonasFile = "personas.json"

var (
	ErrPersonaNotFound  = errors.New("persona not found")
	ErrNameRequired     = errors.New("persona name is required")
	ErrPromptRequired   = errors.New("persona prompt is required")
	ErrUnsupportedImage = errors.New("avatar must be a png, jpg or jpeg image")
)

var allowedImageExt = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
}

// Avatar is an uploaded image to copy into the images folder.
type Avatar struct {
	Filename string
	Data     io.Reader
}

// Service is the file-backed persona store.
type Service struct {
	file      *storage.ListFile[model.Persona]
	imagesDir string
	log       *zap.Logger
}

var _ model.Store = (*Service)(nil)

// NewService opens personas.json in dataDir. When the file does not exist yet it is seeded with seed.
func NewService(dataDir, imagesDir string, seed []model.Persona, logger *zap.Logger) (*Service, error) {
	path := filepath.Join(dataDir, PersonasFile)
	_, statErr := os.Stat(path)
	fresh := errors.Is(statErr, os.ErrNotExist)

	file, err := storage.Open[model.Persona](path)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(imagesDir, 0o755); err != nil {
		return nil, fmt.Errorf("create images dir: %w", err)
	}

	svc := &Service{
		file:      file,
		imagesDir: imagesDir,
		log:       logger.With(zap.String("component", "personas")),
	}

	if fresh && len(seed) > 0 {
		if err := file.Replace(seed); err != nil {
			return nil, err
		}
		svc.log.Info("seeded personas", zap.Int("count", len(seed)))
	}
	return svc, nil
}

// ImagesDir returns the folder avatars are stored in.
func (s *Service) ImagesDir() string {
	return s.imagesDir
}

// List returns every persona in file order.
func (s *Service) List() ([]model.Persona, error) {
	return s.file.Load()
}

// FindByID looks up a persona by identifier.
func (s *Service) FindByID(id string) (model.Persona, bool, error) {
	items, err := s.file.Load()
	if err != nil {
		return model.Persona{}, false, err
	}
	for _, item := range items {
		if item.ID == id {
			return item, true, nil
		}
	}
	return model.Persona{}, false, nil
}

// Create stores a new persona. avatar may be nil.
func (s *Service) Create(_ context.Context, name, prompt string, avatar *Avatar) (model.Persona, error) {
	name, prompt = strings.TrimSpace(name), strings.TrimSpace(prompt)
	if err := validateFields(name, prompt); err != nil {
		return model.Persona{}, err
	}

	record := model.Persona{ID: storage.NewID(), Name: name, Prompt: prompt}
	if avatar != nil {
		imagePath, err := s.storeImage(avatar)
		if err != nil {
			return model.Persona{}, err
		}
		record.ImagePath = imagePath
	}

	err := s.file.Update(func(items []model.Persona) ([]model.Persona, bool, error) {
		return append(items, record), true, nil
	})
	if err != nil {
		s.removeImage(record.ImagePath)
		return model.Persona{}, err
	}

	s.log.Info("persona created", zap.String("persona_id", record.ID), zap.String("name", name))
	return record, nil
}

// Update changes name and prompt and, when avatar is not nil, replaces the image and removes the old file.
func (s *Service) Update(_ context.Context, id, name, prompt string, avatar *Avatar) (model.Persona, error) {
	name, prompt = strings.TrimSpace(name), strings.TrimSpace(prompt)
	if err := validateFields(name, prompt); err != nil {
		return model.Persona{}, err
	}

	var newImage string
	if avatar != nil {
		path, err := s.storeImage(avatar)
		if err != nil {
			return model.Persona{}, err
		}
		newImage = path
	}

	var (
		updated  model.Persona
		oldImage string
	)
	err := s.file.Update(func(items []model.Persona) ([]model.Persona, bool, error) {
		for i := range items {
			if items[i].ID != id {
				continue
			}
			items[i].Name = name
			items[i].Prompt = prompt
			if newImage != "" {
				oldImage = items[i].ImagePath
				items[i].ImagePath = newImage
			}
			updated = items[i]
			return items, true, nil
		}
		return items, false, ErrPersonaNotFound
	})
	if err != nil {
		s.removeImage(newImage)
		return model.Persona{}, err
	}

	if oldImage != "" && oldImage != newImage {
		s.removeImage(oldImage)
	}
	s.log.Info("persona updated", zap.String("persona_id", id))
	return updated, nil
}

// Delete removes a persona and its avatar file.
func (s *Service) Delete(_ context.Context, id string) error {
	var removed *model.Persona
	err := s.file.Update(func(items []model.Persona) ([]model.Persona, bool, error) {
		kept := items[:0]
		for i := range items {
			if items[i].ID == id {
				p := items[i]
				removed = &p
				continue
			}
			kept = append(kept, items[i])
		}
		if removed == nil {
			return items, false, ErrPersonaNotFound
		}
		return kept, true, nil
	})
	if err != nil {
		return err
	}

	s.removeImage(removed.ImagePath)
	s.log.Info("persona deleted", zap.String("persona_id", id))
	return nil
}

// ResolveImage maps a stored image path to a file on disk.
func (s *Service) ResolveImage(imagePath string) string {
	if imagePath == "" {
		return ""
	}
	if filepath.IsAbs(imagePath) {
		return imagePath
	}
	return filepath.Join(s.imagesDir, filepath.Base(imagePath))
}

func (s *Service) storeImage(avatar *Avatar) (string, error) {
	ext := strings.ToLower(filepath.Ext(avatar.Filename))
	if !allowedImageExt[ext] {
		return "", ErrUnsupportedImage
	}

	name := storage.NewID() + ext
	dst, err := os.Create(filepath.Join(s.imagesDir, name))
	if err != nil {
		return "", fmt.Errorf("create avatar file: %w", err)
	}

	if _, err := io.Copy(dst, avatar.Data); err != nil {
		dst.Close()
		os.Remove(dst.Name())
		return "", fmt.Errorf("copy avatar: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(dst.Name())
		return "", fmt.Errorf("close avatar file: %w", err)
	}
	return name, nil
}

func (s *Service) removeImage(imagePath string) {
	path := s.ResolveImage(imagePath)
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.log.Warn("failed to delete avatar", zap.String("path", path), zap.Error(err))
	}
}

func validateFields(name, prompt string) error {
	if name == "" {
		return ErrNameRequired
	}
	if prompt == "" {
		return ErrPromptRequired
	}
	return nil
}
