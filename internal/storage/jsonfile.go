package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ErrInvalidRecord is returned when a persisted record fails validation.
var ErrInvalidRecord = errors.New("invalid record")

// NewID returns a 32-character hex identifier.
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// ListFile is a JSON file holding a single array of T.
type ListFile[T any] struct {
	path string
	mu   sync.Mutex
}

// Open returns the list file at path, creating it as an empty list when missing.
func Open[T any](path string) (*ListFile[T], error) {
	f := &ListFile[T]{path: path}

	if _, err := os.Stat(path); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("stat %s: %w", path, err)
		}
		if err := f.write([]T{}); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// Path returns the backing file path.
func (f *ListFile[T]) Path() string {
	return f.path
}

// Load reads and validates every record.
func (f *ListFile[T]) Load() ([]T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.read()
}

// Update loads the list, applies fn and rewrites the file when fn reports a change.
func (f *ListFile[T]) Update(fn func(items []T) ([]T, bool, error)) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	items, err := f.read()
	if err != nil {
		return err
	}

	updated, changed, err := fn(items)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	return f.write(updated)
}

// Replace validates items and rewrites the whole file.
func (f *ListFile[T]) Replace(items []T) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.write(items)
}

func (f *ListFile[T]) read() ([]T, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []T{}, nil
		}
		return nil, fmt.Errorf("read %s: %w", f.path, err)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return []T{}, nil
	}

	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode %s: %w", f.path, err)
	}
	if items == nil {
		items = []T{}
	}

	for i := range items {
		if err := validate.Struct(items[i]); err != nil {
			return nil, fmt.Errorf("%w: %s record %d: %v", ErrInvalidRecord, f.path, i, err)
		}
	}
	return items, nil
}

func (f *ListFile[T]) write(items []T) error {
	if items == nil {
		items = []T{}
	}
	for i := range items {
		if err := validate.Struct(items[i]); err != nil {
			return fmt.Errorf("%w: record %d: %v", ErrInvalidRecord, i, err)
		}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(items); err != nil {
		return fmt.Errorf("encode %s: %w", f.path, err)
	}

	if err := WriteFileAtomic(f.path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", f.path, err)
	}
	return nil
}
