package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zhouzirui/z-tavern/local/internal/config"
	"github.com/zhouzirui/z-tavern/local/internal/service/chat"
	"github.com/zhouzirui/z-tavern/local/internal/service/history"
)

func TestNewCreatesDataFiles(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		Storage: config.StorageConfig{DataDir: dir, ImagesDir: filepath.Join(dir, "images")},
		AI: config.AIConfig{
			BaseURL:      "http://127.0.0.1:1/v1",
			Model:        "test-model",
			HistoryLimit: 4,
		},
	}
	inline := chat.DispatcherFunc(func(fn func()) { fn() })

	a, err := New(context.Background(), cfg, inline, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, a.Session)

	for _, name := range []string{"personas.json", history.ChatsFile, history.MemoriesFile, "person_info.json"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}

	personas, err := a.Personas.List()
	require.NoError(t, err)
	assert.NotEmpty(t, personas)
}

func TestNewRequiresModel(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		Storage: config.StorageConfig{DataDir: dir, ImagesDir: filepath.Join(dir, "images")},
	}

	_, err := New(context.Background(), cfg, chat.NewLoop(1), zap.NewNop())
	assert.Error(t, err)
}
