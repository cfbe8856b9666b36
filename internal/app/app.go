// Package app assembles the stores, the model gateway and the chat session
// shared by the HTTP server and the terminal client.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/zhouzirui/z-tavern/local/internal/config"
	"github.com/zhouzirui/z-tavern/local/internal/model/persona"
	"github.com/zhouzirui/z-tavern/local/internal/service/ai"
	"github.com/zhouzirui/z-tavern/local/internal/service/chat"
	"github.com/zhouzirui/z-tavern/local/internal/service/history"
	personaService "github.com/zhouzirui/z-tavern/local/internal/service/persona"
	"github.com/zhouzirui/z-tavern/local/internal/service/profile"
)

// App holds the wired services.
type App struct {
	Personas *personaService.Service
	Chats    *history.ChatStore
	Memories *history.MemoryStore
	Profile  *profile.Service
	AI       *ai.Service
	Session  *chat.Session
}

// New opens the JSON stores under cfg.Storage, connects the model described by
// cfg.AI and creates a session whose completions run on dispatch.
func New(ctx context.Context, cfg *config.Config, dispatch chat.Dispatcher, logger *zap.Logger) (*App, error) {
	personas, err := personaService.NewService(cfg.Storage.DataDir, cfg.Storage.ImagesDir, persona.Seed(), logger)
	if err != nil {
		return nil, fmt.Errorf("open persona store: %w", err)
	}
	chats, err := history.NewChatStore(cfg.Storage.DataDir, logger)
	if err != nil {
		return nil, fmt.Errorf("open chat history: %w", err)
	}
	memories, err := history.NewMemoryStore(cfg.Storage.DataDir, logger)
	if err != nil {
		return nil, fmt.Errorf("open memories: %w", err)
	}
	info, err := profile.NewService(cfg.Storage.DataDir, logger)
	if err != nil {
		return nil, fmt.Errorf("open personal info: %w", err)
	}

	chatModel, err := cfg.AI.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("create chat model: %w", err)
	}
	gateway, err := ai.NewService(ctx, chatModel, info, cfg.AI.HistoryLimit, logger)
	if err != nil {
		return nil, fmt.Errorf("init ai service: %w", err)
	}

	logger.Info("services ready",
		zap.String("data_dir", cfg.Storage.DataDir),
		zap.String("model", cfg.AI.Model),
		zap.String("base_url", cfg.AI.BaseURL),
	)

	return &App{
		Personas: personas,
		Chats:    chats,
		Memories: memories,
		Profile:  info,
		AI:       gateway,
		Session:  chat.NewSession(gateway, chats, memories, dispatch, logger),
	}, nil
}
