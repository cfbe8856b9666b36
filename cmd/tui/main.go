package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/zhouzirui/z-tavern/local/internal/app"
	"github.com/zhouzirui/z-tavern/local/internal/config"
	"github.com/zhouzirui/z-tavern/local/internal/logger"
	"github.com/zhouzirui/z-tavern/local/internal/tui"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("warning: failed to load .env file: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	// 终端界面占用标准输出，日志只写文件
	cfg.Log.Console = false
	zl, err := logger.New(logger.Options{File: cfg.Log.File, Level: cfg.Log.Level, Console: cfg.Log.Console})
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer zl.Sync()
	zap.ReplaceGlobals(zl)

	dispatcher := tui.NewDispatcher()
	services, err := app.New(ctx, cfg, dispatcher, zl)
	if err != nil {
		log.Fatalf("failed to initialize services: %v", err)
	}

	model := tui.New(tui.Deps{
		Session:  services.Session,
		Personas: services.Personas,
		Chats:    services.Chats,
		Logger:   zl,
	})

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	go dispatcher.Forward(ctx, p.Send)

	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		zl.Error("tui exited", zap.Error(err))
		os.Exit(1)
	}
}
