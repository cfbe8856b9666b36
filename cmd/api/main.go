package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/zhouzirui/z-tavern/local/internal/app"
	"github.com/zhouzirui/z-tavern/local/internal/config"
	"github.com/zhouzirui/z-tavern/local/internal/handler"
	"github.com/zhouzirui/z-tavern/local/internal/logger"
	"github.com/zhouzirui/z-tavern/local/internal/service/chat"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("warning: failed to load .env file: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	zl, err := logger.New(logger.Options{File: cfg.Log.File, Level: cfg.Log.Level, Console: cfg.Log.Console})
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer zl.Sync()
	zap.ReplaceGlobals(zl)

	// 会话的完成回调都在这个事件循环上执行
	loop := chat.NewLoop(64)
	go loop.Run(ctx)

	services, err := app.New(ctx, cfg, loop, zl)
	if err != nil {
		zl.Fatal("failed to initialize services", zap.Error(err))
	}

	router := handler.NewRouter(handler.Services{
		Personas: services.Personas,
		Chats:    services.Chats,
		Memories: services.Memories,
		Profile:  services.Profile,
		Session:  services.Session,
	}, zl)

	startServer(ctx, cfg.Server, router, zl)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler, zl *zap.Logger) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	zl.Info("Z Tavern local listening", zap.String("addr", addr))
	if err := runServer(ctx, srv); err != nil {
		zl.Fatal("server error", zap.Error(err))
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
