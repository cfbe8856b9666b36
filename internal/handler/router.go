package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/zhouzirui/z-tavern/local/internal/handler/chat"
	"github.com/zhouzirui/z-tavern/local/internal/handler/events"
	"github.com/zhouzirui/z-tavern/local/internal/handler/history"
	"github.com/zhouzirui/z-tavern/local/internal/handler/persona"
	"github.com/zhouzirui/z-tavern/local/internal/handler/profile"
	middlewarePkg "github.com/zhouzirui/z-tavern/local/internal/middleware"
	chatService "github.com/zhouzirui/z-tavern/local/internal/service/chat"
	historyService "github.com/zhouzirui/z-tavern/local/internal/service/history"
	personaService "github.com/zhouzirui/z-tavern/local/internal/service/persona"
	profileService "github.com/zhouzirui/z-tavern/local/internal/service/profile"
	"github.com/zhouzirui/z-tavern/local/pkg/utils"
)

// Services 聚合路由需要的服务。
type Services struct {
	Personas *personaService.Service
	Chats    *historyService.ChatStore
	Memories *historyService.MemoryStore
	Profile  *profileService.Service
	Session  *chatService.Session
}

// NewRouter wires HTTP routes to core services.
func NewRouter(svc Services, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	// Create handlers
	personaHandler := persona.New(svc.Personas, logger)
	chatHandler := chat.New(svc.Session, svc.Personas, svc.Chats, logger)
	historyHandler := history.New(svc.Chats, svc.Memories, logger)
	profileHandler := profile.New(svc.Profile, logger)
	eventsHandler := events.NewWebSocketHandler(svc.Session, logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(api chi.Router) {
		personaHandler.RegisterRoutes(api)
		chatHandler.RegisterRoutes(api)
		eventsHandler.RegisterRoutes(api)
		historyHandler.RegisterRoutes(api)
		profileHandler.RegisterRoutes(api)
	})

	return r
}
