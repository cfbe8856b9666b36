package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/zhouzirui/z-tavern/local/internal/model/chat"
	"github.com/zhouzirui/z-tavern/local/internal/model/persona"
	chatService "github.com/zhouzirui/z-tavern/local/internal/service/chat"
	historyService "github.com/zhouzirui/z-tavern/local/internal/service/history"
	personaService "github.com/zhouzirui/z-tavern/local/internal/service/persona"
	profileService "github.com/zhouzirui/z-tavern/local/internal/service/profile"
)

type silentGateway struct{}

func (silentGateway) Ask(context.Context, persona.Persona, string, []chat.Message) (string, error) {
	return "...", nil
}
func (silentGateway) Summarize(context.Context, []chat.Message) (string, error)      { return "", nil }
func (silentGateway) SummarizeTitle(context.Context, []chat.Message) (string, error) { return "", nil }

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	dir := t.TempDir()
	logger := zap.NewNop()

	personas, err := personaService.NewService(dir, filepath.Join(dir, "images"), persona.Seed(), logger)
	if err != nil {
		t.Fatalf("persona service err: %v", err)
	}
	chats, err := historyService.NewChatStore(dir, logger)
	if err != nil {
		t.Fatalf("chat store err: %v", err)
	}
	memories, err := historyService.NewMemoryStore(dir, logger)
	if err != nil {
		t.Fatalf("memory store err: %v", err)
	}
	profile, err := profileService.NewService(dir, logger)
	if err != nil {
		t.Fatalf("profile service err: %v", err)
	}
	inline := chatService.DispatcherFunc(func(fn func()) { fn() })

	return NewRouter(Services{
		Personas: personas,
		Chats:    chats,
		Memories: memories,
		Profile:  profile,
		Session:  chatService.NewSession(silentGateway{}, chats, memories, inline, logger),
	}, logger)
}

func TestRouterMountsAPI(t *testing.T) {
	r := newTestRouter(t)

	for _, path := range []string{"/healthz", "/api/personas", "/api/session", "/api/chats", "/api/memories", "/api/profile"} {
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, path, nil))
		if resp.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, resp.Code)
		}
	}
}

func TestRouterAnswersPreflight(t *testing.T) {
	r := newTestRouter(t)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodOptions, "/api/session/messages", nil))
	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.Code)
	}
}
