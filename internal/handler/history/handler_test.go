package history

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zhouzirui/z-tavern/local/internal/model/chat"
	"github.com/zhouzirui/z-tavern/local/internal/model/memory"
	historyService "github.com/zhouzirui/z-tavern/local/internal/service/history"
)

func setupRouter(t *testing.T) (*chi.Mux, *historyService.ChatStore, *historyService.MemoryStore) {
	t.Helper()
	dir := t.TempDir()
	chats, err := historyService.NewChatStore(dir, zap.NewNop())
	if err != nil {
		t.Fatalf("chat store err: %v", err)
	}
	memories, err := historyService.NewMemoryStore(dir, zap.NewNop())
	if err != nil {
		t.Fatalf("memory store err: %v", err)
	}

	r := chi.NewRouter()
	New(chats, memories, zap.NewNop()).RegisterRoutes(r)
	return r, chats, memories
}

func TestChatsLifecycle(t *testing.T) {
	r, chats, _ := setupRouter(t)
	ctx := context.Background()

	saved, err := chats.SaveChat(ctx, "p1", "Trip", []chat.Message{chat.NewMessage(chat.RoleUser, "hi")})
	if err != nil {
		t.Fatalf("SaveChat err: %v", err)
	}

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/chats", nil))
	var list []chat.SavedChat
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		t.Fatalf("decode err: %v", err)
	}
	if len(list) != 1 || list[0].ChatID != saved.ChatID {
		t.Fatalf("unexpected chats %+v", list)
	}

	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/chats/"+saved.ChatID, nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodDelete, "/chats/"+saved.ChatID, nil))
	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/chats/"+saved.ChatID, nil))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", resp.Code)
	}
}

func TestMemoriesFilterByPersona(t *testing.T) {
	r, _, memories := setupRouter(t)
	ctx := context.Background()

	if _, err := memories.SaveMemory(ctx, "p1", nil, "first"); err != nil {
		t.Fatalf("SaveMemory err: %v", err)
	}
	if _, err := memories.SaveMemory(ctx, "p2", nil, "second"); err != nil {
		t.Fatalf("SaveMemory err: %v", err)
	}

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/memories?personaId=p2", nil))
	var list []memory.Memory
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		t.Fatalf("decode err: %v", err)
	}
	if len(list) != 1 || list[0].Summary != "second" {
		t.Fatalf("unexpected memories %+v", list)
	}

	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodDelete, "/memories/"+list[0].MemoryID, nil))
	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.Code)
	}

	remaining, err := memories.ListMemories(ctx, "")
	if err != nil {
		t.Fatalf("ListMemories err: %v", err)
	}
	if len(remaining) != 1 || remaining[0].PersonaID != "p1" {
		t.Fatalf("unexpected remaining memories %+v", remaining)
	}
}

func TestEmptyListsAreArrays(t *testing.T) {
	r, _, _ := setupRouter(t)

	for _, path := range []string{"/chats", "/memories"} {
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, path, nil))
		if body := resp.Body.String(); body != "[]\n" {
			t.Fatalf("%s: expected empty array, got %q", path, body)
		}
	}
}
