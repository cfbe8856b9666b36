package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zhouzirui/z-tavern/local/internal/model/chat"
	"github.com/zhouzirui/z-tavern/local/internal/model/memory"
	"github.com/zhouzirui/z-tavern/local/internal/model/persona"
	chatservice "github.com/zhouzirui/z-tavern/local/internal/service/chat"
	"github.com/zhouzirui/z-tavern/local/internal/service/history"
	personaservice "github.com/zhouzirui/z-tavern/local/internal/service/persona"
)

type stubGateway struct {
	fail bool
}

func (g *stubGateway) Ask(_ context.Context, _ persona.Persona, userText string, _ []chat.Message) (string, error) {
	if g.fail {
		return "", errors.New("llama-server not running")
	}
	return "echo: " + userText, nil
}

func (g *stubGateway) Summarize(context.Context, []chat.Message) (string, error) {
	return "We said hello.", nil
}

func (g *stubGateway) SummarizeTitle(context.Context, []chat.Message) (string, error) {
	return "Greetings", nil
}

type testEnv struct {
	router   *chi.Mux
	gateway  *stubGateway
	chats    *history.ChatStore
	personas *personaservice.Service
	session  *chatservice.Session
}

func setupRouter(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()

	personas, err := personaservice.NewService(dir, filepath.Join(dir, "images"), persona.Seed(), zap.NewNop())
	if err != nil {
		t.Fatalf("persona service err: %v", err)
	}
	chats, err := history.NewChatStore(dir, zap.NewNop())
	if err != nil {
		t.Fatalf("chat store err: %v", err)
	}
	memories, err := history.NewMemoryStore(dir, zap.NewNop())
	if err != nil {
		t.Fatalf("memory store err: %v", err)
	}

	gw := &stubGateway{}
	inline := chatservice.DispatcherFunc(func(fn func()) { fn() })
	session := chatservice.NewSession(gw, chats, memories, inline, zap.NewNop())

	r := chi.NewRouter()
	New(session, personas, chats, zap.NewNop()).RegisterRoutes(r)
	return &testEnv{router: r, gateway: gw, chats: chats, personas: personas, session: session}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var payload []byte
	if body != nil {
		payload, _ = json.Marshal(body)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	e.router.ServeHTTP(resp, req)
	return resp
}

func (e *testEnv) start(t *testing.T) {
	t.Helper()
	resp := e.do(t, http.MethodPost, "/session/start", map[string]string{"personaId": persona.Seed()[0].ID})
	if resp.Code != http.StatusCreated {
		t.Fatalf("start: expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
}

func decode[T any](t *testing.T, resp *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode err: %v", err)
	}
	return v
}

func TestStartSessionUnknownPersona(t *testing.T) {
	env := setupRouter(t)

	resp := env.do(t, http.MethodPost, "/session/start", map[string]string{"personaId": "non-existent"})
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}

	resp = env.do(t, http.MethodPost, "/session/start", map[string]string{})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestSubmitReturnsReply(t *testing.T) {
	env := setupRouter(t)
	env.start(t)

	resp := env.do(t, http.MethodPost, "/session/messages", map[string]string{"content": "hello"})
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	reply := decode[chat.Message](t, resp)
	if reply.Role != chat.RoleModel || reply.Content != "echo: hello" {
		t.Fatalf("unexpected reply %+v", reply)
	}

	snap := decode[chatservice.Snapshot](t, env.do(t, http.MethodGet, "/session", nil))
	if len(snap.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(snap.Messages))
	}
}

func TestSubmitErrors(t *testing.T) {
	env := setupRouter(t)

	resp := env.do(t, http.MethodPost, "/session/messages", map[string]string{"content": "hello"})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("no persona: expected 400, got %d", resp.Code)
	}

	env.start(t)
	resp = env.do(t, http.MethodPost, "/session/messages", map[string]string{"content": "   "})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("blank content: expected 400, got %d", resp.Code)
	}

	env.gateway.fail = true
	resp = env.do(t, http.MethodPost, "/session/messages", map[string]string{"content": "hello"})
	if resp.Code != http.StatusBadGateway {
		t.Fatalf("gateway failure: expected 502, got %d", resp.Code)
	}
	if msgs := env.session.Messages(); len(msgs) != 1 || msgs[0].Role != chat.RoleUser {
		t.Fatalf("expected trailing user message, got %+v", msgs)
	}
}

func TestEditAndDeleteMessages(t *testing.T) {
	env := setupRouter(t)
	env.start(t)
	env.do(t, http.MethodPost, "/session/messages", map[string]string{"content": "one"})
	env.do(t, http.MethodPost, "/session/messages", map[string]string{"content": "two"})
	msgs := env.session.Messages()

	resp := env.do(t, http.MethodPut, "/session/messages/"+msgs[1].ID, map[string]string{"content": "x"})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("editing a reply: expected 400, got %d", resp.Code)
	}

	resp = env.do(t, http.MethodPut, "/session/messages/"+msgs[2].ID, map[string]string{"content": "dos"})
	if resp.Code != http.StatusOK {
		t.Fatalf("edit: expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if reply := decode[chat.Message](t, resp); reply.Content != "echo: dos" {
		t.Fatalf("unexpected reply %+v", reply)
	}

	resp = env.do(t, http.MethodDelete, "/session/messages/"+msgs[0].ID, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", resp.Code)
	}
	snap := decode[chatservice.Snapshot](t, resp)
	if len(snap.Messages) != 2 || snap.Messages[0].Content != "dos" {
		t.Fatalf("unexpected log after delete: %+v", snap.Messages)
	}

	resp = env.do(t, http.MethodDelete, "/session/messages/missing", nil)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("delete missing: expected 404, got %d", resp.Code)
	}
}

func TestSaveLoadAndMemory(t *testing.T) {
	env := setupRouter(t)

	resp := env.do(t, http.MethodPost, "/session/save", nil)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("save without messages: expected 400, got %d", resp.Code)
	}

	env.start(t)
	env.do(t, http.MethodPost, "/session/messages", map[string]string{"content": "hello"})

	resp = env.do(t, http.MethodPost, "/session/save", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("save: expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	saved := decode[map[string]string](t, resp)
	if saved["chatId"] == "" || saved["title"] != "Greetings" {
		t.Fatalf("unexpected save response %v", saved)
	}

	resp = env.do(t, http.MethodPost, "/session/memory", nil)
	if resp.Code != http.StatusCreated {
		t.Fatalf("memory: expected 201, got %d", resp.Code)
	}
	mem := decode[memory.Memory](t, resp)
	if mem.ChatID == nil || *mem.ChatID != saved["chatId"] {
		t.Fatalf("memory not linked to chat: %+v", mem)
	}

	env.start(t)
	resp = env.do(t, http.MethodPost, "/session/load/"+saved["chatId"], nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("load: expected 200, got %d", resp.Code)
	}
	snap := decode[chatservice.Snapshot](t, resp)
	if snap.ChatID != saved["chatId"] || len(snap.Messages) != 2 {
		t.Fatalf("unexpected snapshot after load: %+v", snap)
	}

	resp = env.do(t, http.MethodPost, "/session/load/unknown", nil)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("load unknown: expected 404, got %d", resp.Code)
	}
}
