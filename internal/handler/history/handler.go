// Package history exposes saved chats and memories over HTTP.
package history

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zhouzirui/z-tavern/local/internal/model/chat"
	"github.com/zhouzirui/z-tavern/local/internal/model/memory"
	historyService "github.com/zhouzirui/z-tavern/local/internal/service/history"
	"github.com/zhouzirui/z-tavern/local/pkg/utils"
)

// Handler 聊天记录与记忆的HTTP处理器
type Handler struct {
	chats    *historyService.ChatStore
	memories *historyService.MemoryStore
	log      *zap.Logger
}

// New 创建处理器
func New(chats *historyService.ChatStore, memories *historyService.MemoryStore, logger *zap.Logger) *Handler {
	return &Handler{
		chats:    chats,
		memories: memories,
		log:      logger.With(zap.String("component", "history_handler")),
	}
}

// RegisterRoutes 注册路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/chats", h.handleListChats)
	r.Get("/chats/{id}", h.handleGetChat)
	r.Delete("/chats/{id}", h.handleDeleteChat)
	r.Get("/memories", h.handleListMemories)
	r.Delete("/memories/{id}", h.handleDeleteMemory)
}

func (h *Handler) handleListChats(w http.ResponseWriter, r *http.Request) {
	chats, err := h.chats.ListChats(r.Context())
	if err != nil {
		h.internalError(w, "list chats failed", err)
		return
	}
	if chats == nil {
		chats = []chat.SavedChat{}
	}
	utils.RespondJSON(w, http.StatusOK, chats)
}

func (h *Handler) handleGetChat(w http.ResponseWriter, r *http.Request) {
	saved, err := h.chats.FindChat(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, historyService.ErrChatNotFound) {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		h.internalError(w, "find chat failed", err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, saved)
}

func (h *Handler) handleDeleteChat(w http.ResponseWriter, r *http.Request) {
	if err := h.chats.DeleteChat(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.internalError(w, "delete chat failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleListMemories 支持 ?personaId= 过滤
func (h *Handler) handleListMemories(w http.ResponseWriter, r *http.Request) {
	memories, err := h.memories.ListMemories(r.Context(), r.URL.Query().Get("personaId"))
	if err != nil {
		h.internalError(w, "list memories failed", err)
		return
	}
	if memories == nil {
		memories = []memory.Memory{}
	}
	utils.RespondJSON(w, http.StatusOK, memories)
}

func (h *Handler) handleDeleteMemory(w http.ResponseWriter, r *http.Request) {
	if err := h.memories.DeleteMemory(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.internalError(w, "delete memory failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) internalError(w http.ResponseWriter, msg string, err error) {
	h.log.Error(msg, zap.Error(err))
	utils.RespondError(w, http.StatusInternalServerError, msg)
}
