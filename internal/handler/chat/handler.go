package chat

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zhouzirui/z-tavern/local/internal/model/chat"
	"github.com/zhouzirui/z-tavern/local/internal/model/persona"
	chatService "github.com/zhouzirui/z-tavern/local/internal/service/chat"
	"github.com/zhouzirui/z-tavern/local/internal/service/history"
	"github.com/zhouzirui/z-tavern/local/pkg/utils"
)

// Handler 当前会话的HTTP处理器
type Handler struct {
	session      *chatService.Session
	personaStore persona.Store
	chats        *history.ChatStore
	log          *zap.Logger
}

// New 创建聊天处理器
func New(session *chatService.Session, personaStore persona.Store, chats *history.ChatStore, logger *zap.Logger) *Handler {
	return &Handler{
		session:      session,
		personaStore: personaStore,
		chats:        chats,
		log:          logger.With(zap.String("component", "chat_handler")),
	}
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/session", h.handleSnapshot)
	r.Post("/session/start", h.handleStart)
	r.Post("/session/messages", h.handleSubmit)
	r.Put("/session/messages/{id}", h.handleEdit)
	r.Delete("/session/messages/{id}", h.handleDelete)
	r.Post("/session/save", h.handleSave)
	r.Post("/session/memory", h.handleSaveMemory)
	r.Post("/session/load/{chatId}", h.handleLoad)
}

type startRequest struct {
	PersonaID string `json:"personaId" validate:"required"`
}

type contentRequest struct {
	Content string `json:"content" validate:"required"`
}

func (h *Handler) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.session.Snapshot())
}

// handleStart 以指定persona开始新会话
func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	var payload startRequest
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	p, ok := h.findPersona(w, payload.PersonaID)
	if !ok {
		return
	}
	if err := h.session.Start(p); err != nil {
		h.respondSessionError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, h.session.Snapshot())
}

// handleSubmit 发送用户消息并等待回复
func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var payload contentRequest
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	task, err := h.session.Submit(r.Context(), payload.Content)
	if err != nil {
		h.respondSessionError(w, err)
		return
	}
	h.respondTask(r.Context(), w, http.StatusCreated, task)
}

// handleEdit 修改用户消息并重新生成回复
func (h *Handler) handleEdit(w http.ResponseWriter, r *http.Request) {
	var payload contentRequest
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	task, err := h.session.Edit(r.Context(), chi.URLParam(r, "id"), payload.Content)
	if err != nil {
		h.respondSessionError(w, err)
		return
	}
	h.respondTask(r.Context(), w, http.StatusOK, task)
}

// handleDelete 删除消息（用户消息连同紧随其后的回复）
func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.session.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.respondSessionError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, h.session.Snapshot())
}

// handleSave 保存会话，已保存的会话直接返回原 chatId
func (h *Handler) handleSave(w http.ResponseWriter, r *http.Request) {
	task, err := h.session.Save(r.Context())
	if err != nil {
		h.respondSessionError(w, err)
		return
	}

	chatID, err := task.Wait(r.Context())
	if err != nil {
		h.respondSessionError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"chatId": chatID, "title": h.session.Snapshot().Title})
}

// handleSaveMemory 生成摘要并存为记忆
func (h *Handler) handleSaveMemory(w http.ResponseWriter, r *http.Request) {
	task, err := h.session.SaveMemory(r.Context())
	if err != nil {
		h.respondSessionError(w, err)
		return
	}

	mem, err := task.Wait(r.Context())
	if err != nil {
		h.respondSessionError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, mem)
}

// handleLoad 载入已保存的会话
func (h *Handler) handleLoad(w http.ResponseWriter, r *http.Request) {
	saved, err := h.chats.FindChat(r.Context(), chi.URLParam(r, "chatId"))
	if err != nil {
		if errors.Is(err, history.ErrChatNotFound) {
			utils.RespondError(w, http.StatusNotFound, err.Error())
			return
		}
		h.log.Error("find chat failed", zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "failed to load chat")
		return
	}

	p, ok := h.findPersona(w, saved.PersonaID)
	if !ok {
		return
	}
	if err := h.session.Load(p, saved); err != nil {
		h.respondSessionError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, h.session.Snapshot())
}

func (h *Handler) findPersona(w http.ResponseWriter, id string) (persona.Persona, bool) {
	p, ok, err := h.personaStore.FindByID(id)
	if err != nil {
		h.log.Error("persona lookup failed", zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "failed to load personas")
		return persona.Persona{}, false
	}
	if !ok {
		utils.RespondError(w, http.StatusNotFound, "persona not found")
		return persona.Persona{}, false
	}
	return p, true
}

func (h *Handler) respondTask(ctx context.Context, w http.ResponseWriter, status int, task *chatService.Task[chat.Message]) {
	reply, err := task.Wait(ctx)
	if err != nil {
		h.respondSessionError(w, err)
		return
	}
	utils.RespondJSON(w, status, reply)
}

func (h *Handler) respondSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chatService.ErrEmptyMessage),
		errors.Is(err, chatService.ErrNoPersona),
		errors.Is(err, chatService.ErrNotUserMessage),
		errors.Is(err, chatService.ErrEmptyLog),
		errors.Is(err, chatService.ErrPersonaMismatch):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, chatService.ErrMessageNotFound):
		utils.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, chatService.ErrBusy),
		errors.Is(err, chatService.ErrSessionReset):
		utils.RespondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, chatService.ErrGateway):
		utils.RespondError(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, context.Canceled):
		// client went away; the reply still lands in the session
	default:
		h.log.Error("session operation failed", zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
	}
}
