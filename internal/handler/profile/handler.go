// Package profile exposes the user's personal info snippets over HTTP.
package profile

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	model "github.com/zhouzirui/z-tavern/local/internal/model/profile"
	profileService "github.com/zhouzirui/z-tavern/local/internal/service/profile"
	"github.com/zhouzirui/z-tavern/local/pkg/utils"
)

// Handler 个人信息的HTTP处理器
type Handler struct {
	profile *profileService.Service
	log     *zap.Logger
}

// New 创建处理器
func New(profile *profileService.Service, logger *zap.Logger) *Handler {
	return &Handler{profile: profile, log: logger.With(zap.String("component", "profile_handler"))}
}

// RegisterRoutes 注册路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/profile", h.handleList)
	r.Post("/profile", h.handleAdd)
	r.Put("/profile/{id}", h.handleUpdate)
	r.Delete("/profile/{id}", h.handleDelete)
}

type contentRequest struct {
	Content string `json:"content" validate:"required"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	items, err := h.profile.List(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	if items == nil {
		items = []model.Info{}
	}
	utils.RespondJSON(w, http.StatusOK, items)
}

func (h *Handler) handleAdd(w http.ResponseWriter, r *http.Request) {
	var payload contentRequest
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	info, err := h.profile.Add(r.Context(), payload.Content)
	if err != nil {
		h.respondError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, info)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var payload contentRequest
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	info, err := h.profile.Update(r.Context(), chi.URLParam(r, "id"), payload.Content)
	if err != nil {
		h.respondError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, info)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.profile.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, profileService.ErrEmptyContent):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, profileService.ErrInfoNotFound):
		utils.RespondError(w, http.StatusNotFound, err.Error())
	default:
		h.log.Error("profile operation failed", zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "profile operation failed")
	}
}
