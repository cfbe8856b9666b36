package persona

import (
	"errors"
	"mime/multipart"
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zhouzirui/z-tavern/local/internal/model/persona"
	personaService "github.com/zhouzirui/z-tavern/local/internal/service/persona"
	"github.com/zhouzirui/z-tavern/local/pkg/utils"
)

// maxUploadBytes limits multipart persona forms, avatar included.
const maxUploadBytes = 10 << 20

// Handler persona服务的HTTP处理器
type Handler struct {
	personas *personaService.Service
	log      *zap.Logger
}

// New 创建persona处理器
func New(personas *personaService.Service, logger *zap.Logger) *Handler {
	return &Handler{
		personas: personas,
		log:      logger.With(zap.String("component", "persona_handler")),
	}
}

// RegisterRoutes 注册persona相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/personas", h.handleListPersonas)
	r.Post("/personas", h.handleCreatePersona)
	r.Put("/personas/{id}", h.handleUpdatePersona)
	r.Delete("/personas/{id}", h.handleDeletePersona)
	r.Get("/images/*", h.handleImage)
}

// handleListPersonas 列出所有persona
func (h *Handler) handleListPersonas(w http.ResponseWriter, r *http.Request) {
	personas, err := h.personas.List()
	if err != nil {
		h.log.Error("list personas failed", zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "failed to load personas")
		return
	}
	if personas == nil {
		personas = []persona.Persona{}
	}
	utils.RespondJSON(w, http.StatusOK, personas)
}

// handleImage 提供头像文件，只取文件名部分避免越出图片目录
func (h *Handler) handleImage(w http.ResponseWriter, r *http.Request) {
	name := filepath.Base(chi.URLParam(r, "*"))
	if name == "." || name == "/" || name == "" {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, filepath.Join(h.personas.ImagesDir(), name))
}

// handleCreatePersona 创建persona（multipart：name、prompt、可选 avatar）
func (h *Handler) handleCreatePersona(w http.ResponseWriter, r *http.Request) {
	name, prompt, avatar, cleanup, err := parsePersonaForm(r)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer cleanup()

	created, err := h.personas.Create(r.Context(), name, prompt, avatar)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, created)
}

// handleUpdatePersona 更新persona，avatar 缺省时保留原头像
func (h *Handler) handleUpdatePersona(w http.ResponseWriter, r *http.Request) {
	name, prompt, avatar, cleanup, err := parsePersonaForm(r)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer cleanup()

	updated, err := h.personas.Update(r.Context(), chi.URLParam(r, "id"), name, prompt, avatar)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, updated)
}

// handleDeletePersona 删除persona及其头像
func (h *Handler) handleDeletePersona(w http.ResponseWriter, r *http.Request) {
	if err := h.personas.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, personaService.ErrPersonaNotFound):
		utils.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, personaService.ErrNameRequired),
		errors.Is(err, personaService.ErrPromptRequired),
		errors.Is(err, personaService.ErrUnsupportedImage):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	default:
		h.log.Error("persona operation failed", zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "persona operation failed")
	}
}

func parsePersonaForm(r *http.Request) (name, prompt string, avatar *personaService.Avatar, cleanup func(), err error) {
	cleanup = func() {}
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return "", "", nil, cleanup, errors.New("invalid multipart form")
	}

	name = r.FormValue("name")
	prompt = r.FormValue("prompt")

	file, header, err := r.FormFile("avatar")
	switch {
	case errors.Is(err, http.ErrMissingFile):
		return name, prompt, nil, cleanup, nil
	case err != nil:
		return "", "", nil, cleanup, errors.New("invalid avatar upload")
	}

	cleanup = func() { closeQuietly(file) }
	return name, prompt, &personaService.Avatar{Filename: header.Filename, Data: file}, cleanup, nil
}

func closeQuietly(file multipart.File) {
	_ = file.Close()
}
