package tasks

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-pm/odyssey-pm/internal/access"
	"github.com/odyssey-pm/odyssey-pm/internal/platform/httpx"
	"github.com/odyssey-pm/odyssey-pm/internal/shared"
)

// Handler manages task endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	access  access.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, mw access.Middleware) *Handler {
	return &Handler{logger: logger, service: service, access: mw}
}

// MountRoutes registers task routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.access.RequireAny(
			access.Cap(access.ModuleTasks, access.ActionView),
			access.Cap(access.ModuleTasks, access.ActionViewTeam),
			access.Cap(access.ModuleTasks, access.ActionViewAssigned),
		))
		r.Get("/tasks", h.list)
		r.Get("/tasks/{id}", h.show)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.access.RequireAll(access.Cap(access.ModuleTasks, access.ActionCreate)))
		r.Post("/tasks", h.create)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.access.RequireAll(access.Cap(access.ModuleTasks, access.ActionEdit)))
		r.Patch("/tasks/{id}", h.update)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.access.RequireAll(access.Cap(access.ModuleTasks, access.ActionDelete)))
		r.Delete("/tasks/{id}", h.delete)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.List(r.Context(), access.PrincipalFromContext(r.Context()), r.URL.Query().Get("project_id"))
	if err != nil {
		h.logger.Error("list tasks failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	page, perPage := shared.PageParams(r)
	httpx.JSON(w, http.StatusOK, shared.Paginate(items, page, perPage))
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	task, err := h.service.Get(r.Context(), access.PrincipalFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, task)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateTaskRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	task, err := h.service.Create(r.Context(), access.PrincipalFromContext(r.Context()), req)
	if err != nil {
		h.logger.Warn("create task failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, task)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var req UpdateTaskRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	task, err := h.service.Update(r.Context(), access.PrincipalFromContext(r.Context()), chi.URLParam(r, "id"), req)
	if err != nil {
		h.logger.Warn("update task failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, task)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), access.PrincipalFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		h.logger.Warn("delete task failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
