package catalog

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/forkline/forkline/internal/platform/httpx"
)

// Handler serves catalog endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers catalog routes under /items.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/items", func(r chi.Router) {
		r.Get("/", h.overview)
		r.Post("/", h.create)
		r.Get("/{id}", h.show)
		r.Put("/{id}/branches/{branch}", h.setOverride)
		r.Delete("/{id}/branches/{branch}", h.clearOverride)
	})
}

func (h *Handler) overview(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	items, err := h.service.Overview(r.Context(), OverviewFilter{
		BranchID: q.Get("branch"),
		Category: q.Get("category"),
		Search:   q.Get("search"),
	})
	if err != nil {
		h.logger.Error("catalog overview failed", slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	branch := r.URL.Query().Get("branch")
	if branch == "" {
		item, err := h.service.GetItem(r.Context(), id)
		if err != nil {
			h.respondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, item)
		return
	}
	resolved, err := h.service.ResolveItem(r.Context(), id, branch)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, resolved)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var form ItemForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := httpx.Validate(form); err != nil {
		httpx.RespondError(w, err)
		return
	}
	item, err := h.service.CreateItem(r.Context(), form)
	if err != nil {
		h.logger.Warn("create catalog item failed", slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, item)
}

func (h *Handler) setOverride(w http.ResponseWriter, r *http.Request) {
	var patch BranchOverride
	if err := httpx.DecodeJSON(r, &patch); err != nil {
		httpx.RespondError(w, err)
		return
	}
	item, err := h.service.SetBranchOverride(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "branch"), patch)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) clearOverride(w http.ResponseWriter, r *http.Request) {
	item, err := h.service.ClearBranchOverride(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "branch"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	httpx.RespondError(w, httpx.Translate(err,
		httpx.Mapping{Domain: ErrNotFound, HTTP: httpx.ErrNotFound},
		httpx.Mapping{Domain: ErrNotStocked, HTTP: httpx.ErrNotFound},
		httpx.Mapping{Domain: ErrDuplicate, HTTP: httpx.ErrConflict},
		httpx.Mapping{Domain: ErrValidation, HTTP: httpx.ErrValidation},
	))
}
