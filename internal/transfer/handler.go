package transfer

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/forkline/forkline/internal/platform/httpx"
	"github.com/forkline/forkline/internal/shared"
)

const (
	headerActor          = "X-Actor-ID"
	headerBranch         = "X-Branch-ID"
	headerIdempotencyKey = "Idempotency-Key"
)

// Handler exposes the stock request API.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers transfer routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(actorContext)
	r.Post("/", h.create)
	r.Get("/outbound", h.outbound)
	r.Get("/inbound", h.inbound)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.show)
		r.Patch("/", h.edit)
		r.Delete("/", h.remove)
		r.Post("/approve", h.approve)
		r.Post("/reject", h.reject)
		r.Post("/dispatch", h.dispatch)
		r.Post("/receive", h.receive)
	})
}

func actorContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if actor := strings.TrimSpace(r.Header.Get(headerActor)); actor != "" {
			r = r.WithContext(shared.ContextWithActor(r.Context(), actor))
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var input CreateInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := httpx.Validate(input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	req, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, req)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	req, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"request": req, "actions": Allowed(req.Status)})
}

func (h *Handler) edit(w http.ResponseWriter, r *http.Request) {
	var input EditInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := httpx.Validate(input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	req, err := h.service.Edit(r.Context(), chi.URLParam(r, "id"), input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, req)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	version, err := queryInt64(r, "version")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id"), version); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type transitionBody struct {
	ExpectedVersion int64  `json:"expected_version"`
	Note            string `json:"note" validate:"max=500"`
}

func (h *Handler) transitionOptions(r *http.Request) (TransitionOptions, error) {
	var body transitionBody
	if err := httpx.DecodeOptionalJSON(r, &body); err != nil {
		return TransitionOptions{}, err
	}
	if err := httpx.Validate(body); err != nil {
		return TransitionOptions{}, err
	}
	return TransitionOptions{
		ExpectedVersion: body.ExpectedVersion,
		IdempotencyKey:  r.Header.Get(headerIdempotencyKey),
		Note:            body.Note,
	}, nil
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	h.runTransition(w, r, h.service.Approve)
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	h.runTransition(w, r, h.service.Reject)
}

func (h *Handler) dispatch(w http.ResponseWriter, r *http.Request) {
	h.runTransition(w, r, h.service.Dispatch)
}

func (h *Handler) receive(w http.ResponseWriter, r *http.Request) {
	branch := r.Header.Get(headerBranch)
	if branch == "" {
		branch = r.URL.Query().Get("branch")
	}
	h.runTransition(w, r, func(ctx context.Context, id string, opts TransitionOptions) (StockRequest, error) {
		return h.service.Receive(ctx, id, branch, opts)
	})
}

type transitionFunc func(ctx context.Context, id string, opts TransitionOptions) (StockRequest, error)

func (h *Handler) runTransition(w http.ResponseWriter, r *http.Request, op transitionFunc) {
	opts, err := h.transitionOptions(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	req, err := op(r.Context(), chi.URLParam(r, "id"), opts)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, req)
}

func (h *Handler) outbound(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, perPage, err := pageParams(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	all := false
	if raw := q.Get("all"); raw != "" {
		if all, err = strconv.ParseBool(raw); err != nil {
			httpx.RespondError(w, fmt.Errorf("%w: all must be a boolean", httpx.ErrValidation))
			return
		}
	}
	result, err := h.service.ListOutbound(r.Context(), OutboundFilter{
		Search:      q.Get("search"),
		AllStatuses: all,
		Sort:        sortParam(r),
		Page:        page,
		PerPage:     perPage,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) inbound(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, perPage, err := pageParams(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	branch := q.Get("branch")
	if branch == "" {
		branch = r.Header.Get(headerBranch)
	}
	result, err := h.service.ListInbound(r.Context(), InboundFilter{
		DestinationID: branch,
		OriginID:      q.Get("origin"),
		Search:        q.Get("search"),
		Sort:          sortParam(r),
		Page:          page,
		PerPage:       perPage,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func sortParam(r *http.Request) SortState {
	q := r.URL.Query()
	state := SortState{Key: SortKey(q.Get("sort")), Direction: Direction(strings.ToLower(q.Get("dir")))}
	if state.Key != "" && state.Direction == "" {
		state.Direction = Asc
	}
	return state
}

func pageParams(r *http.Request) (int, int, error) {
	page, err := queryInt64(r, "page")
	if err != nil {
		return 0, 0, err
	}
	perPage, err := queryInt64(r, "per_page")
	if err != nil {
		return 0, 0, err
	}
	return int(page), int(perPage), nil
}

func queryInt64(r *http.Request, name string) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be a number", httpx.ErrValidation, name)
	}
	return v, nil
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	h.logger.Warn("transfer request failed", slog.Any("error", err))
	httpx.RespondError(w, httpx.Translate(err,
		httpx.Mapping{Domain: ErrNotFound, HTTP: httpx.ErrNotFound},
		httpx.Mapping{Domain: ErrInvalidTransition, HTTP: httpx.ErrConflict},
		httpx.Mapping{Domain: ErrVersionConflict, HTTP: httpx.ErrConflict},
		httpx.Mapping{Domain: ErrDuplicate, HTTP: httpx.ErrConflict},
		httpx.Mapping{Domain: ErrValidation, HTTP: httpx.ErrValidation},
		httpx.Mapping{Domain: ErrWrongDestination, HTTP: httpx.ErrForbidden},
		httpx.Mapping{Domain: shared.ErrLockTimeout, HTTP: httpx.ErrConflict},
	))
}
