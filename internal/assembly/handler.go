package assembly

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"convoca/internal/platform/middleware"
	id "convoca/pkg/domain"
	dErrors "convoca/pkg/domain-errors"
	"convoca/pkg/platform/httputil"
	"convoca/pkg/requestcontext"
)

// Handler exposes assembly management endpoints. Creation, lifecycle changes,
// and enrollment are admin operations; reads require any authenticated account.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the assembly routes.
func (h *Handler) Register(r chi.Router) {
	r.Get("/assemblies", h.handleList)
	r.Get("/assemblies/{assemblyID}", h.handleGet)
	r.Get("/assemblies/{assemblyID}/roster", h.handleRoster)

	r.Group(func(admin chi.Router) {
		admin.Use(middleware.RequireAdmin(h.logger))
		admin.Post("/assemblies", h.handleCreate)
		admin.Post("/assemblies/{assemblyID}/status", h.handleTransition)
		admin.Post("/assemblies/{assemblyID}/participants", h.handleEnroll)
	})
}

type createRequest struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	a, err := New(req.Title, req.Description, req.StartTime, req.EndTime, requestcontext.AccountID(ctx), requestcontext.Now(ctx))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	created, err := h.service.Create(ctx, a)
	if err != nil {
		h.logger.ErrorContext(ctx, "create assembly",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, created)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	assemblyID, err := id.ParseAssemblyID(chi.URLParam(r, "assemblyID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid assembly id"))
		return
	}
	a, err := h.service.Get(r.Context(), assemblyID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, a)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.List(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

type transitionRequest struct {
	Status string `json:"status"`
}

func (h *Handler) handleTransition(w http.ResponseWriter, r *http.Request) {
	assemblyID, err := id.ParseAssemblyID(chi.URLParam(r, "assemblyID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid assembly id"))
		return
	}

	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	a, err := h.service.Transition(r.Context(), assemblyID, Status(req.Status))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, a)
}

type enrollRequest struct {
	AccountID string `json:"account_id"`
	Shares    int    `json:"shares"`
}

func (h *Handler) handleEnroll(w http.ResponseWriter, r *http.Request) {
	assemblyID, err := id.ParseAssemblyID(chi.URLParam(r, "assemblyID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid assembly id"))
		return
	}

	var req enrollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	accountID, err := id.ParseAccountID(req.AccountID)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid account id"))
		return
	}

	p, err := h.service.Enroll(r.Context(), assemblyID, accountID, req.Shares)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, p)
}

func (h *Handler) handleRoster(w http.ResponseWriter, r *http.Request) {
	assemblyID, err := id.ParseAssemblyID(chi.URLParam(r, "assemblyID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid assembly id"))
		return
	}
	roster, err := h.service.Roster(r.Context(), assemblyID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, roster)
}
