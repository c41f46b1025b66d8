package delegation

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"convoca/internal/platform/middleware"
	id "convoca/pkg/domain"
	dErrors "convoca/pkg/domain-errors"
	"convoca/pkg/platform/httputil"
	"convoca/pkg/requestcontext"
)

// Handler exposes delegation endpoints. Participants create delegations for
// themselves; validation is an admin operation.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the delegation routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/assemblies/{assemblyID}/delegations", h.handleCreate)

	r.Group(func(admin chi.Router) {
		admin.Use(middleware.RequireAdmin(h.logger))
		admin.Get("/assemblies/{assemblyID}/delegations", h.handleList)
		admin.Post("/delegations/{delegationID}/validate", h.handleValidate)
	})
}

type createRequest struct {
	DelegateName     string `json:"delegate_name"`
	DelegateEmail    string `json:"delegate_email"`
	DelegateDocument string `json:"delegate_document"`
	Shares           int    `json:"shares"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	assemblyID, err := id.ParseAssemblyID(chi.URLParam(r, "assemblyID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid assembly id"))
		return
	}

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	d, err := h.service.Create(ctx, assemblyID, requestcontext.AccountID(ctx),
		req.DelegateName, req.DelegateEmail, req.DelegateDocument, req.Shares)
	if err != nil {
		if dErrors.Is(err, dErrors.CodeInternal) {
			h.logger.ErrorContext(ctx, "create delegation",
				"error", err,
				"request_id", requestcontext.RequestID(ctx),
			)
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, d)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	assemblyID, err := id.ParseAssemblyID(chi.URLParam(r, "assemblyID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid assembly id"))
		return
	}
	out, err := h.service.ListByAssembly(r.Context(), assemblyID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

type validateRequest struct {
	Status string `json:"status"`
}

func (h *Handler) handleValidate(w http.ResponseWriter, r *http.Request) {
	delegationID, err := id.ParseDelegationID(chi.URLParam(r, "delegationID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid delegation id"))
		return
	}

	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	d, err := h.service.Validate(r.Context(), delegationID, Status(req.Status))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, d)
}
