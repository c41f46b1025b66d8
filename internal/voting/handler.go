package voting

import (
	"encoding/json"
	"errors"
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

// Handler exposes question and ballot endpoints.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the voting routes.
func (h *Handler) Register(r chi.Router) {
	r.Get("/assemblies/{assemblyID}/questions", h.handleList)
	r.Get("/questions/{questionID}", h.handleGet)
	r.Get("/questions/{questionID}/results", h.handleResults)
	r.Post("/questions/{questionID}/vote", h.handleVote)

	r.Group(func(admin chi.Router) {
		admin.Use(middleware.RequireAdmin(h.logger))
		admin.Post("/assemblies/{assemblyID}/questions", h.handleCreate)
		admin.Post("/questions/{questionID}/status", h.handleTransition)
	})
}

type createQuestionRequest struct {
	Text      string    `json:"text"`
	Kind      string    `json:"kind"`
	Options   []string  `json:"options"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	assemblyID, err := id.ParseAssemblyID(chi.URLParam(r, "assemblyID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid assembly id"))
		return
	}

	var req createQuestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	q, err := h.service.CreateQuestion(r.Context(), assemblyID, req.Text, QuestionKind(req.Kind), req.Options, req.StartTime, req.EndTime)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, q)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	assemblyID, err := id.ParseAssemblyID(chi.URLParam(r, "assemblyID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid assembly id"))
		return
	}
	out, err := h.service.ListQuestions(r.Context(), assemblyID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	questionID, err := id.ParseQuestionID(chi.URLParam(r, "questionID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid question id"))
		return
	}
	q, err := h.service.GetQuestion(r.Context(), questionID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, q)
}

type transitionRequest struct {
	Status string `json:"status"`
}

func (h *Handler) handleTransition(w http.ResponseWriter, r *http.Request) {
	questionID, err := id.ParseQuestionID(chi.URLParam(r, "questionID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid question id"))
		return
	}

	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	q, err := h.service.TransitionQuestion(r.Context(), questionID, QuestionStatus(req.Status))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, q)
}

type voteRequest struct {
	SelectedOptions []string `json:"selected_options"`
}

type voteResponse struct {
	BallotID        id.BallotID `json:"ballot_id"`
	SelectedOptions []string    `json:"selected_options"`
	Weight          int         `json:"weight"`
	ViaDelegation   bool        `json:"via_delegation"`
	Timestamp       time.Time   `json:"timestamp"`
}

func (h *Handler) handleVote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	questionID, err := id.ParseQuestionID(chi.URLParam(r, "questionID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid question id"))
		return
	}

	var req voteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	voter := Voter{
		ID:    requestcontext.AccountID(ctx),
		Email: requestcontext.AccountEmail(ctx),
	}
	ballot, err := h.service.CastVote(ctx, voter, questionID, req.SelectedOptions)
	if err != nil {
		var denial *DenialError
		if errors.As(err, &denial) {
			writeDenial(w, denial)
			return
		}
		if dErrors.Is(err, dErrors.CodeInternal) {
			h.logger.ErrorContext(ctx, "cast vote",
				"error", err,
				"question_id", questionID,
				"request_id", requestcontext.RequestID(ctx),
			)
		}
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, voteResponse{
		BallotID:        ballot.ID,
		SelectedOptions: ballot.SelectedOptions,
		Weight:          ballot.Weight,
		ViaDelegation:   ballot.ViaDelegation,
		Timestamp:       ballot.CastAt,
	})
}

func (h *Handler) handleResults(w http.ResponseWriter, r *http.Request) {
	questionID, err := id.ParseQuestionID(chi.URLParam(r, "questionID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid question id"))
		return
	}
	results, err := h.service.TallyResults(r.Context(), questionID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, results)
}

// writeDenial renders an eligibility refusal in the same envelope as other
// errors, carrying the machine-readable reason code.
func writeDenial(w http.ResponseWriter, denial *DenialError) {
	httputil.WriteJSON(w, denial.HTTPStatus(), map[string]string{
		"error":             string(denial.Reason),
		"error_description": denial.Message(),
	})
}
