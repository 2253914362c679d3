// Package api exposes the rescheduling engine over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/lenmanean/doer-sub005/internal/clock"
	"github.com/lenmanean/doer-sub005/internal/detector"
	"github.com/lenmanean/doer-sub005/internal/domain"
	"github.com/lenmanean/doer-sub005/internal/orchestrator"
	"github.com/lenmanean/doer-sub005/internal/postgres"
	"github.com/lenmanean/doer-sub005/internal/proposals"
	"github.com/lenmanean/doer-sub005/internal/settings"
)

// Pinger reports backend connectivity for readiness checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// REST handles HTTP requests for the rescheduling engine.
type REST struct {
	detector     *detector.Detector
	orchestrator *orchestrator.Orchestrator
	proposals    *proposals.Manager
	resolver     *settings.Resolver
	history      postgres.HistoryRepository
	db           Pinger
	clock        clock.Clock
	logger       *slog.Logger
}

// NewREST creates a new REST handler.
func NewREST(
	det *detector.Detector,
	orch *orchestrator.Orchestrator,
	mgr *proposals.Manager,
	resolver *settings.Resolver,
	history postgres.HistoryRepository,
	db Pinger,
	clk clock.Clock,
	logger *slog.Logger,
) *REST {
	return &REST{
		detector:     det,
		orchestrator: orch,
		proposals:    mgr,
		resolver:     resolver,
		history:      history,
		db:           db,
		clock:        clk,
		logger:       logger,
	}
}

// OverdueResponse is the GET /users/{userID}/overdue response body.
type OverdueResponse struct {
	Overdue []domain.OverdueTask `json:"overdue"`
	Count   int                  `json:"count"`
}

// RunResponse is the POST /users/{userID}/reschedule/run response body.
type RunResponse struct {
	Proposals []*domain.RescheduleProposal `json:"proposals"`
	Count     int                          `json:"count"`
}

// PendingResponse is the GET /users/{userID}/reschedules/pending response body.
type PendingResponse struct {
	Pending []*domain.PendingProposal `json:"pending"`
	Count   int                       `json:"count"`
}

// DecisionResponse is the body returned by accept and reject.
type DecisionResponse struct {
	Proposal *domain.RescheduleProposal `json:"proposal"`
	Status   string                     `json:"status"`
}

// HistoryResponse is the GET /users/{userID}/history response body.
type HistoryResponse struct {
	Entries []*domain.SchedulingHistoryEntry `json:"entries"`
	Count   int                              `json:"count"`
}

// GetOverdue handles GET /api/v1/users/{userID}/overdue. It reads current
// state only — no schedule rows change.
func (h *REST) GetOverdue(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("api").Start(r.Context(), "api.get_overdue")
	defer span.End()

	userID, planID, ok := h.scopeParams(w, r)
	if !ok {
		return
	}
	span.SetAttributes(attribute.String("user.id", userID))

	ws, err := h.resolver.Workday(ctx, userID)
	if err != nil {
		h.logger.Error("settings lookup failed", slog.String("user_id", userID), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to load settings")
		return
	}
	now := h.clock.Now().In(clock.LocationFor(ws.Timezone))

	overdue, err := h.detector.Detect(ctx, userID, planID, now)
	if err != nil {
		h.logger.Error("overdue detection failed", slog.String("user_id", userID), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to detect overdue tasks")
		return
	}
	if overdue == nil {
		overdue = []domain.OverdueTask{}
	}

	writeJSON(w, http.StatusOK, OverdueResponse{Overdue: overdue, Count: len(overdue)})
}

// RunReschedule handles POST /api/v1/users/{userID}/reschedule/run.
func (h *REST) RunReschedule(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("api").Start(r.Context(), "api.run_reschedule")
	defer span.End()

	userID, planID, ok := h.scopeParams(w, r)
	if !ok {
		return
	}
	span.SetAttributes(attribute.String("user.id", userID))

	created, err := h.orchestrator.Run(ctx, userID, planID)
	if err != nil {
		var planNotFound *domain.PlanNotFoundError
		if errors.As(err, &planNotFound) {
			writeError(w, http.StatusNotFound, "plan not found")
			return
		}
		h.logger.Error("reschedule run failed", slog.String("user_id", userID), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "reschedule run failed")
		return
	}
	if created == nil {
		created = []*domain.RescheduleProposal{}
	}

	writeJSON(w, http.StatusOK, RunResponse{Proposals: created, Count: len(created)})
}

// ListPending handles GET /api/v1/users/{userID}/reschedules/pending.
func (h *REST) ListPending(w http.ResponseWriter, r *http.Request) {
	userID, planID, ok := h.scopeParams(w, r)
	if !ok {
		return
	}

	pending, err := h.proposals.ListPending(r.Context(), userID, planID)
	if err != nil {
		h.logger.Error("pending list failed", slog.String("user_id", userID), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list pending reschedules")
		return
	}
	if pending == nil {
		pending = []*domain.PendingProposal{}
	}

	writeJSON(w, http.StatusOK, PendingResponse{Pending: pending, Count: len(pending)})
}

// AcceptProposal handles POST /api/v1/users/{userID}/reschedules/{proposalID}/accept.
func (h *REST) AcceptProposal(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.proposals.Accept)
}

// RejectProposal handles POST /api/v1/users/{userID}/reschedules/{proposalID}/reject.
func (h *REST) RejectProposal(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.proposals.Reject)
}

func (h *REST) decide(
	w http.ResponseWriter,
	r *http.Request,
	fn func(ctx context.Context, proposalID, userID string) (*domain.RescheduleProposal, error),
) {
	userID := chi.URLParam(r, "userID")
	proposalID := chi.URLParam(r, "proposalID")
	if uuid.Validate(userID) != nil {
		writeError(w, http.StatusBadRequest, "invalid user ID")
		return
	}
	if uuid.Validate(proposalID) != nil {
		writeError(w, http.StatusBadRequest, "invalid proposal ID")
		return
	}

	p, err := fn(r.Context(), proposalID, userID)
	if err != nil {
		var notPending *domain.ProposalNotPendingError
		if errors.As(err, &notPending) {
			writeError(w, http.StatusConflict, notPending.Error())
			return
		}
		h.logger.Error("proposal decision failed",
			slog.String("proposal_id", proposalID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to process decision")
		return
	}

	writeJSON(w, http.StatusOK, DecisionResponse{Proposal: p, Status: string(p.Status)})
}

// GetHistory handles GET /api/v1/users/{userID}/history.
func (h *REST) GetHistory(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if uuid.Validate(userID) != nil {
		writeError(w, http.StatusBadRequest, "invalid user ID")
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 500 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = n
	}

	entries, err := h.history.ListRecent(r.Context(), userID, limit)
	if err != nil {
		h.logger.Error("history list failed", slog.String("user_id", userID), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list history")
		return
	}
	if entries == nil {
		entries = []*domain.SchedulingHistoryEntry{}
	}

	writeJSON(w, http.StatusOK, HistoryResponse{Entries: entries, Count: len(entries)})
}

// Healthz handles GET /healthz.
func (h *REST) Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// Readyz handles GET /readyz — checks database connectivity.
func (h *REST) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		writeError(w, http.StatusServiceUnavailable, "database not ready")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}

// scopeParams extracts and validates the userID path param and the
// optional plan_id query param shared by the scope-aware endpoints.
func (h *REST) scopeParams(w http.ResponseWriter, r *http.Request) (string, *string, bool) {
	userID := chi.URLParam(r, "userID")
	if uuid.Validate(userID) != nil {
		writeError(w, http.StatusBadRequest, "invalid user ID")
		return "", nil, false
	}

	var planID *string
	if raw := r.URL.Query().Get("plan_id"); raw != "" {
		if uuid.Validate(raw) != nil {
			writeError(w, http.StatusBadRequest, "invalid plan ID")
			return "", nil, false
		}
		planID = &raw
	}
	return userID, planID, true
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
