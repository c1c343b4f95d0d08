// Package handler is the thin HTTP layer over the benefit ledger. It
// decodes requests, delegates to services, and translates domain errors to
// transport responses; no business logic lives here.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"amparo/internal/benefit/models"
	"amparo/internal/benefit/service"
	"amparo/internal/platform/middleware"
	dErrors "amparo/pkg/domain-errors"
)

const dateLayout = "2006-01-02"

// Engine is the eligibility read surface consumed by the handler.
type Engine interface {
	Evaluate(ctx context.Context, beneficiaryID string, benefitType models.BenefitType, asOf time.Time) (*models.EligibilityDecision, error)
}

// Registrar records deliveries.
type Registrar interface {
	Register(ctx context.Context, req service.RegisterRequest) (*models.Report, error)
}

// Updater mutates narrative fields and serves report reads.
type Updater interface {
	UpdateNarrative(ctx context.Context, reportID string, update models.NarrativeUpdate) (*models.Report, error)
	Remove(ctx context.Context, reportID string) error
	Get(ctx context.Context, reportID string) (*models.Report, error)
	History(ctx context.Context, beneficiaryID string, benefitType models.BenefitType) ([]*models.Report, error)
}

type Handler struct {
	logger    *slog.Logger
	engine    Engine
	registrar Registrar
	updater   Updater
	health    func(ctx context.Context) error
}

func New(engine Engine, registrar Registrar, updater Updater, logger *slog.Logger, health func(ctx context.Context) error) *Handler {
	return &Handler{
		logger:    logger,
		engine:    engine,
		registrar: registrar,
		updater:   updater,
		health:    health,
	}
}

// Register mounts the ledger routes with the shared middleware chain.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.Recovery(h.logger))
		r.Use(middleware.RequestID)
		r.Use(middleware.Logger(h.logger))
		r.Use(middleware.Timeout(30 * time.Second))
		r.Use(middleware.ContentTypeJSON)

		r.Post("/reports", h.handleRegister)
		r.Get("/reports/{reportID}", h.handleGetReport)
		r.Patch("/reports/{reportID}", h.handleUpdateReport)
		r.Delete("/reports/{reportID}", h.handleRemoveReport)
		r.Get("/beneficiaries/{beneficiaryID}/reports", h.handleHistory)
		r.Get("/beneficiaries/{beneficiaryID}/eligibility/{benefitType}", h.handleEvaluate)
	})
	r.Get("/healthz", h.handleHealth)
}

type registerRequest struct {
	BeneficiaryID string `json:"beneficiary_id"`
	BenefitType   string `json:"benefit_type"`
	Reason        string `json:"reason"`
	SocialWorker  string `json:"social_worker"`
	ProvidedAt    string `json:"provided_at"`
}

type reportResponse struct {
	ID            string     `json:"id"`
	BeneficiaryID string     `json:"beneficiary_id"`
	BenefitType   string     `json:"benefit_type"`
	Reason        string     `json:"reason,omitempty"`
	SocialWorker  string     `json:"social_worker,omitempty"`
	ProvidedAt    string     `json:"provided_at"`
	CreatedAt     time.Time  `json:"created_at"`
	LastUpdatedAt time.Time  `json:"last_updated_at"`
	DeletedAt     *time.Time `json:"deleted_at,omitempty"`
}

func toReportResponse(r *models.Report) reportResponse {
	return reportResponse{
		ID:            r.ID,
		BeneficiaryID: r.BeneficiaryID,
		BenefitType:   r.BenefitType.String(),
		Reason:        r.Reason,
		SocialWorker:  r.SocialWorker,
		ProvidedAt:    r.ProvidedAt.Format(dateLayout),
		CreatedAt:     r.CreatedAt,
		LastUpdatedAt: r.LastUpdatedAt,
		DeletedAt:     r.DeletedAt,
	}
}

type decisionResponse struct {
	Eligible         bool    `json:"eligible"`
	LastDeliveryDate *string `json:"last_delivery_date,omitempty"`
	NextEligibleDate *string `json:"next_eligible_date,omitempty"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	benefitType, err := models.ParseBenefitType(req.BenefitType)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	providedAt, err := time.Parse(dateLayout, req.ProvidedAt)
	if err != nil {
		h.writeError(w, r, dErrors.New(dErrors.CodeBadRequest, "provided_at must be a YYYY-MM-DD date"))
		return
	}

	report, err := h.registrar.Register(r.Context(), service.RegisterRequest{
		BeneficiaryID: req.BeneficiaryID,
		BenefitType:   benefitType,
		Reason:        req.Reason,
		SocialWorker:  req.SocialWorker,
		ProvidedAt:    providedAt,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, toReportResponse(report))
}

func (h *Handler) handleGetReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.updater.Get(r.Context(), chi.URLParam(r, "reportID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toReportResponse(report))
}

// updateRequest deliberately decodes the anchor fields too: a client that
// tries to move them gets an explicit immutable-field rejection instead of
// silent ignoring.
type updateRequest struct {
	Reason        *string `json:"reason"`
	SocialWorker  *string `json:"social_worker"`
	BeneficiaryID *string `json:"beneficiary_id"`
	BenefitType   *string `json:"benefit_type"`
	ProvidedAt    *string `json:"provided_at"`
}

func (h *Handler) handleUpdateReport(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	switch {
	case req.BeneficiaryID != nil:
		h.writeError(w, r, &models.ImmutableFieldError{Field: "beneficiary_id"})
		return
	case req.BenefitType != nil:
		h.writeError(w, r, &models.ImmutableFieldError{Field: "benefit_type"})
		return
	case req.ProvidedAt != nil:
		h.writeError(w, r, &models.ImmutableFieldError{Field: "provided_at"})
		return
	}

	report, err := h.updater.UpdateNarrative(r.Context(), chi.URLParam(r, "reportID"), models.NarrativeUpdate{
		Reason:       req.Reason,
		SocialWorker: req.SocialWorker,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toReportResponse(report))
}

func (h *Handler) handleRemoveReport(w http.ResponseWriter, r *http.Request) {
	if err := h.updater.Remove(r.Context(), chi.URLParam(r, "reportID")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	var benefitType models.BenefitType
	if raw := r.URL.Query().Get("type"); raw != "" {
		parsed, err := models.ParseBenefitType(raw)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		benefitType = parsed
	}

	reports, err := h.updater.History(r.Context(), chi.URLParam(r, "beneficiaryID"), benefitType)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]reportResponse, 0, len(reports))
	for _, report := range reports {
		out = append(out, toReportResponse(report))
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	benefitType, err := models.ParseBenefitType(chi.URLParam(r, "benefitType"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	asOf := time.Now().UTC()
	if raw := r.URL.Query().Get("asOf"); raw != "" {
		asOf, err = time.Parse(dateLayout, raw)
		if err != nil {
			h.writeError(w, r, dErrors.New(dErrors.CodeBadRequest, "asOf must be a YYYY-MM-DD date"))
			return
		}
	}

	decision, err := h.engine.Evaluate(r.Context(), chi.URLParam(r, "beneficiaryID"), benefitType, asOf)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	resp := decisionResponse{Eligible: decision.Eligible}
	if decision.LastDeliveryDate != nil {
		s := decision.LastDeliveryDate.Format(dateLayout)
		resp.LastDeliveryDate = &s
	}
	if decision.NextEligibleDate != nil {
		s := decision.NextEligibleDate.Format(dateLayout)
		resp.NextEligibleDate = &s
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health(r.Context()); err != nil {
			h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type errorResponse struct {
	Error            string `json:"error"`
	Message          string `json:"message,omitempty"`
	NextEligibleDate string `json:"next_eligible_date,omitempty"`
	Field            string `json:"field,omitempty"`
}

// writeError centralizes domain error translation so every route returns
// the same JSON envelope.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var notEligible *models.NotEligibleError
	if errors.As(err, &notEligible) {
		h.writeJSON(w, http.StatusConflict, errorResponse{
			Error:            string(dErrors.CodeNotEligible),
			Message:          notEligible.Error(),
			NextEligibleDate: notEligible.NextEligibleDate.Format(dateLayout),
		})
		return
	}
	var immutable *models.ImmutableFieldError
	if errors.As(err, &immutable) {
		h.writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error:   string(dErrors.CodeImmutableField),
			Message: immutable.Error(),
			Field:   immutable.Field,
		})
		return
	}

	code := dErrors.CodeOf(err)
	status := dErrors.ToHTTPStatus(code)
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed",
			"request_id", middleware.GetRequestID(r.Context()),
			"path", r.URL.Path,
			"error", err.Error(),
		)
	}
	h.writeJSON(w, status, errorResponse{Error: string(code)})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("encode response", "error", err.Error())
	}
}
