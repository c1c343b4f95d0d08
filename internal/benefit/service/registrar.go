package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"amparo/internal/audit"
	"amparo/internal/beneficiary"
	"amparo/internal/benefit/metrics"
	"amparo/internal/benefit/models"
	"amparo/internal/benefit/store"
	dErrors "amparo/pkg/domain-errors"
)

// Retry budget for transient storage conflicts. Exhaustion surfaces a
// conflict error to the caller; the loop itself never produces duplicates
// because every failed attempt rolls back before a new ID is minted.
const (
	maxConflictRetries = 3
	retryBackoffBase   = 25 * time.Millisecond
)

// RegisterRequest carries the inputs for recording one delivery. ProvidedAt
// is the hand-over date; it may lie in the past for back-dated registration
// of deliveries that already happened.
type RegisterRequest struct {
	BeneficiaryID string
	BenefitType   models.BenefitType
	Reason        string
	SocialWorker  string
	ProvidedAt    time.Time
}

// Registrar is the transactional use case: it re-validates eligibility and
// atomically appends a ledger entry under the per-(beneficiary, type)
// exclusivity boundary, so two concurrent registrations cannot both consume
// one cooldown window.
type Registrar struct {
	engine    *Engine
	tx        store.TxRunner
	directory beneficiary.Directory
	auditor   *audit.Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// RegistrarOption customizes a Registrar.
type RegistrarOption func(*Registrar)

// WithClock overrides the registrar's time source, mainly for tests.
func WithClock(now func() time.Time) RegistrarOption {
	return func(r *Registrar) { r.now = now }
}

// WithAuditor wires the audit trail publisher.
func WithAuditor(p *audit.Publisher) RegistrarOption {
	return func(r *Registrar) { r.auditor = p }
}

func NewRegistrar(engine *Engine, tx store.TxRunner, directory beneficiary.Directory, logger *slog.Logger, m *metrics.Metrics, opts ...RegistrarOption) *Registrar {
	r := &Registrar{
		engine:    engine,
		tx:        tx,
		directory: directory,
		metrics:   m,
		logger:    logger,
		tracer:    otel.Tracer("amparo/benefit"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register records a delivery. Eligibility is evaluated as of ProvidedAt,
// then re-checked inside the exclusive section before the append; a caller
// that already called Evaluate gets no shortcut, because that snapshot may
// be stale by the time the write happens.
func (r *Registrar) Register(ctx context.Context, req RegisterRequest) (*models.Report, error) {
	ctx, span := r.tracer.Start(ctx, "registrar.register",
		trace.WithAttributes(attribute.String("benefit.type", req.BenefitType.String())))
	defer span.End()

	if req.BeneficiaryID == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "beneficiary id is required")
	}
	if !req.BenefitType.IsValid() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "unsupported benefit type: "+req.BenefitType.String())
	}
	if req.ProvidedAt.IsZero() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "provided-at date is required")
	}
	providedAt := models.DateOnly(req.ProvidedAt)

	exists, err := r.directory.Exists(ctx, req.BeneficiaryID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "beneficiary lookup failed")
	}
	if !exists {
		return nil, dErrors.New(dErrors.CodeUnknownBeneficiary, "beneficiary "+req.BeneficiaryID+" is not registered")
	}

	// Cheap pre-check outside the lock. Rejecting here avoids contending on
	// the pair's exclusive section for requests that were never going to
	// succeed; the authoritative check is repeated inside it.
	decision, err := r.engine.Evaluate(ctx, req.BeneficiaryID, req.BenefitType, providedAt)
	if err != nil {
		return nil, err
	}
	if !decision.Eligible {
		r.metrics.IncEligibilityDenied(req.BenefitType.String())
		return nil, &models.NotEligibleError{BenefitType: req.BenefitType, NextEligibleDate: *decision.NextEligibleDate}
	}

	var report *models.Report
	for attempt := 0; ; attempt++ {
		report, err = r.registerOnce(ctx, req, providedAt)
		if err == nil {
			break
		}
		if !errors.Is(err, store.ErrConflict) || attempt >= maxConflictRetries {
			if errors.Is(err, store.ErrConflict) {
				span.RecordError(err)
				return nil, dErrors.Wrap(err, dErrors.CodeConflict, "ledger conflict persisted across retries")
			}
			var notEligible *models.NotEligibleError
			if errors.As(err, &notEligible) {
				r.metrics.IncEligibilityDenied(req.BenefitType.String())
			}
			return nil, err
		}
		r.metrics.IncConflictRetries()
		r.logger.WarnContext(ctx, "retrying ledger append after conflict",
			"beneficiary_id", req.BeneficiaryID,
			"benefit_type", req.BenefitType.String(),
			"attempt", attempt+1,
		)
		select {
		case <-time.After(retryBackoffBase << attempt):
		case <-ctx.Done():
			return nil, dErrors.Wrap(ctx.Err(), dErrors.CodeTimeout, "registration cancelled during retry")
		}
	}

	r.metrics.IncReportsRegistered(req.BenefitType.String())
	span.SetAttributes(attribute.String("report.id", report.ID))
	r.emitAudit(ctx, audit.ActionReportRegistered, report, "")
	return report, nil
}

// registerOnce runs one attempt of the re-check-and-append sequence inside
// the pair's exclusive section.
func (r *Registrar) registerOnce(ctx context.Context, req RegisterRequest, providedAt time.Time) (*models.Report, error) {
	var report *models.Report
	err := r.tx.RunInTx(ctx, req.BeneficiaryID, req.BenefitType, func(txStore store.Store) error {
		// The second writer in a race re-observes the first writer's
		// just-committed record here and fails cleanly.
		decision, err := r.engine.evaluate(ctx, txStore, req.BeneficiaryID, req.BenefitType, providedAt)
		if err != nil {
			return err
		}
		if !decision.Eligible {
			return &models.NotEligibleError{BenefitType: req.BenefitType, NextEligibleDate: *decision.NextEligibleDate}
		}

		now := r.now().UTC()
		report = &models.Report{
			ID:            uuid.NewString(),
			BeneficiaryID: req.BeneficiaryID,
			BenefitType:   req.BenefitType,
			Reason:        req.Reason,
			SocialWorker:  req.SocialWorker,
			ProvidedAt:    providedAt,
			CreatedAt:     now,
			LastUpdatedAt: now,
		}
		return txStore.Append(ctx, report)
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

func (r *Registrar) emitAudit(ctx context.Context, action audit.Action, report *models.Report, detail string) {
	if r.auditor == nil {
		return
	}
	event := audit.Event{
		Timestamp:     r.now().UTC(),
		Action:        action,
		BeneficiaryID: report.BeneficiaryID,
		BenefitType:   report.BenefitType.String(),
		ReportID:      report.ID,
		SocialWorker:  report.SocialWorker,
		Detail:        detail,
	}
	if err := r.auditor.Emit(ctx, event); err != nil {
		// The ledger write already committed; losing one trail entry must
		// not fail the request.
		r.logger.ErrorContext(ctx, "audit emit failed", "action", string(action), "error", err.Error())
	}
}
