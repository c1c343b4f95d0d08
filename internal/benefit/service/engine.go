// Package service holds the eligibility engine, the report registrar, and
// the narrative updater. Handlers stay thin; eligibility rules and the
// check-then-append discipline live here.
package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"amparo/internal/benefit/metrics"
	"amparo/internal/benefit/models"
	"amparo/internal/benefit/policy"
	"amparo/internal/benefit/store"
	dErrors "amparo/pkg/domain-errors"
)

// Engine answers "is this beneficiary eligible for this benefit type as of
// a given date". It is a pure read: a positive answer is a snapshot, not a
// reservation, which is why the registrar re-evaluates inside its own
// exclusive section.
type Engine struct {
	store        store.Store
	policy       *policy.Policy
	countDeleted bool
	metrics      *metrics.Metrics
	tracer       trace.Tracer
}

// NewEngine builds the engine. countDeleted controls whether soft-deleted
// deliveries still anchor cooldown windows; the business rule is unresolved,
// so it is deployment configuration rather than code.
func NewEngine(s store.Store, p *policy.Policy, countDeleted bool, m *metrics.Metrics) *Engine {
	return &Engine{
		store:        s,
		policy:       p,
		countDeleted: countDeleted,
		metrics:      m,
		tracer:       otel.Tracer("amparo/benefit"),
	}
}

// Evaluate computes the eligibility decision for the pair as of the given
// date. Absent history means always eligible.
func (e *Engine) Evaluate(ctx context.Context, beneficiaryID string, benefitType models.BenefitType, asOf time.Time) (*models.EligibilityDecision, error) {
	ctx, span := e.tracer.Start(ctx, "engine.evaluate",
		trace.WithAttributes(attribute.String("benefit.type", benefitType.String())))
	defer span.End()

	start := time.Now()
	defer func() {
		if e.metrics != nil {
			e.metrics.ObserveEvaluateDuration(benefitType.String(), time.Since(start).Seconds())
		}
	}()

	decision, err := e.evaluate(ctx, e.store, beneficiaryID, benefitType, asOf)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Bool("eligibility.eligible", decision.Eligible))
	return decision, nil
}

// evaluate is the shared core, also invoked by the registrar against the
// transaction-bound store inside its exclusive section.
func (e *Engine) evaluate(ctx context.Context, s store.Store, beneficiaryID string, benefitType models.BenefitType, asOf time.Time) (*models.EligibilityDecision, error) {
	if beneficiaryID == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "beneficiary id is required")
	}
	if !benefitType.IsValid() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "unsupported benefit type: "+benefitType.String())
	}
	asOf = models.DateOnly(asOf)

	last, err := s.LastDelivery(ctx, beneficiaryID, benefitType, e.countDeleted)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "ledger lookup failed")
	}
	if last == nil {
		return &models.EligibilityDecision{Eligible: true}, nil
	}

	lastDate := models.DateOnly(last.ProvidedAt)
	next := e.policy.NextEligibleDate(lastDate, benefitType)
	return &models.EligibilityDecision{
		Eligible:         !asOf.Before(next),
		LastDeliveryDate: &lastDate,
		NextEligibleDate: &next,
	}, nil
}
