package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"amparo/internal/audit"
	"amparo/internal/benefit/models"
	"amparo/internal/benefit/store"
	dErrors "amparo/pkg/domain-errors"
)

// Updater mutates the narrative fields of existing reports and serves the
// read-only history surface. It never touches eligibility anchors: the
// beneficiary, the benefit type, and the hand-over date are immutable, so
// no update here can move a cooldown window.
type Updater struct {
	store   store.Store
	auditor *audit.Publisher
	logger  *slog.Logger
	now     func() time.Time
}

// UpdaterOption customizes an Updater.
type UpdaterOption func(*Updater)

// WithUpdaterClock overrides the time source, mainly for tests.
func WithUpdaterClock(now func() time.Time) UpdaterOption {
	return func(u *Updater) { u.now = now }
}

// WithUpdaterAuditor wires the audit trail publisher.
func WithUpdaterAuditor(p *audit.Publisher) UpdaterOption {
	return func(u *Updater) { u.auditor = p }
}

func NewUpdater(s store.Store, logger *slog.Logger, opts ...UpdaterOption) *Updater {
	u := &Updater{store: s, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// UpdateNarrative applies the narrative mutation and refreshes
// lastUpdatedAt, even for a field-level no-op.
func (u *Updater) UpdateNarrative(ctx context.Context, reportID string, update models.NarrativeUpdate) (*models.Report, error) {
	if reportID == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "report id is required")
	}
	report, err := u.store.UpdateNarrative(ctx, reportID, update, u.now().UTC())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "report "+reportID+" not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "narrative update failed")
	}
	u.emitAudit(ctx, audit.ActionReportUpdated, report, "narrative fields updated")
	return report, nil
}

// Remove soft-deletes a report. The record stays in the ledger; whether it
// still anchors cooldown windows is the engine's countDeleted flag.
func (u *Updater) Remove(ctx context.Context, reportID string) error {
	if reportID == "" {
		return dErrors.New(dErrors.CodeBadRequest, "report id is required")
	}
	report, err := u.store.FindByID(ctx, reportID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "report "+reportID+" not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "report lookup failed")
	}
	if err := u.store.Remove(ctx, reportID, u.now().UTC()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "report "+reportID+" not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "report removal failed")
	}
	u.emitAudit(ctx, audit.ActionReportRemoved, report, "soft deleted")
	return nil
}

// Get returns a single report by ID.
func (u *Updater) Get(ctx context.Context, reportID string) (*models.Report, error) {
	report, err := u.store.FindByID(ctx, reportID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "report "+reportID+" not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "report lookup failed")
	}
	return report, nil
}

// History lists a beneficiary's deliveries, newest first, optionally
// filtered by benefit type.
func (u *Updater) History(ctx context.Context, beneficiaryID string, benefitType models.BenefitType) ([]*models.Report, error) {
	if beneficiaryID == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "beneficiary id is required")
	}
	if benefitType != "" && !benefitType.IsValid() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "unsupported benefit type: "+benefitType.String())
	}
	reports, err := u.store.ListByBeneficiary(ctx, beneficiaryID, benefitType)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "history lookup failed")
	}
	return reports, nil
}

func (u *Updater) emitAudit(ctx context.Context, action audit.Action, report *models.Report, detail string) {
	if u.auditor == nil {
		return
	}
	event := audit.Event{
		Timestamp:     u.now().UTC(),
		Action:        action,
		BeneficiaryID: report.BeneficiaryID,
		BenefitType:   report.BenefitType.String(),
		ReportID:      report.ID,
		SocialWorker:  report.SocialWorker,
		Detail:        detail,
	}
	if err := u.auditor.Emit(ctx, event); err != nil {
		u.logger.ErrorContext(ctx, "audit emit failed", "action", string(action), "error", err.Error())
	}
}
