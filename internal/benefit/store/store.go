// Package store persists the benefit ledger: one durable record per
// delivery, keyed by report ID, with a secondary access path by
// (beneficiary, benefit type) ordered by provided-at for last-delivery
// lookups.
package store

import (
	"context"
	"errors"
	"time"

	"amparo/internal/benefit/models"
)

// ErrNotFound keeps store-level 404s consistent across the in-memory and
// PostgreSQL implementations. Services translate it into coded errors.
var ErrNotFound = errors.New("report not found")

// Store is the append-and-query interface over the ledger. Implementations
// are pure I/O; eligibility rules and timestamp assignment belong to the
// service layer.
type Store interface {
	// Append persists a fully-populated report. The caller assigns the ID
	// and timestamps.
	Append(ctx context.Context, report *models.Report) error

	// LastDelivery returns the most recent delivery for the pair, ordered
	// by provided-at with created-at breaking ties. A nil report with a nil
	// error means the beneficiary never received this benefit type.
	// Soft-deleted records are included only when countDeleted is set.
	LastDelivery(ctx context.Context, beneficiaryID string, benefitType models.BenefitType, countDeleted bool) (*models.Report, error)

	// UpdateNarrative mutates the narrative fields of an existing report and
	// stamps lastUpdatedAt. Returns ErrNotFound for unknown reports.
	UpdateNarrative(ctx context.Context, reportID string, update models.NarrativeUpdate, now time.Time) (*models.Report, error)

	// FindByID returns a single report, deleted or not.
	FindByID(ctx context.Context, reportID string) (*models.Report, error)

	// ListByBeneficiary returns the beneficiary's history ordered by
	// provided-at descending. An empty benefitType means all types.
	// Soft-deleted records are excluded; this feeds history display, not
	// eligibility.
	ListByBeneficiary(ctx context.Context, beneficiaryID string, benefitType models.BenefitType) ([]*models.Report, error)

	// Remove soft-deletes a report, stamping deletedAt and lastUpdatedAt.
	// The record stays in the ledger. Returns ErrNotFound for unknown
	// reports.
	Remove(ctx context.Context, reportID string, now time.Time) error
}

// TxRunner provides the per-(beneficiary, benefit type) exclusive section
// the registrar's check-then-append sequence requires. The callback sees a
// Store whose reads and writes are serialized against every other RunInTx
// call for the same pair; different pairs never block one another.
type TxRunner interface {
	RunInTx(ctx context.Context, beneficiaryID string, benefitType models.BenefitType, fn func(Store) error) error
}
