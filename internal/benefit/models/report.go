package models

import (
	"time"
)

// Report is one delivery record in the benefit ledger.
//
// ProvidedAt is the calendar date the benefit was handed over, not the
// instant the record was persisted. It is the ledger's ordering key and the
// anchor for eligibility windows; it is never mutated after creation.
// LastUpdatedAt is refreshed on every mutation and is monotonically
// non-decreasing (creation counts as the first update).
type Report struct {
	ID            string
	BeneficiaryID string
	BenefitType   BenefitType
	Reason        string
	SocialWorker  string
	ProvidedAt    time.Time
	CreatedAt     time.Time
	LastUpdatedAt time.Time
	DeletedAt     *time.Time
}

// Deleted reports whether the record has been soft-deleted. Soft-deleted
// records stay in the ledger; whether they still count toward eligibility is
// a policy flag, not a property of the record.
func (r *Report) Deleted() bool {
	return r.DeletedAt != nil
}

// NarrativeUpdate carries the mutable fields of a report. Nil fields are
// left untouched; the update still refreshes LastUpdatedAt either way.
type NarrativeUpdate struct {
	Reason       *string
	SocialWorker *string
}

// DateOnly truncates t to a calendar date in UTC. Ledger dates are compared
// at day granularity, so every ProvidedAt and asOf value is normalized
// through this before use.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
