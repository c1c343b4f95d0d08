package models

import "time"

// EligibilityDecision is the point-in-time answer to "can this beneficiary
// receive this benefit type as of a given date". It is computed on every
// query and never persisted; the ledger can change between two evaluations,
// so a positive decision is a snapshot, not a reservation.
type EligibilityDecision struct {
	Eligible         bool
	LastDeliveryDate *time.Time
	NextEligibleDate *time.Time
}
