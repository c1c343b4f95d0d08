package models

import (
	"fmt"
	"time"
)

// NotEligibleError is returned when a registration falls inside the cooldown
// window for the beneficiary/type pair. It carries the computed next
// eligible date so callers can tell the beneficiary when to come back.
type NotEligibleError struct {
	BenefitType      BenefitType
	NextEligibleDate time.Time
}

func (e *NotEligibleError) Error() string {
	return fmt.Sprintf("beneficiary not eligible for %s before %s",
		e.BenefitType, e.NextEligibleDate.Format("2006-01-02"))
}

// ImmutableFieldError is returned when an update attempts to change an
// identity or eligibility anchor (beneficiary, benefit type, provided-at).
type ImmutableFieldError struct {
	Field string
}

func (e *ImmutableFieldError) Error() string {
	return fmt.Sprintf("field %q is immutable after creation", e.Field)
}
