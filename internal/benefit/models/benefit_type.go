package models

import (
	dErrors "amparo/pkg/domain-errors"
)

// BenefitType identifies one of the eventual-aid categories. The set is
// closed: every type maps to exactly one eligibility cooldown, fixed at
// startup.
//
// Usage: construct via ParseBenefitType at trust boundaries; direct casting
// bypasses validation.
type BenefitType string

const (
	MonthlyBasket   BenefitType = "MONTHLY_BASKET"
	QuarterlyBasket BenefitType = "QUARTERLY_BASKET"
	BirthKit        BenefitType = "BIRTH_KIT"
	CookingGas      BenefitType = "COOKING_GAS"
	FuneralAid      BenefitType = "FUNERAL_AID"
)

// AllBenefitTypes is the single source of truth for the supported types.
// Policy configuration is validated against this list at startup.
var AllBenefitTypes = []BenefitType{
	MonthlyBasket,
	QuarterlyBasket,
	BirthKit,
	CookingGas,
	FuneralAid,
}

var validBenefitTypes = func() map[BenefitType]bool {
	m := make(map[BenefitType]bool, len(AllBenefitTypes))
	for _, t := range AllBenefitTypes {
		m[t] = true
	}
	return m
}()

// ParseBenefitType constructs a BenefitType from external input.
func ParseBenefitType(s string) (BenefitType, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeBadRequest, "benefit type cannot be empty")
	}
	t := BenefitType(s)
	if !t.IsValid() {
		return "", dErrors.New(dErrors.CodeBadRequest, "unsupported benefit type: "+s)
	}
	return t, nil
}

// IsValid checks if the type is one of the supported enum values.
func (t BenefitType) IsValid() bool {
	return validBenefitTypes[t]
}

func (t BenefitType) String() string {
	return string(t)
}
