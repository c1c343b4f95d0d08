// Package policy holds the per-type eligibility rules: a cooldown expressed
// in calendar months and the date arithmetic that derives the next eligible
// date from the last delivery.
package policy

import (
	"fmt"
	"time"

	"amparo/internal/benefit/models"
	dErrors "amparo/pkg/domain-errors"
)

// Policy is the immutable rule set for all benefit types. The type→cooldown
// mapping is total and fixed at construction; an unmapped type is a
// configuration error surfaced at startup, never at request time.
type Policy struct {
	cooldowns map[models.BenefitType]int
}

// DefaultCooldowns are the business defaults, in calendar months. The
// monthly-basket value is deliberately configuration-driven (see Config
// overrides): the business rule is disputed between 1 and 3 months, so
// deployments decide.
func DefaultCooldowns() map[models.BenefitType]int {
	return map[models.BenefitType]int{
		models.MonthlyBasket:   1,
		models.QuarterlyBasket: 3,
		models.BirthKit:        9,
		models.CookingGas:      1,
		models.FuneralAid:      12,
	}
}

// New validates the cooldown mapping eagerly: every supported type must be
// present with a cooldown of at least one month, and no unknown types are
// allowed.
func New(cooldowns map[models.BenefitType]int) (*Policy, error) {
	for _, t := range models.AllBenefitTypes {
		months, ok := cooldowns[t]
		if !ok {
			return nil, dErrors.New(dErrors.CodeConfiguration,
				fmt.Sprintf("no cooldown configured for benefit type %s", t))
		}
		if months < 1 {
			return nil, dErrors.New(dErrors.CodeConfiguration,
				fmt.Sprintf("cooldown for %s must be at least 1 month, got %d", t, months))
		}
	}
	for t := range cooldowns {
		if !t.IsValid() {
			return nil, dErrors.New(dErrors.CodeConfiguration,
				fmt.Sprintf("cooldown configured for unknown benefit type %s", t))
		}
	}
	copied := make(map[models.BenefitType]int, len(cooldowns))
	for t, m := range cooldowns {
		copied[t] = m
	}
	return &Policy{cooldowns: copied}, nil
}

// CooldownMonths returns the configured cooldown for the type. Construction
// guarantees the mapping is total, so lookups cannot miss.
func (p *Policy) CooldownMonths(t models.BenefitType) int {
	return p.cooldowns[t]
}

// NextEligibleDate advances lastProvidedAt by the type's cooldown using
// calendar-month arithmetic. The day of month is preserved where possible;
// when the target month is shorter, the date clamps to its last day
// (Jan 31 + 1 month → Feb 28, or Feb 29 in leap years).
func (p *Policy) NextEligibleDate(lastProvidedAt time.Time, t models.BenefitType) time.Time {
	return addMonthsClamped(models.DateOnly(lastProvidedAt), p.cooldowns[t])
}

// addMonthsClamped implements clamping month addition. time.Time.AddDate
// normalizes overflow (Jan 31 + 1 month → Mar 2/3), which would silently
// extend cooldowns, so the target day is clamped explicitly.
func addMonthsClamped(d time.Time, months int) time.Time {
	year, month, day := d.Date()
	m := int(month) + months
	year += (m - 1) / 12
	month = time.Month((m-1)%12 + 1)
	if last := daysIn(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func daysIn(year int, month time.Month) int {
	// Day zero of the next month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
