package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"amparo/internal/benefit/models"
	dErrors "amparo/pkg/domain-errors"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNewValidatesMappingEagerly(t *testing.T) {
	t.Run("defaults are complete", func(t *testing.T) {
		p, err := New(DefaultCooldowns())
		require.NoError(t, err)
		for _, bt := range models.AllBenefitTypes {
			assert.GreaterOrEqual(t, p.CooldownMonths(bt), 1, string(bt))
		}
	})

	t.Run("missing type is a configuration error", func(t *testing.T) {
		cooldowns := DefaultCooldowns()
		delete(cooldowns, models.FuneralAid)
		_, err := New(cooldowns)
		require.Error(t, err)
		assert.True(t, dErrors.Is(err, dErrors.CodeConfiguration))
	})

	t.Run("zero cooldown is rejected", func(t *testing.T) {
		cooldowns := DefaultCooldowns()
		cooldowns[models.CookingGas] = 0
		_, err := New(cooldowns)
		require.Error(t, err)
		assert.True(t, dErrors.Is(err, dErrors.CodeConfiguration))
	})

	t.Run("unknown type is rejected", func(t *testing.T) {
		cooldowns := DefaultCooldowns()
		cooldowns[models.BenefitType("WINTER_COAT")] = 2
		_, err := New(cooldowns)
		require.Error(t, err)
		assert.True(t, dErrors.Is(err, dErrors.CodeConfiguration))
	})

	t.Run("mapping is copied, not aliased", func(t *testing.T) {
		cooldowns := DefaultCooldowns()
		p, err := New(cooldowns)
		require.NoError(t, err)
		cooldowns[models.QuarterlyBasket] = 99
		assert.Equal(t, 3, p.CooldownMonths(models.QuarterlyBasket))
	})
}

func TestNextEligibleDate(t *testing.T) {
	p, err := New(DefaultCooldowns())
	require.NoError(t, err)

	cases := []struct {
		name string
		last time.Time
		bt   models.BenefitType
		want time.Time
	}{
		{"plain month add", date(2025, time.June, 1), models.CookingGas, date(2025, time.July, 1)},
		{"quarterly crosses quarter", date(2025, time.January, 1), models.QuarterlyBasket, date(2025, time.April, 1)},
		{"jan 31 clamps to feb 28", date(2025, time.January, 31), models.MonthlyBasket, date(2025, time.February, 28)},
		{"jan 31 clamps to feb 29 in leap year", date(2024, time.January, 31), models.MonthlyBasket, date(2024, time.February, 29)},
		{"oct 31 quarterly clamps to jan 31", date(2025, time.October, 31), models.QuarterlyBasket, date(2026, time.January, 31)},
		{"nov 30 quarterly crosses year to feb 28", date(2025, time.November, 30), models.QuarterlyBasket, date(2026, time.February, 28)},
		{"funeral aid spans a year", date(2025, time.March, 15), models.FuneralAid, date(2026, time.March, 15)},
		{"birth kit nine months", date(2025, time.May, 31), models.BirthKit, date(2026, time.February, 28)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := p.NextEligibleDate(tc.last, tc.bt)
			assert.True(t, got.Equal(tc.want), "got %s want %s", got, tc.want)
		})
	}
}

func TestNextEligibleDateNormalizesInputToDate(t *testing.T) {
	p, err := New(DefaultCooldowns())
	require.NoError(t, err)

	// A timestamp late in the day must not leak time-of-day into the window.
	late := time.Date(2025, time.June, 1, 23, 45, 12, 0, time.UTC)
	got := p.NextEligibleDate(late, models.CookingGas)
	assert.True(t, got.Equal(date(2025, time.July, 1)), "got %s", got)
}
