package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"amparo/internal/benefit/models"
)

func newReport(id, beneficiary string, bt models.BenefitType, providedAt, createdAt time.Time) *models.Report {
	return &models.Report{
		ID:            id,
		BeneficiaryID: beneficiary,
		BenefitType:   bt,
		Reason:        "initial",
		SocialWorker:  "worker-1",
		ProvidedAt:    providedAt,
		CreatedAt:     createdAt,
		LastUpdatedAt: createdAt,
	}
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestMemoryStoreLastDelivery(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	t.Run("absent pair returns nil without error", func(t *testing.T) {
		r, err := s.LastDelivery(ctx, "b-1", models.CookingGas, false)
		require.NoError(t, err)
		assert.Nil(t, r)
	})

	t.Run("picks latest providedAt", func(t *testing.T) {
		now := time.Now().UTC()
		require.NoError(t, s.Append(ctx, newReport("r-1", "b-1", models.CookingGas, day(2025, time.March, 1), now)))
		require.NoError(t, s.Append(ctx, newReport("r-2", "b-1", models.CookingGas, day(2025, time.June, 1), now)))

		r, err := s.LastDelivery(ctx, "b-1", models.CookingGas, false)
		require.NoError(t, err)
		require.NotNil(t, r)
		assert.Equal(t, "r-2", r.ID)
	})

	t.Run("ties on providedAt break by createdAt", func(t *testing.T) {
		early := day(2025, time.July, 1).Add(10 * time.Hour)
		late := day(2025, time.July, 1).Add(11 * time.Hour)
		require.NoError(t, s.Append(ctx, newReport("r-3", "b-2", models.BirthKit, day(2025, time.July, 1), early)))
		require.NoError(t, s.Append(ctx, newReport("r-4", "b-2", models.BirthKit, day(2025, time.July, 1), late)))

		r, err := s.LastDelivery(ctx, "b-2", models.BirthKit, false)
		require.NoError(t, err)
		assert.Equal(t, "r-4", r.ID)
	})

	t.Run("pairs are isolated by type", func(t *testing.T) {
		r, err := s.LastDelivery(ctx, "b-1", models.FuneralAid, false)
		require.NoError(t, err)
		assert.Nil(t, r)
	})
}

func TestMemoryStoreSoftDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Now().UTC()

	require.NoError(t, s.Append(ctx, newReport("r-1", "b-1", models.CookingGas, day(2025, time.June, 1), now)))
	require.NoError(t, s.Remove(ctx, "r-1", now.Add(time.Minute)))

	t.Run("deleted record invisible to LastDelivery by default", func(t *testing.T) {
		r, err := s.LastDelivery(ctx, "b-1", models.CookingGas, false)
		require.NoError(t, err)
		assert.Nil(t, r)
	})

	t.Run("countDeleted keeps the record in the window", func(t *testing.T) {
		r, err := s.LastDelivery(ctx, "b-1", models.CookingGas, true)
		require.NoError(t, err)
		require.NotNil(t, r)
		assert.Equal(t, "r-1", r.ID)
		assert.True(t, r.Deleted())
	})

	t.Run("deleted record excluded from history listing", func(t *testing.T) {
		reports, err := s.ListByBeneficiary(ctx, "b-1", "")
		require.NoError(t, err)
		assert.Empty(t, reports)
	})

	t.Run("FindByID still returns the record", func(t *testing.T) {
		r, err := s.FindByID(ctx, "r-1")
		require.NoError(t, err)
		assert.True(t, r.Deleted())
	})

	t.Run("removing a missing report fails", func(t *testing.T) {
		err := s.Remove(ctx, "missing", now)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestMemoryStoreUpdateNarrative(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	created := time.Now().UTC()
	require.NoError(t, s.Append(ctx, newReport("r-1", "b-1", models.MonthlyBasket, day(2025, time.May, 5), created)))

	t.Run("updates only provided fields and stamps lastUpdatedAt", func(t *testing.T) {
		reason := "family situation reassessed"
		later := created.Add(time.Hour)
		r, err := s.UpdateNarrative(ctx, "r-1", models.NarrativeUpdate{Reason: &reason}, later)
		require.NoError(t, err)
		assert.Equal(t, reason, r.Reason)
		assert.Equal(t, "worker-1", r.SocialWorker)
		assert.True(t, r.LastUpdatedAt.Equal(later))
		assert.True(t, r.ProvidedAt.Equal(day(2025, time.May, 5)))
	})

	t.Run("no-op update still touches the timestamp", func(t *testing.T) {
		later := created.Add(2 * time.Hour)
		r, err := s.UpdateNarrative(ctx, "r-1", models.NarrativeUpdate{}, later)
		require.NoError(t, err)
		assert.True(t, r.LastUpdatedAt.Equal(later))
	})

	t.Run("missing report returns ErrNotFound", func(t *testing.T) {
		_, err := s.UpdateNarrative(ctx, "missing", models.NarrativeUpdate{}, created)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestMemoryStoreListOrdering(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Now().UTC()

	require.NoError(t, s.Append(ctx, newReport("r-1", "b-1", models.MonthlyBasket, day(2025, time.January, 10), now)))
	require.NoError(t, s.Append(ctx, newReport("r-2", "b-1", models.CookingGas, day(2025, time.March, 2), now)))
	require.NoError(t, s.Append(ctx, newReport("r-3", "b-1", models.MonthlyBasket, day(2025, time.February, 10), now)))
	require.NoError(t, s.Append(ctx, newReport("r-4", "b-2", models.MonthlyBasket, day(2025, time.February, 1), now)))

	t.Run("all types, providedAt descending", func(t *testing.T) {
		reports, err := s.ListByBeneficiary(ctx, "b-1", "")
		require.NoError(t, err)
		require.Len(t, reports, 3)
		assert.Equal(t, []string{"r-2", "r-3", "r-1"}, []string{reports[0].ID, reports[1].ID, reports[2].ID})
	})

	t.Run("filtered by type", func(t *testing.T) {
		reports, err := s.ListByBeneficiary(ctx, "b-1", models.MonthlyBasket)
		require.NoError(t, err)
		require.Len(t, reports, 2)
		assert.Equal(t, "r-3", reports[0].ID)
	})
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Now().UTC()
	require.NoError(t, s.Append(ctx, newReport("r-1", "b-1", models.CookingGas, day(2025, time.June, 1), now)))

	r, err := s.FindByID(ctx, "r-1")
	require.NoError(t, err)
	r.Reason = "mutated by caller"

	again, err := s.FindByID(ctx, "r-1")
	require.NoError(t, err)
	assert.Equal(t, "initial", again.Reason)
}

func TestMemoryStoreConcurrentAppends(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Now().UTC()

	const goroutines = 100
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func(i int) {
			defer wg.Done()
			r := newReport(fmt.Sprintf("r-%d", i), "b-1", models.MonthlyBasket, day(2025, time.June, 1+i%28), now)
			assert.NoError(t, s.Append(ctx, r))
		}(i)
	}
	wg.Wait()

	reports, err := s.ListByBeneficiary(ctx, "b-1", models.MonthlyBasket)
	require.NoError(t, err)
	assert.Len(t, reports, goroutines)
}
