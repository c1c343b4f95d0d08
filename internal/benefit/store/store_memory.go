package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"amparo/internal/benefit/models"
)

// MemoryStore keeps the ledger in process memory. It backs unit tests and
// single-node deployments and intentionally favors clarity over performance.
type MemoryStore struct {
	mu      sync.RWMutex
	byID    map[string]*models.Report
	history map[pairKey][]*models.Report
}

type pairKey struct {
	beneficiaryID string
	benefitType   models.BenefitType
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:    make(map[string]*models.Report),
		history: make(map[pairKey][]*models.Report),
	}
}

func (s *MemoryStore) Append(_ context.Context, report *models.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := cloneReport(report)
	s.byID[stored.ID] = stored
	key := pairKey{stored.BeneficiaryID, stored.BenefitType}
	s.history[key] = append(s.history[key], stored)
	return nil
}

func (s *MemoryStore) LastDelivery(_ context.Context, beneficiaryID string, benefitType models.BenefitType, countDeleted bool) (*models.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var last *models.Report
	for _, r := range s.history[pairKey{beneficiaryID, benefitType}] {
		if r.Deleted() && !countDeleted {
			continue
		}
		if last == nil || after(r, last) {
			last = r
		}
	}
	if last == nil {
		return nil, nil
	}
	return cloneReport(last), nil
}

// after orders by provided-at, breaking ties with created-at.
func after(a, b *models.Report) bool {
	if !a.ProvidedAt.Equal(b.ProvidedAt) {
		return a.ProvidedAt.After(b.ProvidedAt)
	}
	return a.CreatedAt.After(b.CreatedAt)
}

func (s *MemoryStore) UpdateNarrative(_ context.Context, reportID string, update models.NarrativeUpdate, now time.Time) (*models.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.byID[reportID]
	if !ok {
		return nil, ErrNotFound
	}
	if update.Reason != nil {
		r.Reason = *update.Reason
	}
	if update.SocialWorker != nil {
		r.SocialWorker = *update.SocialWorker
	}
	// Every accepted update touches the timestamp, even a no-op one.
	r.LastUpdatedAt = now
	return cloneReport(r), nil
}

func (s *MemoryStore) FindByID(_ context.Context, reportID string) (*models.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if r, ok := s.byID[reportID]; ok {
		return cloneReport(r), nil
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) ListByBeneficiary(_ context.Context, beneficiaryID string, benefitType models.BenefitType) ([]*models.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Report
	for key, reports := range s.history {
		if key.beneficiaryID != beneficiaryID {
			continue
		}
		if benefitType != "" && key.benefitType != benefitType {
			continue
		}
		for _, r := range reports {
			if r.Deleted() {
				continue
			}
			out = append(out, cloneReport(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return after(out[i], out[j]) })
	return out, nil
}

func (s *MemoryStore) Remove(_ context.Context, reportID string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.byID[reportID]
	if !ok || r.Deleted() {
		return ErrNotFound
	}
	deletedAt := now
	r.DeletedAt = &deletedAt
	r.LastUpdatedAt = now
	return nil
}

func cloneReport(r *models.Report) *models.Report {
	c := *r
	if r.DeletedAt != nil {
		t := *r.DeletedAt
		c.DeletedAt = &t
	}
	return &c
}
