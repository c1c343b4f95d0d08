// Package cache provides a Redis read-through cache for beneficiary history
// listings. History display tolerates brief staleness; eligibility never
// reads through this cache, so cooldown decisions always hit the ledger.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"amparo/internal/benefit/models"
	"amparo/internal/benefit/store"
)

// kv is the slice of the redis client the cache needs; a fake satisfies it
// in tests.
type kv interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// CachedStore decorates a ledger store with cached history listings. Every
// mutation invalidates the beneficiary's cached history; cache failures
// degrade to the underlying store instead of failing the request.
type CachedStore struct {
	store.Store
	kv     kv
	ttl    time.Duration
	logger *slog.Logger
}

func NewCachedStore(inner store.Store, client kv, ttl time.Duration, logger *slog.Logger) *CachedStore {
	return &CachedStore{Store: inner, kv: client, ttl: ttl, logger: logger}
}

func historyKey(beneficiaryID string, benefitType models.BenefitType) string {
	return "amparo:history:" + beneficiaryID + ":" + string(benefitType)
}

func (c *CachedStore) ListByBeneficiary(ctx context.Context, beneficiaryID string, benefitType models.BenefitType) ([]*models.Report, error) {
	key := historyKey(beneficiaryID, benefitType)
	cached, err := c.kv.Get(ctx, key).Result()
	if err == nil {
		var reports []*models.Report
		if err := json.Unmarshal([]byte(cached), &reports); err == nil {
			return reports, nil
		}
		// Unreadable entry: drop it and fall through to the store.
		c.kv.Del(ctx, key)
	} else if !errors.Is(err, redis.Nil) {
		c.logger.WarnContext(ctx, "history cache read failed", "error", err.Error())
	}

	reports, err := c.Store.ListByBeneficiary(ctx, beneficiaryID, benefitType)
	if err != nil {
		return nil, err
	}
	if payload, err := json.Marshal(reports); err == nil {
		if err := c.kv.Set(ctx, key, payload, c.ttl).Err(); err != nil {
			c.logger.WarnContext(ctx, "history cache write failed", "error", err.Error())
		}
	}
	return reports, nil
}

func (c *CachedStore) Append(ctx context.Context, report *models.Report) error {
	if err := c.Store.Append(ctx, report); err != nil {
		return err
	}
	c.invalidate(ctx, report.BeneficiaryID, report.BenefitType)
	return nil
}

func (c *CachedStore) UpdateNarrative(ctx context.Context, reportID string, update models.NarrativeUpdate, now time.Time) (*models.Report, error) {
	report, err := c.Store.UpdateNarrative(ctx, reportID, update, now)
	if err != nil {
		return nil, err
	}
	c.invalidate(ctx, report.BeneficiaryID, report.BenefitType)
	return report, nil
}

func (c *CachedStore) Remove(ctx context.Context, reportID string, now time.Time) error {
	report, err := c.Store.FindByID(ctx, reportID)
	if err != nil {
		return err
	}
	if err := c.Store.Remove(ctx, reportID, now); err != nil {
		return err
	}
	c.invalidate(ctx, report.BeneficiaryID, report.BenefitType)
	return nil
}

// invalidate clears both the type-filtered and all-types entries.
func (c *CachedStore) invalidate(ctx context.Context, beneficiaryID string, benefitType models.BenefitType) {
	keys := []string{
		historyKey(beneficiaryID, benefitType),
		historyKey(beneficiaryID, ""),
	}
	if err := c.kv.Del(ctx, keys...).Err(); err != nil {
		c.logger.WarnContext(ctx, "history cache invalidation failed", "error", err.Error())
	}
}

// InvalidatingTxRunner clears cached history after a successful ledger
// transaction, covering appends that happen inside the registrar's
// exclusive section rather than through the decorated store.
type InvalidatingTxRunner struct {
	inner store.TxRunner
	cache *CachedStore
}

func NewInvalidatingTxRunner(inner store.TxRunner, cache *CachedStore) *InvalidatingTxRunner {
	return &InvalidatingTxRunner{inner: inner, cache: cache}
}

func (r *InvalidatingTxRunner) RunInTx(ctx context.Context, beneficiaryID string, benefitType models.BenefitType, fn func(store.Store) error) error {
	if err := r.inner.RunInTx(ctx, beneficiaryID, benefitType, fn); err != nil {
		return err
	}
	r.cache.invalidate(ctx, beneficiaryID, benefitType)
	return nil
}
