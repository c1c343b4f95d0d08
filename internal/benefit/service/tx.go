package service

import (
	"context"
	"time"

	"amparo/internal/benefit/models"
	"amparo/internal/benefit/store"
	dErrors "amparo/pkg/domain-errors"
)

// numShards spreads pair locks across sharded mutexes. Registrations for
// the same (beneficiary, type) hash to the same shard and serialize;
// unrelated pairs almost never contend.
const numShards = 128

// defaultTxTimeout bounds how long a registration may hold its shard.
const defaultTxTimeout = 5 * time.Second

// shardedTx is the in-process exclusivity discipline for stores without
// their own transaction support (the memory store). It implements
// store.TxRunner by holding a shard mutex from the eligibility re-check
// through the append, released on every exit path.
type shardedTx struct {
	shards  [numShards]chan struct{}
	store   store.Store
	timeout time.Duration
}

// NewShardedTx wraps a store with sharded mutual exclusion keyed by
// (beneficiary, benefit type).
func NewShardedTx(s store.Store) store.TxRunner {
	t := &shardedTx{store: s, timeout: defaultTxTimeout}
	for i := range t.shards {
		ch := make(chan struct{}, 1)
		ch <- struct{}{}
		t.shards[i] = ch
	}
	return t
}

func (t *shardedTx) RunInTx(ctx context.Context, beneficiaryID string, benefitType models.BenefitType, fn func(store.Store) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "ledger transaction aborted")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	shard := t.shards[pairShard(beneficiaryID, benefitType)]
	select {
	case <-shard:
	case <-ctx.Done():
		return dErrors.Wrap(ctx.Err(), dErrors.CodeTimeout, "waiting for pair lock")
	}
	defer func() { shard <- struct{}{} }()

	// Re-check after acquiring the lock: the wait may have consumed the
	// caller's remaining deadline.
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "ledger transaction aborted")
	}
	return fn(t.store)
}

// pairShard hashes the pair key with FNV-1a for even shard distribution.
func pairShard(beneficiaryID string, benefitType models.BenefitType) uint32 {
	const (
		fnvOffset = 2166136261
		fnvPrime  = 16777619
	)
	h := uint32(fnvOffset)
	key := beneficiaryID + "/" + string(benefitType)
	for i := 0; i < len(key); i++ {
		h ^= uint32(key[i])
		h *= fnvPrime
	}
	return h % numShards
}
