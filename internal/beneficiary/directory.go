// Package beneficiary defines the port to the identity collaborator. The
// ledger never inspects beneficiary attributes; it only needs to know
// whether an identifier exists before anchoring deliveries to it.
package beneficiary

import (
	"context"
	"sync"
)

// Directory is consumed by the registrar to reject registrations against
// unknown beneficiaries. Identity CRUD and validation live elsewhere.
type Directory interface {
	Exists(ctx context.Context, beneficiaryID string) (bool, error)
}

// InMemoryDirectory is a Directory for tests and single-node deployments.
type InMemoryDirectory struct {
	mu  sync.RWMutex
	ids map[string]bool
}

func NewInMemoryDirectory(ids ...string) *InMemoryDirectory {
	d := &InMemoryDirectory{ids: make(map[string]bool, len(ids))}
	for _, id := range ids {
		d.ids[id] = true
	}
	return d
}

func (d *InMemoryDirectory) Add(beneficiaryID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ids[beneficiaryID] = true
}

func (d *InMemoryDirectory) Exists(_ context.Context, beneficiaryID string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.ids[beneficiaryID], nil
}

// PermissiveDirectory trusts the storage layer's referential integrity and
// accepts every identifier. Use when the identity service enforces foreign
// keys itself.
type PermissiveDirectory struct{}

func (PermissiveDirectory) Exists(context.Context, string) (bool, error) {
	return true, nil
}
