package audit

import (
	"context"
	"time"
)

// Store is the append-only sink behind the publisher. The ledger's history
// is auditable by design; this trail captures who mutated it and when.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByBeneficiary(ctx context.Context, beneficiaryID string) ([]Event, error)
}

// Publisher captures structured audit events. It is append-only and uses a
// store abstraction so tests can swap sinks easily.
type Publisher struct {
	store Store
}

func NewPublisher(store Store) *Publisher {
	return &Publisher{store: store}
}

func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	return p.store.Append(ctx, event)
}

func (p *Publisher) List(ctx context.Context, beneficiaryID string) ([]Event, error) {
	return p.store.ListByBeneficiary(ctx, beneficiaryID)
}
