package audit

import "context"

// Worker consumes audit events from a channel and persists them, keeping
// emission off the request path when wired asynchronously.
type Worker struct {
	store Store
	inbox <-chan Event
}

func NewWorker(store Store, inbox <-chan Event) *Worker {
	return &Worker{store: store, inbox: inbox}
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			if err := w.store.Append(ctx, event); err != nil {
				return err
			}
		}
	}
}

// AsyncStore decouples Emit from sink latency. Append enqueues onto the
// worker inbox; reads pass through to the backing store.
type AsyncStore struct {
	inbox chan<- Event
	reads Store
}

func NewAsyncStore(inbox chan<- Event, reads Store) *AsyncStore {
	return &AsyncStore{inbox: inbox, reads: reads}
}

func (s *AsyncStore) Append(ctx context.Context, event Event) error {
	select {
	case s.inbox <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *AsyncStore) ListByBeneficiary(ctx context.Context, beneficiaryID string) ([]Event, error) {
	return s.reads.ListByBeneficiary(ctx, beneficiaryID)
}
