package audit

import (
	"context"

	id "dealkernel/pkg/domain"
	"dealkernel/pkg/requestcontext"
)

// Publisher captures structured audit entries. It is append-only and uses
// the store for persistence so tests can swap sinks easily. With an inbox it
// enqueues for a Worker instead of writing inline.
type Publisher struct {
	store Store
	inbox chan<- Entry
}

func NewPublisher(store Store) *Publisher {
	return &Publisher{store: store}
}

// NewBufferedPublisher returns a publisher that hands entries to the
// returned worker through a channel of the given capacity. The caller runs
// the worker; until it drains, entries sit in the buffer.
func NewBufferedPublisher(store Store, capacity int) (*Publisher, *Worker) {
	inbox := make(chan Entry, capacity)
	return &Publisher{store: store, inbox: inbox}, NewWorker(store, inbox)
}

// Emit stamps and records one entry. A full inbox falls back to a direct
// append; the trail never drops entries to stay async.
func (p *Publisher) Emit(ctx context.Context, entry Entry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = requestcontext.Now(ctx).UTC()
	}
	if entry.ID.IsZero() {
		entry.ID = id.NewEventID()
	}
	if entry.RequestID == "" {
		entry.RequestID = requestcontext.RequestID(ctx)
	}
	if p.inbox != nil {
		select {
		case p.inbox <- entry:
			return nil
		default:
		}
	}
	return p.store.Append(ctx, entry)
}

// List returns a deal's audit trail.
func (p *Publisher) List(ctx context.Context, dealID id.DealID) ([]Entry, error) {
	return p.store.ListByDeal(ctx, dealID)
}

// Worker consumes audit entries from a channel and persists them. It keeps
// background processing testable without wiring queue implementations into
// callers.
type Worker struct {
	store Store
	inbox <-chan Entry
}

func NewWorker(store Store, inbox <-chan Entry) *Worker {
	return &Worker{store: store, inbox: inbox}
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.drain(ctx)
			return ctx.Err()
		case entry := <-w.inbox:
			if err := w.store.Append(ctx, entry); err != nil {
				return err
			}
		}
	}
}

// drain flushes whatever is still buffered when the worker stops, so a
// graceful shutdown never loses queued entries.
func (w *Worker) drain(ctx context.Context) {
	flush := context.WithoutCancel(ctx)
	for {
		select {
		case entry := <-w.inbox:
			_ = w.store.Append(flush, entry)
		default:
			return
		}
	}
}
