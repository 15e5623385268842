package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "dealkernel/pkg/domain"
)

func entryFor(dealID id.DealID, decision string) Entry {
	return Entry{
		DealID:   dealID,
		ActorID:  id.NewActorID(),
		Action:   "APPROVE_DEAL",
		Decision: decision,
	}
}

func TestBufferedPublisher_WorkerDrainsToStore(t *testing.T) {
	store := NewMemoryStore()
	publisher, worker := NewBufferedPublisher(store, 8)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	dealID := id.NewDealID()
	require.NoError(t, publisher.Emit(context.Background(), entryFor(dealID, DecisionAllowed)))
	require.NoError(t, publisher.Emit(context.Background(), entryFor(dealID, DecisionBlocked)))

	deadline := time.After(2 * time.Second)
	for {
		entries, err := store.ListByDeal(context.Background(), dealID)
		require.NoError(t, err)
		if len(entries) == 2 {
			assert.Equal(t, DecisionAllowed, entries[0].Decision)
			assert.Equal(t, DecisionBlocked, entries[1].Decision)
			break
		}
		select {
		case <-deadline:
			t.Fatalf("worker drained %d of 2 entries", len(entries))
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

func TestWorker_FlushesBufferedEntriesOnStop(t *testing.T) {
	store := NewMemoryStore()
	publisher, worker := NewBufferedPublisher(store, 8)

	dealID := id.NewDealID()
	for i := 0; i < 3; i++ {
		require.NoError(t, publisher.Emit(context.Background(), entryFor(dealID, DecisionAllowed)))
	}

	// The worker starts with its context already cancelled; the buffered
	// entries must still land before Run returns.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := worker.Run(ctx)
	require.True(t, errors.Is(err, context.Canceled))

	entries, err := store.ListByDeal(context.Background(), dealID)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestEmit_FallsBackToDirectAppendWhenInboxIsFull(t *testing.T) {
	store := NewMemoryStore()
	publisher, _ := NewBufferedPublisher(store, 0)

	dealID := id.NewDealID()
	require.NoError(t, publisher.Emit(context.Background(), entryFor(dealID, DecisionOverridden)))

	entries, err := store.ListByDeal(context.Background(), dealID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, DecisionOverridden, entries[0].Decision)
	assert.False(t, entries[0].Timestamp.IsZero())
	assert.False(t, entries[0].ID.IsZero())
}
