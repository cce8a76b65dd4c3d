package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"lockbank/models"

	"github.com/stretchr/testify/assert"
)

// TestEventDelivery tests the complete event flow from TransactionalBus to main Bus
func TestEventDelivery(t *testing.T) {
	mainBus := NewBus()
	transactionalBus := NewTransactionalBus(mainBus)

	eventReceived := make(chan BalanceChangeEvent, 1)
	var wg sync.WaitGroup
	wg.Add(1)

	mainBus.Subscribe(EventTypeBalanceChange, func(ctx context.Context, event Event) {
		defer wg.Done()
		if balanceEvent, ok := event.(BalanceChangeEvent); ok {
			eventReceived <- balanceEvent
		} else {
			t.Errorf("Expected BalanceChangeEvent, got %T", event)
		}
	})

	testEvent := BalanceChangeEvent{
		AccountID:    123456,
		Currency:     models.CurrencyWL,
		OldBalance:   1000,
		NewBalance:   1500,
		Operation:    models.OperationDeposit,
		ChangeAmount: 500,
	}

	// Publish to the transactional bus, then flush as a commit would
	transactionalBus.Publish(testEvent)
	err := transactionalBus.Flush(context.Background())
	assert.NoError(t, err)

	wg.Wait()

	select {
	case receivedEvent := <-eventReceived:
		assert.Equal(t, testEvent, receivedEvent)
	case <-time.After(2 * time.Second):
		t.Fatal("Event was not received within timeout")
	}
}

// TestDiscardDropsPendingEvents verifies rollback discards buffered events
func TestDiscardDropsPendingEvents(t *testing.T) {
	mainBus := NewBus()
	transactionalBus := NewTransactionalBus(mainBus)

	delivered := make(chan Event, 1)
	mainBus.Subscribe(EventTypeBalanceChange, func(ctx context.Context, event Event) {
		delivered <- event
	})

	transactionalBus.Publish(BalanceChangeEvent{AccountID: 1, Currency: models.CurrencyIDR, ChangeAmount: 100})
	transactionalBus.Discard()

	err := transactionalBus.Flush(context.Background())
	assert.NoError(t, err)

	select {
	case <-delivered:
		t.Fatal("Discarded event should not be delivered")
	case <-time.After(200 * time.Millisecond):
	}
}

// TestMultipleEventsDelivery tests delivering multiple events in sequence
func TestMultipleEventsDelivery(t *testing.T) {
	mainBus := NewBus()
	transactionalBus := NewTransactionalBus(mainBus)

	eventsReceived := make(chan BalanceChangeEvent, 3)
	var wg sync.WaitGroup
	wg.Add(3)

	mainBus.Subscribe(EventTypeBalanceChange, func(ctx context.Context, event Event) {
		defer wg.Done()
		if balanceEvent, ok := event.(BalanceChangeEvent); ok {
			eventsReceived <- balanceEvent
		}
	})

	published := []BalanceChangeEvent{
		{AccountID: 1, Currency: models.CurrencyWL, OldBalance: 1000, NewBalance: 1100, Operation: models.OperationDeposit, ChangeAmount: 100},
		{AccountID: 2, Currency: models.CurrencyDL, OldBalance: 2000, NewBalance: 2200, Operation: models.OperationDeposit, ChangeAmount: 200},
		{AccountID: 3, Currency: models.CurrencyIDR, OldBalance: 3000, NewBalance: 3300, Operation: models.OperationDeposit, ChangeAmount: 300},
	}

	for _, event := range published {
		transactionalBus.Publish(event)
	}

	err := transactionalBus.Flush(context.Background())
	assert.NoError(t, err)

	wg.Wait()
	close(eventsReceived)

	seen := make(map[int64]BalanceChangeEvent)
	for ev := range eventsReceived {
		seen[ev.AccountID] = ev
	}
	assert.Len(t, seen, 3)
	for _, want := range published {
		assert.Equal(t, want, seen[want.AccountID])
	}
}
