package events

import (
	"context"
	"sync"

	"lockbank/models"

	log "github.com/sirupsen/logrus"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeBalanceChange       EventType = "balance_change"
	EventTypeAccountCreated      EventType = "account_created"
	EventTypeAccountFlagged      EventType = "account_flagged"
	EventTypeRateChanged         EventType = "rate_changed"
	EventTypeConversionCompleted EventType = "conversion_completed"
	EventTypeCompensationFailed  EventType = "compensation_failed"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// BalanceChangeEvent represents a committed balance change
type BalanceChangeEvent struct {
	AccountID     int64
	Currency      models.Currency
	OldBalance    int64
	NewBalance    int64
	Operation     models.OperationKind
	ChangeAmount  int64
	CorrelationID string
}

func (e BalanceChangeEvent) Type() EventType {
	return EventTypeBalanceChange
}

// AccountCreatedEvent represents a new account provisioning
type AccountCreatedEvent struct {
	AccountID  int64
	ExternalID string
	Username   string
	Platform   models.Platform
}

func (e AccountCreatedEvent) Type() EventType {
	return EventTypeAccountCreated
}

// AccountFlaggedEvent represents an account being blacklisted or cleared
type AccountFlaggedEvent struct {
	AccountID   int64
	Blacklisted bool
	Reason      string
	Actor       string
}

func (e AccountFlaggedEvent) Type() EventType {
	return EventTypeAccountFlagged
}

// RateChangedEvent represents a new conversion rate row taking effect
type RateChangedEvent struct {
	RateID   int64
	Currency models.Currency
	Rate     int64
	Author   string
}

func (e RateChangedEvent) Type() EventType {
	return EventTypeRateChanged
}

// ConversionCompletedEvent represents a committed currency conversion
type ConversionCompletedEvent struct {
	AccountID     int64
	Currency      models.Currency
	SourceAmount  int64
	FiatCredited  int64
	RateID        int64
	CorrelationID string
}

func (e ConversionCompletedEvent) Type() EventType {
	return EventTypeConversionCompleted
}

// CompensationFailedEvent is emitted when a partial mutation could not be
// reversed. Subscribers are expected to page an operator; the ledger needs
// manual reconciliation.
type CompensationFailedEvent struct {
	AccountID     int64
	Operation     models.OperationKind
	CorrelationID string
	Detail        string
}

func (e CompensationFailedEvent) Type() EventType {
	return EventTypeCompensationFailed
}

// Handler is a function that handles events
type Handler func(ctx context.Context, event Event)

// Bus manages event subscriptions and dispatching
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe adds a handler for a specific event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)

	log.WithFields(log.Fields{
		"eventType":    eventType,
		"handlerCount": len(b.handlers[eventType]),
	}).Debug("Subscribed handler to event type")
}

// Emit publishes an event to all registered handlers
func (b *Bus) Emit(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[event.Type()]))
	copy(handlers, b.handlers[event.Type()])
	b.mu.RUnlock()

	// Call handlers asynchronously to avoid blocking
	for _, handler := range handlers {
		go func(h Handler) {
			defer func() {
				if r := recover(); r != nil {
					log.WithFields(log.Fields{
						"eventType": event.Type(),
						"panic":     r,
					}).Error("Event handler panicked")
				}
			}()
			h(ctx, event)
		}(handler)
	}
}

// TransactionalBus holds pending events coupled to a unit of work and
// flushes them to the underlying bus only after the transaction commits.
type TransactionalBus struct {
	real    *Bus
	pending []Event // stashed until Flush
}

func NewTransactionalBus(real *Bus) *TransactionalBus {
	return &TransactionalBus{real: real}
}

func (b *TransactionalBus) Publish(e Event) {
	b.pending = append(b.pending, e)
}

// Flush is called after a successful DB commit
func (b *TransactionalBus) Flush(ctx context.Context) error {
	// Use background context for event emission; events outlive the
	// transaction context that produced them.
	eventCtx := context.Background()

	for _, ev := range b.pending {
		b.real.Emit(eventCtx, ev)
	}
	b.pending = nil
	return nil
}

// Discard is called after rollback to clear pending state
func (b *TransactionalBus) Discard() {
	b.pending = nil
}
