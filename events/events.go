package events

import (
	"context"
	"sync"

	"hourledger/models"
	log "github.com/sirupsen/logrus"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeDebtCreated            EventType = "debt_created"
	EventTypeDebtUpdated            EventType = "debt_updated"
	EventTypeDebtCancelled          EventType = "debt_cancelled"
	EventTypeDebtSettled            EventType = "debt_settled"
	EventTypeDeductionApplied       EventType = "deduction_applied"
	EventTypeDeductionsRolledBack   EventType = "deductions_rolled_back"
	EventTypeReconciliationComplete EventType = "reconciliation_complete"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// DebtCreatedEvent represents a new debt being recorded
type DebtCreatedEvent struct {
	DebtID      int64
	TenantID    int64
	UserID      int64
	OwedMinutes int
	CreatedBy   int64
}

func (e DebtCreatedEvent) Type() EventType {
	return EventTypeDebtCreated
}

// DebtUpdatedEvent represents an administrative edit of a debt
type DebtUpdatedEvent struct {
	DebtID        int64
	TenantID      int64
	UserID        int64
	ChangedFields []string
	UpdatedBy     int64
}

func (e DebtUpdatedEvent) Type() EventType {
	return EventTypeDebtUpdated
}

// DebtCancelledEvent represents a debt being cancelled or soft-deleted
type DebtCancelledEvent struct {
	DebtID      int64
	TenantID    int64
	UserID      int64
	CancelledBy int64
}

func (e DebtCancelledEvent) Type() EventType {
	return EventTypeDebtCancelled
}

// DebtSettledEvent represents a debt reaching a zero balance
type DebtSettledEvent struct {
	DebtID   int64
	TenantID int64
	UserID   int64
}

func (e DebtSettledEvent) Type() EventType {
	return EventTypeDebtSettled
}

// DeductionAppliedEvent represents excess minutes consumed against debts
type DeductionAppliedEvent struct {
	TenantID       int64
	UserID         int64
	WorkRecordID   int64
	MinutesApplied int
	DebtsTouched   int
}

func (e DeductionAppliedEvent) Type() EventType {
	return EventTypeDeductionApplied
}

// DeductionsRolledBackEvent represents a work record reversal undoing its deductions
type DeductionsRolledBackEvent struct {
	TenantID        int64
	WorkRecordID    int64
	Reason          models.RollbackReason
	MinutesRestored int
	DebtsTouched    int
}

func (e DeductionsRolledBackEvent) Type() EventType {
	return EventTypeDeductionsRolledBack
}

// ReconciliationCompleteEvent represents a finished monthly review
type ReconciliationCompleteEvent struct {
	TenantID       int64
	BalanceFixes   int
	GapsFound      int
	MinutesApplied int
}

func (e ReconciliationCompleteEvent) Type() EventType {
	return EventTypeReconciliationComplete
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

	if b.handlers[eventType] == nil {
		b.handlers[eventType] = make([]Handler, 0)
	}
	b.handlers[eventType] = append(b.handlers[eventType], handler)

	log.WithFields(log.Fields{
		"eventType":    eventType,
		"handlerCount": len(b.handlers[eventType]),
	}).Debug("Subscribed handler to event type on main event bus")
}

// Emit publishes an event to all registered handlers
func (b *Bus) Emit(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[event.Type()]))
	copy(handlers, b.handlers[event.Type()])
	b.mu.RUnlock()

	log.WithFields(log.Fields{
		"eventType":    event.Type(),
		"handlerCount": len(handlers),
	}).Debug("Emitting event to handlers on main event bus")

	// Call handlers asynchronously to avoid blocking
	for i, handler := range handlers {
		go func(h Handler, handlerIndex int) {
			defer func() {
				if r := recover(); r != nil {
					log.WithFields(log.Fields{
						"eventType":    event.Type(),
						"handlerIndex": handlerIndex,
						"panic":        r,
					}).Error("Event handler panicked")
				}
			}()
			h(ctx, event)
		}(handler, i)
	}
}

// A transactional event bus for holding pending events coupled to the Unit of Work.
// Flushes to the underlying event bus.
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

// called after successful DB commit
func (b *TransactionalBus) Flush(ctx context.Context) error {
	log.WithFields(log.Fields{
		"pendingEventCount": len(b.pending),
	}).Debug("Flushing pending events from transactional bus to main event bus")

	// Use background context for event emission to avoid issues with transaction context expiration
	// Events should be processed independently of the transaction lifecycle
	eventCtx := context.Background()

	for _, ev := range b.pending {
		b.real.Emit(eventCtx, ev)
	}
	b.pending = nil
	return nil
}

// called after db rollback or to clear state.
func (b *TransactionalBus) Discard() {
	b.pending = nil
}
