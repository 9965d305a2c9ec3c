package domain

import (
	"fmt"
	"log"

	"github.com/shopspring/decimal"

	"bank-accounts/events"
	"bank-accounts/shared"
)

// Account is the state of one bank account, derived exclusively by folding its
// event stream. Command handlers validate invariants and derive events without
// mutating state; ApplyEvent is the pure fold that commits a persisted event
// into state. The split matters: the entity owning an Account must only fold
// an event after the event store acknowledged it.
type Account struct {
	ID       string          `json:"id"`
	Owner    string          `json:"owner"`
	Currency shared.Currency `json:"currency"`
	Balance  decimal.Decimal `json:"balance"`
	Version  int             `json:"version"`
}

// NewAccount returns the placeholder state an entity starts from before any
// event has been folded. Version 0 means "not yet opened".
func NewAccount(id string) *Account {
	return &Account{
		ID:      id,
		Balance: decimal.Zero,
		Version: 0,
	}
}

// Opened reports whether an AccountOpened event has been folded.
func (a *Account) Opened() bool {
	return a.Version > 0
}

// Copy returns a detached copy safe to hand to another goroutine.
func (a *Account) Copy() *Account {
	c := *a
	return &c
}

// --- Command Handlers ---
// These validate business rules against current state and, if valid, derive
// the event representing the change. They never mutate the account.

func (a *Account) HandleOpen(owner string, currency shared.Currency, initialBalance decimal.Decimal) (events.Event, error) {
	if a.Opened() {
		return nil, fmt.Errorf("%w: account %s (current version %d)", ErrAccountExists, a.ID, a.Version)
	}
	if a.ID == "" {
		return nil, NewDomainError("account ID cannot be empty")
	}
	if initialBalance.IsNegative() {
		return nil, NewDomainError("initial balance cannot be negative: %s", initialBalance.String())
	}

	return events.AccountOpenedEvent{
		BaseEvent:      events.NewBaseEvent(a.ID, a.Version+1, events.AccountOpenedType),
		Owner:          owner,
		Currency:       currency,
		InitialBalance: initialBalance,
	}, nil
}

func (a *Account) HandleChangeBalance(delta decimal.Decimal) (events.Event, error) {
	if !a.Opened() {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, a.ID)
	}

	candidate := a.Balance.Add(delta)
	if candidate.IsNegative() {
		return nil, fmt.Errorf("%w: balance %s %s, requested change %s",
			ErrInsufficientFunds, a.Balance.String(), a.Currency, delta.String())
	}

	return events.BalanceChangedEvent{
		BaseEvent: events.NewBaseEvent(a.ID, a.Version+1, events.BalanceChangedType),
		Delta:     delta,
	}, nil
}

// ApplyEvent folds one event into state. It must stay deterministic and free
// of side effects so replaying a stream always reproduces the same state.
func (a *Account) ApplyEvent(event events.Event) error {
	base := event.GetBase()

	if base.Version != a.Version+1 {
		return fmt.Errorf("apply failed: event version mismatch for account %s: expected %d, got %d for event %T (%s)",
			a.ID, a.Version+1, base.Version, event, base.EventID)
	}

	switch e := event.(type) {
	case events.AccountOpenedEvent:
		if a.Opened() {
			return fmt.Errorf("apply failed: duplicate AccountOpened for account %s (v%d)", a.ID, base.Version)
		}
		a.ID = e.AggregateID
		a.Owner = e.Owner
		a.Currency = e.Currency
		a.Balance = e.InitialBalance
	case events.BalanceChangedEvent:
		if !a.Opened() {
			return fmt.Errorf("apply failed: BalanceChanged before AccountOpened for account %s (v%d)", a.ID, base.Version)
		}
		newBalance := a.Balance.Add(e.Delta)
		if newBalance.IsNegative() {
			log.Printf("CRITICAL: Invariant Violation! Account %s balance negative after applying %T (v%d): %s + %s = %s",
				a.ID, event, base.Version, a.Balance.String(), e.Delta.String(), newBalance.String())
			return fmt.Errorf("invariant violation: negative balance applying %T (v%d)", event, base.Version)
		}
		a.Balance = newBalance
	default:
		return fmt.Errorf("apply failed: unknown event type %T for account %s", event, a.ID)
	}

	a.Version = base.Version
	return nil
}

// ApplyEvents folds a history in order, as read from the event store.
func (a *Account) ApplyEvents(history []events.Event) error {
	for _, event := range history {
		if err := a.ApplyEvent(event); err != nil {
			base := event.GetBase()
			log.Printf("Error applying event during reconstruction: ID=%s, Type=%T, Version=%d, AggregateID=%s\n", base.EventID, event, base.Version, base.AggregateID)
			return fmt.Errorf("failed to apply event %s (%T) at version %d during reconstruction: %w", base.EventID, event, base.Version, err)
		}
	}
	return nil
}
