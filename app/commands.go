package app

import (
	"github.com/shopspring/decimal"

	"bank-accounts/domain"
	"bank-accounts/shared"
)

// Command is a transient, in-memory request routed through the registry into
// one account entity's mailbox. Commands are never persisted. Each carries a
// one-shot reply channel the handling unit resolves at most once; callers
// await the reply with a timeout and must treat a missing reply as a failed
// request.
type Command interface {
	isCommand()
}

// CreateAccountCommand asks for a brand new account. The registry allocates
// AccountID before forwarding the command to the fresh entity; the entity's
// own reply is the caller's reply.
type CreateAccountCommand struct {
	AccountID      string
	Owner          string
	Currency       shared.Currency
	InitialBalance decimal.Decimal
	Reply          chan<- CreateAccountResult
}

// ChangeBalanceCommand adjusts an existing account's balance by a signed
// delta. A change that would drive the balance negative is rejected.
type ChangeBalanceCommand struct {
	AccountID string
	Delta     decimal.Decimal
	Reply     chan<- ChangeBalanceResult
}

// GetAccountCommand reads current account state. It produces no event.
type GetAccountCommand struct {
	AccountID string
	Reply     chan<- GetAccountResult
}

func (CreateAccountCommand) isCommand() {}
func (ChangeBalanceCommand) isCommand() {}
func (GetAccountCommand) isCommand()    {}

type CreateAccountResult struct {
	AccountID string
	Err       error
}

type ChangeBalanceResult struct {
	Account *domain.Account
	Err     error
}

// GetAccountResult carries the account state, or ErrAccountNotFound when no
// AccountOpened event has ever been folded for the identifier.
type GetAccountResult struct {
	Account *domain.Account
	Err     error
}

// reject resolves a command's reply channel with a typed rejection. Used by
// the registry for unknown identifiers and overflow, where no entity will
// ever see the command.
func reject(cmd Command, err error) {
	switch c := cmd.(type) {
	case CreateAccountCommand:
		deliver(c.Reply, CreateAccountResult{Err: err})
	case ChangeBalanceCommand:
		deliver(c.Reply, ChangeBalanceResult{Err: err})
	case GetAccountCommand:
		deliver(c.Reply, GetAccountResult{Err: err})
	}
}

// deliver resolves a one-shot reply channel without ever blocking the sending
// unit. Reply channels are buffered with capacity one; a full or nil channel
// means the caller is gone, and the reply is discarded.
func deliver[T any](reply chan<- T, result T) {
	if reply == nil {
		return
	}
	select {
	case reply <- result:
	default:
	}
}
