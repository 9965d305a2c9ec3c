package events

import (
	"github.com/shopspring/decimal"

	"bank-accounts/shared"
)

// AccountOpenedEvent is always the first event of an account stream and
// carries the full initial state of the account.
type AccountOpenedEvent struct {
	BaseEvent
	Owner          string          `json:"owner"`
	Currency       shared.Currency `json:"currency"`
	InitialBalance decimal.Decimal `json:"initialBalance"`
}

// BalanceChangedEvent records a signed balance adjustment. Deposits carry a
// positive delta, withdrawals a negative one.
type BalanceChangedEvent struct {
	BaseEvent
	Delta decimal.Decimal `json:"delta"`
}

// AccountRegisteredEvent lives on the registry's own stream and records that
// an account identifier was allocated, so the set of known identifiers can be
// rebuilt after a restart without scanning every account stream.
type AccountRegisteredEvent struct {
	BaseEvent
	AccountID string `json:"accountId"`
}
