package shared

// Currency is the ISO-4217 style code attached to an account. An account
// holds exactly one currency for its entire lifetime.
type Currency string

const (
	USD Currency = "USD"
	EUR Currency = "EUR"
	GBP Currency = "GBP"
)
