package domain

import "fmt"

// DomainError marks an expected business-rule rejection, as opposed to an
// infrastructure fault. Rejections are reported to the caller and never
// retried automatically.
type DomainError struct {
	message string
}

func NewDomainError(format string, args ...interface{}) *DomainError {
	return &DomainError{message: fmt.Sprintf(format, args...)}
}

func (e *DomainError) Error() string {
	return e.message
}

var (
	ErrInsufficientFunds = NewDomainError("insufficient funds")
	ErrAccountExists     = NewDomainError("account already exists")
	ErrAccountNotFound   = NewDomainError("account not found")
)
