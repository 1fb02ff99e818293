package coincore

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedOperation  = errors.New("unsupported operation")
	ErrDefaultAccountArchive = errors.New("default account cannot be archived")
	ErrAccountNotFound       = errors.New("account not found")
)

// UnsupportedOperationError reports an operation the account kind does not offer.
type UnsupportedOperationError struct {
	Op        string
	AccountID string
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("%s on account %s: %v", e.Op, e.AccountID, ErrUnsupportedOperation)
}

func (e *UnsupportedOperationError) Is(target error) bool {
	return target == ErrUnsupportedOperation
}

func unsupported(op, accountID string) error {
	return &UnsupportedOperationError{Op: op, AccountID: accountID}
}
