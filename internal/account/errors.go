package account

import (
	"errors"
	"fmt"
)

// Errors returned before anything is committed.
var (
	ErrValidation      = errors.New("invalid account")
	ErrDuplicatePhone  = errors.New("phone already exists")
	ErrAccountNotFound = errors.New("account not found")
	ErrHashing         = errors.New("credential hashing failed")
)

// ErrPublish matches any *PublishError.
var ErrPublish = errors.New("lifecycle events not published")

// PublishError reports after-persist hooks that failed once the account
// change was already committed. The account state is correct; downstream
// consumers may be stale until the events are replayed.
type PublishError struct {
	Op        Operation
	AccountID string
	Err       error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("account %s %s committed, events failed: %v", e.AccountID, e.Op, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

func (e *PublishError) Is(target error) bool { return target == ErrPublish }

// Committed reports whether err was raised after the account change was
// durably stored.
func Committed(err error) bool {
	var pe *PublishError
	return errors.As(err, &pe)
}
