package account

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/payhasly/account_service/internal/events"
)

// Operation names a persistence verb the controller runs hooks for.
type Operation string

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// Mutation is the pending write seen by before-persist hooks. Password holds
// plaintext until a hook moves it into PasswordHash; the controller refuses
// to persist a mutation that still carries plaintext.
type Mutation struct {
	Phone        *string
	Password     *string
	PasswordHash *string
	IsAdmin      *bool
}

type (
	BeforePersistFunc func(ctx context.Context, m *Mutation) error
	AfterPersistFunc  func(ctx context.Context, acc Account) error
)

// Hooks holds the ordered side effects registered per operation.
type Hooks struct {
	before map[Operation][]BeforePersistFunc
	after  map[Operation][]AfterPersistFunc
}

func NewHooks() *Hooks {
	return &Hooks{
		before: make(map[Operation][]BeforePersistFunc),
		after:  make(map[Operation][]AfterPersistFunc),
	}
}

// Before appends hooks that run, in order, ahead of the store write.
func (h *Hooks) Before(op Operation, fns ...BeforePersistFunc) *Hooks {
	h.before[op] = append(h.before[op], fns...)
	return h
}

// After appends hooks that run, in order, once the store write committed.
func (h *Hooks) After(op Operation, fns ...AfterPersistFunc) *Hooks {
	h.after[op] = append(h.after[op], fns...)
	return h
}

// runBefore stops at the first failing hook.
func (h *Hooks) runBefore(ctx context.Context, op Operation, m *Mutation) error {
	for _, fn := range h.before[op] {
		if err := fn(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

// runAfter attempts every hook and joins the failures.
func (h *Hooks) runAfter(ctx context.Context, op Operation, acc Account) error {
	var errs []error
	for _, fn := range h.after[op] {
		if err := fn(ctx, acc); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Hasher produces a salted one-way hash of a secret.
type Hasher interface {
	Hash(plain string) (string, error)
}

// DefaultHooks wires credential hashing and the lifecycle events consumed by
// the profile and favorites services. Within each operation the profile event
// goes out before the favorite event.
func DefaultHooks(hasher Hasher, publisher events.Publisher) *Hooks {
	hash := HashCredential(hasher)
	return NewHooks().
		Before(OpCreate, hash).
		Before(OpUpdate, hash).
		After(OpCreate,
			Publish(publisher, events.CreateUserProfile, ProfilePayload),
			Publish(publisher, events.CreateUserFavorite, IDPayload),
		).
		After(OpUpdate,
			Publish(publisher, events.UpdateUser, ProfilePayload),
		).
		After(OpDelete,
			Publish(publisher, events.DeleteUserProfile, IDPayload),
			Publish(publisher, events.DeleteUserFavorite, IDPayload),
		)
}

// HashCredential replaces a plaintext password with its hash. Mutations
// without a password pass through untouched.
func HashCredential(hasher Hasher) BeforePersistFunc {
	return func(_ context.Context, m *Mutation) error {
		if m.Password == nil {
			return nil
		}
		plain := *m.Password
		hash, err := hasher.Hash(plain)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrHashing, err)
		}
		if hash == "" || hash == plain {
			return fmt.Errorf("%w: hasher returned an unusable value", ErrHashing)
		}
		m.PasswordHash = &hash
		m.Password = nil
		return nil
	}
}

type profilePayload struct {
	ID      string `json:"id"`
	Phone   string `json:"phone"`
	IsAdmin bool   `json:"isAdmin"`
}

// ProfilePayload encodes {id, phone, isAdmin} as JSON.
func ProfilePayload(acc Account) ([]byte, error) {
	return json.Marshal(profilePayload{ID: acc.ID, Phone: acc.Phone, IsAdmin: acc.IsAdmin})
}

// IDPayload is the bare account id.
func IDPayload(acc Account) ([]byte, error) {
	return []byte(acc.ID), nil
}

// Publish sends one message built by encode, keyed by the account id.
func Publish(pub events.Publisher, routingKey string, encode func(Account) ([]byte, error)) AfterPersistFunc {
	return func(ctx context.Context, acc Account) error {
		body, err := encode(acc)
		if err != nil {
			return fmt.Errorf("encode %s: %w", routingKey, err)
		}
		if err := pub.Publish(ctx, events.Message{RoutingKey: routingKey, Key: acc.ID, Body: body}); err != nil {
			return fmt.Errorf("publish %s: %w", routingKey, err)
		}
		return nil
	}
}
