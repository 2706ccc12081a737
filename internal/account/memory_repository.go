package account

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryRepository struct {
	mu       sync.RWMutex
	accounts map[string]Account
	now      func() time.Time
}

// NewMemoryRepository builds an in-memory account store for dev mode and
// tests. Phone uniqueness is enforced like the Postgres unique index.
func NewMemoryRepository() Repository {
	return &memoryRepository{accounts: make(map[string]Account), now: time.Now}
}

func (r *memoryRepository) Create(_ context.Context, in NewAccount) (Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.phoneTaken(in.Phone, "") {
		return Account{}, ErrDuplicatePhone
	}
	now := r.now().UTC()
	acc := Account{
		ID:           uuid.NewString(),
		Phone:        in.Phone,
		PasswordHash: in.PasswordHash,
		IsAdmin:      in.IsAdmin,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	r.accounts[acc.ID] = acc
	return acc, nil
}

func (r *memoryRepository) FindByID(_ context.Context, id string) (Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	acc, ok := r.accounts[id]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return acc, nil
}

func (r *memoryRepository) Update(_ context.Context, id string, patch Patch) (Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	acc, ok := r.accounts[id]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	if patch.Phone != nil {
		if r.phoneTaken(*patch.Phone, id) {
			return Account{}, ErrDuplicatePhone
		}
		acc.Phone = *patch.Phone
	}
	if patch.PasswordHash != nil {
		acc.PasswordHash = *patch.PasswordHash
	}
	if patch.IsAdmin != nil {
		acc.IsAdmin = *patch.IsAdmin
	}
	acc.UpdatedAt = r.now().UTC()
	r.accounts[id] = acc
	return acc, nil
}

func (r *memoryRepository) Delete(_ context.Context, id string) (Account, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	acc, ok := r.accounts[id]
	if !ok {
		return Account{}, false, nil
	}
	delete(r.accounts, id)
	return acc, true, nil
}

// phoneTaken must be called with the lock held.
func (r *memoryRepository) phoneTaken(phone, exceptID string) bool {
	for id, acc := range r.accounts {
		if acc.Phone == phone && id != exceptID {
			return true
		}
	}
	return false
}
