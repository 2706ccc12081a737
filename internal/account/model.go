package account

import "time"

// Account is the stored credentialed identity. It has no JSON tags on
// purpose: callers outside the service see PublicAccount only.
type Account struct {
	ID           string
	Phone        string
	PasswordHash string
	IsAdmin      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PublicAccount is the external representation of an Account.
type PublicAccount struct {
	ID        string    `json:"id"`
	Phone     string    `json:"phone"`
	IsAdmin   bool      `json:"isAdmin"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ToPublic projects an account without the credential hash.
func ToPublic(a Account) PublicAccount {
	return PublicAccount{
		ID:        a.ID,
		Phone:     a.Phone,
		IsAdmin:   a.IsAdmin,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

// NewAccount is the row handed to the store on creation. The store assigns
// the id and timestamps.
type NewAccount struct {
	Phone        string
	PasswordHash string
	IsAdmin      bool
}

// Patch lists the fields an update changes; nil fields are left alone.
type Patch struct {
	Phone        *string
	PasswordHash *string
	IsAdmin      *bool
}
