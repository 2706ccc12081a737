package account

import (
	"fmt"
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation"
)

const (
	phoneLength       = 8
	minPasswordLength = 6
	// bcrypt ignores input past 72 bytes.
	maxPasswordLength = 72
)

var phonePattern = regexp.MustCompile(`^6[0-9]*$`)

// CreateInput is a creation request with a plaintext password.
type CreateInput struct {
	Phone    string `json:"phone"`
	Password string `json:"password"`
	IsAdmin  bool   `json:"isAdmin"`
}

func (in CreateInput) Validate() error {
	err := validation.ValidateStruct(&in,
		validation.Field(&in.Phone, phoneRules(validation.Required)...),
		validation.Field(&in.Password, passwordRules(validation.Required)...),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return nil
}

func (in CreateInput) mutation() Mutation {
	phone, password, isAdmin := in.Phone, in.Password, in.IsAdmin
	return Mutation{Phone: &phone, Password: &password, IsAdmin: &isAdmin}
}

// UpdateInput is a partial update; nil fields are not changed.
type UpdateInput struct {
	Phone    *string `json:"phone"`
	Password *string `json:"password"`
	IsAdmin  *bool   `json:"isAdmin"`
}

func (in UpdateInput) Validate() error {
	if in.Phone == nil && in.Password == nil && in.IsAdmin == nil {
		return fmt.Errorf("%w: no fields to update", ErrValidation)
	}
	err := validation.ValidateStruct(&in,
		validation.Field(&in.Phone, phoneRules(validation.NilOrNotEmpty)...),
		validation.Field(&in.Password, passwordRules(validation.NilOrNotEmpty)...),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return nil
}

func (in UpdateInput) mutation() Mutation {
	return Mutation{Phone: in.Phone, Password: in.Password, IsAdmin: in.IsAdmin}
}

func phoneRules(presence validation.Rule) []validation.Rule {
	return []validation.Rule{
		presence,
		validation.Length(phoneLength, phoneLength).Error("must be exactly 8 digits"),
		validation.Match(phonePattern).Error("must be digits starting with 6"),
	}
}

func passwordRules(presence validation.Rule) []validation.Rule {
	return []validation.Rule{
		presence,
		validation.Length(minPasswordLength, maxPasswordLength),
	}
}
