package account

import (
	"errors"
	"strings"
	"testing"
)

func TestCreateInputValidate(t *testing.T) {
	cases := []struct {
		name    string
		in      CreateInput
		wantErr bool
	}{
		{name: "valid", in: CreateInput{Phone: "61234567", Password: "secret1"}},
		{name: "valid admin", in: CreateInput{Phone: "60000000", Password: "secret", IsAdmin: true}},
		{name: "seven digits", in: CreateInput{Phone: "6123456", Password: "secret1"}, wantErr: true},
		{name: "nine digits", in: CreateInput{Phone: "612345678", Password: "secret1"}, wantErr: true},
		{name: "wrong prefix", in: CreateInput{Phone: "51234567", Password: "secret1"}, wantErr: true},
		{name: "letters", in: CreateInput{Phone: "6123456a", Password: "secret1"}, wantErr: true},
		{name: "missing phone", in: CreateInput{Password: "secret1"}, wantErr: true},
		{name: "missing password", in: CreateInput{Phone: "61234567"}, wantErr: true},
		{name: "short password", in: CreateInput{Phone: "61234567", Password: "12345"}, wantErr: true},
		{name: "password past bcrypt limit", in: CreateInput{Phone: "61234567", Password: strings.Repeat("x", 73)}, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.in.Validate()
			if tc.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("expected validation error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestUpdateInputValidate(t *testing.T) {
	cases := []struct {
		name    string
		in      UpdateInput
		wantErr bool
	}{
		{name: "phone only", in: UpdateInput{Phone: strPtr("69999999")}},
		{name: "password only", in: UpdateInput{Password: strPtr("secret1")}},
		{name: "admin flag only", in: UpdateInput{IsAdmin: boolPtr(false)}},
		{name: "no fields", in: UpdateInput{}, wantErr: true},
		{name: "bad phone", in: UpdateInput{Phone: strPtr("5999999")}, wantErr: true},
		{name: "empty phone", in: UpdateInput{Phone: strPtr("")}, wantErr: true},
		{name: "short password", in: UpdateInput{Password: strPtr("abc")}, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.in.Validate()
			if tc.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("expected validation error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
