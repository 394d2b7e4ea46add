package domain

import (
	"context"
	"errors"

	accountdomain "github.com/amourlabs/amour/internal/account/domain"
)

var ErrInvalidRequest = errors.New("invalid_signup_request")

// Request carries the fields needed to open an account.
type Request struct {
	Username     string
	Phone        string
	ReferralCode string
}

// Result is the freshly created account.
type Result struct {
	Account *accountdomain.Account
}

// Service exposes account signup.
type Service interface {
	Signup(ctx context.Context, req Request) (*Result, error)
}
