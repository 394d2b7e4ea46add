package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrAccountNotFound = errors.New("user_not_found")
	ErrPhoneTaken      = errors.New("phone_already_registered")
	ErrInvalidAccount  = errors.New("invalid_account")
	ErrInvalidOrder    = errors.New("invalid_order")
	ErrInvalidCredits  = errors.New("invalid_credits")
)

// Account is a paying end user with a spendable credit balance.
type Account struct {
	ID         snowflake.ID `gorm:"primaryKey"`
	Username   string       `gorm:"type:text;not null"`
	Phone      string       `gorm:"type:text;not null;uniqueIndex"`
	Credits    int64        `gorm:"not null;default:0"`
	ReferredBy string       `gorm:"type:text;not null;default:''"`
	CreatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Account) TableName() string { return "accounts" }

// CreditedOrder marks an order as already converted into credits.
// The composite key makes the grant idempotent per (account, order).
type CreditedOrder struct {
	AccountID snowflake.ID `gorm:"primaryKey;autoIncrement:false"`
	OrderID   string       `gorm:"primaryKey;type:text"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (CreditedOrder) TableName() string { return "credited_orders" }

// CreditResult reports the outcome of an idempotent credit grant.
type CreditResult struct {
	Applied bool
	Credits int64
	Balance int64
}

// Service exposes account operations.
type Service interface {
	Get(ctx context.Context, id snowflake.ID) (*Account, error)
	Create(ctx context.Context, username, phone, referredBy string, bonusCredits int64) (*Account, error)
	ApplyCredit(ctx context.Context, accountID snowflake.ID, orderID string, credits int64) (CreditResult, error)
}
