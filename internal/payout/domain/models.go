package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrPayeeNotFound       = errors.New("influencer_not_found")
	ErrInsufficientPending = errors.New("insufficient_pending_payment")
	ErrInvalidPayee        = errors.New("invalid_influencer")
	ErrInvalidAmount       = errors.New("invalid_amount")
	ErrReferralCodeTaken   = errors.New("referral_code_taken")
)

// Influencer tracks referral earnings. PendingPayment is money owed,
// TotalEarning is money already paid out.
type Influencer struct {
	ID             snowflake.ID `gorm:"primaryKey"`
	Name           string       `gorm:"type:text;not null"`
	Contact        string       `gorm:"type:text;not null;default:''"`
	ReferralCode   string       `gorm:"type:text;not null;uniqueIndex"`
	ReferralCount  int64        `gorm:"not null;default:0"`
	PendingPayment int64        `gorm:"not null;default:0"`
	TotalEarning   int64        `gorm:"not null;default:0"`
	CreatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Influencer) TableName() string { return "influencers" }

// PayoutRecord is the append-only audit trail of completed payouts.
type PayoutRecord struct {
	ID           snowflake.ID `gorm:"primaryKey"`
	InfluencerID snowflake.ID `gorm:"not null;index:idx_payout_records_influencer,priority:1"`
	Amount       int64        `gorm:"not null"`
	Method       string       `gorm:"type:text;not null;default:''"`
	Note         string       `gorm:"type:text;not null;default:''"`
	ActorID      string       `gorm:"type:text;not null;default:''"`
	CreatedAt    time.Time    `gorm:"not null;index:idx_payout_records_influencer,priority:2;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (PayoutRecord) TableName() string { return "payout_records" }

// PayRequest describes one payout attempt. Amounts are whole rupees;
// the ledger never holds fractional balances.
type PayRequest struct {
	InfluencerID snowflake.ID
	Amount       int64
	Method       string
	Note         string
	ActorID      string
}

// PayResult reports balances after a successful payout.
type PayResult struct {
	Paid           int64
	PendingPayment int64
	TotalEarning   int64
}

// ListQuery paginates influencer listings.
type ListQuery struct {
	Page  int
	Limit int
}

// Service exposes influencer and payout operations.
type Service interface {
	Create(ctx context.Context, name, contact, referralCode string) (*Influencer, error)
	Get(ctx context.Context, id snowflake.ID) (*Influencer, error)
	List(ctx context.Context, q ListQuery) ([]Influencer, int64, error)
	Pay(ctx context.Context, req PayRequest) (PayResult, error)
	IncrementReferral(ctx context.Context, referralCode string) error
}
