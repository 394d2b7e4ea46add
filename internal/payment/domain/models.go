package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrSignatureMismatch = errors.New("signature_mismatch")
	ErrInvalidRequest    = errors.New("invalid_payment_request")
)

// Pricing maps checkout amounts in rupees to granted credits. Amounts
// outside the table verify successfully but grant nothing.
var Pricing = map[int64]int64{
	99:  10,
	249: 30,
	449: 55,
	699: 90,
}

// CreditsForAmount returns the credits purchased by a rupee amount.
func CreditsForAmount(amountRupees int64) int64 {
	return Pricing[amountRupees]
}

// PaymentEvent is an append-only record of a verification attempt. It is
// echoed back to the caller, so the JSON field names are part of the API.
type PaymentEvent struct {
	ID             snowflake.ID `gorm:"primaryKey" json:"id"`
	AccountID      snowflake.ID `gorm:"not null;index:idx_payment_events_account,priority:1" json:"accountId"`
	OrderID        string       `gorm:"type:text;not null" json:"orderId"`
	PaymentID      string       `gorm:"type:text;not null" json:"paymentId"`
	Signature      string       `gorm:"type:text;not null" json:"signature"`
	Verified       bool         `gorm:"not null" json:"verified"`
	AmountRupees   int64        `gorm:"not null" json:"amountRupees"`
	CreditsApplied int64        `gorm:"not null;default:0" json:"creditsApplied"`
	ReceivedAt     time.Time    `gorm:"not null;index:idx_payment_events_account,priority:2;default:CURRENT_TIMESTAMP" json:"receivedAt"`
}

// TableName sets the database table name.
func (PaymentEvent) TableName() string { return "payment_events" }

// VerifyRequest carries the gateway callback fields.
type VerifyRequest struct {
	AccountID    snowflake.ID
	OrderID      string
	PaymentID    string
	Signature    string
	AmountRupees int64
}

// VerifyResult reports the outcome of a verified payment. Event is the
// audit row appended for this attempt, nil only when the append failed.
type VerifyResult struct {
	Verified       bool
	Applied        bool
	CreditsApplied int64
	Balance        int64
	Message        string
	Event          *PaymentEvent
}

// Service exposes payment verification.
type Service interface {
	VerifyAndCredit(ctx context.Context, req VerifyRequest) (VerifyResult, error)
}
