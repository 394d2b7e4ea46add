package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	accountdomain "github.com/amourlabs/amour/internal/account/domain"
	accountservice "github.com/amourlabs/amour/internal/account/service"
	"github.com/amourlabs/amour/internal/clock"
	"github.com/amourlabs/amour/internal/config"
	paymentdomain "github.com/amourlabs/amour/internal/payment/domain"
	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testSecret = "test-secret"

func newTestStack(t *testing.T) (paymentdomain.Service, accountdomain.Service, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	err = db.AutoMigrate(
		&accountdomain.Account{},
		&accountdomain.CreditedOrder{},
		&paymentdomain.PaymentEvent{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	fakeClock := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	accountSvc := accountservice.NewService(accountservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: fakeClock,
	})
	paymentSvc := NewService(Params{
		DB:         db,
		Log:        zap.NewNop(),
		Config:     config.Config{RazorpayKeySecret: testSecret},
		GenID:      node,
		Clock:      fakeClock,
		AccountSvc: accountSvc,
	})
	return paymentSvc, accountSvc, db
}

func signFor(orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyAndCreditGrantsCredits(t *testing.T) {
	paymentSvc, accountSvc, db := newTestStack(t)

	account, err := accountSvc.Create(context.Background(), "asha", "+919900112233", "", 4)
	assert.NoError(t, err)

	result, err := paymentSvc.VerifyAndCredit(context.Background(), paymentdomain.VerifyRequest{
		AccountID:    account.ID,
		OrderID:      "order_1",
		PaymentID:    "pay_1",
		Signature:    signFor("order_1", "pay_1"),
		AmountRupees: 249,
	})
	assert.NoError(t, err)
	assert.True(t, result.Verified)
	assert.True(t, result.Applied)
	assert.Equal(t, int64(30), result.CreditsApplied)
	assert.Equal(t, int64(34), result.Balance)
	assert.NotNil(t, result.Event)
	assert.Equal(t, "order_1", result.Event.OrderID)

	var events []paymentdomain.PaymentEvent
	db.Find(&events)
	assert.Len(t, events, 1)
	assert.True(t, events[0].Verified)
	assert.Equal(t, int64(30), events[0].CreditsApplied)
}

func TestVerifyAndCreditReplayIsIdempotent(t *testing.T) {
	paymentSvc, accountSvc, _ := newTestStack(t)

	account, err := accountSvc.Create(context.Background(), "asha", "+919900112233", "", 4)
	assert.NoError(t, err)

	req := paymentdomain.VerifyRequest{
		AccountID:    account.ID,
		OrderID:      "order_1",
		PaymentID:    "pay_1",
		Signature:    signFor("order_1", "pay_1"),
		AmountRupees: 249,
	}

	first, err := paymentSvc.VerifyAndCredit(context.Background(), req)
	assert.NoError(t, err)
	assert.True(t, first.Applied)

	replay, err := paymentSvc.VerifyAndCredit(context.Background(), req)
	assert.NoError(t, err)
	assert.True(t, replay.Verified)
	assert.False(t, replay.Applied)
	assert.Equal(t, int64(0), replay.CreditsApplied)
	assert.Equal(t, int64(34), replay.Balance)
	assert.Equal(t, "order_already_applied", replay.Message)
}

func TestVerifyAndCreditRejectsBadSignature(t *testing.T) {
	paymentSvc, accountSvc, db := newTestStack(t)

	account, err := accountSvc.Create(context.Background(), "asha", "+919900112233", "", 4)
	assert.NoError(t, err)

	result, err := paymentSvc.VerifyAndCredit(context.Background(), paymentdomain.VerifyRequest{
		AccountID:    account.ID,
		OrderID:      "order_1",
		PaymentID:    "pay_1",
		Signature:    signFor("order_1", "pay_other"),
		AmountRupees: 249,
	})
	assert.ErrorIs(t, err, paymentdomain.ErrSignatureMismatch)
	assert.NotNil(t, result.Event)
	assert.False(t, result.Event.Verified)

	// Balance untouched, mismatch recorded for audit.
	loaded, err := accountSvc.Get(context.Background(), account.ID)
	assert.NoError(t, err)
	assert.Equal(t, int64(4), loaded.Credits)

	var events []paymentdomain.PaymentEvent
	db.Find(&events)
	assert.Len(t, events, 1)
	assert.False(t, events[0].Verified)
}

func TestVerifyAndCreditUnpricedAmount(t *testing.T) {
	paymentSvc, accountSvc, _ := newTestStack(t)

	account, err := accountSvc.Create(context.Background(), "asha", "+919900112233", "", 4)
	assert.NoError(t, err)

	result, err := paymentSvc.VerifyAndCredit(context.Background(), paymentdomain.VerifyRequest{
		AccountID:    account.ID,
		OrderID:      "order_1",
		PaymentID:    "pay_1",
		Signature:    signFor("order_1", "pay_1"),
		AmountRupees: 500,
	})
	assert.NoError(t, err)
	assert.True(t, result.Verified)
	assert.False(t, result.Applied)
	assert.Equal(t, int64(0), result.CreditsApplied)
	assert.Equal(t, int64(4), result.Balance)
}

func TestVerifyAndCreditUnknownAccount(t *testing.T) {
	paymentSvc, _, _ := newTestStack(t)
	node, _ := snowflake.NewNode(2)

	_, err := paymentSvc.VerifyAndCredit(context.Background(), paymentdomain.VerifyRequest{
		AccountID:    node.Generate(),
		OrderID:      "order_1",
		PaymentID:    "pay_1",
		Signature:    signFor("order_1", "pay_1"),
		AmountRupees: 249,
	})
	assert.ErrorIs(t, err, accountdomain.ErrAccountNotFound)
}

func TestVerifyAndCreditValidation(t *testing.T) {
	paymentSvc, accountSvc, _ := newTestStack(t)

	account, err := accountSvc.Create(context.Background(), "asha", "+919900112233", "", 4)
	assert.NoError(t, err)

	_, err = paymentSvc.VerifyAndCredit(context.Background(), paymentdomain.VerifyRequest{
		AccountID: account.ID,
		OrderID:   "",
		PaymentID: "pay_1",
		Signature: "sig",
	})
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidRequest)
}
