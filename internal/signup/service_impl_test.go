package signup

import (
	"context"
	"testing"
	"time"

	accountdomain "github.com/amourlabs/amour/internal/account/domain"
	accountservice "github.com/amourlabs/amour/internal/account/service"
	"github.com/amourlabs/amour/internal/clock"
	"github.com/amourlabs/amour/internal/config"
	payoutdomain "github.com/amourlabs/amour/internal/payout/domain"
	payoutservice "github.com/amourlabs/amour/internal/payout/service"
	"github.com/amourlabs/amour/internal/signup/domain"
	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestStack(t *testing.T) (domain.Service, payoutdomain.Service, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	err = db.AutoMigrate(
		&accountdomain.Account{},
		&accountdomain.CreditedOrder{},
		&payoutdomain.Influencer{},
		&payoutdomain.PayoutRecord{},
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
	payoutSvc := payoutservice.NewService(payoutservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: fakeClock,
	})
	signupSvc := NewService(accountSvc, payoutSvc, config.Config{SignupBonusCredits: 4})
	return signupSvc, payoutSvc, db
}

func TestSignupGrantsBonusCredits(t *testing.T) {
	signupSvc, _, _ := newTestStack(t)

	result, err := signupSvc.Signup(context.Background(), domain.Request{
		Username: "asha",
		Phone:    "+919900112233",
	})
	assert.NoError(t, err)
	assert.Equal(t, int64(4), result.Account.Credits)
}

func TestSignupAttributesReferral(t *testing.T) {
	signupSvc, payoutSvc, db := newTestStack(t)

	influencer, err := payoutSvc.Create(context.Background(), "Maya", "", "maya-2026")
	assert.NoError(t, err)

	result, err := signupSvc.Signup(context.Background(), domain.Request{
		Username:     "asha",
		Phone:        "+919900112233",
		ReferralCode: "maya-2026",
	})
	assert.NoError(t, err)
	assert.Equal(t, "maya-2026", result.Account.ReferredBy)

	var loaded payoutdomain.Influencer
	db.First(&loaded, "id = ?", influencer.ID)
	assert.Equal(t, int64(1), loaded.ReferralCount)
}

func TestSignupSurvivesUnknownReferralCode(t *testing.T) {
	signupSvc, _, _ := newTestStack(t)

	result, err := signupSvc.Signup(context.Background(), domain.Request{
		Username:     "asha",
		Phone:        "+919900112233",
		ReferralCode: "ghost-code",
	})
	assert.NoError(t, err)
	assert.Equal(t, int64(4), result.Account.Credits)
}

func TestSignupValidation(t *testing.T) {
	signupSvc, _, _ := newTestStack(t)

	_, err := signupSvc.Signup(context.Background(), domain.Request{Username: "", Phone: "+91"})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	_, err = signupSvc.Signup(context.Background(), domain.Request{Username: "asha", Phone: " "})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}
