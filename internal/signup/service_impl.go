package signup

import (
	"context"
	"strings"

	accountdomain "github.com/amourlabs/amour/internal/account/domain"
	"github.com/amourlabs/amour/internal/config"
	obslogger "github.com/amourlabs/amour/internal/observability/logger"
	payoutdomain "github.com/amourlabs/amour/internal/payout/domain"
	"github.com/amourlabs/amour/internal/signup/domain"
	"go.uber.org/zap"
)

type service struct {
	accountsvc   accountdomain.Service
	payoutsvc    payoutdomain.Service
	bonusCredits int64
}

func NewService(accountsvc accountdomain.Service, payoutsvc payoutdomain.Service, cfg config.Config) domain.Service {
	return &service{
		accountsvc:   accountsvc,
		payoutsvc:    payoutsvc,
		bonusCredits: cfg.SignupBonusCredits,
	}
}

func (s *service) Signup(ctx context.Context, req domain.Request) (*domain.Result, error) {
	if strings.TrimSpace(req.Username) == "" || strings.TrimSpace(req.Phone) == "" {
		return nil, domain.ErrInvalidRequest
	}

	referralCode := strings.TrimSpace(req.ReferralCode)
	account, err := s.accountsvc.Create(ctx, req.Username, req.Phone, referralCode, s.bonusCredits)
	if err != nil {
		return nil, err
	}

	// Referral attribution is best effort. The account exists either way.
	if referralCode != "" {
		if err := s.payoutsvc.IncrementReferral(ctx, referralCode); err != nil {
			obslogger.FromContext(ctx).Warn("referral increment failed",
				zap.String("referral_code", referralCode),
				zap.Error(err),
			)
		}
	}

	return &domain.Result{Account: account}, nil
}
