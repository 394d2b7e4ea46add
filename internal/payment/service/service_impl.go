package service

import (
	"context"
	"strings"

	accountdomain "github.com/amourlabs/amour/internal/account/domain"
	"github.com/amourlabs/amour/internal/clock"
	"github.com/amourlabs/amour/internal/config"
	obslogger "github.com/amourlabs/amour/internal/observability/logger"
	obsmetrics "github.com/amourlabs/amour/internal/observability/metrics"
	paymentdomain "github.com/amourlabs/amour/internal/payment/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Config     config.Config
	GenID      *snowflake.Node
	Clock      clock.Clock
	AccountSvc accountdomain.Service
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	secret     string
	genID      *snowflake.Node
	clock      clock.Clock
	accountSvc accountdomain.Service
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) paymentdomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("payment.service"),
		secret:     p.Config.RazorpayKeySecret,
		genID:      p.GenID,
		clock:      p.Clock,
		accountSvc: p.AccountSvc,
		obsMetrics: p.ObsMetrics,
	}
}

// VerifyAndCredit validates the callback signature and, when genuine,
// grants the purchased credits exactly once per order.
func (s *Service) VerifyAndCredit(ctx context.Context, req paymentdomain.VerifyRequest) (paymentdomain.VerifyResult, error) {
	req.OrderID = strings.TrimSpace(req.OrderID)
	req.PaymentID = strings.TrimSpace(req.PaymentID)
	req.Signature = strings.TrimSpace(req.Signature)
	if req.AccountID == 0 || req.OrderID == "" || req.PaymentID == "" || req.Signature == "" {
		return paymentdomain.VerifyResult{}, paymentdomain.ErrInvalidRequest
	}

	if !paymentdomain.VerifySignature(s.secret, req.OrderID, req.PaymentID, req.Signature) {
		event := s.recordEvent(ctx, req, false, 0)
		s.obsMetrics.RecordPaymentEvent(ctx, "signature_mismatch")
		s.log.Warn("payment signature mismatch",
			zap.String("account_id", req.AccountID.String()),
			zap.String("order_id", req.OrderID),
		)
		return paymentdomain.VerifyResult{Event: event}, paymentdomain.ErrSignatureMismatch
	}

	credits := paymentdomain.CreditsForAmount(req.AmountRupees)
	if credits == 0 {
		account, err := s.accountSvc.Get(ctx, req.AccountID)
		if err != nil {
			return paymentdomain.VerifyResult{}, err
		}
		event := s.recordEvent(ctx, req, true, 0)
		s.obsMetrics.RecordPaymentEvent(ctx, "verified_unpriced")
		s.log.Warn("verified payment for unpriced amount",
			zap.String("account_id", req.AccountID.String()),
			zap.String("order_id", req.OrderID),
			zap.Int64("amount_rupees", req.AmountRupees),
		)
		return paymentdomain.VerifyResult{
			Verified: true,
			Balance:  account.Credits,
			Message:  "payment verified",
			Event:    event,
		}, nil
	}

	granted, err := s.accountSvc.ApplyCredit(ctx, req.AccountID, req.OrderID, credits)
	if err != nil {
		return paymentdomain.VerifyResult{}, err
	}

	message := "credits applied"
	outcome := "credited"
	if !granted.Applied {
		message = "order_already_applied"
		outcome = "replay"
	}
	event := s.recordEvent(ctx, req, true, granted.Credits)
	s.obsMetrics.RecordPaymentEvent(ctx, outcome)

	return paymentdomain.VerifyResult{
		Verified:       true,
		Applied:        granted.Applied,
		CreditsApplied: granted.Credits,
		Balance:        granted.Balance,
		Message:        message,
		Event:          event,
	}, nil
}

// recordEvent appends the audit row. Failures are logged and swallowed
// so the verification outcome still reaches the caller.
func (s *Service) recordEvent(ctx context.Context, req paymentdomain.VerifyRequest, verified bool, creditsApplied int64) *paymentdomain.PaymentEvent {
	event := paymentdomain.PaymentEvent{
		ID:             s.genID.Generate(),
		AccountID:      req.AccountID,
		OrderID:        req.OrderID,
		PaymentID:      req.PaymentID,
		Signature:      req.Signature,
		Verified:       verified,
		AmountRupees:   req.AmountRupees,
		CreditsApplied: creditsApplied,
		ReceivedAt:     s.clock.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&event).Error; err != nil {
		obslogger.FromContext(ctx).Warn("payment event append failed",
			zap.String("order_id", req.OrderID),
			zap.Error(err),
		)
		return nil
	}
	return &event
}
