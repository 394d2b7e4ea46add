package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/amourlabs/amour/internal/clock"
	obsmetrics "github.com/amourlabs/amour/internal/observability/metrics"
	payoutdomain "github.com/amourlabs/amour/internal/payout/domain"
	"github.com/amourlabs/amour/pkg/db"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) payoutdomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("payout.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) Create(ctx context.Context, name, contact, referralCode string) (*payoutdomain.Influencer, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, payoutdomain.ErrInvalidPayee
	}

	referralCode = strings.TrimSpace(referralCode)
	if referralCode == "" {
		referralCode = generateReferralCode(name, s.clock.Now().Year())
	}

	now := s.clock.Now().UTC()
	influencer := payoutdomain.Influencer{
		ID:           s.genID.Generate(),
		Name:         name,
		Contact:      strings.TrimSpace(contact),
		ReferralCode: referralCode,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.db.WithContext(ctx).Create(&influencer).Error; err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, payoutdomain.ErrReferralCodeTaken
		}
		return nil, err
	}

	s.log.Info("influencer created",
		zap.String("influencer_id", influencer.ID.String()),
		zap.String("referral_code", influencer.ReferralCode),
	)
	return &influencer, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*payoutdomain.Influencer, error) {
	if id == 0 {
		return nil, payoutdomain.ErrInvalidPayee
	}

	var influencer payoutdomain.Influencer
	err := s.db.WithContext(ctx).First(&influencer, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, payoutdomain.ErrPayeeNotFound
	}
	if err != nil {
		return nil, err
	}
	return &influencer, nil
}

func (s *Service) List(ctx context.Context, q payoutdomain.ListQuery) ([]payoutdomain.Influencer, int64, error) {
	page := q.Page
	if page < 1 {
		page = 1
	}
	limit := q.Limit
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	var total int64
	if err := s.db.WithContext(ctx).Model(&payoutdomain.Influencer{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var influencers []payoutdomain.Influencer
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&influencers).Error
	if err != nil {
		return nil, 0, err
	}
	return influencers, total, nil
}

// Pay moves owed money into earnings under a balance guard. The single
// guarded UPDATE keeps concurrent payouts from overdrawing.
func (s *Service) Pay(ctx context.Context, req payoutdomain.PayRequest) (payoutdomain.PayResult, error) {
	if req.InfluencerID == 0 {
		return payoutdomain.PayResult{}, payoutdomain.ErrInvalidPayee
	}
	if req.Amount <= 0 {
		return payoutdomain.PayResult{}, payoutdomain.ErrInvalidAmount
	}

	update := s.db.WithContext(ctx).Exec(
		`UPDATE influencers
		 SET pending_payment = pending_payment - ?,
		     total_earning = total_earning + ?,
		     updated_at = ?
		 WHERE id = ? AND pending_payment >= ?`,
		req.Amount, req.Amount, s.clock.Now().UTC(), req.InfluencerID, req.Amount,
	)
	if update.Error != nil {
		return payoutdomain.PayResult{}, update.Error
	}
	if update.RowsAffected == 0 {
		// Distinguish a missing payee from a guard failure.
		var influencer payoutdomain.Influencer
		err := s.db.WithContext(ctx).First(&influencer, "id = ?", req.InfluencerID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return payoutdomain.PayResult{}, payoutdomain.ErrPayeeNotFound
		}
		if err != nil {
			return payoutdomain.PayResult{}, err
		}
		return payoutdomain.PayResult{PendingPayment: influencer.PendingPayment}, payoutdomain.ErrInsufficientPending
	}

	var influencer payoutdomain.Influencer
	if err := s.db.WithContext(ctx).First(&influencer, "id = ?", req.InfluencerID).Error; err != nil {
		return payoutdomain.PayResult{}, err
	}

	record := payoutdomain.PayoutRecord{
		ID:           s.genID.Generate(),
		InfluencerID: req.InfluencerID,
		Amount:       req.Amount,
		Method:       strings.TrimSpace(req.Method),
		Note:         strings.TrimSpace(req.Note),
		ActorID:      strings.TrimSpace(req.ActorID),
		CreatedAt:    s.clock.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		// The balance move already committed. Keep it and flag the gap.
		s.log.Warn("payout record append failed",
			zap.String("influencer_id", req.InfluencerID.String()),
			zap.Int64("amount", req.Amount),
			zap.Error(err),
		)
	}

	s.obsMetrics.RecordPayout(ctx, req.Method)
	s.log.Info("payout completed",
		zap.String("influencer_id", req.InfluencerID.String()),
		zap.Int64("amount", req.Amount),
		zap.Int64("pending_payment", influencer.PendingPayment),
		zap.Int64("total_earning", influencer.TotalEarning),
	)
	return payoutdomain.PayResult{
		Paid:           req.Amount,
		PendingPayment: influencer.PendingPayment,
		TotalEarning:   influencer.TotalEarning,
	}, nil
}

// IncrementReferral bumps the referral counter for a code. Unknown
// codes are a no-op so signup never fails on a stale code.
func (s *Service) IncrementReferral(ctx context.Context, referralCode string) error {
	referralCode = strings.TrimSpace(referralCode)
	if referralCode == "" {
		return nil
	}

	update := s.db.WithContext(ctx).Exec(
		`UPDATE influencers SET referral_count = referral_count + 1, updated_at = ? WHERE referral_code = ?`,
		s.clock.Now().UTC(), referralCode,
	)
	if update.Error != nil {
		return update.Error
	}
	if update.RowsAffected == 0 {
		s.log.Debug("referral code not found", zap.String("referral_code", referralCode))
	}
	return nil
}

func generateReferralCode(name string, year int) string {
	prefix := strings.ToLower(strings.Split(strings.TrimSpace(name), " ")[0])
	if len(prefix) > 6 {
		prefix = prefix[:6]
	}
	buf := make([]byte, 2)
	_, _ = rand.Read(buf)
	return fmt.Sprintf("%s-%s%d", prefix, hex.EncodeToString(buf), year)
}
