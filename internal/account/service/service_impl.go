package service

import (
	"context"
	"errors"
	"strings"

	accountdomain "github.com/amourlabs/amour/internal/account/domain"
	"github.com/amourlabs/amour/internal/clock"
	obsmetrics "github.com/amourlabs/amour/internal/observability/metrics"
	"github.com/amourlabs/amour/pkg/db"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
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

func NewService(p Params) accountdomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("account.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*accountdomain.Account, error) {
	if id == 0 {
		return nil, accountdomain.ErrInvalidAccount
	}

	var account accountdomain.Account
	err := s.db.WithContext(ctx).First(&account, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, accountdomain.ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (s *Service) Create(ctx context.Context, username, phone, referredBy string, bonusCredits int64) (*accountdomain.Account, error) {
	username = strings.TrimSpace(username)
	phone = strings.TrimSpace(phone)
	if username == "" || phone == "" {
		return nil, accountdomain.ErrInvalidAccount
	}
	if bonusCredits < 0 {
		bonusCredits = 0
	}

	now := s.clock.Now().UTC()
	account := accountdomain.Account{
		ID:         s.genID.Generate(),
		Username:   username,
		Phone:      phone,
		Credits:    bonusCredits,
		ReferredBy: strings.TrimSpace(referredBy),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.db.WithContext(ctx).Create(&account).Error; err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, accountdomain.ErrPhoneTaken
		}
		return nil, err
	}

	s.log.Info("account created",
		zap.String("account_id", account.ID.String()),
		zap.Int64("bonus_credits", bonusCredits),
	)
	return &account, nil
}

// ApplyCredit grants credits for an order exactly once. Replays of the
// same (account, order) pair leave the balance untouched and report the
// current balance instead.
func (s *Service) ApplyCredit(ctx context.Context, accountID snowflake.ID, orderID string, credits int64) (accountdomain.CreditResult, error) {
	orderID = strings.TrimSpace(orderID)
	if accountID == 0 {
		return accountdomain.CreditResult{}, accountdomain.ErrInvalidAccount
	}
	if orderID == "" {
		return accountdomain.CreditResult{}, accountdomain.ErrInvalidOrder
	}
	if credits < 0 {
		return accountdomain.CreditResult{}, accountdomain.ErrInvalidCredits
	}

	var result accountdomain.CreditResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		marker := accountdomain.CreditedOrder{
			AccountID: accountID,
			OrderID:   orderID,
			CreatedAt: s.clock.Now().UTC(),
		}
		insert := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&marker)
		if insert.Error != nil {
			return insert.Error
		}
		if insert.RowsAffected == 0 {
			var account accountdomain.Account
			if err := tx.First(&account, "id = ?", accountID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return accountdomain.ErrAccountNotFound
				}
				return err
			}
			result = accountdomain.CreditResult{Applied: false, Credits: 0, Balance: account.Credits}
			return nil
		}

		update := tx.Exec(
			`UPDATE accounts SET credits = credits + ?, updated_at = ? WHERE id = ?`,
			credits, s.clock.Now().UTC(), accountID,
		)
		if update.Error != nil {
			return update.Error
		}
		if update.RowsAffected == 0 {
			return accountdomain.ErrAccountNotFound
		}

		var account accountdomain.Account
		if err := tx.First(&account, "id = ?", accountID).Error; err != nil {
			return err
		}
		result = accountdomain.CreditResult{Applied: true, Credits: credits, Balance: account.Credits}
		return nil
	})
	if err != nil {
		return accountdomain.CreditResult{}, err
	}

	if result.Applied {
		s.obsMetrics.RecordCreditsApplied(ctx, result.Credits)
		s.log.Info("credits applied",
			zap.String("account_id", accountID.String()),
			zap.String("order_id", orderID),
			zap.Int64("credits", result.Credits),
			zap.Int64("balance", result.Balance),
		)
	} else {
		s.log.Info("order already credited",
			zap.String("account_id", accountID.String()),
			zap.String("order_id", orderID),
		)
	}
	return result, nil
}
