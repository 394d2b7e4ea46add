package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/amourlabs/amour/internal/clock"
	"github.com/amourlabs/amour/internal/config"
	obsmetrics "github.com/amourlabs/amour/internal/observability/metrics"
	usagedomain "github.com/amourlabs/amour/internal/usage/domain"
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
	Config     config.Config
	GenID      *snowflake.Node
	Clock      clock.Clock
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	ttl        time.Duration
	genID      *snowflake.Node
	clock      clock.Clock
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) usagedomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("usage.service"),
		ttl:        p.Config.UsageEventTTL,
		genID:      p.GenID,
		clock:      p.Clock,
		obsMetrics: p.ObsMetrics,
	}
}

// Record writes the detailed event and folds it into the permanent
// aggregates for its category and for the all-categories row.
func (s *Service) Record(ctx context.Context, rec usagedomain.Record) error {
	rec.Category = strings.TrimSpace(rec.Category)
	if !usagedomain.ValidCategory(rec.Category) {
		return usagedomain.ErrInvalidCategory
	}
	if rec.AccountID == 0 {
		return usagedomain.ErrInvalidAccount
	}

	totalTokens := rec.PromptTokens + rec.CompletionTokens
	now := s.clock.Now().UTC()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		event := usagedomain.UsageEvent{
			ID:               s.genID.Generate(),
			AccountID:        rec.AccountID,
			Category:         rec.Category,
			Model:            strings.TrimSpace(rec.Model),
			Input:            rec.Input,
			Output:           rec.Output,
			PromptTokens:     rec.PromptTokens,
			CompletionTokens: rec.CompletionTokens,
			TotalTokens:      totalTokens,
			CostINR:          rec.CostINR,
			CreatedAt:        now,
		}
		if err := tx.Create(&event).Error; err != nil {
			return err
		}

		for _, category := range []string{rec.Category, usagedomain.AggregateAll} {
			if err := upsertAggregate(tx, category, rec, totalTokens, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.obsMetrics.RecordUsageEvent(ctx, rec.Category)
	return nil
}

func upsertAggregate(tx *gorm.DB, category string, rec usagedomain.Record, totalTokens int64, now time.Time) error {
	return tx.Exec(
		`INSERT INTO usage_aggregates (
			category, total_requests, total_prompt_tokens, total_completion_tokens, total_tokens, total_cost_inr, updated_at
		) VALUES (?, 1, ?, ?, ?, ?, ?)
		ON CONFLICT (category) DO UPDATE SET
			total_requests = usage_aggregates.total_requests + 1,
			total_prompt_tokens = usage_aggregates.total_prompt_tokens + excluded.total_prompt_tokens,
			total_completion_tokens = usage_aggregates.total_completion_tokens + excluded.total_completion_tokens,
			total_tokens = usage_aggregates.total_tokens + excluded.total_tokens,
			total_cost_inr = usage_aggregates.total_cost_inr + excluded.total_cost_inr,
			updated_at = excluded.updated_at`,
		category, rec.PromptTokens, rec.CompletionTokens, totalTokens, rec.CostINR, now,
	).Error
}

// Stats lists recent events newest first. Items and Total cover the
// retention window only; Totals come from the permanent aggregate row,
// so they never shrink as events expire.
func (s *Service) Stats(ctx context.Context, q usagedomain.StatsQuery) (usagedomain.StatsResult, error) {
	q.Category = strings.TrimSpace(q.Category)
	if q.Category != "" && !usagedomain.ValidCategory(q.Category) {
		return usagedomain.StatsResult{}, usagedomain.ErrInvalidCategory
	}

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

	cutoff := s.clock.Now().UTC().Add(-s.ttl)
	base := s.db.WithContext(ctx).Model(&usagedomain.UsageEvent{}).Where("created_at > ?", cutoff)
	if q.Category != "" {
		base = base.Where("category = ?", q.Category)
	}

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return usagedomain.StatsResult{}, err
	}

	var items []usagedomain.UsageEvent
	err := base.Session(&gorm.Session{}).
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return usagedomain.StatsResult{}, err
	}

	aggCategory := q.Category
	if aggCategory == "" {
		aggCategory = usagedomain.AggregateAll
	}
	var agg usagedomain.UsageAggregate
	err = s.db.WithContext(ctx).
		Where("category = ?", aggCategory).
		First(&agg).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return usagedomain.StatsResult{}, err
	}

	return usagedomain.StatsResult{
		Items: items,
		Total: total,
		Page:  page,
		Totals: usagedomain.StatsTotals{
			CostINR:  roundCost(agg.TotalCostINR),
			Tokens:   agg.TotalTokens,
			Requests: agg.TotalRequests,
		},
	}, nil
}

func (s *Service) Aggregates(ctx context.Context) ([]usagedomain.UsageAggregate, error) {
	var aggregates []usagedomain.UsageAggregate
	err := s.db.WithContext(ctx).Order("category ASC").Find(&aggregates).Error
	if err != nil {
		return nil, err
	}
	return aggregates, nil
}

// Purge drops detailed events past the retention window. Aggregates
// are untouched so historical totals survive.
func (s *Service) Purge(ctx context.Context, olderThan time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("created_at < ?", olderThan).
		Delete(&usagedomain.UsageEvent{})
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected > 0 {
		s.log.Info("purged expired usage events",
			zap.Int64("deleted", result.RowsAffected),
			zap.Time("older_than", olderThan),
		)
	}
	return result.RowsAffected, nil
}

func roundCost(v float64) float64 {
	return math.Round(v*10000) / 10000
}
