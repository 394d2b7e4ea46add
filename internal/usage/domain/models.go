package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

var (
	ErrInvalidCategory = errors.New("invalid_category")
	ErrInvalidAccount  = errors.New("invalid_account")
)

// AggregateAll is the sentinel aggregate row summing every category.
const AggregateAll = "_all"

// Categories are the generation features whose usage is metered.
const (
	CategoryBio               = "bio"
	CategoryProfileAnalysis   = "profile_analysis"
	CategoryChatAnalysis      = "chat_analysis"
	CategoryChatImageAnalysis = "chat_image_analysis"
)

var knownCategories = map[string]struct{}{
	CategoryBio:               {},
	CategoryProfileAnalysis:   {},
	CategoryChatAnalysis:      {},
	CategoryChatImageAnalysis: {},
}

// ValidCategory reports whether a category is metered.
func ValidCategory(category string) bool {
	_, ok := knownCategories[category]
	return ok
}

// Categories returns the metered categories in a stable order.
func Categories() []string {
	return []string{
		CategoryBio,
		CategoryProfileAnalysis,
		CategoryChatAnalysis,
		CategoryChatImageAnalysis,
	}
}

// UsageEvent is the detailed per-request record. Rows expire after the
// retention window; totals survive in UsageAggregate.
type UsageEvent struct {
	ID               snowflake.ID   `gorm:"primaryKey"`
	AccountID        snowflake.ID   `gorm:"not null"`
	Category         string         `gorm:"type:text;not null;index:idx_usage_events_category_created,priority:1"`
	Model            string         `gorm:"type:text;not null;default:''"`
	Input            datatypes.JSON `gorm:"type:jsonb"`
	Output           datatypes.JSON `gorm:"type:jsonb"`
	PromptTokens     int64          `gorm:"not null;default:0"`
	CompletionTokens int64          `gorm:"not null;default:0"`
	TotalTokens      int64          `gorm:"not null;default:0"`
	CostINR          float64        `gorm:"not null;default:0"`
	CreatedAt        time.Time      `gorm:"not null;index;index:idx_usage_events_category_created,priority:2"`
}

// TableName sets the database table name.
func (UsageEvent) TableName() string { return "usage_events" }

// UsageAggregate is the permanent running total per category, plus the
// AggregateAll row covering all categories.
type UsageAggregate struct {
	Category              string    `gorm:"primaryKey;type:text"`
	TotalRequests         int64     `gorm:"not null;default:0"`
	TotalPromptTokens     int64     `gorm:"not null;default:0"`
	TotalCompletionTokens int64     `gorm:"not null;default:0"`
	TotalTokens           int64     `gorm:"not null;default:0"`
	TotalCostINR          float64   `gorm:"not null;default:0"`
	UpdatedAt             time.Time `gorm:"not null"`
}

// TableName sets the database table name.
func (UsageAggregate) TableName() string { return "usage_aggregates" }

// Record captures one generation request.
type Record struct {
	AccountID        snowflake.ID
	Category         string
	Model            string
	Input            datatypes.JSON
	Output           datatypes.JSON
	PromptTokens     int64
	CompletionTokens int64
	CostINR          float64
}

// StatsQuery filters the recent-events listing.
type StatsQuery struct {
	Category string
	Page     int
	Limit    int
}

// StatsTotals carries the permanent running totals for the queried
// category. Unlike Items and Total, these never shrink as events expire.
type StatsTotals struct {
	CostINR  float64
	Tokens   int64
	Requests int64
}

// StatsResult is the paginated recent-events page plus permanent totals.
type StatsResult struct {
	Items  []UsageEvent
	Total  int64
	Page   int
	Totals StatsTotals
}

// Service exposes usage accounting.
type Service interface {
	Record(ctx context.Context, rec Record) error
	Stats(ctx context.Context, q StatsQuery) (StatsResult, error)
	Aggregates(ctx context.Context) ([]UsageAggregate, error)
	Purge(ctx context.Context, olderThan time.Time) (int64, error)
}
