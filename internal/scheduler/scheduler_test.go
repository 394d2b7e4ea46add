package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/amourlabs/amour/internal/clock"
	appconfig "github.com/amourlabs/amour/internal/config"
	usagedomain "github.com/amourlabs/amour/internal/usage/domain"
	usageservice "github.com/amourlabs/amour/internal/usage/service"
	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestScheduler(t *testing.T) (*Scheduler, usagedomain.Service, *gorm.DB, *clock.FakeClock, *snowflake.Node) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&usagedomain.UsageEvent{}, &usagedomain.UsageAggregate{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	fakeClock := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	cfg := appconfig.Config{UsageEventTTL: 48 * time.Hour}

	usageSvc := usageservice.NewService(usageservice.Params{
		DB:     db,
		Log:    zap.NewNop(),
		Config: cfg,
		GenID:  node,
		Clock:  fakeClock,
	})

	sched, err := New(Params{
		Log:       zap.NewNop(),
		Clock:     fakeClock,
		AppConfig: cfg,
		UsageSvc:  usageSvc,
	})
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	return sched, usageSvc, db, fakeClock, node
}

func TestUsagePurgeJobDropsExpiredEvents(t *testing.T) {
	sched, usageSvc, db, fakeClock, node := newTestScheduler(t)
	accountID := node.Generate()

	err := usageSvc.Record(context.Background(), usagedomain.Record{
		AccountID:    accountID,
		Category:     usagedomain.CategoryBio,
		PromptTokens: 10,
	})
	assert.NoError(t, err)

	fakeClock.Advance(72 * time.Hour)
	err = usageSvc.Record(context.Background(), usagedomain.Record{
		AccountID:    accountID,
		Category:     usagedomain.CategoryBio,
		PromptTokens: 20,
	})
	assert.NoError(t, err)

	assert.NoError(t, sched.RunOnce(context.Background()))

	var events int64
	db.Model(&usagedomain.UsageEvent{}).Count(&events)
	assert.Equal(t, int64(1), events)

	var all usagedomain.UsageAggregate
	assert.NoError(t, db.First(&all, "category = ?", usagedomain.AggregateAll).Error)
	assert.Equal(t, int64(2), all.TotalRequests)
}

func TestUsagePurgeJobKeepsFreshEvents(t *testing.T) {
	sched, usageSvc, db, _, node := newTestScheduler(t)

	err := usageSvc.Record(context.Background(), usagedomain.Record{
		AccountID:    node.Generate(),
		Category:     usagedomain.CategoryBio,
		PromptTokens: 10,
	})
	assert.NoError(t, err)

	assert.NoError(t, sched.RunOnce(context.Background()))

	var events int64
	db.Model(&usagedomain.UsageEvent{}).Count(&events)
	assert.Equal(t, int64(1), events)
}
