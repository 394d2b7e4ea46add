package migration

import (
	"strings"

	accountdomain "github.com/amourlabs/amour/internal/account/domain"
	"github.com/amourlabs/amour/internal/config"
	paymentdomain "github.com/amourlabs/amour/internal/payment/domain"
	payoutdomain "github.com/amourlabs/amour/internal/payout/domain"
	usagedomain "github.com/amourlabs/amour/internal/usage/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if !strings.EqualFold(cfg.DBType, "postgres") {
			// Versioned SQL migrations target postgres. Other dialects
			// (sqlite for local runs) derive the schema from the models.
			return conn.AutoMigrate(
				&accountdomain.Account{},
				&accountdomain.CreditedOrder{},
				&paymentdomain.PaymentEvent{},
				&payoutdomain.Influencer{},
				&payoutdomain.PayoutRecord{},
				&usagedomain.UsageEvent{},
				&usagedomain.UsageAggregate{},
			)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
