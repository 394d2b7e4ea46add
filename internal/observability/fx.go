package observability

import (
	"github.com/amourlabs/amour/internal/observability/logger"
	"github.com/amourlabs/amour/internal/observability/metrics"
	"github.com/amourlabs/amour/internal/observability/tracing"
	"go.uber.org/fx"
)

// Module wires logging, tracing and metrics providers.
var Module = fx.Module("observability",
	fx.Provide(
		LoadConfig,
		func(cfg Config) logger.Config { return cfg.Logger },
		func(cfg Config) tracing.Config { return cfg.Tracing },
		func(cfg Config) metrics.Config { return cfg.Metrics },
		logger.New,
		tracing.NewProvider,
		metrics.NewProvider,
		metrics.New,
		metrics.NewHTTPMetrics,
	),
)
