package observability

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/amourlabs/amour/internal/config"
	"github.com/amourlabs/amour/internal/observability/logger"
	"github.com/amourlabs/amour/internal/observability/metrics"
	"github.com/amourlabs/amour/internal/observability/tracing"
)

// Config gathers logger, tracing and metrics settings.
type Config struct {
	Logger  logger.Config
	Tracing tracing.Config
	Metrics metrics.Config
}

// Debug reports whether debug-level output should be enabled.
func (c Config) Debug() bool {
	return strings.EqualFold(strings.TrimSpace(c.Logger.Level), "debug")
}

// LoadConfig derives observability settings from app config and environment.
func LoadConfig(cfg config.Config) Config {
	otelEnabled := envBool("OTEL_ENABLED", false)
	protocol := env("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")

	return Config{
		Logger: logger.Config{
			ServiceName:         cfg.AppName,
			Environment:         cfg.Environment,
			Version:             cfg.AppVersion,
			Level:               env("LOG_LEVEL", "info"),
			Format:              env("LOG_FORMAT", "json"),
			Debug:               envBool("LOG_DEBUG", false),
			SamplingInitial:     envInt("LOG_SAMPLING_INITIAL", 100),
			SamplingThereafter:  envInt("LOG_SAMPLING_THEREAFTER", 100),
			SamplingWindow:      time.Second,
			IncludeCaller:       envBool("LOG_CALLER", true),
			IncludeStackOnError: envBool("LOG_STACK_ON_ERROR", true),
		},
		Tracing: tracing.Config{
			Enabled:          otelEnabled,
			ExporterEndpoint: cfg.OTLPEndpoint,
			ExporterProtocol: protocol,
			ServiceName:      cfg.AppName,
			ServiceVersion:   cfg.AppVersion,
			Environment:      cfg.Environment,
			SampleRatio:      envFloat("OTEL_TRACES_SAMPLE_RATIO", 1),
		},
		Metrics: metrics.Config{
			Enabled:          otelEnabled,
			ExporterEndpoint: cfg.OTLPEndpoint,
			ExporterProtocol: protocol,
			ServiceName:      cfg.AppName,
			Environment:      cfg.Environment,
		},
	}
}

func env(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}

func envInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func envFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}
