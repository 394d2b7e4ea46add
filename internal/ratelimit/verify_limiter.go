package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/amourlabs/amour/internal/config"
	redis "github.com/redis/go-redis/v9"
)

const (
	keyVerifyAccount  = "payment:verify:account:%s"
	keyVerifyEndpoint = "payment:verify:endpoint"
	keyJobLock        = "job:lock:%s"
)

// VerifyLimiter throttles payment verification per account and across
// the endpoint. Nil when rate limiting is disabled.
type VerifyLimiter struct {
	enabled bool

	bucket *TokenBucket
	locker *Locker

	accountRate   float64
	accountBurst  int
	endpointRate  float64
	endpointBurst int
}

func NewVerifyLimiter(cfg config.Config) (*VerifyLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}

	addr := strings.TrimSpace(limitCfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("rate limit redis addr is required")
	}
	if limitCfg.AccountRate <= 0 || limitCfg.AccountBurst <= 0 {
		return nil, errors.New("account rate limit must be positive")
	}
	if limitCfg.EndpointRate <= 0 || limitCfg.EndpointBurst <= 0 {
		return nil, errors.New("endpoint rate limit must be positive")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(limitCfg.RedisPassword),
		DB:       limitCfg.RedisDB,
	})

	return &VerifyLimiter{
		enabled:       true,
		bucket:        NewTokenBucket(client),
		locker:        NewLocker(client),
		accountRate:   limitCfg.AccountRate,
		accountBurst:  limitCfg.AccountBurst,
		endpointRate:  limitCfg.EndpointRate,
		endpointBurst: limitCfg.EndpointBurst,
	}, nil
}

func (l *VerifyLimiter) Enabled() bool {
	return l != nil && l.enabled
}

func (l *VerifyLimiter) AllowAccount(ctx context.Context, accountID string) (*Result, error) {
	if !l.Enabled() {
		return &Result{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyVerifyAccount, strings.TrimSpace(accountID)), l.accountRate, l.accountBurst)
}

func (l *VerifyLimiter) AllowEndpoint(ctx context.Context) (*Result, error) {
	if !l.Enabled() {
		return &Result{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, keyVerifyEndpoint, l.endpointRate, l.endpointBurst)
}

// TryJobLock takes a best-effort singleton lock for a background job.
// When rate limiting is disabled the lock always succeeds locally.
func (l *VerifyLimiter) TryJobLock(ctx context.Context, job string, ttl time.Duration) (string, bool, error) {
	if !l.Enabled() {
		return "", true, nil
	}
	return l.locker.TryLock(ctx, fmt.Sprintf(keyJobLock, strings.TrimSpace(job)), ttl)
}

func (l *VerifyLimiter) ReleaseJobLock(ctx context.Context, job, token string) error {
	if !l.Enabled() {
		return nil
	}
	return l.locker.Release(ctx, fmt.Sprintf(keyJobLock, strings.TrimSpace(job)), token)
}
