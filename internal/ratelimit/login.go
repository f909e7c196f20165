package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/queueline/internal/config"
	"go.uber.org/zap"
)

const keyLoginClient = "queueline:login:ip:%s"

// LoginLimiter throttles credential checks per client IP.
type LoginLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
}

// NewLoginLimiter returns nil when throttling is disabled or Redis is absent.
func NewLoginLimiter(cfg config.Config, client *redis.Client, log *zap.Logger) (*LoginLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.LoginEnabled {
		return nil, nil
	}
	if client == nil {
		log.Info("login rate limit disabled, redis not configured")
		return nil, nil
	}
	if limitCfg.LoginRate <= 0 || limitCfg.LoginBurst <= 0 {
		return nil, errors.New("login rate limit must be positive")
	}

	return &LoginLimiter{
		bucket: NewTokenBucket(client),
		rate:   limitCfg.LoginRate,
		burst:  limitCfg.LoginBurst,
	}, nil
}

func (l *LoginLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

func (l *LoginLimiter) Allow(ctx context.Context, clientIP string) (*RateLimitResult, error) {
	if !l.Enabled() {
		return &RateLimitResult{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyLoginClient, strings.TrimSpace(clientIP)), l.rate, l.burst)
}
