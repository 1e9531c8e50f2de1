package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/subtrack/internal/config"
)

const keyJobTrigger = "ratelimit:jobs:%s"

// JobTriggerLimiter throttles the manual job trigger endpoints per job name.
// A nil or disabled limiter allows everything, so the endpoints keep working
// when redis is not deployed.
type JobTriggerLimiter struct {
	enabled bool

	bucket *TokenBucket
	rate   float64
	burst  int
}

func NewJobTriggerLimiter(cfg config.Config, client *redis.Client) (*JobTriggerLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}
	if client == nil {
		return nil, errors.New("rate limit requires a redis client, set REDIS_ADDR")
	}
	if limitCfg.JobTriggerRate <= 0 || limitCfg.JobTriggerBurst <= 0 {
		return nil, errors.New("job trigger rate limit must be positive")
	}

	return &JobTriggerLimiter{
		enabled: true,
		bucket:  NewTokenBucket(client),
		rate:    limitCfg.JobTriggerRate,
		burst:   limitCfg.JobTriggerBurst,
	}, nil
}

func (l *JobTriggerLimiter) Enabled() bool {
	return l != nil && l.enabled
}

func (l *JobTriggerLimiter) Allow(ctx context.Context, job string) (*RateLimitResult, error) {
	if !l.Enabled() {
		return &RateLimitResult{Allowed: true}, nil
	}
	key := fmt.Sprintf(keyJobTrigger, strings.TrimSpace(job))
	return l.bucket.Allow(ctx, key, l.rate, l.burst)
}
