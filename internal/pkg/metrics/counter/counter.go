package counter

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	WebhookOutcomesKey = "billing:counters:webhook_outcomes"
	VerifyResultsKey   = "credentials:counters:verify_results"
)

// Hash is the subset of the Redis client the counters need.
type Hash interface {
	HIncrBy(ctx context.Context, key, field string, incr int64) *redis.IntCmd
}

// Counter keeps running totals in Redis hashes, one field per label.
// A nil Counter or nil client records nothing.
type Counter struct {
	rdb Hash
}

func New(rdb Hash) *Counter {
	return &Counter{rdb: rdb}
}

// Add increments key/field. Failures are only logged.
func (c *Counter) Add(ctx context.Context, key, field string) {
	if c == nil || c.rdb == nil || field == "" {
		return
	}
	if err := c.rdb.HIncrBy(ctx, key, field, 1).Err(); err != nil {
		log.Debug().Err(err).Str("key", key).Str("field", field).Msg("counter increment failed")
	}
}

// WebhookOutcome counts one handled Stripe event by outcome.
func (c *Counter) WebhookOutcome(ctx context.Context, outcome string) {
	c.Add(ctx, WebhookOutcomesKey, outcome)
}

// VerifyResult counts one verification by result ("valid" or the reason).
func (c *Counter) VerifyResult(ctx context.Context, result string) {
	c.Add(ctx, VerifyResultsKey, result)
}
