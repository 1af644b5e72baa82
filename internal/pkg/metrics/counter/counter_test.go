package counter

import (
	"context"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

type memHash struct {
	data map[string]map[string]int64
	err  error
}

func newMemHash() *memHash {
	return &memHash{data: map[string]map[string]int64{}}
}

func (m *memHash) HIncrBy(ctx context.Context, key, field string, incr int64) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx)
	if m.err != nil {
		cmd.SetErr(m.err)
		return cmd
	}
	if m.data[key] == nil {
		m.data[key] = map[string]int64{}
	}
	m.data[key][field] += incr
	cmd.SetVal(m.data[key][field])
	return cmd
}

func TestCounter_WebhookOutcomes(t *testing.T) {
	h := newMemHash()
	c := New(h)
	ctx := context.Background()

	c.WebhookOutcome(ctx, "applied")
	c.WebhookOutcome(ctx, "applied")
	c.WebhookOutcome(ctx, "duplicate")
	c.VerifyResult(ctx, "valid")

	assert.Equal(t, int64(2), h.data[WebhookOutcomesKey]["applied"])
	assert.Equal(t, int64(1), h.data[WebhookOutcomesKey]["duplicate"])
	assert.Equal(t, int64(1), h.data[VerifyResultsKey]["valid"])
}

func TestCounter_ErrorsAreSwallowed(t *testing.T) {
	h := newMemHash()
	h.err = errors.New("connection refused")
	c := New(h)

	assert.NotPanics(t, func() { c.WebhookOutcome(context.Background(), "applied") })
	assert.Empty(t, h.data)
}

func TestCounter_NilIsNoop(t *testing.T) {
	var c *Counter
	assert.NotPanics(t, func() { c.VerifyResult(context.Background(), "valid") })
	assert.NotPanics(t, func() { New(nil).WebhookOutcome(context.Background(), "applied") })
}
