// Package ratelimit implements a fixed-window counter per sender on Redis.
package ratelimit

import (
	"context"
	"time"

	"chat-service/apperr"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "ratelimit:"

// INCR then arm the expiry when the window opens. Running both in one script
// keeps a counter from ever living without a TTL.
var incrScript = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return {n, redis.call('PTTL', KEYS[1])}
`)

type Decision struct {
	Allowed    bool
	Count      int64
	Limit      int64
	RetryAfter time.Duration
}

type Limiter struct {
	cli    *redis.Client
	scope  string
	limit  int64
	window time.Duration
}

// New returns a limiter allowing limit actions per window for each key.
func New(cli *redis.Client, scope string, limit int64, window time.Duration) *Limiter {
	return &Limiter{
		cli:    cli,
		scope:  scope,
		limit:  limit,
		window: window,
	}
}

// Allow counts one action for key and reports whether it fits the window.
// Rejected actions still count; the window is not extended by them.
func (l *Limiter) Allow(ctx context.Context, key string) (Decision, error) {
	res, err := incrScript.Run(ctx, l.cli, []string{keyPrefix + l.scope + ":" + key}, l.window.Milliseconds()).Int64Slice()
	if err != nil {
		return Decision{}, apperr.Unavailable("rate limiter unavailable, please retry", errors.Wrap(err, "ratelimit.Allow"))
	}

	d := Decision{
		Allowed: res[0] <= l.limit,
		Count:   res[0],
		Limit:   l.limit,
	}
	if !d.Allowed && res[1] > 0 {
		d.RetryAfter = time.Duration(res[1]) * time.Millisecond
	}
	return d, nil
}
