package twofactor

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const allowScript = `
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return current
`

// Limiter caps code submissions per email within the token lifetime so a
// 6-digit code cannot be brute-forced.
type Limiter struct {
	client redis.UniversalClient
	window time.Duration
	max    int
	prefix string
}

// NewLimiter creates a redis-backed attempt limiter. Returns nil when no
// client is configured; a nil limiter allows everything.
func NewLimiter(client redis.UniversalClient, window time.Duration, max int) *Limiter {
	if client == nil {
		return nil
	}
	if window <= 0 {
		window = 5 * time.Minute
	}
	if max <= 0 {
		max = 5
	}
	return &Limiter{
		client: client,
		window: window,
		max:    max,
		prefix: "2fa:attempts:",
	}
}

// Allow reports whether another attempt is permitted for the email. Redis
// failures fail open.
func (l *Limiter) Allow(ctx context.Context, email string) bool {
	if l == nil || l.client == nil {
		return true
	}
	key := l.prefix + strings.ToLower(strings.TrimSpace(email))
	seconds := int(l.window.Seconds())
	count, err := l.client.Eval(ctx, allowScript, []string{key}, seconds).Int()
	if err != nil {
		return true
	}
	return count <= l.max
}

// Reset clears the attempt counter, called after a successful submission.
func (l *Limiter) Reset(ctx context.Context, email string) {
	if l == nil || l.client == nil {
		return
	}
	key := l.prefix + strings.ToLower(strings.TrimSpace(email))
	_ = l.client.Del(ctx, key).Err()
}
