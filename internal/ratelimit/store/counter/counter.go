// Package counter implements the fixed-window counter stores behind the
// rate limiter: a Redis-backed primary and an in-process fallback.
package counter

import (
	"context"
	"time"
)

// Store increments the counter for key within its current window and reports
// the post-increment count together with the window's reset time. The reset
// time comes from the store's own expiry bookkeeping so clock skew between
// limiter and store cannot produce impossible values.
type Store interface {
	Incr(ctx context.Context, key string, window time.Duration) (count int64, resetAt time.Time, err error)
}
