// Package rate implements fixed-window admission control on top of the
// shared counter store. A burst straddling a window boundary can admit
// up to twice the limit; that is acceptable for protecting token-minting
// endpoints and is not billing-grade metering.
package rate

import (
	"context"
	"time"

	"github.com/edugraminho/authkit/internal/store"
)

// Limiter counts requests per logical key in discrete windows.
type Limiter struct {
	store  *store.Store
	prefix string
}

// New creates a Limiter backed by the given store.
func New(s *store.Store) *Limiter {
	return &Limiter{store: s, prefix: "arl"}
}

func (l *Limiter) key(k string) string {
	return l.prefix + ":" + k
}

// Allow admits the request iff at most limit calls have been counted in
// the current window, including this one. The first call of a window
// starts it by setting the counter TTL. Store errors propagate so the
// caller can fail closed.
func (l *Limiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	count, err := l.store.Increment(ctx, l.key(key), window)
	if err != nil {
		return false, err
	}
	return count <= int64(limit), nil
}

// Reset clears the window counter for key.
func (l *Limiter) Reset(ctx context.Context, key string) error {
	return l.store.Delete(ctx, l.key(key))
}
