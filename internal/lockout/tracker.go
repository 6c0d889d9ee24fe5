// Package lockout tracks failed-login counters and the lockout flag per
// account key. The counter and the flag are separate keys: the counter
// rolls failures inside the window, the flag is only set once the
// threshold is reached so IsLocked stays a single EXISTS call.
package lockout

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/edugraminho/authkit/internal/store"
)

// Config holds the lockout threshold and window.
type Config struct {
	Threshold int
	Window    time.Duration
}

// Tracker counts authentication failures and locks accounts out once
// the threshold is reached within the window.
type Tracker struct {
	store  *store.Store
	config Config
}

// New creates a Tracker with the given thresholds.
func New(s *store.Store, cfg Config) *Tracker {
	return &Tracker{store: s, config: cfg}
}

func (t *Tracker) counterKey(accountKey string) string {
	return "alk:cnt:" + accountKey
}

func (t *Tracker) flagKey(accountKey string) string {
	return "alk:flag:" + accountKey
}

// RecordFailure increments the failure counter and sets the lockout flag
// once the count reaches the threshold. The counter TTL starts on the
// first failure so the window rolls independently of later failures.
func (t *Tracker) RecordFailure(ctx context.Context, accountKey string) error {
	if accountKey == "" {
		return nil
	}
	count, err := t.store.Increment(ctx, t.counterKey(accountKey), t.config.Window)
	if err != nil {
		return err
	}
	if count >= int64(t.config.Threshold) {
		return t.store.Set(ctx, t.flagKey(accountKey), "1", t.config.Window)
	}
	return nil
}

// IsLocked reports whether the lockout flag is set. Store errors are
// returned as-is; callers on the login path must fail closed.
func (t *Tracker) IsLocked(ctx context.Context, accountKey string) (bool, error) {
	if accountKey == "" {
		return false, nil
	}
	return t.store.Exists(ctx, t.flagKey(accountKey))
}

// Reset deletes both the counter and the flag. Call it only after a
// fully successful authentication: clearing on a bare password match
// would let an attacker probe passwords between the password check and
// the code check.
func (t *Tracker) Reset(ctx context.Context, accountKey string) error {
	if accountKey == "" {
		return nil
	}
	return t.store.Delete(ctx, t.counterKey(accountKey), t.flagKey(accountKey))
}

// FailureCount returns the current failure count inside the window.
func (t *Tracker) FailureCount(ctx context.Context, accountKey string) (int, error) {
	value, err := t.store.Get(ctx, t.counterKey(accountKey))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	count, err := strconv.Atoi(value)
	if err != nil || count < 0 {
		return 0, nil
	}
	return count, nil
}
