package lockout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/edugraminho/authkit/internal/store"
)

func newTestTracker(t *testing.T, cfg Config) (*miniredis.Miniredis, *Tracker) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, New(store.New(client), cfg)
}

func TestThresholdLocksAccount(t *testing.T) {
	_, tr := newTestTracker(t, Config{Threshold: 5, Window: 15 * time.Minute})
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		if err := tr.RecordFailure(ctx, "alice@example.com"); err != nil {
			t.Fatalf("RecordFailure %d failed: %v", i+1, err)
		}
		locked, err := tr.IsLocked(ctx, "alice@example.com")
		if err != nil {
			t.Fatalf("IsLocked failed: %v", err)
		}
		if locked {
			t.Fatalf("locked after %d failures, threshold is 5", i+1)
		}
	}

	if err := tr.RecordFailure(ctx, "alice@example.com"); err != nil {
		t.Fatalf("RecordFailure 5 failed: %v", err)
	}
	locked, err := tr.IsLocked(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("IsLocked failed: %v", err)
	}
	if !locked {
		t.Fatal("not locked after reaching threshold")
	}
}

func TestLockExpiresWithWindow(t *testing.T) {
	mr, tr := newTestTracker(t, Config{Threshold: 2, Window: time.Minute})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := tr.RecordFailure(ctx, "k"); err != nil {
			t.Fatalf("RecordFailure failed: %v", err)
		}
	}
	if locked, _ := tr.IsLocked(ctx, "k"); !locked {
		t.Fatal("not locked at threshold")
	}

	mr.FastForward(time.Minute + time.Second)

	locked, err := tr.IsLocked(ctx, "k")
	if err != nil {
		t.Fatalf("IsLocked failed: %v", err)
	}
	if locked {
		t.Fatal("still locked after window elapsed")
	}
	count, err := tr.FailureCount(ctx, "k")
	if err != nil {
		t.Fatalf("FailureCount failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("FailureCount = %d after window, want 0", count)
	}
}

func TestResetClearsCounterAndFlag(t *testing.T) {
	_, tr := newTestTracker(t, Config{Threshold: 2, Window: time.Minute})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := tr.RecordFailure(ctx, "k"); err != nil {
			t.Fatalf("RecordFailure failed: %v", err)
		}
	}
	if err := tr.Reset(ctx, "k"); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}

	if locked, _ := tr.IsLocked(ctx, "k"); locked {
		t.Fatal("locked after reset")
	}
	count, err := tr.FailureCount(ctx, "k")
	if err != nil {
		t.Fatalf("FailureCount failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("FailureCount = %d after reset, want 0", count)
	}
}

func TestFailureCountTracksWindow(t *testing.T) {
	_, tr := newTestTracker(t, Config{Threshold: 10, Window: time.Minute})
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		if err := tr.RecordFailure(ctx, "k"); err != nil {
			t.Fatalf("RecordFailure failed: %v", err)
		}
		count, err := tr.FailureCount(ctx, "k")
		if err != nil {
			t.Fatalf("FailureCount failed: %v", err)
		}
		if count != i {
			t.Fatalf("FailureCount = %d, want %d", count, i)
		}
	}
}

func TestEmptyKeyIsIgnored(t *testing.T) {
	_, tr := newTestTracker(t, Config{Threshold: 1, Window: time.Minute})
	ctx := context.Background()

	if err := tr.RecordFailure(ctx, ""); err != nil {
		t.Fatalf("RecordFailure(\"\") failed: %v", err)
	}
	locked, err := tr.IsLocked(ctx, "")
	if err != nil {
		t.Fatalf("IsLocked(\"\") failed: %v", err)
	}
	if locked {
		t.Fatal("empty key reported locked")
	}
}

func TestIsLockedPropagatesStoreError(t *testing.T) {
	mr, tr := newTestTracker(t, Config{Threshold: 5, Window: time.Minute})
	mr.Close()

	_, err := tr.IsLocked(context.Background(), "k")
	if !errors.Is(err, store.ErrUnavailable) {
		t.Fatalf("IsLocked error = %v, want store.ErrUnavailable", err)
	}
}
