package revocation

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/edugraminho/authkit/internal/store"
)

func newTestRevocations(t *testing.T) (*miniredis.Miniredis, *Store) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, New(store.New(client))
}

func TestRevokeMarksToken(t *testing.T) {
	_, rv := newTestRevocations(t)
	ctx := context.Background()

	revoked, err := rv.IsRevoked(ctx, "tok-a")
	if err != nil {
		t.Fatalf("IsRevoked failed: %v", err)
	}
	if revoked {
		t.Fatal("token revoked before any Revoke call")
	}

	if err := rv.Revoke(ctx, "tok-a", "u1", 15*time.Minute); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}

	revoked, err = rv.IsRevoked(ctx, "tok-a")
	if err != nil {
		t.Fatalf("IsRevoked failed: %v", err)
	}
	if !revoked {
		t.Fatal("token not revoked after Revoke")
	}
	if revoked, _ := rv.IsRevoked(ctx, "tok-b"); revoked {
		t.Fatal("unrelated token reported revoked")
	}
}

func TestRevokeMarkOutlivesTokenLifetime(t *testing.T) {
	mr, rv := newTestRevocations(t)
	ctx := context.Background()

	if err := rv.Revoke(ctx, "tok", "u1", 10*time.Minute); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}

	// At 1.5x the lifetime the token has expired naturally but the mark
	// must still hold (marks live 2x).
	mr.FastForward(15 * time.Minute)

	revoked, err := rv.IsRevoked(ctx, "tok")
	if err != nil {
		t.Fatalf("IsRevoked failed: %v", err)
	}
	if !revoked {
		t.Fatal("mark expired before twice the token lifetime")
	}

	mr.FastForward(6 * time.Minute)

	revoked, err = rv.IsRevoked(ctx, "tok")
	if err != nil {
		t.Fatalf("IsRevoked failed: %v", err)
	}
	if revoked {
		t.Fatal("mark still live after twice the token lifetime")
	}
}

func TestRevokeFamilyCascades(t *testing.T) {
	_, rv := newTestRevocations(t)
	ctx := context.Background()

	if err := rv.TrackIssued(ctx, "u1", time.Hour, "access-1", "refresh-1"); err != nil {
		t.Fatalf("TrackIssued failed: %v", err)
	}

	if err := rv.RevokeFamily(ctx, "u1", time.Hour); err != nil {
		t.Fatalf("RevokeFamily failed: %v", err)
	}

	for _, tok := range []string{"access-1", "refresh-1"} {
		revoked, err := rv.IsRevoked(ctx, tok)
		if err != nil {
			t.Fatalf("IsRevoked(%s) failed: %v", tok, err)
		}
		if !revoked {
			t.Fatalf("%s not individually marked by cascade", tok)
		}
		famRevoked, err := rv.IsFamilyRevoked(ctx, "u1", tok)
		if err != nil {
			t.Fatalf("IsFamilyRevoked(%s) failed: %v", tok, err)
		}
		if !famRevoked {
			t.Fatalf("%s not in revoked family set", tok)
		}
	}
}

func TestRevokeFamilySparesLaterIssuance(t *testing.T) {
	_, rv := newTestRevocations(t)
	ctx := context.Background()

	if err := rv.TrackIssued(ctx, "u1", time.Hour, "old-access", "old-refresh"); err != nil {
		t.Fatalf("TrackIssued failed: %v", err)
	}
	if err := rv.RevokeFamily(ctx, "u1", time.Hour); err != nil {
		t.Fatalf("RevokeFamily failed: %v", err)
	}
	if err := rv.TrackIssued(ctx, "u1", time.Hour, "new-access", "new-refresh"); err != nil {
		t.Fatalf("second TrackIssued failed: %v", err)
	}

	for _, tok := range []string{"new-access", "new-refresh"} {
		revoked, err := rv.IsRevoked(ctx, tok)
		if err != nil {
			t.Fatalf("IsRevoked(%s) failed: %v", tok, err)
		}
		famRevoked, ferr := rv.IsFamilyRevoked(ctx, "u1", tok)
		if ferr != nil {
			t.Fatalf("IsFamilyRevoked(%s) failed: %v", tok, ferr)
		}
		if revoked || famRevoked {
			t.Fatalf("%s caught by earlier cascade", tok)
		}
	}
}

func TestRevokeFamilyWithNoTrackedTokensIsNoOp(t *testing.T) {
	_, rv := newTestRevocations(t)

	if err := rv.RevokeFamily(context.Background(), "nobody", time.Hour); err != nil {
		t.Fatalf("RevokeFamily failed: %v", err)
	}
}

func TestFamiliesAreIsolatedPerUser(t *testing.T) {
	_, rv := newTestRevocations(t)
	ctx := context.Background()

	if err := rv.TrackIssued(ctx, "u1", time.Hour, "tok-u1"); err != nil {
		t.Fatalf("TrackIssued u1 failed: %v", err)
	}
	if err := rv.TrackIssued(ctx, "u2", time.Hour, "tok-u2"); err != nil {
		t.Fatalf("TrackIssued u2 failed: %v", err)
	}

	if err := rv.RevokeFamily(ctx, "u1", time.Hour); err != nil {
		t.Fatalf("RevokeFamily failed: %v", err)
	}

	revoked, err := rv.IsRevoked(ctx, "tok-u2")
	if err != nil {
		t.Fatalf("IsRevoked failed: %v", err)
	}
	if revoked {
		t.Fatal("other user's token caught by cascade")
	}
}

func TestIsFamilyRevokedEmptyUser(t *testing.T) {
	_, rv := newTestRevocations(t)

	revoked, err := rv.IsFamilyRevoked(context.Background(), "", "tok")
	if err != nil {
		t.Fatalf("IsFamilyRevoked failed: %v", err)
	}
	if revoked {
		t.Fatal("empty user reported family-revoked")
	}
}
