// Package revocation marks signed tokens as revoked, individually and as
// families. A family is the set of tokens minted by one authentication
// or refresh event; revoking the family invalidates every member even
// when only one of them is presented. Marks live twice as long as the
// token they cover so a revoked token stays rejected for the whole of
// its natural lifetime.
package revocation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/edugraminho/authkit/internal/store"
)

// Store persists revocation marks and token families.
type Store struct {
	store *store.Store
}

// New creates a revocation Store.
func New(s *store.Store) *Store {
	return &Store{store: s}
}

func markKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "rvk:" + hex.EncodeToString(sum[:])
}

func familyKey(userID string) string {
	return "fam:" + userID
}

func revokedFamilyKey(userID string) string {
	return "rvkfam:" + userID
}

// TrackIssued registers freshly minted tokens as one family for the
// user. The set TTL is twice the longest token lifetime so the family
// outlives every member.
func (s *Store) TrackIssued(ctx context.Context, userID string, lifetime time.Duration, tokens ...string) error {
	if userID == "" || len(tokens) == 0 {
		return nil
	}
	return s.store.AddToSet(ctx, familyKey(userID), 2*lifetime, tokens...)
}

// Revoke marks a single token revoked with TTL twice its lifetime. When
// userID is supplied the token is also recorded in the user's revoked
// set so family checks catch it from any process.
func (s *Store) Revoke(ctx context.Context, token, userID string, lifetime time.Duration) error {
	if err := s.store.Set(ctx, markKey(token), "1", 2*lifetime); err != nil {
		return err
	}
	if userID != "" {
		return s.store.AddToSet(ctx, revokedFamilyKey(userID), 2*lifetime, token)
	}
	return nil
}

// IsRevoked reports whether the token carries an individual revocation
// mark. Store errors propagate; validation treats them as fail-closed.
func (s *Store) IsRevoked(ctx context.Context, token string) (bool, error) {
	return s.store.Exists(ctx, markKey(token))
}

// IsFamilyRevoked reports whether the token belongs to a revoked family
// of the user.
func (s *Store) IsFamilyRevoked(ctx context.Context, userID, token string) (bool, error) {
	if userID == "" {
		return false, nil
	}
	return s.store.IsMember(ctx, revokedFamilyKey(userID), token)
}

// RevokeFamily cascades revocation over every token ever registered for
// the user that has not yet expired naturally: each member gets an
// individual mark and moves into the revoked set, then the issuance set
// is dropped. Used on refresh rotation, logout, and password reset.
func (s *Store) RevokeFamily(ctx context.Context, userID string, lifetime time.Duration) error {
	if userID == "" {
		return nil
	}

	members, err := s.store.SetMembers(ctx, familyKey(userID))
	if err != nil {
		return err
	}

	for _, token := range members {
		if err := s.store.Set(ctx, markKey(token), "1", 2*lifetime); err != nil {
			return err
		}
	}
	if len(members) > 0 {
		if err := s.store.AddToSet(ctx, revokedFamilyKey(userID), 2*lifetime, members...); err != nil {
			return err
		}
	}

	return s.store.Delete(ctx, familyKey(userID))
}
