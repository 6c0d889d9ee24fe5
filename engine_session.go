package authkit

import (
	"context"

	"github.com/edugraminho/authkit/token"
)

// Refresh rotates a session: the presented refresh token and every
// token in its family are revoked before a new pair is minted, so a
// stolen refresh token replayed after rotation validates nothing. The
// account status is re-checked so deactivation takes effect at the next
// rotation at the latest.
func (e *Engine) Refresh(ctx context.Context, refreshToken, tenantID string) (*Session, error) {
	if e == nil || e.identity == nil {
		return nil, ErrEngineNotReady
	}

	claims, err := e.validateToken(ctx, refreshToken, token.KindRefresh)
	if err != nil {
		return nil, err
	}

	cred, err := e.findCredential(ctx, claims.UserID())
	if err != nil {
		return nil, err
	}
	if cred.Status == StatusInactive || cred.Status == StatusPending {
		e.emitAudit(ctx, auditEventRefresh, false, cred.UserID, "", ErrAccountInactive, nil)
		return nil, ErrAccountInactive
	}

	// Revoke before reissuing: if the cascade fails the old family
	// stays live but no duplicate pair exists; the caller retries.
	if err := e.revocations.Revoke(ctx, refreshToken, cred.UserID, e.config.Token.RefreshTTL); err != nil {
		return nil, mapStoreErr(err)
	}
	if err := e.revocations.RevokeFamily(ctx, cred.UserID, e.config.Token.RefreshTTL); err != nil {
		return nil, mapStoreErr(err)
	}
	e.metricInc(MetricTokenRevoked)

	roles, err := e.resolveRoles(ctx, cred.UserID)
	if err != nil {
		return nil, err
	}
	resolvedTenant, err := e.resolveTenant(ctx, cred.UserID, tenantID)
	if err != nil {
		return nil, err
	}

	sess, err := e.issuePair(ctx, cred.UserID, roles, resolvedTenant)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefresh, true, cred.UserID, resolvedTenant, nil, nil)
	return sess, nil
}

// Logout revokes the presented access token and cascades to its family,
// killing the paired refresh token as well. Logout of an already-dead
// token reports ErrTokenInvalid; the session is gone either way.
func (e *Engine) Logout(ctx context.Context, accessToken string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	claims, err := e.validateToken(ctx, accessToken, token.KindAccess)
	if err != nil {
		return err
	}

	userID := claims.UserID()
	if err := e.revocations.Revoke(ctx, accessToken, userID, e.config.Token.AccessTTL); err != nil {
		return mapStoreErr(err)
	}
	if err := e.revocations.RevokeFamily(ctx, userID, e.config.Token.RefreshTTL); err != nil {
		return mapStoreErr(err)
	}

	e.metricInc(MetricTokenRevoked)
	e.emitAudit(ctx, auditEventLogout, true, userID, claims.TenantID, nil, nil)
	return nil
}

// RevokeAllSessions cascades revocation over every tracked token for
// the user without requiring any token in hand. Intended for password
// resets and administrative kicks.
func (e *Engine) RevokeAllSessions(ctx context.Context, userID string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if err := e.revocations.RevokeFamily(ctx, userID, e.config.Token.RefreshTTL); err != nil {
		return mapStoreErr(err)
	}
	e.metricInc(MetricTokenRevoked)
	e.emitAudit(ctx, auditEventFamilyRevoked, true, userID, "", nil, nil)
	return nil
}

// ValidateAccess checks an access token end to end (signature, expiry,
// kind, revocation, family revocation) and returns the identity it
// carries. This is the call to put on every authenticated request path.
func (e *Engine) ValidateAccess(ctx context.Context, accessToken string) (*Identity, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	claims, err := e.validateToken(ctx, accessToken, token.KindAccess)
	if err != nil {
		return nil, err
	}

	return &Identity{
		UserID:   claims.UserID(),
		Roles:    claims.Roles,
		TenantID: claims.TenantID,
	}, nil
}
