package authkit

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/edugraminho/authkit/internal/lockout"
	"github.com/edugraminho/authkit/internal/otc"
	"github.com/edugraminho/authkit/internal/rate"
	"github.com/edugraminho/authkit/internal/revocation"
	"github.com/edugraminho/authkit/internal/store"
	"github.com/edugraminho/authkit/password"
	"github.com/edugraminho/authkit/token"
)

// Engine composes the authentication flows: credential checking with
// brute-force lockout, phone code verification, token issuance and
// validation with revocation, and per-operation rate limiting. All
// shared state lives in the counter/flag store, so any number of Engine
// instances across processes behave as one.
//
// Engines are configured once through the Builder and are safe for
// concurrent use.
type Engine struct {
	config      Config
	identity    IdentityStore
	membership  MembershipResolver
	sender      CodeSender
	lockout     *lockout.Tracker
	codes       *otc.Verifier
	revocations *revocation.Store
	limiter     *rate.Limiter
	tokens      *token.Manager
	hasher      *password.Hasher
	audit       *auditDispatcher
	metrics     *Metrics
}

// Close flushes and stops the audit dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// MetricsSnapshot returns a copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return e.metrics.Snapshot()
}

// AuditDropped reports how many audit events were dropped under
// backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// Login checks the credential and either issues tokens directly (bypass
// role or no phone on file) or issues a temp token and sends a
// verification code. The lockout counter is NOT reset here: a password
// match alone is not a full authentication when a code check follows.
func (e *Engine) Login(ctx context.Context, email, pass string) (*LoginResult, error) {
	if e == nil || e.identity == nil || e.hasher == nil {
		return nil, ErrEngineNotReady
	}

	email = normalizeEmail(email)

	locked, err := e.lockout.IsLocked(ctx, email)
	if err != nil {
		// Lockout checks fail closed: an unreachable store must never
		// open the door to a brute-force run.
		e.emitAudit(ctx, auditEventStoreUnavailable, false, "", "", ErrStoreUnavailable, nil)
		return nil, mapStoreErr(err)
	}
	if locked {
		e.metricInc(MetricLoginLocked)
		e.emitAudit(ctx, auditEventLoginLocked, false, "", "", ErrAccountLocked, func() map[string]string {
			return map[string]string{"email": email}
		})
		return nil, ErrAccountLocked
	}

	cred, err := e.identity.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if cred == nil {
		if err := e.recordLoginFailure(ctx, email); err != nil {
			return nil, err
		}
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLogin, false, "", "", ErrInvalidCredentials, func() map[string]string {
			return map[string]string{"email": email, "reason": "user_not_found"}
		})
		return nil, ErrInvalidCredentials
	}

	ok, err := e.hasher.Verify(pass, cred.PasswordHash)
	if err != nil || !ok {
		if err := e.recordLoginFailure(ctx, email); err != nil {
			return nil, err
		}
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLogin, false, cred.UserID, "", ErrInvalidCredentials, func() map[string]string {
			return map[string]string{"email": email, "reason": "password_mismatch"}
		})
		return nil, ErrInvalidCredentials
	}

	if cred.Status == StatusInactive || cred.Status == StatusPending {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLogin, false, cred.UserID, "", ErrAccountInactive, func() map[string]string {
			return map[string]string{"email": email, "reason": "account_status"}
		})
		return nil, ErrAccountInactive
	}

	if e.verificationBypassed(cred) {
		sess, err := e.completeAuthentication(ctx, cred, "")
		if err != nil {
			return nil, err
		}
		e.metricInc(MetricLoginSuccess)
		e.emitAudit(ctx, auditEventLogin, true, cred.UserID, sess.TenantID, nil, func() map[string]string {
			return map[string]string{"email": email, "bypass": "true"}
		})
		return &LoginResult{Status: LoginAuthenticated, Session: sess}, nil
	}

	tempToken, err := e.issueToken(ctx, token.KindTemp, cred.UserID, nil, "", e.config.Token.TempTTL)
	if err != nil {
		return nil, err
	}

	expiresIn, err := e.issueCode(ctx, cred, false)
	if err != nil {
		return nil, err
	}

	e.emitAudit(ctx, auditEventLogin, true, cred.UserID, "", nil, func() map[string]string {
		return map[string]string{"email": email, "code_pending": "true"}
	})
	return &LoginResult{
		Status:        LoginCodePending,
		TempToken:     tempToken,
		CodeExpiresIn: expiresIn,
	}, nil
}

// recordLoginFailure counts the failure toward lockout. A store error
// here aborts the flow: continuing would stop counting an attacker.
func (e *Engine) recordLoginFailure(ctx context.Context, email string) error {
	if err := e.lockout.RecordFailure(ctx, email); err != nil {
		e.emitAudit(ctx, auditEventStoreUnavailable, false, "", "", ErrStoreUnavailable, nil)
		return mapStoreErr(err)
	}
	return nil
}

func (e *Engine) verificationBypassed(cred *Credential) bool {
	if cred.Status == StatusSuperuser {
		return true
	}
	if cred.PhoneNumber == "" {
		return true
	}
	bypass := e.config.Verification.BypassRole
	if bypass == "" {
		return false
	}
	for _, role := range cred.Roles {
		if role == bypass {
			return true
		}
	}
	return false
}

// issueCode generates and delivers a verification code for the
// credential's phone. During login an active cooldown re-uses the live
// code the user already holds; resend rejects it (rejectCooldown=true).
// The cooldown is checked before generating so a deliverable code is
// never silently invalidated. A delivery failure rolls the stored code
// back so the user is not left on cooldown for a code they never got.
func (e *Engine) issueCode(ctx context.Context, cred *Credential, rejectCooldown bool) (time.Duration, error) {
	subject := cred.PhoneNumber

	onCooldown, err := e.codes.OnCooldown(ctx, subject)
	if err != nil {
		return 0, mapStoreErr(err)
	}
	if onCooldown {
		if rejectCooldown {
			e.metricInc(MetricCodeCooldown)
			e.emitAudit(ctx, auditEventCodeResend, false, cred.UserID, "", ErrCodeCooldown, nil)
			return 0, ErrCodeCooldown
		}
		remaining, err := e.codes.ExpiresIn(ctx, subject)
		if err != nil {
			return 0, mapStoreErr(err)
		}
		return remaining, nil
	}

	code, err := e.codes.Generate(ctx, subject)
	if err != nil {
		return 0, mapStoreErr(err)
	}
	e.metricInc(MetricCodeIssued)

	message := fmt.Sprintf(e.config.Verification.MessageTemplate, code)
	if _, err := e.sender.Send(ctx, subject, message); err != nil {
		if rbErr := e.codes.Invalidate(ctx, subject); rbErr != nil {
			log.Print("authkit: code rollback failed after delivery error")
		}
		e.metricInc(MetricDeliveryFailed)
		e.emitAudit(ctx, auditEventDeliveryFailed, false, cred.UserID, "", ErrDeliveryFailed, nil)
		return 0, ErrDeliveryFailed
	}

	e.emitAudit(ctx, auditEventCodeIssued, true, cred.UserID, "", nil, nil)
	return e.config.Verification.CodeTTL, nil
}

// completeAuthentication resolves roles and the active tenant, resets
// the lockout state, and issues the access+refresh pair. It is the only
// path that produces an authenticated Session.
func (e *Engine) completeAuthentication(ctx context.Context, cred *Credential, requestedTenant string) (*Session, error) {
	roles, err := e.resolveRoles(ctx, cred.UserID)
	if err != nil {
		return nil, err
	}

	tenantID, err := e.resolveTenant(ctx, cred.UserID, requestedTenant)
	if err != nil {
		return nil, err
	}

	// Full authentication achieved: clear the failure counter and flag.
	if err := e.lockout.Reset(ctx, normalizeEmail(cred.Email)); err != nil {
		log.Print("authkit: lockout reset failed after successful authentication")
	}

	return e.issuePair(ctx, cred.UserID, roles, tenantID)
}

func (e *Engine) resolveRoles(ctx context.Context, userID string) ([]string, error) {
	roles, err := e.membership.RolesForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(roles) == 0 {
		roles = []string{e.config.Verification.DefaultRole}
	}
	return roles, nil
}

func (e *Engine) resolveTenant(ctx context.Context, userID, requested string) (string, error) {
	if requested != "" {
		ok, err := e.membership.HasAccess(ctx, userID, requested)
		if err != nil {
			return "", err
		}
		if !ok {
			e.emitAudit(ctx, auditEventTenantDenied, false, userID, requested, ErrTenantAccessDenied, nil)
			return "", ErrTenantAccessDenied
		}
		return requested, nil
	}
	return e.membership.DefaultTenant(ctx, userID)
}

// issueToken consults the rate limiter under "{kind}:{userID}" before
// signing. Limiter errors fail closed: minting without admission
// control is worse than refusing.
func (e *Engine) issueToken(ctx context.Context, kind token.Kind, userID string, roles []string, tenantID string, ttl time.Duration) (string, error) {
	key := string(kind) + ":" + userID
	allowed, err := e.limiter.Allow(ctx, key, e.config.RateLimit.IssuePerWindow, e.config.RateLimit.Window)
	if err != nil {
		e.emitAudit(ctx, auditEventStoreUnavailable, false, userID, tenantID, ErrStoreUnavailable, nil)
		return "", mapStoreErr(err)
	}
	if !allowed {
		e.metricInc(MetricRateLimited)
		e.emitAudit(ctx, auditEventRateLimited, false, userID, tenantID, ErrRateLimited, func() map[string]string {
			return map[string]string{"kind": string(kind)}
		})
		return "", ErrRateLimited
	}

	signed, err := e.tokens.Sign(kind, userID, roles, tenantID, ttl)
	if err != nil {
		return "", err
	}
	e.metricInc(MetricTokenIssued)
	return signed, nil
}

// issuePair mints an access+refresh pair and registers both as one
// family so revoking either cascades to the other.
func (e *Engine) issuePair(ctx context.Context, userID string, roles []string, tenantID string) (*Session, error) {
	access, err := e.issueToken(ctx, token.KindAccess, userID, roles, tenantID, e.config.Token.AccessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := e.issueToken(ctx, token.KindRefresh, userID, nil, "", e.config.Token.RefreshTTL)
	if err != nil {
		return nil, err
	}

	if err := e.revocations.TrackIssued(ctx, userID, e.config.Token.RefreshTTL, access, refresh); err != nil {
		// Without family registration a later cascade would miss these
		// tokens, so the pair must not leave the engine.
		return nil, mapStoreErr(err)
	}

	return &Session{
		UserID:          userID,
		AccessToken:     access,
		RefreshToken:    refresh,
		Roles:           roles,
		TenantID:        tenantID,
		AccessExpiresAt: time.Now().Add(e.config.Token.AccessTTL),
	}, nil
}

// validateToken runs the cheap pure checks first (signature, expiry,
// kind), then the store-backed revocation checks. Every failure,
// including an unreachable store, collapses to ErrTokenInvalid; the
// reason is only visible on the audit stream.
func (e *Engine) validateToken(ctx context.Context, raw string, kind token.Kind) (*token.Claims, error) {
	claims, err := e.tokens.Parse(raw, kind)
	if err != nil {
		e.metricInc(MetricTokenRejected)
		e.emitAudit(ctx, auditEventTokenRejected, false, "", "", ErrTokenInvalid, func() map[string]string {
			return map[string]string{"kind": string(kind), "reason": "parse_failed"}
		})
		return nil, ErrTokenInvalid
	}

	revoked, err := e.revocations.IsRevoked(ctx, raw)
	if err != nil {
		e.metricInc(MetricTokenRejected)
		e.emitAudit(ctx, auditEventStoreUnavailable, false, claims.UserID(), claims.TenantID, ErrTokenInvalid, func() map[string]string {
			return map[string]string{"reason": "revocation_check_unavailable"}
		})
		return nil, ErrTokenInvalid
	}
	if revoked {
		e.metricInc(MetricTokenRejected)
		e.emitAudit(ctx, auditEventTokenRejected, false, claims.UserID(), claims.TenantID, ErrTokenInvalid, func() map[string]string {
			return map[string]string{"kind": string(kind), "reason": "revoked"}
		})
		return nil, ErrTokenInvalid
	}

	famRevoked, err := e.revocations.IsFamilyRevoked(ctx, claims.UserID(), raw)
	if err != nil {
		e.metricInc(MetricTokenRejected)
		e.emitAudit(ctx, auditEventStoreUnavailable, false, claims.UserID(), claims.TenantID, ErrTokenInvalid, func() map[string]string {
			return map[string]string{"reason": "family_check_unavailable"}
		})
		return nil, ErrTokenInvalid
	}
	if famRevoked {
		e.metricInc(MetricTokenRejected)
		e.emitAudit(ctx, auditEventTokenRejected, false, claims.UserID(), claims.TenantID, ErrTokenInvalid, func() map[string]string {
			return map[string]string{"kind": string(kind), "reason": "family_revoked"}
		})
		return nil, ErrTokenInvalid
	}

	return claims, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func mapStoreErr(err error) error {
	if errors.Is(err, store.ErrUnavailable) {
		return ErrStoreUnavailable
	}
	return err
}
