package authkit

import (
	"context"
	"time"

	"github.com/edugraminho/authkit/internal/otc"
	"github.com/edugraminho/authkit/token"
)

// VerifyLogin redeems a temp token together with the verification code
// sent to the user's phone. On success the temp token is consumed, the
// lockout state for the email is cleared, and a full session is issued
// for the requested tenant (or the user's default when empty).
func (e *Engine) VerifyLogin(ctx context.Context, tempToken, code, tenantID string) (*Session, error) {
	if e == nil || e.identity == nil {
		return nil, ErrEngineNotReady
	}

	claims, err := e.validateToken(ctx, tempToken, token.KindTemp)
	if err != nil {
		return nil, err
	}

	cred, err := e.findCredential(ctx, claims.UserID())
	if err != nil {
		return nil, err
	}

	if err := e.checkCode(ctx, cred, code); err != nil {
		return nil, err
	}

	// Consume the temp token before minting anything: a store failure
	// here must not leave a replayable temp token alongside a live
	// session.
	if err := e.revocations.Revoke(ctx, tempToken, cred.UserID, e.config.Token.TempTTL); err != nil {
		return nil, mapStoreErr(err)
	}

	sess, err := e.completeAuthentication(ctx, cred, tenantID)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricLoginSuccess)
	e.metricInc(MetricCodeVerified)
	e.emitAudit(ctx, auditEventCodeVerified, true, cred.UserID, sess.TenantID, nil, nil)
	return sess, nil
}

// ResendCode issues a fresh verification code for the holder of a temp
// token. Unlike Login, an active cooldown is an error here: the caller
// explicitly asked for a new code and must be told to wait.
func (e *Engine) ResendCode(ctx context.Context, tempToken string) (time.Duration, error) {
	if e == nil || e.identity == nil {
		return 0, ErrEngineNotReady
	}

	claims, err := e.validateToken(ctx, tempToken, token.KindTemp)
	if err != nil {
		return 0, err
	}

	cred, err := e.findCredential(ctx, claims.UserID())
	if err != nil {
		return 0, err
	}
	if cred.PhoneNumber == "" {
		return 0, ErrInvalidUserStatus
	}

	expiresIn, err := e.issueCode(ctx, cred, true)
	if err != nil {
		return 0, err
	}
	e.emitAudit(ctx, auditEventCodeResend, true, cred.UserID, "", nil, nil)
	return expiresIn, nil
}

func (e *Engine) findCredential(ctx context.Context, userID string) (*Credential, error) {
	cred, err := e.identity.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cred == nil {
		return nil, ErrUserNotFound
	}
	return cred, nil
}

// checkCode verifies the candidate against the stored code. Attempt
// exhaustion is checked inside the verifier before the code itself, so
// a correct guess after the limit is still rejected. A wrong code does
// not reveal whether a code exists at all.
func (e *Engine) checkCode(ctx context.Context, cred *Credential, code string) error {
	result, err := e.codes.Verify(ctx, cred.PhoneNumber, code)
	if err != nil {
		e.emitAudit(ctx, auditEventStoreUnavailable, false, cred.UserID, "", ErrStoreUnavailable, nil)
		return mapStoreErr(err)
	}

	switch result {
	case otc.ResultVerified:
		return nil
	case otc.ResultExhausted:
		e.metricInc(MetricCodeExhausted)
		e.emitAudit(ctx, auditEventCodeRejected, false, cred.UserID, "", ErrCodeAttemptsExceeded, nil)
		return ErrCodeAttemptsExceeded
	default:
		e.metricInc(MetricCodeRejected)
		e.emitAudit(ctx, auditEventCodeRejected, false, cred.UserID, "", ErrInvalidCode, nil)
		return ErrInvalidCode
	}
}
