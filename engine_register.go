package authkit

import (
	"context"
	"log"

	"github.com/edugraminho/authkit/token"
)

// Register creates a pending credential and starts phone verification
// for it. The application's IdentityStore owns uniqueness: a duplicate
// email surfaces as whatever error Create returns. The new account
// stays in the pending status, unable to log in, until Activate
// succeeds.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	if e == nil || e.identity == nil || e.hasher == nil {
		return nil, ErrEngineNotReady
	}

	email := normalizeEmail(req.Email)
	if email == "" || req.Password == "" || req.PhoneNumber == "" {
		return nil, ErrInvalidCredentials
	}

	hash, err := e.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	cred, err := e.identity.Create(ctx, Credential{
		Email:        email,
		PasswordHash: hash,
		PhoneNumber:  req.PhoneNumber,
		Status:       StatusPending,
	})
	if err != nil {
		return nil, err
	}

	tempToken, err := e.issueToken(ctx, token.KindTemp, cred.UserID, nil, "", e.config.Token.TempTTL)
	if err != nil {
		return nil, err
	}

	expiresIn, err := e.issueCode(ctx, &cred, false)
	if err != nil {
		return nil, err
	}

	e.emitAudit(ctx, auditEventRegister, true, cred.UserID, "", nil, func() map[string]string {
		return map[string]string{"email": email}
	})
	return &RegisterResult{
		UserID:        cred.UserID,
		TempToken:     tempToken,
		CodeExpiresIn: expiresIn,
	}, nil
}

// Activate redeems a registration temp token plus verification code,
// flips the account from pending to active, and signs the user in.
func (e *Engine) Activate(ctx context.Context, tempToken, code string) (*Session, error) {
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
	if cred.Status != StatusPending {
		e.emitAudit(ctx, auditEventActivate, false, cred.UserID, "", ErrInvalidUserStatus, nil)
		return nil, ErrInvalidUserStatus
	}

	if err := e.checkCode(ctx, cred, code); err != nil {
		return nil, err
	}

	if err := e.identity.UpdateStatus(ctx, cred.UserID, StatusActive); err != nil {
		return nil, err
	}
	cred.Status = StatusActive

	if err := e.revocations.Revoke(ctx, tempToken, cred.UserID, e.config.Token.TempTTL); err != nil {
		// The account is active; a stale temp token is only a replay
		// of activation, which UpdateStatus above already made a no-op.
		log.Print("authkit: temp token revocation failed after activation")
	}

	sess, err := e.completeAuthentication(ctx, cred, "")
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricCodeVerified)
	e.emitAudit(ctx, auditEventActivate, true, cred.UserID, sess.TenantID, nil, nil)
	return sess, nil
}
