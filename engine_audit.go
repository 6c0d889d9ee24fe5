package authkit

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventLogin            = "login"
	auditEventLoginLocked      = "login_locked_out"
	auditEventCodeIssued       = "verification_code_issued"
	auditEventCodeVerified     = "verification_code_verified"
	auditEventCodeRejected     = "verification_code_rejected"
	auditEventCodeResend       = "verification_code_resend"
	auditEventDeliveryFailed   = "code_delivery_failed"
	auditEventRegister         = "register"
	auditEventActivate         = "activate"
	auditEventRefresh          = "refresh"
	auditEventLogout           = "logout"
	auditEventTokenRejected    = "token_rejected"
	auditEventRateLimited      = "issuance_rate_limited"
	auditEventFamilyRevoked    = "token_family_revoked"
	auditEventTenantDenied     = "tenant_access_denied"
	auditEventStoreUnavailable = "store_unavailable"
)

func auditErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrAccountInactive):
		return "account_inactive"
	case errors.Is(err, ErrAccountLocked):
		return "account_locked"
	case errors.Is(err, ErrInvalidCode):
		return "invalid_code"
	case errors.Is(err, ErrCodeCooldown):
		return "code_cooldown"
	case errors.Is(err, ErrCodeAttemptsExceeded):
		return "attempts_exceeded"
	case errors.Is(err, ErrTokenInvalid):
		return "invalid_token"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrTenantAccessDenied):
		return "tenant_access_denied"
	case errors.Is(err, ErrDeliveryFailed):
		return "delivery_failed"
	case errors.Is(err, ErrStoreUnavailable):
		return "store_unavailable"
	case errors.Is(err, ErrInvalidUserStatus):
		return "invalid_user_status"
	case errors.Is(err, ErrUserNotFound):
		return "user_not_found"
	default:
		return "internal_error"
	}
}

// emitAudit builds the event lazily: metadataBuilder runs only when a
// dispatcher is attached.
func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID, tenantID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	event := AuditEvent{
		Timestamp: time.Now(),
		EventType: eventType,
		UserID:    userID,
		TenantID:  tenantID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Error:     auditErrorCode(err),
	}
	if metadataBuilder != nil {
		event.Metadata = metadataBuilder()
	}

	e.audit.Emit(ctx, event)
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}
