package authkit

import "errors"

var (
	// ErrInvalidCredentials is returned when the email is unknown or the
	// password does not match. The two cases are indistinguishable.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountInactive is returned when the account exists but is not
	// in a state that allows authentication.
	ErrAccountInactive = errors.New("account inactive")
	// ErrAccountLocked is returned while the lockout window is active
	// for the account, regardless of the password presented.
	ErrAccountLocked = errors.New("account locked out")
	// ErrInvalidCode is returned for a wrong, expired, or never-issued
	// verification code. Callers cannot tell which.
	ErrInvalidCode = errors.New("invalid or expired verification code")
	// ErrCodeCooldown is returned when a new code is requested before
	// the cooldown since the last issuance has elapsed.
	ErrCodeCooldown = errors.New("verification code cooldown active")
	// ErrCodeAttemptsExceeded is returned once the guess budget for the
	// live code is spent, even for the correct code.
	ErrCodeAttemptsExceeded = errors.New("verification attempts exceeded")
	// ErrTokenInvalid covers bad signature, expiry, wrong kind, and
	// revocation. The cases are intentionally merged; the reason is
	// only visible on the audit stream.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrRateLimited is returned when token issuance exceeds the
	// per-user window budget.
	ErrRateLimited = errors.New("rate limit exceeded")
	// ErrTenantAccessDenied is returned when the requested active
	// tenant is not accessible to the user.
	ErrTenantAccessDenied = errors.New("tenant access denied")
	// ErrDeliveryFailed is returned when the code could not be sent.
	// The stored code is rolled back first.
	ErrDeliveryFailed = errors.New("code delivery failed")
	// ErrStoreUnavailable is returned when the shared counter/flag
	// store cannot be reached on a path that must fail closed.
	ErrStoreUnavailable = errors.New("shared store unavailable")
	// ErrInvalidUserStatus is returned by activation when the account
	// is not pending.
	ErrInvalidUserStatus = errors.New("invalid user status for operation")
	// ErrUserNotFound is returned by flows that look up an account by
	// id after token validation.
	ErrUserNotFound = errors.New("user not found")
	// ErrEngineNotReady is returned when the engine was not built with
	// its required collaborators.
	ErrEngineNotReady = errors.New("engine not initialized")
)
