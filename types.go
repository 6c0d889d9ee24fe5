package authkit

import (
	"context"
	"time"
)

// AccountStatus represents the lifecycle state of a user account.
type AccountStatus uint8

const (
	// StatusPending is a registered account that has not yet verified
	// its phone number.
	StatusPending AccountStatus = iota
	// StatusActive is a normal, usable account.
	StatusActive
	// StatusInactive is a disabled account; all flows reject it.
	StatusInactive
	// StatusSuperuser is an active account that bypasses phone
	// verification on login.
	StatusSuperuser
)

// Credential is the account record the engine reads from the identity
// store. The engine never persists credentials itself, except for the
// status transition during activation.
type Credential struct {
	UserID       string
	Email        string
	PasswordHash string
	// PhoneNumber is the normalized destination for verification codes.
	// Accounts without one skip code verification on login.
	PhoneNumber string
	Status      AccountStatus
	// Roles are account-level roles (e.g. the verification bypass
	// role). Tenant-scoped roles come from the MembershipResolver.
	Roles []string
}

// IdentityStore is the credential lookup collaborator the embedder must
// implement. FindByEmail returns (nil, nil) when no account matches so
// absence is not an error condition.
type IdentityStore interface {
	FindByEmail(ctx context.Context, email string) (*Credential, error)
	FindByID(ctx context.Context, userID string) (*Credential, error)
	Create(ctx context.Context, cred Credential) (Credential, error)
	UpdateStatus(ctx context.Context, userID string, status AccountStatus) error
}

// MembershipResolver resolves tenant-scoped roles and tenant access for
// a user. Roles are snapshotted into access tokens at issuance and go
// stale until the client refreshes.
type MembershipResolver interface {
	RolesForUser(ctx context.Context, userID string) ([]string, error)
	DefaultTenant(ctx context.Context, userID string) (string, error)
	HasAccess(ctx context.Context, userID, tenantID string) (bool, error)
}

// CodeSender delivers a rendered verification message to a destination
// (phone number). A non-nil error is mapped to ErrDeliveryFailed and
// rolls back the stored code.
type CodeSender interface {
	Send(ctx context.Context, destination, message string) (deliveryID string, err error)
}

// LoginStatus tells the caller which state the login flow reached.
type LoginStatus uint8

const (
	// LoginCodePending means the password matched and a verification
	// code was issued; the flow completes via VerifyLogin.
	LoginCodePending LoginStatus = iota
	// LoginAuthenticated means tokens were issued directly, either via
	// the bypass role or because the account has no phone on file.
	LoginAuthenticated
)

// Session is an issued access+refresh pair with its snapshot claims.
type Session struct {
	UserID          string
	AccessToken     string
	RefreshToken    string
	Roles           []string
	TenantID        string
	AccessExpiresAt time.Time
}

// LoginResult is returned by Login. TempToken and CodeExpiresIn are set
// when Status is LoginCodePending; Session is set when Status is
// LoginAuthenticated.
type LoginResult struct {
	Status        LoginStatus
	TempToken     string
	CodeExpiresIn time.Duration
	Session       *Session
}

// RegisterRequest is the input for Register. The password is hashed by
// the engine before the credential reaches the identity store.
type RegisterRequest struct {
	Email       string
	Password    string
	PhoneNumber string
}

// RegisterResult is returned by Register; the account stays pending
// until Activate succeeds.
type RegisterResult struct {
	UserID        string
	TempToken     string
	CodeExpiresIn time.Duration
}

// Identity is the validated view of an access token returned by
// ValidateAccess.
type Identity struct {
	UserID   string
	Roles    []string
	TenantID string
}
