package authkit

import (
	"errors"
	"fmt"
	"time"
)

// Config groups all engine tuning. Zero values are filled by
// defaultConfig via New(); Build validates hard bounds.
type Config struct {
	Token        TokenConfig
	Lockout      LockoutConfig
	Verification VerificationConfig
	RateLimit    RateLimitConfig
	Password     PasswordConfig
	Audit        AuditConfig
	Metrics      MetricsConfig
}

// TokenConfig holds lifetimes and signing material for the three token
// kinds.
type TokenConfig struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	TempTTL       time.Duration
	SigningMethod string // "ed25519" (default) or "hs256"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
}

// LockoutConfig holds the failed-login threshold and window.
type LockoutConfig struct {
	Threshold int
	Window    time.Duration
}

// VerificationConfig holds one-time-code behavior and the role that
// skips code verification on login.
type VerificationConfig struct {
	CodeTTL         time.Duration
	Cooldown        time.Duration
	MaxAttempts     int
	BypassRole      string
	DefaultRole     string
	MessageTemplate string // rendered with fmt.Sprintf(template, code)
}

// RateLimitConfig bounds token issuance per "{kind}:{userID}" key in a
// fixed window.
type RateLimitConfig struct {
	IssuePerWindow int
	Window         time.Duration
}

// PasswordConfig holds argon2id cost parameters. Memory is in KiB.
type PasswordConfig struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// AuditConfig controls the buffered audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the in-process atomic counters.
type MetricsConfig struct {
	Enabled bool
}

func defaultConfig() Config {
	return Config{
		Token: TokenConfig{
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    7 * 24 * time.Hour,
			TempTTL:       5 * time.Minute,
			SigningMethod: "ed25519",
		},
		Lockout: LockoutConfig{
			Threshold: 5,
			Window:    15 * time.Minute,
		},
		Verification: VerificationConfig{
			CodeTTL:         5 * time.Minute,
			Cooldown:        60 * time.Second,
			MaxAttempts:     3,
			BypassRole:      "SUPERUSER",
			DefaultRole:     "USER",
			MessageTemplate: "Your verification code is %s",
		},
		RateLimit: RateLimitConfig{
			IssuePerWindow: 10,
			Window:         time.Minute,
		},
		Password: PasswordConfig{
			Memory:      64 * 1024,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{Enabled: true},
	}
}

// Validate rejects configurations that would weaken the security
// properties the engine promises.
func (c *Config) Validate() error {
	if c.Token.AccessTTL <= 0 || c.Token.RefreshTTL <= 0 || c.Token.TempTTL <= 0 {
		return errors.New("token lifetimes must be positive")
	}
	if c.Token.AccessTTL > c.Token.RefreshTTL {
		return errors.New("access TTL must not exceed refresh TTL")
	}
	if c.Token.TempTTL > 30*time.Minute {
		return errors.New("temp token TTL too long")
	}
	if c.Lockout.Threshold < 1 {
		return errors.New("lockout threshold must be at least 1")
	}
	if c.Lockout.Window <= 0 {
		return errors.New("lockout window must be positive")
	}
	if c.Verification.CodeTTL <= 0 {
		return errors.New("verification code TTL must be positive")
	}
	if c.Verification.Cooldown < 0 || c.Verification.Cooldown >= c.Verification.CodeTTL {
		return fmt.Errorf("verification cooldown must be in [0, %s)", c.Verification.CodeTTL)
	}
	if c.Verification.MaxAttempts < 1 {
		return errors.New("verification max attempts must be at least 1")
	}
	if c.Verification.DefaultRole == "" {
		return errors.New("verification default role required")
	}
	if c.RateLimit.IssuePerWindow < 1 {
		return errors.New("rate limit must admit at least one call per window")
	}
	if c.RateLimit.Window <= 0 {
		return errors.New("rate limit window must be positive")
	}
	return nil
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.PrivateKey = cloneBytes(cfg.Token.PrivateKey)
	out.Token.PublicKey = cloneBytes(cfg.Token.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
