package authkit

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/edugraminho/authkit/internal/lockout"
	"github.com/edugraminho/authkit/internal/otc"
	"github.com/edugraminho/authkit/internal/rate"
	"github.com/edugraminho/authkit/internal/revocation"
	"github.com/edugraminho/authkit/internal/store"
	"github.com/edugraminho/authkit/password"
	"github.com/edugraminho/authkit/token"
)

// Builder assembles an Engine. Chain the With* methods and finish with
// Build:
//
//	engine, err := authkit.New().
//		WithRedis(client).
//		WithIdentityStore(users).
//		WithCodeSender(sms).
//		Build()
type Builder struct {
	config     *Config
	redis      redis.UniversalClient
	identity   IdentityStore
	membership MembershipResolver
	sender     CodeSender
	sink       AuditSink
}

// New starts a Builder with the default configuration.
func New() *Builder {
	return &Builder{}
}

// WithConfig replaces the default configuration. Zero-valued sections
// keep their defaults.
func (b *Builder) WithConfig(cfg Config) *Builder {
	c := cloneConfig(cfg)
	b.config = &c
	return b
}

// WithRedis sets the client backing all shared state: lockout counters,
// verification codes, rate-limit windows, and revocation marks.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithIdentityStore sets the application's credential lookup.
func (b *Builder) WithIdentityStore(s IdentityStore) *Builder {
	b.identity = s
	return b
}

// WithMembershipResolver sets the role and tenant source. When omitted
// every user gets the configured default role and no tenant.
func (b *Builder) WithMembershipResolver(r MembershipResolver) *Builder {
	b.membership = r
	return b
}

// WithCodeSender sets the verification-code delivery channel.
func (b *Builder) WithCodeSender(s CodeSender) *Builder {
	b.sender = s
	return b
}

// WithAuditSink enables audit dispatch to the given sink.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.sink = sink
	return b
}

// Build validates the configuration and wires the Engine. The returned
// Engine shares no mutable state with the Builder.
func (b *Builder) Build() (*Engine, error) {
	cfg := defaultConfig()
	if b.config != nil {
		cfg = mergeConfig(cfg, *b.config)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.redis == nil {
		return nil, errors.New("authkit: redis client required")
	}
	if b.identity == nil {
		return nil, errors.New("authkit: identity store required")
	}
	if b.sender == nil {
		return nil, errors.New("authkit: code sender required")
	}

	tokens, err := token.NewManager(token.Config{
		SigningMethod: token.SigningMethod(cfg.Token.SigningMethod),
		PrivateKey:    cfg.Token.PrivateKey,
		PublicKey:     cfg.Token.PublicKey,
		Issuer:        cfg.Token.Issuer,
		Audience:      cfg.Token.Audience,
		Leeway:        cfg.Token.Leeway,
	})
	if err != nil {
		return nil, err
	}

	hasher, err := password.NewHasher(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}

	st := store.New(b.redis)

	membership := b.membership
	if membership == nil {
		membership = noMembership{}
	}

	sink := b.sink
	audit := cfg.Audit
	if sink == nil {
		audit.Enabled = false
	}

	return &Engine{
		config:     cfg,
		identity:   b.identity,
		membership: membership,
		sender:     b.sender,
		lockout: lockout.New(st, lockout.Config{
			Threshold: cfg.Lockout.Threshold,
			Window:    cfg.Lockout.Window,
		}),
		codes: otc.New(st, otc.Config{
			CodeTTL:     cfg.Verification.CodeTTL,
			Cooldown:    cfg.Verification.Cooldown,
			MaxAttempts: cfg.Verification.MaxAttempts,
		}),
		revocations: revocation.New(st),
		limiter:     rate.New(st),
		tokens:      tokens,
		hasher:      hasher,
		audit:       newAuditDispatcher(audit, sink),
		metrics:     newMetrics(cfg.Metrics),
	}, nil
}

// mergeConfig overlays set fields of override onto base so callers can
// tune one section without restating the defaults.
func mergeConfig(base, override Config) Config {
	out := base

	if override.Token.AccessTTL != 0 {
		out.Token.AccessTTL = override.Token.AccessTTL
	}
	if override.Token.RefreshTTL != 0 {
		out.Token.RefreshTTL = override.Token.RefreshTTL
	}
	if override.Token.TempTTL != 0 {
		out.Token.TempTTL = override.Token.TempTTL
	}
	if override.Token.SigningMethod != "" {
		out.Token.SigningMethod = override.Token.SigningMethod
	}
	if len(override.Token.PrivateKey) > 0 {
		out.Token.PrivateKey = override.Token.PrivateKey
	}
	if len(override.Token.PublicKey) > 0 {
		out.Token.PublicKey = override.Token.PublicKey
	}
	if override.Token.Issuer != "" {
		out.Token.Issuer = override.Token.Issuer
	}
	if override.Token.Audience != "" {
		out.Token.Audience = override.Token.Audience
	}
	if override.Token.Leeway != 0 {
		out.Token.Leeway = override.Token.Leeway
	}

	if override.Lockout.Threshold != 0 {
		out.Lockout.Threshold = override.Lockout.Threshold
	}
	if override.Lockout.Window != 0 {
		out.Lockout.Window = override.Lockout.Window
	}

	if override.Verification.CodeTTL != 0 {
		out.Verification.CodeTTL = override.Verification.CodeTTL
	}
	if override.Verification.Cooldown != 0 {
		out.Verification.Cooldown = override.Verification.Cooldown
	}
	if override.Verification.MaxAttempts != 0 {
		out.Verification.MaxAttempts = override.Verification.MaxAttempts
	}
	if override.Verification.BypassRole != "" {
		out.Verification.BypassRole = override.Verification.BypassRole
	}
	if override.Verification.DefaultRole != "" {
		out.Verification.DefaultRole = override.Verification.DefaultRole
	}
	if override.Verification.MessageTemplate != "" {
		out.Verification.MessageTemplate = override.Verification.MessageTemplate
	}

	if override.RateLimit.IssuePerWindow != 0 {
		out.RateLimit.IssuePerWindow = override.RateLimit.IssuePerWindow
	}
	if override.RateLimit.Window != 0 {
		out.RateLimit.Window = override.RateLimit.Window
	}

	if override.Password.Memory != 0 {
		out.Password = override.Password
	}

	if override.Audit.Enabled {
		out.Audit = override.Audit
		if out.Audit.BufferSize == 0 {
			out.Audit.BufferSize = base.Audit.BufferSize
		}
	}
	out.Metrics = override.Metrics

	return out
}

// noMembership is the resolver used when none is supplied: no tenant
// memberships exist and every user carries the default role.
type noMembership struct{}

func (noMembership) RolesForUser(context.Context, string) ([]string, error) { return nil, nil }

func (noMembership) DefaultTenant(context.Context, string) (string, error) { return "", nil }

func (noMembership) HasAccess(context.Context, string, string) (bool, error) { return false, nil }
