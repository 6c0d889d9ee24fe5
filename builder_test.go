package authkit

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBuildRequiresCollaborators(t *testing.T) {
	deps := newTestDeps(t)

	if _, err := New().
		WithConfig(deps.config).
		WithIdentityStore(deps.identity).
		WithCodeSender(deps.sender).
		Build(); err == nil {
		t.Fatal("Build succeeded without a redis client")
	}

	if _, err := New().
		WithConfig(deps.config).
		WithRedis(deps.client).
		WithCodeSender(deps.sender).
		Build(); err == nil {
		t.Fatal("Build succeeded without an identity store")
	}

	if _, err := New().
		WithConfig(deps.config).
		WithRedis(deps.client).
		WithIdentityStore(deps.identity).
		Build(); err == nil {
		t.Fatal("Build succeeded without a code sender")
	}
}

func TestBuildRejectsInvalidConfig(t *testing.T) {
	deps := newTestDeps(t)

	bad := deps.config
	bad.Verification = VerificationConfig{
		CodeTTL:  time.Minute,
		Cooldown: 2 * time.Minute, // cooldown longer than the code lives
	}

	if _, err := New().
		WithConfig(bad).
		WithRedis(deps.client).
		WithIdentityStore(deps.identity).
		WithCodeSender(deps.sender).
		Build(); err == nil {
		t.Fatal("Build accepted cooldown >= code TTL")
	}
}

func TestBuildRequiresSigningKeys(t *testing.T) {
	deps := newTestDeps(t)

	bare := deps.config
	bare.Token.PrivateKey = nil
	bare.Token.PublicKey = nil

	if _, err := New().
		WithConfig(bare).
		WithRedis(deps.client).
		WithIdentityStore(deps.identity).
		WithCodeSender(deps.sender).
		Build(); err == nil {
		t.Fatal("Build accepted ed25519 config without keys")
	}
}

func TestBuildWithoutMembershipUsesDefaultRole(t *testing.T) {
	deps := newTestDeps(t)

	engine, err := New().
		WithConfig(deps.config).
		WithRedis(deps.client).
		WithIdentityStore(deps.identity).
		WithCodeSender(deps.sender).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	deps.seedUser(t, engine, "alice@example.com", "pw-123456", "", StatusActive)

	result, err := engine.Login(context.Background(), "alice@example.com", "pw-123456")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if len(result.Session.Roles) != 1 || result.Session.Roles[0] != "USER" {
		t.Fatalf("Roles = %v, want the default [USER]", result.Session.Roles)
	}
	if result.Session.TenantID != "" {
		t.Fatalf("TenantID = %q, want empty", result.Session.TenantID)
	}
}

func TestMergeConfigKeepsUnsetDefaults(t *testing.T) {
	deps := newTestDeps(t)

	partial := Config{
		Token: TokenConfig{
			PrivateKey: deps.config.Token.PrivateKey,
			PublicKey:  deps.config.Token.PublicKey,
			AccessTTL:  time.Minute,
		},
	}

	engine, err := New().
		WithConfig(partial).
		WithRedis(deps.client).
		WithIdentityStore(deps.identity).
		WithCodeSender(deps.sender).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	if engine.config.Token.AccessTTL != time.Minute {
		t.Fatalf("AccessTTL = %v, want overridden 1m", engine.config.Token.AccessTTL)
	}
	if engine.config.Token.RefreshTTL != 7*24*time.Hour {
		t.Fatalf("RefreshTTL = %v, want default 168h", engine.config.Token.RefreshTTL)
	}
	if engine.config.Lockout.Threshold != 5 {
		t.Fatalf("Lockout.Threshold = %d, want default 5", engine.config.Lockout.Threshold)
	}
	if engine.config.Verification.MessageTemplate == "" {
		t.Fatal("default message template lost")
	}
}

func TestEngineMethodsOnNilOrUnbuiltEngine(t *testing.T) {
	var e *Engine

	if _, err := e.Login(context.Background(), "a@b.c", "pw"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("Login error = %v, want ErrEngineNotReady", err)
	}
	if _, err := e.ValidateAccess(context.Background(), "tok"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("ValidateAccess error = %v, want ErrEngineNotReady", err)
	}
	e.Close()

	snap := e.MetricsSnapshot()
	if len(snap.Counters) != 0 {
		t.Fatalf("nil engine snapshot has %d counters", len(snap.Counters))
	}
}
