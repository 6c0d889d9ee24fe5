// Package otc generates, stores, and verifies phone one-time codes.
//
// Per subject key the state machine is NO_CODE -> CODE_ACTIVE ->
// (VERIFIED | EXPIRED | ATTEMPTS_EXHAUSTED). At most one code is live
// per subject: generation overwrites the previous code and resets the
// attempt counter. Verification runs as a single Redis script so the
// attempt counter cannot lose updates under concurrent guesses.
package otc

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/edugraminho/authkit/internal/store"
)

const codeDigits = 6

// Result is the outcome of a single verification attempt.
type Result int

const (
	// ResultInvalid covers a wrong code and a missing (expired or never
	// issued) code. The two are deliberately indistinguishable.
	ResultInvalid Result = iota
	// ResultVerified means the code matched and has been consumed.
	ResultVerified
	// ResultExhausted means the attempt budget was already spent; the
	// stored code is not consulted.
	ResultExhausted
)

// Config holds code lifetime and guessing limits.
type Config struct {
	CodeTTL     time.Duration
	MaxAttempts int
	Cooldown    time.Duration
}

// Verifier issues and checks one-time codes for normalized subject keys.
type Verifier struct {
	store  *store.Store
	config Config
}

// New creates a Verifier with the given limits.
func New(s *store.Store, cfg Config) *Verifier {
	return &Verifier{store: s, config: cfg}
}

func (v *Verifier) codeKey(subject string) string {
	return "otc:code:" + subject
}

func (v *Verifier) attemptsKey(subject string) string {
	return "otc:att:" + subject
}

// verifyScript consumes the code on match, and on mismatch increments
// the attempt counter with its TTL pinned to the code's remaining
// lifetime. Status codes: 1 verified, 0 invalid, 2 attempts exhausted,
// 3 no live code.
const verifyScript = `
local attempts = tonumber(redis.call("GET", KEYS[2]) or "0")
if attempts >= tonumber(ARGV[2]) then
  return 2
end
local code = redis.call("GET", KEYS[1])
if not code then
  return 3
end
if code == ARGV[1] then
  redis.call("DEL", KEYS[1])
  redis.call("DEL", KEYS[2])
  return 1
end
redis.call("INCR", KEYS[2])
local remaining = redis.call("PTTL", KEYS[1])
if remaining > 0 then
  redis.call("PEXPIRE", KEYS[2], remaining)
end
return 0
`

var verifyLua = redis.NewScript(verifyScript)

// Generate produces a uniformly random six digit code (leading zeros
// allowed), overwrites any live code for the subject, and resets the
// attempt counter. Cooldown is not checked here; callers decide whether
// an active cooldown rejects the request or re-uses the live code.
func (v *Verifier) Generate(ctx context.Context, subject string) (string, error) {
	code, err := randomCode(codeDigits)
	if err != nil {
		return "", err
	}

	pipe := v.store.Client().TxPipeline()
	pipe.Set(ctx, v.codeKey(subject), code, v.config.CodeTTL)
	pipe.Del(ctx, v.attemptsKey(subject))
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}

	return code, nil
}

// OnCooldown reports whether a code was issued more recently than the
// cooldown allows, derived from the live code's remaining TTL. Callers
// must check this before generating so an active code the user may
// already hold is never silently invalidated.
func (v *Verifier) OnCooldown(ctx context.Context, subject string) (bool, error) {
	remaining, err := v.store.TimeToLive(ctx, v.codeKey(subject))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return remaining > v.config.CodeTTL-v.config.Cooldown, nil
}

// Verify checks candidate against the live code for subject. The match
// is an exact string comparison after trimming surrounding whitespace.
// Once the attempt budget is spent every call returns ResultExhausted,
// even for the correct code, until a new code is generated.
func (v *Verifier) Verify(ctx context.Context, subject, candidate string) (Result, error) {
	candidate = strings.TrimSpace(candidate)

	status, err := verifyLua.Run(
		ctx,
		v.store.Client(),
		[]string{v.codeKey(subject), v.attemptsKey(subject)},
		candidate,
		v.config.MaxAttempts,
	).Int64()
	if err != nil {
		return ResultInvalid, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}

	switch status {
	case 1:
		return ResultVerified, nil
	case 2:
		return ResultExhausted, nil
	default:
		// Missing code and mismatch collapse to the same outcome.
		return ResultInvalid, nil
	}
}

// Invalidate deletes the live code and its attempt counter. Used to roll
// back a just-stored code when delivery fails, so the user is not left
// on cooldown for a code they never received.
func (v *Verifier) Invalidate(ctx context.Context, subject string) error {
	return v.store.Delete(ctx, v.codeKey(subject), v.attemptsKey(subject))
}

// ExpiresIn returns the remaining lifetime of the live code, or zero
// when no code is live.
func (v *Verifier) ExpiresIn(ctx context.Context, subject string) (time.Duration, error) {
	remaining, err := v.store.TimeToLive(ctx, v.codeKey(subject))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return remaining, nil
}

func randomCode(digits int) (string, error) {
	var b strings.Builder
	b.Grow(digits)

	max := big.NewInt(10)
	for i := 0; i < digits; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}

	return b.String(), nil
}
