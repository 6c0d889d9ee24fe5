package password

import (
	"strings"
	"testing"
)

func newTestHasher(t *testing.T) *Hasher {
	t.Helper()

	// Low-but-valid costs keep test runs fast.
	h, err := NewHasher(Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   16,
	})
	if err != nil {
		t.Fatalf("NewHasher failed: %v", err)
	}
	return h
}

func TestHashVerifyRoundTrip(t *testing.T) {
	h := newTestHasher(t)

	encoded, err := h.Hash("correct horse battery staple")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if !strings.HasPrefix(encoded, "$argon2id$") {
		t.Fatalf("hash %q is not PHC argon2id", encoded)
	}

	ok, err := h.Verify("correct horse battery staple", encoded)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !ok {
		t.Fatal("Verify rejected the correct password")
	}

	ok, err = h.Verify("wrong password", encoded)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if ok {
		t.Fatal("Verify accepted a wrong password")
	}
}

func TestHashesAreSalted(t *testing.T) {
	h := newTestHasher(t)

	a, err := h.Hash("same password")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	b, err := h.Hash("same password")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if a == b {
		t.Fatal("two hashes of the same password are identical")
	}
}

func TestVerifyUsesEmbeddedParameters(t *testing.T) {
	strong, err := NewHasher(Config{
		Memory:      16 * 1024,
		Time:        2,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	})
	if err != nil {
		t.Fatalf("NewHasher failed: %v", err)
	}
	encoded, err := strong.Hash("pw")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}

	// A hasher configured with different costs still verifies: the
	// parameters come from the hash, not the hasher.
	weak := newTestHasher(t)
	ok, err := weak.Verify("pw", encoded)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !ok {
		t.Fatal("Verify rejected hash with foreign parameters")
	}
}

func TestVerifyRejectsMalformedHashes(t *testing.T) {
	h := newTestHasher(t)

	cases := []string{
		"",
		"plainhash",
		"$bcrypt$v=19$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
		"$argon2id$v=19$m=8192,t=1,p=1$!!!$aGFzaA",
		"$argon2id$v=19$m=0,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
	}
	for _, encoded := range cases {
		if _, err := h.Verify("pw", encoded); err == nil {
			t.Fatalf("Verify accepted malformed hash %q", encoded)
		}
	}
}

func TestHashRejectsEmptyPassword(t *testing.T) {
	h := newTestHasher(t)

	if _, err := h.Hash(""); err == nil {
		t.Fatal("Hash accepted an empty password")
	}
}

func TestNewHasherRejectsWeakConfig(t *testing.T) {
	base := Config{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 16}

	weaken := []func(Config) Config{
		func(c Config) Config { c.Memory = 1024; return c },
		func(c Config) Config { c.Time = 0; return c },
		func(c Config) Config { c.Parallelism = 0; return c },
		func(c Config) Config { c.SaltLength = 8; return c },
		func(c Config) Config { c.KeyLength = 8; return c },
	}
	for i, f := range weaken {
		if _, err := NewHasher(f(base)); err == nil {
			t.Fatalf("case %d: NewHasher accepted weakened config", i)
		}
	}
}
