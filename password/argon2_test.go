package password

import (
	"strings"
	"testing"
)

func testConfig() Config {
	return Config{
		Memory:      64 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func TestHashVerifyRoundTrip(t *testing.T) {
	hasher, err := NewArgon2(testConfig())
	if err != nil {
		t.Fatalf("NewArgon2 failed: %v", err)
	}

	digest, err := hasher.Hash("correct-horse-battery")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if !strings.HasPrefix(digest, "$argon2id$") {
		t.Fatalf("unexpected digest prefix: %q", digest)
	}

	if !hasher.Verify("correct-horse-battery", digest) {
		t.Fatal("expected matching password to verify")
	}
	if hasher.Verify("wrong-password-here", digest) {
		t.Fatal("expected mismatching password to fail")
	}
}

func TestHashProducesFreshSalt(t *testing.T) {
	hasher, err := NewArgon2(testConfig())
	if err != nil {
		t.Fatalf("NewArgon2 failed: %v", err)
	}

	first, err := hasher.Hash("same-password-twice")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	second, err := hasher.Hash("same-password-twice")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}

	if first == second {
		t.Fatal("expected distinct digests for repeated hashing")
	}
}

func TestVerifyMalformedDigestReportsFalse(t *testing.T) {
	hasher, err := NewArgon2(testConfig())
	if err != nil {
		t.Fatalf("NewArgon2 failed: %v", err)
	}

	cases := []struct {
		name   string
		digest string
	}{
		{"empty", ""},
		{"garbage", "not-a-digest"},
		{"wrong algorithm", "$bcrypt$v=19$m=65536,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA"},
		{"bad version", "$argon2id$v=7$m=65536,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA"},
		{"bad salt encoding", "$argon2id$v=19$m=65536,t=1,p=1$!!!$aGFzaA"},
		{"missing params", "$argon2id$v=19$m=65536,t=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA"},
		{"zero memory", "$argon2id$v=19$m=0,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if hasher.Verify("whatever", tc.digest) {
				t.Fatalf("expected malformed digest %q to verify false", tc.digest)
			}
		})
	}
}

func TestVerifyDummyAlwaysFalse(t *testing.T) {
	hasher, err := NewArgon2(testConfig())
	if err != nil {
		t.Fatalf("NewArgon2 failed: %v", err)
	}

	if hasher.VerifyDummy("invalid-password") {
		t.Fatal("dummy verification must report false even for the seed password")
	}
	if hasher.VerifyDummy("anything-else") {
		t.Fatal("dummy verification must report false")
	}
}

func TestConfigFloors(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"memory below floor", func(c *Config) { c.Memory = 8 * 1024 }},
		{"zero time", func(c *Config) { c.Time = 0 }},
		{"zero parallelism", func(c *Config) { c.Parallelism = 0 }},
		{"short salt", func(c *Config) { c.SaltLength = 8 }},
		{"short key", func(c *Config) { c.KeyLength = 8 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig()
			tc.mutate(&cfg)
			if _, err := NewArgon2(cfg); err == nil {
				t.Fatal("expected config validation error")
			}
		})
	}
}
