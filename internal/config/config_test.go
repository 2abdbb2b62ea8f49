package config

import (
	"os"
	"testing"
)

// unsetenv clears keys for the duration of the test.
func unsetenv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		if err := os.Unsetenv(k); err != nil {
			t.Fatalf("unsetenv %s: %v", k, err)
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	unsetenv(t, "GAMEREV_ADDR", "PORT", "GAMEREV_API", "GAMEREV_IDENTITY", "GAMEREV_STORE",
		"GAMEREV_RL_CREATE_PER_MIN", "GAMEREV_RL_REVISION_PER_MIN")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != "127.0.0.1:8080" {
		t.Fatalf("unexpected addr %q", cfg.Addr)
	}
	if cfg.API != APIRestlike || cfg.Identity != IdentityAnonymous {
		t.Fatalf("unexpected variant %q/%q", cfg.API, cfg.Identity)
	}
	if cfg.StoreDriver != StoreMemory {
		t.Fatalf("unexpected store %q", cfg.StoreDriver)
	}
	if cfg.RateLimits.CreatePerMinute != 30 || cfg.RateLimits.RevisionPerMinute != 600 {
		t.Fatalf("unexpected rate limits %+v", cfg.RateLimits)
	}
}

func TestLoadPortFallback(t *testing.T) {
	unsetenv(t, "GAMEREV_ADDR")
	t.Setenv("PORT", "9090")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9090" {
		t.Fatalf("expected :9090, got %q", cfg.Addr)
	}
}

func TestRestVariantDefaultsToUUIDIdentity(t *testing.T) {
	unsetenv(t, "GAMEREV_IDENTITY")
	t.Setenv("GAMEREV_API", "rest")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Identity != IdentityUUID {
		t.Fatalf("expected uuid identity, got %q", cfg.Identity)
	}
}

func TestValidateRejectsUnknownValues(t *testing.T) {
	base := Config{API: APIRest, Identity: IdentityUUID, StoreDriver: StoreMemory, ShadowSecret: "s", InitialState: "{}"}
	if err := base.Validate(); err != nil {
		t.Fatalf("base config invalid: %v", err)
	}

	cases := map[string]func(*Config){
		"api":      func(c *Config) { c.API = "graphql" },
		"identity": func(c *Config) { c.Identity = "oauth" },
		"store":    func(c *Config) { c.StoreDriver = "redis" },
		"state":    func(c *Config) { c.InitialState = "{not json" },
		"secret":   func(c *Config) { c.ShadowSecret = "" },
		"pairing with uuid identity": func(c *Config) {
			c.EnforcePairing = true
			c.StoreDriver = StoreSQLite
		},
		"pairing with memory store": func(c *Config) {
			c.EnforcePairing = true
			c.API, c.Identity = APIRestlike, IdentityAnonymous
		},
	}
	for name, mutate := range cases {
		cfg := base
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestValidateAcceptsPairingOnSQLite(t *testing.T) {
	cfg := Config{
		API:            APIRestlike,
		Identity:       IdentityAnonymous,
		EnforcePairing: true,
		StoreDriver:    StoreSQLite,
		ShadowSecret:   "s",
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected anonymous pairing on sqlite to validate: %v", err)
	}
}
