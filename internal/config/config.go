package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
)

// API variants. Each deployment serves exactly one.
const (
	APIRest     = "rest"
	APIRestlike = "restlike"
)

// Identity strategies.
const (
	IdentityUUID      = "uuid"
	IdentityAnonymous = "anonymous"
)

// Store drivers.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

type Config struct {
	Addr           string `env:"GAMEREV_ADDR"`
	API            string `env:"GAMEREV_API" envDefault:"restlike"`
	Identity       string `env:"GAMEREV_IDENTITY"`
	EnforcePairing bool   `env:"GAMEREV_ENFORCE_PAIRING" envDefault:"false"`
	StoreDriver    string `env:"GAMEREV_STORE" envDefault:"memory"`
	DBPath         string `env:"GAMEREV_DB" envDefault:"gamerev.db"`
	ShadowSecret   string `env:"GAMEREV_SHADOW_SECRET" envDefault:"dev-shadow-secret"`
	InitialState   string `env:"GAMEREV_INITIAL_STATE" envDefault:"{}"`
	OTelEndpoint   string `env:"GAMEREV_OTEL_ENDPOINT"`
	RateLimits     RateLimits
}

type RateLimits struct {
	CreatePerMinute   int `env:"GAMEREV_RL_CREATE_PER_MIN" envDefault:"30"`
	RevisionPerMinute int `env:"GAMEREV_RL_REVISION_PER_MIN" envDefault:"600"`
}

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.Addr == "" {
		if port := os.Getenv("PORT"); port != "" {
			cfg.Addr = ":" + port
		} else {
			cfg.Addr = "127.0.0.1:8080"
		}
	}
	if cfg.Identity == "" {
		cfg.Identity = DefaultIdentity(cfg.API)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// DefaultIdentity returns the identity strategy the given API variant was
// designed around.
func DefaultIdentity(api string) string {
	if api == APIRest {
		return IdentityUUID
	}
	return IdentityAnonymous
}

func (c Config) Validate() error {
	switch c.API {
	case APIRest, APIRestlike:
	default:
		return fmt.Errorf("GAMEREV_API: unknown variant %q", c.API)
	}
	switch c.Identity {
	case IdentityUUID, IdentityAnonymous:
	default:
		return fmt.Errorf("GAMEREV_IDENTITY: unknown strategy %q", c.Identity)
	}
	switch c.StoreDriver {
	case StoreMemory, StoreSQLite:
	default:
		return fmt.Errorf("GAMEREV_STORE: unknown driver %q", c.StoreDriver)
	}
	if c.InitialState != "" && !json.Valid([]byte(c.InitialState)) {
		return fmt.Errorf("GAMEREV_INITIAL_STATE: not a JSON document")
	}
	if c.ShadowSecret == "" {
		return fmt.Errorf("GAMEREV_SHADOW_SECRET: must not be empty")
	}
	if c.EnforcePairing {
		// Only anonymous pairs are ever issued, and only into the sqlite file
		// that `gamerev issue` writes to.
		if c.Identity != IdentityAnonymous {
			return fmt.Errorf("GAMEREV_ENFORCE_PAIRING: requires the %q identity strategy", IdentityAnonymous)
		}
		if c.StoreDriver != StoreSQLite {
			return fmt.Errorf("GAMEREV_ENFORCE_PAIRING: requires the %q store", StoreSQLite)
		}
	}
	return nil
}
