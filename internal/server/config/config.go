// Package config handles configuration for the server component: defaults,
// then a JSON or YAML file, then the environment (optionally seeded from a
// .env file), then command-line flags. Later sources win.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"slices"
	"time"

	"github.com/dmitrijs2005/linkkeeper/internal/common"
	"github.com/dmitrijs2005/linkkeeper/internal/cryptox"
	"github.com/dmitrijs2005/linkkeeper/internal/dbx"
	"github.com/dmitrijs2005/linkkeeper/internal/logging"
	"github.com/dmitrijs2005/linkkeeper/internal/server/auth"
	"golang.org/x/crypto/bcrypt"
)

// Config holds runtime settings for the linkkeeper server.
//
// SecretKey has no default: the server refuses to start without one.
type Config struct {
	EndpointAddrHTTP string `env:"HTTP_ADDRESS"`
	EndpointAddrGRPC string `env:"GRPC_ADDRESS"` // empty disables gRPC

	DatabaseDriver string `env:"DATABASE_DRIVER"`
	DatabaseDSN    string `env:"DATABASE_DSN"`

	SecretKey                    string        `env:"JWT_SECRET"`
	SessionTokenValidityDuration time.Duration `env:"SESSION_TOKEN_VALIDITY"`

	PasswordHashAlgorithm string `env:"PASSWORD_HASH_ALGORITHM"`
	BcryptCost            int    `env:"BCRYPT_COST"`
	HashWorkers           int    `env:"HASH_WORKERS"`

	Platforms []string `env:"PLATFORMS" envSeparator:","`

	RevocationBackend   string `env:"REVOCATION_BACKEND"`
	RevocationCacheSize int    `env:"REVOCATION_CACHE_SIZE"`
	RedisURL            string `env:"REDIS_URL"`

	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:","`

	LogLevel  string `env:"LOG_LEVEL"`
	LogFormat string `env:"LOG_FORMAT"`
}

// LoadDefaults populates Config with development defaults.
func (c *Config) LoadDefaults() {
	c.EndpointAddrHTTP = ":5000"
	c.EndpointAddrGRPC = ":50051"
	c.DatabaseDriver = string(dbx.SQLite)
	c.DatabaseDSN = "localdb.sqlite"
	c.SessionTokenValidityDuration = auth.DefaultValidity
	c.PasswordHashAlgorithm = cryptox.AlgorithmBcrypt
	c.BcryptCost = cryptox.DefaultBcryptCost
	c.HashWorkers = runtime.NumCPU()
	c.Platforms = slices.Clone(common.DefaultPlatforms)
	c.RevocationBackend = auth.DenylistNone
	c.RevocationCacheSize = 100_000
	c.CORSOrigins = []string{"*"}
	c.LogLevel = "info"
	c.LogFormat = logging.FormatJSON
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional config file, the environment and finally command-line
// flags. Malformed sources panic, as the process cannot start anyway.
func LoadConfig() *Config {
	args := os.Args[1:]

	cfg := &Config{}
	cfg.LoadDefaults()
	parseFile(cfg, args)
	parseEnv(cfg, args)
	parseFlags(cfg, args)
	return cfg
}

// Validate reports settings the server cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if c.SecretKey == "" {
		errs = append(errs, errors.New("jwt secret is not set (JWT_SECRET or -s)"))
	}
	if _, err := dbx.ParseDialect(c.DatabaseDriver); err != nil {
		errs = append(errs, err)
	}
	if c.DatabaseDSN == "" {
		errs = append(errs, errors.New("database dsn is empty"))
	}
	if c.EndpointAddrHTTP == "" {
		errs = append(errs, errors.New("http address is empty"))
	}
	if c.SessionTokenValidityDuration <= 0 {
		errs = append(errs, fmt.Errorf("session token validity must be positive, got %v", c.SessionTokenValidityDuration))
	}

	switch c.PasswordHashAlgorithm {
	case cryptox.AlgorithmBcrypt, cryptox.AlgorithmArgon2id:
	default:
		errs = append(errs, fmt.Errorf("%w: %q", cryptox.ErrUnknownAlgorithm, c.PasswordHashAlgorithm))
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		errs = append(errs, fmt.Errorf("bcrypt cost %d out of range [%d, %d]", c.BcryptCost, bcrypt.MinCost, bcrypt.MaxCost))
	}
	if c.HashWorkers < 0 {
		errs = append(errs, fmt.Errorf("hash workers must not be negative, got %d", c.HashWorkers))
	}

	switch c.RevocationBackend {
	case auth.DenylistNone, auth.DenylistMemory:
	case auth.DenylistRedis:
		if c.RedisURL == "" {
			errs = append(errs, errors.New("redis revocation backend needs REDIS_URL"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown revocation backend %q", c.RevocationBackend))
	}

	switch c.LogFormat {
	case logging.FormatJSON, logging.FormatText, logging.FormatLogrus:
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.LogFormat))
	}

	return errors.Join(errs...)
}
