package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/linkkeeper/internal/flagx"
	"github.com/dmitrijs2005/linkkeeper/internal/timex"
	"gopkg.in/yaml.v3"
)

// FileConfig is the on-disk form of Config. Durations accept "1h" or
// integer nanoseconds.
type FileConfig struct {
	EndpointAddrHTTP             string         `json:"endpoint_addr_http" yaml:"endpoint_addr_http"`
	EndpointAddrGRPC             *string        `json:"endpoint_addr_grpc" yaml:"endpoint_addr_grpc"`
	DatabaseDriver               string         `json:"database_driver" yaml:"database_driver"`
	DatabaseDSN                  string         `json:"database_dsn" yaml:"database_dsn"`
	SecretKey                    string         `json:"secret_key" yaml:"secret_key"`
	SessionTokenValidityDuration timex.Duration `json:"session_token_validity_duration" yaml:"session_token_validity_duration"`
	PasswordHashAlgorithm        string         `json:"password_hash_algorithm" yaml:"password_hash_algorithm"`
	BcryptCost                   int            `json:"bcrypt_cost" yaml:"bcrypt_cost"`
	HashWorkers                  int            `json:"hash_workers" yaml:"hash_workers"`
	Platforms                    []string       `json:"platforms" yaml:"platforms"`
	RevocationBackend            string         `json:"revocation_backend" yaml:"revocation_backend"`
	RevocationCacheSize          int            `json:"revocation_cache_size" yaml:"revocation_cache_size"`
	RedisURL                     string         `json:"redis_url" yaml:"redis_url"`
	CORSOrigins                  []string       `json:"cors_origins" yaml:"cors_origins"`
	LogLevel                     string         `json:"log_level" yaml:"log_level"`
	LogFormat                    string         `json:"log_format" yaml:"log_format"`
}

// parseFile overlays the file named by -c/-config onto config. Only fields
// present in the file replace the current values. The format follows the
// extension: .yaml/.yml is YAML, anything else JSON.
func parseFile(config *Config, args []string) {
	path := flagx.ConfigFileFlag(args)

	// nothing to load
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	c := &FileConfig{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, c)
	default:
		err = json.Unmarshal(data, c)
	}
	if err != nil {
		panic(err)
	}

	c.apply(config)
}

func (c *FileConfig) apply(config *Config) {
	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	if c.EndpointAddrGRPC != nil {
		config.EndpointAddrGRPC = *c.EndpointAddrGRPC
	}
	setString(&config.DatabaseDriver, c.DatabaseDriver)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	if c.SessionTokenValidityDuration.Duration != 0 {
		config.SessionTokenValidityDuration = c.SessionTokenValidityDuration.Duration
	}
	setString(&config.PasswordHashAlgorithm, c.PasswordHashAlgorithm)
	setInt(&config.BcryptCost, c.BcryptCost)
	setInt(&config.HashWorkers, c.HashWorkers)
	if len(c.Platforms) > 0 {
		config.Platforms = c.Platforms
	}
	setString(&config.RevocationBackend, c.RevocationBackend)
	setInt(&config.RevocationCacheSize, c.RevocationCacheSize)
	setString(&config.RedisURL, c.RedisURL)
	if len(c.CORSOrigins) > 0 {
		config.CORSOrigins = c.CORSOrigins
	}
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.LogFormat, c.LogFormat)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}
