package config

import (
	"errors"
	"io/fs"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/dmitrijs2005/linkkeeper/internal/flagx"
	"github.com/joho/godotenv"
)

const defaultEnvFile = ".env"

// parseEnv overlays environment variables onto config. Variables from the
// file named by -env-file (or ./.env when present) are loaded first but
// never override variables already set in the process environment.
//
// PORT is honoured as a shorthand for HTTP_ADDRESS=":<PORT>".
func parseEnv(config *Config, args []string) {
	path := flagx.EnvFileFlag(args)
	if path == "" {
		path = defaultEnvFile
	}

	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		panic(err)
	}

	if port := os.Getenv("PORT"); port != "" && os.Getenv("HTTP_ADDRESS") == "" {
		config.EndpointAddrHTTP = ":" + port
	}

	if err := env.Parse(config); err != nil {
		panic(err)
	}
}
