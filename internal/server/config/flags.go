package config

import (
	"flag"
	"time"

	"github.com/dmitrijs2005/linkkeeper/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":5000")
//	-g string   gRPC health bind address, "" disables it
//	-D string   database driver: sqlite or postgres
//	-d string   database DSN
//	-s string   JWT HMAC secret key
//	-t int      session token validity, minutes
//	-H string   password hash algorithm: bcrypt or argon2id
//	-k int      bcrypt cost
//	-w int      concurrent password hash workers
//	-r string   revocation backend: none, memory or redis
//	-R string   redis URL for the redis revocation backend
//	-l string   log level
//	-f string   log format: json, text or logrus
//
// Duration flags are accepted as integers in minutes and only override the
// current value when passed explicitly.
func parseFlags(config *Config, args []string) {
	args = flagx.FilterArgs(args, []string{"-a", "-g", "-D", "-d", "-s", "-t", "-H", "-k", "-w", "-r", "-R", "-l", "-f"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "HTTP address and port to run server")
	fs.StringVar(&config.EndpointAddrGRPC, "g", config.EndpointAddrGRPC, "gRPC health address and port")
	fs.StringVar(&config.DatabaseDriver, "D", config.DatabaseDriver, "database driver")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	validity := fs.Int("t", int(config.SessionTokenValidityDuration.Minutes()), "session token validity (in minutes)")

	fs.StringVar(&config.PasswordHashAlgorithm, "H", config.PasswordHashAlgorithm, "password hash algorithm")
	fs.IntVar(&config.BcryptCost, "k", config.BcryptCost, "bcrypt cost")
	fs.IntVar(&config.HashWorkers, "w", config.HashWorkers, "password hash workers")
	fs.StringVar(&config.RevocationBackend, "r", config.RevocationBackend, "revocation backend")
	fs.StringVar(&config.RedisURL, "R", config.RedisURL, "redis URL")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")
	fs.StringVar(&config.LogFormat, "f", config.LogFormat, "log format")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	fs.Visit(func(f *flag.Flag) {
		if f.Name == "t" {
			config.SessionTokenValidityDuration = time.Duration(*validity) * time.Minute
		}
	})
}
