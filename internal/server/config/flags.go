package config

import (
	"flag"
	"os"
	"time"

	"github.com/stacknotes/syncserver/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret key
//	-t int      access token validity, minutes
//	-r int      refresh token validity, minutes
//	-n int      failed-attempt threshold before lockout
//	-l int      lockout duration, minutes
//	-p int      sync page limit
//
// The function first filters os.Args down to the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with the -c/-config file flags.
// Duration flags are accepted as integer minutes.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-s", "-t", "-r", "-n", "-l", "-p"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	accessTokenValidity := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access token validity (in minutes)")
	refreshTokenValidity := fs.Int("r", int(config.RefreshTokenValidityDuration.Minutes()), "refresh token validity (in minutes)")

	fs.IntVar(&config.LockoutThreshold, "n", config.LockoutThreshold, "failed attempts before lockout")
	lockoutDuration := fs.Int("l", int(config.LockoutDuration.Minutes()), "lockout duration (in minutes)")
	fs.IntVar(&config.SyncPageLimit, "p", config.SyncPageLimit, "max items per sync page")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.AccessTokenValidityDuration = time.Duration(*accessTokenValidity) * time.Minute
	config.RefreshTokenValidityDuration = time.Duration(*refreshTokenValidity) * time.Minute
	config.LockoutDuration = time.Duration(*lockoutDuration) * time.Minute
}
