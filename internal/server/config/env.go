package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// parseEnv overlays Config fields from the process environment. A .env file
// in the working directory is loaded first if present; real environment
// variables win over file values, which is godotenv's default.
func parseEnv(config *Config) {
	_ = godotenv.Load()

	setString := func(key string, target *string) {
		if v, ok := os.LookupEnv(key); ok {
			*target = v
		}
	}
	setInt := func(key string, target *int) {
		if v, ok := os.LookupEnv(key); ok {
			if n, err := strconv.Atoi(v); err == nil {
				*target = n
			}
		}
	}
	setDuration := func(key string, target *time.Duration) {
		if v, ok := os.LookupEnv(key); ok {
			if d, err := time.ParseDuration(v); err == nil {
				*target = d
			}
		}
	}

	setString("ADDRESS", &config.EndpointAddrHTTP)
	setString("DATABASE_DSN", &config.DatabaseDSN)
	setString("SECRET_KEY", &config.SecretKey)
	setDuration("ACCESS_TOKEN_VALIDITY", &config.AccessTokenValidityDuration)
	setDuration("REFRESH_TOKEN_VALIDITY", &config.RefreshTokenValidityDuration)
	setInt("LOCKOUT_THRESHOLD", &config.LockoutThreshold)
	setDuration("LOCKOUT_DURATION", &config.LockoutDuration)
	setInt("SYNC_PAGE_LIMIT", &config.SyncPageLimit)
	setString("SMTP_HOST", &config.SMTPHost)
	setInt("SMTP_PORT", &config.SMTPPort)
	setString("SMTP_USER", &config.SMTPUser)
	setString("SMTP_PASSWORD", &config.SMTPPassword)
	setString("SMTP_FROM", &config.SMTPFrom)
}
