package config

import (
	"encoding/json"
	"os"

	"github.com/stacknotes/syncserver/internal/flagx"
	"github.com/stacknotes/syncserver/internal/timex"
)

// JsonConfig is the DTO for the optional JSON configuration file. Interval
// fields use timex.Duration so both "15m" strings and integer nanoseconds
// parse. After unmarshalling, values are copied into the runtime Config.
type JsonConfig struct {
	EndpointAddrHTTP             string         `json:"endpoint_addr_http"`
	DatabaseDSN                  string         `json:"database_dsn"`
	SecretKey                    string         `json:"secret_key"`
	AccessTokenValidityDuration  timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration timex.Duration `json:"refresh_token_validity_duration"`
	LockoutThreshold             int            `json:"lockout_threshold"`
	LockoutDuration              timex.Duration `json:"lockout_duration"`
	SyncPageLimit                int            `json:"sync_page_limit"`
	SMTPHost                     string         `json:"smtp_host"`
	SMTPPort                     int            `json:"smtp_port"`
	SMTPUser                     string         `json:"smtp_user"`
	SMTPPassword                 string         `json:"smtp_password"`
	SMTPFrom                     string         `json:"smtp_from"`
}

// parseJson loads configuration values from the JSON file named by the
// -c/-config flags into config. If no flag is given, nothing is loaded.
// Unreadable or malformed files panic: a config file that is present but
// broken should stop startup.
func parseJson(config *Config) {

	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	config.EndpointAddrHTTP = c.EndpointAddrHTTP
	config.DatabaseDSN = c.DatabaseDSN
	config.SecretKey = c.SecretKey
	config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	config.RefreshTokenValidityDuration = c.RefreshTokenValidityDuration.Duration
	config.LockoutThreshold = c.LockoutThreshold
	config.LockoutDuration = c.LockoutDuration.Duration
	config.SyncPageLimit = c.SyncPageLimit
	config.SMTPHost = c.SMTPHost
	config.SMTPPort = c.SMTPPort
	config.SMTPUser = c.SMTPUser
	config.SMTPPassword = c.SMTPPassword
	config.SMTPFrom = c.SMTPFrom
}
