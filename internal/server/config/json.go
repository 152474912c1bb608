package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/gophchat/internal/flagx"
	"github.com/dmitrijs2005/gophchat/internal/timex"
)

// JsonConfig is the on-disk shape of the server configuration. Durations
// accept both "30s"-style strings and integer nanoseconds.
type JsonConfig struct {
	Host               string         `json:"host"`
	Port               int            `json:"port"`
	BlockDuration      timex.Duration `json:"block_duration"`
	SessionTimeout     timex.Duration `json:"session_timeout"`
	CredentialsBackend string         `json:"credentials_backend"`
	CredentialsFile    string         `json:"credentials_file"`
	DatabaseDSN        string         `json:"database_dsn"`
	AdminAddr          string         `json:"admin_addr"`
	SecretKey          string         `json:"secret_key"`
	AdminTokenValidity timex.Duration `json:"admin_token_validity"`
	MetricsAddr        string         `json:"metrics_addr"`
	CommandRate        float64        `json:"command_rate"`
	CommandBurst       int            `json:"command_burst"`
}

// parseJson loads configuration values from the file named by -c/-config
// into config. Keys absent from the file keep their current values.
// An unreadable file or invalid JSON is reported as ErrUsage.
func parseJson(config *Config) error {
	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return nil
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		return fmt.Errorf("%w: read config: %v", ErrUsage, err)
	}

	c := &JsonConfig{
		Host:               config.Host,
		Port:               config.Port,
		BlockDuration:      timex.Duration{Duration: config.BlockDuration},
		SessionTimeout:     timex.Duration{Duration: config.SessionTimeout},
		CredentialsBackend: config.CredentialsBackend,
		CredentialsFile:    config.CredentialsFile,
		DatabaseDSN:        config.DatabaseDSN,
		AdminAddr:          config.AdminAddr,
		SecretKey:          config.SecretKey,
		AdminTokenValidity: timex.Duration{Duration: config.AdminTokenValidity},
		MetricsAddr:        config.MetricsAddr,
		CommandRate:        config.CommandRate,
		CommandBurst:       config.CommandBurst,
	}

	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("%w: parse config %s: %v", ErrUsage, jsonConfigFile, err)
	}

	config.Host = c.Host
	config.Port = c.Port
	config.BlockDuration = c.BlockDuration.Duration
	config.SessionTimeout = c.SessionTimeout.Duration
	config.CredentialsBackend = c.CredentialsBackend
	config.CredentialsFile = c.CredentialsFile
	config.DatabaseDSN = c.DatabaseDSN
	config.AdminAddr = c.AdminAddr
	config.SecretKey = c.SecretKey
	config.AdminTokenValidity = c.AdminTokenValidity.Duration
	config.MetricsAddr = c.MetricsAddr
	config.CommandRate = c.CommandRate
	config.CommandBurst = c.CommandBurst
	return nil
}
