package config

import "errors"

// ErrUsage is returned when the arguments or the JSON file are missing or invalid.
var ErrUsage = errors.New("usage error")

// Usage is the command-line synopsis printed on ErrUsage.
const Usage = "usage: chatclient [flags] <server_port>"

// Config holds runtime settings for the chat client.
//
// Fields:
//   - ServerHost / ServerPort: where the chat server listens.
//   - ListenHost: host the private-messaging listener binds to; the port is
//     always ephemeral and announced to the server after connecting.
type Config struct {
	ServerHost string
	ServerPort int
	ListenHost string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerHost = "localhost"
	c.ServerPort = 0
	c.ListenHost = "localhost"
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present), command-line flags (if present) and the positional
// server port. Later sources take precedence over earlier ones.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJson(cfg); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg); err != nil {
		return nil, err
	}
	if err := parsePositional(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
