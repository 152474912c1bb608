package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/gophchat/internal/flagx"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling.
type JsonConfig struct {
	ServerHost string `json:"server_host"`
	ServerPort int    `json:"server_port"`
	ListenHost string `json:"listen_host"`
}

// parseJson overlays Config with values loaded from the JSON file named by
// -c or -config. Keys missing from the file keep their current values.
// Read or unmarshal failures are reported as ErrUsage.
func parseJson(cfg *Config) error {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return nil
	}

	jc := JsonConfig{
		ServerHost: cfg.ServerHost,
		ServerPort: cfg.ServerPort,
		ListenHost: cfg.ListenHost,
	}

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		return fmt.Errorf("%w: read config: %v", ErrUsage, err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("%w: parse config %s: %v", ErrUsage, jsonConfigFile, err)
	}

	cfg.ServerHost = jc.ServerHost
	cfg.ServerPort = jc.ServerPort
	cfg.ListenHost = jc.ListenHost
	return nil
}
