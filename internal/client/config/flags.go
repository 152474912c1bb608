package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/dmitrijs2005/gophchat/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   chat server host (default from Config)
//	-l string   private-messaging listener host (default from Config)
//
// A malformed flag is reported as ErrUsage.
func parseFlags(cfg *Config) error {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerHost, "a", cfg.ServerHost, "chat server host")
	fs.StringVar(&cfg.ListenHost, "l", cfg.ListenHost, "private messaging listener host")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	return nil
}

// parsePositional reads <server_port>. It may be omitted when the JSON file
// already supplied one.
func parsePositional(cfg *Config) error {
	pos := flagx.Positional(os.Args[1:], []string{"-a", "-l", "-c", "-config"})

	switch {
	case len(pos) == 0 && cfg.ServerPort > 0:
		return nil
	case len(pos) != 1:
		return fmt.Errorf("%w: expected 1 argument, got %d", ErrUsage, len(pos))
	}

	port, err := strconv.Atoi(pos[0])
	if err != nil || port <= 0 || port > 65535 {
		return fmt.Errorf("%w: invalid port %q", ErrUsage, pos[0])
	}
	cfg.ServerPort = port
	return nil
}
