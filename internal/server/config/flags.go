package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/dmitrijs2005/gophchat/internal/flagx"
)

var (
	serverFlags = []string{"-l", "-m", "-f", "-d", "-a", "-s", "-t", "-p", "-r", "-b"}
	// valueFlags are all flags that consume the following argument.
	valueFlags = []string{"-l", "-m", "-f", "-d", "-a", "-s", "-t", "-p", "-r", "-b", "-c", "-config"}
)

const issueTokenFlag = "-issue-admin-token"

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-l string   chat listener host (e.g., "0.0.0.0")
//	-m string   credentials backend: memory, file, postgres, sqlite
//	-f string   credentials file (file backend)
//	-d string   database DSN (postgres and sqlite backends)
//	-a string   admin gRPC bind address, empty disables
//	-s string   JWT HMAC secret key
//	-t int      admin token validity, minutes
//	-p string   metrics/health HTTP bind address, empty disables
//	-r float    commands per second per session, 0 disables limiting
//	-b int      command burst per session
//	-issue-admin-token   print a signed admin token and exit
//
// A malformed flag value is reported as ErrUsage.
func parseFlags(config *Config) error {
	args := flagx.FilterArgs(os.Args[1:], serverFlags, issueTokenFlag)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.Host, "l", config.Host, "chat listener host")
	fs.StringVar(&config.CredentialsBackend, "m", config.CredentialsBackend, "credentials backend (memory, file, postgres, sqlite)")
	fs.StringVar(&config.CredentialsFile, "f", config.CredentialsFile, "credentials file")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.AdminAddr, "a", config.AdminAddr, "admin gRPC address")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	adminTokenValidity := fs.Int("t", int(config.AdminTokenValidity.Minutes()), "admin_token_validity (in minutes)")

	fs.StringVar(&config.MetricsAddr, "p", config.MetricsAddr, "metrics address")
	fs.Float64Var(&config.CommandRate, "r", config.CommandRate, "commands per second per session")
	fs.IntVar(&config.CommandBurst, "b", config.CommandBurst, "command burst per session")
	fs.BoolVar(&config.IssueAdminToken, issueTokenFlag[1:], config.IssueAdminToken, "print an admin token and exit")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}

	config.AdminTokenValidity = time.Duration(*adminTokenValidity) * time.Minute
	return nil
}

// parsePositional reads <port> <block_duration_seconds> <timeout_seconds>.
// With no positional arguments the values from defaults/JSON are kept as
// long as they describe a usable listener.
func parsePositional(config *Config) error {
	pos := flagx.Positional(os.Args[1:], valueFlags)

	switch len(pos) {
	case 0:
		if config.Port <= 0 && !config.IssueAdminToken {
			return fmt.Errorf("%w: port is required", ErrUsage)
		}
		return nil
	case 3:
	default:
		return fmt.Errorf("%w: expected 3 arguments, got %d", ErrUsage, len(pos))
	}

	port, err := strconv.Atoi(pos[0])
	if err != nil || port <= 0 || port > 65535 {
		return fmt.Errorf("%w: invalid port %q", ErrUsage, pos[0])
	}

	block, err := strconv.Atoi(pos[1])
	if err != nil || block < 0 {
		return fmt.Errorf("%w: invalid block duration %q", ErrUsage, pos[1])
	}

	timeout, err := strconv.Atoi(pos[2])
	if err != nil || timeout <= 0 {
		return fmt.Errorf("%w: invalid timeout %q", ErrUsage, pos[2])
	}

	config.Port = port
	config.BlockDuration = time.Duration(block) * time.Second
	config.SessionTimeout = time.Duration(timeout) * time.Second
	return nil
}
