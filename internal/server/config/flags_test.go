package config

import (
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	tests := []struct {
		expected *Config
		name     string
		args     []string
		wantErr  bool
	}{
		{name: "all flags", args: []string{"cmd",
			"-l", "0.0.0.0", "-m", "postgres", "-f", "users.txt", "-d", "db",
			"-a", ":50051", "-s", "secret", "-t", "5", "-p", ":9090",
			"-r", "2.5", "-b", "10", "-issue-admin-token", "5000", "10", "60",
		},
			expected: &Config{
				Host:               "0.0.0.0",
				CredentialsBackend: "postgres",
				CredentialsFile:    "users.txt",
				DatabaseDSN:        "db",
				AdminAddr:          ":50051",
				SecretKey:          "secret",
				AdminTokenValidity: 5 * time.Minute,
				MetricsAddr:        ":9090",
				CommandRate:        2.5,
				CommandBurst:       10,
				IssueAdminToken:    true,
			}},
		{name: "no flags keeps values", args: []string{"cmd", "5000", "10", "60"},
			expected: &Config{}},
		{name: "bad number", args: []string{"cmd", "-b", "many"}, wantErr: true},
		{name: "bad rate", args: []string{"cmd", "-r", "fast", "5000", "10", "60"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Args = tt.args

			config := &Config{}

			err := parseFlags(config)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrUsage)
				return
			}
			require.NoError(t, err)
			assert.Empty(t, cmp.Diff(config, tt.expected))
		})
	}
}

func TestParsePositional(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	tests := []struct {
		name    string
		args    []string
		initial Config
		want    Config
		wantErr bool
	}{
		{
			name: "three values",
			args: []string{"cmd", "5000", "30", "90"},
			want: Config{Port: 5000, BlockDuration: 30 * time.Second, SessionTimeout: 90 * time.Second},
		},
		{
			name: "flag values are not positional",
			args: []string{"cmd", "-c", "cfg.json", "-m", "memory", "6000", "0", "1"},
			want: Config{Port: 6000, BlockDuration: 0, SessionTimeout: time.Second},
		},
		{
			name:    "port from json",
			args:    []string{"cmd"},
			initial: Config{Port: 7000},
			want:    Config{Port: 7000},
		},
		{name: "no port", args: []string{"cmd"}, wantErr: true},
		{name: "too few", args: []string{"cmd", "5000", "30"}, wantErr: true},
		{name: "port not a number", args: []string{"cmd", "http", "30", "90"}, wantErr: true},
		{name: "port out of range", args: []string{"cmd", "70000", "30", "90"}, wantErr: true},
		{name: "block not a number", args: []string{"cmd", "5000", "x", "90"}, wantErr: true},
		{name: "zero timeout", args: []string{"cmd", "5000", "30", "0"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Args = tt.args
			c := tt.initial

			err := parsePositional(&c)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrUsage)
				return
			}
			require.NoError(t, err)
			assert.Empty(t, cmp.Diff(tt.want, c))
		})
	}
}
