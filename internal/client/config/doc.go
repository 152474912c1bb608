// Package config loads runtime configuration for the chat client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//  4. The positional <server_port> argument.
//
// Supported flags
//
//	-a string   chat server host
//	-l string   host for the private-messaging listener
//
// # JSON schema
//
//	{
//	  "server_host": "localhost",
//	  "server_port": 5000,
//	  "listen_host": "localhost"
//	}
//
// Note: This package does not read environment variables directly; use the
// JSON file or flags to configure values.
package config
