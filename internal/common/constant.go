// Package common contains shared constants and sentinel errors used across
// GophChat components.
package common

// AccessTokenHeaderName is the gRPC metadata key that carries the admin
// access token.
const AccessTokenHeaderName = "access_token"

// MaxLoginAttempts is the number of consecutive wrong passwords after which
// a username is blocked from logging in.
const MaxLoginAttempts = 3
