// Package common defines shared constants and sentinel errors used across
// client and server layers of GophChat. Callers should use errors.Is to
// match these values.
//
// Errors are grouped by category: every specific error wraps exactly one of
// the category sentinels, so errors.Is(ErrSelfTarget, ErrRouting) holds.
package common

import (
	"errors"
	"fmt"
)

// Categories.
var (
	// ErrProtocol marks a malformed or unknown command; the session continues.
	ErrProtocol = errors.New("protocol error")
	// ErrAuth marks a wrong password.
	ErrAuth = errors.New("authentication error")
	// ErrLoginBlocked marks a username that is temporarily barred from login.
	ErrLoginBlocked = errors.New("login blocked")
	// ErrRouting marks an unknown, offline, self or blocking target.
	ErrRouting = errors.New("routing error")
	// ErrDisconnect marks a peer that closed its stream.
	ErrDisconnect = errors.New("peer disconnected")
	// ErrHandshake marks a private channel that could not be established.
	ErrHandshake = errors.New("handshake error")
)

var (
	// Repository-level errors.
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")

	ErrInvalidCommand   = fmt.Errorf("%w: invalid command", ErrProtocol)
	ErrUnexpectedFrame  = fmt.Errorf("%w: unexpected frame", ErrProtocol)
	ErrFrameTooLarge    = fmt.Errorf("%w: frame too large", ErrProtocol)
	ErrRateLimited      = fmt.Errorf("%w: rate limited", ErrProtocol)
	ErrInvalidPassword  = fmt.Errorf("%w: invalid password", ErrAuth)
	ErrTooManyAttempts  = fmt.Errorf("%w: too many attempts", ErrLoginBlocked)
	ErrSelfTarget       = fmt.Errorf("%w: target is self", ErrRouting)
	ErrUnknownUser      = fmt.Errorf("%w: unknown user", ErrRouting)
	ErrUserOffline      = fmt.Errorf("%w: user is not online", ErrRouting)
	ErrBlocked          = fmt.Errorf("%w: recipient has blocked sender", ErrRouting)
	ErrAlreadyBlocked   = fmt.Errorf("%w: already blocked", ErrRouting)
	ErrNotBlocked       = fmt.Errorf("%w: not blocked", ErrRouting)
	ErrDuplicateSession = fmt.Errorf("%w: user is currently active", ErrRouting)
	ErrChannelExists    = fmt.Errorf("%w: private channel already open", ErrHandshake)
	ErrNoChannel        = fmt.Errorf("%w: no private channel", ErrHandshake)
	ErrDeclined         = fmt.Errorf("%w: peer declined", ErrHandshake)

	// Admin token errors.
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
