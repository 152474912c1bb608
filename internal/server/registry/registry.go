// Package registry holds the chat server's shared state: active sessions,
// login/logout history, block relations, pending offline messages and
// login-failure records. Every operation runs under one mutex, and the
// composite operations (Login, Route, Broadcast) let callers act on that
// state without check-then-act races.
package registry

import (
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophchat/internal/common"
	"github.com/dmitrijs2005/gophchat/internal/protocol"
)

type ActivityKind int

const (
	ActivityLogin ActivityKind = iota
	ActivityLogout
)

// Activity is the login history of one username. LastLogout is zero while
// the user is active.
type Activity struct {
	LastLogin  time.Time
	LastLogout time.Time
}

// Audience selects the recipients of a Broadcast.
type Audience int

const (
	// SkipBlockers leaves out recipients who have blocked the sender.
	SkipBlockers Audience = iota
	// SkipBlocked leaves out recipients the sender has blocked. Login and
	// logout notices use it.
	SkipBlocked
)

// Stats is a snapshot of registry sizes.
type Stats struct {
	ActiveSessions  int
	KnownUsers      int
	PendingMessages int
	LoginBlocked    int
}

type Option func(*Registry)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

type Registry struct {
	mu sync.Mutex

	now           func() time.Time
	blockDuration time.Duration

	sessions map[string]*Session
	activity map[string]*Activity
	// blockers maps a target to the set of users who have blocked it.
	blockers map[string]map[string]struct{}
	pending  map[string][]string
	failures map[string]time.Time
}

// New returns an empty registry. Usernames that fail to log in three times
// stay barred for blockDuration.
func New(blockDuration time.Duration, opts ...Option) *Registry {
	r := &Registry{
		now:           time.Now,
		blockDuration: blockDuration,
		sessions:      make(map[string]*Session),
		activity:      make(map[string]*Activity),
		blockers:      make(map[string]map[string]struct{}),
		pending:       make(map[string][]string),
		failures:      make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) RegisterSession(s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.registerLocked(s)
}

func (r *Registry) registerLocked(s *Session) error {
	if _, ok := r.sessions[s.Username]; ok {
		return common.ErrDuplicateSession
	}
	if s.StartedAt.IsZero() {
		s.StartedAt = r.now()
	}
	r.sessions[s.Username] = s
	return nil
}

func (r *Registry) RemoveSession(username string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, username)
}

func (r *Registry) LookupSession(username string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[username]
	if !ok {
		return nil, common.ErrNotFound
	}
	return s, nil
}

// ListActive returns the active usernames other than excluding, leaving out
// everyone who has blocked excluding. The result is sorted.
func (r *Registry) ListActive(excluding string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, 0, len(r.sessions))
	for name := range r.sessions {
		if name == excluding || r.hasBlockedLocked(name, excluding) {
			continue
		}
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ListSince returns the usernames that are active now or whose last login or
// logout happened within window, with the same exclusions as ListActive.
func (r *Registry) ListSince(window time.Duration, excluding string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-window)
	out := make([]string, 0, len(r.activity))
	for name, a := range r.activity {
		if name == excluding || r.hasBlockedLocked(name, excluding) {
			continue
		}
		_, active := r.sessions[name]
		recent := !a.LastLogin.Before(cutoff) || (!a.LastLogout.IsZero() && !a.LastLogout.Before(cutoff))
		if active || a.LastLogout.IsZero() || recent {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func (r *Registry) RecordActivity(username string, at time.Time, kind ActivityKind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recordActivityLocked(username, at, kind)
}

func (r *Registry) recordActivityLocked(username string, at time.Time, kind ActivityKind) {
	a, ok := r.activity[username]
	if !ok {
		a = &Activity{}
		r.activity[username] = a
	}
	switch kind {
	case ActivityLogin:
		a.LastLogin = at
		a.LastLogout = time.Time{}
	case ActivityLogout:
		a.LastLogout = at
	}
}

// LookupActivity returns a copy of the history of username.
func (r *Registry) LookupActivity(username string) (Activity, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.activity[username]
	if !ok {
		return Activity{}, false
	}
	return *a, true
}

func (r *Registry) Block(blocker, target string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.hasBlockedLocked(blocker, target) {
		return common.ErrAlreadyBlocked
	}
	set, ok := r.blockers[target]
	if !ok {
		set = make(map[string]struct{})
		r.blockers[target] = set
	}
	set[blocker] = struct{}{}
	return nil
}

func (r *Registry) Unblock(blocker, target string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.hasBlockedLocked(blocker, target) {
		return common.ErrNotBlocked
	}
	delete(r.blockers[target], blocker)
	if len(r.blockers[target]) == 0 {
		delete(r.blockers, target)
	}
	return nil
}

// HasBlocked reports whether blocker has blocked target.
func (r *Registry) HasBlocked(blocker, target string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hasBlockedLocked(blocker, target)
}

func (r *Registry) hasBlockedLocked(blocker, target string) bool {
	_, ok := r.blockers[target][blocker]
	return ok
}

func (r *Registry) EnqueuePending(dest, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending[dest] = append(r.pending[dest], text)
}

// DrainPending returns the queued messages for dest in arrival order and
// clears the queue.
func (r *Registry) DrainPending(dest string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.drainLocked(dest)
}

func (r *Registry) drainLocked(dest string) []string {
	msgs := r.pending[dest]
	delete(r.pending, dest)
	return msgs
}

// RecordLoginFailure bars username from logging in for the block duration.
func (r *Registry) RecordLoginFailure(username string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[username] = r.now()
}

// IsLoginBlocked reports whether username is barred and for how much longer.
// An expired record is cleared.
func (r *Registry) IsLoginBlocked(username string) (bool, time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	at, ok := r.failures[username]
	if !ok {
		return false, 0
	}
	remaining := r.blockDuration - r.now().Sub(at)
	if remaining <= 0 {
		delete(r.failures, username)
		return false, 0
	}
	return true, remaining
}

func (r *Registry) ClearLoginFailure(username string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.failures, username)
}

// Login registers s, records the login, clears any stale failure record and
// queues greeting followed by the user's pending messages on s, in that
// order, before any other session can reach s.
func (r *Registry) Login(s *Session, greeting ...protocol.Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.registerLocked(s); err != nil {
		return err
	}
	r.recordActivityLocked(s.Username, s.StartedAt, ActivityLogin)
	delete(r.failures, s.Username)

	for _, f := range greeting {
		s.Send(f)
	}
	for _, msg := range r.drainLocked(s.Username) {
		s.Send(protocol.Text(msg))
	}
	return nil
}

// Logout removes s and records the logout. It is a no-op when s is no
// longer the registered session for its username.
func (r *Registry) Logout(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.sessions[s.Username]; !ok || cur != s {
		return false
	}
	delete(r.sessions, s.Username)
	r.recordActivityLocked(s.Username, r.now(), ActivityLogout)
	return true
}

// Route delivers text from one user to another: immediately when the
// recipient is online, otherwise as a pending message. It fails with
// common.ErrBlocked when the recipient has blocked the sender.
func (r *Registry) Route(from, to, text string) (queued bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.hasBlockedLocked(to, from) {
		return false, common.ErrBlocked
	}
	if s, ok := r.sessions[to]; ok && s.Alive() {
		s.Send(protocol.Text(text))
		return false, nil
	}
	r.pending[to] = append(r.pending[to], text)
	return true, nil
}

// Reachable returns the session of to if from may contact it: to must be
// online (common.ErrUserOffline) and must not have blocked from
// (common.ErrBlocked).
func (r *Registry) Reachable(from, to string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[to]
	if !ok || !s.Alive() {
		return nil, common.ErrUserOffline
	}
	if r.hasBlockedLocked(to, from) {
		return nil, common.ErrBlocked
	}
	return s, nil
}

// Broadcast sends f to every active session except from's, subject to a.
// It returns how many sessions were left out because of a block.
func (r *Registry) Broadcast(from string, f protocol.Frame, a Audience) (skipped int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for name, s := range r.sessions {
		if name == from {
			continue
		}
		var blocked bool
		switch a {
		case SkipBlockers:
			blocked = r.hasBlockedLocked(name, from)
		case SkipBlocked:
			blocked = r.hasBlockedLocked(from, name)
		}
		if blocked {
			skipped++
			continue
		}
		s.Send(f)
	}
	return skipped
}

// Snapshot returns the active sessions sorted by username.
func (r *Registry) Snapshot() []Info {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Info, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s.info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out
}

func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := Stats{
		ActiveSessions: len(r.sessions),
		KnownUsers:     len(r.activity),
		LoginBlocked:   len(r.failures),
	}
	for _, msgs := range r.pending {
		st.PendingMessages += len(msgs)
	}
	return st
}
