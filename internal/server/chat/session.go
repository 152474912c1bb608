package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/gophchat/internal/common"
	"github.com/dmitrijs2005/gophchat/internal/logging"
	"github.com/dmitrijs2005/gophchat/internal/protocol"
	"github.com/dmitrijs2005/gophchat/internal/server/credentials"
	"github.com/dmitrijs2005/gophchat/internal/server/registry"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

type State int

const (
	StateConnecting State = iota
	StateAuthenticating
	StateActive
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateActive:
		return "active"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Session end reasons, as reported to metrics.
const (
	reasonLogout     = "logout"
	reasonDisconnect = "disconnect"
	reasonTimeout    = "timeout"
	reasonShutdown   = "shutdown"
)

// errTerminate ends a session during authentication after its terminal
// notice has been queued.
var errTerminate = errors.New("terminate session")

// ClientSession drives one connection through
// connecting → authenticating → active → terminated.
type ClientSession struct {
	srv    *Server
	conn   *conn
	id     uuid.UUID
	logger logging.Logger

	host         string
	port         int
	listenerPort int

	state    State
	username string
	session  *registry.Session
	limiter  *rate.Limiter
}

func newClientSession(srv *Server, c *conn) *ClientSession {
	host, port := splitAddr(c.nc.RemoteAddr())
	id := uuid.New()

	cs := &ClientSession{
		srv:    srv,
		conn:   c,
		id:     id,
		host:   host,
		port:   port,
		logger: srv.logger.With("session_id", id.String(), "remote", c.nc.RemoteAddr().String()),
		state:  StateConnecting,
	}
	if srv.opts.CommandRate > 0 {
		cs.limiter = rate.NewLimiter(rate.Limit(srv.opts.CommandRate), max(srv.opts.CommandBurst, 1))
	}
	return cs
}

func (cs *ClientSession) run(ctx context.Context) {
	defer cs.conn.Close()

	if err := cs.connect(); err != nil {
		cs.logger.Debug(ctx, "connection dropped before login", "state", cs.state.String(), "error", err)
		cs.state = StateTerminated
		return
	}

	if err := cs.authenticate(ctx); err != nil {
		if isTimeout(err) && ctx.Err() == nil {
			cs.conn.Send(protocol.Notice(msgTimedOut, true))
		}
		cs.logger.Debug(ctx, "authentication ended", "state", cs.state.String(), "error", err)
		cs.state = StateTerminated
		return
	}

	cs.serve(ctx)
}

// connect reads the peer_port announcement.
func (cs *ClientSession) connect() error {
	f, err := cs.conn.read(cs.srv.opts.SessionTimeout)
	if err != nil {
		return err
	}
	if f.Type != protocol.TypePeerPort {
		return fmt.Errorf("%w: expected peer_port, got %s", common.ErrUnexpectedFrame, f.Type)
	}
	cs.listenerPort = f.Port
	cs.state = StateAuthenticating
	return nil
}

func (cs *ClientSession) authenticate(ctx context.Context) error {
	for {
		name, err := cs.askUsername()
		if err != nil {
			return err
		}

		exists, err := cs.srv.store.Exists(ctx, name)
		if err != nil {
			cs.logger.Error(ctx, "credentials lookup failed", "user", name, "error", err)
			cs.conn.Send(protocol.Notice(msgUnavailable, false))
			return errTerminate
		}

		if exists {
			err = cs.login(ctx, name)
		} else {
			err = cs.register(ctx, name)
		}

		switch {
		case err == nil:
			return nil
		case errors.Is(err, common.ErrDuplicateSession), errors.Is(err, common.ErrAlreadyExists):
			cs.reply(msgUserActive)
			continue
		default:
			return err
		}
	}
}

func (cs *ClientSession) askUsername() (string, error) {
	for {
		cs.conn.Send(protocol.Prompt(protocol.FieldUsername, promptUsername))

		name, err := cs.readAnswer()
		if err != nil {
			return "", err
		}
		name = strings.TrimSpace(name)

		if credentials.Validate(name) != nil {
			cs.reply(msgInvalidUsername)
			continue
		}
		if _, err := cs.srv.registry.LookupSession(name); err == nil {
			cs.reply(msgUserActive)
			continue
		}
		return name, nil
	}
}

func (cs *ClientSession) register(ctx context.Context, name string) error {
	for {
		cs.conn.Send(protocol.Prompt(protocol.FieldNewPassword, promptNewPassword))

		password, err := cs.readAnswer()
		if err != nil {
			return err
		}

		err = cs.srv.store.Create(ctx, name, password)
		switch {
		case err == nil:
			cs.logger.Info(ctx, "user registered", "user", name)
			return cs.activate(ctx, name)
		case errors.Is(err, credentials.ErrMalformed):
			cs.reply(msgInvalidNewPass)
		case errors.Is(err, common.ErrAlreadyExists):
			return err
		default:
			cs.logger.Error(ctx, "user registration failed", "user", name, "error", err)
			cs.conn.Send(protocol.Notice(msgUnavailable, false))
			return errTerminate
		}
	}
}

func (cs *ClientSession) login(ctx context.Context, name string) error {
	cs.conn.Send(protocol.Prompt(protocol.FieldPassword, promptPassword))

	for attempts := 0; ; {
		password, err := cs.readAnswer()
		if err != nil {
			return err
		}

		if blocked, remaining := cs.srv.registry.IsLoginBlocked(name); blocked {
			cs.logger.Info(ctx, "login attempt while blocked", "user", name, "remaining", remaining.String())
			cs.conn.Send(protocol.Notice(msgLoginBlocked, false))
			return fmt.Errorf("%w: %s", common.ErrLoginBlocked, name)
		}

		ok, err := cs.srv.store.Verify(ctx, name, password)
		if err != nil {
			cs.logger.Error(ctx, "password verification failed", "user", name, "error", err)
			cs.conn.Send(protocol.Notice(msgUnavailable, false))
			return errTerminate
		}
		if ok {
			return cs.activate(ctx, name)
		}

		attempts++
		cs.srv.metrics.LoginFailed()

		if attempts >= common.MaxLoginAttempts {
			cs.srv.registry.RecordLoginFailure(name)
			cs.srv.metrics.LoginBlocked()
			cs.logger.Warn(ctx, "login blocked after failed attempts", "user", name, "attempts", attempts)
			cs.conn.Send(protocol.Notice(msgAccountBlocked, false))
			return common.ErrTooManyAttempts
		}

		cs.reply(msgInvalidPassword)
		cs.conn.Send(protocol.Prompt(protocol.FieldPassword, promptPassword))
	}
}

// activate registers the session, delivers the greeting and pending
// messages, and announces the login.
func (cs *ClientSession) activate(ctx context.Context, name string) error {
	s := registry.NewSession(name, cs.host, cs.port, cs.listenerPort, cs.conn)
	s.ID = cs.id

	if err := cs.srv.registry.Login(s, protocol.Welcome(name, msgWelcome)); err != nil {
		return err
	}

	cs.username = name
	cs.session = s
	cs.state = StateActive
	cs.logger = cs.logger.With("user", name)

	cs.srv.registry.Broadcast(name, protocol.Text(fmt.Sprintf(fmtLoggedIn, name)), registry.SkipBlocked)
	cs.srv.metrics.SessionStarted()
	cs.logger.Info(ctx, "user logged in")
	return nil
}

// readAnswer returns the text of the next prompt answer, skipping acks.
func (cs *ClientSession) readAnswer() (string, error) {
	for {
		f, err := cs.conn.read(cs.srv.opts.SessionTimeout)
		if err != nil {
			return "", err
		}
		switch f.Type {
		case protocol.TypeCommand, protocol.TypeText:
			return f.Text, nil
		case protocol.TypeAck:
			continue
		case protocol.TypeLogout:
			return "", io.EOF
		default:
			return "", fmt.Errorf("%w: %s while authenticating", common.ErrUnexpectedFrame, f.Type)
		}
	}
}

// serve is the ACTIVE read loop.
func (cs *ClientSession) serve(ctx context.Context) {
	for {
		f, err := cs.conn.read(cs.srv.opts.SessionTimeout)
		if err != nil {
			switch {
			case isTimeout(err) && ctx.Err() == nil:
				cs.timeout(ctx)
			case errors.Is(err, common.ErrUnexpectedFrame):
				cs.reply(msgInvalidCommand)
				continue
			case ctx.Err() != nil:
				cs.end(ctx, reasonShutdown)
			default:
				if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
					cs.logger.Debug(ctx, "read failed", "error", err)
				}
				cs.end(ctx, reasonDisconnect)
			}
			return
		}

		switch f.Type {
		case protocol.TypeAck:
		case protocol.TypeLogout:
			cs.end(ctx, reasonLogout)
			return
		case protocol.TypeCommand, protocol.TypeText:
			if strings.TrimSpace(f.Text) == "logout" {
				cs.end(ctx, reasonLogout)
				return
			}
			if cs.limiter != nil && !cs.limiter.Allow() {
				cs.reply(msgRateLimited)
				cs.srv.metrics.CommandHandled("any", outcome(common.ErrRateLimited))
				continue
			}
			cs.dispatch(ctx, f.Text)
		default:
			cs.reply(msgInvalidCommand)
		}
	}
}

func (cs *ClientSession) timeout(ctx context.Context) {
	cs.logger.Info(ctx, "session timed out")
	cs.conn.Send(protocol.Notice(msgTimedOut, true))
	cs.end(ctx, reasonTimeout)
}

// end deregisters the session and tells the others. The socket is closed by
// run once end returns.
func (cs *ClientSession) end(ctx context.Context, reason string) {
	if cs.state == StateTerminated {
		return
	}
	cs.state = StateTerminated

	if cs.srv.registry.Logout(cs.session) {
		cs.srv.registry.Broadcast(cs.username, protocol.Text(fmt.Sprintf(fmtLoggedOut, cs.username)), registry.SkipBlocked)
	}
	cs.session.MarkDead()
	cs.srv.metrics.SessionEnded(reason)
	cs.logger.Info(ctx, "user logged out", "reason", reason)
}

func (cs *ClientSession) reply(text string) {
	cs.conn.Send(protocol.Text(text))
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func splitAddr(a net.Addr) (string, int) {
	if tcp, ok := a.(*net.TCPAddr); ok {
		return tcp.IP.String(), tcp.Port
	}
	host, port, err := net.SplitHostPort(a.String())
	if err != nil {
		return a.String(), 0
	}
	p, _ := strconv.Atoi(port)
	return host, p
}
