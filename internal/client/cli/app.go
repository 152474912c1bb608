package cli

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophchat/internal/client/config"
	"github.com/dmitrijs2005/gophchat/internal/logging"
	"github.com/dmitrijs2005/gophchat/internal/protocol"
	"golang.org/x/term"
)

// User-facing texts printed by the client itself.
const (
	fmtConfirm          = "%s would like to private message, enter y or n: "
	fmtAccepts          = "%s accepts private messaging"
	fmtDeclines         = "%s declines private messaging"
	fmtClosed           = "Private messaging with %s closed"
	fmtClosedTimeout    = "Private messaging with %s closed due to inactivity"
	fmtAlreadyActive    = "Private messaging with %s already active"
	fmtNotEnabled       = "Error. Private messaging to %s not enabled"
	fmtAwaiting         = "Error. Private messaging with %s awaiting confirmation"
	fmtNoSession        = "Error. Cannot stop an inexist private session with %s"
	fmtPrivatePayload   = "%s(private): %s"
	msgServerClosed     = "Connection to the server closed"
	msgPrivateUsage     = "Error. Usage: private <user> <message>"
	msgStopPrivateUsage = "Error. Usage: stopprivate <user>"
)

// peerDialTimeout bounds the connect to another client's private listener.
const peerDialTimeout = 5 * time.Second

// peerLink is the outbound half of a private channel.
type peerLink struct {
	name string
	conn net.Conn
	enc  *protocol.Encoder
}

func (l *peerLink) send(f protocol.Frame) error { return l.enc.Encode(f) }

type App struct {
	config *config.Config
	logger logging.Logger
	in     io.Reader
	out    *printer

	// readSecret reads a password without echo; nil when input is not a
	// terminal.
	readSecret func() (string, error)

	dialTimeout time.Duration

	server   net.Conn
	toServer *protocol.Encoder
	listener net.Listener

	mu        sync.Mutex
	username  string
	send      map[string]*peerLink
	recv      map[string]net.Conn
	confirmed map[string]bool
	// pending holds peers whose private request awaits a y/n answer, oldest
	// first. asking is the one whose prompt is on screen.
	pending []string
	asking  string

	prompts   chan string
	activated chan struct{}
	activate  sync.Once

	done     chan struct{}
	doneOnce sync.Once
}

func NewApp(c *config.Config, l logging.Logger, in io.Reader, out io.Writer) *App {
	a := &App{
		config:      c,
		logger:      l.With("module", "cli"),
		in:          in,
		out:         newPrinter(out),
		dialTimeout: peerDialTimeout,
		send:        make(map[string]*peerLink),
		recv:        make(map[string]net.Conn),
		confirmed:   make(map[string]bool),
		prompts:     make(chan string, 8),
		activated:   make(chan struct{}),
		done:        make(chan struct{}),
	}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fd := int(f.Fd())
		a.readSecret = func() (string, error) {
			pw, err := readPassword(fd)
			a.out.Println()
			return string(pw), err
		}
	}
	return a
}

// Run connects to the server and blocks until the session ends or ctx is
// cancelled.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", net.JoinHostPort(a.config.ListenHost, "0"))
	if err != nil {
		return fmt.Errorf("private listener: %w", err)
	}
	a.listener = ln

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(a.config.ServerHost, strconv.Itoa(a.config.ServerPort)))
	if err != nil {
		_ = ln.Close()
		return fmt.Errorf("connect to server: %w", err)
	}
	a.server = conn
	a.toServer = protocol.NewEncoder(conn)

	if err := a.toServer.Encode(protocol.PeerPort(ln.Addr().(*net.TCPAddr).Port)); err != nil {
		a.shutdown()
		return fmt.Errorf("announce private port: %w", err)
	}

	a.logger.Debug(ctx, "connected", "server", conn.RemoteAddr().String(), "listener", ln.Addr().String())

	go a.receiveServer(ctx)
	go a.acceptPeers(ctx)
	go a.readInput(ctx)

	select {
	case <-a.done:
	case <-ctx.Done():
	}
	a.shutdown()
	return nil
}

// finish ends Run.
func (a *App) finish() {
	a.doneOnce.Do(func() { close(a.done) })
}

func (a *App) finished() bool {
	select {
	case <-a.done:
		return true
	default:
		return false
	}
}

func (a *App) shutdown() {
	a.finish()

	_ = a.listener.Close()
	_ = a.server.Close()

	a.mu.Lock()
	defer a.mu.Unlock()
	for name, l := range a.send {
		_ = l.conn.Close()
		delete(a.send, name)
	}
	for name, c := range a.recv {
		_ = c.Close()
		delete(a.recv, name)
	}
}

func (a *App) self() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.username
}

func (a *App) isActive() bool {
	select {
	case <-a.activated:
		return true
	default:
		return false
	}
}

func (a *App) markActive(username string) {
	a.mu.Lock()
	a.username = username
	a.mu.Unlock()
	a.activate.Do(func() { close(a.activated) })
}

// closeAllPeers says goodbye on every open channel.
func (a *App) closeAllPeers(timedOut bool) {
	me := a.self()

	a.mu.Lock()
	links := make([]*peerLink, 0, len(a.send))
	for _, l := range a.send {
		links = append(links, l)
	}
	a.mu.Unlock()

	for _, l := range links {
		_ = l.send(protocol.Logout(me, l.name, false, timedOut))
	}
}

// dropPeer removes both halves of the channel with name and reports the
// closure. It reports nothing when the channel was already gone.
func (a *App) dropPeer(name string, timedOut bool) {
	a.mu.Lock()
	l, hasSend := a.send[name]
	c, hasRecv := a.recv[name]
	delete(a.send, name)
	delete(a.recv, name)
	delete(a.confirmed, name)
	a.pending = slices.DeleteFunc(a.pending, func(p string) bool { return p == name })
	if a.asking == name {
		a.asking = ""
	}
	a.mu.Unlock()

	if hasSend {
		_ = l.conn.Close()
	}
	if hasRecv {
		_ = c.Close()
	}
	if !hasSend && !hasRecv {
		return
	}

	if timedOut {
		a.out.Println(fmt.Sprintf(fmtClosedTimeout, name))
	} else {
		a.out.Println(fmt.Sprintf(fmtClosed, name))
	}
	a.askNext()
}

// askNext shows the confirmation prompt for the oldest unanswered request
// unless one is already on screen.
func (a *App) askNext() {
	a.mu.Lock()
	if a.asking != "" || len(a.pending) == 0 {
		a.mu.Unlock()
		return
	}
	peer := a.pending[0]
	a.asking = peer
	a.mu.Unlock()

	a.out.Printf(fmtConfirm, peer)
}
