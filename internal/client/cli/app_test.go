package cli

import (
	"bytes"
	"context"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophchat/internal/client/config"
	"github.com/dmitrijs2005/gophchat/internal/logging"
	"github.com/dmitrijs2005/gophchat/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type fakeServer struct {
	ln net.Listener
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })
	return &fakeServer{ln: ln}
}

func (s *fakeServer) port() int { return s.ln.Addr().(*net.TCPAddr).Port }

type serverConn struct {
	t        *testing.T
	conn     net.Conn
	enc      *protocol.Encoder
	dec      *protocol.Decoder
	peerPort int
}

// accept takes the next client and reads its private port announcement.
func (s *fakeServer) accept(t *testing.T) *serverConn {
	t.Helper()
	conn, err := s.ln.Accept()
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	sc := &serverConn{t: t, conn: conn, enc: protocol.NewEncoder(conn), dec: protocol.NewDecoder(conn)}
	f := sc.next()
	require.Equal(t, protocol.TypePeerPort, f.Type)
	sc.peerPort = f.Port
	return sc
}

func (c *serverConn) next() protocol.Frame {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	f, err := c.dec.Decode()
	require.NoError(c.t, err)
	return f
}

func (c *serverConn) send(f protocol.Frame) {
	c.t.Helper()
	require.NoError(c.t, c.enc.Encode(f))
}

func (c *serverConn) expectCommand(line string) {
	c.t.Helper()
	f := c.next()
	require.Equal(c.t, protocol.TypeCommand, f.Type, "got %+v", f)
	require.Equal(c.t, line, f.Text)
}

func (c *serverConn) expectAck() {
	c.t.Helper()
	f := c.next()
	require.Equal(c.t, protocol.TypeAck, f.Type, "got %+v", f)
}

type testClient struct {
	t    *testing.T
	app  *App
	in   *io.PipeWriter
	out  *syncBuffer
	done chan error
}

func startClient(t *testing.T, srv *fakeServer, configure ...func(*App)) (*testClient, *serverConn) {
	t.Helper()
	c := runClient(t, srv.port(), configure...)
	return c, srv.accept(t)
}

// runClient starts an App against the chat server on port.
func runClient(t *testing.T, port int, configure ...func(*App)) *testClient {
	t.Helper()

	cfg := &config.Config{ServerHost: "127.0.0.1", ServerPort: port, ListenHost: "127.0.0.1"}
	pr, pw := io.Pipe()
	out := &syncBuffer{}

	app := NewApp(cfg, logging.Nop(), pr, out)
	for _, fn := range configure {
		fn(app)
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &testClient{t: t, app: app, in: pw, out: out, done: make(chan error, 1)}
	go func() { c.done <- app.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		_ = pw.Close()
		select {
		case <-c.done:
		case <-time.After(3 * time.Second):
			t.Error("client did not stop")
		}
	})

	return c
}

func (c *testClient) input(line string) {
	c.t.Helper()
	_, err := io.WriteString(c.in, line+"\n")
	require.NoError(c.t, err)
}

func (c *testClient) waitOutput(want string) {
	c.t.Helper()
	require.Eventually(c.t, func() bool {
		return strings.Contains(c.out.String(), want)
	}, 3*time.Second, 10*time.Millisecond, "output %q does not contain %q", c.out.String(), want)
}

func (c *testClient) waitDone() {
	c.t.Helper()
	select {
	case err := <-c.done:
		assert.NoError(c.t, err)
		c.done <- err
	case <-time.After(3 * time.Second):
		c.t.Fatal("client did not stop")
	}
}

func login(c *testClient, sc *serverConn, name string) {
	c.t.Helper()
	sc.send(protocol.Welcome(name, "Welcome "+name))
	c.waitOutput("Welcome " + name)
}

func TestRun_ConnectFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	cfg := &config.Config{ServerHost: "127.0.0.1", ServerPort: port, ListenHost: "127.0.0.1"}
	app := NewApp(cfg, logging.Nop(), strings.NewReader(""), io.Discard)

	assert.Error(t, app.Run(context.Background()))
}

func TestLoginPromptsAndCommands(t *testing.T) {
	srv := newFakeServer(t)
	c, sc := startClient(t, srv)
	assert.Greater(t, sc.peerPort, 0)

	sc.send(protocol.Prompt(protocol.FieldUsername, "Username: "))
	c.waitOutput("Username: ")
	c.input("alice")
	sc.expectCommand("alice")

	sc.send(protocol.Prompt(protocol.FieldPassword, "Password: "))
	c.input("secret")
	sc.expectCommand("secret")

	login(c, sc, "alice")
	assert.Equal(t, "alice", c.app.self())

	c.input("message bob  hi there")
	sc.expectCommand("message bob  hi there")

	sc.send(protocol.Text("bob: hello"))
	c.waitOutput("bob: hello")

	sc.send(protocol.Notice("You have been timed out", true))
	c.waitOutput("You have been timed out")
	c.waitDone()
}

func TestPasswordReadWithoutEcho(t *testing.T) {
	srv := newFakeServer(t)
	c, sc := startClient(t, srv, func(a *App) {
		a.readSecret = func() (string, error) { return "hidden", nil }
	})

	sc.send(protocol.Prompt(protocol.FieldUsername, "Username: "))
	c.input("alice")
	sc.expectCommand("alice")

	sc.send(protocol.Prompt(protocol.FieldNewPassword, "New password: "))
	sc.expectCommand("hidden")
}

func TestLogout(t *testing.T) {
	srv := newFakeServer(t)
	c, sc := startClient(t, srv)
	login(c, sc, "alice")

	c.input("logout")
	f := sc.next()
	assert.Equal(t, protocol.TypeLogout, f.Type)
	assert.Equal(t, "alice", f.Actor)
	c.waitDone()
}

func TestServerDisconnectEndsClient(t *testing.T) {
	srv := newFakeServer(t)
	c, sc := startClient(t, srv)
	login(c, sc, "alice")

	require.NoError(t, sc.conn.Close())
	c.waitOutput(msgServerClosed)
	c.waitDone()
}

func TestLocalPrivateCommandErrors(t *testing.T) {
	srv := newFakeServer(t)
	c, sc := startClient(t, srv)
	login(c, sc, "alice")

	c.input("private bob hi")
	c.waitOutput("Error. Private messaging to bob not enabled")
	c.input("stopprivate bob")
	c.waitOutput("Error. Cannot stop an inexist private session with bob")
	c.input("private bob")
	c.waitOutput(msgPrivateUsage)

	// None of the above reached the server.
	c.input("whoelse")
	sc.expectCommand("whoelse")
}

// broker sends both private_target frames for a channel from one logged-in
// client to another and waits until both sides have dialled.
func broker(t *testing.T, from, to *testClient, sf, st *serverConn) {
	t.Helper()
	fromName, toName := from.app.self(), to.app.self()

	sf.send(protocol.PrivateTarget(toName, "127.0.0.1", 0, st.peerPort, fromName, true))
	st.send(protocol.PrivateTarget(fromName, "127.0.0.1", 0, sf.peerPort, toName, false))

	require.Eventually(t, func() bool {
		return from.app.hasLink(toName) && to.app.hasLink(fromName)
	}, 3*time.Second, 10*time.Millisecond)
}

// pair logs alice and bob in and brokers a private channel from alice to bob.
func pair(t *testing.T) (alice, bob *testClient, sa, sb *serverConn) {
	t.Helper()
	srv := newFakeServer(t)

	alice, sa = startClient(t, srv)
	login(alice, sa, "alice")
	bob, sb = startClient(t, srv)
	login(bob, sb, "bob")

	broker(t, alice, bob, sa, sb)
	bob.waitOutput("alice would like to private message, enter y or n: ")
	return alice, bob, sa, sb
}

func TestPrivateChannel_AcceptExchangeStop(t *testing.T) {
	alice, bob, sa, sb := pair(t)

	alice.input("private bob too early")
	alice.waitOutput("Error. Private messaging with bob awaiting confirmation")

	bob.input("y")
	sb.expectAck()
	alice.waitOutput("bob accepts private messaging")

	alice.input("private bob hello  there")
	sa.expectAck()
	bob.waitOutput("alice(private): hello  there")

	bob.input("private alice hi")
	sb.expectAck()
	alice.waitOutput("bob(private): hi")

	alice.input("startprivate bob")
	alice.waitOutput("Private messaging with bob already active")

	bob.input("stopprivate alice")
	sb.expectAck()
	alice.waitOutput("Private messaging with bob closed")
	bob.waitOutput("Private messaging with alice closed")

	assert.Eventually(t, func() bool {
		return !alice.app.hasLink("bob") && !bob.app.hasLink("alice")
	}, 3*time.Second, 10*time.Millisecond)

	alice.input("private bob again")
	alice.waitOutput("Error. Private messaging to bob not enabled")
}

func TestPrivateChannel_Decline(t *testing.T) {
	alice, bob, _, sb := pair(t)

	bob.input("n")
	sb.expectAck()
	alice.waitOutput("bob declines private messaging")
	alice.waitOutput("Private messaging with bob closed")
	bob.waitOutput("Private messaging with alice closed")
}

func TestPrivateChannel_ClosedOnSessionTimeout(t *testing.T) {
	alice, bob, sa, sb := pair(t)

	bob.input("y")
	sb.expectAck()
	alice.waitOutput("bob accepts private messaging")

	sa.send(protocol.Notice("You have been timed out", true))
	alice.waitDone()
	bob.waitOutput("Private messaging with alice closed due to inactivity")
}

func TestPrivateChannel_ClosedOnLogout(t *testing.T) {
	alice, bob, sa, sb := pair(t)

	bob.input("y")
	sb.expectAck()
	alice.waitOutput("bob accepts private messaging")

	alice.input("logout")
	f := sa.next()
	assert.Equal(t, protocol.TypeLogout, f.Type)
	bob.waitOutput("Private messaging with alice closed")
}

func TestPrivateChannel_LogoutClosesAll(t *testing.T) {
	srv := newFakeServer(t)

	alice, sa := startClient(t, srv)
	login(alice, sa, "alice")
	bob, sb := startClient(t, srv)
	login(bob, sb, "bob")
	carol, sc := startClient(t, srv)
	login(carol, sc, "carol")

	broker(t, alice, bob, sa, sb)
	bob.waitOutput("alice would like to private message, enter y or n: ")
	bob.input("y")
	sb.expectAck()
	alice.waitOutput("bob accepts private messaging")

	broker(t, alice, carol, sa, sc)
	carol.waitOutput("alice would like to private message, enter y or n: ")
	carol.input("y")
	sc.expectAck()
	alice.waitOutput("carol accepts private messaging")

	alice.input("logout")
	f := sa.next()
	assert.Equal(t, protocol.TypeLogout, f.Type)
	alice.waitDone()

	bob.waitOutput("Private messaging with alice closed")
	carol.waitOutput("Private messaging with alice closed")
	assert.Eventually(t, func() bool {
		return !bob.app.hasLink("alice") && !carol.app.hasLink("alice")
	}, 3*time.Second, 10*time.Millisecond)
}

func TestPrivateChannel_RequestsAnsweredInOrder(t *testing.T) {
	srv := newFakeServer(t)

	alice, sa := startClient(t, srv)
	login(alice, sa, "alice")
	bob, sb := startClient(t, srv)
	login(bob, sb, "bob")
	carol, sc := startClient(t, srv)
	login(carol, sc, "carol")

	broker(t, alice, bob, sa, sb)
	bob.waitOutput("alice would like to private message, enter y or n: ")
	broker(t, carol, bob, sc, sb)

	require.Eventually(t, func() bool {
		bob.app.mu.Lock()
		defer bob.app.mu.Unlock()
		return len(bob.app.pending) == 2
	}, 3*time.Second, 10*time.Millisecond)
	assert.NotContains(t, bob.out.String(), "carol would like to private message")

	bob.input("y")
	sb.expectAck()
	alice.waitOutput("bob accepts private messaging")

	bob.waitOutput("carol would like to private message, enter y or n: ")
	bob.input("n")
	sb.expectAck()
	carol.waitOutput("bob declines private messaging")
	carol.waitOutput("Private messaging with bob closed")

	// Both answers stayed local.
	bob.input("whoelse")
	sb.expectCommand("whoelse")

	alice.input("private bob still open")
	sa.expectAck()
	bob.waitOutput("alice(private): still open")
}

func TestOpenPeer_UnreachableListenerDoesNotStall(t *testing.T) {
	srv := newFakeServer(t)
	c, sc := startClient(t, srv, func(a *App) { a.dialTimeout = 200 * time.Millisecond })
	login(c, sc, "alice")

	// 192.0.2.0/24 is reserved for documentation and never routed.
	sc.send(protocol.PrivateTarget("bob", "192.0.2.1", 0, 9, "alice", true))
	sc.send(protocol.Text("still listening"))

	c.waitOutput("Error. Private messaging to bob not enabled")
	c.waitOutput("still listening")
	assert.False(t, c.app.hasLink("bob"))
}
