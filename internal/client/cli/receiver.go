package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"

	"github.com/dmitrijs2005/gophchat/internal/common"
	"github.com/dmitrijs2005/gophchat/internal/protocol"
)

// receiveServer handles everything the server sends until the connection
// ends.
func (a *App) receiveServer(ctx context.Context) {
	defer a.finish()

	dec := protocol.NewDecoder(a.server)
	for {
		f, err := dec.Decode()
		if err != nil {
			if errors.Is(err, common.ErrUnexpectedFrame) {
				a.logger.Debug(ctx, "skipping server frame", "error", err)
				continue
			}
			if !a.finished() {
				a.closeAllPeers(false)
				a.out.Println(msgServerClosed)
			}
			return
		}

		switch f.Type {
		case protocol.TypePrompt:
			a.out.Printf("%s", f.Text)
			select {
			case a.prompts <- f.Field:
			default:
			}
		case protocol.TypeText:
			if f.Actor != "" && !a.isActive() {
				a.markActive(f.Actor)
			}
			a.out.Println(f.Text)
		case protocol.TypeLogout:
			if f.Text != "" {
				a.out.Println(f.Text)
			}
			a.closeAllPeers(f.TimedOut)
			return
		case protocol.TypePrivateTarget:
			a.openPeer(ctx, f)
		default:
			a.logger.Debug(ctx, "ignoring server frame", "type", string(f.Type))
		}
	}
}

// openPeer dials the private listener named by a private_target frame.
func (a *App) openPeer(ctx context.Context, f protocol.Frame) {
	a.mu.Lock()
	if a.username == "" {
		a.username = f.ActorName
	}
	me := a.username
	_, exists := a.send[f.PeerName]
	a.mu.Unlock()

	if exists {
		a.logger.Debug(ctx, "private channel already open", "peer", f.PeerName)
		return
	}

	d := net.Dialer{Timeout: a.dialTimeout}
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(f.PeerHost, strconv.Itoa(f.ListenerPort)))
	if err != nil {
		a.logger.Warn(ctx, "private dial failed", "peer", f.PeerName, "error", err)
		a.out.Println(fmt.Sprintf(fmtNotEnabled, f.PeerName))
		return
	}

	link := &peerLink{name: f.PeerName, conn: conn, enc: protocol.NewEncoder(conn)}
	if err := link.send(protocol.PeerHello(me, f.PeerName)); err != nil {
		_ = conn.Close()
		a.logger.Warn(ctx, "private hello failed", "peer", f.PeerName, "error", err)
		return
	}

	a.mu.Lock()
	a.send[f.PeerName] = link
	if !f.Initiator {
		a.pending = append(a.pending, f.PeerName)
	}
	a.mu.Unlock()

	if !f.Initiator {
		a.askNext()
	}
}

// acceptPeers runs the private listener.
func (a *App) acceptPeers(ctx context.Context) {
	for {
		conn, err := a.listener.Accept()
		if err != nil {
			if !a.finished() && !errors.Is(err, net.ErrClosed) {
				a.logger.Warn(ctx, "private listener stopped", "error", err)
			}
			return
		}
		go a.receivePeer(ctx, conn)
	}
}

// receivePeer reads one inbound private channel. The first frame names the
// peer; the loop ends on a logout or when the peer goes away.
func (a *App) receivePeer(ctx context.Context, conn net.Conn) {
	dec := protocol.NewDecoder(conn)

	hello, err := dec.Decode()
	if err != nil || hello.Type != protocol.TypePeerHello {
		a.logger.Debug(ctx, "dropping private connection without hello", "remote", conn.RemoteAddr().String())
		_ = conn.Close()
		return
	}
	peer := hello.Actor

	a.mu.Lock()
	old, replaced := a.recv[peer]
	a.recv[peer] = conn
	a.mu.Unlock()
	if replaced {
		_ = old.Close()
	}

	for {
		f, err := dec.Decode()
		if errors.Is(err, common.ErrUnexpectedFrame) {
			continue
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				a.logger.Debug(ctx, "private read failed", "peer", peer, "error", err)
			}
			if !a.finished() && a.owns(peer, conn) {
				a.dropPeer(peer, false)
			}
			return
		}

		switch f.Type {
		case protocol.TypeText:
			a.out.Println(f.Text)
		case protocol.TypePrivateReply:
			a.onReply(peer, f.Accept)
		case protocol.TypeLogout:
			if !f.Final {
				a.mu.Lock()
				l := a.send[peer]
				a.mu.Unlock()
				if l != nil {
					_ = l.send(protocol.Logout(a.self(), peer, true, f.TimedOut))
				}
			}
			a.dropPeer(peer, f.TimedOut)
			return
		}
	}
}

// owns reports whether conn is still the receiving half for peer.
func (a *App) owns(peer string, conn net.Conn) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.recv[peer] == conn
}

func (a *App) onReply(peer string, accept bool) {
	if accept {
		a.mu.Lock()
		a.confirmed[peer] = true
		a.mu.Unlock()
		a.out.Println(fmt.Sprintf(fmtAccepts, peer))
		return
	}
	a.out.Println(fmt.Sprintf(fmtDeclines, peer))
}
