package cli

import (
	"bufio"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/dmitrijs2005/gophchat/internal/protocol"
	"golang.org/x/term"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

// readInput feeds user lines to the session. Until login completes each
// line answers the latest prompt; password prompts are read without echo
// when input is a terminal.
func (a *App) readInput(ctx context.Context) {
	lines := bufio.NewScanner(a.in)

	next := func() (string, bool) {
		if !lines.Scan() {
			return "", false
		}
		return strings.TrimRight(lines.Text(), "\r"), true
	}

	for {
		if !a.isActive() {
			var field string
			select {
			case field = <-a.prompts:
			case <-a.activated:
				continue
			case <-a.done:
				return
			}

			var answer string
			if a.readSecret != nil && (field == protocol.FieldPassword || field == protocol.FieldNewPassword) {
				pw, err := a.readSecret()
				if err != nil {
					a.logger.Warn(ctx, "password read failed", "error", err)
					a.finish()
					return
				}
				answer = pw
			} else {
				line, ok := next()
				if !ok {
					a.finish()
					return
				}
				answer = line
			}
			if err := a.toServer.Encode(protocol.Command(answer)); err != nil {
				a.finish()
				return
			}
			continue
		}

		line, ok := next()
		if !ok {
			a.logout()
			return
		}
		if a.handleLine(ctx, line) {
			return
		}
	}
}

// handleLine runs one line typed by an authenticated user. It reports
// whether the session is over.
func (a *App) handleLine(ctx context.Context, line string) bool {
	if peer, ok := a.takePendingConfirm(); ok {
		a.answerConfirm(ctx, peer, strings.TrimSpace(line))
		a.askNext()
		return false
	}

	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	switch {
	case strings.EqualFold(fields[0], "logout") && len(fields) == 1:
		a.logout()
		return true
	case fields[0] == "private":
		a.sendPrivate(line, fields)
	case fields[0] == "stopprivate":
		a.stopPrivate(fields)
	case fields[0] == "startprivate" && len(fields) == 2 && a.hasLink(fields[1]):
		a.out.Println(fmt.Sprintf(fmtAlreadyActive, fields[1]))
	default:
		a.sendServer(protocol.Command(strings.TrimSpace(line)))
	}
	return false
}

func (a *App) sendServer(f protocol.Frame) {
	if err := a.toServer.Encode(f); err != nil {
		a.finish()
	}
}

// takePendingConfirm returns the peer whose prompt is on screen and removes
// it from the queue.
func (a *App) takePendingConfirm() (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	peer := a.asking
	if peer == "" {
		return "", false
	}
	a.asking = ""
	a.pending = slices.DeleteFunc(a.pending, func(p string) bool { return p == peer })
	return peer, true
}

func (a *App) hasLink(peer string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.send[peer]
	return ok
}

func (a *App) link(peer string) (*peerLink, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	l, ok := a.send[peer]
	return l, ok && a.confirmed[peer]
}

// answerConfirm sends the operator's answer to a private request. A decline
// also closes the channel.
func (a *App) answerConfirm(ctx context.Context, peer, answer string) {
	a.sendServer(protocol.Ack())

	a.mu.Lock()
	l := a.send[peer]
	accept := strings.EqualFold(answer, "y")
	if accept && l != nil {
		a.confirmed[peer] = true
	}
	a.mu.Unlock()

	if l == nil {
		return
	}

	me := a.self()
	if err := l.send(protocol.PrivateReply(me, accept)); err != nil {
		a.logger.Debug(ctx, "private reply failed", "peer", peer, "error", err)
	}
	if !accept {
		_ = l.send(protocol.Logout(me, peer, false, false))
	}
}

func (a *App) sendPrivate(line string, fields []string) {
	if len(fields) < 3 {
		a.out.Println(msgPrivateUsage)
		return
	}
	peer := fields[1]

	l, confirmed := a.link(peer)
	switch {
	case l == nil:
		a.out.Println(fmt.Sprintf(fmtNotEnabled, peer))
		return
	case !confirmed:
		a.out.Println(fmt.Sprintf(fmtAwaiting, peer))
		return
	}

	body := strings.TrimSpace(line)
	body = strings.TrimSpace(body[len(fields[0]):])
	body = strings.TrimSpace(body[len(peer):])

	a.sendServer(protocol.Ack())
	if err := l.send(protocol.Text(fmt.Sprintf(fmtPrivatePayload, a.self(), body))); err != nil {
		a.dropPeer(peer, false)
	}
}

func (a *App) stopPrivate(fields []string) {
	if len(fields) != 2 {
		a.out.Println(msgStopPrivateUsage)
		return
	}
	peer := fields[1]

	a.mu.Lock()
	l := a.send[peer]
	a.mu.Unlock()
	if l == nil {
		a.out.Println(fmt.Sprintf(fmtNoSession, peer))
		return
	}

	a.sendServer(protocol.Ack())
	if err := l.send(protocol.Logout(a.self(), peer, false, false)); err != nil {
		a.dropPeer(peer, false)
	}
}

// logout closes every private channel, then the server session.
func (a *App) logout() {
	a.closeAllPeers(false)
	_ = a.toServer.Encode(protocol.Logout(a.self(), "", false, false))
	a.finish()
}
