// Package protocol implements the GophChat wire format: one JSON object per
// line, discriminated by its "type" field. JSON string escaping keeps the
// newline delimiter out of payloads, so a frame is always read as a whole
// line regardless of how the transport splits the stream.
package protocol

import (
	"fmt"

	"github.com/dmitrijs2005/gophchat/internal/common"
)

// MaxFrameSize bounds a single encoded frame, delimiter excluded.
const MaxFrameSize = 64 * 1024

type Type string

const (
	TypePeerPort      Type = "peer_port"
	TypePrompt        Type = "prompt"
	TypeText          Type = "text"
	TypeCommand       Type = "command"
	TypeLogout        Type = "logout"
	TypePrivateTarget Type = "private_target"
	TypeAck           Type = "ack"
	TypePeerHello     Type = "peer_hello"
	TypePrivateReply  Type = "private_reply"
)

// Prompt fields tell the client what the next input line answers.
const (
	FieldUsername    = "username"
	FieldPassword    = "password"
	FieldNewPassword = "new_password"
)

// Frame is the single message shape on every link: client-server and
// peer-peer. Only the fields relevant to Type are set.
type Frame struct {
	Type Type `json:"type"`

	Port  int    `json:"port,omitempty"`
	Field string `json:"field,omitempty"`
	Text  string `json:"text,omitempty"`

	// logout, peer_hello, private_reply
	Actor    string `json:"actor,omitempty"`
	Peer     string `json:"peer,omitempty"`
	Final    bool   `json:"final,omitempty"`
	TimedOut bool   `json:"timed_out,omitempty"`
	Accept   bool   `json:"accept,omitempty"`

	// private_target
	PeerName     string `json:"peer_name,omitempty"`
	PeerHost     string `json:"peer_host,omitempty"`
	PeerPort     int    `json:"peer_port,omitempty"`
	ListenerPort int    `json:"listener_port,omitempty"`
	ActorName    string `json:"actor_name,omitempty"`
	Initiator    bool   `json:"initiator,omitempty"`
}

// Validate reports ErrUnexpectedFrame for unknown types and for frames that
// miss the fields their type requires.
func (f Frame) Validate() error {
	switch f.Type {
	case TypePeerPort:
		if f.Port <= 0 || f.Port > 65535 {
			return fmt.Errorf("%w: peer_port %d", common.ErrUnexpectedFrame, f.Port)
		}
	case TypePrompt:
		switch f.Field {
		case FieldUsername, FieldPassword, FieldNewPassword:
		default:
			return fmt.Errorf("%w: prompt field %q", common.ErrUnexpectedFrame, f.Field)
		}
	case TypePrivateTarget:
		if f.PeerName == "" || f.ListenerPort <= 0 {
			return fmt.Errorf("%w: incomplete private_target", common.ErrUnexpectedFrame)
		}
	case TypePeerHello, TypePrivateReply:
		if f.Actor == "" {
			return fmt.Errorf("%w: %s without actor", common.ErrUnexpectedFrame, f.Type)
		}
	case TypeText, TypeCommand, TypeLogout, TypeAck:
	default:
		return fmt.Errorf("%w: type %q", common.ErrUnexpectedFrame, f.Type)
	}
	return nil
}

func PeerPort(port int) Frame { return Frame{Type: TypePeerPort, Port: port} }

func Prompt(field, text string) Frame { return Frame{Type: TypePrompt, Field: field, Text: text} }

func Text(text string) Frame { return Frame{Type: TypeText, Text: text} }

// Welcome is the first text of an authenticated session; actor is the
// logged-in username.
func Welcome(actor, text string) Frame { return Frame{Type: TypeText, Actor: actor, Text: text} }

func Command(text string) Frame { return Frame{Type: TypeCommand, Text: text} }

func Ack() Frame { return Frame{Type: TypeAck} }

// Logout ends a server session (actor only) or closes a private channel
// between actor and peer. A final logout is not answered.
func Logout(actor, peer string, final, timedOut bool) Frame {
	return Frame{Type: TypeLogout, Actor: actor, Peer: peer, Final: final, TimedOut: timedOut}
}

// Notice is a terminal server logout carrying a human-readable reason.
func Notice(text string, timedOut bool) Frame {
	return Frame{Type: TypeLogout, Final: true, TimedOut: timedOut, Text: text}
}

// PrivateTarget tells a client to dial peerName's private listener.
func PrivateTarget(peerName, peerHost string, peerPort, listenerPort int, actorName string, initiator bool) Frame {
	return Frame{
		Type:         TypePrivateTarget,
		PeerName:     peerName,
		PeerHost:     peerHost,
		PeerPort:     peerPort,
		ListenerPort: listenerPort,
		ActorName:    actorName,
		Initiator:    initiator,
	}
}

func PeerHello(actor, peer string) Frame { return Frame{Type: TypePeerHello, Actor: actor, Peer: peer} }

func PrivateReply(actor string, accept bool) Frame {
	return Frame{Type: TypePrivateReply, Actor: actor, Accept: accept}
}
