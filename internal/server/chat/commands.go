package chat

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophchat/internal/common"
	"github.com/dmitrijs2005/gophchat/internal/protocol"
	"github.com/dmitrijs2005/gophchat/internal/server/registry"
)

// Outcome labels for the commands metric.
const (
	outcomeOK       = "ok"
	outcomeInvalid  = "invalid"
	outcomeRejected = "rejected"
	outcomeLimited  = "rate_limited"
	outcomeFailed   = "failed"
)

func outcome(err error) string {
	switch {
	case err == nil:
		return outcomeOK
	case errors.Is(err, common.ErrRateLimited):
		return outcomeLimited
	case errors.Is(err, common.ErrProtocol):
		return outcomeInvalid
	case errors.Is(err, common.ErrRouting), errors.Is(err, common.ErrHandshake):
		return outcomeRejected
	default:
		return outcomeFailed
	}
}

type handler struct {
	// minArgs is the least number of words after the command name; when
	// variadic is false the count must match exactly.
	minArgs  int
	variadic bool
	run      func(cs *ClientSession, ctx context.Context, args []string, rest string) error
}

var handlers = map[string]handler{
	"message":      {minArgs: 2, variadic: true, run: (*ClientSession).cmdMessage},
	"broadcast":    {minArgs: 1, variadic: true, run: (*ClientSession).cmdBroadcast},
	"whoelse":      {run: (*ClientSession).cmdWhoelse},
	"whoelsesince": {minArgs: 1, run: (*ClientSession).cmdWhoelseSince},
	"block":        {minArgs: 1, run: (*ClientSession).cmdBlock},
	"unblock":      {minArgs: 1, run: (*ClientSession).cmdUnblock},
	"startprivate": {minArgs: 1, run: (*ClientSession).cmdStartPrivate},
	"stopprivate":  {minArgs: 1, run: (*ClientSession).cmdStopPrivate},
}

// dispatch runs one command line. Every failure is answered on the
// session itself; none of them ends it.
func (cs *ClientSession) dispatch(ctx context.Context, line string) {
	name, args, rest := tokenize(line)

	h, ok := handlers[name]
	if !ok || len(args) < h.minArgs || (!h.variadic && len(args) != h.minArgs) {
		cs.reply(msgInvalidCommand)
		cs.srv.metrics.CommandHandled("unknown", outcome(common.ErrInvalidCommand))
		return
	}

	err := h.run(cs, ctx, args, rest)
	if err != nil {
		cs.logger.Debug(ctx, "command rejected", "command", name, "error", err)
	}
	cs.srv.metrics.CommandHandled(name, outcome(err))
}

// tokenize splits line into the command name, its arguments, and the raw
// text after the first argument (the message body).
func tokenize(line string) (name string, args []string, rest string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", nil, ""
	}
	name, args = fields[0], fields[1:]
	if len(args) < 2 {
		return name, args, ""
	}

	s := strings.TrimSpace(line)
	s = strings.TrimSpace(s[len(name):])
	s = strings.TrimSpace(s[len(args[0]):])
	return name, args, s
}

// knownUser rejects unknown names with the invalid user reply.
func (cs *ClientSession) knownUser(ctx context.Context, name string) error {
	ok, err := cs.srv.store.Exists(ctx, name)
	if err != nil {
		cs.reply(msgUnavailable)
		return err
	}
	if !ok {
		cs.reply(msgInvalidUser)
		return common.ErrUnknownUser
	}
	return nil
}

func (cs *ClientSession) cmdMessage(ctx context.Context, args []string, body string) error {
	to := args[0]
	if to == cs.username {
		cs.reply(msgSelfMessage)
		return common.ErrSelfTarget
	}
	if err := cs.knownUser(ctx, to); err != nil {
		return err
	}

	queued, err := cs.srv.registry.Route(cs.username, to, fmt.Sprintf(fmtMessage, cs.username, body))
	if errors.Is(err, common.ErrBlocked) {
		cs.reply(msgRecipientBlocked)
		return err
	}
	if err != nil {
		return err
	}
	cs.srv.metrics.MessageRouted(queued)
	return nil
}

func (cs *ClientSession) cmdBroadcast(_ context.Context, args []string, _ string) error {
	text := fmt.Sprintf(fmtMessage, cs.username, strings.Join(args, " "))
	if skipped := cs.srv.registry.Broadcast(cs.username, protocol.Text(text), registry.SkipBlockers); skipped > 0 {
		cs.reply(msgPartialBroadcast)
	}
	return nil
}

func (cs *ClientSession) cmdWhoelse(_ context.Context, _ []string, _ string) error {
	for _, name := range cs.srv.registry.ListActive(cs.username) {
		cs.reply(name)
	}
	return nil
}

func (cs *ClientSession) cmdWhoelseSince(_ context.Context, args []string, _ string) error {
	secs, err := strconv.Atoi(args[0])
	if err != nil || secs < 0 {
		cs.reply(msgWhoelsesinceUsage)
		return common.ErrInvalidCommand
	}
	for _, name := range cs.srv.registry.ListSince(time.Duration(secs)*time.Second, cs.username) {
		cs.reply(name)
	}
	return nil
}

func (cs *ClientSession) cmdBlock(ctx context.Context, args []string, _ string) error {
	target := args[0]
	if target == cs.username {
		cs.reply(msgSelfBlock)
		return common.ErrSelfTarget
	}
	if err := cs.knownUser(ctx, target); err != nil {
		return err
	}

	if err := cs.srv.registry.Block(cs.username, target); err != nil {
		cs.reply(fmt.Sprintf(fmtAlreadyBlocked, target))
		return err
	}
	cs.reply(fmt.Sprintf(fmtBlocked, target))
	return nil
}

func (cs *ClientSession) cmdUnblock(ctx context.Context, args []string, _ string) error {
	target := args[0]
	if target == cs.username {
		cs.reply(msgSelfUnblock)
		return common.ErrSelfTarget
	}
	if err := cs.knownUser(ctx, target); err != nil {
		return err
	}

	if err := cs.srv.registry.Unblock(cs.username, target); err != nil {
		cs.reply(fmt.Sprintf(fmtNotBlocked, target))
		return err
	}
	cs.reply(fmt.Sprintf(fmtUnblocked, target))
	return nil
}

// The client closes its channel on its own.
func (cs *ClientSession) cmdStopPrivate(_ context.Context, _ []string, _ string) error {
	return nil
}
