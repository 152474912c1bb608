package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophchat/internal/common"
	"github.com/dmitrijs2005/gophchat/internal/protocol"
)

// cmdStartPrivate brokers a private channel. Both sides get the other's
// endpoint; the initiator connects and the target accepts. No payload of
// the channel itself passes through the server.
func (cs *ClientSession) cmdStartPrivate(ctx context.Context, args []string, _ string) error {
	target := args[0]
	if target == cs.username {
		cs.reply(msgSelfPrivate)
		return common.ErrSelfTarget
	}
	if err := cs.knownUser(ctx, target); err != nil {
		return err
	}

	peer, err := cs.srv.registry.Reachable(cs.username, target)
	switch {
	case errors.Is(err, common.ErrUserOffline):
		cs.reply(msgUserOffline)
		return err
	case errors.Is(err, common.ErrBlocked):
		cs.reply(fmt.Sprintf(fmtPrivateBlocked, target))
		return err
	case err != nil:
		return err
	}

	self := cs.session
	cs.reply(fmt.Sprintf(fmtPrivateStart, target))
	cs.conn.Send(protocol.PrivateTarget(peer.Username, peer.Host, peer.Port, peer.ListenerPort, self.Username, true))

	if !peer.Send(protocol.PrivateTarget(self.Username, self.Host, self.Port, self.ListenerPort, peer.Username, false)) {
		cs.logger.Warn(ctx, "private target not delivered", "peer", target)
		return fmt.Errorf("%w: %s unreachable", common.ErrHandshake, target)
	}

	cs.srv.metrics.PrivateSessionBrokered()
	cs.logger.Info(ctx, "private session brokered", "peer", target)
	return nil
}
