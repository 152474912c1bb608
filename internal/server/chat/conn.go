package chat

import (
	"net"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophchat/internal/protocol"
)

// conn owns one client socket. Reads happen on the session goroutine;
// writes go through a buffered outbox drained by writePump, so no sender
// ever blocks on a slow client. A full outbox closes the connection.
type conn struct {
	nc  net.Conn
	dec *protocol.Decoder

	out          chan protocol.Frame
	writeTimeout time.Duration

	done      chan struct{}
	closeOnce sync.Once
}

func newConn(nc net.Conn, outboxSize int, writeTimeout time.Duration) *conn {
	return &conn{
		nc:           nc,
		dec:          protocol.NewDecoder(nc),
		out:          make(chan protocol.Frame, outboxSize),
		writeTimeout: writeTimeout,
		done:         make(chan struct{}),
	}
}

// Send queues f. It never blocks.
func (c *conn) Send(f protocol.Frame) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.out <- f:
		return true
	default:
		c.Abort()
		return false
	}
}

// Close stops accepting frames. writePump flushes what is already queued
// and then closes the socket.
func (c *conn) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// Abort closes the socket at once, unblocking a pending read.
func (c *conn) Abort() {
	c.Close()
	_ = c.nc.Close()
}

func (c *conn) read(timeout time.Duration) (protocol.Frame, error) {
	if timeout > 0 {
		if err := c.nc.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			return protocol.Frame{}, err
		}
	}
	return c.dec.Decode()
}

func (c *conn) writePump() {
	defer c.nc.Close()

	enc := protocol.NewEncoder(c.nc)
	write := func(f protocol.Frame) bool {
		if c.writeTimeout > 0 {
			_ = c.nc.SetWriteDeadline(time.Now().Add(c.writeTimeout))
		}
		return enc.Encode(f) == nil
	}

	for {
		select {
		case f := <-c.out:
			if !write(f) {
				c.Close()
				return
			}
		case <-c.done:
			for {
				select {
				case f := <-c.out:
					if !write(f) {
						return
					}
				default:
					return
				}
			}
		}
	}
}
