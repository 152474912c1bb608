// Package metrics exposes chat server counters to Prometheus and serves the
// ops endpoints (/metrics, /healthz).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Recorder is what the chat server reports to. Session and command code
// never depends on Prometheus directly.
type Recorder interface {
	ConnectionAccepted()
	SessionStarted()
	// SessionEnded records why an authenticated session finished:
	// logout, disconnect, timeout or shutdown.
	SessionEnded(reason string)
	LoginFailed()
	LoginBlocked()
	// CommandHandled counts a command by name with its outcome ("ok" or
	// the error category).
	CommandHandled(command, outcome string)
	MessageRouted(queued bool)
	PrivateSessionBrokered()
}

// Collector is the Prometheus implementation of Recorder.
type Collector struct {
	connections    prometheus.Counter
	activeSessions prometheus.Gauge
	sessionsEnded  *prometheus.CounterVec
	loginFailures  prometheus.Counter
	loginBlocked   prometheus.Counter
	commands       *prometheus.CounterVec
	messages       *prometheus.CounterVec
	privateBroker  prometheus.Counter
}

var _ Recorder = (*Collector)(nil)

// NewCollector creates the metrics and registers them on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		connections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gophchat_connections_accepted_total",
			Help: "Accepted client connections.",
		}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gophchat_active_sessions",
			Help: "Authenticated sessions currently open.",
		}),
		sessionsEnded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gophchat_sessions_ended_total",
			Help: "Finished sessions by reason.",
		}, []string{"reason"}),
		loginFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gophchat_login_failures_total",
			Help: "Wrong password attempts.",
		}),
		loginBlocked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gophchat_login_blocked_total",
			Help: "Usernames barred after repeated wrong passwords.",
		}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gophchat_commands_total",
			Help: "Handled commands by name and outcome.",
		}, []string{"command", "outcome"}),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gophchat_messages_routed_total",
			Help: "Direct messages by delivery mode.",
		}, []string{"delivery"}),
		privateBroker: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gophchat_private_sessions_brokered_total",
			Help: "Private channels brokered between clients.",
		}),
	}

	reg.MustRegister(
		c.connections,
		c.activeSessions,
		c.sessionsEnded,
		c.loginFailures,
		c.loginBlocked,
		c.commands,
		c.messages,
		c.privateBroker,
	)

	return c
}

func (c *Collector) ConnectionAccepted() { c.connections.Inc() }

func (c *Collector) SessionStarted() { c.activeSessions.Inc() }

func (c *Collector) SessionEnded(reason string) {
	c.activeSessions.Dec()
	c.sessionsEnded.WithLabelValues(reason).Inc()
}

func (c *Collector) LoginFailed() { c.loginFailures.Inc() }

func (c *Collector) LoginBlocked() { c.loginBlocked.Inc() }

func (c *Collector) CommandHandled(command, outcome string) {
	c.commands.WithLabelValues(command, outcome).Inc()
}

func (c *Collector) MessageRouted(queued bool) {
	if queued {
		c.messages.WithLabelValues("queued").Inc()
		return
	}
	c.messages.WithLabelValues("direct").Inc()
}

func (c *Collector) PrivateSessionBrokered() { c.privateBroker.Inc() }

// Nop discards everything.
type Nop struct{}

var _ Recorder = Nop{}

func (Nop) ConnectionAccepted() {}
func (Nop) SessionStarted() {}
func (Nop) SessionEnded(string) {}
func (Nop) LoginFailed() {}
func (Nop) LoginBlocked() {}
func (Nop) CommandHandled(string, string) {}
func (Nop) MessageRouted(bool) {}
func (Nop) PrivateSessionBrokered() {}
