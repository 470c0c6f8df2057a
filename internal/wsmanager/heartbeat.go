package wsmanager

import (
	"time"

	"github.com/muurk/webcontrol/internal/logging"
	"go.uber.org/zap"
)

func (m *Manager) heartbeatLoop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.CheckHeartbeats()
		}
	}
}

type eviction struct {
	conn   *connection
	reason string
}

// CheckHeartbeats runs one heartbeat sweep. The heartbeat ticker calls it;
// it is exported so hosts and tests can force a sweep.
func (m *Manager) CheckHeartbeats() {
	now := m.now()

	var evict []eviction
	var ping []*connection

	m.mu.Lock()
	for _, c := range m.conns {
		switch {
		case !c.isAlive:
			evict = append(evict, eviction{c, "marked not alive"})
			continue
		case m.cfg.IdleTimeout > 0 && now.Sub(c.lastActivity) > m.cfg.IdleTimeout:
			evict = append(evict, eviction{c, "idle timeout"})
			continue
		}

		if c.awaitingPong {
			c.missedPongs++
			if c.missedPongs >= m.cfg.MaxMissedPongs {
				evict = append(evict, eviction{c, "missed pongs"})
				continue
			}
		}
		c.awaitingPong = true
		ping = append(ping, c)
	}
	m.mu.Unlock()

	for _, e := range evict {
		m.removeConnection(e.conn, e.reason)
	}

	for _, c := range ping {
		if err := c.writePing(); err != nil {
			logging.Warn("Heartbeat ping failed",
				zap.String("connection_id", c.id),
				zap.Error(err),
			)
			m.removeConnection(c, "ping failed")
		}
	}

	if len(evict) > 0 {
		logging.Debug("Heartbeat sweep",
			zap.Int("pinged", len(ping)),
			zap.Int("evicted", len(evict)),
		)
	}
}

// HandleNetworkLost marks every connection not alive. Nothing is removed
// until the next heartbeat sweep or HandleNetworkRestored.
func (m *Manager) HandleNetworkLost() {
	m.mu.Lock()
	for _, c := range m.conns {
		c.isAlive = false
	}
	n := len(m.conns)
	m.mu.Unlock()

	logging.Info("Network lost, connections marked not alive", zap.Int("connections", n))
}

// HandleNetworkRestored re-pings every connection that is not alive. A
// successful ping marks the connection alive pending its pong; a connection
// retried more than MaxReconnectAttempts times is removed.
func (m *Manager) HandleNetworkRestored() {
	var retry []*connection
	var evict []*connection

	m.mu.Lock()
	for _, c := range m.conns {
		if c.isAlive {
			continue
		}
		c.reconnectAttempts++
		if c.reconnectAttempts > m.cfg.MaxReconnectAttempts {
			evict = append(evict, c)
		} else {
			retry = append(retry, c)
		}
	}
	m.mu.Unlock()

	for _, c := range evict {
		m.removeConnection(c, "reconnect attempts exhausted")
	}

	for _, c := range retry {
		if err := c.writePing(); err != nil {
			logging.Warn("Reconnect ping failed",
				zap.String("connection_id", c.id),
				zap.Error(err),
			)
			m.removeConnection(c, "reconnect ping failed")
			continue
		}

		m.mu.Lock()
		c.isAlive = true
		c.awaitingPong = true
		c.missedPongs = 0
		m.mu.Unlock()
	}

	logging.Info("Network restored",
		zap.Int("retried", len(retry)),
		zap.Int("evicted", len(evict)),
	)
}

// markPong records a pong from c.
func (m *Manager) markPong(c *connection) {
	m.mu.Lock()
	c.isAlive = true
	c.awaitingPong = false
	c.missedPongs = 0
	c.reconnectAttempts = 0
	c.lastActivity = m.now()
	m.mu.Unlock()
}

// touch records inbound activity on c.
func (m *Manager) touch(c *connection) {
	m.mu.Lock()
	c.lastActivity = m.now()
	m.mu.Unlock()
}
