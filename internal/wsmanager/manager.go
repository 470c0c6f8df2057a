package wsmanager

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/muurk/webcontrol/internal/logging"
	"github.com/muurk/webcontrol/internal/protocol"
	"github.com/muurk/webcontrol/internal/types"
	"go.uber.org/zap"
)

var (
	// ErrShuttingDown is returned when a connection arrives after Shutdown
	// and before the next Start.
	ErrShuttingDown = errors.New("WebSocket manager is shutting down")

	// ErrDuplicateID is returned when a caller-supplied client id is taken.
	ErrDuplicateID = errors.New("connection id already in use")
)

// Config holds the manager configuration
type Config struct {
	HeartbeatInterval    time.Duration // Ping period (0 disables the ticker)
	IdleTimeout          time.Duration // Evict after this long without inbound frames (0 = never)
	MaxMissedPongs       int
	MaxQueueSize         int
	MaxReconnectAttempts int
	WriteTimeout         time.Duration
	MaxMessageSize       int
}

// DefaultConfig returns the built-in manager settings.
func DefaultConfig() Config {
	return Config{
		HeartbeatInterval:    30 * time.Second,
		IdleTimeout:          60 * time.Second,
		MaxMissedPongs:       3,
		MaxQueueSize:         100,
		MaxReconnectAttempts: 3,
		WriteTimeout:         10 * time.Second,
		MaxMessageSize:       64 * 1024,
	}
}

// Stats are the manager counters. TotalConnections, MessagesSent and
// MessagesReceived only ever grow.
type Stats struct {
	TotalConnections  uint64 `json:"totalConnections"`
	ActiveConnections int    `json:"activeConnections"`
	MessagesSent      uint64 `json:"messagesSent"`
	MessagesReceived  uint64 `json:"messagesReceived"`
	QueuedMessages    int    `json:"queuedMessages"`
	DroppedMessages   uint64 `json:"droppedMessages"`
}

// InboundHandler receives every decoded client message except ping, which the
// manager answers itself. It is called on the connection's read goroutine.
type InboundHandler func(connectionID string, msg protocol.InboundMessage)

// Manager is the WebSocket connection registry.
type Manager struct {
	cfg Config
	now func() time.Time

	mu           sync.Mutex
	conns        map[string]*connection
	queue        *messageQueue
	shuttingDown bool
	inbound      InboundHandler

	totalConnections uint64
	messagesSent     uint64
	messagesReceived uint64

	heartbeatStop chan struct{}
	heartbeatDone chan struct{}
}

// New creates a Manager. Connections are accepted right away; call Start to
// run the heartbeat.
func New(cfg Config) *Manager {
	if cfg.MaxMissedPongs < 1 {
		cfg.MaxMissedPongs = 1
	}
	return &Manager{
		cfg:   cfg,
		now:   time.Now,
		conns: make(map[string]*connection),
		queue: newMessageQueue(cfg.MaxQueueSize),
	}
}

// SetInboundHandler installs the handler for decoded client messages.
func (m *Manager) SetInboundHandler(h InboundHandler) {
	m.mu.Lock()
	m.inbound = h
	m.mu.Unlock()
}

// Start clears the shutting-down flag and starts the heartbeat ticker. It is
// safe to call on a running manager.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.shuttingDown = false
	if m.heartbeatStop != nil || m.cfg.HeartbeatInterval <= 0 {
		return
	}

	m.heartbeatStop = make(chan struct{})
	m.heartbeatDone = make(chan struct{})
	go m.heartbeatLoop(m.heartbeatStop, m.heartbeatDone)

	logging.Info("WebSocket manager started",
		zap.Duration("heartbeat_interval", m.cfg.HeartbeatInterval),
		zap.Duration("idle_timeout", m.cfg.IdleTimeout),
	)
}

// Shutdown stops the heartbeat and closes every connection. Cumulative
// counters and queued messages are kept for the next Start. Calling it twice
// is safe.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	m.shuttingDown = true
	stop, done := m.heartbeatStop, m.heartbeatDone
	m.heartbeatStop, m.heartbeatDone = nil, nil
	conns := make([]*connection, 0, len(m.conns))
	for _, c := range m.conns {
		conns = append(conns, c)
	}
	m.conns = make(map[string]*connection)
	m.mu.Unlock()

	// Stop the heartbeat
	if stop != nil {
		close(stop)
		<-done
	}

	// Close every connection with going-away
	for _, c := range conns {
		c.closeWith(protocol.CloseGoingAway, "server shutdown")
		logging.Info("WebSocket connection closed",
			zap.String("connection_id", c.id),
			zap.String("reason", "shutdown"),
		)
	}

	logging.Info("WebSocket manager shut down", zap.Int("closed_connections", len(conns)))
}

// IsShuttingDown reports whether new connections are being refused.
func (m *Manager) IsShuttingDown() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.shuttingDown
}

// HandleConnection registers socket under clientID, or under a fresh id when
// clientID is empty, then sends connection-established followed by every
// queued message. Broadcasts issued concurrently are delivered after the
// queued messages.
func (m *Manager) HandleConnection(socket Socket, clientID string) (string, error) {
	now := m.now()

	m.mu.Lock()
	if m.shuttingDown {
		m.mu.Unlock()
		return "", ErrShuttingDown
	}

	// Assign or validate the connection ID
	id := clientID
	if id == "" {
		id = types.NewID(now)
	} else if _, exists := m.conns[id]; exists {
		m.mu.Unlock()
		return "", fmt.Errorf("%w: %s", ErrDuplicateID, id)
	}

	if s, ok := socket.(identifiable); ok {
		s.SetID(id)
	}

	c := &connection{
		id:           id,
		socket:       socket,
		isAlive:      true,
		connectedAt:  now,
		lastActivity: now,
	}
	if ra, ok := socket.(interface{ RemoteAddr() string }); ok {
		c.remoteAddr = ra.RemoteAddr()
	}

	// Register
	m.conns[id] = c
	m.totalConnections++

	// Hold the send lock before releasing the registry so that broadcasts
	// targeting this connection wait for the flush.
	c.sendMu.Lock()
	queued := m.queue.drain()
	m.mu.Unlock()

	logging.Info("WebSocket connection registered",
		zap.String("connection_id", id),
		zap.String("remote_addr", c.remoteAddr),
		zap.Int("queued_messages", len(queued)),
	)

	// Greet the client first
	established, err := encode(protocol.ConnectionEstablished{
		ConnectionID:   id,
		ServerTime:     now,
		QueuedMessages: len(queued),
	})
	if err == nil {
		err = socket.WriteText(established)
	}
	if err != nil {
		c.sendMu.Unlock()
		m.restoreQueue(queued)
		m.removeConnection(c, "connection-established write failed")
		return "", fmt.Errorf("failed to send connection-established: %w", err)
	}
	sent := uint64(1)

	// Flush the queue oldest first. Unsent messages go back on failure.
	for i, msg := range queued {
		if err := socket.WriteText(msg); err != nil {
			c.sendMu.Unlock()
			m.restoreQueue(queued[i:])
			m.addSent(sent)
			m.removeConnection(c, "queued message write failed")
			return "", fmt.Errorf("failed to flush queued messages: %w", err)
		}
		sent++
	}
	c.sendMu.Unlock()
	m.addSent(sent)

	return id, nil
}

// DisconnectClient closes and removes the connection. It returns false when
// no such connection exists.
func (m *Manager) DisconnectClient(id string) bool {
	m.mu.Lock()
	c, ok := m.conns[id]
	if ok {
		delete(m.conns, id)
	}
	m.mu.Unlock()

	if !ok {
		return false
	}

	c.closeWith(protocol.CloseNormal, "disconnected by server")
	logging.Info("WebSocket connection closed",
		zap.String("connection_id", id),
		zap.String("reason", "disconnected"),
	)
	return true
}

// SendToClient sends payload to one connection. A write failure removes the
// connection and returns false.
func (m *Manager) SendToClient(id string, payload protocol.Payload) bool {
	m.mu.Lock()
	c, ok := m.conns[id]
	m.mu.Unlock()
	if !ok {
		logging.Debug("SendToClient: unknown connection", zap.String("connection_id", id))
		return false
	}

	data, err := encode(payload)
	if err != nil {
		logging.Error("Failed to encode message",
			zap.String("type", string(payload.MessageType())),
			zap.Error(err),
		)
		return false
	}
	return m.send(c, data)
}

// Broadcast sends payload to every live connection, or queues it when there
// are none.
func (m *Manager) Broadcast(payload protocol.Payload) {
	data, err := encode(payload)
	if err != nil {
		logging.Error("Failed to encode broadcast",
			zap.String("type", string(payload.MessageType())),
			zap.Error(err),
		)
		return
	}

	m.mu.Lock()
	targets := make([]*connection, 0, len(m.conns))
	for _, c := range m.conns {
		if c.isAlive {
			targets = append(targets, c)
		}
	}
	if len(targets) == 0 {
		m.queue.push(data)
		queued := m.queue.len()
		m.mu.Unlock()
		logging.Debug("No live connections, message queued",
			zap.String("type", string(payload.MessageType())),
			zap.Int("queue_length", queued),
		)
		return
	}
	m.mu.Unlock()

	for _, c := range targets {
		m.send(c, data)
	}
}

// Stats returns a snapshot of the counters.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{
		TotalConnections:  m.totalConnections,
		ActiveConnections: len(m.conns),
		MessagesSent:      m.messagesSent,
		MessagesReceived:  m.messagesReceived,
		QueuedMessages:    m.queue.len(),
		DroppedMessages:   m.queue.dropped,
	}
}

// Connections returns the registered connections ordered by connect time.
func (m *Manager) Connections() []ConnectionInfo {
	m.mu.Lock()
	infos := make([]ConnectionInfo, 0, len(m.conns))
	for _, c := range m.conns {
		infos = append(infos, c.info())
	}
	m.mu.Unlock()

	sort.Slice(infos, func(i, j int) bool {
		if infos[i].ConnectedAt.Equal(infos[j].ConnectedAt) {
			return infos[i].ID < infos[j].ID
		}
		return infos[i].ConnectedAt.Before(infos[j].ConnectedAt)
	})
	return infos
}

func (m *Manager) send(c *connection, data []byte) bool {
	if err := c.writeText(data); err != nil {
		logging.Warn("WebSocket send failed, removing connection",
			zap.String("connection_id", c.id),
			zap.Error(err),
		)
		m.removeConnection(c, "send failed")
		return false
	}
	m.addSent(1)
	return true
}

func (m *Manager) addSent(n uint64) {
	m.mu.Lock()
	m.messagesSent += n
	m.mu.Unlock()
}

func (m *Manager) restoreQueue(msgs [][]byte) {
	m.mu.Lock()
	m.queue.requeue(msgs)
	m.mu.Unlock()
}

// removeConnection unregisters c if it is still the registered connection for
// its id and closes the socket. It reports whether c was registered.
func (m *Manager) removeConnection(c *connection, reason string) bool {
	m.mu.Lock()
	current, ok := m.conns[c.id]
	removed := ok && current == c
	if removed {
		delete(m.conns, c.id)
	}
	m.mu.Unlock()

	_ = c.socket.Close()

	if removed {
		logging.Info("WebSocket connection removed",
			zap.String("connection_id", c.id),
			zap.String("reason", reason),
		)
	}
	return removed
}

func encode(payload protocol.Payload) ([]byte, error) {
	return json.Marshal(protocol.NewOutbound(payload))
}
