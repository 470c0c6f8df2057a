package wsmanager

import (
	"sync"
	"time"
)

// Socket is the write side of an upgraded connection. *protocol.Conn
// implements it.
type Socket interface {
	WriteText(payload []byte) error
	WritePing(payload []byte) error
	WritePong(payload []byte) error
	WriteClose(code uint16, reason string) error
	Close() error
}

// identifiable is implemented by sockets that tag their log lines with the
// connection id.
type identifiable interface {
	SetID(id string)
}

// connection pairs a socket with its registry bookkeeping. The fields below
// sendMu are guarded by Manager.mu.
type connection struct {
	id         string
	socket     Socket
	remoteAddr string

	// sendMu serializes writes so a connection sees messages in the order
	// they were handed to it.
	sendMu sync.Mutex

	isAlive           bool
	connectedAt       time.Time
	lastActivity      time.Time
	reconnectAttempts int
	awaitingPong      bool
	missedPongs       int
}

// ConnectionInfo is a point-in-time copy of a connection's bookkeeping.
type ConnectionInfo struct {
	ID                string    `json:"id"`
	RemoteAddr        string    `json:"remoteAddr,omitempty"`
	IsAlive           bool      `json:"isAlive"`
	ConnectedAt       time.Time `json:"connectedAt"`
	LastActivity      time.Time `json:"lastActivity"`
	ReconnectAttempts int       `json:"reconnectAttempts"`
	MissedPongs       int       `json:"missedPongs"`
}

func (c *connection) info() ConnectionInfo {
	return ConnectionInfo{
		ID:                c.id,
		RemoteAddr:        c.remoteAddr,
		IsAlive:           c.isAlive,
		ConnectedAt:       c.connectedAt,
		LastActivity:      c.lastActivity,
		ReconnectAttempts: c.reconnectAttempts,
		MissedPongs:       c.missedPongs,
	}
}

// writeText sends one text frame while holding the connection's send lock.
func (c *connection) writeText(data []byte) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	return c.socket.WriteText(data)
}

func (c *connection) writePing() error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	return c.socket.WritePing(nil)
}

func (c *connection) writePong(payload []byte) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	return c.socket.WritePong(payload)
}

// closeWith sends a close frame and then closes the socket. Errors are
// ignored; the peer may already be gone.
func (c *connection) closeWith(code uint16, reason string) {
	c.sendMu.Lock()
	_ = c.socket.WriteClose(code, reason)
	c.sendMu.Unlock()
	_ = c.socket.Close()
}
