package protocol

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/muurk/webcontrol/internal/logging"
)

// Conn is an upgraded WebSocket connection. Reads must come from a single
// goroutine; writes may come from any goroutine and are serialized.
type Conn struct {
	id           string
	netConn      net.Conn
	reader       io.Reader
	writeTimeout time.Duration
	maxPayload   uint64

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

// NewConn wraps an upgraded net.Conn. buffered holds any bytes the HTTP
// reader consumed past the end of the upgrade request; it may be nil.
func NewConn(netConn net.Conn, buffered []byte, writeTimeout time.Duration, maxPayload uint64) *Conn {
	var r io.Reader = netConn
	if len(buffered) > 0 {
		r = io.MultiReader(bytes.NewReader(buffered), netConn)
	}
	return &Conn{
		netConn:      netConn,
		reader:       r,
		writeTimeout: writeTimeout,
		maxPayload:   maxPayload,
	}
}

// SetID attaches the registry id used in log fields.
func (c *Conn) SetID(id string) {
	c.id = id
}

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() string {
	return c.netConn.RemoteAddr().String()
}

// ReadFrame reads and validates the next client frame.
func (c *Conn) ReadFrame(deadline time.Time) (*Frame, error) {
	if err := c.netConn.SetReadDeadline(deadline); err != nil {
		return nil, fmt.Errorf("failed to set read deadline: %w", err)
	}
	frame, err := ReadFrame(c.reader, c.maxPayload)
	if err != nil {
		return nil, err
	}
	if err := frame.ValidateClientFrame(); err != nil {
		return nil, err
	}
	logging.LogWebSocketMessage(c.id, "received", frame.Opcode, frame.Payload)
	return frame, nil
}

// WriteText sends a text frame.
func (c *Conn) WriteText(payload []byte) error {
	return c.writeFrame(OpcodeText, payload)
}

// WritePing sends a ping control frame.
func (c *Conn) WritePing(payload []byte) error {
	return c.writeFrame(OpcodePing, payload)
}

// WritePong sends a pong control frame echoing payload.
func (c *Conn) WritePong(payload []byte) error {
	return c.writeFrame(OpcodePong, payload)
}

// WriteClose sends a close frame. The connection is not closed.
func (c *Conn) WriteClose(code uint16, reason string) error {
	return c.writeFrame(OpcodeClose, EncodeClosePayload(code, reason))
}

func (c *Conn) writeFrame(opcode byte, payload []byte) error {
	frame := EncodeFrame(opcode, payload)

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.writeTimeout > 0 {
		if err := c.netConn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return fmt.Errorf("failed to set write deadline: %w", err)
		}
	}
	if _, err := c.netConn.Write(frame); err != nil {
		return fmt.Errorf("write failed: %w", err)
	}

	logging.LogWebSocketMessage(c.id, "sent", opcode, payload)
	return nil
}

// Close closes the underlying connection. Safe to call repeatedly.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.netConn.Close()
	})
	return c.closeErr
}
