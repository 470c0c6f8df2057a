package wsmanager

import (
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/muurk/webcontrol/internal/logging"
	"github.com/muurk/webcontrol/internal/protocol"
	"go.uber.org/zap"
)

// Accept completes the WebSocket handshake on netConn, registers the
// connection and serves it until the peer disconnects or the connection is
// removed. buffered holds bytes that were read past the end of the HTTP
// request; they are treated as the start of the frame stream.
//
// The caller has already authenticated the request and keeps ownership of
// netConn: Accept closes it only through the registered connection.
func (m *Manager) Accept(netConn net.Conn, key, clientID string, buffered []byte) error {
	remoteAddr := netConn.RemoteAddr().String()

	if m.IsShuttingDown() {
		return ErrShuttingDown
	}

	response := protocol.HandshakeResponse(protocol.GenerateAcceptKey(key))
	logging.LogRawBytes("HTTP 101 Response", response)

	if m.cfg.WriteTimeout > 0 {
		if err := netConn.SetWriteDeadline(time.Now().Add(m.cfg.WriteTimeout)); err != nil {
			return fmt.Errorf("failed to set write deadline: %w", err)
		}
	}
	n, err := netConn.Write(response)
	if err != nil {
		return fmt.Errorf("failed to write HTTP 101 response: %w", err)
	}

	logging.Info("Sent HTTP 101 Switching Protocols response",
		zap.String("remote_addr", remoteAddr),
		zap.Int("bytes_written", n),
	)
	logging.LogHTTPResponse(remoteAddr, 101, 0)
	logging.LogConnection(remoteAddr, "websocket_upgraded")

	conn := protocol.NewConn(netConn, buffered, m.cfg.WriteTimeout, uint64(m.cfg.MaxMessageSize))

	id, err := m.HandleConnection(conn, clientID)
	if err != nil {
		code := protocol.CloseGoingAway
		if errors.Is(err, ErrDuplicateID) {
			code = protocol.ClosePolicyViolation
		}
		_ = conn.WriteClose(code, err.Error())
		_ = conn.Close()
		return err
	}

	m.mu.Lock()
	c := m.conns[id]
	m.mu.Unlock()
	if c == nil {
		// Removed between registration and now (shutdown or failed send).
		return nil
	}

	m.readLoop(c, conn)
	return nil
}

// readLoop processes frames from one connection in arrival order.
func (m *Manager) readLoop(c *connection, conn *protocol.Conn) {
	defer func() {
		m.removeConnection(c, "read loop ended")
		logging.LogConnection(c.remoteAddr, "websocket_closed")
	}()

	for {
		frame, err := conn.ReadFrame(time.Time{})
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				logging.Info("Connection closed by client", zap.String("connection_id", c.id))
			case errors.Is(err, protocol.ErrFrameTooLarge):
				logging.Warn("Frame too large", zap.String("connection_id", c.id), zap.Error(err))
				c.closeWith(protocol.CloseMessageTooBig, "message too big")
			case errors.Is(err, protocol.ErrUnmaskedFrame), errors.Is(err, protocol.ErrUnsupportedFrame):
				logging.Warn("Protocol error", zap.String("connection_id", c.id), zap.Error(err))
				c.closeWith(protocol.CloseProtocolError, err.Error())
			default:
				logging.Info("Connection closed or error reading frame",
					zap.String("connection_id", c.id),
					zap.Error(err),
				)
			}
			return
		}

		m.touch(c)

		switch frame.Opcode {
		case protocol.OpcodeText:
			m.handleText(c, frame.Payload)

		case protocol.OpcodePing:
			if err := c.writePong(frame.Payload); err != nil {
				logging.Warn("Failed to answer ping", zap.String("connection_id", c.id), zap.Error(err))
				return
			}

		case protocol.OpcodePong:
			m.markPong(c)

		case protocol.OpcodeClose:
			logging.Info("Received close frame", zap.String("connection_id", c.id))
			c.closeWith(protocol.CloseNormal, "")
			return

		default:
			logging.Warn("Ignoring non-text frame",
				zap.String("connection_id", c.id),
				zap.String("opcode", frame.OpcodeString()),
			)
		}
	}
}

// handleText decodes one client message. Malformed input is logged and
// dropped; the connection stays open.
func (m *Manager) handleText(c *connection, payload []byte) {
	m.mu.Lock()
	m.messagesReceived++
	handler := m.inbound
	m.mu.Unlock()

	msg, err := protocol.ParseInbound(payload)
	if err != nil {
		logging.Warn("Ignoring malformed WebSocket message",
			zap.String("connection_id", c.id),
			zap.Error(err),
		)
		return
	}

	if _, ok := msg.(protocol.Ping); ok {
		m.SendToClient(c.id, protocol.Pong{ConnectionID: c.id})
		return
	}

	if handler == nil {
		logging.Debug("No inbound handler, dropping message",
			zap.String("connection_id", c.id),
			zap.String("type", string(msg.MessageType())),
		)
		return
	}
	handler(c.id, msg)
}
