package bridge

import (
	"github.com/muurk/webcontrol/internal/logging"
	"github.com/muurk/webcontrol/internal/protocol"
	"github.com/muurk/webcontrol/internal/types"
	"go.uber.org/zap"
)

// HandleInbound handles one decoded WebSocket message from connectionID.
// Failures are logged; WebSocket clients learn outcomes through the
// broadcasts that follow.
func (b *Bridge) HandleInbound(connectionID string, msg protocol.InboundMessage) {
	logging.Debug("Inbound message",
		zap.String("connection_id", connectionID),
		zap.String("type", string(msg.MessageType())),
	)

	switch m := msg.(type) {
	case protocol.Ping:
		if b.transport != nil {
			b.transport.SendToClient(connectionID, protocol.Pong{ConnectionID: connectionID})
		}

	case protocol.RequestState:
		if b.transport != nil {
			b.transport.SendToClient(connectionID, protocol.StateSync{BridgeState: b.Snapshot()})
		}

	case protocol.UpdateConfig:
		if err := b.UpdateConfiguration(m.Kind, m.Config); err != nil {
			logging.Warn("Rejected configuration update",
				zap.String("connection_id", connectionID),
				zap.Error(err),
			)
		}

	case protocol.ExecuteOperation:
		start := b.StartEnrollment
		if m.Operation == types.OperationValidation {
			start = b.StartValidation
		}
		if _, err := start(m.Config); err != nil {
			logging.Warn("Operation not started",
				zap.String("connection_id", connectionID),
				zap.String("operation", string(m.Operation)),
				zap.Error(err),
			)
		}

	case protocol.CancelOperation:
		b.CancelCurrentOperation()

	case protocol.ClearLogs:
		b.ClearLogs()

	default:
		logging.Warn("Unhandled inbound message",
			zap.String("connection_id", connectionID),
			zap.String("type", string(msg.MessageType())),
		)
	}
}
