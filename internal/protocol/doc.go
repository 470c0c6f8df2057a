// Package protocol implements the WebSocket wire layer of the control server.
//
// It contains everything that touches bytes once a TCP connection has been
// accepted and an HTTP request has been parsed:
//
//   - SHA1 and GenerateAcceptKey: the RFC 6455 handshake proof, computed with a
//     self-contained SHA-1 so the handshake has no hash-library dependency
//   - ReadFrame / EncodeFrame: single-frame codec (no fragmentation, no
//     extensions), masking handled on read
//   - Conn: a net.Conn wrapper with serialized writes and write deadlines
//   - Payload / InboundMessage: the closed sets of JSON messages exchanged
//     with the control page
//
// # Handshake
//
//	accept := protocol.GenerateAcceptKey(req.Header("sec-websocket-key"))
//	conn.Write(protocol.HandshakeResponse(accept))
//
// # Message Envelope
//
// Every text frame carries a JSON object:
//
//	{"type": "log-update", "timestamp": "2025-01-02T15:04:05Z", "data": {...}}
//
// Server-to-client messages are built with NewOutbound from one of the Payload
// variants. Client-to-server frames are decoded with ParseInbound into one of
// the InboundMessage variants and dispatched with a type switch.
package protocol
