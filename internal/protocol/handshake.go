package protocol

import (
	"encoding/base64"
	"strings"
)

// WebSocketGUID is the fixed GUID appended to the client key (RFC 6455 §1.3).
const WebSocketGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

// GenerateAcceptKey returns the Sec-WebSocket-Accept value for a client's
// Sec-WebSocket-Key: base64(SHA1(key + GUID)).
func GenerateAcceptKey(key string) string {
	digest := SHA1([]byte(key + WebSocketGUID))
	return base64.StdEncoding.EncodeToString(digest[:])
}

// HandshakeResponse builds the 101 Switching Protocols response.
func HandshakeResponse(acceptKey string) []byte {
	var b strings.Builder
	b.WriteString("HTTP/1.1 101 Switching Protocols\r\n")
	b.WriteString("Upgrade: websocket\r\n")
	b.WriteString("Connection: Upgrade\r\n")
	b.WriteString("Sec-WebSocket-Accept: ")
	b.WriteString(acceptKey)
	b.WriteString("\r\n\r\n")
	return []byte(b.String())
}
