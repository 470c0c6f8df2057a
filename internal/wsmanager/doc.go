// Package wsmanager owns every WebSocket connection of the control server.
//
// The Manager completes the RFC 6455 handshake on a raw TCP connection,
// registers the resulting Connection under a unique id and serves its read
// loop until the peer goes away. Nothing outside this package holds a socket
// or touches the registry; the server and the state bridge talk to clients
// through Broadcast, SendToClient and DisconnectClient only.
//
// # Delivery
//
// Broadcast sends to every live connection. When no connection is live the
// message goes to a bounded FIFO instead, and the next client to connect
// receives it right after its connection-established message:
//
//	connection-established, queued[0], queued[1], ..., later broadcasts
//
// When the queue is full the oldest message is dropped.
//
// # Liveness
//
// A single heartbeat ticker pings every connection. A connection is removed
// when a ping cannot be written, when it was marked not alive by
// HandleNetworkLost, when MaxMissedPongs pings in a row go unanswered, or
// when it has been idle for longer than IdleTimeout (zero disables the idle
// check). Any inbound frame, pongs included, counts as activity.
//
// HandleNetworkRestored gives connections marked not alive another chance:
// each is pinged again, and a connection that has been retried more than
// MaxReconnectAttempts times is removed.
package wsmanager
