// Package watch is a terminal client for the control server's WebSocket
// endpoint. It authenticates with the server's Basic-Auth credentials and
// prints every pushed message as one line.
package watch
