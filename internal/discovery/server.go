package discovery

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Server is a control server found on the network.
type Server struct {
	// Instance is the advertised instance name (e.g., "Web Control")
	Instance string

	// Hostname is the mDNS hostname (e.g., "phone.local.")
	Hostname string

	// IP is the first advertised address, IPv4 preferred
	IP string

	// Port is the HTTP port
	Port int

	// Metadata contains the TXT record data, e.g. "ws=/ws", "version=v1.0.0"
	Metadata map[string]string

	// DiscoveredAt is when the server answered
	DiscoveredAt time.Time
}

// String returns a human-readable representation of the server
func (s *Server) String() string {
	return fmt.Sprintf("%s (%s) at %s", s.Instance, s.Hostname, net.JoinHostPort(s.IP, strconv.Itoa(s.Port)))
}

// BaseURL returns the HTTP base URL of the server
func (s *Server) BaseURL() string {
	return "http://" + net.JoinHostPort(s.IP, strconv.Itoa(s.Port))
}

// WebSocketURL returns the ws:// URL advertised in the "ws" TXT record, or
// the default /ws path.
func (s *Server) WebSocketURL() string {
	path := s.GetMetadata("ws")
	if path == "" {
		path = DefaultWebSocketPath
	}
	return "ws://" + net.JoinHostPort(s.IP, strconv.Itoa(s.Port)) + path
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found
func (s *Server) GetMetadata(key string) string {
	if s.Metadata == nil {
		return ""
	}
	return s.Metadata[key]
}
