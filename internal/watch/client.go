package watch

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/muurk/webcontrol/internal/logging"
	"go.uber.org/zap"
)

// ErrUnauthorized is returned when the server rejects the credentials.
var ErrUnauthorized = errors.New("server rejected credentials")

// Options configures a watch session.
type Options struct {
	// Server is the control server address: "host:port", an http(s) URL or a
	// ws(s) URL. A missing path defaults to /ws.
	Server   string
	Username string
	Password string

	// ClientID is sent as ?id= so the server uses it as the connection id.
	ClientID string

	// RequestState asks for a state-sync right after connecting.
	RequestState bool

	// PingInterval sends application-level pings (0 disables them).
	PingInterval time.Duration

	HandshakeTimeout time.Duration
}

// Client streams server messages to a writer, one line per message.
type Client struct {
	opts      Options
	formatter Formatter
	out       io.Writer
	dialer    *websocket.Dialer

	writeMu sync.Mutex
}

// NewClient creates a client that writes formatted lines to out.
func NewClient(opts Options, formatter Formatter, out io.Writer) *Client {
	dialer := *websocket.DefaultDialer
	if opts.HandshakeTimeout > 0 {
		dialer.HandshakeTimeout = opts.HandshakeTimeout
	}
	return &Client{
		opts:      opts,
		formatter: formatter,
		out:       out,
		dialer:    &dialer,
	}
}

// WebSocketURL normalizes a server address into the URL to dial.
func WebSocketURL(server, clientID string) (string, error) {
	if server == "" {
		return "", fmt.Errorf("server address is required")
	}
	if !strings.Contains(server, "://") {
		server = "ws://" + server
	}

	u, err := url.Parse(server)
	if err != nil {
		return "", fmt.Errorf("invalid server address %q: %w", server, err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid server address %q: missing host", server)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/ws"
	}
	if clientID != "" {
		q := u.Query()
		q.Set("id", clientID)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// BasicAuthHeader builds the Authorization header value for the credentials.
func BasicAuthHeader(username, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
}

// Run connects and prints messages until ctx is cancelled or the server
// closes the connection. A normal close returns nil.
func (c *Client) Run(ctx context.Context) error {
	target, err := WebSocketURL(c.opts.Server, c.opts.ClientID)
	if err != nil {
		return err
	}

	header := http.Header{}
	header.Set("Authorization", BasicAuthHeader(c.opts.Username, c.opts.Password))

	logging.Debug("Dialing control server", zap.String("url", target))
	conn, resp, err := c.dialer.DialContext(ctx, target, header)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			if resp.StatusCode == http.StatusUnauthorized {
				return ErrUnauthorized
			}
			return fmt.Errorf("WebSocket upgrade failed: HTTP %d", resp.StatusCode)
		}
		return fmt.Errorf("failed to connect to %s: %w", target, err)
	}
	defer conn.Close()

	logging.Info("Connected to control server", zap.String("url", target))

	if c.opts.RequestState {
		if err := c.send(conn, "request-state"); err != nil {
			return err
		}
	}

	done := make(chan struct{})
	defer close(done)
	go c.keepalive(ctx, conn, done)

	readErr := make(chan error, 1)
	go func() { readErr <- c.readLoop(conn) }()

	select {
	case err := <-readErr:
		return err
	case <-ctx.Done():
		c.writeMu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		// Wait for the server's close frame, or give up after a second.
		select {
		case <-readErr:
		case <-time.After(time.Second):
		}
		return nil
	}
}

func (c *Client) readLoop(conn *websocket.Conn) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logging.Info("Control server closed the connection", zap.Error(err))
				return nil
			}
			return fmt.Errorf("connection lost: %w", err)
		}

		line, err := c.formatter.Format(data)
		if err != nil {
			logging.Warn("Ignoring malformed server message", zap.Error(err))
			continue
		}
		if _, err := fmt.Fprintln(c.out, line); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
}

func (c *Client) keepalive(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	if c.opts.PingInterval <= 0 {
		return
	}
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-ticker.C:
			if err := c.send(conn, "ping"); err != nil {
				logging.Debug("Ping failed", zap.Error(err))
				return
			}
		}
	}
}

func (c *Client) send(conn *websocket.Conn, msgType string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"`+msgType+`"}`)); err != nil {
		return fmt.Errorf("failed to send %s: %w", msgType, err)
	}
	return nil
}
