package server

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/muurk/webcontrol/internal/logging"
	"github.com/muurk/webcontrol/internal/version"
	"go.uber.org/zap"
)

var headerTerminator = []byte("\r\n\r\n")

var (
	errRequestTooLarge   = errors.New("request exceeds size limit")
	errIncompleteRequest = errors.New("connection closed before request was complete")
)

// Request is a parsed HTTP/1.1 request. Header names are lower-cased.
type Request struct {
	Method  string
	Path    string
	Query   string
	Version string
	Headers map[string]string
	Body    []byte

	// Raw is the request exactly as received; authentication reads its
	// headers from here.
	Raw []byte
}

// Header returns the value of the named header, case-insensitively.
func (r *Request) Header(name string) string {
	return r.Headers[strings.ToLower(name)]
}

// QueryParam returns the first value of a query parameter. Values are not
// percent-decoded.
func (r *Request) QueryParam(name string) string {
	for _, pair := range strings.Split(r.Query, "&") {
		k, v, _ := strings.Cut(pair, "=")
		if k == name {
			return v
		}
	}
	return ""
}

// ParseRequest parses a complete HTTP/1.1 request. It returns nil when raw is
// empty, malformed, or shorter than its Content-Length.
func ParseRequest(raw []byte) *Request {
	end := bytes.Index(raw, headerTerminator)
	if end < 0 {
		return nil
	}

	lines := strings.Split(string(raw[:end]), "\r\n")
	parts := strings.Split(lines[0], " ")
	if len(parts) != 3 {
		return nil
	}
	method, target, proto := parts[0], parts[1], parts[2]
	if method == "" || !strings.HasPrefix(target, "/") || !strings.HasPrefix(proto, "HTTP/") {
		return nil
	}
	for _, r := range method {
		if r < 'A' || r > 'Z' {
			return nil
		}
	}

	headers := make(map[string]string, len(lines)-1)
	for _, line := range lines[1:] {
		name, value, ok := strings.Cut(line, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil
		}
		headers[strings.ToLower(name)] = strings.TrimSpace(value)
	}

	body := raw[end+len(headerTerminator):]
	if cl, ok := headers["content-length"]; ok {
		n, err := strconv.Atoi(cl)
		if err != nil || n < 0 || len(body) < n {
			return nil
		}
		body = body[:n]
	}

	path, query, _ := strings.Cut(target, "?")
	return &Request{
		Method:  method,
		Path:    path,
		Query:   query,
		Version: proto,
		Headers: headers,
		Body:    append([]byte(nil), body...),
		Raw:     raw,
	}
}

// requestLength reports how many bytes of buf make up the first request, or
// -1 when more bytes are needed. A bad Content-Length ends the request at the
// header terminator so ParseRequest can reject it.
func requestLength(buf []byte) int {
	end := bytes.Index(buf, headerTerminator)
	if end < 0 {
		return -1
	}
	headerEnd := end + len(headerTerminator)

	contentLength := 0
	for _, line := range strings.Split(string(buf[:end]), "\r\n")[1:] {
		name, value, ok := strings.Cut(line, ":")
		if ok && strings.EqualFold(strings.TrimSpace(name), "content-length") {
			n, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil || n < 0 {
				return headerEnd
			}
			contentLength = n
		}
	}

	if len(buf) < headerEnd+contentLength {
		return -1
	}
	return headerEnd + contentLength
}

// readRequest reads from conn until one request is complete. It returns the
// request bytes and whatever was read beyond them.
func readRequest(conn net.Conn, timeout time.Duration, maxSize int) (raw, rest []byte, err error) {
	if timeout > 0 {
		if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			return nil, nil, fmt.Errorf("failed to set read deadline: %w", err)
		}
		defer func() { _ = conn.SetReadDeadline(time.Time{}) }()
	}

	var buf []byte
	chunk := make([]byte, 4096)
	for {
		if n := requestLength(buf); n >= 0 {
			return buf[:n], buf[n:], nil
		}
		if maxSize > 0 && len(buf) > maxSize {
			return buf, nil, errRequestTooLarge
		}

		n, err := conn.Read(chunk)
		buf = append(buf, chunk[:n]...)
		if err != nil {
			if n := requestLength(buf); n >= 0 {
				return buf[:n], buf[n:], nil
			}
			if len(buf) == 0 {
				return nil, nil, err
			}
			return buf, nil, fmt.Errorf("%w: %v", errIncompleteRequest, err)
		}
	}
}

// statusText maps the status codes this server produces to reason phrases.
var statusText = map[int]string{
	101: "Switching Protocols",
	200: "OK",
	400: "Bad Request",
	401: "Unauthorized",
	404: "Not Found",
	405: "Method Not Allowed",
	429: "Too Many Requests",
	500: "Internal Server Error",
}

// StatusText returns the reason phrase for code. Codes outside the table map
// to "Unknown".
func StatusText(code int) string {
	if text, ok := statusText[code]; ok {
		return text
	}
	return "Unknown"
}

// buildResponse renders a complete HTTP/1.1 response. Every response closes
// the connection.
func buildResponse(status int, headers map[string]string, contentType string, body []byte) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "HTTP/1.1 %d %s\r\n", status, StatusText(status))
	fmt.Fprintf(&b, "Server: %s\r\n", version.ServerHeader())
	if contentType != "" {
		fmt.Fprintf(&b, "Content-Type: %s\r\n", contentType)
	}
	fmt.Fprintf(&b, "Content-Length: %d\r\n", len(body))
	b.WriteString("Connection: close\r\n")
	for name, value := range headers {
		fmt.Fprintf(&b, "%s: %s\r\n", name, value)
	}
	b.WriteString("\r\n")
	b.Write(body)
	return b.Bytes()
}

// writeResponse writes a response and logs it.
func writeResponse(conn net.Conn, timeout time.Duration, status int, headers map[string]string, contentType string, body []byte) error {
	remoteAddr := conn.RemoteAddr().String()
	if timeout > 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
			return fmt.Errorf("failed to set write deadline: %w", err)
		}
	}

	if _, err := conn.Write(buildResponse(status, headers, contentType, body)); err != nil {
		logging.Warn("Failed to write HTTP response",
			zap.String("remote_addr", remoteAddr),
			zap.Int("status", status),
			zap.Error(err),
		)
		return fmt.Errorf("failed to write HTTP response: %w", err)
	}

	logging.LogHTTPResponse(remoteAddr, status, len(body))
	return nil
}

// isUpgradeRequest reports whether req asks for a WebSocket upgrade, either
// by path or by its Upgrade header.
func isUpgradeRequest(req *Request) bool {
	if strings.EqualFold(req.Header("upgrade"), "websocket") {
		return true
	}
	return req.Method == "GET" && (req.Path == "/ws" || req.Path == "/upgrade")
}

// LogRequestDetails logs the parsed request at info level and its WebSocket
// headers at debug level.
func LogRequestDetails(req *Request, remoteAddr string) {
	logging.LogHTTPRequest(remoteAddr, req.Method, req.Path, req.Headers)

	if isUpgradeRequest(req) {
		logging.Debug("WebSocket upgrade request details",
			zap.String("remote_addr", remoteAddr),
			zap.String("host", req.Header("host")),
			zap.String("origin", req.Header("origin")),
			zap.String("sec_websocket_key", req.Header("sec-websocket-key")),
			zap.String("sec_websocket_version", req.Header("sec-websocket-version")),
			zap.String("user_agent", req.Header("user-agent")),
		)
	}
}
