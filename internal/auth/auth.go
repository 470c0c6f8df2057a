// Package auth implements the Basic-Auth gate in front of the control server.
//
// A Middleware holds at most one credential set. Validation reads only the
// Authorization header of a raw HTTP request and is pure given the current
// credentials.
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"math/big"
	"strings"
	"sync"
)

// DefaultUsername is the fixed username of generated credentials.
const DefaultUsername = "admin"

// Realm is advertised in the WWW-Authenticate challenge.
const Realm = "Web Control"

// Failure bodies, one per row of the decision table.
const (
	MsgNotConfigured = "Authentication not configured"
	MsgRequired      = "Authentication required"
	MsgInvalidFormat = "Invalid authentication format"
	MsgInvalidCreds  = "Invalid credentials"
)

const (
	challengeHeader   = "WWW-Authenticate"
	passwordDigits    = 6
	passwordMinimum   = 100000
	passwordRangeSize = 900000
)

// Credentials is a username/password pair.
type Credentials struct {
	Username string
	Password string
}

// Result is the outcome of ValidateRequest. For a valid request StatusCode is
// 200 and Headers and Body are empty.
type Result struct {
	IsValid    bool
	StatusCode int
	StatusText string
	Headers    map[string]string
	Body       string
}

// Middleware validates Basic-Auth headers against a single credential slot.
type Middleware struct {
	mu    sync.RWMutex
	creds *Credentials
}

// New returns a Middleware with no credentials configured.
func New() *Middleware {
	return &Middleware{}
}

// SetCredentials replaces the active credentials.
func (m *Middleware) SetCredentials(creds Credentials) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := creds
	m.creds = &c
}

// ClearCredentials removes the active credentials. Safe to call repeatedly.
func (m *Middleware) ClearCredentials() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds = nil
}

// Credentials returns the active credentials, if any.
func (m *Middleware) Credentials() (Credentials, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.creds == nil {
		return Credentials{}, false
	}
	return *m.creds, true
}

// ValidateRequest checks the Authorization header of a raw HTTP request.
func (m *Middleware) ValidateRequest(rawHTTP string) Result {
	creds, ok := m.Credentials()
	if !ok {
		return Result{
			StatusCode: 500,
			StatusText: "Internal Server Error",
			Headers:    map[string]string{},
			Body:       MsgNotConfigured,
		}
	}

	header, found := findHeader(rawHTTP, "authorization")
	if !found {
		return unauthorized(MsgRequired)
	}

	user, pass, ok := decodeBasic(header)
	if !ok {
		return unauthorized(MsgInvalidFormat)
	}

	userMatch := subtle.ConstantTimeCompare([]byte(user), []byte(creds.Username))
	passMatch := subtle.ConstantTimeCompare([]byte(pass), []byte(creds.Password))
	if userMatch&passMatch != 1 {
		return unauthorized(MsgInvalidCreds)
	}

	return Result{
		IsValid:    true,
		StatusCode: 200,
		StatusText: "OK",
		Headers:    map[string]string{},
	}
}

func unauthorized(body string) Result {
	return Result{
		StatusCode: 401,
		StatusText: "Unauthorized",
		Headers: map[string]string{
			challengeHeader: fmt.Sprintf("Basic realm=%q", Realm),
		},
		Body: body,
	}
}

// findHeader scans the header section of a raw request for name, comparing
// case-insensitively. The request line and the body are ignored.
func findHeader(rawHTTP, name string) (string, bool) {
	head := rawHTTP
	if i := strings.Index(head, "\r\n\r\n"); i >= 0 {
		head = head[:i]
	} else if i := strings.Index(head, "\n\n"); i >= 0 {
		head = head[:i]
	}

	lines := strings.Split(head, "\n")
	for _, line := range lines[1:] {
		line = strings.TrimRight(line, "\r")
		colon := strings.IndexByte(line, ':')
		if colon <= 0 {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(line[:colon]), name) {
			return strings.TrimSpace(line[colon+1:]), true
		}
	}
	return "", false
}

// decodeBasic parses "Basic <base64(user:pass)>".
func decodeBasic(value string) (user, pass string, ok bool) {
	scheme, encoded, found := strings.Cut(strings.TrimSpace(value), " ")
	if !found || !strings.EqualFold(scheme, "Basic") {
		return "", "", false
	}
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return "", "", false
	}

	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", "", false
	}

	user, pass, found = strings.Cut(string(decoded), ":")
	if !found {
		return "", "", false
	}
	return user, pass, true
}

// GenerateRandomPassword returns a uniformly random 6-digit numeric string in
// the range 100000-999999.
func GenerateRandomPassword() string {
	n, err := rand.Int(rand.Reader, big.NewInt(passwordRangeSize))
	if err != nil {
		// crypto/rand only fails when the OS entropy source is broken.
		panic(fmt.Sprintf("auth: reading random source: %v", err))
	}
	return fmt.Sprintf("%0*d", passwordDigits, n.Int64()+passwordMinimum)
}

// CreateAuthCredentials returns the fixed username with a fresh password.
func CreateAuthCredentials() Credentials {
	return Credentials{
		Username: DefaultUsername,
		Password: GenerateRandomPassword(),
	}
}
