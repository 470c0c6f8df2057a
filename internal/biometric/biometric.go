// Package biometric defines the key service the control bridge drives and
// ships an in-process software implementation of it.
//
// On a phone the key service is backed by the platform keystore and every
// private-key operation is gated by a biometric prompt. The software service
// keeps an ECDSA P-256 key in memory instead, which is enough to exercise the
// enrollment and validation flows end to end against a verification API.
package biometric

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNoKeys is returned when signing without a key pair.
	ErrNoKeys = errors.New("no biometric keys exist")

	// ErrUnavailable is returned when biometrics cannot be used.
	ErrUnavailable = errors.New("biometrics not available")
)

// Availability describes the biometric hardware.
type Availability struct {
	Available    bool   `json:"available"`
	BiometryType string `json:"biometryType,omitempty"`
	Reason       string `json:"reason,omitempty"`
}

// KeyService is the device key store.
type KeyService interface {
	CheckAvailability(ctx context.Context) (Availability, error)
	KeysExist(ctx context.Context) (bool, error)
	// CreateKeys replaces any existing key pair and returns the public key.
	CreateKeys(ctx context.Context, prompt string) (publicKey string, err error)
	// CreateSignature signs payload with the private key.
	CreateSignature(ctx context.Context, prompt, payload string) (signature string, err error)
	DeleteKeys(ctx context.Context) error
	// GeneratePayload expands a payload template.
	GeneratePayload(template string) string
}

// GeneratePayload expands {{timestamp}} (unix seconds), {{iso}} (RFC 3339)
// and {{nonce}} (16 random hex characters) in template. An empty template
// yields "<unix-seconds> some message".
func GeneratePayload(template string, now time.Time) string {
	if strings.TrimSpace(template) == "" {
		return fmt.Sprintf("%d some message", now.Unix())
	}

	r := strings.NewReplacer(
		"{{timestamp}}", fmt.Sprint(now.Unix()),
		"{{iso}}", now.UTC().Format(time.RFC3339),
		"{{nonce}}", nonce(),
	)
	return r.Replace(template)
}

func nonce() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("crypto/rand failed: %v", err))
	}
	return hex.EncodeToString(b)
}
