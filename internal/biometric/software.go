package biometric

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/muurk/webcontrol/internal/logging"
	"go.uber.org/zap"
)

// SoftwareKeyService keeps one ECDSA P-256 key pair in memory. Public keys
// are base64 PKIX DER; signatures are base64 ASN.1 over SHA-256 of the
// payload.
type SoftwareKeyService struct {
	mu        sync.Mutex
	key       *ecdsa.PrivateKey
	available bool
	now       func() time.Time
}

// NewSoftwareKeyService creates a service with no key pair.
func NewSoftwareKeyService() *SoftwareKeyService {
	return &SoftwareKeyService{available: true, now: time.Now}
}

// SetAvailable simulates biometric hardware being enabled or disabled.
func (s *SoftwareKeyService) SetAvailable(available bool) {
	s.mu.Lock()
	s.available = available
	s.mu.Unlock()
}

// CheckAvailability reports the simulated hardware state.
func (s *SoftwareKeyService) CheckAvailability(ctx context.Context) (Availability, error) {
	if err := ctx.Err(); err != nil {
		return Availability{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.available {
		return Availability{Available: false, Reason: "Biometrics disabled"}, nil
	}
	return Availability{Available: true, BiometryType: "Software"}, nil
}

// KeysExist reports whether a key pair has been created.
func (s *SoftwareKeyService) KeysExist(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.key != nil, nil
}

// CreateKeys generates a new key pair, replacing the previous one.
func (s *SoftwareKeyService) CreateKeys(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.available {
		return "", ErrUnavailable
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return "", fmt.Errorf("failed to generate key pair: %w", err)
	}
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return "", fmt.Errorf("failed to encode public key: %w", err)
	}
	s.key = key

	logging.Debug("Software key pair created", zap.String("prompt", prompt))
	return base64.StdEncoding.EncodeToString(der), nil
}

// CreateSignature signs payload.
func (s *SoftwareKeyService) CreateSignature(ctx context.Context, prompt, payload string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.available {
		return "", ErrUnavailable
	}
	if s.key == nil {
		return "", ErrNoKeys
	}

	digest := sha256.Sum256([]byte(payload))
	sig, err := ecdsa.SignASN1(rand.Reader, s.key, digest[:])
	if err != nil {
		return "", fmt.Errorf("failed to sign payload: %w", err)
	}

	logging.Debug("Payload signed", zap.String("prompt", prompt), zap.Int("payload_len", len(payload)))
	return base64.StdEncoding.EncodeToString(sig), nil
}

// DeleteKeys removes the key pair. Deleting when none exists is not an error.
func (s *SoftwareKeyService) DeleteKeys(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.key = nil
	s.mu.Unlock()
	return nil
}

// GeneratePayload expands template at the current time.
func (s *SoftwareKeyService) GeneratePayload(template string) string {
	return GeneratePayload(template, s.now())
}

// Verify checks a signature produced by CreateSignature against a public key
// returned by CreateKeys.
func Verify(publicKey, payload, signature string) (bool, error) {
	der, err := base64.StdEncoding.DecodeString(publicKey)
	if err != nil {
		return false, fmt.Errorf("invalid public key encoding: %w", err)
	}
	pub, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return false, fmt.Errorf("invalid public key: %w", err)
	}
	ecPub, ok := pub.(*ecdsa.PublicKey)
	if !ok {
		return false, fmt.Errorf("public key is %T, not ECDSA", pub)
	}
	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false, fmt.Errorf("invalid signature encoding: %w", err)
	}

	digest := sha256.Sum256([]byte(payload))
	return ecdsa.VerifyASN1(ecPub, digest[:], sig), nil
}
