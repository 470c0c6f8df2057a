package wsmanager

import (
	"encoding/json"
	"errors"
	"sync"
	"time"
)

var errBrokenPipe = errors.New("broken pipe")

type fakeSocket struct {
	mu        sync.Mutex
	texts     [][]byte
	pings     int
	pongs     [][]byte
	closes    []uint16
	closed    bool
	failText  bool
	failPing  bool
	failAfter int // fail text writes once this many have succeeded (0 = never)
	id        string
}

func (s *fakeSocket) WriteText(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failText || (s.failAfter > 0 && len(s.texts) >= s.failAfter) {
		return errBrokenPipe
	}
	s.texts = append(s.texts, append([]byte(nil), payload...))
	return nil
}

func (s *fakeSocket) WritePing([]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failPing {
		return errBrokenPipe
	}
	s.pings++
	return nil
}

func (s *fakeSocket) WritePong(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pongs = append(s.pongs, payload)
	return nil
}

func (s *fakeSocket) WriteClose(code uint16, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes = append(s.closes, code)
	return nil
}

func (s *fakeSocket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSocket) SetID(id string) {
	s.mu.Lock()
	s.id = id
	s.mu.Unlock()
}

func (s *fakeSocket) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *fakeSocket) pingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pings
}

type sentMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// messages decodes everything written to the socket.
func (s *fakeSocket) messages() []sentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]sentMessage, 0, len(s.texts))
	for _, raw := range s.texts {
		var msg sentMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			panic(err)
		}
		out = append(out, msg)
	}
	return out
}

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 2, 15, 4, 5, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestManager(mutate func(*Config)) (*Manager, *fakeClock) {
	cfg := DefaultConfig()
	cfg.HeartbeatInterval = 0
	if mutate != nil {
		mutate(&cfg)
	}
	clock := newFakeClock()
	m := New(cfg)
	m.now = clock.Now
	return m, clock
}
