package wsmanager

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckHeartbeats_RemovesAfterMissedPongs(t *testing.T) {
	m, _ := newTestManager(func(c *Config) { c.IdleTimeout = 0 })
	s := &fakeSocket{}
	_, err := m.HandleConnection(s, "")
	require.NoError(t, err)

	// Three pings go out unanswered; the fourth sweep evicts.
	for i := 1; i <= 3; i++ {
		m.CheckHeartbeats()
		assert.Equal(t, i, s.pingCount())
		assert.Equal(t, 1, m.Stats().ActiveConnections, "sweep %d", i)
	}
	m.CheckHeartbeats()

	assert.Equal(t, 0, m.Stats().ActiveConnections)
	assert.Equal(t, uint64(1), m.Stats().TotalConnections)
	assert.True(t, s.isClosed())
}

func TestCheckHeartbeats_PongKeepsConnection(t *testing.T) {
	m, clock := newTestManager(nil)
	s := &fakeSocket{}
	_, err := m.HandleConnection(s, "")
	require.NoError(t, err)
	c := m.conns[m.Connections()[0].ID]

	for i := 0; i < 10; i++ {
		clock.Advance(30 * time.Second)
		m.CheckHeartbeats()
		m.markPong(c)
	}

	assert.Equal(t, 1, m.Stats().ActiveConnections)
	assert.Equal(t, 10, s.pingCount())
}

func TestCheckHeartbeats_IdleTimeout(t *testing.T) {
	tests := []struct {
		name        string
		idleTimeout time.Duration
		wantActive  int
	}{
		{"idle eviction enabled", 60 * time.Second, 0},
		{"idle eviction disabled", 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, clock := newTestManager(func(c *Config) { c.IdleTimeout = tt.idleTimeout })
			_, err := m.HandleConnection(&fakeSocket{}, "")
			require.NoError(t, err)

			clock.Advance(61 * time.Second)
			m.CheckHeartbeats()

			assert.Equal(t, tt.wantActive, m.Stats().ActiveConnections)
		})
	}
}

func TestCheckHeartbeats_PingFailureRemoves(t *testing.T) {
	m, _ := newTestManager(nil)
	s := &fakeSocket{failPing: true}
	_, err := m.HandleConnection(s, "")
	require.NoError(t, err)

	m.CheckHeartbeats()

	assert.Equal(t, 0, m.Stats().ActiveConnections)
	assert.True(t, s.isClosed())
}

func TestNetworkLost_RemovedAtNextSweep(t *testing.T) {
	m, _ := newTestManager(nil)
	_, _ = m.HandleConnection(&fakeSocket{}, "a")
	_, _ = m.HandleConnection(&fakeSocket{}, "b")

	m.HandleNetworkLost()
	assert.Equal(t, 2, m.Stats().ActiveConnections, "network loss alone removes nothing")
	for _, info := range m.Connections() {
		assert.False(t, info.IsAlive)
	}

	m.Broadcast(logUpdate("while offline"))
	assert.Equal(t, 1, m.Stats().QueuedMessages, "no live connection, message queued")

	m.CheckHeartbeats()
	assert.Equal(t, 0, m.Stats().ActiveConnections)
}

func TestNetworkRestored_RepingsAndEvictsAfterMaxAttempts(t *testing.T) {
	m, _ := newTestManager(func(c *Config) { c.MaxReconnectAttempts = 3 })
	s := &fakeSocket{}
	id, err := m.HandleConnection(s, "")
	require.NoError(t, err)

	for attempt := 1; attempt <= 3; attempt++ {
		m.HandleNetworkLost()
		m.HandleNetworkRestored()

		infos := m.Connections()
		require.Len(t, infos, 1, "attempt %d", attempt)
		assert.True(t, infos[0].IsAlive)
		assert.Equal(t, attempt, infos[0].ReconnectAttempts)
	}
	assert.Equal(t, 3, s.pingCount())

	m.HandleNetworkLost()
	m.HandleNetworkRestored()
	assert.Empty(t, m.Connections())
	assert.False(t, m.SendToClient(id, logUpdate("gone")))
}

func TestNetworkRestored_PongResetsAttempts(t *testing.T) {
	m, _ := newTestManager(nil)
	id, _ := m.HandleConnection(&fakeSocket{}, "")

	m.HandleNetworkLost()
	m.HandleNetworkRestored()
	m.markPong(m.conns[id])

	infos := m.Connections()
	require.Len(t, infos, 1)
	assert.Equal(t, 0, infos[0].ReconnectAttempts)
	assert.Equal(t, 0, infos[0].MissedPongs)
}

func TestNetworkRestored_FailedPingRemoves(t *testing.T) {
	m, _ := newTestManager(nil)
	s := &fakeSocket{failPing: true}
	_, _ = m.HandleConnection(s, "")

	m.HandleNetworkLost()
	m.HandleNetworkRestored()

	assert.Equal(t, 0, m.Stats().ActiveConnections)
}
