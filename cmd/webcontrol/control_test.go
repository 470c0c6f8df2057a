package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muurk/webcontrol/internal/lifecycle"
	"github.com/muurk/webcontrol/internal/server"
)

func TestRunControl(t *testing.T) {
	events := lifecycle.NewDispatcher()
	var mu sync.Mutex
	var got []lifecycle.Event
	events.Subscribe(func(e lifecycle.Event) {
		mu.Lock()
		got = append(got, e)
		mu.Unlock()
	})

	restarts := 0
	restart := func() error {
		restarts++
		if restarts > 1 {
			return server.ErrAlreadyRunning
		}
		return nil
	}

	in := strings.NewReader("network-lost\n\n  network-restored  \nbogus\nrestart\nrestart\nhelp\n")
	var out bytes.Buffer
	runControl(context.Background(), in, &out, events, restart)

	mu.Lock()
	assert.Equal(t, []lifecycle.Event{lifecycle.NetworkLost, lifecycle.NetworkRestored}, got)
	mu.Unlock()
	assert.Equal(t, 2, restarts)
	assert.Contains(t, out.String(), "network-lost event sent")
	assert.Contains(t, out.String(), `unknown command "bogus"`)
	assert.Contains(t, out.String(), "restart failed: Server is already running")
	assert.Contains(t, out.String(), controlHelp)
}

type blockingReader struct{ done chan struct{} }

func (r blockingReader) Read([]byte) (int, error) {
	<-r.done
	return 0, errors.New("closed")
}

func TestRunControl_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	in := blockingReader{done: make(chan struct{})}
	defer close(in.done)

	finished := make(chan struct{})
	go func() {
		runControl(ctx, in, &bytes.Buffer{}, lifecycle.NewDispatcher(), func() error { return nil })
		close(finished)
	}()

	cancel()
	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		require.Fail(t, "runControl did not return after cancel")
	}
}
