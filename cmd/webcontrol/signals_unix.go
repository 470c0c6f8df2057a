//go:build !windows

package main

import (
	"os"
	"syscall"

	"github.com/muurk/webcontrol/internal/lifecycle"
)

// lifecycleSignals maps the user signals to lifecycle events. Network loss has
// no free signal left and is sent with the network-lost control command.
func lifecycleSignals() map[os.Signal]lifecycle.Event {
	return map[os.Signal]lifecycle.Event{
		syscall.SIGUSR1: lifecycle.Background,
		syscall.SIGUSR2: lifecycle.Foreground,
		syscall.SIGHUP:  lifecycle.NetworkRestored,
	}
}
