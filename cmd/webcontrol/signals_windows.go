//go:build windows

package main

import (
	"os"

	"github.com/muurk/webcontrol/internal/lifecycle"
)

// Windows has no user signals to map.
func lifecycleSignals() map[os.Signal]lifecycle.Event {
	return nil
}
