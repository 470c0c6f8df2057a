package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/muurk/webcontrol/internal/lifecycle"
)

const controlHelp = `Commands:
  restart           start the server again after it was stopped
  background        host moved to the background
  foreground        host returned to the foreground
  network-lost      host lost connectivity
  network-restored  host connectivity came back
  help              show this list`

// runControl reads one command per line from in until ctx ends or in is
// exhausted. Lifecycle event names are emitted on events; "restart" calls
// restart. Results and errors are written to out.
func runControl(ctx context.Context, in io.Reader, out io.Writer, events *lifecycle.Dispatcher, restart func() error) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			handleControlLine(strings.TrimSpace(line), out, events, restart)
		}
	}
}

func handleControlLine(line string, out io.Writer, events *lifecycle.Dispatcher, restart func() error) {
	switch line {
	case "":
		return
	case "help", "?":
		fmt.Fprintln(out, controlHelp)
		return
	case "restart":
		if err := restart(); err != nil {
			fmt.Fprintf(out, "restart failed: %v\n", err)
		}
		return
	}

	e, err := lifecycle.ParseEvent(line)
	if err != nil {
		fmt.Fprintf(out, "unknown command %q (type 'help' for a list)\n", line)
		return
	}
	events.Emit(e)
	fmt.Fprintf(out, "%s event sent\n", e)
}
