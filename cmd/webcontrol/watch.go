package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/webcontrol/internal/auth"
	"github.com/muurk/webcontrol/internal/discovery"
	"github.com/muurk/webcontrol/internal/ui"
	"github.com/muurk/webcontrol/internal/watch"
)

// Watch command flags
var (
	watchUser         string
	watchPassword     string
	watchClientID     string
	watchNoColor      bool
	watchPing         time.Duration
	watchScanTimeout  int
	watchRequestState bool
)

var watchCmd = &cobra.Command{
	Use:   "watch [address]",
	Short: "Stream messages from a running control server",
	Long: `Connect to a control server's WebSocket endpoint and print every message it
pushes, one line per message.

The address may be host:port or a URL. Without an address the local network
is scanned over mDNS and the first server found is used. The password is
prompted for when --password is not given.`,
	Example: `  # Watch a server by address
  webcontrol watch 192.168.1.20:8080

  # Find a server over mDNS and watch it
  webcontrol watch

  # Non-interactive use
  webcontrol watch localhost:8080 --password 123456 --no-color`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchUser, "user", auth.DefaultUsername, "Basic-Auth username")
	watchCmd.Flags().StringVar(&watchPassword, "password", "", "Basic-Auth password (prompted when empty)")
	watchCmd.Flags().StringVar(&watchClientID, "id", "", "Connection id to request from the server")
	watchCmd.Flags().BoolVar(&watchNoColor, "no-color", false, "Disable colored output")
	watchCmd.Flags().DurationVar(&watchPing, "ping", 0, "Send application pings at this interval (0 = off)")
	watchCmd.Flags().IntVar(&watchScanTimeout, "timeout", 5, "mDNS scan timeout in seconds when no address is given")
	watchCmd.Flags().BoolVar(&watchRequestState, "state", true, "Request a state sync after connecting")

	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	address := ""
	if len(args) == 1 {
		address = args[0]
	} else {
		found, err := findServer(ctx, time.Duration(watchScanTimeout)*time.Second)
		if err != nil {
			return err
		}
		address = found.WebSocketURL()
		fmt.Printf("Found %s\n", found)
	}

	password := watchPassword
	if password == "" {
		var err error
		password, err = watch.PromptPassword(os.Stdin, os.Stderr)
		if err != nil {
			return err
		}
	}

	formatter := watch.Formatter{Color: !watchNoColor && ui.IsTerminal(os.Stdout)}
	client := watch.NewClient(watch.Options{
		Server:           address,
		Username:         watchUser,
		Password:         password,
		ClientID:         watchClientID,
		RequestState:     watchRequestState,
		PingInterval:     watchPing,
		HandshakeTimeout: 10 * time.Second,
	}, formatter, os.Stdout)

	err := client.Run(ctx)
	if errors.Is(err, watch.ErrUnauthorized) {
		return fmt.Errorf("%w: check the password printed by 'webcontrol serve'", err)
	}
	return err
}

// findServer returns the first control server that answers an mDNS scan.
func findServer(ctx context.Context, timeout time.Duration) (*discovery.Server, error) {
	fmt.Printf("No address given, scanning for control servers (timeout: %s)...\n", timeout)
	servers, err := discovery.ScanForServers(ctx, timeout)
	if err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}
	if len(servers) == 0 {
		return nil, fmt.Errorf("no control servers found; pass an address or start 'webcontrol serve --advertise'")
	}
	return servers[0], nil
}
