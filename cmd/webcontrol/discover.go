package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/webcontrol/internal/discovery"
)

// Discover command flags
var (
	discoverTimeout int
	discoverJSON    bool
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Scan for control servers on the network",
	Long: `Scan for control servers using mDNS/DNS-SD discovery.

Servers started with --advertise register the ` + discovery.ServiceType + ` service.
This command lists every server that answers within the timeout with its
address and TXT metadata.`,
	Example: `  # Scan for 5 seconds (default)
  webcontrol discover

  # Longer scan for busy networks
  webcontrol discover --timeout 15

  # JSON output for scripting
  webcontrol discover --json`,
	RunE: runDiscover,
}

func init() {
	discoverCmd.Flags().IntVar(&discoverTimeout, "timeout", 5, "Scan timeout in seconds")
	discoverCmd.Flags().BoolVar(&discoverJSON, "json", false, "Print results as JSON")

	rootCmd.AddCommand(discoverCmd)
}

type discoveredServer struct {
	Instance     string            `json:"instance"`
	Hostname     string            `json:"hostname"`
	URL          string            `json:"url"`
	WebSocketURL string            `json:"websocketUrl"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

func runDiscover(cmd *cobra.Command, args []string) error {
	timeout := time.Duration(discoverTimeout) * time.Second
	if !discoverJSON {
		fmt.Printf("Scanning for control servers (timeout: %ds)...\n\n", discoverTimeout)
	}

	servers, err := discovery.ScanForServers(cmd.Context(), timeout)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}
	sort.Slice(servers, func(i, j int) bool { return servers[i].Instance < servers[j].Instance })

	if discoverJSON {
		out := make([]discoveredServer, 0, len(servers))
		for _, s := range servers {
			out = append(out, discoveredServer{
				Instance:     s.Instance,
				Hostname:     s.Hostname,
				URL:          s.BaseURL(),
				WebSocketURL: s.WebSocketURL(),
				Metadata:     s.Metadata,
			})
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	if len(servers) == 0 {
		fmt.Println("No servers found.")
		fmt.Println("\nTroubleshooting:")
		fmt.Println("  - Start the server with 'webcontrol serve --advertise'")
		fmt.Println("  - Make sure both machines are on the same network segment")
		fmt.Println("  - Try increasing --timeout for slower networks")
		return nil
	}

	fmt.Printf("Found %d server(s):\n\n", len(servers))
	for i, s := range servers {
		fmt.Printf("%d. %s\n", i+1, s.Instance)
		fmt.Printf("   Host:      %s\n", s.Hostname)
		fmt.Printf("   URL:       %s\n", s.BaseURL())
		fmt.Printf("   WebSocket: %s\n", s.WebSocketURL())
		if v := s.GetMetadata("version"); v != "" {
			fmt.Printf("   Version:   %s\n", v)
		}
		fmt.Println()
	}

	fmt.Println("Use 'webcontrol watch <address>' to stream a server's messages")
	return nil
}
