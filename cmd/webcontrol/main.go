// Webcontrol is an embedded control server for biometric enrollment and
// validation flows.
//
// It serves a small authenticated HTTP/1.1 API and a WebSocket endpoint on a
// local port so a browser control page can drive operations and watch their
// progress. Companion commands stream the server's messages to a terminal and
// find running servers on the local network.
//
// Usage:
//
//	webcontrol [command] [flags]
//
// See 'webcontrol --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/webcontrol/internal/logging"
	"github.com/muurk/webcontrol/internal/version"
)

// Global flags
var (
	configPath string
	logLevel   string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "webcontrol",
	Short: "Web Control Server",
	Long: `An embedded control server for biometric enrollment and validation.

The server listens on a local port with a fresh Basic-Auth password on every
start. A browser control page drives operations through its HTTP API and
follows their progress over the WebSocket endpoint.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logging.Initialize(logLevel)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file path (default: OS config directory)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); silent when unset")

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("webcontrol %s (commit: %s)\n", version.Version, version.Commit)
	},
}
