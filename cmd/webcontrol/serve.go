package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/webcontrol/internal/config"
	"github.com/muurk/webcontrol/internal/discovery"
	"github.com/muurk/webcontrol/internal/lifecycle"
	"github.com/muurk/webcontrol/internal/logging"
	"github.com/muurk/webcontrol/internal/server"
	"github.com/muurk/webcontrol/internal/ui"
)

// Serve command flags
var (
	servePort        int
	serveHost        string
	serveAdvertise   bool
	serveInstance    string
	serveMetricsAddr string
	serveControl     bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the control server",
	Long: `Start the control server and keep it running until interrupted.

The server binds the preferred port if one is given, otherwise the first free
port in the configured range (8080-8090 by default). A new password is
generated on every start and printed together with the server URL.

Host lifecycle events can be simulated with signals:
  SIGUSR1  move to the background (stops the server when stop_on_background is set)
  SIGUSR2  return to the foreground (logged only, the server stays stopped)
  SIGHUP   network restored (resets WebSocket liveness)

Control commands are also read from standard input, one per line: the event
names background, foreground, network-lost and network-restored, plus restart
to start a stopped server again with a new password. Type help for the list.
Disable with --control=false.`,
	Example: `  # Start with the configuration file defaults
  webcontrol serve

  # Prefer port 9000 and advertise over mDNS
  webcontrol serve --port 9000 --advertise

  # Expose Prometheus metrics on localhost
  webcontrol serve --metrics-addr 127.0.0.1:9464 --log-level info`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Preferred port (tried before the configured range)")
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Interface to bind (empty = all interfaces)")
	serveCmd.Flags().BoolVar(&serveAdvertise, "advertise", false, "Advertise the server over mDNS")
	serveCmd.Flags().StringVar(&serveInstance, "instance", "", "mDNS instance name")
	serveCmd.Flags().StringVar(&serveMetricsAddr, "metrics-addr", "", "Address for the Prometheus /metrics endpoint (empty = disabled)")

	serveCmd.Flags().BoolVar(&serveControl, "control", true, "Read control commands from standard input")

	rootCmd.AddCommand(serveCmd)
}

// applyServeFlags overrides file settings with flags the user set.
func applyServeFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Server.PreferredPort = servePort
	}
	if flags.Changed("host") {
		cfg.Server.Host = serveHost
	}
	if flags.Changed("advertise") {
		cfg.Discovery.Advertise = serveAdvertise
	}
	if flags.Changed("instance") {
		cfg.Discovery.Instance = serveInstance
	}
	if flags.Changed("metrics-addr") {
		cfg.Metrics.Address = serveMetricsAddr
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	applyServeFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if logLevel == "" && cfg.LogLevel != "" {
		if err := logging.Initialize(cfg.LogLevel); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := newApp(cfg)

	startCtx, cancel := context.WithTimeout(ctx, cfg.Server.StartTimeout+time.Second)
	status, err := a.start(startCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	printServeBanner(status, cfg)

	// Returning to the foreground never restarts the server. A stopped server
	// comes back only through the "restart" control command.
	restart := func() error {
		restartCtx, cancel := context.WithTimeout(ctx, cfg.Server.StartTimeout+time.Second)
		defer cancel()
		status, err := a.start(restartCtx)
		if err != nil {
			logging.Error("Failed to restart server", zap.Error(err))
			return err
		}
		printServeBanner(status, cfg)
		return nil
	}
	if serveControl {
		go runControl(ctx, os.Stdin, os.Stdout, a.events, restart)
	}
	forwardSignals(ctx, a.events)

	if cfg.Metrics.Address != "" {
		go func() {
			if err := a.metrics.Serve(ctx, cfg.Metrics.Address); err != nil {
				logging.Error("Metrics endpoint failed", zap.Error(err))
				fmt.Fprintf(os.Stderr, "Metrics endpoint failed: %v\n", err)
			}
		}()
	}

	<-ctx.Done()
	fmt.Println("\nShutting down...")

	stopCtx, cancelStop := context.WithTimeout(context.Background(), cfg.Server.StopTimeout+time.Second)
	defer cancelStop()
	return a.stop(stopCtx)
}

// forwardSignals turns host signals into lifecycle events until ctx ends.
func forwardSignals(ctx context.Context, events *lifecycle.Dispatcher) {
	mapping := lifecycleSignals()
	if len(mapping) == 0 {
		return
	}

	sigs := make([]os.Signal, 0, len(mapping))
	for sig := range mapping {
		sigs = append(sigs, sig)
	}
	ch := make(chan os.Signal, len(sigs))
	signal.Notify(ch, sigs...)

	go func() {
		defer signal.Stop(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case sig := <-ch:
				events.Emit(mapping[sig])
			}
		}
	}()
}

func printServeBanner(status server.Status, cfg *config.Config) {
	banner := ui.NewBanner("Web Control Server", "webcontrol serve").
		Add("URL", status.URL).
		Add("WebSocket", webSocketURL(status.URL)).
		Add("Username", status.Username).
		AddSecret("Password", status.Password)
	if cfg.Discovery.Advertise {
		banner.Add("mDNS", fmt.Sprintf("%s (%s)", cfg.Discovery.Instance, discovery.ServiceType))
	}
	if cfg.Metrics.Address != "" {
		banner.Add("Metrics", "http://"+cfg.Metrics.Address+"/metrics")
	}

	fmt.Println(banner.Render())
	fmt.Println()
	fmt.Println("Press Ctrl+C to stop")
	if serveControl {
		fmt.Println("Type 'help' for control commands")
	}
}
