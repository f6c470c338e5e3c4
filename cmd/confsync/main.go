package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cuemby/confsync/pkg/api"
	"github.com/cuemby/confsync/pkg/client"
	"github.com/cuemby/confsync/pkg/config"
	"github.com/cuemby/confsync/pkg/connector"
	"github.com/cuemby/confsync/pkg/log"
	"github.com/cuemby/confsync/pkg/manager"
	"github.com/cuemby/confsync/pkg/metrics"
	"github.com/cuemby/confsync/pkg/scheduler"
	"github.com/cuemby/confsync/pkg/session"
	"github.com/spf13/cobra"

	// Remote connectors register themselves with connector.Open
	_ "github.com/cuemby/confsync/pkg/connector/file"
	_ "github.com/cuemby/confsync/pkg/connector/s3"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "confsync",
	Short: "confsync - keep configurations in sync with a remote store",
	Long: `confsync keeps a local set of configurations in step with a remote
store. Local edits are pushed first, then the remote snapshot is reconciled
into the local state, on a schedule that backs off while nothing changes.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"confsync version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("api", config.Default().API.Addr, "Daemon gRPC API address")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("confsync version %s\nCommit: %s\nBuilt: %s\n", Version, Commit, BuildTime)
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the sync daemon",
	Long: `Run the sync daemon in the foreground.

The daemon opens the local state, connects to the remote selected by
sync.remote and serves the gRPC API and the HTTP health endpoints until it
receives SIGINT or SIGTERM.`,
	RunE: runDaemon,
}

func init() {
	runCmd.Flags().StringP("config", "c", "", "Path to a YAML config file")
	runCmd.Flags().String("remote", "", "Override sync.remote (file, s3)")
	runCmd.Flags().String("log-level", "", "Override log.level")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if remote, _ := cmd.Flags().GetString("remote"); remote != "" {
		cfg.Sync.Remote = remote
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Log.Level = level
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log.Init(log.Config{
		Level:      log.Level(cfg.Log.Level),
		JSONOutput: cfg.Log.JSON,
	})
	metrics.SetVersion(Version)
	logger := log.WithComponent("daemon")

	mgr, err := manager.NewManager(&manager.Config{
		NodeID:       cfg.NodeID,
		BindAddr:     cfg.BindAddr,
		DataDir:      cfg.DataDir,
		SeedExamples: cfg.SeedExamples,
	})
	if err != nil {
		return fmt.Errorf("failed to create manager: %w", err)
	}
	if err := mgr.Bootstrap(); err != nil {
		_ = mgr.Shutdown()
		return fmt.Errorf("failed to start state container: %w", err)
	}

	collector := manager.NewMetricsCollector(mgr)
	collector.Start()

	conn, err := connector.Open(cfg)
	if err != nil {
		collector.Stop()
		_ = mgr.Shutdown()
		return err
	}

	sess := session.New(conn, mgr,
		session.WithTimeout(cfg.Sync.SessionTimeout),
		session.WithPublisher(mgr),
	)
	sched := scheduler.New(sess,
		scheduler.WithBounds(cfg.Sync.MinInterval, cfg.Sync.MaxInterval),
		scheduler.WithDownload(cfg.Sync.Download),
		scheduler.WithLogger(log.WithComponent("scheduler").With().
			Str("remote", cfg.Sync.Remote).
			Logger()),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Sync.Enabled {
		if err := sched.Start(ctx); err != nil {
			collector.Stop()
			_ = mgr.Shutdown()
			return err
		}
	} else {
		logger.Warn().Msg("Sync disabled (sync.enabled=false); manual triggers are queued but not run")
	}

	// Publishing needs a real remote; without one the API rejects it
	activeConnector := ""
	if cfg.Sync.Remote != config.RemoteNone {
		activeConnector = conn.Name()
	}

	apiServer := api.NewServer(sched, mgr, mgr.GetEventBroker(), api.Options{
		Connector: activeConnector,
		ReadOnly:  cfg.API.ReadOnly,
	})
	httpServer := api.NewHTTPServer(apiServer)

	errCh := make(chan error, 2)
	go func() {
		if err := apiServer.Start(cfg.API.Addr); err != nil {
			errCh <- fmt.Errorf("API server error: %w", err)
		}
	}()
	go func() {
		if err := httpServer.Start(cfg.HTTP.Addr); err != nil {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	logger.Info().
		Str("connector", conn.Name()).
		Bool("connected", conn.Connected()).
		Str("api", cfg.API.Addr).
		Str("http", cfg.HTTP.Addr).
		Msg("confsync is running")

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info().Msg("Shutting down")
	case runErr = <-errCh:
		logger.Error().Err(runErr).Msg("Server failed, shutting down")
	}

	sched.Stop()
	apiServer.Stop()
	if err := httpServer.Shutdown(); err != nil {
		logger.Warn().Err(err).Msg("HTTP shutdown failed")
	}
	collector.Stop()
	if err := mgr.Shutdown(); err != nil {
		return fmt.Errorf("failed to shutdown: %w", err)
	}

	logger.Info().Msg("Shutdown complete")
	return runErr
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Trigger a sync on the running daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dial(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		queued, err := c.TriggerSync()
		if err != nil {
			return fmt.Errorf("failed to trigger sync: %w", err)
		}
		if queued {
			fmt.Println("✓ Sync queued")
		} else {
			fmt.Println("Sync already queued")
		}
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon and scheduler status",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dial(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		view, err := c.GetStatus()
		if err != nil {
			return fmt.Errorf("failed to get status: %w", err)
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(view)
		}

		connectorName := view.Connector
		if connectorName == "" {
			connectorName = "(none)"
		}
		fmt.Printf("Instance:   %s\n", view.InstanceID)
		fmt.Printf("Raft:       %s\n", view.RaftState)
		fmt.Printf("Connector:  %s\n", connectorName)
		fmt.Printf("Scheduler:  %s (interval %ds, %d sessions)\n",
			view.Scheduler.State, view.Scheduler.IntervalSeconds, view.Scheduler.Sessions)

		if out := view.Scheduler.LastOutcome; out != nil {
			fmt.Printf("Last sync:  %s, changed=%t added=%d updated=%d deleted=%d acknowledged=%d held=%d\n",
				view.Scheduler.LastRun.Format("2006-01-02 15:04:05"),
				out.Changed, out.Added, out.Updated, out.Deleted, out.Acknowledged, out.Held)
			for _, d := range out.Diagnostics {
				fmt.Printf("  ! %s: %s\n", d.Kind, d.Message)
			}
		}
		return nil
	},
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Stream daemon events until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dial(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return c.StreamEvents(ctx, func(e client.Event) error {
			fmt.Printf("%s  %-22s %s\n", e.Timestamp.Format("15:04:05"), e.Type, e.Message)
			return nil
		})
	},
}

func init() {
	statusCmd.Flags().Bool("json", false, "Print the raw status document")
}

func dial(cmd *cobra.Command) (*client.Client, error) {
	addr, _ := cmd.Flags().GetString("api")
	c, err := client.NewClient(addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to daemon: %w", err)
	}
	return c, nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
