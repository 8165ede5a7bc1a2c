package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/timvw/command-center/internal/config"
	"github.com/timvw/command-center/internal/evaluator"
	"github.com/timvw/command-center/internal/events"
	"github.com/timvw/command-center/internal/monitor"
	telem "github.com/timvw/command-center/internal/otel"
	"github.com/timvw/command-center/internal/server"
	"github.com/timvw/command-center/internal/session"
)

var (
	flagPort      int
	flagBind      string
	flagStaticDir string
	flagNoWatch   bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the session server",
	Long: `Run the orchestrator: the session registry, the status monitor, the
notification hub and the HTTP/WebSocket surface.

The tmux host session is created if it does not exist. The config file is
watched and notification toggles, idle threshold, completed retention and the
project catalogue are applied without a restart.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd)
	},
}

func init() {
	serveCmd.Flags().IntVar(&flagPort, "port", 0, "listen port (default: from config, 3000)")
	serveCmd.Flags().StringVar(&flagBind, "bind", "", "listen address (default: from config, 127.0.0.1)")
	serveCmd.Flags().StringVar(&flagStaticDir, "static-dir", "", "directory served at / for the browser dashboard")
	serveCmd.Flags().BoolVar(&flagNoWatch, "no-watch", false, "do not reload the config file on change")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if flagPort > 0 {
		cfg.Port = flagPort
	}
	if flagBind != "" {
		cfg.Bind = flagBind
	}
	if flagStaticDir != "" {
		cfg.StaticDir = flagStaticDir
	}
	logger := newLogger(cfg)
	if cfg.ConfigFile != "" {
		logger.Info("config loaded", "path", cfg.ConfigFile)
	}

	tel, err := telem.Init(ctx, telem.OptionsFrom(cfg, Version))
	if err != nil {
		logger.Warn("otel init failed", "err", err)
	}
	var metrics *telem.Metrics
	if tel != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tel.Shutdown(shutdownCtx); err != nil {
				logger.Warn("otel shutdown", "err", err)
			}
		}()
		metrics = tel.Metrics
		if tel.Exporting() {
			logger.Info("telemetry exporting", "endpoint", cfg.OTELEndpoint)
		}
	}

	host, err := getHost(cfg)
	if err != nil {
		return err
	}
	if err := host.EnsureHost(ctx); err != nil {
		return fmt.Errorf("host session %s: %w", cfg.HostSession, err)
	}
	logger.Info("host ready", "mux", host.Name(), "session", cfg.HostSession)

	reg := session.New(host, session.Config{
		MaxSessions:   cfg.MaxSessions,
		IdleThreshold: cfg.IdleThresholdDuration,
		CaptureLines:  cfg.CaptureLines,
		ProjectRoot:   cfg.ProjectRoot,
		AgentCommand:  cfg.AgentCommand,
		ElevatedArgs:  cfg.ElevatedArgs,
		Logger:        logger.WithPrefix("session"),
		Metrics:       metrics,
	})
	defer reg.Close()

	hub := events.NewHub(cfg.HistorySize, logger.WithPrefix("events"))
	gate := events.NewGate(cfg.Notifications.Toggles())

	mon := &monitor.Monitor{
		Sessions:  reg,
		Events:    hub,
		Gate:      gate,
		Metrics:   metrics,
		Logger:    logger.WithPrefix("monitor"),
		Interval:  cfg.PollIntervalDuration,
		Retention: cfg.CompletedRetentionDuration,
	}

	srv := &server.Server{
		Sessions:  reg,
		Events:    hub,
		Gate:      gate,
		Metrics:   metrics,
		Logger:    logger.WithPrefix("http"),
		StaticDir: cfg.StaticDir,
	}
	srv.SetCatalog(cfg.Projects, cfg.Settings())

	if cfg.Evaluator {
		eval, err := getEvaluator(cfg)
		if err != nil {
			return fmt.Errorf("evaluator: %w", err)
		}
		srv.Assessor = &evaluator.Assessor{
			Evaluator: eval,
			Cache:     evaluator.NewAssessmentCache(cfg.CacheTTLDuration),
			Metrics:   metrics,
		}
		logger.Info("evaluator enabled", "provider", eval.Provider(), "model", eval.Model())
	}

	if cfg.Hooks {
		socketPath := cfg.EventSocket
		if socketPath == "" {
			socketPath = events.DefaultSocketPath()
		}
		collector := events.NewCollector(mon.HandleHook, socketPath, logger.WithPrefix("hooks"))
		if err := collector.Start(ctx); err != nil {
			return fmt.Errorf("hook collector: %w", err)
		}
		logger.Info("hook collector listening", "socket", collector.SocketPath())
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		mon.Run(ctx)
		return nil
	})

	if cfg.ConfigFile != "" && !flagNoWatch {
		g.Go(func() error {
			return config.Watch(ctx, cfg.ConfigFile, logger.WithPrefix("config"), func(next *config.Config) {
				gate.Store(next.Notifications.Toggles())
				reg.SetIdleThreshold(next.IdleThresholdDuration)
				mon.SetRetention(next.CompletedRetentionDuration)
				settings := next.Settings()
				// Listener and host settings need a restart.
				settings.Port = cfg.Port
				settings.PollInterval = cfg.PollIntervalDuration.Milliseconds()
				settings.HostSession = cfg.HostSession
				settings.MaxSessions = cfg.MaxSessions
				srv.SetCatalog(next.Projects, settings)
			})
		})
	}

	g.Go(func() error {
		return srv.ListenAndServe(ctx, cfg.Addr())
	})

	return g.Wait()
}
