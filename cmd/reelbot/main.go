package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"reelbot/internal/audit"
	"reelbot/internal/channel"
	"reelbot/internal/config"
	"reelbot/internal/domain"
	"reelbot/internal/logutil"
	"reelbot/internal/metrics"
	"reelbot/internal/pipeline"
	"reelbot/internal/resolver"
	"reelbot/internal/supervisor"

	"github.com/spf13/cobra"
)

var (
	version    = "0.1.0"
	configPath string // overridable via --config flag
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "reelbot",
		Short:         "reelbot: reply to Instagram reel links with a direct video URL",
		Long:          "reelbot watches Telegram chats (and an HTTP test endpoint) for Instagram reel links and answers with the media URL resolved through RapidAPI.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.json or config.yaml (default: ~/.reelbot/config.json)")

	root.AddCommand(serveCmd())
	root.AddCommand(resolveCmd())
	root.AddCommand(configCmd())
	root.AddCommand(doctorCmd())
	root.AddCommand(statsCmd())
	root.AddCommand(versionCmd())
	return root
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return config.ExpandPath(configPath)
	}
	return config.DefaultConfigPath()
}

func newLogger(cfg *config.Config, w io.Writer) (*slog.Logger, error) {
	return logutil.New(cfg.Logging.Level, cfg.Logging.Format, w)
}

// buildPipeline wires the resolver and observers into a pipeline.
func buildPipeline(cfg *config.Config, logger *slog.Logger, observers ...pipeline.Observer) *pipeline.Pipeline {
	res := resolver.NewRapidAPI(resolver.RapidAPIConfig{
		Host:   cfg.RapidAPI.Host,
		Path:   cfg.RapidAPI.Path,
		Client: resolver.NewHTTPClient(time.Duration(cfg.RapidAPI.TimeoutSeconds) * time.Second),
		Logger: logger.With("component", "resolver"),
	})
	return pipeline.New(pipeline.Config{
		APIKey:    strings.TrimSpace(cfg.RapidAPI.Key),
		Resolver:  res,
		Observers: observers,
		Logger:    logger.With("component", "pipeline"),
	})
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the enabled adapters (Telegram bot, HTTP test endpoint)",
		Long:  "Starts every enabled adapter and blocks until SIGINT or SIGTERM.",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg, os.Stderr)
	if err != nil {
		return err
	}
	for _, w := range config.Warnings(cfg) {
		logger.Warn(w)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var observers []pipeline.Observer

	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.NewCollector("reelbot")
		observers = append(observers, metrics.NewRelay(collector))
	}

	if cfg.Audit.Enabled {
		store, err := audit.NewSQLiteStore(cfg.Audit.DBPath, logger.With("component", "audit"))
		if err != nil {
			return fmt.Errorf("audit store: %w", err)
		}
		defer store.Close()
		observers = append(observers, store)
		logger.Info("audit log enabled", "path", cfg.Audit.DBPath)
	}

	pipe := buildPipeline(cfg, logger, observers...)

	var services []domain.Channel
	if cfg.Telegram.Enabled {
		services = append(services, channel.NewTelegram(channel.TelegramConfig{
			Token:              cfg.Telegram.Token,
			AllowFrom:          cfg.Telegram.AllowFrom,
			PollTimeoutSeconds: cfg.Telegram.PollTimeoutSeconds,
			Processor:          pipe,
			Logger:             logger.With("channel", "telegram"),
		}))
	} else {
		logger.Info("telegram channel disabled")
	}
	if cfg.HTTP.Enabled {
		services = append(services, channel.NewHTTP(channel.HTTPConfig{
			Addr:        cfg.HTTP.Addr(),
			Processor:   pipe,
			Collector:   collector,
			MetricsPath: cfg.Metrics.Path,
			Logger:      logger.With("channel", "http"),
		}))
	} else {
		logger.Info("http test endpoint disabled")
	}

	logger.Info("reelbot started. Press Ctrl+C to stop.", "version", version)
	return supervisor.Run(ctx, supervisor.Config{Logger: logger}, services...)
}

func resolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <text>...",
		Short: "Run the reply pipeline once on the given text and print the reply",
		Example: `  reelbot resolve https://www.instagram.com/reel/Abc123/
  RAPIDAPI_KEY=... reelbot resolve "look at this instagram.com/reel/Abc123/"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Read(resolveConfigPath())
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			pipe := buildPipeline(cfg, logger)
			reply := pipe.Process(cmd.Context(), domain.InboundMessage{
				Channel:   "cli",
				Text:      strings.Join(args, " "),
				Timestamp: time.Now(),
			})
			fmt.Fprintln(cmd.OutOrStdout(), reply.Text())
			return nil
		},
	}
}

func statsCmd() *cobra.Command {
	var since time.Duration
	var recent int
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show reply outcome counts from the audit log",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Read(resolveConfigPath())
			if err != nil {
				return err
			}
			if !cfg.Audit.Enabled {
				return fmt.Errorf("audit log is disabled (set audit.enabled or AUDIT_ENABLED=true)")
			}
			store, err := audit.NewSQLiteStore(cfg.Audit.DBPath, nil)
			if err != nil {
				return err
			}
			defer store.Close()
			return printStats(cmd.Context(), cmd.OutOrStdout(), store, since, recent)
		},
	}
	cmd.Flags().DurationVar(&since, "since", 24*time.Hour, "only count outcomes newer than this")
	cmd.Flags().IntVar(&recent, "recent", 0, "also list the N most recent entries")
	return cmd
}

func printStats(ctx context.Context, w io.Writer, store domain.AuditStore, since time.Duration, recent int) error {
	counts, err := store.CountByOutcome(ctx, time.Now().Add(-since))
	if err != nil {
		return err
	}
	var total int64
	fmt.Fprintf(w, "Outcomes in the last %s:\n", since)
	for _, o := range domain.Outcomes {
		fmt.Fprintf(w, "  %-18s %d\n", o, counts[o])
		total += counts[o]
	}
	fmt.Fprintf(w, "  %-18s %d\n", "total", total)

	if recent <= 0 {
		return nil
	}
	entries, err := store.Recent(ctx, recent)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "\nMost recent:\n")
	for _, e := range entries {
		fmt.Fprintf(w, "  %s  %-8s %-18s %-14s %dms\n",
			e.CreatedAt.Local().Format(time.DateTime), e.Channel, e.Outcome, e.ReelID, e.LatencyMs)
	}
	return nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "reelbot %s\n", version)
		},
	}
}
