// Package main is the entry point for the innercritic CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/r3d91ll/innercritic/internal/analysis"
	"github.com/r3d91ll/innercritic/internal/config"
	"github.com/r3d91ll/innercritic/internal/journal"
	"github.com/r3d91ll/innercritic/internal/llm"
	"github.com/r3d91ll/innercritic/internal/logging"
	"github.com/r3d91ll/innercritic/internal/session"
	"github.com/r3d91ll/innercritic/internal/storage"
	"github.com/r3d91ll/innercritic/internal/telemetry"
)

// Version info (set via ldflags)
var (
	Version = "dev"
	Commit  = "unknown"
)

var (
	configPath string
	verbose    bool
	trace      bool
)

var rootCmd = &cobra.Command{
	Use:   "innercritic",
	Short: "Give your inner critic a face, then talk back to it",
	Long: `innercritic helps you personify your inner critic, talk with it, and
answer it with a compassionate Healthy Adult voice. A supportive companion
mode streams replies and can break any of your messages down into the
cognitive distortions it contains. A daily journal tracks how you are doing
relative to the day before.

Run without a subcommand to start the interactive chat.`,
	Version:       fmt.Sprintf("%s (%s)", Version, Commit),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runChat,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default $INNERCRITIC_HOME/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().BoolVar(&trace, "trace", false, "export OpenTelemetry traces to the configured collector")

	rootCmd.Flags().StringVarP(&singleMessage, "message", "m", "", "send a single message and exit")
	rootCmd.Flags().BoolVar(&startInCritic, "critic", false, "start in critic mode")
	chatCmd.Flags().AddFlagSet(rootCmd.Flags())

	rootCmd.AddCommand(chatCmd, serveCmd, journalCmd, keyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, colorRed+"Error: %v"+colorReset+"\n", err)
		os.Exit(1)
	}
}

// app holds everything a command needs.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	telemetry *telemetry.Provider
	store     storage.KV
	client    *llm.Client
	session   *session.Session
	journal   *journal.Store
}

// setup loads configuration and opens storage. logToFile keeps the
// terminal free of log lines in interactive commands.
func setup(ctx context.Context, logToFile bool) (*app, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if trace {
		cfg.Telemetry.Enabled = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logCfg := cfg.Logging
	if logToFile {
		logCfg.File = cfg.LogFile()
	}
	logger, err := logging.New(logCfg, verbose)
	if err != nil {
		return nil, err
	}

	tp, err := telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		logger.Warn("tracing disabled", zap.Error(err))
		tp, _ = telemetry.Init(ctx, telemetry.Config{})
	}

	store, err := storage.Open(cfg.Storage.Driver, cfg.StateDir())
	if err != nil {
		return nil, err
	}

	client := llm.New(cfg.LLM, llm.DefaultCredentials(store),
		llm.WithLogger(logger.Named("llm")),
		llm.WithTracer(tp.Tracer()))
	mapper := analysis.NewMapper(client, cfg.Analysis, analysis.WithLogger(logger.Named("analysis")))

	sess, err := session.New(ctx, cfg.Session, client, mapper, store, session.WithLogger(logger.Named("session")))
	if err != nil {
		store.Close()
		return nil, err
	}
	j, err := journal.Open(ctx, store, journal.WithLogger(logger.Named("journal")))
	if err != nil {
		store.Close()
		return nil, err
	}

	logger.Debug("started",
		zap.String("version", Version),
		zap.String("home", cfg.Home),
		zap.String("storage", cfg.Storage.Driver),
		zap.String("model", cfg.LLM.ChatModel))

	return &app{
		cfg:       cfg,
		logger:    logger,
		telemetry: tp,
		store:     store,
		client:    client,
		session:   sess,
		journal:   j,
	}, nil
}

func (a *app) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.telemetry.Shutdown(ctx); err != nil {
		a.logger.Warn("failed to flush traces", zap.Error(err))
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn("failed to close storage", zap.Error(err))
	}
	_ = a.logger.Sync()
}
