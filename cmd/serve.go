package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/targetline/targetline/internal/agent"
	"github.com/targetline/targetline/internal/api"
	"github.com/targetline/targetline/internal/config"
	"github.com/targetline/targetline/internal/database"
	"github.com/targetline/targetline/internal/llm"
	"github.com/targetline/targetline/internal/log"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := log.New(log.Config{
		Level: parseLogLevel(cfg.LogLevel),
		JSON:  cfg.LogJSON,
	})
	logger.Info("starting targetline", "version", Version, "config", cfg.Redacted())

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pool, err := database.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer pool.Close()

	generator, err := llm.NewClient(llm.ClientConfig{
		APIKey:      cfg.OpenAIAPIKey,
		Model:       cfg.ModelName,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		Logger:      logger.With("component", "llm"),
	})
	if err != nil {
		return fmt.Errorf("creating model client: %w", err)
	}

	a, err := agent.New(agent.Config{
		Generator:      generator,
		Querier:        agent.NewPoolQuerier(pool),
		Logger:         logger.With("component", "agent"),
		MaxTurns:       cfg.MaxTurns,
		MaxRows:        cfg.MaxRows,
		ListLimit:      cfg.ListLimit,
		QueryTimeout:   cfg.QueryTimeout,
		RequestTimeout: cfg.RequestTimeout,
	})
	if err != nil {
		return fmt.Errorf("creating agent: %w", err)
	}

	addr := serveAddr
	if addr == "" {
		addr = cfg.ListenAddr
	}

	srv := api.NewServer(a, pool, logger.With("component", "api"))
	return srv.Run(ctx, addr)
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
