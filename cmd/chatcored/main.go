// Package main provides the CLI entry point for chatcored, the chatcore
// gateway server.
//
// chatcored exposes an HTTP+SSE chat gateway in front of an Anthropic or
// OpenAI completion backend, with a small set of named agents and
// display tools.
//
// # Basic Usage
//
// Start the server:
//
//	chatcored serve --config chatcore.yaml
//
// Validate a configuration file without starting the server:
//
//	chatcored config validate --config chatcore.yaml
//
// List the built-in named agents:
//
//	chatcored agents list
//
// # Environment Variables
//
// Configuration can be overridden via CHATCORE__SECTION__FIELD style
// environment variables; see internal/config for the full precedence
// order.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/streamforge/chatcore/internal/agentregistry"
	"github.com/streamforge/chatcore/internal/config"
	"github.com/streamforge/chatcore/internal/gateway"
)

// Build information, populated by ldflags during build.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached.
// Separated from main() to facilitate testing.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "chatcored",
		Short: "chatcore - SSE chat gateway for LLM providers",
		Long: `chatcored fronts Anthropic and OpenAI completions with a single
HTTP+SSE chat API, a fixed set of named agents, and a small set of
display tools.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		buildServeCmd(),
		buildConfigCmd(),
		buildAgentsCmd(),
	)

	return rootCmd
}

func buildServeCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the chatcore gateway server",
		Long: `Start the chatcore gateway server.

The server will:
1. Load configuration from the specified file (or chatcore.yaml)
2. Construct the upstream LLM provider, agent registry, and tool registry
3. Serve /chat, /title/generate, /models, /config/schema, /healthz, /metrics

Graceful shutdown is handled on SIGINT/SIGTERM.`,
		Example: `  # Start with default config
  chatcored serve

  # Start with a custom config file
  chatcored serve --config /etc/chatcore/production.yaml

  # Start with debug logging
  chatcored serve --debug`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath, debug)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")

	return cmd
}

func runServe(ctx context.Context, configPath string, debug bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := newLogger(cfg, debug)
	slog.SetDefault(logger)

	logger.Info("starting chatcore gateway",
		"version", version,
		"commit", commit,
		"config", configPath,
		"upstream_provider", cfg.Upstream.Provider,
		"auth_mode", string(cfg.Auth.Mode),
	)

	srv, err := gateway.NewServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to construct gateway: %w", err)
	}

	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           srv.Mux(),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTime,
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	serveErrCh := make(chan error, 1)
	go func() {
		logger.Info("chatcore gateway listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErrCh <- err
			return
		}
		serveErrCh <- nil
	}()

	select {
	case err := <-serveErrCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("shutdown signal received, initiating graceful shutdown")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	logger.Info("chatcore gateway stopped gracefully")
	return nil
}

func newLogger(cfg *config.Config, debug bool) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if debug {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Logging.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

// buildConfigCmd creates the "config" command group.
func buildConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and validate configuration",
	}
	cmd.AddCommand(buildConfigValidateCmd(), buildConfigSchemaCmd())
	return cmd
}

func buildConfigValidateCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Load and validate a configuration file",
		Long:  "Load configuration through the full layered precedence chain and report any validation error.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Configuration is valid.")
			fmt.Fprintf(out, "  upstream provider: %s\n", cfg.Upstream.Provider)
			fmt.Fprintf(out, "  auth mode:         %s\n", cfg.Auth.Mode)
			fmt.Fprintf(out, "  server addr:       %s:%d\n", cfg.Server.Host, cfg.Server.Port)
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file")
	return cmd
}

func buildConfigSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the configuration JSON Schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, err := config.JSONSchema()
			if err != nil {
				return fmt.Errorf("failed to build config schema: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(schema))
			return nil
		},
	}
}

// buildAgentsCmd creates the "agents" command group.
func buildAgentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agents",
		Short: "Inspect the built-in named agents",
	}
	cmd.AddCommand(buildAgentsListCmd())
	return cmd
}

func buildAgentsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the built-in named agents",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Name         Streaming  Tools")
			fmt.Fprintln(out, "-----------  ---------  -----------------------")
			for _, d := range agentregistry.New().All() {
				fmt.Fprintf(out, "%-12s %-10t %s\n", d.Name, d.Streaming, joinOrNone(d.Tools))
			}
			return nil
		},
	}
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "(none)"
	}
	out := items[0]
	for _, item := range items[1:] {
		out += ", " + item
	}
	return out
}
