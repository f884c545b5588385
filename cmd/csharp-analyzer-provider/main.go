package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	provider "github.com/savitharaghunathan/c-sharp-analyzer-provider"
	"github.com/savitharaghunathan/c-sharp-analyzer-provider/internal/service"
	"github.com/savitharaghunathan/c-sharp-analyzer-provider/internal/settings"
)

var flagConfig string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "csharp-analyzer-provider",
	Short:         "Analyzer provider for C# projects",
	Long:          "Builds a tree-sitter reference graph of a C# project and answers referenced-pattern conditions over JSON-RPC.",
	SilenceErrors: true,
	SilenceUsage:  true,
	// No Run — prints help by default.
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to a YAML settings file")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the provider over stdin/stdout",
	Long:  "Reads Content-Length framed JSON-RPC messages from stdin and writes responses to stdout until a stop request or disconnect.",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("db-path", "", "graph database path")
	serveCmd.Flags().String("log-level", "", "log level: debug|info|warn|error")
	serveCmd.Flags().String("log-file", "", "log destination file (default stderr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := settings.Load(flagConfig, cmd.Flags())
	if err != nil {
		return err
	}

	logger, closeLog, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := provider.New(cfg.DBPath, provider.WithLogger(logger))
	defer p.Stop()

	// stdout carries only protocol frames; all logging goes elsewhere.
	srv := service.NewServer(p, os.Stdin, os.Stdout, logger)
	return srv.Run(ctx)
}

func newLogger(cfg *settings.Settings) (*slog.Logger, func(), error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}

	var w io.Writer = os.Stderr
	closeLog := func() {}
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		w = f
		closeLog = func() { f.Close() }
	}

	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(handler), closeLog, nil
}
