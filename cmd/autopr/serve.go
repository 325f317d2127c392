package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jxucoder/autopr/internal/config"
	"github.com/jxucoder/autopr/internal/eventbus"
	"github.com/jxucoder/autopr/internal/server"
	"github.com/jxucoder/autopr/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the run-history API server",
	Long:  "Start the HTTP server that exposes run history and live event streams.",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("opening run store: %w", err)
	}
	defer st.Close()

	srv := server.New(cfg, st, eventbus.New())

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nShutting down...")
		cancel()
	}()

	return srv.Start(ctx)
}
