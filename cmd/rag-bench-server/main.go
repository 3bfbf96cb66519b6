// Package main provides the rag-bench HTTP evaluation server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ragbench/rag-bench/internal/config"
	"github.com/ragbench/rag-bench/internal/pkg/logger"
	"github.com/ragbench/rag-bench/internal/server"
	"github.com/ragbench/rag-bench/internal/store"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "rag-bench-server",
		Short: "rag-bench-server - HTTP API for RAG evaluation",
		Long: `rag-bench-server exposes the evaluation toolkit over HTTP: scoring
captured runs, rank fusion, chunking, metric calculation, significance
testing, and run history.`,
		SilenceUsage: true,
		RunE:         runServe,
	}

	rootCmd.Flags().StringP("config", "c", "", "config file path")
	rootCmd.Flags().BoolP("verbose", "v", false, "verbose output")
	rootCmd.Flags().Int("port", 0, "listen port (overrides config)")
	rootCmd.Flags().String("host", "", "listen host (overrides config)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("rag-bench-server %s\n", version)
			fmt.Printf("  commit: %s\n", commit)
			fmt.Printf("  built:  %s\n", date)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	verbose, _ := cmd.Flags().GetBool("verbose")

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if cmd.Flags().Changed("port") {
		cfg.Port, _ = cmd.Flags().GetInt("port")
	}
	if cmd.Flags().Changed("host") {
		cfg.Host, _ = cmd.Flags().GetString("host")
	}

	level := cfg.Log.Level
	if verbose {
		level = "debug"
	}
	log := logger.New(level, cfg.Log.Format)

	// Run history is optional: the server degrades to stateless evaluation
	// when Redis is unreachable.
	var runStore *store.RunStore
	if cfg.Redis.URL != "" {
		ttl := time.Duration(cfg.Redis.HistoryTTL) * time.Hour
		runStore, err = store.NewRunStore(cfg.Redis.URL, ttl)
		if err != nil {
			log.Warn("run store unavailable, history endpoints disabled", "error", err)
			runStore = nil
		}
	}

	srv, err := server.New(cfg, version, runStore, log)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", "address", cfg.Address(), "version", version)
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case sig := <-sigCh:
		log.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Stop(ctx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}

	log.Info("server stopped")
	return nil
}
