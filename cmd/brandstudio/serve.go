package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/c360studio/brandstudio/api"
	"github.com/c360studio/brandstudio/config"
	"github.com/c360studio/brandstudio/scheduler"
)

const shutdownTimeout = 30 * time.Second

func serveCmd(flags *globalFlags) *cobra.Command {
	var (
		addr  string
		watch bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			loader, cfg, level, err := flags.setup()
			if err != nil {
				return err
			}
			cfg.Merge(&config.Config{HTTP: config.HTTPConfig{Addr: addr}})

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			printBanner(cmd.OutOrStdout(), cfg)
			return serve(ctx, loader, cfg, level, watch)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides http.addr)")
	cmd.Flags().BoolVar(&watch, "watch", true, "Reload model and health settings when config files change")
	return cmd
}

func serve(ctx context.Context, loader *config.Loader, cfg *config.Config, level *slog.LevelVar, watch bool) error {
	logger := slog.Default()

	app, err := NewApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	mux := http.NewServeMux()
	handler := api.NewHandler(app.service,
		api.WithLogger(logger),
		api.WithCallStore(app.calls),
		api.WithRegistry(app.registry),
		api.WithGatherer(app.metrics))
	handler.RegisterHTTPHandlers(cfg.HTTP.Prefix, mux)

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	var wg sync.WaitGroup
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if cfg.Scheduler.Enabled {
		sched, err := scheduler.New(app.store, cfg.Scheduler.Schedule,
			scheduler.WithLogger(logger),
			scheduler.WithRegisterer(app.metrics))
		if err != nil {
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := sched.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Scheduler stopped", "error", err)
			}
		}()
	}

	if watch {
		w := config.NewWatcher(loader, func(next *config.Config) {
			level.Set(parseLevel(next.LogLevel))
			app.Reconfigure(next)
		}, logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := w.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("Config watcher stopped", "error", err)
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", cfg.HTTP.Addr, "prefix", cfg.HTTP.Prefix)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case err := <-errCh:
		if err != nil {
			cancel()
			wg.Wait()
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error stopping HTTP server", "error", err)
	}
	cancel()
	wg.Wait()

	logger.Info("Brandstudio shutdown complete")
	return nil
}

func printBanner(w io.Writer, cfg *config.Config) {
	sep := headerColor("═══════════════════════════════════════════════")
	fmt.Fprintln(w, sep)
	fmt.Fprintln(w, headerColor("  Brandstudio v"+Version))
	fmt.Fprintln(w, sep)
	fmt.Fprintf(w, "  Listen:     %s\n", cfg.HTTP.Addr)
	fmt.Fprintf(w, "  Storage:    %s\n", cfg.Storage.Backend)
	fmt.Fprintf(w, "  Scheduler:  %s\n", dimColor(cfg.Scheduler.Schedule))
	fmt.Fprintln(w, sep)
}
