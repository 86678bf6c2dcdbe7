package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"

	"github.com/c360studio/brandstudio/brandimport"
	"github.com/c360studio/brandstudio/config"
	"github.com/c360studio/brandstudio/genai"
	"github.com/c360studio/brandstudio/model"
	"github.com/c360studio/brandstudio/state"
	"github.com/c360studio/brandstudio/storage"
	"github.com/c360studio/brandstudio/studio"
)

// Bucket names shared by every storage backend.
const (
	stateBucket = "brandstudio-state"
	callsBucket = "brandstudio-calls"
)

// App is the main application that wires together all components.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	natsConn *nats.Conn
	closers  []io.Closer

	metrics  *prometheus.Registry
	registry *model.Registry
	calls    *genai.CallStore
	client   *genai.Client
	store    *state.Store
	service  *studio.Service
}

// NewApp opens storage and builds the generation stack.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{
		cfg:     cfg,
		logger:  logger,
		metrics: prometheus.NewRegistry(),
	}
	a.metrics.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	stateB, callsB, err := a.openBuckets(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.store, err = state.Open(ctx,
		state.WithPersister(state.NewBucketPersister(stateB)),
		state.WithLogger(logger))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open state: %w", err)
	}

	a.registry = cfg.Registry()
	a.calls = genai.NewCallStore(callsB, genai.WithStoreLogger(logger))

	clientOpts := []genai.ClientOption{
		genai.WithHTTPClient(&http.Client{Timeout: 3 * time.Minute}),
		genai.WithRetryConfig(cfg.Retry),
		genai.WithPolling(cfg.Poll),
		genai.WithLogger(logger),
		genai.WithAPIKey(cfg.APIKey),
		genai.WithMetrics(genai.NewMetrics(a.metrics)),
		genai.WithTracer(otel.Tracer("github.com/c360studio/brandstudio/genai")),
		genai.WithCallStore(a.calls),
	}
	if cfg.RateLimit.PerSecond > 0 {
		clientOpts = append(clientOpts, genai.WithRateLimit(cfg.RateLimit.PerSecond, cfg.RateLimit.Burst))
	}
	a.client = genai.NewClient(a.registry, clientOpts...)

	svcOpts := []studio.Option{studio.WithLogger(logger)}
	if cfg.Import.Enabled {
		fetcher := brandimport.NewFetcher(cfg.Import.Timeout,
			brandimport.WithUserAgent(cfg.Import.UserAgent),
			brandimport.WithMaxSize(cfg.Import.MaxBytes))
		svcOpts = append(svcOpts, studio.WithImporter(brandimport.NewImporter(
			brandimport.WithLogger(logger),
			brandimport.WithFetcher(fetcher))))
	}
	a.service = studio.New(a.store, a.client, svcOpts...)

	logger.Info("Brandstudio ready",
		"version", Version,
		"storage", cfg.Storage.Backend,
		"endpoints", len(a.registry.ListEndpoints()))
	return a, nil
}

func (a *App) openBuckets(ctx context.Context) (storage.Bucket, storage.Bucket, error) {
	switch a.cfg.Storage.Backend {
	case config.BackendNATS:
		a.logger.Info("Connecting to NATS", "url", a.cfg.NATS.URL)
		nc, err := nats.Connect(a.cfg.NATS.URL, nats.Name(appName))
		if err != nil {
			return nil, nil, wrapNATSError(err, a.cfg.NATS.URL)
		}
		a.natsConn = nc
		js, err := jetstream.New(nc)
		if err != nil {
			return nil, nil, fmt.Errorf("create jetstream: %w", err)
		}
		s, err := storage.OpenNATS(ctx, js, stateBucket)
		if err != nil {
			return nil, nil, err
		}
		c, err := storage.OpenNATS(ctx, js, callsBucket)
		if err != nil {
			return nil, nil, err
		}
		return s, c, nil

	case config.BackendSQLite:
		dsn := sqliteDSN(a.cfg.Storage.Path)
		s, err := storage.OpenSQLite(ctx, dsn, stateBucket)
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, s)
		c, err := storage.OpenSQLite(ctx, dsn, callsBucket)
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, c)
		return s, c, nil

	default:
		return storage.NewMemory(), storage.NewMemory(), nil
	}
}

// sqliteDSN adds a busy timeout so the two bucket handles on one file wait
// for each other instead of failing.
func sqliteDSN(path string) string {
	if path == ":memory:" || strings.Contains(path, "?") {
		return path
	}
	return path + "?_pragma=busy_timeout(5000)"
}

// Reconfigure applies the parts of a reloaded config that are safe to change
// while running.
func (a *App) Reconfigure(cfg *config.Config) {
	if cfg.Models != nil {
		a.registry.MergeFromConfig(cfg.Models)
	}
	a.registry.SetHealthConfig(cfg.Health)
}

// Close releases storage handles and the NATS connection.
func (a *App) Close() {
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.logger.Warn("Close storage", "error", err)
		}
	}
	a.closers = nil
	if a.natsConn != nil {
		a.natsConn.Close()
		a.natsConn = nil
	}
}

// wrapNATSError provides helpful guidance when NATS connection fails.
func wrapNATSError(err error, url string) error {
	errStr := err.Error()
	if errors.Is(err, nats.ErrNoServers) ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "timeout") {
		return fmt.Errorf(`NATS connection failed: %w

NATS is not running at %s.

To start NATS:
  docker compose up -d nats

Or set BRANDSTUDIO_NATS_URL, or use BRANDSTUDIO_STORAGE=sqlite.`, err, url)
	}
	return fmt.Errorf("NATS connection failed: %w", err)
}
