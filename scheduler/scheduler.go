// Package scheduler refreshes the monthly catalogue on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/robfig/cron/v3"

	"github.com/c360studio/brandstudio/brand"
	"github.com/c360studio/brandstudio/state"
)

// DefaultSchedule fires at midnight on the first day of every month.
const DefaultSchedule = "0 0 1 * *"

// Summary describes the catalogue for one month.
type Summary struct {
	Month    time.Month
	Total    int
	BySource map[brand.Source]int
	Videos   int
}

// Scheduler recomputes the active month's catalogue when the month turns.
type Scheduler struct {
	store    *state.Store
	schedule cron.Schedule
	logger   *slog.Logger
	now      func() time.Time
	after    func(time.Duration) <-chan time.Time
	gauge    *prometheus.GaugeVec
	onRun    func(Summary)
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the scheduler logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// WithClock overrides the time source and timer, for tests.
func WithClock(now func() time.Time, after func(time.Duration) <-chan time.Time) Option {
	return func(s *Scheduler) {
		s.now = now
		s.after = after
	}
}

// WithRegisterer exports the catalogue size gauge.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(s *Scheduler) {
		s.gauge = promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "brandstudio_catalog_assets",
			Help: "Assets visible in the active month by source.",
		}, []string{"source"})
	}
}

// WithOnRun registers a callback invoked after every refresh.
func WithOnRun(fn func(Summary)) Option {
	return func(s *Scheduler) {
		s.onRun = fn
	}
}

// New parses a standard five-field cron expression.
func New(store *state.Store, expr string, opts ...Option) (*Scheduler, error) {
	if expr == "" {
		expr = DefaultSchedule
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	schedule, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}

	s := &Scheduler{
		store:    store,
		schedule: schedule,
		logger:   slog.Default(),
		now:      time.Now,
		after:    time.After,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Next returns the first fire time after t.
func (s *Scheduler) Next(t time.Time) time.Time {
	return s.schedule.Next(t)
}

// Run refreshes once immediately and then on every scheduled tick until ctx
// is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.Refresh()
	for {
		next := s.schedule.Next(s.now())
		s.logger.Debug("Next catalogue refresh", "at", next)
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler stopped")
			return ctx.Err()
		case <-s.after(next.Sub(s.now())):
			s.Refresh()
		}
	}
}

// Refresh summarises the current month's catalogue.
func (s *Scheduler) Refresh() Summary {
	month := s.now().Month()
	sum := Summary{Month: month, BySource: make(map[brand.Source]int)}
	for _, a := range s.store.MonthlyAssets(month, "") {
		sum.Total++
		sum.BySource[a.Source]++
		if a.Type == brand.AssetVideo {
			sum.Videos++
		}
	}

	if s.gauge != nil {
		for _, src := range brand.Sources() {
			s.gauge.WithLabelValues(string(src)).Set(float64(sum.BySource[src]))
		}
	}
	s.logger.Info("Monthly catalogue ready",
		"month", month.String(),
		"total", sum.Total,
		"global", sum.BySource[brand.SourceGlobal],
		"ai", sum.BySource[brand.SourceAI],
		"marketplace", sum.BySource[brand.SourceMarketplace],
		"videos", sum.Videos)
	if s.onRun != nil {
		s.onRun(sum)
	}
	return sum
}
