package scheduler_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/brandstudio/brand"
	"github.com/c360studio/brandstudio/scheduler"
	"github.com/c360studio/brandstudio/state"
)

func seeded(t *testing.T) *state.Store {
	t.Helper()
	s := state.New()
	_, err := s.SetAssets(context.Background(), []brand.MonthlyAsset{
		{ID: "diwali", Month: time.October, Source: brand.SourceGlobal, Availability: brand.AvailableSeasonal},
		{ID: "reel", Month: time.October, Source: brand.SourceAI, Availability: brand.AvailableSeasonal, Type: brand.AssetVideo},
		{ID: "frame", Source: brand.SourceMarketplace, Availability: brand.AvailableAnytime},
		{ID: "holi", Month: time.March, Source: brand.SourceGlobal, Availability: brand.AvailableSeasonal},
	})
	require.NoError(t, err)
	return s
}

func TestNew_InvalidExpression(t *testing.T) {
	_, err := scheduler.New(state.New(), "every tuesday")
	assert.Error(t, err)
}

func TestNext_FirstOfMonth(t *testing.T) {
	s, err := scheduler.New(state.New(), "")
	require.NoError(t, err)

	from := time.Date(2026, time.October, 19, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, time.November, 1, 0, 0, 0, 0, time.UTC), s.Next(from))

	from = time.Date(2026, time.December, 31, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2027, time.January, 1, 0, 0, 0, 0, time.UTC), s.Next(from))
}

func TestRefresh(t *testing.T) {
	reg := prometheus.NewRegistry()
	now := time.Date(2026, time.October, 19, 0, 0, 0, 0, time.UTC)
	s, err := scheduler.New(seeded(t), scheduler.DefaultSchedule,
		scheduler.WithRegisterer(reg),
		scheduler.WithClock(func() time.Time { return now }, time.After))
	require.NoError(t, err)

	sum := s.Refresh()
	assert.Equal(t, time.October, sum.Month)
	assert.Equal(t, 3, sum.Total)
	assert.Equal(t, 1, sum.Videos)
	assert.Equal(t, 1, sum.BySource[brand.SourceGlobal])

	expected := `
# HELP brandstudio_catalog_assets Assets visible in the active month by source.
# TYPE brandstudio_catalog_assets gauge
brandstudio_catalog_assets{source="ai"} 1
brandstudio_catalog_assets{source="global"} 1
brandstudio_catalog_assets{source="local"} 0
brandstudio_catalog_assets{source="marketplace"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "brandstudio_catalog_assets"))
}

func TestRun_RefreshesOnStartAndOnTick(t *testing.T) {
	now := time.Date(2026, time.October, 31, 23, 0, 0, 0, time.UTC)
	ticks := make(chan time.Time)
	waits := make(chan time.Duration, 4)
	runs := make(chan scheduler.Summary, 4)

	s, err := scheduler.New(seeded(t), "",
		scheduler.WithClock(
			func() time.Time { return now },
			func(d time.Duration) <-chan time.Time {
				waits <- d
				return ticks
			}),
		scheduler.WithOnRun(func(sum scheduler.Summary) { runs <- sum }))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	first := <-runs
	assert.Equal(t, time.October, first.Month)
	assert.Equal(t, time.Hour, <-waits)

	now = time.Date(2026, time.November, 1, 0, 0, 0, 0, time.UTC)
	ticks <- now
	second := <-runs
	assert.Equal(t, time.November, second.Month)
	assert.Equal(t, 1, second.Total, "only the anytime asset remains")
	assert.Equal(t, 30*24*time.Hour, <-waits)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
