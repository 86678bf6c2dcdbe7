package state_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/brandstudio/brand"
	"github.com/c360studio/brandstudio/state"
	"github.com/c360studio/brandstudio/storage"
)

func signedIn(t *testing.T, opts ...state.Option) *state.Store {
	t.Helper()
	s := state.New(opts...)
	_, err := s.Login(context.Background(), "priya@chai.in", brand.RoleUser)
	require.NoError(t, err)
	return s
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	s := state.New()

	st, err := s.Login(ctx, "priya@chai.in", brand.RoleCreator)
	require.NoError(t, err)
	require.NotNil(t, st.User)
	assert.Equal(t, "priya", st.User.Name)
	assert.Equal(t, brand.RoleCreator, st.User.Role)
	assert.Equal(t, brand.Credits{Images: 100, Videos: 100}, st.User.Credits)
	assert.Nil(t, st.User.Brand)

	_, err = s.Login(ctx, "not-an-email", brand.RoleUser)
	assert.Error(t, err)
}

func TestLogin_MasterAdmin(t *testing.T) {
	s := state.New()

	st, err := s.Login(context.Background(), "Admin@AutoBrand.Studio", brand.RoleUser)
	require.NoError(t, err)
	assert.Equal(t, brand.RoleAdmin, st.User.Role)
	require.NotNil(t, st.User.Brand)
	assert.Equal(t, "AutoBrand Studio HQ", st.User.Brand.CompanyName)
	assert.Equal(t, []string{"#4f46e5"}, st.User.Brand.Colors)
}

func TestLogout(t *testing.T) {
	ctx := context.Background()
	s := signedIn(t)
	_, err := s.AddAsset(ctx, brand.MonthlyAsset{ID: "a1"})
	require.NoError(t, err)

	st, err := s.Logout(ctx)
	require.NoError(t, err)
	assert.Nil(t, st.User)
	assert.Len(t, st.Assets, 1)
}

func TestSetBrand(t *testing.T) {
	ctx := context.Background()
	cfg := brand.Config{
		CompanyName:   "Chai Point",
		ContactNumber: "+91 1",
		Address:       "Pune",
		Colors:        []string{"#112233"},
	}

	_, err := state.New().SetBrand(ctx, cfg)
	assert.ErrorIs(t, err, state.ErrNoUser)

	s := signedIn(t)
	_, err = s.SetBrand(ctx, brand.Config{})
	assert.Error(t, err)

	st, err := s.SetBrand(ctx, cfg)
	require.NoError(t, err)
	assert.Equal(t, "Chai Point", st.User.Brand.CompanyName)

	// Mutating the caller's slice must not leak into the store
	cfg.Colors[0] = "#000000"
	assert.Equal(t, "#112233", s.User().Brand.Colors[0])
}

func TestAssets_AddRemove(t *testing.T) {
	ctx := context.Background()
	s := state.New()

	_, err := s.AddAsset(ctx, brand.MonthlyAsset{ID: "a1"})
	require.NoError(t, err)
	_, err = s.AddAsset(ctx, brand.MonthlyAsset{ID: "a2"})
	require.NoError(t, err)
	st, err := s.AddAsset(ctx, brand.MonthlyAsset{ID: "a3"})
	require.NoError(t, err)

	ids := func(st state.State) []string {
		var out []string
		for _, a := range st.Assets {
			out = append(out, a.ID)
		}
		return out
	}
	assert.Equal(t, []string{"a3", "a2", "a1"}, ids(st), "newest first")

	st, err = s.RemoveAsset(ctx, "a2")
	require.NoError(t, err)
	assert.Equal(t, []string{"a3", "a1"}, ids(st))

	_, err = s.RemoveAsset(ctx, "a2")
	assert.ErrorIs(t, err, state.ErrNotFound)

	st, err = s.BulkRemoveAssets(ctx, []string{"a1", "a3", "zzz"})
	require.NoError(t, err)
	assert.Empty(t, st.Assets)

	st, err = s.SetAssets(ctx, []brand.MonthlyAsset{{ID: "x"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, ids(st))
}

func TestMarketplace(t *testing.T) {
	ctx := context.Background()
	s := state.New()

	_, err := s.SetMarketplace(ctx, []brand.MarketplaceAsset{{ID: "m1", Tags: []string{"festive"}}})
	require.NoError(t, err)
	st, err := s.AddMarketplaceAsset(ctx, brand.MarketplaceAsset{ID: "m2"})
	require.NoError(t, err)
	require.Len(t, st.Marketplace, 2)
	assert.Equal(t, "m2", st.Marketplace[0].ID)

	// Snapshots are independent copies
	st.Marketplace[1].Tags[0] = "changed"
	m, ok := s.Listing("m1")
	require.True(t, ok)
	assert.Equal(t, []string{"festive"}, m.Tags)

	_, ok = s.Listing("nope")
	assert.False(t, ok)
}

func TestUpdateCredits(t *testing.T) {
	ctx := context.Background()

	st, err := state.New().UpdateCredits(ctx, brand.CreditImages, -1)
	require.NoError(t, err, "no-op without a user")
	assert.Nil(t, st.User)

	s := signedIn(t)
	st, err = s.UpdateCredits(ctx, brand.CreditVideos, -5)
	require.NoError(t, err)
	assert.Equal(t, 95, st.User.Credits.Videos)
	assert.Equal(t, 100, st.User.Credits.Images)

	_, err = s.UpdateCredits(ctx, "coins", 1)
	assert.Error(t, err)
}

func TestConsumeCredit(t *testing.T) {
	ctx := context.Background()

	_, err := state.New().ConsumeCredit(ctx, brand.CreditImages)
	assert.ErrorIs(t, err, state.ErrNoUser)

	s := signedIn(t)
	_, err = s.UpdateCredits(ctx, brand.CreditImages, -99)
	require.NoError(t, err)

	st, err := s.ConsumeCredit(ctx, brand.CreditImages)
	require.NoError(t, err)
	assert.Equal(t, 0, st.User.Credits.Images)

	_, err = s.ConsumeCredit(ctx, brand.CreditImages)
	assert.ErrorIs(t, err, state.ErrInsufficientCredits)
	assert.Equal(t, 0, s.User().Credits.Images)
}

func TestAddToHistory_KeepsTen(t *testing.T) {
	ctx := context.Background()

	_, err := state.New().AddToHistory(ctx, brand.GeneratedAsset{ID: "g"})
	require.NoError(t, err)

	s := signedIn(t)
	var st state.State
	for i := 0; i < 12; i++ {
		st, err = s.AddToHistory(ctx, brand.GeneratedAsset{ID: fmt.Sprintf("g%d", i)})
		require.NoError(t, err)
	}
	require.Len(t, st.User.GenerationHistory, state.HistoryLimit)
	assert.Equal(t, "g11", st.User.GenerationHistory[0].ID)
	assert.Equal(t, "g2", st.User.GenerationHistory[9].ID)
}

func TestMonthlyAssets(t *testing.T) {
	ctx := context.Background()
	s := state.New()
	_, err := s.SetAssets(ctx, []brand.MonthlyAsset{
		{ID: "diwali", Month: time.October, Source: brand.SourceGlobal, Availability: brand.AvailableSeasonal},
		{ID: "logo-pack", Month: 0, Source: brand.SourceGlobal, Availability: brand.AvailableAnytime},
		{ID: "ai-oct", Month: time.October, Source: brand.SourceAI, Availability: brand.AvailableSeasonal},
		{ID: "bought", Month: time.March, Source: brand.SourceMarketplace, Availability: brand.AvailableAnytime},
	})
	require.NoError(t, err)

	idsOf := func(assets []brand.MonthlyAsset) []string {
		var out []string
		for _, a := range assets {
			out = append(out, a.ID)
		}
		return out
	}

	assert.Equal(t, []string{"diwali", "logo-pack", "ai-oct", "bought"}, idsOf(s.MonthlyAssets(time.October, "")))
	assert.Equal(t, []string{"logo-pack", "bought"}, idsOf(s.MonthlyAssets(time.January, "")))
	assert.Equal(t, []string{"ai-oct"}, idsOf(s.MonthlyAssets(time.October, brand.SourceAI)))
	assert.Equal(t, []string{"diwali", "logo-pack"}, idsOf(s.MasterLibrary("")))
	assert.Equal(t, []string{"logo-pack"}, idsOf(s.MasterLibrary("PACK")))

	assert.Equal(t, state.Stats{Total: 4, Global: 2, AI: 1, Marketplace: 1, Anytime: 2}, s.Stats())
}

func TestIsAcquired(t *testing.T) {
	ctx := context.Background()
	s := state.New()
	at := time.UnixMilli(1760000000000)

	id := state.PurchasedID("mkt-1", at)
	assert.Equal(t, "purchased-mkt-1-1760000000000", id)

	_, err := s.AddAsset(ctx, brand.MonthlyAsset{ID: id})
	require.NoError(t, err)

	assert.True(t, s.IsAcquired("mkt-1"))
	assert.False(t, s.IsAcquired("mkt-10"))
	assert.False(t, s.IsAcquired("mkt"))
}

func TestAcquire(t *testing.T) {
	ctx := context.Background()
	s := state.New()
	at := time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)

	_, err := s.AddMarketplaceAsset(ctx, brand.MarketplaceAsset{
		ID: "mkt-1", Title: "Holi frame", Type: brand.AssetVideo, URL: "https://cdn.example.com/holi.mp4",
	})
	require.NoError(t, err)

	asset, err := s.Acquire(ctx, "mkt-1", at)
	require.NoError(t, err)
	assert.Equal(t, state.PurchasedID("mkt-1", at), asset.ID)
	assert.Equal(t, brand.AssetVideo, asset.Type)
	assert.Equal(t, time.March, asset.Month)
	assert.Equal(t, brand.SourceMarketplace, asset.Source)
	assert.Equal(t, brand.AvailableAnytime, asset.Availability)
	assert.Equal(t, asset, s.Snapshot().Assets[0])

	_, err = s.Acquire(ctx, "mkt-1", at.Add(time.Hour))
	assert.ErrorIs(t, err, state.ErrAlreadyAcquired)

	_, err = s.Acquire(ctx, "mkt-404", at)
	assert.ErrorIs(t, err, state.ErrNotFound)
	assert.Len(t, s.Snapshot().Assets, 1)
}

func TestAcquire_Concurrent(t *testing.T) {
	ctx := context.Background()
	s := state.New()
	_, err := s.AddMarketplaceAsset(ctx, brand.MarketplaceAsset{ID: "mkt-1", Title: "Frame"})
	require.NoError(t, err)

	const workers = 16
	base := time.UnixMilli(1760000000000)
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Acquire(ctx, "mkt-1", base.Add(time.Duration(i)*time.Millisecond))
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	copies := 0
	for _, a := range s.Snapshot().Assets {
		if strings.HasPrefix(a.ID, "purchased-mkt-1-") {
			copies++
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, copies)
}

func TestPersistence_RoundTrip(t *testing.T) {
	ctx := context.Background()
	bucket := storage.NewMemory()

	s, err := state.Open(ctx, state.WithPersister(state.NewBucketPersister(bucket)))
	require.NoError(t, err)
	assert.Nil(t, s.Snapshot().User)

	_, err = s.Login(ctx, "priya@chai.in", brand.RoleUser)
	require.NoError(t, err)
	_, err = s.AddAsset(ctx, brand.MonthlyAsset{ID: "a1", Source: brand.SourceAI, Availability: brand.AvailableSeasonal, Month: time.May})
	require.NoError(t, err)

	reopened, err := state.Open(ctx, state.WithPersister(state.NewBucketPersister(bucket)))
	require.NoError(t, err)
	snap := reopened.Snapshot()
	require.NotNil(t, snap.User)
	assert.Equal(t, "priya", snap.User.Name)
	require.Len(t, snap.Assets, 1)
	assert.Equal(t, time.May, snap.Assets[0].Month)
}

func TestPersistence_CorruptSnapshot(t *testing.T) {
	ctx := context.Background()
	bucket := storage.NewMemory()
	require.NoError(t, bucket.Put(ctx, state.DefaultKey, []byte("{")))

	_, err := state.Open(ctx, state.WithPersister(state.NewBucketPersister(bucket)))
	assert.Error(t, err)
}

type failingPersister struct{}

func (failingPersister) Load(context.Context) (state.State, error) {
	return state.State{}, storage.ErrNotFound
}

func (failingPersister) Save(context.Context, state.State) error {
	return errors.New("disk full")
}

func TestPersistence_FailedSaveKeepsPreviousState(t *testing.T) {
	ctx := context.Background()
	s, err := state.Open(ctx, state.WithPersister(failingPersister{}))
	require.NoError(t, err)

	_, err = s.AddAsset(ctx, brand.MonthlyAsset{ID: "a1"})
	require.ErrorContains(t, err, "disk full")
	assert.Empty(t, s.Snapshot().Assets)
}
