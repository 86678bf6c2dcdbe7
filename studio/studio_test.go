package studio_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/brandstudio/brand"
	"github.com/c360studio/brandstudio/brandimport"
	"github.com/c360studio/brandstudio/genai"
	"github.com/c360studio/brandstudio/state"
	"github.com/c360studio/brandstudio/studio"
)

var fixedNow = time.Date(2026, time.October, 19, 9, 30, 0, 0, time.UTC)

type fakeGenerator struct {
	err       error
	calls     atomic.Int32
	lastImage genai.ImageRequest
	lastVideo genai.VideoRequest
}

func (f *fakeGenerator) GenerateImage(_ context.Context, req genai.ImageRequest) (*genai.Media, error) {
	f.calls.Add(1)
	f.lastImage = req
	if f.err != nil {
		return nil, f.err
	}
	return &genai.Media{RequestID: "req-1", Model: "m", MIMEType: "image/png", Data: []byte("png")}, nil
}

func (f *fakeGenerator) GenerateLogo(_ context.Context, req genai.LogoRequest) (*genai.Media, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return &genai.Media{MIMEType: "image/png", Data: []byte(req.IconStyle)}, nil
}

func (f *fakeGenerator) GenerateVideo(_ context.Context, req genai.VideoRequest) (*genai.Video, error) {
	f.calls.Add(1)
	f.lastVideo = req
	if f.err != nil {
		return nil, f.err
	}
	return &genai.Video{RequestID: "req-2", Operation: "operations/1", URI: "https://v.example/1.mp4?key=k"}, nil
}

func (f *fakeGenerator) GenerateSpeech(_ context.Context, req genai.SpeechRequest) (*genai.Speech, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return &genai.Speech{Model: req.Voice, SampleRate: 24000, Channels: 1, PCM: []byte{0, 0}, Samples: []float32{0}}, nil
}

func newService(t *testing.T, gen studio.Generator, role brand.Role, opts ...studio.Option) *studio.Service {
	t.Helper()
	store := state.New(state.WithClock(func() time.Time { return fixedNow }))
	if role != "" {
		_, err := store.Login(context.Background(), "priya@chai.in", role)
		require.NoError(t, err)
	}
	opts = append([]studio.Option{studio.WithClock(func() time.Time { return fixedNow })}, opts...)
	return studio.New(store, gen, opts...)
}

func TestGenerateImage(t *testing.T) {
	ctx := context.Background()
	gen := &fakeGenerator{}
	svc := newService(t, gen, brand.RoleUser)

	asset, err := svc.GenerateImage(ctx, studio.ImageInput{Prompt: "Diwali sweets box with diyas glowing"})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(asset.ID, "ai-img-"))
	assert.Equal(t, "Diwali sweets box wi...", asset.Title)
	assert.Equal(t, brand.AssetImage, asset.Type)
	assert.Equal(t, "data:image/png;base64,cG5n", asset.URL)
	assert.Equal(t, time.October, asset.Month, "defaults to the current month")
	assert.Equal(t, brand.SourceAI, asset.Source)
	assert.Equal(t, brand.AvailableSeasonal, asset.Availability)
	assert.Equal(t, studio.DefaultImageStyle, gen.lastImage.Style)

	snap := svc.Store().Snapshot()
	assert.Equal(t, 99, snap.User.Credits.Images)
	require.Len(t, snap.Assets, 1)
	require.Len(t, snap.User.GenerationHistory, 1)
	assert.Equal(t, asset.ID, snap.User.GenerationHistory[0].ID)
	assert.Equal(t, fixedNow, snap.User.GenerationHistory[0].Timestamp)
}

func TestGenerateImage_ExplicitMonthAndBrand(t *testing.T) {
	ctx := context.Background()
	gen := &fakeGenerator{}
	svc := newService(t, gen, brand.RoleUser)
	_, err := svc.Store().SetBrand(ctx, brand.Config{
		CompanyName: "Chai Point", ContactNumber: "1", Address: "Pune", Colors: []string{"#e85d04"},
	})
	require.NoError(t, err)

	asset, err := svc.GenerateImage(ctx, studio.ImageInput{Prompt: "Holi", Style: "Watercolor", Month: time.March})
	require.NoError(t, err)
	assert.Equal(t, time.March, asset.Month)
	assert.Equal(t, "Watercolor", gen.lastImage.Style)
	require.NotNil(t, gen.lastImage.Brand)
	assert.Equal(t, "Chai Point", gen.lastImage.Brand.CompanyName)
}

func TestGenerateImage_NoCreditsSkipsRemoteCall(t *testing.T) {
	ctx := context.Background()
	gen := &fakeGenerator{}
	svc := newService(t, gen, brand.RoleUser)
	_, err := svc.Store().UpdateCredits(ctx, brand.CreditImages, -state.InitialCredits)
	require.NoError(t, err)

	_, err = svc.GenerateImage(ctx, studio.ImageInput{Prompt: "x"})
	assert.ErrorIs(t, err, studio.ErrInsufficientCredits)
	assert.Zero(t, gen.calls.Load())
}

func TestGenerateImage_FailureRefundsCredit(t *testing.T) {
	ctx := context.Background()
	gen := &fakeGenerator{err: errors.New("all endpoints failed")}
	svc := newService(t, gen, brand.RoleUser)

	_, err := svc.GenerateImage(ctx, studio.ImageInput{Prompt: "x"})
	require.ErrorContains(t, err, "all endpoints failed")

	snap := svc.Store().Snapshot()
	assert.Equal(t, state.InitialCredits, snap.User.Credits.Images)
	assert.Empty(t, snap.Assets)
	assert.Empty(t, snap.User.GenerationHistory)
}

func TestGenerateImage_Validation(t *testing.T) {
	gen := &fakeGenerator{}

	_, err := newService(t, gen, brand.RoleUser).GenerateImage(context.Background(), studio.ImageInput{Prompt: "  "})
	assert.ErrorIs(t, err, studio.ErrInvalidInput)

	_, err = newService(t, gen, "").GenerateImage(context.Background(), studio.ImageInput{Prompt: "x"})
	assert.ErrorIs(t, err, state.ErrNoUser)
	assert.Zero(t, gen.calls.Load())
}

func TestGenerateVideo(t *testing.T) {
	ctx := context.Background()
	gen := &fakeGenerator{}
	svc := newService(t, gen, brand.RoleUser)

	asset, err := svc.GenerateVideo(ctx, studio.VideoInput{Prompt: "Chai pour in slow motion"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(asset.ID, "ai-vid-"))
	assert.Equal(t, brand.AssetVideo, asset.Type)
	assert.Equal(t, "https://v.example/1.mp4?key=k", asset.URL)
	assert.Equal(t, 99, svc.Store().Snapshot().User.Credits.Videos)
	assert.Equal(t, 100, svc.Store().Snapshot().User.Credits.Images)

	gen.err = errors.New("boom")
	_, err = svc.GenerateVideo(ctx, studio.VideoInput{Prompt: "again"})
	require.Error(t, err)
	assert.Equal(t, 99, svc.Store().Snapshot().User.Credits.Videos)
}

func TestGenerateVideo_RefundSurvivesCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	gen := &fakeGenerator{err: context.Canceled}
	svc := newService(t, gen, brand.RoleUser)
	cancel()

	_, err := svc.GenerateVideo(ctx, studio.VideoInput{Prompt: "x"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, state.InitialCredits, svc.Store().Snapshot().User.Credits.Videos)
}

func TestGenerateLogo(t *testing.T) {
	svc := newService(t, &fakeGenerator{}, brand.RoleUser)

	cfg, err := svc.GenerateLogo(context.Background(), brand.Config{CompanyName: "Chai Point"}, "")
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,YWJzdHJhY3Q=", cfg.LogoURL, "default icon style is abstract")
	assert.Nil(t, svc.Store().User().Brand, "logo generation does not save the brand")

	_, err = svc.GenerateLogo(context.Background(), brand.Config{}, "")
	assert.ErrorIs(t, err, studio.ErrInvalidInput)
}

func TestSpeak(t *testing.T) {
	svc := newService(t, &fakeGenerator{}, "")

	speech, err := svc.Speak(context.Background(), "Namaste", brand.LangHindi, "Puck")
	require.NoError(t, err)
	assert.Equal(t, "Puck", speech.Model)

	_, err = svc.Speak(context.Background(), "", brand.LangEnglish, "")
	assert.ErrorIs(t, err, studio.ErrInvalidInput)
}

func TestSpeak_RejectsUnsupportedLanguage(t *testing.T) {
	gen := &fakeGenerator{}
	svc := newService(t, gen, "")

	_, err := svc.Speak(context.Background(), "Namaskar", brand.LangMarathi, "")
	assert.ErrorIs(t, err, studio.ErrInvalidInput)
	assert.Equal(t, int32(0), gen.calls.Load())
}

func TestListAndAcquire(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, &fakeGenerator{}, brand.RoleCreator)

	listing, err := svc.ListAsset(ctx, studio.ListingInput{Title: "Festive frame", Price: 199, URL: "data:video/mp4;base64,AAAA"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(listing.ID, "mkt-"))
	assert.Equal(t, brand.AssetVideo, listing.Type)
	assert.Equal(t, listing.URL, listing.Thumbnail)
	assert.Equal(t, []string{"new-arrival", "creator"}, listing.Tags)
	assert.Equal(t, "priya", listing.CreatorName)

	asset, err := svc.Acquire(ctx, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, state.PurchasedID(listing.ID, fixedNow), asset.ID)
	assert.Equal(t, brand.SourceMarketplace, asset.Source)
	assert.Equal(t, brand.AvailableAnytime, asset.Availability)
	assert.Equal(t, time.October, asset.Month)
	assert.Len(t, svc.Store().MonthlyAssets(time.February, ""), 1, "purchases are visible every month")

	_, err = svc.Acquire(ctx, listing.ID)
	assert.ErrorIs(t, err, studio.ErrAlreadyAcquired)

	_, err = svc.Acquire(ctx, "mkt-missing")
	assert.ErrorIs(t, err, state.ErrNotFound)
}

func TestAcquire_ConcurrentCallersGetOneCopy(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, &fakeGenerator{}, brand.RoleCreator)

	listing, err := svc.ListAsset(ctx, studio.ListingInput{Title: "Festive frame", Price: 99, URL: "https://cdn.example.com/frame.png"})
	require.NoError(t, err)

	var (
		wg       sync.WaitGroup
		acquired atomic.Int32
		rejected atomic.Int32
	)
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Acquire(ctx, listing.ID)
			switch {
			case err == nil:
				acquired.Add(1)
			case errors.Is(err, studio.ErrAlreadyAcquired):
				rejected.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), acquired.Load())
	assert.Equal(t, int32(15), rejected.Load())
	assert.Len(t, svc.Store().Snapshot().Assets, 1)
}

func TestListAsset_Validation(t *testing.T) {
	ctx := context.Background()

	_, err := newService(t, &fakeGenerator{}, "").ListAsset(ctx, studio.ListingInput{Title: "a", Price: 1, URL: "u"})
	assert.ErrorIs(t, err, state.ErrNoUser)

	svc := newService(t, &fakeGenerator{}, brand.RoleCreator)
	for _, in := range []studio.ListingInput{
		{Price: 1, URL: "u"},
		{Title: "a", Price: 1},
		{Title: "a", URL: "u"},
	} {
		_, err := svc.ListAsset(ctx, in)
		assert.ErrorIs(t, err, studio.ErrInvalidInput)
	}
}

func TestIngestMaster(t *testing.T) {
	ctx := context.Background()

	_, err := newService(t, &fakeGenerator{}, brand.RoleUser).IngestMaster(ctx, studio.MasterInput{Title: "t", URL: "u"})
	assert.ErrorIs(t, err, studio.ErrForbidden)

	svc := newService(t, &fakeGenerator{}, brand.RoleAdmin)

	anytime, err := svc.IngestMaster(ctx, studio.MasterInput{
		Title: "Logo reveal", URL: "data:video/mp4;base64,AA", Month: time.June, Availability: brand.AvailableAnytime,
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(anytime.ID, "mstr-"))
	assert.Equal(t, time.Month(0), anytime.Month)
	assert.Equal(t, brand.AssetVideo, anytime.Type)
	assert.Equal(t, brand.SourceGlobal, anytime.Source)

	seasonal, err := svc.IngestMaster(ctx, studio.MasterInput{Title: "Diwali", URL: "https://cdn/x.png", Month: time.November})
	require.NoError(t, err)
	assert.Equal(t, time.November, seasonal.Month)
	assert.Equal(t, brand.AvailableSeasonal, seasonal.Availability)
	assert.Equal(t, brand.AssetImage, seasonal.Type)

	_, err = svc.IngestMaster(ctx, studio.MasterInput{Title: "x", URL: "u", Availability: "sometimes"})
	assert.ErrorIs(t, err, studio.ErrInvalidInput)

	assert.Len(t, svc.Store().MasterLibrary(""), 2)
}

func TestMediaTypeFromURL(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		url  string
		want brand.AssetType
	}{
		{"https://cdn.example.com/clip.mp4", brand.AssetVideo},
		{"https://cdn.example.com/clip.MOV?sig=abc", brand.AssetVideo},
		{"https://cdn.example.com/reel.webm#t=2", brand.AssetVideo},
		{"data:video/mp4;base64,AAAA", brand.AssetVideo},
		{"https://cdn.example.com/poster.png", brand.AssetImage},
		{"https://cdn.example.com/mp4/poster.jpg", brand.AssetImage},
		{"data:image/png;base64,AAAA", brand.AssetImage},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			creator := newService(t, &fakeGenerator{}, brand.RoleCreator)
			listing, err := creator.ListAsset(ctx, studio.ListingInput{Title: "t", Price: 10, URL: tt.url})
			require.NoError(t, err)
			assert.Equal(t, tt.want, listing.Type)

			admin := newService(t, &fakeGenerator{}, brand.RoleAdmin)
			master, err := admin.IngestMaster(ctx, studio.MasterInput{Title: "t", URL: tt.url})
			require.NoError(t, err)
			assert.Equal(t, tt.want, master.Type)
		})
	}
}

type fakeImporter struct{ err error }

func (f fakeImporter) Import(_ context.Context, rawURL string) (*brandimport.Draft, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &brandimport.Draft{Brand: brand.Config{CompanyName: "Chai Point", Website: rawURL}}, nil
}

func TestImportBrand(t *testing.T) {
	ctx := context.Background()

	_, err := newService(t, &fakeGenerator{}, brand.RoleUser).ImportBrand(ctx, "https://chaipoint.in")
	assert.ErrorIs(t, err, studio.ErrImportDisabled)

	svc := newService(t, &fakeGenerator{}, brand.RoleUser, studio.WithImporter(fakeImporter{}))
	draft, err := svc.ImportBrand(ctx, "https://chaipoint.in")
	require.NoError(t, err)
	assert.Equal(t, "Chai Point", draft.Brand.CompanyName)

	blocked := newService(t, &fakeGenerator{}, brand.RoleUser,
		studio.WithImporter(fakeImporter{err: brandimport.ErrBlockedURL}))
	_, err = blocked.ImportBrand(ctx, "https://10.0.0.1")
	assert.ErrorIs(t, err, studio.ErrInvalidInput)
}
