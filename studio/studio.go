// Package studio implements the user-facing actions of the brand studio:
// AI generation with credit accounting, the creator marketplace, the admin
// master library and brand import.
package studio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/c360studio/brandstudio/brand"
	"github.com/c360studio/brandstudio/brandimport"
	"github.com/c360studio/brandstudio/genai"
	"github.com/c360studio/brandstudio/state"
	"github.com/c360studio/brandstudio/storage"
)

var (
	// ErrInsufficientCredits is returned before any remote call when the
	// user's credit pool for the requested media is empty.
	ErrInsufficientCredits = state.ErrInsufficientCredits

	// ErrForbidden is returned when the user's role does not allow an action.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidInput wraps request validation failures.
	ErrInvalidInput = errors.New("invalid input")

	// ErrAlreadyAcquired is returned when a listing is already in the catalogue.
	ErrAlreadyAcquired = state.ErrAlreadyAcquired

	// ErrImportDisabled is returned by ImportBrand when no importer is set.
	ErrImportDisabled = errors.New("brand import is not configured")
)

// Default generation parameters.
const (
	DefaultImageStyle = "Cinematic"
	DefaultIconStyle  = "abstract"
)

// Generator produces media from prompts. *genai.Client implements it.
type Generator interface {
	GenerateImage(ctx context.Context, req genai.ImageRequest) (*genai.Media, error)
	GenerateLogo(ctx context.Context, req genai.LogoRequest) (*genai.Media, error)
	GenerateVideo(ctx context.Context, req genai.VideoRequest) (*genai.Video, error)
	GenerateSpeech(ctx context.Context, req genai.SpeechRequest) (*genai.Speech, error)
}

// Importer drafts a brand from a website. *brandimport.Importer implements it.
type Importer interface {
	Import(ctx context.Context, rawURL string) (*brandimport.Draft, error)
}

// Service ties the state store to the generation client.
type Service struct {
	store    *state.Store
	gen      Generator
	importer Importer
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithImporter enables ImportBrand.
func WithImporter(imp Importer) Option {
	return func(s *Service) {
		s.importer = imp
	}
}

// New creates a studio service.
func New(store *state.Store, gen Generator, opts ...Option) *Service {
	s := &Service{
		store:  store,
		gen:    gen,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the underlying state store.
func (s *Service) Store() *state.Store {
	return s.store
}

// ImageInput asks for an AI image placed in a catalogue month.
type ImageInput struct {
	Prompt string     `json:"prompt"`
	Style  string     `json:"style,omitempty"`
	Month  time.Month `json:"month,omitempty"`
}

// VideoInput asks for an AI video placed in a catalogue month.
type VideoInput struct {
	Prompt      string     `json:"prompt"`
	Resolution  string     `json:"resolution,omitempty"`
	AspectRatio string     `json:"aspect_ratio,omitempty"`
	Month       time.Month `json:"month,omitempty"`
}

// GenerateImage spends one image credit, generates brand artwork and files
// it as a seasonal AI asset. The credit is refunded if generation fails.
func (s *Service) GenerateImage(ctx context.Context, in ImageInput) (brand.MonthlyAsset, error) {
	prompt := strings.TrimSpace(in.Prompt)
	if prompt == "" {
		return brand.MonthlyAsset{}, fmt.Errorf("%w: prompt is required", ErrInvalidInput)
	}
	style := in.Style
	if style == "" {
		style = DefaultImageStyle
	}

	st, err := s.store.ConsumeCredit(ctx, brand.CreditImages)
	if err != nil {
		return brand.MonthlyAsset{}, err
	}

	media, err := s.gen.GenerateImage(ctx, genai.ImageRequest{
		Prompt: prompt,
		Style:  style,
		Brand:  st.User.Brand,
	})
	if err != nil {
		s.refund(ctx, brand.CreditImages)
		return brand.MonthlyAsset{}, fmt.Errorf("generate image: %w", err)
	}

	asset := brand.MonthlyAsset{
		ID:           storage.NewID(storage.PrefixAIImage),
		Title:        brand.ShortTitle(prompt),
		Type:         brand.AssetImage,
		URL:          media.DataURL(),
		Month:        s.month(in.Month),
		Language:     brand.LangEnglish,
		Source:       brand.SourceAI,
		Availability: brand.AvailableSeasonal,
	}
	if err := s.file(ctx, asset, prompt); err != nil {
		return brand.MonthlyAsset{}, err
	}
	s.logger.Info("Generated image", "asset_id", asset.ID, "request_id", media.RequestID, "model", media.Model)
	return asset, nil
}

// GenerateVideo spends one video credit, generates a short video and files
// it as a seasonal AI asset. The credit is refunded if generation fails.
func (s *Service) GenerateVideo(ctx context.Context, in VideoInput) (brand.MonthlyAsset, error) {
	prompt := strings.TrimSpace(in.Prompt)
	if prompt == "" {
		return brand.MonthlyAsset{}, fmt.Errorf("%w: prompt is required", ErrInvalidInput)
	}

	if _, err := s.store.ConsumeCredit(ctx, brand.CreditVideos); err != nil {
		return brand.MonthlyAsset{}, err
	}

	video, err := s.gen.GenerateVideo(ctx, genai.VideoRequest{
		Prompt:      prompt,
		Resolution:  in.Resolution,
		AspectRatio: in.AspectRatio,
	})
	if err != nil {
		s.refund(ctx, brand.CreditVideos)
		return brand.MonthlyAsset{}, fmt.Errorf("generate video: %w", err)
	}

	asset := brand.MonthlyAsset{
		ID:           storage.NewID(storage.PrefixAIVideo),
		Title:        brand.ShortTitle(prompt),
		Type:         brand.AssetVideo,
		URL:          video.URI,
		Month:        s.month(in.Month),
		Language:     brand.LangEnglish,
		Source:       brand.SourceAI,
		Availability: brand.AvailableSeasonal,
	}
	if err := s.file(ctx, asset, prompt); err != nil {
		return brand.MonthlyAsset{}, err
	}
	s.logger.Info("Generated video", "asset_id", asset.ID, "request_id", video.RequestID, "operation", video.Operation)
	return asset, nil
}

// refund returns a credit taken for a failed generation.
func (s *Service) refund(ctx context.Context, kind brand.CreditKind) {
	// The caller's context may already be cancelled.
	if _, err := s.store.UpdateCredits(context.WithoutCancel(ctx), kind, 1); err != nil {
		s.logger.Error("Failed to refund credit", "kind", kind, "error", err)
	}
}

// file adds a generated asset to the catalogue and the user's history.
func (s *Service) file(ctx context.Context, asset brand.MonthlyAsset, prompt string) error {
	if _, err := s.store.AddAsset(ctx, asset); err != nil {
		return fmt.Errorf("save asset: %w", err)
	}
	_, err := s.store.AddToHistory(ctx, brand.GeneratedAsset{
		ID:        asset.ID,
		URL:       asset.URL,
		Prompt:    prompt,
		Timestamp: s.now(),
		Type:      asset.Type,
	})
	if err != nil {
		return fmt.Errorf("save history: %w", err)
	}
	return nil
}

// month returns m, or the current month when m is unset.
func (s *Service) month(m time.Month) time.Month {
	if m >= time.January && m <= time.December {
		return m
	}
	return s.now().Month()
}

// GenerateLogo draws a logo for cfg and returns cfg with LogoURL set to the
// image data URL. The brand is not saved; onboarding saves it with SetBrand.
func (s *Service) GenerateLogo(ctx context.Context, cfg brand.Config, iconStyle string) (brand.Config, error) {
	if strings.TrimSpace(cfg.CompanyName) == "" {
		return cfg, fmt.Errorf("%w: company name is required", ErrInvalidInput)
	}
	if iconStyle == "" {
		iconStyle = DefaultIconStyle
	}

	media, err := s.gen.GenerateLogo(ctx, genai.LogoRequest{Brand: cfg, IconStyle: iconStyle})
	if err != nil {
		return cfg, fmt.Errorf("generate logo: %w", err)
	}
	cfg.LogoURL = media.DataURL()
	s.logger.Info("Generated logo", "company", cfg.CompanyName, "request_id", media.RequestID)
	return cfg, nil
}

// Speak reads text aloud in the given language.
func (s *Service) Speak(ctx context.Context, text string, lang brand.Language, voice string) (*genai.Speech, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: text is required", ErrInvalidInput)
	}
	if lang == "" {
		lang = brand.LangEnglish
	}
	if !genai.SpeechLanguage(lang) {
		return nil, fmt.Errorf("%w: speech supports %s and %s, not %q", ErrInvalidInput, brand.LangEnglish, brand.LangHindi, lang)
	}
	speech, err := s.gen.GenerateSpeech(ctx, genai.SpeechRequest{Text: text, Voice: voice, Language: lang})
	if err != nil {
		return nil, fmt.Errorf("generate speech: %w", err)
	}
	return speech, nil
}

// ImportBrand drafts a brand profile from the company website.
func (s *Service) ImportBrand(ctx context.Context, rawURL string) (*brandimport.Draft, error) {
	if s.importer == nil {
		return nil, ErrImportDisabled
	}
	if strings.TrimSpace(rawURL) == "" {
		return nil, fmt.Errorf("%w: url is required", ErrInvalidInput)
	}
	draft, err := s.importer.Import(ctx, rawURL)
	if errors.Is(err, brandimport.ErrBlockedURL) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return draft, err
}
