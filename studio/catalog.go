package studio

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/c360studio/brandstudio/brand"
	"github.com/c360studio/brandstudio/state"
	"github.com/c360studio/brandstudio/storage"
)

// ListingInput describes a template a creator puts up for sale.
type ListingInput struct {
	Title     string `json:"title"`
	Price     int    `json:"price"`
	URL       string `json:"url"`
	Thumbnail string `json:"thumbnail,omitempty"`
}

// ListAsset publishes a marketplace listing owned by the current user.
func (s *Service) ListAsset(ctx context.Context, in ListingInput) (brand.MarketplaceAsset, error) {
	user := s.store.User()
	if user == nil {
		return brand.MarketplaceAsset{}, state.ErrNoUser
	}
	title := strings.TrimSpace(in.Title)
	switch {
	case title == "":
		return brand.MarketplaceAsset{}, fmt.Errorf("%w: title is required", ErrInvalidInput)
	case in.URL == "":
		return brand.MarketplaceAsset{}, fmt.Errorf("%w: url is required", ErrInvalidInput)
	case in.Price <= 0:
		return brand.MarketplaceAsset{}, fmt.Errorf("%w: price must be positive", ErrInvalidInput)
	}

	thumb := in.Thumbnail
	if thumb == "" {
		thumb = in.URL
	}
	listing := brand.MarketplaceAsset{
		ID:          storage.NewID(storage.PrefixListing),
		Title:       title,
		CreatorID:   user.ID,
		CreatorName: user.Name,
		Price:       in.Price,
		URL:         in.URL,
		Thumbnail:   thumb,
		Type:        mediaType(in.URL),
		Tags:        []string{"new-arrival", strings.ToLower(string(user.Role))},
	}
	if _, err := s.store.AddMarketplaceAsset(ctx, listing); err != nil {
		return brand.MarketplaceAsset{}, fmt.Errorf("save listing: %w", err)
	}
	s.logger.Info("Listed asset", "listing_id", listing.ID, "creator_id", user.ID, "price", listing.Price)
	return listing, nil
}

// Acquire copies a marketplace listing into the catalogue as a permanent
// asset. A listing can be acquired once.
func (s *Service) Acquire(ctx context.Context, listingID string) (brand.MonthlyAsset, error) {
	asset, err := s.store.Acquire(ctx, listingID, s.now())
	if err != nil {
		return brand.MonthlyAsset{}, err
	}
	s.logger.Info("Acquired listing", "listing_id", listingID, "asset_id", asset.ID)
	return asset, nil
}

// MasterInput describes a global template ingested by an admin.
type MasterInput struct {
	Title        string             `json:"title"`
	URL          string             `json:"url"`
	Month        time.Month         `json:"month,omitempty"`
	Availability brand.Availability `json:"availability"`
}

// IngestMaster adds a global template to the master library. Only admins may
// ingest. Anytime templates carry month 0.
func (s *Service) IngestMaster(ctx context.Context, in MasterInput) (brand.MonthlyAsset, error) {
	user := s.store.User()
	if user == nil {
		return brand.MonthlyAsset{}, state.ErrNoUser
	}
	if user.Role != brand.RoleAdmin {
		return brand.MonthlyAsset{}, fmt.Errorf("%w: master library requires %s", ErrForbidden, brand.RoleAdmin)
	}
	title := strings.TrimSpace(in.Title)
	if title == "" || in.URL == "" {
		return brand.MonthlyAsset{}, fmt.Errorf("%w: title and url are required", ErrInvalidInput)
	}

	availability := in.Availability
	if availability == "" {
		availability = brand.AvailableSeasonal
	}
	if _, err := brand.ParseAvailability(string(availability)); err != nil {
		return brand.MonthlyAsset{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	var month time.Month
	if availability == brand.AvailableSeasonal {
		month = s.month(in.Month)
	}

	asset := brand.MonthlyAsset{
		ID:           storage.NewID(storage.PrefixMaster),
		Title:        title,
		Type:         mediaType(in.URL),
		URL:          in.URL,
		Month:        month,
		Language:     brand.LangEnglish,
		Source:       brand.SourceGlobal,
		Availability: availability,
	}
	if _, err := s.store.AddAsset(ctx, asset); err != nil {
		return brand.MonthlyAsset{}, fmt.Errorf("save asset: %w", err)
	}
	s.logger.Info("Ingested master template", "asset_id", asset.ID, "availability", availability, "month", int(month))
	return asset, nil
}

// videoExtensions are file suffixes served as video.
var videoExtensions = []string{".mp4", ".webm", ".mov", ".m4v"}

// mediaType infers video from data:video URLs and video file extensions.
// Everything else is an image.
func mediaType(raw string) brand.AssetType {
	if strings.HasPrefix(raw, "data:") {
		if strings.HasPrefix(raw, "data:video") {
			return brand.AssetVideo
		}
		return brand.AssetImage
	}
	p := raw
	if u, err := url.Parse(raw); err == nil {
		p = u.Path
	}
	if slices.Contains(videoExtensions, strings.ToLower(path.Ext(p))) {
		return brand.AssetVideo
	}
	return brand.AssetImage
}
