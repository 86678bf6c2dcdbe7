package state

import (
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/c360studio/brandstudio/brand"
	"github.com/c360studio/brandstudio/storage"
)

// MonthlyAssets lists the assets visible in month m. Anytime assets appear
// in every month. An empty source matches all sources.
func (s *Store) MonthlyAssets(m time.Month, source brand.Source) []brand.MonthlyAsset {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []brand.MonthlyAsset
	for _, a := range s.state.Assets {
		if !a.AvailableIn(m) {
			continue
		}
		if source != "" && a.Source != source {
			continue
		}
		out = append(out, a)
	}
	return out
}

// MasterLibrary lists global assets whose title or id contains term,
// case-insensitively.
func (s *Store) MasterLibrary(term string) []brand.MonthlyAsset {
	term = strings.ToLower(term)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []brand.MonthlyAsset
	for _, a := range s.state.Assets {
		if a.Source != brand.SourceGlobal {
			continue
		}
		if strings.Contains(strings.ToLower(a.Title), term) || strings.Contains(strings.ToLower(a.ID), term) {
			out = append(out, a)
		}
	}
	return out
}

// Stats counts catalogue assets.
type Stats struct {
	Total       int `json:"total"`
	Global      int `json:"global"`
	Local       int `json:"local"`
	AI          int `json:"ai"`
	Marketplace int `json:"marketplace"`
	Anytime     int `json:"anytime"`
	Videos      int `json:"videos"`
}

// Stats returns asset counts by source, availability and type.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{Total: len(s.state.Assets)}
	for _, a := range s.state.Assets {
		switch a.Source {
		case brand.SourceGlobal:
			st.Global++
		case brand.SourceLocal:
			st.Local++
		case brand.SourceAI:
			st.AI++
		case brand.SourceMarketplace:
			st.Marketplace++
		}
		if a.Availability == brand.AvailableAnytime {
			st.Anytime++
		}
		if a.Type == brand.AssetVideo {
			st.Videos++
		}
	}
	return st
}

// PurchasedID builds the asset id for an acquired listing.
func PurchasedID(listingID string, at time.Time) string {
	return storage.PrefixPurchased + "-" + listingID + "-" + strconv.FormatInt(at.UnixMilli(), 10)
}

// IsAcquired reports whether a listing has already been copied into the catalogue.
func (s *Store) IsAcquired(listingID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.acquired(listingID)
}

func (st *State) acquired(listingID string) bool {
	prefix := storage.PrefixPurchased + "-" + listingID + "-"
	return slices.ContainsFunc(st.Assets, func(a brand.MonthlyAsset) bool {
		return strings.HasPrefix(a.ID, prefix)
	})
}

// Listing returns the marketplace listing with id.
func (s *Store) Listing(id string) (brand.MarketplaceAsset, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, m := range s.state.Marketplace {
		if m.ID == id {
			return m, true
		}
	}
	return brand.MarketplaceAsset{}, false
}

// User returns a copy of the signed-in user, or nil.
func (s *Store) User() *brand.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.User.Clone()
}
