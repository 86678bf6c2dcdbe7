// Package state holds the studio's application state: the signed-in user,
// their asset catalogue and the marketplace listings.
//
// A Store guards one State value. Every mutation copies the current state,
// applies the change, persists the copy and only then publishes it, so a
// failed save leaves the previous snapshot in place.
package state

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/c360studio/brandstudio/brand"
	"github.com/c360studio/brandstudio/storage"
)

// MasterAdminEmail always signs in as ADMIN.
const MasterAdminEmail = "admin@autobrand.studio"

// HistoryLimit is the number of generation history entries kept per user.
const HistoryLimit = 10

// InitialCredits is the image and video allowance granted at sign-in.
const InitialCredits = 100

var (
	// ErrNoUser is returned by operations that need a signed-in user.
	ErrNoUser = errors.New("no user signed in")

	// ErrNotFound is returned when an asset or listing does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInsufficientCredits is returned when a credit pool is empty.
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrAlreadyAcquired is returned when a listing is already in the catalogue.
	ErrAlreadyAcquired = errors.New("listing already acquired")
)

// State is an immutable snapshot. Callers receive deep copies.
type State struct {
	User        *brand.User              `json:"user,omitempty"`
	Assets      []brand.MonthlyAsset     `json:"assets"`
	Marketplace []brand.MarketplaceAsset `json:"marketplace"`
}

func (s State) clone() State {
	cp := State{
		User:        s.User.Clone(),
		Assets:      slices.Clone(s.Assets),
		Marketplace: make([]brand.MarketplaceAsset, len(s.Marketplace)),
	}
	for i, m := range s.Marketplace {
		m.Tags = slices.Clone(m.Tags)
		cp.Marketplace[i] = m
	}
	return cp
}

// Store is the mutex-guarded holder of the current State.
type Store struct {
	mu        sync.RWMutex
	state     State
	persister Persister
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithPersister saves every new snapshot through p.
func WithPersister(p Persister) Option {
	return func(s *Store) {
		s.persister = p
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open creates a store and loads the last saved snapshot from its persister.
// A persister with nothing saved yields an empty store.
func Open(ctx context.Context, opts ...Option) (*Store, error) {
	s := New(opts...)
	if s.persister == nil {
		return s, nil
	}

	loaded, err := s.persister.Load(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	s.state = loaded
	s.logger.Debug("Loaded state",
		"assets", len(loaded.Assets),
		"marketplace", len(loaded.Marketplace),
		"signed_in", loaded.User != nil)
	return s, nil
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

// update applies fn to a copy of the state, persists it and publishes it.
func (s *Store) update(ctx context.Context, fn func(*State) error) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.state.clone()
	if err := fn(&next); err != nil {
		return s.state.clone(), err
	}
	if s.persister != nil {
		if err := s.persister.Save(ctx, next); err != nil {
			return s.state.clone(), fmt.Errorf("save state: %w", err)
		}
	}
	s.state = next
	return next.clone(), nil
}

// hqBrand is the brand seeded for admins.
func hqBrand() *brand.Config {
	return &brand.Config{
		CompanyName:    "AutoBrand Studio HQ",
		LogoURL:        "https://cdn-icons-png.flaticon.com/512/3176/3176363.png",
		ContactNumber:  "+91 00000 00000",
		Address:        "Master Control Center, Silicon Valley",
		Colors:         []string{"#4f46e5"},
		FontStyle:      brand.FontModern,
		IndustryType:   "SaaS",
		Personality:    "Powerful & Precise",
		TargetAudience: "Business Owners",
		Tagline:        "Orchestrating Brand Excellence",
	}
}

// Login signs in a new user. The master admin email is always ADMIN, and
// admins start with the HQ brand.
func (s *Store) Login(ctx context.Context, email string, role brand.Role) (State, error) {
	email = strings.TrimSpace(email)
	name, _, ok := strings.Cut(email, "@")
	if !ok || name == "" {
		return s.Snapshot(), fmt.Errorf("invalid email %q", email)
	}
	if strings.EqualFold(email, MasterAdminEmail) {
		role = brand.RoleAdmin
	}
	if role == "" {
		role = brand.RoleUser
	}

	user := &brand.User{
		ID:      storage.NewID(storage.PrefixUser),
		Name:    name,
		Email:   email,
		Role:    role,
		Credits: brand.Credits{Images: InitialCredits, Videos: InitialCredits},
	}
	if role == brand.RoleAdmin {
		user.Brand = hqBrand()
	}

	next, err := s.update(ctx, func(st *State) error {
		st.User = user
		return nil
	})
	if err == nil {
		s.logger.Info("User signed in", "user_id", user.ID, "role", user.Role)
	}
	return next, err
}

// Logout clears the user. Assets and listings are kept.
func (s *Store) Logout(ctx context.Context) (State, error) {
	return s.update(ctx, func(st *State) error {
		st.User = nil
		return nil
	})
}

// SetUser replaces the user; nil signs out.
func (s *Store) SetUser(ctx context.Context, user *brand.User) (State, error) {
	return s.update(ctx, func(st *State) error {
		st.User = user.Clone()
		return nil
	})
}

// SetBrand validates cfg and attaches it to the current user.
func (s *Store) SetBrand(ctx context.Context, cfg brand.Config) (State, error) {
	if err := cfg.Validate(); err != nil {
		return s.Snapshot(), fmt.Errorf("invalid brand: %w", err)
	}
	return s.update(ctx, func(st *State) error {
		if st.User == nil {
			return ErrNoUser
		}
		b := cfg
		b.Colors = slices.Clone(cfg.Colors)
		st.User.Brand = &b
		return nil
	})
}

// SetAssets replaces the asset catalogue.
func (s *Store) SetAssets(ctx context.Context, assets []brand.MonthlyAsset) (State, error) {
	return s.update(ctx, func(st *State) error {
		st.Assets = slices.Clone(assets)
		return nil
	})
}

// AddAsset prepends an asset.
func (s *Store) AddAsset(ctx context.Context, asset brand.MonthlyAsset) (State, error) {
	return s.update(ctx, func(st *State) error {
		st.Assets = append([]brand.MonthlyAsset{asset}, st.Assets...)
		return nil
	})
}

// RemoveAsset deletes the asset with id.
func (s *Store) RemoveAsset(ctx context.Context, id string) (State, error) {
	return s.update(ctx, func(st *State) error {
		i := slices.IndexFunc(st.Assets, func(a brand.MonthlyAsset) bool { return a.ID == id })
		if i < 0 {
			return fmt.Errorf("asset %s: %w", id, ErrNotFound)
		}
		st.Assets = slices.Delete(st.Assets, i, i+1)
		return nil
	})
}

// BulkRemoveAssets deletes every asset whose id is in ids. Unknown ids are ignored.
func (s *Store) BulkRemoveAssets(ctx context.Context, ids []string) (State, error) {
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	return s.update(ctx, func(st *State) error {
		st.Assets = slices.DeleteFunc(st.Assets, func(a brand.MonthlyAsset) bool {
			_, ok := drop[a.ID]
			return ok
		})
		return nil
	})
}

// Acquire copies the listing with id into the catalogue as a permanent
// marketplace asset. The lookup, the acquired check and the insert happen
// under one lock, so a listing is acquired at most once.
func (s *Store) Acquire(ctx context.Context, listingID string, at time.Time) (brand.MonthlyAsset, error) {
	var asset brand.MonthlyAsset
	_, err := s.update(ctx, func(st *State) error {
		i := slices.IndexFunc(st.Marketplace, func(m brand.MarketplaceAsset) bool { return m.ID == listingID })
		if i < 0 {
			return fmt.Errorf("listing %s: %w", listingID, ErrNotFound)
		}
		if st.acquired(listingID) {
			return fmt.Errorf("listing %s: %w", listingID, ErrAlreadyAcquired)
		}
		listing := st.Marketplace[i]
		asset = brand.MonthlyAsset{
			ID:           PurchasedID(listing.ID, at),
			Title:        listing.Title,
			Type:         listing.Type,
			URL:          listing.URL,
			Month:        at.Month(),
			Language:     brand.LangEnglish,
			Source:       brand.SourceMarketplace,
			Availability: brand.AvailableAnytime,
		}
		st.Assets = append([]brand.MonthlyAsset{asset}, st.Assets...)
		return nil
	})
	if err != nil {
		return brand.MonthlyAsset{}, err
	}
	return asset, nil
}

// SetMarketplace replaces the marketplace listings.
func (s *Store) SetMarketplace(ctx context.Context, listings []brand.MarketplaceAsset) (State, error) {
	return s.update(ctx, func(st *State) error {
		st.Marketplace = slices.Clone(listings)
		return nil
	})
}

// AddMarketplaceAsset prepends a listing.
func (s *Store) AddMarketplaceAsset(ctx context.Context, listing brand.MarketplaceAsset) (State, error) {
	return s.update(ctx, func(st *State) error {
		st.Marketplace = append([]brand.MarketplaceAsset{listing}, st.Marketplace...)
		return nil
	})
}

// UpdateCredits adds delta to a credit pool. Without a user it is a no-op.
func (s *Store) UpdateCredits(ctx context.Context, kind brand.CreditKind, delta int) (State, error) {
	return s.update(ctx, func(st *State) error {
		if st.User == nil {
			return nil
		}
		return applyCredits(&st.User.Credits, kind, delta)
	})
}

// ConsumeCredit takes one credit from a pool, failing with
// ErrInsufficientCredits when it is empty.
func (s *Store) ConsumeCredit(ctx context.Context, kind brand.CreditKind) (State, error) {
	return s.update(ctx, func(st *State) error {
		if st.User == nil {
			return ErrNoUser
		}
		if creditsIn(st.User.Credits, kind) <= 0 {
			return fmt.Errorf("%s: %w", kind, ErrInsufficientCredits)
		}
		return applyCredits(&st.User.Credits, kind, -1)
	})
}

func creditsIn(c brand.Credits, kind brand.CreditKind) int {
	if kind == brand.CreditVideos {
		return c.Videos
	}
	return c.Images
}

func applyCredits(c *brand.Credits, kind brand.CreditKind, delta int) error {
	switch kind {
	case brand.CreditImages:
		c.Images += delta
	case brand.CreditVideos:
		c.Videos += delta
	default:
		return fmt.Errorf("unknown credit kind %q", kind)
	}
	return nil
}

// AddToHistory prepends a generation to the user's history, keeping the
// newest HistoryLimit entries. Without a user it is a no-op.
func (s *Store) AddToHistory(ctx context.Context, asset brand.GeneratedAsset) (State, error) {
	return s.update(ctx, func(st *State) error {
		if st.User == nil {
			return nil
		}
		history := append([]brand.GeneratedAsset{asset}, st.User.GenerationHistory...)
		if len(history) > HistoryLimit {
			history = history[:HistoryLimit]
		}
		st.User.GenerationHistory = history
		return nil
	})
}
