package brandimport

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
)

// Importer turns a company website into a brand draft.
type Importer struct {
	fetcher   *Fetcher
	converter *md.Converter
	logger    *slog.Logger
}

// Option configures an Importer.
type Option func(*Importer)

// WithLogger sets the importer's logger.
func WithLogger(l *slog.Logger) Option {
	return func(i *Importer) {
		i.logger = l
	}
}

// WithFetcher replaces the default fetcher.
func WithFetcher(f *Fetcher) Option {
	return func(i *Importer) {
		i.fetcher = f
	}
}

// NewImporter creates an importer with an SSRF-safe fetcher.
func NewImporter(opts ...Option) *Importer {
	i := &Importer{
		converter: newMarkdownConverter(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(i)
	}
	if i.fetcher == nil {
		i.fetcher = NewFetcher(DefaultTimeout)
	}
	return i
}

// Import fetches rawURL and drafts a brand from it.
func (i *Importer) Import(ctx context.Context, rawURL string) (*Draft, error) {
	page, err := i.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("import %s: %w", rawURL, err)
	}
	if ct := page.ContentType; ct != "" {
		mt, _, _ := mime.ParseMediaType(ct)
		if mt != "text/html" && mt != "application/xhtml+xml" && !strings.HasPrefix(mt, "text/") {
			return nil, fmt.Errorf("import %s: unsupported content type %q", rawURL, ct)
		}
	}

	draft, err := i.Extract(page.URL, page.Body)
	if err != nil {
		return nil, fmt.Errorf("import %s: %w", rawURL, err)
	}
	i.logger.Info("Imported brand draft",
		"url", page.URL,
		"company", draft.Brand.CompanyName,
		"colors", len(draft.Brand.Colors),
		"has_logo", draft.Brand.LogoURL != "")
	return draft, nil
}

// Extract drafts a brand from an already fetched page.
func (i *Importer) Extract(pageURL string, body []byte) (*Draft, error) {
	return extract(i.converter, pageURL, body)
}
