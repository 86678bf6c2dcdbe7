// Package brand defines the brand profile, user and asset types shared by the
// studio service, the state store and the HTTP API.
package brand

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Role is the access level of a user.
type Role string

// Known roles.
const (
	RoleUser    Role = "USER"
	RoleAdmin   Role = "ADMIN"
	RoleCreator Role = "CREATOR"
)

// ParseRole validates a role string.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToUpper(s)); r {
	case RoleUser, RoleAdmin, RoleCreator:
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// FontStyle is the typographic personality of a brand.
type FontStyle string

// Known font styles.
const (
	FontModern  FontStyle = "modern"
	FontClassic FontStyle = "classic"
	FontPlayful FontStyle = "playful"
	FontLuxury  FontStyle = "luxury"
	FontMinimal FontStyle = "minimal"
)

// Cue returns the prompt fragment describing the font style.
func (f FontStyle) Cue() string {
	switch f {
	case FontModern:
		return "sleek sans-serif, geometric, high-tech, balanced weights, clean lines"
	case FontClassic:
		return "traditional serif, authoritative, timeless, elegant proportions, high readability"
	case FontPlayful:
		return "rounded, bubbly, friendly, informal, expressive curves, jovial"
	case FontLuxury:
		return "high-contrast serif, thin hairline strokes, expensive, sophisticated, fashion-forward"
	case FontMinimal:
		return "ultra-thin sans-serif, spacious, stark, functional, hidden details"
	}
	return ""
}

// IsValid reports whether f is a known font style.
func (f FontStyle) IsValid() bool {
	return f.Cue() != ""
}

var hexColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// Config is a brand profile collected during onboarding.
type Config struct {
	CompanyName    string    `json:"company_name"`
	LogoURL        string    `json:"logo_url,omitempty"`
	Website        string    `json:"website,omitempty"`
	Tagline        string    `json:"tagline,omitempty"`
	ContactNumber  string    `json:"contact_number"`
	Address        string    `json:"address"`
	GSTNo          string    `json:"gst_no,omitempty"`
	FSSAINo        string    `json:"fssai_no,omitempty"`
	Colors         []string  `json:"brand_colors"`
	FontStyle      FontStyle `json:"brand_font_style"`
	IndustryType   string    `json:"industry_type"`
	Personality    string    `json:"personality"`
	TargetAudience string    `json:"target_audience"`
}

// Validate checks the fields required before a brand can be saved.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.CompanyName) == "" {
		errs = append(errs, errors.New("company_name is required"))
	}
	if strings.TrimSpace(c.ContactNumber) == "" {
		errs = append(errs, errors.New("contact_number is required"))
	}
	if strings.TrimSpace(c.Address) == "" {
		errs = append(errs, errors.New("address is required"))
	}
	if len(c.Colors) == 0 {
		errs = append(errs, errors.New("at least one brand colour is required"))
	}
	for _, col := range c.Colors {
		if !hexColor.MatchString(col) {
			errs = append(errs, fmt.Errorf("brand colour %q is not #rrggbb", col))
		}
	}
	if c.FontStyle != "" && !c.FontStyle.IsValid() {
		errs = append(errs, fmt.Errorf("unknown font style %q", c.FontStyle))
	}
	return errors.Join(errs...)
}

// PrimaryColor returns the first brand colour, or black.
func (c *Config) PrimaryColor() string {
	if c == nil || len(c.Colors) == 0 {
		return "#000000"
	}
	return c.Colors[0]
}

// Credits are the remaining generation allowances of a user.
type Credits struct {
	Images int `json:"images"`
	Videos int `json:"videos"`
}

// CreditKind selects a credit pool.
type CreditKind string

// Credit pools.
const (
	CreditImages CreditKind = "images"
	CreditVideos CreditKind = "videos"
)

// User is a signed-in studio user.
type User struct {
	ID                string           `json:"id"`
	Name              string           `json:"name"`
	Email             string           `json:"email"`
	Role              Role             `json:"role"`
	Brand             *Config          `json:"brand,omitempty"`
	Credits           Credits          `json:"credits"`
	GenerationHistory []GeneratedAsset `json:"generation_history,omitempty"`
}

// Clone returns a deep copy of u.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	cp := *u
	if u.Brand != nil {
		b := *u.Brand
		b.Colors = append([]string(nil), u.Brand.Colors...)
		cp.Brand = &b
	}
	cp.GenerationHistory = append([]GeneratedAsset(nil), u.GenerationHistory...)
	return &cp
}
