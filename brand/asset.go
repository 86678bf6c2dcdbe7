package brand

import (
	"encoding/json"
	"fmt"
	"time"
)

// AssetType is the media type of an asset.
type AssetType string

// Asset media types.
const (
	AssetImage AssetType = "image"
	AssetVideo AssetType = "video"
	AssetAudio AssetType = "audio"
)

// Language is the spoken or written language of an asset.
type Language string

// Supported languages.
const (
	LangEnglish Language = "en"
	LangHindi   Language = "hi"
	LangMarathi Language = "mr"
)

// ParseLanguage validates a language code. Empty means English.
func ParseLanguage(s string) (Language, error) {
	switch v := Language(s); v {
	case "":
		return LangEnglish, nil
	case LangEnglish, LangHindi, LangMarathi:
		return v, nil
	}
	return "", fmt.Errorf("unknown language %q", s)
}

// Source is where an asset came from. The set is closed: decoding rejects
// anything not listed here.
type Source string

// Asset sources.
const (
	SourceGlobal      Source = "global"
	SourceLocal       Source = "local"
	SourceAI          Source = "ai"
	SourceMarketplace Source = "marketplace"
)

// Sources lists every source in display order.
func Sources() []Source {
	return []Source{SourceGlobal, SourceLocal, SourceAI, SourceMarketplace}
}

// ParseSource validates a source string.
func ParseSource(s string) (Source, error) {
	switch v := Source(s); v {
	case SourceGlobal, SourceLocal, SourceAI, SourceMarketplace:
		return v, nil
	}
	return "", fmt.Errorf("unknown asset source %q", s)
}

// UnmarshalJSON rejects unknown sources.
func (s *Source) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	v, err := ParseSource(raw)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Availability is when an asset shows up in the monthly catalogue.
type Availability string

// Asset availabilities.
const (
	// AvailableAnytime assets appear in every month.
	AvailableAnytime Availability = "anytime"
	// AvailableSeasonal assets appear only in their month.
	AvailableSeasonal Availability = "seasonal"
)

// ParseAvailability validates an availability string.
func ParseAvailability(s string) (Availability, error) {
	switch v := Availability(s); v {
	case AvailableAnytime, AvailableSeasonal:
		return v, nil
	}
	return "", fmt.Errorf("unknown availability %q", s)
}

// UnmarshalJSON rejects unknown availabilities.
func (a *Availability) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	v, err := ParseAvailability(raw)
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// MonthlyAsset is an asset in a user's monthly catalogue.
type MonthlyAsset struct {
	ID           string       `json:"id"`
	Title        string       `json:"title"`
	Type         AssetType    `json:"type"`
	URL          string       `json:"url"`
	Month        time.Month   `json:"month"`
	Language     Language     `json:"language"`
	Source       Source       `json:"source,omitempty"`
	Availability Availability `json:"availability,omitempty"`
}

// AvailableIn reports whether the asset is listed for month m.
func (a MonthlyAsset) AvailableIn(m time.Month) bool {
	switch a.Availability {
	case AvailableAnytime:
		return true
	case AvailableSeasonal:
		return a.Month == m
	}
	return false
}

// MarketplaceAsset is a template listed for sale by a creator.
type MarketplaceAsset struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	CreatorID   string    `json:"creator_id"`
	CreatorName string    `json:"creator_name"`
	Price       int       `json:"price"`
	URL         string    `json:"url"`
	Thumbnail   string    `json:"thumbnail"`
	Type        AssetType `json:"type"`
	Tags        []string  `json:"tags"`
}

// GeneratedAsset is an entry in a user's generation history.
type GeneratedAsset struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Prompt    string    `json:"prompt"`
	Timestamp time.Time `json:"timestamp"`
	Type      AssetType `json:"type"`
}

// ShortTitle trims a prompt to a 20 character title.
func ShortTitle(prompt string) string {
	r := []rune(prompt)
	if len(r) > 20 {
		return string(r[:20]) + "..."
	}
	return prompt
}
