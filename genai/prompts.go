package genai

import (
	"fmt"
	"strings"

	"github.com/c360studio/brandstudio/brand"
)

// LogoPrompt builds the logo generation prompt for a brand.
func LogoPrompt(b brand.Config, iconStyle string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "A professional minimalist logo for %q. Industry: %s. Colors: %s. Icon style: %s. Overall vibe: %s.",
		b.CompanyName, b.IndustryType, strings.Join(b.Colors, ", "), iconStyle, b.Personality)
	if b.Tagline != "" {
		fmt.Fprintf(&sb, " Tagline: %s.", b.Tagline)
	}
	if cue := b.FontStyle.Cue(); cue != "" {
		fmt.Fprintf(&sb, " Typography: %s.", cue)
	}
	return sb.String()
}

// ImagePrompt builds the commercial artwork prompt. A nil brand uses neutral defaults.
func ImagePrompt(subject, style string, b *brand.Config) string {
	personality := "Modern"
	colors := "Vibrant"
	if b != nil {
		if b.Personality != "" {
			personality = b.Personality
		}
		if len(b.Colors) > 0 {
			colors = strings.Join(b.Colors, ", ")
		}
	}
	return fmt.Sprintf("Commercial artwork for a brand. Subject: %s. Style: %s. Brand Personality: %s. Colors: %s.",
		subject, style, personality, colors)
}

// SpeechLanguage reports whether speech synthesis supports lang. Empty means
// English.
func SpeechLanguage(lang brand.Language) bool {
	return lang == "" || lang == brand.LangEnglish || lang == brand.LangHindi
}

// SpeechPrompt wraps text with a delivery instruction for the language.
func SpeechPrompt(text string, lang brand.Language) string {
	if lang == brand.LangHindi {
		return "Speak this in Hindi: " + text
	}
	return "Say cheerfully: " + text
}
