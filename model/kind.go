// Package model provides kind-based endpoint selection for generation requests.
// Callers ask for a kind of media (image, logo, video, speech) and the registry
// resolves it to configured endpoints with fallback chains and health tracking.
package model

// Kind identifies the type of media a generation request produces.
type Kind string

const (
	// KindImage is brand artwork for posts and stories.
	KindImage Kind = "image"

	// KindLogo is a square brand mark.
	KindLogo Kind = "logo"

	// KindVideo is a long-running video synthesis job.
	KindVideo Kind = "video"

	// KindSpeech is text-to-speech audio.
	KindSpeech Kind = "speech"
)

// Kinds lists every known kind in a stable order.
func Kinds() []Kind {
	return []Kind{KindImage, KindLogo, KindVideo, KindSpeech}
}

// IsValid checks if a kind string is a known kind.
func (k Kind) IsValid() bool {
	switch k {
	case KindImage, KindLogo, KindVideo, KindSpeech:
		return true
	}
	return false
}

// String returns the string representation of the kind.
func (k Kind) String() string {
	return string(k)
}

// ParseKind converts a string to a Kind, returning empty for invalid values.
func ParseKind(s string) Kind {
	k := Kind(s)
	if k.IsValid() {
		return k
	}
	return ""
}
