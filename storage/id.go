package storage

import (
	"strings"

	"github.com/google/uuid"
)

// ID prefixes for generated entities.
const (
	PrefixAIImage   = "ai-img"
	PrefixAIVideo   = "ai-vid"
	PrefixMaster    = "mstr"
	PrefixListing   = "mkt"
	PrefixPurchased = "purchased"
	PrefixUser      = "usr"
	PrefixHistory   = "gen"
)

// NewID returns prefix followed by the first 9 hex digits of a random UUID.
func NewID(prefix string) string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return prefix + "-" + raw[:9]
}

// NewRequestID returns a full random UUID for correlating remote calls.
func NewRequestID() string {
	return uuid.NewString()
}
