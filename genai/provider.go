package genai

import (
	"net/http"
	"sort"
	"sync"

	"github.com/c360studio/brandstudio/model"
)

// Request is a provider-neutral generation request.
type Request struct {
	// Kind selects the media type and the model registry chain.
	Kind model.Kind

	// Prompt is the full text sent to the model.
	Prompt string

	// AspectRatio such as "1:1", "9:16" or "16:9". Empty uses the model default.
	AspectRatio string

	// Voice is the prebuilt voice name for speech.
	Voice string

	// Resolution for video ("720p", "1080p").
	Resolution string
}

// InlineData is a binary part returned by a model.
type InlineData struct {
	MIMEType string
	Data     []byte
}

// Result is what a provider extracted from a response body.
type Result struct {
	// Model is the model that produced the result.
	Model string

	// Parts holds inline media in response order.
	Parts []InlineData

	// Operation is set when the request started a long-running job.
	Operation *Operation
}

// FirstPart returns the first inline part, or nil.
func (r *Result) FirstPart() *InlineData {
	if r == nil || len(r.Parts) == 0 {
		return nil
	}
	return &r.Parts[0]
}

// Operation is the state of a long-running generation.
type Operation struct {
	Name     string `json:"name"`
	Done     bool   `json:"done"`
	VideoURI string `json:"video_uri,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Provider defines the interface for generation API dialects.
type Provider interface {
	// Name returns the provider identifier (e.g., "gemini", "openai").
	Name() string

	// Supports reports whether the provider can generate kind.
	Supports(kind model.Kind) bool

	// BuildURL constructs the full API endpoint URL for a request.
	BuildURL(baseURL, modelName string, kind model.Kind) string

	// SetHeaders adds authentication and provider-specific headers.
	SetHeaders(req *http.Request, apiKey string)

	// BuildRequestBody creates the JSON request body.
	BuildRequestBody(modelName string, req Request) ([]byte, error)

	// ParseResponse extracts media or an operation handle from the body.
	ParseResponse(body []byte, modelName string, kind model.Kind) (*Result, error)
}

// OperationPoller is implemented by providers with long-running operations.
type OperationPoller interface {
	// OperationURL returns the URL that reports the status of operation name.
	OperationURL(baseURL, name string) string

	// ParseOperation decodes an operation status body.
	ParseOperation(body []byte) (*Operation, error)
}

// providerRegistry holds registered providers.
var (
	providerRegistry = make(map[string]Provider)
	providerMu       sync.RWMutex
)

// RegisterProvider adds a provider to the registry.
func RegisterProvider(p Provider) {
	providerMu.Lock()
	defer providerMu.Unlock()
	providerRegistry[p.Name()] = p
}

// GetProvider retrieves a provider by name.
func GetProvider(name string) Provider {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return providerRegistry[name]
}

// ListProviders returns all registered provider names, sorted.
func ListProviders() []string {
	providerMu.RLock()
	defer providerMu.RUnlock()

	names := make([]string, 0, len(providerRegistry))
	for name := range providerRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
