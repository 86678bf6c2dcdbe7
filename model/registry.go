package model

import (
	"encoding/json"
	"sort"
	"sync"
)

// Registry manages endpoint selection based on media kind.
// It maps kinds to preferred endpoints with fallback chains.
type Registry struct {
	mu        sync.RWMutex
	kinds     map[Kind]*KindConfig
	endpoints map[string]*EndpointConfig
	defaults  *DefaultsConfig
	health    *healthState
}

// KindConfig defines endpoint preferences for a kind.
type KindConfig struct {
	// Description explains what this kind is used for.
	Description string `json:"description" yaml:"description"`

	// Preferred lists endpoints in order of preference.
	Preferred []string `json:"preferred" yaml:"preferred"`

	// Fallback lists backup endpoints if all preferred fail.
	Fallback []string `json:"fallback" yaml:"fallback"`
}

// EndpointConfig defines an available generation endpoint.
type EndpointConfig struct {
	// Provider is the API dialect (gemini, openai).
	Provider string `json:"provider" yaml:"provider"`

	// URL is the API base URL. Empty uses the provider default.
	URL string `json:"url,omitempty" yaml:"url,omitempty"`

	// Model is the model identifier sent to the provider.
	Model string `json:"model" yaml:"model"`

	// APIKeyEnv names the environment variable holding the key for this
	// endpoint. Empty uses the client-wide key.
	APIKeyEnv string `json:"api_key_env,omitempty" yaml:"api_key_env,omitempty"`
}

// DefaultsConfig holds default endpoint settings.
type DefaultsConfig struct {
	// Endpoint is used when no kind matches.
	Endpoint string `json:"endpoint" yaml:"endpoint"`
}

// NewRegistry creates a new registry with the given configuration.
func NewRegistry(kinds map[Kind]*KindConfig, endpoints map[string]*EndpointConfig) *Registry {
	if kinds == nil {
		kinds = make(map[Kind]*KindConfig)
	}
	if endpoints == nil {
		endpoints = make(map[string]*EndpointConfig)
	}
	return &Registry{
		kinds:     kinds,
		endpoints: endpoints,
		defaults:  &DefaultsConfig{Endpoint: "default"},
		health:    newHealthState(DefaultHealthConfig()),
	}
}

// NewDefaultRegistry creates a registry pointing at the hosted Gemini models,
// with an OpenAI-compatible image endpoint as fallback for stills.
func NewDefaultRegistry() *Registry {
	r := NewRegistry(
		map[Kind]*KindConfig{
			KindImage: {
				Description: "Vertical brand artwork for stories and posts",
				Preferred:   []string{"gemini-image"},
				Fallback:    []string{"openai-image"},
			},
			KindLogo: {
				Description: "Square minimalist logo marks",
				Preferred:   []string{"gemini-image"},
				Fallback:    []string{"openai-image"},
			},
			KindVideo: {
				Description: "Short promotional clips",
				Preferred:   []string{"veo-fast"},
			},
			KindSpeech: {
				Description: "Voice-overs for assets",
				Preferred:   []string{"gemini-tts"},
			},
		},
		map[string]*EndpointConfig{
			"gemini-image": {
				Provider: "gemini",
				Model:    "gemini-2.5-flash-image",
			},
			"veo-fast": {
				Provider: "gemini",
				Model:    "veo-3.1-fast-generate-preview",
			},
			"gemini-tts": {
				Provider: "gemini",
				Model:    "gemini-2.5-flash-preview-tts",
			},
			"openai-image": {
				Provider:  "openai",
				Model:     "gpt-image-1",
				APIKeyEnv: "OPENAI_API_KEY",
			},
		},
	)
	r.defaults.Endpoint = "gemini-image"
	return r
}

// Resolve returns the preferred endpoint for a kind.
func (r *Registry) Resolve(kind Kind) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if cfg, ok := r.kinds[kind]; ok && len(cfg.Preferred) > 0 {
		return cfg.Preferred[0]
	}
	return r.defaults.Endpoint
}

// GetFallbackChain returns all endpoints for a kind in order of preference.
func (r *Registry) GetFallbackChain(kind Kind) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if cfg, ok := r.kinds[kind]; ok {
		chain := make([]string, 0, len(cfg.Preferred)+len(cfg.Fallback))
		chain = append(chain, cfg.Preferred...)
		chain = append(chain, cfg.Fallback...)
		return chain
	}
	return []string{r.defaults.Endpoint}
}

// GetEndpoint returns the endpoint configuration for a name.
// Returns nil if the endpoint is not configured.
func (r *Registry) GetEndpoint(name string) *EndpointConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.endpoints[name]
}

// SetKind updates or adds a kind configuration.
func (r *Registry) SetKind(kind Kind, cfg *KindConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.kinds[kind] = cfg
}

// SetEndpoint updates or adds an endpoint configuration.
func (r *Registry) SetEndpoint(name string, cfg *EndpointConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.endpoints[name] = cfg
}

// SetDefault sets the default endpoint.
func (r *Registry) SetDefault(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.defaults.Endpoint = name
}

// ListKinds returns all configured kinds, sorted.
func (r *Registry) ListKinds() []Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]Kind, 0, len(r.kinds))
	for k := range r.kinds {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// ListEndpoints returns all configured endpoint names, sorted.
func (r *Registry) ListEndpoints() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.endpoints))
	for name := range r.endpoints {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MarshalJSON implements json.Marshaler for the registry.
func (r *Registry) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.ToConfig())
}

// UnmarshalJSON implements json.Unmarshaler for the registry.
func (r *Registry) UnmarshalJSON(data []byte) error {
	var cfg RegistryConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return err
	}

	loaded := registryFromConfig(&cfg)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.kinds = loaded.kinds
	r.endpoints = loaded.endpoints
	r.defaults = loaded.defaults
	if r.health == nil {
		r.health = loaded.health
	}
	return nil
}
