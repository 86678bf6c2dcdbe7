package model

import (
	"encoding/json"
	"fmt"
	"os"
)

// RegistryConfig is the serialised form of a Registry. It is embedded in the
// YAML application config under "models" and accepted as standalone JSON.
type RegistryConfig struct {
	Kinds     map[string]*KindConfig     `json:"kinds" yaml:"kinds"`
	Endpoints map[string]*EndpointConfig `json:"endpoints" yaml:"endpoints"`
	Defaults  *DefaultsConfig            `json:"defaults,omitempty" yaml:"defaults,omitempty"`
}

// LoadFromFile loads a registry configuration from a JSON file.
func LoadFromFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registry file: %w", err)
	}

	return LoadFromJSON(data)
}

// LoadFromJSON loads a registry from JSON data.
// Accepts either a document with a "models" key or just the registry config.
func LoadFromJSON(data []byte) (*Registry, error) {
	var wrapped struct {
		Models *RegistryConfig `json:"models"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil && wrapped.Models != nil {
		return FromConfig(wrapped.Models)
	}

	var cfg RegistryConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse registry config: %w", err)
	}

	return FromConfig(&cfg)
}

// FromConfig builds a registry and rejects unknown kinds and dangling
// endpoint references.
func FromConfig(cfg *RegistryConfig) (*Registry, error) {
	for k, kc := range cfg.Kinds {
		if ParseKind(k) == "" {
			return nil, fmt.Errorf("unknown kind %q", k)
		}
		for _, name := range append(append([]string{}, kc.Preferred...), kc.Fallback...) {
			if _, ok := cfg.Endpoints[name]; !ok {
				return nil, fmt.Errorf("kind %s references unknown endpoint %q", k, name)
			}
		}
	}
	return registryFromConfig(cfg), nil
}

// registryFromConfig converts a RegistryConfig to a Registry.
func registryFromConfig(cfg *RegistryConfig) *Registry {
	kinds := make(map[Kind]*KindConfig, len(cfg.Kinds))
	for k, v := range cfg.Kinds {
		kinds[Kind(k)] = v
	}

	endpoints := make(map[string]*EndpointConfig, len(cfg.Endpoints))
	for k, v := range cfg.Endpoints {
		endpoints[k] = v
	}

	r := NewRegistry(kinds, endpoints)
	if cfg.Defaults != nil {
		r.defaults = &DefaultsConfig{Endpoint: cfg.Defaults.Endpoint}
	}
	return r
}

// ToConfig converts a Registry to a RegistryConfig for serialization.
func (r *Registry) ToConfig() *RegistryConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make(map[string]*KindConfig, len(r.kinds))
	for k, v := range r.kinds {
		kinds[string(k)] = v
	}
	endpoints := make(map[string]*EndpointConfig, len(r.endpoints))
	for k, v := range r.endpoints {
		endpoints[k] = v
	}

	return &RegistryConfig{
		Kinds:     kinds,
		Endpoints: endpoints,
		Defaults:  &DefaultsConfig{Endpoint: r.defaults.Endpoint},
	}
}

// MergeFromConfig merges configuration into an existing registry.
// Existing entries are overwritten by the new config. Health state is kept.
func (r *Registry) MergeFromConfig(cfg *RegistryConfig) {
	if cfg == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for k, v := range cfg.Kinds {
		r.kinds[Kind(k)] = v
	}

	for k, v := range cfg.Endpoints {
		r.endpoints[k] = v
	}

	if cfg.Defaults != nil && cfg.Defaults.Endpoint != "" {
		r.defaults.Endpoint = cfg.Defaults.Endpoint
	}
}
