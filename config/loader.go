package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
)

const (
	// ProjectConfigFile is the name of the project-level config file
	ProjectConfigFile = "brandstudio.yaml"
	// UserConfigDir is the directory for user-level config
	UserConfigDir = ".config/brandstudio"
	// UserConfigFile is the name of the user-level config file
	UserConfigFile = "config.yaml"
)

// envOverrides are the environment variables that win over config files.
type envOverrides struct {
	APIKey      string `env:"GEMINI_API_KEY"`
	LegacyKey   string `env:"API_KEY"`
	HTTPAddr    string `env:"BRANDSTUDIO_HTTP_ADDR"`
	Storage     string `env:"BRANDSTUDIO_STORAGE"`
	StoragePath string `env:"BRANDSTUDIO_STORAGE_PATH"`
	NATSURL     string `env:"BRANDSTUDIO_NATS_URL"`
	LogLevel    string `env:"BRANDSTUDIO_LOG_LEVEL"`
}

// Loader handles configuration loading with layered precedence
type Loader struct {
	logger *slog.Logger
	// explicit replaces project config discovery when set.
	explicit string
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithConfigFile loads the given file instead of searching for brandstudio.yaml.
func WithConfigFile(path string) LoaderOption {
	return func(l *Loader) {
		l.explicit = path
	}
}

// NewLoader creates a new configuration loader
func NewLoader(logger *slog.Logger, opts ...LoaderOption) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Loader{logger: logger}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load loads configuration with layered precedence:
// 1. Default config
// 2. User config (~/.config/brandstudio/config.yaml)
// 3. Project config (brandstudio.yaml in current or parent directories)
// 4. Environment variables
func (l *Loader) Load() (*Config, error) {
	config := DefaultConfig()

	userConfigPath := l.userConfigPath()
	if userConfigPath != "" {
		if err := config.overlay(userConfigPath); err == nil {
			l.logger.Debug("Loaded user config", slog.String("path", userConfigPath))
		} else if !errors.Is(err, fs.ErrNotExist) {
			l.logger.Warn("Failed to load user config", slog.String("path", userConfigPath), slog.String("error", err.Error()))
		}
	}

	projectConfigPath := l.projectConfigPath()
	if projectConfigPath != "" {
		if err := config.overlay(projectConfigPath); err != nil {
			if l.explicit != "" {
				return nil, err
			}
			l.logger.Warn("Failed to load project config", slog.String("path", projectConfigPath), slog.String("error", err.Error()))
		} else {
			l.logger.Debug("Loaded project config", slog.String("path", projectConfigPath))
		}
	} else {
		l.logger.Debug("No project config found")
	}

	if err := applyEnv(config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Paths returns the config files Load reads, for watching.
func (l *Loader) Paths() []string {
	var paths []string
	if p := l.userConfigPath(); p != "" {
		paths = append(paths, p)
	}
	if p := l.projectConfigPath(); p != "" {
		paths = append(paths, p)
	}
	return paths
}

// EnsureUserConfig creates the user config file with defaults if it doesn't exist
func (l *Loader) EnsureUserConfig() error {
	userConfigPath := l.userConfigPath()
	if userConfigPath == "" {
		return errors.New("no home directory")
	}

	if _, err := os.Stat(userConfigPath); err == nil {
		return nil
	}

	config := DefaultConfig()
	if err := config.SaveToFile(userConfigPath); err != nil {
		return err
	}

	l.logger.Info("Created default user config", slog.String("path", userConfigPath))
	return nil
}

func applyEnv(config *Config) error {
	var o envOverrides
	if err := env.Parse(&o); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	switch {
	case o.APIKey != "":
		config.APIKey = o.APIKey
	case o.LegacyKey != "":
		config.APIKey = o.LegacyKey
	}
	if o.HTTPAddr != "" {
		config.HTTP.Addr = o.HTTPAddr
	}
	if o.Storage != "" {
		config.Storage.Backend = o.Storage
	}
	if o.StoragePath != "" {
		config.Storage.Path = o.StoragePath
	}
	if o.NATSURL != "" {
		config.NATS.URL = o.NATSURL
	}
	if o.LogLevel != "" {
		config.LogLevel = o.LogLevel
	}
	return nil
}

func (l *Loader) userConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, UserConfigDir, UserConfigFile)
}

func (l *Loader) projectConfigPath() string {
	if l.explicit != "" {
		return l.explicit
	}
	return l.findProjectConfig()
}

// findProjectConfig searches for brandstudio.yaml in current and parent directories
func (l *Loader) findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	dir := cwd
	for {
		configPath := filepath.Join(dir, ProjectConfigFile)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}
