// Package main provides the brandstudio binary entry point.
// Brandstudio generates brand-consistent marketing assets with hosted
// generation models and serves the asset library over HTTP.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/c360studio/brandstudio/config"
	_ "github.com/c360studio/brandstudio/genai/providers"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "brandstudio"
)

var (
	headerColor  = color.New(color.FgCyan, color.Bold).SprintFunc()
	successColor = color.New(color.FgGreen, color.Bold).SprintFunc()
	dimColor     = color.New(color.Faint).SprintFunc()
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", color.RedString("Error:"), err)
		os.Exit(1)
	}
}

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	logLevel   string
}

func rootCmd() *cobra.Command {
	flags := &globalFlags{}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Brand asset studio",
		Long: `Brandstudio generates on-brand marketing assets.

It provides:
- Image, logo, video and speech generation with retry and model fallback
- A monthly asset library with a marketplace and master catalogue
- Brand import from a company website

Run "brandstudio serve" to start the HTTP API.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Config file path (YAML); default searches for "+config.ProjectConfigFile)
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	cmd.AddCommand(serveCmd(flags))
	cmd.AddCommand(generateCmd(flags))
	cmd.AddCommand(configCmd(flags))
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})

	return cmd
}

// setup loads configuration and installs the default logger. The flag level
// wins over the configured one.
func (f *globalFlags) setup() (*config.Loader, *config.Config, *slog.LevelVar, error) {
	level := &slog.LevelVar{}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	var opts []config.LoaderOption
	if f.configPath != "" {
		opts = append(opts, config.WithConfigFile(f.configPath))
	}
	loader := config.NewLoader(logger, opts...)
	cfg, err := loader.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}
	if f.logLevel != "" {
		cfg.LogLevel = f.logLevel
	}
	level.Set(parseLevel(cfg.LogLevel))
	return loader, cfg, level, nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func configCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and initialise configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write the default user config if none exists",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.NewLoader(slog.Default()).EnsureUserConfig(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), successColor("✓"), "user config ready")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, cfg, _, err := flags.setup()
			if err != nil {
				return err
			}
			if cfg.APIKey != "" {
				cfg.APIKey = "********"
			}
			out, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	})

	return cmd
}
