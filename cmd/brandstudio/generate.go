package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/c360studio/brandstudio/brand"
	"github.com/c360studio/brandstudio/genai"
	"github.com/c360studio/brandstudio/studio"
)

// generateOptions are shared by the generate subcommands.
type generateOptions struct {
	out       string
	brandFile string
}

func generateCmd(flags *globalFlags) *cobra.Command {
	opts := &generateOptions{}

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a single asset without the HTTP API",
		Long: `Generate calls the configured models directly. Credits are not
consumed and nothing is added to the asset library.`,
	}
	cmd.PersistentFlags().StringVarP(&opts.out, "out", "o", "", "Output file (default derived from the request id)")
	cmd.PersistentFlags().StringVar(&opts.brandFile, "brand", "", "Brand profile JSON file (default: the signed-in user's brand)")

	var style string
	image := &cobra.Command{
		Use:   "image <prompt>",
		Short: "Generate 9:16 brand artwork",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, app *App) error {
				b, err := opts.brand(app)
				if err != nil {
					return err
				}
				if style == "" {
					style = studio.DefaultImageStyle
				}
				media, err := app.client.GenerateImage(ctx, genai.ImageRequest{
					Prompt: strings.Join(args, " "),
					Style:  style,
					Brand:  b,
				})
				if err != nil {
					return err
				}
				return opts.writeMedia(cmd.OutOrStdout(), "image", media)
			})
		},
	}
	image.Flags().StringVar(&style, "style", "", "Visual style (default "+studio.DefaultImageStyle+")")

	var iconStyle string
	logo := &cobra.Command{
		Use:   "logo",
		Short: "Generate a square logo for the brand",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, app *App) error {
				b, err := opts.brand(app)
				if err != nil {
					return err
				}
				if b == nil {
					return errors.New("logo needs a brand: pass --brand or save one first")
				}
				if iconStyle == "" {
					iconStyle = studio.DefaultIconStyle
				}
				media, err := app.client.GenerateLogo(ctx, genai.LogoRequest{Brand: *b, IconStyle: iconStyle})
				if err != nil {
					return err
				}
				return opts.writeMedia(cmd.OutOrStdout(), "logo", media)
			})
		},
	}
	logo.Flags().StringVar(&iconStyle, "icon-style", "", "Icon style (default "+studio.DefaultIconStyle+")")

	var resolution, aspect string
	video := &cobra.Command{
		Use:   "video <prompt>",
		Short: "Generate a short video and print its download URI",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, app *App) error {
				v, err := app.client.GenerateVideo(ctx, genai.VideoRequest{
					Prompt:      strings.Join(args, " "),
					Resolution:  resolution,
					AspectRatio: aspect,
				})
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				fmt.Fprintf(w, "%s video ready %s\n", successColor("✓"), dimColor("("+v.Model+", "+v.RequestID+")"))
				fmt.Fprintln(w, v.URI)
				return nil
			})
		},
	}
	video.Flags().StringVar(&resolution, "resolution", genai.DefaultVideoResolution, "Video resolution")
	video.Flags().StringVar(&aspect, "aspect-ratio", genai.DefaultVideoAspectRatio, "Aspect ratio")

	var voice, lang string
	speech := &cobra.Command{
		Use:   "speech <text>",
		Short: "Synthesise speech to a WAV file",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, app *App) error {
				language, err := brand.ParseLanguage(lang)
				if err != nil {
					return err
				}
				s, err := app.client.GenerateSpeech(ctx, genai.SpeechRequest{
					Text:     strings.Join(args, " "),
					Voice:    voice,
					Language: language,
				})
				if err != nil {
					return err
				}
				path := opts.out
				if path == "" {
					path = "speech.wav"
				}
				if err := os.WriteFile(path, s.WAV(), 0644); err != nil {
					return fmt.Errorf("write %s: %w", path, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s speech saved to %s %s\n",
					successColor("✓"), path, dimColor(fmt.Sprintf("(%.1fs, %s)", s.Duration(), s.Model)))
				return nil
			})
		},
	}
	speech.Flags().StringVar(&voice, "voice", genai.DefaultVoice, "Prebuilt voice name")
	speech.Flags().StringVar(&lang, "lang", string(brand.LangEnglish), "Language (en, hi)")

	cmd.AddCommand(image, logo, video, speech)
	return cmd
}

// withApp loads config, builds the App and runs fn with the command context.
func withApp(cmd *cobra.Command, flags *globalFlags, fn func(context.Context, *App) error) error {
	_, cfg, _, err := flags.setup()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	app, err := NewApp(ctx, cfg, slog.Default())
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(ctx, app)
}

// brand returns the --brand file profile, else the stored user's brand.
func (o *generateOptions) brand(app *App) (*brand.Config, error) {
	if o.brandFile != "" {
		data, err := os.ReadFile(o.brandFile)
		if err != nil {
			return nil, fmt.Errorf("read brand: %w", err)
		}
		var b brand.Config
		if err := json.Unmarshal(data, &b); err != nil {
			return nil, fmt.Errorf("parse brand: %w", err)
		}
		return &b, nil
	}
	if u := app.store.User(); u != nil && u.Brand != nil {
		return u.Brand, nil
	}
	return nil, nil
}

func (o *generateOptions) writeMedia(w io.Writer, what string, m *genai.Media) error {
	path := o.out
	if path == "" {
		path = m.RequestID + extension(m.MIMEType)
	}
	if err := os.WriteFile(path, m.Data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Fprintf(w, "%s %s saved to %s %s\n", successColor("✓"), what, path, dimColor("("+m.Model+")"))
	return nil
}

func extension(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	}
	return ".png"
}
