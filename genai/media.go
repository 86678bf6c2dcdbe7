package genai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/c360studio/brandstudio/brand"
	"github.com/c360studio/brandstudio/model"
	"github.com/c360studio/brandstudio/retry"
)

// Default voice and aspect ratios.
const (
	DefaultVoice            = "Kore"
	ImageAspectRatio        = "9:16"
	LogoAspectRatio         = "1:1"
	DefaultVideoResolution  = "720p"
	DefaultVideoAspectRatio = "9:16"
)

// Media is a generated still image.
type Media struct {
	RequestID string
	Model     string
	MIMEType  string
	Data      []byte
}

// DataURL encodes the media as a data: URL.
func (m *Media) DataURL() string {
	return "data:" + m.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(m.Data)
}

// ImageRequest asks for 9:16 brand artwork.
type ImageRequest struct {
	Prompt string
	Style  string
	Brand  *brand.Config
}

// LogoRequest asks for a square logo.
type LogoRequest struct {
	Brand     brand.Config
	IconStyle string
}

// VideoRequest asks for a short video.
type VideoRequest struct {
	Prompt      string
	Resolution  string
	AspectRatio string
}

// Video is a finished video operation.
type Video struct {
	RequestID string
	Model     string
	Operation string

	// URI is the download location with the API key attached.
	URI string
}

// SpeechRequest asks for spoken audio.
type SpeechRequest struct {
	Text     string
	Voice    string
	Language brand.Language
}

// GenerateImage produces 9:16 commercial artwork.
func (c *Client) GenerateImage(ctx context.Context, req ImageRequest) (*Media, error) {
	if req.Prompt == "" {
		return nil, retry.NewFatalError(errors.New("prompt is required"))
	}
	style := req.Style
	if style == "" {
		style = "Photorealistic"
	}
	return c.still(ctx, Request{
		Kind:        model.KindImage,
		Prompt:      ImagePrompt(req.Prompt, style, req.Brand),
		AspectRatio: ImageAspectRatio,
	})
}

// GenerateLogo produces a 1:1 logo for the brand.
func (c *Client) GenerateLogo(ctx context.Context, req LogoRequest) (*Media, error) {
	if req.Brand.CompanyName == "" {
		return nil, retry.NewFatalError(errors.New("company name is required"))
	}
	iconStyle := req.IconStyle
	if iconStyle == "" {
		iconStyle = "abstract"
	}
	return c.still(ctx, Request{
		Kind:        model.KindLogo,
		Prompt:      LogoPrompt(req.Brand, iconStyle),
		AspectRatio: LogoAspectRatio,
	})
}

func (c *Client) still(ctx context.Context, req Request) (*Media, error) {
	ctx, cl := c.begin(ctx, req)

	result, _, err := c.generate(ctx, cl, req)
	if err != nil {
		return nil, c.end(ctx, cl, err)
	}

	part := result.FirstPart()
	if part == nil {
		return nil, c.end(ctx, cl, ErrNoMedia)
	}
	mime := part.MIMEType
	if mime == "" {
		mime = "image/png"
	}

	c.end(ctx, cl, nil)
	return &Media{
		RequestID: cl.record.RequestID,
		Model:     result.Model,
		MIMEType:  mime,
		Data:      part.Data,
	}, nil
}

// GenerateSpeech synthesises speech and decodes the 24kHz mono PCM payload.
func (c *Client) GenerateSpeech(ctx context.Context, req SpeechRequest) (*Speech, error) {
	if req.Text == "" {
		return nil, retry.NewFatalError(errors.New("text is required"))
	}
	if !SpeechLanguage(req.Language) {
		return nil, retry.NewFatalError(fmt.Errorf("speech does not support language %q", req.Language))
	}
	voice := req.Voice
	if voice == "" {
		voice = DefaultVoice
	}

	genReq := Request{
		Kind:   model.KindSpeech,
		Prompt: SpeechPrompt(req.Text, req.Language),
		Voice:  voice,
	}
	ctx, cl := c.begin(ctx, genReq)

	result, _, err := c.generate(ctx, cl, genReq)
	if err != nil {
		return nil, c.end(ctx, cl, err)
	}

	part := result.FirstPart()
	if part == nil || len(part.Data) == 0 {
		return nil, c.end(ctx, cl, ErrNoMedia)
	}

	c.end(ctx, cl, nil)
	return &Speech{
		Model:      result.Model,
		SampleRate: SpeechSampleRate,
		Channels:   SpeechChannels,
		PCM:        part.Data,
		Samples:    DecodePCM16(part.Data),
	}, nil
}

// GenerateVideo submits a video job, then polls it until done or until the
// poll timeout elapses. The submit request is retried; each status check is
// retried independently.
func (c *Client) GenerateVideo(ctx context.Context, req VideoRequest) (*Video, error) {
	genReq := Request{
		Kind:        model.KindVideo,
		Prompt:      req.Prompt,
		Resolution:  req.Resolution,
		AspectRatio: req.AspectRatio,
	}
	if genReq.Resolution == "" {
		genReq.Resolution = DefaultVideoResolution
	}
	if genReq.AspectRatio == "" {
		genReq.AspectRatio = DefaultVideoAspectRatio
	}
	ctx, cl := c.begin(ctx, genReq)

	result, t, err := c.generate(ctx, cl, genReq)
	if err != nil {
		return nil, c.end(ctx, cl, err)
	}

	op := result.Operation
	if op == nil || op.Name == "" {
		return nil, c.end(ctx, cl, retry.NewFatalError(errors.New("video submit returned no operation")))
	}
	cl.record.Operation = op.Name

	poller, ok := t.provider.(OperationPoller)
	if !ok {
		return nil, c.end(ctx, cl, retry.NewFatalError(fmt.Errorf("provider %s cannot poll operations", t.provider.Name())))
	}

	op, err = c.waitOperation(ctx, t, poller, op)
	if err != nil {
		return nil, c.end(ctx, cl, err)
	}
	if op.Error != "" {
		return nil, c.end(ctx, cl, retry.NewFatalError(fmt.Errorf("video operation %s failed: %s", op.Name, op.Error)))
	}
	if op.VideoURI == "" {
		return nil, c.end(ctx, cl, ErrNoMedia)
	}

	uri, err := withKey(op.VideoURI, t.apiKey)
	if err != nil {
		return nil, c.end(ctx, cl, err)
	}

	c.end(ctx, cl, nil)
	return &Video{
		RequestID: cl.record.RequestID,
		Model:     result.Model,
		Operation: op.Name,
		URI:       uri,
	}, nil
}

// ErrPollTimeout is returned when an operation does not finish in time.
var ErrPollTimeout = errors.New("operation did not finish before poll timeout")

// waitOperation polls op until it is done. Elapsed time is counted in poll
// intervals so the cap holds even with an injected sleep.
func (c *Client) waitOperation(ctx context.Context, t *target, poller OperationPoller, op *Operation) (*Operation, error) {
	var waited time.Duration
	for !op.Done {
		if waited >= c.pollConfig.Timeout {
			return nil, fmt.Errorf("%w: %s after %s", ErrPollTimeout, op.Name, waited)
		}
		if err := c.sleep(ctx, c.pollConfig.Interval); err != nil {
			return nil, fmt.Errorf("waiting for operation %s: %w", op.Name, err)
		}
		waited += c.pollConfig.Interval

		next, err := c.pollOnce(ctx, t, poller, op.Name)
		if err != nil {
			return nil, err
		}
		c.logger.Debug("Polled operation", "operation", op.Name, "done", next.Done, "waited", waited)
		op = next
	}
	return op, nil
}

func (c *Client) pollOnce(ctx context.Context, t *target, poller OperationPoller, name string) (*Operation, error) {
	opURL := poller.OperationURL(t.endpoint.URL, name)
	return retry.Do(ctx, func(ctx context.Context) (*Operation, error) {
		body, err := c.send(ctx, t, http.MethodGet, opURL, nil)
		c.metrics.attempt(t.name, model.KindVideo.String(), err)
		if err != nil {
			return nil, err
		}
		op, err := poller.ParseOperation(body)
		if err != nil {
			return nil, retry.NewFatalError(fmt.Errorf("parse operation: %w", err))
		}
		return op, nil
	}, c.retryOptions(t, model.KindVideo)...)
}

// withKey appends the API key as a query parameter.
func withKey(rawURI, key string) (string, error) {
	if key == "" {
		return rawURI, nil
	}
	u, err := url.Parse(rawURI)
	if err != nil {
		return "", retry.NewFatalError(fmt.Errorf("parse video uri: %w", err))
	}
	q := u.Query()
	q.Set("key", key)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
