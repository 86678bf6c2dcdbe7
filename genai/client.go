// Package genai provides a provider-agnostic client for generative media APIs
// with retry and fallback support. It integrates with the model.Registry for
// kind-based endpoint selection and wraps every upstream call in retry.Do.
package genai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/c360studio/brandstudio/model"
	"github.com/c360studio/brandstudio/retry"
	"github.com/c360studio/brandstudio/storage"
)

// maxResponseSize limits the response body. Inline images and audio are base64.
const maxResponseSize = 10 * 1024 * 1024 // 10MB

// tracerName is the instrumentation scope for generation spans.
const tracerName = "github.com/c360studio/brandstudio/genai"

// ErrNoMedia is returned when a successful response carries no media.
var ErrNoMedia = errors.New("response contained no media")

// PollConfig controls long-running operation polling.
type PollConfig struct {
	// Interval between status checks.
	Interval time.Duration `yaml:"interval" json:"interval"`

	// Timeout bounds the total time spent waiting.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// DefaultPollConfig polls every 10s for up to 10 minutes.
func DefaultPollConfig() PollConfig {
	return PollConfig{
		Interval: 10 * time.Second,
		Timeout:  10 * time.Minute,
	}
}

// Client is a provider-agnostic generation client with retry and fallback support.
type Client struct {
	registry    *model.Registry
	httpClient  *http.Client
	retryConfig retry.Config
	pollConfig  PollConfig
	logger      *slog.Logger
	apiKey      string
	limiter     *rate.Limiter
	metrics     *Metrics
	tracer      trace.Tracer
	sleep       retry.SleepFunc
	now         func() time.Time

	// callStore optionally persists call records. If nil, recording is disabled.
	callStore *CallStore
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithRetryConfig sets the retry policy applied to each upstream call.
func WithRetryConfig(cfg retry.Config) ClientOption {
	return func(client *Client) {
		client.retryConfig = cfg
	}
}

// WithPolling sets the long-running operation polling policy.
func WithPolling(cfg PollConfig) ClientOption {
	return func(client *Client) {
		if cfg.Interval > 0 {
			client.pollConfig.Interval = cfg.Interval
		}
		if cfg.Timeout > 0 {
			client.pollConfig.Timeout = cfg.Timeout
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(client *Client) {
		client.logger = logger
	}
}

// WithAPIKey sets the key used for endpoints without their own APIKeyEnv.
func WithAPIKey(key string) ClientOption {
	return func(client *Client) {
		client.apiKey = key
	}
}

// WithRateLimit caps outbound requests per second across all endpoints.
func WithRateLimit(perSecond float64, burst int) ClientOption {
	return func(client *Client) {
		if perSecond <= 0 {
			client.limiter = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		client.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *Metrics) ClientOption {
	return func(client *Client) {
		client.metrics = m
	}
}

// WithTracer sets the OpenTelemetry tracer. Defaults to the global provider.
func WithTracer(t trace.Tracer) ClientOption {
	return func(client *Client) {
		client.tracer = t
	}
}

// WithSleep replaces the sleep used for backoff and polling.
func WithSleep(fn retry.SleepFunc) ClientOption {
	return func(client *Client) {
		client.sleep = fn
	}
}

// WithCallStore enables call recording.
func WithCallStore(store *CallStore) ClientOption {
	return func(client *Client) {
		client.callStore = store
	}
}

// NewClient creates a new generation client with the given model registry.
func NewClient(registry *model.Registry, opts ...ClientOption) *Client {
	c := &Client{
		registry:    registry,
		retryConfig: retry.DefaultConfig(),
		pollConfig:  DefaultPollConfig(),
		httpClient: &http.Client{
			Timeout: 180 * time.Second, // Image synthesis can be slow
		},
		logger: slog.Default(),
		tracer: otel.Tracer(tracerName),
		sleep:  retry.Sleep,
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// target is a resolved endpoint ready to receive requests.
type target struct {
	name     string
	endpoint *model.EndpointConfig
	provider Provider
	apiKey   string
}

// call tracks one public operation from start to finish.
type call struct {
	record *CallRecord
	span   trace.Span
}

// begin starts the span and call record for req.
func (c *Client) begin(ctx context.Context, req Request) (context.Context, *call) {
	record := &CallRecord{
		RequestID: storage.NewRequestID(),
		Kind:      req.Kind.String(),
		Prompt:    req.Prompt,
		StartedAt: c.now(),
	}

	ctx, span := c.tracer.Start(ctx, "genai."+req.Kind.String(),
		trace.WithAttributes(
			attribute.String("genai.request_id", record.RequestID),
			attribute.String("genai.kind", record.Kind),
		),
		trace.WithSpanKind(trace.SpanKindClient),
	)
	return ctx, &call{record: record, span: span}
}

// end closes the span, records metrics and persists the call record.
// It returns err unchanged.
func (c *Client) end(ctx context.Context, cl *call, err error) error {
	record := cl.record
	record.CompletedAt = c.now()
	record.DurationMs = record.CompletedAt.Sub(record.StartedAt).Milliseconds()
	if err != nil {
		record.Error = err.Error()
		cl.span.RecordError(err)
		cl.span.SetStatus(codes.Error, err.Error())
	} else {
		cl.span.SetStatus(codes.Ok, "")
	}
	cl.span.SetAttributes(attribute.Int("genai.attempts", record.Attempts))
	cl.span.End()

	c.metrics.finished(record.Kind, record.CompletedAt.Sub(record.StartedAt), err)
	c.recordCall(context.WithoutCancel(ctx), record)
	return err
}

// generate sends req down the registry chain for its kind, retrying each
// endpoint and falling back when retries are exhausted.
func (c *Client) generate(ctx context.Context, cl *call, req Request) (*Result, *target, error) {
	if req.Prompt == "" {
		return nil, nil, retry.NewFatalError(errors.New("prompt is required"))
	}

	chain := c.registry.GetAvailableFallbackChain(req.Kind)
	if len(chain) == 0 {
		return nil, nil, retry.NewFatalError(fmt.Errorf("no endpoints configured for kind %s", req.Kind))
	}

	record := cl.record
	var lastErr error
	for _, name := range chain {
		t, err := c.resolve(name, req.Kind)
		if err != nil {
			c.logger.Debug("Skipping endpoint", "endpoint", name, "reason", err)
			continue
		}

		// The chain is already filtered by circuit state; when every circuit
		// is open it is the full chain and each endpoint gets a trial request.
		result, attempts, err := c.tryEndpoint(ctx, t, req)
		record.Attempts += attempts
		record.Retries += attempts - 1 // First attempt isn't a retry

		if err == nil {
			c.registry.MarkEndpointSuccess(name)
			record.Endpoint = name
			record.Model = result.Model
			record.Provider = t.provider.Name()
			cl.span.SetAttributes(
				attribute.String("genai.endpoint", name),
				attribute.String("genai.model", result.Model),
			)
			return result, t, nil
		}

		lastErr = err
		if ctx.Err() != nil {
			break
		}

		if !retry.IsRetryable(err) {
			c.logger.Warn("Non-retryable error, not trying fallbacks",
				"endpoint", name,
				"kind", req.Kind,
				"error", err)
			return nil, nil, err
		}

		// Retries exhausted
		c.registry.MarkEndpointFailure(name)
		record.FallbacksUsed = append(record.FallbacksUsed, name)

		c.logger.Warn("Endpoint failed, trying fallback",
			"endpoint", name,
			"provider", t.endpoint.Provider,
			"attempts", attempts,
			"error", err)
	}

	if lastErr == nil {
		lastErr = retry.NewFatalError(fmt.Errorf("no usable endpoint for kind %s", req.Kind))
	}
	return nil, nil, fmt.Errorf("all endpoints failed for kind %s: %w", req.Kind, lastErr)
}

// recordCall stores a call record if the call store is configured.
// Failures are logged but don't affect the generation itself.
func (c *Client) recordCall(ctx context.Context, record *CallRecord) {
	if c.callStore == nil {
		return
	}

	if err := c.callStore.Store(ctx, record); err != nil {
		c.logger.Warn("Failed to record generation call",
			"request_id", record.RequestID,
			"kind", record.Kind,
			"error", err)
	}
}

// resolve looks up the endpoint and provider for a registry entry.
func (c *Client) resolve(name string, kind model.Kind) (*target, error) {
	ep := c.registry.GetEndpoint(name)
	if ep == nil {
		return nil, fmt.Errorf("no endpoint named %s", name)
	}
	provider := GetProvider(ep.Provider)
	if provider == nil {
		return nil, fmt.Errorf("unknown provider: %s", ep.Provider)
	}
	if !provider.Supports(kind) {
		return nil, fmt.Errorf("provider %s does not support %s", ep.Provider, kind)
	}

	// An endpoint with its own key variable never receives the shared key.
	key := c.apiKey
	if ep.APIKeyEnv != "" {
		key = os.Getenv(ep.APIKeyEnv)
		if key == "" {
			return nil, fmt.Errorf("%s is not set", ep.APIKeyEnv)
		}
	}
	return &target{name: name, endpoint: ep, provider: provider, apiKey: key}, nil
}

// retryOptions builds the retry options for calls against t.
func (c *Client) retryOptions(t *target, kind model.Kind) []retry.Option {
	opts := c.retryConfig.Options()
	opts = append(opts,
		retry.WithSleep(c.sleep),
		retry.WithOnRetry(func(a retry.Attempt) {
			c.metrics.retry(t.name, kind.String())
			c.logger.Debug("Request failed, retrying",
				"endpoint", t.name,
				"attempt", a.Index+1,
				"max_attempts", c.retryConfig.MaxAttempts,
				"backoff", a.Delay,
				"error", a.Err)
		}),
	)
	return opts
}

// tryEndpoint sends req to t under the retry policy and returns the number of
// attempts made.
func (c *Client) tryEndpoint(ctx context.Context, t *target, req Request) (*Result, int, error) {
	attempts := 0
	result, err := retry.Do(ctx, func(ctx context.Context) (*Result, error) {
		attempts++
		return c.doRequest(ctx, t, req)
	}, c.retryOptions(t, req.Kind)...)
	return result, attempts, err
}

// doRequest executes a single generation request against t.
func (c *Client) doRequest(ctx context.Context, t *target, req Request) (*Result, error) {
	url := t.provider.BuildURL(t.endpoint.URL, t.endpoint.Model, req.Kind)

	body, err := t.provider.BuildRequestBody(t.endpoint.Model, req)
	if err != nil {
		return nil, retry.NewFatalError(fmt.Errorf("build request body: %w", err))
	}

	c.logger.Debug("Sending generation request",
		"provider", t.endpoint.Provider,
		"model", t.endpoint.Model,
		"kind", req.Kind,
		"url", url)

	respBody, err := c.send(ctx, t, http.MethodPost, url, body)
	c.metrics.attempt(t.name, req.Kind.String(), err)
	if err != nil {
		return nil, err
	}

	result, err := t.provider.ParseResponse(respBody, t.endpoint.Model, req.Kind)
	if err != nil {
		return nil, retry.NewFatalError(fmt.Errorf("parse response: %w", err))
	}
	return result, nil
}

// send performs one HTTP exchange and maps failures onto retry's error types.
func (c *Client) send(ctx context.Context, t *target, method, url string, body []byte) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, retry.NewFatalError(fmt.Errorf("create HTTP request: %w", err))
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	t.provider.SetHeaders(httpReq, t.apiKey)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// Timeouts are transient; other network failures are classified by message
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, retry.NewTransientError(fmt.Errorf("HTTP request timed out: %w", err))
		}
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer httpResp.Body.Close()

	// Read response body with size limit to prevent memory exhaustion
	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize+1))
	if err != nil {
		return nil, retry.NewTransientError(fmt.Errorf("read response body: %w", err))
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, retry.NewStatusError(httpResp.StatusCode, respBody)
	}
	if len(respBody) > maxResponseSize {
		return nil, retry.NewFatalError(fmt.Errorf("response too large (exceeds %d bytes)", maxResponseSize))
	}
	return respBody, nil
}
