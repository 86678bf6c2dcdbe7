package genai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/c360studio/brandstudio/storage"
)

// CallRecord is one generation with its retry and fallback history.
type CallRecord struct {
	// RequestID uniquely identifies this generation.
	RequestID string `json:"request_id"`

	// Kind is the media kind requested.
	Kind string `json:"kind"`

	// Endpoint is the registry endpoint that served the call. Empty on failure.
	Endpoint string `json:"endpoint,omitempty"`

	// Model is the model that produced the result.
	Model string `json:"model,omitempty"`

	// Provider is the API dialect of Endpoint.
	Provider string `json:"provider,omitempty"`

	// Prompt is the text sent to the model.
	Prompt string `json:"prompt"`

	// Operation is the long-running operation name for video.
	Operation string `json:"operation,omitempty"`

	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	DurationMs  int64     `json:"duration_ms"`

	// Error contains the failure message if the call failed.
	Error string `json:"error,omitempty"`

	// Attempts counts upstream requests across all endpoints.
	Attempts int `json:"attempts"`

	// Retries is Attempts minus one per endpoint tried.
	Retries int `json:"retries"`

	// FallbacksUsed lists endpoints that failed before the final one.
	FallbacksUsed []string `json:"fallbacks_used,omitempty"`
}

// CallStore persists call records in a storage bucket keyed by request ID.
type CallStore struct {
	bucket storage.Bucket
	logger *slog.Logger
}

// CallStoreOption configures a CallStore.
type CallStoreOption func(*CallStore)

// WithStoreLogger sets the logger for the call store.
func WithStoreLogger(logger *slog.Logger) CallStoreOption {
	return func(s *CallStore) {
		s.logger = logger
	}
}

// NewCallStore creates a call store on bucket.
func NewCallStore(bucket storage.Bucket, opts ...CallStoreOption) *CallStore {
	s := &CallStore{
		bucket: bucket,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store saves a record.
func (s *CallStore) Store(ctx context.Context, record *CallRecord) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if record.RequestID == "" {
		return fmt.Errorf("request_id is required")
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal call record: %w", err)
	}
	if err := s.bucket.Put(ctx, record.RequestID, data); err != nil {
		return fmt.Errorf("store call record: %w", err)
	}

	s.logger.Debug("Stored generation call",
		"request_id", record.RequestID,
		"kind", record.Kind,
		"attempts", record.Attempts)
	return nil
}

// Get loads a record by request ID.
func (s *CallStore) Get(ctx context.Context, requestID string) (*CallRecord, error) {
	data, err := s.bucket.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	var rec CallRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal call record %s: %w", requestID, err)
	}
	return &rec, nil
}

// List returns every stored record, oldest first. Unreadable entries are skipped.
func (s *CallStore) List(ctx context.Context) ([]*CallRecord, error) {
	keys, err := s.bucket.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("list call records: %w", err)
	}

	records := make([]*CallRecord, 0, len(keys))
	for _, key := range keys {
		rec, err := s.Get(ctx, key)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			s.logger.Warn("Skipping unreadable call record", "request_id", key, "error", err)
			continue
		}
		records = append(records, rec)
	}
	SortByStartTime(records)
	return records, nil
}

// SortByStartTime sorts records chronologically by StartedAt.
func SortByStartTime(records []*CallRecord) {
	sort.Slice(records, func(i, j int) bool {
		return records[i].StartedAt.Before(records[j].StartedAt)
	})
}
