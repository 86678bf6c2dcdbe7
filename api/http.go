// Package api exposes the studio over HTTP/JSON.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/c360studio/brandstudio/brand"
	"github.com/c360studio/brandstudio/genai"
	"github.com/c360studio/brandstudio/model"
	"github.com/c360studio/brandstudio/state"
	"github.com/c360studio/brandstudio/storage"
	"github.com/c360studio/brandstudio/studio"
)

// maxRequestBodySize limits request bodies. Listings and master uploads
// carry data: URLs, so the cap is higher than for plain JSON commands.
const (
	maxRequestBodySize = 1 << 20  // 1 MB
	maxUploadBodySize  = 32 << 20 // 32 MB
)

// Handler serves the studio API.
type Handler struct {
	svc      *studio.Service
	calls    *genai.CallStore
	registry *model.Registry
	gatherer prometheus.Gatherer
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the handler logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

// WithCallStore enables the call history endpoints.
func WithCallStore(calls *genai.CallStore) Option {
	return func(h *Handler) {
		h.calls = calls
	}
}

// WithRegistry adds endpoint health to /health.
func WithRegistry(r *model.Registry) Option {
	return func(h *Handler) {
		h.registry = r
	}
}

// WithGatherer sets the metrics source for /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(h *Handler) {
		h.gatherer = g
	}
}

// NewHandler creates an API handler.
func NewHandler(svc *studio.Service, opts ...Option) *Handler {
	h := &Handler{
		svc:      svc,
		gatherer: prometheus.DefaultGatherer,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterHTTPHandlers registers the API under prefix (e.g. "api") plus the
// unprefixed operational endpoints:
//
//	GET|POST|DELETE <prefix>/session
//	GET|PUT         <prefix>/brand
//	POST            <prefix>/brand/logo
//	POST            <prefix>/brand/import
//	GET|DELETE      <prefix>/assets
//	DELETE          <prefix>/assets/{id}
//	GET             <prefix>/assets/stats
//	GET|POST        <prefix>/library
//	GET|POST        <prefix>/marketplace
//	POST            <prefix>/marketplace/acquire
//	POST            <prefix>/generate/image
//	POST            <prefix>/generate/video
//	POST            <prefix>/generate/speech
//	GET             <prefix>/calls
//	GET             <prefix>/calls/{request_id}
//	GET             /health
//	GET             /metrics
func (h *Handler) RegisterHTTPHandlers(prefix string, mux *http.ServeMux) {
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix = prefix + "/"
	}

	mux.HandleFunc(prefix+"session", h.handleSession)
	mux.HandleFunc(prefix+"brand", h.handleBrand)
	mux.HandleFunc(prefix+"brand/logo", h.handleLogo)
	mux.HandleFunc(prefix+"brand/import", h.handleImport)
	mux.HandleFunc(prefix+"assets", h.handleAssets)
	mux.HandleFunc(prefix+"assets/stats", h.handleStats)
	mux.HandleFunc(prefix+"assets/", h.handleAsset)
	mux.HandleFunc(prefix+"library", h.handleLibrary)
	mux.HandleFunc(prefix+"marketplace", h.handleMarketplace)
	mux.HandleFunc(prefix+"marketplace/acquire", h.handleAcquire)
	mux.HandleFunc(prefix+"generate/image", h.handleGenerateImage)
	mux.HandleFunc(prefix+"generate/video", h.handleGenerateVideo)
	mux.HandleFunc(prefix+"generate/speech", h.handleGenerateSpeech)
	mux.HandleFunc(prefix+"calls", h.handleCalls)
	mux.HandleFunc(prefix+"calls/", h.handleCall)

	mux.HandleFunc("/health", h.handleHealth)
	mux.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
}

// ----------------------------------------------------------------------------
// Session and brand
// ----------------------------------------------------------------------------

// LoginRequest is the body of POST /session.
type LoginRequest struct {
	Email string     `json:"email"`
	Role  brand.Role `json:"role,omitempty"`
}

func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	store := h.svc.Store()
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, store.Snapshot())
	case http.MethodPost:
		var req LoginRequest
		if !decodeBody(w, r, maxRequestBodySize, &req) {
			return
		}
		if req.Role != "" {
			role, err := brand.ParseRole(string(req.Role))
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			req.Role = role
		}
		st, err := store.Login(r.Context(), req.Email, req.Role)
		if err != nil {
			h.writeError(w, r, err, http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusOK, st)
	case http.MethodDelete:
		st, err := store.Logout(r.Context())
		if err != nil {
			h.writeError(w, r, err, http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, st)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleBrand(w http.ResponseWriter, r *http.Request) {
	store := h.svc.Store()
	switch r.Method {
	case http.MethodGet:
		user := store.User()
		if user == nil {
			h.writeError(w, r, state.ErrNoUser, http.StatusUnauthorized)
			return
		}
		if user.Brand == nil {
			http.Error(w, "No brand configured", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, user.Brand)
	case http.MethodPut:
		var cfg brand.Config
		if !decodeBody(w, r, maxUploadBodySize, &cfg) {
			return
		}
		st, err := store.SetBrand(r.Context(), cfg)
		if err != nil {
			h.writeError(w, r, err, http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusOK, st.User.Brand)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// LogoRequest is the body of POST /brand/logo.
type LogoRequest struct {
	Brand     brand.Config `json:"brand"`
	IconStyle string       `json:"icon_style,omitempty"`
}

func (h *Handler) handleLogo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req LogoRequest
	if !decodeBody(w, r, maxRequestBodySize, &req) {
		return
	}
	cfg, err := h.svc.GenerateLogo(r.Context(), req.Brand, req.IconStyle)
	if err != nil {
		h.writeError(w, r, err, http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// ImportRequest is the body of POST /brand/import.
type ImportRequest struct {
	URL string `json:"url"`
}

func (h *Handler) handleImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req ImportRequest
	if !decodeBody(w, r, maxRequestBodySize, &req) {
		return
	}
	draft, err := h.svc.ImportBrand(r.Context(), req.URL)
	if err != nil {
		h.writeError(w, r, err, http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

// ----------------------------------------------------------------------------
// Catalogue
// ----------------------------------------------------------------------------

// BulkDeleteRequest is the body of DELETE /assets.
type BulkDeleteRequest struct {
	IDs []string `json:"ids"`
}

// handleAssets lists the catalogue for ?month=1..12 (default: current
// month) filtered by ?source=, or bulk-deletes.
func (h *Handler) handleAssets(w http.ResponseWriter, r *http.Request) {
	store := h.svc.Store()
	switch r.Method {
	case http.MethodGet:
		month := h.now().Month()
		if raw := r.URL.Query().Get("month"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 || n > 12 {
				http.Error(w, "month must be 1-12", http.StatusBadRequest)
				return
			}
			month = time.Month(n)
		}
		var source brand.Source
		if raw := r.URL.Query().Get("source"); raw != "" && raw != "all" {
			s, err := brand.ParseSource(raw)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			source = s
		}
		assets := store.MonthlyAssets(month, source)
		if assets == nil {
			assets = []brand.MonthlyAsset{}
		}
		writeJSON(w, http.StatusOK, assets)
	case http.MethodDelete:
		var req BulkDeleteRequest
		if !decodeBody(w, r, maxRequestBodySize, &req) {
			return
		}
		st, err := store.BulkRemoveAssets(r.Context(), req.IDs)
		if err != nil {
			h.writeError(w, r, err, http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, st.Assets)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleAsset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := pathTail(r.URL.Path, "assets/")
	if id == "" {
		http.Error(w, "Asset id required", http.StatusBadRequest)
		return
	}
	if _, err := h.svc.Store().RemoveAsset(r.Context(), id); err != nil {
		h.writeError(w, r, err, http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, h.svc.Store().Stats())
}

func (h *Handler) handleLibrary(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		assets := h.svc.Store().MasterLibrary(r.URL.Query().Get("q"))
		if assets == nil {
			assets = []brand.MonthlyAsset{}
		}
		writeJSON(w, http.StatusOK, assets)
	case http.MethodPost:
		var in studio.MasterInput
		if !decodeBody(w, r, maxUploadBodySize, &in) {
			return
		}
		asset, err := h.svc.IngestMaster(r.Context(), in)
		if err != nil {
			h.writeError(w, r, err, http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusCreated, asset)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// ----------------------------------------------------------------------------
// Marketplace
// ----------------------------------------------------------------------------

// AcquireRequest is the body of POST /marketplace/acquire.
type AcquireRequest struct {
	ListingID string `json:"listing_id"`
}

func (h *Handler) handleMarketplace(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		listings := h.svc.Store().Snapshot().Marketplace
		if listings == nil {
			listings = []brand.MarketplaceAsset{}
		}
		writeJSON(w, http.StatusOK, listings)
	case http.MethodPost:
		var in studio.ListingInput
		if !decodeBody(w, r, maxUploadBodySize, &in) {
			return
		}
		listing, err := h.svc.ListAsset(r.Context(), in)
		if err != nil {
			h.writeError(w, r, err, http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusCreated, listing)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleAcquire(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req AcquireRequest
	if !decodeBody(w, r, maxRequestBodySize, &req) {
		return
	}
	asset, err := h.svc.Acquire(r.Context(), req.ListingID)
	if err != nil {
		h.writeError(w, r, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, asset)
}

// ----------------------------------------------------------------------------
// Generation
// ----------------------------------------------------------------------------

func (h *Handler) handleGenerateImage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var in studio.ImageInput
	if !decodeBody(w, r, maxRequestBodySize, &in) {
		return
	}
	asset, err := h.svc.GenerateImage(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err, http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusCreated, asset)
}

func (h *Handler) handleGenerateVideo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var in studio.VideoInput
	if !decodeBody(w, r, maxRequestBodySize, &in) {
		return
	}
	asset, err := h.svc.GenerateVideo(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err, http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusCreated, asset)
}

// SpeechRequest is the body of POST /generate/speech.
type SpeechRequest struct {
	Text     string         `json:"text"`
	Language brand.Language `json:"language,omitempty"`
	Voice    string         `json:"voice,omitempty"`
}

// handleGenerateSpeech responds with a WAV file.
func (h *Handler) handleGenerateSpeech(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req SpeechRequest
	if !decodeBody(w, r, maxRequestBodySize, &req) {
		return
	}
	speech, err := h.svc.Speak(r.Context(), req.Text, req.Language, req.Voice)
	if err != nil {
		h.writeError(w, r, err, http.StatusBadGateway)
		return
	}
	wav := speech.WAV()
	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Length", strconv.Itoa(len(wav)))
	w.Header().Set("X-Audio-Duration", strconv.FormatFloat(speech.Duration(), 'f', 3, 64))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(wav)
}

// ----------------------------------------------------------------------------
// Call history and health
// ----------------------------------------------------------------------------

func (h *Handler) handleCalls(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.calls == nil {
		writeJSON(w, http.StatusOK, []*genai.CallRecord{})
		return
	}
	records, err := h.calls.List(r.Context())
	if err != nil {
		h.writeError(w, r, err, http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []*genai.CallRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *Handler) handleCall(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := pathTail(r.URL.Path, "calls/")
	if h.calls == nil || id == "" {
		http.Error(w, "Call not found", http.StatusNotFound)
		return
	}
	record, err := h.calls.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string                           `json:"status"`
	Endpoints map[string]*model.EndpointHealth `json:"endpoints,omitempty"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	resp := HealthResponse{Status: "ok"}
	if h.registry != nil {
		resp.Endpoints = make(map[string]*model.EndpointHealth)
		for _, name := range h.registry.ListEndpoints() {
			health := h.registry.GetEndpointHealth(name)
			if health == nil {
				health = &model.EndpointHealth{Available: true}
			}
			resp.Endpoints[name] = health
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// ----------------------------------------------------------------------------
// Helpers
// ----------------------------------------------------------------------------

// decodeBody reads a JSON body into dst, writing a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, limit int64, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
			return false
		}
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

// statusFor maps domain errors to HTTP status codes. Unknown errors get
// fallback.
func statusFor(err error, fallback int) int {
	switch {
	case errors.Is(err, studio.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, state.ErrNoUser):
		return http.StatusUnauthorized
	case errors.Is(err, studio.ErrInsufficientCredits):
		return http.StatusPaymentRequired
	case errors.Is(err, studio.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, state.ErrNotFound), errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, studio.ErrAlreadyAcquired):
		return http.StatusConflict
	case errors.Is(err, studio.ErrImportDisabled):
		return http.StatusNotImplemented
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, genai.ErrPollTimeout):
		return http.StatusGatewayTimeout
	}
	return fallback
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error, fallback int) {
	status := statusFor(err, fallback)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	} else {
		h.logger.Debug("Request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func pathTail(path, marker string) string {
	i := strings.LastIndex(path, marker)
	if i < 0 {
		return ""
	}
	return strings.Trim(path[i+len(marker):], "/")
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
