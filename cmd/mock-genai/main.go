// Package main implements a mock generation server for e2e testing.
// It speaks the Gemini generateContent and predictLongRunning dialects and
// the OpenAI images endpoint, so brandstudio can run offline against it by
// pointing an endpoint's url at this server.
//
// Usage:
//
//	mock-genai -fixtures /path/to/fixtures -port 8090
//
// Fixture files are raw response bodies named by model (e.g.
// "gemini-2.5-flash-image.json"). Models without fixtures get a synthesized
// response: a 1x1 PNG for images, half a second of silence for speech and a
// finished operation for video.
//
// Sequential fixtures: "model.1.json", "model.2.json" are served for the 1st
// and 2nd call, then the base "model.json" repeats. A "model.N.status" file
// holding an HTTP status code makes the Nth call fail with that status, which
// drives retry and fallback paths.
package main

import (
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// fixture is one scripted response.
type fixture struct {
	Status int
	Body   string
}

// capturedRequest stores the key fields of an incoming request for test verification.
type capturedRequest struct {
	Model     string          `json:"model"`
	Method    string          `json:"method"`
	Body      json.RawMessage `json:"body"`
	CallIndex int             `json:"call_index"`
	Timestamp int64           `json:"timestamp"`
}

type operation struct {
	model string
	polls int
}

type server struct {
	fixtures   map[string][]fixture
	videoPolls int
	logger     *slog.Logger
	calls      atomic.Int64
	opSeq      atomic.Int64

	mu            sync.Mutex
	modelCalls    map[string]int
	modelRequests map[string][]capturedRequest
	operations    map[string]*operation
}

func newServer(fixtures map[string][]fixture, videoPolls int, logger *slog.Logger) *server {
	if fixtures == nil {
		fixtures = make(map[string][]fixture)
	}
	return &server{
		fixtures:      fixtures,
		videoPolls:    videoPolls,
		logger:        logger,
		modelCalls:    make(map[string]int),
		modelRequests: make(map[string][]capturedRequest),
		operations:    make(map[string]*operation),
	}
}

func main() {
	fixtureDir := flag.String("fixtures", "", "directory containing fixture response files")
	port := flag.Int("port", 8090, "port to listen on")
	videoPolls := flag.Int("video-polls", 1, "status polls before a video operation completes")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if envDir := os.Getenv("MOCK_GENAI_FIXTURES"); envDir != "" && *fixtureDir == "" {
		*fixtureDir = envDir
	}

	var fixtures map[string][]fixture
	if *fixtureDir != "" {
		var err error
		fixtures, err = loadFixtures(*fixtureDir)
		if err != nil {
			logger.Error("Failed to load fixtures", "dir", *fixtureDir, "error", err)
			os.Exit(1)
		}
		logger.Info("Loaded fixtures", "models", len(fixtures), "dir", *fixtureDir)
	}

	s := newServer(fixtures, *videoPolls, logger)
	addr := fmt.Sprintf(":%d", *port)
	logger.Info("Mock generation server listening", "addr", addr)
	srv := &http.Server{Addr: addr, Handler: s.routes(), ReadHeaderTimeout: 10 * time.Second}
	if err := srv.ListenAndServe(); err != nil {
		logger.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /v1beta/models/{call}", s.handleModelCall)
	mux.HandleFunc("GET /v1beta/models/{model}/operations/{op}", s.handleOperation)
	mux.HandleFunc("POST /v1/images/generations", s.handleOpenAIImages)
	mux.HandleFunc("GET /files/{name}", s.handleFile)
	mux.HandleFunc("GET /stats", s.handleStats)
	mux.HandleFunc("GET /requests", s.handleRequests)
	return mux
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleModelCall serves "{model}:generateContent" and "{model}:predictLongRunning".
func (s *server) handleModelCall(w http.ResponseWriter, r *http.Request) {
	modelName, method, ok := strings.Cut(r.PathValue("call"), ":")
	if !ok {
		writeGeminiError(w, http.StatusNotFound, "missing method")
		return
	}
	if method != "generateContent" && method != "predictLongRunning" {
		writeGeminiError(w, http.StatusNotFound, "unknown method "+method)
		return
	}

	body, err := readBody(r)
	if err != nil {
		writeGeminiError(w, http.StatusBadRequest, err.Error())
		return
	}

	fx, callIndex := s.next(modelName, method, body)
	callNum := s.calls.Add(1)
	s.logger.Info("Model call", "call", callNum, "model", modelName, "method", method, "call_index", callIndex)

	if fx != nil {
		if fx.Status != 0 && fx.Status != http.StatusOK {
			writeGeminiError(w, fx.Status, fmt.Sprintf("scripted failure for %s call %d", modelName, callIndex))
			return
		}
		if method == "predictLongRunning" {
			s.track(modelName, fx.Body)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(fx.Body))
		return
	}

	switch {
	case method == "predictLongRunning":
		name := fmt.Sprintf("models/%s/operations/op-%d", modelName, s.opSeq.Add(1))
		s.mu.Lock()
		s.operations[name] = &operation{model: modelName}
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"name": name, "done": false})
	case strings.Contains(modelName, "tts"):
		writeJSON(w, http.StatusOK, inlineResponse(modelName, "audio/L16;codec=pcm;rate=24000", silence(500*time.Millisecond)))
	default:
		writeJSON(w, http.StatusOK, inlineResponse(modelName, "image/png", onePixelPNG))
	}
}

// track registers the operation named in a scripted predictLongRunning body
// so that status polls for it succeed.
func (s *server) track(modelName, body string) {
	var op struct {
		Name string `json:"name"`
	}
	if json.Unmarshal([]byte(body), &op) != nil || op.Name == "" {
		return
	}
	s.mu.Lock()
	if _, ok := s.operations[op.Name]; !ok {
		s.operations[op.Name] = &operation{model: modelName}
	}
	s.mu.Unlock()
}

func (s *server) handleOperation(w http.ResponseWriter, r *http.Request) {
	name := fmt.Sprintf("models/%s/operations/%s", r.PathValue("model"), r.PathValue("op"))

	var polls int
	s.mu.Lock()
	op, ok := s.operations[name]
	if ok {
		op.polls++
		polls = op.polls
	}
	s.mu.Unlock()

	if !ok {
		writeGeminiError(w, http.StatusNotFound, "operation not found")
		return
	}
	if polls < s.videoPolls {
		writeJSON(w, http.StatusOK, map[string]any{"name": name, "done": false})
		return
	}

	uri := fmt.Sprintf("http://%s/files/%s.mp4", r.Host, r.PathValue("op"))
	writeJSON(w, http.StatusOK, map[string]any{
		"name": name,
		"done": true,
		"response": map[string]any{
			"generateVideoResponse": map[string]any{
				"generatedSamples": []any{map[string]any{"video": map[string]string{"uri": uri}}},
			},
		},
	})
}

func (s *server) handleOpenAIImages(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var req struct {
		Model string `json:"model"`
	}
	_ = json.Unmarshal(body, &req)

	fx, callIndex := s.next(req.Model, "images", body)
	s.calls.Add(1)
	s.logger.Info("Image call", "model", req.Model, "call_index", callIndex)

	if fx != nil {
		if fx.Status != 0 && fx.Status != http.StatusOK {
			writeJSON(w, fx.Status, map[string]any{"error": map[string]string{"message": "scripted failure"}})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(fx.Body))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data": []map[string]string{{"b64_json": base64.StdEncoding.EncodeToString(onePixelPNG)}},
	})
}

// handleFile serves placeholder bytes for finished video URIs.
func (s *server) handleFile(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "video/mp4")
	_, _ = w.Write([]byte("mock-video"))
}

// next records the request and returns the scripted fixture for this call, or
// nil when the model is unscripted.
func (s *server) next(modelName, method string, body []byte) (*fixture, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.modelCalls[modelName]++
	callIndex := s.modelCalls[modelName]
	captured := body
	if !json.Valid(captured) {
		captured = nil
	}
	s.modelRequests[modelName] = append(s.modelRequests[modelName], capturedRequest{
		Model:     modelName,
		Method:    method,
		Body:      captured,
		CallIndex: callIndex,
		Timestamp: time.Now().UnixMilli(),
	})

	seq, ok := s.fixtures[modelName]
	if !ok || len(seq) == 0 {
		return nil, callIndex
	}
	if callIndex <= len(seq) {
		return &seq[callIndex-1], callIndex
	}
	return &seq[len(seq)-1], callIndex
}

// handleStats returns call counts for test assertions.
func (s *server) handleStats(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	callsByModel := make(map[string]int, len(s.modelCalls))
	for m, n := range s.modelCalls {
		callsByModel[m] = n
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"total_calls":    s.calls.Load(),
		"calls_by_model": callsByModel,
	})
}

// handleRequests returns captured request bodies, filtered by ?model= and ?call=.
func (s *server) handleRequests(w http.ResponseWriter, r *http.Request) {
	modelFilter := r.URL.Query().Get("model")
	callFilter, _ := strconv.Atoi(r.URL.Query().Get("call"))

	s.mu.Lock()
	result := make(map[string][]capturedRequest)
	for m, reqs := range s.modelRequests {
		if modelFilter != "" && m != modelFilter {
			continue
		}
		for _, req := range reqs {
			if callFilter == 0 || req.CallIndex == callFilter {
				result[m] = append(result[m], req)
			}
		}
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"requests_by_model": result})
}

// numberedFileRe matches files like "veo-3.1-fast-generate-preview.2.json".
var numberedFileRe = regexp.MustCompile(`^(.+)\.(\d+)\.(json|status)$`)

// loadFixtures walks dir for *.json and *.status files and returns a map of
// model to response sequence. Numbered entries come first in numeric order,
// then the base file as the repeating fallback.
func loadFixtures(dir string) (map[string][]fixture, error) {
	paths, err := doublestar.FilepathGlob(filepath.Join(dir, "**", "*.{json,status}"))
	if err != nil {
		return nil, fmt.Errorf("glob fixtures: %w", err)
	}

	base := make(map[string]fixture)
	numbered := make(map[string]map[int]fixture)

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		name := filepath.Base(path)

		if m := numberedFileRe.FindStringSubmatch(name); m != nil {
			index, _ := strconv.Atoi(m[2])
			fx, err := parseFixture(path, m[3], data)
			if err != nil {
				return nil, err
			}
			if numbered[m[1]] == nil {
				numbered[m[1]] = make(map[int]fixture)
			}
			numbered[m[1]][index] = fx
			continue
		}

		if !strings.HasSuffix(name, ".json") {
			return nil, fmt.Errorf("status file %s must be numbered", path)
		}
		fx, err := parseFixture(path, "json", data)
		if err != nil {
			return nil, err
		}
		base[strings.TrimSuffix(name, ".json")] = fx
	}

	fixtures := make(map[string][]fixture)
	for m, entries := range numbered {
		indices := make([]int, 0, len(entries))
		for idx := range entries {
			indices = append(indices, idx)
		}
		sort.Ints(indices)
		for _, idx := range indices {
			fixtures[m] = append(fixtures[m], entries[idx])
		}
	}
	for m, fx := range base {
		fixtures[m] = append(fixtures[m], fx)
	}

	if len(fixtures) == 0 {
		return nil, fmt.Errorf("no fixture files found in %s", dir)
	}
	return fixtures, nil
}

func parseFixture(path, ext string, data []byte) (fixture, error) {
	if ext == "status" {
		code, err := strconv.Atoi(strings.TrimSpace(string(data)))
		if err != nil || code < 100 || code > 599 {
			return fixture{}, fmt.Errorf("invalid status in %s", path)
		}
		return fixture{Status: code}, nil
	}
	if !json.Valid(data) {
		return fixture{}, fmt.Errorf("invalid JSON in %s", path)
	}
	return fixture{Status: http.StatusOK, Body: string(data)}, nil
}

func inlineResponse(modelName, mimeType string, data []byte) map[string]any {
	return map[string]any{
		"modelVersion": modelName,
		"candidates": []any{map[string]any{
			"content": map[string]any{
				"parts": []any{map[string]any{
					"inlineData": map[string]string{
						"mimeType": mimeType,
						"data":     base64.StdEncoding.EncodeToString(data),
					},
				}},
			},
		}},
	}
}

// silence returns 16-bit mono PCM at 24kHz.
func silence(d time.Duration) []byte {
	samples := int(d.Seconds() * 24000)
	return make([]byte, samples*2)
}

var onePixelPNG, _ = base64.StdEncoding.DecodeString(
	"iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg==")

func readBody(r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	return io.ReadAll(io.LimitReader(r.Body, 1<<20))
}

func writeGeminiError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"code":    status,
			"message": msg,
			"status":  http.StatusText(status),
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
