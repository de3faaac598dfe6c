package api

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/namelessnanashi/census/lib/census"
	"github.com/namelessnanashi/census/lib/kv"
	"github.com/namelessnanashi/census/lib/kv/httpstore"
)

var logger = slog.With("component", "api")

// HeaderProjectOverride carries an explicit project name that wins over both
// body fields.
const HeaderProjectOverride = "X-Census-Project"

// --------------------------------------------------------------------------
// Server
// --------------------------------------------------------------------------

// Server is the HTTP boundary of the census service. It is stateless per
// request; the store is the only shared resource.
type Server struct {
	config     Config
	store      kv.IStore
	recorder   *census.Recorder
	aggregator *census.Aggregator
	sweeper    *census.Sweeper
	engine     *census.Config
}

// NewServer wires the census engine components over the given store.
func NewServer(config Config, store kv.IStore) *Server {
	engine := census.DefaultConfig()
	return &Server{
		config:     config,
		store:      store,
		recorder:   census.NewRecorder(store, engine),
		aggregator: census.NewAggregator(store, engine),
		sweeper:    census.NewSweeper(store, engine),
		engine:     engine,
	}
}

// Handler returns the route table of the server. Exposed separately from
// Serve so tests and embedders can mount it on their own listener.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /census", s.handleReport)
	mux.HandleFunc("GET /census.json", s.handleStats)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	if s.config.ServeKV {
		mux.HandleFunc("GET /kv/{key}", s.handleKVGet)
		mux.HandleFunc("PUT /kv/{key}", s.handleKVPut)
		mux.HandleFunc("DELETE /kv/{key}", s.handleKVDelete)
		mux.HandleFunc("GET /kv", s.handleKVList)
	}

	if s.config.LogLevel == "debug" {
		return loggerMiddleware(mux)
	}
	return mux
}

// Serve starts the HTTP server. It blocks until the listener fails.
func (s *Server) Serve() error {
	logger.Info(s.config.String())
	logger.Info("starting census server", "endpoint", s.config.Endpoint)
	return http.ListenAndServe(s.config.Endpoint, s.Handler())
}

// --------------------------------------------------------------------------
// Reporting endpoint
// --------------------------------------------------------------------------

// reportPayload is the accepted request body. Clients also send date and
// count fields; both are deliberately ignored, the server always counts one
// event on its own current UTC day.
type reportPayload struct {
	ID          string `json:"id"`
	ProjectName string `json:"projectname"`
	Project     string `json:"project"`
	Date        string `json:"date"`
	Count       int    `json:"count"`
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		http.Error(w, "unsupported content type", http.StatusUnsupportedMediaType)
		return
	}

	var payload reportPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "malformed payload", http.StatusBadRequest)
		return
	}

	outcome := s.recorder.Record(census.Report{
		ID:          payload.ID,
		Override:    r.Header.Get(HeaderProjectOverride),
		ProjectName: payload.ProjectName,
		Project:     payload.Project,
	})
	metrics.GetOrCreateCounter(fmt.Sprintf(`census_reports_total{outcome=%q}`, outcome)).Inc()
	if outcome == census.OutcomeStoreUnavailable {
		metrics.GetOrCreateCounter(`census_store_errors_total`).Inc()
	}
	logger.Debug("report handled", "outcome", outcome.String())

	// Opportunistic retention sweep, detached from the request lifecycle.
	// Its completion or failure must never be observable by the requester.
	go func() {
		if s.sweeper.MaybeSweep() {
			metrics.GetOrCreateCounter(`census_sweeps_total`).Inc()
		}
	}()

	// All recorder outcomes collapse to the same no-content success signal:
	// dedup and denylist behavior is not leaked to the caller.
	w.WriteHeader(http.StatusNoContent)
}

// --------------------------------------------------------------------------
// Stats endpoint
// --------------------------------------------------------------------------

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	metrics.GetOrCreateCounter(`census_stats_requests_total`).Inc()

	windowDays, err := s.engine.ResolveWindow(r.URL.Query().Get("window"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	stats, err := s.aggregator.BuildStats(r.URL.Query().Get("project"), windowDays)
	if err != nil {
		metrics.GetOrCreateCounter(`census_store_errors_total`).Inc()
		logger.Warn("stats aggregation failed", "err", err)
		http.Error(w, "store unavailable", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	if err := json.NewEncoder(w).Encode(stats); err != nil {
		logger.Debug("failed to write stats response", "err", err)
	}
}

// --------------------------------------------------------------------------
// Health & metrics endpoints
// --------------------------------------------------------------------------

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	metrics.WritePrometheus(w, true)
}

// --------------------------------------------------------------------------
// KV storage protocol (consumed by lib/kv/httpstore)
// --------------------------------------------------------------------------

func (s *Server) handleKVGet(w http.ResponseWriter, r *http.Request) {
	value, loaded, err := s.store.Get(r.PathValue("key"))
	if err != nil {
		http.Error(w, "store error", http.StatusInternalServerError)
		return
	}
	if !loaded {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	if _, err := w.Write(value); err != nil {
		logger.Debug("failed to write kv response", "err", err)
	}
}

func (s *Server) handleKVPut(w http.ResponseWriter, r *http.Request) {
	value, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	var opts kv.PutOptions
	if raw := r.Header.Get(httpstore.HeaderTTLSeconds); raw != "" {
		ttl, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			http.Error(w, "invalid ttl header", http.StatusBadRequest)
			return
		}
		opts.TTLSeconds = ttl
	}
	if raw := r.Header.Get(httpstore.HeaderExpireAt); raw != "" {
		expireAt, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			http.Error(w, "invalid expiration header", http.StatusBadRequest)
			return
		}
		opts.ExpireAt = expireAt
	}

	if err := s.store.Put(r.PathValue("key"), value, opts); err != nil {
		http.Error(w, "store error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleKVDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Delete(r.PathValue("key")); err != nil {
		http.Error(w, "store error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleKVList(w http.ResponseWriter, r *http.Request) {
	page, err := s.store.List(r.URL.Query().Get("prefix"), r.URL.Query().Get("cursor"))
	if err != nil {
		http.Error(w, "store error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(page); err != nil {
		logger.Debug("failed to write kv listing", "err", err)
	}
}

// --------------------------------------------------------------------------
// Middleware (logging)
// --------------------------------------------------------------------------

// responseWriter is a custom ResponseWriter that captures the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

// WriteHeader captures the status code before writing it
func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// loggerMiddleware logs every HTTP request at debug level
func loggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(rw, r)

		logger.Debug("request handled",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.statusCode,
			"took", time.Since(start))
	})
}
