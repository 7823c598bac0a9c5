package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/adaptml/driftwatch/internal/api"
	"github.com/adaptml/driftwatch/internal/cache"
	"github.com/adaptml/driftwatch/internal/episode"
	"github.com/adaptml/driftwatch/internal/kswin"
	"github.com/adaptml/driftwatch/internal/metric"
	"github.com/adaptml/driftwatch/internal/metrics"
	"github.com/adaptml/driftwatch/internal/stats"
	"github.com/adaptml/driftwatch/internal/wal"
	dwotel "github.com/adaptml/driftwatch/pkg/otel"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/time/rate"
)

type Server struct {
	mu        sync.Mutex // serializes detector access
	detector  *kswin.Detector
	params    api.DetectorParams
	prevStats kswin.Stats
	episodeSeq int64

	episodes  episode.Store
	cache     *cache.LRUWithTTL[string, *episode.Episode]
	inboxWAL  *wal.InboxWAL
	metrics   *metrics.Metrics
	limiter   *rate.Limiter

	metricsAuth struct {
		enabled  bool
		user     string
		password string
	}
}

func main() {
	// Detector configuration
	params := loadDetectorParams()
	detector, err := buildDetector(params)
	if err != nil {
		log.Fatalf("Invalid detector configuration: %v", err)
	}

	// Setup episode store
	episodeBackend := getEnv("EPISODE_BACKEND", "memory")
	var episodes episode.Store

	switch episodeBackend {
	case "memory":
		snapshotPath := getEnv("EPISODE_SNAPSHOT", "data/episodes.json")
		episodes = episode.NewMemoryStore(snapshotPath)
	case "redis":
		redisAddr := getEnv("REDIS_ADDR", "localhost:6379")
		redisPass := getEnv("REDIS_PASSWORD", "")
		redisDB := getEnvInt("REDIS_DB", 0)
		ttl := time.Duration(getEnvInt("EPISODE_TTL_HOURS", 0)) * time.Hour
		episodes, err = episode.NewRedisStore(redisAddr, redisPass, redisDB, ttl)
		if err != nil {
			log.Fatalf("Failed to create Redis store: %v", err)
		}
	case "postgres":
		connStr := getEnv("POSTGRES_CONN", "")
		episodes, err = episode.NewPostgresStore(connStr)
		if err != nil {
			log.Fatalf("Failed to create Postgres store: %v", err)
		}
	default:
		log.Fatalf("Unknown EPISODE_BACKEND: %s", episodeBackend)
	}

	// Setup WAL
	walDir := getEnv("WAL_DIR", "data/wal")
	inboxWAL, err := wal.NewInboxWAL(walDir)
	if err != nil {
		log.Fatalf("Failed to create inbox WAL: %v", err)
	}

	// Episode report cache
	reportCache, err := cache.NewLRUWithTTL[string, *episode.Episode](
		getEnvInt("CACHE_SIZE", 1024),
		time.Duration(getEnvInt("CACHE_TTL_SECONDS", 300))*time.Second,
	)
	if err != nil {
		log.Fatalf("Failed to create episode cache: %v", err)
	}

	// Setup metrics
	m := metrics.New()

	// Rate limiter
	tokenRate := getEnvInt("TOKEN_RATE", 100)
	limiter := rate.NewLimiter(rate.Limit(tokenRate), tokenRate*2)

	// Optional tracing
	var tp *sdktrace.TracerProvider
	if getEnvBool("OTEL_ENABLED", false) {
		cfg := dwotel.DefaultConfig("driftwatch")
		cfg.CollectorEndpoint = getEnv("OTEL_ENDPOINT", cfg.CollectorEndpoint)
		tp, err = dwotel.InitTracer(context.Background(), cfg)
		if err != nil {
			log.Fatalf("Failed to initialize tracing: %v", err)
		}
	}

	// Create server
	srv := &Server{
		detector: detector,
		params:   params,
		episodes: episodes,
		cache:    reportCache,
		inboxWAL: inboxWAL,
		metrics:  m,
		limiter:  limiter,
	}

	// Metrics auth
	srv.metricsAuth.enabled = getEnv("METRICS_USER", "") != ""
	srv.metricsAuth.user = getEnv("METRICS_USER", "")
	srv.metricsAuth.password = getEnv("METRICS_PASS", "")

	// Rebuild detector state from today's inbox before serving
	if getEnvBool("WAL_REPLAY", true) {
		srv.replayInbox(inboxWAL.Path())
	}

	// Setup HTTP routes
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/observations", srv.handleObservations)
	mux.HandleFunc("/v1/status", srv.handleStatus)
	mux.HandleFunc("/v1/reset", srv.handleReset)
	mux.HandleFunc("/v1/episodes", srv.handleEpisodeList)
	mux.HandleFunc("/v1/episodes/", srv.handleEpisodeGet)
	mux.Handle("/metrics", srv.metricsHandler())
	mux.HandleFunc("/health", handleHealth)

	// HTTP server
	port := getEnv("PORT", "8080")
	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("Starting drift monitor on port %s (strategy=%d)", port, params.Strategy)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-shutdown
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	// Close resources
	if err := inboxWAL.Close(); err != nil {
		log.Printf("Error closing WAL: %v", err)
	}
	if err := episodes.Close(); err != nil {
		log.Printf("Error closing episode store: %v", err)
	}
	if tp != nil {
		if err := dwotel.Shutdown(context.Background(), tp); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}

	log.Println("Server stopped")
}

// replayInbox feeds surviving WAL entries back through the detector so a
// restart resumes mid-stream instead of re-warming from scratch.
func (s *Server) replayInbox(walPath string) {
	entries, err := wal.Replay(walPath)
	if err != nil {
		log.Printf("WAL replay error: %v", err)
		return
	}
	replayed := 0
	for _, e := range entries {
		var batch api.ObservationBatch
		if err := json.Unmarshal(e.Body, &batch); err != nil {
			continue
		}
		if _, err := s.ingest(context.Background(), batch.Values); err != nil {
			continue
		}
		replayed++
	}
	if replayed > 0 {
		log.Printf("Replayed %d batches from %s", replayed, walPath)
	}
}

// ingest runs one batch through the detector under the mutex and persists
// any episode the step produced. Returns the result for the response body.
func (s *Server) ingest(ctx context.Context, values []float64) (*api.UpdateResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inWarmup := s.detector.WarmupRemaining() > 0
	if err := s.detector.Update(values); err != nil {
		return nil, err
	}
	if inWarmup {
		s.metrics.WarmupDropped.Inc()
	}

	cur := s.detector.Stats()
	delta := diffStats(s.prevStats, cur)
	s.prevStats = cur

	s.metrics.BatteriesTotal.Add(float64(delta.Batteries))
	s.metrics.DetectionsTotal.Add(float64(delta.Detections))
	s.metrics.PrecheckRejections.Add(float64(delta.PrecheckRejections))
	s.metrics.ConfirmRejections.Add(float64(delta.ConfirmRejections))

	result := &api.UpdateResult{
		DriftDetected: s.detector.DriftDetected(),
		State:         string(s.detector.State()),
		DriftType:     string(s.detector.Type()),
		WindowLen:     s.detector.WindowLen(),
	}

	// The non-confirming strategies yield an episode per detection; the
	// shifted strategy yields one per completed classification.
	var ep *episode.Episode
	switch kswin.Strategy(s.params.Strategy) {
	case kswin.StrategyShifted:
		if delta.Classifications > 0 {
			ep = s.newEpisode(true)
			s.metrics.ConfirmationsByType.WithLabelValues(string(s.detector.Type())).Inc()
		}
	default:
		if delta.Detections > 0 {
			ep = s.newEpisode(false)
		}
	}
	if ep != nil {
		if err := s.episodes.Put(ctx, ep); err != nil {
			log.Printf("Failed to store episode %s: %v", ep.ID, err)
			// Continue anyway - the detection result still stands
		}
		result.EpisodeID = ep.ID
	}

	return result, nil
}

func (s *Server) newEpisode(confirmed bool) *episode.Episode {
	s.episodeSeq++
	return &episode.Episode{
		ID:         fmt.Sprintf("ep-%d-%d", time.Now().Unix(), s.episodeSeq),
		DetectedAt: time.Now().UTC(),
		Type:       string(s.detector.Type()),
		Strategy:   s.params.Strategy,
		Confirmed:  confirmed,
		Values:     s.detector.DriftValues(),
	}
}

func diffStats(prev, cur kswin.Stats) kswin.Stats {
	return kswin.Stats{
		Batteries:          cur.Batteries - prev.Batteries,
		Detections:         cur.Detections - prev.Detections,
		PrecheckRejections: cur.PrecheckRejections - prev.PrecheckRejections,
		ConfirmRejections:  cur.ConfirmRejections - prev.ConfirmRejections,
		Classifications:    cur.Classifications - prev.Classifications,
	}
}

func (s *Server) handleObservations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Rate limiting
	if !s.limiter.Allow() {
		w.Header().Set("Retry-After", "10")
		http.Error(w, "Too many requests", http.StatusTooManyRequests)
		return
	}

	ctx, span := dwotel.StartSpan(r.Context(), "driftwatch", "ingest")
	defer span.End()

	s.metrics.BatchesTotal.Inc()

	// Read body
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20)) // 1MB limit
	if err != nil {
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}

	// Append to WAL BEFORE parsing (fault tolerance)
	if err := s.inboxWAL.Append(body); err != nil {
		log.Printf("WAL append error: %v", err)
		s.metrics.WALErrors.Inc()
		dwotel.RecordError(span, err, "wal append")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	var batch api.ObservationBatch
	if err := json.Unmarshal(body, &batch); err != nil {
		s.metrics.BatchesRejected.Inc()
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if len(batch.Values) == 0 {
		s.metrics.BatchesRejected.Inc()
		http.Error(w, "Empty batch", http.StatusBadRequest)
		return
	}

	result, err := s.ingest(ctx, batch.Values)
	if err != nil {
		dwotel.RecordError(span, err, "ingest")
		switch {
		case errors.Is(err, kswin.ErrBatchTooLarge):
			s.metrics.BatchesRejected.Inc()
			http.Error(w, "Batch exceeds window capacity", http.StatusBadRequest)
		case errors.Is(err, kswin.ErrMissingMetric):
			http.Error(w, "Classification requires a configured metric", http.StatusConflict)
		default:
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	s.metrics.ObservationsTotal.Add(float64(len(batch.Values)))
	s.metrics.BatchSize.Observe(float64(len(batch.Values)))
	span.SetAttributes(dwotel.IngestAttributes(len(batch.Values), result.WindowLen)...)
	span.SetAttributes(dwotel.DetectorAttributes(s.params.Strategy, result.State, result.DriftType)...)

	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.mu.Lock()
	st := s.detector.Stats()
	status := api.DetectorStatus{
		DriftDetected: s.detector.DriftDetected(),
		State:         string(s.detector.State()),
		DriftType:     string(s.detector.Type()),
		WindowLen:     s.detector.WindowLen(),
		Stats: api.DetectorCounts{
			Batteries:          st.Batteries,
			Detections:         st.Detections,
			PrecheckRejections: st.PrecheckRejections,
			ConfirmRejections:  st.ConfirmRejections,
			Classifications:    st.Classifications,
		},
	}
	s.mu.Unlock()

	respondJSON(w, http.StatusOK, status)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.mu.Lock()
	s.detector.Reset()
	s.prevStats = kswin.Stats{}
	s.mu.Unlock()

	log.Println("Detector reset")
	respondJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (s *Server) handleEpisodeList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	eps, err := s.episodes.List(r.Context(), limit)
	if err != nil {
		log.Printf("Episode list error: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if eps == nil {
		eps = []*episode.Episode{}
	}
	respondJSON(w, http.StatusOK, eps)
}

func (s *Server) handleEpisodeGet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/episodes/")
	if id == "" {
		http.Error(w, "Missing episode ID", http.StatusBadRequest)
		return
	}

	if ep, ok := s.cache.Get(id); ok {
		respondJSON(w, http.StatusOK, ep)
		return
	}

	ep, err := s.episodes.Get(r.Context(), id)
	if err != nil {
		log.Printf("Episode get error: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if ep == nil {
		http.Error(w, "Episode not found", http.StatusNotFound)
		return
	}

	s.cache.Set(id, ep)
	respondJSON(w, http.StatusOK, ep)
}

func (s *Server) metricsHandler() http.Handler {
	handler := promhttp.Handler()

	if !s.metricsAuth.enabled {
		return handler
	}

	// Wrap with Basic Auth
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != s.metricsAuth.user || pass != s.metricsAuth.password {
			w.Header().Set("WWW-Authenticate", `Basic realm="Metrics"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func loadDetectorParams() api.DetectorParams {
	p := api.DefaultDetectorParams()
	p.Alpha = getEnvFloat("DETECTOR_ALPHA", p.Alpha)
	p.WindowSize = getEnvInt("DETECTOR_WINDOW_SIZE", p.WindowSize)
	p.StatSize = getEnvInt("DETECTOR_STAT_SIZE", p.StatSize)
	p.Seed = int64(getEnvInt("DETECTOR_SEED", int(p.Seed)))
	p.WindowStart = getEnvInt("DETECTOR_WINDOW_START", p.WindowStart)
	p.Alternative = getEnv("DETECTOR_ALTERNATIVE", p.Alternative)
	p.Strategy = getEnvInt("DETECTOR_STRATEGY", p.Strategy)
	p.Continuous = getEnvBool("DETECTOR_CONTINUOUS", p.Continuous)
	return p
}

// buildDetector maps wire-level parameters onto an engine configuration.
// The shifted strategy needs a metric collaborator for classification; an
// accuracy tracker is wired by default, windowed via METRIC_WINDOW.
func buildDetector(p api.DetectorParams) (*kswin.Detector, error) {
	cfg := kswin.Config{
		Alpha:       p.Alpha,
		WindowSize:  p.WindowSize,
		StatSize:    p.StatSize,
		Seed:        p.Seed,
		WindowStart: p.WindowStart,
		Alternative: stats.Alternative(p.Alternative),
		Strategy:    kswin.Strategy(p.Strategy),
		Continuous:  p.Continuous,
	}
	if cfg.Strategy == kswin.StrategyShifted {
		opts := []metric.AccuracyOption{}
		if mw := getEnvInt("METRIC_WINDOW", 0); mw > 0 {
			opts = append(opts, metric.WithWindow(mw))
		}
		cfg.Metric = metric.NewAccuracy(opts...)
	}
	return kswin.New(cfg)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
