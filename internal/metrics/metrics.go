// Package metrics exposes the alert engine's Prometheus metrics and the
// /healthz check.
package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the alert engine.
type Metrics struct {
	// Evaluation loop
	PassesTotal       prometheus.Counter
	PassDuration      prometheus.Histogram
	EvaluationsTotal  prometheus.Counter
	SkippedTotal      *prometheus.CounterVec // labels: reason
	TriggersTotal     *prometheus.CounterVec // labels: target_type
	ActiveAlerts      prometheus.Gauge
	PendingStates     prometheus.Gauge
	StaleStatesPruned prometheus.Counter

	// Ingestion
	UpdatesTotal    *prometheus.CounterVec // labels: kind=tick|candle
	QueueDrops      prometheus.Counter
	FeedReconnects  prometheus.Counter
	FeedParseErrors prometheus.Counter
	ClosedCandles   prometheus.Counter

	// Side effects
	DispatchFailures *prometheus.CounterVec // labels: sink

	// Persistence
	SnapshotsTotal           *prometheus.CounterVec // labels: store, result
	RedisCircuitBreakerState prometheus.Gauge       // 0=closed, 1=open, 2=half-open
	RedisCircuitBreakerTrips prometheus.Counter
	RedisBufferedEvents      prometheus.Counter
}

// New creates the metrics and registers them with reg
// (prometheus.DefaultRegisterer when nil).
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		PassesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "alertengine_passes_total",
			Help: "Evaluation passes run",
		}),
		PassDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "alertengine_pass_duration_seconds",
			Help:    "Wall time of one evaluation pass",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
		}),
		EvaluationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "alertengine_evaluations_total",
			Help: "Alert evaluations performed",
		}),
		SkippedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "alertengine_skipped_evaluations_total",
			Help: "Alert evaluations skipped, by reason",
		}, []string{"reason"}),
		TriggersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "alertengine_triggers_total",
			Help: "Alerts fired, by target type",
		}, []string{"target_type"}),
		ActiveAlerts: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "alertengine_active_alerts",
			Help: "Active alerts seen in the last pass",
		}),
		PendingStates: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "alertengine_pending_states",
			Help: "Alerts with an unfinished confirmation window",
		}),
		StaleStatesPruned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "alertengine_stale_states_pruned_total",
			Help: "Confirmation states dropped for removed or inactive alerts",
		}),
		UpdatesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "alertengine_updates_total",
			Help: "Market data updates drained from the ingest queue",
		}, []string{"kind"}),
		QueueDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "alertengine_queue_drops_total",
			Help: "Updates dropped because the ingest queue was full",
		}),
		FeedReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "alertengine_feed_reconnects_total",
			Help: "Market data feed reconnection attempts",
		}),
		FeedParseErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "alertengine_feed_parse_errors_total",
			Help: "Feed messages that could not be decoded",
		}),
		ClosedCandles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "alertengine_closed_candles_total",
			Help: "Closed candles produced by the candle builder",
		}),
		DispatchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "alertengine_dispatch_failures_total",
			Help: "Failed side-effect deliveries, by sink",
		}, []string{"sink"}),
		SnapshotsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "alertengine_snapshots_total",
			Help: "Indicator snapshot writes, by store and result",
		}, []string{"store", "result"}),
		RedisCircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "alertengine_redis_circuit_breaker_state",
			Help: "Redis circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		RedisCircuitBreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "alertengine_redis_circuit_breaker_trips_total",
			Help: "Times the Redis circuit breaker opened",
		}),
		RedisBufferedEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "alertengine_redis_buffered_events_total",
			Help: "Trigger events buffered while Redis was unavailable",
		}),
	}

	reg.MustRegister(
		m.PassesTotal,
		m.PassDuration,
		m.EvaluationsTotal,
		m.SkippedTotal,
		m.TriggersTotal,
		m.ActiveAlerts,
		m.PendingStates,
		m.StaleStatesPruned,
		m.UpdatesTotal,
		m.QueueDrops,
		m.FeedReconnects,
		m.FeedParseErrors,
		m.ClosedCandles,
		m.DispatchFailures,
		m.SnapshotsTotal,
		m.RedisCircuitBreakerState,
		m.RedisCircuitBreakerTrips,
		m.RedisBufferedEvents,
	)

	return m
}

// Pinger is anything with a connectivity check, e.g. the Redis client.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthStatus represents the system health.
type HealthStatus struct {
	mu sync.RWMutex

	FeedConnected  bool
	LastUpdateTime time.Time
	RedisEnabled   bool
	RedisConnected bool
	SQLiteOK       bool
	RestoredFrom   string

	RedisLatencyMs  float64
	SQLiteLatencyMs float64
	LastCheckAt     time.Time
	StartedAt       time.Time
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{
		StartedAt: time.Now(),
	}
}

func (h *HealthStatus) SetFeedConnected(v bool) {
	h.mu.Lock()
	h.FeedConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastUpdateTime(t time.Time) {
	h.mu.Lock()
	h.LastUpdateTime = t
	h.mu.Unlock()
}

func (h *HealthStatus) SetRedisEnabled(v bool) {
	h.mu.Lock()
	h.RedisEnabled = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetSQLiteOK(v bool) {
	h.mu.Lock()
	h.SQLiteOK = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetRestoredFrom(src string) {
	h.mu.Lock()
	h.RestoredFrom = src
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, p Pinger) {
	start := time.Now()
	err := p.Ping(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite pings the database and records latency + health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks. rdb may be nil.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb Pinger, sqlDB *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if rdb != nil {
					h.CheckRedis(pingCtx, rdb)
				}
				if sqlDB != nil {
					h.CheckSQLite(pingCtx, sqlDB)
				}
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK

	redisOK := !h.RedisEnabled || h.RedisConnected
	if !h.FeedConnected || !redisOK || !h.SQLiteOK {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}
	if !h.SQLiteOK {
		overallStatus = "unhealthy"
	}

	updateAge := ""
	if !h.LastUpdateTime.IsZero() {
		updateAge = time.Since(h.LastUpdateTime).Round(time.Millisecond).String()
	}

	status := struct {
		Status          string  `json:"status"`
		Uptime          string  `json:"uptime"`
		FeedConnected   bool    `json:"feed_connected"`
		LastUpdateTime  string  `json:"last_update_time"`
		UpdateAge       string  `json:"update_age"`
		RedisEnabled    bool    `json:"redis_enabled"`
		RedisConnected  bool    `json:"redis_connected"`
		RedisLatencyMs  float64 `json:"redis_latency_ms"`
		SQLiteOK        bool    `json:"sqlite_ok"`
		SQLiteLatencyMs float64 `json:"sqlite_latency_ms"`
		RestoredFrom    string  `json:"restored_from,omitempty"`
		LastCheckAt     string  `json:"last_check_at"`
	}{
		Status:          overallStatus,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		FeedConnected:   h.FeedConnected,
		LastUpdateTime:  h.LastUpdateTime.Format(time.RFC3339),
		UpdateAge:       updateAge,
		RedisEnabled:    h.RedisEnabled,
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
		RestoredFrom:    h.RestoredFrom,
		LastCheckAt:     h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	health *HealthStatus
	addr   string
	srv    *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		health: health,
		addr:   addr,
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
