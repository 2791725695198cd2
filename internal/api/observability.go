package api

import (
	"context"
	"encoding/json"
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"time"

	"volley-club/internal/game"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics with bounded cardinality (no per-agent labels)
var (
	// Engine metrics
	tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "volley_tick_duration_seconds",
		Help:    "Time spent in one simulation tick",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025},
	})

	agentCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "volley_agent_count",
		Help: "Agents in the roster",
	})

	// Match events
	eventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "volley_events_total",
		Help: "Match events by type",
	}, []string{"type"})

	arbitrationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "volley_arbitrations_total",
		Help: "Catch arbitration results",
	}, []string{"outcome"}) // Bounded: ArbitrationOutcome names

	touchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "volley_touches_total",
		Help: "Possession decisions by outcome",
	}, []string{"outcome"}) // Bounded: accepted, rejected_same_agent, fault

	pointsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "volley_points_total",
		Help: "Points awarded",
	}, []string{"team", "reason"})

	anomaliesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "volley_anomalies_total",
		Help: "Recoverable anomalies and lifecycle faults",
	}, []string{"kind"})

	// Event log metrics
	eventLogTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "volley_event_log_total",
		Help: "Events accepted by the rally event log",
	})

	eventLogDropped = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "volley_event_log_dropped",
		Help: "Events dropped by the rally event log rate limits",
	})

	// DoS detection metrics - use ONLY bounded label values
	connectionRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "connection_rejected_total",
		Help: "Connections rejected by rate limiter or origin check",
	}, []string{"reason"}) // Bounded: "rate_limit", "origin", "ws_total_limit", "ws_ip_limit"

	// HTTP metrics with bounded labels
	requestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint"}) // endpoint is the route pattern, not the full URL

	requestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "endpoint", "status"})

	// WebSocket metrics
	wsConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "websocket_connections_active",
		Help: "Currently active WebSocket connections",
	})

	wsMessagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "websocket_messages_total",
		Help: "Total WebSocket messages sent",
	})
)

// ObservabilityConfig configures the debug server
type ObservabilityConfig struct {
	Enabled       bool
	ListenAddr    string // keep on localhost in production
	BasicAuthUser string // Optional basic auth
	BasicAuthPass string
}

// DefaultObservabilityConfig returns safe defaults
func DefaultObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		Enabled:    true,
		ListenAddr: "127.0.0.1:6060",
	}
}

// ObservabilityFromEnv fills the optional basic auth from the environment
func ObservabilityFromEnv(addr string) ObservabilityConfig {
	cfg := DefaultObservabilityConfig()
	if addr != "" {
		cfg.ListenAddr = addr
	}
	cfg.BasicAuthUser = os.Getenv("DEBUG_USER")
	cfg.BasicAuthPass = os.Getenv("DEBUG_PASS")
	return cfg
}

// isLoopback reports whether addr binds to a loopback host
func isLoopback(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// DebugHandler serves pprof, Prometheus metrics and a health check
func DebugHandler(cfg ObservabilityConfig) http.Handler {
	mux := http.NewServeMux()

	// pprof endpoints for profiling
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	if cfg.BasicAuthUser != "" {
		return basicAuthMiddleware(cfg.BasicAuthUser, cfg.BasicAuthPass, mux)
	}
	return mux
}

// StartDebugServer starts the internal observability server and returns it
// so the caller can shut it down. pprof must not be reachable from outside.
func StartDebugServer(cfg ObservabilityConfig) *http.Server {
	if !cfg.Enabled {
		log.Println("📊 Debug server disabled")
		return nil
	}

	if !isLoopback(cfg.ListenAddr) && os.Getenv("ALLOW_DEBUG_EXTERNAL") != "true" {
		log.Printf("⚠️ Debug server forced to localhost (requested %s)", cfg.ListenAddr)
		cfg.ListenAddr = "127.0.0.1:6060"
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           DebugHandler(cfg),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("📊 Debug server starting on %s", cfg.ListenAddr)
		log.Printf("   - pprof:   http://%s/debug/pprof/", cfg.ListenAddr)
		log.Printf("   - metrics: http://%s/metrics", cfg.ListenAddr)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("⚠️ Debug server error: %v", err)
		}
	}()

	return srv
}

// StopDebugServer shuts the debug server down
func StopDebugServer(ctx context.Context, srv *http.Server) {
	if srv == nil {
		return
	}
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("⚠️ Debug server shutdown: %v", err)
	}
}

// basicAuthMiddleware adds basic authentication to the handler
func basicAuthMiddleware(user, pass string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || u != user || p != pass {
			w.Header().Set("WWW-Authenticate", `Basic realm="debug"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RecordTick records tick timing for metrics
func RecordTick(duration time.Duration) {
	tickDuration.Observe(duration.Seconds())
}

// UpdateAgentCount updates the roster gauge
func UpdateAgentCount(count int) {
	agentCount.Set(float64(count))
}

// RecordEvent counts a match event and the outcome it carries
func RecordEvent(ev game.Event) {
	eventsTotal.WithLabelValues(ev.Type.String()).Inc()

	switch ev.Type {
	case game.EventTypeAssign:
		arbitrationsTotal.WithLabelValues(game.OutcomeAssigned.String()).Inc()
	case game.EventTypeConcede:
		var p game.ConcedePayload
		if json.Unmarshal(ev.Payload, &p) == nil {
			arbitrationsTotal.WithLabelValues(p.Reason).Inc()
		}
	case game.EventTypeTouch:
		var p game.TouchPayload
		if json.Unmarshal(ev.Payload, &p) == nil {
			touchesTotal.WithLabelValues(p.Outcome).Inc()
		}
	case game.EventTypePoint:
		var p game.PointPayload
		if json.Unmarshal(ev.Payload, &p) == nil {
			pointsTotal.WithLabelValues(p.Winner.String(), p.Reason).Inc()
		}
	case game.EventTypeAnomaly:
		var p game.AnomalyPayload
		if json.Unmarshal(ev.Payload, &p) == nil {
			anomaliesTotal.WithLabelValues(p.Kind).Inc()
		}
	}
}

// UpdateEventLogStats mirrors the event log counters
func UpdateEventLogStats(total, dropped uint64) {
	eventLogTotal.Set(float64(total))
	eventLogDropped.Set(float64(dropped))
}

// RecordConnectionRejected increments the rejection counter
// reason must be one of: "rate_limit", "origin", "ws_total_limit", "ws_ip_limit"
func RecordConnectionRejected(reason string) {
	connectionRejected.WithLabelValues(reason).Inc()
}

// RecordRequest records HTTP request metrics
func RecordRequest(method, endpoint string, status int, duration time.Duration) {
	requestLatency.WithLabelValues(method, endpoint).Observe(duration.Seconds())
	requestTotal.WithLabelValues(method, endpoint, http.StatusText(status)).Inc()
}

// UpdateWSConnections updates WebSocket connection count
func UpdateWSConnections(count int) {
	wsConnectionsActive.Set(float64(count))
}

// IncrementWSMessages increments WebSocket message counter
func IncrementWSMessages() {
	wsMessagesTotal.Inc()
}
