package observability

import (
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "eatpoint", Name: "http_requests_total", Help: "HTTP requests."},
		[]string{"route", "method", "status"},
	)
	HTTPLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "eatpoint", Name: "http_request_duration_seconds",
			Help:    "HTTP request duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
	Transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "eatpoint", Name: "transitions_total", Help: "Lifecycle transition attempts."},
		[]string{"action", "outcome"}, // outcome: ok|error
	)
	Searches = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "eatpoint", Name: "searches_total", Help: "Discovery searches."},
		[]string{"mode", "outcome"}, // mode: radius|bounds
	)
	AuditEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "eatpoint", Name: "audit_events_total", Help: "Audit events by fate."},
		[]string{"outcome"}, // outcome: recorded|dropped|error
	)
	CacheEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "eatpoint", Name: "cache_events_total", Help: "Cache hits/misses/sets/dels."},
		[]string{"cache", "event"}, // event: hit|miss|set|del
	)
)

func Serve() {
	addr := os.Getenv("METRICS_ADDR")
	if addr == "" {
		return // disabled
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	go func() {
		srv := &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		log.Info().Str("addr", addr).Msg("metrics server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
}

func InitRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(HTTPRequests, HTTPLatency, Transitions, Searches, AuditEvents, CacheEvents)
	return reg
}

func MetricsHandler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

func ObserveHTTP(route, method string, status int, dur time.Duration) {
	HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	HTTPLatency.WithLabelValues(route, method).Observe(dur.Seconds())
}

func ObserveTransition(action string, err error) {
	Transitions.WithLabelValues(action, LabelOutcome(err)).Inc()
}

func ObserveSearch(mode string, err error) {
	Searches.WithLabelValues(mode, LabelOutcome(err)).Inc()
}

func ObserveAudit(outcome string) { // outcome: recorded|dropped|error
	AuditEvents.WithLabelValues(outcome).Inc()
}

func ObserveCache(cache, event string) { // event: hit|miss|set|del
	CacheEvents.WithLabelValues(cache, event).Inc()
}

func LabelOutcome(err error) string {
	if err == nil {
		return "ok"
	}
	return "error"
}
