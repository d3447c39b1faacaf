// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	MessagesReceived   prometheus.Counter
	MessagesProcessed  prometheus.Counter
	DedupDropped       prometheus.Counter
	RateLimitDenied    prometheus.Counter
	CacheHits          prometheus.Counter
	CacheMisses        prometheus.Counter
	GenerationFailures prometheus.Counter
	ModerationBlocked  prometheus.Counter
	ModerationBans     prometheus.Counter
	ChunksSent         prometheus.Counter
	AnalyticsDropped   prometheus.Counter

	// Histograms (seconds)
	GenerationDuration prometheus.Observer
	PipelineDuration   prometheus.Observer

	// Gauges
	ActiveUserChains prometheus.Gauge
	ResponseCacheLen prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		MessagesReceived = promauto.NewCounter(prometheus.CounterOpts{Name: "bot_messages_received_total", Help: "Inbound chat messages received"})
		MessagesProcessed = promauto.NewCounter(prometheus.CounterOpts{Name: "bot_messages_processed_total", Help: "Messages that completed the pipeline"})
		DedupDropped = promauto.NewCounter(prometheus.CounterOpts{Name: "bot_dedup_dropped_total", Help: "Messages dropped as duplicate deliveries"})
		RateLimitDenied = promauto.NewCounter(prometheus.CounterOpts{Name: "bot_ratelimit_denied_total", Help: "Messages denied by the per-user rate limiter"})
		CacheHits = promauto.NewCounter(prometheus.CounterOpts{Name: "bot_response_cache_hits_total", Help: "Question answered from the response cache"})
		CacheMisses = promauto.NewCounter(prometheus.CounterOpts{Name: "bot_response_cache_misses_total", Help: "Question required a generation call"})
		GenerationFailures = promauto.NewCounter(prometheus.CounterOpts{Name: "bot_generation_failures_total", Help: "Generation calls that exhausted retries"})
		ModerationBlocked = promauto.NewCounter(prometheus.CounterOpts{Name: "bot_moderation_blocked_total", Help: "Questions blocked by the moderation pre-check"})
		ModerationBans = promauto.NewCounter(prometheus.CounterOpts{Name: "bot_moderation_bans_total", Help: "Permanent bans issued by escalation"})
		ChunksSent = promauto.NewCounter(prometheus.CounterOpts{Name: "bot_chunks_sent_total", Help: "Outbound chat messages sent (after chunking)"})
		AnalyticsDropped = promauto.NewCounter(prometheus.CounterOpts{Name: "bot_analytics_dropped_total", Help: "Analytics events dropped because the sink was saturated"})
		GenerationDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "bot_generation_duration_seconds", Help: "Generation backend call duration seconds", Buckets: prometheus.DefBuckets})
		PipelineDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "bot_pipeline_duration_seconds", Help: "Total pipeline duration per message seconds", Buckets: prometheus.DefBuckets})
		ActiveUserChains = promauto.NewGauge(prometheus.GaugeOpts{Name: "bot_active_user_chains", Help: "Users with a live serialized task chain"})
		ResponseCacheLen = promauto.NewGauge(prometheus.GaugeOpts{Name: "bot_response_cache_entries", Help: "Entries currently in the response cache"})
	})
}

// Inc increments c if metrics are initialized. Components call this so tests
// that never call Init don't have to care about metric registration.
func Inc(c prometheus.Counter) {
	if c != nil {
		c.Inc()
	}
}

// Observe records d into obs if metrics are initialized.
func Observe(obs prometheus.Observer, d time.Duration) {
	if obs != nil {
		obs.Observe(d.Seconds())
	}
}

// SetGauge sets g if metrics are initialized.
func SetGauge(g prometheus.Gauge, v float64) {
	if g != nil {
		g.Set(v)
	}
}

// Correlation ID helpers ----------------------------------------------------

type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding the correlation id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns the correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	if s, ok := ctx.Value(corrKey).(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger carrying the corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
