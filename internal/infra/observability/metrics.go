package observability

import (
	"time"

	"github.com/boddenberg/nexo-bfa-go/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the BFA.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	stageDuration  *prometheus.HistogramVec
	outcomes       *prometheus.CounterVec
	externalErrors *prometheus.CounterVec
	cacheHits      *prometheus.CounterVec
	cacheMisses    *prometheus.CounterVec
	tokensUsed     *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &Metrics{
		Registry: reg,

		stageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nexo_pipeline_stage_duration_seconds",
				Help:    "Duration of each ingestion stage.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
		outcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nexo_messages_total",
				Help: "Inbound messages by channel and terminal outcome.",
			},
			[]string{"channel", "outcome"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nexo_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nexo_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nexo_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		tokensUsed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nexo_llm_tokens_total",
				Help: "Total extraction tokens consumed.",
			},
			[]string{"type"},
		),
	}

	// Pre-register every outcome series so the snapshot is complete from boot.
	for _, ch := range []domain.Channel{domain.ChannelChat, domain.ChannelTwilio, domain.ChannelCloud} {
		for _, o := range domain.Outcomes {
			m.outcomes.WithLabelValues(string(ch), string(o))
		}
	}
	return m
}

// RecordStageDuration records the duration of one pipeline stage.
func (m *Metrics) RecordStageDuration(stage string, d time.Duration) {
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// IncrOutcome counts a message that reached a terminal outcome.
func (m *Metrics) IncrOutcome(ch domain.Channel, o domain.Outcome) {
	m.outcomes.WithLabelValues(string(ch), string(o)).Inc()
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// RecordTokens records prompt and completion token usage.
func (m *Metrics) RecordTokens(prompt, completion int) {
	m.tokensUsed.WithLabelValues("prompt").Add(float64(prompt))
	m.tokensUsed.WithLabelValues("completion").Add(float64(completion))
}

// PipelineSnapshot returns the ingestion counters for GET /v1/metrics/pipeline.
func (m *Metrics) PipelineSnapshot() *domain.PipelineMetrics {
	outcomes := make(map[string]int64, len(domain.Outcomes))
	var total float64
	for _, ch := range []domain.Channel{domain.ChannelChat, domain.ChannelTwilio, domain.ChannelCloud} {
		for _, o := range domain.Outcomes {
			v := getCounterValue(m.outcomes, string(ch), string(o))
			outcomes[string(o)] += int64(v)
			total += v
		}
	}

	commitRate := float64(0)
	failureRate := float64(0)
	if total > 0 {
		commitRate = float64(outcomes[string(domain.OutcomeCommitted)]) / total
		failureRate = float64(outcomes[string(domain.OutcomeExtractionFailed)]) / total
	}

	hits := getCounterValue(m.cacheHits, "summary")
	misses := getCounterValue(m.cacheMisses, "summary")
	hitRate := float64(0)
	if hits+misses > 0 {
		hitRate = hits / (hits + misses)
	}

	return &domain.PipelineMetrics{
		TotalMessages:         int64(total),
		Outcomes:              outcomes,
		CommitRate:            commitRate,
		ExtractionFailureRate: failureRate,
		PromptTokens:          int64(getCounterValue(m.tokensUsed, "prompt")),
		CompletionTokens:      int64(getCounterValue(m.tokensUsed, "completion")),
		SummaryCacheHitRate:   hitRate,
		Period:                "all_time",
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for the given labels.
func getCounterValue(cv *prometheus.CounterVec, labels ...string) float64 {
	counter := cv.WithLabelValues(labels...)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
