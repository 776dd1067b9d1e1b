package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the bot's counters on a private registry so tests can
// construct independent instances.
type Metrics struct {
	registry *prometheus.Registry

	FetchRequests    *prometheus.CounterVec
	CooldownBlocks   *prometheus.CounterVec
	PostsDelivered   prometheus.Counter
	DeliveryFailures prometheus.Counter
	AIAnalyses       prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.FetchRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "moorelink",
		Name:      "fetch_requests_total",
		Help:      "Fetch attempts by platform.",
	}, []string{"platform"})

	m.CooldownBlocks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "moorelink",
		Name:      "cooldown_blocks_total",
		Help:      "Requests rejected by the rate limiter, by window.",
	}, []string{"reason"})

	m.PostsDelivered = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "moorelink",
		Name:      "posts_delivered_total",
		Help:      "Posts successfully delivered to chats.",
	})

	m.DeliveryFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "moorelink",
		Name:      "delivery_failures_total",
		Help:      "Posts that could not be delivered after all fallbacks.",
	})

	m.AIAnalyses = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "moorelink",
		Name:      "ai_analyses_total",
		Help:      "Completed AI analysis runs.",
	})

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		m.FetchRequests,
		m.CooldownBlocks,
		m.PostsDelivered,
		m.DeliveryFailures,
		m.AIAnalyses,
	)
	return m
}

// Handler exposes the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
