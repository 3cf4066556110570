package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the viewer's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	loads       *prometheus.CounterVec
	renders     *prometheus.CounterVec
	searches    prometheus.Counter
	matches     prometheus.Histogram
	blockErrors *prometheus.CounterVec
	copies      *prometheus.CounterVec
	cache       *prometheus.CounterVec
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		loads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docview",
			Name:      "document_loads_total",
			Help:      "Document fetches by result.",
		}, []string{"result"}),
		renders: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docview",
			Name:      "renders_total",
			Help:      "Content renders by kind (full, filtered, fallback).",
		}, []string{"kind"}),
		searches: f.NewCounter(prometheus.CounterOpts{
			Namespace: "docview",
			Name:      "searches_total",
			Help:      "Executed (non-debounced) searches.",
		}),
		matches: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "docview",
			Name:      "search_matches",
			Help:      "Highlighted matches per search.",
			Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100, 250},
		}),
		blockErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docview",
			Name:      "block_errors_total",
			Help:      "Isolated per-block failures by stage.",
		}, []string{"stage"}),
		copies: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docview",
			Name:      "copies_total",
			Help:      "Copy-to-clipboard clicks by result.",
		}, []string{"result"}),
		cache: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docview",
			Name:      "cache_requests_total",
			Help:      "Background cache lookups by policy and outcome.",
		}, []string{"policy", "outcome"}),
	}
}

func (m *Metrics) Load(result string) {
	if m == nil {
		return
	}
	m.loads.WithLabelValues(result).Inc()
}

func (m *Metrics) Render(kind string) {
	if m == nil {
		return
	}
	m.renders.WithLabelValues(kind).Inc()
}

func (m *Metrics) Search(matches int) {
	if m == nil {
		return
	}
	m.searches.Inc()
	m.matches.Observe(float64(matches))
}

func (m *Metrics) BlockErrors(stage string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.blockErrors.WithLabelValues(stage).Add(float64(n))
}

func (m *Metrics) Copy(result string) {
	if m == nil {
		return
	}
	m.copies.WithLabelValues(result).Inc()
}

func (m *Metrics) Cache(policy, outcome string) {
	if m == nil {
		return
	}
	m.cache.WithLabelValues(policy, outcome).Inc()
}
