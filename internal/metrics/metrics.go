// Package metrics holds the Prometheus collectors the widget updates.
package metrics

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Request kinds used as the "kind" label.
const (
	KindAutocomplete = "autocomplete"
	KindPreview      = "preview"
	KindPage         = "page"
)

var (
	FetchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "facetview",
			Name:      "fetch_requests_total",
			Help:      "Total number of outbound widget requests",
		},
		[]string{"kind", "status"},
	)

	FetchRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "facetview",
			Name:      "fetch_request_duration_seconds",
			Help:      "Outbound widget request duration in seconds",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"kind"},
	)

	StaleResponsesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "facetview",
			Name:      "stale_responses_total",
			Help:      "Responses dropped because a newer request superseded them",
		},
		[]string{"kind"},
	)

	DebounceSupersededTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "facetview",
			Name:      "debounce_superseded_total",
			Help:      "Debounce timers replaced or cancelled before firing",
		},
		[]string{"source"},
	)

	PreviewTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "facetview",
			Name:      "preview_transitions_total",
			Help:      "Facet preview state transitions by target state",
		},
		[]string{"to"},
	)
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		FetchRequestsTotal,
		FetchRequestDuration,
		StaleResponsesTotal,
		DebounceSupersededTotal,
		PreviewTransitionsTotal,
	}
}

// Register adds every collector to reg. Collectors already present are
// left alone so hosts may call it more than once.
func Register(reg prometheus.Registerer) error {
	for _, c := range collectors() {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	return nil
}

// Handler serves the registry on /metrics.
func Handler(g prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r
}
