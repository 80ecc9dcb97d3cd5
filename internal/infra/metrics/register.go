package metrics

import (
	"net/http"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once   sync.Once
	queued []prometheus.Collector

	// Registry holds the service's collectors plus the Go runtime and process
	// collectors. It is what /metrics serves.
	Registry = prometheus.NewRegistry()
)

// register is called from init() in each metrics file.
func register(cs ...prometheus.Collector) {
	queued = append(queued, cs...)
}

// MustRegister adds every queued collector to Registry. Safe to call twice.
func MustRegister() {
	once.Do(func() {
		Registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		Registry.MustRegister(queued...)
	})
}

// Handler serves Registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
