package server

import (
	"net/http"
	"net/http/pprof"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsRegistrar serves the agent's prometheus registry on /metrics.
type MetricsRegistrar struct {
	Gatherer prometheus.Gatherer
}

func (m *MetricsRegistrar) RegisterRoutes(router Router) {
	gatherer := m.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	router.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	}))
}

// DebugRegistrar exposes net/http/pprof under /debug/pprof. Only enabled by
// metrics.pprof since profiles can reveal memory contents.
type DebugRegistrar struct{}

var namedProfiles = []string{"heap", "goroutine", "threadcreate", "block", "mutex", "allocs"}

func (dr *DebugRegistrar) RegisterRoutes(router Router) {
	debug := router.Group("/debug/pprof")

	debug.HandleFunc("GET /", pprof.Index)
	for path, h := range map[string]http.HandlerFunc{
		"/cmdline": pprof.Cmdline,
		"/profile": pprof.Profile,
		"/trace":   pprof.Trace,
		"/symbol":  pprof.Symbol,
	} {
		debug.Handle("GET "+path, h)
	}
	for _, name := range namedProfiles {
		debug.Handle("GET /"+name, pprof.Handler(name))
	}
}
