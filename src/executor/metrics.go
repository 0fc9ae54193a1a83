package executor

import "github.com/prometheus/client_golang/prometheus"

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Metrics exposes per-run executor counters on the Registerer passed to
// NewMetrics: how many sibling paths forks queued, how paths terminated,
// and how often a bound was hit and turned exploration into a failure
// rather than a hang. The Executor accepts a nil *Metrics and then counts
// nothing.
type Metrics struct {
	Forks        prometheus.Counter
	Terminations *prometheus.CounterVec
	BoundHits    *prometheus.CounterVec
}

// ---------------------
// ----- Functions -----
// ---------------------

// NewMetrics registers a fresh set of counters on reg and returns them. Pass
// prometheus.NewRegistry() for an isolated registry per run (what the CLI
// does) or prometheus.DefaultRegisterer to expose them on a shared
// /metrics endpoint.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Forks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "symex_path_forks_total",
			Help: "Number of sibling paths queued by forks (a fork into k successors adds k-1).",
		}),
		Terminations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "symex_path_terminations_total",
			Help: "Number of paths that terminated, labeled by outcome.",
		}, []string{"outcome"}),
		BoundHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "symex_bound_hits_total",
			Help: "Number of times a configured exploration bound was exceeded, labeled by bound name.",
		}, []string{"bound"}),
	}
	reg.MustRegister(m.Forks, m.Terminations, m.BoundHits)
	return m
}
