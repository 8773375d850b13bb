package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeNetwork  = "network"
	OutcomeTimeout  = "timeout"
	OutcomeStale    = "stale"
	OutcomeConflict = "conflict"
	OutcomeError    = "error"
)

var (
	Submissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chess_client_submissions_total",
			Help: "User moves submitted to the authority, by outcome",
		},
		[]string{"outcome"},
	)
	Resyncs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chess_client_resyncs_total",
			Help: "State fetches from the authority, by outcome",
		},
		[]string{"outcome"},
	)
	AutomatedRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chess_client_automated_requests_total",
			Help: "Automated-move requests issued by the turn driver, by outcome",
		},
		[]string{"outcome"},
	)
	AuthorityMoves = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chess_authority_moves_total",
			Help: "Moves processed by the reference authority",
		},
		[]string{"kind", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(Submissions)
	prometheus.MustRegister(Resyncs)
	prometheus.MustRegister(AutomatedRequests)
	prometheus.MustRegister(AuthorityMoves)
}

// Handler exposes the default registry.
func Handler() http.Handler { return promhttp.Handler() }
