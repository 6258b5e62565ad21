package review

import "github.com/prometheus/client_golang/prometheus"

const (
	outcomeApproved  = "approved"
	outcomeRejected  = "rejected"
	outcomeForbidden = "forbidden"
	outcomeNotFound  = "not_found"
	outcomeConflict  = "conflict"
	outcomeInvalid   = "invalid"
	outcomeError     = "error"
)

var reviewTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "taskora_review_total",
		Help: "Review attempts by decision and outcome",
	},
	[]string{"decision", "outcome"},
)

func init() {
	prometheus.MustRegister(reviewTotal)
}
