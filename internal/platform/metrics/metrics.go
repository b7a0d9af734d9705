// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Write outcomes recorded by LedgerWrites.
const (
	OutcomeCreated   = "created"
	OutcomeDuplicate = "duplicate"
	OutcomeNotFound  = "not_found"
	OutcomeInvalid   = "invalid"
	OutcomeError     = "error"
)

// LedgerWrites counts write attempts per entity (reply, report, like) and outcome.
var LedgerWrites = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "discussion",
	Name:      "ledger_writes_total",
	Help:      "Ledger write attempts by entity and outcome.",
}, []string{"entity", "outcome"})

// PermissionChecks counts search-permission resolutions by result and source.
var PermissionChecks = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "discussion",
	Name:      "permission_checks_total",
	Help:      "Search permission resolutions by result (granted|denied) and source (cache|counters|ownership|none).",
}, []string{"result", "source"})

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
