//Package metrics holds the prometheus collectors for the provider extension
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	//SchemaActionsTotal counts the outcome of every raw contacts upgrade check
	SchemaActionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "contacts_rcs_schema_actions_total",
		Help: "Raw contacts upgrade checks by the action they took",
	}, []string{"action"})

	//PhotoSyncTotal counts SIM photo sync events by outcome
	PhotoSyncTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "contacts_sim_photo_sync_total",
		Help: "SIM photo change events by outcome",
	}, []string{"outcome"})

	//PhotoRowsUpdatedTotal counts data rows rewritten by the SIM photo sync
	PhotoRowsUpdatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "contacts_sim_photo_rows_updated_total",
		Help: "Photo data rows rewritten by SIM photo sync",
	})

	//ListenerClients is the number of connected event sources
	ListenerClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "contacts_listener_clients",
		Help: "Connected event listener clients",
	})
)

//Handler serves the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}
