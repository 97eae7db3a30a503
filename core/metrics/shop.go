package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		catalogMutationsTotal,
		adminDeniedTotal,
		catalogSize,
	)
}

var (
	catalogMutationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopbot_catalog_mutations_total",
			Help: "Catalog mutations by operation and status.",
		},
		[]string{"op", "status"},
	)

	adminDeniedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopbot_admin_denied_total",
			Help: "Admin actions rejected for non-admin senders.",
		},
		[]string{"action"},
	)

	catalogSize = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "shopbot_catalog_entities",
			Help: "Number of catalog entities by kind.",
		},
		[]string{"kind"},
	)
)

// IncCatalogMutation counts a catalog mutation attempt; status is ok or the error kind.
func IncCatalogMutation(op, status string) {
	catalogMutationsTotal.WithLabelValues(norm(op), norm(status)).Inc()
}

// IncAdminDenied counts a rejected admin action.
func IncAdminDenied(action string) {
	adminDeniedTotal.WithLabelValues(norm(action)).Inc()
}

// SetCatalogSize publishes the current catalog dimensions.
func SetCatalogSize(categories, products int) {
	catalogSize.WithLabelValues("categories").Set(float64(categories))
	catalogSize.WithLabelValues("products").Set(float64(products))
}
