package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SurfaceInitTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mediamap_surface_init_total",
		Help: "Surface creations by result",
	}, []string{"result"})
	ReconcileTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mediamap_reconcile_total",
		Help: "Dataset reconciles by action (update or create)",
	}, []string{"action"})
	SelectionSyncTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mediamap_selection_sync_total",
		Help: "Selection synchronisations by resulting state",
	}, []string{"state"})
	SelectionUnresolvedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mediamap_selection_unresolved_total",
		Help: "Tokens that named an id absent from the dataset",
	})
	InteractionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mediamap_interactions_total",
		Help: "Routed pointer and keyboard interactions by kind",
	}, []string{"kind"})
	SnapshotTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mediamap_snapshot_total",
		Help: "Snapshot exports by result",
	}, []string{"result"})
	DatasetPoints = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "mediamap_dataset_points",
		Help: "Points in the current dataset snapshot",
	})
)

func init() {
	prometheus.MustRegister(SurfaceInitTotal)
	prometheus.MustRegister(ReconcileTotal)
	prometheus.MustRegister(SelectionSyncTotal)
	prometheus.MustRegister(SelectionUnresolvedTotal)
	prometheus.MustRegister(InteractionsTotal)
	prometheus.MustRegister(SnapshotTotal)
	prometheus.MustRegister(DatasetPoints)
}

// Handler exposes the registered metrics for scraping
func Handler() http.Handler { return promhttp.Handler() }
