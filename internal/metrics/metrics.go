package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	PointsReceivedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fieldroute_points_received_total",
		Help: "Location fixes appended to a tracking buffer",
	})
	PointsDroppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fieldroute_points_dropped_total",
		Help: "Location fixes delivered after the watch was cleared",
	})
	LocationErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fieldroute_location_errors_total",
		Help: "Location watch errors by kind",
	}, []string{"kind"})
	PersistTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fieldroute_persist_total",
		Help: "Session persistence attempts by phase and result",
	}, []string{"phase", "result"})
	PersistDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fieldroute_persist_duration_ms",
		Help:    "Session persistence duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000, 5000},
	}, []string{"phase"})
	ActiveTrackers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "fieldroute_active_trackers",
		Help: "Trackers currently in the tracking state",
	})
	ReportCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fieldroute_report_cache_total",
		Help: "Monthly report cache lookups by result",
	}, []string{"result"})
)

func init() {
	prometheus.MustRegister(PointsReceivedTotal)
	prometheus.MustRegister(PointsDroppedTotal)
	prometheus.MustRegister(LocationErrorsTotal)
	prometheus.MustRegister(PersistTotal)
	prometheus.MustRegister(PersistDurationMs)
	prometheus.MustRegister(ActiveTrackers)
	prometheus.MustRegister(ReportCacheTotal)
}

// Handler exposes the registered collectors for scraping.
func Handler() http.Handler { return promhttp.Handler() }
