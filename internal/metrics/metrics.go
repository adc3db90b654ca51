package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

const (
	MetricsEndpoint = "0.0.0.0:9090"
)

var (
	IngestCounter        *prometheus.CounterVec
	IngestRunTimeSummary *prometheus.SummaryVec

	StatusUpdateCounter *prometheus.CounterVec
	ManualUpdateCounter *prometheus.CounterVec

	HTTPRequestCounter *prometheus.CounterVec

	StoreQueryErrorCount *prometheus.CounterVec

	EventsPublishedCounter *prometheus.CounterVec
)

func init() {
	IngestCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inventory_snapshots_ingested",
			Help: "A counter metric to measure the total count of snapshots received, by result",
		},
		[]string{"result"}, // created, updated, invalid, failed
	)

	IngestRunTimeSummary = promauto.NewSummaryVec(
		prometheus.SummaryOpts{
			Name: "inventory_ingest_duration_seconds",
			Help: "A summary metric to measure the time spent reconciling a snapshot into the store",
		},
		[]string{"result"},
	)

	StatusUpdateCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inventory_status_updates",
			Help: "A counter metric to measure the total count of asset status updates, by status and result",
		},
		[]string{"status", "result"},
	)

	ManualUpdateCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inventory_manual_updates",
			Help: "A counter metric to measure the total count of operator edits of asset fields",
		},
		[]string{"result"},
	)

	HTTPRequestCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inventory_http_requests",
			Help: "A counter metric to measure the total count of API requests served",
		},
		[]string{"method", "route", "code"},
	)

	StoreQueryErrorCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_query_error_count",
			Help: "A counter metric to measure the total count of errors querying the asset store.",
		},
		[]string{"storeKind", "queryKind"},
	)

	EventsPublishedCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inventory_events_published",
			Help: "A counter metric to measure the total count of asset events published",
		},
		[]string{"kind", "result"},
	)
}

// ListenAndServe exposes prometheus metrics as /metrics on endpoint.
func ListenAndServe(endpoint string, logger *logrus.Logger) {
	if endpoint == "" {
		endpoint = MetricsEndpoint
	}

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())

		server := &http.Server{
			Addr:              endpoint,
			Handler:           mux,
			ReadHeaderTimeout: 2 * time.Second, // nolint:gomnd // time duration value is clear as is.
		}

		if err := server.ListenAndServe(); err != nil {
			logger.WithError(err).Error("metrics listener")
		}
	}()
}
