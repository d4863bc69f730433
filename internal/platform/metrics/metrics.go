// Package metrics holds the Prometheus collectors exported at /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "careconnect"

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	VisitTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "visit_status_transitions_total",
			Help:      "Visit status changes by target status",
		},
		[]string{"status"},
	)

	PrescriptionEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prescription_events_total",
			Help:      "Prescription lifecycle events",
		},
		[]string{"event"}, // "saved", "signed", "dispensed"
	)

	ICD11TokenFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "icd11_token_fetches_total",
			Help:      "Access token requests made to the ICD-11 token endpoint",
		},
		[]string{"result"}, // "success", "error"
	)

	ICD11LookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "icd11_lookups_total",
			Help:      "External ICD-11 searches by outcome",
		},
		[]string{"result"},
	)

	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Attachment uploads by outcome",
		},
		[]string{"result"}, // "stored", "rejected"
	)
)

// RecordHTTPRequest records metrics for an HTTP request
func RecordHTTPRequest(method, route string, statusCode int, duration time.Duration) {
	status := strconv.Itoa(statusCode)

	HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, route, status).Observe(duration.Seconds())
}

func RecordVisitTransition(status string) {
	VisitTransitionsTotal.WithLabelValues(status).Inc()
}

func RecordPrescriptionEvent(event string) {
	PrescriptionEventsTotal.WithLabelValues(event).Inc()
}

func RecordICD11TokenFetch(err error) {
	ICD11TokenFetchesTotal.WithLabelValues(result(err)).Inc()
}

func RecordICD11Lookup(err error) {
	ICD11LookupsTotal.WithLabelValues(result(err)).Inc()
}

func RecordUpload(stored bool) {
	if stored {
		UploadsTotal.WithLabelValues("stored").Inc()
		return
	}
	UploadsTotal.WithLabelValues("rejected").Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RegisterPoolStats exports pgx pool gauges, read on every scrape.
func RegisterPoolStats(reg prometheus.Registerer, pool *pgxpool.Pool) {
	gauge := func(name, help string, f func(*pgxpool.Stat) float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "db_pool",
			Name:      name,
			Help:      help,
		}, func() float64 { return f(pool.Stat()) })
	}
	reg.MustRegister(
		gauge("total_conns", "Open connections", func(s *pgxpool.Stat) float64 { return float64(s.TotalConns()) }),
		gauge("idle_conns", "Idle connections", func(s *pgxpool.Stat) float64 { return float64(s.IdleConns()) }),
		gauge("acquired_conns", "Connections in use", func(s *pgxpool.Stat) float64 { return float64(s.AcquiredConns()) }),
		gauge("max_conns", "Configured pool size", func(s *pgxpool.Stat) float64 { return float64(s.MaxConns()) }),
	)
}
