package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	BackendRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "capmis", Name: "backend_requests_total", Help: "Requests issued to the CAPMIS backend",
	}, []string{"family", "outcome"})
	BackendLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "capmis", Name: "backend_request_seconds", Help: "Backend request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"family"})
	GenerationJobs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "capmis", Name: "generation_jobs_total", Help: "Card generation jobs by mode and outcome",
	}, []string{"mode", "outcome"})
	PermissionsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "capmis", Name: "permissions_created_total", Help: "Permissions created through the console",
	})
	OverduePermissions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "capmis", Name: "overdue_permissions", Help: "Approved permissions past their return date",
	})
	HandlerErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "capmis", Name: "handler_errors_total", Help: "HTTP handler errors",
	})
)

func init() {
	prometheus.MustRegister(
		BackendRequests, BackendLatency, GenerationJobs,
		PermissionsCreated, OverduePermissions, HandlerErrors,
	)
}

func Handler() http.Handler { return promhttp.Handler() }

func ObserveBackend(family string, d time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	BackendRequests.WithLabelValues(family, outcome).Inc()
	BackendLatency.WithLabelValues(family).Observe(d.Seconds())
}
