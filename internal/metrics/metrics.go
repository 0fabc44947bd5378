package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder observes outgoing API calls.
type Recorder interface {
	ObserveRequest(endpoint string, status int, duration time.Duration)
	IncAlerts()
	IncScheduledRefreshes()
}

// Prometheus is a Recorder backed by prometheus collectors.
type Prometheus struct {
	requestsTotal      *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
	alertsTotal        prometheus.Counter
	scheduledRefreshes prometheus.Counter
}

// NewPrometheus registers the client metrics on reg.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	factory := promauto.With(reg)
	return &Prometheus{
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "linkboard_api_requests_total",
			Help: "Total number of link API requests",
		}, []string{"endpoint", "status"}),

		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "linkboard_api_request_duration_seconds",
			Help:    "Link API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),

		alertsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "linkboard_alerts_total",
			Help: "Total number of user-facing alerts raised",
		}),

		scheduledRefreshes: factory.NewCounter(prometheus.CounterOpts{
			Name: "linkboard_scheduled_refreshes_total",
			Help: "Total number of delayed list refreshes scheduled after a link was created",
		}),
	}
}

func (m *Prometheus) ObserveRequest(endpoint string, status int, duration time.Duration) {
	m.requestsTotal.WithLabelValues(endpoint, StatusBucket(status)).Inc()
	m.requestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

func (m *Prometheus) IncAlerts() {
	m.alertsTotal.Inc()
}

func (m *Prometheus) IncScheduledRefreshes() {
	m.scheduledRefreshes.Inc()
}

// StatusBucket groups HTTP status codes by class. Zero means the request
// never got a response.
func StatusBucket(code int) string {
	switch {
	case code == 0:
		return "error"
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}

// Noop is used when metrics are disabled.
type Noop struct{}

func (Noop) ObserveRequest(_ string, _ int, _ time.Duration) {}
func (Noop) IncAlerts()                                      {}
func (Noop) IncScheduledRefreshes()                          {}
