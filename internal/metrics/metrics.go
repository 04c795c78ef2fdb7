// Package metrics holds the Prometheus collectors shared by the HTTP and
// Socket.IO transports.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cap"

type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	analysesTotal              *prometheus.CounterVec
	challengesAnsweredTotal    *prometheus.CounterVec
	reportsSubmittedTotal      prometheus.Counter
	socketConnections          prometheus.Gauge
}

// New builds a private registry. activeSessions is sampled on every scrape.
func New(activeSessions func() int) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"path", "method", "status"},
		),
		httpRequestDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5},
			},
			[]string{"path", "method"},
		),
		analysesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "analyses_total",
				Help:      "Detections served, by input kind and classification",
			},
			[]string{"kind", "classification"},
		),
		challengesAnsweredTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "challenges_answered_total",
				Help:      "Challenge answers, by result",
			},
			[]string{"result"},
		),
		reportsSubmittedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reports_submitted_total",
				Help:      "Community reports submitted",
			},
		),
		socketConnections: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "socket_connections",
				Help:      "Open Socket.IO connections",
			},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDurationSeconds,
		m.analysesTotal,
		m.challengesAnsweredTotal,
		m.reportsSubmittedTotal,
		m.socketConnections,
	)
	if activeSessions != nil {
		m.registry.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_sessions",
				Help:      "Live sessions in the store",
			},
			func() float64 { return float64(activeSessions()) },
		))
	}
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request count and latency per route template.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.httpRequestsTotal.WithLabelValues(path, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpRequestDurationSeconds.WithLabelValues(path, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) Analysis(kind, classification string) {
	m.analysesTotal.WithLabelValues(kind, classification).Inc()
}

func (m *Metrics) ChallengeAnswered(correct bool) {
	result := "wrong"
	if correct {
		result = "correct"
	}
	m.challengesAnsweredTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) ReportSubmitted() { m.reportsSubmittedTotal.Inc() }

func (m *Metrics) SocketConnected() { m.socketConnections.Inc() }
func (m *Metrics) SocketDisconnected() { m.socketConnections.Dec() }
