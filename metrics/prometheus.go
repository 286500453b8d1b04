package metrics

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DocumentsSigned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sigilo_documents_signed_total",
		Help: "The total number of recorded signatures",
	})
	ItemsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sigilo_items_completed_total",
		Help: "The total number of items that reached completion",
	})
	CertificatesIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sigilo_certificates_issued_total",
		Help: "The total number of certificates issued",
	})
	CertificatesFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sigilo_certificates_failed_total",
		Help: "The total number of certificate issuance rows that failed",
	})
	EmailsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sigilo_emails_sent_total",
		Help: "The total number of certificate delivery emails sent",
	})
	EmailsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sigilo_emails_failed_total",
		Help: "The total number of certificate delivery attempts that failed",
	})
	RenderDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sigilo_render_duration_seconds",
		Help:    "Time spent rendering final artifacts",
		Buckets: prometheus.DefBuckets,
	})
	restApiCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sigilo_rest_api_calls",
		Help: "The total number of REST API calls",
	}, []string{"method", "path", "status"})
)

// MetricsMiddleware counts REST API calls by method, route and status
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		restApiCalls.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
	}
}
