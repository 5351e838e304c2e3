package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	CheckInsCreated     prometheus.Counter
	CheckInsApproved    prometheus.Counter
	CheckInsDenied      prometheus.Counter
	PreApprovalsCreated prometheus.Counter
	PreApprovalsUsed    prometheus.Counter
	NotificationsSent   *prometheus.CounterVec
	NotificationsFailed *prometheus.CounterVec
	RequestLatency      *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		CheckInsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "securevms_checkins_created_total",
			Help: "Total number of check-ins created",
		}),
		CheckInsApproved: promauto.NewCounter(prometheus.CounterOpts{
			Name: "securevms_checkins_approved_total",
			Help: "Total number of check-ins approved",
		}),
		CheckInsDenied: promauto.NewCounter(prometheus.CounterOpts{
			Name: "securevms_checkins_denied_total",
			Help: "Total number of check-ins denied",
		}),
		PreApprovalsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "securevms_preapprovals_created_total",
			Help: "Total number of pre-approvals issued",
		}),
		PreApprovalsUsed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "securevms_preapprovals_used_total",
			Help: "Total number of pre-approvals redeemed",
		}),
		NotificationsSent: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "securevms_notifications_sent_total",
			Help: "Notifications delivered, by channel",
		}, []string{"channel"}),
		NotificationsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "securevms_notifications_failed_total",
			Help: "Notification deliveries that failed, by channel",
		}, []string{"channel"}),
		RequestLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "securevms_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "status"}),
	}
}
