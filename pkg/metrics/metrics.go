package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// OpenCount tracks FileInfo.openCount per certificate group.
	OpenCount = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pushcore_trustlist_open_count",
			Help: "Number of open trust-list file handles by certificate group",
		},
		[]string{"group"},
	)

	// LastUpdateTime tracks FileInfo.lastUpdateTime per certificate group, as unix seconds.
	LastUpdateTime = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pushcore_trustlist_last_update_seconds",
			Help: "Unix timestamp of the last committed trust-list change, by certificate group",
		},
		[]string{"group"},
	)

	// TransactionPending is registered for transaction state; nothing in
	// this repository sets it, so it always reads 0.
	TransactionPending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pushcore_transaction_pending",
			Help: "Whether a push-management transaction is currently PENDING (1) or FRESH (0)",
		},
	)

	// RejectedListSize tracks the current size of the rejected list per group.
	RejectedListSize = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pushcore_rejected_list_size",
			Help: "Current number of entries in the rejected list, by certificate group",
		},
		[]string{"group"},
	)

	// VerificationsTotal counts certificate verification outcomes.
	VerificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pushcore_verifications_total",
			Help: "Total certificate verifications by group and outcome",
		},
		[]string{"group", "outcome"},
	)

	// DispatchRequestsTotal is registered for dispatcher invocations by method
	// and status code; nothing in this repository increments it.
	DispatchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pushcore_dispatch_requests_total",
			Help: "Total push-management method invocations by method and status code",
		},
		[]string{"method", "status"},
	)

	// DispatchDuration is registered for handler latency by method;
	// nothing in this repository observes into it.
	DispatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pushcore_dispatch_duration_seconds",
			Help:    "Push-management method handler duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// CommitDuration records how long ApplyChanges' commit step takes.
	CommitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pushcore_commit_duration_seconds",
			Help:    "Time taken to commit a staged transaction in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// ChannelsClosedTotal counts secure channels shut down by the post-commit sweep.
	ChannelsClosedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pushcore_channels_closed_total",
			Help: "Total secure channels closed by the post-commit sweep, by reason",
		},
		[]string{"reason"},
	)

	// JanitorReclamationsTotal counts resources the Session Janitor reclaimed.
	JanitorReclamationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pushcore_janitor_reclamations_total",
			Help: "Total resources reclaimed by the session janitor, by kind",
		},
		[]string{"kind"},
	)

	// JanitorTicksTotal counts janitor ticks, whether or not they found work.
	JanitorTicksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pushcore_janitor_ticks_total",
			Help: "Total number of session janitor ticks executed",
		},
	)

	// AdminCertExpirySeconds tracks the remaining lifetime of the
	// administrative CA's currently issued health-listener certificate,
	// as seconds until NotAfter. It turns negative once the cert has
	// expired.
	AdminCertExpirySeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pushcore_admin_cert_expiry_seconds",
			Help: "Seconds remaining until the administrative listener certificate expires",
		},
	)
)

func init() {
	prometheus.MustRegister(OpenCount)
	prometheus.MustRegister(LastUpdateTime)
	prometheus.MustRegister(TransactionPending)
	prometheus.MustRegister(RejectedListSize)
	prometheus.MustRegister(VerificationsTotal)
	prometheus.MustRegister(DispatchRequestsTotal)
	prometheus.MustRegister(DispatchDuration)
	prometheus.MustRegister(CommitDuration)
	prometheus.MustRegister(ChannelsClosedTotal)
	prometheus.MustRegister(JanitorReclamationsTotal)
	prometheus.MustRegister(JanitorTicksTotal)
	prometheus.MustRegister(AdminCertExpirySeconds)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
