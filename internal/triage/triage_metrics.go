package triage

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the triage subsystem.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	ImagesTotal          *prometheus.CounterVec
	ClassifyDuration     *prometheus.HistogramVec
	SeverityRating       prometheus.Histogram
	OutOfRangeTotal      prometheus.Counter
	BatchesTotal         *prometheus.CounterVec
	BatchSize            prometheus.Histogram
	UpsertsTotal         *prometheus.CounterVec
	UploadsRejectedTotal *prometheus.CounterVec
	NotificationsTotal   *prometheus.CounterVec
}

// NewMetrics registers and returns triage metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ImagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "radtriage_images_total",
			Help: "Total images classified by source and outcome.",
		}, []string{"source", "outcome"}),
		ClassifyDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "radtriage_classify_duration_seconds",
			Help:    "Duration of individual classifier calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 9), // 0.25s .. ~64s
		}, []string{"source"}),
		SeverityRating: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "radtriage_severity_rating",
			Help:    "Parsed severity ratings.",
			Buckets: prometheus.LinearBuckets(1, 1, 10), // 1 .. 10
		}),
		OutOfRangeTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "radtriage_severity_out_of_range_total",
			Help: "Parsed severity ratings outside 1..10.",
		}),
		BatchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "radtriage_batches_total",
			Help: "Total fetch batches by outcome.",
		}, []string{"outcome"}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "radtriage_batch_size",
			Help:    "Unprocessed images per fetch batch.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10), // 1 .. 512
		}),
		UpsertsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "radtriage_upserts_total",
			Help: "Total result upserts by outcome.",
		}, []string{"outcome"}),
		UploadsRejectedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "radtriage_uploads_rejected_total",
			Help: "Manual uploads rejected by reason.",
		}, []string{"reason"}),
		NotificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "radtriage_notifications_total",
			Help: "Critical-finding notifications by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		m.ImagesTotal,
		m.ClassifyDuration,
		m.SeverityRating,
		m.OutOfRangeTotal,
		m.BatchesTotal,
		m.BatchSize,
		m.UpsertsTotal,
		m.UploadsRejectedTotal,
		m.NotificationsTotal,
	)

	return m
}

func outcomeLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (m *Metrics) observeClassification(source string, o Outcome) {
	if m == nil {
		return
	}
	m.ImagesTotal.WithLabelValues(source, outcomeLabel(o.Err)).Inc()
	m.ClassifyDuration.WithLabelValues(source).Observe(o.Duration.Seconds())
}

func (m *Metrics) observeRating(rating *float64) {
	if m == nil || rating == nil {
		return
	}
	m.SeverityRating.Observe(*rating)
	if !InRange(*rating) {
		m.OutOfRangeTotal.Inc()
	}
}

func (m *Metrics) observeBatch(outcome string, size int) {
	if m == nil {
		return
	}
	m.BatchesTotal.WithLabelValues(outcome).Inc()
	m.BatchSize.Observe(float64(size))
}

func (m *Metrics) observeUpsert(err error) {
	if m == nil {
		return
	}
	m.UpsertsTotal.WithLabelValues(outcomeLabel(err)).Inc()
}

func (m *Metrics) observeRejectedUpload(reason string) {
	if m == nil {
		return
	}
	m.UploadsRejectedTotal.WithLabelValues(reason).Inc()
}

func (m *Metrics) observeNotification(err error) {
	if m == nil {
		return
	}
	m.NotificationsTotal.WithLabelValues(outcomeLabel(err)).Inc()
}

