package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	"github.com/fatflowers/reconciler/pkg/types"
)

var HistogramBuckets = []float64{
	// --- Fast responses (0 - 500ms) ---
	25, 50, 75, 100, 150, 200, 300, 400, 500,

	// --- Medium responses (500ms - 2s) ---
	750, 1000, 1250, 1500, 1750, 2000,

	// --- Slow responses (2s - 15s) ---
	2500, 3000, 4000, 5000, 7500, 10000, 15000,
}

// Metric is a definition for the name, description, type, ID, and
// prometheus.Collector type (i.e. CounterVec, Summary, etc) of each metric
type Metric struct {
	MetricCollector prometheus.Collector
	ID              string
	Name            string
	Description     string
	Type            string
	Args            []string
}

// NewMetric associates prometheus.Collector based on Metric.Type
func NewMetric(m *Metric, subsystem string) prometheus.Collector {
	var metric prometheus.Collector
	switch m.Type {
	case "counter_vec":
		metric = prometheus.NewCounterVec(
			prometheus.CounterOpts{Subsystem: subsystem, Name: m.Name, Help: m.Description},
			m.Args,
		)
	case "counter":
		metric = prometheus.NewCounter(
			prometheus.CounterOpts{Subsystem: subsystem, Name: m.Name, Help: m.Description},
		)
	case "gauge_vec":
		metric = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Subsystem: subsystem, Name: m.Name, Help: m.Description},
			m.Args,
		)
	case "histogram_vec":
		metric = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{Subsystem: subsystem, Name: m.Name, Help: m.Description, Buckets: HistogramBuckets},
			m.Args,
		)
	case "summary_vec":
		metric = prometheus.NewSummaryVec(
			prometheus.SummaryOpts{Subsystem: subsystem, Name: m.Name, Help: m.Description},
			m.Args,
		)
	}
	return metric
}

var purchaseTransitions = &Metric{
	ID:          "purchaseTransitions",
	Name:        "purchase_transitions_total",
	Description: "Accepted purchase status transitions.",
	Type:        "counter_vec",
	Args:        []string{"from", "to", "source"},
}

var notificationOutcomes = &Metric{
	ID:          "notificationOutcomes",
	Name:        "notifications_total",
	Description: "Store notifications by provider and processing outcome.",
	Type:        "counter_vec",
	Args:        []string{"provider", "outcome"},
}

var storeRequestDuration = &Metric{
	ID:          "storeReqDur",
	Name:        "store_req_dur_ms",
	Description: "Outbound store API latencies in milliseconds.",
	Type:        "histogram_vec",
	Args:        []string{"provider", "result"},
}

const businessSubsystem = "reconciler"

// Recorder records business metrics. A nil *Recorder is a no-op.
type Recorder struct {
	transitions   *prometheus.CounterVec
	notifications *prometheus.CounterVec
	storeDur      *prometheus.HistogramVec
}

func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		transitions:   NewMetric(purchaseTransitions, businessSubsystem).(*prometheus.CounterVec),
		notifications: NewMetric(notificationOutcomes, businessSubsystem).(*prometheus.CounterVec),
		storeDur:      NewMetric(storeRequestDuration, businessSubsystem).(*prometheus.HistogramVec),
	}
	for _, c := range []prometheus.Collector{r.transitions, r.notifications, r.storeDur} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Recorder) ObserveTransition(from, to types.PurchaseStatus, source types.TransitionSource) {
	if r == nil {
		return
	}
	r.transitions.WithLabelValues(string(from), string(to), string(source)).Inc()
}

func (r *Recorder) ObserveNotification(provider types.PaymentProvider, outcome string) {
	if r == nil {
		return
	}
	r.notifications.WithLabelValues(string(provider), outcome).Inc()
}

func (r *Recorder) ObserveStoreCall(provider types.PaymentProvider, result string, start time.Time) {
	if r == nil {
		return
	}
	r.storeDur.WithLabelValues(string(provider), result).Observe(MillisecondsSince(start))
}

// MillisecondsSince returns the elapsed time since t in milliseconds.
func MillisecondsSince(t time.Time) float64 {
	return float64(time.Since(t)) / float64(time.Millisecond)
}

const (
	RefererKey = "X-Referer"
)

var Module = fx.Options(
	fx.Provide(func() (*Recorder, error) { return NewRecorder(prometheus.DefaultRegisterer) }),
)
