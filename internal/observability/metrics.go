package observability

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the process-wide instrumentation. All methods are nil-safe so
// call sites never have to guard the common "metrics disabled in tests" case.
type Metrics struct {
	eventsIngested     prometheus.Counter
	eventsRejected     prometheus.Counter
	snapshotsPublished prometheus.Counter
	deliveriesDropped  prometheus.Counter
	observersConnected prometheus.Gauge
	knownKeys          prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		eventsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scrapwatch_events_ingested_total",
			Help: "Events accepted by the normalizer and handed to the aggregator.",
		}),
		eventsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scrapwatch_events_rejected_total",
			Help: "Raw records dropped by normalization.",
		}),
		snapshotsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scrapwatch_snapshots_published_total",
			Help: "Snapshots handed to the broadcast hub.",
		}),
		deliveriesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scrapwatch_deliveries_dropped_total",
			Help: "Observers unregistered because their outbound buffer was saturated or gone.",
		}),
		observersConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scrapwatch_observers_connected",
			Help: "Currently registered observers.",
		}),
		knownKeys: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scrapwatch_known_keys",
			Help: "Distinct (machine, index) keys seen so far.",
		}),
	}
	reg.MustRegister(
		m.eventsIngested,
		m.eventsRejected,
		m.snapshotsPublished,
		m.deliveriesDropped,
		m.observersConnected,
		m.knownKeys,
	)
	return m
}

func (m *Metrics) EventIngested() {
	if m != nil {
		m.eventsIngested.Inc()
	}
}

func (m *Metrics) EventRejected() {
	if m != nil {
		m.eventsRejected.Inc()
	}
}

func (m *Metrics) SnapshotPublished() {
	if m != nil {
		m.snapshotsPublished.Inc()
	}
}

func (m *Metrics) DeliveryDropped() {
	if m != nil {
		m.deliveriesDropped.Inc()
	}
}

func (m *Metrics) SetObservers(n int) {
	if m != nil {
		m.observersConnected.Set(float64(n))
	}
}

func (m *Metrics) SetKnownKeys(n int) {
	if m != nil {
		m.knownKeys.Set(float64(n))
	}
}
