package metrics

import (
	"time"

	"github.com/dhis2-sre/mq-manager/pkg/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	transitions          *prometheus.CounterVec
	provisioningDuration *prometheus.HistogramVec
	inFlight             prometheus.Gauge
	catalogRequests      *prometheus.CounterVec
	sweptClusters        prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		transitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mq_manager_cluster_transitions_total",
				Help: "Total number of cluster state transitions",
			},
			[]string{"from", "to"},
		),
		provisioningDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mq_manager_provisioning_duration_seconds",
				Help:    "Time from provisioning start until the cluster is active or failed",
				Buckets: prometheus.ExponentialBuckets(10, 2, 8), // 10s to ~21min
			},
			[]string{"result"},
		),
		inFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "mq_manager_provisioning_jobs",
				Help: "Number of provisioning and teardown jobs currently running",
			},
		),
		catalogRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mq_manager_catalog_requests_total",
				Help: "Total number of catalog lookups against the provider",
			},
			[]string{"kind", "result"},
		),
		sweptClusters: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "mq_manager_swept_clusters_total",
				Help: "Total number of clusters moved to ERROR by the provisioning timeout sweep",
			},
		),
	}
}

func (m *Metrics) Transition(from, to model.State) {
	m.transitions.WithLabelValues(string(from), string(to)).Inc()
}

func (m *Metrics) ProvisioningFinished(result model.State, started time.Time) {
	m.provisioningDuration.WithLabelValues(string(result)).Observe(time.Since(started).Seconds())
}

func (m *Metrics) JobStarted() {
	m.inFlight.Inc()
}

func (m *Metrics) JobFinished() {
	m.inFlight.Dec()
}

func (m *Metrics) CatalogRequest(kind string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.catalogRequests.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) Swept() {
	m.sweptClusters.Inc()
}
