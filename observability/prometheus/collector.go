// Package prometheus exports corestore metrics through client_golang.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/corestore"
)

const namespace = "corestore"

// Collector implements corestore.MetricsCollector.
type Collector struct {
	opLatency     *prometheus.HistogramVec
	creates       *prometheus.CounterVec
	batchOps      *prometheus.CounterVec
	bestEffort    *prometheus.CounterVec
	streamed      *prometheus.CounterVec
	backups       *prometheus.CounterVec
	backupEntries *prometheus.CounterVec
	backupBytes   *prometheus.CounterVec
}

var _ corestore.MetricsCollector = (*Collector)(nil)

// NewCollector creates the metric vectors and registers them with reg.
// A nil reg uses prometheus.DefaultRegisterer.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := &Collector{
		opLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_latency_seconds",
			Help:      "Latency of storage operations",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op", "kind", "status"}),
		creates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "creates_total",
			Help:      "Create calls by outcome",
		}, []string{"result"}),
		batchOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_operations_total",
			Help:      "Operations flushed by batch kind",
		}, []string{"kind"}),
		bestEffort: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "best_effort_failures_total",
			Help:      "Failures swallowed by TryFlush",
		}, []string{"kind"}),
		streamed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "streamed_records_total",
			Help:      "Records yielded by range streams",
		}, []string{"kind"}),
		backups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backups_total",
			Help:      "Backup exports and restores by status",
		}, []string{"kind", "status"}),
		backupEntries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backup_entries_total",
			Help:      "Key/value pairs exported or restored",
		}, []string{"kind"}),
		backupBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backup_bytes_total",
			Help:      "Data blob bytes exported or restored",
		}, []string{"kind"}),
	}

	for _, col := range []prometheus.Collector{
		c.opLatency, c.creates, c.batchOps, c.bestEffort,
		c.streamed, c.backups, c.backupEntries, c.backupBytes,
	} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// MustNewCollector is like NewCollector but panics on registration errors.
func MustNewCollector(reg prometheus.Registerer) *Collector {
	c, err := NewCollector(reg)
	if err != nil {
		panic(err)
	}
	return c
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordCreate implements corestore.MetricsCollector.
func (c *Collector) RecordCreate(d time.Duration, created bool, err error) {
	c.opLatency.WithLabelValues("create", "", status(err)).Observe(d.Seconds())

	result := "existing"
	switch {
	case err != nil:
		result = "error"
	case created:
		result = "created"
	}
	c.creates.WithLabelValues(result).Inc()
}

// RecordFlush implements corestore.MetricsCollector.
func (c *Collector) RecordFlush(kind string, ops int, d time.Duration, err error) {
	c.opLatency.WithLabelValues("flush", kind, status(err)).Observe(d.Seconds())
	if err == nil {
		c.batchOps.WithLabelValues(kind).Add(float64(ops))
	}
}

// RecordBestEffortFailure implements corestore.MetricsCollector.
func (c *Collector) RecordBestEffortFailure(kind string, _ int, _ error) {
	c.bestEffort.WithLabelValues(kind).Inc()
}

// RecordStream implements corestore.MetricsCollector.
func (c *Collector) RecordStream(kind string, n int, d time.Duration, err error) {
	c.opLatency.WithLabelValues("stream", kind, status(err)).Observe(d.Seconds())
	c.streamed.WithLabelValues(kind).Add(float64(n))
}

// RecordBackup implements corestore.MetricsCollector.
func (c *Collector) RecordBackup(kind string, entries, bytes int64, d time.Duration, err error) {
	c.opLatency.WithLabelValues("backup", kind, status(err)).Observe(d.Seconds())
	c.backups.WithLabelValues(kind, status(err)).Inc()
	if err != nil {
		return
	}
	c.backupEntries.WithLabelValues(kind).Add(float64(entries))
	c.backupBytes.WithLabelValues(kind).Add(float64(bytes))
}
