package stats

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments exported at /metrics.
type Metrics struct {
	ItemsSeen         prometheus.Counter
	ItemsParsed       prometheus.Counter
	ParseFailures     prometheus.Counter
	RowsAppended      prometheus.Counter
	DuplicatesSkipped prometheus.Counter

	Enrichments *prometheus.CounterVec
	Errors      *prometheus.CounterVec

	ScanDuration   prometheus.Histogram
	EnrichDuration prometheus.Histogram

	LastScanTimestamp prometheus.Gauge
}

var defaultMetrics *Metrics

// InitMetrics registers the instruments on the default registry. Call once
// at startup.
func InitMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "ordersync"
	}

	m := &Metrics{
		ItemsSeen: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_seen_total",
			Help:      "Total number of folder items listed across scan passes",
		}),
		ItemsParsed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_parsed_total",
			Help:      "Total number of items that yielded a usable record",
		}),
		ParseFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parse_failures_total",
			Help:      "Total number of items with no usable order fields",
		}),
		RowsAppended: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_appended_total",
			Help:      "Total number of rows appended to the table store",
		}),
		DuplicatesSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicates_skipped_total",
			Help:      "Total number of records skipped because the order number already had a row",
		}),
		Enrichments: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrichments_total",
			Help:      "Total number of document enrichment attempts",
		}, []string{"result"}),
		Errors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Total number of recorded errors",
		}, []string{"stage"}),
		ScanDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scan_duration_seconds",
			Help:      "Duration of one scan pass",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10), // 0.1s to ~100s
		}),
		EnrichDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "enrich_duration_seconds",
			Help:      "Duration of one document enrichment",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		}),
		LastScanTimestamp: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_scan_timestamp_seconds",
			Help:      "Unix time of the last completed scan pass",
		}),
	}

	defaultMetrics = m
	return m
}

// GetMetrics returns the instance from InitMetrics, or nil before it runs.
func GetMetrics() *Metrics {
	return defaultMetrics
}
