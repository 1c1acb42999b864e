// Package stats aggregates run statistics for the dashboard and exports
// Prometheus metrics.
package stats

import (
	"sync"
	"time"
)

// errorCap bounds the recent-error history kept for the dashboard.
const errorCap = 100

// ErrorEntry is one recorded failure.
type ErrorEntry struct {
	Stage   string    `json:"stage"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Snapshot is a point-in-time copy of the aggregated statistics.
type Snapshot struct {
	ScansCompleted    int64 `json:"scans_completed"`
	ItemsSeen         int64 `json:"items_seen"`
	ItemsParsed       int64 `json:"items_parsed"`
	ParseFailures     int64 `json:"parse_failures"`
	RowsAppended      int64 `json:"rows_appended"`
	DuplicatesSkipped int64 `json:"duplicates_skipped"`
	EnrichSucceeded   int64 `json:"enrich_succeeded"`
	EnrichFailed      int64 `json:"enrich_failed"`

	MeanScanSeconds   float64 `json:"mean_scan_seconds"`
	MeanEnrichSeconds float64 `json:"mean_enrich_seconds"`

	LastScan     time.Time    `json:"last_scan,omitempty"`
	RecentErrors []ErrorEntry `json:"recent_errors,omitempty"`
}

// Aggregator accumulates counters across scan passes and enrichments. It is
// safe for concurrent use: in watch mode the scanner and the HTTP surface
// share one instance.
type Aggregator struct {
	mu sync.Mutex

	scans             int64
	itemsSeen         int64
	itemsParsed       int64
	parseFailures     int64
	rowsAppended      int64
	duplicatesSkipped int64
	enrichOK          int64
	enrichFailed      int64

	scanDurTotal   time.Duration
	enrichDurTotal time.Duration
	enrichCount    int64

	lastScan time.Time
	errors   []ErrorEntry

	metrics *Metrics
	now     func() time.Time
}

// New returns an aggregator. metrics may be nil when Prometheus export is
// not wanted, as in tests.
func New(metrics *Metrics) *Aggregator {
	return &Aggregator{metrics: metrics, now: time.Now}
}

// RecordScan folds the counters of one completed scan pass.
func (a *Aggregator) RecordScan(seen, parsed, failed, appended, duplicates int, dur time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.scans++
	a.itemsSeen += int64(seen)
	a.itemsParsed += int64(parsed)
	a.parseFailures += int64(failed)
	a.rowsAppended += int64(appended)
	a.duplicatesSkipped += int64(duplicates)
	a.scanDurTotal += dur
	a.lastScan = a.now()

	if m := a.metrics; m != nil {
		m.ItemsSeen.Add(float64(seen))
		m.ItemsParsed.Add(float64(parsed))
		m.ParseFailures.Add(float64(failed))
		m.RowsAppended.Add(float64(appended))
		m.DuplicatesSkipped.Add(float64(duplicates))
		m.ScanDuration.Observe(dur.Seconds())
		m.LastScanTimestamp.Set(float64(a.lastScan.Unix()))
	}
}

// RecordEnrich folds one enrichment attempt.
func (a *Aggregator) RecordEnrich(ok bool, dur time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if ok {
		a.enrichOK++
	} else {
		a.enrichFailed++
	}
	a.enrichCount++
	a.enrichDurTotal += dur

	if m := a.metrics; m != nil {
		result := "ok"
		if !ok {
			result = "error"
		}
		m.Enrichments.WithLabelValues(result).Inc()
		m.EnrichDuration.Observe(dur.Seconds())
	}
}

// RecordError appends to the bounded error history.
func (a *Aggregator) RecordError(stage, msg string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.errors = append(a.errors, ErrorEntry{Stage: stage, Message: msg, At: a.now()})
	if len(a.errors) > errorCap {
		a.errors = a.errors[len(a.errors)-errorCap:]
	}

	if m := a.metrics; m != nil {
		m.Errors.WithLabelValues(stage).Inc()
	}
}

// Snapshot returns a copy of the current statistics.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := Snapshot{
		ScansCompleted:    a.scans,
		ItemsSeen:         a.itemsSeen,
		ItemsParsed:       a.itemsParsed,
		ParseFailures:     a.parseFailures,
		RowsAppended:      a.rowsAppended,
		DuplicatesSkipped: a.duplicatesSkipped,
		EnrichSucceeded:   a.enrichOK,
		EnrichFailed:      a.enrichFailed,
		LastScan:          a.lastScan,
	}
	if a.scans > 0 {
		s.MeanScanSeconds = a.scanDurTotal.Seconds() / float64(a.scans)
	}
	if a.enrichCount > 0 {
		s.MeanEnrichSeconds = a.enrichDurTotal.Seconds() / float64(a.enrichCount)
	}
	s.RecentErrors = make([]ErrorEntry, len(a.errors))
	copy(s.RecentErrors, a.errors)
	return s
}
