// Package scanner runs the ingest pass: list the mailbox folder, drop
// already-processed items, extract fields from the rest, and append new
// orders to the table store.
package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/staffingops/ordersync/internal/extract"
	"github.com/staffingops/ordersync/internal/logging"
	"github.com/staffingops/ordersync/internal/mailbox"
	"github.com/staffingops/ordersync/internal/reconcile"
	"github.com/staffingops/ordersync/internal/stats"
	"github.com/staffingops/ordersync/internal/table"
	"github.com/staffingops/ordersync/internal/tracker"
)

// maxRetries bounds the retry budget per collaborator call: one initial
// attempt plus maxRetries retries.
const maxRetries = 2

// Result summarizes one completed scan pass.
type Result struct {
	RunID      string
	Seen       int // items listed in the folder
	New        int // items not filtered by the tracker
	Parsed     int // items that yielded a usable record
	Failed     int // items with no usable record
	Appended   int // rows appended to the table
	Duplicates int // records skipped, order number already had a row
	Duration   time.Duration
}

// Scanner wires the collaborators of the ingest pass. A single instance
// runs one pass at a time.
type Scanner struct {
	folder  mailbox.Folder
	router  *extract.Router
	tracker tracker.Tracker
	store   table.Store
	stats   *stats.Aggregator
	log     *slog.Logger
	now     func() time.Time
}

// New creates a scanner. agg may be nil when no statistics are collected.
func New(folder mailbox.Folder, trk tracker.Tracker, store table.Store, agg *stats.Aggregator) *Scanner {
	return &Scanner{
		folder:  folder,
		router:  extract.NewRouter(),
		tracker: trk,
		store:   store,
		stats:   agg,
		log:     logging.Component("scanner"),
		now:     time.Now,
	}
}

// Scan runs one pass. Per-item extraction failures are logged and counted
// but never abort the pass; storage and auth failures abort it after the
// retry budget is spent, leaving unprocessed items unmarked for the next
// pass.
func (s *Scanner) Scan(ctx context.Context) (Result, error) {
	start := s.now()
	res := Result{RunID: uuid.NewString()}
	log := s.log.With("run_id", res.RunID)
	log.Info("scan pass starting", "tracked_items", s.tracker.Len())

	var refs []mailbox.ItemRef
	err := s.retry(ctx, func() error {
		var listErr error
		refs, listErr = s.folder.List(ctx)
		if mailbox.IsAuthError(listErr) {
			return backoff.Permanent(listErr)
		}
		return listErr
	})
	if err != nil {
		return res, fmt.Errorf("list folder: %w", err)
	}
	res.Seen = len(refs)

	// One header/order-number read per pass; both are maintained locally as
	// the pass appends.
	var header []string
	if err := s.retry(ctx, func() error {
		var e error
		header, e = s.store.Header(ctx)
		return e
	}); err != nil {
		return res, fmt.Errorf("read table header: %w", err)
	}
	var orders map[string]bool
	if err := s.retry(ctx, func() error {
		var e error
		orders, e = s.store.OrderNumbers(ctx)
		return e
	}); err != nil {
		return res, fmt.Errorf("read order numbers: %w", err)
	}

	for _, ref := range refs {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		if !s.tracker.IsNew(ref) {
			continue
		}
		res.New++

		if err := s.processItem(ctx, log, ref, &header, orders, &res); err != nil {
			return res, err
		}
	}

	res.Duration = s.now().Sub(start)
	if s.stats != nil {
		s.stats.RecordScan(res.Seen, res.Parsed, res.Failed, res.Appended, res.Duplicates, res.Duration)
	}
	log.Info("scan pass complete",
		"seen", res.Seen,
		"new", res.New,
		"parsed", res.Parsed,
		"failed", res.Failed,
		"appended", res.Appended,
		"duplicates", res.Duplicates,
		"duration", res.Duration.String(),
	)
	return res, nil
}

// processItem ingests one item. Returned errors abort the pass; extraction
// problems are absorbed into the result counters instead.
func (s *Scanner) processItem(ctx context.Context, log *slog.Logger, ref mailbox.ItemRef, header *[]string, orders map[string]bool, res *Result) error {
	itemLog := log.With("item", ref.Name)

	var data []byte
	err := s.retry(ctx, func() error {
		var fetchErr error
		data, fetchErr = s.folder.Fetch(ctx, ref)
		if mailbox.IsAuthError(fetchErr) {
			return backoff.Permanent(fetchErr)
		}
		return fetchErr
	})
	if err != nil {
		if mailbox.IsAuthError(err) {
			return fmt.Errorf("fetch %s: %w", ref.Name, err)
		}
		itemLog.Error("fetch failed, item left for next pass", "error", err)
		s.recordError("fetch", err)
		return nil
	}

	// The content fingerprint becomes a second identity key: a re-uploaded
	// copy with a fresh modtime is recognized as already processed.
	ref.Fingerprint = mailbox.Fingerprint(data)
	if !s.tracker.IsNew(ref) {
		itemLog.Debug("content already processed under another key")
		return s.mark(ctx, ref)
	}

	dec, err := s.router.Route(ref.Name)
	if err != nil {
		itemLog.Warn("unsupported format", "error", err)
		res.Failed++
		s.recordError("decode", err)
		return s.mark(ctx, ref)
	}
	text, err := dec.Decode(data)
	if err != nil {
		itemLog.Warn("decode failed", "error", err)
		res.Failed++
		s.recordError("decode", err)
		return s.mark(ctx, ref)
	}

	rec := extract.Extract(text)
	grade := extract.Grade(rec)
	if grade == extract.QualityFailed {
		itemLog.Warn("extraction failed", "fields", rec.Len())
		res.Failed++
		s.recordError("extract", fmt.Errorf("item %s: no usable order fields", ref.Name))
		return s.mark(ctx, ref)
	}
	res.Parsed++
	itemLog.Info("extracted", "summary", rec.Summary(), "quality", string(grade))

	decision := reconcile.Reconcile(rec, ref, s.now(), *header, orders)
	if decision.Outcome == reconcile.OutcomeDuplicate {
		itemLog.Info("duplicate order, row kept as-is", "order_number", rec.OrderNumber())
		res.Duplicates++
		return s.mark(ctx, ref)
	}

	// Header extension must land before the row that depends on it.
	if len(decision.NewColumns) > 0 {
		if err := s.retry(ctx, func() error {
			return s.store.ExtendHeader(ctx, decision.NewColumns)
		}); err != nil {
			return fmt.Errorf("extend header: %w", err)
		}
		*header = append(*header, decision.NewColumns...)
		itemLog.Info("header extended", "columns", decision.NewColumns)
	}

	if err := s.retry(ctx, func() error {
		return s.store.AppendRow(ctx, decision.Row)
	}); err != nil {
		return fmt.Errorf("append row for %s: %w", rec.OrderNumber(), err)
	}
	orders[rec.OrderNumber()] = true
	res.Appended++

	// Mark strictly after the append so a crash in between costs only a
	// duplicate attempt next pass.
	return s.mark(ctx, ref)
}

func (s *Scanner) mark(ctx context.Context, ref mailbox.ItemRef) error {
	if err := s.retry(ctx, func() error {
		return s.tracker.MarkProcessed(ctx, ref)
	}); err != nil {
		return fmt.Errorf("mark %s processed: %w", ref.Name, err)
	}
	return nil
}

func (s *Scanner) recordError(stage string, err error) {
	if s.stats != nil {
		s.stats.RecordError(stage, err.Error())
	}
}

// retry wraps a collaborator call in bounded exponential backoff.
func (s *Scanner) retry(ctx context.Context, op func() error) error {
	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxRetries), ctx)
	return backoff.Retry(op, bo)
}
