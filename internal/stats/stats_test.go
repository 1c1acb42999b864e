package stats

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRecordScanAccumulates(t *testing.T) {
	a := New(nil)

	a.RecordScan(10, 8, 2, 7, 1, 2*time.Second)
	a.RecordScan(5, 5, 0, 5, 0, 4*time.Second)

	s := a.Snapshot()
	assert.Equal(t, int64(2), s.ScansCompleted)
	assert.Equal(t, int64(15), s.ItemsSeen)
	assert.Equal(t, int64(13), s.ItemsParsed)
	assert.Equal(t, int64(2), s.ParseFailures)
	assert.Equal(t, int64(12), s.RowsAppended)
	assert.Equal(t, int64(1), s.DuplicatesSkipped)
	assert.InDelta(t, 3.0, s.MeanScanSeconds, 0.001)
	assert.False(t, s.LastScan.IsZero())
}

func TestRecordEnrich(t *testing.T) {
	a := New(nil)

	a.RecordEnrich(true, 100*time.Millisecond)
	a.RecordEnrich(true, 300*time.Millisecond)
	a.RecordEnrich(false, 200*time.Millisecond)

	s := a.Snapshot()
	assert.Equal(t, int64(2), s.EnrichSucceeded)
	assert.Equal(t, int64(1), s.EnrichFailed)
	assert.InDelta(t, 0.2, s.MeanEnrichSeconds, 0.001)
}

func TestErrorHistoryBounded(t *testing.T) {
	a := New(nil)

	for i := 0; i < errorCap+20; i++ {
		a.RecordError("scan", fmt.Sprintf("error %d", i))
	}

	s := a.Snapshot()
	assert.Len(t, s.RecentErrors, errorCap)
	// Oldest entries were dropped.
	assert.Equal(t, "error 20", s.RecentErrors[0].Message)
	assert.Equal(t, fmt.Sprintf("error %d", errorCap+19), s.RecentErrors[errorCap-1].Message)
	assert.Equal(t, "scan", s.RecentErrors[0].Stage)
}

func TestSnapshotIsACopy(t *testing.T) {
	a := New(nil)
	a.RecordError("enrich", "boom")

	s := a.Snapshot()
	s.RecentErrors[0].Message = "mutated"

	assert.Equal(t, "boom", a.Snapshot().RecentErrors[0].Message)
}

func TestEmptySnapshot(t *testing.T) {
	s := New(nil).Snapshot()
	assert.Zero(t, s.ScansCompleted)
	assert.Zero(t, s.MeanScanSeconds)
	assert.True(t, s.LastScan.IsZero())
	assert.Empty(t, s.RecentErrors)
}
