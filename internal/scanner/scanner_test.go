package scanner

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staffingops/ordersync/internal/mailbox"
	"github.com/staffingops/ordersync/internal/stats"
	"github.com/staffingops/ordersync/internal/table"
	"github.com/staffingops/ordersync/internal/tracker"
)

// fakeFolder is an in-memory mailbox.Folder.
type fakeFolder struct {
	data    map[string][]byte
	mods    map[string]time.Time
	listErr error
}

func newFakeFolder() *fakeFolder {
	return &fakeFolder{
		data: make(map[string][]byte),
		mods: make(map[string]time.Time),
	}
}

func (f *fakeFolder) put(name, content string, mod time.Time) {
	f.data[name] = []byte(content)
	f.mods[name] = mod
}

func (f *fakeFolder) List(ctx context.Context) ([]mailbox.ItemRef, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var refs []mailbox.ItemRef
	for name, content := range f.data {
		refs = append(refs, mailbox.ItemRef{
			Name:    name,
			ModTime: f.mods[name],
			Size:    int64(len(content)),
		})
	}
	return refs, nil
}

func (f *fakeFolder) Fetch(ctx context.Context, ref mailbox.ItemRef) ([]byte, error) {
	content, ok := f.data[ref.Name]
	if !ok {
		return nil, fmt.Errorf("no such item: %s", ref.Name)
	}
	return content, nil
}

func (f *fakeFolder) Close() error { return nil }

var _ mailbox.Folder = (*fakeFolder)(nil)

func orderText(orderNumber, agency string) string {
	return fmt.Sprintf("Numéro de commande : %s\nCode agence : %s\nStatut : Confirmée\n", orderNumber, agency)
}

func newTestScanner(folder mailbox.Folder, trk tracker.Tracker, store table.Store) *Scanner {
	s := New(folder, trk, store, stats.New(nil))
	return s
}

func TestScanAppendsNewOrders(t *testing.T) {
	folder := newFakeFolder()
	folder.put("order1.txt", orderText("CMD-1", "AG-1"), time.Now())
	folder.put("order2.txt", orderText("CMD-2", "AG-2"), time.Now())

	store := table.NewMemoryStore()
	trk := tracker.NewMemory()
	s := newTestScanner(folder, trk, store)

	res, err := s.Scan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, res.Seen)
	assert.Equal(t, 2, res.New)
	assert.Equal(t, 2, res.Parsed)
	assert.Equal(t, 2, res.Appended)
	assert.Zero(t, res.Failed)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, 2, store.RowCount())

	row, err := store.FindRow(context.Background(), "CMD-1")
	require.NoError(t, err)
	assert.Equal(t, "AG-1", row["code_agence"])
	assert.Equal(t, "order1.txt", row["fichier_source"])
	assert.NotEmpty(t, row["file_id"])
}

func TestScanIsIdempotent(t *testing.T) {
	folder := newFakeFolder()
	folder.put("order1.txt", orderText("CMD-1", "AG-1"), time.Now())

	store := table.NewMemoryStore()
	trk := tracker.NewMemory()
	s := newTestScanner(folder, trk, store)
	ctx := context.Background()

	first, err := s.Scan(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Appended)

	second, err := s.Scan(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, second.Seen)
	assert.Zero(t, second.New)
	assert.Zero(t, second.Appended)
	assert.Equal(t, 1, store.RowCount())
}

func TestScanSkipsDuplicateOrderNumbers(t *testing.T) {
	folder := newFakeFolder()
	folder.put("a.txt", orderText("CMD-7", "AG-1"), time.Now())
	folder.put("b.txt", orderText("CMD-7", "AG-2"), time.Now())

	store := table.NewMemoryStore()
	s := newTestScanner(folder, tracker.NewMemory(), store)

	res, err := s.Scan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, res.Appended)
	assert.Equal(t, 1, res.Duplicates)
	assert.Equal(t, 1, store.RowCount())
}

func TestScanCountsParseFailuresAndMarksThem(t *testing.T) {
	folder := newFakeFolder()
	folder.put("junk.txt", "no labels anywhere in here", time.Now())
	folder.put("good.txt", orderText("CMD-1", "AG-1"), time.Now())

	store := table.NewMemoryStore()
	trk := tracker.NewMemory()
	s := newTestScanner(folder, trk, store)
	ctx := context.Background()

	res, err := s.Scan(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 1, res.Appended)
	assert.Equal(t, 1, store.RowCount())

	// The failed item is marked so the next pass does not re-parse it.
	again, err := s.Scan(ctx)
	require.NoError(t, err)
	assert.Zero(t, again.New)
	assert.Zero(t, again.Failed)
}

func TestScanAbortsOnAuthError(t *testing.T) {
	folder := newFakeFolder()
	folder.listErr = mailbox.ErrAuth

	s := newTestScanner(folder, tracker.NewMemory(), table.NewMemoryStore())

	_, err := s.Scan(context.Background())
	require.Error(t, err)
	assert.True(t, mailbox.IsAuthError(err))
}

func TestScanRecognizesRenamedContent(t *testing.T) {
	store := table.NewMemoryStore()
	trk := tracker.NewMemory()
	ctx := context.Background()

	folder := newFakeFolder()
	folder.put("order1.txt", orderText("CMD-1", "AG-1"), time.Now())
	s := newTestScanner(folder, trk, store)
	_, err := s.Scan(ctx)
	require.NoError(t, err)

	// Same bytes re-uploaded under a fresh modtime: the fingerprint key
	// matches, so no second parse and no duplicate row.
	folder.mods["order1.txt"] = time.Now().Add(time.Hour)
	res, err := s.Scan(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.New)
	assert.Zero(t, res.Parsed)
	assert.Zero(t, res.Appended)
	assert.Equal(t, 1, store.RowCount())
}

func TestForceResyncAppendsNothingTwice(t *testing.T) {
	folder := newFakeFolder()
	folder.put("order1.txt", orderText("CMD-1", "AG-1"), time.Now())

	store := table.NewMemoryStore()
	trk, err := tracker.New(tracker.Config{ForceResync: true})
	require.NoError(t, err)
	s := newTestScanner(folder, trk, store)
	ctx := context.Background()

	_, err = s.Scan(ctx)
	require.NoError(t, err)

	// Resync re-reads every item but reconciliation still dedups by order
	// number, so the table stays as it was.
	res, err := s.Scan(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.New)
	assert.Equal(t, 1, res.Duplicates)
	assert.Zero(t, res.Appended)
	assert.Equal(t, 1, store.RowCount())
}

func TestScanRecordsStats(t *testing.T) {
	folder := newFakeFolder()
	folder.put("order1.txt", orderText("CMD-1", "AG-1"), time.Now())

	agg := stats.New(nil)
	s := New(folder, tracker.NewMemory(), table.NewMemoryStore(), agg)

	_, err := s.Scan(context.Background())
	require.NoError(t, err)

	snap := agg.Snapshot()
	assert.Equal(t, int64(1), snap.ScansCompleted)
	assert.Equal(t, int64(1), snap.ItemsSeen)
	assert.Equal(t, int64(1), snap.RowsAppended)
	assert.False(t, snap.LastScan.IsZero())
}
