package tracker

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staffingops/ordersync/internal/mailbox"
)

func testRef(name string) mailbox.ItemRef {
	return mailbox.ItemRef{
		Name:    name,
		ModTime: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
	}
}

func TestMemoryTracker(t *testing.T) {
	tr := NewMemory()
	ref := testRef("order1.eml")

	assert.True(t, tr.IsNew(ref))
	require.NoError(t, tr.MarkProcessed(context.Background(), ref))
	assert.False(t, tr.IsNew(ref))
	assert.Equal(t, 1, tr.Len())
}

func TestFileTrackerPersistsAcrossReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	ref := testRef("order1.eml")

	tr, err := New(Config{Path: path})
	require.NoError(t, err)
	assert.True(t, tr.IsNew(ref))
	require.NoError(t, tr.MarkProcessed(context.Background(), ref))

	// Fresh instance over the same file sees the mark.
	tr2, err := New(Config{Path: path})
	require.NoError(t, err)
	assert.False(t, tr2.IsNew(ref))
	assert.Equal(t, tr.Len(), tr2.Len())
}

func TestFingerprintKeyAlsoMatches(t *testing.T) {
	tr := NewMemory()

	ref := testRef("order1.eml")
	ref.Fingerprint = mailbox.Fingerprint([]byte("body"))
	require.NoError(t, tr.MarkProcessed(context.Background(), ref))

	// Same content re-uploaded with a different modtime: the fingerprint
	// key still identifies it.
	again := ref
	again.ModTime = ref.ModTime.Add(time.Hour)
	assert.False(t, tr.IsNew(again))

	// Different content under the same name is new.
	changed := testRef("order1.eml")
	changed.ModTime = ref.ModTime.Add(2 * time.Hour)
	changed.Fingerprint = mailbox.Fingerprint([]byte("other body"))
	assert.True(t, tr.IsNew(changed))
}

func TestForceResyncStillMarks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	ref := testRef("order1.eml")

	tr, err := New(Config{Path: path, ForceResync: true})
	require.NoError(t, err)
	require.NoError(t, tr.MarkProcessed(context.Background(), ref))

	// Within the forced pass everything stays "new".
	assert.True(t, tr.IsNew(ref))

	// The next, regular pass sees the persisted mark.
	tr2, err := New(Config{Path: path})
	require.NoError(t, err)
	assert.False(t, tr2.IsNew(ref))
}

func TestFileTrackerUnparseableState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))

	_, err := New(Config{Path: path})
	assert.Error(t, err)
}
