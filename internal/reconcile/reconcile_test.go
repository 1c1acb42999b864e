package reconcile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staffingops/ordersync/internal/extract"
	"github.com/staffingops/ordersync/internal/fields"
	"github.com/staffingops/ordersync/internal/mailbox"
)

var testRef = mailbox.ItemRef{
	Name:        "inbox/order1.eml",
	ModTime:     time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	Fingerprint: "sha256:abc123",
}

func testRecord(values map[fields.Field]string) extract.Record {
	rec := extract.NewRecord()
	for _, f := range fields.All {
		if v, ok := values[f]; ok {
			rec.Set(f, v)
		}
	}
	return rec
}

func TestReconcileAppendsNewOrder(t *testing.T) {
	rec := testRecord(map[fields.Field]string{
		fields.OrderNumber: "CMD-12345",
		fields.AgencyCode:  "AG-042",
		fields.Status:      "Confirmée",
	})
	now := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

	res := Reconcile(rec, testRef, now, fields.CanonicalHeader(), map[string]bool{})
	require.Equal(t, OutcomeAppend, res.Outcome)
	assert.Empty(t, res.NewColumns)

	assert.Equal(t, "CMD-12345", res.Row.OrderNumber())
	assert.Equal(t, "AG-042", res.Row[string(fields.AgencyCode)])
	assert.Equal(t, "2026-03-01T09:30:00Z", res.Row[fields.ColExtractedAt])
	assert.Equal(t, "inbox/order1.eml", res.Row[fields.ColSourceFile])
	assert.Equal(t, "sha256:abc123", res.Row[fields.ColFileID])
}

func TestReconcileMissingOptionalsAreEmpty(t *testing.T) {
	rec := testRecord(map[fields.Field]string{
		fields.OrderNumber: "1",
		fields.UnitCode:    "U-9",
	})

	res := Reconcile(rec, testRef, time.Now(), fields.CanonicalHeader(), nil)
	require.Equal(t, OutcomeAppend, res.Outcome)

	v, ok := res.Row[string(fields.AbsentPerson)]
	assert.True(t, ok, "uncaptured field still gets a cell")
	assert.Equal(t, "", v)
	assert.Equal(t, "", res.Row[string(fields.Status)])
}

func TestReconcileDuplicateOrderSkips(t *testing.T) {
	rec := testRecord(map[fields.Field]string{fields.OrderNumber: "CMD-7"})

	res := Reconcile(rec, testRef, time.Now(), fields.CanonicalHeader(), map[string]bool{"CMD-7": true})
	assert.Equal(t, OutcomeDuplicate, res.Outcome)
	assert.Nil(t, res.Row)
}

func TestReconcileExtendsShortHeader(t *testing.T) {
	// A sheet created before some columns existed keeps its header; the
	// missing field columns are reported in registry order.
	header := []string{fields.ColExtractedAt, fields.ColSourceFile, fields.ColFileID,
		string(fields.OrderNumber), string(fields.AgencyCode)}
	rec := testRecord(map[fields.Field]string{
		fields.OrderNumber: "2",
		fields.Status:      "Validé",
		fields.UnitCode:    "U-1",
	})

	res := Reconcile(rec, testRef, time.Now(), header, nil)
	require.Equal(t, OutcomeAppend, res.Outcome)
	assert.Equal(t, []string{string(fields.UnitCode), string(fields.Status)}, res.NewColumns)
	assert.Equal(t, "Validé", res.Row[string(fields.Status)])
}

func TestReconcileFileIDFallsBackToName(t *testing.T) {
	ref := mailbox.ItemRef{Name: "order2.txt", ModTime: time.Now()}
	rec := testRecord(map[fields.Field]string{fields.OrderNumber: "3"})

	res := Reconcile(rec, ref, time.Now(), fields.CanonicalHeader(), nil)
	require.Equal(t, OutcomeAppend, res.Outcome)
	assert.Equal(t, "order2.txt", res.Row[fields.ColFileID])
}
