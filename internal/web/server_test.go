package web

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staffingops/ordersync/internal/enrich"
	"github.com/staffingops/ordersync/internal/fields"
	"github.com/staffingops/ordersync/internal/stats"
	"github.com/staffingops/ordersync/internal/table"
)

func newTestServer(t *testing.T) (*Server, *stats.Aggregator) {
	t.Helper()
	store := table.NewMemoryStore()
	require.NoError(t, store.AppendRow(context.Background(), table.Row{
		string(fields.OrderNumber): "CMD-1",
		string(fields.AgencyCode):  "AG-1",
		string(fields.Status):      "Confirmée",
	}))
	agg := stats.New(nil)
	s, err := New(":0", enrich.New(enrich.OverwriteWithLatest), store, agg)
	require.NoError(t, err)
	return s, agg
}

func TestEnrichRawBody(t *testing.T) {
	s, agg := newTestServer(t)

	req := httptest.NewRequest("POST", "/enrich", strings.NewReader(`<Order><OrderId>CMD-1</OrderId></Order>`))
	req.Header.Set("Content-Type", "application/xml")
	rr := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "<AgencyCode>AG-1</AgencyCode>")
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/xml")
	assert.Equal(t, int64(1), agg.Snapshot().EnrichSucceeded)
}

func TestEnrichMultipartUpload(t *testing.T) {
	s, _ := newTestServer(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("document", "order.xml")
	require.NoError(t, err)
	fw.Write([]byte(`<Order><OrderId>CMD-1</OrderId></Order>`))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", "/enrich", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "<TempStatus>Confirmée</TempStatus>")
}

func TestEnrichErrorsMapTo422(t *testing.T) {
	s, agg := newTestServer(t)

	cases := []struct {
		name string
		doc  string
	}{
		{"no order id", `<Order><Customer>ACME</Customer></Order>`},
		{"unknown order", `<Order><OrderId>CMD-404</OrderId></Order>`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/enrich", strings.NewReader(tc.doc))
			rr := httptest.NewRecorder()
			s.srv.Handler.ServeHTTP(rr, req)
			assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
		})
	}
	assert.Equal(t, int64(2), agg.Snapshot().EnrichFailed)
}

func TestEnrichEmptyBodyIs400(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest("POST", "/enrich", strings.NewReader(""))
	rr := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestStatsEndpoint(t *testing.T) {
	s, agg := newTestServer(t)
	agg.RecordScan(3, 2, 1, 2, 0, time.Second)

	req := httptest.NewRequest("GET", "/api/stats", nil)
	rr := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var snap stats.Snapshot
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &snap))
	assert.Equal(t, int64(3), snap.ItemsSeen)
	assert.Equal(t, int64(2), snap.RowsAppended)
}

func TestValidateEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest("POST", "/api/validate", strings.NewReader(`<Order><OrderId>9</OrderId></Order>`))
	rr := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var rep enrich.Report
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rep))
	assert.True(t, rep.WellFormed)
	assert.Equal(t, "9", rep.OrderID)
}

func TestDashboardRenders(t *testing.T) {
	s, agg := newTestServer(t)
	agg.RecordError("scan", "boom")

	req := httptest.NewRequest("GET", "/", nil)
	rr := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "ordersync")
	assert.Contains(t, rr.Body.String(), "boom")
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest("GET", "/health", nil)
	rr := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}
