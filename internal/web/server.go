// Package web serves the interactive surface: on-demand document
// enrichment, the statistics dashboard, and the Prometheus scrape endpoint.
package web

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/staffingops/ordersync/internal/enrich"
	"github.com/staffingops/ordersync/internal/logging"
	"github.com/staffingops/ordersync/internal/stats"
)

//go:embed dashboard.html
var dashboardHTML string

// maxDocumentBytes bounds uploaded XML documents.
const maxDocumentBytes = 10 << 20

// Server is the HTTP surface.
type Server struct {
	enricher *enrich.Enricher
	lookup   enrich.Lookup
	stats    *stats.Aggregator
	tmpl     *template.Template
	log      *slog.Logger
	srv      *http.Server
}

// New builds the server. agg may be nil; the dashboard then shows an empty
// snapshot.
func New(addr string, enricher *enrich.Enricher, lookup enrich.Lookup, agg *stats.Aggregator) (*Server, error) {
	tmpl, err := template.New("dashboard").Parse(dashboardHTML)
	if err != nil {
		return nil, fmt.Errorf("parse dashboard template: %w", err)
	}

	s := &Server{
		enricher: enricher,
		lookup:   lookup,
		stats:    agg,
		tmpl:     tmpl,
		log:      logging.Component("web"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /enrich", s.handleEnrich)
	mux.HandleFunc("POST /api/validate", s.handleValidate)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /{$}", s.handleDashboard)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Run serves until the context ends, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	}
}

// handleEnrich accepts an XML document, raw or as the "document" part of a
// multipart form, and returns the enriched document. Enrichment failures
// are the client's problem and map to 422.
func (s *Server) handleEnrich(w http.ResponseWriter, r *http.Request) {
	doc, err := readDocument(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	start := time.Now()
	out, err := s.enricher.Enrich(r.Context(), doc, s.lookup)
	if s.stats != nil {
		s.stats.RecordEnrich(err == nil, time.Since(start))
	}
	if err != nil {
		if s.stats != nil {
			s.stats.RecordError("enrich", err.Error())
		}
		s.log.Warn("enrichment rejected", "error", err)
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="enriched.xml"`)
	w.Write(out)
}

// handleValidate reports on a document without modifying it.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	doc, err := readDocument(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, enrich.Validate(doc))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.snapshot())
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.Execute(w, s.snapshot()); err != nil {
		s.log.Error("render dashboard", "error", err)
	}
}

func (s *Server) snapshot() stats.Snapshot {
	if s.stats == nil {
		return stats.Snapshot{}
	}
	return s.stats.Snapshot()
}

// readDocument extracts the XML payload from a request body. Multipart
// uploads use the "document" field; anything else is read raw.
func readDocument(r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, maxDocumentBytes)

	ct := r.Header.Get("Content-Type")
	if len(ct) >= 19 && ct[:19] == "multipart/form-data" {
		file, _, err := r.FormFile("document")
		if err != nil {
			return nil, fmt.Errorf("read form file %q: %w", "document", err)
		}
		defer file.Close()
		return io.ReadAll(file)
	}

	doc, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("read request body: %w", err)
	}
	if len(doc) == 0 {
		return nil, errors.New("empty document")
	}
	return doc, nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}
