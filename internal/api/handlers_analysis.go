package api

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/scor-analyzer/internal/report"
)

// handleAnalyze handles GET /api/analyze/{address}
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]

	analysis, err := s.analysis.Analyze(r.Context(), address)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, analysis)
}

// handleReport handles GET /api/reports/{address}?format=text|xlsx
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]

	renderer, err := report.RendererFor(r.URL.Query().Get("format"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	analysis, err := s.analysis.Analyze(r.Context(), address)
	if err != nil {
		respondError(w, r, err)
		return
	}

	doc := report.New(&analysis.RiskResult, analysis.Cached, s.now())

	// render fully before writing headers so a failure can still be reported
	var buf bytes.Buffer
	if err := renderer.Render(&buf, doc); err != nil {
		respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", renderer.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.Filename(doc, renderer)))
	w.Header().Set("X-Report-ID", doc.ID)
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// handleAnalysisStats handles GET /api/stats
func (s *Server) handleAnalysisStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.analysis.Stats())
}

// handleCacheStats handles GET /api/cache/stats
func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.analysis.CacheStats(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

// handleClearCache handles DELETE /api/cache
func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	removed, err := s.analysis.ClearCache(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"removed": removed,
	})
}
