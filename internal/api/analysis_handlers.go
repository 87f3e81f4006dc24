package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/site-analyzer/internal/analyzer"
)

type analyzeRequest struct {
	URL      string `json:"url"`
	FullMode bool   `json:"fullMode"`
}

type analyzeResponse struct {
	Message    string `json:"message"`
	AnalysisID string `json:"analysisId"`
	URL        string `json:"url"`
}

type statusResponse struct {
	Status    analyzer.Status    `json:"status"`
	Progress  float64            `json:"progress"`
	URL       string             `json:"url"`
	Domain    string             `json:"domain"`
	Summaries []analyzer.Summary `json:"summaries"`
	Error     string             `json:"error,omitempty"`
}

type searchRequest struct {
	Domain string `json:"domain"`
	Query  string `json:"query"`
}

// startAnalysis handles POST /api/analyze-website.
func (s *Server) startAnalysis(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		writeError(w, http.StatusBadRequest, "URL is required")
		return
	}
	id, err := s.deps.Analyses.Start(r.Context(), req.URL, req.FullMode)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			s.logger.Error("start analysis failed", zap.String("url", req.URL), zap.Error(err))
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, analyzeResponse{
		Message:    "Website analysis started",
		AnalysisID: id,
		URL:        req.URL,
	})
}

// analysisStatus handles GET /api/analyze-website?analysisId=.
func (s *Server) analysisStatus(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.URL.Query().Get("analysisId"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "Missing analysisId parameter")
		return
	}
	run, err := s.deps.Logs.Read(r.Context(), id)
	if err != nil {
		if !errors.Is(err, analyzer.ErrNotFound) {
			s.logger.Error("read progress log failed", zap.String("analysis_id", id), zap.Error(err))
		}
		writeError(w, http.StatusNotFound, "Analysis log not found or invalid")
		return
	}
	summaries := run.Summaries
	if summaries == nil {
		summaries = []analyzer.Summary{}
	}
	writeJSON(w, http.StatusOK, statusResponse{
		Status:    run.Status,
		Progress:  run.Progress,
		URL:       run.URL,
		Domain:    run.Domain,
		Summaries: summaries,
		Error:     run.Error,
	})
}

// searchWebsite handles POST /api/search-website.
func (s *Server) searchWebsite(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	switch {
	case strings.TrimSpace(req.Domain) == "":
		writeError(w, http.StatusBadRequest, "Domain is required")
		return
	case strings.TrimSpace(req.Query) == "":
		writeError(w, http.StatusBadRequest, "Search query is required")
		return
	}
	resp, err := s.deps.Search.Search(r.Context(), req.Domain, req.Query)
	if err != nil {
		switch status := statusFor(err); status {
		case http.StatusNotFound:
			writeJSON(w, status, map[string]string{
				"error":   "Website data not found",
				"details": "No analysis data found for domain: " + req.Domain,
			})
		case http.StatusBadRequest:
			writeError(w, status, err.Error())
		default:
			s.logger.Error("search failed", zap.String("domain", req.Domain), zap.Error(err))
			writeError(w, status, "An error occurred during search")
		}
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// websiteData handles GET /websites/{domain}.json.
func (s *Server) websiteData(w http.ResponseWriter, r *http.Request) {
	domain, ok := strings.CutSuffix(chi.URLParam(r, "file"), ".json")
	if !ok || domain == "" {
		writeError(w, http.StatusNotFound, "Website data not found")
		return
	}
	record, err := s.deps.Artifacts.Load(r.Context(), domain)
	if err != nil {
		if errors.Is(err, analyzer.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Website data not found")
			return
		}
		s.logger.Error("load site record failed", zap.String("domain", domain), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load website data")
		return
	}
	writeJSON(w, http.StatusOK, record)
}
