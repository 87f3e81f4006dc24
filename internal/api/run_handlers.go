package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	iduuid "github.com/JakeFAU/site-analyzer/internal/id/uuid"
	"github.com/JakeFAU/site-analyzer/internal/store"
)

const (
	defaultRunLimit = 50
	maxRunLimit     = 500
	indexTimeout    = 3 * time.Second
)

// RunHandler exposes the read-only run index.
type RunHandler struct {
	index   store.RunIndex
	timeout time.Duration
	logger  *zap.Logger
}

// NewRunHandler wires the index and logger. A nil index makes every endpoint
// answer 503.
func NewRunHandler(index store.RunIndex, logger *zap.Logger) *RunHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RunHandler{
		index:   index,
		timeout: indexTimeout,
		logger:  logger,
	}
}

// ListRuns handles GET /api/analyses?status=&limit=&offset=. It returns
// {"analyses": [...]} on success, 400 for invalid filters, 503 when no index
// is configured, or 500 if the index call fails.
func (h *RunHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.index == nil {
		writeError(w, http.StatusServiceUnavailable, "run index unavailable")
		return
	}
	limit, offset, err := parseLimitOffset(r, defaultRunLimit, maxRunLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var status *store.RunStatus
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		parsed, parseErr := parseStatus(raw)
		if parseErr != nil {
			writeError(w, http.StatusBadRequest, parseErr.Error())
			return
		}
		status = &parsed
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	runs, err := h.index.ListRuns(ctx, status, limit, offset)
	if err != nil {
		h.logger.Error("list runs failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list analyses")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"analyses": toRunDTOs(runs)})
}

// GetRun handles GET /api/analyses/{analysis_id}.
func (h *RunHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	if h.index == nil {
		writeError(w, http.StatusServiceUnavailable, "run index unavailable")
		return
	}
	id, err := parseAnalysisID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	run, err := h.index.GetRun(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "analysis not found")
			return
		}
		h.logger.Error("get run failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load analysis")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"analysis": toRunDTO(run)})
}

func parseAnalysisID(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "analysis_id")
	if raw == "" {
		return uuid.UUID{}, errors.New("analysis_id is required")
	}
	id, err := iduuid.Parse(raw)
	if err != nil {
		return uuid.UUID{}, errors.New("invalid analysis_id")
	}
	return id, nil
}

func parseLimitOffset(r *http.Request, def, maxLimit int) (int, int, error) {
	q := r.URL.Query()
	limit := def
	if limStr := q.Get("limit"); limStr != "" {
		val, err := strconv.Atoi(limStr)
		if err != nil || val <= 0 {
			return 0, 0, errors.New("invalid limit")
		}
		limit = min(val, maxLimit)
	}
	offset := 0
	if offStr := q.Get("offset"); offStr != "" {
		val, err := strconv.Atoi(offStr)
		if err != nil || val < 0 {
			return 0, 0, errors.New("invalid offset")
		}
		offset = val
	}
	return limit, offset, nil
}

func parseStatus(input string) (store.RunStatus, error) {
	switch strings.ToLower(input) {
	case "running":
		return store.RunRunning, nil
	case "success", "completed":
		return store.RunSuccess, nil
	case "error", "failed", "failure":
		return store.RunError, nil
	default:
		return "", errors.New("invalid status")
	}
}

func toRunDTOs(in []store.RunRecord) []runDTO {
	out := make([]runDTO, 0, len(in))
	for _, run := range in {
		out = append(out, toRunDTO(run))
	}
	return out
}

func toRunDTO(run store.RunRecord) runDTO {
	return runDTO{
		ID:           run.ID.String(),
		URL:          run.URL,
		Domain:       run.Domain,
		FullMode:     run.FullMode,
		StartedAt:    run.StartedAt,
		FinishedAt:   run.FinishedAt,
		Status:       string(run.Status),
		PagesVisited: run.PagesVisited,
		PagesFailed:  run.PagesFailed,
		LinksFound:   run.LinksFound,
		LastUpdate:   run.LastUpdate,
		Error:        run.ErrorMessage,
	}
}

type runDTO struct {
	ID           string     `json:"id"`
	URL          string     `json:"url"`
	Domain       string     `json:"domain"`
	FullMode     bool       `json:"full_mode"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	Status       string     `json:"status"`
	PagesVisited int64      `json:"pages_visited"`
	PagesFailed  int64      `json:"pages_failed"`
	LinksFound   int64      `json:"links_found"`
	LastUpdate   time.Time  `json:"last_update"`
	Error        *string    `json:"error,omitempty"`
}
