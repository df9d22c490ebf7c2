package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rpattn/catalogaudit/internal/domain"
	"github.com/rpattn/catalogaudit/internal/middleware"
)

// HistoryReader is the ledger surface served over HTTP.
type HistoryReader interface {
	GetAllHistory(ctx context.Context, filter domain.HistoryFilter, page domain.Pagination) (domain.HistoryPage, error)
	GetEntityHistory(ctx context.Context, entityID uuid.UUID, entityType *domain.EntityType, page domain.Pagination) (domain.HistoryPage, error)
	ExportXLSX(ctx context.Context, filter domain.HistoryFilter, w io.Writer) (int, error)
	PageToPagination(page, limit int) domain.Pagination
}

// EntityDirectory lists registry records by type.
type EntityDirectory interface {
	GetEntitiesByType(ctx context.Context, entityType domain.EntityType, isActive bool) ([]domain.EntityRecord, error)
}

const (
	historyPrefix  = "/api/history"
	entityPrefix   = "/api/history/entity/"
	exportPath     = "/api/history/export.xlsx"
	directoryRoute = "/api/entities/"
	xlsxMimeType   = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	maxPageNumber  = math.MaxInt32
)

type Handler struct {
	history   HistoryReader
	directory EntityDirectory
	logger    *slog.Logger
}

// NewHTTPHandler serves the read-only audit endpoints under /api/.
func NewHTTPHandler(history HistoryReader, directory EntityDirectory, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{history: history, directory: directory, logger: logger.With("component", "httpapi")}
}

type historyResponse struct {
	Records []domain.HistoryRecord `json:"records"`
	Total   int                    `json:"total"`
	Page    int                    `json:"page"`
	Limit   int                    `json:"limit"`
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	path := strings.TrimSuffix(r.URL.Path, "/")
	switch {
	case path == exportPath:
		h.handleExport(w, r)
	case strings.HasPrefix(path, entityPrefix):
		h.handleEntityHistory(w, r, strings.TrimPrefix(path, entityPrefix))
	case path == historyPrefix:
		h.handleListHistory(w, r)
	case strings.HasPrefix(path, directoryRoute):
		h.handleDirectory(w, r, strings.TrimPrefix(path, directoryRoute))
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

func (h *Handler) handleListHistory(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	page, limit, err := parsePage(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	pagination := h.history.PageToPagination(page, limit)
	result, err := h.history.GetAllHistory(r.Context(), filter, pagination)
	if err != nil {
		h.logger.Error("list history failed", "error", err)
		http.Error(w, "failed to list history", http.StatusInternalServerError)
		return
	}
	h.refreshNames(r.Context(), result.Records)
	writeJSON(w, http.StatusOK, historyResponse{
		Records: result.Records,
		Total:   result.Total,
		Page:    pageNumber(pagination),
		Limit:   pagination.Limit,
	})
}

func (h *Handler) handleEntityHistory(w http.ResponseWriter, r *http.Request, idSegment string) {
	entityID, err := uuid.Parse(strings.TrimSpace(idSegment))
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid entity identifier: %v", err), http.StatusBadRequest)
		return
	}
	var entityType *domain.EntityType
	if raw := strings.TrimSpace(r.URL.Query().Get("entityType")); raw != "" {
		parsed, err := domain.ParseEntityType(raw)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		entityType = &parsed
	}
	page, limit, err := parsePage(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	pagination := h.history.PageToPagination(page, limit)
	result, err := h.history.GetEntityHistory(r.Context(), entityID, entityType, pagination)
	if err != nil {
		h.logger.Error("list entity history failed", "entity_id", entityID, "error", err)
		http.Error(w, "failed to list entity history", http.StatusInternalServerError)
		return
	}
	h.refreshNames(r.Context(), result.Records)
	writeJSON(w, http.StatusOK, historyResponse{
		Records: result.Records,
		Total:   result.Total,
		Page:    pageNumber(pagination),
		Limit:   pagination.Limit,
	})
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	// Buffered so a failed export still gets an error status.
	var buf bytes.Buffer
	rows, err := h.history.ExportXLSX(r.Context(), filter, &buf)
	if err != nil {
		h.logger.Error("history export failed", "rows", rows, "error", err)
		http.Error(w, "failed to export history", http.StatusInternalServerError)
		return
	}
	filename := fmt.Sprintf("audit-history-%s.xlsx", time.Now().UTC().Format("20060102-150405"))
	w.Header().Set("Content-Type", xlsxMimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.Warn("history export write failed", "rows", rows, "error", err)
		return
	}
	h.logger.Info("history exported", "rows", rows)
}

func (h *Handler) handleDirectory(w http.ResponseWriter, r *http.Request, typeSegment string) {
	entityType, err := domain.ParseEntityType(typeSegment)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	active := true
	if raw := strings.TrimSpace(r.URL.Query().Get("active")); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			http.Error(w, "active must be a boolean", http.StatusBadRequest)
			return
		}
		active = parsed
	}
	records, err := h.directory.GetEntitiesByType(r.Context(), entityType, active)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidEntityType) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Error("list entities failed", "entity_type", entityType, "error", err)
		http.Error(w, "failed to list entities", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *Handler) refreshNames(ctx context.Context, records []domain.HistoryRecord) {
	if loader := middleware.NameLoaderFromContext(ctx); loader != nil {
		loader.RefreshAffectedNames(ctx, records)
	}
}

func parseFilter(r *http.Request) (domain.HistoryFilter, error) {
	query := r.URL.Query()
	var filter domain.HistoryFilter
	if raw := strings.TrimSpace(query.Get("entityType")); raw != "" {
		entityType, err := domain.ParseEntityType(raw)
		if err != nil {
			return filter, err
		}
		filter.EntityType = &entityType
	}
	if raw := strings.TrimSpace(query.Get("startDate")); raw != "" {
		start, err := parseDate(raw, false)
		if err != nil {
			return filter, fmt.Errorf("invalid startDate: %w", err)
		}
		filter.StartDate = &start
	}
	if raw := strings.TrimSpace(query.Get("endDate")); raw != "" {
		end, err := parseDate(raw, true)
		if err != nil {
			return filter, fmt.Errorf("invalid endDate: %w", err)
		}
		filter.EndDate = &end
	}
	if raw := strings.TrimSpace(query.Get("createdBy")); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return filter, fmt.Errorf("invalid createdBy: %w", err)
		}
		filter.CreatedBy = &id
	}
	return filter, nil
}

// parseDate accepts RFC 3339 timestamps or plain dates. A plain end date
// covers the whole day.
func parseDate(raw string, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}

func parsePage(r *http.Request) (int, int, error) {
	query := r.URL.Query()
	page := 1
	if raw := strings.TrimSpace(query.Get("page")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return 0, 0, fmt.Errorf("page must be a positive integer")
		}
		if parsed > maxPageNumber {
			return 0, 0, fmt.Errorf("page must be at most %d", maxPageNumber)
		}
		page = parsed
	}
	limit := 0
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return 0, 0, fmt.Errorf("limit must be a positive integer")
		}
		limit = parsed
	}
	return page, limit, nil
}

func pageNumber(p domain.Pagination) int {
	if p.Limit <= 0 {
		return 1
	}
	return p.Skip/p.Limit + 1
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
