package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/filestore"
	"github.com/starford/ansuz/internal/index"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/reconcile"
	"github.com/starford/ansuz/internal/recordservice"
	"github.com/starford/ansuz/internal/search"
	"github.com/starford/ansuz/internal/sse"
)

// Handler holds API route handlers.
type Handler struct {
	records  *recordservice.Service
	searcher *search.Service
	runPass  func(ctx context.Context) (reconcile.Stats, error)
	broker   *sse.Broker
}

// NewHandler creates a new Handler. runPass triggers a reconciliation pass and
// returns its stats; broker (if non-nil) receives record change events.
func NewHandler(records *recordservice.Service, searcher *search.Service, runPass func(ctx context.Context) (reconcile.Stats, error), broker *sse.Broker) *Handler {
	return &Handler{records: records, searcher: searcher, runPass: runPass, broker: broker}
}

func (h *Handler) publish(kind, id string) {
	if h.broker != nil {
		h.broker.PublishRecordEvent(kind, id)
	}
}

// ListRecords handles GET /api/records.
func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	opts := index.ListOptions{
		Type:   models.Type(q.Get("type")),
		Status: models.Status(q.Get("status")),
		Limit:  limit,
		Offset: offset,
	}
	if from := q.Get("from"); from != "" {
		t, err := parseDate(from)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("invalid 'from' date"))
			return
		}
		opts.DateFrom = t
	}
	if to := q.Get("to"); to != "" {
		t, err := parseDate(to)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("invalid 'to' date"))
			return
		}
		opts.DateTo = t
	}

	rows, err := h.records.List(r.Context(), opts)
	if err != nil {
		slog.Error("list records failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}

	items := make([]RecordListItem, len(rows))
	for i, row := range rows {
		items[i] = RecordListItem{
			ID:       row.ID,
			Type:     row.Type,
			Title:    row.Title,
			Category: row.Category,
			Status:   row.Status,
			Tags:     row.Tags,
			Created:  row.Created,
			Updated:  row.Updated,
		}
	}
	writeJSON(w, http.StatusOK, RecordListResponse{Records: items})
}

// GetRecord handles GET /api/records/{id}.
func (h *Handler) GetRecord(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := h.records.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("get record failed", slog.String("id", id), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// CreateRecord handles POST /api/records.
func (h *Handler) CreateRecord(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req CreateRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Type == "" || req.Title == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("type and title are required"))
		return
	}
	if !models.Type(req.Type).Valid() {
		writeJSON(w, http.StatusBadRequest, errorBody("unknown record type"))
		return
	}

	rec := &models.Record{
		Type:        models.Type(req.Type),
		Title:       req.Title,
		Body:        req.Body,
		Tags:        req.Tags,
		Links:       req.Links,
		Category:    req.Category,
		SourceURL:   req.SourceURL,
		Author:      req.Author,
		Gist:        req.Gist,
		Status:      models.Status(req.Status),
		InputSource: req.InputSource,
		ImagePath:   req.ImagePath,
		OCRText:     req.OCRText,
	}
	created, err := h.records.Create(r.Context(), rec)
	if err != nil {
		if errors.Is(err, apperr.ErrAlreadyExists) || errors.Is(err, apperr.ErrConflict) {
			writeJSON(w, http.StatusConflict, errorBody("record already exists"))
		} else {
			slog.Error("create record failed", slog.String("title", req.Title), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	h.publish("created", created.ID)
	writeJSON(w, http.StatusCreated, created)
}

// UpdateRecord handles PATCH /api/records/{id}.
func (h *Handler) UpdateRecord(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	id := chi.URLParam(r, "id")

	var req UpdateRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}

	patch := filestore.Patch{
		Title:       req.Title,
		Tags:        req.Tags,
		Links:       req.Links,
		Category:    req.Category,
		SourceURL:   req.SourceURL,
		Author:      req.Author,
		Gist:        req.Gist,
		InputSource: req.InputSource,
		ImagePath:   req.ImagePath,
		OCRText:     req.OCRText,
	}
	if req.Status != nil {
		status := models.Status(*req.Status)
		switch status {
		case models.StatusSaved, models.StatusRead, models.StatusArchived:
			patch.Status = &status
		default:
			writeJSON(w, http.StatusBadRequest, errorBody("unknown status"))
			return
		}
	}

	rec, err := h.records.Update(r.Context(), id, patch, req.Body)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("update record failed", slog.String("id", id), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	h.publish("updated", id)
	writeJSON(w, http.StatusOK, rec)
}

// DeleteRecord handles DELETE /api/records/{id}.
func (h *Handler) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.records.Delete(r.Context(), id); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("delete record failed", slog.String("id", id), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	h.publish("deleted", id)
	w.WriteHeader(http.StatusNoContent)
}

// Related handles GET /api/records/{id}/related.
func (h *Handler) Related(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	related, err := h.records.Related(r.Context(), id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("related failed", slog.String("id", id), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	if related == nil {
		related = []string{}
	}
	writeJSON(w, http.StatusOK, RelatedResponse{Related: related})
}

// Search handles GET /api/search.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	typeFilter := models.Type(r.URL.Query().Get("type"))
	mode := r.URL.Query().Get("mode")
	if mode == "" {
		mode = "hybrid"
	}

	var results []search.Result
	var err error
	switch mode {
	case "keyword":
		results, err = h.searcher.Keyword(r.Context(), q, typeFilter, limit)
	case "semantic":
		results, err = h.searcher.Semantic(r.Context(), q, typeFilter, limit)
	case "hybrid":
		results, err = h.searcher.Hybrid(r.Context(), q, typeFilter, limit)
	default:
		writeJSON(w, http.StatusBadRequest, errorBody("mode must be keyword, semantic, or hybrid"))
		return
	}
	if err != nil {
		slog.Error("search failed", slog.String("query", q), slog.String("mode", mode), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if results == nil {
		results = []search.Result{}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

// Reconcile handles POST /api/reconcile.
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	stats, err := h.runPass(r.Context())
	if err != nil {
		slog.Error("reconcile failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, ReconcileResponse{Stats: stats})
}

// parseDate accepts bare dates and RFC 3339 timestamps.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
