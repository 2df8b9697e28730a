package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dkotova/rewritepipe/internal/queue"
	"github.com/dkotova/rewritepipe/internal/task"
)

type Handler struct {
	queue *queue.Queue
}

func NewHandler(q *queue.Queue) *Handler {
	return &Handler{queue: q}
}

type CreateRewriteRequest struct {
	Source  task.Source  `json:"source"`
	Options task.Options `json:"options"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// CreateRewrite starts a rewrite task. The task record is written and its id
// queued before this returns; no pipeline work happens on this request.
func (h *Handler) CreateRewrite(w http.ResponseWriter, r *http.Request) {
	var req CreateRewriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	switch req.Source.Kind {
	case task.SourceURL, task.SourceText:
		if req.Source.Value == "" {
			respondError(w, http.StatusBadRequest, "source.value is required")
			return
		}
	case task.SourceItem:
		if req.Source.Ref == "" {
			respondError(w, http.StatusBadRequest, "source.ref is required")
			return
		}
	default:
		respondError(w, http.StatusBadRequest, "source.kind must be url, text or item")
		return
	}

	t, err := h.queue.Create(r.Context(), req.Source, req.Options)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusCreated, t)
}

// GetRewrite is the polling read. An unknown or expired id is 404, which
// clients must treat as a different condition than a failed task.
func (h *Handler) GetRewrite(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	t, err := h.queue.Get(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if t == nil {
		respondError(w, http.StatusNotFound, "task not found")
		return
	}

	respondJSON(w, http.StatusOK, t)
}

func (h *Handler) ListRewrites(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.queue.List(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, tasks)
}

// CancelRewrite requests cooperative cancellation. The pipeline honors the
// flag between chunks and at stage boundaries.
func (h *Handler) CancelRewrite(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	t, err := h.queue.Get(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if t == nil {
		respondError(w, http.StatusNotFound, "task not found")
		return
	}
	if t.Status.Terminal() {
		respondError(w, http.StatusConflict, "task already finished")
		return
	}

	t, err = h.queue.Cancel(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusAccepted, t)
}

func (h *Handler) DeleteRewrite(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	t, err := h.queue.Get(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if t == nil {
		respondError(w, http.StatusNotFound, "task not found")
		return
	}

	if err := h.queue.Delete(r.Context(), id); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, ErrorResponse{Error: message})
}
