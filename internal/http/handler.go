package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/davidbz/modelarena/internal/domain"
	"github.com/davidbz/modelarena/internal/history"
	"github.com/davidbz/modelarena/internal/observability"
)

// userIDHeader carries the caller identity for owner-scoped history
// operations. There is no authentication layer; the header is trusted.
const userIDHeader = "X-User-Id"

// Handler handles the REST surface: the model catalog and history browsing.
type Handler struct {
	history *history.Service
}

// NewHandler creates a new HTTP handler (DI constructor).
func NewHandler(historyService *history.Service) *Handler {
	return &Handler{
		history: historyService,
	}
}

// modelInfo is the catalog listing shape.
type modelInfo struct {
	ID              domain.ModelID `json:"id"`
	DisplayName     string         `json:"displayName"`
	Provider        string         `json:"provider"`
	Description     string         `json:"description"`
	ContextWindow   int            `json:"contextWindow"`
	CostPer1KTokens float64        `json:"costPer1kTokens"`
}

// HandleModels lists the model catalog.
func (h *Handler) HandleModels(w http.ResponseWriter, r *http.Request) {
	ids := domain.CatalogIDs()
	models := make([]modelInfo, 0, len(ids))
	for _, id := range ids {
		meta, _ := domain.Lookup(id)
		models = append(models, modelInfo{
			ID:              id,
			DisplayName:     meta.DisplayName,
			Provider:        meta.Provider,
			Description:     meta.Description,
			ContextWindow:   meta.ContextWindow,
			CostPer1KTokens: meta.CostPer1KTokens,
		})
	}

	writeJSON(r, w, http.StatusOK, map[string]any{
		"models":  models,
		"default": domain.DefaultModels(),
	})
}

// HandleHistoryList lists comparison history. A sessionId query parameter
// scopes the listing to one session, a userId parameter to one owner,
// otherwise all records are listed.
func (h *Handler) HandleHistoryList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var items []history.Item
	var err error
	switch {
	case r.URL.Query().Get("sessionId") != "":
		items, err = h.history.SessionHistory(ctx, r.URL.Query().Get("sessionId"))
	case r.URL.Query().Get("userId") != "":
		items, err = h.history.UserHistory(ctx, r.URL.Query().Get("userId"))
	default:
		items, err = h.history.AllHistory(ctx)
	}
	if err != nil {
		observability.FromContext(ctx).Error("history listing failed", zap.Error(err))
		http.Error(w, "failed to load history", http.StatusInternalServerError)
		return
	}

	writeJSON(r, w, http.StatusOK, map[string]any{"history": items})
}

// HandleHistoryItem returns one history entry.
func (h *Handler) HandleHistoryItem(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	item, err := h.history.Item(r.Context(), id, r.Header.Get(userIDHeader))
	if err != nil {
		writeHistoryError(r, w, id, err)
		return
	}

	writeJSON(r, w, http.StatusOK, item)
}

// HandleHistoryDelete removes one history entry.
func (h *Handler) HandleHistoryDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.history.Delete(r.Context(), id, r.Header.Get(userIDHeader)); err != nil {
		writeHistoryError(r, w, id, err)
		return
	}

	writeJSON(r, w, http.StatusOK, map[string]any{"deleted": id})
}

// HandleHistoryDeleteAll removes every history entry owned by the caller.
func (h *Handler) HandleHistoryDeleteAll(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get(userIDHeader)
	if userID == "" {
		http.Error(w, "X-User-Id header is required", http.StatusBadRequest)
		return
	}

	count, err := h.history.DeleteAll(r.Context(), userID)
	if err != nil {
		observability.FromContext(r.Context()).Error("history clear failed", zap.Error(err))
		http.Error(w, "failed to clear history", http.StatusInternalServerError)
		return
	}

	writeJSON(r, w, http.StatusOK, map[string]any{"deleted": count})
}

// HandleHealth handles health check requests.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(r, w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

func writeHistoryError(r *http.Request, w http.ResponseWriter, id string, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, "history item not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrForbidden):
		http.Error(w, "history item belongs to another user", http.StatusForbidden)
	default:
		observability.FromContext(r.Context()).Error("history operation failed",
			zap.String("comparison_id", id),
			zap.Error(err),
		)
		http.Error(w, "history operation failed", http.StatusInternalServerError)
	}
}

func writeJSON(r *http.Request, w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		// Already written status, can't change it, just log.
		observability.FromContext(r.Context()).Error("failed to encode response", zap.Error(err))
	}
}
