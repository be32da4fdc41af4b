package handler

import (
	"encoding/json"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/user/glance/internal/delivery/http/response"
	"github.com/user/glance/internal/usecase"
)

type Handler struct {
	status usecase.StatusReader
	logger *zap.Logger
}

func NewHandler(status usecase.StatusReader, logger *zap.Logger) *Handler {
	return &Handler{
		status: status,
		logger: logger.Named("http"),
	}
}

func (h *Handler) HandleGetStatus(w http.ResponseWriter, r *http.Request) {
	rawURL := r.URL.Query().Get("url")
	if rawURL == "" {
		h.writeJSONError(w, "URL query parameter is required", http.StatusBadRequest)
		return
	}

	if _, err := url.ParseRequestURI(rawURL); err != nil {
		h.writeJSONError(w, "Invalid URL format in query parameter", http.StatusBadRequest)
		return
	}

	status, err := h.status.GetStatus(r.Context(), rawURL)
	if err != nil {
		h.logger.Error("Failed to get processed status", zap.String("url", rawURL), zap.Error(err))
		h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, response.StatusResponse{
		URL:       status.URL,
		ID:        status.ID,
		Processed: status.Processed,
	})
}

func (h *Handler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	n, err := h.status.ProcessedCount(r.Context())
	if err != nil {
		h.logger.Error("Health check failed for processed set", zap.Error(err))
		h.writeJSON(w, http.StatusServiceUnavailable, response.HealthResponse{Status: "unhealthy"})
		return
	}
	h.writeJSON(w, http.StatusOK, response.HealthResponse{Status: "ok", Processed: n})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to write JSON response", zap.Error(err))
	}
}

func (h *Handler) writeJSONError(w http.ResponseWriter, message string, status int) {
	h.writeJSON(w, status, response.ErrorResponse{Error: message})
}
