package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/garnizeh/folio/internal/models"
	"github.com/garnizeh/folio/pkg/repository"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, v any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("encode response", slog.Any("err", err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, errorResponse{Error: msg}, status)
}

// writeFetchError maps provider errors: a miss is a 404, an unknown
// collection a 400, anything else a 500.
func writeFetchError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, models.ErrUnknownCollection):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		logger.Error("fetch failed", slog.String("path", r.URL.Path), slog.String("request_id", RequestID(r.Context())), slog.Any("err", err))
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
