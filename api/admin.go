package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/garnizeh/folio/internal/fixtures"
	"github.com/garnizeh/folio/internal/models"
	"github.com/garnizeh/folio/pkg/repository"
	"github.com/gorilla/mux"
)

const maxRecordBytes = 1 << 20

// AdminHandler edits the dataset. Every write publishes a change event
// through the writer.
type AdminHandler struct {
	writer repository.Writer
}

func NewAdminHandler(w repository.Writer) *AdminHandler {
	return &AdminHandler{writer: w}
}

func (h *AdminHandler) collection(w http.ResponseWriter, r *http.Request) (models.Collection, bool) {
	if h.writer == nil {
		writeError(w, http.StatusServiceUnavailable, repository.ErrReadOnly.Error())
		return "", false
	}
	c, err := models.ParseCollection(mux.Vars(r)["collection"])
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return "", false
	}
	return c, true
}

// Put serves PUT /v1/admin/{collection}/{id}. It answers 201 for a new
// record and 200 for a replaced one.
func (h *AdminHandler) Put(w http.ResponseWriter, r *http.Request) {
	c, ok := h.collection(w, r)
	if !ok {
		return
	}
	b, err := io.ReadAll(io.LimitReader(r.Body, maxRecordBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}
	e, err := fixtures.Decode(c, b)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if id := mux.Vars(r)["id"]; e.EntityID() != id {
		writeError(w, http.StatusBadRequest, "id does not match path")
		return
	}

	inserted, err := h.writer.Upsert(r.Context(), c, e)
	if err != nil {
		if errors.Is(err, repository.ErrReadOnly) {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		logger.Error("upsert record", slog.String("collection", string(c)), slog.String("id", e.EntityID()), slog.Any("err", err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	status := http.StatusOK
	if inserted {
		status = http.StatusCreated
	}
	writeJSON(w, e, status)
}

func (h *AdminHandler) Delete(w http.ResponseWriter, r *http.Request) {
	c, ok := h.collection(w, r)
	if !ok {
		return
	}
	err := h.writer.Delete(r.Context(), c, mux.Vars(r)["id"])
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, repository.ErrReadOnly):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		logger.Error("delete record", slog.String("collection", string(c)), slog.Any("err", err))
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
