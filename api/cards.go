package api

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/garnizeh/folio/internal/portfolio"
)

type CardsHandler struct {
	svc *portfolio.Service
}

func NewCardsHandler(svc *portfolio.Service) *CardsHandler {
	return &CardsHandler{svc: svc}
}

// ProjectCards serves GET /projects/cards as a bare array.
func (h *CardsHandler) ProjectCards(w http.ResponseWriter, r *http.Request) {
	cards, err := h.svc.ProjectCards(r.Context())
	if err != nil {
		logger.Error("project cards", slog.String("request_id", RequestID(r.Context())), slog.Any("err", err))
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed To fetch Card Data with error:%v", err))
		return
	}
	writeJSON(w, cards, http.StatusOK)
}
