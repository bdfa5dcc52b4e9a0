package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/garnizeh/folio/internal/jobs"
	"github.com/garnizeh/folio/internal/models"
	"github.com/garnizeh/folio/pkg/repository"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// SubmissionHandler stores visitor submissions and queues their delivery.
type SubmissionHandler struct {
	provider repository.Provider
	subs     repository.SubmissionRepo
	queue    jobs.Enqueuer
}

// NewSubmissionHandler creates the handler. queue may be nil, in which case
// submissions are stored but not delivered.
func NewSubmissionHandler(p repository.Provider, subs repository.SubmissionRepo, queue jobs.Enqueuer) *SubmissionHandler {
	return &SubmissionHandler{provider: p, subs: subs, queue: queue}
}

type contactRequest struct {
	MemberID *string               `json:"member_id,omitempty"`
	Name     string                `json:"name"`
	Email    string                `json:"email"`
	Message  string                `json:"message"`
	Purpose  models.ContactPurpose `json:"purpose"`
}

type submissionResponse struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	RefCode string `json:"ref_code,omitempty"`
}

// Contact serves POST /v1/contact.
func (h *SubmissionHandler) Contact(w http.ResponseWriter, r *http.Request) {
	var req contactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}
	m := &models.ContactMessage{
		ID:        uuid.NewString(),
		MemberID:  req.MemberID,
		Name:      strings.TrimSpace(req.Name),
		Email:     strings.TrimSpace(req.Email),
		Message:   strings.TrimSpace(req.Message),
		Purpose:   req.Purpose,
		Status:    models.SubmissionPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := m.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if m.MemberID != nil {
		if _, err := h.provider.FetchByID(r.Context(), models.Members, *m.MemberID); err != nil {
			writeFetchError(w, r, err)
			return
		}
	}
	if err := h.subs.CreateContactMessage(r.Context(), m); err != nil {
		logger.Error("store contact message", slog.Any("err", err))
		writeError(w, http.StatusInternalServerError, "Error storing message")
		return
	}
	h.enqueue(r, jobs.TypeContactDeliver, m.ID, m)
	writeJSON(w, submissionResponse{ID: m.ID, Status: m.Status}, http.StatusAccepted)
}

type documentRequestBody struct {
	RequesterEmail string                `json:"requester_email"`
	RequesterName  string                `json:"requester_name"`
	Message        string                `json:"request_message"`
	Purpose        models.ContactPurpose `json:"purpose"`
}

var errPublicDocument = errors.New("document is public")

// RequestDocument serves POST /v1/documents/{id}/requests. Only private and
// read-only documents accept requests.
func (h *SubmissionHandler) RequestDocument(w http.ResponseWriter, r *http.Request) {
	var body documentRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}
	docID := mux.Vars(r)["id"]
	doc, err := repository.Get[models.Document](r.Context(), h.provider, models.Documents, docID)
	if err != nil {
		writeFetchError(w, r, err)
		return
	}
	if doc.Privacy == models.PrivacyPublic {
		writeError(w, http.StatusConflict, errPublicDocument.Error())
		return
	}

	id := uuid.New()
	req := &models.DocumentRequest{
		ID:             id.String(),
		DocumentID:     doc.ID,
		RequesterEmail: strings.TrimSpace(body.RequesterEmail),
		RequesterName:  strings.TrimSpace(body.RequesterName),
		Message:        strings.TrimSpace(body.Message),
		Purpose:        body.Purpose,
		Status:         models.SubmissionPending,
		RefCode:        RefCode(id),
		RequestDate:    time.Now().UTC(),
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.subs.CreateDocumentRequest(r.Context(), req); err != nil {
		logger.Error("store document request", slog.Any("err", err))
		writeError(w, http.StatusInternalServerError, "Error storing request")
		return
	}
	h.enqueue(r, jobs.TypeDocumentRequestDeliver, req.ID, req)
	writeJSON(w, submissionResponse{ID: req.ID, Status: req.Status, RefCode: req.RefCode}, http.StatusCreated)
}

// RefCode derives the REQ-XXXXXXXX reference shown to requesters.
func RefCode(id uuid.UUID) string {
	hex := strings.ReplaceAll(id.String(), "-", "")
	return "REQ-" + strings.ToUpper(hex[:8])
}

func (h *SubmissionHandler) enqueue(r *http.Request, typ, id string, payload any) {
	if h.queue == nil {
		return
	}
	if _, err := h.queue.Enqueue(r.Context(), typ, payload, 10, 5); err != nil {
		logger.Warn("enqueue delivery", slog.String("type", typ), slog.String("id", id), slog.Any("err", err))
	}
}
