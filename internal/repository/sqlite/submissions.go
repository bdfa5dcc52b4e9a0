package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/garnizeh/folio/internal/models"
	"github.com/garnizeh/folio/pkg/repository"
)

func (r *SQLiteRepo) CreateContactMessage(ctx context.Context, m *models.ContactMessage) error {
	if m == nil {
		return fmt.Errorf("contact message is nil")
	}
	if m.Status == "" {
		m.Status = models.SubmissionPending
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	ts := m.CreatedAt.UTC().UnixMilli()
	_, err := r.conn.Exec(ctx, `INSERT INTO contact_messages (id, member_id, name, email, message, purpose, status, created, updated) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.MemberID, m.Name, m.Email, m.Message, string(m.Purpose), m.Status, ts, ts)
	if err != nil {
		return fmt.Errorf("insert contact message: %w", err)
	}
	return nil
}

func (r *SQLiteRepo) CreateDocumentRequest(ctx context.Context, req *models.DocumentRequest) error {
	if req == nil {
		return fmt.Errorf("document request is nil")
	}
	if req.Status == "" {
		req.Status = models.SubmissionPending
	}
	if req.RequestDate.IsZero() {
		req.RequestDate = time.Now().UTC()
	}
	ts := req.RequestDate.UTC().UnixMilli()
	_, err := r.conn.Exec(ctx, `INSERT INTO document_requests (id, document_id, requester_email, requester_name, message, purpose, status, ref_code, created, updated) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		req.ID, req.DocumentID, req.RequesterEmail, req.RequesterName, req.Message, string(req.Purpose), req.Status, req.RefCode, ts, ts)
	if err != nil {
		return fmt.Errorf("insert document request: %w", err)
	}
	return nil
}

// UpdateSubmissionStatus sets the status of a contact message or document
// request.
func (r *SQLiteRepo) UpdateSubmissionStatus(ctx context.Context, kind, id, status string) error {
	var table string
	switch kind {
	case repository.KindContact:
		table = "contact_messages"
	case repository.KindDocumentRequest:
		table = "document_requests"
	default:
		return fmt.Errorf("unknown submission kind %q", kind)
	}
	res, err := r.conn.Exec(ctx, `UPDATE `+table+` SET status = ?, updated = ? WHERE id = ?`, status, now(), id)
	if err != nil {
		return fmt.Errorf("update %s status: %w", kind, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s/%s: %w", kind, id, repository.ErrNotFound)
	}
	return nil
}

// SubmissionStatus returns the stored status of a submission.
func (r *SQLiteRepo) SubmissionStatus(ctx context.Context, kind, id string) (string, error) {
	var q string
	switch kind {
	case repository.KindContact:
		q = `SELECT status FROM contact_messages WHERE id = ?`
	case repository.KindDocumentRequest:
		q = `SELECT status FROM document_requests WHERE id = ?`
	default:
		return "", fmt.Errorf("unknown submission kind %q", kind)
	}
	var status string
	if err := r.conn.QueryRow(ctx, q, id).Scan(&status); err != nil {
		return "", err
	}
	return status, nil
}
