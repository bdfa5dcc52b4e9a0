package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/garnizeh/folio/internal/models"
	"github.com/garnizeh/folio/pkg/repository"
)

const (
	TypeContactDeliver         = "contact.deliver"
	TypeDocumentRequestDeliver = "document_request.deliver"
)

// Delivery forwards stored submissions to the site owner.
type Delivery struct {
	subs       repository.SubmissionRepo
	webhookURL string
	client     *http.Client
	logger     *slog.Logger
}

// NewDelivery posts submissions to webhookURL. With an empty url they are
// only logged.
func NewDelivery(subs repository.SubmissionRepo, webhookURL string, client *http.Client, logger *slog.Logger) *Delivery {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Delivery{subs: subs, webhookURL: webhookURL, client: client, logger: logger}
}

// Handlers returns the pool handlers for both delivery job types.
func (d *Delivery) Handlers() map[string]Handler {
	return map[string]Handler{
		TypeContactDeliver:         d.deliverContact,
		TypeDocumentRequestDeliver: d.deliverDocumentRequest,
	}
}

type webhookBody struct {
	Kind       string `json:"kind"`
	Submission any    `json:"submission"`
}

func (d *Delivery) deliverContact(ctx context.Context, j *Job) error {
	var m models.ContactMessage
	if err := json.Unmarshal(j.Payload, &m); err != nil {
		return fmt.Errorf("decode contact message: %w", err)
	}
	return d.deliver(ctx, repository.KindContact, m.ID, &m)
}

func (d *Delivery) deliverDocumentRequest(ctx context.Context, j *Job) error {
	var r models.DocumentRequest
	if err := json.Unmarshal(j.Payload, &r); err != nil {
		return fmt.Errorf("decode document request: %w", err)
	}
	return d.deliver(ctx, repository.KindDocumentRequest, r.ID, &r)
}

func (d *Delivery) deliver(ctx context.Context, kind, id string, submission any) error {
	if d.webhookURL == "" {
		d.logger.Info("submission received", slog.String("kind", kind), slog.String("id", id), slog.Any("submission", submission))
	} else if err := d.post(ctx, webhookBody{Kind: kind, Submission: submission}); err != nil {
		return err
	}
	if err := d.subs.UpdateSubmissionStatus(ctx, kind, id, models.SubmissionDelivered); err != nil {
		return fmt.Errorf("mark %s delivered: %w", kind, err)
	}
	return nil
}

func (d *Delivery) post(ctx context.Context, body webhookBody) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %d", resp.StatusCode)
	}
	return nil
}
