package models

import (
	"errors"
	"strings"
	"time"
)

// ProjectCard is the wire shape of GET /projects/cards.
type ProjectCard struct {
	ProjectID          string `json:"project_id"`
	ProjectName        string `json:"proj_name"`
	DisplayPhotoURL    string `json:"display_photo_url"`
	ProjectType        string `json:"project_type"`
	ProjectDescription string `json:"project_description"`
}

// CardType is the lowercase project type used on cards.
func (t ProjectType) CardType() string {
	return strings.ToLower(string(t))
}

type ContactPurpose string

const (
	PurposeProfessional  ContactPurpose = "professional"
	PurposeCollaboration ContactPurpose = "collaboration"
	PurposeProject       ContactPurpose = "project"
	PurposeOpportunity   ContactPurpose = "opportunity"
	PurposeAcademic      ContactPurpose = "academic"
	PurposePersonal      ContactPurpose = "personal"
	PurposeOther         ContactPurpose = "other"
)

var contactPurposes = map[ContactPurpose]bool{
	PurposeProfessional: true, PurposeCollaboration: true, PurposeProject: true,
	PurposeOpportunity: true, PurposeOther: true,
}

var requestPurposes = map[ContactPurpose]bool{
	PurposeProfessional: true, PurposeAcademic: true, PurposePersonal: true,
	PurposeCollaboration: true, PurposeOther: true,
}

const (
	SubmissionPending   = "pending"
	SubmissionDelivered = "delivered"
	SubmissionApproved  = "approved"
	SubmissionRejected  = "rejected"
)

// ContactMessage is a visitor message sent from the contact form.
type ContactMessage struct {
	ID        string         `json:"id"`
	MemberID  *string        `json:"member_id,omitempty"`
	Name      string         `json:"name"`
	Email     string         `json:"email"`
	Message   string         `json:"message"`
	Purpose   ContactPurpose `json:"purpose"`
	Status    string         `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
}

func (m *ContactMessage) Validate() error {
	if strings.TrimSpace(m.Name) == "" || strings.TrimSpace(m.Message) == "" {
		return errors.New("missing fields")
	}
	if !strings.Contains(m.Email, "@") {
		return errors.New("invalid email")
	}
	if m.Purpose == "" {
		m.Purpose = PurposeProfessional
	}
	if !contactPurposes[m.Purpose] {
		return errors.New("invalid purpose")
	}
	return nil
}

// DocumentRequest asks the owner of a non-public document for access.
type DocumentRequest struct {
	ID             string         `json:"id"`
	DocumentID     string         `json:"document_id"`
	RequesterEmail string         `json:"requester_email"`
	RequesterName  string         `json:"requester_name,omitempty"`
	Message        string         `json:"request_message,omitempty"`
	Purpose        ContactPurpose `json:"purpose"`
	Status         string         `json:"status"`
	RefCode        string         `json:"ref_code"`
	RequestDate    time.Time      `json:"request_date"`
}

func (r *DocumentRequest) Validate() error {
	if !strings.Contains(r.RequesterEmail, "@") {
		return errors.New("invalid email")
	}
	if r.Purpose == "" {
		r.Purpose = PurposeProfessional
	}
	if !requestPurposes[r.Purpose] {
		return errors.New("invalid purpose")
	}
	return nil
}
