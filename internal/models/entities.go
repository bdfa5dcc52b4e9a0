package models

import (
	"fmt"
	"time"
)

type Organization struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	Objective     string    `json:"objective"`
	About         string    `json:"about"`
	WebsiteURL    *string   `json:"website_url,omitempty"`
	LogoURL       *string   `json:"logo_url,omitempty"`
	CoverPhotoURL *string   `json:"cover_photo_url,omitempty"`
	Email         *string   `json:"email,omitempty"`
	Phone         *string   `json:"phone,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (o *Organization) EntityID() string { return o.ID }

type Member struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Email           string    `json:"email"`
	Role            string    `json:"role"`
	ExpertiseAreas  []string  `json:"expertise_areas,omitempty"`
	Bio             *string   `json:"bio,omitempty"`
	Objective       *string   `json:"objective,omitempty"`
	About           *string   `json:"about,omitempty"`
	DisplayPhotoURL *string   `json:"display_photo_url,omitempty"`
	CoverPhotoURL   *string   `json:"cover_photo_url,omitempty"`
	OrganizationID  *string   `json:"organization_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (m *Member) EntityID() string { return m.ID }

// OwnerRef is the weak reference to the member's organization. A member
// without one yields an owner that never resolves.
func (m *Member) OwnerRef() Owner {
	if m.OrganizationID == nil {
		return Owner{}
	}
	return OrganizationOwner(*m.OrganizationID)
}

type Project struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Details     string        `json:"details,omitempty"`
	OwnerID     string        `json:"owner_id"`
	OwnerType   OwnerType     `json:"owner_type"`
	Status      ProjectStatus `json:"status"`
	ProjectType ProjectType   `json:"project_type"`
	StartDate   *time.Time    `json:"start_date,omitempty"`
	EndDate     *time.Time    `json:"end_date,omitempty"`
	GithubURL   *string       `json:"github_url,omitempty"`
	LiveURL     *string       `json:"live_url,omitempty"`
	MediaURL    *string       `json:"media_url,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

func (p *Project) EntityID() string { return p.ID }
func (p *Project) OwnerRef() Owner  { return Owner{Type: p.OwnerType, ID: p.OwnerID} }

func (p *Project) Validate() error {
	if !p.OwnerType.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownOwnerType, p.OwnerType)
	}
	if !p.Status.Valid() {
		return fmt.Errorf("invalid project status %q", p.Status)
	}
	if !p.ProjectType.Valid() {
		return fmt.Errorf("invalid project type %q", p.ProjectType)
	}
	return nil
}

type ProjectPhoto struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	PhotoURL  string    `json:"photo_url"`
	Caption   *string   `json:"caption,omitempty"`
	Order     int       `json:"order"`
	CreatedAt time.Time `json:"created_at"`
}

func (p *ProjectPhoto) EntityID() string   { return p.ID }
func (p *ProjectPhoto) ProjectRef() string { return p.ProjectID }

type Technology struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Category string  `json:"category"`
	IconURL  *string `json:"icon_url,omitempty"`
	Color    *string `json:"color,omitempty"`
}

func (t *Technology) EntityID() string { return t.ID }

type ProjectTechnology struct {
	ID             string `json:"id"`
	ProjectID      string `json:"project_id"`
	TechnologyID   string `json:"technology_id"`
	PercentageUsed int    `json:"percentage_used"`
}

func (pt *ProjectTechnology) EntityID() string   { return pt.ID }
func (pt *ProjectTechnology) ProjectRef() string { return pt.ProjectID }

type Skill struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	MasteryPercentage int       `json:"mastery_percentage"`
	Category          *string   `json:"category,omitempty"`
	OwnerID           string    `json:"owner_id"`
	OwnerType         OwnerType `json:"owner_type"`
}

func (s *Skill) EntityID() string { return s.ID }
func (s *Skill) OwnerRef() Owner  { return Owner{Type: s.OwnerType, ID: s.OwnerID} }

func (s *Skill) Validate() error {
	if !s.OwnerType.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownOwnerType, s.OwnerType)
	}
	if s.MasteryPercentage < 0 || s.MasteryPercentage > 100 {
		return fmt.Errorf("mastery percentage out of range: %d", s.MasteryPercentage)
	}
	return nil
}

type Contact struct {
	ID          string      `json:"id"`
	OwnerID     string      `json:"owner_id"`
	OwnerType   OwnerType   `json:"owner_type"`
	ContactType ContactType `json:"contact_type"`
	Value       string      `json:"value"`
	IsPrimary   bool        `json:"is_primary"`
}

func (c *Contact) EntityID() string { return c.ID }
func (c *Contact) OwnerRef() Owner  { return Owner{Type: c.OwnerType, ID: c.OwnerID} }

func (c *Contact) Validate() error {
	if !c.OwnerType.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownOwnerType, c.OwnerType)
	}
	if !c.ContactType.Valid() {
		return fmt.Errorf("invalid contact type %q", c.ContactType)
	}
	return nil
}

type Review struct {
	ID              string    `json:"id"`
	ProjectID       string    `json:"project_id"`
	ReviewerName    string    `json:"reviewer_name"`
	ReviewerRole    string    `json:"reviewer_role"`
	ReviewerCompany *string   `json:"reviewer_company,omitempty"`
	Comment         string    `json:"comment"`
	Rating          int       `json:"rating"`
	CreatedAt       time.Time `json:"created_at"`
}

func (r *Review) EntityID() string   { return r.ID }
func (r *Review) ProjectRef() string { return r.ProjectID }

func (r *Review) Validate() error {
	if r.Rating < 1 || r.Rating > 5 {
		return fmt.Errorf("rating out of range: %d", r.Rating)
	}
	return nil
}

type WorkExperience struct {
	ID          string     `json:"id"`
	MemberID    string     `json:"member_id"`
	CompanyName string     `json:"company_name"`
	JobTitle    string     `json:"job_title"`
	WorkType    WorkType   `json:"work_type"`
	Description *string    `json:"description,omitempty"`
	StartDate   time.Time  `json:"start_date"`
	EndDate     *time.Time `json:"end_date,omitempty"`
	IsCurrent   bool       `json:"is_current"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (w *WorkExperience) EntityID() string { return w.ID }
func (w *WorkExperience) OwnerRef() Owner  { return MemberOwner(w.MemberID) }

func (w *WorkExperience) Validate() error {
	if !w.WorkType.Valid() {
		return fmt.Errorf("invalid work type %q", w.WorkType)
	}
	return nil
}

type Document struct {
	ID            string          `json:"id"`
	MemberID      string          `json:"member_id"`
	Name          string          `json:"document_name"`
	Description   *string         `json:"description,omitempty"`
	FileName      string          `json:"file_name"`
	FileSize      int64           `json:"file_size"`
	FileType      string          `json:"file_type"`
	FileExtension string          `json:"file_extension"`
	DocumentType  DocumentType    `json:"document_type"`
	Privacy       DocumentPrivacy `json:"document_privacy"`
	UploadDate    time.Time       `json:"upload_date"`
	LastModified  time.Time       `json:"last_modified"`
	DownloadCount int             `json:"download_count"`
	Tags          []string        `json:"tags"`
	ThumbnailURL  *string         `json:"thumbnail_url,omitempty"`
	StorageURL    *string         `json:"storage_url,omitempty"`
	IsFeatured    bool            `json:"is_featured"`
}

func (d *Document) EntityID() string { return d.ID }
func (d *Document) OwnerRef() Owner  { return MemberOwner(d.MemberID) }

func (d *Document) Validate() error {
	if !d.DocumentType.Valid() {
		return fmt.Errorf("invalid document type %q", d.DocumentType)
	}
	if !d.Privacy.Valid() {
		return fmt.Errorf("invalid document privacy %q", d.Privacy)
	}
	return nil
}

type Certificate struct {
	ID               string           `json:"id"`
	MemberID         string           `json:"member_id"`
	Name             string           `json:"cert_name"`
	Description      string           `json:"cert_description"`
	Provider         string           `json:"cert_provider"`
	IssueDate        time.Time        `json:"issue_date"`
	ExpiryDate       *time.Time       `json:"expiry_date,omitempty"`
	CredentialID     string           `json:"credential_id"`
	CredentialURL    *string          `json:"credential_url,omitempty"`
	SkillsCovered    []string         `json:"skills_covered"`
	Level            CertificateLevel `json:"level"`
	CertificateImage *string          `json:"certificate_image,omitempty"`
	BadgeColor       string           `json:"badge_color"`
	IsValid          bool             `json:"is_valid"`
}

func (c *Certificate) EntityID() string { return c.ID }
func (c *Certificate) OwnerRef() Owner  { return MemberOwner(c.MemberID) }

func (c *Certificate) Validate() error {
	if !c.Level.Valid() {
		return fmt.Errorf("invalid certificate level %q", c.Level)
	}
	return nil
}

// TeamMembership places a member on a project team.
type TeamMembership struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
	MemberID  string `json:"member_id"`
	Role      string `json:"role_on_project,omitempty"`
}

func (t *TeamMembership) EntityID() string   { return t.ID }
func (t *TeamMembership) ProjectRef() string { return t.ProjectID }
