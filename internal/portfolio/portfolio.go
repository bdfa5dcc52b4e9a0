// Package portfolio composes provider reads into the pages of the site:
// project cards, project and member details, and the organization overview.
package portfolio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/garnizeh/folio/internal/models"
	"github.com/garnizeh/folio/pkg/repository"
)

// PlaceholderPhoto is used on cards of projects with neither photos nor a
// media url.
const PlaceholderPhoto = "/placeholder.svg"

type Service struct {
	provider repository.Provider
	logger   *slog.Logger
}

func New(p repository.Provider, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{provider: p, logger: logger}
}

// Provider returns the provider the service reads from.
func (s *Service) Provider() repository.Provider { return s.provider }

// ProjectCards returns one card per project in project order.
func (s *Service) ProjectCards(ctx context.Context) ([]models.ProjectCard, error) {
	projects, err := repository.List[models.Project](ctx, s.provider, models.Projects)
	if err != nil {
		return nil, err
	}
	photos, err := repository.List[models.ProjectPhoto](ctx, s.provider, models.ProjectPhotos)
	if err != nil {
		return nil, err
	}

	first := make(map[string]*models.ProjectPhoto, len(projects))
	for _, ph := range photos {
		if cur, ok := first[ph.ProjectID]; !ok || ph.Order < cur.Order {
			first[ph.ProjectID] = ph
		}
	}

	cards := make([]models.ProjectCard, 0, len(projects))
	for _, p := range projects {
		cards = append(cards, Card(p, first[p.ID]))
	}
	return cards, nil
}

// Card builds the card of p. photo is the project's lowest-order photo, or nil.
func Card(p *models.Project, photo *models.ProjectPhoto) models.ProjectCard {
	url := PlaceholderPhoto
	switch {
	case photo != nil && photo.PhotoURL != "":
		url = photo.PhotoURL
	case p.MediaURL != nil && *p.MediaURL != "":
		url = *p.MediaURL
	}
	return models.ProjectCard{
		ProjectID:          p.ID,
		ProjectName:        p.Name,
		DisplayPhotoURL:    url,
		ProjectType:        p.ProjectType.CardType(),
		ProjectDescription: p.Description,
	}
}

// TechUsage is a technology as used by one project.
type TechUsage struct {
	models.Technology
	PercentageUsed int `json:"percentage_used"`
}

type ReviewStats struct {
	Average float64 `json:"average_rating"`
	Total   int     `json:"total_reviews"`
}

// Stats summarises ratings. The average is rounded to one decimal and is zero
// when there are no reviews.
func Stats(reviews []*models.Review) ReviewStats {
	if len(reviews) == 0 {
		return ReviewStats{}
	}
	sum := 0
	for _, r := range reviews {
		sum += r.Rating
	}
	avg := float64(sum) / float64(len(reviews))
	return ReviewStats{Average: math.Round(avg*10) / 10, Total: len(reviews)}
}

type TeamMember struct {
	*models.Member
	RoleOnProject string `json:"role_on_project,omitempty"`
}

// Owner is the resolved owner of a project. Exactly one of Organization and
// Member is set when the owner resolves.
type Owner struct {
	Type         models.OwnerType     `json:"type"`
	Organization *models.Organization `json:"organization,omitempty"`
	Member       *models.Member       `json:"member,omitempty"`
}

type ProjectDetails struct {
	Project      *models.Project        `json:"project"`
	Photos       []*models.ProjectPhoto `json:"photos"`
	Technologies []TechUsage            `json:"technologies"`
	Reviews      []*models.Review       `json:"reviews"`
	ReviewStats  ReviewStats            `json:"review_stats"`
	Team         []TeamMember           `json:"team"`
	Owner        *Owner                 `json:"owner,omitempty"`
}

func (s *Service) ProjectDetails(ctx context.Context, id string) (*ProjectDetails, error) {
	p, err := repository.Get[models.Project](ctx, s.provider, models.Projects, id)
	if err != nil {
		return nil, err
	}
	d := &ProjectDetails{Project: p}

	if d.Photos, err = repository.ListByProject[models.ProjectPhoto](ctx, s.provider, models.ProjectPhotos, id); err != nil {
		return nil, err
	}
	sort.SliceStable(d.Photos, func(i, j int) bool { return d.Photos[i].Order < d.Photos[j].Order })

	if d.Technologies, err = s.projectTechnologies(ctx, id); err != nil {
		return nil, err
	}
	if d.Reviews, err = repository.ListByProject[models.Review](ctx, s.provider, models.Reviews, id); err != nil {
		return nil, err
	}
	d.ReviewStats = Stats(d.Reviews)
	if d.Team, err = s.team(ctx, id); err != nil {
		return nil, err
	}
	if d.Owner, err = s.ResolveOwner(ctx, p.OwnerRef()); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Service) projectTechnologies(ctx context.Context, projectID string) ([]TechUsage, error) {
	links, err := repository.ListByProject[models.ProjectTechnology](ctx, s.provider, models.ProjectTechnologies, projectID)
	if err != nil {
		return nil, err
	}
	if len(links) == 0 {
		return []TechUsage{}, nil
	}
	techs, err := s.technologies(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]TechUsage, 0, len(links))
	for _, l := range links {
		t, ok := techs[l.TechnologyID]
		if !ok {
			s.logger.Warn("technology does not resolve", slog.String("project_id", projectID), slog.String("technology_id", l.TechnologyID))
			continue
		}
		out = append(out, TechUsage{Technology: *t, PercentageUsed: l.PercentageUsed})
	}
	return out, nil
}

func (s *Service) technologies(ctx context.Context) (map[string]*models.Technology, error) {
	ts, err := repository.List[models.Technology](ctx, s.provider, models.Technologies)
	if err != nil {
		return nil, err
	}
	m := make(map[string]*models.Technology, len(ts))
	for _, t := range ts {
		m[t.ID] = t
	}
	return m, nil
}

func (s *Service) team(ctx context.Context, projectID string) ([]TeamMember, error) {
	rows, err := repository.ListByProject[models.TeamMembership](ctx, s.provider, models.ProjectTeam, projectID)
	if err != nil {
		return nil, err
	}
	out := make([]TeamMember, 0, len(rows))
	for _, r := range rows {
		m, err := repository.Get[models.Member](ctx, s.provider, models.Members, r.MemberID)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, TeamMember{Member: m, RoleOnProject: r.Role})
	}
	return out, nil
}

// ResolveOwner looks the owner up in the collection its type dispatches to.
// It returns nil without an error when the owner does not resolve.
func (s *Service) ResolveOwner(ctx context.Context, o models.Owner) (*Owner, error) {
	switch o.Type {
	case models.OwnerOrganization:
		org, err := repository.Get[models.Organization](ctx, s.provider, models.Organizations, o.ID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return &Owner{Type: o.Type, Organization: org}, nil
	case models.OwnerMember:
		m, err := repository.Get[models.Member](ctx, s.provider, models.Members, o.ID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return &Owner{Type: o.Type, Member: m}, nil
	}
	return nil, nil
}

type MemberDetails struct {
	Member       *models.Member           `json:"member"`
	Skills       []*models.Skill          `json:"skills"`
	Contacts     []*models.Contact        `json:"contacts"`
	WorkHistory  []*models.WorkExperience `json:"work_history"`
	Documents    []*models.Document       `json:"documents"`
	Certificates []*models.Certificate    `json:"certificates"`
	Projects     []*models.Project        `json:"projects"`
}

func (s *Service) MemberDetails(ctx context.Context, id string) (*MemberDetails, error) {
	m, err := repository.Get[models.Member](ctx, s.provider, models.Members, id)
	if err != nil {
		return nil, err
	}
	owner := models.MemberOwner(id)
	d := &MemberDetails{Member: m}
	if d.Skills, err = repository.ListByOwner[models.Skill](ctx, s.provider, models.Skills, owner); err != nil {
		return nil, err
	}
	if d.Contacts, err = repository.ListByOwner[models.Contact](ctx, s.provider, models.Contacts, owner); err != nil {
		return nil, err
	}
	work, err := repository.ListByOwner[models.WorkExperience](ctx, s.provider, models.WorkExperiences, owner)
	if err != nil {
		return nil, err
	}
	d.WorkHistory = SortWorkHistory(work)
	if d.Documents, err = repository.ListByOwner[models.Document](ctx, s.provider, models.Documents, owner); err != nil {
		return nil, err
	}
	if d.Certificates, err = repository.ListByOwner[models.Certificate](ctx, s.provider, models.Certificates, owner); err != nil {
		return nil, err
	}
	if d.Projects, err = s.MemberProjects(ctx, id); err != nil {
		return nil, err
	}
	return d, nil
}

// SortWorkHistory orders current roles first, then by start date, newest
// first. The input is not modified.
func SortWorkHistory(work []*models.WorkExperience) []*models.WorkExperience {
	out := append([]*models.WorkExperience(nil), work...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].IsCurrent != out[j].IsCurrent {
			return out[i].IsCurrent
		}
		return out[i].StartDate.After(out[j].StartDate)
	})
	return out
}

// MemberProjects returns the projects the member owns or works on, in project
// order and without duplicates.
func (s *Service) MemberProjects(ctx context.Context, memberID string) ([]*models.Project, error) {
	projects, err := repository.List[models.Project](ctx, s.provider, models.Projects)
	if err != nil {
		return nil, err
	}
	team, err := repository.List[models.TeamMembership](ctx, s.provider, models.ProjectTeam)
	if err != nil {
		return nil, err
	}
	on := make(map[string]bool)
	for _, t := range team {
		if t.MemberID == memberID {
			on[t.ProjectID] = true
		}
	}
	out := []*models.Project{}
	for _, p := range projects {
		owned := p.OwnerType == models.OwnerMember && p.OwnerID == memberID
		if owned || on[p.ID] {
			out = append(out, p)
		}
	}
	return out, nil
}

type OrganizationDetails struct {
	Organization *models.Organization `json:"organization"`
	Members      []*models.Member     `json:"members"`
	Projects     []*models.Project    `json:"projects"`
	Skills       []*models.Skill      `json:"skills"`
	Contacts     []*models.Contact    `json:"contacts"`
}

var ErrNoOrganization = errors.New("no organization")

// OrganizationDetails returns the site's organization. The dataset holds a
// single organization; when there are several the first one is used.
func (s *Service) OrganizationDetails(ctx context.Context) (*OrganizationDetails, error) {
	orgs, err := repository.List[models.Organization](ctx, s.provider, models.Organizations)
	if err != nil {
		return nil, err
	}
	if len(orgs) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrNoOrganization, repository.ErrNotFound)
	}
	org := orgs[0]
	owner := models.OrganizationOwner(org.ID)
	d := &OrganizationDetails{Organization: org}

	if d.Members, err = repository.ListByOwner[models.Member](ctx, s.provider, models.Members, owner); err != nil {
		return nil, err
	}
	if d.Projects, err = repository.ListByOwner[models.Project](ctx, s.provider, models.Projects, owner); err != nil {
		return nil, err
	}
	if d.Skills, err = repository.ListByOwner[models.Skill](ctx, s.provider, models.Skills, owner); err != nil {
		return nil, err
	}
	if d.Contacts, err = repository.ListByOwner[models.Contact](ctx, s.provider, models.Contacts, owner); err != nil {
		return nil, err
	}
	return d, nil
}
