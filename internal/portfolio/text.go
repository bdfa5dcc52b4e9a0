package portfolio

import (
	"context"

	"github.com/garnizeh/folio/internal/models"
	"github.com/garnizeh/folio/internal/search"
	"github.com/garnizeh/folio/pkg/repository"
)

// TechnologyNames maps project ids to the names of their technologies.
func (s *Service) TechnologyNames(ctx context.Context) (map[string][]string, error) {
	techs, err := s.technologies(ctx)
	if err != nil {
		return nil, err
	}
	links, err := repository.List[models.ProjectTechnology](ctx, s.provider, models.ProjectTechnologies)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]string)
	for _, l := range links {
		if t, ok := techs[l.TechnologyID]; ok {
			out[l.ProjectID] = append(out[l.ProjectID], t.Name)
		}
	}
	return out, nil
}

// ProjectSearchText returns the field extractor for projects. names comes
// from TechnologyNames and may be nil.
func ProjectSearchText(names map[string][]string) func(*models.Project) string {
	return func(p *models.Project) string {
		return search.Join(append([]string{p.Name, p.Description}, names[p.ID]...)...)
	}
}

func MemberSearchText(m *models.Member) string {
	bio := ""
	if m.Bio != nil {
		bio = *m.Bio
	}
	return search.Join(append([]string{m.Name, m.Role, bio}, m.ExpertiseAreas...)...)
}

func SkillSearchText(s *models.Skill) string {
	category := ""
	if s.Category != nil {
		category = *s.Category
	}
	return search.Join(s.Name, category)
}

func DocumentSearchText(d *models.Document) string {
	desc := ""
	if d.Description != nil {
		desc = *d.Description
	}
	return search.Join(append([]string{d.Name, desc, d.FileName}, d.Tags...)...)
}

func CertificateSearchText(c *models.Certificate) string {
	return search.Join(append([]string{c.Name, c.Description, c.Provider}, c.SkillsCovered...)...)
}

type DocumentStats struct {
	Total     int                            `json:"total"`
	ByPrivacy map[models.DocumentPrivacy]int `json:"by_privacy"`
	Featured  int                            `json:"featured"`
	Downloads int                            `json:"downloads"`
}

func DocumentStatsOf(docs []*models.Document) DocumentStats {
	st := DocumentStats{Total: len(docs), ByPrivacy: map[models.DocumentPrivacy]int{}}
	for _, d := range docs {
		st.ByPrivacy[d.Privacy]++
		if d.IsFeatured {
			st.Featured++
		}
		st.Downloads += d.DownloadCount
	}
	return st
}

type CertificateStats struct {
	Total   int                             `json:"total"`
	ByLevel map[models.CertificateLevel]int `json:"by_level"`
	Valid   int                             `json:"valid"`
}

func CertificateStatsOf(certs []*models.Certificate) CertificateStats {
	st := CertificateStats{Total: len(certs), ByLevel: map[models.CertificateLevel]int{}}
	for _, c := range certs {
		st.ByLevel[c.Level]++
		if c.IsValid {
			st.Valid++
		}
	}
	return st
}
