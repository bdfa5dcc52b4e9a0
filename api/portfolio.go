package api

import (
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/garnizeh/folio/internal/models"
	"github.com/garnizeh/folio/internal/portfolio"
	"github.com/garnizeh/folio/internal/search"
	"github.com/garnizeh/folio/internal/urlsync"
	"github.com/garnizeh/folio/pkg/repository"
	"github.com/gorilla/mux"
)

// listResponse is the envelope of every filtered list. Total counts the
// records before filtering; URL is the canonical link of the listing.
type listResponse[T any] struct {
	Query string `json:"query"`
	Total int    `json:"total"`
	Count int    `json:"count"`
	Items []T    `json:"items"`
	URL   string `json:"url"`
	Stats any    `json:"stats,omitempty"`
}

func newList[T any](r *http.Request, q string, total int, items []T) listResponse[T] {
	if items == nil {
		items = []T{}
	}
	return listResponse[T]{
		Query: q,
		Total: total,
		Count: len(items),
		Items: items,
		URL:   urlsync.Apply(r.URL, q).String(),
	}
}

type PortfolioHandler struct {
	svc *portfolio.Service
}

func NewPortfolioHandler(svc *portfolio.Service) *PortfolioHandler {
	return &PortfolioHandler{svc: svc}
}

func queryText(r *http.Request) string {
	return strings.TrimSpace(urlsync.Read(r.URL))
}

func (h *PortfolioHandler) Organization(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.OrganizationDetails(r.Context())
	if err != nil {
		writeFetchError(w, r, err)
		return
	}
	writeJSON(w, d, http.StatusOK)
}

// ListProjects serves GET /v1/projects?q=&status=&type=&sort=&limit=.
func (h *PortfolioHandler) ListProjects(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	params := r.URL.Query()
	q := queryText(r)

	limit := 0
	if v := params.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	var less func(a, b *models.Project) bool
	switch params.Get("sort") {
	case "":
	case "name":
		less = func(a, b *models.Project) bool { return strings.ToLower(a.Name) < strings.ToLower(b.Name) }
	case "newest":
		less = func(a, b *models.Project) bool { return a.CreatedAt.After(b.CreatedAt) }
	default:
		writeError(w, http.StatusBadRequest, "invalid sort")
		return
	}

	projects, err := repository.List[models.Project](ctx, h.svc.Provider(), models.Projects)
	if err != nil {
		writeFetchError(w, r, err)
		return
	}
	names, err := h.svc.TechnologyNames(ctx)
	if err != nil {
		writeFetchError(w, r, err)
		return
	}

	var preds []func(*models.Project) bool
	if st := params.Get("status"); st != "" {
		preds = append(preds, func(p *models.Project) bool { return strings.EqualFold(string(p.Status), st) })
	}
	if typ := params.Get("type"); typ != "" {
		preds = append(preds, func(p *models.Project) bool { return strings.EqualFold(string(p.ProjectType), typ) })
	}
	items := search.Filter(search.Where(projects, preds...), q, portfolio.ProjectSearchText(names))
	if less != nil {
		items = search.SortStable(items, less)
	}
	writeJSON(w, newList(r, q, len(projects), search.Limit(items, limit)), http.StatusOK)
}

func (h *PortfolioHandler) GetProject(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.ProjectDetails(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeFetchError(w, r, err)
		return
	}
	writeJSON(w, d, http.StatusOK)
}

// ListMembers serves GET /v1/members?q=&expertise=. An expertise of "all"
// is the same as none.
func (h *PortfolioHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	q := queryText(r)
	members, err := repository.List[models.Member](r.Context(), h.svc.Provider(), models.Members)
	if err != nil {
		writeFetchError(w, r, err)
		return
	}

	var preds []func(*models.Member) bool
	if area := r.URL.Query().Get("expertise"); area != "" && !strings.EqualFold(area, "all") {
		preds = append(preds, func(m *models.Member) bool {
			return slices.ContainsFunc(m.ExpertiseAreas, func(a string) bool { return strings.EqualFold(a, area) })
		})
	}
	writeJSON(w, newList(r, q, len(members), search.Filter(search.Where(members, preds...), q, portfolio.MemberSearchText)), http.StatusOK)
}

func (h *PortfolioHandler) GetMember(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.MemberDetails(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeFetchError(w, r, err)
		return
	}
	writeJSON(w, d, http.StatusOK)
}

// member resolves the {id} route variable, writing a 404 when it misses.
func (h *PortfolioHandler) member(w http.ResponseWriter, r *http.Request) (models.Owner, bool) {
	id := mux.Vars(r)["id"]
	if _, err := repository.Get[models.Member](r.Context(), h.svc.Provider(), models.Members, id); err != nil {
		writeFetchError(w, r, err)
		return models.Owner{}, false
	}
	return models.MemberOwner(id), true
}

func (h *PortfolioHandler) ListSkills(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.member(w, r)
	if !ok {
		return
	}
	skills, err := repository.ListByOwner[models.Skill](r.Context(), h.svc.Provider(), models.Skills, owner)
	if err != nil {
		writeFetchError(w, r, err)
		return
	}
	q := queryText(r)
	writeJSON(w, newList(r, q, len(skills), search.Filter(skills, q, portfolio.SkillSearchText)), http.StatusOK)
}

// ListDocuments serves GET /v1/members/{id}/documents?q=&type=&privacy=. Stats
// cover every document of the member.
func (h *PortfolioHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.member(w, r)
	if !ok {
		return
	}
	docs, err := repository.ListByOwner[models.Document](r.Context(), h.svc.Provider(), models.Documents, owner)
	if err != nil {
		writeFetchError(w, r, err)
		return
	}

	params := r.URL.Query()
	q := queryText(r)
	var preds []func(*models.Document) bool
	if typ := params.Get("type"); typ != "" {
		preds = append(preds, func(d *models.Document) bool { return strings.EqualFold(string(d.DocumentType), typ) })
	}
	if pv := params.Get("privacy"); pv != "" {
		preds = append(preds, func(d *models.Document) bool { return strings.EqualFold(string(d.Privacy), pv) })
	}

	resp := newList(r, q, len(docs), search.Filter(search.Where(docs, preds...), q, portfolio.DocumentSearchText))
	resp.Stats = portfolio.DocumentStatsOf(docs)
	writeJSON(w, resp, http.StatusOK)
}

func (h *PortfolioHandler) ListCertificates(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.member(w, r)
	if !ok {
		return
	}
	certs, err := repository.ListByOwner[models.Certificate](r.Context(), h.svc.Provider(), models.Certificates, owner)
	if err != nil {
		writeFetchError(w, r, err)
		return
	}

	q := queryText(r)
	var preds []func(*models.Certificate) bool
	if lvl := r.URL.Query().Get("level"); lvl != "" {
		preds = append(preds, func(c *models.Certificate) bool { return strings.EqualFold(string(c.Level), lvl) })
	}

	resp := newList(r, q, len(certs), search.Filter(search.Where(certs, preds...), q, portfolio.CertificateSearchText))
	resp.Stats = portfolio.CertificateStatsOf(certs)
	writeJSON(w, resp, http.StatusOK)
}

func (h *PortfolioHandler) ListExperience(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.member(w, r)
	if !ok {
		return
	}
	work, err := repository.ListByOwner[models.WorkExperience](r.Context(), h.svc.Provider(), models.WorkExperiences, owner)
	if err != nil {
		writeFetchError(w, r, err)
		return
	}
	writeJSON(w, portfolio.SortWorkHistory(work), http.StatusOK)
}
