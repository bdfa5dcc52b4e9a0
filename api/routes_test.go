package api_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/garnizeh/folio/api"
	dbfiles "github.com/garnizeh/folio/db"
	"github.com/garnizeh/folio/internal/cache"
	"github.com/garnizeh/folio/internal/config"
	dbpkg "github.com/garnizeh/folio/internal/db"
	"github.com/garnizeh/folio/internal/fixtures"
	"github.com/garnizeh/folio/internal/jobs"
	"github.com/garnizeh/folio/internal/metrics"
	"github.com/garnizeh/folio/internal/notify"
	"github.com/garnizeh/folio/internal/portfolio"
	sqlite "github.com/garnizeh/folio/internal/repository/sqlite"
	"github.com/garnizeh/folio/pkg/repository/mock"
	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "routes-secret"

type queuedJob struct {
	Type    string
	Payload any
}

type fakeQueue struct {
	mu   sync.Mutex
	jobs []queuedJob
}

var _ jobs.Enqueuer = (*fakeQueue)(nil)

func (q *fakeQueue) Enqueue(_ context.Context, typ string, payload any, _, _ int) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, queuedJob{Type: typ, Payload: payload})
	return int64(len(q.jobs)), nil
}

func (q *fakeQueue) list() []queuedJob {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]queuedJob(nil), q.jobs...)
}

type testEnv struct {
	router http.Handler
	queue  *fakeQueue
	hub    *notify.Hub
}

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:     testSecret,
		TokenDuration: time.Hour,
		Search:        config.SearchConfig{Debounce: 10 * time.Millisecond, MinChars: 1},
		CORS:          config.CORSConfig{AllowedOrigins: []string{"*"}},
	}
}

// setupEnv wires the router over a seeded in-memory SQLite database, a cached
// provider and an in-process change hub.
func setupEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	d, err := dbpkg.New(ctx, fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_")), nil)
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	d.GetConn().SetMaxOpenConns(1)
	t.Cleanup(func() { d.Close() })
	if err := dbpkg.Migrate(ctx, d, dbfiles.Migrations); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	raw, err := dbfiles.PortfolioSeed()
	if err != nil {
		t.Fatalf("read seed: %v", err)
	}
	ds, err := fixtures.Load(ctx, raw)
	if err != nil {
		t.Fatalf("load seed: %v", err)
	}

	hub := notify.NewHub()
	repo := sqlite.New(d, nil).WithPublisher(hub, "public")
	if _, err := repo.Seed(ctx, ds); err != nil {
		t.Fatalf("seed: %v", err)
	}

	registry := notify.NewRegistry(hub, nil)
	cached := cache.NewProvider(repo, cache.New(0, nil, nil))
	unbind, err := cached.BindAll(registry)
	if err != nil {
		t.Fatalf("bind cache: %v", err)
	}
	t.Cleanup(func() {
		unbind()
		registry.Close()
	})

	queue := &fakeQueue{}
	router := api.SetupRoutes(testConfig(), "test", "now", api.Deps{
		Portfolio:   portfolio.New(cached, nil),
		Registry:    registry,
		Writer:      repo,
		Submissions: repo,
		Jobs:        queue,
		Metrics:     metrics.New(),
	})
	return &testEnv{router: router, queue: queue, hub: hub}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		raw, _ := json.Marshal(b)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func bearer(t *testing.T) http.Header {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"email": "admin@example.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return http.Header{"Authorization": {"Bearer " + tok}}
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

type listBody struct {
	Query string            `json:"query"`
	Total int               `json:"total"`
	Count int               `json:"count"`
	Items []json.RawMessage `json:"items"`
	URL   string            `json:"url"`
	Stats json.RawMessage   `json:"stats"`
}

func itemIDs(t *testing.T, items []json.RawMessage) []string {
	t.Helper()
	out := make([]string, 0, len(items))
	for _, raw := range items {
		var v struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			t.Fatalf("decode item: %v", err)
		}
		out = append(out, v.ID)
	}
	return out
}

func TestProjectCardsRoute(t *testing.T) {
	env := setupEnv(t)
	w := env.do(t, http.MethodGet, "/projects/cards", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", w.Code, w.Body.String())
	}

	var cards []map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &cards); err != nil {
		t.Fatalf("expected bare array: %v", err)
	}
	if len(cards) != 6 {
		t.Fatalf("expected 6 cards got %d", len(cards))
	}
	keys := []string{"project_id", "proj_name", "display_photo_url", "project_type", "project_description"}
	for _, k := range keys {
		if _, ok := cards[0][k]; !ok {
			t.Fatalf("card missing %q: %v", k, cards[0])
		}
	}
	if len(cards[0]) != len(keys) {
		t.Fatalf("unexpected card fields %v", cards[0])
	}
	if cards[3]["display_photo_url"] != "https://picsum.photos/seed/analytics/800/600" {
		t.Fatalf("expected lowest-order photo, got %q", cards[3]["display_photo_url"])
	}
	if cards[5]["display_photo_url"] != "https://picsum.photos/seed/design-hero/1200/600" {
		t.Fatalf("expected media url fallback, got %q", cards[5]["display_photo_url"])
	}
}

func TestProjectCardsFailure(t *testing.T) {
	p := mock.NewProvider()
	p.SetErr(errors.New("connection refused"))
	h := api.NewCardsHandler(portfolio.New(p, nil))

	w := httptest.NewRecorder()
	h.ProjectCards(w, httptest.NewRequest(http.MethodGet, "/projects/cards", nil))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", w.Code)
	}
	body := decode[map[string]string](t, w)
	if !strings.Contains(body["error"], "connection refused") || len(body) != 1 {
		t.Fatalf("unexpected error body %v", body)
	}
}

func TestListProjects(t *testing.T) {
	env := setupEnv(t)

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantIDs    []string
		wantURL    string
	}{
		{name: "All", path: "/v1/projects", wantStatus: http.StatusOK, wantIDs: []string{"project-1", "project-2", "project-3", "project-4", "project-5", "project-6"}, wantURL: "/v1/projects"},
		{name: "Query", path: "/v1/projects?q=REACT", wantStatus: http.StatusOK, wantIDs: []string{"project-1", "project-2", "project-5"}, wantURL: "/v1/projects?q=REACT"},
		{name: "BlankQuery", path: "/v1/projects?q=%20%20", wantStatus: http.StatusOK, wantIDs: []string{"project-1", "project-2", "project-3", "project-4", "project-5", "project-6"}, wantURL: "/v1/projects"},
		{name: "Type", path: "/v1/projects?type=web", wantStatus: http.StatusOK, wantIDs: []string{"project-1", "project-2", "project-4", "project-5"}},
		{name: "Limit", path: "/v1/projects?q=react&limit=2", wantStatus: http.StatusOK, wantIDs: []string{"project-1", "project-2"}},
		{name: "NoMatch", path: "/v1/projects?q=cobol", wantStatus: http.StatusOK, wantIDs: []string{}},
		{name: "BadLimit", path: "/v1/projects?limit=-1", wantStatus: http.StatusBadRequest},
		{name: "BadSort", path: "/v1/projects?sort=random", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodGet, tt.path, nil, nil)
			if w.Code != tt.wantStatus {
				t.Fatalf("expected %d got %d body=%s", tt.wantStatus, w.Code, w.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			body := decode[listBody](t, w)
			got := itemIDs(t, body.Items)
			if strings.Join(got, ",") != strings.Join(tt.wantIDs, ",") {
				t.Fatalf("expected %v got %v", tt.wantIDs, got)
			}
			if body.Total != 6 || body.Count != len(got) {
				t.Fatalf("unexpected totals %d/%d", body.Total, body.Count)
			}
			if tt.wantURL != "" && body.URL != tt.wantURL {
				t.Fatalf("expected url %q got %q", tt.wantURL, body.URL)
			}
		})
	}
}

func TestDetailRoutes(t *testing.T) {
	env := setupEnv(t)

	tests := []struct {
		name       string
		path       string
		wantStatus int
	}{
		{name: "Organization", path: "/v1/organization", wantStatus: http.StatusOK},
		{name: "Project", path: "/v1/projects/project-1", wantStatus: http.StatusOK},
		{name: "ProjectMissing", path: "/v1/projects/project-404", wantStatus: http.StatusNotFound},
		{name: "Member", path: "/v1/members/member-1", wantStatus: http.StatusOK},
		{name: "MemberMissing", path: "/v1/members/member-404", wantStatus: http.StatusNotFound},
		{name: "Experience", path: "/v1/members/member-1/experience", wantStatus: http.StatusOK},
		{name: "DocumentsMissingMember", path: "/v1/members/member-404/documents", wantStatus: http.StatusNotFound},
		{name: "UnknownRoute", path: "/v2/nothing", wantStatus: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodGet, tt.path, nil, nil)
			if w.Code != tt.wantStatus {
				t.Fatalf("expected %d got %d body=%s", tt.wantStatus, w.Code, w.Body.String())
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Fatalf("expected json, got %q", ct)
			}
		})
	}

	w := env.do(t, http.MethodGet, "/v1/projects/project-1", nil, nil)
	d := decode[struct {
		Project struct {
			ID string `json:"id"`
		} `json:"project"`
	}](t, w)
	if d.Project.ID != "project-1" {
		t.Fatalf("unexpected project details %s", w.Body.String())
	}
}

func TestMemberCollections(t *testing.T) {
	env := setupEnv(t)

	w := env.do(t, http.MethodGet, "/v1/members/member-1/documents?q=websockets", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("documents: expected 200 got %d", w.Code)
	}
	docs := decode[listBody](t, w)
	if ids := itemIDs(t, docs.Items); len(ids) != 1 || ids[0] != "doc-4" {
		t.Fatalf("expected [doc-4] got %v", ids)
	}
	var stats struct {
		Total     int `json:"total"`
		Downloads int `json:"downloads"`
	}
	if err := json.Unmarshal(docs.Stats, &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if docs.Total != 4 || stats.Total != 4 || stats.Downloads != 205 {
		t.Fatalf("unexpected document stats total=%d stats=%+v", docs.Total, stats)
	}

	w = env.do(t, http.MethodGet, "/v1/members/member-1/documents?privacy=private", nil, nil)
	if ids := itemIDs(t, decode[listBody](t, w).Items); len(ids) != 1 || ids[0] != "doc-2" {
		t.Fatalf("expected [doc-2] got %v", ids)
	}

	w = env.do(t, http.MethodGet, "/v1/members/member-1/certificates?q=coursera", nil, nil)
	if ids := itemIDs(t, decode[listBody](t, w).Items); len(ids) != 1 || ids[0] != "cert-2" {
		t.Fatalf("expected [cert-2] got %v", ids)
	}

	w = env.do(t, http.MethodGet, "/v1/members?q=backend%20developer", nil, nil)
	if ids := itemIDs(t, decode[listBody](t, w).Items); strings.Join(ids, ",") != "member-4,member-5" {
		t.Fatalf("expected members 4 and 5 got %v", ids)
	}
}

func TestMemberExpertiseAndSkills(t *testing.T) {
	env := setupEnv(t)

	tests := []struct {
		name string
		path string
		want string
	}{
		{"expertise facet", "/v1/members?expertise=backend", "member-1,member-4,member-5"},
		{"facet with text", "/v1/members?expertise=Backend&q=lead", "member-1"},
		{"all is no facet", "/v1/members?expertise=all", "member-1,member-2,member-3,member-4,member-5"},
		{"text over expertise", "/v1/members?q=mentoring", "member-1"},
		{"skills", "/v1/members/member-1/skills", "skill-1,skill-2,skill-5,skill-6"},
		{"skills by category", "/v1/members/member-1/skills?q=backend", "skill-2,skill-6"},
		{"skills by name", "/v1/members/member-2/skills?q=figma", "skill-7"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodGet, tt.path, nil, nil)
			if w.Code != http.StatusOK {
				t.Fatalf("expected 200 got %d: %s", w.Code, w.Body.String())
			}
			if ids := itemIDs(t, decode[listBody](t, w).Items); strings.Join(ids, ",") != tt.want {
				t.Fatalf("expected %s got %v", tt.want, ids)
			}
		})
	}

	w := env.do(t, http.MethodGet, "/v1/members?expertise=backend&q=lead", nil, nil)
	if got := decode[listBody](t, w).URL; !strings.Contains(got, "expertise=backend") || !strings.Contains(got, "q=lead") {
		t.Fatalf("expected facet and query kept in url got %q", got)
	}

	w = env.do(t, http.MethodGet, "/v1/members/member-404/skills", nil, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", w.Code)
	}
}

var refCodePattern = regexp.MustCompile(`^REQ-[0-9A-F]{8}$`)

func TestSubmissions(t *testing.T) {
	env := setupEnv(t)

	tests := []struct {
		name       string
		path       string
		body       any
		wantStatus int
		wantJob    string
	}{
		{name: "Contact", path: "/v1/contact", body: map[string]string{"name": "Ana", "email": "ana@example.com", "message": "Hello", "member_id": "member-1"}, wantStatus: http.StatusAccepted, wantJob: jobs.TypeContactDeliver},
		{name: "ContactInvalidJSON", path: "/v1/contact", body: "{", wantStatus: http.StatusBadRequest},
		{name: "ContactMissingFields", path: "/v1/contact", body: map[string]string{"email": "ana@example.com"}, wantStatus: http.StatusBadRequest},
		{name: "ContactBadPurpose", path: "/v1/contact", body: map[string]string{"name": "Ana", "email": "ana@example.com", "message": "Hi", "purpose": "spam"}, wantStatus: http.StatusBadRequest},
		{name: "ContactUnknownMember", path: "/v1/contact", body: map[string]string{"name": "Ana", "email": "ana@example.com", "message": "Hi", "member_id": "member-404"}, wantStatus: http.StatusNotFound},
		{name: "RequestPrivate", path: "/v1/documents/doc-2/requests", body: map[string]string{"requester_email": "hr@example.com", "purpose": "academic"}, wantStatus: http.StatusCreated, wantJob: jobs.TypeDocumentRequestDeliver},
		{name: "RequestPublic", path: "/v1/documents/doc-1/requests", body: map[string]string{"requester_email": "hr@example.com"}, wantStatus: http.StatusConflict},
		{name: "RequestMissingDoc", path: "/v1/documents/doc-404/requests", body: map[string]string{"requester_email": "hr@example.com"}, wantStatus: http.StatusNotFound},
		{name: "RequestBadEmail", path: "/v1/documents/doc-3/requests", body: map[string]string{"requester_email": "nobody"}, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := len(env.queue.list())
			w := env.do(t, http.MethodPost, tt.path, tt.body, nil)
			if w.Code != tt.wantStatus {
				t.Fatalf("expected %d got %d body=%s", tt.wantStatus, w.Code, w.Body.String())
			}
			queued := env.queue.list()
			if tt.wantJob == "" {
				if len(queued) != before {
					t.Fatalf("expected no job queued")
				}
				return
			}
			if len(queued) != before+1 || queued[len(queued)-1].Type != tt.wantJob {
				t.Fatalf("expected %s job, got %+v", tt.wantJob, queued)
			}
			resp := decode[map[string]string](t, w)
			if resp["id"] == "" || resp["status"] != "pending" {
				t.Fatalf("unexpected response %v", resp)
			}
			if tt.wantStatus == http.StatusCreated && !refCodePattern.MatchString(resp["ref_code"]) {
				t.Fatalf("unexpected ref code %q", resp["ref_code"])
			}
		})
	}
}

func TestAdminRoutes(t *testing.T) {
	env := setupEnv(t)
	auth := bearer(t)
	tech := map[string]string{"id": "tech-99", "name": "Svelte", "category": "Frontend"}

	steps := []struct {
		name       string
		method     string
		path       string
		body       any
		header     http.Header
		wantStatus int
	}{
		{name: "NoToken", method: http.MethodPut, path: "/v1/admin/technologies/tech-99", body: tech, wantStatus: http.StatusUnauthorized},
		{name: "Insert", method: http.MethodPut, path: "/v1/admin/technologies/tech-99", body: tech, header: auth, wantStatus: http.StatusCreated},
		{name: "Replace", method: http.MethodPut, path: "/v1/admin/technologies/tech-99", body: tech, header: auth, wantStatus: http.StatusOK},
		{name: "IDMismatch", method: http.MethodPut, path: "/v1/admin/technologies/tech-98", body: tech, header: auth, wantStatus: http.StatusBadRequest},
		{name: "UnknownCollection", method: http.MethodPut, path: "/v1/admin/widgets/w-1", body: tech, header: auth, wantStatus: http.StatusNotFound},
		{name: "Delete", method: http.MethodDelete, path: "/v1/admin/technologies/tech-99", header: auth, wantStatus: http.StatusNoContent},
		{name: "DeleteAgain", method: http.MethodDelete, path: "/v1/admin/technologies/tech-99", header: auth, wantStatus: http.StatusNotFound},
		{name: "Signout", method: http.MethodPost, path: "/v1/admin/signout", header: auth, wantStatus: http.StatusOK},
	}
	for _, s := range steps {
		w := env.do(t, s.method, s.path, s.body, s.header)
		if w.Code != s.wantStatus {
			t.Fatalf("%s: expected %d got %d body=%s", s.name, s.wantStatus, w.Code, w.Body.String())
		}
	}
}

func TestAdminWriteInvalidatesCache(t *testing.T) {
	env := setupEnv(t)
	auth := bearer(t)

	// warm the cache
	if w := env.do(t, http.MethodGet, "/v1/projects?q=svelte", nil, nil); decode[listBody](t, w).Count != 0 {
		t.Fatalf("expected no svelte projects before the write")
	}

	body := map[string]any{"id": "pt-99", "project_id": "project-3", "technology_id": "tech-99", "percentage_used": 10}
	tech := map[string]string{"id": "tech-99", "name": "Svelte", "category": "Frontend"}
	if w := env.do(t, http.MethodPut, "/v1/admin/technologies/tech-99", tech, auth); w.Code != http.StatusCreated {
		t.Fatalf("put technology: %d %s", w.Code, w.Body.String())
	}
	if w := env.do(t, http.MethodPut, "/v1/admin/project_technologies/pt-99", body, auth); w.Code != http.StatusCreated {
		t.Fatalf("put project technology: %d %s", w.Code, w.Body.String())
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		w := env.do(t, http.MethodGet, "/v1/projects?q=svelte", nil, nil)
		ids := itemIDs(t, decode[listBody](t, w).Items)
		if len(ids) == 1 && ids[0] == "project-3" {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("cache was not invalidated, got %v", ids)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestPreflightRoute(t *testing.T) {
	env := setupEnv(t)
	w := env.do(t, http.MethodOptions, "/v1/contact", nil, http.Header{
		"Origin":                        {"https://site.example"},
		"Access-Control-Request-Method": {http.MethodPost},
	})
	if w.Code/100 != 2 {
		t.Fatalf("expected 2xx preflight got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("expected CORS headers on preflight, got %v", w.Header())
	}
}

func TestMetricsRoute(t *testing.T) {
	env := setupEnv(t)
	env.do(t, http.MethodGet, "/health", nil, nil)
	w := env.do(t, http.MethodGet, "/metrics", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `folio_http_requests_total{method="GET",route="/health",status="200"} 1`) {
		t.Fatalf("expected request counter for /health in:\n%s", w.Body.String())
	}
}

type sseEvent struct {
	Name string
	Data string
}

// readEvents parses event and data lines from an event stream until it ends.
func readEvents(body io.Reader) <-chan sseEvent {
	out := make(chan sseEvent, 16)
	go func() {
		defer close(out)
		sc := bufio.NewScanner(body)
		var ev sseEvent
		for sc.Scan() {
			line := sc.Text()
			switch {
			case line == "":
				if ev.Name != "" {
					out <- ev
				}
				ev = sseEvent{}
			case strings.HasPrefix(line, "event:"):
				ev.Name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			case strings.HasPrefix(line, "data:"):
				ev.Data += strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			}
		}
	}()
	return out
}

func openStream(t *testing.T, srv *httptest.Server, path string) <-chan sseEvent {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+path, nil)
	res, err := srv.Client().Do(req)
	if err != nil {
		cancel()
		t.Fatalf("open stream: %v", err)
	}
	t.Cleanup(func() {
		cancel()
		res.Body.Close()
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 got %d", res.StatusCode)
	}
	if ct := res.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("unexpected content type %q", ct)
	}
	return readEvents(res.Body)
}

func waitFor(t *testing.T, events <-chan sseEvent, name string) sseEvent {
	t.Helper()
	timeout := time.After(3 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				t.Fatalf("stream ended before %q", name)
			}
			if ev.Name == name {
				return ev
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %q", name)
		}
	}
}

func TestEventsStream(t *testing.T) {
	env := setupEnv(t)
	srv := httptest.NewServer(env.router)
	t.Cleanup(srv.Close)

	if w := env.do(t, http.MethodGet, "/v1/events?table=nope", nil, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown table got %d", w.Code)
	}

	events := openStream(t, srv, "/v1/events?table=technologies")
	if ev := waitFor(t, events, "ready"); ev.Data != "technologies" {
		t.Fatalf("unexpected ready data %q", ev.Data)
	}

	tech := map[string]string{"id": "tech-99", "name": "Svelte", "category": "Frontend"}
	if w := env.do(t, http.MethodPut, "/v1/admin/technologies/tech-99", tech, bearer(t)); w.Code != http.StatusCreated {
		t.Fatalf("put: %d %s", w.Code, w.Body.String())
	}

	ev := waitFor(t, events, "change")
	var change notify.ChangeEvent
	if err := json.Unmarshal([]byte(ev.Data), &change); err != nil {
		t.Fatalf("decode change %q: %v", ev.Data, err)
	}
	if change.Table != "technologies" || change.Event != notify.Insert || change.Schema != "public" {
		t.Fatalf("unexpected change %+v", change)
	}
}

func TestLiveGridStream(t *testing.T) {
	env := setupEnv(t)
	srv := httptest.NewServer(env.router)
	t.Cleanup(srv.Close)

	if w := env.do(t, http.MethodGet, "/v1/live/reviews", nil, nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown grid got %d", w.Code)
	}

	events := openStream(t, srv, "/v1/live/projects?q=react")
	for {
		ev := waitFor(t, events, "snapshot")
		var snap struct {
			State string            `json:"state"`
			Query string            `json:"query"`
			Total int               `json:"total"`
			Items []json.RawMessage `json:"items"`
		}
		if err := json.Unmarshal([]byte(ev.Data), &snap); err != nil {
			t.Fatalf("decode snapshot %q: %v", ev.Data, err)
		}
		if snap.State == "loading" {
			continue
		}
		if snap.State != "populated" || snap.Query != "react" || snap.Total != 6 {
			t.Fatalf("unexpected snapshot %s", ev.Data)
		}
		if ids := itemIDs(t, snap.Items); strings.Join(ids, ",") != "project-1,project-2,project-5" {
			t.Fatalf("expected react projects got %v", ids)
		}
		return
	}
}

func TestLiveGridFollowsTechnologyChanges(t *testing.T) {
	env := setupEnv(t)
	srv := httptest.NewServer(env.router)
	t.Cleanup(srv.Close)

	events := openStream(t, srv, "/v1/live/projects?q=svelte")
	settled := func() []string {
		t.Helper()
		for {
			ev := waitFor(t, events, "snapshot")
			var snap struct {
				State string            `json:"state"`
				Items []json.RawMessage `json:"items"`
			}
			if err := json.Unmarshal([]byte(ev.Data), &snap); err != nil {
				t.Fatalf("decode snapshot %q: %v", ev.Data, err)
			}
			if snap.State != "loading" {
				return itemIDs(t, snap.Items)
			}
		}
	}
	if ids := settled(); len(ids) != 0 {
		t.Fatalf("expected no svelte projects got %v", ids)
	}

	tech := map[string]string{"id": "tech-99", "name": "Svelte", "category": "Frontend"}
	if w := env.do(t, http.MethodPut, "/v1/admin/technologies/tech-99", tech, bearer(t)); w.Code != http.StatusCreated {
		t.Fatalf("put technology: %d %s", w.Code, w.Body.String())
	}
	link := map[string]any{"id": "pt-99", "project_id": "project-3", "technology_id": "tech-99", "percentage_used": 40}
	if w := env.do(t, http.MethodPut, "/v1/admin/project_technologies/pt-99", link, bearer(t)); w.Code != http.StatusCreated {
		t.Fatalf("put link: %d %s", w.Code, w.Body.String())
	}

	// the technology insert alone may settle first; the link insert follows
	for {
		ids := settled()
		if strings.Join(ids, ",") == "project-3" {
			return
		}
		if len(ids) != 0 {
			t.Fatalf("expected [project-3] got %v", ids)
		}
	}
}
