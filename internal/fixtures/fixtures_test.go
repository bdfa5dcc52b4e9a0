package fixtures_test

import (
	"context"
	"strings"
	"testing"

	dbfs "github.com/garnizeh/folio/db"
	"github.com/garnizeh/folio/internal/fixtures"
	"github.com/garnizeh/folio/internal/models"
)

func TestLoadEmbeddedSeed(t *testing.T) {
	b, err := dbfs.PortfolioSeed()
	if err != nil {
		t.Fatalf("read seed: %v", err)
	}
	ds, err := fixtures.Load(context.Background(), b)
	if err != nil {
		t.Fatalf("load seed: %v", err)
	}
	projects := ds.Entities(models.Projects)
	if len(projects) != 6 {
		t.Fatalf("expected 6 projects, got %d", len(projects))
	}
	if projects[0].EntityID() != "project-1" || projects[5].EntityID() != "project-6" {
		t.Fatalf("expected file order, got %s..%s", projects[0].EntityID(), projects[5].EntityID())
	}
	if _, ok := ds.Lookup(models.Organizations, "org-1"); !ok {
		t.Fatalf("expected org-1")
	}
	if ds.Len() == 0 {
		t.Fatalf("expected records")
	}
}

func TestLoadRejectsDuplicateIDs(t *testing.T) {
	doc := `{"technologies":[{"id":"tech-1","name":"React"},{"id":"tech-1","name":"Vue"}]}`
	_, err := fixtures.Load(context.Background(), []byte(doc))
	if err == nil || !strings.Contains(err.Error(), "duplicate id") {
		t.Fatalf("expected duplicate id error, got %v", err)
	}
}

func TestLoadRejectsSchemaViolations(t *testing.T) {
	cases := map[string]string{
		"unknown collection": `{"users":[]}`,
		"bad owner type":     `{"projects":[{"id":"p","name":"x","owner_id":"o","owner_type":"TEAM","status":"ACTIVE","project_type":"WEB"}]}`,
		"missing id":         `{"technologies":[{"name":"React"}]}`,
		"rating range":       `{"reviews":[{"id":"r","project_id":"p","rating":9}]}`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := fixtures.Load(context.Background(), []byte(doc)); err == nil {
				t.Fatalf("expected error for %s", name)
			}
		})
	}
}

func TestDecode(t *testing.T) {
	e, err := fixtures.Decode(models.Skills, []byte(`{"id":"s1","name":"Go","mastery_percentage":80,"owner_id":"m1","owner_type":"MEMBER"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	s, ok := e.(*models.Skill)
	if !ok || s.OwnerRef() != models.MemberOwner("m1") {
		t.Fatalf("unexpected skill %#v", e)
	}
	if _, err := fixtures.Decode(models.Skills, []byte(`{"id":"s1","owner_type":"X"}`)); err == nil {
		t.Fatalf("expected validation error")
	}
}
