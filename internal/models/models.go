package models

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownCollection = errors.New("unknown collection")
	ErrUnknownOwnerType  = errors.New("unknown owner type")
)

// Collection names a logical table of the portfolio dataset. The same name is
// used as the change-notification table and as the root of cache keys.
type Collection string

const (
	Organizations       Collection = "organizations"
	Members             Collection = "members"
	Projects            Collection = "projects"
	ProjectPhotos       Collection = "project_photos"
	Technologies        Collection = "technologies"
	ProjectTechnologies Collection = "project_technologies"
	Skills              Collection = "skills"
	Contacts            Collection = "contacts"
	Reviews             Collection = "reviews"
	WorkExperiences     Collection = "work_experiences"
	Documents           Collection = "documents"
	Certificates        Collection = "certificates"
	ProjectTeam         Collection = "project_team"
)

// Collections lists every collection in dataset order.
var Collections = []Collection{
	Organizations, Members, Projects, ProjectPhotos, Technologies,
	ProjectTechnologies, Skills, Contacts, Reviews, WorkExperiences,
	Documents, Certificates, ProjectTeam,
}

func ParseCollection(s string) (Collection, error) {
	for _, c := range Collections {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCollection, s)
}

// NewEntity returns a pointer to the zero value of the collection's record
// type, ready to be decoded into.
func NewEntity(c Collection) (Entity, error) {
	switch c {
	case Organizations:
		return &Organization{}, nil
	case Members:
		return &Member{}, nil
	case Projects:
		return &Project{}, nil
	case ProjectPhotos:
		return &ProjectPhoto{}, nil
	case Technologies:
		return &Technology{}, nil
	case ProjectTechnologies:
		return &ProjectTechnology{}, nil
	case Skills:
		return &Skill{}, nil
	case Contacts:
		return &Contact{}, nil
	case Reviews:
		return &Review{}, nil
	case WorkExperiences:
		return &WorkExperience{}, nil
	case Documents:
		return &Document{}, nil
	case Certificates:
		return &Certificate{}, nil
	case ProjectTeam:
		return &TeamMembership{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownCollection, c)
}

// Entity is any record stored in a collection.
type Entity interface {
	EntityID() string
}

// Owned is implemented by records that reference an owner by (id, type).
type Owned interface {
	Entity
	OwnerRef() Owner
}

// ProjectChild is implemented by records hanging off a project.
type ProjectChild interface {
	Entity
	ProjectRef() string
}

// Validator is implemented by records that can check their enum fields.
type Validator interface {
	Validate() error
}

// Validate checks the id and, when available, the record's own constraints.
func Validate(e Entity) error {
	if e == nil {
		return errors.New("nil entity")
	}
	if e.EntityID() == "" {
		return errors.New("missing id")
	}
	if v, ok := e.(Validator); ok {
		return v.Validate()
	}
	return nil
}

type OwnerType string

const (
	OwnerOrganization OwnerType = "ORGANIZATION"
	OwnerMember       OwnerType = "MEMBER"
)

func (t OwnerType) Valid() bool {
	return t == OwnerOrganization || t == OwnerMember
}

// Owner is the (id, type) pair a polymorphic child uses to reference its
// owning organization or member.
type Owner struct {
	Type OwnerType `json:"owner_type"`
	ID   string    `json:"owner_id"`
}

func OrganizationOwner(id string) Owner { return Owner{Type: OwnerOrganization, ID: id} }

func MemberOwner(id string) Owner { return Owner{Type: OwnerMember, ID: id} }

// Collection is the single dispatch point from an owner discriminant to the
// collection holding the owner record.
func (o Owner) Collection() (Collection, error) {
	switch o.Type {
	case OwnerOrganization:
		return Organizations, nil
	case OwnerMember:
		return Members, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownOwnerType, o.Type)
}

func (o Owner) String() string {
	return string(o.Type) + "/" + o.ID
}
