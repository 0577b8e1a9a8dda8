package school

import (
	"time"

	"github.com/pkg/errors"

	"github.com/ensinoverso/backend/core/user"
)

var ErrNotFound = errors.New("class not found")

type (
	Repository interface {
		CreateClass(cls Class) (Class, error)
		QueryAllClasses() ([]Class, error)
		GetClassByID(id string) (Class, error)
		GetClassesByID(ids ...string) ([]Class, error)
		// UpdateClass updates non-zero fields of `cls`.
		UpdateClass(cls Class) (Class, error)
		DeleteClassesByID(ids ...string) error

		// skills catalog
		QueryAllSkills() (map[string][]Skill, error)
		SaveComponentSkills(component string, skills []Skill) error
	}

	Service interface {
		Create(nc NewClass) (Class, error)
		QueryAll() ([]Class, error)
		GetByID(id string) (Class, error)
		Update(id string, uc UpdateClass) (Class, error)
		Delete(ids ...string) error

		// ManageableBy returns the classes a teacher may act on: only those
		// already linked to the teacher by an admin. Teachers cannot
		// self-grant class access.
		ManageableBy(teacher user.User) ([]Class, error)

		Skills() (map[string][]Skill, error)
		SaveSkills(ss SaveSkills) error
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (svc *service) Create(nc NewClass) (Class, error) {
	now := time.Now().UTC()
	cls := Class{
		Name:        nc.Name,
		Year:        nc.Year,
		Description: nc.Description,
		ImageURL:    nc.ImageURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return svc.repo.CreateClass(cls)
}

func (svc *service) QueryAll() ([]Class, error) {
	return svc.repo.QueryAllClasses()
}

func (svc *service) GetByID(id string) (Class, error) {
	return svc.repo.GetClassByID(id)
}

func (svc *service) Update(id string, uc UpdateClass) (Class, error) {
	cls := Class{
		ID:          id,
		Name:        uc.Name,
		Year:        uc.Year,
		Description: uc.Description,
		ImageURL:    uc.ImageURL,
		UpdatedAt:   time.Now().UTC(),
	}
	return svc.repo.UpdateClass(cls)
}

func (svc *service) Delete(ids ...string) error {
	return svc.repo.DeleteClassesByID(ids...)
}

func (svc *service) ManageableBy(teacher user.User) ([]Class, error) {
	if len(teacher.ClassIDs) == 0 {
		return []Class{}, nil
	}
	return svc.repo.GetClassesByID(teacher.ClassIDs...)
}

func (svc *service) Skills() (map[string][]Skill, error) {
	return svc.repo.QueryAllSkills()
}

func (svc *service) SaveSkills(ss SaveSkills) error {
	return svc.repo.SaveComponentSkills(ss.Component, ss.Skills)
}
