package dummydb

import (
	"github.com/google/uuid"

	"github.com/ensinoverso/backend/core/school"
)

type schoolRepository struct {
	db *schoolTable
}

var _ school.Repository = (*schoolRepository)(nil) // interface compliance check

func NewSchoolRepository(db *DB) school.Repository {
	return &schoolRepository{db: db.school}
}

func (repo *schoolRepository) CreateClass(cls school.Class) (school.Class, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if cls.ID == "" {
		cls.ID = uuid.New().String()
	}
	repo.db.classes[cls.ID] = &cls
	return cls, nil
}

func (repo *schoolRepository) QueryAllClasses() ([]school.Class, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	classes := make([]school.Class, 0, len(repo.db.classes))
	for _, cls := range repo.db.classes {
		classes = append(classes, *cls)
	}
	return classes, nil
}

func (repo *schoolRepository) GetClassByID(id string) (school.Class, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if cls, ok := repo.db.classes[id]; ok {
		return *cls, nil
	}
	return school.Class{}, school.ErrNotFound
}

func (repo *schoolRepository) GetClassesByID(ids ...string) ([]school.Class, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	classes := make([]school.Class, 0, len(ids))
	for _, id := range ids {
		if cls, ok := repo.db.classes[id]; ok {
			classes = append(classes, *cls)
		}
	}
	return classes, nil
}

func (repo *schoolRepository) UpdateClass(cls school.Class) (school.Class, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	origCls, ok := repo.db.classes[cls.ID]
	if !ok {
		return school.Class{}, school.ErrNotFound
	}
	if cls.Name != "" {
		origCls.Name = cls.Name
	}
	if cls.Year != "" {
		origCls.Year = cls.Year
	}
	if cls.Description != "" {
		origCls.Description = cls.Description
	}
	if cls.ImageURL != "" {
		origCls.ImageURL = cls.ImageURL
	}
	if !cls.UpdatedAt.IsZero() {
		origCls.UpdatedAt = cls.UpdatedAt
	}

	repo.db.classes[cls.ID] = origCls
	return *origCls, nil
}

func (repo *schoolRepository) DeleteClassesByID(ids ...string) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	for _, id := range ids {
		delete(repo.db.classes, id)
	}
	return nil
}

func (repo *schoolRepository) QueryAllSkills() (map[string][]school.Skill, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	skills := make(map[string][]school.Skill, len(repo.db.skills))
	for component, sks := range repo.db.skills {
		skills[component] = append([]school.Skill(nil), sks...)
	}
	return skills, nil
}

func (repo *schoolRepository) SaveComponentSkills(component string, skills []school.Skill) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.skills[component] = append([]school.Skill(nil), skills...)
	return nil
}
