package school

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ensinoverso/backend/core"
)

// Class is a cohort of students that Lessons target and Users belong to.
type Class struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Year        string    `json:"year"`
	Description string    `json:"description,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
}

// Skill is one curriculum skill reference entry, grouped by subject component.
type Skill struct {
	Code        string `json:"code" validate:"required"`
	Description string `json:"description" validate:"required"`
	Component   string `json:"component"`
	Year        string `json:"year"`
}

type NewClass struct {
	Name        string `json:"name" validate:"required"`
	Year        string `json:"year" validate:"required"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url" validate:"omitempty,url"`
}

func (nc *NewClass) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	nc.Year = core.CleanString(nc.Year)
	nc.Description = core.CleanString(nc.Description)
	nc.ImageURL = core.CleanString(nc.ImageURL)
	return validate.Struct(nc)
}

// UpdateClass defines what information may be provided to modify an existing Class.
type UpdateClass struct {
	Name        string `json:"name"`
	Year        string `json:"year"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url" validate:"omitempty,url"`
}

func (uc *UpdateClass) Validate(origCls Class, validate *validator.Validate) error {
	name := core.CleanString(uc.Name)
	if name != "" {
		uc.Name = name
	} else {
		uc.Name = origCls.Name
	}

	year := core.CleanString(uc.Year)
	if year != "" {
		uc.Year = year
	} else {
		uc.Year = origCls.Year
	}

	uc.Description = core.CleanString(uc.Description)
	uc.ImageURL = core.CleanString(uc.ImageURL)
	return validate.Struct(uc)
}

type SaveSkills struct {
	Component string  `json:"component" validate:"required"`
	Skills    []Skill `json:"skills" validate:"required,dive"`
}

func (ss *SaveSkills) Validate(validate *validator.Validate) error {
	ss.Component = core.CleanString(ss.Component)
	return validate.Struct(ss)
}
