package sqlxrepos

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/ensinoverso/backend/core/school"
)

type classRow struct {
	ID          string    `db:"id"`
	Name        string    `db:"name"`
	Year        string    `db:"year"`
	Description string    `db:"description"`
	ImageURL    string    `db:"image_url"`
	CreatedAt   null.Time `db:"created_at"`
	UpdatedAt   null.Time `db:"updated_at"`
}

func (r classRow) toClass() school.Class {
	return school.Class{
		ID:          r.ID,
		Name:        r.Name,
		Year:        r.Year,
		Description: r.Description,
		ImageURL:    r.ImageURL,
		CreatedAt:   r.CreatedAt.Time,
		UpdatedAt:   r.UpdatedAt.Time,
	}
}

type skillRow struct {
	Component   string `db:"component"`
	Code        string `db:"code"`
	Description string `db:"description"`
	Year        string `db:"year"`
}

type schoolRepository struct {
	db *sqlx.DB
}

var _ school.Repository = (*schoolRepository)(nil) // interface compliance check

func NewSchoolRepository(db *sql.DB) school.Repository {
	return &schoolRepository{db: sqlx.NewDb(db, "postgres")}
}

func (repo *schoolRepository) CreateClass(cls school.Class) (school.Class, error) {
	if cls.ID == "" {
		cls.ID = uuid.New().String()
	}
	query := `
		INSERT INTO class (id, name, year, description, image_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := repo.db.Exec(query,
		cls.ID, cls.Name, cls.Year, cls.Description, cls.ImageURL, cls.CreatedAt, cls.UpdatedAt,
	)
	if err != nil {
		return school.Class{}, dbError(err, "creating class")
	}
	return cls, nil
}

func (repo *schoolRepository) QueryAllClasses() ([]school.Class, error) {
	var rows []classRow
	if err := repo.db.Select(&rows, `SELECT * FROM class ORDER BY year, name`); err != nil {
		return nil, dbError(err, "querying classes")
	}
	return rowsToClasses(rows), nil
}

func (repo *schoolRepository) GetClassByID(id string) (school.Class, error) {
	var row classRow
	if err := repo.db.Get(&row, `SELECT * FROM class WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return school.Class{}, school.ErrNotFound
		}
		return school.Class{}, dbError(err, "getting class")
	}
	return row.toClass(), nil
}

func (repo *schoolRepository) GetClassesByID(ids ...string) ([]school.Class, error) {
	if len(ids) == 0 {
		return []school.Class{}, nil
	}
	var rows []classRow
	query := `SELECT * FROM class WHERE id = ANY($1) ORDER BY year, name`
	if err := repo.db.Select(&rows, query, pq.Array(ids)); err != nil {
		return nil, dbError(err, "querying classes")
	}
	return rowsToClasses(rows), nil
}

func (repo *schoolRepository) UpdateClass(cls school.Class) (school.Class, error) {
	// only save set fields
	set := make([]string, 0, 5)
	args := make([]interface{}, 0, 5)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if cls.Name != "" {
		set = append(set, "name = "+arg(cls.Name))
	}
	if cls.Year != "" {
		set = append(set, "year = "+arg(cls.Year))
	}
	if cls.Description != "" {
		set = append(set, "description = "+arg(cls.Description))
	}
	if cls.ImageURL != "" {
		set = append(set, "image_url = "+arg(cls.ImageURL))
	}
	if !cls.UpdatedAt.IsZero() {
		set = append(set, "updated_at = "+arg(cls.UpdatedAt))
	}
	if len(set) == 0 {
		return repo.GetClassByID(cls.ID)
	}

	query := fmt.Sprintf(`UPDATE class SET %s WHERE id = %s`, strings.Join(set, ", "), arg(cls.ID))
	res, err := repo.db.Exec(query, args...)
	if err != nil {
		return school.Class{}, dbError(err, "updating class")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return school.Class{}, school.ErrNotFound
	}
	return repo.GetClassByID(cls.ID)
}

func (repo *schoolRepository) DeleteClassesByID(ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := repo.db.Exec(`DELETE FROM class WHERE id = ANY($1)`, pq.Array(ids)); err != nil {
		return dbError(err, "deleting classes")
	}
	return nil
}

func (repo *schoolRepository) QueryAllSkills() (map[string][]school.Skill, error) {
	var rows []skillRow
	if err := repo.db.Select(&rows, `SELECT * FROM skill ORDER BY component, code`); err != nil {
		return nil, dbError(err, "querying skills")
	}

	skills := make(map[string][]school.Skill)
	for _, row := range rows {
		skills[row.Component] = append(skills[row.Component], school.Skill{
			Code:        row.Code,
			Description: row.Description,
			Component:   row.Component,
			Year:        row.Year,
		})
	}
	return skills, nil
}

// SaveComponentSkills replaces a component's skill catalog wholesale.
func (repo *schoolRepository) SaveComponentSkills(component string, skills []school.Skill) error {
	tx, err := repo.db.Beginx()
	if err != nil {
		return dbError(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err = tx.Exec(`DELETE FROM skill WHERE component = $1`, component); err != nil {
		return dbError(err, "clearing component skills")
	}
	for _, sk := range skills {
		_, err = tx.Exec(
			`INSERT INTO skill (component, code, description, year) VALUES ($1, $2, $3, $4)`,
			component, sk.Code, sk.Description, sk.Year,
		)
		if err != nil {
			return dbError(err, "saving skill "+sk.Code)
		}
	}
	return dbError(tx.Commit(), "committing transaction")
}

func rowsToClasses(rows []classRow) []school.Class {
	classes := make([]school.Class, 0, len(rows))
	for _, row := range rows {
		classes = append(classes, row.toClass())
	}
	return classes
}
