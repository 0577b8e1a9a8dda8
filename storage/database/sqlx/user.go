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

	"github.com/ensinoverso/backend/core"
	"github.com/ensinoverso/backend/core/user"
)

type userRow struct {
	ID           string         `db:"id"`
	Name         string         `db:"name"`
	Email        string         `db:"email"`
	Role         string         `db:"role"`
	IsActive     bool           `db:"is_active"`
	ClassIDs     pq.StringArray `db:"class_ids"`
	PasswordHash []byte         `db:"password_hash"`
	CreatedAt    null.Time      `db:"created_at"`
	UpdatedAt    null.Time      `db:"updated_at"`
	LastLogin    null.Time      `db:"last_login"`
}

func (r userRow) toUser() user.User {
	return user.User{
		ID:           r.ID,
		Name:         r.Name,
		Email:        r.Email,
		Role:         r.Role,
		IsActive:     r.IsActive,
		ClassIDs:     r.ClassIDs,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt.Time,
		UpdatedAt:    r.UpdatedAt.Time,
		LastLogin:    r.LastLogin.Time,
	}
}

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sql.DB) user.Repository {
	return &userRepository{db: sqlx.NewDb(db, "postgres")}
}

func (repo *userRepository) CheckEmailUniqueness(email string, excludedUsers ...user.User) error {
	query := `SELECT COUNT(*) FROM "user" WHERE email = $1`
	args := []interface{}{email}
	if len(excludedUsers) > 0 {
		ids := make([]string, 0, len(excludedUsers))
		for _, usr := range excludedUsers {
			ids = append(ids, usr.ID)
		}
		query += ` AND NOT (id = ANY($2))`
		args = append(args, pq.Array(ids))
	}

	var count int
	if err := repo.db.Get(&count, query, args...); err != nil {
		return dbError(err, "checking email uniqueness")
	}
	if count > 0 {
		return user.ErrEmailExists
	}
	return nil
}

func (repo *userRepository) CountUsers() (int, error) {
	var count int
	if err := repo.db.Get(&count, `SELECT COUNT(*) FROM "user"`); err != nil {
		return 0, dbError(err, "counting users")
	}
	return count, nil
}

func (repo *userRepository) CreateUser(usr user.User) (user.User, error) {
	if usr.ID == "" {
		usr.ID = uuid.New().String()
	}
	query := `
		INSERT INTO "user" (id, name, email, role, is_active, class_ids, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := repo.db.Exec(query,
		usr.ID, usr.Name, usr.Email, usr.Role, usr.IsActive,
		pq.Array(usr.ClassIDs), usr.PasswordHash, usr.CreatedAt, usr.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, dbError(err, "creating user")
	}
	return usr, nil
}

func (repo *userRepository) QueryAllUsers() ([]user.User, error) {
	var rows []userRow
	if err := repo.db.Select(&rows, `SELECT * FROM "user"`); err != nil {
		return nil, dbError(err, "querying users")
	}
	return rowsToUsers(rows), nil
}

func (repo *userRepository) GetUserByID(id string) (user.User, error) {
	var row userRow
	if err := repo.db.Get(&row, `SELECT * FROM "user" WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, dbError(err, "getting user")
	}
	return row.toUser(), nil
}

func (repo *userRepository) GetUserByEmail(email string) (user.User, error) {
	var row userRow
	if err := repo.db.Get(&row, `SELECT * FROM "user" WHERE email = $1`, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, dbError(err, "getting user")
	}
	return row.toUser(), nil
}

// columns the API may order user queries by
var sortableUserColumns = map[string]bool{
	"name":       true,
	"email":      true,
	"role":       true,
	"is_active":  true,
	"created_at": true,
	"last_login": true,
}

func (repo *userRepository) FilterUsers(filter user.QueryFilter, ordering ...core.DBOrdering) ([]user.User, error) {
	where := make([]string, 0, 6)
	args := make([]interface{}, 0, 6)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Search != "" {
		p := arg("%" + strings.ToLower(filter.Search) + "%")
		where = append(where, fmt.Sprintf("(LOWER(name) LIKE %s OR LOWER(email) LIKE %s)", p, p))
	}
	if filter.Role != "" {
		where = append(where, "role = "+arg(filter.Role))
	}
	if filter.IsActive != nil {
		where = append(where, "is_active = "+arg(*filter.IsActive))
	}
	if filter.ClassID != "" {
		where = append(where, arg(filter.ClassID)+" = ANY(class_ids)")
	}
	if !filter.CreatedFrom.IsZero() {
		where = append(where, "created_at >= "+arg(filter.CreatedFrom.UTC()))
	}
	if !filter.CreatedTo.IsZero() {
		where = append(where, "created_at <= "+arg(filter.CreatedTo.UTC()))
	}

	query := `SELECT * FROM "user"`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += orderingClause(ordering, sortableUserColumns, "")

	var rows []userRow
	if err := repo.db.Select(&rows, query, args...); err != nil {
		return nil, dbError(err, "filtering users")
	}
	return rowsToUsers(rows), nil
}

func (repo *userRepository) UpdateUser(usr user.User, isActive *bool) (user.User, error) {
	// only save set fields
	set := make([]string, 0, 8)
	args := make([]interface{}, 0, 8)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if usr.Name != "" {
		set = append(set, "name = "+arg(usr.Name))
	}
	if usr.Email != "" {
		set = append(set, "email = "+arg(usr.Email))
	}
	if usr.Role != "" {
		set = append(set, "role = "+arg(usr.Role))
	}
	if usr.ClassIDs != nil {
		set = append(set, "class_ids = "+arg(pq.Array(usr.ClassIDs)))
	}
	if usr.PasswordHash != nil {
		set = append(set, "password_hash = "+arg(usr.PasswordHash))
	}
	if isActive != nil {
		set = append(set, "is_active = "+arg(*isActive))
	}
	if !usr.UpdatedAt.IsZero() {
		set = append(set, "updated_at = "+arg(usr.UpdatedAt))
	}
	if !usr.LastLogin.IsZero() {
		set = append(set, "last_login = "+arg(usr.LastLogin))
	}
	if len(set) == 0 {
		return repo.GetUserByID(usr.ID)
	}

	query := fmt.Sprintf(`UPDATE "user" SET %s WHERE id = %s`, strings.Join(set, ", "), arg(usr.ID))
	res, err := repo.db.Exec(query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, dbError(err, "updating user")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return repo.GetUserByID(usr.ID)
}

func (repo *userRepository) DeleteUsersByID(ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := repo.db.Exec(`DELETE FROM "user" WHERE id = ANY($1)`, pq.Array(ids)); err != nil {
		return dbError(err, "deleting users")
	}
	return nil
}

func rowsToUsers(rows []userRow) []user.User {
	users := make([]user.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.toUser())
	}
	return users
}
