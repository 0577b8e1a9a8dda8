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
	"github.com/ensinoverso/backend/core/lesson"
)

type lessonRow struct {
	ID         string         `db:"id"`
	Title      string         `db:"title"`
	Body       string         `db:"body"`
	School     string         `db:"school"`
	Subject    string         `db:"subject"`
	TeacherID  string         `db:"teacher_id"`
	ClassIDs   pq.StringArray `db:"class_ids"`
	Status     string         `db:"status"`
	Skills     pq.StringArray `db:"skills"`
	Keywords   pq.StringArray `db:"keywords"`
	ExtraLinks pq.StringArray `db:"extra_links"`
	ImageURL   string         `db:"image_url"`
	CreatedAt  null.Time      `db:"created_at"`
	UpdatedAt  null.Time      `db:"updated_at"`
}

func (r lessonRow) toLesson() lesson.Lesson {
	return lesson.Lesson{
		ID:         r.ID,
		Title:      r.Title,
		Body:       r.Body,
		School:     r.School,
		Subject:    r.Subject,
		TeacherID:  r.TeacherID,
		ClassIDs:   r.ClassIDs,
		Status:     r.Status,
		Skills:     r.Skills,
		Keywords:   r.Keywords,
		ExtraLinks: r.ExtraLinks,
		ImageURL:   r.ImageURL,
		CreatedAt:  r.CreatedAt.Time,
		UpdatedAt:  r.UpdatedAt.Time,
	}
}

type questionRow struct {
	ID            string         `db:"id"`
	LessonID      string         `db:"lesson_id"`
	Position      int            `db:"position"`
	Prompt        string         `db:"prompt"`
	Choices       pq.StringArray `db:"choices"`
	CorrectChoice int            `db:"correct_choice"`
}

func (r questionRow) toQuestion() lesson.Question {
	return lesson.Question{
		ID:            r.ID,
		LessonID:      r.LessonID,
		Prompt:        r.Prompt,
		Choices:       r.Choices,
		CorrectChoice: r.CorrectChoice,
	}
}

type resultRow struct {
	ID                 string       `db:"id"`
	StudentID          string       `db:"student_id"`
	LessonID           string       `db:"lesson_id"`
	CorrectCount       int          `db:"correct_count"`
	TotalCount         int          `db:"total_count"`
	PerQuestionCorrect pq.BoolArray `db:"per_question_correct"`
	SubmittedAt        null.Time    `db:"submitted_at"`
}

func (r resultRow) toResult() lesson.Result {
	return lesson.Result{
		ID:                 r.ID,
		StudentID:          r.StudentID,
		LessonID:           r.LessonID,
		CorrectCount:       r.CorrectCount,
		TotalCount:         r.TotalCount,
		PerQuestionCorrect: r.PerQuestionCorrect,
		SubmittedAt:        r.SubmittedAt.Time,
	}
}

type lessonRepository struct {
	db   *sqlx.DB
	conn core.DB
}

var _ lesson.Repository = (*lessonRepository)(nil) // interface compliance check

func NewLessonRepository(db *sql.DB) lesson.Repository {
	return &lessonRepository{db: sqlx.NewDb(db, "postgres"), conn: db}
}

func (repo *lessonRepository) CreateLesson(les lesson.Lesson, questions []lesson.Question) (lesson.Lesson, error) {
	if les.ID == "" {
		les.ID = uuid.New().String()
	}

	tx, err := repo.conn.Begin()
	if err != nil {
		return lesson.Lesson{}, dbError(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	query := `
		INSERT INTO lesson (id, title, body, school, subject, teacher_id, class_ids, status,
			skills, keywords, extra_links, image_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	_, err = tx.Exec(query,
		les.ID, les.Title, les.Body, les.School, les.Subject, les.TeacherID,
		pq.Array(les.ClassIDs), les.Status, pq.Array(les.Skills), pq.Array(les.Keywords),
		pq.Array(les.ExtraLinks), les.ImageURL, les.CreatedAt, les.UpdatedAt,
	)
	if err != nil {
		return lesson.Lesson{}, dbError(err, "creating lesson")
	}

	if err = insertQuestions(tx, les.ID, questions); err != nil {
		return lesson.Lesson{}, err
	}
	if err = tx.Commit(); err != nil {
		return lesson.Lesson{}, dbError(err, "committing transaction")
	}
	return les, nil
}

func (repo *lessonRepository) QueryAllLessons() ([]lesson.Lesson, error) {
	var rows []lessonRow
	if err := repo.db.Select(&rows, `SELECT * FROM lesson ORDER BY created_at DESC`); err != nil {
		return nil, dbError(err, "querying lessons")
	}
	return rowsToLessons(rows), nil
}

func (repo *lessonRepository) GetLessonByID(id string) (lesson.Lesson, error) {
	var row lessonRow
	if err := repo.db.Get(&row, `SELECT * FROM lesson WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return lesson.Lesson{}, lesson.ErrNotFound
		}
		return lesson.Lesson{}, dbError(err, "getting lesson")
	}
	return row.toLesson(), nil
}

func (repo *lessonRepository) GetLessonQuestions(lessonID string) ([]lesson.Question, error) {
	var rows []questionRow
	query := `SELECT * FROM question WHERE lesson_id = $1 ORDER BY position`
	if err := repo.db.Select(&rows, query, lessonID); err != nil {
		return nil, dbError(err, "querying questions")
	}
	questions := make([]lesson.Question, 0, len(rows))
	for _, row := range rows {
		questions = append(questions, row.toQuestion())
	}
	return questions, nil
}

// columns the API may order lesson queries by
var sortableLessonColumns = map[string]bool{
	"title":      true,
	"subject":    true,
	"school":     true,
	"status":     true,
	"created_at": true,
	"updated_at": true,
}

func (repo *lessonRepository) FilterLessons(filter lesson.QueryFilter, ordering ...core.DBOrdering) ([]lesson.Lesson, error) {
	where := make([]string, 0, 3)
	args := make([]interface{}, 0, 3)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.TeacherID != "" {
		where = append(where, "teacher_id = "+arg(filter.TeacherID))
	}
	if filter.Status != "" {
		where = append(where, "status = "+arg(filter.Status))
	}
	if filter.ClassID != "" {
		where = append(where, arg(filter.ClassID)+" = ANY(class_ids)")
	}

	query := `SELECT * FROM lesson`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += orderingClause(ordering, sortableLessonColumns, "created_at DESC")

	var rows []lessonRow
	if err := repo.db.Select(&rows, query, args...); err != nil {
		return nil, dbError(err, "filtering lessons")
	}
	return rowsToLessons(rows), nil
}

func (repo *lessonRepository) UpdateLesson(les lesson.Lesson, questions []lesson.Question) (lesson.Lesson, error) {
	tx, err := repo.conn.Begin()
	if err != nil {
		return lesson.Lesson{}, dbError(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	// only save set fields
	set := make([]string, 0, 11)
	args := make([]interface{}, 0, 11)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if les.Title != "" {
		set = append(set, "title = "+arg(les.Title))
	}
	if les.Body != "" {
		set = append(set, "body = "+arg(les.Body))
	}
	if les.School != "" {
		set = append(set, "school = "+arg(les.School))
	}
	if les.Subject != "" {
		set = append(set, "subject = "+arg(les.Subject))
	}
	if les.ClassIDs != nil {
		set = append(set, "class_ids = "+arg(pq.Array(les.ClassIDs)))
	}
	if les.Status != "" {
		set = append(set, "status = "+arg(les.Status))
	}
	if les.Skills != nil {
		set = append(set, "skills = "+arg(pq.Array(les.Skills)))
	}
	if les.Keywords != nil {
		set = append(set, "keywords = "+arg(pq.Array(les.Keywords)))
	}
	if les.ExtraLinks != nil {
		set = append(set, "extra_links = "+arg(pq.Array(les.ExtraLinks)))
	}
	if les.ImageURL != "" {
		set = append(set, "image_url = "+arg(les.ImageURL))
	}
	if !les.UpdatedAt.IsZero() {
		set = append(set, "updated_at = "+arg(les.UpdatedAt))
	}

	if len(set) > 0 {
		query := fmt.Sprintf(`UPDATE lesson SET %s WHERE id = %s`, strings.Join(set, ", "), arg(les.ID))
		res, err := tx.Exec(query, args...)
		if err != nil {
			return lesson.Lesson{}, dbError(err, "updating lesson")
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return lesson.Lesson{}, lesson.ErrNotFound
		}
	}

	// a nil questions slice keeps the existing quiz
	if questions != nil {
		if _, err = tx.Exec(`DELETE FROM question WHERE lesson_id = $1`, les.ID); err != nil {
			return lesson.Lesson{}, dbError(err, "clearing questions")
		}
		if err = insertQuestions(tx, les.ID, questions); err != nil {
			return lesson.Lesson{}, err
		}
	}

	if err = tx.Commit(); err != nil {
		return lesson.Lesson{}, dbError(err, "committing transaction")
	}
	return repo.GetLessonByID(les.ID)
}

// DeleteLessonsByID relies on ON DELETE CASCADE to drop questions and
// results with their lessons.
func (repo *lessonRepository) DeleteLessonsByID(ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := repo.db.Exec(`DELETE FROM lesson WHERE id = ANY($1)`, pq.Array(ids)); err != nil {
		return dbError(err, "deleting lessons")
	}
	return nil
}

func (repo *lessonRepository) CreateResult(res lesson.Result) (lesson.Result, error) {
	if res.ID == "" {
		res.ID = uuid.New().String()
	}
	query := `
		INSERT INTO result (id, student_id, lesson_id, correct_count, total_count, per_question_correct, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := repo.db.Exec(query,
		res.ID, res.StudentID, res.LessonID, res.CorrectCount, res.TotalCount,
		pq.Array(res.PerQuestionCorrect), res.SubmittedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return lesson.Result{}, lesson.ErrResultExists
		}
		return lesson.Result{}, dbError(err, "creating result")
	}
	return res, nil
}

func (repo *lessonRepository) GetResult(studentID, lessonID string) (lesson.Result, error) {
	var row resultRow
	query := `SELECT * FROM result WHERE student_id = $1 AND lesson_id = $2`
	if err := repo.db.Get(&row, query, studentID, lessonID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return lesson.Result{}, lesson.ErrResultNotFound
		}
		return lesson.Result{}, dbError(err, "getting result")
	}
	return row.toResult(), nil
}

func (repo *lessonRepository) GetResultsByLesson(lessonID string) ([]lesson.Result, error) {
	var rows []resultRow
	query := `SELECT * FROM result WHERE lesson_id = $1 ORDER BY submitted_at`
	if err := repo.db.Select(&rows, query, lessonID); err != nil {
		return nil, dbError(err, "querying results")
	}
	return rowsToResults(rows), nil
}

func (repo *lessonRepository) GetResultsByStudent(studentID string) ([]lesson.Result, error) {
	var rows []resultRow
	query := `SELECT * FROM result WHERE student_id = $1 ORDER BY submitted_at`
	if err := repo.db.Select(&rows, query, studentID); err != nil {
		return nil, dbError(err, "querying results")
	}
	return rowsToResults(rows), nil
}

func insertQuestions(exec core.DBExecutor, lessonID string, questions []lesson.Question) error {
	for i, q := range questions {
		if q.ID == "" {
			q.ID = uuid.New().String()
		}
		_, err := exec.Exec(
			`INSERT INTO question (id, lesson_id, position, prompt, choices, correct_choice)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			q.ID, lessonID, i, q.Prompt, pq.Array(q.Choices), q.CorrectChoice,
		)
		if err != nil {
			return dbError(err, "creating question")
		}
	}
	return nil
}

func rowsToLessons(rows []lessonRow) []lesson.Lesson {
	lessons := make([]lesson.Lesson, 0, len(rows))
	for _, row := range rows {
		lessons = append(lessons, row.toLesson())
	}
	return lessons
}

func rowsToResults(rows []resultRow) []lesson.Result {
	results := make([]lesson.Result, 0, len(rows))
	for _, row := range rows {
		results = append(results, row.toResult())
	}
	return results
}
