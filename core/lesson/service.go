package lesson

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/ensinoverso/backend/core"
	"github.com/ensinoverso/backend/core/user"
)

var (
	// errors
	ErrNotFound       = errors.New("lesson not found")
	ErrResultNotFound = errors.New("result not found")
	// ErrResultExists is surfaced by repositories on a duplicate
	// (student, lesson) result; the service resolves it as an idempotent read.
	ErrResultExists = errors.New("a result for this student and lesson already exists")

	ErrNotEnrolled          = errors.New("student is not enrolled in any of the lesson's classes")
	ErrIncompleteSubmission = errors.New("the submission does not answer every question")
)

type (
	Repository interface {
		// CreateLesson persists the lesson and its questions as one unit.
		CreateLesson(les Lesson, questions []Question) (Lesson, error)
		QueryAllLessons() ([]Lesson, error)
		GetLessonByID(id string) (Lesson, error)
		// GetLessonQuestions returns the lesson's questions in their stable order.
		GetLessonQuestions(lessonID string) ([]Question, error)
		// FilterLessons applies AND operation on available QueryFilter fields.
		// Unknown ordering fields are ignored.
		FilterLessons(filter QueryFilter, ordering ...core.DBOrdering) ([]Lesson, error)
		// UpdateLesson updates non-zero fields of `les`. A nil `questions`
		// keeps the existing quiz; a non-nil one replaces it entirely.
		UpdateLesson(les Lesson, questions []Question) (Lesson, error)
		// DeleteLessonsByID deletes the lessons and cascades to their
		// questions and results as a single transactional batch.
		DeleteLessonsByID(ids ...string) error

		// CreateResult persists a result exactly once; it returns
		// ErrResultExists if a result for (StudentID, LessonID) is already
		// stored. Results are never updated.
		CreateResult(res Result) (Result, error)
		GetResult(studentID, lessonID string) (Result, error)
		GetResultsByLesson(lessonID string) ([]Result, error)
		GetResultsByStudent(studentID string) ([]Result, error)
	}

	Service interface {
		Create(teacher user.User, nl NewLesson) (LessonWithQuestions, error)
		Update(origLes Lesson, ul UpdateLesson) (LessonWithQuestions, error)
		QueryAll(ordering ...core.DBOrdering) ([]Lesson, error)
		GetByID(id string) (LessonWithQuestions, error)
		ByTeacher(teacherID string, ordering ...core.DBOrdering) ([]Lesson, error)
		// ForStudent returns the lessons a student may see: published lessons
		// targeting at least one of the student's classes.
		ForStudent(student user.User) ([]Lesson, error)
		Delete(ids ...string) error

		Submit(student user.User, lessonID string, sub SubmitAnswers) (Result, error)
		ResultsByStudent(studentID string) ([]Result, error)
		Report(lessonID, filterClassID string) (Report, error)
		// EmailReport sends the lesson's performance report to the teacher as
		// a CSV attachment.
		EmailReport(teacher user.User, les Lesson, filterClassID string) error

		GenerateContent(ctx context.Context, in GenerateInput) (GeneratedLesson, error)
	}

	service struct {
		repo    Repository
		usrRepo user.Repository
		gen     Generator
		mailSvc core.EmailService
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, usrRepo user.Repository, gen Generator, mailSvc core.EmailService) Service {
	return &service{
		repo:    repo,
		usrRepo: usrRepo,
		gen:     gen,
		mailSvc: mailSvc,
	}
}

func (svc *service) Create(teacher user.User, nl NewLesson) (LessonWithQuestions, error) {
	now := time.Now().UTC()
	les := Lesson{
		Title:      nl.Title,
		Body:       nl.Body,
		School:     nl.School,
		Subject:    nl.Subject,
		TeacherID:  teacher.ID,
		ClassIDs:   nl.ClassIDs,
		Status:     nl.Status,
		Skills:     nl.Skills,
		Keywords:   nl.Keywords,
		ExtraLinks: nl.ExtraLinks,
		ImageURL:   nl.ImageURL,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	questions := buildQuestions(nl.Questions)

	les, err := svc.repo.CreateLesson(les, questions)
	if err != nil {
		return LessonWithQuestions{}, err
	}
	return svc.GetByID(les.ID)
}

func (svc *service) Update(origLes Lesson, ul UpdateLesson) (LessonWithQuestions, error) {
	les := Lesson{
		ID:         origLes.ID,
		Title:      ul.Title,
		Body:       ul.Body,
		School:     ul.School,
		Subject:    ul.Subject,
		ClassIDs:   ul.ClassIDs,
		Status:     ul.Status,
		Skills:     ul.Skills,
		Keywords:   ul.Keywords,
		ExtraLinks: ul.ExtraLinks,
		ImageURL:   ul.ImageURL,
		UpdatedAt:  time.Now().UTC(),
	}

	var questions []Question
	if ul.Questions != nil {
		questions = buildQuestions(ul.Questions)
	}

	les, err := svc.repo.UpdateLesson(les, questions)
	if err != nil {
		return LessonWithQuestions{}, err
	}
	return svc.GetByID(les.ID)
}

func (svc *service) QueryAll(ordering ...core.DBOrdering) ([]Lesson, error) {
	if len(ordering) > 0 {
		return svc.repo.FilterLessons(QueryFilter{}, ordering...)
	}
	return svc.repo.QueryAllLessons()
}

func (svc *service) GetByID(id string) (LessonWithQuestions, error) {
	les, err := svc.repo.GetLessonByID(id)
	if err != nil {
		return LessonWithQuestions{}, err
	}
	questions, err := svc.repo.GetLessonQuestions(les.ID)
	if err != nil {
		return LessonWithQuestions{}, errors.Wrap(err, "getting lesson questions")
	}
	return LessonWithQuestions{Lesson: les, Questions: questions}, nil
}

func (svc *service) ByTeacher(teacherID string, ordering ...core.DBOrdering) ([]Lesson, error) {
	return svc.repo.FilterLessons(QueryFilter{TeacherID: teacherID}, ordering...)
}

func (svc *service) ForStudent(student user.User) ([]Lesson, error) {
	published, err := svc.repo.FilterLessons(QueryFilter{Status: StatusPublished})
	if err != nil {
		return nil, err
	}

	// class membership intersection is computed here; the store only
	// supports simple equality filters
	visible := make([]Lesson, 0, len(published))
	for _, les := range published {
		if core.Intersects(les.ClassIDs, student.ClassIDs) {
			visible = append(visible, les)
		}
	}
	return visible, nil
}

func (svc *service) Delete(ids ...string) error {
	return svc.repo.DeleteLessonsByID(ids...)
}

// Submit grades a student's full answer set against the lesson's answer key
// and persists the Result. Submitting again for the same lesson is an
// idempotent read of the first Result, never a re-grade.
func (svc *service) Submit(student user.User, lessonID string, sub SubmitAnswers) (Result, error) {
	les, err := svc.GetByID(lessonID)
	if err != nil {
		return Result{}, err
	}

	if existing, err := svc.repo.GetResult(student.ID, les.ID); err == nil {
		return existing, nil
	} else if errors.Cause(err) != ErrResultNotFound {
		return Result{}, errors.Wrap(err, "checking for prior result")
	}

	if !les.VisibleTo(student.ClassIDs) {
		return Result{}, ErrNotEnrolled
	}
	if len(sub.Answers) != len(les.Questions) {
		return Result{}, ErrIncompleteSubmission
	}

	perQuestion := make([]bool, len(les.Questions))
	var correct int
	for i, q := range les.Questions {
		if sub.Answers[i] == q.CorrectChoice {
			perQuestion[i] = true
			correct++
		}
	}

	res := Result{
		StudentID:          student.ID,
		LessonID:           les.ID,
		CorrectCount:       correct,
		TotalCount:         len(les.Questions),
		PerQuestionCorrect: perQuestion,
		SubmittedAt:        time.Now().UTC(),
	}
	res, err = svc.repo.CreateResult(res)
	if err != nil {
		// two near-simultaneous submissions: the uniqueness constraint won,
		// return the stored result
		if errors.Cause(err) == ErrResultExists {
			return svc.repo.GetResult(student.ID, les.ID)
		}
		return Result{}, err
	}
	return res, nil
}

func (svc *service) ResultsByStudent(studentID string) ([]Result, error) {
	return svc.repo.GetResultsByStudent(studentID)
}

func (svc *service) GenerateContent(ctx context.Context, in GenerateInput) (GeneratedLesson, error) {
	if in.IsEmpty() {
		return GeneratedLesson{}, core.NewValidationError(errors.New("either text or a document is required"))
	}

	gl, err := svc.gen.Generate(ctx, in)
	if err != nil {
		if errors.Cause(err) == ErrAIProcessingFailed {
			return GeneratedLesson{}, err
		}
		return GeneratedLesson{}, errors.Wrap(ErrAIProcessingFailed, err.Error())
	}
	if err := gl.Validate(); err != nil {
		return GeneratedLesson{}, err
	}
	return gl, nil
}

func buildQuestions(nqs []NewQuestion) []Question {
	questions := make([]Question, 0, len(nqs))
	for _, nq := range nqs {
		questions = append(questions, Question{
			Prompt:        nq.Prompt,
			Choices:       nq.Choices,
			CorrectChoice: nq.CorrectChoice,
		})
	}
	return questions
}
