package lesson

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ensinoverso/backend/core"
)

// Lesson statuses
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
)

// ChoiceCount is the number of alternatives every multiple-choice question carries.
const ChoiceCount = 4

type Lesson struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	School     string    `json:"school"`
	Subject    string    `json:"subject"`
	TeacherID  string    `json:"teacher_id"`
	ClassIDs   []string  `json:"class_ids"`
	Status     string    `json:"status"`
	Skills     []string  `json:"skills,omitempty"`
	Keywords   []string  `json:"keywords,omitempty"`
	ExtraLinks []string  `json:"extra_links,omitempty"`
	ImageURL   string    `json:"image_url,omitempty"`
	CreatedAt  time.Time `json:"created_at"` // UTC
	UpdatedAt  time.Time `json:"updated_at"` // UTC
}

func (l Lesson) IsPublished() bool { return l.Status == StatusPublished }

// VisibleTo reports whether a published lesson targets at least one of the
// student's classes.
func (l Lesson) VisibleTo(classIDs []string) bool {
	return l.IsPublished() && core.Intersects(l.ClassIDs, classIDs)
}

// Question is one multiple-choice item owned exclusively by its Lesson;
// it is deleted when the Lesson is deleted.
type Question struct {
	ID            string   `json:"id"`
	LessonID      string   `json:"lesson_id"`
	Prompt        string   `json:"prompt"`
	Choices       []string `json:"choices"`
	CorrectChoice int      `json:"correct_choice"`
}

// Result is the scored outcome of one student's single attempt at one
// Lesson's quiz. At most one Result exists per (StudentID, LessonID);
// it is immutable once created.
type Result struct {
	ID                 string    `json:"id"`
	StudentID          string    `json:"student_id"`
	LessonID           string    `json:"lesson_id"`
	CorrectCount       int       `json:"correct_count"`
	TotalCount         int       `json:"total_count"`
	PerQuestionCorrect []bool    `json:"per_question_correct"`
	SubmittedAt        time.Time `json:"submitted_at"` // UTC
}

type LessonWithQuestions struct {
	Lesson
	Questions []Question `json:"questions"`
}

type NewQuestion struct {
	Prompt        string   `json:"prompt" validate:"required"`
	Choices       []string `json:"choices" validate:"len=4,dive,required"`
	CorrectChoice int      `json:"correct_choice" validate:"gte=0,lte=3"`
}

// NewLesson contains information needed to create a Lesson with its quiz.
type NewLesson struct {
	Title      string        `json:"title"`
	Body       string        `json:"body"`
	School     string        `json:"school"`
	Subject    string        `json:"subject"`
	ClassIDs   []string      `json:"class_ids"`
	Status     string        `json:"status" validate:"omitempty,oneof=draft published"`
	Skills     []string      `json:"skills"`
	Keywords   []string      `json:"keywords"`
	ExtraLinks []string      `json:"extra_links" validate:"omitempty,dive,url"`
	ImageURL   string        `json:"image_url" validate:"omitempty,url"`
	Questions  []NewQuestion `json:"questions" validate:"omitempty,dive"`
}

func (nl *NewLesson) Validate(validate *validator.Validate) error {
	nl.Title = core.CleanString(nl.Title)
	nl.Body = core.CleanString(nl.Body)
	nl.School = core.CleanString(nl.School)
	nl.Subject = core.CleanString(nl.Subject)
	if nl.Status == "" {
		nl.Status = StatusDraft
	}
	return validate.Struct(nl)
}

// UpdateLesson defines what information may be provided to modify an existing
// Lesson. A nil Questions means "keep the existing quiz"; a non-nil one
// replaces it entirely.
type UpdateLesson struct {
	Title      string        `json:"title"`
	Body       string        `json:"body"`
	School     string        `json:"school"`
	Subject    string        `json:"subject"`
	ClassIDs   []string      `json:"class_ids"`
	Status     string        `json:"status" validate:"omitempty,oneof=draft published"`
	Skills     []string      `json:"skills"`
	Keywords   []string      `json:"keywords"`
	ExtraLinks []string      `json:"extra_links" validate:"omitempty,dive,url"`
	ImageURL   string        `json:"image_url" validate:"omitempty,url"`
	Questions  []NewQuestion `json:"questions" validate:"omitempty,dive"`
}

func (ul *UpdateLesson) Validate(origLes Lesson, validate *validator.Validate) error {
	title := core.CleanString(ul.Title)
	if title != "" {
		ul.Title = title
	} else {
		ul.Title = origLes.Title
	}

	body := core.CleanString(ul.Body)
	if body != "" {
		ul.Body = body
	} else {
		ul.Body = origLes.Body
	}

	school := core.CleanString(ul.School)
	if school != "" {
		ul.School = school
	} else {
		ul.School = origLes.School
	}

	subject := core.CleanString(ul.Subject)
	if subject != "" {
		ul.Subject = subject
	} else {
		ul.Subject = origLes.Subject
	}

	if ul.Status == "" {
		ul.Status = origLes.Status
	}
	if ul.ClassIDs == nil {
		ul.ClassIDs = origLes.ClassIDs
	}
	return validate.Struct(ul)
}

// SubmitAnswers is a student's full answer set for a Lesson's quiz,
// index-aligned with the Lesson's question order.
type SubmitAnswers struct {
	Answers []int `json:"answers" validate:"required,dive,gte=0,lte=3"`
}

func (sa *SubmitAnswers) Validate(validate *validator.Validate) error {
	return validate.Struct(sa)
}

type QueryFilter struct {
	TeacherID string `query:"teacher_id"`
	Status    string `query:"status"`
	ClassID   string `query:"class_id"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.TeacherID == "" && qf.Status == "" && qf.ClassID == ""
}
