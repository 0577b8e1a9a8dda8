package testutil

import (
	"testing"
	"time"

	"github.com/ensinoverso/backend/core/lesson"
	"github.com/ensinoverso/backend/core/school"
	"github.com/ensinoverso/backend/core/user"
)

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, email, pwd, role string,
	classIDs []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Email:     email,
		Role:      role,
		ClassIDs:  classIDs,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateClass(t *testing.T, repo school.Repository, name, year string) school.Class {
	t.Helper()
	now := time.Now().UTC()
	cls, err := repo.CreateClass(school.Class{
		Name:      name,
		Year:      year,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateClass() failed: %v", err)
	}
	return cls
}

func CreateLesson(
	t *testing.T,
	repo lesson.Repository,
	title, teacherID, status string,
	classIDs []string,
	questions []lesson.Question,
) lesson.Lesson {
	t.Helper()
	now := time.Now().UTC()
	les, err := repo.CreateLesson(lesson.Lesson{
		Title:     title,
		Body:      "body",
		School:    "Test School",
		Subject:   "Math",
		TeacherID: teacherID,
		ClassIDs:  classIDs,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}, questions)
	if err != nil {
		t.Fatalf("CreateLesson() failed: %v", err)
	}
	return les
}

// Questions builds n four-choice questions whose correct answer is always
// choice 0.
func Questions(n int) []lesson.Question {
	questions := make([]lesson.Question, 0, n)
	for i := 0; i < n; i++ {
		questions = append(questions, lesson.Question{
			Prompt:        "Q",
			Choices:       []string{"a", "b", "c", "d"},
			CorrectChoice: 0,
		})
	}
	return questions
}

func CreateResult(
	t *testing.T,
	repo lesson.Repository,
	studentID, lessonID string,
	perQuestionCorrect []bool,
	submittedAt time.Time,
) lesson.Result {
	t.Helper()
	var correct int
	for _, ok := range perQuestionCorrect {
		if ok {
			correct++
		}
	}
	res, err := repo.CreateResult(lesson.Result{
		StudentID:          studentID,
		LessonID:           lessonID,
		CorrectCount:       correct,
		TotalCount:         len(perQuestionCorrect),
		PerQuestionCorrect: perQuestionCorrect,
		SubmittedAt:        submittedAt.UTC(),
	})
	if err != nil {
		t.Fatalf("CreateResult() failed: %v", err)
	}
	return res
}
