package lesson_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"

	"github.com/ensinoverso/backend/core/lesson"
	"github.com/ensinoverso/backend/core/user"
	emailsvc "github.com/ensinoverso/backend/services/email"
	dummydb "github.com/ensinoverso/backend/storage/database/dummy"
	testutil "github.com/ensinoverso/backend/tests"
)

type generatorStub struct {
	out lesson.GeneratedLesson
	err error
}

func (g generatorStub) Generate(_ context.Context, _ lesson.GenerateInput) (lesson.GeneratedLesson, error) {
	return g.out, g.err
}

func setup(t *testing.T, gen ...lesson.Generator) (lesson.Service, lesson.Repository, user.Repository) {
	t.Helper()
	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open() failed, %v", err)
	}
	repo := dummydb.NewLessonRepository(db)
	usrRepo := dummydb.NewUserRepository(db)

	var g lesson.Generator = generatorStub{}
	if len(gen) > 0 {
		g = gen[0]
	}
	return lesson.NewService(repo, usrRepo, g, emailsvc.NewConsoleServiceMock()), repo, usrRepo
}

func threeQuestionKey() []lesson.Question {
	// correct answers [0, 1, 2]
	return []lesson.Question{
		{Prompt: "Q1", Choices: []string{"a", "b", "c", "d"}, CorrectChoice: 0},
		{Prompt: "Q2", Choices: []string{"a", "b", "c", "d"}, CorrectChoice: 1},
		{Prompt: "Q3", Choices: []string{"a", "b", "c", "d"}, CorrectChoice: 2},
	}
}

func Test_service_Submit_scoring(t *testing.T) {
	svc, repo, usrRepo := setup(t)

	student := testutil.CreateUser(t, usrRepo, "Stu", "stu@x.com", "secret1", user.RoleStudent, []string{"c1"}, true)
	les := testutil.CreateLesson(t, repo, "Fractions", "teacher-1", lesson.StatusPublished, []string{"c1"}, threeQuestionKey())

	res, err := svc.Submit(student, les.ID, lesson.SubmitAnswers{Answers: []int{0, 1, 3}})
	if err != nil {
		t.Fatalf("Submit() failed, %v", err)
	}
	if res.CorrectCount != 2 {
		t.Errorf("CorrectCount = %d; expected 2", res.CorrectCount)
	}
	if res.TotalCount != 3 {
		t.Errorf("TotalCount = %d; expected 3", res.TotalCount)
	}
	want := []bool{true, true, false}
	for i, ok := range res.PerQuestionCorrect {
		if ok != want[i] {
			t.Errorf("PerQuestionCorrect = %v; expected %v", res.PerQuestionCorrect, want)
			break
		}
	}
}

func Test_service_Submit_idempotent(t *testing.T) {
	svc, repo, usrRepo := setup(t)

	student := testutil.CreateUser(t, usrRepo, "Stu", "stu@x.com", "secret1", user.RoleStudent, []string{"c1"}, true)
	les := testutil.CreateLesson(t, repo, "Fractions", "teacher-1", lesson.StatusPublished, []string{"c1"}, threeQuestionKey())

	first, err := svc.Submit(student, les.ID, lesson.SubmitAnswers{Answers: []int{0, 1, 2}})
	if err != nil {
		t.Fatalf("Submit() failed, %v", err)
	}
	if first.CorrectCount != 3 {
		t.Fatalf("CorrectCount = %d; expected 3", first.CorrectCount)
	}

	// resubmission returns the first result, never a re-grade
	second, err := svc.Submit(student, les.ID, lesson.SubmitAnswers{Answers: []int{3, 3, 3}})
	if err != nil {
		t.Fatalf("Submit() failed, %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("resubmission returned a new Result %s; expected %s", second.ID, first.ID)
	}
	if second.CorrectCount != 3 {
		t.Errorf("CorrectCount = %d; the stored result must not change", second.CorrectCount)
	}
}

func Test_service_Submit_errors(t *testing.T) {
	svc, repo, usrRepo := setup(t)

	enrolled := testutil.CreateUser(t, usrRepo, "Stu", "stu@x.com", "secret1", user.RoleStudent, []string{"c1"}, true)
	outsider := testutil.CreateUser(t, usrRepo, "Out", "out@x.com", "secret1", user.RoleStudent, []string{"c9"}, true)

	published := testutil.CreateLesson(t, repo, "Pub", "teacher-1", lesson.StatusPublished, []string{"c1"}, threeQuestionKey())
	draft := testutil.CreateLesson(t, repo, "Draft", "teacher-1", lesson.StatusDraft, []string{"c1"}, threeQuestionKey())

	tests := []struct {
		name    string
		student user.User
		lesID   string
		answers []int
		wantErr error
	}{
		{name: "unknown lesson", student: enrolled, lesID: "nope", answers: []int{0, 1, 2}, wantErr: lesson.ErrNotFound},
		{name: "not enrolled", student: outsider, lesID: published.ID, answers: []int{0, 1, 2}, wantErr: lesson.ErrNotEnrolled},
		{name: "draft lesson", student: enrolled, lesID: draft.ID, answers: []int{0, 1, 2}, wantErr: lesson.ErrNotEnrolled},
		{name: "too few answers", student: enrolled, lesID: published.ID, answers: []int{0, 1}, wantErr: lesson.ErrIncompleteSubmission},
		{name: "too many answers", student: enrolled, lesID: published.ID, answers: []int{0, 1, 2, 3}, wantErr: lesson.ErrIncompleteSubmission},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Submit(tt.student, tt.lesID, lesson.SubmitAnswers{Answers: tt.answers})
			if errors.Cause(err) != tt.wantErr {
				t.Errorf("Submit() error = %v; expected %v", err, tt.wantErr)
			}
		})
	}

	// failed attempts never persist a Result
	results, err := repo.GetResultsByLesson(published.ID)
	if err != nil {
		t.Fatalf("GetResultsByLesson() failed, %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no stored results; got %d", len(results))
	}
}

func Test_service_ForStudent(t *testing.T) {
	svc, repo, usrRepo := setup(t)

	student := testutil.CreateUser(t, usrRepo, "Stu", "stu@x.com", "secret1", user.RoleStudent, []string{"c1", "c2"}, true)

	testutil.CreateLesson(t, repo, "Visible", "t1", lesson.StatusPublished, []string{"c1"}, nil)
	testutil.CreateLesson(t, repo, "Also visible", "t2", lesson.StatusPublished, []string{"c9", "c2"}, nil)
	testutil.CreateLesson(t, repo, "Draft", "t1", lesson.StatusDraft, []string{"c1"}, nil)
	testutil.CreateLesson(t, repo, "Other class", "t1", lesson.StatusPublished, []string{"c9"}, nil)

	lessons, err := svc.ForStudent(student)
	if err != nil {
		t.Fatalf("ForStudent() failed, %v", err)
	}
	if len(lessons) != 2 {
		t.Fatalf("ForStudent() returned %d lessons; expected 2", len(lessons))
	}
	for _, les := range lessons {
		if !les.IsPublished() {
			t.Errorf("lesson %q is not published", les.Title)
		}
	}
}

func Test_service_Delete_cascades(t *testing.T) {
	svc, repo, usrRepo := setup(t)

	student := testutil.CreateUser(t, usrRepo, "Stu", "stu@x.com", "secret1", user.RoleStudent, []string{"c1"}, true)
	les := testutil.CreateLesson(t, repo, "Doomed", "teacher-1", lesson.StatusPublished, []string{"c1"}, threeQuestionKey())

	if _, err := svc.Submit(student, les.ID, lesson.SubmitAnswers{Answers: []int{0, 1, 2}}); err != nil {
		t.Fatalf("Submit() failed, %v", err)
	}

	if err := svc.Delete(les.ID); err != nil {
		t.Fatalf("Delete() failed, %v", err)
	}

	if _, err := svc.GetByID(les.ID); errors.Cause(err) != lesson.ErrNotFound {
		t.Errorf("GetByID() error = %v; expected %v", err, lesson.ErrNotFound)
	}
	if _, err := repo.GetResult(student.ID, les.ID); errors.Cause(err) != lesson.ErrResultNotFound {
		t.Errorf("GetResult() error = %v; results must be deleted with the lesson", err)
	}
	results, err := svc.ResultsByStudent(student.ID)
	if err != nil {
		t.Fatalf("ResultsByStudent() failed, %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results; got %d", len(results))
	}
}

func Test_service_Update_quiz(t *testing.T) {
	svc, _, usrRepo := setup(t)

	teacher := testutil.CreateUser(t, usrRepo, "Ted", "ted@x.com", "secret1", user.RoleTeacher, []string{"c1"}, true)

	lwq, err := svc.Create(teacher, lesson.NewLesson{
		Title:    "Fractions",
		Body:     "body",
		School:   "Test School",
		Subject:  "Math",
		ClassIDs: []string{"c1"},
		Questions: []lesson.NewQuestion{
			{Prompt: "Q1", Choices: []string{"a", "b", "c", "d"}, CorrectChoice: 0},
		},
	})
	if err != nil {
		t.Fatalf("Create() failed, %v", err)
	}
	if lwq.Status != lesson.StatusDraft {
		t.Errorf("Status = %s; expected default %s", lwq.Status, lesson.StatusDraft)
	}
	if lwq.TeacherID != teacher.ID {
		t.Errorf("TeacherID = %s; expected %s", lwq.TeacherID, teacher.ID)
	}
	if len(lwq.Questions) != 1 {
		t.Fatalf("expected 1 question; got %d", len(lwq.Questions))
	}

	// updating without questions keeps the quiz
	lwq, err = svc.Update(lwq.Lesson, lesson.UpdateLesson{Title: "Fractions II"})
	if err != nil {
		t.Fatalf("Update() failed, %v", err)
	}
	if lwq.Title != "Fractions II" {
		t.Errorf("Title = %s; expected Fractions II", lwq.Title)
	}
	if len(lwq.Questions) != 1 {
		t.Errorf("expected quiz to be kept; got %d questions", len(lwq.Questions))
	}

	// a non-nil questions slice replaces the quiz entirely
	lwq, err = svc.Update(lwq.Lesson, lesson.UpdateLesson{
		Questions: []lesson.NewQuestion{
			{Prompt: "N1", Choices: []string{"a", "b", "c", "d"}, CorrectChoice: 1},
			{Prompt: "N2", Choices: []string{"a", "b", "c", "d"}, CorrectChoice: 2},
		},
	})
	if err != nil {
		t.Fatalf("Update() failed, %v", err)
	}
	if len(lwq.Questions) != 2 {
		t.Fatalf("expected 2 questions; got %d", len(lwq.Questions))
	}
	if lwq.Questions[0].Prompt != "N1" {
		t.Errorf("Prompt = %s; expected N1", lwq.Questions[0].Prompt)
	}
}

func Test_service_GenerateContent(t *testing.T) {
	goodOut := lesson.GeneratedLesson{
		Title:       "A title",
		CleanedText: "The full text.",
	}
	for i := 0; i < lesson.GeneratedQuestionCount; i++ {
		goodOut.Questions = append(goodOut.Questions, lesson.GeneratedQuestion{
			Prompt:        "Q",
			Choices:       []string{"a", "b", "c", "d"},
			CorrectChoice: 1,
		})
	}

	shortOut := goodOut
	shortOut.Questions = goodOut.Questions[:4]

	badKeyOut := goodOut
	badKeyOut.Questions = append([]lesson.GeneratedQuestion(nil), goodOut.Questions...)
	badKeyOut.Questions[3].CorrectChoice = 7

	tests := []struct {
		name    string
		gen     lesson.Generator
		in      lesson.GenerateInput
		wantErr bool
	}{
		{name: "ok", gen: generatorStub{out: goodOut}, in: lesson.GenerateInput{Text: "raw"}},
		{name: "collaborator failure", gen: generatorStub{err: errors.New("boom")}, in: lesson.GenerateInput{Text: "raw"}, wantErr: true},
		{name: "too few questions", gen: generatorStub{out: shortOut}, in: lesson.GenerateInput{Text: "raw"}, wantErr: true},
		{name: "answer key out of range", gen: generatorStub{out: badKeyOut}, in: lesson.GenerateInput{Text: "raw"}, wantErr: true},
		{name: "empty title", gen: generatorStub{out: lesson.GeneratedLesson{CleanedText: "t"}}, in: lesson.GenerateInput{Text: "raw"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _ := setup(t, tt.gen)

			gl, err := svc.GenerateContent(context.Background(), tt.in)
			if tt.wantErr {
				if errors.Cause(err) != lesson.ErrAIProcessingFailed {
					t.Errorf("GenerateContent() error = %v; expected %v", err, lesson.ErrAIProcessingFailed)
				}
				return
			}
			if err != nil {
				t.Fatalf("GenerateContent() failed, %v", err)
			}
			if len(gl.Questions) != lesson.GeneratedQuestionCount {
				t.Errorf("got %d questions; expected %d", len(gl.Questions), lesson.GeneratedQuestionCount)
			}
		})
	}
}
