package tests

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/pkg/errors"

	echoapi "github.com/ensinoverso/backend/apps/api/echo"
	"github.com/ensinoverso/backend/core/lesson"
	"github.com/ensinoverso/backend/core/user"
	emailsvc "github.com/ensinoverso/backend/services/email"
	testutil "github.com/ensinoverso/backend/tests"
)

// threeQuestions builds a quiz whose answer key is [0, 1, 2].
func threeQuestions() []lesson.Question {
	questions := make([]lesson.Question, 0, 3)
	for i := 0; i < 3; i++ {
		questions = append(questions, lesson.Question{
			Prompt:        fmt.Sprintf("Q%d", i+1),
			Choices:       []string{"a", "b", "c", "d"},
			CorrectChoice: i,
		})
	}
	return questions
}

func generatedLesson() lesson.GeneratedLesson {
	gl := lesson.GeneratedLesson{
		Title:       "Photosynthesis",
		CleanedText: "Plants convert light into chemical energy.",
	}
	for i := 0; i < lesson.GeneratedQuestionCount; i++ {
		gl.Questions = append(gl.Questions, lesson.GeneratedQuestion{
			Prompt:        fmt.Sprintf("Q%d", i+1),
			Choices:       []string{"a", "b", "c", "d"},
			CorrectChoice: i % lesson.ChoiceCount,
		})
	}
	return gl
}

func Test_lessonApi_visibility(t *testing.T) {
	app := setup(t)

	teacher1 := testutil.CreateUser(t, usrRepo, "Tom Teacher", "tom@test.io", "", user.RoleTeacher, []string{"c1"}, true)
	teacher2 := testutil.CreateUser(t, usrRepo, "Una Teacher", "una@test.io", "", user.RoleTeacher, []string{"c2"}, true)
	admin := testutil.CreateUser(t, usrRepo, "Ada Admin", "ada@test.io", "", user.RoleAdmin, nil, true)
	s1 := testutil.CreateUser(t, usrRepo, "Sara Student", "sara@test.io", "", user.RoleStudent, []string{"c1"}, true)
	s2 := testutil.CreateUser(t, usrRepo, "Noah Student", "noah@test.io", "", user.RoleStudent, []string{"c2"}, true)

	pub1 := testutil.CreateLesson(t, lesRepo, "Fractions", teacher1.ID, lesson.StatusPublished, []string{"c1"}, testutil.Questions(2))
	draft1 := testutil.CreateLesson(t, lesRepo, "Decimals", teacher1.ID, lesson.StatusDraft, []string{"c1"}, nil)
	pub2 := testutil.CreateLesson(t, lesRepo, "Photosynthesis", teacher2.ID, lesson.StatusPublished, []string{"c2"}, nil)

	tests := []httpTest{
		{name: "Auth required", path: "/v1/lessons", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "students cannot list the teacher view", path: "/v1/lessons", token: getToken(t, s1),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errPermDenied),
		},
		{
			name: "teacher lists only own lessons", path: "/v1/lessons", token: getToken(t, teacher1),
			wantData: marchallList(t, pub1, draft1),
		},
		{
			name: "admin lists everything", path: "/v1/lessons", token: getToken(t, admin),
			wantData: marchallList(t, pub1, draft1, pub2),
		},
		{
			name: "student sees published lessons of own classes", path: "/v1/lessons/for-student", token: getToken(t, s1),
			wantData: marchallList(t, pub1),
		},
		{
			name: "other class, other lessons", path: "/v1/lessons/for-student", token: getToken(t, s2),
			wantData: marchallList(t, pub2),
		},
		{
			name: "draft lessons are hidden from students", path: "/v1/lessons/" + draft1.ID, token: getToken(t, s1),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, errObjNotFound),
		},
		{
			name: "teachers do not see each other's lessons", path: "/v1/lessons/" + pub2.ID, token: getToken(t, teacher1),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, errObjNotFound),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodGet
		if tt.wantCode == 0 {
			tt.wantCode = http.StatusOK
		}

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("student retrieves a visible lesson with its quiz", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/lessons/"+pub1.ID, getToken(t, s1))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; wantCode %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var lwq lesson.LessonWithQuestions
		if err := json.Unmarshal(rec.Body.Bytes(), &lwq); err != nil {
			t.Fatalf("json.Unmarshal(): %v", err)
		}
		if lwq.ID != pub1.ID {
			t.Errorf("ID = %v; want %v", lwq.ID, pub1.ID)
		}
		if len(lwq.Questions) != 2 {
			t.Errorf("len(Questions) = %d; want 2", len(lwq.Questions))
		}
	})

	// the list comparison above is order-free; check ordering sequences explicitly
	listOrder := func(t *testing.T, path, token string) []lesson.Lesson {
		t.Helper()
		req, rec := newAuthRequest(http.MethodGet, path, token)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; wantCode %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var lessons []lesson.Lesson
		if err := json.Unmarshal(rec.Body.Bytes(), &lessons); err != nil {
			t.Fatalf("json.Unmarshal(): %v", err)
		}
		return lessons
	}

	t.Run("teacher orders own lessons by title", func(t *testing.T) {
		lessons := listOrder(t, "/v1/lessons?ordering=title", getToken(t, teacher1))
		if len(lessons) != 2 || lessons[0].ID != draft1.ID || lessons[1].ID != pub1.ID {
			t.Errorf("lessons = %+v; want [%s, %s]", lessons, draft1.Title, pub1.Title)
		}
	})

	t.Run("admin orders everything by -title", func(t *testing.T) {
		lessons := listOrder(t, "/v1/lessons?ordering=-title", getToken(t, admin))
		if len(lessons) != 3 || lessons[0].ID != pub2.ID || lessons[1].ID != pub1.ID || lessons[2].ID != draft1.ID {
			t.Errorf("lessons = %+v; want [%s, %s, %s]", lessons, pub2.Title, pub1.Title, draft1.Title)
		}
	})
}

func Test_lessonApi_create(t *testing.T) {
	app := setup(t)

	teacher := testutil.CreateUser(t, usrRepo, "Tom Teacher", "tom@test.io", "", user.RoleTeacher, []string{"c1"}, true)
	teacherToken := getToken(t, teacher)

	t.Run("draft may stay incomplete", func(t *testing.T) {
		body := marchallObj(t, lesson.NewLesson{Title: "Fractions"})
		req, rec := newAuthRequest(http.MethodPost, "/v1/lessons", teacherToken, body)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("failed! code = %v; wantCode %v; body %s", rec.Code, http.StatusCreated, rec.Body.String())
		}
		var lwq lesson.LessonWithQuestions
		if err := json.Unmarshal(rec.Body.Bytes(), &lwq); err != nil {
			t.Fatalf("json.Unmarshal(): %v", err)
		}
		if lwq.Status != lesson.StatusDraft {
			t.Errorf("Status = %v; want %v", lwq.Status, lesson.StatusDraft)
		}
		if lwq.TeacherID != teacher.ID {
			t.Errorf("TeacherID = %v; want %v", lwq.TeacherID, teacher.ID)
		}
	})

	t.Run("publishing an incomplete lesson fails", func(t *testing.T) {
		body := marchallObj(t, lesson.NewLesson{Title: "Fractions", Status: lesson.StatusPublished})
		req, rec := newAuthRequest(http.MethodPost, "/v1/lessons", teacherToken, body)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"body":      "this field is required to publish a lesson",
				"school":    "this field is required to publish a lesson",
				"subject":   "this field is required to publish a lesson",
				"class_ids": "a published lesson must target at least one class",
			}),
		}, rec)
	})

	t.Run("publishing a complete lesson with a quiz", func(t *testing.T) {
		body := marchallObj(t, lesson.NewLesson{
			Title:    "Fractions",
			Body:     "Halves and quarters.",
			School:   "Test School",
			Subject:  "Math",
			ClassIDs: []string{"c1"},
			Status:   lesson.StatusPublished,
			Questions: []lesson.NewQuestion{
				{Prompt: "1/2 + 1/2 = ?", Choices: []string{"1", "2", "0", "1/4"}, CorrectChoice: 0},
			},
		})
		req, rec := newAuthRequest(http.MethodPost, "/v1/lessons", teacherToken, body)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("failed! code = %v; wantCode %v; body %s", rec.Code, http.StatusCreated, rec.Body.String())
		}
		var lwq lesson.LessonWithQuestions
		if err := json.Unmarshal(rec.Body.Bytes(), &lwq); err != nil {
			t.Fatalf("json.Unmarshal(): %v", err)
		}
		if lwq.Status != lesson.StatusPublished {
			t.Errorf("Status = %v; want %v", lwq.Status, lesson.StatusPublished)
		}
		if len(lwq.Questions) != 1 {
			t.Fatalf("len(Questions) = %d; want 1", len(lwq.Questions))
		}
		if lwq.Questions[0].ID == "" || lwq.Questions[0].LessonID != lwq.ID {
			t.Errorf("question not linked to lesson: %+v", lwq.Questions[0])
		}
	})

	t.Run("question must carry four choices", func(t *testing.T) {
		body := marchallObj(t, lesson.NewLesson{
			Title: "Fractions",
			Questions: []lesson.NewQuestion{
				{Prompt: "1/2 + 1/2 = ?", Choices: []string{"1", "2"}, CorrectChoice: 0},
			},
		})
		req, rec := newAuthRequest(http.MethodPost, "/v1/lessons", teacherToken, body)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("failed! code = %v; wantCode %v; body %s", rec.Code, http.StatusBadRequest, rec.Body.String())
		}
	})
}

func Test_lessonApi_update(t *testing.T) {
	app := setup(t)

	teacher := testutil.CreateUser(t, usrRepo, "Tom Teacher", "tom@test.io", "", user.RoleTeacher, []string{"c1"}, true)
	teacherToken := getToken(t, teacher)
	les := testutil.CreateLesson(t, lesRepo, "Fractions", teacher.ID, lesson.StatusDraft, []string{"c1"}, testutil.Questions(2))

	t.Run("omitted questions keep the quiz", func(t *testing.T) {
		body := marchallObj(t, lesson.UpdateLesson{Title: "Fractions II"})
		req, rec := newAuthRequest(http.MethodPut, "/v1/lessons/"+les.ID, teacherToken, body)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; wantCode %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var lwq lesson.LessonWithQuestions
		if err := json.Unmarshal(rec.Body.Bytes(), &lwq); err != nil {
			t.Fatalf("json.Unmarshal(): %v", err)
		}
		if lwq.Title != "Fractions II" {
			t.Errorf("Title = %v; want %v", lwq.Title, "Fractions II")
		}
		if len(lwq.Questions) != 2 {
			t.Errorf("len(Questions) = %d; want 2", len(lwq.Questions))
		}
	})

	t.Run("provided questions replace the quiz", func(t *testing.T) {
		body := marchallObj(t, lesson.UpdateLesson{
			Questions: []lesson.NewQuestion{
				{Prompt: "New question", Choices: []string{"a", "b", "c", "d"}, CorrectChoice: 3},
			},
		})
		req, rec := newAuthRequest(http.MethodPut, "/v1/lessons/"+les.ID, teacherToken, body)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; wantCode %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var lwq lesson.LessonWithQuestions
		if err := json.Unmarshal(rec.Body.Bytes(), &lwq); err != nil {
			t.Fatalf("json.Unmarshal(): %v", err)
		}
		if len(lwq.Questions) != 1 {
			t.Fatalf("len(Questions) = %d; want 1", len(lwq.Questions))
		}
		if lwq.Questions[0].Prompt != "New question" {
			t.Errorf("Prompt = %v; want %v", lwq.Questions[0].Prompt, "New question")
		}
	})

	t.Run("destroy cascades", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/v1/lessons/"+les.ID, teacherToken)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("failed! code = %v; wantCode %v", rec.Code, http.StatusNoContent)
		}
		req, rec = newAuthRequest(http.MethodGet, "/v1/lessons/"+les.ID, teacherToken)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, errObjNotFound)}, rec)
	})
}

func Test_lessonApi_submit(t *testing.T) {
	app := setup(t)

	teacher := testutil.CreateUser(t, usrRepo, "Tom Teacher", "tom@test.io", "", user.RoleTeacher, []string{"c1"}, true)
	s1 := testutil.CreateUser(t, usrRepo, "Sara Student", "sara@test.io", "", user.RoleStudent, []string{"c1"}, true)
	s2 := testutil.CreateUser(t, usrRepo, "Noah Student", "noah@test.io", "", user.RoleStudent, []string{"c2"}, true)

	les := testutil.CreateLesson(t, lesRepo, "Fractions", teacher.ID, lesson.StatusPublished, []string{"c1"}, threeQuestions())
	s1Token := getToken(t, s1)

	submit := func(t *testing.T, token string, answers []int) *json.Decoder {
		t.Helper()
		body := marchallObj(t, lesson.SubmitAnswers{Answers: answers})
		req, rec := newAuthRequest(http.MethodPost, "/v1/lessons/"+les.ID+"/submit", token, body)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("failed! code = %v; wantCode %v; body %s", rec.Code, http.StatusCreated, rec.Body.String())
		}
		return json.NewDecoder(rec.Body)
	}

	var first lesson.Result
	t.Run("scored submission", func(t *testing.T) {
		if err := submit(t, s1Token, []int{0, 1, 3}).Decode(&first); err != nil {
			t.Fatalf("decoding result: %v", err)
		}
		if first.CorrectCount != 2 || first.TotalCount != 3 {
			t.Errorf("got %d/%d; want 2/3", first.CorrectCount, first.TotalCount)
		}
		want := []bool{true, true, false}
		for i, ok := range first.PerQuestionCorrect {
			if ok != want[i] {
				t.Errorf("PerQuestionCorrect = %v; want %v", first.PerQuestionCorrect, want)
				break
			}
		}
	})

	t.Run("resubmission returns the first result untouched", func(t *testing.T) {
		var replay lesson.Result
		if err := submit(t, s1Token, []int{0, 1, 2}).Decode(&replay); err != nil {
			t.Fatalf("decoding result: %v", err)
		}
		if replay.ID != first.ID || replay.CorrectCount != first.CorrectCount {
			t.Errorf("replay = %+v; want first result %+v", replay, first)
		}
	})

	t.Run("non-enrolled student", func(t *testing.T) {
		body := marchallObj(t, lesson.SubmitAnswers{Answers: []int{0, 1, 2}})
		req, rec := newAuthRequest(http.MethodPost, "/v1/lessons/"+les.ID+"/submit", getToken(t, s2), body)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, errPermDenied)}, rec)
	})

	t.Run("teachers cannot submit", func(t *testing.T) {
		body := marchallObj(t, lesson.SubmitAnswers{Answers: []int{0, 1, 2}})
		req, rec := newAuthRequest(http.MethodPost, "/v1/lessons/"+les.ID+"/submit", getToken(t, teacher), body)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, errPermDenied)}, rec)
	})

	t.Run("own results listing", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/lessons/results", s1Token)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallList(t, first)}, rec)
	})
}

func Test_lessonApi_incompleteSubmission(t *testing.T) {
	app := setup(t)

	teacher := testutil.CreateUser(t, usrRepo, "Tom Teacher", "tom@test.io", "", user.RoleTeacher, []string{"c1"}, true)
	s1 := testutil.CreateUser(t, usrRepo, "Sara Student", "sara@test.io", "", user.RoleStudent, []string{"c1"}, true)
	les := testutil.CreateLesson(t, lesRepo, "Fractions", teacher.ID, lesson.StatusPublished, []string{"c1"}, threeQuestions())

	body := marchallObj(t, lesson.SubmitAnswers{Answers: []int{0}})
	req, rec := newAuthRequest(http.MethodPost, "/v1/lessons/"+les.ID+"/submit", getToken(t, s1), body)
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusBadRequest,
		wantData: marchallObj(t, map[string]string{"answers": lesson.ErrIncompleteSubmission.Error()}),
	}, rec)

	// nothing was persisted; a complete retry still gets graded
	body = marchallObj(t, lesson.SubmitAnswers{Answers: []int{0, 1, 2}})
	req, rec = newAuthRequest(http.MethodPost, "/v1/lessons/"+les.ID+"/submit", getToken(t, s1), body)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("failed! code = %v; wantCode %v; body %s", rec.Code, http.StatusCreated, rec.Body.String())
	}
	var res lesson.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("json.Unmarshal(): %v", err)
	}
	if res.CorrectCount != 3 {
		t.Errorf("CorrectCount = %d; want 3", res.CorrectCount)
	}
}

func Test_lessonApi_report(t *testing.T) {
	app := setup(t)

	teacher := testutil.CreateUser(t, usrRepo, "Tom Teacher", "tom@test.io", "", user.RoleTeacher, []string{"c1", "c2"}, true)
	alice := testutil.CreateUser(t, usrRepo, "Alice", "alice@test.io", "", user.RoleStudent, []string{"c1"}, true)
	bob := testutil.CreateUser(t, usrRepo, "Bob", "bob@test.io", "", user.RoleStudent, []string{"c2"}, true)

	les := testutil.CreateLesson(t, lesRepo, "Fractions", teacher.ID, lesson.StatusPublished, []string{"c1", "c2"}, testutil.Questions(10))

	now := time.Now().UTC()
	testutil.CreateResult(t, lesRepo, alice.ID, les.ID,
		[]bool{true, true, true, true, true, true, true, true, false, false}, now)
	testutil.CreateResult(t, lesRepo, bob.ID, les.ID,
		[]bool{true, true, true, true, true, false, false, false, false, false}, now.Add(time.Minute))

	teacherToken := getToken(t, teacher)

	report := func(t *testing.T, path string) lesson.Report {
		t.Helper()
		req, rec := newAuthRequest(http.MethodGet, path, teacherToken)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; wantCode %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var rep lesson.Report
		if err := json.Unmarshal(rec.Body.Bytes(), &rep); err != nil {
			t.Fatalf("json.Unmarshal(): %v", err)
		}
		return rep
	}

	t.Run("full lesson report", func(t *testing.T) {
		rep := report(t, "/v1/lessons/"+les.ID+"/report")
		if rep.ParticipantCount != 2 {
			t.Errorf("ParticipantCount = %d; want 2", rep.ParticipantCount)
		}
		if rep.OverallRate != 65.0 {
			t.Errorf("OverallRate = %v; want 65.0", rep.OverallRate)
		}
		if rep.OverallBand != lesson.BandMedium {
			t.Errorf("OverallBand = %v; want %v", rep.OverallBand, lesson.BandMedium)
		}
		wantRates := []float64{100, 100, 100, 100, 100, 50, 50, 50, 0, 0}
		for i, rate := range rep.PerQuestionRate {
			if rate != wantRates[i] {
				t.Errorf("PerQuestionRate = %v; want %v", rep.PerQuestionRate, wantRates)
				break
			}
		}
		if len(rep.Participants) != 2 || rep.Participants[0].StudentID != alice.ID {
			t.Errorf("Participants = %+v; want Alice first", rep.Participants)
		}
		if rep.Participants[0].Rate != 80.0 {
			t.Errorf("Rate = %v; want 80.0", rep.Participants[0].Rate)
		}
	})

	t.Run("class filter", func(t *testing.T) {
		rep := report(t, "/v1/lessons/"+les.ID+"/report?class_id=c2")
		if rep.ParticipantCount != 1 {
			t.Fatalf("ParticipantCount = %d; want 1", rep.ParticipantCount)
		}
		if rep.Participants[0].StudentID != bob.ID {
			t.Errorf("StudentID = %v; want %v", rep.Participants[0].StudentID, bob.ID)
		}
		if rep.OverallRate != 50.0 || rep.OverallBand != lesson.BandMedium {
			t.Errorf("got %v/%v; want 50.0/%v", rep.OverallRate, rep.OverallBand, lesson.BandMedium)
		}
	})

	t.Run("students are kept out", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/lessons/"+les.ID+"/report", getToken(t, alice))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, errPermDenied)}, rec)
	})

	t.Run("report emailed to the teacher", func(t *testing.T) {
		sentBefore := len(emailsvc.SentMessages)
		req, rec := newAuthRequest(http.MethodPost, "/v1/lessons/"+les.ID+"/report/send", teacherToken)
		app.ServeHTTP(rec, req)
		wantData := marchallObj(t, echoapi.SuccessResponse{Success: "The report has been emailed to you."})
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: wantData}, rec)

		if len(emailsvc.SentMessages) != sentBefore+1 {
			t.Fatalf("len(SentMessages) = %d; want %d", len(emailsvc.SentMessages), sentBefore+1)
		}
		msg := emailsvc.SentMessages[len(emailsvc.SentMessages)-1]
		if len(msg.To) != 1 || msg.To[0].Address != teacher.Email {
			t.Errorf("To = %v; want %v", msg.To, teacher.Email)
		}
		if len(msg.Attachments) != 1 || msg.Attachments[0].Filename != "report-"+les.ID+".csv" {
			t.Errorf("Attachments = %+v; want the report CSV", msg.Attachments)
		}
	})

	t.Run("students cannot email the report", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/lessons/"+les.ID+"/report/send", getToken(t, alice))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, errPermDenied)}, rec)
	})
}

func Test_lessonApi_generate(t *testing.T) {
	app := setup(t)

	teacher := testutil.CreateUser(t, usrRepo, "Tom Teacher", "tom@test.io", "", user.RoleTeacher, []string{"c1"}, true)
	student := testutil.CreateUser(t, usrRepo, "Sara Student", "sara@test.io", "", user.RoleStudent, []string{"c1"}, true)
	teacherToken := getToken(t, teacher)

	failed := marchallObj(t, httpErr{Error: lesson.ErrAIProcessingFailed.Error()})

	t.Run("text input", func(t *testing.T) {
		gen.out, gen.err = generatedLesson(), nil

		body := marchallObj(t, echoapi.GenerateRequest{Text: "raw transcript"})
		req, rec := newAuthRequest(http.MethodPost, "/v1/lessons/generate", teacherToken, body)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, gen.out)}, rec)
	})

	t.Run("document input", func(t *testing.T) {
		gen.out, gen.err = generatedLesson(), nil

		body := marchallObj(t, echoapi.GenerateRequest{
			Document: base64.StdEncoding.EncodeToString([]byte("%PDF-1.4")),
			MimeType: "application/pdf",
		})
		req, rec := newAuthRequest(http.MethodPost, "/v1/lessons/generate", teacherToken, body)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, gen.out)}, rec)
	})

	t.Run("collaborator failure", func(t *testing.T) {
		gen.out, gen.err = lesson.GeneratedLesson{}, errors.New("boom")

		body := marchallObj(t, echoapi.GenerateRequest{Text: "raw transcript"})
		req, rec := newAuthRequest(http.MethodPost, "/v1/lessons/generate", teacherToken, body)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusBadGateway, wantData: failed}, rec)
	})

	t.Run("malformed output", func(t *testing.T) {
		out := generatedLesson()
		out.Questions = out.Questions[:3]
		gen.out, gen.err = out, nil

		body := marchallObj(t, echoapi.GenerateRequest{Text: "raw transcript"})
		req, rec := newAuthRequest(http.MethodPost, "/v1/lessons/generate", teacherToken, body)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusBadGateway, wantData: failed}, rec)
	})

	t.Run("either text or document is required", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/lessons/generate", teacherToken, marchallObj(t, echoapi.GenerateRequest{}))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "either text or document is required"}),
		}, rec)
	})

	t.Run("document requires a mime type", func(t *testing.T) {
		body := marchallObj(t, echoapi.GenerateRequest{Document: base64.StdEncoding.EncodeToString([]byte("%PDF-1.4"))})
		req, rec := newAuthRequest(http.MethodPost, "/v1/lessons/generate", teacherToken, body)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"mime_type": "this field is required"}),
		}, rec)
	})

	t.Run("invalid base64 document", func(t *testing.T) {
		body := marchallObj(t, echoapi.GenerateRequest{Document: "!!!", MimeType: "application/pdf"})
		req, rec := newAuthRequest(http.MethodPost, "/v1/lessons/generate", teacherToken, body)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"document": "invalid base64 payload"}),
		}, rec)
	})

	t.Run("students are kept out", func(t *testing.T) {
		body := marchallObj(t, echoapi.GenerateRequest{Text: "raw transcript"})
		req, rec := newAuthRequest(http.MethodPost, "/v1/lessons/generate", getToken(t, student), body)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, errPermDenied)}, rec)
	})
}
