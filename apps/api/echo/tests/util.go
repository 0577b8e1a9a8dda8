package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"

	. "github.com/ensinoverso/backend/apps/api/echo"
	"github.com/ensinoverso/backend/core"
	"github.com/ensinoverso/backend/core/lesson"
	"github.com/ensinoverso/backend/core/school"
	"github.com/ensinoverso/backend/core/user"
	emailsvc "github.com/ensinoverso/backend/services/email"
	logsvc "github.com/ensinoverso/backend/services/logger"
	dummydb "github.com/ensinoverso/backend/storage/database/dummy"
)

var (
	usrRepo user.Repository
	schRepo school.Repository
	lesRepo lesson.Repository
	gen     *generatorStub

	errMissingToken   = httpErr{Error: "missing or malformed jwt"}
	errPermDenied     = httpErr{Error: "permission denied"}
	errObjNotFound    = httpErr{Error: "not found"}
	errPendingAccount = httpErr{Error: "account pending approval"}
)

func init() {
	// error responses must take their production shape
	core.Conf.Debug = false
	core.Conf.TestMode = true
}

type generatorStub struct {
	out lesson.GeneratedLesson
	err error
}

func (g *generatorStub) Generate(_ context.Context, _ lesson.GenerateInput) (lesson.GeneratedLesson, error) {
	return g.out, g.err
}

func setup(t *testing.T) Server {
	t.Helper()

	// set up DB & repos
	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open() failed, %v", err)
	}
	usrRepo = dummydb.NewUserRepository(db)
	schRepo = dummydb.NewSchoolRepository(db)
	lesRepo = dummydb.NewLessonRepository(db)

	// set up services
	validate, translator := core.NewValidator()
	user.RegisterValidators(validate, translator)
	lesson.RegisterValidators(validate, translator)

	mailSvc := emailsvc.NewConsoleServiceMock()
	usrSvc := user.NewService(usrRepo, mailSvc)
	schSvc := school.NewService(schRepo)
	gen = &generatorStub{}
	lesSvc := lesson.NewService(lesRepo, usrRepo, gen, mailSvc)

	logger := logsvc.NewRollbarLogger(log.New(os.Stdout, "TEST : ", log.LstdFlags), core.Conf)
	logger.Enable(false)

	// set up server
	return NewServer(
		&Options{
			DisableReqLogs: true,
			UserSvc:        usrSvc,
			SchoolSvc:      schSvc,
			LessonSvc:      lesSvc,
			Validate:       validate,
			Translator:     translator,
			Logger:         logger,
			SignalShutdown: func() {},
		},
	)
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getToken(t *testing.T, usr user.User) string {
	claims := GetUserClaims(usr)
	token, err := GenerateToken(claims)
	if err != nil {
		t.Fatalf("getToken(): %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj(): %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList(): %v", err)
	}
	return data
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
