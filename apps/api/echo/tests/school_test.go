package tests

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/ensinoverso/backend/core/school"
	"github.com/ensinoverso/backend/core/user"
	testutil "github.com/ensinoverso/backend/tests"
)

func Test_schoolApi_classCRUD(t *testing.T) {
	app := setup(t)

	admin := testutil.CreateUser(t, usrRepo, "Ada Admin", "ada@test.io", "", user.RoleAdmin, nil, true)
	student := testutil.CreateUser(t, usrRepo, "Sara Student", "sara@test.io", "", user.RoleStudent, nil, true)

	adminToken := getToken(t, admin)
	studentToken := getToken(t, student)

	t.Run("auth required", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/v1/classes")
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)}, rec)
	})

	t.Run("admin required to create", func(t *testing.T) {
		body := marchallObj(t, school.NewClass{Name: "5th Grade A", Year: "2026"})
		req, rec := newAuthRequest(http.MethodPost, "/v1/classes", studentToken, body)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, errPermDenied)}, rec)
	})

	t.Run("required fields", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/classes", adminToken)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"name": "this field is required", "year": "this field is required"}),
		}, rec)
	})

	var cls school.Class
	t.Run("admin creates a class", func(t *testing.T) {
		body := marchallObj(t, school.NewClass{Name: "5th Grade A", Year: "2026"})
		req, rec := newAuthRequest(http.MethodPost, "/v1/classes", adminToken, body)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("failed! code = %v; wantCode %v; body %s", rec.Code, http.StatusCreated, rec.Body.String())
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &cls); err != nil {
			t.Fatalf("json.Unmarshal(): %v", err)
		}
		if cls.ID == "" {
			t.Error("failed! empty class ID")
		}
		if cls.Name != "5th Grade A" || cls.Year != "2026" {
			t.Errorf("got %q/%q; want %q/%q", cls.Name, cls.Year, "5th Grade A", "2026")
		}
	})

	t.Run("any active account lists classes", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/classes", studentToken)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallList(t, cls)}, rec)
	})

	t.Run("retrieve", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/classes/"+cls.ID, studentToken)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, cls)}, rec)
	})

	t.Run("retrieve unknown", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/classes/lol", studentToken)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, errObjNotFound)}, rec)
	})

	t.Run("update merges set fields only", func(t *testing.T) {
		body := marchallObj(t, school.UpdateClass{Name: "5th Grade B"})
		req, rec := newAuthRequest(http.MethodPut, "/v1/classes/"+cls.ID, adminToken, body)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; wantCode %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var updated school.Class
		if err := json.Unmarshal(rec.Body.Bytes(), &updated); err != nil {
			t.Fatalf("json.Unmarshal(): %v", err)
		}
		if updated.Name != "5th Grade B" {
			t.Errorf("Name = %v; want %v", updated.Name, "5th Grade B")
		}
		if updated.Year != cls.Year {
			t.Errorf("Year = %v; want %v", updated.Year, cls.Year)
		}
	})

	t.Run("admin required to update", func(t *testing.T) {
		body := marchallObj(t, school.UpdateClass{Name: "Nope"})
		req, rec := newAuthRequest(http.MethodPut, "/v1/classes/"+cls.ID, studentToken, body)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, errPermDenied)}, rec)
	})

	t.Run("destroy", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/v1/classes/"+cls.ID, adminToken)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("failed! code = %v; wantCode %v", rec.Code, http.StatusNoContent)
		}
		req, rec = newAuthRequest(http.MethodGet, "/v1/classes/"+cls.ID, adminToken)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, errObjNotFound)}, rec)
	})
}

func Test_schoolApi_queryManageable(t *testing.T) {
	app := setup(t)

	c1 := testutil.CreateClass(t, schRepo, "5th Grade A", "2026")
	c2 := testutil.CreateClass(t, schRepo, "6th Grade B", "2026")

	admin := testutil.CreateUser(t, usrRepo, "Ada Admin", "ada@test.io", "", user.RoleAdmin, nil, true)
	linked := testutil.CreateUser(t, usrRepo, "Tom Teacher", "tom@test.io", "", user.RoleTeacher, []string{c1.ID}, true)
	unlinked := testutil.CreateUser(t, usrRepo, "Una Teacher", "una@test.io", "", user.RoleTeacher, nil, true)
	student := testutil.CreateUser(t, usrRepo, "Sara Student", "sara@test.io", "", user.RoleStudent, []string{c1.ID}, true)

	tests := []httpTest{
		{name: "linked teacher sees assigned classes", token: getToken(t, linked), wantData: marchallList(t, c1)},
		{name: "unlinked teacher sees none", token: getToken(t, unlinked), wantData: marchallList(t)},
		{name: "admin sees everything", token: getToken(t, admin), wantData: marchallList(t, c1, c2)},
		{
			name: "students are kept out", token: getToken(t, student),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errPermDenied),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodGet
		tt.path = "/v1/classes/manageable"
		if tt.wantCode == 0 {
			tt.wantCode = http.StatusOK
		}

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_schoolApi_skills(t *testing.T) {
	app := setup(t)

	admin := testutil.CreateUser(t, usrRepo, "Ada Admin", "ada@test.io", "", user.RoleAdmin, nil, true)
	teacher := testutil.CreateUser(t, usrRepo, "Tom Teacher", "tom@test.io", "", user.RoleTeacher, nil, true)
	student := testutil.CreateUser(t, usrRepo, "Sara Student", "sara@test.io", "", user.RoleStudent, nil, true)

	data := school.SaveSkills{
		Component: "math",
		Skills: []school.Skill{
			{Code: "EF05MA01", Description: "Read and write natural numbers", Component: "math", Year: "5"},
			{Code: "EF05MA03", Description: "Compare rational numbers", Component: "math", Year: "5"},
		},
	}

	t.Run("admin required to save", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, "/v1/skills", getToken(t, teacher), marchallObj(t, data))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, errPermDenied)}, rec)
	})

	t.Run("admin saves the catalog", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, "/v1/skills", getToken(t, admin), marchallObj(t, data))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, data)}, rec)
	})

	t.Run("teacher reads the catalog", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/skills", getToken(t, teacher))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusOK,
			wantData: marchallObj(t, map[string][]school.Skill{"math": data.Skills}),
		}, rec)
	})

	t.Run("students are kept out", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/skills", getToken(t, student))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, errPermDenied)}, rec)
	})
}
