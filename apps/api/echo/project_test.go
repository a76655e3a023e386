package echoapi

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/miradi/core/notification"
	"github.com/trezcool/miradi/core/project"
	"github.com/trezcool/miradi/core/user"
)

func Test_projectApi_create(t *testing.T) {
	env := setup(t)
	director := createUser(t, env.usrRepo, "Directora", "dir@test.cd", "", user.RoleDirector, "", true)
	ana := createUser(t, env.usrRepo, "Ana", "ana@test.cd", "", user.RoleProfesor, "", true)
	dirToken := getToken(t, director)
	anaToken := getToken(t, ana)

	tests := []httpTest{
		{
			name: "Missing fields", body: []byte(`{}`), token: anaToken, wantCode: http.StatusBadRequest,
			wantData: []byte(`{"title": "this field is required", "description": "this field is required"}`),
		},
		{
			name: "Cannot create approved", token: anaToken, wantCode: http.StatusBadRequest,
			body: []byte(`{"title": "Huerto", "description": "Huerto escolar", "status": "aprobado"}`),
		},
		{
			name: "Reviewer must name a teacher", token: dirToken, wantCode: http.StatusBadRequest,
			body:     []byte(`{"title": "Huerto", "description": "Huerto escolar"}`),
			wantData: []byte(`{"teacherId": "this field is required"}`),
		},
		{
			name: "Teacher must be a profesor", token: dirToken, wantCode: http.StatusBadRequest,
			body:     []byte(`{"title": "Huerto", "description": "Huerto escolar", "teacherId": "` + director.ID + `"}`),
			wantData: []byte(`{"teacherId": "user is not a teacher"}`),
		},
	}
	for i := range tests {
		tests[i].method = http.MethodPost
		tests[i].path = "/v1/projects"
	}
	runHTTPTests(t, env, tests)

	t.Run("Profesor creates a draft", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/projects", anaToken, []byte(`{"title": " Huerto ",
			"description": "Huerto escolar", "objectives": ["Cultivar", " "], "resources": ["Semillas"]}`))
		env.serve(req, rec)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var prj project.Project
		unmarshal(t, rec, &prj)
		assert.Equal(t, "Huerto", prj.Title)
		assert.Equal(t, ana.ID, prj.TeacherID)
		assert.Equal(t, project.StatusBorrador, prj.Status)
		assert.Equal(t, []string{"Cultivar"}, prj.Objectives)
	})

	t.Run("Reviewer creates on behalf of a teacher", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/projects", dirToken, []byte(`{"title": "Radio",
			"description": "Radio escolar", "teacherId": "`+ana.ID+`", "status": "revision"}`))
		env.serve(req, rec)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var prj project.Project
		unmarshal(t, rec, &prj)
		assert.Equal(t, ana.ID, prj.TeacherID)
		assert.Equal(t, "Ana", prj.TeacherName)
		assert.Equal(t, project.StatusRevision, prj.Status)
	})
}

func Test_projectApi_queryAndOwnership(t *testing.T) {
	env := setup(t)
	director := createUser(t, env.usrRepo, "Directora", "dir@test.cd", "", user.RoleDirector, "", true)
	ana := createUser(t, env.usrRepo, "Ana", "ana@test.cd", "", user.RoleProfesor, "", true)
	luis := createUser(t, env.usrRepo, "Luis", "luis@test.cd", "", user.RoleProfesor, "", true)
	huerto := createProject(t, env.prjRepo, ana, "Huerto", project.StatusBorrador)
	radio := createProject(t, env.prjRepo, luis, "Radio", project.StatusAprobado)
	anaToken := getToken(t, ana)

	tests := []httpTest{
		{name: "Profesor sees own projects", method: http.MethodGet, path: "/v1/projects", token: anaToken, wantData: marchallList(t, huerto)},
		{
			name: "Reviewer sees all", method: http.MethodGet, path: "/v1/projects", token: getToken(t, director),
			wantData: marchallList(t, radio, huerto),
		},
		{
			name: "Reviewer filters by status", method: http.MethodGet, path: "/v1/projects?status=aprobado",
			token: getToken(t, director), wantData: marchallList(t, radio),
		},
		{name: "Profesor cannot see others' project", method: http.MethodGet, path: "/v1/projects/" + radio.ID, token: anaToken, wantCode: http.StatusForbidden},
		{name: "Unknown project", method: http.MethodGet, path: "/v1/projects/nope", token: anaToken, wantCode: http.StatusNotFound},
		{name: "Own project", method: http.MethodGet, path: "/v1/projects/" + huerto.ID, token: anaToken, wantData: marchallObj(t, huerto)},
		{
			name: "Profesor cannot submit others' project", method: http.MethodPost, path: "/v1/projects/" + radio.ID + "/submit",
			token: anaToken, wantCode: http.StatusForbidden,
		},
	}
	runHTTPTests(t, env, tests)
}

func Test_projectApi_updateAndSubmit(t *testing.T) {
	env := setup(t)
	ana := createUser(t, env.usrRepo, "Ana", "ana@test.cd", "", user.RoleProfesor, "", true)
	huerto := createProject(t, env.prjRepo, ana, "Huerto", project.StatusBorrador)
	anaToken := getToken(t, ana)
	path := "/v1/projects/" + huerto.ID

	tests := []httpTest{
		{name: "Draft is editable", method: http.MethodPut, path: path, token: anaToken, body: []byte(`{"title": "Huerto escolar"}`)},
		{
			name: "Attachment", method: http.MethodPost, path: path + "/attachments", token: anaToken, wantCode: http.StatusCreated,
			body: []byte(`{"fileName": "plan.pdf", "filePath": "/media/projects/plan.pdf", "fileType": "PDF"}`),
		},
		{name: "Submit", method: http.MethodPost, path: path + "/submit", token: anaToken},
		{name: "Cannot submit twice", method: http.MethodPost, path: path + "/submit", token: anaToken, wantCode: http.StatusBadRequest},
		{
			name: "Under review is not editable", method: http.MethodPut, path: path, token: anaToken,
			body: []byte(`{"title": "Otro"}`), wantCode: http.StatusForbidden,
		},
	}
	runHTTPTests(t, env, tests)

	prj, err := env.prjRepo.GetProjectByID(context.Background(), huerto.ID)
	require.NoError(t, err)
	assert.Equal(t, "Huerto escolar", prj.Title)
	assert.Equal(t, project.StatusRevision, prj.Status)
	require.Len(t, prj.Attachments, 1)
	assert.Equal(t, "pdf", prj.Attachments[0].FileType)
}

func Test_projectApi_changeStatus(t *testing.T) {
	env := setup(t)
	director := createUser(t, env.usrRepo, "Directora", "dir@test.cd", "", user.RoleDirector, "", true)
	ana := createUser(t, env.usrRepo, "Ana", "ana@test.cd", "", user.RoleProfesor, "+243990000001", true)
	luis := createUser(t, env.usrRepo, "Luis", "luis@test.cd", "", user.RoleProfesor, "", true)
	huerto := createProject(t, env.prjRepo, ana, "Huerto", project.StatusRevision)
	radio := createProject(t, env.prjRepo, luis, "Radio", project.StatusRevision)
	dirToken := getToken(t, director)
	path := "/v1/projects/" + huerto.ID + "/status"

	tests := []httpTest{
		{
			name: "Owner cannot review", path: path, token: getToken(t, ana), body: []byte(`{"status": "aprobado"}`),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "Invalid status", path: path, token: dirToken, body: []byte(`{"status": "archivado"}`),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"status": "invalid project status"}`),
		},
		{
			name: "Unknown project", path: "/v1/projects/nope/status", token: dirToken, body: []byte(`{"status": "aprobado"}`),
			wantCode: http.StatusNotFound,
		},
	}
	for i := range tests {
		tests[i].method = http.MethodPatch
	}
	runHTTPTests(t, env, tests)
	assert.Empty(t, env.gateway.Sent())

	t.Run("Approved", func(t *testing.T) {
		env.gateway.Reset()
		req, rec := newAuthRequest(http.MethodPatch, path, dirToken, []byte(`{"status": "APROBADO", "comments": " Excelente "}`))
		env.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusOK,
			wantData: []byte(`{"id": "` + huerto.ID + `", "status": "aprobado", "comments": "Excelente"}`),
		}, rec)

		sent := env.gateway.Sent()
		require.Len(t, sent, 1)
		assert.Equal(t, "+243990000001", sent[0].To)
		assert.True(t, strings.HasPrefix(sent[0].Body, "Hola Ana,"))
		assert.Contains(t, sent[0].Body, "¡Felicidades! Tu proyecto ha sido aprobado.")
		assert.Contains(t, sent[0].Body, "Comentarios: Excelente")

		notifs, err := env.notifRepo.QueryNotifications(context.Background(), ana.ID, notification.QueryFilter{})
		require.NoError(t, err)
		require.Len(t, notifs, 1)
		assert.Equal(t, notification.TypeProject, notifs[0].Type)
		assert.Equal(t, "¡Proyecto aprobado!", notifs[0].Title)
		assert.False(t, notifs[0].IsRead())
	})

	t.Run("Gateway failure does not fail the review", func(t *testing.T) {
		env.gateway.Reset()
		env.gateway.FailFor("+243990000001")
		req, rec := newAuthRequest(http.MethodPatch, path, dirToken, []byte(`{"status": "rechazado", "comments": "Falta presupuesto"}`))
		env.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Empty(t, env.gateway.Sent())

		notifs, err := env.notifRepo.QueryNotifications(context.Background(), ana.ID, notification.QueryFilter{})
		require.NoError(t, err)
		require.Len(t, notifs, 2)
		assert.Equal(t, "Proyecto rechazado", notifs[0].Title)

		prj, err := env.prjRepo.GetProjectByID(context.Background(), huerto.ID)
		require.NoError(t, err)
		assert.Equal(t, project.StatusRechazado, prj.Status)
		assert.Equal(t, "Falta presupuesto", prj.Comments)
	})

	t.Run("Teacher without phone only gets the in-app notification", func(t *testing.T) {
		env.gateway.Reset()
		req, rec := newAuthRequest(http.MethodPatch, "/v1/projects/"+radio.ID+"/status", dirToken, []byte(`{"status": "aprobado"}`))
		env.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Empty(t, env.gateway.Sent())

		notifs, err := env.notifRepo.QueryNotifications(context.Background(), luis.ID, notification.QueryFilter{})
		require.NoError(t, err)
		assert.Len(t, notifs, 1)
	})

	t.Run("Back to draft sends no message", func(t *testing.T) {
		env.gateway.Reset()
		req, rec := newAuthRequest(http.MethodPatch, path, dirToken, []byte(`{"status": "borrador"}`))
		env.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Empty(t, env.gateway.Sent())

		notifs, err := env.notifRepo.QueryNotifications(context.Background(), ana.ID, notification.QueryFilter{})
		require.NoError(t, err)
		require.Len(t, notifs, 3)
		assert.Equal(t, "Proyecto en revisión", notifs[0].Title)
	})
}
