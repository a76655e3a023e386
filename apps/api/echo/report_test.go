package echoapi

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/miradi/core/project"
	"github.com/trezcool/miradi/core/report"
	"github.com/trezcool/miradi/core/user"
)

func Test_reportApi(t *testing.T) {
	env := setup(t)
	director := createUser(t, env.usrRepo, "Directora", "dir@test.cd", "", user.RoleDirector, "", true)
	ana := createUser(t, env.usrRepo, "Ana", "ana@test.cd", "", user.RoleProfesor, "", true)
	luis := createUser(t, env.usrRepo, "Luis", "luis@test.cd", "", user.RoleProfesor, "", true)
	huerto := createProject(t, env.prjRepo, ana, "Huerto", project.StatusAprobado)
	anaToken := getToken(t, ana)
	luisToken := getToken(t, luis)
	dirToken := getToken(t, director)

	tests := []httpTest{
		{
			name: "Invalid type", method: http.MethodPost, path: "/v1/reports", token: anaToken, wantCode: http.StatusBadRequest,
			body:     []byte(`{"projectId": "` + huerto.ID + `", "type": "mensual", "content": "Avances"}`),
			wantData: []byte(`{"type": "invalid report type"}`),
		},
		{
			name: "Unknown project", method: http.MethodPost, path: "/v1/reports", token: anaToken, wantCode: http.StatusNotFound,
			body: []byte(`{"projectId": "nope", "type": "trimestral", "content": "Avances"}`),
		},
		{
			name: "Not the owner", method: http.MethodPost, path: "/v1/reports", token: luisToken, wantCode: http.StatusForbidden,
			body: []byte(`{"projectId": "` + huerto.ID + `", "type": "trimestral", "content": "Avances"}`),
		},
		{
			name: "Not the owner cannot list", method: http.MethodGet, path: "/v1/projects/" + huerto.ID + "/reports",
			token: luisToken, wantCode: http.StatusForbidden,
		},
		{name: "No reports yet", method: http.MethodGet, path: "/v1/projects/" + huerto.ID + "/reports", token: anaToken, wantData: []byte(`[]`)},
	}
	runHTTPTests(t, env, tests)

	var created report.Report
	t.Run("Owner files a report", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/reports", anaToken,
			[]byte(`{"projectId": "`+huerto.ID+`", "type": "Trimestral", "content": " Avances del trimestre "}`))
		env.serve(req, rec)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		unmarshal(t, rec, &created)
		assert.Equal(t, huerto.ID, created.ProjectID)
		assert.Equal(t, report.TypeTrimestral, created.Type)
		assert.Equal(t, report.StatusEntregado, created.Status)
		assert.Equal(t, "Avances del trimestre", created.Content)
		assert.False(t, created.SubmittedAt.IsZero())
	})

	statusPath := "/v1/reports/" + created.ID + "/status"
	runHTTPTests(t, env, []httpTest{
		{
			name: "Profesor cannot review", method: http.MethodPatch, path: statusPath, token: anaToken,
			body: []byte(`{"status": "revisado"}`), wantCode: http.StatusForbidden,
		},
		{
			name: "Invalid status", method: http.MethodPatch, path: statusPath, token: dirToken,
			body: []byte(`{"status": "perdido"}`), wantCode: http.StatusBadRequest, wantData: []byte(`{"status": "invalid report status"}`),
		},
		{
			name: "Unknown report", method: http.MethodPatch, path: "/v1/reports/nope/status", token: dirToken,
			body: []byte(`{"status": "revisado"}`), wantCode: http.StatusNotFound,
		},
		{name: "Reviewed", method: http.MethodPatch, path: statusPath, token: dirToken, body: []byte(`{"status": "revisado"}`)},
	})

	t.Run("Reviewer lists the project reports", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/projects/"+huerto.ID+"/reports", dirToken)
		env.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var reports []report.Report
		unmarshal(t, rec, &reports)
		require.Len(t, reports, 1)
		assert.Equal(t, created.ID, reports[0].ID)
		assert.Equal(t, report.StatusRevisado, reports[0].Status)
	})
}
