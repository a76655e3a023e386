package echoapi

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/miradi/core/period"
	"github.com/trezcool/miradi/core/user"
)

func Test_periodApi_create(t *testing.T) {
	env := setup(t)
	director := createUser(t, env.usrRepo, "Directora", "dir@test.cd", "", user.RoleDirector, "", true)
	ana := createUser(t, env.usrRepo, "Ana", "ana@test.cd", "", user.RoleProfesor, "", true)
	dirToken := getToken(t, director)

	validBody := []byte(`{"name": "2024-2025", "startDate": "2024-09-01", "endDate": "2025-06-30",
		"submissionDeadline": "2024-10-15", "reportDeadlines": ["2024-12-15", "2025-03-15", "2025-06-15"]}`)

	tests := []httpTest{
		{name: "Auth required", body: validBody, wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Profesor cannot create", body: validBody, token: getToken(t, ana),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "Missing fields", body: []byte(`{}`), token: dirToken, wantCode: http.StatusBadRequest,
			wantData: []byte(`{"name": "this field is required", "startDate": "this field is required",
				"endDate": "this field is required", "submissionDeadline": "this field is required",
				"reportDeadlines": "this field is required"}`),
		},
		{
			name: "End before start", token: dirToken, wantCode: http.StatusBadRequest,
			body: []byte(`{"name": "P", "startDate": "2025-01-01", "endDate": "2024-01-01",
				"submissionDeadline": "2024-10-15", "reportDeadlines": ["2024-12-15"]}`),
			wantData: []byte(`{"endDate": "end date must not be before start date"}`),
		},
		{
			name: "Bad date", token: dirToken, wantCode: http.StatusBadRequest,
			body: []byte(`{"name": "P", "startDate": "01/09/2024", "endDate": "2025-06-30",
				"submissionDeadline": "2024-10-15", "reportDeadlines": ["2024-12-15"]}`),
		},
	}
	for i := range tests {
		tests[i].method = http.MethodPost
		tests[i].path = "/v1/periods"
	}
	runHTTPTests(t, env, tests)

	t.Run("Deadlines are tagged by position", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/periods", dirToken, validBody)
		env.serve(req, rec)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var p period.Period
		unmarshal(t, rec, &p)
		assert.True(t, p.IsActive)
		assert.Equal(t, "2024-10-15", p.SubmissionDeadline.String())
		require.Len(t, p.Deadlines, 3)
		for i, d := range p.Deadlines {
			assert.Equal(t, i, d.Position)
			assert.Equal(t, p.ID, d.PeriodID)
		}
		assert.Equal(t, period.DeadlineTrimestral, p.Deadlines[0].ReportType)
		assert.Equal(t, period.DeadlineTrimestral, p.Deadlines[1].ReportType)
		assert.Equal(t, period.DeadlineFinal, p.Deadlines[2].ReportType)
		assert.Equal(t, "2025-06-15", p.Deadlines[2].Date.String())
	})
}

func Test_periodApi_active(t *testing.T) {
	env := setup(t)
	director := createUser(t, env.usrRepo, "Directora", "dir@test.cd", "", user.RoleDirector, "", true)
	ana := createUser(t, env.usrRepo, "Ana", "ana@test.cd", "", user.RoleProfesor, "", true)
	dirToken := getToken(t, director)
	anaToken := getToken(t, ana)

	runHTTPTests(t, env, []httpTest{
		{name: "No active period", method: http.MethodGet, path: "/v1/periods/active", token: anaToken, wantData: []byte(`null`)},
		{name: "No periods", method: http.MethodGet, path: "/v1/periods", token: anaToken, wantData: []byte(`[]`)},
	})

	create := func(name string) period.Period {
		body := []byte(`{"name": "` + name + `", "startDate": "2024-09-01", "endDate": "2025-06-30",
			"submissionDeadline": "2024-10-15", "reportDeadlines": ["2025-06-15"]}`)
		req, rec := newAuthRequest(http.MethodPost, "/v1/periods", dirToken, body)
		env.serve(req, rec)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var p period.Period
		unmarshal(t, rec, &p)
		return p
	}

	first := create("2023-2024")
	assert.Equal(t, period.DeadlineFinal, first.Deadlines[0].ReportType)
	second := create("2024-2025")

	t.Run("Only the newest period is active", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/periods/active", anaToken)
		env.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code)
		var active period.Period
		unmarshal(t, rec, &active)
		assert.Equal(t, second.ID, active.ID)
		require.Len(t, active.Deadlines, 1)

		req, rec = newAuthRequest(http.MethodGet, "/v1/periods", anaToken)
		env.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code)
		var periods []period.Period
		unmarshal(t, rec, &periods)
		require.Len(t, periods, 2)
		assert.Equal(t, second.ID, periods[0].ID)
		assert.True(t, periods[0].IsActive)
		assert.Equal(t, first.ID, periods[1].ID)
		assert.False(t, periods[1].IsActive)
	})

	runHTTPTests(t, env, []httpTest{
		{name: "Unknown period", method: http.MethodGet, path: "/v1/periods/nope", token: anaToken, wantCode: http.StatusNotFound},
		{name: "Retrieve", method: http.MethodGet, path: "/v1/periods/" + first.ID, token: anaToken},
		{
			name: "Director cannot delete", method: http.MethodDelete, path: "/v1/periods/" + first.ID, token: dirToken,
			wantCode: http.StatusForbidden,
		},
	})
}

func Test_periodApi_destroy(t *testing.T) {
	env := setup(t)
	admin := createUser(t, env.usrRepo, "Admin", "admin@test.cd", "", user.RoleAdmin, "", true)
	adminToken := getToken(t, admin)

	req, rec := newAuthRequest(http.MethodPost, "/v1/periods", adminToken, []byte(`{"name": "P", "startDate": "2024-09-01",
		"endDate": "2025-06-30", "submissionDeadline": "2024-10-15", "reportDeadlines": ["2025-06-15"]}`))
	env.serve(req, rec)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var p period.Period
	unmarshal(t, rec, &p)

	runHTTPTests(t, env, []httpTest{
		{name: "Deleted", method: http.MethodDelete, path: "/v1/periods/" + p.ID, token: adminToken, wantCode: http.StatusNoContent},
		{name: "Gone", method: http.MethodDelete, path: "/v1/periods/" + p.ID, token: adminToken, wantCode: http.StatusNotFound},
		{name: "No active period left", method: http.MethodGet, path: "/v1/periods/active", token: adminToken, wantData: []byte(`null`)},
	})
}
