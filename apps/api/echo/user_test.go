package echoapi

import (
	"context"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/miradi/core/user"
	emailsvc "github.com/trezcool/miradi/services/email"
)

func Test_userApi_login(t *testing.T) {
	env := setup(t)
	createUser(t, env.usrRepo, "Ana", "ana@test.cd", "Gq7#vPz2mW", user.RoleProfesor, "", true)
	createUser(t, env.usrRepo, "N Dog", "ndog@test.cd", "Gq7#vPz2mW", user.RoleProfesor, "", false)

	tests := []httpTest{
		{
			name: "Missing fields", body: []byte(`{}`), wantCode: http.StatusBadRequest,
			wantData: []byte(`{"email": "this field is required", "password": "this field is required"}`),
		},
		{
			name: "Unknown email", body: []byte(`{"email": "who@test.cd", "password": "Gq7#vPz2mW"}`),
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, httpErr{Error: "invalid credentials"}),
		},
		{
			name: "Wrong password", body: []byte(`{"email": "ana@test.cd", "password": "nope"}`),
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, httpErr{Error: "invalid credentials"}),
		},
		{
			name: "Inactive user", body: []byte(`{"email": "ndog@test.cd", "password": "Gq7#vPz2mW"}`),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
	}
	for i := range tests {
		tests[i].method = http.MethodPost
		tests[i].path = "/v1/users/login"
	}
	runHTTPTests(t, env, tests)

	t.Run("Success (email is case insensitive)", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/v1/users/login", []byte(`{"email": " ANA@test.cd", "password": "Gq7#vPz2mW"}`))
		env.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var res LoginResponse
		unmarshal(t, rec, &res)
		assert.NotEmpty(t, res.Token)

		req, rec = newAuthRequest(http.MethodGet, "/v1/users/me", res.Token)
		env.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code)
		var me user.User
		unmarshal(t, rec, &me)
		assert.Equal(t, "ana@test.cd", me.Email)
		assert.NotNil(t, me.LastLogin)
	})
}

func Test_userApi_query(t *testing.T) {
	env := setup(t)
	admin := createUser(t, env.usrRepo, "Admin", "admin@test.cd", "", user.RoleAdmin, "", true)
	director := createUser(t, env.usrRepo, "Directora", "dir@test.cd", "", user.RoleDirector, "", true)
	ana := createUser(t, env.usrRepo, "Ana", "ana@test.cd", "", user.RoleProfesor, "+243990000001", true)
	naughty := createUser(t, env.usrRepo, "N Dog", "ndog@test.cd", "", user.RoleProfesor, "", false)

	adminToken := getToken(t, admin)
	path := func(v url.Values) string { return "/v1/users?" + v.Encode() }

	tests := []httpTest{
		{name: "Auth required", path: "/v1/users", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Admin required", path: "/v1/users", token: getToken(t, director), wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{name: "Get all (newest first)", path: "/v1/users", token: adminToken, wantData: marchallList(t, naughty, ana, director, admin)},
		{name: "search", path: path(url.Values{"search": {"DIR"}}), token: adminToken, wantData: marchallList(t, director)},
		{
			name: "role=profesor", path: path(url.Values{"role": {"profesor"}}), token: adminToken,
			wantData: marchallList(t, naughty, ana),
		},
		{
			name: "isActive=false", path: path(url.Values{"isActive": {"false"}}), token: adminToken,
			wantData: marchallList(t, naughty),
		},
		{
			name: "order by name", path: path(url.Values{"ordering": {"name"}}), token: adminToken,
			wantData: marchallList(t, admin, ana, director, naughty),
		},
	}
	for i := range tests {
		tests[i].method = http.MethodGet
	}
	runHTTPTests(t, env, tests)
}

func Test_userApi_create(t *testing.T) {
	env := setup(t)
	admin := createUser(t, env.usrRepo, "Admin", "admin@test.cd", "", user.RoleAdmin, "", true)
	createUser(t, env.usrRepo, "Ana", "ana@test.cd", "", user.RoleProfesor, "", true)
	adminToken := getToken(t, admin)

	tests := []httpTest{
		{
			name: "Invalid role and phone", token: adminToken, wantCode: http.StatusBadRequest,
			body: []byte(`{"name": "Luis", "email": "luis@test.cd", "role": "student", "phoneNumber": "0990000000",
				"password": "Gq7#vPz2mW", "passwordConfirm": "Gq7#vPz2mW"}`),
		},
		{
			name: "Email taken", token: adminToken, wantCode: http.StatusBadRequest,
			body: []byte(`{"name": "Ana 2", "email": "ANA@test.cd", "role": "profesor",
				"password": "Gq7#vPz2mW", "passwordConfirm": "Gq7#vPz2mW"}`),
		},
		{
			name: "Weak password", token: adminToken, wantCode: http.StatusBadRequest,
			body: []byte(`{"name": "Luis", "email": "luis@test.cd", "role": "profesor",
				"password": "12345678", "passwordConfirm": "12345678"}`),
		},
		{
			name: "Created", token: adminToken, wantCode: http.StatusCreated,
			body: []byte(`{"name": "Luis", "email": "luis@test.cd", "role": "profesor", "phoneNumber": "+243990000002",
				"password": "Gq7#vPz2mW", "passwordConfirm": "Gq7#vPz2mW"}`),
		},
	}
	for i := range tests {
		tests[i].method = http.MethodPost
		tests[i].path = "/v1/users"
	}
	runHTTPTests(t, env, tests)
}

func Test_userApi_updateAndDeactivate(t *testing.T) {
	env := setup(t)
	admin := createUser(t, env.usrRepo, "Admin", "admin@test.cd", "", user.RoleAdmin, "", true)
	ana := createUser(t, env.usrRepo, "Ana", "ana@test.cd", "", user.RoleProfesor, "", true)
	luis := createUser(t, env.usrRepo, "Luis", "luis@test.cd", "", user.RoleProfesor, "", true)
	anaToken := getToken(t, ana)

	tests := []httpTest{
		{name: "Other profile is hidden", method: http.MethodGet, path: "/v1/users/" + luis.ID, token: anaToken, wantCode: http.StatusNotFound},
		{name: "Own profile", method: http.MethodGet, path: "/v1/users/" + ana.ID, token: anaToken, wantData: marchallObj(t, ana)},
		{
			name: "Profesor cannot change own role", method: http.MethodPut, path: "/v1/users/" + ana.ID, token: anaToken,
			body: []byte(`{"role": "admin"}`), wantCode: http.StatusForbidden,
		},
		{
			name: "Profesor sets own phone", method: http.MethodPut, path: "/v1/users/" + ana.ID, token: anaToken,
			body: []byte(`{"phoneNumber": "+243990000001"}`),
		},
		{
			name: "Admin cannot deactivate self", method: http.MethodDelete, path: "/v1/users/" + admin.ID,
			token: getToken(t, admin), wantCode: http.StatusForbidden,
		},
		{
			name: "Admin deactivates user", method: http.MethodDelete, path: "/v1/users/" + luis.ID,
			token: getToken(t, admin), wantCode: http.StatusNoContent,
		},
		{
			name: "Deactivated user is locked out", method: http.MethodGet, path: "/v1/users/me",
			token: getToken(t, luis), wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
	}
	runHTTPTests(t, env, tests)

	usr, err := env.usrRepo.GetUserByID(context.Background(), ana.ID)
	require.NoError(t, err)
	assert.Equal(t, "+243990000001", usr.PhoneNumber)
}

func Test_userApi_passwordReset(t *testing.T) {
	env := setup(t)
	createUser(t, env.usrRepo, "Ana", "ana@test.cd", "Gq7#vPz2mW", user.RoleProfesor, "", true)
	emailsvc.ResetSentMessages()

	for _, email := range []string{"ana@test.cd", "unknown@test.cd"} {
		req, rec := newRequest(http.MethodPost, "/v1/users/password-reset", []byte(`{"email": "`+email+`"}`))
		env.serve(req, rec)
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	require.Len(t, emailsvc.SentMessages, 1)
	msg := emailsvc.SentMessages[0]
	assert.Equal(t, "ana@test.cd", msg.To[0].Address)
	assert.Equal(t, "password_reset", msg.TemplateName)

	req, rec := newRequest(http.MethodPost, "/v1/users/password-reset-confirm",
		[]byte(`{"uid": "bad", "token": "bad", "password": "Xk9$wQ2pLr", "passwordConfirm": "Xk9$wQ2pLr"}`))
	env.serve(req, rec)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
