package echoapi

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/miradi/core/settings"
	"github.com/trezcool/miradi/core/user"
)

func Test_settingsApi(t *testing.T) {
	env := setup(t)
	admin := createUser(t, env.usrRepo, "Admin", "admin@test.cd", "", user.RoleAdmin, "", true)
	director := createUser(t, env.usrRepo, "Directora", "dir@test.cd", "", user.RoleDirector, "", true)
	adminToken := getToken(t, admin)

	t.Run("Public read", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, "/v1/settings")
		env.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code)
		var s settings.Settings
		unmarshal(t, rec, &s)
		assert.Equal(t, "Miradi", s.InstitutionName)
	})

	tests := []httpTest{
		{name: "Auth required", body: []byte(`{"institutionName": "Colegio"}`), wantCode: http.StatusUnauthorized},
		{
			name: "Admin only", body: []byte(`{"institutionName": "Colegio"}`), token: getToken(t, director),
			wantCode: http.StatusForbidden,
		},
		{
			name: "Invalid color", body: []byte(`{"primaryColor": "blue"}`), token: adminToken, wantCode: http.StatusBadRequest,
			wantData: []byte(`{"primaryColor": "must be a valid hex color, e.g. #1f2937"}`),
		},
		{name: "Updated", body: []byte(`{"institutionName": " Colegio San José ", "primaryColor": "#1F2937"}`), token: adminToken},
	}
	for i := range tests {
		tests[i].method = http.MethodPut
		tests[i].path = "/v1/settings"
	}
	runHTTPTests(t, env, tests)

	t.Run("Partial update keeps other fields", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, "/v1/settings")
		env.serve(req, rec)
		var s settings.Settings
		unmarshal(t, rec, &s)
		assert.Equal(t, "Colegio San José", s.InstitutionName)
		assert.Equal(t, "#1f2937", s.PrimaryColor)
		assert.Equal(t, "#9333ea", s.SecondaryColor)
	})

	newUpload := func(t *testing.T, filename string) *http.Request {
		var body bytes.Buffer
		w := multipart.NewWriter(&body)
		require.NoError(t, w.WriteField("secondaryColor", "#000000"))
		fw, err := w.CreateFormFile("logo", filename)
		require.NoError(t, err)
		_, err = fw.Write([]byte("\x89PNG fake"))
		require.NoError(t, err)
		require.NoError(t, w.Close())

		req := httptest.NewRequest(http.MethodPut, "/v1/settings", &body)
		req.Header.Set("Content-Type", w.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+adminToken)
		return req
	}

	t.Run("Logo upload", func(t *testing.T) {
		rec := httptest.NewRecorder()
		env.serve(newUpload(t, "logo.PNG"), rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var s settings.Settings
		unmarshal(t, rec, &s)
		assert.Equal(t, "#000000", s.SecondaryColor)
		require.True(t, strings.HasPrefix(s.Logo, "/media/settings/logo-"), s.Logo)
		assert.True(t, strings.HasSuffix(s.Logo, ".png"))
		assert.Empty(t, s.Favicon)

		stored := filepath.Join(env.app.deps.Conf.MediaRoot, "settings", filepath.Base(s.Logo))
		data, err := os.ReadFile(stored)
		require.NoError(t, err)
		assert.Equal(t, "\x89PNG fake", string(data))
	})

	t.Run("Unsupported upload", func(t *testing.T) {
		rec := httptest.NewRecorder()
		env.serve(newUpload(t, "logo.exe"), rec)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		checkCodeAndData(t, httpTest{wantCode: http.StatusBadRequest, wantData: []byte(`{"logo": "unsupported image type"}`)}, rec)
	})
}
