package echoapi

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/miradi/core"
	"github.com/trezcool/miradi/core/notification"
	"github.com/trezcool/miradi/core/period"
	"github.com/trezcool/miradi/core/project"
	"github.com/trezcool/miradi/core/user"
)

func daysFromToday(n int) core.Date {
	return core.DateOf(time.Now().UTC().AddDate(0, 0, n))
}

func Test_notificationApi_deadlineScan(t *testing.T) {
	env := setup(t)
	director := createUser(t, env.usrRepo, "Directora", "dir@test.cd", "", user.RoleDirector, "", true)
	ana := createUser(t, env.usrRepo, "Ana", "ana@test.cd", "", user.RoleProfesor, "+243990000001", true)
	luis := createUser(t, env.usrRepo, "Luis", "luis@test.cd", "", user.RoleProfesor, "", true)
	huerto := createProject(t, env.prjRepo, ana, "Huerto", project.StatusAprobado)
	createProject(t, env.prjRepo, ana, "Borrador", project.StatusBorrador)
	createProject(t, env.prjRepo, luis, "Radio", project.StatusAprobado)
	dirToken := getToken(t, director)

	_, err := env.periodSvc.Create(context.Background(), period.NewPeriod{
		Name:               "2024-2025",
		StartDate:          daysFromToday(-60),
		EndDate:            daysFromToday(120),
		SubmissionDeadline: daysFromToday(-10),
		ReportDeadlines:    []core.Date{daysFromToday(5), daysFromToday(90)},
	})
	require.NoError(t, err)

	scan := func(query string) notification.ScanReport {
		req, rec := newAuthRequest(http.MethodPost, "/v1/notifications/deadline-scan"+query, dirToken)
		env.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var report notification.ScanReport
		unmarshal(t, rec, &report)
		return report
	}

	runHTTPTests(t, env, []httpTest{
		{
			name: "Reviewers only", method: http.MethodPost, path: "/v1/notifications/deadline-scan",
			token: getToken(t, ana), wantCode: http.StatusForbidden,
		},
		{
			name: "Days must be an integer", method: http.MethodPost, path: "/v1/notifications/deadline-scan?days=soon",
			token: dirToken, wantCode: http.StatusBadRequest, wantData: []byte(`{"days": "must be an integer"}`),
		},
		{
			name: "Days must be positive", method: http.MethodPost, path: "/v1/notifications/deadline-scan?days=0",
			token: dirToken, wantCode: http.StatusBadRequest, wantData: []byte(`{"days": "must be at least 1"}`),
		},
	})

	t.Run("Deadline outside the window", func(t *testing.T) {
		env.gateway.Reset()
		report := scan("?days=3")
		assert.Equal(t, 3, report.WindowDays)
		assert.Equal(t, 0, report.Sent)
		assert.Equal(t, 0, report.SkippedNoPhone)
		assert.Empty(t, env.gateway.Sent())
	})

	t.Run("Deadline inside the default window", func(t *testing.T) {
		env.gateway.Reset()
		report := scan("")
		assert.Equal(t, 7, report.WindowDays)
		assert.Equal(t, 6, report.Candidates) // 2 approved projects x (submission + 2 report deadlines)
		assert.Equal(t, 1, report.Sent)
		assert.Equal(t, 0, report.Failed)
		assert.Equal(t, 1, report.SkippedNoPhone)
		require.Len(t, report.Reminders, 1)
		assert.Equal(t, huerto.ID, report.Reminders[0].ProjectID)
		require.Len(t, report.Reminders[0].Items, 1)
		assert.Equal(t, notification.KindTrimestral, report.Reminders[0].Items[0].Kind)
		assert.Equal(t, 5, report.Reminders[0].Items[0].DaysLeft)

		sent := env.gateway.Sent()
		require.Len(t, sent, 1)
		assert.Equal(t, "+243990000001", sent[0].To)
		assert.Contains(t, sent[0].Body, "Recordatorio: tienes plazos próximos a vencer")
		assert.Contains(t, sent[0].Body, "Proyecto: Huerto")
		assert.Contains(t, sent[0].Body, "- Informe trimestral: "+daysFromToday(5).Format("02/01/2006")+" (quedan 5 días)")

		notifs, err := env.notifRepo.QueryNotifications(context.Background(), ana.ID, notification.QueryFilter{})
		require.NoError(t, err)
		require.Len(t, notifs, 1)
		assert.Equal(t, notification.TypeDeadline, notifs[0].Type)
	})

	t.Run("Same day rescan is deduplicated", func(t *testing.T) {
		env.gateway.Reset()
		report := scan("?days=7")
		assert.Equal(t, 0, report.Sent)
		assert.Equal(t, 1, report.SkippedDelivered)
		assert.Empty(t, env.gateway.Sent())
	})
}

func Test_notificationApi_inbox(t *testing.T) {
	env := setup(t)
	ana := createUser(t, env.usrRepo, "Ana", "ana@test.cd", "", user.RoleProfesor, "", true)
	luis := createUser(t, env.usrRepo, "Luis", "luis@test.cd", "", user.RoleProfesor, "", true)
	anaToken := getToken(t, ana)

	ctx := context.Background()
	older := notification.StatusNotification("n1", ana.ID, "revision", nextTimestamp())
	newer := notification.StatusNotification("n2", ana.ID, "aprobado", nextTimestamp())
	others := notification.StatusNotification("n3", luis.ID, "aprobado", nextTimestamp())
	for _, n := range []notification.Notification{older, newer, others} {
		require.NoError(t, env.notifRepo.CreateNotification(ctx, n))
	}

	runHTTPTests(t, env, []httpTest{
		{name: "Own notifications, newest first", method: http.MethodGet, path: "/v1/notifications", token: anaToken, wantData: marchallList(t, newer, older)},
		{name: "Cannot read others'", method: http.MethodPatch, path: "/v1/notifications/n3/read", token: anaToken, wantCode: http.StatusNotFound},
		{name: "Mark read", method: http.MethodPatch, path: "/v1/notifications/n1/read", token: anaToken},
		{name: "Unread only", method: http.MethodGet, path: "/v1/notifications?unread=true", token: anaToken, wantData: marchallList(t, newer)},
		{name: "Mark all read", method: http.MethodPost, path: "/v1/notifications/read-all", token: anaToken, wantData: []byte(`{"updated": 1}`)},
		{name: "Nothing unread", method: http.MethodGet, path: "/v1/notifications?unread=true", token: anaToken, wantData: []byte(`[]`)},
	})

	notifs, err := env.notifRepo.QueryNotifications(ctx, luis.ID, notification.QueryFilter{UnreadOnly: true})
	require.NoError(t, err)
	assert.Len(t, notifs, 1)
}
