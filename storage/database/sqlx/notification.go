package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/miradi/core"
	"github.com/trezcool/miradi/core/notification"
)

const notificationColumns = `id, user_id, title, message, type, read_at, created_at`

type notificationRow struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	Title     string    `db:"title"`
	Message   string    `db:"message"`
	Type      string    `db:"type"`
	ReadAt    null.Time `db:"read_at"`
	CreatedAt time.Time `db:"created_at"`
}

func (r notificationRow) toNotification() notification.Notification {
	n := notification.Notification{
		ID:        r.ID,
		UserID:    r.UserID,
		Title:     r.Title,
		Message:   r.Message,
		Type:      notification.Type(r.Type),
		CreatedAt: r.CreatedAt.UTC(),
	}
	if r.ReadAt.Valid {
		t := r.ReadAt.Time.UTC()
		n.ReadAt = &t
	}
	return n
}

type candidateRow struct {
	TeacherID    string    `db:"teacher_id"`
	TeacherName  string    `db:"teacher_name"`
	PhoneNumber  string    `db:"phone_number"`
	Email        string    `db:"email"`
	ProjectID    string    `db:"project_id"`
	ProjectTitle string    `db:"project_title"`
	PeriodID     string    `db:"period_id"`
	PeriodName   string    `db:"period_name"`
	Kind         string    `db:"kind"`
	DeadlineID   string    `db:"deadline_id"`
	DueDate      core.Date `db:"due_date"`
}

type notificationRepository struct {
	db *sqlx.DB
}

var (
	_ notification.Repository         = (*notificationRepository)(nil) // interface compliance check
	_ notification.DeadlineRepository = (*notificationRepository)(nil)
)

func NewNotificationRepository(db *sqlx.DB) *notificationRepository {
	return &notificationRepository{db: db}
}

func (repo notificationRepository) CreateNotification(ctx context.Context, n notification.Notification) error {
	q := `INSERT INTO notifications (` + notificationColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := getExec(ctx, repo.db).ExecContext(ctx, q,
		n.ID, n.UserID, n.Title, n.Message, string(n.Type), null.TimeFromPtr(n.ReadAt), n.CreatedAt)
	if err != nil {
		return trapErr(err, notification.ErrNotFound, "inserting notification")
	}
	return nil
}

func (repo notificationRepository) QueryNotifications(ctx context.Context, userID string, filter notification.QueryFilter) ([]notification.Notification, error) {
	q := `SELECT ` + notificationColumns + ` FROM notifications WHERE user_id = $1`
	if filter.UnreadOnly {
		q += ` AND read_at IS NULL`
	}
	q += ` ORDER BY created_at DESC`

	var rows []notificationRow
	if err := getExec(ctx, repo.db).SelectContext(ctx, &rows, q, userID); err != nil {
		return nil, errors.Wrap(err, "querying notifications")
	}
	notifications := make([]notification.Notification, 0, len(rows))
	for _, r := range rows {
		notifications = append(notifications, r.toNotification())
	}
	return notifications, nil
}

func (repo notificationRepository) MarkRead(ctx context.Context, userID, id string, at time.Time) (notification.Notification, error) {
	if !isUUID(id) {
		return notification.Notification{}, notification.ErrNotFound
	}
	q := `
	UPDATE notifications SET read_at = COALESCE(read_at, $1)
	WHERE id = $2 AND user_id = $3
	RETURNING ` + notificationColumns
	var row notificationRow
	if err := getExec(ctx, repo.db).GetContext(ctx, &row, q, at, id, userID); err != nil {
		return notification.Notification{}, trapErr(err, notification.ErrNotFound, "marking notification read")
	}
	return row.toNotification(), nil
}

func (repo notificationRepository) MarkAllRead(ctx context.Context, userID string, at time.Time) (int64, error) {
	q := `UPDATE notifications SET read_at = $1 WHERE user_id = $2 AND read_at IS NULL`
	res, err := getExec(ctx, repo.db).ExecContext(ctx, q, at, userID)
	if err != nil {
		return 0, errors.Wrap(err, "marking notifications read")
	}
	return res.RowsAffected()
}

func (repo notificationRepository) DeadlineCandidates(ctx context.Context) ([]notification.Candidate, error) {
	q := `
	SELECT u.id AS teacher_id, u.name AS teacher_name, COALESCE(u.phone_number, '') AS phone_number, u.email,
	       pr.id AS project_id, pr.title AS project_title, p.id AS period_id, p.name AS period_name,
	       'submission' AS kind, '' AS deadline_id, p.submission_deadline AS due_date
	FROM periods p
	CROSS JOIN projects pr
	JOIN users u ON u.id = pr.teacher_id
	WHERE p.is_active AND pr.status = 'aprobado' AND u.is_active
	UNION ALL
	SELECT u.id, u.name, COALESCE(u.phone_number, ''), u.email,
	       pr.id, pr.title, p.id, p.name,
	       d.report_type, d.id::text, d.deadline_date
	FROM periods p
	JOIN period_report_deadlines d ON d.period_id = p.id
	CROSS JOIN projects pr
	JOIN users u ON u.id = pr.teacher_id
	WHERE p.is_active AND pr.status = 'aprobado' AND u.is_active
	ORDER BY teacher_name, project_title, due_date`

	var rows []candidateRow
	if err := getExec(ctx, repo.db).SelectContext(ctx, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying deadline candidates")
	}
	candidates := make([]notification.Candidate, 0, len(rows))
	for _, r := range rows {
		candidates = append(candidates, notification.Candidate{
			TeacherID:    r.TeacherID,
			TeacherName:  r.TeacherName,
			PhoneNumber:  r.PhoneNumber,
			Email:        r.Email,
			ProjectID:    r.ProjectID,
			ProjectTitle: r.ProjectTitle,
			PeriodID:     r.PeriodID,
			PeriodName:   r.PeriodName,
			Kind:         notification.DeadlineKind(r.Kind),
			DeadlineID:   r.DeadlineID,
			DueDate:      r.DueDate,
		})
	}
	return candidates, nil
}

func (repo notificationRepository) IsDelivered(ctx context.Context, projectID, deadlineKey string, on core.Date) (bool, error) {
	var delivered bool
	q := `
	SELECT EXISTS (
		SELECT 1 FROM deadline_notifications WHERE project_id = $1 AND deadline_key = $2 AND sent_on = $3
	)`
	if err := getExec(ctx, repo.db).GetContext(ctx, &delivered, q, projectID, deadlineKey, on); err != nil {
		return false, errors.Wrap(err, "checking deadline delivery")
	}
	return delivered, nil
}

func (repo notificationRepository) RecordDelivery(ctx context.Context, d notification.Delivery) error {
	q := `
	INSERT INTO deadline_notifications (project_id, deadline_key, sent_on, teacher_id, created_at)
	VALUES ($1, $2, $3, $4, NOW())
	ON CONFLICT DO NOTHING`
	if _, err := getExec(ctx, repo.db).ExecContext(ctx, q, d.ProjectID, d.DeadlineKey, d.SentOn, d.TeacherID); err != nil {
		return errors.Wrap(err, "recording deadline delivery")
	}
	return nil
}
