package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/miradi/core/report"
)

const reportColumns = `id, project_id, type, content, status, submitted_at, created_at`

type reportRow struct {
	ID          string    `db:"id"`
	ProjectID   string    `db:"project_id"`
	Type        string    `db:"type"`
	Content     string    `db:"content"`
	Status      string    `db:"status"`
	SubmittedAt null.Time `db:"submitted_at"`
	CreatedAt   time.Time `db:"created_at"`
}

func (r reportRow) toReport() report.Report {
	return report.Report{
		ID:          r.ID,
		ProjectID:   r.ProjectID,
		Type:        report.Type(r.Type),
		Content:     r.Content,
		Status:      report.Status(r.Status),
		SubmittedAt: r.SubmittedAt.Time.UTC(),
		CreatedAt:   r.CreatedAt.UTC(),
	}
}

type reportRepository struct {
	db *sqlx.DB
}

var _ report.Repository = (*reportRepository)(nil) // interface compliance check

func NewReportRepository(db *sqlx.DB) *reportRepository {
	return &reportRepository{db: db}
}

func (repo reportRepository) CreateReport(ctx context.Context, r report.Report) (report.Report, error) {
	q := `INSERT INTO reports (` + reportColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := getExec(ctx, repo.db).ExecContext(ctx, q,
		r.ID, r.ProjectID, string(r.Type), r.Content, string(r.Status),
		null.NewTime(r.SubmittedAt, !r.SubmittedAt.IsZero()), r.CreatedAt,
	)
	if err != nil {
		return report.Report{}, trapErr(err, report.ErrNotFound, "inserting report")
	}
	return r, nil
}

func (repo reportRepository) GetReportByID(ctx context.Context, id string) (report.Report, error) {
	if !isUUID(id) {
		return report.Report{}, report.ErrNotFound
	}
	var row reportRow
	q := `SELECT ` + reportColumns + ` FROM reports WHERE id = $1`
	if err := getExec(ctx, repo.db).GetContext(ctx, &row, q, id); err != nil {
		return report.Report{}, trapErr(err, report.ErrNotFound, "finding report")
	}
	return row.toReport(), nil
}

func (repo reportRepository) QueryReportsByProject(ctx context.Context, projectID string) ([]report.Report, error) {
	var rows []reportRow
	q := `SELECT ` + reportColumns + ` FROM reports WHERE project_id = $1 ORDER BY created_at DESC`
	if err := getExec(ctx, repo.db).SelectContext(ctx, &rows, q, projectID); err != nil {
		return nil, errors.Wrap(err, "querying reports")
	}
	reports := make([]report.Report, 0, len(rows))
	for _, r := range rows {
		reports = append(reports, r.toReport())
	}
	return reports, nil
}

func (repo reportRepository) UpdateReportStatus(ctx context.Context, id string, status report.Status) error {
	res, err := getExec(ctx, repo.db).ExecContext(ctx, `UPDATE reports SET status = $1 WHERE id = $2`, string(status), id)
	if err != nil {
		return trapErr(err, report.ErrNotFound, "updating report status")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return report.ErrNotFound
	}
	return nil
}
