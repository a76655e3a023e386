package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/miradi/core"
	"github.com/trezcool/miradi/core/period"
)

const (
	periodColumns   = `id, name, start_date, end_date, submission_deadline, is_active, created_at`
	deadlineColumns = `id, period_id, deadline_date, report_type, position`
)

type periodRow struct {
	ID                 string    `db:"id"`
	Name               string    `db:"name"`
	StartDate          core.Date `db:"start_date"`
	EndDate            core.Date `db:"end_date"`
	SubmissionDeadline core.Date `db:"submission_deadline"`
	IsActive           bool      `db:"is_active"`
	CreatedAt          time.Time `db:"created_at"`
}

func (r periodRow) toPeriod() period.Period {
	return period.Period{
		ID:                 r.ID,
		Name:               r.Name,
		StartDate:          r.StartDate,
		EndDate:            r.EndDate,
		SubmissionDeadline: r.SubmissionDeadline,
		IsActive:           r.IsActive,
		CreatedAt:          r.CreatedAt.UTC(),
		Deadlines:          make([]period.Deadline, 0),
	}
}

type deadlineRow struct {
	ID         string    `db:"id"`
	PeriodID   string    `db:"period_id"`
	Date       core.Date `db:"deadline_date"`
	ReportType string    `db:"report_type"`
	Position   int       `db:"position"`
}

type periodRepository struct {
	db *sqlx.DB
}

var _ period.Repository = (*periodRepository)(nil) // interface compliance check

func NewPeriodRepository(db *sqlx.DB) *periodRepository {
	return &periodRepository{db: db}
}

func (repo periodRepository) DeactivateAll(ctx context.Context) error {
	exec := getExec(ctx, repo.db)
	if inTx(ctx) {
		// released on commit or rollback
		if _, err := exec.ExecContext(ctx, `LOCK TABLE periods IN EXCLUSIVE MODE`); err != nil {
			return errors.Wrap(err, "locking periods")
		}
	}
	if _, err := exec.ExecContext(ctx, `UPDATE periods SET is_active = FALSE WHERE is_active`); err != nil {
		return errors.Wrap(err, "deactivating periods")
	}
	return nil
}

func (repo periodRepository) CreatePeriod(ctx context.Context, p period.Period) (period.Period, error) {
	q := `INSERT INTO periods (` + periodColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := getExec(ctx, repo.db).ExecContext(ctx, q,
		p.ID, p.Name, p.StartDate, p.EndDate, p.SubmissionDeadline, p.IsActive, p.CreatedAt)
	if err != nil {
		return period.Period{}, trapErr(err, period.ErrNotFound, "inserting period")
	}
	return p, nil
}

func (repo periodRepository) CreateDeadlines(ctx context.Context, deadlines []period.Deadline) error {
	if len(deadlines) == 0 {
		return nil
	}
	exec := getExec(ctx, repo.db)
	q := `INSERT INTO period_report_deadlines (` + deadlineColumns + `) VALUES ($1, $2, $3, $4, $5)`
	for _, d := range deadlines {
		if _, err := exec.ExecContext(ctx, q, d.ID, d.PeriodID, d.Date, string(d.ReportType), d.Position); err != nil {
			return trapErr(err, period.ErrNotFound, "inserting deadline")
		}
	}
	return nil
}

// attachDeadlines loads the deadlines of the given periods, in insertion order.
func (repo periodRepository) attachDeadlines(ctx context.Context, rows []periodRow) ([]period.Period, error) {
	periods := make([]period.Period, 0, len(rows))
	if len(rows) == 0 {
		return periods, nil
	}

	ids := make([]string, 0, len(rows))
	idx := make(map[string]int, len(rows))
	for i, r := range rows {
		ids = append(ids, r.ID)
		idx[r.ID] = i
		periods = append(periods, r.toPeriod())
	}

	var dRows []deadlineRow
	q := `SELECT ` + deadlineColumns + ` FROM period_report_deadlines WHERE period_id = ANY($1::uuid[]) ORDER BY period_id, position`
	if err := getExec(ctx, repo.db).SelectContext(ctx, &dRows, q, pq.Array(ids)); err != nil {
		return nil, errors.Wrap(err, "querying deadlines")
	}
	for _, d := range dRows {
		i := idx[d.PeriodID]
		periods[i].Deadlines = append(periods[i].Deadlines, period.Deadline{
			ID:         d.ID,
			PeriodID:   d.PeriodID,
			Date:       d.Date,
			ReportType: period.DeadlineType(d.ReportType),
			Position:   d.Position,
		})
	}
	return periods, nil
}

func (repo periodRepository) getOne(ctx context.Context, cond string, args ...interface{}) (period.Period, error) {
	var row periodRow
	q := `SELECT ` + periodColumns + ` FROM periods WHERE ` + cond
	if err := getExec(ctx, repo.db).GetContext(ctx, &row, q, args...); err != nil {
		return period.Period{}, trapErr(err, period.ErrNotFound, "finding period")
	}
	periods, err := repo.attachDeadlines(ctx, []periodRow{row})
	if err != nil {
		return period.Period{}, err
	}
	return periods[0], nil
}

func (repo periodRepository) GetActivePeriod(ctx context.Context) (period.Period, error) {
	return repo.getOne(ctx, "is_active")
}

func (repo periodRepository) QueryPeriods(ctx context.Context) ([]period.Period, error) {
	var rows []periodRow
	q := `SELECT ` + periodColumns + ` FROM periods ORDER BY created_at DESC`
	if err := getExec(ctx, repo.db).SelectContext(ctx, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying periods")
	}
	return repo.attachDeadlines(ctx, rows)
}

func (repo periodRepository) GetPeriodByID(ctx context.Context, id string) (period.Period, error) {
	if !isUUID(id) {
		return period.Period{}, period.ErrNotFound
	}
	return repo.getOne(ctx, "id = $1", id)
}

func (repo periodRepository) DeletePeriod(ctx context.Context, id string) error {
	if !isUUID(id) {
		return period.ErrNotFound
	}
	res, err := getExec(ctx, repo.db).ExecContext(ctx, `DELETE FROM periods WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting period")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return period.ErrNotFound
	}
	return nil
}
