package inmemdb

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/miradi/core"
	"github.com/trezcool/miradi/core/report"
)

type reportRepository struct {
	db *DB
}

var _ report.Repository = (*reportRepository)(nil) // interface compliance check

func NewReportRepository(db *DB) *reportRepository {
	return &reportRepository{db: db}
}

func (repo *reportRepository) CreateReport(_ context.Context, r report.Report) (report.Report, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	found := false
	for _, p := range repo.db.t.projects {
		if p.ID == r.ProjectID {
			found = true
			break
		}
	}
	if !found {
		return report.Report{}, core.NewConflictError(errors.Errorf("project %s does not exist", r.ProjectID))
	}
	repo.db.t.reports = append(repo.db.t.reports, r)
	return r, nil
}

func (repo *reportRepository) GetReportByID(_ context.Context, id string) (report.Report, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, r := range repo.db.t.reports {
		if r.ID == id {
			return r, nil
		}
	}
	return report.Report{}, report.ErrNotFound
}

func (repo *reportRepository) QueryReportsByProject(_ context.Context, projectID string) ([]report.Report, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	reports := make([]report.Report, 0)
	for i := len(repo.db.t.reports) - 1; i >= 0; i-- {
		if r := repo.db.t.reports[i]; r.ProjectID == projectID {
			reports = append(reports, r)
		}
	}
	return reports, nil
}

func (repo *reportRepository) UpdateReportStatus(_ context.Context, id string, status report.Status) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for i, r := range repo.db.t.reports {
		if r.ID == id {
			repo.db.t.reports[i].Status = status
			return nil
		}
	}
	return report.ErrNotFound
}
