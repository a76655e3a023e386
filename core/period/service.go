package period

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/miradi/core"
)

var ErrNotFound = core.NewNotFoundError("period not found")

type (
	Repository interface {
		// DeactivateAll clears the active flag of every period. Within a transaction it also locks the
		// periods table until commit, so concurrent creations are serialised.
		DeactivateAll(ctx context.Context) error
		CreatePeriod(ctx context.Context, p Period) (Period, error)
		CreateDeadlines(ctx context.Context, deadlines []Deadline) error
		// GetActivePeriod returns ErrNotFound when no period is active.
		GetActivePeriod(ctx context.Context) (Period, error)
		// QueryPeriods returns every period, newest first.
		QueryPeriods(ctx context.Context) ([]Period, error)
		GetPeriodByID(ctx context.Context, id string) (Period, error)
		DeletePeriod(ctx context.Context, id string) error
	}

	Service struct {
		repo   Repository
		tx     core.Transactor
		logger core.Logger
	}
)

func NewService(repo Repository, tx core.Transactor, logger core.Logger) *Service {
	return &Service{repo: repo, tx: tx, logger: logger}
}

// Create deactivates the current period and inserts the new active one with its deadlines, atomically.
func (svc *Service) Create(ctx context.Context, np NewPeriod) (Period, error) {
	if err := np.check(); err != nil {
		return Period{}, err
	}

	p := Period{
		ID:                 uuid.New().String(),
		Name:               np.Name,
		StartDate:          np.StartDate,
		EndDate:            np.EndDate,
		SubmissionDeadline: np.SubmissionDeadline,
		IsActive:           true,
		CreatedAt:          time.Now().UTC(),
	}
	types := TagDeadlines(len(np.ReportDeadlines))
	p.Deadlines = make([]Deadline, 0, len(np.ReportDeadlines))
	for i, date := range np.ReportDeadlines {
		p.Deadlines = append(p.Deadlines, Deadline{
			ID:         uuid.New().String(),
			PeriodID:   p.ID,
			Date:       date,
			ReportType: types[i],
			Position:   i,
		})
	}

	err := svc.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := svc.repo.DeactivateAll(ctx); err != nil {
			return errors.Wrap(err, "deactivating periods")
		}
		if _, err := svc.repo.CreatePeriod(ctx, p); err != nil {
			return errors.Wrap(err, "inserting period")
		}
		if err := svc.repo.CreateDeadlines(ctx, p.Deadlines); err != nil {
			return errors.Wrap(err, "inserting deadlines")
		}
		return nil
	})
	if err != nil {
		return Period{}, errors.Wrap(err, "creating period")
	}

	svc.logger.Info(fmt.Sprintf("period %q (%s) created and activated", p.Name, p.ID))
	return p, nil
}

// GetActive returns the active period, or nil when there is none.
func (svc *Service) GetActive(ctx context.Context) (*Period, error) {
	p, err := svc.repo.GetActivePeriod(ctx)
	if err != nil {
		if core.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (svc *Service) Query(ctx context.Context) ([]Period, error) {
	return svc.repo.QueryPeriods(ctx)
}

func (svc *Service) GetByID(ctx context.Context, id string) (Period, error) {
	return svc.repo.GetPeriodByID(ctx, id)
}

// Delete removes a period and its deadlines.
func (svc *Service) Delete(ctx context.Context, id string) error {
	if _, err := svc.repo.GetPeriodByID(ctx, id); err != nil {
		return err
	}
	return svc.repo.DeletePeriod(ctx, id)
}
