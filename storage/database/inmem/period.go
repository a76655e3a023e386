package inmemdb

import (
	"context"
	"sort"

	"github.com/pkg/errors"

	"github.com/trezcool/miradi/core"
	"github.com/trezcool/miradi/core/period"
)

type periodRepository struct {
	db *DB
}

var _ period.Repository = (*periodRepository)(nil) // interface compliance check

func NewPeriodRepository(db *DB) *periodRepository {
	return &periodRepository{db: db}
}

// withDeadlines returns a copy of p holding its deadlines in insertion order.
func (repo *periodRepository) withDeadlines(p period.Period) period.Period {
	p.Deadlines = make([]period.Deadline, 0)
	for _, d := range repo.db.t.deadlines {
		if d.PeriodID == p.ID {
			p.Deadlines = append(p.Deadlines, d)
		}
	}
	sort.SliceStable(p.Deadlines, func(i, j int) bool { return p.Deadlines[i].Position < p.Deadlines[j].Position })
	return p
}

func (repo *periodRepository) DeactivateAll(_ context.Context) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for i := range repo.db.t.periods {
		repo.db.t.periods[i].IsActive = false
	}
	return nil
}

func (repo *periodRepository) CreatePeriod(_ context.Context, p period.Period) (period.Period, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, existing := range repo.db.t.periods {
		if existing.ID == p.ID {
			return period.Period{}, core.NewConflictError(errors.New("duplicate period"))
		}
		if p.IsActive && existing.IsActive {
			return period.Period{}, core.NewConflictError(errors.New("another period is active"))
		}
	}
	stored := p
	stored.Deadlines = nil
	repo.db.t.periods = append(repo.db.t.periods, stored)
	return p, nil
}

func (repo *periodRepository) CreateDeadlines(_ context.Context, deadlines []period.Deadline) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, d := range deadlines {
		found := false
		for _, p := range repo.db.t.periods {
			if p.ID == d.PeriodID {
				found = true
				break
			}
		}
		if !found {
			return core.NewConflictError(errors.Errorf("period %s does not exist", d.PeriodID))
		}
		repo.db.t.deadlines = append(repo.db.t.deadlines, d)
	}
	return nil
}

func (repo *periodRepository) GetActivePeriod(_ context.Context) (period.Period, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, p := range repo.db.t.periods {
		if p.IsActive {
			return repo.withDeadlines(p), nil
		}
	}
	return period.Period{}, period.ErrNotFound
}

func (repo *periodRepository) QueryPeriods(_ context.Context) ([]period.Period, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	n := len(repo.db.t.periods)
	periods := make([]period.Period, 0, n)
	// newest first: latest inserted first among equal creation times
	for i := n - 1; i >= 0; i-- {
		periods = append(periods, repo.withDeadlines(repo.db.t.periods[i]))
	}
	sort.SliceStable(periods, func(i, j int) bool { return periods[i].CreatedAt.After(periods[j].CreatedAt) })
	return periods, nil
}

func (repo *periodRepository) GetPeriodByID(_ context.Context, id string) (period.Period, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, p := range repo.db.t.periods {
		if p.ID == id {
			return repo.withDeadlines(p), nil
		}
	}
	return period.Period{}, period.ErrNotFound
}

func (repo *periodRepository) DeletePeriod(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	periods := make([]period.Period, 0, len(repo.db.t.periods))
	for _, p := range repo.db.t.periods {
		if p.ID != id {
			periods = append(periods, p)
		}
	}
	if len(periods) == len(repo.db.t.periods) {
		return period.ErrNotFound
	}
	repo.db.t.periods = periods

	// cascade
	deadlines := make([]period.Deadline, 0, len(repo.db.t.deadlines))
	for _, d := range repo.db.t.deadlines {
		if d.PeriodID != id {
			deadlines = append(deadlines, d)
		}
	}
	repo.db.t.deadlines = deadlines
	return nil
}
