package period_test

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/miradi/core"
	"github.com/trezcool/miradi/core/period"
	logsvc "github.com/trezcool/miradi/services/logger"
	inmemdb "github.com/trezcool/miradi/storage/database/inmem"
)

func TestTagDeadlines(t *testing.T) {
	T, F := period.DeadlineTrimestral, period.DeadlineFinal
	tests := []struct {
		n    int
		want []period.DeadlineType
	}{
		{n: 0, want: []period.DeadlineType{}},
		{n: 1, want: []period.DeadlineType{F}},
		{n: 2, want: []period.DeadlineType{T, F}},
		{n: 4, want: []period.DeadlineType{T, T, T, F}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, period.TagDeadlines(tt.n), "n=%d", tt.n)
	}
}

func TestNewPeriod_Validate(t *testing.T) {
	validate := validator.New()
	core.InitValidators(validate, core.NewTranslator())

	np := period.NewPeriod{
		Name:               "  2024-2025 ",
		StartDate:          core.NewDate(2024, 9, 1),
		EndDate:            core.NewDate(2025, 6, 30),
		SubmissionDeadline: core.NewDate(2024, 10, 15),
		ReportDeadlines:    []core.Date{core.NewDate(2025, 6, 15)},
	}
	require.NoError(t, np.Validate(validate))
	assert.Equal(t, "2024-2025", np.Name)

	np.EndDate = core.NewDate(2024, 8, 31)
	err := np.Validate(validate)
	var vErr *core.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "endDate", vErr.Fields[0].Field)

	np.EndDate = np.StartDate
	assert.NoError(t, np.Validate(validate), "a one day period is valid")

	np.ReportDeadlines = nil
	var fErrs validator.ValidationErrors
	require.True(t, errors.As(np.Validate(validate), &fErrs))
	assert.Equal(t, "reportDeadlines", fErrs[0].Field())
}

// failingRepo fails inserting deadlines, after the period itself has been inserted.
type failingRepo struct {
	period.Repository
}

func (failingRepo) CreateDeadlines(context.Context, []period.Deadline) error {
	return errors.New("disk full")
}

func newService(t *testing.T, wrap func(period.Repository) period.Repository) (*period.Service, period.Repository) {
	conf := *core.Conf
	logger := logsvc.NewRollbarLogger(logsvc.NewStdLogger(&conf, io.Discard), &conf)
	logger.Enable(false)

	db, err := inmemdb.Open()
	require.NoError(t, err)
	var repo period.Repository = inmemdb.NewPeriodRepository(db)
	if wrap != nil {
		repo = wrap(repo)
	}
	return period.NewService(repo, inmemdb.NewTxManager(db), logger), repo
}

func newPeriod(name string, deadlines ...core.Date) period.NewPeriod {
	return period.NewPeriod{
		Name:               name,
		StartDate:          core.NewDate(2024, 9, 1),
		EndDate:            core.NewDate(2025, 6, 30),
		SubmissionDeadline: core.NewDate(2024, 10, 15),
		ReportDeadlines:    deadlines,
	}
}

func TestService_Create(t *testing.T) {
	svc, _ := newService(t, nil)
	ctx := context.Background()

	active, err := svc.GetActive(ctx)
	require.NoError(t, err)
	assert.Nil(t, active)

	first, err := svc.Create(ctx, newPeriod("2023-2024", core.NewDate(2023, 12, 15), core.NewDate(2024, 6, 15)))
	require.NoError(t, err)
	assert.True(t, first.IsActive)
	require.Len(t, first.Deadlines, 2)
	assert.Equal(t, period.DeadlineTrimestral, first.Deadlines[0].ReportType)
	assert.Equal(t, period.DeadlineFinal, first.Deadlines[1].ReportType)

	second, err := svc.Create(ctx, newPeriod("2024-2025", core.NewDate(2025, 6, 15)))
	require.NoError(t, err)

	active, err = svc.GetActive(ctx)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, second.ID, active.ID)
	assert.Equal(t, []period.Deadline(second.Deadlines), active.Deadlines)

	periods, err := svc.Query(ctx)
	require.NoError(t, err)
	require.Len(t, periods, 2)
	activeCount := 0
	for _, p := range periods {
		if p.IsActive {
			activeCount++
		}
	}
	assert.Equal(t, 1, activeCount)

	stored, err := svc.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsActive)
	assert.Len(t, stored.Deadlines, 2)
}

func TestService_Create_invalid(t *testing.T) {
	svc, _ := newService(t, nil)
	ctx := context.Background()

	current, err := svc.Create(ctx, newPeriod("2023-2024", core.NewDate(2024, 6, 15)))
	require.NoError(t, err)

	backwards := newPeriod("2024-2025", core.NewDate(2025, 6, 15))
	backwards.EndDate = core.NewDate(2024, 8, 1)

	tests := []struct {
		name      string
		np        period.NewPeriod
		wantField string
	}{
		{name: "no deadlines", np: newPeriod("2024-2025"), wantField: "reportDeadlines"},
		{name: "undated deadline", np: newPeriod("2024-2025", core.Date{}), wantField: "reportDeadlines"},
		{name: "ends before start", np: backwards, wantField: "endDate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.np)
			var vErr *core.ValidationError
			require.True(t, errors.As(err, &vErr))
			assert.Equal(t, tt.wantField, vErr.Fields[0].Field)
		})
	}

	active, err := svc.GetActive(ctx)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, current.ID, active.ID)
	periods, err := svc.Query(ctx)
	require.NoError(t, err)
	assert.Len(t, periods, 1)
}

func TestService_Create_rollsBack(t *testing.T) {
	ctx := context.Background()
	var healthy period.Repository
	svc, _ := newService(t, func(repo period.Repository) period.Repository {
		healthy = repo
		return failingRepo{repo}
	})

	// seed an active period through the healthy repo
	seeded := period.Period{ID: "p0", Name: "2023-2024", IsActive: true}
	_, err := healthy.CreatePeriod(ctx, seeded)
	require.NoError(t, err)

	_, err = svc.Create(ctx, newPeriod("2024-2025", core.NewDate(2025, 6, 15)))
	require.Error(t, err)

	periods, err := healthy.QueryPeriods(ctx)
	require.NoError(t, err)
	require.Len(t, periods, 1, "the new period must not survive")
	assert.Equal(t, "p0", periods[0].ID)
	assert.True(t, periods[0].IsActive, "the previous period must stay active")
}

func TestService_Delete(t *testing.T) {
	svc, _ := newService(t, nil)
	ctx := context.Background()

	p, err := svc.Create(ctx, newPeriod("2024-2025", core.NewDate(2025, 6, 15)))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, p.ID))
	assert.True(t, core.IsNotFound(svc.Delete(ctx, p.ID)))

	active, err := svc.GetActive(ctx)
	require.NoError(t, err)
	assert.Nil(t, active)
}
