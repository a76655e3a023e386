package period

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/miradi/core"
)

type DeadlineType string

const (
	DeadlineTrimestral DeadlineType = "trimestral"
	DeadlineFinal      DeadlineType = "final"
)

func (t DeadlineType) Valid() bool {
	switch t {
	case DeadlineTrimestral, DeadlineFinal:
		return true
	}
	return false
}

// Period is an academic term. At most one Period is active at any time.
type Period struct {
	ID                 string     `json:"id"`
	Name               string     `json:"name"`
	StartDate          core.Date  `json:"startDate"`
	EndDate            core.Date  `json:"endDate"`
	SubmissionDeadline core.Date  `json:"submissionDeadline"`
	IsActive           bool       `json:"isActive"`
	CreatedAt          time.Time  `json:"createdAt"` // UTC
	Deadlines          []Deadline `json:"reportDeadlines"`
}

// Deadline is a dated report obligation owned by a Period.
type Deadline struct {
	ID         string       `json:"id"`
	PeriodID   string       `json:"periodId"`
	Date       core.Date    `json:"deadlineDate"`
	ReportType DeadlineType `json:"reportType"`
	Position   int          `json:"position"`
}

// NewPeriod contains information needed to create a new Period.
type NewPeriod struct {
	Name               string      `json:"name" validate:"required"`
	StartDate          core.Date   `json:"startDate" validate:"required"`
	EndDate            core.Date   `json:"endDate" validate:"required"`
	SubmissionDeadline core.Date   `json:"submissionDeadline" validate:"required"`
	ReportDeadlines    []core.Date `json:"reportDeadlines" validate:"required,min=1,dive,required"`
}

func (np *NewPeriod) Validate(validate *validator.Validate) error {
	np.Name = core.CleanString(np.Name)
	if err := validate.Struct(np); err != nil {
		return err
	}
	return np.check()
}

// check holds the rules Service.Create enforces whatever the caller: dated, ordered, with a final deadline.
func (np NewPeriod) check() error {
	var fields []core.FieldError
	if np.StartDate.IsZero() || np.EndDate.IsZero() || np.SubmissionDeadline.IsZero() {
		fields = append(fields, core.FieldError{Field: "startDate", Error: "period dates are required"})
	} else if np.EndDate.Before(np.StartDate) {
		fields = append(fields, core.FieldError{Field: "endDate", Error: "end date must not be before start date"})
	}
	if len(np.ReportDeadlines) == 0 {
		fields = append(fields, core.FieldError{Field: "reportDeadlines", Error: "at least one report deadline is required"})
	}
	for _, d := range np.ReportDeadlines {
		if d.IsZero() {
			fields = append(fields, core.FieldError{Field: "reportDeadlines", Error: "report deadlines must be dates"})
			break
		}
	}
	if len(fields) > 0 {
		return core.NewValidationError(nil, fields...)
	}
	return nil
}

// TagDeadlines types deadlines by position: the last one is final, all others are trimestral.
func TagDeadlines(n int) []DeadlineType {
	types := make([]DeadlineType, n)
	for i := range types {
		if i == n-1 {
			types[i] = DeadlineFinal
		} else {
			types[i] = DeadlineTrimestral
		}
	}
	return types
}
