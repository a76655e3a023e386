package notification

import (
	"context"
	"fmt"
	"net/mail"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/miradi/core"
)

// NowFunc is the scanner's clock.
var NowFunc = time.Now // mockable

type (
	ScannerConfig struct {
		Location  *time.Location // "today" is computed in this location
		Dedupe    bool
		EmailCopy bool
	}

	// Scanner finds approaching deadlines of the active period and reminds the teachers of approved projects.
	Scanner struct {
		repo          DeadlineRepository
		notifications Repository
		gateway       Gateway
		mailSvc       core.EmailService
		logger        core.Logger
		conf          ScannerConfig

		mu sync.Mutex // held for a whole Scan
	}

	ScanReport struct {
		WindowDays       int        `json:"windowDays"`
		Today            core.Date  `json:"today"`
		Candidates       int        `json:"candidates"`
		Sent             int        `json:"sent"`
		Failed           int        `json:"failed"`
		SkippedNoPhone   int        `json:"skippedNoPhone"`
		SkippedDelivered int        `json:"skippedDelivered"`
		Reminders        []Reminder `json:"reminders"`
	}
)

func NewScanner(
	repo DeadlineRepository,
	notifications Repository,
	gateway Gateway,
	mailSvc core.EmailService,
	logger core.Logger,
	conf ScannerConfig,
) (*Scanner, error) {
	switch {
	case repo == nil:
		return nil, errors.New("scanner: nil deadline repository")
	case notifications == nil:
		return nil, errors.New("scanner: nil notification repository")
	case gateway == nil:
		return nil, errors.New("scanner: nil gateway")
	case logger == nil:
		return nil, errors.New("scanner: nil logger")
	}
	if conf.Location == nil {
		conf.Location = time.UTC
	}
	return &Scanner{
		repo:          repo,
		notifications: notifications,
		gateway:       gateway,
		mailSvc:       mailSvc,
		logger:        logger,
		conf:          conf,
	}, nil
}

type reminderKey struct {
	teacherID string
	projectID string
}

// Scan sends one reminder per (teacher, project) listing the deadlines due in (0, windowDays] days.
// A failed send is logged and the scan goes on. Concurrent calls run one after the other.
func (s *Scanner) Scan(ctx context.Context, windowDays int) (ScanReport, error) {
	if windowDays < 1 {
		return ScanReport{}, core.NewValidationError(nil, core.FieldError{Field: "days", Error: "must be at least 1"})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	today := core.DateOf(NowFunc().In(s.conf.Location))
	report := ScanReport{WindowDays: windowDays, Today: today, Reminders: make([]Reminder, 0)}

	candidates, err := s.repo.DeadlineCandidates(ctx)
	if err != nil {
		return report, errors.Wrap(err, "listing deadline candidates")
	}
	report.Candidates = len(candidates)

	reminders, err := s.collect(ctx, candidates, today, windowDays, &report)
	if err != nil {
		return report, err
	}

	for _, r := range reminders {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if s.remind(ctx, r, today) {
			report.Sent++
			report.Reminders = append(report.Reminders, r)
		} else {
			report.Failed++
		}
	}

	s.logger.Info(fmt.Sprintf(
		"deadline scan (%d days): %d sent, %d failed, %d skipped without phone, %d already delivered",
		windowDays, report.Sent, report.Failed, report.SkippedNoPhone, report.SkippedDelivered,
	))
	return report, nil
}

// collect groups the due candidates by (teacher, project), keeping the candidates order.
func (s *Scanner) collect(ctx context.Context, candidates []Candidate, today core.Date, windowDays int, report *ScanReport) ([]Reminder, error) {
	var (
		order   []reminderKey
		byKey   = make(map[reminderKey]*Reminder)
		noPhone = make(map[reminderKey]struct{})
	)

	for _, c := range candidates {
		days := today.DaysUntil(c.DueDate)
		if days <= 0 || days > windowDays {
			continue
		}

		key := reminderKey{teacherID: c.TeacherID, projectID: c.ProjectID}
		if c.PhoneNumber == "" {
			noPhone[key] = struct{}{}
			continue
		}

		if s.conf.Dedupe {
			delivered, err := s.repo.IsDelivered(ctx, c.ProjectID, c.Key(), today)
			if err != nil {
				return nil, errors.Wrap(err, "checking deadline deliveries")
			}
			if delivered {
				report.SkippedDelivered++
				continue
			}
		}

		r, ok := byKey[key]
		if !ok {
			r = &Reminder{
				TeacherID:    c.TeacherID,
				TeacherName:  c.TeacherName,
				PhoneNumber:  c.PhoneNumber,
				Email:        c.Email,
				ProjectID:    c.ProjectID,
				ProjectTitle: c.ProjectTitle,
				PeriodName:   c.PeriodName,
			}
			byKey[key] = r
			order = append(order, key)
		}
		r.Items = append(r.Items, ReminderItem{Kind: c.Kind, Key: c.Key(), Date: c.DueDate, DaysLeft: days})
	}
	report.SkippedNoPhone = len(noPhone)

	reminders := make([]Reminder, 0, len(order))
	for _, key := range order {
		reminders = append(reminders, *byKey[key])
	}
	return reminders, nil
}

// remind sends a reminder and records its side effects. It reports whether the gateway accepted it.
func (s *Scanner) remind(ctx context.Context, r Reminder, today core.Date) bool {
	body, err := r.Render()
	if err != nil {
		s.logger.Error(fmt.Sprintf("rendering deadline reminder for project %s: %v", r.ProjectID, err), err)
		return false
	}

	if err := s.gateway.Send(ctx, r.PhoneNumber, body); err != nil {
		err = core.NewDispatchError(s.gateway.Name(), err)
		s.logger.Error(fmt.Sprintf("sending deadline reminder to teacher %s: %v", r.TeacherID, err), err)
		return false
	}

	if s.conf.Dedupe {
		for _, it := range r.Items {
			d := Delivery{ProjectID: r.ProjectID, TeacherID: r.TeacherID, DeadlineKey: it.Key, SentOn: today}
			if err := s.repo.RecordDelivery(ctx, d); err != nil {
				s.logger.Error(fmt.Sprintf("recording deadline delivery %s: %v", it.Key, err), err)
			}
		}
	}

	if err := s.notifications.CreateNotification(ctx, r.Notification(uuid.New().String(), time.Now().UTC())); err != nil {
		s.logger.Error(fmt.Sprintf("creating deadline notification for teacher %s: %v", r.TeacherID, err), err)
	}

	if s.conf.EmailCopy && s.mailSvc != nil && r.Email != "" {
		s.mailSvc.SendMessages(&core.EmailMessage{
			To:           []mail.Address{{Name: r.TeacherName, Address: r.Email}},
			Subject:      "Plazos próximos a vencer",
			TemplateName: "notification",
			TemplateData: map[string]string{"Body": body},
		})
	}
	return true
}
