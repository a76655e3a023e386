package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/miradi/core"
	"github.com/trezcool/miradi/core/notification"
	"github.com/trezcool/miradi/core/period"
	"github.com/trezcool/miradi/core/project"
	"github.com/trezcool/miradi/core/user"
)

type notificationRepository struct {
	db *DB
}

var (
	_ notification.Repository         = (*notificationRepository)(nil) // interface compliance check
	_ notification.DeadlineRepository = (*notificationRepository)(nil)
)

func NewNotificationRepository(db *DB) *notificationRepository {
	return &notificationRepository{db: db}
}

func (repo *notificationRepository) CreateNotification(_ context.Context, n notification.Notification) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	found := false
	for _, u := range repo.db.t.users {
		if u.ID == n.UserID {
			found = true
			break
		}
	}
	if !found {
		return core.NewConflictError(errors.Errorf("user %s does not exist", n.UserID))
	}
	repo.db.t.notifications = append(repo.db.t.notifications, n)
	return nil
}

func (repo *notificationRepository) QueryNotifications(_ context.Context, userID string, filter notification.QueryFilter) ([]notification.Notification, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	notifications := make([]notification.Notification, 0)
	for i := len(repo.db.t.notifications) - 1; i >= 0; i-- {
		n := repo.db.t.notifications[i]
		if n.UserID != userID || (filter.UnreadOnly && n.IsRead()) {
			continue
		}
		notifications = append(notifications, n)
	}
	return notifications, nil
}

func (repo *notificationRepository) MarkRead(_ context.Context, userID, id string, at time.Time) (notification.Notification, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for i, n := range repo.db.t.notifications {
		if n.ID == id && n.UserID == userID {
			if n.ReadAt == nil {
				n.ReadAt = &at
				repo.db.t.notifications[i] = n
			}
			return n, nil
		}
	}
	return notification.Notification{}, notification.ErrNotFound
}

func (repo *notificationRepository) MarkAllRead(_ context.Context, userID string, at time.Time) (int64, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	var cnt int64
	for i, n := range repo.db.t.notifications {
		if n.UserID == userID && n.ReadAt == nil {
			readAt := at
			repo.db.t.notifications[i].ReadAt = &readAt
			cnt++
		}
	}
	return cnt, nil
}

func (repo *notificationRepository) DeadlineCandidates(_ context.Context) ([]notification.Candidate, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var active *period.Period
	for i, p := range repo.db.t.periods {
		if p.IsActive {
			active = &repo.db.t.periods[i]
			break
		}
	}
	if active == nil {
		return make([]notification.Candidate, 0), nil
	}

	teachers := make(map[string]user.User, len(repo.db.t.users))
	for _, u := range repo.db.t.users {
		if u.IsActive {
			teachers[u.ID] = u
		}
	}

	candidates := make([]notification.Candidate, 0)
	for _, prj := range repo.db.t.projects {
		if prj.Status != project.StatusAprobado {
			continue
		}
		teacher, ok := teachers[prj.TeacherID]
		if !ok {
			continue
		}
		base := notification.Candidate{
			TeacherID:    teacher.ID,
			TeacherName:  teacher.Name,
			PhoneNumber:  teacher.PhoneNumber,
			Email:        teacher.Email,
			ProjectID:    prj.ID,
			ProjectTitle: prj.Title,
			PeriodID:     active.ID,
			PeriodName:   active.Name,
		}

		c := base
		c.Kind = notification.KindSubmission
		c.DueDate = active.SubmissionDeadline
		candidates = append(candidates, c)

		for _, d := range repo.db.t.deadlines {
			if d.PeriodID != active.ID {
				continue
			}
			c := base
			c.Kind = notification.DeadlineKind(d.ReportType)
			c.DeadlineID = d.ID
			c.DueDate = d.Date
			candidates = append(candidates, c)
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.TeacherName != b.TeacherName {
			return a.TeacherName < b.TeacherName
		}
		if a.ProjectTitle != b.ProjectTitle {
			return a.ProjectTitle < b.ProjectTitle
		}
		return a.DueDate.Before(b.DueDate)
	})
	return candidates, nil
}

func (repo *notificationRepository) IsDelivered(_ context.Context, projectID, deadlineKey string, on core.Date) (bool, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, d := range repo.db.t.deliveries {
		if d.ProjectID == projectID && d.DeadlineKey == deadlineKey && d.SentOn.Equal(on.Time) {
			return true, nil
		}
	}
	return false, nil
}

func (repo *notificationRepository) RecordDelivery(_ context.Context, d notification.Delivery) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, existing := range repo.db.t.deliveries {
		if existing.ProjectID == d.ProjectID && existing.DeadlineKey == d.DeadlineKey && existing.SentOn.Equal(d.SentOn.Time) {
			return nil
		}
	}
	repo.db.t.deliveries = append(repo.db.t.deliveries, d)
	return nil
}
