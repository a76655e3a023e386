package notification

import (
	"context"
	"time"

	"github.com/trezcool/miradi/core"
)

var ErrNotFound = core.NewNotFoundError("notification not found")

type Type string

const (
	TypeProject  Type = "project"
	TypeDeadline Type = "deadline"
)

// Notification is an in-app message for a user. It is only ever created as a side effect.
type Notification struct {
	ID        string     `json:"id"`
	UserID    string     `json:"userId"`
	Title     string     `json:"title"`
	Message   string     `json:"message"`
	Type      Type       `json:"type"`
	ReadAt    *time.Time `json:"readAt"`    // UTC, nil when unread
	CreatedAt time.Time  `json:"createdAt"` // UTC
}

func (n Notification) IsRead() bool { return n.ReadAt != nil }

type QueryFilter struct {
	UnreadOnly bool `query:"unread"`
}

type Repository interface {
	CreateNotification(ctx context.Context, n Notification) error
	// QueryNotifications returns the user's notifications, newest first.
	QueryNotifications(ctx context.Context, userID string, filter QueryFilter) ([]Notification, error)
	// MarkRead returns ErrNotFound when the notification does not exist or belongs to someone else.
	MarkRead(ctx context.Context, userID, id string, at time.Time) (Notification, error)
	MarkAllRead(ctx context.Context, userID string, at time.Time) (int64, error)
}

// DeadlineKind tells which date of the active period a Candidate is due on.
type DeadlineKind string

const (
	KindSubmission DeadlineKind = "submission"
	KindTrimestral DeadlineKind = "trimestral"
	KindFinal      DeadlineKind = "final"
)

// Candidate is one (approved project, deadline) pair of the active period.
type Candidate struct {
	TeacherID    string
	TeacherName  string
	PhoneNumber  string
	Email        string
	ProjectID    string
	ProjectTitle string
	PeriodID     string
	PeriodName   string
	Kind         DeadlineKind
	DeadlineID   string // empty for KindSubmission
	DueDate      core.Date
}

// Key identifies the deadline in the delivery ledger.
func (c Candidate) Key() string {
	if c.Kind == KindSubmission {
		return "submission:" + c.PeriodID
	}
	return "deadline:" + c.DeadlineID
}

// Delivery is a deadline reminder accepted by the gateway.
type Delivery struct {
	ProjectID   string
	TeacherID   string
	DeadlineKey string
	SentOn      core.Date
}

type DeadlineRepository interface {
	// DeadlineCandidates lists, for the active period only, the submission deadline and every report deadline
	// of each approved project whose teacher is active.
	DeadlineCandidates(ctx context.Context) ([]Candidate, error)
	IsDelivered(ctx context.Context, projectID, deadlineKey string, on core.Date) (bool, error)
	RecordDelivery(ctx context.Context, d Delivery) error
}
