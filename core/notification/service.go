package notification

import (
	"context"
	"time"
)

// Service serves the in-app notifications of the current user.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) Query(ctx context.Context, userID string, filter QueryFilter) ([]Notification, error) {
	return svc.repo.QueryNotifications(ctx, userID, filter)
}

func (svc *Service) MarkRead(ctx context.Context, userID, id string) (Notification, error) {
	return svc.repo.MarkRead(ctx, userID, id, time.Now().UTC())
}

func (svc *Service) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	return svc.repo.MarkAllRead(ctx, userID, time.Now().UTC())
}
