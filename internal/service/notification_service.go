package service

import (
	"context"
	"strings"

	"gatehouse/internal/models"
	"gatehouse/internal/repository"
	"gatehouse/internal/tenancy"
)

type NotificationService struct {
	notes     repository.NotificationRepository
	users     repository.UserRepository
	router    *Router
	listLimit int
}

type SendNotificationInput struct {
	UserID    uint
	Title     string
	Message   string
	Type      string
	RelatedID *uint
}

func NewNotificationService(
	notes repository.NotificationRepository,
	users repository.UserRepository,
	router *Router,
	listLimit int,
) *NotificationService {
	if listLimit <= 0 {
		listLimit = 50
	}
	return &NotificationService{notes: notes, users: users, router: router, listLimit: listLimit}
}

// Inbox returns the newest notifications and the unread count.
func (s *NotificationService) Inbox(ctx context.Context, userID uint) ([]models.NotificationRecord, int64, error) {
	list, err := s.notes.ListForUser(ctx, userID, s.listLimit)
	if err != nil {
		return nil, 0, err
	}
	unread, err := s.notes.CountUnread(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	return list, unread, nil
}

func (s *NotificationService) MarkRead(ctx context.Context, userID, id uint) error {
	return s.notes.MarkRead(ctx, userID, id)
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	return s.notes.MarkAllRead(ctx, userID)
}

// Send lets an admin notify a user of the same society.
func (s *NotificationService) Send(ctx context.Context, admin tenancy.Admin, in SendNotificationInput) (*models.NotificationRecord, error) {
	title := strings.TrimSpace(in.Title)
	message := strings.TrimSpace(in.Message)
	if in.UserID == 0 || title == "" || message == "" {
		return nil, models.NewValidationError("user_id, title and message are required")
	}
	if len(title) > 200 {
		return nil, models.NewValidationError("Title too long (max 200 characters)")
	}

	target, err := s.users.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	if target.SocietyName != admin.Scope().Tenant {
		return nil, models.NewTenantMismatchError("User belongs to another society")
	}

	n := &models.NotificationRecord{
		UserID:    target.ID,
		Title:     title,
		Message:   message,
		Type:      in.Type,
		RelatedID: in.RelatedID,
	}
	if err := s.router.NotifyUser(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}
