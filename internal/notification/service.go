package notification

import (
	"context"

	"github.com/fkhayef/kasmoni/pkg/apperror"
)

// Common errors
var (
	ErrNotificationNotFound = apperror.New(apperror.KindNotFound, "notification not found")
	ErrNotRecipient         = apperror.New(apperror.KindForbidden, "not the recipient of this notification")
	ErrEmptyMessage         = apperror.New(apperror.KindValidation, "notification message is required")
)

// Store is the persistence the notification service depends on
type Store interface {
	Create(ctx context.Context, recipientID int64, message string, entityType *string, entityID *int64) (*Notification, error)
	GetByID(ctx context.Context, id int64) (*Notification, error)
	ListByRecipientID(ctx context.Context, recipientID int64, limit, offset int, unreadOnly bool) ([]*Notification, int, error)
	MarkAsRead(ctx context.Context, id int64) error
	MarkAllAsRead(ctx context.Context, recipientID int64) error
	GetUnreadCount(ctx context.Context, recipientID int64) (int, error)
}

// Service handles notification business logic
type Service struct {
	repo Store
}

// NewService creates a new notification service
func NewService(repo Store) *Service {
	return &Service{repo: repo}
}

// Notify delivers a message to a member that points at the payment or
// payment request it is about
func (s *Service) Notify(ctx context.Context, memberID int64, message, entityType string, entityID int64) error {
	if message == "" {
		return ErrEmptyMessage
	}
	_, err := s.repo.Create(ctx, memberID, message, &entityType, &entityID)
	return err
}

// GetByID retrieves a notification by its ID
func (s *Service) GetByID(ctx context.Context, id int64) (*Notification, error) {
	notification, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if notification == nil {
		return nil, ErrNotificationNotFound
	}
	return notification, nil
}

// ListByRecipientID retrieves a member's notifications with pagination
func (s *Service) ListByRecipientID(ctx context.Context, recipientID int64, page, perPage int, unreadOnly bool) ([]*Notification, int, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	offset := (page - 1) * perPage
	return s.repo.ListByRecipientID(ctx, recipientID, perPage, offset, unreadOnly)
}

// MarkAsRead marks one of the member's notifications as read
func (s *Service) MarkAsRead(ctx context.Context, id, memberID int64) error {
	notification, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if notification.RecipientID != memberID {
		return ErrNotRecipient
	}
	if notification.IsRead {
		return nil
	}

	return s.repo.MarkAsRead(ctx, id)
}

// MarkAllAsRead marks all notifications as read for a member
func (s *Service) MarkAllAsRead(ctx context.Context, memberID int64) error {
	return s.repo.MarkAllAsRead(ctx, memberID)
}

// GetUnreadCount returns the count of unread notifications
func (s *Service) GetUnreadCount(ctx context.Context, memberID int64) (int, error) {
	return s.repo.GetUnreadCount(ctx, memberID)
}
