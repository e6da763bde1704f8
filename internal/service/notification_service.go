package service

import (
	"context"

	"greencity/internal/messaging"
	"greencity/internal/model"
	"greencity/internal/repository"
)

const notificationListLimit = 50

type NotificationService struct {
	notifications repository.NotificationStore
	hub           *messaging.SSEHub
}

func NewNotificationService(notifications repository.NotificationStore, hub *messaging.SSEHub) *NotificationService {
	return &NotificationService{notifications: notifications, hub: hub}
}

func (s *NotificationService) List(ctx context.Context, userID string) (*model.NotificationListResponse, error) {
	list, err := s.notifications.ListByUser(ctx, userID, notificationListLimit)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []model.Notification{}
	}
	unread, err := s.notifications.UnreadCount(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &model.NotificationListResponse{Notifications: list, UnreadCount: unread}, nil
}

func (s *NotificationService) MarkAsRead(ctx context.Context, userID, id string) error {
	return s.notifications.MarkAsRead(ctx, id, userID)
}

func (s *NotificationService) MarkAllAsRead(ctx context.Context, userID string) error {
	return s.notifications.MarkAllAsRead(ctx, userID)
}

// Subscribe opens a live stream for userID. The caller must Unsubscribe.
func (s *NotificationService) Subscribe(userID string) *messaging.SSEClient {
	return s.hub.RegisterClient(userID)
}

func (s *NotificationService) Unsubscribe(client *messaging.SSEClient) {
	s.hub.UnregisterClient(client)
}
