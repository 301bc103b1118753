package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"trustline/portal-backend/internal/apperr"
	"trustline/portal-backend/internal/notifications/websocket"
	"trustline/portal-backend/internal/users"
)

// UserDirectory resolves recipients and their channel preferences.
type UserDirectory interface {
	GetProfile(ctx context.Context, id uuid.UUID) (*users.User, error)
	ListAdmins(ctx context.Context) ([]users.User, error)
}

// Pusher delivers realtime frames to connected clients.
type Pusher interface {
	SendToUser(userID string, message websocket.Message) error
}

type Service struct {
	repo        Repository
	users       UserDirectory
	push        Pusher
	email       EmailSender
	sms         SMSSender
	adminEmails []string
	logger      *zap.Logger
	now         func() time.Time
}

// ServiceConfig carries the optional outbound channels. Nil channels are skipped.
type ServiceConfig struct {
	Push        Pusher
	Email       EmailSender
	SMS         SMSSender
	AdminEmails []string
}

func NewService(repo Repository, users UserDirectory, cfg ServiceConfig, logger *zap.Logger) *Service {
	return &Service{
		repo:        repo,
		users:       users,
		push:        cfg.Push,
		email:       cfg.Email,
		sms:         cfg.SMS,
		adminEmails: cfg.AdminEmails,
		logger:      logger,
		now:         time.Now,
	}
}

// Notify stores the in-app notification and fans it out to the channels the
// recipient has enabled. Only the in-app write can fail the call.
func (s *Service) Notify(ctx context.Context, req Request) (*Notification, error) {
	user, err := s.users.GetProfile(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(req.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode notification data: %w", err)
	}

	n := &Notification{
		ID:     uuid.New(),
		UserID: req.UserID,
		Kind:   req.Kind,
		Title:  req.Title,
		Body:   req.Body,
		Data:   datatypes.JSON(data),
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("failed to store notification: %w", err)
	}

	s.deliverPush(ctx, n)
	if user.EmailNotifications && user.Email != "" {
		s.deliver(ctx, n, ChannelEmail, s.email != nil, func() (string, error) {
			return s.email.SendEmail(ctx, []string{user.Email}, n.Title, n.Body)
		})
	}
	if user.SMSNotifications && user.Phone != "" {
		s.deliver(ctx, n, ChannelSMS, s.sms != nil, func() (string, error) {
			return s.sms.SendSMS(ctx, user.Phone, n.Title+": "+n.Body)
		})
	}
	return n, nil
}

// NotifyAdmins sends the notification to every admin and, when configured,
// one email to the operations recipients.
func (s *Service) NotifyAdmins(ctx context.Context, kind Kind, title, body string, data map[string]any) error {
	admins, err := s.users.ListAdmins(ctx)
	if err != nil {
		return fmt.Errorf("failed to list admins: %w", err)
	}

	var errs []error
	for _, admin := range admins {
		if _, err := s.Notify(ctx, Request{UserID: admin.ID, Kind: kind, Title: title, Body: body, Data: data}); err != nil {
			errs = append(errs, err)
		}
	}

	if s.email != nil && len(s.adminEmails) > 0 {
		if _, err := s.email.SendEmail(ctx, s.adminEmails, title, body); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Service) deliverPush(ctx context.Context, n *Notification) {
	if s.push == nil {
		return
	}
	var data map[string]any
	_ = json.Unmarshal(n.Data, &data)

	err := s.push.SendToUser(n.UserID.String(), websocket.Message{
		Type: websocket.TypeNotification,
		Data: map[string]any{
			"id":    n.ID,
			"kind":  n.Kind,
			"title": n.Title,
			"body":  n.Body,
			"data":  data,
		},
		Timestamp: s.now(),
	})
	switch {
	case errors.Is(err, websocket.ErrNotConnected):
		// Offline users read it from the in-app list.
	case err != nil:
		s.logDelivery(ctx, n, ChannelWebSocket, StatusFailed, "", err)
	default:
		s.logDelivery(ctx, n, ChannelWebSocket, StatusDelivered, "", nil)
	}
}

func (s *Service) deliver(ctx context.Context, n *Notification, channel string, enabled bool, send func() (string, error)) {
	if !enabled {
		s.logDelivery(ctx, n, channel, StatusSkipped, "", nil)
		return
	}
	id, err := send()
	if err != nil {
		s.logger.Warn("Notification delivery failed",
			zap.String("channel", channel),
			zap.String("notification_id", n.ID.String()),
			zap.Error(err))
		s.logDelivery(ctx, n, channel, StatusFailed, "", err)
		return
	}
	s.logDelivery(ctx, n, channel, StatusSent, id, nil)
}

func (s *Service) logDelivery(ctx context.Context, n *Notification, channel, status, providerID string, sendErr error) {
	entry := &DeliveryLog{
		NotificationID:    n.ID,
		UserID:            n.UserID,
		Channel:           channel,
		Status:            status,
		ProviderMessageID: providerID,
	}
	if sendErr != nil {
		entry.Error = sendErr.Error()
	}
	if err := s.repo.LogDelivery(ctx, entry); err != nil {
		s.logger.Warn("Failed to log delivery", zap.Error(err), zap.String("notification_id", n.ID.String()))
	}
}

func (s *Service) List(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit, offset int) ([]Notification, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	items, total, err := s.repo.ListByUser(ctx, userID, unreadOnly, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list notifications: %w", err)
	}
	return items, total, nil
}

func (s *Service) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.repo.CountUnread(ctx, userID)
}

func (s *Service) MarkRead(ctx context.Context, userID, id uuid.UUID) error {
	found, err := s.repo.MarkRead(ctx, userID, id, s.now())
	if err != nil {
		return fmt.Errorf("failed to mark notification as read: %w", err)
	}
	if !found {
		return apperr.NotFound("notification")
	}
	return nil
}

func (s *Service) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	n, err := s.repo.MarkAllRead(ctx, userID, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications as read: %w", err)
	}
	return n, nil
}
