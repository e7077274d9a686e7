// Package notifications implements event invitations: sending, pending
// queries, and the accept/decline state machine.
package notifications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/daymark-app/daymark/internal/platform/cache"
	"github.com/daymark-app/daymark/internal/platform/logutil"
	"github.com/daymark-app/daymark/internal/platform/metrics"
	"github.com/daymark-app/daymark/internal/store"
)

var (
	ErrUnauthorized      = errors.New("user id is required")
	ErrInvalidInvitation = errors.New("invalid invitation")
)

// pendingCountKey is the cache key prefix for per-user pending counts.
const pendingCountKey = "pending_count:"

// CreateInput carries the caller-supplied fields of a new invitation.
type CreateInput struct {
	ReceiverID string `json:"receiverId"`
	EventID    string `json:"eventId"`
	Message    string `json:"message"`
}

// Service orchestrates invitation operations over the stores. The
// atomic accept transition lives in the store; the service adds
// authorization, validation, caching, and instrumentation.
type Service struct {
	notifications store.NotificationStore
	events        store.EventStore
	counts        cache.Cache
	logger        *slog.Logger
}

// NewService creates a notifications service. counts may be nil to
// disable pending-count caching.
func NewService(ns store.NotificationStore, es store.EventStore, counts cache.Cache, logger *slog.Logger) *Service {
	return &Service{
		notifications: ns,
		events:        es,
		counts:        counts,
		logger:        logutil.NoopIfNil(logger),
	}
}

// Create sends an invitation for one of the sender's events. The event
// must exist and belong to the sender; inviting yourself is rejected.
func (s *Service) Create(ctx context.Context, senderID string, in CreateInput) (*store.Notification, error) {
	if senderID == "" {
		return nil, ErrUnauthorized
	}
	if in.ReceiverID == "" {
		return nil, fmt.Errorf("%w: receiverId is required", ErrInvalidInvitation)
	}
	if in.EventID == "" {
		return nil, fmt.Errorf("%w: eventId is required", ErrInvalidInvitation)
	}
	if in.ReceiverID == senderID {
		return nil, fmt.Errorf("%w: cannot invite yourself", ErrInvalidInvitation)
	}

	event, err := s.events.GetEvent(ctx, in.EventID)
	if err != nil {
		return nil, err
	}
	// Do not reveal other users' event ids.
	if event.OwnerID != senderID {
		return nil, store.ErrNotFound
	}

	n := &store.Notification{
		SenderID:   senderID,
		ReceiverID: in.ReceiverID,
		EventID:    in.EventID,
		Message:    in.Message,
		Status:     store.StatusPending,
	}
	if err := s.notifications.CreateNotification(ctx, n); err != nil {
		return nil, err
	}

	s.invalidateCount(ctx, in.ReceiverID)
	metrics.NotificationsSentTotal.Inc()
	s.logger.Info("invitation sent",
		"notification_id", n.NotificationID,
		"sender_id", senderID,
		"receiver_id", in.ReceiverID,
		"event_id", in.EventID)
	return n, nil
}

// ListPending returns the receiver's unresolved invitations, newest first.
func (s *Service) ListPending(ctx context.Context, receiverID string) ([]*store.Notification, error) {
	if receiverID == "" {
		return nil, ErrUnauthorized
	}
	return s.notifications.ListPendingNotifications(ctx, receiverID)
}

// CountPending returns the receiver's pending invitation count. The
// result is cached briefly; resolving or receiving an invitation
// invalidates it.
func (s *Service) CountPending(ctx context.Context, receiverID string) (int64, error) {
	if receiverID == "" {
		return 0, ErrUnauthorized
	}

	key := pendingCountKey + receiverID
	if s.counts != nil {
		if raw, err := s.counts.Get(ctx, key); err == nil {
			if n, err := strconv.ParseInt(string(raw), 10, 64); err == nil {
				return n, nil
			}
		}
	}

	n, err := s.notifications.CountPendingNotifications(ctx, receiverID)
	if err != nil {
		return 0, err
	}

	if s.counts != nil {
		if err := s.counts.Set(ctx, key, []byte(strconv.FormatInt(n, 10)), cache.TTLPendingCount); err != nil {
			s.logger.Warn("pending count cache write failed", "receiver_id", receiverID, "error", err)
		}
	}
	return n, nil
}

// Accept resolves a pending invitation as accepted and returns the
// receiver's copy of the event. The status transition and the copy
// insert happen in one store transaction; a second accept, or an
// accept after decline, fails with store.ErrAlreadyProcessed and
// creates nothing.
func (s *Service) Accept(ctx context.Context, receiverID, notificationID string) (*store.Event, error) {
	if receiverID == "" {
		return nil, ErrUnauthorized
	}
	if err := s.checkReceiver(ctx, receiverID, notificationID); err != nil {
		return nil, err
	}

	copied, err := s.notifications.AcceptNotification(ctx, notificationID)
	if err != nil {
		return nil, err
	}

	s.invalidateCount(ctx, receiverID)
	metrics.NotificationsResolvedTotal.WithLabelValues(store.StatusAccepted).Inc()
	s.logger.Info("invitation accepted",
		"notification_id", notificationID,
		"receiver_id", receiverID,
		"event_id", copied.EventID)
	return copied, nil
}

// Decline resolves a pending invitation as declined. Declining is
// terminal: the invitation cannot be accepted afterwards.
func (s *Service) Decline(ctx context.Context, receiverID, notificationID string) error {
	if receiverID == "" {
		return ErrUnauthorized
	}
	if err := s.checkReceiver(ctx, receiverID, notificationID); err != nil {
		return err
	}

	if err := s.notifications.ResolveNotification(ctx, notificationID, store.StatusDeclined); err != nil {
		return err
	}

	s.invalidateCount(ctx, receiverID)
	metrics.NotificationsResolvedTotal.WithLabelValues(store.StatusDeclined).Inc()
	s.logger.Info("invitation declined", "notification_id", notificationID, "receiver_id", receiverID)
	return nil
}

// checkReceiver verifies the notification is addressed to the caller.
// Cross-user ids surface as not-found rather than forbidden.
func (s *Service) checkReceiver(ctx context.Context, receiverID, notificationID string) error {
	n, err := s.notifications.GetNotification(ctx, notificationID)
	if err != nil {
		return err
	}
	if n.ReceiverID != receiverID {
		return store.ErrNotFound
	}
	return nil
}

func (s *Service) invalidateCount(ctx context.Context, receiverID string) {
	if s.counts == nil {
		return
	}
	if err := s.counts.Delete(ctx, pendingCountKey+receiverID); err != nil {
		s.logger.Warn("pending count cache invalidation failed", "receiver_id", receiverID, "error", err)
	}
}
