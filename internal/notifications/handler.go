package notifications

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/daymark-app/daymark/internal/api"
	"github.com/daymark-app/daymark/internal/appctx"
	"github.com/daymark-app/daymark/internal/platform/logutil"
	"github.com/daymark-app/daymark/internal/store"
)

// NotificationView is the API representation of an invitation. The
// embedded event fields let the inbox render without extra lookups.
type NotificationView struct {
	NotificationID string `json:"notificationId"`
	SenderID       string `json:"senderId"`
	EventID        string `json:"eventId"`
	Message        string `json:"message,omitempty"`
	Status         string `json:"status"`
	CreatedAt      int64  `json:"createdAt"`

	EventTitle string     `json:"eventTitle,omitempty"`
	EventStart *time.Time `json:"eventStart,omitempty"`
	EventEnd   *time.Time `json:"eventEnd,omitempty"`
}

// NewNotificationView builds a view; event may be nil when the source
// event is no longer resolvable.
func NewNotificationView(n *store.Notification, event *store.Event) NotificationView {
	v := NotificationView{
		NotificationID: n.NotificationID,
		SenderID:       n.SenderID,
		EventID:        n.EventID,
		Message:        n.Message,
		Status:         n.Status,
		CreatedAt:      n.CreatedAt,
	}
	if event != nil {
		v.EventTitle = event.Title
		start, end := event.Start, event.End
		v.EventStart = &start
		v.EventEnd = &end
	}
	return v
}

// PendingListResponse wraps the views returned by HandleListPending.
type PendingListResponse struct {
	Notifications []NotificationView `json:"notifications"`
}

// Handler handles the invitation endpoints.
type Handler struct {
	svc    *Service
	events store.EventStore
	log    *slog.Logger
}

// NewHandler creates a new notifications handler.
func NewHandler(svc *Service, events store.EventStore, log *slog.Logger) *Handler {
	return &Handler{
		svc:    svc,
		events: events,
		log:    logutil.NoopIfNil(log),
	}
}

// HandleCreate handles POST /api/notifications.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID := appctx.UserID(r.Context())
	if userID == "" {
		api.WriteUnauthorized(w, "authentication required")
		return
	}

	var in CreateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		api.WriteBadRequest(w, api.ReasonBadRequest, "invalid JSON body")
		return
	}

	created, err := h.svc.Create(r.Context(), userID, in)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidInvitation):
			api.WriteBadRequest(w, api.ReasonMissingField, err.Error())
		case errors.Is(err, store.ErrNotFound):
			api.WriteNotFound(w, "event not found")
		default:
			h.log.Error("failed to create invitation", "sender_id", userID, "error", err)
			api.WriteInternalError(w, "failed to create invitation")
		}
		return
	}

	api.WriteJSON(w, http.StatusCreated, NewNotificationView(created, nil))
}

// HandleListPending handles GET /api/notifications.
// Lists only pending invitations addressed to the authenticated user.
func (h *Handler) HandleListPending(w http.ResponseWriter, r *http.Request) {
	userID := appctx.UserID(r.Context())
	if userID == "" {
		api.WriteUnauthorized(w, "authentication required")
		return
	}

	list, err := h.svc.ListPending(r.Context(), userID)
	if err != nil {
		h.log.Error("failed to list invitations", "receiver_id", userID, "error", err)
		api.WriteInternalError(w, "failed to list invitations")
		return
	}

	views := make([]NotificationView, 0, len(list))
	for _, n := range list {
		event, err := h.events.GetEvent(r.Context(), n.EventID)
		if err != nil {
			// Keep the invitation visible even if the event is gone.
			event = nil
		}
		views = append(views, NewNotificationView(n, event))
	}
	api.WriteJSON(w, http.StatusOK, PendingListResponse{Notifications: views})
}

// HandleCount handles GET /api/notifications/count.
func (h *Handler) HandleCount(w http.ResponseWriter, r *http.Request) {
	userID := appctx.UserID(r.Context())
	if userID == "" {
		api.WriteUnauthorized(w, "authentication required")
		return
	}

	n, err := h.svc.CountPending(r.Context(), userID)
	if err != nil {
		h.log.Error("failed to count invitations", "receiver_id", userID, "error", err)
		api.WriteInternalError(w, "failed to count invitations")
		return
	}

	api.WriteJSON(w, http.StatusOK, map[string]int64{"count": n})
}

// HandleAccept handles POST /api/notifications/{notificationID}/accept.
// On success the response carries the receiver's new copy of the event.
func (h *Handler) HandleAccept(w http.ResponseWriter, r *http.Request) {
	userID := appctx.UserID(r.Context())
	if userID == "" {
		api.WriteUnauthorized(w, "authentication required")
		return
	}

	notificationID := chi.URLParam(r, "notificationID")
	if notificationID == "" {
		api.WriteBadRequest(w, api.ReasonMissingField, "notificationID is required")
		return
	}

	copied, err := h.svc.Accept(r.Context(), userID, notificationID)
	if err != nil {
		h.writeResolveError(w, "accept", notificationID, err)
		return
	}

	api.WriteJSON(w, http.StatusOK, map[string]any{
		"status":  store.StatusAccepted,
		"eventId": copied.EventID,
	})
}

// HandleDecline handles POST /api/notifications/{notificationID}/decline.
func (h *Handler) HandleDecline(w http.ResponseWriter, r *http.Request) {
	userID := appctx.UserID(r.Context())
	if userID == "" {
		api.WriteUnauthorized(w, "authentication required")
		return
	}

	notificationID := chi.URLParam(r, "notificationID")
	if notificationID == "" {
		api.WriteBadRequest(w, api.ReasonMissingField, "notificationID is required")
		return
	}

	if err := h.svc.Decline(r.Context(), userID, notificationID); err != nil {
		h.writeResolveError(w, "decline", notificationID, err)
		return
	}

	api.WriteJSON(w, http.StatusOK, map[string]string{
		"status": store.StatusDeclined,
	})
}

func (h *Handler) writeResolveError(w http.ResponseWriter, action, notificationID string, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		api.WriteNotFound(w, "notification not found")
	case errors.Is(err, store.ErrAlreadyProcessed):
		api.WriteConflict(w, api.ReasonAlreadyProcessed, "notification has already been processed")
	default:
		h.log.Error("failed to resolve invitation", "action", action, "notification_id", notificationID, "error", err)
		api.WriteInternalError(w, "failed to "+action+" invitation")
	}
}
