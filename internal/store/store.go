// Package store provides persistence primitives and driver abstractions.
package store

import (
	"context"
	"errors"
	"time"
)

// Common errors for store operations.
var (
	ErrNotFound         = errors.New("not found")
	ErrAlreadyProcessed = errors.New("already processed")
	ErrClosed           = errors.New("store closed")
)

// DefaultEventColor is applied when an event is created without a color.
const DefaultEventColor = "#FFFFFF"

// Notification status values. A notification starts pending and is
// resolved exactly once; accepted and declined are terminal.
const (
	StatusPending  = "pending"
	StatusAccepted = "accepted"
	StatusDeclined = "declined"
)

// Driver defines the interface for a persistence backend.
// Implementations must be safe for concurrent use.
type Driver interface {
	// Init initializes the driver (create tables, load data, etc).
	Init(ctx context.Context) error

	// Close releases resources held by the driver.
	Close() error

	// Name returns the driver name (sqlite, memory).
	Name() string
}

// Event is a calendar entry owned by a single user.
// Soft deletion flips IsActive and stamps DeletedAt; rows are never
// removed by any code path in this repository.
type Event struct {
	EventID     string     `json:"event_id" gorm:"primaryKey"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Start       time.Time  `json:"start" gorm:"column:start_time;index"`
	End         time.Time  `json:"end" gorm:"column:end_time;index"`
	Color       string     `json:"color"`
	OwnerID     string     `json:"owner_id" gorm:"index"`
	IsActive    bool       `json:"is_active"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
	CreatedAt   int64      `json:"created_at"`
	UpdatedAt   int64      `json:"updated_at"`
}

// Notification is an invitation from a sender to a receiver, referencing
// the sender's source event. Accepting one creates an independent copy of
// that event for the receiver; the copy carries no link back.
type Notification struct {
	NotificationID string `json:"notification_id" gorm:"primaryKey"`
	SenderID       string `json:"sender_id" gorm:"index"`
	ReceiverID     string `json:"receiver_id" gorm:"index"`
	EventID        string `json:"event_id"`
	Message        string `json:"message"`
	Status         string `json:"status"` // pending, accepted, declined
	CreatedAt      int64  `json:"created_at"`
	UpdatedAt      int64  `json:"updated_at"`
}

// ActiveFilter selects event rows by their is_active flag.
type ActiveFilter int

const (
	// ActiveOnly matches rows with is_active = true.
	ActiveOnly ActiveFilter = iota
	// InactiveOnly matches rows with is_active = false.
	InactiveOnly
	// ActiveAny matches rows regardless of is_active.
	ActiveAny
)

// SortOrder fixes the result ordering of an event query.
type SortOrder int

const (
	SortStartAsc SortOrder = iota
	SortEndDesc
	SortDeletedDesc
)

// EventFilter is a declarative predicate over event rows. Nil bounds are
// not applied. Drivers translate it to their native query form; the
// memory driver evaluates it directly.
type EventFilter struct {
	OwnerID string
	Active  ActiveFilter

	StartAtOrAfter  *time.Time // start >= bound
	StartAtOrBefore *time.Time // start <= bound
	StartBefore     *time.Time // start <  bound
	EndAtOrAfter    *time.Time // end   >= bound
	EndBefore       *time.Time // end   <  bound

	DeletedBefore *time.Time // deleted_at < bound (inactive rows only)

	Order SortOrder
}

// Matches reports whether the event satisfies every bound of the filter.
// Shared by the memory driver and the driver test suite.
func (f EventFilter) Matches(e *Event) bool {
	if f.OwnerID != "" && e.OwnerID != f.OwnerID {
		return false
	}
	switch f.Active {
	case ActiveOnly:
		if !e.IsActive {
			return false
		}
	case InactiveOnly:
		if e.IsActive {
			return false
		}
	}
	if f.StartAtOrAfter != nil && e.Start.Before(*f.StartAtOrAfter) {
		return false
	}
	if f.StartAtOrBefore != nil && e.Start.After(*f.StartAtOrBefore) {
		return false
	}
	if f.StartBefore != nil && !e.Start.Before(*f.StartBefore) {
		return false
	}
	if f.EndAtOrAfter != nil && e.End.Before(*f.EndAtOrAfter) {
		return false
	}
	if f.EndBefore != nil && !e.End.Before(*f.EndBefore) {
		return false
	}
	if f.DeletedBefore != nil && (e.DeletedAt == nil || !e.DeletedAt.Before(*f.DeletedBefore)) {
		return false
	}
	return true
}

// EventStore defines operations for event persistence.
type EventStore interface {
	// CreateEvent inserts the event. The store assigns EventID when empty.
	CreateEvent(ctx context.Context, event *Event) error

	// GetEvent retrieves an event by id. Returns ErrNotFound if absent.
	GetEvent(ctx context.Context, eventID string) (*Event, error)

	// ListEvents returns events matching the filter in its order.
	ListEvents(ctx context.Context, filter EventFilter) ([]*Event, error)

	// ListEventsBetween returns events with start in [start, end),
	// regardless of owner, ordered by start ascending.
	ListEventsBetween(ctx context.Context, start, end time.Time) ([]*Event, error)

	// SetEventActive updates the (is_active, deleted_at) pair and returns
	// the number of rows affected. It is a blind setter; callers go
	// through the lifecycle layer which supplies the canonical pairs.
	SetEventActive(ctx context.Context, eventID string, active bool, deletedAt *time.Time) (int64, error)

	// CountDeletedBefore counts inactive events whose deletion timestamp
	// is older than the cutoff. Used by the retention reporter.
	CountDeletedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// NotificationStore defines operations for notification persistence.
// AcceptNotification and ResolveNotification carry the state-machine
// guard: a resolution only lands when the row is still pending.
type NotificationStore interface {
	// CreateNotification inserts a pending notification. The store
	// assigns NotificationID when empty.
	CreateNotification(ctx context.Context, n *Notification) error

	// GetNotification retrieves a notification by id.
	GetNotification(ctx context.Context, notificationID string) (*Notification, error)

	// ListPendingNotifications returns pending notifications for the
	// receiver, newest first.
	ListPendingNotifications(ctx context.Context, receiverID string) ([]*Notification, error)

	// CountPendingNotifications counts pending notifications for the receiver.
	CountPendingNotifications(ctx context.Context, receiverID string) (int64, error)

	// AcceptNotification atomically transitions the notification from
	// pending to accepted and inserts an independent copy of the source
	// event owned by the receiver. The transition is a conditional
	// update on status = pending: zero affected rows aborts with
	// ErrAlreadyProcessed and nothing is inserted. A missing
	// notification or source event yields ErrNotFound. On any failure
	// no partial state survives.
	AcceptNotification(ctx context.Context, notificationID string) (*Event, error)

	// ResolveNotification transitions the notification from pending to
	// the given terminal status under the same conditional-update guard.
	ResolveNotification(ctx context.Context, notificationID, status string) error
}
