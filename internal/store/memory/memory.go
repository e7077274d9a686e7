// Package memory implements an in-memory persistence driver.
// It backs tests and small single-process deployments; every read
// returns a copy so callers never alias store-owned rows.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/daymark-app/daymark/internal/store"
)

func init() {
	store.Register("memory", func(cfg *store.DriverConfig) (store.Driver, error) {
		return NewDriver(), nil
	})
}

// Driver implements store.Driver, store.EventStore and
// store.NotificationStore with mutex-guarded maps. The single mutex is
// the transaction boundary: AcceptNotification holds it across the
// status check and the derivative insert, which gives the same
// at-most-once guarantee the sqlite driver gets from its conditional
// update inside a transaction.
type Driver struct {
	mu            sync.RWMutex
	events        map[string]*store.Event
	notifications map[string]*store.Notification
	closed        bool
}

// NewDriver creates an empty in-memory driver.
func NewDriver() *Driver {
	return &Driver{
		events:        make(map[string]*store.Event),
		notifications: make(map[string]*store.Notification),
	}
}

// Name returns the driver name.
func (d *Driver) Name() string { return "memory" }

// Init is a no-op for the memory driver.
func (d *Driver) Init(ctx context.Context) error { return nil }

// Close marks the driver closed.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

func (d *Driver) checkOpen() error {
	if d.closed {
		return store.ErrClosed
	}
	return nil
}

// EventStore implementation

func (d *Driver) CreateEvent(ctx context.Context, event *store.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkOpen(); err != nil {
		return err
	}
	if event.EventID == "" {
		event.EventID = newID()
	}
	now := time.Now().Unix()
	if event.CreatedAt == 0 {
		event.CreatedAt = now
	}
	event.UpdatedAt = now
	cp := *event
	d.events[event.EventID] = &cp
	return nil
}

func (d *Driver) GetEvent(ctx context.Context, eventID string) (*store.Event, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if err := d.checkOpen(); err != nil {
		return nil, err
	}
	e, ok := d.events[eventID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (d *Driver) ListEvents(ctx context.Context, filter store.EventFilter) ([]*store.Event, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if err := d.checkOpen(); err != nil {
		return nil, err
	}

	var out []*store.Event
	for _, e := range d.events {
		if filter.Matches(e) {
			cp := *e
			out = append(out, &cp)
		}
	}
	sortEvents(out, filter.Order)
	return out, nil
}

func (d *Driver) ListEventsBetween(ctx context.Context, start, end time.Time) ([]*store.Event, error) {
	return d.ListEvents(ctx, store.EventFilter{
		Active:         store.ActiveAny,
		StartAtOrAfter: &start,
		StartBefore:    &end,
		Order:          store.SortStartAsc,
	})
}

func (d *Driver) SetEventActive(ctx context.Context, eventID string, active bool, deletedAt *time.Time) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkOpen(); err != nil {
		return 0, err
	}
	e, ok := d.events[eventID]
	if !ok {
		return 0, nil
	}
	e.IsActive = active
	e.DeletedAt = deletedAt
	e.UpdatedAt = time.Now().Unix()
	return 1, nil
}

func (d *Driver) CountDeletedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if err := d.checkOpen(); err != nil {
		return 0, err
	}
	var count int64
	for _, e := range d.events {
		if !e.IsActive && e.DeletedAt != nil && e.DeletedAt.Before(cutoff) {
			count++
		}
	}
	return count, nil
}

// NotificationStore implementation

func (d *Driver) CreateNotification(ctx context.Context, n *store.Notification) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkOpen(); err != nil {
		return err
	}
	if n.NotificationID == "" {
		n.NotificationID = newID()
	}
	if n.Status == "" {
		n.Status = store.StatusPending
	}
	now := time.Now().Unix()
	if n.CreatedAt == 0 {
		n.CreatedAt = now
	}
	n.UpdatedAt = now
	cp := *n
	d.notifications[n.NotificationID] = &cp
	return nil
}

func (d *Driver) GetNotification(ctx context.Context, notificationID string) (*store.Notification, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if err := d.checkOpen(); err != nil {
		return nil, err
	}
	n, ok := d.notifications[notificationID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *n
	return &cp, nil
}

func (d *Driver) ListPendingNotifications(ctx context.Context, receiverID string) ([]*store.Notification, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if err := d.checkOpen(); err != nil {
		return nil, err
	}
	var out []*store.Notification
	for _, n := range d.notifications {
		if n.ReceiverID == receiverID && n.Status == store.StatusPending {
			cp := *n
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt > out[j].CreatedAt
		}
		return out[i].NotificationID > out[j].NotificationID
	})
	return out, nil
}

func (d *Driver) CountPendingNotifications(ctx context.Context, receiverID string) (int64, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if err := d.checkOpen(); err != nil {
		return 0, err
	}
	var count int64
	for _, n := range d.notifications {
		if n.ReceiverID == receiverID && n.Status == store.StatusPending {
			count++
		}
	}
	return count, nil
}

func (d *Driver) AcceptNotification(ctx context.Context, notificationID string) (*store.Event, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkOpen(); err != nil {
		return nil, err
	}

	n, ok := d.notifications[notificationID]
	if !ok {
		return nil, store.ErrNotFound
	}
	src, ok := d.events[n.EventID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if n.Status != store.StatusPending {
		return nil, store.ErrAlreadyProcessed
	}

	now := time.Now().Unix()
	n.Status = store.StatusAccepted
	n.UpdatedAt = now

	event := &store.Event{
		EventID:     newID(),
		Title:       src.Title,
		Description: src.Description,
		Start:       src.Start,
		End:         src.End,
		Color:       src.Color,
		OwnerID:     n.ReceiverID,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	d.events[event.EventID] = event

	cp := *event
	return &cp, nil
}

func (d *Driver) ResolveNotification(ctx context.Context, notificationID, status string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkOpen(); err != nil {
		return err
	}
	n, ok := d.notifications[notificationID]
	if !ok {
		return store.ErrNotFound
	}
	if n.Status != store.StatusPending {
		return store.ErrAlreadyProcessed
	}
	n.Status = status
	n.UpdatedAt = time.Now().Unix()
	return nil
}

func sortEvents(events []*store.Event, order store.SortOrder) {
	switch order {
	case store.SortEndDesc:
		sort.Slice(events, func(i, j int) bool { return events[i].End.After(events[j].End) })
	case store.SortDeletedDesc:
		sort.Slice(events, func(i, j int) bool {
			di, dj := events[i].DeletedAt, events[j].DeletedAt
			if di == nil || dj == nil {
				return dj == nil && di != nil
			}
			return di.After(*dj)
		})
	default:
		sort.Slice(events, func(i, j int) bool { return events[i].Start.Before(events[j].Start) })
	}
}

// newID generates a UUIDv7 for row ids.
func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}
