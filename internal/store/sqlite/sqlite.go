// Package sqlite implements a SQLite-based persistence driver using GORM.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/daymark-app/daymark/internal/store"
)

func init() {
	store.Register("sqlite", NewDriver)
}

// options holds driver-specific settings from [store.drivers.sqlite].
type options struct {
	// BusyTimeoutMS keeps concurrent accept transactions queued instead of
	// failing with SQLITE_BUSY. Default: 5000.
	BusyTimeoutMS int `mapstructure:"busy_timeout_ms"`

	// JournalMode is the SQLite journal mode. Default: WAL.
	JournalMode string `mapstructure:"journal_mode"`
}

func defaultOptions() options {
	return options{
		BusyTimeoutMS: 5000,
		JournalMode:   "WAL",
	}
}

// Driver implements the store.Driver interface using SQLite via GORM.
type Driver struct {
	dataDir string
	opts    options
	db      *gorm.DB
}

// NewDriver creates a new SQLite driver instance.
func NewDriver(cfg *store.DriverConfig) (store.Driver, error) {
	if cfg.DataDir == "" {
		return nil, fmt.Errorf("data_dir is required for sqlite driver")
	}

	opts := defaultOptions()
	if len(cfg.Options) > 0 {
		if err := mapstructure.WeakDecode(cfg.Options, &opts); err != nil {
			return nil, fmt.Errorf("invalid sqlite options: %w", err)
		}
	}

	return &Driver{
		dataDir: cfg.DataDir,
		opts:    opts,
	}, nil
}

// Name returns the driver name.
func (d *Driver) Name() string {
	return "sqlite"
}

// Init initializes the SQLite database and runs AutoMigrate.
func (d *Driver) Init(ctx context.Context) error {
	dbPath := filepath.Join(d.dataDir, "daymark.db") +
		fmt.Sprintf("?_busy_timeout=%d&_journal_mode=%s", d.opts.BusyTimeoutMS, d.opts.JournalMode)

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	d.db = db

	// AutoMigrate creates/updates tables based on model structs
	if err := db.AutoMigrate(
		&store.Event{},
		&store.Notification{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (d *Driver) Close() error {
	if d.db == nil {
		return nil
	}
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// EventStore implementation

// CreateEvent inserts a new event, assigning an id when absent.
func (d *Driver) CreateEvent(ctx context.Context, event *store.Event) error {
	if event.EventID == "" {
		event.EventID = newID()
	}
	now := time.Now().Unix()
	if event.CreatedAt == 0 {
		event.CreatedAt = now
	}
	event.UpdatedAt = now
	return d.db.WithContext(ctx).Create(event).Error
}

// GetEvent retrieves an event by id.
func (d *Driver) GetEvent(ctx context.Context, eventID string) (*store.Event, error) {
	var event store.Event
	result := d.db.WithContext(ctx).First(&event, "event_id = ?", eventID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, result.Error
	}
	return &event, nil
}

// ListEvents returns events matching the filter.
func (d *Driver) ListEvents(ctx context.Context, filter store.EventFilter) ([]*store.Event, error) {
	q := d.db.WithContext(ctx).Model(&store.Event{})

	if filter.OwnerID != "" {
		q = q.Where("owner_id = ?", filter.OwnerID)
	}
	switch filter.Active {
	case store.ActiveOnly:
		q = q.Where("is_active = ?", true)
	case store.InactiveOnly:
		q = q.Where("is_active = ?", false)
	}
	if filter.StartAtOrAfter != nil {
		q = q.Where("start_time >= ?", *filter.StartAtOrAfter)
	}
	if filter.StartAtOrBefore != nil {
		q = q.Where("start_time <= ?", *filter.StartAtOrBefore)
	}
	if filter.StartBefore != nil {
		q = q.Where("start_time < ?", *filter.StartBefore)
	}
	if filter.EndAtOrAfter != nil {
		q = q.Where("end_time >= ?", *filter.EndAtOrAfter)
	}
	if filter.EndBefore != nil {
		q = q.Where("end_time < ?", *filter.EndBefore)
	}
	if filter.DeletedBefore != nil {
		q = q.Where("deleted_at IS NOT NULL AND deleted_at < ?", *filter.DeletedBefore)
	}

	switch filter.Order {
	case store.SortEndDesc:
		q = q.Order("end_time DESC")
	case store.SortDeletedDesc:
		q = q.Order("deleted_at DESC")
	default:
		q = q.Order("start_time ASC")
	}

	var events []*store.Event
	if err := q.Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// ListEventsBetween returns events with start in [start, end), any owner.
func (d *Driver) ListEventsBetween(ctx context.Context, start, end time.Time) ([]*store.Event, error) {
	var events []*store.Event
	err := d.db.WithContext(ctx).
		Where("start_time >= ? AND start_time < ?", start, end).
		Order("start_time ASC").
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

// SetEventActive updates the (is_active, deleted_at) pair.
func (d *Driver) SetEventActive(ctx context.Context, eventID string, active bool, deletedAt *time.Time) (int64, error) {
	result := d.db.WithContext(ctx).Model(&store.Event{}).
		Where("event_id = ?", eventID).
		Updates(map[string]any{
			"is_active":  active,
			"deleted_at": deletedAt,
			"updated_at": time.Now().Unix(),
		})
	return result.RowsAffected, result.Error
}

// CountDeletedBefore counts inactive events deleted before the cutoff.
func (d *Driver) CountDeletedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var count int64
	err := d.db.WithContext(ctx).Model(&store.Event{}).
		Where("is_active = ? AND deleted_at IS NOT NULL AND deleted_at < ?", false, cutoff).
		Count(&count).Error
	return count, err
}

// NotificationStore implementation

// CreateNotification inserts a new pending notification.
func (d *Driver) CreateNotification(ctx context.Context, n *store.Notification) error {
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
	return d.db.WithContext(ctx).Create(n).Error
}

// GetNotification retrieves a notification by id.
func (d *Driver) GetNotification(ctx context.Context, notificationID string) (*store.Notification, error) {
	var n store.Notification
	result := d.db.WithContext(ctx).First(&n, "notification_id = ?", notificationID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, result.Error
	}
	return &n, nil
}

// ListPendingNotifications returns pending notifications for the receiver, newest first.
func (d *Driver) ListPendingNotifications(ctx context.Context, receiverID string) ([]*store.Notification, error) {
	var ns []*store.Notification
	err := d.db.WithContext(ctx).
		Where("receiver_id = ? AND status = ?", receiverID, store.StatusPending).
		Order("created_at DESC").
		Find(&ns).Error
	if err != nil {
		return nil, err
	}
	return ns, nil
}

// CountPendingNotifications counts pending notifications for the receiver.
func (d *Driver) CountPendingNotifications(ctx context.Context, receiverID string) (int64, error) {
	var count int64
	err := d.db.WithContext(ctx).Model(&store.Notification{}).
		Where("receiver_id = ? AND status = ?", receiverID, store.StatusPending).
		Count(&count).Error
	return count, err
}

// AcceptNotification transitions pending -> accepted and inserts the
// derivative event for the receiver in one transaction. The conditional
// update on status = pending serializes concurrent accept/decline calls:
// only the first one lands, the rest see ErrAlreadyProcessed, and the
// rollback guarantees no accepted-without-event or event-while-pending
// state is ever observable.
func (d *Driver) AcceptNotification(ctx context.Context, notificationID string) (*store.Event, error) {
	var created *store.Event

	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n store.Notification
		if err := tx.First(&n, "notification_id = ?", notificationID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return store.ErrNotFound
			}
			return err
		}

		var src store.Event
		if err := tx.First(&src, "event_id = ?", n.EventID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return store.ErrNotFound
			}
			return err
		}

		now := time.Now().Unix()
		result := tx.Model(&store.Notification{}).
			Where("notification_id = ? AND status = ?", notificationID, store.StatusPending).
			Updates(map[string]any{"status": store.StatusAccepted, "updated_at": now})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return store.ErrAlreadyProcessed
		}

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
		if err := tx.Create(event).Error; err != nil {
			return err
		}

		created = event
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// ResolveNotification transitions pending -> status under the same guard.
func (d *Driver) ResolveNotification(ctx context.Context, notificationID, status string) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&store.Notification{}).
			Where("notification_id = ? AND status = ?", notificationID, store.StatusPending).
			Updates(map[string]any{"status": status, "updated_at": time.Now().Unix()})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected > 0 {
			return nil
		}

		// Zero rows: distinguish a missing row from an already-resolved one.
		var n store.Notification
		if err := tx.First(&n, "notification_id = ?", notificationID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return store.ErrNotFound
			}
			return err
		}
		return store.ErrAlreadyProcessed
	})
}

// newID generates a UUIDv7 for row ids.
func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// Fallback to V4 if V7 fails
		return uuid.New().String()
	}
	return id.String()
}
