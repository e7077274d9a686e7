package events

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

// dateParam is the wire format of the list endpoint's date parameter.
const dateParam = "2006-01-02"

// EventView is the API representation of an event.
type EventView struct {
	EventID       string     `json:"eventId"`
	Title         string     `json:"title"`
	Description   string     `json:"description,omitempty"`
	Start         time.Time  `json:"start"`
	End           time.Time  `json:"end"`
	Color         string     `json:"color"`
	OwnerID       string     `json:"ownerId"`
	IsActive      bool       `json:"isActive"`
	DeletedAt     *time.Time `json:"deletedAt,omitempty"`
	RetentionDays *int       `json:"retentionDaysRemaining,omitempty"`
}

// NewEventView converts a stored event to its API view. Soft-deleted
// events additionally carry the remaining retention days.
func NewEventView(e *store.Event, now time.Time) EventView {
	v := EventView{
		EventID:     e.EventID,
		Title:       e.Title,
		Description: e.Description,
		Start:       e.Start,
		End:         e.End,
		Color:       e.Color,
		OwnerID:     e.OwnerID,
		IsActive:    e.IsActive,
		DeletedAt:   e.DeletedAt,
	}
	if !e.IsActive && e.DeletedAt != nil {
		days := RetentionDaysRemaining(e, now)
		v.RetentionDays = &days
	}
	return v
}

// ListResponse wraps the event views returned by HandleList.
type ListResponse struct {
	Tab    Tab         `json:"tab"`
	Events []EventView `json:"events"`
}

// Handler handles the event CRUD, tab listing, calendar, and export endpoints.
type Handler struct {
	svc *Service
	log *slog.Logger
	now func() time.Time
}

// NewHandler creates a new events handler. now may be nil for time.Now.
func NewHandler(svc *Service, log *slog.Logger, now func() time.Time) *Handler {
	if now == nil {
		now = time.Now
	}
	return &Handler{
		svc: svc,
		log: logutil.NoopIfNil(log),
		now: now,
	}
}

// HandleList handles GET /api/events?tab=&date=.
// Unknown tab names fall back to the unfiltered view; a missing date
// defaults to the current day.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID := appctx.UserID(r.Context())
	if userID == "" {
		api.WriteUnauthorized(w, "authentication required")
		return
	}

	tab := ParseTab(r.URL.Query().Get("tab"))

	ref := h.now()
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.ParseInLocation(dateParam, raw, time.UTC)
		if err != nil {
			api.WriteBadRequest(w, api.ReasonInvalidField, "date must be formatted as YYYY-MM-DD")
			return
		}
		ref = parsed
	}

	list, err := h.svc.ListForTab(r.Context(), userID, tab, ref)
	if err != nil {
		h.log.Error("failed to list events", "user_id", userID, "tab", tab, "error", err)
		api.WriteInternalError(w, "failed to list events")
		return
	}

	now := h.now()
	views := make([]EventView, 0, len(list))
	for _, e := range list {
		views = append(views, NewEventView(e, now))
	}
	api.WriteJSON(w, http.StatusOK, ListResponse{Tab: tab, Events: views})
}

// HandleCreate handles POST /api/events.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID := appctx.UserID(r.Context())
	if userID == "" {
		api.WriteUnauthorized(w, "authentication required")
		return
	}

	var in CreateEventInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		api.WriteBadRequest(w, api.ReasonBadRequest, "invalid JSON body")
		return
	}

	created, err := h.svc.Create(r.Context(), userID, in)
	if err != nil {
		if errors.Is(err, ErrInvalidEvent) {
			api.WriteBadRequest(w, api.ReasonInvalidField, err.Error())
			return
		}
		h.log.Error("failed to create event", "user_id", userID, "error", err)
		api.WriteInternalError(w, "failed to create event")
		return
	}

	api.WriteJSON(w, http.StatusCreated, NewEventView(created, h.now()))
}

// HandleDelete handles POST /api/events/{eventID}/delete.
// Deletion is soft: the event moves to the deleted tab and stays
// restorable for the retention window.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID := appctx.UserID(r.Context())
	if userID == "" {
		api.WriteUnauthorized(w, "authentication required")
		return
	}

	eventID := chi.URLParam(r, "eventID")
	if eventID == "" {
		api.WriteBadRequest(w, api.ReasonMissingField, "eventID is required")
		return
	}

	if err := h.svc.MarkInactive(r.Context(), userID, eventID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			api.WriteNotFound(w, "event not found")
			return
		}
		h.log.Error("failed to delete event", "event_id", eventID, "error", err)
		api.WriteInternalError(w, "failed to delete event")
		return
	}

	api.WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "deleted",
		"eventId": eventID,
	})
}

// HandleRestore handles POST /api/restore/{eventID}.
// The success flag reports whether the event actually changed state;
// restoring an already active event succeeds without a change.
func (h *Handler) HandleRestore(w http.ResponseWriter, r *http.Request) {
	userID := appctx.UserID(r.Context())
	if userID == "" {
		api.WriteUnauthorized(w, "authentication required")
		return
	}

	eventID := chi.URLParam(r, "eventID")
	if eventID == "" {
		api.WriteBadRequest(w, api.ReasonMissingField, "eventID is required")
		return
	}

	restored, err := h.svc.Restore(r.Context(), userID, eventID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			api.WriteNotFound(w, "event not found")
			return
		}
		h.log.Error("failed to restore event", "event_id", eventID, "error", err)
		api.WriteInternalError(w, "failed to restore event")
		return
	}

	api.WriteJSON(w, http.StatusOK, map[string]any{
		"success": restored,
		"eventId": eventID,
	})
}

// HandleCalendar handles GET /api/calendar?start=&end=.
// Returns events of every user with start in [start, end), for the
// shared calendar grid.
func (h *Handler) HandleCalendar(w http.ResponseWriter, r *http.Request) {
	userID := appctx.UserID(r.Context())
	if userID == "" {
		api.WriteUnauthorized(w, "authentication required")
		return
	}

	start, err := parseTimeParam(r.URL.Query().Get("start"))
	if err != nil {
		api.WriteBadRequest(w, api.ReasonInvalidField, "start must be RFC 3339 or YYYY-MM-DD")
		return
	}
	end, err := parseTimeParam(r.URL.Query().Get("end"))
	if err != nil {
		api.WriteBadRequest(w, api.ReasonInvalidField, "end must be RFC 3339 or YYYY-MM-DD")
		return
	}
	if !start.Before(end) {
		api.WriteBadRequest(w, api.ReasonInvalidField, "start must be before end")
		return
	}

	list, err := h.svc.ListBetween(r.Context(), start, end)
	if err != nil {
		h.log.Error("failed to list calendar events", "error", err)
		api.WriteInternalError(w, "failed to list calendar events")
		return
	}

	now := h.now()
	views := make([]EventView, 0, len(list))
	for _, e := range list {
		views = append(views, NewEventView(e, now))
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"events": views})
}

// HandleExportICS handles GET /api/events/export.ics.
func (h *Handler) HandleExportICS(w http.ResponseWriter, r *http.Request) {
	userID := appctx.UserID(r.Context())
	if userID == "" {
		api.WriteUnauthorized(w, "authentication required")
		return
	}

	payload, err := h.svc.ExportICS(r.Context(), userID)
	if err != nil {
		h.log.Error("failed to export calendar", "user_id", userID, "error", err)
		api.WriteInternalError(w, "failed to export calendar")
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="daymark.ics"`)
	w.WriteHeader(http.StatusOK)
	w.Write(payload)
}

// parseTimeParam accepts RFC 3339 timestamps and bare dates.
func parseTimeParam(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.ParseInLocation(dateParam, raw, time.UTC)
}
