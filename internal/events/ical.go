package events

import (
	"context"
	"fmt"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/daymark-app/daymark/internal/store"
)

// icalProdID identifies this application in exported calendars.
const icalProdID = "-//daymark//daymark//EN"

// ExportICS renders the owner's active events as a VCALENDAR payload.
// Every event becomes one VEVENT with its event id as UID, so repeated
// exports stay stable for calendar clients that merge by UID.
func (s *Service) ExportICS(ctx context.Context, ownerID string) ([]byte, error) {
	if ownerID == "" {
		return nil, ErrUnauthorized
	}

	list, err := s.store.ListEvents(ctx, store.EventFilter{
		OwnerID: ownerID,
		Active:  store.ActiveOnly,
		Order:   store.SortStartAsc,
	})
	if err != nil {
		return nil, err
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(icalProdID)

	now := s.now().UTC()
	for _, e := range list {
		ve := cal.AddEvent(fmt.Sprintf("%s@daymark", e.EventID))
		ve.SetDtStampTime(now)
		ve.SetStartAt(e.Start.UTC())
		ve.SetEndAt(e.End.UTC())
		ve.SetSummary(e.Title)
		if e.Description != "" {
			ve.SetDescription(e.Description)
		}
		ve.SetCreatedTime(time.Unix(e.CreatedAt, 0).UTC())
		ve.SetModifiedAt(time.Unix(e.UpdatedAt, 0).UTC())
	}

	s.logger.Debug("ics export", "owner_id", ownerID, "event_count", len(list))
	return []byte(cal.Serialize()), nil
}
