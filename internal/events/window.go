package events

import (
	"time"

	"github.com/daymark-app/daymark/internal/store"
)

// Tab names a time-window view over a user's events.
type Tab string

const (
	TabToday    Tab = "today"
	TabUpcoming Tab = "upcoming"
	TabWeek     Tab = "week"
	TabMonth    Tab = "month"
	TabPast     Tab = "past"
	TabDeleted  Tab = "deleted"
	TabAll      Tab = "all"
)

// ParseTab maps a tab name to its Tab value. Unrecognized names fall
// back to TabAll, which is the documented behavior for the list
// endpoint: the unfiltered view, not an error.
func ParseTab(s string) Tab {
	switch Tab(s) {
	case TabToday, TabUpcoming, TabWeek, TabMonth, TabPast, TabDeleted, TabAll:
		return Tab(s)
	default:
		return TabAll
	}
}

// endOfDayOffset is the distance from a day's 00:00:00.000 to its
// inclusive upper bound 23:59:59.999.
const endOfDayOffset = 24*time.Hour - time.Millisecond

// startOfDay truncates t to 00:00:00.000 of its calendar day.
func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// startOfWeek returns 00:00:00.000 of the Monday of t's week.
// Monday is day 1; a Sunday belongs to the week that started six days
// earlier.
func startOfWeek(t time.Time) time.Time {
	day := startOfDay(t)
	offset := int(day.Weekday()) - 1
	if offset < 0 {
		offset = 6 // Sunday
	}
	return day.AddDate(0, 0, -offset)
}

// startOfMonth returns 00:00:00.000 of the first day of t's month.
func startOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// FilterForTab computes the store filter for a tab. ref anchors the
// calendar windows (its time of day is discarded); now anchors the past
// cutoff. The result carries no owner scope; the service adds it after
// the authorization check.
//
// Each tab has its own window function rather than one shared
// string-keyed branch, so every window is testable in isolation.
func FilterForTab(tab Tab, ref, now time.Time) store.EventFilter {
	switch tab {
	case TabToday:
		return todayFilter(ref)
	case TabUpcoming:
		return upcomingFilter(ref)
	case TabWeek:
		return weekFilter(ref)
	case TabMonth:
		return monthFilter(ref)
	case TabPast:
		return pastFilter(now)
	case TabDeleted:
		return deletedFilter()
	default:
		return allFilter()
	}
}

// todayFilter matches events whose [start, end] interval overlaps the
// reference day: start <= endOfDay AND end >= startOfDay.
func todayFilter(ref time.Time) store.EventFilter {
	dayStart := startOfDay(ref)
	dayEnd := dayStart.Add(endOfDayOffset)
	return store.EventFilter{
		Active:          store.ActiveOnly,
		StartAtOrBefore: &dayEnd,
		EndAtOrAfter:    &dayStart,
		Order:           store.SortStartAsc,
	}
}

// upcomingFilter matches events starting on the day after the reference day.
func upcomingFilter(ref time.Time) store.EventFilter {
	nextStart := startOfDay(ref).AddDate(0, 0, 1)
	nextEnd := nextStart.Add(endOfDayOffset)
	return store.EventFilter{
		Active:          store.ActiveOnly,
		StartAtOrAfter:  &nextStart,
		StartAtOrBefore: &nextEnd,
		Order:           store.SortStartAsc,
	}
}

// weekFilter matches events starting inside the Monday-to-Sunday week
// containing the reference day: [monday, monday+7d).
func weekFilter(ref time.Time) store.EventFilter {
	weekStart := startOfWeek(ref)
	weekEnd := weekStart.AddDate(0, 0, 7)
	return store.EventFilter{
		Active:         store.ActiveOnly,
		StartAtOrAfter: &weekStart,
		StartBefore:    &weekEnd,
		Order:          store.SortStartAsc,
	}
}

// monthFilter matches events starting inside the calendar month
// containing the reference day: [first, firstOfNext).
func monthFilter(ref time.Time) store.EventFilter {
	monthStart := startOfMonth(ref)
	monthEnd := monthStart.AddDate(0, 1, 0)
	return store.EventFilter{
		Active:         store.ActiveOnly,
		StartAtOrAfter: &monthStart,
		StartBefore:    &monthEnd,
		Order:          store.SortStartAsc,
	}
}

// pastFilter matches active events that have already ended, most
// recently ended first.
func pastFilter(now time.Time) store.EventFilter {
	cutoff := now
	return store.EventFilter{
		Active:    store.ActiveOnly,
		EndBefore: &cutoff,
		Order:     store.SortEndDesc,
	}
}

// deletedFilter matches soft-deleted events, most recently deleted first.
func deletedFilter() store.EventFilter {
	return store.EventFilter{
		Active: store.InactiveOnly,
		Order:  store.SortDeletedDesc,
	}
}

// allFilter matches every event regardless of active state.
func allFilter() store.EventFilter {
	return store.EventFilter{
		Active: store.ActiveAny,
		Order:  store.SortStartAsc,
	}
}
