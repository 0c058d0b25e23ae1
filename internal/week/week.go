// Package week places normalized events on the 7-day view: a fixed
// day×slot grid for desktop and a chronological per-day list for mobile.
package week

import (
	"sort"
	"time"

	"unical/internal/model"
)

// Days is the number of day buckets; Monday is bucket 0.
const Days = 7

// EarlyMorningHour is the local hour before which a session is attributed to
// the previous day in the list view ("last night").
const EarlyMorningHour = 3

// DayIndex maps t's weekday onto [0,6] with Monday = 0.
func DayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// StartOf returns Monday 00:00 of the week containing t, in t's zone.
func StartOf(t time.Time) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return day.AddDate(0, 0, -DayIndex(day))
}

// Dates returns the seven calendar days starting at weekStart.
func Dates(weekStart time.Time) [Days]time.Time {
	var out [Days]time.Time
	for i := range out {
		out[i] = weekStart.AddDate(0, 0, i)
	}
	return out
}

// Offset returns the number of calendar days from weekStart's date to t's
// date, counted in weekStart's zone.
func Offset(weekStart, t time.Time) int {
	t = t.In(weekStart.Location())
	a := time.Date(weekStart.Year(), weekStart.Month(), weekStart.Day(), 0, 0, 0, 0, time.UTC)
	b := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}

// AttributedDate returns the day an event starting at t belongs to in the
// list and broadcast views: before EarlyMorningHour it counts as the
// previous day.
func AttributedDate(t time.Time) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	if t.Hour() < EarlyMorningHour {
		return day.AddDate(0, 0, -1)
	}
	return day
}

// Scheduled reports whether ev takes part in the lesson views: it must be a
// scheduled session (not a deadline) and not flagged LXP.
func Scheduled(ev model.NormalizedEvent) bool {
	return !ev.IsDeadline && !ev.IsLXP
}

// Matches reports whether ev occupies slot s. Comparison is on local
// wall-clock minutes counted from the start day's midnight: equal start,
// equal end, or fully inside the slot.
func Matches(ev model.NormalizedEvent, s Slot) bool {
	start := minuteOfDay(ev.Start)
	end := start
	if ev.End.After(ev.Start) {
		end += int(ev.End.Sub(ev.Start) / time.Minute)
	}
	if start == s.StartMin || end == s.EndMin {
		return true
	}
	return start >= s.StartMin && end <= s.EndMin
}

// Grid is the desktop day×slot layout. Each cell holds at most one event.
type Grid struct {
	WeekStart time.Time                      `json:"week_start"`
	Slots     []Slot                         `json:"slots"`
	Cells     [Days][]*model.NormalizedEvent `json:"cells"`
}

// Cell returns the event in (day, slot), if any.
func (g *Grid) Cell(day, slot int) (*model.NormalizedEvent, bool) {
	if day < 0 || day >= Days || slot < 0 || slot >= len(g.Cells[day]) {
		return nil, false
	}
	ev := g.Cells[day][slot]
	return ev, ev != nil
}

// BuildGrid fills the desktop grid. Day placement uses the literal local
// calendar day of the start time. For every cell the first event in array
// order that matches wins; later matches for the same cell are not shown.
func BuildGrid(events []model.NormalizedEvent, weekStart time.Time, slots []Slot) Grid {
	g := Grid{WeekStart: weekStart, Slots: slots}

	var byDay [Days][]int
	for i, ev := range events {
		if !Scheduled(ev) {
			continue
		}
		d := Offset(weekStart, ev.Start)
		if d < 0 || d >= Days {
			continue
		}
		byDay[d] = append(byDay[d], i)
	}

	for d := 0; d < Days; d++ {
		g.Cells[d] = make([]*model.NormalizedEvent, len(slots))
		for k, s := range slots {
			for _, i := range byDay[d] {
				if Matches(events[i], s) {
					ev := events[i]
					g.Cells[d][k] = &ev
					break
				}
			}
		}
	}
	return g
}

// List is the mobile per-day chronological view.
type List [Days][]model.NormalizedEvent

// BuildList buckets scheduled events by AttributedDate and sorts each day
// by start time. Ties keep their input order.
func BuildList(events []model.NormalizedEvent, weekStart time.Time) List {
	var l List
	for _, ev := range events {
		if !Scheduled(ev) {
			continue
		}
		d := Offset(weekStart, AttributedDate(ev.Start))
		if d < 0 || d >= Days {
			continue
		}
		l[d] = append(l[d], ev)
	}
	for d := range l {
		SortByStart(l[d])
	}
	return l
}

// ForDay returns the non-deadline events attributed to date (03:00 rule),
// sorted by start. LXP-flagged sessions are kept so the broadcast composer
// can list them separately.
func ForDay(events []model.NormalizedEvent, date time.Time) []model.NormalizedEvent {
	var out []model.NormalizedEvent
	for _, ev := range events {
		if ev.IsDeadline {
			continue
		}
		if Offset(date, AttributedDate(ev.Start)) != 0 {
			continue
		}
		out = append(out, ev)
	}
	SortByStart(out)
	return out
}

// SortByStart orders events by start time, stable for ties.
func SortByStart(events []model.NormalizedEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Start.Before(events[j].Start)
	})
}
