package controller

import (
	"time"

	"unical/internal/week"
)

// Range is a half-open week window [Start, End) in the viewer zone.
type Range struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// WeekRange returns the Monday-to-Monday window containing t in loc.
func WeekRange(t time.Time, loc *time.Location) Range {
	if loc == nil {
		loc = time.UTC
	}
	start := week.StartOf(t.In(loc))
	return Range{Start: start, End: start.AddDate(0, 0, week.Days)}
}

// Key identifies the range for fetch deduplication.
func (r Range) Key() string {
	if r.Start.IsZero() {
		return ""
	}
	return r.Start.Format(time.RFC3339) + "|" + r.End.Format(time.RFC3339) + "|" + r.Start.Location().String()
}

// Contains reports whether t falls inside the range.
func (r Range) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}
