package ics

import (
	"errors"
	"time"

	"github.com/teambition/rrule-go"

	appLog "unical/internal/log"
)

const defaultMaxOccurrences = 5000

// Occurrence is one concrete instance read from a calendar file.
type Occurrence struct {
	// Identity is the UID for one-off entries and UID + "@" + start for
	// instances of a recurring series.
	Identity string
	UID      string
	Summary  string
	Start    time.Time
	End      time.Time
}

// Expand turns entries into concrete occurrences inside [from, to),
// applying RRULE, EXDATE and RECURRENCE-ID overrides. Times are converted
// into loc (nil means UTC).
func Expand(entries []Entry, from, to time.Time, loc *time.Location) ([]Occurrence, error) {
	if to.Before(from) {
		return nil, errors.New("ics: range end is before range start")
	}
	if loc == nil {
		loc = time.UTC
	}

	overrides := make(map[string][]Entry)
	var bases []Entry
	for _, e := range entries {
		if e.Recurrence != nil {
			overrides[e.UID] = append(overrides[e.UID], e)
			continue
		}
		bases = append(bases, e)
	}

	var out []Occurrence
	for _, e := range bases {
		if e.RawRRule == "" {
			if overlaps(e.Start, e.End, from, to) {
				out = append(out, occurrence(e, e.UID, e.Start, e.End, loc))
			}
			continue
		}
		out = append(out, expandSeries(e, overrides[e.UID], from, to, loc)...)
	}
	return out, nil
}

func expandSeries(e Entry, overrides []Entry, from, to time.Time, loc *time.Location) []Occurrence {
	r, err := rrule.StrToRRule(e.RawRRule)
	if err != nil {
		appLog.Error("ics: failed to parse RRULE", err, "uid", e.UID, "rrule", e.RawRRule)
		return nil
	}
	r.DTStart(e.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range e.ExDates {
		set.ExDate(ex.In(e.Start.Location()))
	}

	// Between is inclusive on both ends when inc is true; the upper bound is
	// filtered below to keep [from, to).
	times := set.Between(from.In(e.Start.Location()), to.In(e.Start.Location()), true)
	if len(times) > defaultMaxOccurrences {
		appLog.Error("ics: truncated recurring series", errors.New("max occurrences reached"), "uid", e.UID)
		times = times[:defaultMaxOccurrences]
	}

	dur := e.End.Sub(e.Start)
	out := make([]Occurrence, 0, len(times))
	for _, st := range times {
		if !st.Before(to) {
			continue
		}
		start, end := st, st.Add(dur)
		src := e
		if o, ok := findOverride(overrides, st); ok {
			start, end, src = o.Start, o.End, o
		}
		id := e.UID + "@" + st.UTC().Format("20060102T150405Z")
		out = append(out, occurrence(src, id, start, end, loc))
	}
	return out
}

func findOverride(overrides []Entry, start time.Time) (Entry, bool) {
	for _, o := range overrides {
		if o.Recurrence != nil && o.Recurrence.Equal(start) {
			return o, true
		}
	}
	return Entry{}, false
}

func occurrence(e Entry, identity string, start, end time.Time, loc *time.Location) Occurrence {
	return Occurrence{
		Identity: identity,
		UID:      e.UID,
		Summary:  e.Summary,
		Start:    start.In(loc),
		End:      end.In(loc),
	}
}

// overlaps treats [aStart, aEnd] as closed so zero-length deadlines at from
// are kept, and [from, to) as half open.
func overlaps(aStart, aEnd, from, to time.Time) bool {
	if aEnd.Before(from) {
		return false
	}
	return aStart.Before(to)
}
