// Package deadline collects deadline-bearing items into per-day buckets,
// independent of the lesson-slot grid.
package deadline

import (
	"sort"
	"time"

	"unical/internal/model"
	"unical/internal/tz"
)

// Item is a deadline annotated with its past/future state.
type Item struct {
	model.NormalizedEvent
	IsPast bool `json:"is_past"`
}

// Aggregate maps each of the given dates (YYYY-MM-DD in the dates' zone) to
// the deadlines falling on it. Days without deadlines are absent from the
// map. Within a day items are ordered by deadline, ties by input order.
// LXP-flagged items are left out.
func Aggregate(events []model.NormalizedEvent, dates []time.Time, now time.Time) map[string][]Item {
	out := make(map[string][]Item)
	if len(dates) == 0 {
		return out
	}

	loc := dates[0].Location()
	wanted := make(map[string]struct{}, len(dates))
	for _, d := range dates {
		wanted[tz.DateKey(d.In(loc))] = struct{}{}
	}

	for _, ev := range events {
		if !ev.IsDeadline || ev.IsLXP {
			continue
		}
		key := tz.DateKey(ev.Start.In(loc))
		if _, ok := wanted[key]; !ok {
			continue
		}
		out[key] = append(out[key], Item{
			NormalizedEvent: ev,
			IsPast:          ev.Start.Before(now),
		})
	}

	for key := range out {
		items := out[key]
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].Start.Before(items[j].Start)
		})
	}
	return out
}
