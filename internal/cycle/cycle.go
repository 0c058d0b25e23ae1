// Package cycle groups a day's class sessions by lesson-cycle code so that
// parallel sub-groups of one lesson are shown as a single card.
package cycle

import (
	"unical/internal/model"
)

// Entry is either a group (more than one member sharing a cycle code) or a
// single session.
type Entry struct {
	Code    string                  `json:"code,omitempty"`
	Members []model.NormalizedEvent `json:"members"`
}

// IsGroup reports whether the entry merges several sessions.
func (e Entry) IsGroup() bool {
	return len(e.Members) > 1
}

// Representative returns the member whose fields are shown on the card.
// It is always the first member; no aggregate is computed.
func (e Entry) Representative() model.NormalizedEvent {
	return e.Members[0]
}

// IDs returns the member event IDs in order.
func (e Entry) IDs() []string {
	ids := make([]string, len(e.Members))
	for i, m := range e.Members {
		ids[i] = m.ID
	}
	return ids
}

// Eligible reports whether ev takes part in cycle grouping.
func Eligible(ev model.NormalizedEvent) bool {
	return ev.Type == model.TypeClassSession && !ev.IsLXP
}

// Partition splits class sessions into entries by cycle code. Sessions with
// no code or the "unknown" code are always single; a code seen once is
// single too. Entries are ordered by the position of their first member and
// members keep their input order, so the result is a pure function of the
// input sequence.
func Partition(events []model.NormalizedEvent) []Entry {
	counts := make(map[string]int)
	for _, ev := range events {
		if Eligible(ev) && ev.Groupable() {
			counts[ev.CycleCode]++
		}
	}

	var out []Entry
	pos := make(map[string]int)
	for _, ev := range events {
		if !Eligible(ev) {
			continue
		}
		if !ev.Groupable() || counts[ev.CycleCode] < 2 {
			out = append(out, Entry{Members: []model.NormalizedEvent{ev}})
			continue
		}
		if i, ok := pos[ev.CycleCode]; ok {
			out[i].Members = append(out[i].Members, ev)
			continue
		}
		pos[ev.CycleCode] = len(out)
		out = append(out, Entry{Code: ev.CycleCode, Members: []model.NormalizedEvent{ev}})
	}
	return out
}
