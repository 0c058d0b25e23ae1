package ics

import (
	"sort"
	"time"
)

// Identities reads a calendar file and returns the identity of every
// occurrence inside [from, to).
func Identities(body []byte, from, to time.Time, loc *time.Location) ([]string, error) {
	entries, err := Parse(body)
	if err != nil {
		return nil, err
	}
	occs, err := Expand(entries, from, to, loc)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(occs))
	for i, o := range occs {
		ids[i] = o.Identity
	}
	return ids, nil
}

// Diff is the structural difference between two identity sets.
type Diff struct {
	Missing    []string `json:"missing,omitempty"`
	Unexpected []string `json:"unexpected,omitempty"`
	Duplicates []string `json:"duplicates,omitempty"`
}

// OK reports whether both sides hold exactly the same identities once.
func (d Diff) OK() bool {
	return len(d.Missing) == 0 && len(d.Unexpected) == 0 && len(d.Duplicates) == 0
}

// Compare checks got against want. Output slices are sorted.
func Compare(want, got []string) Diff {
	var d Diff
	wantSet := make(map[string]bool, len(want))
	for _, id := range want {
		wantSet[id] = true
	}
	gotCount := make(map[string]int, len(got))
	for _, id := range got {
		gotCount[id]++
	}

	for id := range wantSet {
		if gotCount[id] == 0 {
			d.Missing = append(d.Missing, id)
		}
	}
	for id, n := range gotCount {
		if !wantSet[id] {
			d.Unexpected = append(d.Unexpected, id)
		}
		if n > 1 {
			d.Duplicates = append(d.Duplicates, id)
		}
	}
	sort.Strings(d.Missing)
	sort.Strings(d.Unexpected)
	sort.Strings(d.Duplicates)
	return d
}
