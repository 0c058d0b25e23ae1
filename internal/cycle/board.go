package cycle

import (
	"errors"
	"fmt"
	"strings"

	"unical/internal/model"
)

// ErrUnknown is returned when an event ID or group code is not on the board.
var ErrUnknown = errors.New("cycle: unknown entry")

// Board holds the link-editing state for one day's entries: the current
// link per event, the values last persisted, and which groups are expanded.
// A Board is not safe for concurrent use.
type Board struct {
	entries  []Entry
	byCode   map[string]int
	members  map[string]struct{}
	links    map[string]string
	stored   map[string]string
	expanded map[string]bool
}

// NewBoard builds a board for events. stored carries links already kept by
// the link store; they take precedence over links embedded in the events.
func NewBoard(events []model.NormalizedEvent, stored map[string]string) *Board {
	b := &Board{
		entries:  Partition(events),
		byCode:   make(map[string]int),
		members:  make(map[string]struct{}),
		links:    make(map[string]string),
		stored:   make(map[string]string),
		expanded: make(map[string]bool),
	}
	for i, e := range b.entries {
		if e.IsGroup() {
			b.byCode[e.Code] = i
		}
		for _, m := range e.Members {
			b.members[m.ID] = struct{}{}
			if url, ok := stored[m.ID]; ok && url != "" {
				b.links[m.ID] = url
				b.stored[m.ID] = url
				continue
			}
			if m.Link != "" {
				b.links[m.ID] = m.Link
			}
		}
	}
	return b
}

// Link returns the current link of an event.
func (b *Board) Link(id string) string {
	return b.links[id]
}

// Links returns a copy of every non-empty current link keyed by event ID.
func (b *Board) Links() map[string]string {
	out := make(map[string]string, len(b.links))
	for id, url := range b.links {
		if url != "" {
			out[id] = url
		}
	}
	return out
}

// HasStoredLink reports whether the link store already holds a link for id.
func (b *Board) HasStoredLink(id string) bool {
	_, ok := b.stored[id]
	return ok
}

// GroupLink returns the value shown in a collapsed group's shared input,
// taken from the first member.
func (b *Board) GroupLink(code string) string {
	i, ok := b.byCode[code]
	if !ok {
		return ""
	}
	return b.links[b.entries[i].Members[0].ID]
}

// SetLink edits the link of a single event.
func (b *Board) SetLink(id, url string) error {
	if _, ok := b.members[id]; !ok {
		return fmt.Errorf("%w: event %q", ErrUnknown, id)
	}
	b.links[id] = strings.TrimSpace(url)
	return nil
}

// SetGroupLink writes url to every member of the group with code.
func (b *Board) SetGroupLink(code, url string) error {
	i, ok := b.byCode[code]
	if !ok {
		return fmt.Errorf("%w: group %q", ErrUnknown, code)
	}
	url = strings.TrimSpace(url)
	for _, m := range b.entries[i].Members {
		b.links[m.ID] = url
	}
	return nil
}

// Toggle flips a group between collapsed and expanded display and returns
// the new state. Links are not touched.
func (b *Board) Toggle(code string) (bool, error) {
	if _, ok := b.byCode[code]; !ok {
		return false, fmt.Errorf("%w: group %q", ErrUnknown, code)
	}
	b.expanded[code] = !b.expanded[code]
	return b.expanded[code], nil
}

// Expanded reports whether a group is shown member by member.
func (b *Board) Expanded(code string) bool {
	return b.expanded[code]
}

// Change is a link value that differs from what the link store holds.
type Change struct {
	EventID string `json:"event_id"`
	URL     string `json:"url"`
}

// Pending lists links that differ from the stored values, in entry/member
// order. A link cleared to "" is a change only when the store holds one.
func (b *Board) Pending() []Change {
	var out []Change
	for _, e := range b.entries {
		for _, id := range e.IDs() {
			url := b.links[id]
			if url == b.stored[id] {
				continue
			}
			out = append(out, Change{EventID: id, URL: url})
		}
	}
	return out
}

// MarkStored records that id's link was persisted with url. An empty url
// means the stored link was removed.
func (b *Board) MarkStored(id, url string) {
	if url == "" {
		delete(b.stored, id)
		return
	}
	b.stored[id] = url
}

// Card is the display model of one entry.
type Card struct {
	Code      string       `json:"code,omitempty"`
	Group     bool         `json:"group"`
	Expanded  bool         `json:"expanded"`
	Title     string       `json:"title"`
	Teacher   string       `json:"teacher,omitempty"`
	Course    string       `json:"course,omitempty"`
	Visual    string       `json:"visual"`
	Link      string       `json:"link,omitempty"`
	HasStored bool         `json:"has_stored"`
	Members   []MemberCard `json:"members,omitempty"`
}

// MemberCard is one session inside an expanded group.
type MemberCard struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Teacher   string `json:"teacher,omitempty"`
	Link      string `json:"link,omitempty"`
	HasStored bool   `json:"has_stored"`
}

// Cards renders the board. Collapsed groups expose one shared link; expanded
// groups list every member with its own link.
func (b *Board) Cards() []Card {
	out := make([]Card, 0, len(b.entries))
	for _, e := range b.entries {
		rep := e.Representative()
		c := Card{
			Code:    e.Code,
			Group:   e.IsGroup(),
			Title:   rep.Title,
			Teacher: rep.TeacherName,
			Course:  rep.CourseName,
			Visual:  rep.Type.Visual(),
		}
		if !c.Group {
			c.Link = b.links[rep.ID]
			c.HasStored = b.HasStoredLink(rep.ID)
			out = append(out, c)
			continue
		}
		c.Expanded = b.expanded[e.Code]
		if !c.Expanded {
			c.Link = b.GroupLink(e.Code)
			c.HasStored = b.HasStoredLink(rep.ID)
			out = append(out, c)
			continue
		}
		for _, m := range e.Members {
			c.Members = append(c.Members, MemberCard{
				ID:        m.ID,
				Title:     m.Title,
				Teacher:   m.TeacherName,
				Link:      b.links[m.ID],
				HasStored: b.HasStoredLink(m.ID),
			})
		}
		out = append(out, c)
	}
	return out
}
