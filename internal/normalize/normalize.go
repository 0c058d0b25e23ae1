// Package normalize maps the per-platform upstream item shapes into
// model.NormalizedEvent. It is a pure transform: nothing here performs I/O,
// and malformed items are reported as Skipped instead of failing the batch.
package normalize

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	appLog "unical/internal/log"
	"unical/internal/model"
	"unical/internal/tz"
)

// Untitled is the placeholder title when no name field is present.
const Untitled = "Без названия"

// Skipped records an upstream item that could not be placed in time.
type Skipped struct {
	Source model.Source
	Type   model.EventType
	ID     string
	Reason string
}

// Result is the output of a normalization pass.
type Result struct {
	Events  []model.NormalizedEvent
	Skipped []Skipped
}

// collection ties one upstream array to its source and variant.
type collection struct {
	source model.Source
	typ    model.EventType
	items  []RawItem
}

// Normalize converts a bulk-events payload into normalized events with
// times rendered in n's zone. Output order follows the collection order
// (class sessions, webinars, quizzes, tasks, tests, homework, LMS items)
// and, within a collection, the upstream array order.
func Normalize(p *Payload, n *tz.Normalizer) Result {
	var res Result
	if p == nil {
		return res
	}

	for _, c := range collections(p) {
		for i, item := range c.items {
			ev, err := normalizeItem(c.source, c.typ, i, item, n)
			if err != nil {
				res.Skipped = append(res.Skipped, Skipped{
					Source: c.source,
					Type:   c.typ,
					ID:     ev.ID,
					Reason: err.Error(),
				})
				appLog.Debug("normalize: skipped item", "id", ev.ID, "reason", err.Error())
				continue
			}
			res.Events = append(res.Events, ev)
		}
	}
	return res
}

func collections(p *Payload) []collection {
	var out []collection
	if u := p.University; u != nil {
		out = append(out, collection{model.SourceUniversity, model.TypeClassSession, u.ClassSessions})
	}
	if pr := p.Provider; pr != nil {
		out = append(out,
			collection{model.SourceProvider, model.TypeWebinar, pr.Webinars},
			collection{model.SourceProvider, model.TypeQuiz, pr.Quizzes},
			collection{model.SourceProvider, model.TypeTask, pr.Tasks},
			collection{model.SourceProvider, model.TypeTest, pr.Tests},
			collection{model.SourceProvider, model.TypeHomework, pr.Homework},
		)
	}
	if l := p.LMS; l != nil {
		out = append(out, collection{model.SourceLMS, model.TypeLMSItem, l.Events})
	}
	return out
}

// normalizeItem dispatches to the variant-specific mapping. The returned
// event always has its ID set, even on error, so callers can report it.
func normalizeItem(src model.Source, typ model.EventType, idx int, item RawItem, n *tz.Normalizer) (model.NormalizedEvent, error) {
	ev := common(src, typ, idx, item)

	var err error
	switch typ {
	case model.TypeClassSession:
		err = classSession(&ev, item, n)
	case model.TypeWebinar:
		err = webinar(&ev, item, n)
	case model.TypeQuiz, model.TypeTask, model.TypeTest:
		err = graded(&ev, item, n)
	case model.TypeHomework:
		err = homework(&ev, item, n)
	case model.TypeLMSItem:
		err = lmsItem(&ev, item, n)
	default:
		err = fmt.Errorf("unsupported event type %q", typ)
	}
	return ev, err
}

// common fills the fields every variant shares.
func common(src model.Source, typ model.EventType, idx int, item RawItem) model.NormalizedEvent {
	upstream := strings.TrimSpace(item.ID.String())
	if upstream == "" {
		upstream = "#" + strconv.Itoa(idx)
	}
	return model.NormalizedEvent{
		ID:          EventID(src, typ, upstream),
		UpstreamID:  upstream,
		Type:        typ,
		Source:      src,
		Title:       Title(item),
		IsDeadline:  typ.IsDeadline(),
		TeacherName: strings.TrimSpace(item.TeacherFullName),
		CourseName:  strings.TrimSpace(item.CourseName),
		Link:        firstNonEmpty(item.Link, item.URL),
		Module:      strings.TrimSpace(item.ModName),
		Completed:   item.Passed || item.IsCompleted,
		IsLXP:       item.IsLXP,
	}
}

// EventID builds the source-qualified identifier of an upstream item.
func EventID(src model.Source, typ model.EventType, upstream string) string {
	return string(src) + ":" + string(typ) + ":" + upstream
}

// Title applies the fixed precedence name > title > block_title > course_name.
func Title(item RawItem) string {
	if t := firstNonEmpty(item.Name, item.Title, item.BlockTitle, item.CourseName); t != "" {
		return t
	}
	return Untitled
}

func classSession(ev *model.NormalizedEvent, item RawItem, n *tz.Normalizer) error {
	if c := item.Cycle; c != nil {
		ev.CycleID = strings.TrimSpace(c.ID.String())
		ev.CycleCode = strings.TrimSpace(c.Code)
		ev.CycleName = strings.TrimSpace(c.Name)
	}
	return interval(ev, item, n)
}

func webinar(ev *model.NormalizedEvent, item RawItem, n *tz.Normalizer) error {
	return interval(ev, item, n)
}

func graded(ev *model.NormalizedEvent, item RawItem, n *tz.Normalizer) error {
	return dueBy(ev, n, item.Deadline, item.DtEnd, item.EndsAt)
}

func homework(ev *model.NormalizedEvent, item RawItem, n *tz.Normalizer) error {
	return dueBy(ev, n, item.Deadline, item.DtEnd, item.EndsAt)
}

func lmsItem(ev *model.NormalizedEvent, item RawItem, n *tz.Normalizer) error {
	return dueBy(ev, n, item.Deadline, item.DtEnd, item.EndsAt, item.Start, item.StartsAt)
}

// interval resolves a scheduled start/end pair. A missing end collapses to
// the start, and an end before the start is clamped to it.
func interval(ev *model.NormalizedEvent, item RawItem, n *tz.Normalizer) error {
	start, err := n.ToLocal(firstNonEmpty(item.Start.String(), item.StartsAt.String()))
	if err != nil {
		return fmt.Errorf("start: %w", err)
	}

	end := start
	if raw := firstNonEmpty(item.End.String(), item.EndsAt.String()); raw != "" {
		end, err = n.ToLocal(raw)
		if err != nil {
			return fmt.Errorf("end: %w", err)
		}
	}
	if end.Before(start) {
		end = start
	}

	ev.Start = start
	ev.End = end
	return nil
}

// dueBy resolves a deadline from the first non-empty candidate field.
func dueBy(ev *model.NormalizedEvent, n *tz.Normalizer, candidates ...FlexString) error {
	raw := ""
	for _, c := range candidates {
		if s := strings.TrimSpace(c.String()); s != "" {
			raw = s
			break
		}
	}
	at, err := n.ToLocal(raw)
	if err != nil {
		return fmt.Errorf("deadline: %w", err)
	}
	ev.Start = at
	ev.End = at
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

// Window drops events that do not touch [from, to).
func Window(events []model.NormalizedEvent, from, to time.Time) []model.NormalizedEvent {
	out := make([]model.NormalizedEvent, 0, len(events))
	for _, ev := range events {
		if ev.End.Before(from) || !ev.Start.Before(to) {
			continue
		}
		out = append(out, ev)
	}
	return out
}
