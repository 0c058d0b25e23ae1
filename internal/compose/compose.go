// Package compose renders a single day's class sessions as a broadcast
// message ready to be pasted into a messenger.
package compose

import (
	"fmt"
	"strings"
	"time"

	"unical/internal/model"
	"unical/internal/week"
)

const (
	IconLecture = "📚"
	IconOther   = "✏️"
	IconLXP     = "💻"

	// NoEvents is the whole message when the day has no sessions.
	NoEvents = "На этот день занятий нет."

	defaultSessionName = "Занятие"
)

// Legend maps every icon to its meaning.
var Legend = []string{
	IconLecture + " — лекция",
	IconOther + " — практика, семинар и другие занятия",
	IconLXP + " — LXP",
}

// IsLecture reports whether a cycle name denotes a lecture.
func IsLecture(cycleName string) bool {
	n := strings.ToLower(cycleName)
	return strings.Contains(n, "лекц") || strings.Contains(n, "lecture")
}

// Icon picks the line icon for a cycle name.
func Icon(cycleName string) string {
	if IsLecture(cycleName) {
		return IconLecture
	}
	return IconOther
}

// Compose renders the broadcast message for date. Class sessions
// attributed to date (03:00 rule) form the regular lines. Every LXP-flagged
// item of date goes to a separate section whatever its type; deadline items
// count on their deadline day. links maps event IDs to meeting URLs and wins
// over a link embedded in the event.
func Compose(date time.Time, events []model.NormalizedEvent, links map[string]string) string {
	var sessions []model.NormalizedEvent
	for _, ev := range events {
		if ev.Type == model.TypeClassSession && !ev.IsLXP {
			sessions = append(sessions, ev)
		}
	}
	regular := week.ForDay(sessions, date)
	lxp := lxpForDay(events, date)

	if len(regular) == 0 && len(lxp) == 0 {
		return NoEvents
	}

	var b strings.Builder
	b.WriteString(header(date))
	b.WriteString("\n")

	for _, ln := range Lines(regular) {
		b.WriteString("\n")
		b.WriteString(renderLine(ln))
		if urls := lineLinks(ln, links); len(urls) > 0 {
			b.WriteString("\n")
			b.WriteString(strings.Join(urls, " "))
		}
	}

	if len(lxp) > 0 {
		if len(regular) > 0 {
			b.WriteString("\n")
		}
		b.WriteString("\n" + IconLXP + " LXP:")
		for _, ev := range lxp {
			b.WriteString("\n• " + sessionName(ev) + " — " + courseLabel(ev))
		}
	}

	b.WriteString("\n")
	for _, l := range Legend {
		b.WriteString("\n" + l)
	}
	return b.String()
}

// Lines groups sessions into message lines. Sessions are sorted by start,
// grouped by cycle instance id, and a group of several sessions is split
// further by (course, cycle name); each resulting bucket is one line.
// Sessions without a cycle id are always a line of their own.
func Lines(sessions []model.NormalizedEvent) [][]model.NormalizedEvent {
	sorted := append([]model.NormalizedEvent(nil), sessions...)
	week.SortByStart(sorted)

	var groups [][]model.NormalizedEvent
	pos := make(map[string]int)
	for _, ev := range sorted {
		if ev.CycleID == "" {
			groups = append(groups, []model.NormalizedEvent{ev})
			continue
		}
		if i, ok := pos[ev.CycleID]; ok {
			groups[i] = append(groups[i], ev)
			continue
		}
		pos[ev.CycleID] = len(groups)
		groups = append(groups, []model.NormalizedEvent{ev})
	}

	var out [][]model.NormalizedEvent
	for _, g := range groups {
		if len(g) == 1 {
			out = append(out, g)
			continue
		}
		out = append(out, splitByCourse(g)...)
	}
	return out
}

type courseKey struct {
	course string
	name   string
}

func splitByCourse(group []model.NormalizedEvent) [][]model.NormalizedEvent {
	var out [][]model.NormalizedEvent
	pos := make(map[courseKey]int)
	for _, ev := range group {
		k := courseKey{course: ev.CourseName, name: ev.CycleName}
		if i, ok := pos[k]; ok {
			out[i] = append(out[i], ev)
			continue
		}
		pos[k] = len(out)
		out = append(out, []model.NormalizedEvent{ev})
	}
	return out
}

func renderLine(ln []model.NormalizedEvent) string {
	rep := ln[0]

	var times, teachers []string
	seenTime := make(map[string]bool)
	seenTeacher := make(map[string]bool)
	for _, ev := range ln {
		t := ev.Start.Format("15:04")
		if !seenTime[t] {
			seenTime[t] = true
			times = append(times, t)
		}
		if strings.TrimSpace(ev.TeacherName) == "" {
			continue
		}
		name := AbbreviateTeacher(ev.TeacherName)
		if !seenTeacher[name] {
			seenTeacher[name] = true
			teachers = append(teachers, name)
		}
	}

	label := courseLabel(rep)
	if rep.CycleName != "" {
		label += " (" + rep.CycleName + ")"
	}
	return fmt.Sprintf("%s %s — %s, %s", Icon(rep.CycleName), strings.Join(times, " и "), label, attribution(teachers))
}

func lineLinks(ln []model.NormalizedEvent, links map[string]string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, ev := range ln {
		url := strings.TrimSpace(links[ev.ID])
		if url == "" {
			url = strings.TrimSpace(ev.Link)
		}
		if url == "" || seen[url] {
			continue
		}
		seen[url] = true
		out = append(out, url)
	}
	return out
}

// lxpForDay returns the LXP-flagged items of date, sorted by start.
func lxpForDay(events []model.NormalizedEvent, date time.Time) []model.NormalizedEvent {
	var out []model.NormalizedEvent
	for _, ev := range events {
		if !ev.IsLXP {
			continue
		}
		day := week.AttributedDate(ev.Start)
		if ev.IsDeadline {
			day = ev.Start
		}
		if week.Offset(date, day) != 0 {
			continue
		}
		out = append(out, ev)
	}
	week.SortByStart(out)
	return out
}

func courseLabel(ev model.NormalizedEvent) string {
	if ev.CourseName != "" {
		return ev.CourseName
	}
	return ev.Title
}

func sessionName(ev model.NormalizedEvent) string {
	if ev.CycleName != "" {
		return ev.CycleName
	}
	return defaultSessionName
}

func header(date time.Time) string {
	return fmt.Sprintf("Расписание на %s, %d %s:",
		weekdaysRu[date.Weekday()], date.Day(), monthsGenitiveRu[date.Month()-1])
}
