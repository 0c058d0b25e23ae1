// Package ics writes the week's events as an iCalendar file and reads
// exported files back to check that no event was lost or duplicated.
package ics

import (
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"unical/internal/model"
)

const (
	productID  = "-//unical//Weekly Schedule//RU"
	propType   = "X-UNICAL-TYPE"
	propSource = "X-UNICAL-SOURCE"
)

// Encode renders one VEVENT per event with UID = event ID.
func Encode(events []model.NormalizedEvent, stamp time.Time) []byte {
	cal := ical.NewCalendar()
	cal.SetProductId(productID)
	cal.SetMethod(ical.MethodPublish)

	for _, ev := range events {
		ve := cal.AddEvent(ev.ID)
		ve.SetDtStampTime(stamp.UTC())
		ve.SetStartAt(ev.Start.UTC())
		ve.SetEndAt(ev.End.UTC())
		ve.SetSummary(ev.Title)
		if d := description(ev); d != "" {
			ve.SetDescription(d)
		}
		if ev.Link != "" {
			ve.SetURL(ev.Link)
		}
		ve.AddProperty(ical.ComponentProperty(propType), string(ev.Type))
		ve.AddProperty(ical.ComponentProperty(propSource), string(ev.Source))
	}
	return []byte(cal.Serialize())
}

func description(ev model.NormalizedEvent) string {
	var parts []string
	if ev.CourseName != "" && ev.CourseName != ev.Title {
		parts = append(parts, ev.CourseName)
	}
	if ev.CycleName != "" {
		parts = append(parts, ev.CycleName)
	}
	if ev.TeacherName != "" {
		parts = append(parts, ev.TeacherName)
	}
	return strings.Join(parts, "; ")
}
