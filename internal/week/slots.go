package week

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SlotCount is the number of fixed daily lesson slots in the desktop grid.
const SlotCount = 6

const minutesPerDay = 24 * 60

// ClockSlot is a canonical slot defined as wall-clock times in the
// university's own zone.
type ClockSlot struct {
	Start string `yaml:"start" json:"start"` // "HH:MM"
	End   string `yaml:"end" json:"end"`     // "HH:MM"
}

// DefaultClockSlots are the six standard lesson slots.
var DefaultClockSlots = []ClockSlot{
	{Start: "08:00", End: "09:30"},
	{Start: "09:50", End: "11:20"},
	{Start: "11:40", End: "13:10"},
	{Start: "13:45", End: "15:15"},
	{Start: "15:35", End: "17:05"},
	{Start: "17:25", End: "18:55"},
}

// Slot is a canonical slot converted into the viewer's zone, expressed as
// minutes since local midnight. A slot that crosses midnight after the
// conversion has EndMin past 1440.
type Slot struct {
	Index    int `json:"index"`
	StartMin int `json:"start_min"`
	EndMin   int `json:"end_min"`
}

// Label renders the slot as "HH:MM–HH:MM".
func (s Slot) Label() string {
	return clock(s.StartMin) + "–" + clock(s.EndMin)
}

// MarshalJSON adds the rendered label next to the minute bounds.
func (s Slot) MarshalJSON() ([]byte, error) {
	type plain Slot
	return json.Marshal(struct {
		plain
		Label string `json:"label"`
	}{plain(s), s.Label()})
}

// Slots converts canonical clock slots defined in canonical into the
// viewer zone. The conversion happens once, using ref's calendar day as the
// reference date for the zone offsets.
func Slots(defs []ClockSlot, canonical, viewer *time.Location, ref time.Time) ([]Slot, error) {
	if canonical == nil {
		canonical = time.UTC
	}
	if viewer == nil {
		viewer = time.UTC
	}
	ref = ref.In(canonical)

	out := make([]Slot, 0, len(defs))
	for i, d := range defs {
		sh, sm, err := parseClock(d.Start)
		if err != nil {
			return nil, fmt.Errorf("slot %d start: %w", i, err)
		}
		eh, em, err := parseClock(d.End)
		if err != nil {
			return nil, fmt.Errorf("slot %d end: %w", i, err)
		}
		start := time.Date(ref.Year(), ref.Month(), ref.Day(), sh, sm, 0, 0, canonical).In(viewer)
		end := time.Date(ref.Year(), ref.Month(), ref.Day(), eh, em, 0, 0, canonical).In(viewer)
		startMin := minuteOfDay(start)
		out = append(out, Slot{
			Index:    i,
			StartMin: startMin,
			EndMin:   startMin + int(end.Sub(start)/time.Minute),
		})
	}
	return out, nil
}

// ValidateClockSlots checks that every slot parses and ends after it starts.
func ValidateClockSlots(defs []ClockSlot) error {
	for i, d := range defs {
		sh, sm, err := parseClock(d.Start)
		if err != nil {
			return fmt.Errorf("slot %d start: %w", i, err)
		}
		eh, em, err := parseClock(d.End)
		if err != nil {
			return fmt.Errorf("slot %d end: %w", i, err)
		}
		if eh*60+em <= sh*60+sm {
			return fmt.Errorf("slot %d ends before it starts", i)
		}
	}
	return nil
}

func parseClock(s string) (int, int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid clock %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h, m, nil
}

func minuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

func clock(min int) string {
	min %= minutesPerDay
	return fmt.Sprintf("%02d:%02d", min/60, min%60)
}
