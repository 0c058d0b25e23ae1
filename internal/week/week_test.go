package week

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"unical/internal/model"
)

func at(t *testing.T, loc *time.Location, s string) time.Time {
	t.Helper()
	v, err := time.ParseInLocation("2006-01-02 15:04", s, loc)
	require.NoError(t, err)
	return v
}

func lesson(id string, start, end time.Time) model.NormalizedEvent {
	return model.NormalizedEvent{ID: id, Type: model.TypeClassSession, Start: start, End: end}
}

func TestDayIndexMondayZero(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Moscow")
	require.NoError(t, err)

	monday := at(t, loc, "2024-10-14 00:00")
	require.Equal(t, 0, DayIndex(monday))
	require.Equal(t, 6, DayIndex(at(t, loc, "2024-10-20 23:59")))

	for i := 0; i < 14; i++ {
		d := DayIndex(monday.AddDate(0, 0, i))
		require.GreaterOrEqual(t, d, 0)
		require.LessOrEqual(t, d, 6)
		require.Equal(t, i%7, d)
	}

	require.Equal(t, monday, StartOf(at(t, loc, "2024-10-17 15:00")))
	require.Equal(t, monday, StartOf(monday))
	require.Equal(t, monday, StartOf(at(t, loc, "2024-10-20 23:00")))
}

func TestSlotsConvertedToViewerZone(t *testing.T) {
	canonical, err := time.LoadLocation("Asia/Yekaterinburg")
	require.NoError(t, err)
	viewer, err := time.LoadLocation("Europe/Moscow")
	require.NoError(t, err)

	slots, err := Slots(DefaultClockSlots, canonical, viewer, at(t, viewer, "2024-10-14 00:00"))
	require.NoError(t, err)
	require.Len(t, slots, SlotCount)
	require.Equal(t, "06:00–07:30", slots[0].Label())
	require.Equal(t, 5, slots[5].Index)

	_, err = Slots([]ClockSlot{{Start: "8am", End: "09:30"}}, canonical, viewer, time.Now())
	require.Error(t, err)
	require.Error(t, ValidateClockSlots([]ClockSlot{{Start: "10:00", End: "09:30"}}))
	require.NoError(t, ValidateClockSlots(DefaultClockSlots))
}

func TestMatches(t *testing.T) {
	s := Slot{StartMin: 9*60 + 50, EndMin: 11*60 + 20}
	day := time.Date(2024, 10, 14, 0, 0, 0, 0, time.UTC)
	hm := func(h, m int) time.Time { return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute) }

	require.True(t, Matches(lesson("a", hm(9, 50), hm(12, 0)), s), "same start")
	require.True(t, Matches(lesson("b", hm(9, 0), hm(11, 20)), s), "same end")
	require.True(t, Matches(lesson("c", hm(10, 0), hm(11, 0)), s), "inside")
	require.False(t, Matches(lesson("d", hm(8, 0), hm(9, 30)), s))
	require.False(t, Matches(lesson("e", hm(11, 0), hm(12, 0)), s))
}

func TestSlotCrossingMidnight(t *testing.T) {
	canonical := time.FixedZone("UTC+5", 5*3600)
	viewer := time.FixedZone("UTC+6", 6*3600)

	slots, err := Slots([]ClockSlot{{Start: "22:30", End: "23:40"}}, canonical, viewer, at(t, viewer, "2024-10-14 00:00"))
	require.NoError(t, err)
	s := slots[0]
	require.Equal(t, 23*60+30, s.StartMin)
	require.Equal(t, 24*60+40, s.EndMin)
	require.Equal(t, "23:30–00:40", s.Label())

	require.True(t, Matches(lesson("same", at(t, viewer, "2024-10-14 23:30"), at(t, viewer, "2024-10-15 00:40")), s))
	require.True(t, Matches(lesson("inside", at(t, viewer, "2024-10-14 23:45"), at(t, viewer, "2024-10-15 00:30")), s))
	require.False(t, Matches(lesson("after", at(t, viewer, "2024-10-15 00:00"), at(t, viewer, "2024-10-15 00:30")), s))

	body, err := json.Marshal(s)
	require.NoError(t, err)
	require.JSONEq(t, `{"index": 0, "start_min": 1410, "end_min": 1480, "label": "23:30–00:40"}`, string(body))
}

func TestGridFirstMatchWins(t *testing.T) {
	loc := time.UTC
	weekStart := at(t, loc, "2024-10-14 00:00")
	slots, err := Slots(DefaultClockSlots, loc, loc, weekStart)
	require.NoError(t, err)

	events := []model.NormalizedEvent{
		lesson("first", at(t, loc, "2024-10-15 08:00"), at(t, loc, "2024-10-15 09:30")),
		lesson("second", at(t, loc, "2024-10-15 08:00"), at(t, loc, "2024-10-15 09:30")),
		{ID: "deadline", Type: model.TypeQuiz, IsDeadline: true, Start: at(t, loc, "2024-10-15 08:00"), End: at(t, loc, "2024-10-15 08:00")},
		{ID: "lxp", Type: model.TypeClassSession, IsLXP: true, Start: at(t, loc, "2024-10-16 08:00"), End: at(t, loc, "2024-10-16 09:30")},
		lesson("next-week", at(t, loc, "2024-10-21 08:00"), at(t, loc, "2024-10-21 09:30")),
	}

	g := BuildGrid(events, weekStart, slots)
	ev, ok := g.Cell(1, 0)
	require.True(t, ok)
	require.Equal(t, "first", ev.ID)

	_, ok = g.Cell(2, 0)
	require.False(t, ok, "LXP sessions stay out of the grid")
	_, ok = g.Cell(0, 0)
	require.False(t, ok)
	_, ok = g.Cell(7, 0)
	require.False(t, ok)
	_, ok = g.Cell(1, SlotCount)
	require.False(t, ok)
}

func TestEarlyMorningRule(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Moscow")
	require.NoError(t, err)
	weekStart := at(t, loc, "2024-10-14 00:00")

	late := lesson("late", at(t, loc, "2024-10-15 00:30"), at(t, loc, "2024-10-15 01:30"))
	events := []model.NormalizedEvent{late}

	list := BuildList(events, weekStart)
	require.Len(t, list[0], 1, "list view attributes 00:30 Tuesday to Monday")
	require.Empty(t, list[1])

	slots := []Slot{{Index: 0, StartMin: 30, EndMin: 90}}
	g := BuildGrid(events, weekStart, slots)
	ev, ok := g.Cell(1, 0)
	require.True(t, ok, "grid uses the literal calendar day")
	require.Equal(t, "late", ev.ID)

	require.Len(t, ForDay(events, at(t, loc, "2024-10-14 00:00")), 1)
	require.Empty(t, ForDay(events, at(t, loc, "2024-10-15 00:00")))
}

func TestEarlyMondayFallsOutOfWeekInList(t *testing.T) {
	loc := time.UTC
	weekStart := at(t, loc, "2024-10-14 00:00")
	events := []model.NormalizedEvent{lesson("x", at(t, loc, "2024-10-14 01:00"), at(t, loc, "2024-10-14 02:00"))}

	list := BuildList(events, weekStart)
	for d := range list {
		require.Empty(t, list[d])
	}
}

func TestListSortedByStart(t *testing.T) {
	loc := time.UTC
	weekStart := at(t, loc, "2024-10-14 00:00")
	events := []model.NormalizedEvent{
		lesson("c", at(t, loc, "2024-10-16 15:00"), at(t, loc, "2024-10-16 16:00")),
		lesson("a", at(t, loc, "2024-10-16 09:00"), at(t, loc, "2024-10-16 10:00")),
		lesson("b", at(t, loc, "2024-10-16 12:00"), at(t, loc, "2024-10-16 13:00")),
	}
	list := BuildList(events, weekStart)
	require.Len(t, list[2], 3)
	require.Equal(t, []string{"a", "b", "c"}, []string{list[2][0].ID, list[2][1].ID, list[2][2].ID})
}

func TestOffsetAcrossDST(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	weekStart := at(t, loc, "2024-10-21 00:00")
	require.Equal(t, 6, Offset(weekStart, at(t, loc, "2024-10-27 23:00")))
	require.Equal(t, 7, Offset(weekStart, at(t, loc, "2024-10-28 00:30")))
}
