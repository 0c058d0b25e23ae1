package deadline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"unical/internal/model"
	"unical/internal/normalize"
	"unical/internal/tz"
	"unical/internal/week"
)

func TestAggregate(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Moscow")
	require.NoError(t, err)
	weekStart := time.Date(2024, 10, 14, 0, 0, 0, 0, loc)
	dates := week.Dates(weekStart)
	now := time.Date(2024, 10, 16, 12, 0, 0, 0, loc)

	due := func(id string, typ model.EventType, at time.Time) model.NormalizedEvent {
		return model.NormalizedEvent{ID: id, Type: typ, IsDeadline: typ.IsDeadline(), Start: at, End: at}
	}
	events := []model.NormalizedEvent{
		due("hw-late", model.TypeHomework, time.Date(2024, 10, 16, 23, 59, 0, 0, loc)),
		due("quiz-early", model.TypeQuiz, time.Date(2024, 10, 16, 9, 0, 0, 0, loc)),
		due("lms", model.TypeLMSItem, time.Date(2024, 10, 20, 23, 0, 0, 0, loc)),
		due("outside", model.TypeTest, time.Date(2024, 10, 21, 10, 0, 0, 0, loc)),
		due("lesson", model.TypeClassSession, time.Date(2024, 10, 16, 10, 0, 0, 0, loc)),
		{ID: "lxp", Type: model.TypeLMSItem, IsDeadline: true, IsLXP: true, Start: now, End: now},
	}

	got := Aggregate(events, dates[:], now)
	require.Len(t, got, 2)

	wed := got["2024-10-16"]
	require.Len(t, wed, 2)
	require.Equal(t, "quiz-early", wed[0].ID)
	require.True(t, wed[0].IsPast)
	require.Equal(t, "hw-late", wed[1].ID)
	require.False(t, wed[1].IsPast)

	require.Len(t, got["2024-10-20"], 1)
	require.NotContains(t, got, "2024-10-21")
}

func TestAggregateUsesViewerDay(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Yekaterinburg")
	require.NoError(t, err)
	n := tz.New(loc)
	weekStart := time.Date(2024, 10, 14, 0, 0, 0, 0, loc)

	// 20:30Z on Tuesday is 01:30 on Wednesday in UTC+5.
	p := &normalize.Payload{Provider: &normalize.ProviderSection{
		Homework: []normalize.RawItem{{ID: "1", Deadline: "2024-10-15T20:30:00Z"}},
	}}
	res := normalize.Normalize(p, n)
	dates := week.Dates(weekStart)

	got := Aggregate(res.Events, dates[:], weekStart)
	require.Contains(t, got, "2024-10-16")
}

func TestAggregateEmptySources(t *testing.T) {
	p, err := normalize.Decode([]byte(`{"provider": {"homework": []}}`))
	require.NoError(t, err)
	res := normalize.Normalize(p, tz.New(time.UTC))
	dates := week.Dates(time.Date(2024, 10, 14, 0, 0, 0, 0, time.UTC))

	got := Aggregate(res.Events, dates[:], time.Now())
	require.NotNil(t, got)
	require.Empty(t, got)
	require.Empty(t, Aggregate(nil, nil, time.Now()))
}
