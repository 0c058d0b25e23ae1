package cycle

import (
	"testing"

	"github.com/stretchr/testify/require"

	"unical/internal/model"
)

func session(id, code string) model.NormalizedEvent {
	return model.NormalizedEvent{
		ID:          id,
		Type:        model.TypeClassSession,
		Title:       "title " + id,
		TeacherName: "teacher " + id,
		CycleCode:   code,
	}
}

func memberIDs(entries []Entry) [][]string {
	out := make([][]string, len(entries))
	for i, e := range entries {
		out[i] = e.IDs()
	}
	return out
}

func TestPartition(t *testing.T) {
	events := []model.NormalizedEvent{
		session("a1", "ALG"),
		session("u1", ""),
		session("b1", "DB"),
		session("a2", "ALG"),
		session("u2", model.UnknownCycle),
		session("u3", model.UnknownCycle),
		{ID: "w", Type: model.TypeWebinar, CycleCode: "ALG"},
		{ID: "lxp", Type: model.TypeClassSession, CycleCode: "ALG", IsLXP: true},
	}

	entries := Partition(events)
	require.Equal(t, [][]string{{"a1", "a2"}, {"u1"}, {"b1"}, {"u2"}, {"u3"}}, memberIDs(entries))
	require.True(t, entries[0].IsGroup())
	require.Equal(t, "ALG", entries[0].Code)
	require.False(t, entries[2].IsGroup(), "a code seen once stays single")
	require.Equal(t, "", entries[2].Code)
	require.Equal(t, "a1", entries[0].Representative().ID)
}

func TestPartitionIsIdempotent(t *testing.T) {
	events := []model.NormalizedEvent{
		session("a1", "ALG"), session("b1", "DB"), session("a2", "ALG"), session("b2", "DB"), session("c", ""),
	}
	first := Partition(events)
	second := Partition(events)
	require.Equal(t, memberIDs(first), memberIDs(second))
	require.Equal(t, [][]string{{"a1", "a2"}, {"b1", "b2"}, {"c"}}, memberIDs(first))
}

func TestGroupLinkPropagation(t *testing.T) {
	events := []model.NormalizedEvent{session("a1", "ALG"), session("a2", "ALG"), session("a3", "ALG"), session("x", "")}
	b := NewBoard(events, nil)

	require.NoError(t, b.SetGroupLink("ALG", " https://meet.example/alg "))
	for _, id := range []string{"a1", "a2", "a3"} {
		require.Equal(t, "https://meet.example/alg", b.Link(id))
	}
	require.Equal(t, "", b.Link("x"))
	require.Equal(t, "https://meet.example/alg", b.GroupLink("ALG"))

	require.ErrorIs(t, b.SetGroupLink("NOPE", "u"), ErrUnknown)
	require.ErrorIs(t, b.SetLink("ghost", "u"), ErrUnknown)

	links := b.Links()
	require.Len(t, links, 3)
	links["a1"] = "changed"
	require.Equal(t, "https://meet.example/alg", b.Link("a1"))
}

func TestToggleDoesNotTouchLinks(t *testing.T) {
	events := []model.NormalizedEvent{session("a1", "ALG"), session("a2", "ALG")}
	b := NewBoard(events, map[string]string{"a1": "https://stored/1"})

	require.False(t, b.Expanded("ALG"))
	cards := b.Cards()
	require.Len(t, cards, 1)
	require.True(t, cards[0].Group)
	require.False(t, cards[0].Expanded)
	require.Equal(t, "https://stored/1", cards[0].Link)
	require.Empty(t, cards[0].Members)

	expanded, err := b.Toggle("ALG")
	require.NoError(t, err)
	require.True(t, expanded)

	require.NoError(t, b.SetLink("a2", "https://own/2"))
	cards = b.Cards()
	require.Len(t, cards[0].Members, 2)
	require.Equal(t, "https://stored/1", cards[0].Members[0].Link)
	require.True(t, cards[0].Members[0].HasStored)
	require.Equal(t, "https://own/2", cards[0].Members[1].Link)
	require.False(t, cards[0].Members[1].HasStored)

	expanded, err = b.Toggle("ALG")
	require.NoError(t, err)
	require.False(t, expanded)
	require.Equal(t, "https://own/2", b.Link("a2"))

	_, err = b.Toggle("x")
	require.Error(t, err)
}

func TestPendingChanges(t *testing.T) {
	events := []model.NormalizedEvent{session("a1", "ALG"), session("a2", "ALG"), session("s", "")}
	events[2].Link = "https://embedded"
	b := NewBoard(events, map[string]string{"a1": "https://same"})

	require.NoError(t, b.SetGroupLink("ALG", "https://same"))
	require.Equal(t, []Change{
		{EventID: "a2", URL: "https://same"},
		{EventID: "s", URL: "https://embedded"},
	}, b.Pending())

	b.MarkStored("a2", "https://same")
	b.MarkStored("s", "https://embedded")
	require.Empty(t, b.Pending())
}

func TestClearedStoredLinkIsPending(t *testing.T) {
	events := []model.NormalizedEvent{session("a1", "ALG"), session("a2", "ALG"), session("s", "")}
	b := NewBoard(events, map[string]string{"a1": "https://old", "a2": "https://old"})
	require.Empty(t, b.Pending())

	require.NoError(t, b.SetLink("a1", "  "))
	require.NoError(t, b.SetLink("s", ""))
	require.Equal(t, []Change{{EventID: "a1", URL: ""}}, b.Pending())

	b.MarkStored("a1", "")
	require.False(t, b.HasStoredLink("a1"))
	require.True(t, b.HasStoredLink("a2"))
	require.Empty(t, b.Pending())
}
