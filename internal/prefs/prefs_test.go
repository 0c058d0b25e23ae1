package prefs

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	require.True(t, Bool(ctx, s, KeyDeadlinesVisible, true), "deadlines row is on by default")

	require.NoError(t, SetBool(ctx, s, KeyDeadlinesVisible, false))
	require.NoError(t, s.Set(ctx, KeyTheme, "dark"))
	require.NoError(t, s.Set(ctx, KeyTokenUniversity, "tok-a"))
	require.NoError(t, s.Set(ctx, KeyCalendarID, "cal-1"))

	v, ok, err := s.Get(ctx, KeyTokenUniversity)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "tok-a", v)

	require.NoError(t, s.ClearExcept(ctx, Preserved))

	_, ok, err = s.Get(ctx, KeyTokenUniversity)
	require.NoError(t, err)
	require.False(t, ok)
	_, ok, err = s.Get(ctx, KeyCalendarID)
	require.NoError(t, err)
	require.False(t, ok)

	require.False(t, Bool(ctx, s, KeyDeadlinesVisible, true))
	theme, ok, err := s.Get(ctx, KeyTheme)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "dark", theme)

	_, ok, err = s.Get(ctx, KeyGithubPromptSeen)
	require.NoError(t, err)
	require.False(t, ok, "unset preserved keys are not invented")
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	// A key outside the prefix must survive a clear.
	require.NoError(t, client.Set(context.Background(), "other:key", "x", 0).Err())

	exerciseStore(t, NewRedisStore(client, ""))

	v, err := client.Get(context.Background(), "other:key").Result()
	require.NoError(t, err)
	require.Equal(t, "x", v)
	require.True(t, mr.Exists("unical:prefs:theme"))
}

func TestBoolIgnoresGarbage(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Set(ctx, KeyDeadlinesVisible, "maybe"))
	require.True(t, Bool(ctx, s, KeyDeadlinesVisible, true))
}
