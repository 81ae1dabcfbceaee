package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	require.Equal(t, ":3001", cfg.Addr)
	require.Equal(t, "Cats vs Dogs?", cfg.DefaultQuestion)
	require.Equal(t, []string{"cats", "dogs"}, cfg.DefaultOptions)
	require.Equal(t, 60, cfg.VoteSeconds)
	require.Equal(t, time.Minute, cfg.EmptyRoomGrace)
	require.False(t, cfg.DevLog)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("ADDR", ":9000")
	t.Setenv("DEFAULT_QUESTION", "Tabs vs Spaces?")
	t.Setenv("DEFAULT_OPTIONS", "tabs, spaces ,both")
	t.Setenv("VOTE_SECONDS", "30")
	t.Setenv("EMPTY_ROOM_GRACE_SECONDS", "5")
	t.Setenv("LOG_DEV", "1")

	cfg := Load()

	require.Equal(t, ":9000", cfg.Addr)
	require.Equal(t, "Tabs vs Spaces?", cfg.DefaultQuestion)
	require.Equal(t, []string{"tabs", "spaces", "both"}, cfg.DefaultOptions)
	require.Equal(t, 30, cfg.VoteSeconds)
	require.Equal(t, 5*time.Second, cfg.EmptyRoomGrace)
	require.True(t, cfg.DevLog)
}

func TestLoad_BadIntFallsBack(t *testing.T) {
	t.Setenv("VOTE_SECONDS", "not-a-number")
	t.Setenv("EMPTY_ROOM_GRACE_SECONDS", "-3")

	cfg := Load()

	require.Equal(t, 60, cfg.VoteSeconds)
	require.Equal(t, time.Minute, cfg.EmptyRoomGrace)
}
