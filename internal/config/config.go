package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds everything the server reads from the environment. Rooms live
// only in process memory, so there is no storage section here.
type Config struct {
	Addr            string
	DefaultQuestion string
	DefaultOptions  []string
	VoteSeconds     int
	EmptyRoomGrace  time.Duration
	DevLog          bool
}

func Load() *Config {
	return &Config{
		Addr:            getEnv("ADDR", ":3001"),
		DefaultQuestion: getEnv("DEFAULT_QUESTION", "Cats vs Dogs?"),
		DefaultOptions:  splitList(getEnv("DEFAULT_OPTIONS", "cats,dogs")),
		VoteSeconds:     getEnvInt("VOTE_SECONDS", 60),
		EmptyRoomGrace:  time.Duration(getEnvInt("EMPTY_ROOM_GRACE_SECONDS", 60)) * time.Second,
		DevLog:          getEnv("LOG_DEV", "") == "1",
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return defaultValue
	}
	return n
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
