// Package config loads server settings from the environment (and an optional .env file).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/vntrieu/impostor/internal/games"
)

// DevTokenSecret is used when WEBSOCKET_TOKEN_SECRET is unset.
const DevTokenSecret = "dev-secret-change-in-production"

// Config holds every runtime setting.
type Config struct {
	HTTPAddr           string
	DatabaseURL        string
	TokenSecret        []byte
	TelegramToken      string
	CORSAllowedOrigins []string
	RateLimitPerMinute int
	Timings            games.Timings

	// OwnerID may ban, unban and set XP. 0 disables owner commands.
	OwnerID int64
	// RankedRoomIDs are the rooms allowed to run ranked matches.
	RankedRoomIDs []int64
}

// Load reads .env if present, then the environment.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv.
func FromEnv(getenv func(string) string) (Config, error) {
	get := func(key, def string) string {
		if v := getenv(key); v != "" {
			return v
		}
		return def
	}

	cfg := Config{
		HTTPAddr:      get("IMPOSTOR_HTTP_ADDR", ":8080"),
		DatabaseURL:   getenv("DATABASE_URL"),
		TokenSecret:   []byte(get("WEBSOCKET_TOKEN_SECRET", DevTokenSecret)),
		TelegramToken: getenv("TELEGRAM_BOT_TOKEN"),
	}
	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL environment variable is required")
	}

	for _, o := range strings.Split(get("CORS_ALLOWED_ORIGINS", "*"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, o)
		}
	}

	var err error
	if cfg.RateLimitPerMinute, err = intVar(getenv, "RATE_LIMIT_PER_MINUTE", 20); err != nil {
		return Config{}, err
	}

	if v := getenv("BOT_OWNER_ID"); v != "" {
		if cfg.OwnerID, err = strconv.ParseInt(strings.TrimSpace(v), 10, 64); err != nil {
			return Config{}, fmt.Errorf("BOT_OWNER_ID: invalid integer %q", v)
		}
	}
	for _, v := range strings.Split(getenv("RANKED_ROOM_IDS"), ",") {
		if v = strings.TrimSpace(v); v == "" {
			continue
		}
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("RANKED_ROOM_IDS: invalid room id %q", v)
		}
		cfg.RankedRoomIDs = append(cfg.RankedRoomIDs, id)
	}

	def := games.DefaultTimings()
	durations := []struct {
		key string
		def time.Duration
		dst *time.Duration
	}{
		{"LOBBY_SECONDS", def.Lobby, &cfg.Timings.Lobby},
		{"NIGHT_SECONDS", def.Night, &cfg.Timings.Night},
		{"DISCUSSION_SECONDS", def.Discussion, &cfg.Timings.Discussion},
		{"VOTING_SECONDS", def.Voting, &cfg.Timings.Voting},
		{"FIXER_SECONDS", def.FixerWindow, &cfg.Timings.FixerWindow},
	}
	for _, d := range durations {
		secs, err := intVar(getenv, d.key, int(d.def/time.Second))
		if err != nil {
			return Config{}, err
		}
		if secs <= 0 {
			return Config{}, fmt.Errorf("%s must be positive", d.key)
		}
		*d.dst = time.Duration(secs) * time.Second
	}

	return cfg, nil
}

func intVar(getenv func(string) string, key string, def int) (int, error) {
	v := getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q", key, v)
	}
	if n < 0 {
		return 0, fmt.Errorf("%s: must not be negative", key)
	}
	return n, nil
}
