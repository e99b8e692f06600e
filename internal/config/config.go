// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Config holds the application configuration.
type Config struct {
	TelegramBotToken string
	DatabasePath     string
	LogLevel         string
	LogFormat        string
	AllowedUsers     []int64
	ListingsFeedURL  string
	CheckInterval    time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	feedURL := os.Getenv("LISTINGS_FEED_URL")
	if feedURL == "" {
		return nil, fmt.Errorf("LISTINGS_FEED_URL is required")
	}

	logFormat := strings.ToLower(envOrDefault("LOG_FORMAT", "text"))
	if !slices.Contains([]string{"text", "json", "tint"}, logFormat) {
		return nil, fmt.Errorf("invalid LOG_FORMAT %q, use: text, json, tint", logFormat)
	}

	interval := 15
	if raw := os.Getenv("CHECK_INTERVAL_MINUTES"); raw != "" {
		mins, err := strconv.Atoi(raw)
		if err != nil || mins < 1 || mins > 1440 {
			return nil, fmt.Errorf("CHECK_INTERVAL_MINUTES must be between 1 and 1440, got %q", raw)
		}
		interval = mins
	}

	var allowedUsers []int64
	if raw := os.Getenv("ALLOWED_USERS"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			uid, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid user ID %q in ALLOWED_USERS: %w", s, err)
			}
			allowedUsers = append(allowedUsers, uid)
		}
	}

	return &Config{
		TelegramBotToken: token,
		DatabasePath:     envOrDefault("DATABASE_PATH", "./data/bot.db"),
		LogLevel:         envOrDefault("LOG_LEVEL", "info"),
		LogFormat:        logFormat,
		AllowedUsers:     allowedUsers,
		ListingsFeedURL:  feedURL,
		CheckInterval:    time.Duration(interval) * time.Minute,
	}, nil
}

// IsUserAllowed checks whether a user ID is in the allow list.
// Returns true if the allow list is empty (all users permitted).
func (c *Config) IsUserAllowed(userID int64) bool {
	if len(c.AllowedUsers) == 0 {
		return true
	}
	return slices.Contains(c.AllowedUsers, userID)
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
