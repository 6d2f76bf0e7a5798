package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"reviewdash/internal"
)

type Config struct {
	DBPath     string
	ArchiveDir string
	InboxDir   string
	OutputDir  string

	ReviewedMarkers      []string
	PlaceholderImageBase string
	DisplayTimezone      string

	ListenerIntervalSec int
	ListenerBatch       int
	ListenerAutoExport  bool
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		DBPath:     getEnv("DB_PATH", filepath.Join(cwd, "data", "app.db")),
		ArchiveDir: getEnv("ARCHIVE_DIR", filepath.Join(cwd, "data", "raw")),
		InboxDir:   getEnv("INBOX_DIR", filepath.Join(cwd, "data", "inbox")),
		OutputDir:  getEnv("OUTPUT_DIR", filepath.Join(cwd, "out")),

		ReviewedMarkers:      getEnvList("REVIEWED_MARKERS", []string{internal.ReviewedMarker, internal.ReviewedMarkerEN}),
		PlaceholderImageBase: getEnv("PLACEHOLDER_IMAGE_BASE", "https://picsum.photos/800/600"),
		DisplayTimezone:      getEnv("DISPLAY_TIMEZONE", "UTC"),

		ListenerIntervalSec: getEnvInt("LISTENER_INTERVAL_SEC", 30),
		ListenerBatch:       getEnvInt("LISTENER_BATCH", 20),
		ListenerAutoExport:  getEnvBool("LISTENER_AUTO_EXPORT", true),
	}

	return cfg, nil
}

// Location resolves DisplayTimezone, falling back to UTC when unknown.
func (c Config) Location() *time.Location {
	name := strings.TrimSpace(c.DisplayTimezone)
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required env var: %s", name)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(key, "")))
	if value == "" {
		return fallback
	}
	if value == "1" || value == "true" || value == "yes" || value == "on" {
		return true
	}
	if value == "0" || value == "false" || value == "no" || value == "off" {
		return false
	}
	return fallback
}

// getEnvList splits a "|"-separated value. Commas are not separators since
// the English reviewed marker contains one.
func getEnvList(key string, fallback []string) []string {
	value := getEnv(key, "")
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	out := []string{}
	for _, part := range strings.Split(value, "|") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
