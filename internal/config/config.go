package config

import (
	"os"
	"strconv"
	"strings"
)

// Config holds process configuration, read from environment variables.
type Config struct {
	// DatabaseURL selects the storage backend. Empty means a local
	// sqlite file (db.sqlite3). postgres:// URLs go through lib/pq.
	DatabaseURL string

	// RedisAddr enables the Redis-backed session store when set.
	// Empty means sessions live in process memory.
	RedisAddr string

	HTTPPort   string
	SurveyFile string
	ImagesDir  string

	// AdminToken guards the export/debug REST endpoints. Empty disables them.
	AdminToken string

	// Entry coordinate of the survey.
	StartModule   string
	StartQuestion int

	// Option texts that may not be combined with any other selection
	// in a multi-select, and option texts that require a free-text
	// follow-up ("other" variants).
	ExclusiveOptions []string
	OtherOptions     []string

	LogLevel string
}

func Load() *Config {
	return &Config{
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		RedisAddr:        os.Getenv("REDIS_ADDR"),
		HTTPPort:         getEnv("HTTP_PORT", "8080"),
		SurveyFile:       getEnv("SURVEY_FILE", "data/ovz.json"),
		ImagesDir:        getEnv("IMAGES_DIR", "data/images"),
		AdminToken:       os.Getenv("ADMIN_TOKEN"),
		StartModule:      getEnv("START_MODULE", "modul_1"),
		StartQuestion:    getEnvInt("START_QUESTION", 1),
		ExclusiveOptions: getEnvList("EXCLUSIVE_OPTIONS", []string{"Не готов"}),
		OtherOptions:     getEnvList("OTHER_OPTIONS", []string{"Другое"}),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvList(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
