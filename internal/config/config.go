package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"jira-dashboard/internal/jira"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Jira     jira.Config
	JQL      string
	DataPath string
	LogDir   string
	CacheDir string
	DBPath   string

	// HistoryFile, when set, serves items and logs from a JSONL fixture instead of Jira.
	HistoryFile string

	TaxonomyFile string
	BaselineFile string
	TeamMembers  []string

	BatchDelay     time.Duration
	BatchChunkSize int
	ItemListTTL    time.Duration
	RecentWeekDays int
}

// Load loads the configuration from .env files and environment variables.
func Load() (*AppConfig, error) {
	// 1. Try to load from the executable's directory (highest priority for MCP servers)
	exePath, err := os.Executable()
	exeDir := ""
	if err == nil {
		exeDir = filepath.Dir(exePath)
		envPath := filepath.Join(exeDir, ".env")
		if err := godotenv.Load(envPath); err == nil {
			log.Debug().Str("path", envPath).Msg("Loaded configuration from binary directory")
		}
	}

	// 2. Fallback to current working directory (useful for development/go run)
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found in working directory, relying on environment variables or binary-relative .env")
	}

	// 3. Resolve Data Paths
	dataPath := os.Getenv("DATA_PATH")
	if dataPath == "" {
		if exeDir != "" {
			dataPath = exeDir
		} else {
			dataPath = "."
		}
	}

	logDir := filepath.Join(dataPath, "logs")
	cacheDir := filepath.Join(dataPath, "cache")

	// Ensure directories exist
	if err := os.MkdirAll(logDir, 0755); err != nil {
		log.Warn().Err(err).Str("path", logDir).Msg("Failed to create log directory")
	}
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		log.Warn().Err(err).Str("path", cacheDir).Msg("Failed to create cache directory")
	}

	cfg := &AppConfig{
		Jira: jira.Config{
			BaseURL:      getEnv("JIRA_URL", ""),
			XsrfToken:    getEnv("JIRA_XSRF_TOKEN", ""),
			SessionID:    getEnv("JIRA_SESSION_ID", ""),
			RememberMe:   getEnv("JIRA_REMEMBERME_COOKIE", ""),
			Token:        getEnv("JIRA_TOKEN", ""),
			GCILB:        getEnv("JIRA_GCILB", ""),
			GCLB:         getEnv("JIRA_GCLB", ""),
			RequestDelay: time.Duration(getEnvInt("JIRA_REQUEST_DELAY_SECONDS", 2)) * time.Second,
			Fields: jira.FieldMap{
				HealthID:            getEnv("JIRA_HEALTH_FIELD", ""),
				HealthName:          getEnv("JIRA_HEALTH_FIELD_NAME", "Health"),
				ComplexityID:        getEnv("JIRA_COMPLEXITY_FIELD", ""),
				ArchivedID:          getEnv("JIRA_ARCHIVED_FIELD", ""),
				ArchivedDateID:      getEnv("JIRA_ARCHIVED_DATE_FIELD", ""),
				ArchivedStatusNames: getEnvList("JIRA_ARCHIVED_STATUSES", []string{"Archived"}),
			},
		},
		JQL:            getEnv("JIRA_JQL", ""),
		DataPath:       dataPath,
		LogDir:         logDir,
		CacheDir:       cacheDir,
		DBPath:         getEnv("DB_PATH", filepath.Join(dataPath, "jira-dashboard.db")),
		HistoryFile:    getEnv("HISTORY_FILE", ""),
		TaxonomyFile:   getEnv("TAXONOMY_FILE", ""),
		BaselineFile:   getEnv("BASELINE_FILE", ""),
		TeamMembers:    getEnvList("TEAM_MEMBERS", nil),
		BatchDelay:     time.Duration(getEnvInt("BATCH_DELAY_MS", 500)) * time.Millisecond,
		BatchChunkSize: getEnvInt("BATCH_CHUNK_SIZE", 50),
		ItemListTTL:    time.Duration(getEnvInt("ITEM_LIST_TTL_SECONDS", 300)) * time.Second,
		RecentWeekDays: getEnvInt("RECENT_WEEK_DAYS", 14),
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return n
		}
		log.Warn().Str("key", key).Str("value", value).Msg("Ignoring non-numeric setting")
	}
	return fallback
}

// getEnvList splits a comma-separated value, dropping blanks.
func getEnvList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
