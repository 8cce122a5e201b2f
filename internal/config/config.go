package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"idemat/internal"
)

type Config struct {
	WorkbookPath string
	Sheets       []string
	DBPath       string
	OutputDir    string
	TableCache   bool

	HeaderRows        int
	IDColumns         int
	HeaderSeparator   string
	PlaceholderPrefix string

	CategoryColumn string
	ProcessColumn  string
	UnitColumn     string

	MissingProcessPolicy internal.MissingProcessPolicy

	HTTPAddr         string
	WatchIntervalSec int

	LogLevel  string
	LogFormat string
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		WorkbookPath: getEnv("IDEMAT_WORKBOOK", filepath.Join(cwd, "Idemat_2024-V1-2.xlsx")),
		Sheets:       getEnvList("IDEMAT_SHEETS", []string{"Idemat2024", "Idemat2024 midpoints"}),
		DBPath:       getEnv("DB_PATH", filepath.Join(cwd, "data", "app.db")),
		OutputDir:    getEnv("OUTPUT_DIR", filepath.Join(cwd, "out")),
		TableCache:   getEnvBool("TABLE_CACHE", true),

		HeaderRows:        getEnvInt("HEADER_ROWS", 3),
		IDColumns:         getEnvInt("ID_COLUMNS", 3),
		HeaderSeparator:   getEnv("HEADER_SEPARATOR", "_"),
		PlaceholderPrefix: getEnv("PLACEHOLDER_PREFIX", "Unnamed"),

		CategoryColumn: getEnv("COLUMN_CATEGORY", "Category"),
		ProcessColumn:  getEnv("COLUMN_PROCESS", "Process"),
		UnitColumn:     getEnv("COLUMN_UNIT", "unit"),

		MissingProcessPolicy: parsePolicy(getEnv("MISSING_PROCESS_POLICY", "")),

		HTTPAddr:         getEnv("HTTP_ADDR", ":8080"),
		WatchIntervalSec: getEnvInt("WATCH_INTERVAL_SEC", 60),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.HeaderRows < 1 {
		return fmt.Errorf("HEADER_ROWS must be positive, got %d", c.HeaderRows)
	}
	if c.IDColumns < 0 {
		return fmt.Errorf("ID_COLUMNS must not be negative, got %d", c.IDColumns)
	}
	switch c.MissingProcessPolicy {
	case internal.MissingProcessFail, internal.MissingProcessSkip:
	default:
		return fmt.Errorf("unsupported MISSING_PROCESS_POLICY: %s", c.MissingProcessPolicy)
	}
	return nil
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required env var: %s", name)
	}
	return nil
}

// ReservedColumns lists the columns pickers and lookups depend on.
func (c Config) ReservedColumns() []string {
	return []string{c.CategoryColumn, c.ProcessColumn, c.UnitColumn}
}

func parsePolicy(value string) internal.MissingProcessPolicy {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return internal.MissingProcessFail
	}
	return internal.MissingProcessPolicy(value)
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

// getEnvList splits a comma separated value; sheet names may contain spaces
// so only surrounding whitespace is trimmed.
func getEnvList(key string, fallback []string) []string {
	value := getEnv(key, "")
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	out := []string{}
	for _, part := range strings.Split(value, ",") {
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
