package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	// ModeBatch runs one aggregation pass, writes the export files and exits.
	ModeBatch = "batch"
	// ModeServe keeps a refresh worker running and serves rollups over HTTP.
	ModeServe = "serve"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Mode        string
	Environment string
	LogLevel    string

	HTTPAddr        string
	RefreshInterval time.Duration

	OutputDir    string
	TaxonomyFile string

	// Years and Institutions narrow the aggregation window; empty means all.
	Years        []int
	Institutions []string

	// ExcludedUserIDs and ExcludedInstitutions name the internal test accounts
	// dropped from every run. An empty list is a configuration error, not a
	// request to report on internal traffic.
	ExcludedUserIDs      []int64
	ExcludedInstitutions []string

	// DBBootstrap creates the platform-shaped tables on startup so local and
	// self-hosted environments work against an empty database.
	DBBootstrap bool

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:     getenv("APP_SERVICE", "usagestats"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Mode:        normalizeMode(getenv("APP_MODE", ModeBatch)),
		Environment: getenv("ENVIRONMENT", "development"),
		LogLevel:    getenv("LOG_LEVEL", "info"),

		HTTPAddr:        getenv("HTTP_ADDR", ":8080"),
		RefreshInterval: getenvDuration("REFRESH_INTERVAL", time.Hour),

		OutputDir:    getenv("OUTPUT_DIR", "out"),
		TaxonomyFile: getenv("TAXONOMY_FILE", ""),

		Years:        getenvInts("FILTER_YEARS"),
		Institutions: getenvList("FILTER_INSTITUTIONS", ";"),

		ExcludedUserIDs:      getenvInt64s("EXCLUDED_USER_IDS", defaultExcludedUserIDs),
		ExcludedInstitutions: getenvListDefault("EXCLUDED_INSTITUTIONS", ";", defaultExcludedInstitutions),

		DBBootstrap: getenvBool("DATABASE_BOOTSTRAP", false),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "postgres"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 2),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 10),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 3600),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 600),
	}

	return cfg
}

// The platform's internal test accounts. These never appear in any rollup.
var defaultExcludedUserIDs = []int64{1178, 1922, 367, 274, 594, 896, 904}

var defaultExcludedInstitutions = []string{
	"EUROFIDAI",
	"administrateur Drupal",
	"probesys2 probesys",
}

// Validate rejects configurations that would silently produce wrong reports.
func (c Config) Validate() error {
	if c.Mode != ModeBatch && c.Mode != ModeServe {
		return fmt.Errorf("invalid APP_MODE %q: must be %q or %q", c.Mode, ModeBatch, ModeServe)
	}
	if len(c.ExcludedUserIDs) == 0 {
		return fmt.Errorf("EXCLUDED_USER_IDS is empty: refusing to aggregate internal traffic")
	}
	if len(c.ExcludedInstitutions) == 0 {
		return fmt.Errorf("EXCLUDED_INSTITUTIONS is empty: refusing to aggregate internal traffic")
	}
	if c.RefreshInterval <= 0 {
		return fmt.Errorf("REFRESH_INTERVAL must be positive, got %s", c.RefreshInterval)
	}
	return nil
}

func (c Config) IsServe() bool {
	return c.Mode == ModeServe
}

func normalizeMode(raw string) string {
	value := strings.ToLower(strings.TrimSpace(raw))
	switch value {
	case ModeServe:
		return ModeServe
	case ModeBatch, "":
		return ModeBatch
	default:
		return value
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}

// getenvInts parses a comma-separated list of integers, skipping blanks.
func getenvInts(key string) []int {
	var out []int
	for _, part := range strings.Split(os.Getenv(key), ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.Atoi(part)
		if err != nil {
			continue
		}
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}

func getenvInt64s(key string, def []int64) []int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	var out []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, v)
	}
	return out
}

// getenvList splits on sep; institution names can contain commas and spaces,
// so the separator is a semicolon there.
func getenvList(key, sep string) []string {
	return splitList(os.Getenv(key), sep)
}

func getenvListDefault(key, sep string, def []string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	return splitList(raw, sep)
}

func splitList(raw, sep string) []string {
	var out []string
	for _, part := range strings.Split(raw, sep) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
