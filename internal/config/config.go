package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for a route export batch.
type Config struct {
	// Input and output locations
	VehiclesFile string
	DownloadDir  string
	LedgerDir    string

	// Browser session
	Headless    bool
	BrowserPath string
	UserDataDir string

	// Portal credentials
	Account  string
	Username string
	Password string

	// Optional YAML file overriding portal URLs, titles and selectors
	PortalProfile string

	// Bounded waits
	LoginTimeout    time.Duration
	HistoryTimeout  time.Duration
	DownloadTimeout time.Duration
	DownloadPoll    time.Duration

	// Batch policy
	FailFast bool

	// Logging
	LogLevel string
	LogFile  string

	// Optional NTFY endpoint for batch summaries
	NTFYEndpoint string
}

// Load reads configuration from environment variables and optional .env file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}

	cfg := &Config{
		VehiclesFile:    getEnvOrDefault("ROUTES_VEHICLES_FILE", "./vehicles_list.txt"),
		DownloadDir:     getEnvOrDefault("ROUTES_DOWNLOAD_DIR", "./downloads"),
		LedgerDir:       getEnvOrDefault("ROUTES_LEDGER_DIR", "./run_ledger"),
		Headless:        getEnvBoolOrDefault("ROUTES_HEADLESS", true),
		BrowserPath:     os.Getenv("ROUTES_BROWSER_PATH"),
		UserDataDir:     os.Getenv("ROUTES_USER_DATA_DIR"),
		Account:         os.Getenv("ROUTES_ACCOUNT"),
		Username:        os.Getenv("ROUTES_USERNAME"),
		Password:        os.Getenv("ROUTES_PASSWORD"),
		PortalProfile:   os.Getenv("ROUTES_PORTAL_PROFILE"),
		LoginTimeout:    getEnvDurationOrDefault("ROUTES_LOGIN_TIMEOUT", 30*time.Second),
		HistoryTimeout:  getEnvDurationOrDefault("ROUTES_HISTORY_TIMEOUT", 10*time.Second),
		DownloadTimeout: getEnvDurationOrDefault("ROUTES_DOWNLOAD_TIMEOUT", 30*time.Second),
		DownloadPoll:    getEnvDurationOrDefault("ROUTES_DOWNLOAD_POLL", 500*time.Millisecond),
		FailFast:        getEnvBoolOrDefault("ROUTES_FAIL_FAST", false),
		LogLevel:        strings.ToLower(getEnvOrDefault("ROUTES_LOG_LEVEL", "info")),
		LogFile:         getEnvOrDefault("ROUTES_LOG_FILE", "get_routes.log"),
		NTFYEndpoint:    os.Getenv("ROUTES_NTFY_ENDPOINT"),
	}

	return cfg, nil
}

// Validate checks the fields a batch cannot run without and makes the
// download directory absolute, which the browser download directive requires.
func (c *Config) Validate() error {
	var missing []string
	if c.Account == "" {
		missing = append(missing, "ROUTES_ACCOUNT")
	}
	if c.Username == "" {
		missing = append(missing, "ROUTES_USERNAME")
	}
	if c.Password == "" {
		missing = append(missing, "ROUTES_PASSWORD")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing credentials: %s", strings.Join(missing, ", "))
	}
	if strings.TrimSpace(c.DownloadDir) == "" {
		return fmt.Errorf("download directory is required")
	}
	abs, err := filepath.Abs(c.DownloadDir)
	if err != nil {
		return fmt.Errorf("resolve download directory %q: %w", c.DownloadDir, err)
	}
	c.DownloadDir = abs
	if c.HistoryTimeout <= 0 || c.LoginTimeout <= 0 || c.DownloadTimeout <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	if c.DownloadPoll <= 0 {
		c.DownloadPoll = 500 * time.Millisecond
	}
	return nil
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBoolOrDefault(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

// getEnvDurationOrDefault accepts Go duration strings ("10s") or a bare
// integer number of seconds.
func getEnvDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	if secs := getEnvIntOrDefault(key, -1); secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	return defaultVal
}
