package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	ResultStorePlaceholder = "placeholder"
	ResultStoreSupabase    = "supabase"
)

type Config struct {
	// Supabase
	SupabaseURL            string
	SupabasePublishableKey string
	SupabaseJWTSecret      string
	SupabaseStorageBucket  string

	// Database
	DatabaseURL string
	SeedFile    string

	// Jobs
	ResultStore       string
	JobProcessingTime time.Duration
	JobRetention      time.Duration
	SubmitRatePerMin  int
	SubmitBurst       int

	// Server
	Port           string
	Environment    string
	BaseURL        string
	AllowedOrigins []string
	LogLevel       string
}

// ClientConfig drives the evolv CLI.
type ClientConfig struct {
	APIBaseURL   string
	AccessToken  string
	PageSize     int
	PollInterval time.Duration
	Timeout      time.Duration
	SessionFile  string

	SupabaseURL            string
	SupabasePublishableKey string

	LogLevel string
}

// Load reads the server configuration. A .env file in the working directory
// is applied first; real environment variables win over it.
func Load() (*Config, error) {
	loadDotEnv()

	cfg := &Config{
		SupabaseURL:            getEnv("SUPABASE_URL", ""),
		SupabasePublishableKey: getEnv("SUPABASE_PUBLISHABLE_KEY", ""),
		SupabaseJWTSecret:      getEnv("SUPABASE_JWT_SECRET", ""),
		SupabaseStorageBucket:  getEnv("SUPABASE_STORAGE_BUCKET", "evolutions"),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		SeedFile:    getEnv("SEED_FILE", ""),

		ResultStore:       getEnv("RESULT_STORE", ResultStorePlaceholder),
		JobProcessingTime: getDuration("JOB_PROCESSING_TIME", 1500*time.Millisecond),
		JobRetention:      getDuration("JOB_RETENTION", 10*time.Minute),
		SubmitRatePerMin:  getInt("SUBMIT_RATE_PER_MIN", 10),
		SubmitBurst:       getInt("SUBMIT_BURST", 3),

		Port:           getEnv("PORT", "8080"),
		Environment:    getEnv("ENVIRONMENT", "development"),
		BaseURL:        getEnv("BASE_URL", "http://localhost:8080"),
		AllowedOrigins: getList("ALLOWED_ORIGINS", []string{"http://localhost:5173", "http://localhost:8080"}),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.SupabaseJWTSecret == "" {
		return fmt.Errorf("SUPABASE_JWT_SECRET is required")
	}
	switch c.ResultStore {
	case ResultStorePlaceholder:
	case ResultStoreSupabase:
		if c.SupabaseURL == "" {
			return fmt.Errorf("SUPABASE_URL is required when RESULT_STORE=supabase")
		}
		if c.SupabasePublishableKey == "" {
			return fmt.Errorf("SUPABASE_PUBLISHABLE_KEY is required when RESULT_STORE=supabase")
		}
	default:
		return fmt.Errorf("RESULT_STORE must be %q or %q, got %q", ResultStorePlaceholder, ResultStoreSupabase, c.ResultStore)
	}
	if c.JobProcessingTime <= 0 {
		return fmt.Errorf("JOB_PROCESSING_TIME must be positive")
	}
	if c.SubmitRatePerMin <= 0 || c.SubmitBurst <= 0 {
		return fmt.Errorf("SUBMIT_RATE_PER_MIN and SUBMIT_BURST must be positive")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// LoadClient reads the CLI configuration.
func LoadClient() (*ClientConfig, error) {
	loadDotEnv()

	cfg := &ClientConfig{
		APIBaseURL:   getEnv("EVOLV_API_URL", "http://localhost:8080/api/v1"),
		AccessToken:  getEnv("EVOLV_TOKEN", ""),
		PageSize:     getInt("EVOLV_PAGE_SIZE", 12),
		PollInterval: getDuration("EVOLV_POLL_INTERVAL", time.Second),
		Timeout:      getDuration("EVOLV_TIMEOUT", 2*time.Minute),
		SessionFile:  getEnv("EVOLV_SESSION_FILE", defaultSessionFile()),

		SupabaseURL:            getEnv("SUPABASE_URL", ""),
		SupabasePublishableKey: getEnv("SUPABASE_PUBLISHABLE_KEY", ""),

		LogLevel: getEnv("LOG_LEVEL", "warn"),
	}

	if cfg.APIBaseURL == "" {
		return nil, fmt.Errorf("invalid configuration: EVOLV_API_URL is required")
	}
	if cfg.PageSize <= 0 {
		return nil, fmt.Errorf("invalid configuration: EVOLV_PAGE_SIZE must be positive")
	}
	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("invalid configuration: EVOLV_POLL_INTERVAL must be positive")
	}

	return cfg, nil
}

// defaultSessionFile is empty when the platform has no config directory,
// which disables session persistence.
func defaultSessionFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "evolv", "session.yaml")
}

func loadDotEnv() {
	// Missing .env is the normal case outside local development.
	_ = godotenv.Load()
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}

func getList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
