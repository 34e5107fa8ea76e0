package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evolv/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SUPABASE_JWT_SECRET", "test-secret")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, config.ResultStorePlaceholder, cfg.ResultStore)
	assert.Equal(t, 1500*time.Millisecond, cfg.JobProcessingTime)
	assert.Equal(t, "evolutions", cfg.SupabaseStorageBucket)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_MissingJWTSecret(t *testing.T) {
	t.Setenv("SUPABASE_JWT_SECRET", "")

	_, err := config.Load()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "SUPABASE_JWT_SECRET is required")
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("SUPABASE_JWT_SECRET", "test-secret")
	t.Setenv("JOB_PROCESSING_TIME", "3s")
	t.Setenv("SUBMIT_BURST", "7")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 3*time.Second, cfg.JobProcessingTime)
	assert.Equal(t, 7, cfg.SubmitBurst)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
}

func TestValidate_SupabaseResultStore(t *testing.T) {
	cfg := &config.Config{
		SupabaseJWTSecret: "test-secret",
		ResultStore:       config.ResultStoreSupabase,
		JobProcessingTime: time.Second,
		SubmitRatePerMin:  1,
		SubmitBurst:       1,
	}
	assert.ErrorContains(t, cfg.Validate(), "SUPABASE_URL is required")

	cfg.SupabaseURL = "https://project.supabase.co"
	cfg.SupabasePublishableKey = "key"
	assert.NoError(t, cfg.Validate())

	cfg.ResultStore = "s3"
	assert.ErrorContains(t, cfg.Validate(), "RESULT_STORE must be")
}

func TestLoadClient(t *testing.T) {
	t.Setenv("EVOLV_API_URL", "http://api.test/api/v1")
	t.Setenv("EVOLV_POLL_INTERVAL", "250ms")
	t.Setenv("EVOLV_SESSION_FILE", "/tmp/evolv-session.yaml")

	cfg, err := config.LoadClient()
	require.NoError(t, err)

	assert.Equal(t, "http://api.test/api/v1", cfg.APIBaseURL)
	assert.Equal(t, 250*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, 12, cfg.PageSize)
	assert.Equal(t, "/tmp/evolv-session.yaml", cfg.SessionFile)
}

func TestLoadClient_InvalidPageSize(t *testing.T) {
	t.Setenv("EVOLV_PAGE_SIZE", "0")

	_, err := config.LoadClient()
	assert.Error(t, err)
}
