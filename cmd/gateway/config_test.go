package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadConfig_Defaults(t *testing.T) {
	t.Setenv("LLM_API_KEY", "gsk_test")

	cfg, err := readConfig()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, 10, cfg.QuotaLimit)
	assert.Equal(t, 24*time.Hour, cfg.quotaWindow())
	assert.True(t, cfg.QuotaFailOpen)
	assert.Equal(t, quotaStoreRedis, cfg.QuotaStore)
	assert.Equal(t, "CF-Connecting-IP", cfg.ClientIPHeader)
	assert.Equal(t, "https://api.groq.com/openai/v1/", cfg.LLMBaseURL)
	assert.Equal(t, "llama-3.1-8b-instant", cfg.LLMModel)
	assert.InDelta(t, 0.5, cfg.LLMTemperature, 1e-9)
	assert.Equal(t, int64(150), cfg.LLMMaxTokens)
	assert.Equal(t, 30*time.Second, cfg.LLMTimeout)
	assert.True(t, cfg.RateEnabled)
	assert.Equal(t, 100, cfg.ConcurrencyMax)
	assert.True(t, cfg.needsRedis())
}

func TestReadConfig_Overrides(t *testing.T) {
	t.Setenv("LLM_API_KEY", "gsk_test")
	t.Setenv("QUOTA_LIMIT", "3")
	t.Setenv("QUOTA_WINDOW_HOURS", "0.5")
	t.Setenv("QUOTA_FAIL_OPEN", "false")
	t.Setenv("QUOTA_STORE", " Memory ")
	t.Setenv("ALLOWED_ORIGIN", "https://a.example.com, ,https://b.example.com")
	t.Setenv("LLM_TIMEOUT", "5s")

	cfg, err := readConfig()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.QuotaLimit)
	assert.Equal(t, 30*time.Minute, cfg.quotaWindow())
	assert.False(t, cfg.QuotaFailOpen)
	assert.Equal(t, quotaStoreMemory, cfg.QuotaStore)
	assert.False(t, cfg.needsRedis())
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.AllowedOrigins)
	assert.Equal(t, 5*time.Second, cfg.LLMTimeout)
}

func TestReadConfig_Invalid(t *testing.T) {
	cases := map[string]map[string]string{
		"missing api key":   {"LLM_API_KEY": ""},
		"zero limit":        {"QUOTA_LIMIT": "0"},
		"tiny window":       {"QUOTA_WINDOW_HOURS": "0.0001"},
		"unknown store":     {"QUOTA_STORE": "kv"},
		"redis without url": {"REDIS_URL": " "},
		"bad rps":           {"RATE_RPS": "0"},
		"bad burst":         {"RATE_BURST": "-1"},
		"negative conc":     {"CONCURRENCY_MAX": "-1"},
		"bad log level":     {"LOG_LEVEL": "loud"},
		"not a number":      {"QUOTA_LIMIT": "ten"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("LLM_API_KEY", "gsk_test")
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := readConfig()
			assert.Error(t, err)
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(file, []byte("LLM_API_KEY=from_dotenv\nQUOTA_LIMIT=7\n"), 0o600))

	t.Setenv("LLM_API_KEY", "")
	require.NoError(t, os.Unsetenv("LLM_API_KEY"))
	t.Setenv("QUOTA_LIMIT", "4")

	require.NoError(t, loadDotEnv(file))
	t.Cleanup(func() { _ = os.Unsetenv("LLM_API_KEY") })

	cfg, err := readConfig()
	require.NoError(t, err)
	assert.Equal(t, "from_dotenv", cfg.LLMAPIKey)
	assert.Equal(t, 4, cfg.QuotaLimit, "environment wins over .env")

	assert.NoError(t, loadDotEnv(filepath.Join(dir, "missing.env")))
}
