package app

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.AppAddr)
	require.Equal(t, CacheBackendRedis, cfg.AnalyticsCacheBackend)
	require.Equal(t, VersionBackendRedis, cfg.AnalyticsVersionBackend)
	require.Equal(t, 2*time.Hour, cfg.AnalyticsTimeSeriesTTL)
	require.Equal(t, 6*time.Hour, cfg.AnalyticsBreakevenTTL)
	require.Equal(t, "retail_changes", cfg.AnalyticsListenChannel)
	require.True(t, cfg.AnalyticsWarmupOnBump)
	require.Equal(t, time.UTC, cfg.Location())
	require.True(t, cfg.NeedsRedis())
}

func TestLoadConfigTimezone(t *testing.T) {
	t.Setenv("APP_TIMEZONE", "Asia/Jakarta")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "Asia/Jakarta", cfg.Location().String())
}

func TestLoadConfigRejectsUnknownValues(t *testing.T) {
	cases := map[string]string{
		"APP_TIMEZONE":              "Mars/Olympus",
		"ANALYTICS_CACHE_BACKEND":   "memcached",
		"ANALYTICS_VERSION_BACKEND": "etcd",
		"ANALYTICS_TIMESERIES_TTL":  "0s",
	}
	for env, value := range cases {
		t.Run(env, func(t *testing.T) {
			t.Setenv(env, value)
			_, err := LoadConfig()
			require.Error(t, err)
		})
	}
}

func TestLoadConfigNormalisesBackends(t *testing.T) {
	t.Setenv("ANALYTICS_CACHE_BACKEND", " Memory ")
	t.Setenv("ANALYTICS_VERSION_BACKEND", "LOCAL")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, CacheBackendMemory, cfg.AnalyticsCacheBackend)
	require.Equal(t, VersionBackendLocal, cfg.AnalyticsVersionBackend)
	require.False(t, cfg.NeedsRedis())
}

func TestNilConfigHelpers(t *testing.T) {
	var cfg *Config
	require.False(t, cfg.IsProduction())
	require.False(t, cfg.NeedsRedis())
	require.Equal(t, time.UTC, cfg.Location())
}

func TestNewLoggerFormatAndLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&Config{LogFormat: "json", LogLevel: "warn"}, &buf)
	logger.Info("dropped")
	logger.Warn("kept", slog.String("k", "v"))

	out := buf.String()
	require.NotContains(t, out, "dropped")
	require.True(t, strings.HasPrefix(out, "{"))
	require.Contains(t, out, `"msg":"kept"`)
	require.Contains(t, out, `"k":"v"`)
}

func TestRefreshTestMode(t *testing.T) {
	t.Setenv(testModeEnv, "true")
	RefreshTestMode()
	require.True(t, InTestMode())

	t.Setenv(testModeEnv, "0")
	RefreshTestMode()
	require.False(t, InTestMode())
}
