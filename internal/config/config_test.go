package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "edl.test-token"

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("EARTHDATA_TOKEN", testToken)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "https://gpm1.gesdisc.eosdis.nasa.gov/opendap/GPM_L3/GPM_3IMERGDL.07", cfg.ArchiveBaseURL)
	assert.Equal(t, testToken, cfg.EarthdataToken)
	assert.Equal(t, "downloads", cfg.DownloadDir)
	assert.Equal(t, "outputs", cfg.OutputDir)
	assert.Equal(t, 60*time.Second, cfg.FetchTimeout)
	assert.Equal(t, 5, cfg.MaxParallel)
	assert.Equal(t, "users.json", cfg.UserDBPath)
	assert.Equal(t, 15*time.Minute, cfg.AdminTokenTTL)
	assert.False(t, cfg.UsageEventsEnabled())
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("EARTHDATA_TOKEN", testToken)
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("DOWNLOAD_DIR", "/var/lib/imerg")
	t.Setenv("FETCH_TIMEOUT", "2m")
	t.Setenv("MAX_PARALLEL", "8")
	t.Setenv("USER_DB_PATH", "/var/lib/imerg/users.json")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("USAGE_TOPIC", "usage")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "/var/lib/imerg", cfg.DownloadDir)
	assert.Equal(t, 2*time.Minute, cfg.FetchTimeout)
	assert.Equal(t, 8, cfg.MaxParallel)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "usage", cfg.UsageTopic)
	assert.True(t, cfg.UsageEventsEnabled())
}

func TestLoad_RequiresToken(t *testing.T) {
	t.Setenv("EARTHDATA_TOKEN", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EARTHDATA_TOKEN")
}

func TestLoad_RejectsBadValues(t *testing.T) {
	t.Setenv("EARTHDATA_TOKEN", testToken)

	t.Setenv("MAX_PARALLEL", "0")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("MAX_PARALLEL", "5")
	t.Setenv("FETCH_TIMEOUT", "-1s")
	_, err = Load()
	assert.Error(t, err)
}
