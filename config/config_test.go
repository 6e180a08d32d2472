package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"futures-analytics/internal/model"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "analyticsd", cfg.Service.Name)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 500, cfg.SQLite.BootstrapLimit)
	assert.Equal(t, 30*time.Minute, cfg.Redis.LatestTTL)
	assert.Equal(t, 0.08, cfg.Pipeline.Margin)
	assert.Equal(t, 15.0, cfg.Pipeline.ContractMultiplier)
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := []byte(`
pipeline:
  symbol: RB
  periods: "1,5,15"
redis:
  enabled: true
  addr: redis:6379
feed:
  reconnect_max: 10s
market:
  holidays: ["2026-10-01", "2026-10-02"]
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o644))
	t.Setenv("ANALYTICS_REDIS_ADDR", "cache:6380")
	t.Setenv("ANALYTICS_HTTP_ADDR", ":18080")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "RB", cfg.Pipeline.Symbol)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "cache:6380", cfg.Redis.Addr, "env wins over the file")
	assert.Equal(t, ":18080", cfg.HTTP.Addr)
	assert.Equal(t, 10*time.Second, cfg.Feed.ReconnectMax)
	assert.Equal(t, []string{"2026-10-01", "2026-10-02"}, cfg.Market.Holidays)
}

func TestLoad_LocalFileWins(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("pipeline:\n  symbol: RB\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.local.yaml"), []byte("pipeline:\n  symbol: CU\n"), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "CU", cfg.Pipeline.Symbol)
}

func TestParsePeriods(t *testing.T) {
	cfg := &Config{Pipeline: PipelineConfig{Periods: " 1, 5,,15 ,5"}}
	periods, err := cfg.ParsePeriods()
	require.NoError(t, err)
	assert.Equal(t, []model.Period{model.Period1m, model.Period5m, model.Period15m}, periods)

	cfg.Pipeline.Periods = "1,7"
	_, err = cfg.ParsePeriods()
	assert.ErrorIs(t, err, model.ErrUnknownPeriod)

	cfg.Pipeline.Periods = " , "
	_, err = cfg.ParsePeriods()
	assert.ErrorIs(t, err, model.ErrUnknownPeriod)
}
