package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/leadmatch/internal/model"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "companies", cfg.Store.Table)
	assert.Equal(t, int32(10), cfg.Store.MaxConns)
	assert.Equal(t, 3, cfg.Store.Retry.MaxAttempts)
	assert.Equal(t, 200*time.Millisecond, cfg.Store.Retry.InitialBackoff)
	assert.Equal(t, 5*time.Second, cfg.Store.Retry.MaxBackoff)
	assert.InDelta(t, 0.8, cfg.Match.FuzzyThreshold, 0.001)
	assert.InDelta(t, 0.2, cfg.Match.CityBonus, 0.001)
	assert.InDelta(t, 0.3, cfg.Match.PhoneBonus, 0.001)
	assert.True(t, cfg.Match.Exclusive)
	assert.Equal(t, 1, cfg.Match.Workers)
	assert.Equal(t, []string{"reviews_link"}, cfg.Merge.Carry)
	assert.Equal(t, []model.MatchTier{model.TierKey, model.TierExactName}, cfg.Merge.OverwriteTiers)
	assert.InDelta(t, 1.0, cfg.Merge.OverwriteConfidence, 0.001)
	assert.True(t, cfg.Merge.BackfillKey)
	assert.Equal(t, "business", cfg.Slug.PlaceholderBase)
	assert.Equal(t, 10000, cfg.Slug.MaxAttempts)
	assert.Equal(t, ",", cfg.Import.Delimiter)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
  database_url: leads.db
match:
  fuzzy_threshold: 0.85
  city_bonus: 0.1
slug:
  placeholder_base: company
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "leads.db", cfg.Store.DatabaseURL)
	assert.InDelta(t, 0.85, cfg.Match.FuzzyThreshold, 0.001)
	assert.InDelta(t, 0.1, cfg.Match.CityBonus, 0.001)
	assert.Equal(t, "company", cfg.Slug.PlaceholderBase)
	assert.Equal(t, "debug", cfg.Log.Level)
	// Defaults still apply for unset values
	assert.InDelta(t, 0.3, cfg.Match.PhoneBonus, 0.001)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
match:
  fuzzy_threshold: 0.7
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	t.Setenv("LEADMATCH_STORE_DRIVER", "postgres")
	t.Setenv("LEADMATCH_MATCH_FUZZY_THRESHOLD", "0.75")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.InDelta(t, 0.75, cfg.Match.FuzzyThreshold, 0.001)
}

func TestLoadRejectsInvalid(t *testing.T) {
	chdirTemp(t)
	t.Setenv("LEADMATCH_SLUG_MAX_ATTEMPTS", "0")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "slug.max_attempts")
}

func TestLoadBadYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("store: [unclosed"), 0o644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestValidate(t *testing.T) {
	cfg := Config{}
	cfg.Slug.MaxAttempts = 1
	cfg.Import.Delimiter = ","
	require.NoError(t, cfg.Validate())

	cfg.Match.FuzzyThreshold = -1
	assert.Error(t, cfg.Validate())

	cfg.Match.FuzzyThreshold = 0.8
	cfg.Match.PhoneBonus = -0.1
	assert.Error(t, cfg.Validate())

	cfg.Match.PhoneBonus = 0.3
	cfg.Import.Delimiter = ";;"
	assert.Error(t, cfg.Validate())

	cfg.Import.Delimiter = ","
	cfg.Merge.OverwriteTiers = []model.MatchTier{model.TierKey, model.TierFuzzy}
	require.NoError(t, cfg.Validate())
	cfg.Merge.OverwriteTiers = []model.MatchTier{"phonetic"}
	assert.Error(t, cfg.Validate())
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "warn", Format: "json"})
	require.NoError(t, err)
}

func TestInitLoggerBadLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "loud", Format: "json"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse log level")
}
