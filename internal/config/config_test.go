package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFileMissingUsesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("WHOOP_CLIENT_ID", "")

	cfg, err := LoadFile(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, "Running", cfg.Sheet.Worksheet)
	assert.Equal(t, 14, cfg.Sync.DaysAgo)
	assert.Equal(t, []int{0}, cfg.Sync.SportIDs)
	assert.Equal(t, "whoop-tokens.json", cfg.Whoop.TokenFile)
}

func TestLoadFileParsesTOMLAndEnvWins(t *testing.T) {
	t.Chdir(t.TempDir())
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[whoop]
client_id = "from-file"

[sheet]
name = "Training Log"
duration_format = "hm"

[sync]
days_ago = 3
sport_ids = [0, 63]
`), 0600))
	t.Setenv("WHOOP_CLIENT_ID", "from-env")

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Whoop.ClientID)
	assert.Equal(t, "Training Log", cfg.Sheet.Name)
	assert.Equal(t, "hm", cfg.Sheet.DurationFormat)
	assert.Equal(t, "Running", cfg.Sheet.Worksheet, "unset keys keep defaults")
	assert.Equal(t, 3, cfg.Sync.DaysAgo)
	assert.Equal(t, []int{0, 63}, cfg.Sync.SportIDs)
}

func TestLoadFileReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("WHOOP_CLIENT_SECRET=dotenv-secret\n"), 0600))
	t.Setenv("WHOOP_CLIENT_SECRET", "")
	os.Unsetenv("WHOOP_CLIENT_SECRET")

	cfg, err := LoadFile(filepath.Join(dir, "missing.toml"))
	require.NoError(t, err)
	assert.Equal(t, "dotenv-secret", cfg.Whoop.ClientSecret)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	require.Error(t, cfg.Validate())

	cfg.Sheet.Name = "Training Log"
	require.NoError(t, cfg.Validate(), "client credentials are optional while the token is valid")

	cfg.Sheet.DurationFormat = "seconds"
	require.Error(t, cfg.Validate())
}

func TestWriteDefaultKeepsExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.toml")
	require.NoError(t, WriteDefault(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Running")

	require.NoError(t, os.WriteFile(path, []byte("# mine\n"), 0600))
	require.NoError(t, WriteDefault(path))
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "# mine\n", string(data))
}

func TestSyncWindowDaysAgo(t *testing.T) {
	now := time.Date(2024, time.June, 10, 15, 30, 0, 0, time.UTC)

	w, err := SyncWindow(now, 5, "")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.June, 5, 0, 0, 0, 0, time.UTC), w.Start)
	assert.Equal(t, now, w.End)
}

func TestSyncWindowSince(t *testing.T) {
	now := time.Date(2024, time.June, 10, 15, 30, 0, 0, time.UTC)

	w, err := SyncWindow(now, 14, "2024-06-03")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.June, 3, 0, 0, 0, 0, time.UTC), w.Start)

	w, err = SyncWindow(now, 14, "yesterday")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.June, 9, 0, 0, 0, 0, time.UTC), w.Start)
}

func TestSyncWindowRejectsNegative(t *testing.T) {
	_, err := SyncWindow(time.Now(), -1, "")
	require.Error(t, err)
}
