package environment

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadOverridesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	path := writeConfig(t, `
log_level = "debug"

[governor]
memory_mib = 128
call_timeout = "2s"

[jobs]
run_timeout = "45s"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, int64(128), cfg.Governor.MemoryMiB)
	assert.Equal(t, 2*time.Second, cfg.Governor.CallTimeout.Std())
	assert.Equal(t, 45*time.Second, cfg.Jobs.RunTimeout.Std())
	assert.Equal(t, 120*time.Second, cfg.Jobs.GenerateTimeout.Std())
	assert.Equal(t, 1.5, cfg.Tester.FuelMultiplier)
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	t.Chdir(t.TempDir())
	_, err := Load(writeConfig(t, "[governor]\nfuel = 1\n"))
	assert.Error(t, err)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	t.Chdir(t.TempDir())
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}

func TestEnvOverridesFile(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("FNJUDGE_MAX_CONCURRENT", "8")
	t.Setenv("FNJUDGE_NATS_URL", "nats://judge:4222")

	cfg, err := Load(writeConfig(t, "[jobs]\nmax_concurrent = 3\n"))
	require.NoError(t, err)
	assert.Equal(t, int64(8), cfg.Jobs.MaxConcurrent)
	assert.Equal(t, "nats://judge:4222", cfg.Nats.URL)
}

func TestDotEnvIsLoaded(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("FNJUDGE_LOG_LEVEL=warn\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("FNJUDGE_LOG_LEVEL") })

	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
}
