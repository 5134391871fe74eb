// FILE: internal/config/yamlload_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFile_OverlaysRecognizedKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
start: "2024-01-01"
end: "2024-03-01"
symbols: ["BTCUSD", "ETHUSD"]
mode: history_signal
long_threshold: 75
fanout_rate_per_sec: 5
`), 0o644))

	got, err := LoadFile(path, Default())
	require.NoError(t, err)
	assert.Equal(t, []string{"BTCUSD", "ETHUSD"}, got.Symbols)
	assert.Equal(t, 75, got.LongThreshold)
	assert.Equal(t, 5.0, got.FanoutRatePerSec)
	assert.Equal(t, ModeHistorySignal, got.Mode)
}

func TestLoadFile_FollowsMovedToRedirect(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "new"), 0o755))
	oldPath := filepath.Join(dir, "old.yaml")
	newPath := filepath.Join(dir, "new", "real.yaml")
	require.NoError(t, os.WriteFile(oldPath, []byte(`_moved_to: "new/real.yaml"`), 0o644))
	require.NoError(t, os.WriteFile(newPath, []byte(`long_threshold: 99`), 0o644))

	got, err := LoadFile(oldPath, Default())
	require.NoError(t, err)
	assert.Equal(t, 99, got.LongThreshold)
}

func TestLoadFile_RulesFileResolvesRelativeToResolvedConfigPath(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	cfgPath := filepath.Join(dir, "sub", "cfg.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`rules_file: "rules.yaml"`), 0o644))

	got, err := LoadFile(cfgPath, Default())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "sub", "rules.yaml"), got.RulesFile)
}

func TestLoadFile_RedirectDepthExceeded(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`_moved_to: "a.yaml"`), 0o644))
	_, err := LoadFile(path, Default())
	assert.Error(t, err)
}

func TestLoadFile_MissingFile(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"), Default())
	assert.Error(t, err)
}

func TestLoadFile_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("not: [valid"), 0o644))
	_, err := LoadFile(path, Default())
	assert.Error(t, err)
}
