// FILE: internal/config/rules_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradecore/backsignal/internal/model"
)

func TestLoadRulesFile_ParsesConditionAndTopLevelFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
rules:
  - name: rsi_cross_up
    table: rsi
    direction: BUY
    strength: 70
    timeframes: ["1m", "5m"]
    cooldown_s: 300
    min_volume: 10
    enabled: true
    condition:
      kind: threshold_cross_up
      field: value
      threshold: 70
`), 0o644))

	rules, err := LoadRulesFile(path)
	require.NoError(t, err)
	require.Len(t, rules, 1)

	r := rules[0]
	assert.Equal(t, "rsi_cross_up", r.Name)
	assert.Equal(t, model.DirBuy, r.Direction)
	assert.Equal(t, []string{"1m", "5m"}, r.Timeframes)
	assert.Equal(t, int64(300), r.CooldownS)
	assert.True(t, r.Enabled)
	assert.Equal(t, model.CondThresholdCrossUp, r.ConditionKind.Kind)
	assert.Equal(t, "value", r.ConditionKind.Cfg.Field)
	assert.Equal(t, 70.0, r.ConditionKind.Cfg.Threshold)
}

func TestLoadRulesFile_EmptyRulesList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`rules: []`), 0o644))
	rules, err := LoadRulesFile(path)
	require.NoError(t, err)
	assert.Empty(t, rules)
}

func TestLoadRulesFile_MissingFile(t *testing.T) {
	_, err := LoadRulesFile(filepath.Join(t.TempDir(), "nope.yaml"))
	var cfgErr *model.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}
