// FILE: internal/config/yamlload.go
// Package config – Nested-map YAML config file loader (spec §6). Unknown
// keys merge through but are ignored; a `_moved_to: <relpath>` redirect is
// followed up to depth 5.
package config

import (
	"os"

	"github.com/tradecore/backsignal/internal/model"
	"gopkg.in/yaml.v3"
)

const maxRedirectDepth = 5

// rawDoc is the nested map shape of one config file.
type rawDoc map[string]any

// LoadFile reads a YAML config file, following `_moved_to` redirects
// (relative to the redirecting file's directory) up to maxRedirectDepth,
// and overlays its values onto base.
func LoadFile(path string, base RunConfig) (RunConfig, error) {
	doc, resolvedPath, err := loadRawWithRedirects(path, 0)
	if err != nil {
		return base, err
	}
	return overlay(base, doc, resolvedPath), nil
}

func loadRawWithRedirects(path string, depth int) (rawDoc, string, error) {
	if depth > maxRedirectDepth {
		return nil, "", &model.ConfigError{Field: "_moved_to", Msg: "redirect depth exceeded at " + path}
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, "", &model.ConfigError{Field: "config_file", Msg: "cannot read " + path + ": " + err.Error()}
	}
	var doc rawDoc
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, "", &model.ConfigError{Field: "config_file", Msg: "invalid YAML in " + path + ": " + err.Error()}
	}
	if moved, ok := doc["_moved_to"]; ok {
		rel, ok := moved.(string)
		if !ok {
			return nil, "", &model.ConfigError{Field: "_moved_to", Msg: "must be a string path"}
		}
		target := resolveRelative(path, rel)
		return loadRawWithRedirects(target, depth+1)
	}
	return doc, path, nil
}

func resolveRelative(from, rel string) string {
	if len(rel) > 0 && rel[0] == '/' {
		return rel
	}
	dir := "."
	for i := len(from) - 1; i >= 0; i-- {
		if from[i] == '/' {
			dir = from[:i]
			break
		}
	}
	return dir + "/" + rel
}

// overlay applies every recognized key in doc onto cfg; keys it does not
// recognize are merged through (present in the map) but silently ignored.
func overlay(cfg RunConfig, doc rawDoc, path string) RunConfig {
	if v, ok := doc["start"].(string); ok {
		if t, err := parseDate(v); err == nil {
			cfg.Start = t
		}
	}
	if v, ok := doc["end"].(string); ok {
		if t, err := parseDate(v); err == nil {
			cfg.End = t
		}
	}
	if v, ok := asStringSlice(doc["symbols"]); ok {
		cfg.Symbols = v
	}
	if v, ok := doc["mode"].(string); ok {
		cfg.Mode = Mode(v)
	}
	if v, ok := doc["run_id"].(string); ok {
		cfg.RunID = v
	}
	if v, ok := asFloat(doc["fee_bps"]); ok {
		cfg.FeeBps = v
	}
	if v, ok := asFloat(doc["slippage_bps"]); ok {
		cfg.SlippageBps = v
	}
	if v, ok := doc["allow_long"].(bool); ok {
		cfg.AllowLong = v
	}
	if v, ok := doc["allow_short"].(bool); ok {
		cfg.AllowShort = v
	}
	if v, ok := asInt(doc["min_hold_minutes"]); ok {
		cfg.MinHoldMinutes = v
	}
	if v, ok := asInt(doc["neutral_confirm_minutes"]); ok {
		cfg.NeutralConfirmMinutes = v
	}
	if v, ok := asFloat(doc["initial_equity"]); ok {
		cfg.InitialEquity = v
	}
	if v, ok := asFloat(doc["leverage"]); ok {
		cfg.Leverage = v
	}
	if v, ok := asFloat(doc["position_size_pct"]); ok {
		cfg.PositionSizePct = v
	}
	if v, ok := asInt(doc["long_threshold"]); ok {
		cfg.LongThreshold = v
	}
	if v, ok := asInt(doc["short_threshold"]); ok {
		cfg.ShortThreshold = v
	}
	if v, ok := asInt(doc["close_threshold"]); ok {
		cfg.CloseThreshold = v
	}
	if v, ok := doc["walk_forward"].(bool); ok {
		cfg.WalkForward = v
	}
	if v, ok := asInt(doc["walk_forward_max_folds"]); ok {
		cfg.WalkForwardMaxFolds = v
	}
	if v, ok := doc["walk_forward_auto_fallback"].(bool); ok {
		cfg.WalkForwardAutoFallback = v
	}
	if v, ok := doc["walk_forward_parallel"].(bool); ok {
		cfg.WalkForwardParallel = v
	}
	if v, ok := asInt(doc["train_days"]); ok {
		cfg.TrainDays = v
	}
	if v, ok := asInt(doc["test_days"]); ok {
		cfg.TestDays = v
	}
	if v, ok := asInt(doc["step_days"]); ok {
		cfg.StepDays = v
	}
	if v, ok := asInt(doc["min_signal_days"]); ok {
		cfg.MinSignalDays = v
	}
	if v, ok := asInt(doc["min_signal_count"]); ok {
		cfg.MinSignalCount = v
	}
	if v, ok := asFloat(doc["min_candle_coverage_pct"]); ok {
		cfg.MinCandleCoveragePct = v
	}
	if v, ok := doc["force"].(bool); ok {
		cfg.Force = v
	}
	if v, ok := doc["check_only"].(bool); ok {
		cfg.CheckOnly = v
	}
	if v, ok := doc["preferred_timeframe"].(string); ok {
		cfg.PreferredTimeframe = v
	}
	if v, ok := doc["artifact_root"].(string); ok {
		cfg.ArtifactRoot = v
	}
	if v, ok := asInt(doc["retention_keep_runs"]); ok {
		cfg.RetentionKeep = v
	}
	if v, ok := asInt(doc["base_timeframe_min"]); ok {
		cfg.BaseTimeframeMin = v
	}
	if v, ok := doc["rules_file"].(string); ok {
		cfg.RulesFile = resolveRelative(path, v)
	}
	if v, ok := asFloat(doc["fanout_rate_per_sec"]); ok {
		cfg.FanoutRatePerSec = v
	}
	if v, ok := asInt(doc["fanout_burst"]); ok {
		cfg.FanoutBurst = v
	}
	if v, ok := asInt(doc["fanout_timeout_ms"]); ok {
		cfg.FanoutTimeoutMs = v
	}
	return cfg
}

func asStringSlice(v any) ([]string, bool) {
	items, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		s, ok := it.(string)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		return int(n), true
	}
	return 0, false
}
