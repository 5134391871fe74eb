// FILE: internal/config/rules.go
// Package config – YAML rule-set loader for mode=offline_rule_replay and
// compare_history_rule (spec §4.3 C2/C4c). Mirrors LoadFile's nested-map
// style: unknown keys are ignored rather than rejected.
package config

import (
	"os"

	"github.com/tradecore/backsignal/internal/model"
	"gopkg.in/yaml.v3"
)

// ruleDoc is one entry of the `rules:` list in a rule-set YAML file.
type ruleDoc struct {
	Name       string   `yaml:"name"`
	Table      string   `yaml:"table"`
	Direction  string   `yaml:"direction"`
	Strength   int      `yaml:"strength"`
	Timeframes []string `yaml:"timeframes"`
	CooldownS  int64    `yaml:"cooldown_s"`
	MinVolume  float64  `yaml:"min_volume"`
	Enabled    bool     `yaml:"enabled"`

	Condition struct {
		Kind      string   `yaml:"kind"`
		Field     string   `yaml:"field"`
		FieldA    string   `yaml:"field_a"`
		FieldB    string   `yaml:"field_b"`
		From      []string `yaml:"from"`
		To        []string `yaml:"to"`
		Patterns  []string `yaml:"patterns"`
		MatchAny  bool     `yaml:"match_any"`
		Threshold float64  `yaml:"threshold"`
		Min       float64  `yaml:"min"`
		Max       float64  `yaml:"max"`
	} `yaml:"condition"`
}

type ruleSetDoc struct {
	Rules []ruleDoc `yaml:"rules"`
}

// LoadRulesFile reads a rule-set YAML file into the declarative model.Rule
// slice internal/rules evaluates.
func LoadRulesFile(path string) ([]model.Rule, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, &model.ConfigError{Field: "rules_file", Msg: "cannot read " + path + ": " + err.Error()}
	}
	var doc ruleSetDoc
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, &model.ConfigError{Field: "rules_file", Msg: "invalid YAML in " + path + ": " + err.Error()}
	}

	out := make([]model.Rule, 0, len(doc.Rules))
	for _, rd := range doc.Rules {
		out = append(out, model.Rule{
			Name:       rd.Name,
			Table:      rd.Table,
			Direction:  model.Direction(rd.Direction),
			Strength:   rd.Strength,
			Timeframes: rd.Timeframes,
			CooldownS:  rd.CooldownS,
			MinVolume:  rd.MinVolume,
			Enabled:    rd.Enabled,
			ConditionKind: model.ConditionCfgKind{
				Kind: model.ConditionKind(rd.Condition.Kind),
				Cfg: model.ConditionCfg{
					Field:     rd.Condition.Field,
					FieldA:    rd.Condition.FieldA,
					FieldB:    rd.Condition.FieldB,
					From:      rd.Condition.From,
					To:        rd.Condition.To,
					Patterns:  rd.Condition.Patterns,
					MatchAny:  rd.Condition.MatchAny,
					Threshold: rd.Condition.Threshold,
					Min:       rd.Condition.Min,
					Max:       rd.Condition.Max,
				},
			},
		})
	}
	return out, nil
}
