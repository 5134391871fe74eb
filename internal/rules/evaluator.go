// FILE: internal/rules/evaluator.go
// Package rules – Pure evaluator over (prev, curr) row pairs (C2).
//
// Check(rule, prev, curr, limiter) is the only entry point: it dispatches on the
// rule's ConditionKind, coercing numeric fields leniently and never
// panicking out to the caller: any internal error is captured, logged
// (rate-limited), and the rule simply returns false for that pair.
package rules

import (
	"fmt"
	"math"
	"strings"

	"github.com/tradecore/backsignal/internal/model"
	"github.com/tradecore/backsignal/internal/ratelog"
)

// DefaultErrorLimiter rate-limits RuleEvalError logging: first 5 occurrences
// per rule name logged unconditionally, then one in 50 thereafter.
var DefaultErrorLimiter = ratelog.NewLimiter(5, 50)

// Check evaluates rule.ConditionKind against (prev, curr). A disabled rule
// never fires. All kinds except "contains" require a non-nil prev.
func Check(rule model.Rule, prev, curr *model.Row, limiter *ratelog.Limiter) (fired bool) {
	if !rule.Enabled {
		return false
	}
	kind := rule.ConditionKind.Kind
	cfg := rule.ConditionKind.Cfg

	if prev == nil && kind != model.CondContains {
		return false
	}

	defer func() {
		if r := recover(); r != nil {
			err := &model.RuleEvalError{Rule: rule.Name, Err: fmt.Errorf("panic: %v", r)}
			if limiter == nil {
				limiter = DefaultErrorLimiter
			}
			limiter.Printf(rule.Name, "%v", err)
			fired = false
		}
	}()

	switch kind {
	case model.CondStateChange:
		return checkStateChange(cfg, prev, curr)
	case model.CondThresholdCrossUp:
		return checkThresholdCrossUp(cfg, prev, curr)
	case model.CondThresholdCrossDown:
		return checkThresholdCrossDown(cfg, prev, curr)
	case model.CondCrossUp:
		return checkCrossUp(cfg, prev, curr)
	case model.CondCrossDown:
		return checkCrossDown(cfg, prev, curr)
	case model.CondContains:
		return checkContains(cfg, curr)
	case model.CondRangeEnter:
		return checkRangeEnter(cfg, prev, curr)
	case model.CondRangeExit:
		return checkRangeExit(cfg, prev, curr)
	case model.CondCustom:
		if cfg.Custom == nil || prev == nil || curr == nil {
			return false
		}
		return cfg.Custom(*prev, *curr)
	default:
		return false
	}
}

func checkStateChange(cfg model.ConditionCfg, prev, curr *model.Row) bool {
	pv := prev.Fields[cfg.Field]
	cv := curr.Fields[cfg.Field]
	return contains(cfg.From, pv) && contains(cfg.To, cv)
}

func checkThresholdCrossUp(cfg model.ConditionCfg, prev, curr *model.Row) bool {
	p := Numeric(prev, cfg.Field)
	c := Numeric(curr, cfg.Field)
	if math.IsNaN(p) || math.IsNaN(c) {
		return false
	}
	return p <= cfg.Threshold && cfg.Threshold < c
}

func checkThresholdCrossDown(cfg model.ConditionCfg, prev, curr *model.Row) bool {
	p := Numeric(prev, cfg.Field)
	c := Numeric(curr, cfg.Field)
	if math.IsNaN(p) || math.IsNaN(c) {
		return false
	}
	return p >= cfg.Threshold && cfg.Threshold > c
}

func checkCrossUp(cfg model.ConditionCfg, prev, curr *model.Row) bool {
	pa, pb := Numeric(prev, cfg.FieldA), Numeric(prev, cfg.FieldB)
	ca, cb := Numeric(curr, cfg.FieldA), Numeric(curr, cfg.FieldB)
	if anyNaN(pa, pb, ca, cb) {
		return false
	}
	return pa <= pb && ca > cb
}

func checkCrossDown(cfg model.ConditionCfg, prev, curr *model.Row) bool {
	pa, pb := Numeric(prev, cfg.FieldA), Numeric(prev, cfg.FieldB)
	ca, cb := Numeric(curr, cfg.FieldA), Numeric(curr, cfg.FieldB)
	if anyNaN(pa, pb, ca, cb) {
		return false
	}
	return pa >= pb && ca < cb
}

func checkContains(cfg model.ConditionCfg, curr *model.Row) bool {
	if curr == nil {
		return false
	}
	v := strings.ToLower(curr.Fields[cfg.Field])
	if len(cfg.Patterns) == 0 {
		return false
	}
	if cfg.MatchAny {
		for _, p := range cfg.Patterns {
			if strings.Contains(v, strings.ToLower(p)) {
				return true
			}
		}
		return false
	}
	for _, p := range cfg.Patterns {
		if !strings.Contains(v, strings.ToLower(p)) {
			return false
		}
	}
	return true
}

func checkRangeEnter(cfg model.ConditionCfg, prev, curr *model.Row) bool {
	p := Numeric(prev, cfg.Field)
	c := Numeric(curr, cfg.Field)
	if math.IsNaN(p) || math.IsNaN(c) {
		return false
	}
	return !inRange(p, cfg.Min, cfg.Max) && inRange(c, cfg.Min, cfg.Max)
}

func checkRangeExit(cfg model.ConditionCfg, prev, curr *model.Row) bool {
	p := Numeric(prev, cfg.Field)
	c := Numeric(curr, cfg.Field)
	if math.IsNaN(p) || math.IsNaN(c) {
		return false
	}
	return inRange(p, cfg.Min, cfg.Max) && !inRange(c, cfg.Min, cfg.Max)
}

func inRange(v, min, max float64) bool { return v >= min && v <= max }

func anyNaN(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
