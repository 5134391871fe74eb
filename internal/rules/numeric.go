// FILE: internal/rules/numeric.go
// Package rules – Lenient numeric coercion for indicator-table rows (C2, §9).
//
// Rule rows arrive with heterogeneous string types: "12.5", "12.5%",
// "1,234.50". We coerce leniently and cache the result per row so repeated
// evaluations of the same (prev, curr) pair across many rules don't reparse.
package rules

import (
	"math"
	"strconv"
	"strings"

	"github.com/tradecore/backsignal/internal/model"
)

// Numeric returns the coerced float64 value of field on row, using and
// populating the row's numeric cache. Unparseable or missing values yield
// NaN, never an error; callers treat NaN as "predicate false".
func Numeric(row *model.Row, field string) float64 {
	cache := row.NumericCache()
	if v, ok := cache[field]; ok {
		return v
	}
	raw, ok := row.Fields[field]
	if !ok {
		cache[field] = math.NaN()
		return math.NaN()
	}
	v := parseLenientFloat(raw)
	cache[field] = v
	return v
}

// parseLenientFloat strips a trailing '%' and thousands separators before
// parsing. Unparseable input becomes NaN.
func parseLenientFloat(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return math.NaN()
	}
	s = strings.TrimSuffix(s, "%")
	s = strings.ReplaceAll(s, ",", "")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return f
}
