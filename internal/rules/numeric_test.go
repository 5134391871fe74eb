// FILE: internal/rules/numeric_test.go
package rules

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tradecore/backsignal/internal/model"
)

func TestNumeric_LenientParsing(t *testing.T) {
	r := &model.Row{Fields: map[string]string{
		"plain":   "12.5",
		"percent": "12.5%",
		"commas":  "1,234.50",
		"blank":   "",
		"junk":    "n/a",
	}}
	assert.Equal(t, 12.5, Numeric(r, "plain"))
	assert.Equal(t, 12.5, Numeric(r, "percent"))
	assert.Equal(t, 1234.50, Numeric(r, "commas"))
	assert.True(t, math.IsNaN(Numeric(r, "blank")))
	assert.True(t, math.IsNaN(Numeric(r, "junk")))
	assert.True(t, math.IsNaN(Numeric(r, "missing")))
}

func TestNumeric_CachesResult(t *testing.T) {
	r := &model.Row{Fields: map[string]string{"x": "1"}}
	assert.Equal(t, 1.0, Numeric(r, "x"))
	r.Fields["x"] = "999"
	assert.Equal(t, 1.0, Numeric(r, "x"), "second read should hit the cache, not reparse")
}
