// FILE: internal/config/config_test.go
package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tradecore/backsignal/internal/model"
)

func validConfig() RunConfig {
	c := Default()
	c.Symbols = []string{"BTCUSD"}
	c.Start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.End = time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	return c
}

func TestRunConfig_ValidateAcceptsDefaults(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestRunConfig_ValidateRejectsNoSymbols(t *testing.T) {
	c := validConfig()
	c.Symbols = nil
	var cfgErr *model.ConfigError
	assert.ErrorAs(t, c.Validate(), &cfgErr)
}

func TestRunConfig_ValidateRejectsBadWindow(t *testing.T) {
	c := validConfig()
	c.End = c.Start
	assert.Error(t, c.Validate())
}

func TestRunConfig_ValidateRejectsCloseThresholdOutOfRange(t *testing.T) {
	c := validConfig()
	c.CloseThreshold = c.LongThreshold
	assert.Error(t, c.Validate())
}

func TestRunConfig_ValidateRejectsBothSidesDisabled(t *testing.T) {
	c := validConfig()
	c.AllowLong = false
	c.AllowShort = false
	assert.Error(t, c.Validate())
}

func TestRunConfig_FeeRateAndSlippage(t *testing.T) {
	c := Default()
	c.FeeBps = 4
	c.SlippageBps = 3
	assert.InDelta(t, 0.0004, c.FeeRate(), 1e-9)
	assert.InDelta(t, 0.0003, c.Slippage(), 1e-9)
}
