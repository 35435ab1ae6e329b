package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// -----------------------------------------------------------------------------

func TestIsTradingDayWeekend(t *testing.T) {
	cal := GetMarketCalendar("000001.SZ")

	saturday := time.Date(2019, 1, 5, 12, 0, 0, 0, time.UTC)
	sunday := time.Date(2019, 1, 6, 12, 0, 0, 0, time.UTC)

	assert.False(t, cal.IsTradingDay(saturday))
	assert.False(t, cal.IsTradingDay(sunday))
}

// -----------------------------------------------------------------------------

func TestIsTradingDayRegularWeekday(t *testing.T) {
	cal := GetMarketCalendar("600000.SH")

	// Wednesday, not a holiday on any supported market
	wednesday := time.Date(2019, 1, 2, 12, 0, 0, 0, time.UTC)
	assert.True(t, cal.IsTradingDay(wednesday))
}

// -----------------------------------------------------------------------------

func TestUnknownCodeFallsBackToDefaultMarket(t *testing.T) {
	cal := GetMarketCalendar("BTCUSD")

	saturday := time.Date(2019, 1, 5, 12, 0, 0, 0, time.UTC)
	assert.False(t, cal.IsTradingDay(saturday))
}
