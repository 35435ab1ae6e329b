package utils

import (
	"strings"
	"time"

	"github.com/scmhub/calendar"
)

// MarketCalendar answers "is this calendar date a business day for this
// instrument's market". It backs the range-picker hint endpoint only; the
// backend's step lookup stays authoritative for what a date resolves to.
type MarketCalendar struct {
	Calendar *calendar.Calendar
	Fallback bool
	Timezone *time.Location
}

// -----------------------------------------------------------------------------

// GetMarketCalendar resolves an exchange-prefixed instrument code to its
// market calendar. See scmhub/calendar for supported MICs (ISO 10383).
func GetMarketCalendar(stockCode string) *MarketCalendar {
	// Mainland China listings are the default domain here
	mic := "xshe" // Shenzhen
	code := strings.ToUpper(stockCode)
	switch {
	case strings.HasSuffix(code, ".SH"), strings.HasSuffix(code, ".SS"):
		mic = "xshg"
	case strings.HasSuffix(code, ".SZ"):
		mic = "xshe"
	case strings.HasSuffix(code, ".HK"):
		mic = "xhkg"
	case strings.HasSuffix(code, ".US"):
		mic = "xnys"
	}

	cal := calendar.GetCalendar(mic)
	if cal == nil {
		cal = calendar.GetCalendar("xshg")
	}

	if cal == nil {
		// Simple fallback: Mon-Fri in Shanghai time
		loc, _ := time.LoadLocation("Asia/Shanghai")
		if loc == nil {
			loc = time.UTC
		}
		return &MarketCalendar{Fallback: true, Timezone: loc}
	}

	return &MarketCalendar{Calendar: cal, Fallback: false, Timezone: cal.Loc}
}

// -----------------------------------------------------------------------------

func (mc *MarketCalendar) IsTradingDay(date time.Time) bool {
	if mc.Timezone != nil {
		date = date.In(mc.Timezone)
	}

	if mc.Fallback {
		weekday := date.Weekday()
		return weekday != time.Saturday && weekday != time.Sunday
	}
	return mc.Calendar.IsBusinessDay(date)
}
