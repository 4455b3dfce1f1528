package session

import (
	"fmt"
	"time"
)

const DateLayout = "2006-01-02"

// TimeOfDay is a wall-clock time with minute resolution, e.g. 09:30.
type TimeOfDay struct {
	Hour   int
	Minute int
}

func ParseTimeOfDay(value string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", value)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q: want HH:MM", value)
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

func (t TimeOfDay) offset() time.Duration {
	return time.Duration(t.Hour)*time.Hour + time.Duration(t.Minute)*time.Minute
}

// sinceMidnight returns how far into its local day ts is, in loc.
func sinceMidnight(ts time.Time, loc *time.Location) time.Duration {
	local := ts.In(loc)
	h, m, s := local.Clock()
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute +
		time.Duration(s)*time.Second + time.Duration(local.Nanosecond())
}

// Calendar answers time-of-day questions in the trading timezone.
type Calendar struct {
	Location    *time.Location
	Start       TimeOfDay
	End         TimeOfDay
	FlattenLead time.Duration
}

// WithinWindow is inclusive on both ends.
func (c Calendar) WithinWindow(ts time.Time) bool {
	tod := sinceMidnight(ts, c.Location)
	return tod >= c.Start.offset() && tod <= c.End.offset()
}

// TradingDate is the calendar date of ts in the trading timezone.
func (c Calendar) TradingDate(ts time.Time) string {
	return ts.In(c.Location).Format(DateLayout)
}

// IsNewTradingDay reports whether ts belongs to a later date than lastDate.
// An unset lastDate always starts a new day; an earlier date never does.
func (c Calendar) IsNewTradingDay(ts time.Time, lastDate string) bool {
	if lastDate == "" {
		return true
	}
	return c.TradingDate(ts) > lastDate
}

// InFlattenBand reports whether ts lies in [End-FlattenLead, End].
func (c Calendar) InFlattenBand(ts time.Time) bool {
	tod := sinceMidnight(ts, c.Location)
	end := c.End.offset()
	return tod >= end-c.FlattenLead && tod <= end
}
