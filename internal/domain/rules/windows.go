package rules

import "time"

const (
	DefaultRecentWindow = 20 * 24 * time.Hour
	DefaultMidWindow    = 30 * 24 * time.Hour
	DefaultFarWindow    = 60 * 24 * time.Hour
	ForecastMonths      = 3
)

// ChurnWindows are lookbacks relative to now. Valid when 0 < Recent < Mid < Far.
type ChurnWindows struct {
	Recent time.Duration
	Mid    time.Duration
	Far    time.Duration
}

type ChurnCutoffs struct {
	Recent time.Time
	Mid    time.Time
	Far    time.Time
}

func DefaultChurnWindows() ChurnWindows {
	return ChurnWindows{
		Recent: DefaultRecentWindow,
		Mid:    DefaultMidWindow,
		Far:    DefaultFarWindow,
	}
}

func (w ChurnWindows) Valid() bool {
	return w.Recent > 0 && w.Recent < w.Mid && w.Mid < w.Far
}

func (w ChurnWindows) Cutoffs(now time.Time) ChurnCutoffs {
	return ChurnCutoffs{
		Recent: now.Add(-w.Recent),
		Mid:    now.Add(-w.Mid),
		Far:    now.Add(-w.Far),
	}
}

// MonthStart returns midnight of the first day of the month containing now in loc.
func MonthStart(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)
}

// AddMonths shifts a month start by n calendar months.
func AddMonths(monthStart time.Time, n int) time.Time {
	return time.Date(monthStart.Year(), monthStart.Month()+time.Month(n), 1, 0, 0, 0, 0, monthStart.Location())
}

// MonthIndex is the number of calendar months between base and at, both read in base's location.
func MonthIndex(base, at time.Time) int {
	local := at.In(base.Location())
	return (local.Year()-base.Year())*12 + int(local.Month()) - int(base.Month())
}

// UTCDayKey is the UTC calendar date of at.
func UTCDayKey(at time.Time) string {
	return at.UTC().Format("2006-01-02")
}
