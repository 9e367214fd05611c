package calendar

import "time"

// CalendarID identifies a holiday calendar.
type CalendarID string

const (
	// NONE treats every weekday as a business day.
	NONE   CalendarID = "NONE"
	TARGET CalendarID = "TARGET"
	USD    CalendarID = "USD"
)

func isHoliday(cal CalendarID, t time.Time) bool {
	y, m, d := t.Date()
	switch cal {
	case TARGET:
		// New Year, Good Friday, Easter Monday, Labour Day, Christmas, Boxing Day.
		if (m == time.January && d == 1) || (m == time.May && d == 1) ||
			(m == time.December && (d == 25 || d == 26)) {
			return true
		}
		easter := easterSunday(y)
		day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		return day.Equal(easter.AddDate(0, 0, -2)) || day.Equal(easter.AddDate(0, 0, 1))
	case USD:
		return isUSDHoliday(y, m, d)
	default:
		return false
	}
}

// isUSDHoliday covers the fixed-date federal holidays (Sunday dates observed
// on Monday) and the Monday/Thursday rules.
func isUSDHoliday(y int, m time.Month, d int) bool {
	day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	for _, fixed := range []time.Time{
		time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC),
		time.Date(y, time.June, 19, 0, 0, 0, 0, time.UTC),
		time.Date(y, time.July, 4, 0, 0, 0, 0, time.UTC),
		time.Date(y, time.November, 11, 0, 0, 0, 0, time.UTC),
		time.Date(y, time.December, 25, 0, 0, 0, 0, time.UTC),
	} {
		if day.Equal(observed(fixed)) {
			return true
		}
	}

	wd := day.Weekday()
	nth := (d-1)/7 + 1
	lastWeek := d+7 > daysInMonth(y, m)
	switch {
	case m == time.January && wd == time.Monday && nth == 3: // MLK
	case m == time.February && wd == time.Monday && nth == 3: // Presidents
	case m == time.May && wd == time.Monday && lastWeek: // Memorial
	case m == time.September && wd == time.Monday && nth == 1: // Labor
	case m == time.October && wd == time.Monday && nth == 2: // Columbus
	case m == time.November && wd == time.Thursday && nth == 4: // Thanksgiving
	default:
		return false
	}
	return true
}

func observed(t time.Time) time.Time {
	if t.Weekday() == time.Sunday {
		return t.AddDate(0, 0, 1)
	}
	return t
}

// easterSunday uses the anonymous Gregorian algorithm.
func easterSunday(y int) time.Time {
	a := y % 19
	b := y / 100
	c := y % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	return time.Date(y, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

// IsBusinessDay checks weekends and holiday sets.
func IsBusinessDay(cal CalendarID, t time.Time) bool {
	if t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
		return false
	}
	return !isHoliday(cal, t)
}

// Adjust applies Modified Following.
func Adjust(cal CalendarID, t time.Time) time.Time {
	origMonth := t.Month()
	for !IsBusinessDay(cal, t) {
		t = t.AddDate(0, 0, 1)
	}
	if t.Month() != origMonth {
		t = t.AddDate(0, 0, -1)
		for !IsBusinessDay(cal, t) {
			t = t.AddDate(0, 0, -1)
		}
	}
	return t
}

// Convention is a business-day roll rule.
type Convention string

const (
	ModifiedFollowing Convention = "MF"
	Following         Convention = "F"
)

// Roll adjusts t with conv. Anything other than Following rolls Modified Following.
func Roll(conv Convention, cal CalendarID, t time.Time) time.Time {
	if conv == Following {
		return AdjustFollowing(cal, t)
	}
	return Adjust(cal, t)
}

// AdjustFollowing applies a simple Following convention (no month preservation).
func AdjustFollowing(cal CalendarID, t time.Time) time.Time {
	for !IsBusinessDay(cal, t) {
		t = t.AddDate(0, 0, 1)
	}
	return t
}

// AddBusinessDays advances n business days (n can be negative).
func AddBusinessDays(cal CalendarID, t time.Time, n int) time.Time {
	step := 1
	if n < 0 {
		step = -1
	}
	for n != 0 {
		t = t.AddDate(0, 0, step)
		if IsBusinessDay(cal, t) {
			n -= step
		}
	}
	return t
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
