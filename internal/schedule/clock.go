package schedule

import (
	"strconv"
	"strings"
)

// ClockMinutes converts a "HH:MM" clock string to minutes since
// midnight. ok is false on malformed input; callers treat that as "no
// match" rather than an error.
func ClockMinutes(clock string) (int, bool) {
	h, m, found := strings.Cut(clock, ":")
	if !found {
		return 0, false
	}
	hours, err := strconv.Atoi(h)
	if err != nil {
		return 0, false
	}
	minutes, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	if hours < 0 || hours > 23 || minutes < 0 || minutes > 59 {
		return 0, false
	}
	return hours*60 + minutes, true
}

// FormatClock renders minutes since midnight back to "HH:MM".
func FormatClock(minutes int) string {
	h := minutes / 60
	m := minutes % 60
	var b strings.Builder
	if h < 10 {
		b.WriteByte('0')
	}
	b.WriteString(strconv.Itoa(h))
	b.WriteByte(':')
	if m < 10 {
		b.WriteByte('0')
	}
	b.WriteString(strconv.Itoa(m))
	return b.String()
}
