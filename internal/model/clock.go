package model

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// TimeOfDay is a wall-clock time as seconds since midnight.
type TimeOfDay int

func NewTimeOfDay(hour, minute, second int) TimeOfDay {
	return TimeOfDay(hour*3600 + minute*60 + second)
}

// ParseTimeOfDay accepts "15:04" or "15:04:05".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
			return NewTimeOfDay(t.Hour(), t.Minute(), t.Second()), nil
		}
	}
	return 0, Errorf(ErrValidation, "invalid time %q", s)
}

func (t TimeOfDay) Duration() time.Duration {
	return time.Duration(t) * time.Second
}

func (t TimeOfDay) String() string {
	s := int(t)
	return fmt.Sprintf("%02d:%02d:%02d", s/3600, s%3600/60, s%60)
}

// Microseconds is the representation postgres uses for TIME values.
func (t TimeOfDay) Microseconds() int64 {
	return int64(t) * 1_000_000
}

func TimeOfDayFromMicroseconds(us int64) TimeOfDay {
	return TimeOfDay(us / 1_000_000)
}

// ParseDate parses a calendar date into UTC midnight.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, Errorf(ErrValidation, "invalid date %q", s)
	}
	return d, nil
}

// DateOf truncates t to its calendar date at UTC midnight.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func FormatDate(t time.Time) string {
	return t.Format(dateLayout)
}

// ParseWeekday accepts full English day names in any case.
func ParseWeekday(s string) (time.Weekday, error) {
	s = strings.TrimSpace(s)
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(d.String(), s) {
			return d, nil
		}
	}
	return 0, Errorf(ErrValidation, "invalid day of week %q", s)
}

// ParseFee converts a decimal amount such as "1500" or "1500.50" to minor units.
func ParseFee(s string) (int64, error) {
	s = strings.TrimSpace(s)
	whole, frac, hasFrac := strings.Cut(s, ".")
	if whole == "" || (hasFrac && (frac == "" || len(frac) > 2)) {
		return 0, Errorf(ErrValidation, "invalid fee %q", s)
	}
	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || w < 0 {
		return 0, Errorf(ErrValidation, "invalid fee %q", s)
	}
	if w > (math.MaxInt64-99)/100 {
		return 0, Errorf(ErrValidation, "fee %q is too large", s)
	}
	var f int64
	if hasFrac {
		if len(frac) == 1 {
			frac += "0"
		}
		f, err = strconv.ParseInt(frac, 10, 64)
		if err != nil || f < 0 {
			return 0, Errorf(ErrValidation, "invalid fee %q", s)
		}
	}
	return w*100 + f, nil
}

func FormatFee(minor int64) string {
	return fmt.Sprintf("%d.%02d", minor/100, minor%100)
}
