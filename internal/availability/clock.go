package availability

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	TimeFormat = "15:04"      // HH:MM
	DateFormat = "2006-01-02" // YYYY-MM-DD

	minutesPerDay = 24 * 60
)

var (
	ErrInvalidClock   = errors.New("time must be HH:MM with hours 00-23 and minutes 00-59")
	ErrInvalidWeekday = errors.New("day must be an English weekday name")
)

// Clock is a minute of day in the range 0-1439.
type Clock int

// ParseClock accepts "H:MM" or "HH:MM". The result always formats back as
// zero-padded "HH:MM", so "9:30" and "09:30" name the same slot.
func ParseClock(s string) (Clock, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || len(h) < 1 || len(h) > 2 || len(m) != 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}

	hours, err := strconv.Atoi(h)
	if err != nil || hours < 0 || hours > 23 || !isDigits(h) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	minutes, err := strconv.Atoi(m)
	if err != nil || minutes < 0 || minutes > 59 || !isDigits(m) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}

	return Clock(hours*60 + minutes), nil
}

// MustClock is ParseClock for literals.
func MustClock(s string) Clock {
	c, err := ParseClock(s)
	if err != nil {
		panic(err)
	}
	return c
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func (c Clock) Valid() bool {
	return c >= 0 && c < minutesPerDay
}

func (c Clock) Hour() int   { return int(c) / 60 }
func (c Clock) Minute() int { return int(c) % 60 }

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

func (c Clock) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidClock, int(c))
	}
	return []byte(c.String()), nil
}

func (c *Clock) UnmarshalText(b []byte) error {
	parsed, err := ParseClock(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// On returns the instant at which clock c falls on the calendar day of date,
// in date's location.
func (c Clock) On(date time.Time) time.Time {
	y, mo, d := date.Date()
	return time.Date(y, mo, d, c.Hour(), c.Minute(), 0, 0, date.Location())
}

// ClockOf returns the minute of day of t, in t's location.
func ClockOf(t time.Time) Clock {
	return Clock(t.Hour()*60 + t.Minute())
}

// Weekday is time.Weekday with an English day-name text form.
type Weekday time.Weekday

func (d Weekday) String() string {
	return time.Weekday(d).String()
}

func (d Weekday) Valid() bool {
	return d >= Weekday(time.Sunday) && d <= Weekday(time.Saturday)
}

func ParseWeekday(s string) (Weekday, error) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(d.String(), strings.TrimSpace(s)) {
			return Weekday(d), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidWeekday, s)
}

func (d Weekday) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidWeekday, int(d))
	}
	return []byte(d.String()), nil
}

func (d *Weekday) UnmarshalText(b []byte) error {
	parsed, err := ParseWeekday(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
