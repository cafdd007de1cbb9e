// Package availability derives bookable time slots from a doctor's recurring
// weekly schedule. Everything here is pure computation over a schedule
// snapshot; nothing is persisted.
package availability

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var ErrInvalidSchedule = errors.New("invalid weekly availability")

// Entry is one weekly window. Start and End are both bookable slot starts.
type Entry struct {
	Day                 Weekday `json:"day"`
	Start               Clock   `json:"start_time"`
	End                 Clock   `json:"end_time"`
	SlotDurationMinutes int     `json:"slot_duration_minutes"`
	Available           bool    `json:"is_available"`
}

// UnmarshalJSON requires day, start_time, end_time and slot_duration_minutes.
// A missing is_available means the window is off.
func (e *Entry) UnmarshalJSON(b []byte) error {
	var raw struct {
		Day                 *Weekday `json:"day"`
		Start               *Clock   `json:"start_time"`
		End                 *Clock   `json:"end_time"`
		SlotDurationMinutes *int     `json:"slot_duration_minutes"`
		Available           bool     `json:"is_available"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	switch {
	case raw.Day == nil:
		return missingField("day")
	case raw.Start == nil:
		return missingField("start_time")
	case raw.End == nil:
		return missingField("end_time")
	case raw.SlotDurationMinutes == nil:
		return missingField("slot_duration_minutes")
	}

	*e = Entry{
		Day:                 *raw.Day,
		Start:               *raw.Start,
		End:                 *raw.End,
		SlotDurationMinutes: *raw.SlotDurationMinutes,
		Available:           raw.Available,
	}
	return nil
}

func missingField(name string) error {
	return fmt.Errorf("%w: %s is required", ErrInvalidSchedule, name)
}

// WeeklyAvailability is kept in stored order; that order decides which entry
// wins when a weekday appears more than once.
type WeeklyAvailability []Entry

// Clone returns a copy that is safe to use after the source is mutated.
func (w WeeklyAvailability) Clone() WeeklyAvailability {
	if w == nil {
		return nil
	}
	out := make(WeeklyAvailability, len(w))
	copy(out, w)
	return out
}

// DaySchedule returns the first available entry for date's weekday.
// Duplicate weekdays are not rejected here: first match in stored order wins.
// An entry without a positive slot duration never matches.
func DaySchedule(w WeeklyAvailability, date time.Time) (Entry, bool) {
	day := Weekday(date.Weekday())
	for _, e := range w {
		if e.Day == day && e.Available && e.SlotDurationMinutes > 0 {
			return e, true
		}
	}
	return Entry{}, false
}

// IsSlotAvailable reports whether t falls inside the day's window, both
// boundaries included. t is assumed to be well formed.
func IsSlotAvailable(w WeeklyAvailability, date time.Time, t Clock) bool {
	e, ok := DaySchedule(w, date)
	if !ok {
		return false
	}
	return e.Start <= t && t <= e.End
}

// Slots returns the slot starts for date: Start, Start+d, ... while <= End.
// A window shorter than one slot still yields its start.
func Slots(w WeeklyAvailability, date time.Time) []Clock {
	e, ok := DaySchedule(w, date)
	if !ok {
		return []Clock{}
	}

	slots := make([]Clock, 0, int(e.End-e.Start)/e.SlotDurationMinutes+1)
	for t := e.Start; t <= e.End; t += Clock(e.SlotDurationMinutes) {
		slots = append(slots, t)
	}
	return slots
}

// ListAvailableSlots is Slots formatted as zero-padded HH:MM. It does not
// subtract slots that are already booked.
func ListAvailableSlots(w WeeklyAvailability, date time.Time) []string {
	slots := Slots(w, date)
	out := make([]string, len(slots))
	for i, s := range slots {
		out[i] = s.String()
	}
	return out
}

// Validate checks a schedule at authoring time.
func Validate(w WeeklyAvailability) error {
	for i, e := range w {
		switch {
		case !e.Day.Valid():
			return fmt.Errorf("%w: entry %d: %v", ErrInvalidSchedule, i, ErrInvalidWeekday)
		case !e.Start.Valid() || !e.End.Valid():
			return fmt.Errorf("%w: entry %d: %v", ErrInvalidSchedule, i, ErrInvalidClock)
		case e.Start >= e.End:
			return fmt.Errorf("%w: entry %d: start_time %s must be before end_time %s", ErrInvalidSchedule, i, e.Start, e.End)
		case e.SlotDurationMinutes <= 0:
			return fmt.Errorf("%w: entry %d: slot_duration_minutes must be positive", ErrInvalidSchedule, i)
		case e.SlotDurationMinutes > minutesPerDay:
			return fmt.Errorf("%w: entry %d: slot_duration_minutes must not exceed a day", ErrInvalidSchedule, i)
		}
	}
	return nil
}
