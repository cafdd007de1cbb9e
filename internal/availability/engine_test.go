package availability

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2025-06-02 is a Monday.
var (
	monday  = time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	tuesday = monday.AddDate(0, 0, 1)
)

func mondayMorning() WeeklyAvailability {
	return WeeklyAvailability{
		{Day: Weekday(time.Monday), Start: MustClock("09:00"), End: MustClock("12:00"), SlotDurationMinutes: 30, Available: true},
		{Day: Weekday(time.Wednesday), Start: MustClock("14:00"), End: MustClock("16:00"), SlotDurationMinutes: 60, Available: false},
	}
}

func TestListAvailableSlots(t *testing.T) {
	t.Run("inclusive of window end", func(t *testing.T) {
		got := ListAvailableSlots(mondayMorning(), monday)
		assert.Equal(t, []string{"09:00", "09:30", "10:00", "10:30", "11:00", "11:30", "12:00"}, got)
	})

	t.Run("no window for weekday", func(t *testing.T) {
		assert.Empty(t, ListAvailableSlots(mondayMorning(), tuesday))
	})

	t.Run("inactive window", func(t *testing.T) {
		wednesday := monday.AddDate(0, 0, 2)
		assert.Empty(t, ListAvailableSlots(mondayMorning(), wednesday))
	})

	t.Run("window shorter than one slot yields its start", func(t *testing.T) {
		w := WeeklyAvailability{
			{Day: Weekday(time.Monday), Start: MustClock("09:00"), End: MustClock("09:20"), SlotDurationMinutes: 30, Available: true},
		}
		assert.Equal(t, []string{"09:00"}, ListAvailableSlots(w, monday))
	})

	t.Run("step that does not land on end", func(t *testing.T) {
		w := WeeklyAvailability{
			{Day: Weekday(time.Monday), Start: MustClock("08:15"), End: MustClock("09:00"), SlotDurationMinutes: 20, Available: true},
		}
		assert.Equal(t, []string{"08:15", "08:35", "08:55"}, ListAvailableSlots(w, monday))
	})

	t.Run("late window does not run past midnight", func(t *testing.T) {
		w := WeeklyAvailability{
			{Day: Weekday(time.Monday), Start: MustClock("23:00"), End: MustClock("23:59"), SlotDurationMinutes: 45, Available: true},
		}
		assert.Equal(t, []string{"23:00", "23:45"}, ListAvailableSlots(w, monday))
	})
}

func TestDaySchedule_FirstActiveMatchWins(t *testing.T) {
	w := WeeklyAvailability{
		{Day: Weekday(time.Monday), Start: MustClock("07:00"), End: MustClock("08:00"), SlotDurationMinutes: 30, Available: false},
		{Day: Weekday(time.Monday), Start: MustClock("09:00"), End: MustClock("10:00"), SlotDurationMinutes: 30, Available: true},
		{Day: Weekday(time.Monday), Start: MustClock("13:00"), End: MustClock("15:00"), SlotDurationMinutes: 30, Available: true},
	}

	e, ok := DaySchedule(w, monday)
	require.True(t, ok)
	assert.Equal(t, MustClock("09:00"), e.Start)
	assert.Equal(t, MustClock("10:00"), e.End)

	assert.False(t, IsSlotAvailable(w, monday, MustClock("13:30")))
}

func TestIsSlotAvailable(t *testing.T) {
	w := mondayMorning()

	cases := []struct {
		name string
		date time.Time
		at   string
		want bool
	}{
		{"window start", monday, "09:00", true},
		{"window end", monday, "12:00", true},
		{"inside off-grid", monday, "10:17", true},
		{"before start", monday, "08:59", false},
		{"after end", monday, "12:01", false},
		{"other weekday", tuesday, "10:00", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsSlotAvailable(w, tc.date, MustClock(tc.at)))
		})
	}
}

func TestGeneratedSlotsAreAvailable(t *testing.T) {
	w := WeeklyAvailability{
		{Day: Weekday(time.Sunday), Start: MustClock("10:00"), End: MustClock("13:00"), SlotDurationMinutes: 25, Available: true},
		{Day: Weekday(time.Monday), Start: MustClock("00:00"), End: MustClock("23:59"), SlotDurationMinutes: 90, Available: true},
		{Day: Weekday(time.Friday), Start: MustClock("16:00"), End: MustClock("18:00"), SlotDurationMinutes: 15, Available: true},
	}

	for i := 0; i < 14; i++ {
		date := monday.AddDate(0, 0, i)
		slots := Slots(w, date)
		_, hasWindow := DaySchedule(w, date)
		assert.Equal(t, hasWindow, len(slots) > 0, date.Weekday().String())

		for _, s := range slots {
			assert.True(t, IsSlotAvailable(w, date, s), "%s %s", date.Format(DateFormat), s)
		}
	}
}

func TestDateLocationDecidesWeekday(t *testing.T) {
	algiers := time.FixedZone("CET", 60*60)
	// 23:30 UTC on Sunday is already Monday in UTC+1.
	sundayNightUTC := time.Date(2025, 6, 1, 23, 30, 0, 0, time.UTC)

	assert.Empty(t, Slots(mondayMorning(), sundayNightUTC))
	assert.NotEmpty(t, Slots(mondayMorning(), sundayNightUTC.In(algiers)))
}

func TestParseClock(t *testing.T) {
	valid := map[string]string{
		"09:30": "09:30",
		"9:30":  "09:30",
		"00:00": "00:00",
		"23:59": "23:59",
	}
	for in, want := range valid {
		c, err := ParseClock(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, c.String())
	}

	for _, in := range []string{"", "24:00", "12:60", "1230", "12:5", "+1:30", "ab:cd", "123:00", "12:00:00"} {
		_, err := ParseClock(in)
		assert.ErrorIs(t, err, ErrInvalidClock, in)
	}
}

func TestEntryJSON(t *testing.T) {
	raw := `[{"day":"Monday","start_time":"9:00","end_time":"12:00","slot_duration_minutes":30,"is_available":true}]`

	var w WeeklyAvailability
	require.NoError(t, json.Unmarshal([]byte(raw), &w))
	require.Len(t, w, 1)
	assert.Equal(t, Weekday(time.Monday), w[0].Day)
	assert.Equal(t, MustClock("09:00"), w[0].Start)

	out, err := json.Marshal(w)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"day":"Monday","start_time":"09:00","end_time":"12:00","slot_duration_minutes":30,"is_available":true}]`, string(out))

	assert.Error(t, json.Unmarshal([]byte(`[{"day":"Funday"}]`), &w))
}

func TestEntryJSON_RequiresFields(t *testing.T) {
	full := map[string]any{
		"day": "Monday", "start_time": "09:00", "end_time": "12:00",
		"slot_duration_minutes": 30, "is_available": true,
	}

	for _, field := range []string{"day", "start_time", "end_time", "slot_duration_minutes"} {
		t.Run("missing "+field, func(t *testing.T) {
			entry := make(map[string]any, len(full))
			for k, v := range full {
				if k != field {
					entry[k] = v
				}
			}
			raw, err := json.Marshal([]map[string]any{entry})
			require.NoError(t, err)

			var w WeeklyAvailability
			err = json.Unmarshal(raw, &w)
			require.ErrorIs(t, err, ErrInvalidSchedule)
			assert.Contains(t, err.Error(), field)
		})
	}

	t.Run("null day", func(t *testing.T) {
		var e Entry
		err := json.Unmarshal([]byte(`{"day":null,"start_time":"09:00","end_time":"12:00","slot_duration_minutes":30}`), &e)
		assert.ErrorIs(t, err, ErrInvalidSchedule)
	})

	t.Run("is_available defaults to off", func(t *testing.T) {
		var e Entry
		require.NoError(t, json.Unmarshal([]byte(`{"day":"Sunday","start_time":"09:00","end_time":"12:00","slot_duration_minutes":30}`), &e))
		assert.Equal(t, Weekday(time.Sunday), e.Day)
		assert.False(t, e.Available)
	})
}

func TestDaySchedule_NonPositiveDurationNeverMatches(t *testing.T) {
	w := WeeklyAvailability{
		{Day: Weekday(time.Monday), Start: MustClock("09:00"), End: MustClock("12:00"), SlotDurationMinutes: 0, Available: true},
	}

	_, ok := DaySchedule(w, monday)
	assert.False(t, ok)
	assert.False(t, IsSlotAvailable(w, monday, MustClock("09:00")))
	assert.Empty(t, ListAvailableSlots(w, monday))

	w = append(w, Entry{Day: Weekday(time.Monday), Start: MustClock("14:00"), End: MustClock("15:00"), SlotDurationMinutes: 30, Available: true})
	assert.Equal(t, []string{"14:00", "14:30", "15:00"}, ListAvailableSlots(w, monday))
}

func TestValidate(t *testing.T) {
	require.NoError(t, Validate(mondayMorning()))
	require.NoError(t, Validate(nil))

	bad := []Entry{
		{Day: Weekday(9), Start: MustClock("09:00"), End: MustClock("10:00"), SlotDurationMinutes: 30},
		{Day: Weekday(time.Monday), Start: MustClock("10:00"), End: MustClock("10:00"), SlotDurationMinutes: 30},
		{Day: Weekday(time.Monday), Start: MustClock("11:00"), End: MustClock("10:00"), SlotDurationMinutes: 30},
		{Day: Weekday(time.Monday), Start: MustClock("09:00"), End: MustClock("10:00"), SlotDurationMinutes: 0},
		{Day: Weekday(time.Monday), Start: Clock(-5), End: MustClock("10:00"), SlotDurationMinutes: 30},
	}
	for _, e := range bad {
		assert.ErrorIs(t, Validate(WeeklyAvailability{e}), ErrInvalidSchedule)
	}
}
