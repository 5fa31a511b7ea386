package types

import (
	"testing"
	"time"
)

func TestCalendarTimeRoundTrip(t *testing.T) {
	loc, err := time.LoadLocation("America/Chicago")
	if err != nil {
		t.Fatal(err)
	}
	orig := time.Date(2024, 2, 29, 23, 59, 58, 0, loc)

	ct := CalendarTimeOf(orig)
	if got := ct.Time(loc); !got.Equal(orig) {
		t.Errorf("round trip %v, want %v", got, orig)
	}
	if ct.Weekday != int(orig.Weekday()) {
		t.Errorf("weekday %d, want %d", ct.Weekday, orig.Weekday())
	}
	if ct.YearDay != 60 {
		t.Errorf("leap-year Feb 29 year day %d, want 60", ct.YearDay)
	}
}

func TestSameMinuteIgnoresSeconds(t *testing.T) {
	base := CalendarTimeOf(time.Date(2024, 6, 15, 11, 30, 0, 0, time.UTC))

	cases := []struct {
		name string
		ts   time.Time
		want bool
	}{
		{"identical", time.Date(2024, 6, 15, 11, 30, 0, 0, time.UTC), true},
		{"other second", time.Date(2024, 6, 15, 11, 30, 59, 0, time.UTC), true},
		{"next minute", time.Date(2024, 6, 15, 11, 31, 0, 0, time.UTC), false},
		{"other hour", time.Date(2024, 6, 15, 12, 30, 0, 0, time.UTC), false},
		{"other day", time.Date(2024, 6, 16, 11, 30, 0, 0, time.UTC), false},
	}
	for _, tc := range cases {
		if got := base.SameMinute(CalendarTimeOf(tc.ts)); got != tc.want {
			t.Errorf("%s: SameMinute = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestBeforeAfterOrdering(t *testing.T) {
	earlier := CalendarTimeOf(time.Date(2024, 6, 15, 11, 30, 10, 0, time.UTC))
	later := CalendarTimeOf(time.Date(2024, 6, 15, 11, 30, 20, 0, time.UTC))

	if !earlier.Before(later) || later.Before(earlier) {
		t.Error("Before ordering wrong within a minute")
	}
	if !later.After(earlier) || earlier.After(later) {
		t.Error("After ordering wrong within a minute")
	}

	newYear := CalendarTimeOf(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	if !earlier.Before(newYear) {
		t.Error("year boundary ordering wrong")
	}
}

func TestCompareDate(t *testing.T) {
	a := CalendarTimeOf(time.Date(2024, 6, 15, 23, 0, 0, 0, time.UTC))
	b := CalendarTimeOf(time.Date(2024, 6, 16, 1, 0, 0, 0, time.UTC))

	if a.CompareDate(b) >= 0 {
		t.Error("earlier date must compare negative")
	}
	if b.CompareDate(a) <= 0 {
		t.Error("later date must compare positive")
	}
	sameDay := CalendarTimeOf(time.Date(2024, 6, 15, 2, 0, 0, 0, time.UTC))
	if a.CompareDate(sameDay) != 0 {
		t.Error("time of day must not affect date comparison")
	}
}

func TestIsZeroAndDateOnly(t *testing.T) {
	var zero CalendarTime
	if !zero.IsZero() {
		t.Error("zero value must report IsZero")
	}

	ct := CalendarTimeOf(time.Date(2024, 6, 15, 11, 30, 45, 0, time.UTC))
	if ct.IsZero() {
		t.Error("populated timestamp must not report IsZero")
	}

	date := ct.DateOnly()
	if date.Hour != 0 || date.Minute != 0 || date.Second != 0 {
		t.Errorf("DateOnly kept time of day: %+v", date)
	}
	if !date.SameDay(ct) {
		t.Error("DateOnly changed the date")
	}
}

func TestAggregatePopulated(t *testing.T) {
	var empty DailyAggregate
	if empty.Populated() {
		t.Error("zero aggregate must not report populated")
	}

	filled := DailyAggregate{Date: CalendarTimeOf(time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)), SampleCount: 1}
	if !filled.Populated() {
		t.Error("aggregate with samples must report populated")
	}
}

func TestPlantConditionString(t *testing.T) {
	conditions := []PlantCondition{
		SoilDry, SoilWet, NeedsWatering, WateringCompleted,
		TempTooHigh, TempTooLow, ConditionError,
	}
	seen := make(map[string]bool)
	for _, c := range conditions {
		s := c.String()
		if s == "" {
			t.Errorf("condition %d has empty string", c)
		}
		if seen[s] {
			t.Errorf("duplicate condition string %q", s)
		}
		seen[s] = true
	}
}
