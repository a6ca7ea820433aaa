package recurrence

import (
	"testing"
	"time"
)

func mustParse(t *testing.T, pattern, config string) Rule {
	t.Helper()
	r, err := Parse(pattern, config)
	if err != nil {
		t.Fatalf("parse rule: %v", err)
	}
	return r
}

func TestParseRejectsUnknownPattern(t *testing.T) {
	if _, err := Parse("hourly", `{"time":"09:00"}`); err == nil {
		t.Fatalf("expected error for unknown pattern")
	}
	if _, err := Parse("weekly", `{"time":"09:00"}`); err == nil {
		t.Fatalf("expected error for weekly without daysOfWeek")
	}
	if _, err := Parse("monthly", `{"time":"09:00","dayOfMonth":32}`); err == nil {
		t.Fatalf("expected error for dayOfMonth out of range")
	}
	if _, err := Parse("weekly", `{"daysOfWeek":[7]}`); err == nil {
		t.Fatalf("expected error for daysOfWeek out of range")
	}
}

func TestDailyNextOccurrence(t *testing.T) {
	r := mustParse(t, Daily, `{"time":"09:00"}`)
	ref := time.Date(2025, 3, 10, 9, 5, 0, 0, time.UTC) // Monday
	next := NextOccurrence(r, ref)
	want := time.Date(2025, 3, 11, 9, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("next = %v, want %v", next, want)
	}
}

func TestDailyFrequencyMultiplier(t *testing.T) {
	r := mustParse(t, Daily, `{"frequency":3,"time":"06:30"}`)
	ref := time.Date(2025, 3, 10, 6, 30, 0, 0, time.UTC)
	next := NextOccurrence(r, ref)
	want := time.Date(2025, 3, 13, 6, 30, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("next = %v, want %v", next, want)
	}
}

func TestWeeklyPicksNextConfiguredDay(t *testing.T) {
	// Mon/Wed/Fri from a Thursday must land on the following Friday.
	r := mustParse(t, Weekly, `{"time":"09:00","daysOfWeek":[1,3,5]}`)
	ref := time.Date(2025, 3, 13, 10, 0, 0, 0, time.UTC) // Thursday
	next := NextOccurrence(r, ref)
	want := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC) // Friday
	if !next.Equal(want) {
		t.Fatalf("next = %v, want %v", next, want)
	}
}

func TestWeeklyWrapsToSmallestDay(t *testing.T) {
	// Only Mondays; from a Monday after fire time the next hit is a week out.
	r := mustParse(t, Weekly, `{"time":"09:00","daysOfWeek":[1]}`)
	ref := time.Date(2025, 3, 10, 9, 5, 0, 0, time.UTC) // Monday 09:05
	next := NextOccurrence(r, ref)
	want := time.Date(2025, 3, 17, 9, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("next = %v, want %v", next, want)
	}
	if next.Weekday() != time.Monday {
		t.Fatalf("expected Monday, got %v", next.Weekday())
	}
}

func TestWeeklyWrapWithFrequency(t *testing.T) {
	// Biweekly Monday from a Wednesday: wrap lands 7*2-(3-1) = 12 days out.
	r := mustParse(t, Weekly, `{"frequency":2,"time":"08:00","daysOfWeek":[1]}`)
	ref := time.Date(2025, 3, 12, 12, 0, 0, 0, time.UTC) // Wednesday
	next := NextOccurrence(r, ref)
	want := time.Date(2025, 3, 24, 8, 0, 0, 0, time.UTC) // Monday two weeks over
	if !next.Equal(want) {
		t.Fatalf("next = %v, want %v", next, want)
	}
}

func TestMonthlyClampsToShortMonth(t *testing.T) {
	r := mustParse(t, Monthly, `{"time":"09:00","dayOfMonth":31}`)
	ref := time.Date(2025, 1, 31, 10, 0, 0, 0, time.UTC)
	next := NextOccurrence(r, ref)
	want := time.Date(2025, 2, 28, 9, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("next = %v, want %v", next, want)
	}

	// leap year keeps the 29th
	ref = time.Date(2024, 1, 31, 10, 0, 0, 0, time.UTC)
	next = NextOccurrence(r, ref)
	want = time.Date(2024, 2, 29, 9, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("leap next = %v, want %v", next, want)
	}
}

func TestNextOccurrenceStrictlyFuture(t *testing.T) {
	rules := []Rule{
		mustParse(t, Daily, `{"time":"00:00"}`),
		mustParse(t, Weekly, `{"time":"23:59","daysOfWeek":[0,1,2,3,4,5,6]}`),
		mustParse(t, Monthly, `{"time":"00:00","dayOfMonth":1}`),
	}
	refs := []time.Time{
		time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 6, 30, 23, 59, 59, 0, time.UTC),
		time.Date(2024, 2, 29, 12, 0, 0, 0, time.UTC),
		time.Date(2025, 12, 31, 23, 59, 0, 0, time.UTC),
	}
	for _, r := range rules {
		for _, ref := range refs {
			next := NextOccurrence(r, ref)
			if !next.After(ref) {
				t.Fatalf("pattern %s: next %v not after ref %v", r.Pattern, next, ref)
			}
		}
	}
}

func TestDueDates(t *testing.T) {
	at := time.Date(2025, 3, 10, 9, 5, 0, 0, time.UTC)
	if got := DueDate(Daily, at); !got.Equal(time.Date(2025, 3, 11, 23, 59, 59, 0, time.UTC)) {
		t.Fatalf("daily due = %v", got)
	}
	if got := DueDate(Weekly, at); !got.Equal(time.Date(2025, 3, 17, 23, 59, 59, 0, time.UTC)) {
		t.Fatalf("weekly due = %v", got)
	}
	if got := DueDate(Monthly, at); !got.Equal(time.Date(2025, 4, 10, 23, 59, 59, 0, time.UTC)) {
		t.Fatalf("monthly due = %v", got)
	}
}

func TestConfigRoundTrip(t *testing.T) {
	r := mustParse(t, Weekly, `{"frequency":2,"time":"07:30","daysOfWeek":[2,4]}`)
	r2, err := Parse(Weekly, r.ConfigJSON())
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	if r2.Frequency != 2 || r2.Hour != 7 || r2.Minute != 30 || len(r2.DaysOfWeek) != 2 {
		t.Fatalf("round trip mismatch: %+v", r2)
	}
}
