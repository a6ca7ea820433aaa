package recurrence

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Recurrence patterns.
const (
	Daily   = "daily"
	Weekly  = "weekly"
	Monthly = "monthly"
)

// Rule is a validated recurrence rule. Unknown patterns and out-of-range
// fields are rejected by Parse/Validate, never at evaluation time.
type Rule struct {
	Pattern    string
	Frequency  int   // multiplier, >= 1
	Hour       int   // time-of-day of each occurrence
	Minute     int
	DaysOfWeek []int // weekly only, 0=Sunday .. 6=Saturday
	DayOfMonth int   // monthly only, 1..31; clamped to month length
}

type configJSON struct {
	Frequency  int    `json:"frequency,omitempty"`
	Time       string `json:"time,omitempty"`
	DaysOfWeek []int  `json:"daysOfWeek,omitempty"`
	DayOfMonth int    `json:"dayOfMonth,omitempty"`
}

// Parse builds a Rule from a pattern and its JSON config.
func Parse(pattern, config string) (Rule, error) {
	var c configJSON
	if config != "" {
		if err := json.Unmarshal([]byte(config), &c); err != nil {
			return Rule{}, fmt.Errorf("parse recurrence config: %w", err)
		}
	}
	r := Rule{
		Pattern:    pattern,
		Frequency:  c.Frequency,
		DaysOfWeek: c.DaysOfWeek,
		DayOfMonth: c.DayOfMonth,
	}
	if r.Frequency == 0 {
		r.Frequency = 1
	}
	if c.Time == "" {
		c.Time = "09:00"
	}
	if _, err := fmt.Sscanf(c.Time, "%d:%d", &r.Hour, &r.Minute); err != nil {
		return Rule{}, fmt.Errorf("parse recurrence time %q: %w", c.Time, err)
	}
	if err := r.Validate(); err != nil {
		return Rule{}, err
	}
	return r, nil
}

// Validate checks the rule's fields against its pattern.
func (r Rule) Validate() error {
	switch r.Pattern {
	case Daily:
	case Weekly:
		if len(r.DaysOfWeek) == 0 {
			return fmt.Errorf("weekly recurrence requires daysOfWeek")
		}
		for _, d := range r.DaysOfWeek {
			if d < 0 || d > 6 {
				return fmt.Errorf("daysOfWeek value %d out of range 0..6", d)
			}
		}
	case Monthly:
		if r.DayOfMonth < 1 || r.DayOfMonth > 31 {
			return fmt.Errorf("dayOfMonth %d out of range 1..31", r.DayOfMonth)
		}
	default:
		return fmt.Errorf("unknown recurrence pattern %q", r.Pattern)
	}
	if r.Frequency < 1 {
		return fmt.Errorf("frequency %d must be >= 1", r.Frequency)
	}
	if r.Hour < 0 || r.Hour > 23 || r.Minute < 0 || r.Minute > 59 {
		return fmt.Errorf("time %02d:%02d out of range", r.Hour, r.Minute)
	}
	return nil
}

// ConfigJSON serializes the rule's config for storage.
func (r Rule) ConfigJSON() string {
	c := configJSON{
		Frequency:  r.Frequency,
		Time:       fmt.Sprintf("%02d:%02d", r.Hour, r.Minute),
		DaysOfWeek: r.DaysOfWeek,
		DayOfMonth: r.DayOfMonth,
	}
	b, _ := json.Marshal(c)
	return string(b)
}

// NextOccurrence returns the next firing instant strictly after ref, in
// ref's location. The scheduler may run late or twice in the same period, so
// a non-advancing result retries with a bumped frequency until it is in the
// future.
func NextOccurrence(r Rule, ref time.Time) time.Time {
	next := occurrence(r, ref)
	for !next.After(ref) {
		r.Frequency++
		next = occurrence(r, ref)
	}
	return next
}

func occurrence(r Rule, ref time.Time) time.Time {
	loc := ref.Location()
	switch r.Pattern {
	case Daily:
		d := ref.AddDate(0, 0, r.Frequency)
		return time.Date(d.Year(), d.Month(), d.Day(), r.Hour, r.Minute, 0, 0, loc)
	case Weekly:
		days := append([]int(nil), r.DaysOfWeek...)
		sort.Ints(days)
		refDow := int(ref.Weekday())
		delta := -1
		for _, d := range days {
			if d > refDow {
				delta = d - refDow
				break
			}
		}
		if delta < 0 {
			// wrap to the smallest configured day in a later week
			delta = 7*r.Frequency - (refDow - days[0])
		}
		d := ref.AddDate(0, 0, delta)
		return time.Date(d.Year(), d.Month(), d.Day(), r.Hour, r.Minute, 0, 0, loc)
	case Monthly:
		first := time.Date(ref.Year(), ref.Month()+time.Month(r.Frequency), 1, r.Hour, r.Minute, 0, 0, loc)
		day := r.DayOfMonth
		if last := lastDayOfMonth(first); day > last {
			day = last
		}
		return time.Date(first.Year(), first.Month(), day, r.Hour, r.Minute, 0, 0, loc)
	default:
		panic(fmt.Sprintf("unknown recurrence pattern %q", r.Pattern))
	}
}

// DueDate returns the deadline for an assignment fired at assignedAt: the end
// of the day one period later.
func DueDate(pattern string, assignedAt time.Time) time.Time {
	var d time.Time
	switch pattern {
	case Daily:
		d = assignedAt.AddDate(0, 0, 1)
	case Weekly:
		d = assignedAt.AddDate(0, 0, 7)
	case Monthly:
		d = assignedAt.AddDate(0, 1, 0)
	default:
		panic(fmt.Sprintf("unknown recurrence pattern %q", pattern))
	}
	return time.Date(d.Year(), d.Month(), d.Day(), 23, 59, 59, 0, assignedAt.Location())
}

func lastDayOfMonth(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
}
