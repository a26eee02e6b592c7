package eligibility

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // kiosks ship without a zoneinfo database
	"unicode"
)

// DefaultLayout is the wall-clock format campaigns store their window in.
const DefaultLayout = "2006-01-02 15:04:05"

// Clock resolves "now" and stored wall-clock strings into the single
// operational timezone. All comparisons made by the evaluator go through it.
type Clock struct {
	loc    *time.Location
	layout string
	now    func() time.Time
}

// NewClock loads the named IANA zone. An empty layout selects DefaultLayout.
func NewClock(tz, layout string) (*Clock, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", tz, err)
	}
	return newClock(loc, layout, time.Now), nil
}

// FixedClock returns a clock whose Now always reports at.
func FixedClock(loc *time.Location, layout string, at time.Time) *Clock {
	return newClock(loc, layout, func() time.Time { return at })
}

func newClock(loc *time.Location, layout string, now func() time.Time) *Clock {
	if layout == "" {
		layout = DefaultLayout
	}
	return &Clock{loc: loc, layout: layout, now: now}
}

// Location returns the operational timezone.
func (c *Clock) Location() *time.Location { return c.loc }

// Layout returns the wall-clock layout.
func (c *Clock) Layout() string { return c.layout }

// Now returns the current instant in the operational timezone.
func (c *Clock) Now() time.Time { return c.now().In(c.loc) }

// Parse interprets s in the operational timezone. A trailing zone
// abbreviation such as " CST" is dropped: stored strings carry it for
// display only and the operational zone always governs.
func (c *Clock) Parse(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, ' '); i > 0 && isZoneAbbrev(s[i+1:]) {
		s = strings.TrimSpace(s[:i])
	}
	t, err := time.ParseInLocation(c.layout, s, c.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %q: %w", s, err)
	}
	return t, nil
}

// Format renders t as a wall-clock string in the operational timezone.
func (c *Clock) Format(t time.Time) string {
	return t.In(c.loc).Format(c.layout)
}

// MinutesOfDay returns minutes since local midnight.
func (c *Clock) MinutesOfDay(t time.Time) int {
	t = t.In(c.loc)
	return t.Hour()*60 + t.Minute()
}

// Date truncates t to local midnight.
func (c *Clock) Date(t time.Time) time.Time {
	y, m, d := t.In(c.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, c.loc)
}

func isZoneAbbrev(s string) bool {
	if len(s) < 2 || len(s) > 5 {
		return false
	}
	for _, r := range s {
		if !unicode.IsUpper(r) {
			return false
		}
	}
	return true
}
