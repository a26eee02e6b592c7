package eligibility

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chicago(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Chicago")
	require.NoError(t, err)
	return loc
}

func TestClockParse(t *testing.T) {
	loc := chicago(t)
	clock := FixedClock(loc, "", time.Time{})

	tests := []struct {
		name    string
		in      string
		want    time.Time
		wantErr bool
	}{
		{name: "plain", in: "2024-06-01 08:00:00", want: time.Date(2024, 6, 1, 8, 0, 0, 0, loc)},
		{name: "zone suffix ignored", in: "2024-06-01 08:00:00 CST", want: time.Date(2024, 6, 1, 8, 0, 0, 0, loc)},
		{name: "foreign suffix ignored", in: "2024-06-01 08:00:00 UTC", want: time.Date(2024, 6, 1, 8, 0, 0, 0, loc)},
		{name: "surrounding spaces", in: "  2024-06-10 20:00:00 ", want: time.Date(2024, 6, 10, 20, 0, 0, 0, loc)},
		{name: "garbage", in: "tomorrow", wantErr: true},
		{name: "empty", in: "", wantErr: true},
		{name: "iso", in: "2024-06-01T08:00:00Z", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := clock.Parse(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}
}

func TestClockMinutesAndDate(t *testing.T) {
	loc := chicago(t)
	clock := FixedClock(loc, "", time.Time{})

	// 03:30 UTC is 22:30 the previous day in Chicago (CDT).
	utc := time.Date(2024, 6, 6, 3, 30, 0, 0, time.UTC)
	assert.Equal(t, 22*60+30, clock.MinutesOfDay(utc))
	assert.True(t, time.Date(2024, 6, 5, 0, 0, 0, 0, loc).Equal(clock.Date(utc)))
}

func TestNewClockUnknownZone(t *testing.T) {
	_, err := NewClock("Mars/Olympus", "")
	assert.Error(t, err)
}
