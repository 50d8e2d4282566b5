package models

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"00:00", 0, false},
		{"09:30", 570, false},
		{"23:59", 1439, false},
		{"24:00", 1440, false},
		{"24:01", 0, true},
		{"9:30", 0, true},
		{"12:60", 0, true},
		{"ab:cd", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseClock(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAtKeepsWallClockAcrossDST(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	tests := []struct {
		name  string
		date  string
		clock string
		want  time.Time
	}{
		{"spring forward afternoon", "2025-03-09", "14:00", time.Date(2025, 3, 9, 18, 0, 0, 0, time.UTC)},
		{"spring forward morning", "2025-03-09", "01:30", time.Date(2025, 3, 9, 6, 30, 0, 0, time.UTC)},
		{"fall back afternoon", "2025-11-02", "14:00", time.Date(2025, 11, 2, 19, 0, 0, 0, time.UTC)},
		{"fall back end of day", "2025-11-02", "24:00", time.Date(2025, 11, 3, 5, 0, 0, 0, time.UTC)},
		{"ordinary end of day", "2025-06-15", "24:00", time.Date(2025, 6, 16, 4, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := At(tt.date, tt.clock, ny)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s, want %s", got, tt.want.In(ny))
			if tt.clock != "24:00" {
				assert.Equal(t, tt.clock, got.In(ny).Format(ClockLayout))
			}
		})
	}

	midnight, err := At("2025-11-02", "00:00", ny)
	require.NoError(t, err)
	endOfDay, err := At("2025-11-02", "24:00", ny)
	require.NoError(t, err)
	assert.Equal(t, 25*time.Hour, endOfDay.Sub(midnight))
}

func TestBookingEndAtOnFallBackDay(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	b := &Booking{Date: "2025-11-02", StartTime: "14:00", EndTime: "16:00"}
	start, err := b.StartAt(ny)
	require.NoError(t, err)
	end, err := b.EndAt(ny)
	require.NoError(t, err)

	assert.Equal(t, 2*time.Hour, end.Sub(start))
	due := end.Add(15 * time.Minute)
	assert.True(t, time.Date(2025, 11, 2, 21, 15, 0, 0, time.UTC).Equal(due))
}

func TestValidateInterval(t *testing.T) {
	s, e, err := ValidateInterval("22:00", "24:00")
	require.NoError(t, err)
	assert.Equal(t, 1320, s)
	assert.Equal(t, 1440, e)

	for _, bad := range [][2]string{{"10:00", "10:00"}, {"11:00", "10:00"}, {"24:00", "24:00"}, {"10:00", "25:00"}} {
		_, _, err := ValidateInterval(bad[0], bad[1])
		assert.Error(t, err, "%s-%s", bad[0], bad[1])
	}
}

func TestOverlapsIsHalfOpen(t *testing.T) {
	assert.True(t, Overlaps(600, 660, 630, 690))
	assert.True(t, Overlaps(600, 720, 630, 660))
	assert.False(t, Overlaps(600, 660, 660, 720))
	assert.False(t, Overlaps(660, 720, 600, 660))
}

func TestStatusHelpers(t *testing.T) {
	for _, s := range LiveStatuses {
		assert.True(t, s.IsLive())
		assert.False(t, s.IsTerminal())
	}
	for _, s := range []Status{StatusCompleted, StatusCancelled, StatusRejected} {
		assert.True(t, s.IsTerminal())
		assert.False(t, s.IsLive())
	}

	got, err := ParseStatus("confirmed")
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, got)

	_, err = ParseStatus("archived")
	assert.Error(t, err)
}
