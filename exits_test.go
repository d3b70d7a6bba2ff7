package metro

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metroplan.dev/metro/storage"
)

func mustTimeOfDay(t *testing.T, s string) TimeOfDay {
	tod, err := ParseTimeOfDay(s)
	require.NoError(t, err)
	return tod
}

func at(t *testing.T, clock string) time.Time {
	when, err := time.Parse("2006-01-02 15:04", "2025-03-10 "+clock)
	require.NoError(t, err)
	return when
}

func TestEvaluateExitsNocturnalAlwaysOpen(t *testing.T) {
	night := NightWindow{
		Start: mustTimeOfDay(t, "22:00"),
		End:   mustTimeOfDay(t, "06:00"),
	}
	exits := []*storage.Exit{
		{StationCode: "ABN", Name: "Plaza Circular", Elevator: true, Nocturnal: true},
	}

	for _, clock := range []string{"00:00", "03:30", "05:59", "12:00", "22:00", "23:59"} {
		statuses := EvaluateExits(exits, at(t, clock), night)
		require.Len(t, statuses, 1)
		assert.True(t, statuses[0].Available, "nocturnal exit closed at %s", clock)
		assert.Empty(t, statuses[0].Issues)
	}
}

func TestEvaluateExitsNightWindowWrapsMidnight(t *testing.T) {
	night := NightWindow{
		Start: mustTimeOfDay(t, "22:00"),
		End:   mustTimeOfDay(t, "06:00"),
	}
	exits := []*storage.Exit{
		{StationCode: "ABN", Name: "Berastegi"},
	}

	for clock, open := range map[string]bool{
		"23:30": false,
		"05:00": false,
		"22:00": false, // start boundary is closed
		"12:00": true,
		"06:00": true, // end boundary is open, interval is half-open
		"21:59": true,
	} {
		statuses := EvaluateExits(exits, at(t, clock), night)
		require.Len(t, statuses, 1)
		assert.Equal(t, open, statuses[0].Available, "at %s", clock)
		if open {
			assert.Empty(t, statuses[0].Issues)
		} else {
			require.Len(t, statuses[0].Issues, 1)
			assert.Contains(t, statuses[0].Issues[0], "22:00-06:00")
		}
	}
}

func TestEvaluateExitsNonWrappingWindow(t *testing.T) {
	night := NightWindow{
		Start: mustTimeOfDay(t, "01:00"),
		End:   mustTimeOfDay(t, "05:00"),
	}
	exits := []*storage.Exit{
		{StationCode: "CAD", Name: "Askao"},
	}

	for clock, open := range map[string]bool{
		"00:30": true,
		"01:00": false,
		"03:00": false,
		"05:00": true,
		"23:00": true,
	} {
		statuses := EvaluateExits(exits, at(t, clock), night)
		require.Len(t, statuses, 1)
		assert.Equal(t, open, statuses[0].Available, "at %s", clock)
	}
}

func TestEvaluateExitsEmptyWindowNeverCloses(t *testing.T) {
	night := NightWindow{
		Start: mustTimeOfDay(t, "22:00"),
		End:   mustTimeOfDay(t, "22:00"),
	}
	exits := []*storage.Exit{
		{StationCode: "CAD", Name: "Askao"},
	}

	statuses := EvaluateExits(exits, at(t, "22:30"), night)
	require.Len(t, statuses, 1)
	assert.True(t, statuses[0].Available)
}

func TestEvaluateExitsNoExits(t *testing.T) {
	night := NightWindow{
		Start: mustTimeOfDay(t, "22:00"),
		End:   mustTimeOfDay(t, "06:00"),
	}

	statuses := EvaluateExits(nil, at(t, "12:00"), night)
	assert.NotNil(t, statuses)
	assert.Empty(t, statuses)
}
