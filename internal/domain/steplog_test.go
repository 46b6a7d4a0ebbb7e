package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseSyncMode(t *testing.T) {
	mode, err := ParseSyncMode("")
	require.NoError(t, err)
	require.Equal(t, SyncModeAdd, mode)

	mode, err = ParseSyncMode("set")
	require.NoError(t, err)
	require.Equal(t, SyncModeSet, mode)

	_, err = ParseSyncMode("merge")
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestApplyAddAccumulates(t *testing.T) {
	now := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	entry := StepLogEntry{StepsCount: 3000}

	delta := entry.apply(2000, SyncModeAdd, now)
	require.Equal(t, 2000, delta)
	require.Equal(t, 5000, entry.StepsCount)
	require.InDelta(t, 2.5, entry.DistanceMiles, 1e-9)
	require.Equal(t, now, entry.Timestamp)
}

func TestApplySetComputesSignedDelta(t *testing.T) {
	now := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	entry := StepLogEntry{StepsCount: 8000}

	delta := entry.apply(5000, SyncModeSet, now)
	require.Equal(t, -3000, delta)
	require.Equal(t, 5000, entry.StepsCount)

	delta = entry.apply(9000, SyncModeSet, now)
	require.Equal(t, 4000, delta)
	require.Equal(t, 9000, entry.StepsCount)
}

func TestSpendClampsAtZero(t *testing.T) {
	now := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	entry := StepLogEntry{StepsCount: 400}

	entry.spend(300, now)
	require.Equal(t, 100, entry.StepsCount)

	entry.spend(500, now)
	require.Equal(t, 0, entry.StepsCount)
	require.Equal(t, 0.0, entry.DistanceMiles)
}

func TestStreakCountsBackFromToday(t *testing.T) {
	today := time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC)
	entries := []StepLogEntry{
		{Date: today.AddDate(0, 0, -3), StepsCount: 100},
		{Date: today.AddDate(0, 0, -1), StepsCount: 200},
		{Date: today, StepsCount: 300},
	}

	require.Equal(t, 2, Streak(entries, today))
}

func TestStreakZeroWithoutToday(t *testing.T) {
	today := time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC)
	entries := []StepLogEntry{
		{Date: today.AddDate(0, 0, -1), StepsCount: 200},
		{Date: today, StepsCount: 0},
	}

	require.Equal(t, 0, Streak(entries, today))
}

func TestWeeklySeriesZeroFills(t *testing.T) {
	today := time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC)
	entries := []StepLogEntry{
		{Date: today, StepsCount: 500},
		{Date: today.AddDate(0, 0, -6), StepsCount: 100},
		// Outside the window; must not appear.
		{Date: today.AddDate(0, 0, -7), StepsCount: 9999},
	}

	series := WeeklySeries(entries, today)
	require.Len(t, series, 7)
	require.Equal(t, today.AddDate(0, 0, -6), series[0].Date)
	require.Equal(t, 100, series[0].Steps)
	for _, day := range series[1:6] {
		require.Equal(t, 0, day.Steps)
	}
	require.Equal(t, today, series[6].Date)
	require.Equal(t, 500, series[6].Steps)
}
