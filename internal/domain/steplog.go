package domain

import (
	"fmt"
	"time"
)

// StepsPerMile converts recorded steps into virtual-journey miles.
const StepsPerMile = 2000

// stepsPerExpPoint controls XP earned from synced steps.
const stepsPerExpPoint = 100

// SyncMode selects how a sync request combines with the day's existing count.
type SyncMode string

const (
	// SyncModeAdd increments the day's count by the reported amount.
	SyncModeAdd SyncMode = "add"
	// SyncModeSet replaces the day's count with the reported amount.
	SyncModeSet SyncMode = "set"
)

// ParseSyncMode validates a wire-level mode string. An empty mode defaults to
// add.
func ParseSyncMode(raw string) (SyncMode, error) {
	switch SyncMode(raw) {
	case SyncModeAdd, "":
		return SyncModeAdd, nil
	case SyncModeSet:
		return SyncModeSet, nil
	default:
		return "", fmt.Errorf("%w: unknown sync mode %q", ErrInvalidInput, raw)
	}
}

// StepLogEntry is the per-user-per-day step ledger row. One row per calendar
// day; rows are never deleted.
type StepLogEntry struct {
	ID            string
	UserID        string
	Date          time.Time
	StepsCount    int
	DistanceMiles float64
	Source        string
	Timestamp     time.Time
	Version       int64
}

// apply folds a sync request into the entry and returns the signed delta.
// DistanceMiles is recomputed so it always equals StepsCount / 2000.
func (e *StepLogEntry) apply(count int, mode SyncMode, now time.Time) int {
	var delta int
	switch mode {
	case SyncModeSet:
		delta = count - e.StepsCount
		e.StepsCount = count
	default:
		delta = count
		e.StepsCount += count
	}
	e.DistanceMiles = Miles(e.StepsCount)
	e.Timestamp = now
	return delta
}

// spend deducts steps consumed by a boss attack from the day's count.
func (e *StepLogEntry) spend(steps int, now time.Time) {
	e.StepsCount -= steps
	if e.StepsCount < 0 {
		e.StepsCount = 0
	}
	e.DistanceMiles = Miles(e.StepsCount)
	e.Timestamp = now
}

// Miles converts a step count to miles at the fixed 2000 steps/mile rate.
func Miles(steps int) float64 {
	return float64(steps) / StepsPerMile
}

// Streak counts consecutive calendar days ending today with a positive step
// count. entries may arrive in any order.
func Streak(entries []StepLogEntry, today time.Time) int {
	byDate := make(map[time.Time]int, len(entries))
	for _, entry := range entries {
		byDate[DateOf(entry.Date)] = entry.StepsCount
	}

	streak := 0
	for day := DateOf(today); byDate[day] > 0; day = day.AddDate(0, 0, -1) {
		streak++
	}
	return streak
}

// WeeklyTotal is one day of the trailing-week chart.
type WeeklyTotal struct {
	Date  time.Time
	Steps int
}

// WeeklySeries builds the trailing 7-day series ending today, zero-filling
// days without a ledger row.
func WeeklySeries(entries []StepLogEntry, today time.Time) []WeeklyTotal {
	byDate := make(map[time.Time]int, len(entries))
	for _, entry := range entries {
		byDate[DateOf(entry.Date)] = entry.StepsCount
	}

	start := DateOf(today).AddDate(0, 0, -6)
	series := make([]WeeklyTotal, 0, 7)
	for i := 0; i < 7; i++ {
		day := start.AddDate(0, 0, i)
		series = append(series, WeeklyTotal{Date: day, Steps: byDate[day]})
	}
	return series
}
