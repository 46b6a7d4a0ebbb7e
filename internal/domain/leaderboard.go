package domain

import (
	"fmt"
	"sort"
)

// Leaderboard page sizes.
const (
	DefaultLeaderboardLimit = 10
	MaxLeaderboardLimit     = 50
)

// Timeframe selects the aggregation window for a leaderboard query.
type Timeframe string

const (
	TimeframeDay   Timeframe = "day"
	TimeframeWeek  Timeframe = "week"
	TimeframeMonth Timeframe = "month"
	TimeframeAll   Timeframe = "all"
)

// ParseTimeframe validates a wire-level timeframe string. Empty defaults to
// all-time.
func ParseTimeframe(raw string) (Timeframe, error) {
	switch Timeframe(raw) {
	case TimeframeDay, TimeframeWeek, TimeframeMonth:
		return Timeframe(raw), nil
	case TimeframeAll, "":
		return TimeframeAll, nil
	default:
		return "", fmt.Errorf("%w: unknown timeframe %q", ErrInvalidInput, raw)
	}
}

// StepTotal is one user's aggregated step count over a window, hydrated with
// profile fields for display.
type StepTotal struct {
	UserID      string
	Username    string
	DisplayName string
	AvatarURL   string
	Level       int
	Steps       int64
}

// LeaderboardEntry is one ranked row of a leaderboard page.
type LeaderboardEntry struct {
	Rank        int
	UserID      string
	Username    string
	DisplayName string
	AvatarURL   string
	Level       int
	Steps       int64
	Miles       float64
}

// RankTotals orders totals into a leaderboard page. Users with non-positive
// totals are dropped; sorting is descending by steps with ties broken by
// ascending user id so rankings are stable across recomputation. Ranks 1..N
// are assigned only within the returned page.
func RankTotals(totals []StepTotal, limit int) []LeaderboardEntry {
	if limit <= 0 {
		limit = DefaultLeaderboardLimit
	}
	if limit > MaxLeaderboardLimit {
		limit = MaxLeaderboardLimit
	}

	eligible := make([]StepTotal, 0, len(totals))
	for _, total := range totals {
		if total.Steps > 0 {
			eligible = append(eligible, total)
		}
	}

	sort.Slice(eligible, func(i, j int) bool {
		if eligible[i].Steps != eligible[j].Steps {
			return eligible[i].Steps > eligible[j].Steps
		}
		return eligible[i].UserID < eligible[j].UserID
	})

	if len(eligible) > limit {
		eligible = eligible[:limit]
	}

	entries := make([]LeaderboardEntry, 0, len(eligible))
	for i, total := range eligible {
		entries = append(entries, LeaderboardEntry{
			Rank:        i + 1,
			UserID:      total.UserID,
			Username:    total.Username,
			DisplayName: total.DisplayName,
			AvatarURL:   total.AvatarURL,
			Level:       total.Level,
			Steps:       total.Steps,
			Miles:       float64(total.Steps) / StepsPerMile,
		})
	}
	return entries
}
