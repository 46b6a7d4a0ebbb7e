package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseTimeframe(t *testing.T) {
	tf, err := ParseTimeframe("")
	require.NoError(t, err)
	require.Equal(t, TimeframeAll, tf)

	for _, raw := range []string{"day", "week", "month", "all"} {
		tf, err := ParseTimeframe(raw)
		require.NoError(t, err)
		require.Equal(t, Timeframe(raw), tf)
	}

	_, err = ParseTimeframe("year")
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestRankTotalsOrderingAndTiebreak(t *testing.T) {
	totals := []StepTotal{
		{UserID: "c", Steps: 500},
		{UserID: "a", Steps: 500},
		{UserID: "b", Steps: 900},
	}

	entries := RankTotals(totals, 10)
	require.Len(t, entries, 3)
	require.Equal(t, "b", entries[0].UserID)
	require.Equal(t, 1, entries[0].Rank)
	// Equal totals break ties by ascending user id.
	require.Equal(t, "a", entries[1].UserID)
	require.Equal(t, "c", entries[2].UserID)
	require.Equal(t, 3, entries[2].Rank)
	require.InDelta(t, 0.45, entries[0].Miles, 1e-9)
}

func TestRankTotalsDropsNonPositive(t *testing.T) {
	totals := []StepTotal{
		{UserID: "a", Steps: 0},
		{UserID: "b", Steps: -5},
		{UserID: "c", Steps: 1},
	}

	entries := RankTotals(totals, 10)
	require.Len(t, entries, 1)
	require.Equal(t, "c", entries[0].UserID)
}

func TestRankTotalsLimitBounds(t *testing.T) {
	totals := make([]StepTotal, 0, 60)
	for i := 0; i < 60; i++ {
		totals = append(totals, StepTotal{UserID: string(rune('A' + i)), Steps: int64(i + 1)})
	}

	require.Len(t, RankTotals(totals, 0), DefaultLeaderboardLimit)
	require.Len(t, RankTotals(totals, 100), MaxLeaderboardLimit)
	require.Len(t, RankTotals(totals, 5), 5)
}
