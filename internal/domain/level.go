package domain

import (
	"math"
	"time"
)

// UserLevel tracks a user's progression state. One row per user, created
// lazily on first XP grant.
type UserLevel struct {
	UserID       string
	CurrentLevel int
	CurrentExp   int
	TotalExp     int
	AttackPower  int
	CreatedAt    time.Time
	LastLevelUp  time.Time
	Version      int64
}

// NewUserLevel returns the initial progression state for a user.
func NewUserLevel(userID string, now time.Time) UserLevel {
	return UserLevel{
		UserID:       userID,
		CurrentLevel: 1,
		AttackPower:  1,
		CreatedAt:    now,
		LastLevelUp:  now,
	}
}

// ExpForLevel returns the total XP required to hold a level: 0 for levels at
// or below 1, floor(100 * level^1.5) above. Strictly increasing from level 2.
func ExpForLevel(level int) int {
	if level <= 1 {
		return 0
	}
	return int(math.Floor(100 * math.Pow(float64(level), 1.5)))
}

// ExpToNextLevel returns the XP still needed to reach the next level.
func (l *UserLevel) ExpToNextLevel() int {
	return ExpForLevel(l.CurrentLevel+1) - l.TotalExp
}

// AddExp grants XP and advances levels, handling multi-level jumps from one
// large grant. Non-positive amounts are a no-op. Returns the number of levels
// gained.
func (l *UserLevel) AddExp(amount int, now time.Time) int {
	if amount <= 0 {
		return 0
	}

	l.TotalExp += amount

	levelUps := 0
	for l.TotalExp >= ExpForLevel(l.CurrentLevel+1) {
		l.CurrentLevel++
		l.LastLevelUp = now
		levelUps++
	}

	l.CurrentExp = l.TotalExp - ExpForLevel(l.CurrentLevel)
	return levelUps
}
