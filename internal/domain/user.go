package domain

import "time"

// User is the identity-owned profile row. The core only reads it and mutates
// the lifetime step counter, the journey pointer, and the activity timestamp.
type User struct {
	ID               string
	Username         string
	DisplayName      string
	AvatarURL        string
	TotalStepsLife   int64
	CurrentJourneyID *string
	CreatedAt        time.Time
	LastActive       time.Time
	Version          int64
}

// Name returns the display name, falling back to the username.
func (u *User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}

// Badge is a lifetime-step milestone award.
type Badge struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Milestone   int64  `json:"milestone"`
}

var badgeMilestones = []Badge{
	{Name: "First Steps", Description: "Took your first 1,000 steps!", Milestone: 1_000},
	{Name: "Getting Started", Description: "Reached 10,000 steps!", Milestone: 10_000},
	{Name: "Walking Warrior", Description: "Conquered 50,000 steps!", Milestone: 50_000},
	{Name: "Step Master", Description: "Mastered 100,000 steps!", Milestone: 100_000},
	{Name: "Marathon Legend", Description: "Legendary 500,000 steps!", Milestone: 500_000},
	{Name: "Ultra Walker", Description: "Ultimate achievement: 1 million steps!", Milestone: 1_000_000},
}

// BadgesFor returns the milestones a lifetime step total has reached, in
// ascending milestone order.
func BadgesFor(totalSteps int64) []Badge {
	earned := make([]Badge, 0, len(badgeMilestones))
	for _, badge := range badgeMilestones {
		if totalSteps >= badge.Milestone {
			earned = append(earned, badge)
		}
	}
	return earned
}
