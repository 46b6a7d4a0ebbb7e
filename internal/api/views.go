package api

import (
	"time"

	"example.com/stepquest/internal/domain"
)

// SyncStepsRequest is the payload for POST /v1/steps/sync.
type SyncStepsRequest struct {
	StepsCount int    `json:"steps_count"`
	Mode       string `json:"mode"`
	Source     string `json:"source"`
}

// SyncStepsResponse echoes the recorded outcome of a sync.
type SyncStepsResponse struct {
	domain.SyncResult
	Replay bool `json:"idempotent_replay"`
}

// StepLogView exposes one ledger row.
type StepLogView struct {
	ID            string    `json:"id"`
	Date          string    `json:"date"`
	StepsCount    int       `json:"steps_count"`
	DistanceMiles float64   `json:"distance_miles"`
	Source        string    `json:"source"`
	RecordedAt    time.Time `json:"recorded_at"`
}

func toStepLogView(entry domain.StepLogEntry) StepLogView {
	return StepLogView{
		ID:            entry.ID,
		Date:          entry.Date.Format("2006-01-02"),
		StepsCount:    entry.StepsCount,
		DistanceMiles: entry.DistanceMiles,
		Source:        entry.Source,
		RecordedAt:    entry.Timestamp,
	}
}

// StepHistoryResponse packages history pages.
type StepHistoryResponse struct {
	Items      []StepLogView `json:"items"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

// WeeklyDayView is one day of the trailing-week chart.
type WeeklyDayView struct {
	Date  string  `json:"date"`
	Steps int     `json:"steps"`
	Miles float64 `json:"miles"`
}

// WeeklyStepsResponse is the trailing-week chart.
type WeeklyStepsResponse struct {
	Days       []WeeklyDayView `json:"days"`
	TotalSteps int             `json:"total_steps"`
}

// ProfileView is the gamified snapshot of the authenticated user.
type ProfileView struct {
	UserID         string         `json:"user_id"`
	Username       string         `json:"username"`
	DisplayName    string         `json:"display_name"`
	AvatarURL      string         `json:"avatar_url,omitempty"`
	Level          int            `json:"level"`
	CurrentExp     int            `json:"current_exp"`
	ExpToNextLevel int            `json:"exp_to_next_level"`
	AttackPower    int            `json:"attack_power"`
	TodaySteps     int            `json:"today_steps"`
	TotalStepsLife int64          `json:"total_steps_life"`
	TotalMiles     float64        `json:"total_miles"`
	Streak         int            `json:"streak_days"`
	Badges         []domain.Badge `json:"badges"`
	Journey        *JourneyView   `json:"journey,omitempty"`
}

func toProfileView(profile domain.Profile) ProfileView {
	view := ProfileView{
		UserID:         profile.User.ID,
		Username:       profile.User.Username,
		DisplayName:    profile.User.Name(),
		AvatarURL:      profile.User.AvatarURL,
		Level:          profile.Level.CurrentLevel,
		CurrentExp:     profile.Level.CurrentExp,
		ExpToNextLevel: profile.Level.ExpToNextLevel(),
		AttackPower:    profile.Level.AttackPower,
		TodaySteps:     profile.TodaySteps,
		TotalStepsLife: profile.User.TotalStepsLife,
		TotalMiles:     profile.TotalMiles,
		Streak:         profile.Streak,
		Badges:         profile.Badges,
	}
	if profile.Journey != nil {
		journey := toJourneyView(*profile.Journey)
		view.Journey = &journey
	}
	return view
}

// JourneyView exposes a journey template or personal instance.
type JourneyView struct {
	ID                 string     `json:"id"`
	Name               string     `json:"name"`
	StartCity          string     `json:"start_city"`
	EndCity            string     `json:"end_city"`
	Description        string     `json:"description,omitempty"`
	Difficulty         string     `json:"difficulty"`
	TotalDistanceMiles float64    `json:"total_distance_miles"`
	ProgressMiles      float64    `json:"progress_miles"`
	ProgressPercent    float64    `json:"progress_percent"`
	IsTemplate         bool       `json:"is_template"`
	IsActive           bool       `json:"is_active"`
	StartedAt          time.Time  `json:"started_at"`
	FinishedAt         *time.Time `json:"finished_at,omitempty"`
}

func toJourneyView(journey domain.Journey) JourneyView {
	return JourneyView{
		ID:                 journey.ID,
		Name:               journey.Name(),
		StartCity:          journey.StartCity,
		EndCity:            journey.EndCity,
		Description:        journey.Description,
		Difficulty:         journey.Difficulty,
		TotalDistanceMiles: journey.TotalDistanceMiles,
		ProgressMiles:      journey.PersonalProgressMiles,
		ProgressPercent:    journey.ProgressPercent(),
		IsTemplate:         journey.IsTemplate,
		IsActive:           journey.IsActive,
		StartedAt:          journey.StartedAt,
		FinishedAt:         journey.FinishedAt,
	}
}

// JourneyListResponse packages the template catalog.
type JourneyListResponse struct {
	Items []JourneyView `json:"items"`
}

// StartJourneyRequest is the payload for POST /v1/journeys/start.
type StartJourneyRequest struct {
	TemplateID string `json:"template_id"`
}

// BossView exposes a boss's public state.
type BossView struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Description   string     `json:"description,omitempty"`
	ImageURL      string     `json:"image_url,omitempty"`
	MaxHealth     int        `json:"max_health"`
	CurrentHealth int        `json:"current_health"`
	HealthPercent float64    `json:"health_percent"`
	ExpReward     int        `json:"exp_reward"`
	Difficulty    string     `json:"difficulty,omitempty"`
	BossType      string     `json:"boss_type"`
	IsActive      bool       `json:"is_active"`
	SpawnedAt     time.Time  `json:"spawned_at"`
	DefeatedAt    *time.Time `json:"defeated_at,omitempty"`
}

func toBossView(boss domain.Boss) BossView {
	return BossView{
		ID:            boss.ID,
		Name:          boss.Name,
		Description:   boss.Description,
		ImageURL:      boss.ImageURL,
		MaxHealth:     boss.MaxHealth,
		CurrentHealth: boss.CurrentHealth,
		HealthPercent: boss.HealthPercent(),
		ExpReward:     boss.ExpReward,
		Difficulty:    boss.Difficulty,
		BossType:      string(boss.BossType),
		IsActive:      boss.IsActive,
		SpawnedAt:     boss.SpawnedAt,
		DefeatedAt:    boss.DefeatedAt,
	}
}

// BossListResponse packages the attackable bosses.
type BossListResponse struct {
	Items []BossView `json:"items"`
}

// AttackBossRequest is the payload for POST /v1/bosses/{id}/attack.
type AttackBossRequest struct {
	StepsToUse int `json:"steps_to_use"`
}

// AttackBossResponse reports the outcome of an attack.
type AttackBossResponse struct {
	DamageDealt int                 `json:"damage_dealt"`
	ExpGained   int                 `json:"exp_gained"`
	Defeated    bool                `json:"defeated"`
	LevelUps    int                 `json:"level_ups"`
	Level       int                 `json:"level"`
	Boss        BossView            `json:"boss"`
	Rewards     *domain.BossRewards `json:"rewards,omitempty"`
}

// AttackRecordView is one audit row of a boss's attack history.
type AttackRecordView struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	StepsUsed   int       `json:"steps_used"`
	DamageDealt int       `json:"damage_dealt"`
	ExpGained   int       `json:"exp_gained"`
	AttackedAt  time.Time `json:"attacked_at"`
}

// AttackHistoryResponse packages attack history.
type AttackHistoryResponse struct {
	Items []AttackRecordView `json:"items"`
}

// LeaderboardEntryView is one ranked row.
type LeaderboardEntryView struct {
	Rank        int     `json:"rank"`
	UserID      string  `json:"user_id"`
	Username    string  `json:"username"`
	DisplayName string  `json:"display_name"`
	AvatarURL   string  `json:"avatar_url,omitempty"`
	Level       int     `json:"level"`
	Steps       int64   `json:"steps"`
	Miles       float64 `json:"miles"`
}

// LeaderboardResponse packages a leaderboard page.
type LeaderboardResponse struct {
	Timeframe string                 `json:"timeframe"`
	Items     []LeaderboardEntryView `json:"items"`
}

// FriendView is one accepted friend.
type FriendView struct {
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// FriendListResponse packages the friend list.
type FriendListResponse struct {
	Items []FriendView `json:"items"`
}

// SendFriendRequestRequest is the payload for POST /v1/friends/requests.
type SendFriendRequestRequest struct {
	Username string `json:"username"`
}

// FriendRequestView is one pending request.
type FriendRequestView struct {
	ID       string    `json:"id"`
	SenderID string    `json:"sender_id"`
	SentAt   time.Time `json:"sent_at"`
}

// FriendRequestListResponse packages pending requests.
type FriendRequestListResponse struct {
	Items []FriendRequestView `json:"items"`
}

// RespondFriendRequestRequest is the payload for responding to a request.
type RespondFriendRequestRequest struct {
	Accept bool `json:"accept"`
}
