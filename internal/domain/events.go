package domain

import "time"

// Event types recorded to the outbox alongside the state change that caused
// them.
const (
	EventStepsSynced      = "steps.synced"
	EventUserLeveledUp    = "user.leveled_up"
	EventJourneyCompleted = "journey.completed"
	EventBossDefeated     = "boss.defeated"
)

// Event is an outbox row staged inside a commit. Stores persist it in the
// same transaction as the entity writes.
type Event struct {
	Type          string
	AggregateType string
	AggregateID   string
	PartitionKey  string
	Payload       any
}

// StepsSynced announces a ledger write.
type StepsSynced struct {
	UserID     string    `json:"user_id"`
	Date       string    `json:"date"`
	Delta      int       `json:"delta"`
	StepsCount int       `json:"steps_count"`
	Source     string    `json:"source"`
	OccurredAt time.Time `json:"occurred_at"`
}

// UserLeveledUp announces one or more level gains.
type UserLeveledUp struct {
	UserID     string    `json:"user_id"`
	Level      int       `json:"level"`
	LevelUps   int       `json:"level_ups"`
	TotalExp   int       `json:"total_exp"`
	OccurredAt time.Time `json:"occurred_at"`
}

// JourneyCompleted announces a finished journey.
type JourneyCompleted struct {
	UserID             string    `json:"user_id"`
	JourneyID          string    `json:"journey_id"`
	TotalDistanceMiles float64   `json:"total_distance_miles"`
	OccurredAt         time.Time `json:"occurred_at"`
}

// BossDefeated announces a boss falling to the crossing attack.
type BossDefeated struct {
	BossID     string    `json:"boss_id"`
	UserID     string    `json:"user_id"`
	BossType   string    `json:"boss_type"`
	ExpReward  int       `json:"exp_reward"`
	OccurredAt time.Time `json:"occurred_at"`
}
