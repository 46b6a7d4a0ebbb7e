package domain

import "time"

// BossType partitions the boss population by who may fight it.
type BossType string

const (
	BossTypePersonal BossType = "personal"
	BossTypeDaily    BossType = "daily"
	BossTypeGlobal   BossType = "global"
)

// Boss is a shared hit-point pool damaged by spending recorded steps. Its
// health may transiently go negative; defeat is sticky.
type Boss struct {
	ID            string
	Name          string
	Description   string
	ImageURL      string
	MaxHealth     int
	CurrentHealth int
	ExpReward     int
	CoinReward    int
	SpecialReward string
	Difficulty    string
	BossType      BossType
	JourneyID     *string
	IsActive      bool
	SpawnedAt     time.Time
	DefeatedAt    *time.Time
	RespawnHours  int
	RespawnDueAt  *time.Time
	Version       int64
}

// Available reports whether the boss can accept an attack.
func (b *Boss) Available() bool {
	return b.IsActive && b.DefeatedAt == nil
}

// HealthPercent returns remaining health as a percentage of maximum.
func (b *Boss) HealthPercent() float64 {
	if b.MaxHealth == 0 {
		return 0
	}
	return float64(b.CurrentHealth) / float64(b.MaxHealth) * 100
}

// applyDamage decrements health and transitions to Defeated on the attack
// that first drives health below zero. A Global boss with a respawn delay
// records when the scheduler should materialize its replacement.
func (b *Boss) applyDamage(damage int, now time.Time) bool {
	b.CurrentHealth -= damage
	if b.CurrentHealth < 0 && b.IsActive {
		b.DefeatedAt = &now
		b.IsActive = false
		if b.BossType == BossTypeGlobal && b.RespawnHours > 0 {
			due := now.Add(time.Duration(b.RespawnHours) * time.Hour)
			b.RespawnDueAt = &due
		}
		return true
	}
	return false
}

// Respawn derives a fresh Active instance from a defeated boss.
func Respawn(defeated Boss, id string, now time.Time) Boss {
	fresh := defeated
	fresh.ID = id
	fresh.CurrentHealth = fresh.MaxHealth
	fresh.IsActive = true
	fresh.SpawnedAt = now
	fresh.DefeatedAt = nil
	fresh.RespawnDueAt = nil
	fresh.Version = 0
	return fresh
}

// BossRewards is the payout computed when a boss falls.
type BossRewards struct {
	Exp     int    `json:"exp_reward"`
	Coins   int    `json:"coin_reward"`
	Special string `json:"special_reward,omitempty"`
}

// BossAttackRecord is the immutable audit row written for every attack
// attempt, successful or not.
type BossAttackRecord struct {
	ID          string
	UserID      string
	BossID      string
	StepsUsed   int
	DamageDealt int
	ExpGained   int
	AttackedAt  time.Time
}

// DailyBossTemplate seeds the scheduler's daily spawn.
type DailyBossTemplate struct {
	Name        string
	Description string
	Health      int
	ExpReward   int
}

// DailyBossTemplates is the rotation the scheduler draws from each day.
var DailyBossTemplates = []DailyBossTemplate{
	{
		Name:        "Shadow Wolf",
		Description: "A mysterious figure that feeds on inactivity. Defeat it with your daily steps!",
		Health:      10000,
		ExpReward:   500,
	},
	{
		Name:        "Couch Demon",
		Description: "This lazy demon wants you to stay seated all day. Show it who's boss!",
		Health:      8000,
		ExpReward:   400,
	},
	{
		Name:        "Procrastination Beast",
		Description: "It grows stronger the longer you wait. Attack now!",
		Health:      12000,
		ExpReward:   600,
	},
}
