package domain

import (
	"context"
	"time"
)

// Store captures the persistence operations the core services need. Every
// entity carries an integer version; commit methods are single logical
// transactions that apply all writes conditionally on the versions the caller
// read (version 0 means insert) and return ErrVersionConflict when any check
// fails.
type Store interface {
	UserStore
	StepStore
	ProgressionStore
	JourneyStore
	BossStore
	LeaderboardStore
	SocialStore
}

// UserStore reads identity-owned profile rows.
type UserStore interface {
	GetUser(ctx context.Context, userID string) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
}

// StepStore covers the per-day ledger.
type StepStore interface {
	GetStepLog(ctx context.Context, userID string, date time.Time) (*StepLogEntry, error)
	// ListStepLogs returns up to limit entries newest-date-first, resuming
	// after cursorDate when non-zero.
	ListStepLogs(ctx context.Context, userID string, cursorDate time.Time, limit int) ([]StepLogEntry, error)
	StepLogsInRange(ctx context.Context, userID string, from, to time.Time) ([]StepLogEntry, error)
	// FindSyncByIdempotency returns the recorded outcome of a previously
	// applied sync request, or nil when the key is unseen or empty.
	FindSyncByIdempotency(ctx context.Context, userID, key string) (*SyncResult, error)
	CommitSync(ctx context.Context, commit SyncCommit) error
}

// ProgressionStore reads level state; writes ride inside sync/attack commits.
type ProgressionStore interface {
	GetUserLevel(ctx context.Context, userID string) (*UserLevel, error)
}

// JourneyStore covers templates and personal journey instances.
type JourneyStore interface {
	GetJourney(ctx context.Context, journeyID string) (*Journey, error)
	ListJourneyTemplates(ctx context.Context) ([]Journey, error)
	CommitJourneyStart(ctx context.Context, commit JourneyStartCommit) error
	CommitJourneyAbandon(ctx context.Context, user User) error
}

// BossStore covers the shared boss aggregate and its audit trail.
type BossStore interface {
	GetBoss(ctx context.Context, bossID string) (*Boss, error)
	// ListAvailableBosses returns active bosses with health remaining:
	// journey-scoped plus Global when journeyID is set, Global plus Daily
	// otherwise.
	ListAvailableBosses(ctx context.Context, journeyID *string) ([]Boss, error)
	ListBossAttacks(ctx context.Context, bossID string, limit int) ([]BossAttackRecord, error)
	CommitAttack(ctx context.Context, commit AttackCommit) error
}

// LeaderboardStore aggregates step totals for ranking.
type LeaderboardStore interface {
	// StepTotals sums ledger rows with date in [from, to] per user. A non-nil
	// filter restricts the population to the given user ids.
	StepTotals(ctx context.Context, from, to time.Time, filter []string) ([]StepTotal, error)
	// LifetimeTotals reads the denormalized lifetime counter instead of
	// summing the ledger.
	LifetimeTotals(ctx context.Context, filter []string) ([]StepTotal, error)
}

// SocialStore is the friend-graph collaborator.
type SocialStore interface {
	FriendIDs(ctx context.Context, userID string) ([]string, error)
	ListFriendships(ctx context.Context, userID string, status FriendshipStatus) ([]Friendship, error)
	FindFriendship(ctx context.Context, userA, userB string) (*Friendship, error)
	GetFriendship(ctx context.Context, id string) (*Friendship, error)
	InsertFriendship(ctx context.Context, friendship Friendship) error
	UpdateFriendship(ctx context.Context, friendship Friendship) error
	DeleteFriendship(ctx context.Context, id string) error
}

// SyncCommit is the all-or-nothing write set of one step sync.
type SyncCommit struct {
	Entry          StepLogEntry
	User           User
	Level          UserLevel
	Journey        *Journey
	IdempotencyKey string
	Result         SyncResult
	Events         []Event
}

// AttackCommit is the all-or-nothing write set of one boss attack.
type AttackCommit struct {
	Boss   Boss
	Entry  StepLogEntry
	Level  UserLevel
	Record BossAttackRecord
	Events []Event
}

// JourneyStartCommit creates a personal journey and repoints the user.
type JourneyStartCommit struct {
	Journey Journey
	User    User
}
