// Package domain implements the step-progression core: the day ledger, the
// XP curve, journey tracking, boss combat, and leaderboard ranking.
package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// maxCommitAttempts bounds optimistic-concurrency retries before an operation
// surfaces ErrConflict.
const maxCommitAttempts = 3

// historyMaxDays caps a step-history page.
const historyMaxDays = 365

// Service orchestrates the core workflows over a Store.
type Service struct {
	store Store
	clock Clock
}

// Option configures optional Service behaviour.
type Option func(*Service)

// WithClock overrides the wall-clock source, primarily for tests.
func WithClock(clock Clock) Option {
	return func(s *Service) {
		s.clock = clock
	}
}

// NewService constructs a Service.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{store: store, clock: systemClock{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SyncStepsInput carries one step sync request.
type SyncStepsInput struct {
	UserID         string
	Count          int
	Mode           SyncMode
	Source         string
	IdempotencyKey string
}

// SyncResult reports the outcome of a step sync. It is recorded per
// idempotency key so replayed deliveries return the original outcome.
type SyncResult struct {
	Delta            int     `json:"delta"`
	StepsToday       int     `json:"steps_today"`
	TotalStepsLife   int64   `json:"total_steps_life"`
	Level            int     `json:"level"`
	CurrentExp       int     `json:"current_exp"`
	ExpToNextLevel   int     `json:"exp_to_next_level"`
	LevelUps         int     `json:"level_ups"`
	JourneyCompleted bool    `json:"journey_completed"`
	JourneyProgress  float64 `json:"journey_progress_miles,omitempty"`
	Replay           bool    `json:"-"`
}

// SyncSteps records a day's steps and fans the positive delta out to XP and
// journey progress. The whole update commits as one transaction; a replayed
// idempotency key returns the recorded outcome without re-applying.
func (s *Service) SyncSteps(ctx context.Context, in SyncStepsInput) (*SyncResult, error) {
	if in.Count < 0 {
		return nil, fmt.Errorf("%w: steps count must not be negative", ErrInvalidInput)
	}
	if in.Source == "" {
		if in.Mode == SyncModeSet {
			in.Source = "healthkit"
		} else {
			in.Source = "manual"
		}
	}

	// The replay lookup runs on every attempt, not just the first. Two
	// deliveries of the same key can race past a single upfront check;
	// the loser's commit fails on the recorded key and the retry must
	// then find the winner's result instead of re-applying the delta.
	for attempt := 0; attempt < maxCommitAttempts; attempt++ {
		if in.IdempotencyKey != "" {
			recorded, err := s.store.FindSyncByIdempotency(ctx, in.UserID, in.IdempotencyKey)
			if err != nil {
				return nil, err
			}
			if recorded != nil {
				recorded.Replay = true
				return recorded, nil
			}
		}

		result, err := s.syncOnce(ctx, in)
		if errors.Is(err, ErrVersionConflict) {
			continue
		}
		return result, err
	}
	return nil, fmt.Errorf("%w: step sync retries exhausted", ErrConflict)
}

func (s *Service) syncOnce(ctx context.Context, in SyncStepsInput) (*SyncResult, error) {
	user, err := s.store.GetUser(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, in.UserID)
	}

	now := s.clock.Now()
	today := DateOf(now)

	level, err := s.loadLevel(ctx, in.UserID, now)
	if err != nil {
		return nil, err
	}

	entry, err := s.store.GetStepLog(ctx, in.UserID, today)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		entry = &StepLogEntry{
			ID:     uuid.NewString(),
			UserID: in.UserID,
			Date:   today,
			Source: in.Source,
		}
	}

	delta := entry.apply(in.Count, in.Mode, now)

	var (
		levelUps int
		journey  *Journey
		events   []Event
	)

	// Lifetime totals, XP, and journey distance only move on positive
	// deltas; a shrinking "set" updates the day's row alone.
	if delta > 0 {
		user.TotalStepsLife += int64(delta)
		levelUps = level.AddExp(delta/stepsPerExpPoint, now)

		if user.CurrentJourneyID != nil {
			journey, err = s.store.GetJourney(ctx, *user.CurrentJourneyID)
			if err != nil {
				return nil, err
			}
			if journey != nil && journey.IsActive {
				if journey.advance(Miles(delta), now) {
					user.CurrentJourneyID = nil
					levelUps += level.AddExp(JourneyCompletionBonusExp, now)
					events = append(events, Event{
						Type:          EventJourneyCompleted,
						AggregateType: "journey",
						AggregateID:   journey.ID,
						PartitionKey:  in.UserID,
						Payload: JourneyCompleted{
							UserID:             in.UserID,
							JourneyID:          journey.ID,
							TotalDistanceMiles: journey.TotalDistanceMiles,
							OccurredAt:         now,
						},
					})
				}
			} else {
				journey = nil
			}
		}
	}
	user.LastActive = now

	events = append(events, Event{
		Type:          EventStepsSynced,
		AggregateType: "steplog",
		AggregateID:   entry.ID,
		PartitionKey:  in.UserID,
		Payload: StepsSynced{
			UserID:     in.UserID,
			Date:       today.Format("2006-01-02"),
			Delta:      delta,
			StepsCount: entry.StepsCount,
			Source:     entry.Source,
			OccurredAt: now,
		},
	})
	if levelUps > 0 {
		events = append(events, Event{
			Type:          EventUserLeveledUp,
			AggregateType: "userlevel",
			AggregateID:   in.UserID,
			PartitionKey:  in.UserID,
			Payload: UserLeveledUp{
				UserID:     in.UserID,
				Level:      level.CurrentLevel,
				LevelUps:   levelUps,
				TotalExp:   level.TotalExp,
				OccurredAt: now,
			},
		})
	}

	result := SyncResult{
		Delta:            delta,
		StepsToday:       entry.StepsCount,
		TotalStepsLife:   user.TotalStepsLife,
		Level:            level.CurrentLevel,
		CurrentExp:       level.CurrentExp,
		ExpToNextLevel:   level.ExpToNextLevel(),
		LevelUps:         levelUps,
		JourneyCompleted: journey != nil && journey.FinishedAt != nil,
	}
	if journey != nil {
		result.JourneyProgress = journey.PersonalProgressMiles
	}

	commit := SyncCommit{
		Entry:          *entry,
		User:           *user,
		Level:          level,
		Journey:        journey,
		IdempotencyKey: in.IdempotencyKey,
		Result:         result,
		Events:         events,
	}
	if err := s.store.CommitSync(ctx, commit); err != nil {
		return nil, err
	}
	return &result, nil
}

// StepHistory returns recent ledger rows newest-first. cursorDate resumes a
// previous page; limit is capped at a year.
func (s *Service) StepHistory(ctx context.Context, userID string, cursorDate time.Time, limit int) ([]StepLogEntry, error) {
	if limit <= 0 || limit > historyMaxDays {
		limit = historyMaxDays
	}
	return s.store.ListStepLogs(ctx, userID, cursorDate, limit)
}

// WeeklySteps returns the trailing 7-day series ending today, zero-filled.
func (s *Service) WeeklySteps(ctx context.Context, userID string) ([]WeeklyTotal, error) {
	today := DateOf(s.clock.Now())
	entries, err := s.store.StepLogsInRange(ctx, userID, today.AddDate(0, 0, -6), today)
	if err != nil {
		return nil, err
	}
	return WeeklySeries(entries, today), nil
}

// Profile is the gamified snapshot of a user.
type Profile struct {
	User       User
	Level      UserLevel
	TodaySteps int
	Streak     int
	TotalMiles float64
	Badges     []Badge
	Journey    *Journey
}

// GetProfile assembles the profile view for a user.
func (s *Service) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, userID)
	}

	now := s.clock.Now()
	level, err := s.loadLevel(ctx, userID, now)
	if err != nil {
		return nil, err
	}

	today := DateOf(now)
	entries, err := s.store.StepLogsInRange(ctx, userID, today.AddDate(0, 0, -historyMaxDays), today)
	if err != nil {
		return nil, err
	}

	profile := &Profile{
		User:       *user,
		Level:      level,
		Streak:     Streak(entries, today),
		TotalMiles: float64(user.TotalStepsLife) / StepsPerMile,
		Badges:     BadgesFor(user.TotalStepsLife),
	}
	for _, entry := range entries {
		if entry.Date.Equal(today) {
			profile.TodaySteps = entry.StepsCount
		}
	}

	if user.CurrentJourneyID != nil {
		journey, err := s.store.GetJourney(ctx, *user.CurrentJourneyID)
		if err != nil {
			return nil, err
		}
		profile.Journey = journey
	}
	return profile, nil
}

// ListJourneyTemplates returns the reusable journey catalog.
func (s *Service) ListJourneyTemplates(ctx context.Context) ([]Journey, error) {
	return s.store.ListJourneyTemplates(ctx)
}

// StartJourney instantiates a template for the user. A user may hold at most
// one active journey.
func (s *Service) StartJourney(ctx context.Context, userID, templateID string) (*Journey, error) {
	template, err := s.store.GetJourney(ctx, templateID)
	if err != nil {
		return nil, err
	}
	if template == nil || !template.IsTemplate {
		return nil, fmt.Errorf("%w: journey template %s", ErrNotFound, templateID)
	}

	for attempt := 0; attempt < maxCommitAttempts; attempt++ {
		user, err := s.store.GetUser(ctx, userID)
		if err != nil {
			return nil, err
		}
		if user == nil {
			return nil, fmt.Errorf("%w: user %s", ErrNotFound, userID)
		}
		if user.CurrentJourneyID != nil {
			return nil, fmt.Errorf("%w: journey already in progress", ErrConflict)
		}

		journey := NewPersonalJourney(uuid.NewString(), userID, *template, s.clock.Now())
		user.CurrentJourneyID = &journey.ID

		err = s.store.CommitJourneyStart(ctx, JourneyStartCommit{Journey: journey, User: *user})
		if errors.Is(err, ErrVersionConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return &journey, nil
	}
	return nil, fmt.Errorf("%w: journey start retries exhausted", ErrConflict)
}

// AbandonJourney clears the user's journey pointer without finishing the
// journey.
func (s *Service) AbandonJourney(ctx context.Context, userID string) error {
	for attempt := 0; attempt < maxCommitAttempts; attempt++ {
		user, err := s.store.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		if user == nil {
			return fmt.Errorf("%w: user %s", ErrNotFound, userID)
		}
		if user.CurrentJourneyID == nil {
			return fmt.Errorf("%w: no journey in progress", ErrNotFound)
		}

		user.CurrentJourneyID = nil
		user.LastActive = s.clock.Now()

		err = s.store.CommitJourneyAbandon(ctx, *user)
		if errors.Is(err, ErrVersionConflict) {
			continue
		}
		return err
	}
	return fmt.Errorf("%w: journey abandon retries exhausted", ErrConflict)
}

// ListBosses returns the bosses the user may currently attack.
func (s *Service) ListBosses(ctx context.Context, userID string) ([]Boss, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, userID)
	}
	return s.store.ListAvailableBosses(ctx, user.CurrentJourneyID)
}

// AttackResult reports the outcome of a boss attack.
type AttackResult struct {
	DamageDealt int
	ExpGained   int
	Defeated    bool
	LevelUps    int
	Level       UserLevel
	Boss        Boss
	Rewards     *BossRewards
}

// AttackBoss spends today's recorded steps as damage against a boss. The
// health decrement is serialized per boss through a version check; concurrent
// attackers never lose updates. Exactly the attack that first drives health
// below zero earns the boss's XP reward.
func (s *Service) AttackBoss(ctx context.Context, userID, bossID string, stepsToUse int) (*AttackResult, error) {
	if stepsToUse <= 0 {
		return nil, fmt.Errorf("%w: steps to use must be a positive integer", ErrInvalidInput)
	}

	for attempt := 0; attempt < maxCommitAttempts; attempt++ {
		result, err := s.attackOnce(ctx, userID, bossID, stepsToUse)
		if errors.Is(err, ErrVersionConflict) {
			continue
		}
		return result, err
	}
	return nil, fmt.Errorf("%w: attack retries exhausted", ErrConflict)
}

func (s *Service) attackOnce(ctx context.Context, userID, bossID string, stepsToUse int) (*AttackResult, error) {
	boss, err := s.store.GetBoss(ctx, bossID)
	if err != nil {
		return nil, err
	}
	if boss == nil {
		return nil, fmt.Errorf("%w: boss %s", ErrNotFound, bossID)
	}
	if !boss.Available() {
		return nil, fmt.Errorf("%w: boss %s is not attackable", ErrUnavailable, bossID)
	}

	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, userID)
	}

	now := s.clock.Now()
	today := DateOf(now)

	entry, err := s.store.GetStepLog(ctx, userID, today)
	if err != nil {
		return nil, err
	}
	available := 0
	if entry != nil {
		available = entry.StepsCount
	}
	if stepsToUse > available {
		return nil, fmt.Errorf("%w: insufficient steps: have %d, want %d", ErrInvalidInput, available, stepsToUse)
	}

	level, err := s.loadLevel(ctx, userID, now)
	if err != nil {
		return nil, err
	}

	damage := stepsToUse * level.AttackPower
	defeated := boss.applyDamage(damage, now)

	expGained := 0
	var rewards *BossRewards
	if defeated {
		expGained = boss.ExpReward
		rewards = &BossRewards{Exp: boss.ExpReward, Coins: boss.CoinReward, Special: boss.SpecialReward}
	}
	levelUps := level.AddExp(expGained, now)

	entry.spend(stepsToUse, now)

	record := BossAttackRecord{
		ID:          uuid.NewString(),
		UserID:      userID,
		BossID:      bossID,
		StepsUsed:   stepsToUse,
		DamageDealt: damage,
		ExpGained:   expGained,
		AttackedAt:  now,
	}

	var events []Event
	if defeated {
		events = append(events, Event{
			Type:          EventBossDefeated,
			AggregateType: "boss",
			AggregateID:   bossID,
			PartitionKey:  bossID,
			Payload: BossDefeated{
				BossID:     bossID,
				UserID:     userID,
				BossType:   string(boss.BossType),
				ExpReward:  boss.ExpReward,
				OccurredAt: now,
			},
		})
	}
	if levelUps > 0 {
		events = append(events, Event{
			Type:          EventUserLeveledUp,
			AggregateType: "userlevel",
			AggregateID:   userID,
			PartitionKey:  userID,
			Payload: UserLeveledUp{
				UserID:     userID,
				Level:      level.CurrentLevel,
				LevelUps:   levelUps,
				TotalExp:   level.TotalExp,
				OccurredAt: now,
			},
		})
	}

	commit := AttackCommit{
		Boss:   *boss,
		Entry:  *entry,
		Level:  level,
		Record: record,
		Events: events,
	}
	if err := s.store.CommitAttack(ctx, commit); err != nil {
		return nil, err
	}

	return &AttackResult{
		DamageDealt: damage,
		ExpGained:   expGained,
		Defeated:    defeated,
		LevelUps:    levelUps,
		Level:       level,
		Boss:        *boss,
		Rewards:     rewards,
	}, nil
}

// LeaderboardInput selects a leaderboard page.
type LeaderboardInput struct {
	RequesterID string
	Timeframe   Timeframe
	FriendsOnly bool
	Limit       int
}

// Leaderboard ranks the population by step totals over the requested window.
// The all-time window reads the denormalized lifetime counter; the others sum
// the ledger.
func (s *Service) Leaderboard(ctx context.Context, in LeaderboardInput) ([]LeaderboardEntry, error) {
	var filter []string
	if in.FriendsOnly {
		friends, err := s.store.FriendIDs(ctx, in.RequesterID)
		if err != nil {
			return nil, err
		}
		filter = append(friends, in.RequesterID)
	}

	today := DateOf(s.clock.Now())

	var (
		totals []StepTotal
		err    error
	)
	switch in.Timeframe {
	case TimeframeDay:
		totals, err = s.store.StepTotals(ctx, today, today, filter)
	case TimeframeWeek:
		totals, err = s.store.StepTotals(ctx, today.AddDate(0, 0, -6), today, filter)
	case TimeframeMonth:
		firstOfMonth := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
		totals, err = s.store.StepTotals(ctx, firstOfMonth, today, filter)
	default:
		totals, err = s.store.LifetimeTotals(ctx, filter)
	}
	if err != nil {
		return nil, err
	}

	return RankTotals(totals, in.Limit), nil
}

// BossAttackHistory returns the most recent audit rows for a boss.
func (s *Service) BossAttackHistory(ctx context.Context, bossID string, limit int) ([]BossAttackRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	boss, err := s.store.GetBoss(ctx, bossID)
	if err != nil {
		return nil, err
	}
	if boss == nil {
		return nil, fmt.Errorf("%w: boss %s", ErrNotFound, bossID)
	}
	return s.store.ListBossAttacks(ctx, bossID, limit)
}

func (s *Service) loadLevel(ctx context.Context, userID string, now time.Time) (UserLevel, error) {
	level, err := s.store.GetUserLevel(ctx, userID)
	if err != nil {
		return UserLevel{}, err
	}
	if level == nil {
		return NewUserLevel(userID, now), nil
	}
	return *level, nil
}
