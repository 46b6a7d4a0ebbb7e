package domain_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/stepquest/internal/domain"
	"example.com/stepquest/internal/persistence/memory"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

var testNow = time.Date(2026, time.March, 10, 14, 30, 0, 0, time.UTC)

func newTestService(store *memory.Store) *domain.Service {
	return domain.NewService(store, domain.WithClock(fixedClock{now: testNow}))
}

func seedUser(store *memory.Store, id string) {
	store.SeedUser(domain.User{
		ID:        id,
		Username:  "user-" + id,
		CreatedAt: testNow.AddDate(0, -1, 0),
	})
}

func TestSyncStepsAppliesDeltaAndExp(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	seedUser(store, "u1")
	service := newTestService(store)

	result, err := service.SyncSteps(ctx, domain.SyncStepsInput{UserID: "u1", Count: 12000})
	require.NoError(t, err)
	require.Equal(t, 12000, result.Delta)
	require.Equal(t, 12000, result.StepsToday)
	require.Equal(t, int64(12000), result.TotalStepsLife)
	require.Equal(t, 1, result.Level)
	require.Equal(t, 120, result.CurrentExp)
	require.Equal(t, 0, result.LevelUps)
	require.False(t, result.Replay)

	events := store.Events()
	require.Len(t, events, 1)
	require.Equal(t, domain.EventStepsSynced, events[0].Type)

	// A second add on the same day folds into the same ledger row.
	result, err = service.SyncSteps(ctx, domain.SyncStepsInput{UserID: "u1", Count: 3000})
	require.NoError(t, err)
	require.Equal(t, 15000, result.StepsToday)
	require.Equal(t, int64(15000), result.TotalStepsLife)
}

func TestSyncStepsIdempotentReplay(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	seedUser(store, "u1")
	service := newTestService(store)

	in := domain.SyncStepsInput{UserID: "u1", Count: 5000, IdempotencyKey: "req-1"}
	first, err := service.SyncSteps(ctx, in)
	require.NoError(t, err)
	require.False(t, first.Replay)

	second, err := service.SyncSteps(ctx, in)
	require.NoError(t, err)
	require.True(t, second.Replay)
	require.Equal(t, first.Delta, second.Delta)
	require.Equal(t, first.StepsToday, second.StepsToday)

	// The replay must not have re-applied anything.
	require.Len(t, store.Events(), 1)
	user, err := store.GetUser(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, int64(5000), user.TotalStepsLife)
}

// syncBarrierStore holds the first two idempotency lookups at a rendezvous so
// both in-flight syncs observe "no recorded result" before either commits, the
// interleaving a transport retry of the same request produces.
type syncBarrierStore struct {
	domain.Store
	gate    sync.WaitGroup
	lookups int32
}

func (s *syncBarrierStore) FindSyncByIdempotency(ctx context.Context, userID, key string) (*domain.SyncResult, error) {
	if atomic.AddInt32(&s.lookups, 1) <= 2 {
		s.gate.Done()
		s.gate.Wait()
	}
	return s.Store.FindSyncByIdempotency(ctx, userID, key)
}

func TestSyncStepsConcurrentDuplicateCountsOnce(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	seedUser(store, "u1")

	wrapped := &syncBarrierStore{Store: store}
	wrapped.gate.Add(2)
	service := domain.NewService(wrapped, domain.WithClock(fixedClock{now: testNow}))

	in := domain.SyncStepsInput{UserID: "u1", Count: 500, IdempotencyKey: "req-1"}

	results := make([]*domain.SyncResult, 2)
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = service.SyncSteps(ctx, in)
		}(i)
	}
	wg.Wait()

	// Both deliveries succeed but exactly one applies; the loser replays
	// the winner's recorded outcome instead of re-counting the steps.
	replays := 0
	for i := 0; i < 2; i++ {
		require.NoError(t, errs[i])
		require.Equal(t, int64(500), results[i].TotalStepsLife)
		if results[i].Replay {
			replays++
		}
	}
	require.Equal(t, 1, replays)

	user, err := store.GetUser(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, int64(500), user.TotalStepsLife)
	require.Len(t, store.Events(), 1)
}

func TestSyncStepsShrinkingSetKeepsLifetime(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	seedUser(store, "u1")
	service := newTestService(store)

	_, err := service.SyncSteps(ctx, domain.SyncStepsInput{UserID: "u1", Count: 8000})
	require.NoError(t, err)

	result, err := service.SyncSteps(ctx, domain.SyncStepsInput{UserID: "u1", Count: 5000, Mode: domain.SyncModeSet})
	require.NoError(t, err)
	require.Equal(t, -3000, result.Delta)
	require.Equal(t, 5000, result.StepsToday)
	// Lifetime total only moves on positive deltas.
	require.Equal(t, int64(8000), result.TotalStepsLife)
	require.Equal(t, 0, result.LevelUps)
}

func TestSyncStepsRejectsNegativeCount(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	seedUser(store, "u1")
	service := newTestService(store)

	_, err := service.SyncSteps(ctx, domain.SyncStepsInput{UserID: "u1", Count: -5})
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSyncStepsUnknownUser(t *testing.T) {
	ctx := context.Background()
	service := newTestService(memory.NewStore())

	_, err := service.SyncSteps(ctx, domain.SyncStepsInput{UserID: "ghost", Count: 100})
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSyncStepsCompletesJourney(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	seedUser(store, "u1")
	store.SeedJourney(domain.Journey{
		ID:                 "tpl-1",
		StartCity:          "Denver",
		EndCity:            "Austin",
		TotalDistanceMiles: 5,
		IsTemplate:         true,
		IsActive:           true,
	})
	service := newTestService(store)

	journey, err := service.StartJourney(ctx, "u1", "tpl-1")
	require.NoError(t, err)

	// 12000 steps is 6 miles, crossing the 5-mile target.
	result, err := service.SyncSteps(ctx, domain.SyncStepsInput{UserID: "u1", Count: 12000})
	require.NoError(t, err)
	require.True(t, result.JourneyCompleted)
	require.InDelta(t, 6.0, result.JourneyProgress, 1e-9)

	// 120 exp from steps plus the 500 completion bonus reaches level 3.
	require.Equal(t, 3, result.Level)
	require.Equal(t, 2, result.LevelUps)

	user, err := store.GetUser(ctx, "u1")
	require.NoError(t, err)
	require.Nil(t, user.CurrentJourneyID)

	finished, err := store.GetJourney(ctx, journey.ID)
	require.NoError(t, err)
	require.NotNil(t, finished.FinishedAt)
	require.False(t, finished.IsActive)

	types := make(map[string]int)
	for _, event := range store.Events() {
		types[event.Type]++
	}
	require.Equal(t, 1, types[domain.EventJourneyCompleted])
	require.Equal(t, 1, types[domain.EventStepsSynced])
	require.Equal(t, 1, types[domain.EventUserLeveledUp])
}

func TestStartJourneyConflictsWhenActive(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	seedUser(store, "u1")
	store.SeedJourney(domain.Journey{
		ID:                 "tpl-1",
		TotalDistanceMiles: 100,
		IsTemplate:         true,
		IsActive:           true,
	})
	service := newTestService(store)

	_, err := service.StartJourney(ctx, "u1", "tpl-1")
	require.NoError(t, err)

	_, err = service.StartJourney(ctx, "u1", "tpl-1")
	require.ErrorIs(t, err, domain.ErrConflict)
}

func TestStartJourneyRequiresTemplate(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	seedUser(store, "u1")
	store.SeedJourney(domain.Journey{ID: "j-personal", TotalDistanceMiles: 10, IsActive: true})
	service := newTestService(store)

	_, err := service.StartJourney(ctx, "u1", "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = service.StartJourney(ctx, "u1", "j-personal")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAbandonJourney(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	seedUser(store, "u1")
	store.SeedJourney(domain.Journey{
		ID:                 "tpl-1",
		TotalDistanceMiles: 100,
		IsTemplate:         true,
		IsActive:           true,
	})
	service := newTestService(store)

	_, err := service.StartJourney(ctx, "u1", "tpl-1")
	require.NoError(t, err)

	require.NoError(t, service.AbandonJourney(ctx, "u1"))

	user, err := store.GetUser(ctx, "u1")
	require.NoError(t, err)
	require.Nil(t, user.CurrentJourneyID)

	err = service.AbandonJourney(ctx, "u1")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAttackBossUntilDefeat(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	seedUser(store, "u1")
	store.SeedBoss(domain.Boss{
		ID:            "b1",
		Name:          "Couch Demon",
		MaxHealth:     200,
		CurrentHealth: 200,
		ExpReward:     500,
		CoinReward:    50,
		BossType:      domain.BossTypeDaily,
		IsActive:      true,
		SpawnedAt:     testNow.Add(-time.Hour),
	})
	service := newTestService(store)

	_, err := service.SyncSteps(ctx, domain.SyncStepsInput{UserID: "u1", Count: 1000})
	require.NoError(t, err)

	hit, err := service.AttackBoss(ctx, "u1", "b1", 150)
	require.NoError(t, err)
	require.Equal(t, 150, hit.DamageDealt)
	require.False(t, hit.Defeated)
	require.Equal(t, 0, hit.ExpGained)
	require.Nil(t, hit.Rewards)
	require.Equal(t, 50, hit.Boss.CurrentHealth)

	kill, err := service.AttackBoss(ctx, "u1", "b1", 100)
	require.NoError(t, err)
	require.True(t, kill.Defeated)
	require.Equal(t, -50, kill.Boss.CurrentHealth)
	require.Equal(t, 500, kill.ExpGained)
	require.NotNil(t, kill.Rewards)
	require.Equal(t, 500, kill.Rewards.Exp)
	require.Equal(t, 50, kill.Rewards.Coins)
	// 10 exp from the sync plus the 500 reward reaches level 2.
	require.Equal(t, 1, kill.LevelUps)
	require.Equal(t, 2, kill.Level.CurrentLevel)

	// Spent steps leave the day's ledger.
	entry, err := store.GetStepLog(ctx, "u1", testNow)
	require.NoError(t, err)
	require.Equal(t, 750, entry.StepsCount)

	records, err := service.BossAttackHistory(ctx, "b1", 10)
	require.NoError(t, err)
	require.Len(t, records, 2)

	// Defeat is sticky.
	_, err = service.AttackBoss(ctx, "u1", "b1", 10)
	require.ErrorIs(t, err, domain.ErrUnavailable)
}

func TestAttackBossValidation(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	seedUser(store, "u1")
	store.SeedBoss(domain.Boss{
		ID:            "b1",
		MaxHealth:     100,
		CurrentHealth: 100,
		BossType:      domain.BossTypeDaily,
		IsActive:      true,
	})
	service := newTestService(store)

	_, err := service.AttackBoss(ctx, "u1", "b1", 0)
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = service.AttackBoss(ctx, "u1", "missing", 100)
	require.ErrorIs(t, err, domain.ErrNotFound)

	// No steps recorded today.
	_, err = service.AttackBoss(ctx, "u1", "b1", 100)
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestConcurrentAttacksDefeatExactlyOnce(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	seedUser(store, "alice")
	seedUser(store, "bob")
	store.SeedBoss(domain.Boss{
		ID:            "b1",
		MaxHealth:     200,
		CurrentHealth: 200,
		ExpReward:     500,
		BossType:      domain.BossTypeGlobal,
		IsActive:      true,
	})
	service := newTestService(store)

	for _, userID := range []string{"alice", "bob"} {
		_, err := service.SyncSteps(ctx, domain.SyncStepsInput{UserID: userID, Count: 10000})
		require.NoError(t, err)
	}

	results := make([]*domain.AttackResult, 2)
	errs := make([]error, 2)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		results[0], errs[0] = service.AttackBoss(ctx, "alice", "b1", 100)
	}()
	go func() {
		defer wg.Done()
		results[1], errs[1] = service.AttackBoss(ctx, "bob", "b1", 150)
	}()
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	defeats := 0
	for _, result := range results {
		if result.Defeated {
			defeats++
			require.Equal(t, 500, result.ExpGained)
		} else {
			require.Equal(t, 0, result.ExpGained)
		}
	}
	require.Equal(t, 1, defeats)

	boss, err := store.GetBoss(ctx, "b1")
	require.NoError(t, err)
	require.Equal(t, -50, boss.CurrentHealth)
	require.False(t, boss.IsActive)

	defeatEvents := 0
	for _, event := range store.Events() {
		if event.Type == domain.EventBossDefeated {
			defeatEvents++
		}
	}
	require.Equal(t, 1, defeatEvents)
}

func TestListBossesScopedToJourney(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	seedUser(store, "u1")
	journeyID := "j1"
	store.SeedBoss(domain.Boss{ID: "global", MaxHealth: 100, CurrentHealth: 100, BossType: domain.BossTypeGlobal, IsActive: true})
	store.SeedBoss(domain.Boss{ID: "daily", MaxHealth: 100, CurrentHealth: 100, BossType: domain.BossTypeDaily, IsActive: true})
	store.SeedBoss(domain.Boss{ID: "mine", MaxHealth: 100, CurrentHealth: 100, BossType: domain.BossTypePersonal, JourneyID: &journeyID, IsActive: true})
	service := newTestService(store)

	bosses, err := service.ListBosses(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, bosses, 2) // global + daily

	// A user on a journey sees that journey's bosses plus global ones.
	store.SeedJourney(domain.Journey{ID: "tpl", TotalDistanceMiles: 100, IsTemplate: true, IsActive: true})
	_, err = service.StartJourney(ctx, "u1", "tpl")
	require.NoError(t, err)

	user, err := store.GetUser(ctx, "u1")
	require.NoError(t, err)
	store.SeedBoss(domain.Boss{ID: "journey-boss", MaxHealth: 100, CurrentHealth: 100, BossType: domain.BossTypePersonal, JourneyID: user.CurrentJourneyID, IsActive: true})

	bosses, err = service.ListBosses(ctx, "u1")
	require.NoError(t, err)
	ids := make(map[string]bool)
	for _, boss := range bosses {
		ids[boss.ID] = true
	}
	require.True(t, ids["global"])
	require.True(t, ids["journey-boss"])
	require.False(t, ids["daily"])
	require.False(t, ids["mine"])
}

func TestLeaderboardWindows(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	store.SeedUser(domain.User{ID: "a", Username: "alice", TotalStepsLife: 5000})
	store.SeedUser(domain.User{ID: "b", Username: "bob", TotalStepsLife: 8000})
	service := newTestService(store)

	_, err := service.SyncSteps(ctx, domain.SyncStepsInput{UserID: "a", Count: 300})
	require.NoError(t, err)

	day, err := service.Leaderboard(ctx, domain.LeaderboardInput{RequesterID: "a", Timeframe: domain.TimeframeDay})
	require.NoError(t, err)
	require.Len(t, day, 1)
	require.Equal(t, "a", day[0].UserID)
	require.Equal(t, int64(300), day[0].Steps)

	all, err := service.Leaderboard(ctx, domain.LeaderboardInput{RequesterID: "a", Timeframe: domain.TimeframeAll})
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, "b", all[0].UserID)
	require.Equal(t, int64(8000), all[0].Steps)
	require.Equal(t, int64(5300), all[1].Steps)
}

func TestLeaderboardFriendsOnly(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	store.SeedUser(domain.User{ID: "a", Username: "alice", TotalStepsLife: 5000})
	store.SeedUser(domain.User{ID: "b", Username: "bob", TotalStepsLife: 8000})
	store.SeedUser(domain.User{ID: "c", Username: "carol", TotalStepsLife: 9000})
	service := newTestService(store)

	friendship, err := service.SendFriendRequest(ctx, "a", "bob")
	require.NoError(t, err)
	require.NoError(t, service.RespondFriendRequest(ctx, "b", friendship.ID, true))

	entries, err := service.Leaderboard(ctx, domain.LeaderboardInput{
		RequesterID: "a",
		Timeframe:   domain.TimeframeAll,
		FriendsOnly: true,
	})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "b", entries[0].UserID)
	require.Equal(t, "a", entries[1].UserID)
}

func TestFriendRequestLifecycle(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	store.SeedUser(domain.User{ID: "a", Username: "alice"})
	store.SeedUser(domain.User{ID: "b", Username: "bob"})
	service := newTestService(store)

	_, err := service.SendFriendRequest(ctx, "a", "alice")
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = service.SendFriendRequest(ctx, "a", "nobody")
	require.ErrorIs(t, err, domain.ErrNotFound)

	friendship, err := service.SendFriendRequest(ctx, "a", "bob")
	require.NoError(t, err)
	require.Equal(t, domain.FriendshipPending, friendship.Status)

	_, err = service.SendFriendRequest(ctx, "a", "bob")
	require.ErrorIs(t, err, domain.ErrConflict)

	pending, err := service.PendingFriendRequests(ctx, "b")
	require.NoError(t, err)
	require.Len(t, pending, 1)

	// The sender sees no incoming requests.
	pending, err = service.PendingFriendRequests(ctx, "a")
	require.NoError(t, err)
	require.Empty(t, pending)

	// Only the receiver may respond.
	err = service.RespondFriendRequest(ctx, "a", friendship.ID, true)
	require.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, service.RespondFriendRequest(ctx, "b", friendship.ID, true))

	friends, err := service.ListFriends(ctx, "a")
	require.NoError(t, err)
	require.Len(t, friends, 1)
	require.Equal(t, "b", friends[0].ID)

	require.NoError(t, service.RemoveFriend(ctx, "a", "b"))

	friends, err = service.ListFriends(ctx, "b")
	require.NoError(t, err)
	require.Empty(t, friends)
}

func TestRespondFriendRequestDecline(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	store.SeedUser(domain.User{ID: "a", Username: "alice"})
	store.SeedUser(domain.User{ID: "b", Username: "bob"})
	service := newTestService(store)

	friendship, err := service.SendFriendRequest(ctx, "a", "bob")
	require.NoError(t, err)

	require.NoError(t, service.RespondFriendRequest(ctx, "b", friendship.ID, false))

	// The edge is gone entirely, so a new request is allowed.
	_, err = service.SendFriendRequest(ctx, "a", "bob")
	require.NoError(t, err)
}

func TestGetProfile(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	store.SeedUser(domain.User{ID: "u1", Username: "walker", TotalStepsLife: 60_000})
	service := newTestService(store)

	_, err := service.SyncSteps(ctx, domain.SyncStepsInput{UserID: "u1", Count: 4000})
	require.NoError(t, err)

	profile, err := service.GetProfile(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, 4000, profile.TodaySteps)
	require.Equal(t, 1, profile.Streak)
	require.InDelta(t, 32.0, profile.TotalMiles, 1e-9)
	// Lifetime 64000 steps earns the first three badges.
	require.Len(t, profile.Badges, 3)
	require.Nil(t, profile.Journey)

	_, err = service.GetProfile(ctx, "ghost")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestWeeklyStepsZeroFilled(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	seedUser(store, "u1")
	service := newTestService(store)

	_, err := service.SyncSteps(ctx, domain.SyncStepsInput{UserID: "u1", Count: 2500})
	require.NoError(t, err)

	series, err := service.WeeklySteps(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, series, 7)
	require.Equal(t, 2500, series[6].Steps)
	require.Equal(t, 0, series[0].Steps)
}
