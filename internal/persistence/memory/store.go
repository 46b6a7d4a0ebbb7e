// Package memory provides an in-memory Store for unit tests and local
// development. It honours the same version-check commit semantics as the
// Postgres implementation.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"example.com/stepquest/internal/domain"
)

type stepLogKey struct {
	userID string
	date   time.Time
}

// Store keeps every entity in process memory guarded by one mutex.
type Store struct {
	mu          sync.RWMutex
	users       map[string]domain.User
	stepLogs    map[stepLogKey]domain.StepLogEntry
	levels      map[string]domain.UserLevel
	journeys    map[string]domain.Journey
	bosses      map[string]domain.Boss
	attacks     []domain.BossAttackRecord
	friendships map[string]domain.Friendship
	syncResults map[string]domain.SyncResult
	events      []domain.Event
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{
		users:       make(map[string]domain.User),
		stepLogs:    make(map[stepLogKey]domain.StepLogEntry),
		levels:      make(map[string]domain.UserLevel),
		journeys:    make(map[string]domain.Journey),
		bosses:      make(map[string]domain.Boss),
		friendships: make(map[string]domain.Friendship),
		syncResults: make(map[string]domain.SyncResult),
	}
}

// SeedUser inserts a user row, assigning version 1.
func (s *Store) SeedUser(user domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user.Version = 1
	s.users[user.ID] = user
}

// SeedJourney inserts a journey row, assigning version 1.
func (s *Store) SeedJourney(journey domain.Journey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	journey.Version = 1
	s.journeys[journey.ID] = journey
}

// SeedBoss inserts a boss row, assigning version 1.
func (s *Store) SeedBoss(boss domain.Boss) {
	s.mu.Lock()
	defer s.mu.Unlock()
	boss.Version = 1
	s.bosses[boss.ID] = boss
}

// Events returns every outbox event committed so far.
func (s *Store) Events() []domain.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Event, len(s.events))
	copy(out, s.events)
	return out
}

// GetUser implements domain.UserStore.
func (s *Store) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[userID]
	if !ok {
		return nil, nil
	}
	return &user, nil
}

// GetUserByUsername implements domain.UserStore.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, user := range s.users {
		if user.Username == username {
			user := user
			return &user, nil
		}
	}
	return nil, nil
}

// GetStepLog implements domain.StepStore.
func (s *Store) GetStepLog(ctx context.Context, userID string, date time.Time) (*domain.StepLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.stepLogs[stepLogKey{userID, domain.DateOf(date)}]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

// ListStepLogs implements domain.StepStore.
func (s *Store) ListStepLogs(ctx context.Context, userID string, cursorDate time.Time, limit int) ([]domain.StepLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]domain.StepLogEntry, 0)
	for key, entry := range s.stepLogs {
		if key.userID != userID {
			continue
		}
		if !cursorDate.IsZero() && !entry.Date.Before(cursorDate) {
			continue
		}
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Date.After(entries[j].Date) })
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// StepLogsInRange implements domain.StepStore.
func (s *Store) StepLogsInRange(ctx context.Context, userID string, from, to time.Time) ([]domain.StepLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]domain.StepLogEntry, 0)
	for key, entry := range s.stepLogs {
		if key.userID != userID || entry.Date.Before(from) || entry.Date.After(to) {
			continue
		}
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Date.Before(entries[j].Date) })
	return entries, nil
}

// FindSyncByIdempotency implements domain.StepStore.
func (s *Store) FindSyncByIdempotency(ctx context.Context, userID, key string) (*domain.SyncResult, error) {
	if key == "" {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	result, ok := s.syncResults[userID+"|"+key]
	if !ok {
		return nil, nil
	}
	return &result, nil
}

// CommitSync implements domain.StepStore.
func (s *Store) CommitSync(ctx context.Context, commit domain.SyncCommit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Mirrors the step_sync_requests primary key: a commit that lost the
	// race for its idempotency key must fail so the caller replays the
	// recorded result rather than double-counting.
	if commit.IdempotencyKey != "" {
		if _, exists := s.syncResults[commit.User.ID+"|"+commit.IdempotencyKey]; exists {
			return domain.ErrVersionConflict
		}
	}

	entryKey := stepLogKey{commit.Entry.UserID, domain.DateOf(commit.Entry.Date)}
	if err := s.checkVersions(
		versionCheck{current: s.stepLogVersion(entryKey), expected: commit.Entry.Version},
		versionCheck{current: s.users[commit.User.ID].Version, expected: commit.User.Version},
		versionCheck{current: s.levels[commit.Level.UserID].Version, expected: commit.Level.Version},
		s.journeyCheck(commit.Journey),
	); err != nil {
		return err
	}

	s.putStepLog(entryKey, commit.Entry)
	s.putUser(commit.User)
	s.putLevel(commit.Level)
	if commit.Journey != nil {
		s.putJourney(*commit.Journey)
	}
	if commit.IdempotencyKey != "" {
		s.syncResults[commit.User.ID+"|"+commit.IdempotencyKey] = commit.Result
	}
	s.events = append(s.events, commit.Events...)
	return nil
}

// GetUserLevel implements domain.ProgressionStore.
func (s *Store) GetUserLevel(ctx context.Context, userID string) (*domain.UserLevel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	level, ok := s.levels[userID]
	if !ok {
		return nil, nil
	}
	return &level, nil
}

// GetJourney implements domain.JourneyStore.
func (s *Store) GetJourney(ctx context.Context, journeyID string) (*domain.Journey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	journey, ok := s.journeys[journeyID]
	if !ok {
		return nil, nil
	}
	return &journey, nil
}

// ListJourneyTemplates implements domain.JourneyStore.
func (s *Store) ListJourneyTemplates(ctx context.Context) ([]domain.Journey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	templates := make([]domain.Journey, 0)
	for _, journey := range s.journeys {
		if journey.IsTemplate && journey.IsActive {
			templates = append(templates, journey)
		}
	}
	sort.Slice(templates, func(i, j int) bool { return templates[i].ID < templates[j].ID })
	return templates, nil
}

// CommitJourneyStart implements domain.JourneyStore.
func (s *Store) CommitJourneyStart(ctx context.Context, commit domain.JourneyStartCommit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkVersions(
		versionCheck{current: s.users[commit.User.ID].Version, expected: commit.User.Version},
		versionCheck{current: s.journeys[commit.Journey.ID].Version, expected: commit.Journey.Version},
	); err != nil {
		return err
	}

	s.putJourney(commit.Journey)
	s.putUser(commit.User)
	return nil
}

// CommitJourneyAbandon implements domain.JourneyStore.
func (s *Store) CommitJourneyAbandon(ctx context.Context, user domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkVersions(versionCheck{current: s.users[user.ID].Version, expected: user.Version}); err != nil {
		return err
	}
	s.putUser(user)
	return nil
}

// GetBoss implements domain.BossStore.
func (s *Store) GetBoss(ctx context.Context, bossID string) (*domain.Boss, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	boss, ok := s.bosses[bossID]
	if !ok {
		return nil, nil
	}
	return &boss, nil
}

// ListAvailableBosses implements domain.BossStore.
func (s *Store) ListAvailableBosses(ctx context.Context, journeyID *string) ([]domain.Boss, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bosses := make([]domain.Boss, 0)
	for _, boss := range s.bosses {
		if !boss.IsActive || boss.CurrentHealth <= 0 {
			continue
		}
		if journeyID != nil {
			if boss.BossType == domain.BossTypeGlobal || (boss.JourneyID != nil && *boss.JourneyID == *journeyID) {
				bosses = append(bosses, boss)
			}
			continue
		}
		if boss.BossType == domain.BossTypeGlobal || boss.BossType == domain.BossTypeDaily {
			bosses = append(bosses, boss)
		}
	}
	sort.Slice(bosses, func(i, j int) bool { return bosses[i].ID < bosses[j].ID })
	return bosses, nil
}

// ListBossAttacks implements domain.BossStore.
func (s *Store) ListBossAttacks(ctx context.Context, bossID string, limit int) ([]domain.BossAttackRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]domain.BossAttackRecord, 0)
	for _, record := range s.attacks {
		if record.BossID == bossID {
			records = append(records, record)
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].AttackedAt.After(records[j].AttackedAt) })
	if len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// CommitAttack implements domain.BossStore.
func (s *Store) CommitAttack(ctx context.Context, commit domain.AttackCommit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entryKey := stepLogKey{commit.Entry.UserID, domain.DateOf(commit.Entry.Date)}
	if err := s.checkVersions(
		versionCheck{current: s.bosses[commit.Boss.ID].Version, expected: commit.Boss.Version},
		versionCheck{current: s.stepLogVersion(entryKey), expected: commit.Entry.Version},
		versionCheck{current: s.levels[commit.Level.UserID].Version, expected: commit.Level.Version},
	); err != nil {
		return err
	}

	s.putBoss(commit.Boss)
	s.putStepLog(entryKey, commit.Entry)
	s.putLevel(commit.Level)
	s.attacks = append(s.attacks, commit.Record)
	s.events = append(s.events, commit.Events...)
	return nil
}

// StepTotals implements domain.LeaderboardStore.
func (s *Store) StepTotals(ctx context.Context, from, to time.Time, filter []string) ([]domain.StepTotal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	allowed := allowSet(filter)
	sums := make(map[string]int64)
	for key, entry := range s.stepLogs {
		if entry.Date.Before(from) || entry.Date.After(to) {
			continue
		}
		if allowed != nil {
			if _, ok := allowed[key.userID]; !ok {
				continue
			}
		}
		sums[key.userID] += int64(entry.StepsCount)
	}

	totals := make([]domain.StepTotal, 0, len(sums))
	for userID, steps := range sums {
		totals = append(totals, s.hydrateTotal(userID, steps))
	}
	return totals, nil
}

// LifetimeTotals implements domain.LeaderboardStore.
func (s *Store) LifetimeTotals(ctx context.Context, filter []string) ([]domain.StepTotal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	allowed := allowSet(filter)
	totals := make([]domain.StepTotal, 0, len(s.users))
	for _, user := range s.users {
		if allowed != nil {
			if _, ok := allowed[user.ID]; !ok {
				continue
			}
		}
		totals = append(totals, s.hydrateTotal(user.ID, user.TotalStepsLife))
	}
	return totals, nil
}

// FriendIDs implements domain.SocialStore.
func (s *Store) FriendIDs(ctx context.Context, userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0)
	for _, friendship := range s.friendships {
		if friendship.Status != domain.FriendshipAccepted {
			continue
		}
		if friendship.SenderID == userID || friendship.ReceiverID == userID {
			ids = append(ids, friendship.OtherUser(userID))
		}
	}
	return ids, nil
}

// ListFriendships implements domain.SocialStore.
func (s *Store) ListFriendships(ctx context.Context, userID string, status domain.FriendshipStatus) ([]domain.Friendship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	friendships := make([]domain.Friendship, 0)
	for _, friendship := range s.friendships {
		if friendship.Status != status {
			continue
		}
		if friendship.SenderID == userID || friendship.ReceiverID == userID {
			friendships = append(friendships, friendship)
		}
	}
	sort.Slice(friendships, func(i, j int) bool { return friendships[i].SentAt.Before(friendships[j].SentAt) })
	return friendships, nil
}

// FindFriendship implements domain.SocialStore.
func (s *Store) FindFriendship(ctx context.Context, userA, userB string) (*domain.Friendship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, friendship := range s.friendships {
		if (friendship.SenderID == userA && friendship.ReceiverID == userB) ||
			(friendship.SenderID == userB && friendship.ReceiverID == userA) {
			friendship := friendship
			return &friendship, nil
		}
	}
	return nil, nil
}

// GetFriendship implements domain.SocialStore.
func (s *Store) GetFriendship(ctx context.Context, id string) (*domain.Friendship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	friendship, ok := s.friendships[id]
	if !ok {
		return nil, nil
	}
	return &friendship, nil
}

// InsertFriendship implements domain.SocialStore.
func (s *Store) InsertFriendship(ctx context.Context, friendship domain.Friendship) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.friendships[friendship.ID] = friendship
	return nil
}

// UpdateFriendship implements domain.SocialStore.
func (s *Store) UpdateFriendship(ctx context.Context, friendship domain.Friendship) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.friendships[friendship.ID] = friendship
	return nil
}

// DeleteFriendship implements domain.SocialStore.
func (s *Store) DeleteFriendship(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.friendships, id)
	return nil
}

// DueRespawns returns defeated bosses whose respawn delay has elapsed.
func (s *Store) DueRespawns(ctx context.Context, now time.Time) ([]domain.Boss, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	due := make([]domain.Boss, 0)
	for _, boss := range s.bosses {
		if boss.RespawnDueAt != nil && !boss.RespawnDueAt.After(now) {
			due = append(due, boss)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ID < due[j].ID })
	return due, nil
}

// CommitRespawn clears the expired boss's respawn marker and inserts its
// replacement, conditionally on the expired boss's version.
func (s *Store) CommitRespawn(ctx context.Context, expired domain.Boss, fresh domain.Boss) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkVersions(versionCheck{current: s.bosses[expired.ID].Version, expected: expired.Version}); err != nil {
		return err
	}
	s.putBoss(expired)
	s.putBoss(fresh)
	return nil
}

// ActiveDailyBoss returns the Daily boss spawned on the given day, if any.
func (s *Store) ActiveDailyBoss(ctx context.Context, day time.Time) (*domain.Boss, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, boss := range s.bosses {
		if boss.BossType == domain.BossTypeDaily && boss.IsActive && domain.DateOf(boss.SpawnedAt).Equal(domain.DateOf(day)) {
			boss := boss
			return &boss, nil
		}
	}
	return nil, nil
}

// InsertBoss inserts a new boss row, assigning version 1.
func (s *Store) InsertBoss(ctx context.Context, boss domain.Boss) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	boss.Version = 1
	s.bosses[boss.ID] = boss
	return nil
}

type versionCheck struct {
	current  int64
	expected int64
}

func (s *Store) checkVersions(checks ...versionCheck) error {
	for _, check := range checks {
		if check.current != check.expected {
			return domain.ErrVersionConflict
		}
	}
	return nil
}

func (s *Store) journeyCheck(journey *domain.Journey) versionCheck {
	if journey == nil {
		return versionCheck{}
	}
	return versionCheck{current: s.journeys[journey.ID].Version, expected: journey.Version}
}

func (s *Store) stepLogVersion(key stepLogKey) int64 {
	return s.stepLogs[key].Version
}

func (s *Store) putUser(user domain.User) {
	user.Version++
	s.users[user.ID] = user
}

func (s *Store) putLevel(level domain.UserLevel) {
	level.Version++
	s.levels[level.UserID] = level
}

func (s *Store) putJourney(journey domain.Journey) {
	journey.Version++
	s.journeys[journey.ID] = journey
}

func (s *Store) putBoss(boss domain.Boss) {
	boss.Version++
	s.bosses[boss.ID] = boss
}

func (s *Store) putStepLog(key stepLogKey, entry domain.StepLogEntry) {
	entry.Version++
	s.stepLogs[key] = entry
}

func allowSet(filter []string) map[string]struct{} {
	if filter == nil {
		return nil
	}
	allowed := make(map[string]struct{}, len(filter))
	for _, id := range filter {
		allowed[id] = struct{}{}
	}
	return allowed
}

func (s *Store) hydrateTotal(userID string, steps int64) domain.StepTotal {
	user := s.users[userID]
	level := 1
	if stored, ok := s.levels[userID]; ok {
		level = stored.CurrentLevel
	}
	return domain.StepTotal{
		UserID:      userID,
		Username:    user.Username,
		DisplayName: user.Name(),
		AvatarURL:   user.AvatarURL,
		Level:       level,
		Steps:       steps,
	}
}
