// Package scheduler runs the periodic boss maintenance jobs: respawning
// defeated Global bosses after their delay and spawning the day's Daily boss.
package scheduler

import (
	"context"
	"errors"
	"log"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"example.com/stepquest/internal/domain"
)

// BossStore is the persistence slice the scheduler needs.
type BossStore interface {
	DueRespawns(ctx context.Context, now time.Time) ([]domain.Boss, error)
	CommitRespawn(ctx context.Context, expired domain.Boss, fresh domain.Boss) error
	ActiveDailyBoss(ctx context.Context, day time.Time) (*domain.Boss, error)
	InsertBoss(ctx context.Context, boss domain.Boss) error
}

// Scheduler owns the cron runner and its jobs.
type Scheduler struct {
	store BossStore
	clock domain.Clock
	cron  *cron.Cron
	pick  func(n int) int
}

// Option configures optional Scheduler behaviour.
type Option func(*Scheduler)

// WithClock overrides the wall-clock source, primarily for tests.
func WithClock(clock domain.Clock) Option {
	return func(s *Scheduler) {
		s.clock = clock
	}
}

// WithPicker overrides daily template selection, primarily for tests.
func WithPicker(pick func(n int) int) Option {
	return func(s *Scheduler) {
		s.pick = pick
	}
}

// New constructs a Scheduler.
func New(store BossStore, opts ...Option) *Scheduler {
	s := &Scheduler{
		store: store,
		clock: domain.SystemClock(),
		cron:  cron.New(),
		pick:  rand.Intn,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start registers the jobs under the given cron specs and launches the
// runner. Both jobs also fire once immediately so a restart never leaves a
// respawn or daily spawn pending until the next tick.
func (s *Scheduler) Start(ctx context.Context, respawnSpec, dailySpec string) error {
	if _, err := s.cron.AddFunc(respawnSpec, func() {
		if err := s.SweepRespawns(ctx); err != nil {
			log.Printf("scheduler: respawn sweep error: %v", err)
		}
	}); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(dailySpec, func() {
		if err := s.SpawnDailyBoss(ctx); err != nil {
			log.Printf("scheduler: daily spawn error: %v", err)
		}
	}); err != nil {
		return err
	}

	if err := s.SweepRespawns(ctx); err != nil {
		log.Printf("scheduler: respawn sweep error: %v", err)
	}
	if err := s.SpawnDailyBoss(ctx); err != nil {
		log.Printf("scheduler: daily spawn error: %v", err)
	}

	s.cron.Start()
	return nil
}

// Stop halts the cron runner and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// SweepRespawns materializes replacements for defeated bosses whose respawn
// delay has elapsed. A version conflict means another instance already
// handled the boss; it is skipped, not retried.
func (s *Scheduler) SweepRespawns(ctx context.Context) error {
	now := s.clock.Now()
	due, err := s.store.DueRespawns(ctx, now)
	if err != nil {
		return err
	}

	var errs error
	for _, expired := range due {
		fresh := domain.Respawn(expired, uuid.NewString(), now)
		expired.RespawnDueAt = nil

		err := s.store.CommitRespawn(ctx, expired, fresh)
		if errors.Is(err, domain.ErrVersionConflict) {
			continue
		}
		if err != nil {
			errs = errors.Join(errs, err)
			continue
		}
		recordRespawn()
		log.Printf("scheduler: respawned boss %s as %s", expired.ID, fresh.ID)
	}
	return errs
}

// SpawnDailyBoss inserts today's Daily boss from the rotation unless one is
// already active.
func (s *Scheduler) SpawnDailyBoss(ctx context.Context) error {
	now := s.clock.Now()
	existing, err := s.store.ActiveDailyBoss(ctx, now)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	template := domain.DailyBossTemplates[s.pick(len(domain.DailyBossTemplates))]
	boss := domain.Boss{
		ID:            uuid.NewString(),
		Name:          template.Name,
		Description:   template.Description,
		MaxHealth:     template.Health,
		CurrentHealth: template.Health,
		ExpReward:     template.ExpReward,
		Difficulty:    "daily",
		BossType:      domain.BossTypeDaily,
		IsActive:      true,
		SpawnedAt:     now,
	}

	if err := s.store.InsertBoss(ctx, boss); err != nil {
		return err
	}
	recordDailySpawn()
	log.Printf("scheduler: spawned daily boss %q (%s)", boss.Name, boss.ID)
	return nil
}
