//go:build integration

package postgres

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"example.com/stepquest/internal/domain"
)

func TestRepositorySyncAndCombatFlow(t *testing.T) {
	ctx := context.Background()

	pg, err := postgrescontainer.RunContainer(ctx,
		postgrescontainer.WithDatabase("stepquest"),
		postgrescontainer.WithUsername("stepquest"),
		postgrescontainer.WithPassword("stepquest"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, waitForDatabase(ctx, connStr))

	runMigrations(t, ctx, connStr)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	repo := NewRepository(pool)
	service := domain.NewService(repo)

	userID := uuid.NewString()
	_, err = pool.Exec(ctx,
		`INSERT INTO users (id, username) VALUES ($1, $2)`,
		userID, "integration-walker")
	require.NoError(t, err)

	// Sync with an idempotency key, then replay it.
	result, err := service.SyncSteps(ctx, domain.SyncStepsInput{
		UserID:         userID,
		Count:          12000,
		IdempotencyKey: "itest-1",
	})
	require.NoError(t, err)
	require.Equal(t, 12000, result.Delta)
	require.False(t, result.Replay)

	replay, err := service.SyncSteps(ctx, domain.SyncStepsInput{
		UserID:         userID,
		Count:          12000,
		IdempotencyKey: "itest-1",
	})
	require.NoError(t, err)
	require.True(t, replay.Replay)
	require.Equal(t, result.StepsToday, replay.StepsToday)

	entry, err := repo.GetStepLog(ctx, userID, time.Now().UTC())
	require.NoError(t, err)
	require.NotNil(t, entry)
	require.Equal(t, 12000, entry.StepsCount)

	user, err := repo.GetUser(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, int64(12000), user.TotalStepsLife)

	// Exactly one steps.synced event staged; the replay wrote nothing.
	var outboxCount int
	err = pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM outbox WHERE event_type='steps.synced'`).Scan(&outboxCount)
	require.NoError(t, err)
	require.Equal(t, 1, outboxCount)

	// The seed migration provides the template catalog and a global boss.
	templates, err := repo.ListJourneyTemplates(ctx)
	require.NoError(t, err)
	require.Len(t, templates, 6)
	require.Equal(t, "Denver", templates[0].StartCity)

	bosses, err := repo.ListAvailableBosses(ctx, nil)
	require.NoError(t, err)
	require.Len(t, bosses, 1)
	require.Equal(t, domain.BossTypeGlobal, bosses[0].BossType)

	// Spend steps against the global boss and verify the audit trail.
	attack, err := service.AttackBoss(ctx, userID, bosses[0].ID, 500)
	require.NoError(t, err)
	require.Equal(t, 500, attack.DamageDealt)
	require.False(t, attack.Defeated)

	entry, err = repo.GetStepLog(ctx, userID, time.Now().UTC())
	require.NoError(t, err)
	require.Equal(t, 11500, entry.StepsCount)

	records, err := repo.ListBossAttacks(ctx, bosses[0].ID, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, userID, records[0].UserID)
}

func runMigrations(t *testing.T, ctx context.Context, connStr string) {
	files := []string{
		"../../../db/postgres/migrations/0001_init.up.sql",
		"../../../db/postgres/migrations/0002_seed.up.sql",
	}

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	defer pool.Close()

	for _, rel := range files {
		path := resolvePath(t, rel)
		contents, readErr := os.ReadFile(path)
		require.NoError(t, readErr)

		_, execErr := pool.Exec(ctx, string(contents))
		require.NoError(t, execErr)
	}
}

func resolvePath(t *testing.T, rel string) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	return filepath.Join(filepath.Dir(file), rel)
}

func waitForDatabase(ctx context.Context, connStr string) error {
	deadline := time.Now().Add(30 * time.Second)
	for {
		pool, err := pgxpool.New(ctx, connStr)
		if err == nil {
			err = pool.Ping(ctx)
			pool.Close()
			if err == nil {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return err
		}
		time.Sleep(time.Second)
	}
}
