package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"example.com/stepquest/internal/domain"
	"example.com/stepquest/internal/observability"
)

const bossColumns = `id, name, description, image_url, max_health, current_health, exp_reward, coin_reward,
    special_reward, difficulty, boss_type, journey_id, is_active, spawned_at, defeated_at, respawn_hours,
    respawn_due_at, version`

func scanBoss(row pgx.Row) (*domain.Boss, error) {
	var boss domain.Boss
	err := row.Scan(&boss.ID, &boss.Name, &boss.Description, &boss.ImageURL, &boss.MaxHealth,
		&boss.CurrentHealth, &boss.ExpReward, &boss.CoinReward, &boss.SpecialReward, &boss.Difficulty,
		&boss.BossType, &boss.JourneyID, &boss.IsActive, &boss.SpawnedAt, &boss.DefeatedAt,
		&boss.RespawnHours, &boss.RespawnDueAt, &boss.Version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &boss, nil
}

// GetBoss retrieves a boss by id.
func (r *Repository) GetBoss(ctx context.Context, bossID string) (*domain.Boss, error) {
	const query = `SELECT ` + bossColumns + ` FROM bosses WHERE id=$1`
	return scanBoss(r.pool.QueryRow(ctx, query, bossID))
}

// ListAvailableBosses returns active bosses with health remaining. With a
// journey id the listing shows that journey's bosses plus Global ones;
// without, Global plus Daily.
func (r *Repository) ListAvailableBosses(ctx context.Context, journeyID *string) ([]domain.Boss, error) {
	query := `SELECT ` + bossColumns + ` FROM bosses WHERE is_active AND current_health > 0`
	args := []interface{}{}
	if journeyID != nil {
		query += ` AND (boss_type='global' OR journey_id=$1)`
		args = append(args, *journeyID)
	} else {
		query += ` AND boss_type IN ('global','daily')`
	}
	query += ` ORDER BY spawned_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBosses(rows)
}

func collectBosses(rows pgx.Rows) ([]domain.Boss, error) {
	bosses := make([]domain.Boss, 0, 8)
	for rows.Next() {
		var boss domain.Boss
		if err := rows.Scan(&boss.ID, &boss.Name, &boss.Description, &boss.ImageURL, &boss.MaxHealth,
			&boss.CurrentHealth, &boss.ExpReward, &boss.CoinReward, &boss.SpecialReward, &boss.Difficulty,
			&boss.BossType, &boss.JourneyID, &boss.IsActive, &boss.SpawnedAt, &boss.DefeatedAt,
			&boss.RespawnHours, &boss.RespawnDueAt, &boss.Version); err != nil {
			return nil, err
		}
		bosses = append(bosses, boss)
	}
	return bosses, rows.Err()
}

// ListBossAttacks returns the newest attack records for a boss.
func (r *Repository) ListBossAttacks(ctx context.Context, bossID string, limit int) ([]domain.BossAttackRecord, error) {
	const query = `SELECT id, user_id, boss_id, steps_used, damage_dealt, exp_gained, attacked_at
        FROM boss_attacks WHERE boss_id=$1 ORDER BY attacked_at DESC LIMIT $2`

	rows, err := r.pool.Query(ctx, query, bossID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]domain.BossAttackRecord, 0, limit)
	for rows.Next() {
		var record domain.BossAttackRecord
		if err := rows.Scan(&record.ID, &record.UserID, &record.BossID, &record.StepsUsed,
			&record.DamageDealt, &record.ExpGained, &record.AttackedAt); err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// CommitAttack applies one attack's full write set in a single transaction:
// the boss state, the attacker's spent steps and XP, the audit record, and
// any outbox events.
func (r *Repository) CommitAttack(ctx context.Context, commit domain.AttackCommit) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	if err = saveBoss(ctx, tx, commit.Boss); err != nil {
		return err
	}
	if err = saveStepLog(ctx, tx, commit.Entry); err != nil {
		return err
	}
	if err = saveLevel(ctx, tx, commit.Level); err != nil {
		return err
	}

	const insertAttack = `INSERT INTO boss_attacks (id, user_id, boss_id, steps_used, damage_dealt, exp_gained, attacked_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)`
	if _, err = tx.Exec(ctx, insertAttack, commit.Record.ID, commit.Record.UserID, commit.Record.BossID,
		commit.Record.StepsUsed, commit.Record.DamageDealt, commit.Record.ExpGained, commit.Record.AttackedAt); err != nil {
		return err
	}

	if err = insertOutbox(ctx, tx, commit.Events); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return err
	}
	observability.RecordAttackPersisted(commit.Record.AttackedAt)
	return nil
}

// DueRespawns returns defeated bosses whose respawn delay has elapsed.
func (r *Repository) DueRespawns(ctx context.Context, now time.Time) ([]domain.Boss, error) {
	const query = `SELECT ` + bossColumns + ` FROM bosses
        WHERE respawn_due_at IS NOT NULL AND respawn_due_at <= $1 ORDER BY respawn_due_at ASC`

	rows, err := r.pool.Query(ctx, query, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBosses(rows)
}

// CommitRespawn clears the expired boss's respawn marker and inserts its
// replacement, conditionally on the expired boss's version.
func (r *Repository) CommitRespawn(ctx context.Context, expired domain.Boss, fresh domain.Boss) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	if err = saveBoss(ctx, tx, expired); err != nil {
		return err
	}
	if err = insertBoss(ctx, tx, fresh); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// ActiveDailyBoss returns the Daily boss spawned on the given day, if any.
func (r *Repository) ActiveDailyBoss(ctx context.Context, day time.Time) (*domain.Boss, error) {
	const query = `SELECT ` + bossColumns + ` FROM bosses
        WHERE boss_type='daily' AND is_active AND spawned_at >= $1 AND spawned_at < $2
        ORDER BY spawned_at DESC LIMIT 1`

	start := domain.DateOf(day)
	return scanBoss(r.pool.QueryRow(ctx, query, start, start.AddDate(0, 0, 1)))
}

// InsertBoss inserts a freshly spawned boss.
func (r *Repository) InsertBoss(ctx context.Context, boss domain.Boss) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	if err = insertBoss(ctx, tx, boss); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
