// Package postgres provides the pgx-backed Store implementation and the
// transactional outbox writes that ride inside its commits.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/stepquest/internal/domain"
	"example.com/stepquest/internal/observability"
)

// Repository provides Postgres-backed persistence for the step ledger,
// progression, journeys, bosses, and the friend graph.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `id, username, display_name, avatar_url, total_steps_life, current_journey_id, created_at, last_active, version`

func scanUser(row pgx.Row) (*domain.User, error) {
	var user domain.User
	err := row.Scan(&user.ID, &user.Username, &user.DisplayName, &user.AvatarURL,
		&user.TotalStepsLife, &user.CurrentJourneyID, &user.CreatedAt, &user.LastActive, &user.Version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// GetUser retrieves a user by id.
func (r *Repository) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id=$1`
	return scanUser(r.pool.QueryRow(ctx, query, userID))
}

// GetUserByUsername retrieves a user by username.
func (r *Repository) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE username=$1`
	return scanUser(r.pool.QueryRow(ctx, query, username))
}

const stepLogColumns = `id, user_id, date, steps_count, distance_miles, source, recorded_at, version`

func scanStepLog(row pgx.Row) (*domain.StepLogEntry, error) {
	var entry domain.StepLogEntry
	err := row.Scan(&entry.ID, &entry.UserID, &entry.Date, &entry.StepsCount,
		&entry.DistanceMiles, &entry.Source, &entry.Timestamp, &entry.Version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

// GetStepLog retrieves the ledger row for one user and calendar day.
func (r *Repository) GetStepLog(ctx context.Context, userID string, date time.Time) (*domain.StepLogEntry, error) {
	const query = `SELECT ` + stepLogColumns + ` FROM step_logs WHERE user_id=$1 AND date=$2`
	return scanStepLog(r.pool.QueryRow(ctx, query, userID, domain.DateOf(date)))
}

// ListStepLogs returns ledger rows newest-first, resuming strictly before
// cursorDate when set.
func (r *Repository) ListStepLogs(ctx context.Context, userID string, cursorDate time.Time, limit int) ([]domain.StepLogEntry, error) {
	args := []interface{}{userID, limit}
	query := `SELECT ` + stepLogColumns + ` FROM step_logs WHERE user_id=$1`
	if !cursorDate.IsZero() {
		query += ` AND date < $3`
		args = append(args, domain.DateOf(cursorDate))
	}
	query += ` ORDER BY date DESC LIMIT $2`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectStepLogs(rows, limit)
}

// StepLogsInRange returns ledger rows with date in [from, to], oldest first.
func (r *Repository) StepLogsInRange(ctx context.Context, userID string, from, to time.Time) ([]domain.StepLogEntry, error) {
	const query = `SELECT ` + stepLogColumns + ` FROM step_logs
        WHERE user_id=$1 AND date BETWEEN $2 AND $3 ORDER BY date ASC`

	rows, err := r.pool.Query(ctx, query, userID, domain.DateOf(from), domain.DateOf(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectStepLogs(rows, 16)
}

func collectStepLogs(rows pgx.Rows, hint int) ([]domain.StepLogEntry, error) {
	entries := make([]domain.StepLogEntry, 0, hint)
	for rows.Next() {
		var entry domain.StepLogEntry
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.Date, &entry.StepsCount,
			&entry.DistanceMiles, &entry.Source, &entry.Timestamp, &entry.Version); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// FindSyncByIdempotency returns the recorded outcome of a previously applied
// sync, or nil when the key is unseen.
func (r *Repository) FindSyncByIdempotency(ctx context.Context, userID, key string) (*domain.SyncResult, error) {
	if key == "" {
		return nil, nil
	}

	const query = `SELECT result FROM step_sync_requests WHERE user_id=$1 AND idempotency_key=$2`

	var body []byte
	if err := r.pool.QueryRow(ctx, query, userID, key).Scan(&body); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	var result domain.SyncResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CommitSync applies one step sync's full write set in a single transaction.
func (r *Repository) CommitSync(ctx context.Context, commit domain.SyncCommit) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	if err = saveStepLog(ctx, tx, commit.Entry); err != nil {
		return err
	}
	if err = saveUser(ctx, tx, commit.User); err != nil {
		return err
	}
	if err = saveLevel(ctx, tx, commit.Level); err != nil {
		return err
	}
	if commit.Journey != nil {
		if err = saveJourney(ctx, tx, *commit.Journey); err != nil {
			return err
		}
	}
	if commit.IdempotencyKey != "" {
		if err = recordSyncResult(ctx, tx, commit.User.ID, commit.IdempotencyKey, commit.Result); err != nil {
			return err
		}
	}
	if err = insertOutbox(ctx, tx, commit.Events); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return err
	}
	observability.RecordLedgerPersisted(commit.Entry.Timestamp)
	return nil
}

func recordSyncResult(ctx context.Context, tx pgx.Tx, userID, key string, result domain.SyncResult) error {
	body, err := json.Marshal(result)
	if err != nil {
		return err
	}
	const stmt = `INSERT INTO step_sync_requests (user_id, idempotency_key, result) VALUES ($1,$2,$3)`
	_, err = tx.Exec(ctx, stmt, userID, key, body)
	return asVersionConflict(err)
}

// asVersionConflict maps a unique-constraint violation onto the optimistic
// concurrency error so the service's retry loop absorbs races between two
// first inserts of the same row, the same way a failed version check does.
func asVersionConflict(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return domain.ErrVersionConflict
	}
	return err
}

// GetUserLevel retrieves a user's progression row.
func (r *Repository) GetUserLevel(ctx context.Context, userID string) (*domain.UserLevel, error) {
	const query = `SELECT user_id, current_level, current_exp, total_exp, attack_power, created_at, last_level_up, version
        FROM user_levels WHERE user_id=$1`

	var level domain.UserLevel
	err := r.pool.QueryRow(ctx, query, userID).Scan(&level.UserID, &level.CurrentLevel, &level.CurrentExp,
		&level.TotalExp, &level.AttackPower, &level.CreatedAt, &level.LastLevelUp, &level.Version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &level, nil
}

// Version-checked saves. Version 0 means the caller built a fresh entity and
// expects an insert; otherwise the update is conditional on the version the
// caller read and bumps it by one. A failed check surfaces ErrVersionConflict.

func saveUser(ctx context.Context, tx pgx.Tx, user domain.User) error {
	const stmt = `UPDATE users
        SET total_steps_life=$1, current_journey_id=$2, last_active=$3, version=version+1
        WHERE id=$4 AND version=$5`

	tag, err := tx.Exec(ctx, stmt, user.TotalStepsLife, user.CurrentJourneyID, user.LastActive, user.ID, user.Version)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrVersionConflict
	}
	return nil
}

func saveStepLog(ctx context.Context, tx pgx.Tx, entry domain.StepLogEntry) error {
	if entry.Version == 0 {
		const stmt = `INSERT INTO step_logs (id, user_id, date, steps_count, distance_miles, source, recorded_at, version)
            VALUES ($1,$2,$3,$4,$5,$6,$7,1)`
		_, err := tx.Exec(ctx, stmt, entry.ID, entry.UserID, domain.DateOf(entry.Date),
			entry.StepsCount, entry.DistanceMiles, entry.Source, entry.Timestamp)
		return asVersionConflict(err)
	}

	const stmt = `UPDATE step_logs
        SET steps_count=$1, distance_miles=$2, source=$3, recorded_at=$4, version=version+1
        WHERE id=$5 AND version=$6`

	tag, err := tx.Exec(ctx, stmt, entry.StepsCount, entry.DistanceMiles, entry.Source, entry.Timestamp, entry.ID, entry.Version)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrVersionConflict
	}
	return nil
}

func saveLevel(ctx context.Context, tx pgx.Tx, level domain.UserLevel) error {
	if level.Version == 0 {
		const stmt = `INSERT INTO user_levels (user_id, current_level, current_exp, total_exp, attack_power, created_at, last_level_up, version)
            VALUES ($1,$2,$3,$4,$5,$6,$7,1)`
		_, err := tx.Exec(ctx, stmt, level.UserID, level.CurrentLevel, level.CurrentExp,
			level.TotalExp, level.AttackPower, level.CreatedAt, level.LastLevelUp)
		return asVersionConflict(err)
	}

	const stmt = `UPDATE user_levels
        SET current_level=$1, current_exp=$2, total_exp=$3, attack_power=$4, last_level_up=$5, version=version+1
        WHERE user_id=$6 AND version=$7`

	tag, err := tx.Exec(ctx, stmt, level.CurrentLevel, level.CurrentExp, level.TotalExp,
		level.AttackPower, level.LastLevelUp, level.UserID, level.Version)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrVersionConflict
	}
	return nil
}

func saveJourney(ctx context.Context, tx pgx.Tx, journey domain.Journey) error {
	if journey.Version == 0 {
		const stmt = `INSERT INTO journeys (id, user_id, template_id, start_city, end_city, description, difficulty,
            total_distance_miles, personal_progress_miles, is_template, is_active, started_at, finished_at, version)
            VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,1)`
		_, err := tx.Exec(ctx, stmt, journey.ID, journey.UserID, journey.TemplateID, journey.StartCity,
			journey.EndCity, journey.Description, journey.Difficulty, journey.TotalDistanceMiles,
			journey.PersonalProgressMiles, journey.IsTemplate, journey.IsActive, journey.StartedAt, journey.FinishedAt)
		return err
	}

	const stmt = `UPDATE journeys
        SET personal_progress_miles=$1, is_active=$2, finished_at=$3, version=version+1
        WHERE id=$4 AND version=$5`

	tag, err := tx.Exec(ctx, stmt, journey.PersonalProgressMiles, journey.IsActive, journey.FinishedAt, journey.ID, journey.Version)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrVersionConflict
	}
	return nil
}

func saveBoss(ctx context.Context, tx pgx.Tx, boss domain.Boss) error {
	if boss.Version == 0 {
		return insertBoss(ctx, tx, boss)
	}

	const stmt = `UPDATE bosses
        SET current_health=$1, is_active=$2, defeated_at=$3, respawn_due_at=$4, version=version+1
        WHERE id=$5 AND version=$6`

	tag, err := tx.Exec(ctx, stmt, boss.CurrentHealth, boss.IsActive, boss.DefeatedAt, boss.RespawnDueAt, boss.ID, boss.Version)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrVersionConflict
	}
	return nil
}

func insertBoss(ctx context.Context, tx pgx.Tx, boss domain.Boss) error {
	const stmt = `INSERT INTO bosses (id, name, description, image_url, max_health, current_health, exp_reward,
        coin_reward, special_reward, difficulty, boss_type, journey_id, is_active, spawned_at, defeated_at,
        respawn_hours, respawn_due_at, version)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,1)`
	_, err := tx.Exec(ctx, stmt, boss.ID, boss.Name, boss.Description, boss.ImageURL, boss.MaxHealth,
		boss.CurrentHealth, boss.ExpReward, boss.CoinReward, boss.SpecialReward, boss.Difficulty,
		boss.BossType, boss.JourneyID, boss.IsActive, boss.SpawnedAt, boss.DefeatedAt,
		boss.RespawnHours, boss.RespawnDueAt)
	return err
}

func insertOutbox(ctx context.Context, tx pgx.Tx, events []domain.Event) error {
	const stmt = `INSERT INTO outbox (aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`

	for i, event := range events {
		body, err := json.Marshal(event.Payload)
		if err != nil {
			return err
		}

		meta := eventCatalog[event.Type]
		if meta.Topic == "" {
			return fmt.Errorf("unknown event type: %s", event.Type)
		}

		dedupeKey := fmt.Sprintf("%s:%s:%d:%d", event.AggregateID, event.Type, time.Now().UnixNano(), i)
		if _, err := tx.Exec(ctx, stmt,
			event.AggregateType,
			event.AggregateID,
			event.Type,
			meta.Topic,
			meta.SchemaSubject,
			event.PartitionKey,
			body,
			dedupeKey,
		); err != nil {
			return err
		}
	}
	return nil
}

// EventMetadata describes how to route an outbox event.
type EventMetadata struct {
	Topic         string
	SchemaSubject string
}

var eventCatalog = map[string]EventMetadata{
	domain.EventStepsSynced:      {Topic: "step_events", SchemaSubject: "step_events-value"},
	domain.EventUserLeveledUp:    {Topic: "progression_events", SchemaSubject: "progression_events-value"},
	domain.EventJourneyCompleted: {Topic: "progression_events", SchemaSubject: "progression_events-value"},
	domain.EventBossDefeated:     {Topic: "boss_events", SchemaSubject: "boss_events-value"},
}
