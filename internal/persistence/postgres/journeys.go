package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"example.com/stepquest/internal/domain"
)

const journeyColumns = `id, user_id, template_id, start_city, end_city, description, difficulty,
    total_distance_miles, personal_progress_miles, is_template, is_active, started_at, finished_at, version`

func scanJourney(row pgx.Row) (*domain.Journey, error) {
	var journey domain.Journey
	err := row.Scan(&journey.ID, &journey.UserID, &journey.TemplateID, &journey.StartCity, &journey.EndCity,
		&journey.Description, &journey.Difficulty, &journey.TotalDistanceMiles, &journey.PersonalProgressMiles,
		&journey.IsTemplate, &journey.IsActive, &journey.StartedAt, &journey.FinishedAt, &journey.Version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &journey, nil
}

// GetJourney retrieves a journey (template or personal instance) by id.
func (r *Repository) GetJourney(ctx context.Context, journeyID string) (*domain.Journey, error) {
	const query = `SELECT ` + journeyColumns + ` FROM journeys WHERE id=$1`
	return scanJourney(r.pool.QueryRow(ctx, query, journeyID))
}

// ListJourneyTemplates returns the active preset routes.
func (r *Repository) ListJourneyTemplates(ctx context.Context) ([]domain.Journey, error) {
	const query = `SELECT ` + journeyColumns + ` FROM journeys
        WHERE is_template AND is_active ORDER BY total_distance_miles ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	templates := make([]domain.Journey, 0, 8)
	for rows.Next() {
		var journey domain.Journey
		if err := rows.Scan(&journey.ID, &journey.UserID, &journey.TemplateID, &journey.StartCity, &journey.EndCity,
			&journey.Description, &journey.Difficulty, &journey.TotalDistanceMiles, &journey.PersonalProgressMiles,
			&journey.IsTemplate, &journey.IsActive, &journey.StartedAt, &journey.FinishedAt, &journey.Version); err != nil {
			return nil, err
		}
		templates = append(templates, journey)
	}
	return templates, rows.Err()
}

// CommitJourneyStart inserts the personal journey and repoints the user in
// one transaction.
func (r *Repository) CommitJourneyStart(ctx context.Context, commit domain.JourneyStartCommit) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	if err = saveJourney(ctx, tx, commit.Journey); err != nil {
		return err
	}
	if err = saveUser(ctx, tx, commit.User); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// CommitJourneyAbandon clears the user's journey pointer.
func (r *Repository) CommitJourneyAbandon(ctx context.Context, user domain.User) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	if err = saveUser(ctx, tx, user); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
