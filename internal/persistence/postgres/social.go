package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"example.com/stepquest/internal/domain"
)

const friendshipColumns = `id, sender_id, receiver_id, status, sent_at, accepted_at`

func scanFriendship(row pgx.Row) (*domain.Friendship, error) {
	var friendship domain.Friendship
	err := row.Scan(&friendship.ID, &friendship.SenderID, &friendship.ReceiverID,
		&friendship.Status, &friendship.SentAt, &friendship.AcceptedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &friendship, nil
}

// FriendIDs returns the ids of all accepted friends of a user.
func (r *Repository) FriendIDs(ctx context.Context, userID string) ([]string, error) {
	const query = `SELECT CASE WHEN sender_id=$1 THEN receiver_id ELSE sender_id END
        FROM friendships WHERE status='accepted' AND (sender_id=$1 OR receiver_id=$1)`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]string, 0, 16)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListFriendships returns a user's friendship edges in the given status,
// oldest first.
func (r *Repository) ListFriendships(ctx context.Context, userID string, status domain.FriendshipStatus) ([]domain.Friendship, error) {
	const query = `SELECT ` + friendshipColumns + ` FROM friendships
        WHERE status=$2 AND (sender_id=$1 OR receiver_id=$1) ORDER BY sent_at ASC`

	rows, err := r.pool.Query(ctx, query, userID, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	friendships := make([]domain.Friendship, 0, 16)
	for rows.Next() {
		var friendship domain.Friendship
		if err := rows.Scan(&friendship.ID, &friendship.SenderID, &friendship.ReceiverID,
			&friendship.Status, &friendship.SentAt, &friendship.AcceptedAt); err != nil {
			return nil, err
		}
		friendships = append(friendships, friendship)
	}
	return friendships, rows.Err()
}

// FindFriendship returns the edge between two users in either direction.
func (r *Repository) FindFriendship(ctx context.Context, userA, userB string) (*domain.Friendship, error) {
	const query = `SELECT ` + friendshipColumns + ` FROM friendships
        WHERE (sender_id=$1 AND receiver_id=$2) OR (sender_id=$2 AND receiver_id=$1)`
	return scanFriendship(r.pool.QueryRow(ctx, query, userA, userB))
}

// GetFriendship retrieves an edge by id.
func (r *Repository) GetFriendship(ctx context.Context, id string) (*domain.Friendship, error) {
	const query = `SELECT ` + friendshipColumns + ` FROM friendships WHERE id=$1`
	return scanFriendship(r.pool.QueryRow(ctx, query, id))
}

// InsertFriendship persists a new pending request.
func (r *Repository) InsertFriendship(ctx context.Context, friendship domain.Friendship) error {
	const stmt = `INSERT INTO friendships (id, sender_id, receiver_id, status, sent_at, accepted_at)
        VALUES ($1,$2,$3,$4,$5,$6)`
	_, err := r.pool.Exec(ctx, stmt, friendship.ID, friendship.SenderID, friendship.ReceiverID,
		friendship.Status, friendship.SentAt, friendship.AcceptedAt)
	return err
}

// UpdateFriendship persists a status change.
func (r *Repository) UpdateFriendship(ctx context.Context, friendship domain.Friendship) error {
	const stmt = `UPDATE friendships SET status=$1, accepted_at=$2 WHERE id=$3`
	_, err := r.pool.Exec(ctx, stmt, friendship.Status, friendship.AcceptedAt, friendship.ID)
	return err
}

// DeleteFriendship removes an edge.
func (r *Repository) DeleteFriendship(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM friendships WHERE id=$1`, id)
	return err
}
