package consumer

import (
	"context"
	"encoding/json"

	"example.com/stepquest/internal/domain"
)

// deltaApplier is the slice of the leaderboard cache this handler needs.
type deltaApplier interface {
	ApplyDelta(ctx context.Context, userID string, delta int) error
}

// LeaderboardHandler folds steps.synced events into the Redis lifetime
// mirror. Other event types on the topic are ignored.
type LeaderboardHandler struct {
	cache deltaApplier
}

// NewLeaderboardHandler constructs a handler over the given cache.
func NewLeaderboardHandler(cache deltaApplier) *LeaderboardHandler {
	return &LeaderboardHandler{cache: cache}
}

// Handle applies the event's step delta to the mirror. Re-applying a replayed
// delta is tolerated; the mirror is advisory and rebuildable from Postgres.
func (h *LeaderboardHandler) Handle(ctx context.Context, msg Message) error {
	if msg.EventType != domain.EventStepsSynced {
		return nil
	}

	var event domain.StepsSynced
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		return err
	}
	return h.cache.ApplyDelta(ctx, event.UserID, event.Delta)
}
