package consumer

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"example.com/stepquest/internal/domain"
)

type recordingApplier struct {
	calls  int
	userID string
	delta  int
	err    error
}

func (a *recordingApplier) ApplyDelta(_ context.Context, userID string, delta int) error {
	a.calls++
	a.userID = userID
	a.delta = delta
	return a.err
}

func TestLeaderboardHandlerAppliesDelta(t *testing.T) {
	applier := &recordingApplier{}
	handler := NewLeaderboardHandler(applier)

	payload, err := json.Marshal(domain.StepsSynced{
		UserID:     "u1",
		Date:       "2026-03-10",
		Delta:      750,
		StepsCount: 9000,
		Source:     "manual",
	})
	require.NoError(t, err)

	err = handler.Handle(context.Background(), Message{
		EventType: domain.EventStepsSynced,
		Payload:   payload,
	})
	require.NoError(t, err)
	require.Equal(t, 1, applier.calls)
	require.Equal(t, "u1", applier.userID)
	require.Equal(t, 750, applier.delta)
}

func TestLeaderboardHandlerIgnoresOtherEvents(t *testing.T) {
	applier := &recordingApplier{}
	handler := NewLeaderboardHandler(applier)

	err := handler.Handle(context.Background(), Message{
		EventType: domain.EventUserLeveledUp,
		Payload:   json.RawMessage(`{"user_id":"u1","level":3}`),
	})
	require.NoError(t, err)
	require.Equal(t, 0, applier.calls)
}

func TestLeaderboardHandlerRejectsMalformedPayload(t *testing.T) {
	applier := &recordingApplier{}
	handler := NewLeaderboardHandler(applier)

	err := handler.Handle(context.Background(), Message{
		EventType: domain.EventStepsSynced,
		Payload:   json.RawMessage(`{not json`),
	})
	require.Error(t, err)
	require.Equal(t, 0, applier.calls)
}
