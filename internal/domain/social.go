package domain

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// ListFriends returns the user's accepted friends.
func (s *Service) ListFriends(ctx context.Context, userID string) ([]User, error) {
	friendships, err := s.store.ListFriendships(ctx, userID, FriendshipAccepted)
	if err != nil {
		return nil, err
	}

	friends := make([]User, 0, len(friendships))
	for _, friendship := range friendships {
		friend, err := s.store.GetUser(ctx, friendship.OtherUser(userID))
		if err != nil {
			return nil, err
		}
		if friend != nil {
			friends = append(friends, *friend)
		}
	}
	return friends, nil
}

// PendingFriendRequests returns requests awaiting the user's response.
func (s *Service) PendingFriendRequests(ctx context.Context, userID string) ([]Friendship, error) {
	friendships, err := s.store.ListFriendships(ctx, userID, FriendshipPending)
	if err != nil {
		return nil, err
	}

	received := make([]Friendship, 0, len(friendships))
	for _, friendship := range friendships {
		if friendship.ReceiverID == userID {
			received = append(received, friendship)
		}
	}
	return received, nil
}

// SendFriendRequest creates a pending edge toward the named user.
func (s *Service) SendFriendRequest(ctx context.Context, senderID, targetUsername string) (*Friendship, error) {
	target, err := s.store.GetUserByUsername(ctx, targetUsername)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, fmt.Errorf("%w: user %q", ErrNotFound, targetUsername)
	}
	if target.ID == senderID {
		return nil, fmt.Errorf("%w: cannot befriend yourself", ErrInvalidInput)
	}

	existing, err := s.store.FindFriendship(ctx, senderID, target.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: friendship already %s", ErrConflict, existing.Status)
	}

	friendship := Friendship{
		ID:         uuid.NewString(),
		SenderID:   senderID,
		ReceiverID: target.ID,
		Status:     FriendshipPending,
		SentAt:     s.clock.Now(),
	}
	if err := s.store.InsertFriendship(ctx, friendship); err != nil {
		return nil, err
	}
	return &friendship, nil
}

// RespondFriendRequest accepts or declines a pending request addressed to the
// user. Declining removes the edge.
func (s *Service) RespondFriendRequest(ctx context.Context, userID, requestID string, accept bool) error {
	friendship, err := s.store.GetFriendship(ctx, requestID)
	if err != nil {
		return err
	}
	if friendship == nil || friendship.ReceiverID != userID || friendship.Status != FriendshipPending {
		return fmt.Errorf("%w: friend request %s", ErrNotFound, requestID)
	}

	if !accept {
		return s.store.DeleteFriendship(ctx, friendship.ID)
	}

	now := s.clock.Now()
	friendship.Status = FriendshipAccepted
	friendship.AcceptedAt = &now
	return s.store.UpdateFriendship(ctx, *friendship)
}

// RemoveFriend deletes an accepted friendship between the user and friendID.
func (s *Service) RemoveFriend(ctx context.Context, userID, friendID string) error {
	friendship, err := s.store.FindFriendship(ctx, userID, friendID)
	if err != nil {
		return err
	}
	if friendship == nil || friendship.Status != FriendshipAccepted {
		return fmt.Errorf("%w: friendship with %s", ErrNotFound, friendID)
	}
	return s.store.DeleteFriendship(ctx, friendship.ID)
}
