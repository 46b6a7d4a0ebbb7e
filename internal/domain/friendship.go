package domain

import "time"

// FriendshipStatus tracks the request lifecycle.
type FriendshipStatus string

const (
	FriendshipPending  FriendshipStatus = "pending"
	FriendshipAccepted FriendshipStatus = "accepted"
)

// Friendship is an edge in the social graph. The pair (sender, receiver) is
// unique regardless of direction.
type Friendship struct {
	ID         string
	SenderID   string
	ReceiverID string
	Status     FriendshipStatus
	SentAt     time.Time
	AcceptedAt *time.Time
}

// OtherUser returns the counterpart of userID on this edge.
func (f *Friendship) OtherUser(userID string) string {
	if f.SenderID == userID {
		return f.ReceiverID
	}
	return f.SenderID
}
