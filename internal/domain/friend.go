package domain

import (
	"github.com/google/uuid"
)

type FriendRequest struct {
	ID        uuid.UUID `json:"id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Timestamp int64     `json:"timestamp"`
}

// Friendship is a symmetric relation between two usernames. Users is an
// unordered pair; at most one friendship exists per pair.
type Friendship struct {
	ID        uuid.UUID `json:"id"`
	Users     []string  `json:"users"`
	Timestamp int64     `json:"timestamp"`
	// Other is the pair member that is not the requesting user. Filled in
	// by the service for list responses.
	Other string `json:"other,omitempty"`
}

// Contains reports whether username is a member of the pair.
func (f Friendship) Contains(username string) bool {
	for _, u := range f.Users {
		if u == username {
			return true
		}
	}
	return false
}
