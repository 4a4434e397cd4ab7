package domain

import (
	"github.com/google/uuid"
)

// Message is a direct message between two usernames. Timestamps are unix
// milliseconds so every store backend can order them numerically.
type Message struct {
	ID        uuid.UUID `json:"id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Message   string    `json:"message"`
	Timestamp int64     `json:"timestamp"`
	Edited    bool      `json:"edited"`
}
