// Package notify turns live message snapshots into per-user new-message
// notifications, suppressing everything the user has already been told
// about.
package notify

import (
	"sync"

	"github.com/zawix/messages/internal/domain"
)

const maxBodyLen = 50

// Notification is one new-message alert.
type Notification struct {
	From string `json:"from"`
	Body string `json:"body"`
}

// Deduplicator tracks which inbound messages a user has already been
// notified about. It starts with no user; SetUser arms it, and the first
// snapshot after that establishes a baseline without notifying. Later
// snapshots produce notifications only for messages beyond the baseline.
//
// By default new messages are detected positionally: a snapshot with more
// inbound messages than the last one notifies for the suffix. With
// trackByID set, detection is by message id instead, so a conversation
// that shrinks and regrows still notifies for genuinely new messages.
type Deduplicator struct {
	mu          sync.Mutex
	username    string
	initialized bool
	lastCount   int
	seen        map[string]bool
	trackByID   bool
}

func NewDeduplicator(trackByID bool) *Deduplicator {
	return &Deduplicator{trackByID: trackByID}
}

// SetUser arms the deduplicator for username and resets all tracking
// state. The next snapshot becomes the new baseline.
func (d *Deduplicator) SetUser(username string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.username = username
	d.reset()
}

// Logout disarms the deduplicator. Snapshots are ignored until the next
// SetUser.
func (d *Deduplicator) Logout() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.username = ""
	d.reset()
}

func (d *Deduplicator) reset() {
	d.initialized = false
	d.lastCount = 0
	d.seen = nil
}

// OnSnapshot consumes the full current message set and returns the
// notifications it produces, if any. Only messages addressed to the
// current user and sent by someone else count.
func (d *Deduplicator) OnSnapshot(msgs []domain.Message) []Notification {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.username == "" {
		return nil
	}

	inbound := make([]domain.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.To == d.username && m.From != d.username {
			inbound = append(inbound, m)
		}
	}

	if !d.initialized {
		d.initialized = true
		d.resync(inbound)
		return nil
	}

	var fresh []domain.Message
	if d.trackByID {
		for _, m := range inbound {
			if !d.seen[m.ID.String()] {
				fresh = append(fresh, m)
			}
		}
	} else if len(inbound) > d.lastCount {
		fresh = inbound[d.lastCount:]
	}

	d.resync(inbound)

	if len(fresh) == 0 {
		return nil
	}

	notifs := make([]Notification, 0, len(fresh))
	for _, m := range fresh {
		notifs = append(notifs, Notification{
			From: m.From,
			Body: Truncate(m.Message),
		})
	}
	return notifs
}

// resync snaps the tracking state to the current inbound set, in both
// directions. Deletions lower the count so a later send is still new.
func (d *Deduplicator) resync(inbound []domain.Message) {
	d.lastCount = len(inbound)
	if !d.trackByID {
		return
	}
	d.seen = make(map[string]bool, len(inbound))
	for _, m := range inbound {
		d.seen[m.ID.String()] = true
	}
}

// Truncate shortens a notification body to at most maxBodyLen runes,
// appending "..." when anything was cut.
func Truncate(s string) string {
	runes := []rune(s)
	if len(runes) <= maxBodyLen {
		return s
	}
	return string(runes[:maxBodyLen]) + "..."
}
