package devserver

import (
	"sync"

	"github.com/pelusa-v/pelusa-live/internal/protocol"
)

// Inbox holds notifications for users with no live connection until their
// next connect. Each queue keeps the newest limit entries.
type Inbox struct {
	mu     sync.Mutex
	limit  int
	queued map[string][]protocol.Notification
}

func NewInbox(limit int) *Inbox {
	return &Inbox{limit: limit, queued: map[string][]protocol.Notification{}}
}

func (in *Inbox) Queue(user string, n protocol.Notification) {
	in.mu.Lock()
	defer in.mu.Unlock()
	q := append(in.queued[user], n)
	if in.limit > 0 && len(q) > in.limit {
		q = q[len(q)-in.limit:]
	}
	in.queued[user] = q
}

// Take returns the queue for user in arrival order and empties it.
func (in *Inbox) Take(user string) []protocol.Notification {
	in.mu.Lock()
	defer in.mu.Unlock()
	q := in.queued[user]
	delete(in.queued, user)
	return q
}

func (in *Inbox) Len(user string) int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return len(in.queued[user])
}
