package devserver

import (
	"path"
	"sort"
	"strings"
	"sync"
)

// normalizeConversation trims the id and collapses redundant slashes.
func normalizeConversation(id string) string {
	c := strings.TrimSpace(id)
	if c == "" {
		return ""
	}
	c = path.Clean("/" + c)
	return strings.TrimPrefix(c, "/")
}

// DirectConversationID is the conversation shared by two users, independent
// of who wrote first.
func DirectConversationID(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return "dm:" + a + ":" + b
}

// Membership tracks which users joined which conversations.
type Membership struct {
	mu        sync.RWMutex
	userConvs map[string]map[string]bool // user -> set(conversation)
	convUsers map[string]map[string]bool // conversation -> set(user)
}

func NewMembership() *Membership {
	return &Membership{
		userConvs: map[string]map[string]bool{},
		convUsers: map[string]map[string]bool{},
	}
}

// Join reports whether user was not already a member.
func (m *Membership) Join(user, conv string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := normalizeConversation(conv)
	if c == "" || m.convUsers[c][user] {
		return false
	}
	if _, ok := m.userConvs[user]; !ok {
		m.userConvs[user] = map[string]bool{}
	}
	m.userConvs[user][c] = true
	if _, ok := m.convUsers[c]; !ok {
		m.convUsers[c] = map[string]bool{}
	}
	m.convUsers[c][user] = true
	return true
}

// Leave reports whether user was a member.
func (m *Membership) Leave(user, conv string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.leaveLocked(user, normalizeConversation(conv))
}

func (m *Membership) leaveLocked(user, c string) bool {
	if c == "" || !m.convUsers[c][user] {
		return false
	}
	if s, ok := m.userConvs[user]; ok {
		delete(s, c)
		if len(s) == 0 {
			delete(m.userConvs, user)
		}
	}
	if s, ok := m.convUsers[c]; ok {
		delete(s, user)
		if len(s) == 0 {
			delete(m.convUsers, c)
		}
	}
	return true
}

// LeaveAll removes user everywhere and returns the conversations it left.
func (m *Membership) LeaveAll(user string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	left := make([]string, 0, len(m.userConvs[user]))
	for c := range m.userConvs[user] {
		left = append(left, c)
	}
	sort.Strings(left)
	for _, c := range left {
		m.leaveLocked(user, c)
	}
	return left
}

func (m *Membership) IsMember(user, conv string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.convUsers[normalizeConversation(conv)][user]
}

// Members returns the users in conv, sorted.
func (m *Membership) Members(conv string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	users := m.convUsers[normalizeConversation(conv)]
	out := make([]string, 0, len(users))
	for u := range users {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}
