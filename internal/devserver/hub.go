package devserver

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pelusa-v/pelusa-live/internal/protocol"
)

type inbound struct {
	client *Client
	env    protocol.Envelope
}

type notifyRequest struct {
	userID string
	n      protocol.Notification
	reply  chan bool
}

// Hub owns every connected client. All writes to client queues happen on
// the Run goroutine.
type Hub struct {
	logger *zap.Logger
	now    func() time.Time

	mu       sync.RWMutex
	clients  map[string]*Client            // id -> client
	byUser   map[string]map[string]*Client // user id -> id -> client
	lastSeen map[string]time.Time

	members *Membership
	inbox   *Inbox

	registerChan   chan *Client
	unregisterChan chan *Client
	inboundChan    chan inbound
	notifyChan     chan notifyRequest
	heartbeatChan  chan string
	done           chan struct{}
}

func NewHub(queueLimit int, logger *zap.Logger) *Hub {
	return &Hub{
		logger:         logger,
		now:            time.Now,
		clients:        map[string]*Client{},
		byUser:         map[string]map[string]*Client{},
		lastSeen:       map[string]time.Time{},
		members:        NewMembership(),
		inbox:          NewInbox(queueLimit),
		registerChan:   make(chan *Client),
		unregisterChan: make(chan *Client),
		inboundChan:    make(chan inbound, 64),
		notifyChan:     make(chan notifyRequest),
		heartbeatChan:  make(chan string, 16),
		done:           make(chan struct{}),
	}
}

// Run processes hub events until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case c := <-h.registerChan:
			h.register(c)

		case c := <-h.unregisterChan:
			h.unregister(c)

		case in := <-h.inboundChan:
			h.handle(in.client, in.env)

		case req := <-h.notifyChan:
			req.reply <- h.notify(req.userID, req.n)

		case userID := <-h.heartbeatChan:
			now := h.now()
			h.mu.Lock()
			h.lastSeen[userID] = now
			h.mu.Unlock()
			h.broadcastExcept(userID, protocol.EventUserStatusUpdate, protocol.UserStatusPayload{
				UserID: userID, IsOnline: true, LastSeen: now,
			})
		}
	}
}

func (h *Hub) Register(c *Client) bool {
	select {
	case h.registerChan <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregisterChan <- c:
	case <-h.done:
	}
}

func (h *Hub) receive(c *Client, env protocol.Envelope) {
	select {
	case h.inboundChan <- inbound{client: c, env: env}:
	case <-h.done:
	}
}

// Notify delivers n to every connection of userID, or queues it when the
// user is offline. It reports whether the notification was delivered live.
func (h *Hub) Notify(ctx context.Context, userID string, n protocol.Notification) (bool, error) {
	req := notifyRequest{userID: userID, n: n, reply: make(chan bool, 1)}
	select {
	case h.notifyChan <- req:
	case <-h.done:
		return false, context.Canceled
	case <-ctx.Done():
		return false, ctx.Err()
	}
	return <-req.reply, nil
}

// Heartbeat records userID as seen now and announces it as online.
func (h *Hub) Heartbeat(userID string) {
	select {
	case h.heartbeatChan <- userID:
	case <-h.done:
	}
}

type ClientJSON struct {
	ID       string `json:"id"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// ListClients returns connected clients, skipping those whose id or user id
// equals exclude.
func (h *Hub) ListClients(exclude string) []ClientJSON {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]ClientJSON, 0, len(h.clients))
	for id, c := range h.clients {
		if exclude != "" && (exclude == id || exclude == c.User.ID) {
			continue
		}
		out = append(out, ClientJSON{ID: id, UserID: c.User.ID, Username: c.User.Username})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (h *Hub) Online(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byUser[userID]) > 0
}

func (h *Hub) Members(conv string) []string { return h.members.Members(conv) }

func (h *Hub) register(c *Client) {
	uid := c.User.ID
	now := h.now()
	h.mu.Lock()
	h.clients[c.ID] = c
	if _, ok := h.byUser[uid]; !ok {
		h.byUser[uid] = map[string]*Client{}
	}
	first := len(h.byUser[uid]) == 0
	h.byUser[uid][c.ID] = c
	h.lastSeen[uid] = now
	h.mu.Unlock()

	h.logger.Info("client connected", zap.String("clientId", c.ID), zap.String("userId", uid))
	if first {
		h.broadcastExcept(uid, protocol.EventUserStatusUpdate, protocol.UserStatusPayload{
			UserID: uid, IsOnline: true, LastSeen: now,
		})
	}
	if queued := h.inbox.Take(uid); len(queued) > 0 {
		h.sendTo(c, protocol.EventQueuedNotifications, queued)
	}
}

func (h *Hub) unregister(c *Client) {
	uid := c.User.ID
	now := h.now()
	h.mu.Lock()
	if _, ok := h.clients[c.ID]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c.ID)
	delete(h.byUser[uid], c.ID)
	last := len(h.byUser[uid]) == 0
	if last {
		delete(h.byUser, uid)
	}
	h.lastSeen[uid] = now
	h.mu.Unlock()
	close(c.Send)

	h.logger.Info("client disconnected", zap.String("clientId", c.ID), zap.String("userId", uid))
	if !last {
		return
	}
	for _, conv := range h.members.LeaveAll(uid) {
		h.toMembers(conv, uid, protocol.EventUserLeftConversation, protocol.ParticipantPayload{
			ConversationID: conv, UserID: uid, Username: c.User.Username,
		})
	}
	h.broadcastExcept(uid, protocol.EventUserStatusUpdate, protocol.UserStatusPayload{
		UserID: uid, IsOnline: false, LastSeen: now,
	})
}

func (h *Hub) handle(c *Client, env protocol.Envelope) {
	uid := c.User.ID
	switch env.Event {
	case protocol.EventJoinConversation:
		var ref protocol.ConversationRef
		if !h.decode(c, env, &ref) {
			return
		}
		conv := normalizeConversation(ref.ConversationID)
		if h.members.Join(uid, conv) {
			h.toMembers(conv, uid, protocol.EventUserJoinedConversation, protocol.ParticipantPayload{
				ConversationID: conv, UserID: uid, Username: c.User.Username,
			})
		}

	case protocol.EventLeaveConversation:
		var ref protocol.ConversationRef
		if !h.decode(c, env, &ref) {
			return
		}
		conv := normalizeConversation(ref.ConversationID)
		if h.members.Leave(uid, conv) {
			h.toMembers(conv, uid, protocol.EventUserLeftConversation, protocol.ParticipantPayload{
				ConversationID: conv, UserID: uid, Username: c.User.Username,
			})
		}

	case protocol.EventTypingStart, protocol.EventTypingStop:
		var ref protocol.ConversationRef
		if !h.decode(c, env, &ref) || !h.members.IsMember(uid, ref.ConversationID) {
			return
		}
		conv := normalizeConversation(ref.ConversationID)
		h.toMembers(conv, uid, protocol.EventUserTyping, protocol.TypingPayload{
			ConversationID: conv,
			UserID:         uid,
			Username:       c.User.Username,
			IsTyping:       env.Event == protocol.EventTypingStart,
		})

	case protocol.EventMessageRead:
		var req protocol.MessageReadRequest
		if !h.decode(c, env, &req) || !h.members.IsMember(uid, req.ConversationID) {
			return
		}
		conv := normalizeConversation(req.ConversationID)
		h.toMembers(conv, uid, protocol.EventMessageReadUpdate, protocol.ReadUpdatePayload{
			ConversationID: conv, MessageID: req.MessageID, UserID: uid, ReadAt: h.now(),
		})

	case protocol.EventSendDirectMessage:
		var req protocol.DirectMessageRequest
		if !h.decode(c, env, &req) || req.RecipientID == "" {
			return
		}
		h.directMessage(c, req)

	case protocol.EventGetConversationStatus:
		var ref protocol.ConversationRef
		if !h.decode(c, env, &ref) {
			return
		}
		for _, member := range h.members.Members(ref.ConversationID) {
			h.mu.RLock()
			online := len(h.byUser[member]) > 0
			seen := h.lastSeen[member]
			h.mu.RUnlock()
			h.sendTo(c, protocol.EventUserStatusUpdate, protocol.UserStatusPayload{
				UserID: member, IsOnline: online, LastSeen: seen,
			})
		}

	default:
		h.logger.Debug("unknown client event", zap.String("event", env.Event), zap.String("clientId", c.ID))
	}
}

func (h *Hub) directMessage(c *Client, req protocol.DirectMessageRequest) {
	conv := DirectConversationID(c.User.ID, req.RecipientID)
	msg := protocol.NewMessagePayload{
		ConversationID: conv,
		Message: protocol.ChatMessage{
			ID:             uuid.NewString(),
			ConversationID: conv,
			SenderID:       c.User.ID,
			SenderName:     c.User.Username,
			RecipientID:    req.RecipientID,
			Content:        req.Content,
			CreatedAt:      h.now(),
		},
	}
	h.sendToUser(c.User.ID, protocol.EventNewMessage, msg)
	if h.sendToUser(req.RecipientID, protocol.EventNewMessage, msg) > 0 {
		return
	}

	from := c.User.Username
	if from == "" {
		from = c.User.ID
	}
	h.inbox.Queue(req.RecipientID, protocol.Notification{
		ID:        uuid.NewString(),
		Title:     "New message from " + from,
		Body:      req.Content,
		Type:      "message",
		CreatedAt: h.now(),
		Data:      map[string]any{"conversationId": conv},
	})
}

func (h *Hub) notify(userID string, n protocol.Notification) bool {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = h.now()
	}
	if h.sendToUser(userID, protocol.EventNotification, n) > 0 {
		return true
	}
	h.inbox.Queue(userID, n)
	return false
}

func (h *Hub) decode(c *Client, env protocol.Envelope, v any) bool {
	if err := env.Decode(v); err != nil {
		h.logger.Debug("bad client payload", zap.String("clientId", c.ID), zap.Error(err))
		return false
	}
	return true
}

func (h *Hub) sendTo(c *Client, event string, payload any) {
	frame, err := protocol.Encode(event, payload)
	if err != nil {
		h.logger.Error("encode frame", zap.String("event", event), zap.Error(err))
		return
	}
	if !c.enqueue(frame) {
		h.logger.Warn("client queue full", zap.String("clientId", c.ID), zap.String("event", event))
	}
}

// sendToUser returns the number of connections written to.
func (h *Hub) sendToUser(userID, event string, payload any) int {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.byUser[userID]))
	for _, c := range h.byUser[userID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		h.sendTo(c, event, payload)
	}
	return len(targets)
}

func (h *Hub) toMembers(conv, except, event string, payload any) {
	for _, member := range h.members.Members(conv) {
		if member != except {
			h.sendToUser(member, event, payload)
		}
	}
}

func (h *Hub) broadcastExcept(except, event string, payload any) {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		if c.User.ID != except {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		h.sendTo(c, event, payload)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		_ = c.Conn.Close()
		close(c.Send)
		delete(h.clients, id)
	}
	h.byUser = map[string]map[string]*Client{}
}
